package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"

	dbconfig "github.com/tigerroll/matchday/pkg/batch/adapter/database/config"
)

func TestConnectionString(t *testing.T) {
	dsn := ConnectionString(dbconfig.DatabaseConfig{
		Host: "db", Port: 5432, User: "app", Password: "secret", Database: "matchday",
		Params: map[string]string{"search_path": "public", "application_name": "matchday"},
	})
	assert.Equal(t, "host=db port=5432 user=app password=secret dbname=matchday sslmode=disable application_name=matchday search_path=public", dsn)
}
