package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/tigerroll/matchday/internal/records"
	"github.com/tigerroll/matchday/internal/store"
	dbconfig "github.com/tigerroll/matchday/pkg/batch/adapter/database/config"
	gormadapter "github.com/tigerroll/matchday/pkg/batch/adapter/database/gorm"
	port "github.com/tigerroll/matchday/pkg/batch/core/application/port"
	"github.com/tigerroll/matchday/pkg/batch/core/config"
	model "github.com/tigerroll/matchday/pkg/batch/core/domain/model"
	"github.com/tigerroll/matchday/pkg/batch/core/support/clock"
	"github.com/tigerroll/matchday/pkg/batch/test"
)

func newMySQLStore(t *testing.T) (*store.Store, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{Logger: gormadapter.NewGormLogger(config.LogLevelSilent)})
	require.NoError(t, err)

	conn, err := gormadapter.NewGormDBAdapter(gormDB, dbconfig.DatabaseConfig{Type: "mysql"}, "metadata")
	require.NoError(t, err)
	t.Cleanup(func() {
		mock.ExpectClose()
		_ = conn.Close()
	})

	resolver := test.NewTestSingleConnectionResolver(conn)
	return store.NewStore(resolver, gormadapter.NewGormTransactionManagerFactory(resolver), "metadata", clock.NewFake(t0)), mock
}

func TestStore_MySQLRefreshesFixturesInOneTransaction(t *testing.T) {
	s, mock := newMySQLStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `fixtures` .* ON DUPLICATE KEY UPDATE `status`=").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO `scraping_log`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := s.Upsert(context.Background(), fixturesItem, port.RecordSet{fixture(1, 7, 8, records.StatusFinished)})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_MySQLMissingTableRollsBack(t *testing.T) {
	s, mock := newMySQLStore(t)
	item := model.NewWorkItem(model.KindTeamHistory, "team", 39, model.Params{"team_id": 39})

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `team_matches` .* ON DUPLICATE KEY UPDATE").
		WillReturnError(errors.New("Error 1146 (42S02): Table 'matchday.team_matches' doesn't exist"))
	mock.ExpectRollback()

	err := s.Upsert(context.Background(), item, port.RecordSet{records.TeamMatch{TeamID: 39, MatchID: 1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run `matchday migrate`")
	assert.NoError(t, mock.ExpectationsWereMet())
}
