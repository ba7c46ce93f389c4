package configbinder_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/matchday/pkg/batch/support/util/configbinder"
)

type teamParams struct {
	TeamID int    `yaml:"team_id"`
	Limit  int    `yaml:"limit"`
	Name   string `yaml:"name"`
}

func TestBindPropertiesWeaklyTyped(t *testing.T) {
	var p teamParams
	err := configbinder.BindProperties(map[string]interface{}{
		"team_id": float64(2697), // JSON numbers decode as float64
		"limit":   "10",
		"name":    "Eintracht Frankfurt",
	}, &p)

	require.NoError(t, err)
	assert.Equal(t, teamParams{TeamID: 2697, Limit: 10, Name: "Eintracht Frankfurt"}, p)
}

func TestBindPropertiesEmptyIsNoop(t *testing.T) {
	p := teamParams{Limit: 5}
	require.NoError(t, configbinder.BindProperties(nil, &p))
	assert.Equal(t, 5, p.Limit)
}

func TestBindPropertiesRejectsBadValue(t *testing.T) {
	var p teamParams
	err := configbinder.BindProperties(map[string]interface{}{"team_id": "not-a-number"}, &p)
	assert.ErrorContains(t, err, "teamParams")
}

func TestToPropertiesRoundTrip(t *testing.T) {
	props, err := configbinder.ToProperties(teamParams{TeamID: 44, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 44, props["team_id"])

	var back teamParams
	require.NoError(t, configbinder.BindProperties(props, &back))
	assert.Equal(t, 44, back.TeamID)
}
