package collector_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/matchday/internal/collector"
	"github.com/tigerroll/matchday/internal/records"
	"github.com/tigerroll/matchday/pkg/batch/core/application/usecase"
	model "github.com/tigerroll/matchday/pkg/batch/core/domain/model"
)

type fakeCatalog struct {
	teams    []int64
	fixtures []records.Fixture
	err      error
}

func (c *fakeCatalog) TeamIDs(context.Context, string) ([]int64, error) { return c.teams, c.err }

func (c *fakeCatalog) FinishedWithoutStatistics(context.Context, string) ([]records.Fixture, error) {
	return c.fixtures, c.err
}

func (c *fakeCatalog) FinishedWithoutPlayerStatistics(context.Context, string) ([]records.Fixture, error) {
	return c.fixtures, c.err
}

type mockRunner struct {
	mock.Mock
}

func (m *mockRunner) Run(ctx context.Context, req usecase.Request) (model.SessionSummary, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(model.SessionSummary), args.Error(1)
}

func newCatalog() *fakeCatalog {
	return &fakeCatalog{
		teams: []int64{7, 39, 42},
		fixtures: []records.Fixture{
			{MatchID: 30, HomeTeamID: 39, HomeTeam: "Liverpool", AwayTeamID: 42, AwayTeam: "Arsenal"},
			{MatchID: 10, HomeTeamID: 7, HomeTeam: "Everton", AwayTeamID: 8, AwayTeam: "Chelsea"},
		},
	}
}

func itemIDs(req usecase.Request) []string {
	ids := make([]string, len(req.Items))
	for i, it := range req.Items {
		ids[i] = it.ID
	}
	return ids
}

func TestPlanner_Stages(t *testing.T) {
	ctx := context.Background()
	p := collector.NewPlanner(newCatalog())

	req, err := p.Plan(ctx, model.KindFixturesByDate, "2024-11-02")
	require.NoError(t, err)
	assert.Equal(t, "fixtures_by_date:2024-11-02", req.Scope)
	assert.Equal(t, []string{"date:2024-11-02"}, itemIDs(req))
	date, ok := req.Items[0].Params.GetString("date")
	require.True(t, ok)
	assert.Equal(t, "2024-11-02", date)

	req, err = p.Plan(ctx, model.KindTeamHistory, "2024-11-02")
	require.NoError(t, err)
	assert.Equal(t, []string{"team:7", "team:39", "team:42"}, itemIDs(req))

	req, err = p.Plan(ctx, model.KindMatchStats, "2024-11-02")
	require.NoError(t, err)
	assert.Equal(t, "match_stats:2024-11-02", req.Scope)
	assert.Equal(t, []string{"match:10", "match:30"}, itemIDs(req), "ordered by match id")

	req, err = p.Plan(ctx, model.KindPlayerStats, "2024-11-02")
	require.NoError(t, err)
	assert.Equal(t, []string{"lineup:10", "lineup:30"}, itemIDs(req))
	home, _ := req.Items[1].Params.GetString("home_team")
	away, _ := req.Items[1].Params.GetInt64("away_team_id")
	assert.Equal(t, "Liverpool", home)
	assert.Equal(t, int64(42), away)
}

func TestPlanner_Errors(t *testing.T) {
	p := collector.NewPlanner(&fakeCatalog{err: errors.New("db down")})
	_, err := p.Plan(context.Background(), model.KindTeamHistory, "2024-11-02")
	assert.EqualError(t, err, "db down")

	_, err = p.Plan(context.Background(), model.ItemKind("odds"), "2024-11-02")
	assert.ErrorContains(t, err, "unknown stage")
}

func TestDatesBetween(t *testing.T) {
	dates, err := collector.DatesBetween("2024-02-28", "2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-02-28", "2024-02-29", "2024-03-01"}, dates)

	_, err = collector.DatesBetween("2024-03-02", "2024-03-01")
	assert.ErrorContains(t, err, "is empty")
	_, err = collector.DatesBetween("yesterday", "2024-03-01")
	assert.ErrorContains(t, err, "invalid date")
}

func TestCollect_RunsStagesInOrder(t *testing.T) {
	runner := new(mockRunner)
	var scopes []string
	runner.On("Run", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		scopes = append(scopes, args.Get(1).(usecase.Request).Scope)
	}).Return(model.SessionSummary{Snapshot: model.Snapshot{SessionID: "s", Status: model.SessionCompleted}}, nil)

	c := collector.NewCollector(runner, collector.NewPlanner(newCatalog()), nil)
	summaries, err := c.Collect(context.Background(), collector.Options{
		Dates:  []string{"2024-11-02", "2024-11-03"},
		Stages: []model.ItemKind{model.KindMatchStats, model.KindFixturesByDate},
	})
	require.NoError(t, err)
	assert.Len(t, summaries, 4)
	assert.Equal(t, []string{
		"fixtures_by_date:2024-11-02", "match_stats:2024-11-02",
		"fixtures_by_date:2024-11-03", "match_stats:2024-11-03",
	}, scopes)
}

func TestCollect_FailedSessionContinuesErrorStops(t *testing.T) {
	runner := new(mockRunner)
	runner.On("Run", mock.Anything, mock.MatchedBy(func(r usecase.Request) bool { return r.Kind == model.KindFixturesByDate })).
		Return(model.SessionSummary{Snapshot: model.Snapshot{SessionID: "a", Status: model.SessionFailed}}, nil).Once()
	runner.On("Run", mock.Anything, mock.MatchedBy(func(r usecase.Request) bool { return r.Kind == model.KindTeamHistory })).
		Return(model.SessionSummary{Snapshot: model.Snapshot{SessionID: "b", Status: model.SessionInProgress}}, context.Canceled).Once()

	c := collector.NewCollector(runner, collector.NewPlanner(newCatalog()), nil)
	summaries, err := c.Collect(context.Background(), collector.Options{Dates: []string{"2024-11-02"}})
	require.ErrorIs(t, err, context.Canceled)
	assert.Len(t, summaries, 2)
	runner.AssertNumberOfCalls(t, "Run", 2)
}

func TestCollect_SkipsEmptyStages(t *testing.T) {
	runner := new(mockRunner)
	c := collector.NewCollector(runner, collector.NewPlanner(&fakeCatalog{}), nil)
	summaries, err := c.Collect(context.Background(), collector.Options{
		Dates:  []string{"2024-11-02"},
		Stages: []model.ItemKind{model.KindTeamHistory, model.KindPlayerStats},
	})
	require.NoError(t, err)
	assert.Empty(t, summaries)
	runner.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
}

func TestCollect_DryRunRendersPlan(t *testing.T) {
	runner := new(mockRunner)
	var out bytes.Buffer
	c := collector.NewCollector(runner, collector.NewPlanner(newCatalog()), &out)

	_, err := c.Collect(context.Background(), collector.Options{Dates: []string{"2024-11-02"}, DryRun: true})
	require.NoError(t, err)
	runner.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)

	rendered := out.String()
	assert.Contains(t, rendered, "Collection plan")
	assert.Contains(t, rendered, "team_history:2024-11-02")
	assert.Contains(t, rendered, "lineup:30")
	assert.Contains(t, rendered, "8")
}

func TestCollect_NoDates(t *testing.T) {
	c := collector.NewCollector(new(mockRunner), collector.NewPlanner(newCatalog()), nil)
	_, err := c.Collect(context.Background(), collector.Options{})
	assert.ErrorContains(t, err, "no dates")
}
