package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/matchday/internal/app"
	model "github.com/tigerroll/matchday/pkg/batch/core/domain/model"
)

func TestResolveDates(t *testing.T) {
	dates, err := resolveDates([]string{"2024-11-03", "2024-11-02", "2024-11-03"}, "", "", "2024-12-01")
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-11-02", "2024-11-03"}, dates)

	dates, err = resolveDates(nil, "2024-11-29", "", "2024-12-01")
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-11-29", "2024-11-30", "2024-12-01"}, dates)

	for name, tc := range map[string]struct {
		args     []string
		from, to string
		want     string
	}{
		"both":        {args: []string{"2024-11-02"}, from: "2024-11-01", want: "not both"},
		"to only":     {to: "2024-11-02", want: "--to needs --from"},
		"nothing":     {want: "at least one date"},
		"bad date":    {args: []string{"02/11/2024"}, want: "want YYYY-MM-DD"},
		"empty range": {from: "2024-11-03", to: "2024-11-01", want: "is empty"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := resolveDates(tc.args, tc.from, tc.to, "2024-12-01")
			assert.ErrorContains(t, err, tc.want)
		})
	}
}

func TestParseStages(t *testing.T) {
	kinds, err := parseStages([]string{"match-stats", "fixtures_by_date"})
	require.NoError(t, err)
	assert.Equal(t, []model.ItemKind{model.KindMatchStats, model.KindFixturesByDate}, kinds)

	_, err = parseStages([]string{"odds"})
	assert.Error(t, err)
}

func TestFailedSessions(t *testing.T) {
	ok := model.SessionSummary{Snapshot: model.Snapshot{Status: model.SessionCompleted}}
	bad := model.SessionSummary{Snapshot: model.Snapshot{Status: model.SessionFailed}}
	assert.NoError(t, failedSessions([]model.SessionSummary{ok}))
	assert.EqualError(t, failedSessions([]model.SessionSummary{ok, bad}), "1 of 2 sessions ended failed")
}

func execute(t *testing.T, b app.Bootstrap, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := Execute(context.Background(), b, args, &out)
	return out.String(), err
}

func TestCommands(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MATCHDAY_DATABASE_METADATA_TYPE", "sqlite")
	t.Setenv("MATCHDAY_DATABASE_METADATA_DATABASE", filepath.Join(dir, "cli.db"))
	t.Setenv("MATCHDAY_EXPORT_BASE_DIR", filepath.Join(dir, "exports"))
	b := app.Bootstrap{
		EnvFilePath:    filepath.Join(dir, "missing.env"),
		EmbeddedConfig: []byte("matchday:\n  system:\n    logging:\n      level: ERROR\n"),
		DBAdapters:     "sqlite",
	}

	out, err := execute(t, b, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "Migrations up done.")

	out, err = execute(t, b, "collect", "2024-11-02", "--dry-run", "--stage", "fixtures_by_date")
	require.NoError(t, err)
	assert.Contains(t, out, "date:2024-11-02")

	out, err = execute(t, b, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "No sessions.")

	out, err = execute(t, b, "status", "--records")
	require.NoError(t, err)
	assert.Contains(t, out, "Stored records")
	assert.Contains(t, out, "scraping_log")

	_, err = execute(t, b, "sessions", "abort", "no-such-session", "--reason", "test")
	assert.Error(t, err)

	out, err = execute(t, b, "export", "--format", "csv", "--table", "fixtures")
	require.NoError(t, err)
	assert.Contains(t, out, "fixtures/dt=")

	_, err = execute(t, b, "export", "--format", "xlsx")
	assert.ErrorContains(t, err, "unknown export format")

	_, err = execute(t, b, "migrate", "sideways")
	assert.Error(t, err)
}
