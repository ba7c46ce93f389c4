// Package collector plans the staged collection of a date range and drives every stage
// through the session runner.
package collector

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/tigerroll/matchday/internal/records"
	"github.com/tigerroll/matchday/pkg/batch/core/application/usecase"
	model "github.com/tigerroll/matchday/pkg/batch/core/domain/model"
	"github.com/tigerroll/matchday/pkg/batch/support/util/exception"
)

// DateLayout is the layout of dates in scopes and item params.
const DateLayout = "2006-01-02"

// Catalog answers the questions the planner asks about already collected data.
type Catalog interface {
	TeamIDs(ctx context.Context, date string) ([]int64, error)
	FinishedWithoutStatistics(ctx context.Context, date string) ([]records.Fixture, error)
	FinishedWithoutPlayerStatistics(ctx context.Context, date string) ([]records.Fixture, error)
}

// Planner builds the work list of a stage from the catalog.
type Planner struct {
	catalog Catalog
}

// NewPlanner creates a Planner.
func NewPlanner(catalog Catalog) *Planner {
	return &Planner{catalog: catalog}
}

// Scope returns the session scope of a stage on date.
func Scope(kind model.ItemKind, date string) string {
	return string(kind) + ":" + date
}

// Plan returns the request of one stage on date. Stages after the first read what
// earlier stages stored, so their lists grow as collection progresses.
func (p *Planner) Plan(ctx context.Context, kind model.ItemKind, date string) (usecase.Request, error) {
	req := usecase.Request{Kind: kind, Scope: Scope(kind, date)}

	switch kind {
	case model.KindFixturesByDate:
		req.Items = []model.WorkItem{
			model.NewWorkItem(kind, "date", date, model.Params{"date": date}),
		}

	case model.KindTeamHistory:
		ids, err := p.catalog.TeamIDs(ctx, date)
		if err != nil {
			return req, err
		}
		for _, id := range ids {
			req.Items = append(req.Items, model.NewWorkItem(kind, "team", id, model.Params{"team_id": id}))
		}

	case model.KindMatchStats:
		fixtures, err := p.catalog.FinishedWithoutStatistics(ctx, date)
		if err != nil {
			return req, err
		}
		for _, f := range sortFixtures(fixtures) {
			req.Items = append(req.Items, model.NewWorkItem(kind, "match", f.MatchID, model.Params{"event_id": f.MatchID}))
		}

	case model.KindPlayerStats:
		fixtures, err := p.catalog.FinishedWithoutPlayerStatistics(ctx, date)
		if err != nil {
			return req, err
		}
		for _, f := range sortFixtures(fixtures) {
			req.Items = append(req.Items, model.NewWorkItem(kind, "lineup", f.MatchID, model.Params{
				"event_id":     f.MatchID,
				"home_team_id": f.HomeTeamID,
				"home_team":    f.HomeTeam,
				"away_team_id": f.AwayTeamID,
				"away_team":    f.AwayTeam,
			}))
		}

	default:
		return req, exception.NewBatchErrorf("Planner", "unknown stage %q", kind)
	}
	return req, nil
}

func sortFixtures(fixtures []records.Fixture) []records.Fixture {
	sorted := append([]records.Fixture(nil), fixtures...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].MatchID < sorted[j].MatchID })
	return sorted
}

// DatesBetween returns every date from from to to, inclusive.
func DatesBetween(from, to string) ([]string, error) {
	start, err := time.Parse(DateLayout, from)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", from, err)
	}
	end, err := time.Parse(DateLayout, to)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", to, err)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("date range %s..%s is empty", from, to)
	}
	var dates []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format(DateLayout))
	}
	return dates, nil
}
