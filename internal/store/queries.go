package store

import (
	"context"
	"sort"

	"github.com/tigerroll/matchday/internal/records"
)

// Fixtures returns the fixtures of date ordered by match id.
func (s *Store) Fixtures(ctx context.Context, date string) ([]records.Fixture, error) {
	conn, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	var out []records.Fixture
	if err := conn.ExecuteQueryAdvanced(ctx, &out, map[string]interface{}{"date": date}, "match_id", 0); err != nil {
		return nil, s.wrap(conn, "failed to load fixtures of "+date, err)
	}
	return out, nil
}

// TeamIDs returns the distinct ids of the teams playing on date, ascending.
func (s *Store) TeamIDs(ctx context.Context, date string) ([]int64, error) {
	fixtures, err := s.Fixtures(ctx, date)
	if err != nil {
		return nil, err
	}
	seen := make(map[int64]struct{}, 2*len(fixtures))
	ids := make([]int64, 0, 2*len(fixtures))
	for _, f := range fixtures {
		for _, id := range []int64{f.HomeTeamID, f.AwayTeamID} {
			if _, ok := seen[id]; ok || id == 0 {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// FinishedWithoutStatistics returns the finished fixtures of date that have no match statistics yet.
func (s *Store) FinishedWithoutStatistics(ctx context.Context, date string) ([]records.Fixture, error) {
	return s.rawFixtures(ctx, missingStatisticsSQL, date)
}

// FinishedWithoutPlayerStatistics returns the finished fixtures of date that have no player statistics yet.
func (s *Store) FinishedWithoutPlayerStatistics(ctx context.Context, date string) ([]records.Fixture, error) {
	return s.rawFixtures(ctx, missingPlayerStatisticsSQL, date)
}

func (s *Store) rawFixtures(ctx context.Context, query, date string) ([]records.Fixture, error) {
	conn, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	var out []records.Fixture
	if err := conn.ExecuteRaw(ctx, &out, query, date, records.StatusFinished); err != nil {
		return nil, s.wrap(conn, "failed to load finished fixtures of "+date, err)
	}
	return out, nil
}

// TableCounts returns the row count of every record table.
func (s *Store) TableCounts(ctx context.Context) (map[string]int64, error) {
	conn, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, 5)
	for table, model := range map[string]interface{}{
		records.TableFixtures:         &records.Fixture{},
		records.TableTeamMatches:      &records.TeamMatch{},
		records.TableMatchStatistics:  &records.MatchStatistic{},
		records.TablePlayerStatistics: &records.PlayerStatistic{},
		records.TableScrapingLog:      &records.ScrapingLog{},
	} {
		n, err := conn.Count(ctx, model, nil)
		if err != nil {
			return nil, s.wrap(conn, "failed to count "+table, err)
		}
		counts[table] = n
	}
	return counts, nil
}

// All loads every row of T's table ordered by orderBy.
func All[T any](ctx context.Context, s *Store, orderBy string) ([]T, error) {
	conn, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	var out []T
	if err := conn.ExecuteQueryAdvanced(ctx, &out, nil, orderBy, 0); err != nil {
		return nil, s.wrap(conn, "failed to load rows", err)
	}
	return out, nil
}
