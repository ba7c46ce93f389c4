// Package store persists collected records idempotently under their natural keys and
// answers the read queries the collection planner and the exporter need.
package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/tigerroll/matchday/internal/records"
	"github.com/tigerroll/matchday/pkg/batch/adapter/database"
	port "github.com/tigerroll/matchday/pkg/batch/core/application/port"
	model "github.com/tigerroll/matchday/pkg/batch/core/domain/model"
	"github.com/tigerroll/matchday/pkg/batch/core/support/clock"
	tx "github.com/tigerroll/matchday/pkg/batch/core/tx"
	"github.com/tigerroll/matchday/pkg/batch/support/util/exception"
	"github.com/tigerroll/matchday/pkg/batch/support/util/logger"
)

const moduleName = "Store"

// Scraping log statuses.
const (
	LogStatusSuccess = "success"
	LogStatusEmpty   = "empty"
)

var log = logger.For(moduleName)

const (
	missingStatisticsSQL = "SELECT f.* FROM " + records.TableFixtures + " f" +
		" WHERE f.date = ? AND f.status = ?" +
		" AND NOT EXISTS (SELECT 1 FROM " + records.TableMatchStatistics + " s WHERE s.match_id = f.match_id)" +
		" ORDER BY f.match_id"

	missingPlayerStatisticsSQL = "SELECT f.* FROM " + records.TableFixtures + " f" +
		" WHERE f.date = ? AND f.status = ?" +
		" AND NOT EXISTS (SELECT 1 FROM " + records.TablePlayerStatistics + " p WHERE p.match_id = f.match_id)" +
		" ORDER BY f.match_id"
)

// conflict describes the natural key of a table and the columns refreshed on conflict.
type conflict struct {
	keys    []string
	refresh []string
}

var conflicts = map[string]conflict{
	// A fixture collected before kick-off is refreshed with its result on a later run.
	records.TableFixtures:         {keys: []string{"match_id"}, refresh: []string{"status", "home_score", "away_score", "collected_at"}},
	records.TableTeamMatches:      {keys: []string{"team_id", "match_id"}},
	records.TableMatchStatistics:  {keys: []string{"match_id", "period"}},
	records.TablePlayerStatistics: {keys: []string{"match_id", "player_id"}},
}

// Store implements port.DataStore on a named database connection.
type Store struct {
	resolver  database.DBConnectionResolver
	txFactory tx.TransactionManagerFactory
	dbName    string
	clock     clock.Clock
}

// NewStore creates a Store on the connection named dbName.
func NewStore(resolver database.DBConnectionResolver, txFactory tx.TransactionManagerFactory, dbName string, c clock.Clock) *Store {
	if c == nil {
		c = clock.Real()
	}
	return &Store{resolver: resolver, txFactory: txFactory, dbName: dbName, clock: c}
}

func (s *Store) conn(ctx context.Context) (database.DBConnection, error) {
	conn, err := s.resolver.ResolveDBConnection(ctx, s.dbName)
	if err != nil {
		return nil, exception.NewBatchError(moduleName, fmt.Sprintf("failed to resolve DB connection '%s'", s.dbName), err, false, true)
	}
	return conn, nil
}

func (s *Store) wrap(conn database.DBConnection, msg string, err error) error {
	if conn != nil && conn.IsTableNotExistError(err) {
		return exception.NewBatchError(moduleName, msg+": schema is missing, run `matchday migrate`", err, false, false)
	}
	return exception.NewBatchError(moduleName, msg, err, false, true)
}

// Upsert writes every record of the set and one scraping_log row in a single transaction.
// Existing rows are kept (or refreshed, for fixtures), so replaying a set is a no-op.
func (s *Store) Upsert(ctx context.Context, item model.WorkItem, set port.RecordSet) error {
	batches, err := groupByTable(set)
	if err != nil {
		return exception.NewBatchError(moduleName, "item "+item.ID, err, false, false)
	}

	conn, err := s.conn(ctx)
	if err != nil {
		return err
	}

	var inserted int64
	err = tx.Run(ctx, s.txFactory.NewTransactionManager(conn), func(txCtx context.Context) error {
		t, _ := tx.FromContext(txCtx)
		for _, table := range sortedTables(batches) {
			c := conflicts[table]
			rows, err := t.ExecuteUpsert(txCtx, batches[table], table, c.keys, c.refresh)
			if err != nil {
				return fmt.Errorf("upsert into %s: %w", table, err)
			}
			inserted += rows
		}

		status := LogStatusSuccess
		if len(set) == 0 {
			status = LogStatusEmpty
		}
		entry := &records.ScrapingLog{
			ScrapeType:   string(item.Kind),
			ItemID:       item.ID,
			Status:       status,
			RecordsCount: len(set),
			ScrapedAt:    s.clock.Now(),
		}
		if _, err := t.ExecuteUpdate(txCtx, entry, database.OpCreate, records.TableScrapingLog, nil); err != nil {
			return fmt.Errorf("append scraping log: %w", err)
		}
		return nil
	})
	if err != nil {
		return s.wrap(conn, "failed to store records of item "+item.ID, err)
	}
	log.Debugf("%s: stored %d records (%d rows affected).", item.ID, len(set), inserted)
	return nil
}

// groupByTable splits a record set into per-table slices ready for a batch insert.
func groupByTable(set port.RecordSet) (map[string]interface{}, error) {
	var (
		fixtures []records.Fixture
		matches  []records.TeamMatch
		stats    []records.MatchStatistic
		players  []records.PlayerStatistic
	)
	for _, r := range set {
		switch v := r.(type) {
		case records.Fixture:
			fixtures = append(fixtures, v)
		case records.TeamMatch:
			matches = append(matches, v)
		case records.MatchStatistic:
			stats = append(stats, v)
		case records.PlayerStatistic:
			players = append(players, v)
		default:
			return nil, fmt.Errorf("unsupported record type %T", r)
		}
	}

	out := make(map[string]interface{}, 4)
	if len(fixtures) > 0 {
		out[records.TableFixtures] = &fixtures
	}
	if len(matches) > 0 {
		out[records.TableTeamMatches] = &matches
	}
	if len(stats) > 0 {
		out[records.TableMatchStatistics] = &stats
	}
	if len(players) > 0 {
		out[records.TablePlayerStatistics] = &players
	}
	return out, nil
}

func sortedTables(m map[string]interface{}) []string {
	tables := make([]string, 0, len(m))
	for t := range m {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	return tables
}

var _ port.DataStore = (*Store)(nil)
