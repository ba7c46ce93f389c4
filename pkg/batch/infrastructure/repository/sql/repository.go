// Package sql implements the session and ledger repositories on a relational database
// reached through the database adapter.
package sql

import (
	"context"
	"fmt"
	"time"

	"github.com/tigerroll/matchday/pkg/batch/adapter/database"
	coreAdapter "github.com/tigerroll/matchday/pkg/batch/core/adapter"
	model "github.com/tigerroll/matchday/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/matchday/pkg/batch/core/domain/repository"
	tx "github.com/tigerroll/matchday/pkg/batch/core/tx"
	"github.com/tigerroll/matchday/pkg/batch/support/util/exception"
)

const (
	countByStatusSQL = "SELECT status, COUNT(*) AS total FROM " + ledgerTable + " WHERE session_id = ? GROUP BY status"

	completedItemsByScopeSQL = "SELECT DISTINCT l.item_id FROM " + ledgerTable + " l" +
		" JOIN " + sessionTable + " s ON s.id = l.session_id" +
		" WHERE s.scope = ? AND l.status = ?"
)

// SQLRepository implements repository.Repository.
type SQLRepository struct {
	dbResolver coreAdapter.ResourceConnectionResolver
	// TxManager opens the transactions that keep ledger and session counters consistent.
	TxManager tx.TransactionManager
	// dbName is the connection name from the database section (e.g. "ledger").
	dbName string
}

// NewSQLRepository creates a new instance of SQLRepository.
func NewSQLRepository(
	dbResolver coreAdapter.ResourceConnectionResolver,
	txManager tx.TransactionManager,
	dbName string,
) *SQLRepository {
	return &SQLRepository{
		dbResolver: dbResolver,
		TxManager:  txManager,
		dbName:     dbName,
	}
}

func (r *SQLRepository) getDBConnection(ctx context.Context) (database.DBConnection, error) {
	connAsResource, err := r.dbResolver.ResolveConnection(ctx, r.dbName)
	if err != nil {
		return nil, exception.NewBatchError("SQLRepository", fmt.Sprintf("Failed to resolve DB connection '%s'", r.dbName), err, false, true)
	}
	conn, ok := connAsResource.(database.DBConnection)
	if !ok {
		return nil, exception.NewBatchError("SQLRepository", fmt.Sprintf("Resolved connection '%s' is not a database.DBConnection", r.dbName), nil, false, false)
	}
	return conn, nil
}

// getTxExecutor returns the Tx in ctx, or the plain connection when there is none.
func (r *SQLRepository) getTxExecutor(ctx context.Context) (tx.TxExecutor, error) {
	if t, ok := tx.FromContext(ctx); ok {
		return t, nil
	}
	return r.getDBConnection(ctx)
}

// inTx runs fn in the caller's transaction, or in a new one.
func (r *SQLRepository) inTx(ctx context.Context, fn func(ctx context.Context, executor tx.TxExecutor) error) error {
	if t, ok := tx.FromContext(ctx); ok {
		return fn(ctx, t)
	}
	return tx.Run(ctx, r.TxManager, func(txCtx context.Context) error {
		t, _ := tx.FromContext(txCtx)
		return fn(txCtx, t)
	})
}

// wrap builds the BatchError for a failed statement, pointing at migrations when the
// schema is missing.
func (r *SQLRepository) wrap(ctx context.Context, op, msg string, err error) error {
	if conn, connErr := r.getDBConnection(ctx); connErr == nil && conn.IsTableNotExistError(err) {
		return exception.NewBatchError(op, msg+": schema is missing, run `matchday migrate`", err, false, false)
	}
	return exception.NewBatchError(op, msg, err, false, true)
}

// --- SessionRepository implementation ---

func (r *SQLRepository) SaveSession(ctx context.Context, session *model.SessionRecord) error {
	const op = "SQLRepository.SaveSession"
	entity := fromDomainSession(session)

	executor, err := r.getTxExecutor(ctx)
	if err != nil {
		return err
	}
	if _, err := executor.ExecuteUpdate(ctx, entity, database.OpCreate, entity.TableName(), nil); err != nil {
		if conn, connErr := r.getDBConnection(ctx); connErr == nil && conn.IsDuplicateKeyError(err) && session.Status == model.SessionInProgress {
			return exception.NewBatchErrorf(op, "session %s: scope %s", session.ID, session.Scope, repository.ErrActiveSessionExists)
		}
		return r.wrap(ctx, op, fmt.Sprintf("failed to save session (ID: %s)", session.ID), err)
	}
	return nil
}

func (r *SQLRepository) UpdateSession(ctx context.Context, session *model.SessionRecord) error {
	const op = "SQLRepository.UpdateSession"

	executor, err := r.getTxExecutor(ctx)
	if err != nil {
		return err
	}

	originalVersion := session.Version
	rowsAffected, err := executor.ExecuteUpdateColumns(ctx, sessionTable,
		map[string]interface{}{"id": session.ID, "version": originalVersion},
		map[string]interface{}{
			"status":          string(session.Status),
			"total_items":     session.TotalItems,
			"completed_items": session.CompletedItems,
			"completion_time": session.CompletionTime,
			"notes":           session.Notes,
			"last_updated":    session.LastUpdated,
			"version":         originalVersion + 1,
		},
	)
	if err != nil {
		return r.wrap(ctx, op, fmt.Sprintf("failed to update session (ID: %s)", session.ID), err)
	}
	if rowsAffected == 0 {
		return exception.NewOptimisticLockingFailureException("repository", fmt.Sprintf("session (ID: %s) with version %d not found for update", session.ID, originalVersion), nil)
	}
	session.Version = originalVersion + 1
	return nil
}

func (r *SQLRepository) FindSessionByID(ctx context.Context, sessionID string) (*model.SessionRecord, error) {
	const op = "SQLRepository.FindSessionByID"
	return r.findOneSession(ctx, op, map[string]interface{}{"id": sessionID})
}

func (r *SQLRepository) FindActiveSession(ctx context.Context, scope string) (*model.SessionRecord, error) {
	const op = "SQLRepository.FindActiveSession"
	return r.findOneSession(ctx, op, map[string]interface{}{"scope": scope, "status": string(model.SessionInProgress)})
}

func (r *SQLRepository) findOneSession(ctx context.Context, op string, query map[string]interface{}) (*model.SessionRecord, error) {
	executor, err := r.getTxExecutor(ctx)
	if err != nil {
		return nil, err
	}
	var entities []CollectionSessionEntity
	if err := executor.ExecuteQueryAdvanced(ctx, &entities, query, "start_time DESC", 1); err != nil {
		return nil, r.wrap(ctx, op, fmt.Sprintf("failed to find session %v", query), err)
	}
	if len(entities) == 0 {
		return nil, repository.ErrSessionNotFound
	}
	return toDomainSession(&entities[0]), nil
}

func (r *SQLRepository) FindSessionsByScope(ctx context.Context, scope string) ([]*model.SessionRecord, error) {
	const op = "SQLRepository.FindSessionsByScope"
	executor, err := r.getTxExecutor(ctx)
	if err != nil {
		return nil, err
	}
	var entities []CollectionSessionEntity
	if err := executor.ExecuteQueryAdvanced(ctx, &entities, map[string]interface{}{"scope": scope}, "start_time DESC", 0); err != nil {
		return nil, r.wrap(ctx, op, fmt.Sprintf("failed to find sessions of scope %s", scope), err)
	}
	return toDomainSessions(entities), nil
}

func (r *SQLRepository) ListSessions(ctx context.Context, limit int) ([]*model.SessionRecord, error) {
	const op = "SQLRepository.ListSessions"
	executor, err := r.getTxExecutor(ctx)
	if err != nil {
		return nil, err
	}
	var entities []CollectionSessionEntity
	if err := executor.ExecuteQueryAdvanced(ctx, &entities, nil, "start_time DESC", limit); err != nil {
		return nil, r.wrap(ctx, op, "failed to list sessions", err)
	}
	return toDomainSessions(entities), nil
}

// --- LedgerRepository implementation ---

func (r *SQLRepository) EnqueueEntries(ctx context.Context, entries []*model.LedgerEntry) error {
	const op = "SQLRepository.EnqueueEntries"
	if len(entries) == 0 {
		return nil
	}
	entities := make([]*LedgerEntryEntity, 0, len(entries))
	for _, e := range entries {
		entities = append(entities, fromDomainEntry(e))
	}

	executor, err := r.getTxExecutor(ctx)
	if err != nil {
		return err
	}
	if _, err := executor.ExecuteUpsert(ctx, entities, ledgerTable, []string{"session_id", "item_id"}, nil); err != nil {
		return r.wrap(ctx, op, fmt.Sprintf("failed to enqueue %d entries for session %s", len(entries), entries[0].SessionID), err)
	}
	return nil
}

func (r *SQLRepository) FindEntries(ctx context.Context, sessionID string) ([]*model.LedgerEntry, error) {
	const op = "SQLRepository.FindEntries"
	executor, err := r.getTxExecutor(ctx)
	if err != nil {
		return nil, err
	}
	var entities []LedgerEntryEntity
	if err := executor.ExecuteQueryAdvanced(ctx, &entities, map[string]interface{}{"session_id": sessionID}, "sequence ASC", 0); err != nil {
		return nil, r.wrap(ctx, op, fmt.Sprintf("failed to find entries of session %s", sessionID), err)
	}
	entries := make([]*model.LedgerEntry, 0, len(entities))
	for i := range entities {
		entries = append(entries, toDomainEntry(&entities[i]))
	}
	return entries, nil
}

// findEntry loads one entry for update inside the caller's transaction.
func (r *SQLRepository) findEntry(ctx context.Context, executor tx.TxExecutor, op, sessionID, itemID string) (*LedgerEntryEntity, error) {
	var entities []LedgerEntryEntity
	if err := executor.ExecuteQueryAdvanced(ctx, &entities, map[string]interface{}{"session_id": sessionID, "item_id": itemID}, "", 1); err != nil {
		return nil, r.wrap(ctx, op, fmt.Sprintf("failed to load entry %s/%s", sessionID, itemID), err)
	}
	if len(entities) == 0 {
		return nil, exception.NewBatchErrorf(op, "entry %s/%s not found", sessionID, itemID, repository.ErrLedgerEntryNotFound)
	}
	return &entities[0], nil
}

// updateEntry writes values guarded by the entry's version.
func (r *SQLRepository) updateEntry(ctx context.Context, executor tx.TxExecutor, op string, entity *LedgerEntryEntity, values map[string]interface{}) error {
	values["version"] = entity.Version + 1
	rowsAffected, err := executor.ExecuteUpdateColumns(ctx, ledgerTable,
		map[string]interface{}{"session_id": entity.SessionID, "item_id": entity.ItemID, "version": entity.Version},
		values,
	)
	if err != nil {
		return r.wrap(ctx, op, fmt.Sprintf("failed to update entry %s/%s", entity.SessionID, entity.ItemID), err)
	}
	if rowsAffected == 0 {
		return exception.NewOptimisticLockingFailureException("repository", fmt.Sprintf("entry %s/%s with version %d not found for update", entity.SessionID, entity.ItemID, entity.Version), nil)
	}
	return nil
}

func (r *SQLRepository) MarkEntryCompleted(ctx context.Context, sessionID, itemID string, at time.Time) (bool, error) {
	const op = "SQLRepository.MarkEntryCompleted"
	changed := false
	err := r.inTx(ctx, func(ctx context.Context, executor tx.TxExecutor) error {
		entity, err := r.findEntry(ctx, executor, op, sessionID, itemID)
		if err != nil {
			return err
		}
		if entity.Status == string(model.EntryCompleted) {
			return nil
		}
		if err := r.updateEntry(ctx, executor, op, entity, map[string]interface{}{
			"status":          string(model.EntryCompleted),
			"last_attempt_at": at,
			"failure_reason":  "",
		}); err != nil {
			return err
		}

		completed, err := executor.Count(ctx, &LedgerEntryEntity{}, map[string]interface{}{"session_id": sessionID, "status": string(model.EntryCompleted)})
		if err != nil {
			return r.wrap(ctx, op, fmt.Sprintf("failed to count completed entries of session %s", sessionID), err)
		}
		if _, err := executor.ExecuteUpdateColumns(ctx, sessionTable,
			map[string]interface{}{"id": sessionID},
			map[string]interface{}{"completed_items": completed, "last_updated": at},
		); err != nil {
			return r.wrap(ctx, op, fmt.Sprintf("failed to update completed counter of session %s", sessionID), err)
		}
		changed = true
		return nil
	})
	return changed, err
}

func (r *SQLRepository) MarkEntryFailed(ctx context.Context, sessionID, itemID, reason string, at time.Time) (bool, error) {
	const op = "SQLRepository.MarkEntryFailed"
	changed := false
	err := r.inTx(ctx, func(ctx context.Context, executor tx.TxExecutor) error {
		entity, err := r.findEntry(ctx, executor, op, sessionID, itemID)
		if err != nil {
			return err
		}
		if entity.Status == string(model.EntryCompleted) {
			return nil
		}
		if err := r.updateEntry(ctx, executor, op, entity, map[string]interface{}{
			"status":          string(model.EntryFailed),
			"failure_count":   entity.FailureCount + 1,
			"failure_reason":  reason,
			"last_attempt_at": at,
		}); err != nil {
			return err
		}
		changed = true
		return nil
	})
	return changed, err
}

func (r *SQLRepository) CountEntries(ctx context.Context, sessionID string) (map[model.EntryStatus]int, error) {
	const op = "SQLRepository.CountEntries"
	executor, err := r.getTxExecutor(ctx)
	if err != nil {
		return nil, err
	}
	var rows []statusCount
	if err := executor.ExecuteRaw(ctx, &rows, countByStatusSQL, sessionID); err != nil {
		return nil, r.wrap(ctx, op, fmt.Sprintf("failed to count entries of session %s", sessionID), err)
	}
	counts := map[model.EntryStatus]int{
		model.EntryPending:   0,
		model.EntryCompleted: 0,
		model.EntryFailed:    0,
	}
	for _, row := range rows {
		counts[model.EntryStatus(row.Status)] = row.Total
	}
	return counts, nil
}

func (r *SQLRepository) FindCompletedItemIDs(ctx context.Context, scope string) (map[string]bool, error) {
	const op = "SQLRepository.FindCompletedItemIDs"
	executor, err := r.getTxExecutor(ctx)
	if err != nil {
		return nil, err
	}
	var ids []string
	if err := executor.ExecuteRaw(ctx, &ids, completedItemsByScopeSQL, scope, string(model.EntryCompleted)); err != nil {
		return nil, r.wrap(ctx, op, fmt.Sprintf("failed to find completed items of scope %s", scope), err)
	}
	completed := make(map[string]bool, len(ids))
	for _, id := range ids {
		completed[id] = true
	}
	return completed, nil
}

// Close implements repository.Repository. Connections belong to their DBProvider.
func (r *SQLRepository) Close() error {
	return nil
}

var _ repository.Repository = (*SQLRepository)(nil)
