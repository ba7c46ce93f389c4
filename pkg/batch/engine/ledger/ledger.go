// Package ledger keeps the durable per-item progress of collection sessions and decides
// what a resumed session still has to do.
package ledger

import (
	"context"
	"errors"

	model "github.com/tigerroll/matchday/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/matchday/pkg/batch/core/domain/repository"
	"github.com/tigerroll/matchday/pkg/batch/core/support/clock"
	tx "github.com/tigerroll/matchday/pkg/batch/core/tx"
	"github.com/tigerroll/matchday/pkg/batch/support/util/exception"
	"github.com/tigerroll/matchday/pkg/batch/support/util/logger"
)

var log = logger.For("ProgressLedger")

// Opened is the result of opening a scope.
type Opened struct {
	Session *model.SessionRecord
	// Resumable lists the items still to attempt, in scope order.
	Resumable []model.WorkItem
	// Resumed is set when an in_progress session of the scope was picked up.
	Resumed bool
}

// ProgressLedger is the session-facing view of the ledger repository.
// Every mutation is written through before it returns.
type ProgressLedger struct {
	repo     repository.Repository
	txm      tx.TransactionManager
	clock    clock.Clock
	retryCap int
}

// Option configures a ProgressLedger.
type Option func(*ProgressLedger)

// WithClock replaces the wall clock.
func WithClock(c clock.Clock) Option {
	return func(l *ProgressLedger) { l.clock = c }
}

// WithTransactionManager makes Open atomic: the session and its entries are written in
// one transaction of m. The repository must run its statements in the Tx found in ctx.
func WithTransactionManager(m tx.TransactionManager) Option {
	return func(l *ProgressLedger) { l.txm = m }
}

// NewProgressLedger creates a ledger. Failed items are retried on resume until they have
// failed retryCap times.
func NewProgressLedger(repo repository.Repository, retryCap int, opts ...Option) *ProgressLedger {
	l := &ProgressLedger{repo: repo, clock: clock.Real(), retryCap: retryCap}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Open returns the session for scope and the items it still has to attempt.
//
// An in_progress session of the scope is resumed: items of the scope missing from its
// ledger are appended, and the resumable list is every pending entry plus failed entries
// below the retry cap. Otherwise a new session is created, and items completed by earlier
// sessions of the scope are carried over as completed. When another collector creates the
// scope's session first, that session is resumed instead.
func (l *ProgressLedger) Open(ctx context.Context, kind model.ItemKind, scope string, items []model.WorkItem) (*Opened, error) {
	const op = "ProgressLedger.Open"

	var opened *Opened
	err := l.inTx(ctx, func(ctx context.Context) (err error) {
		opened, err = l.open(ctx, kind, scope, items)
		return err
	})
	if errors.Is(err, repository.ErrActiveSessionExists) {
		log.Warnf("Scope %s was opened by another collector, resuming its session.", scope)
		err = l.inTx(ctx, func(ctx context.Context) error {
			active, err := l.repo.FindActiveSession(ctx, scope)
			if err != nil {
				return exception.NewBatchErrorf(op, "failed to look up active session of scope %s", scope, err)
			}
			opened, err = l.resume(ctx, active, items)
			return err
		})
	}
	if err != nil {
		return nil, err
	}
	return opened, nil
}

func (l *ProgressLedger) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if l.txm == nil {
		return fn(ctx)
	}
	return tx.Run(ctx, l.txm, fn)
}

func (l *ProgressLedger) open(ctx context.Context, kind model.ItemKind, scope string, items []model.WorkItem) (*Opened, error) {
	const op = "ProgressLedger.Open"

	active, err := l.repo.FindActiveSession(ctx, scope)
	switch {
	case err == nil:
		return l.resume(ctx, active, items)
	case errors.Is(err, repository.ErrSessionNotFound):
	default:
		return nil, exception.NewBatchErrorf(op, "failed to look up active session of scope %s", scope, err)
	}

	prior, err := l.repo.FindCompletedItemIDs(ctx, scope)
	if err != nil {
		return nil, exception.NewBatchErrorf(op, "failed to load completed items of scope %s", scope, err)
	}

	now := l.clock.Now()
	session := model.NewSessionRecord(kind, scope, len(items), now)
	entries := make([]*model.LedgerEntry, 0, len(items))
	resumable := make([]model.WorkItem, 0, len(items))
	for seq, item := range items {
		entry := model.NewLedgerEntry(session.ID, seq, item)
		if prior[item.ID] {
			entry.Status = model.EntryCompleted
			session.CompletedItems++
		} else {
			resumable = append(resumable, item)
		}
		entries = append(entries, entry)
	}

	if err := l.repo.SaveSession(ctx, session); err != nil {
		return nil, exception.NewBatchErrorf(op, "failed to create session for scope %s", scope, err)
	}
	if err := l.repo.EnqueueEntries(ctx, entries); err != nil {
		return nil, exception.NewBatchErrorf(op, "failed to enqueue items of session %s", session.ID, err)
	}
	log.Infof("Opened session %s for %s: %d items, %d already completed by earlier sessions.", session.ID, scope, len(items), session.CompletedItems)
	return &Opened{Session: session, Resumable: resumable}, nil
}

func (l *ProgressLedger) resume(ctx context.Context, session *model.SessionRecord, items []model.WorkItem) (*Opened, error) {
	const op = "ProgressLedger.Open"

	existing, err := l.repo.FindEntries(ctx, session.ID)
	if err != nil {
		return nil, exception.NewBatchErrorf(op, "failed to load ledger of session %s", session.ID, err)
	}
	known := make(map[string]bool, len(existing))
	next := 0
	for _, e := range existing {
		known[e.ItemID] = true
		if e.Sequence >= next {
			next = e.Sequence + 1
		}
	}

	var missing []*model.LedgerEntry
	for _, item := range items {
		if !known[item.ID] {
			missing = append(missing, model.NewLedgerEntry(session.ID, next, item))
			known[item.ID] = true
			next++
		}
	}
	if len(missing) > 0 {
		prior, err := l.repo.FindCompletedItemIDs(ctx, session.Scope)
		if err != nil {
			return nil, exception.NewBatchErrorf(op, "failed to load completed items of scope %s", session.Scope, err)
		}
		for _, e := range missing {
			if prior[e.ItemID] {
				e.Status = model.EntryCompleted
			}
		}
		if err := l.repo.EnqueueEntries(ctx, missing); err != nil {
			return nil, exception.NewBatchErrorf(op, "failed to enqueue new items of session %s", session.ID, err)
		}
		existing = append(existing, missing...)
	}

	// The stored counter may be ahead of the ledger when an earlier open was cut short.
	counts, err := l.repo.CountEntries(ctx, session.ID)
	if err != nil {
		return nil, exception.NewBatchErrorf(op, "failed to count entries of session %s", session.ID, err)
	}
	if session.TotalItems != len(existing) || session.CompletedItems != counts[model.EntryCompleted] {
		session.TotalItems = len(existing)
		session.CompletedItems = counts[model.EntryCompleted]
		session.LastUpdated = l.clock.Now()
		if err := l.repo.UpdateSession(ctx, session); err != nil {
			return nil, exception.NewBatchErrorf(op, "failed to update counters of session %s", session.ID, err)
		}
	}

	resumable := make([]model.WorkItem, 0, len(existing))
	for _, e := range existing {
		if e.IsResumable(l.retryCap) {
			resumable = append(resumable, e.WorkItem())
		}
	}
	log.Infof("Resuming session %s for %s: %d of %d items left.", session.ID, session.Scope, len(resumable), len(existing))
	return &Opened{Session: session, Resumable: resumable, Resumed: true}, nil
}

// MarkCompleted records a confirmed store write. It reports false when the item was
// already completed.
func (l *ProgressLedger) MarkCompleted(ctx context.Context, sessionID, itemID string) (bool, error) {
	return l.repo.MarkEntryCompleted(ctx, sessionID, itemID, l.clock.Now())
}

// MarkFailed records an item that exhausted its retry budget.
func (l *ProgressLedger) MarkFailed(ctx context.Context, sessionID, itemID, reason string) (bool, error) {
	return l.repo.MarkEntryFailed(ctx, sessionID, itemID, reason, l.clock.Now())
}

// Counts returns the per-status entry counts of a session.
func (l *ProgressLedger) Counts(ctx context.Context, sessionID string) (map[model.EntryStatus]int, error) {
	return l.repo.CountEntries(ctx, sessionID)
}

// Snapshot returns the progress view of a session.
func (l *ProgressLedger) Snapshot(ctx context.Context, sessionID string) (model.Snapshot, error) {
	session, err := l.repo.FindSessionByID(ctx, sessionID)
	if err != nil {
		return model.Snapshot{}, err
	}
	counts, err := l.repo.CountEntries(ctx, sessionID)
	if err != nil {
		return model.Snapshot{}, err
	}
	return model.NewSnapshot(session, counts, l.clock.Now()), nil
}

// Finalize moves session into a terminal status with counts taken from the ledger.
func (l *ProgressLedger) Finalize(ctx context.Context, session *model.SessionRecord, status model.SessionStatus, notes string) error {
	const op = "ProgressLedger.Finalize"

	counts, err := l.repo.CountEntries(ctx, session.ID)
	if err != nil {
		return exception.NewBatchErrorf(op, "failed to count entries of session %s", session.ID, err)
	}
	if err := session.Finalize(status, counts[model.EntryCompleted], notes, l.clock.Now()); err != nil {
		return err
	}
	if err := l.repo.UpdateSession(ctx, session); err != nil {
		return exception.NewBatchErrorf(op, "failed to finalize session %s", session.ID, err)
	}
	return nil
}

// Session reloads a session record.
func (l *ProgressLedger) Session(ctx context.Context, sessionID string) (*model.SessionRecord, error) {
	return l.repo.FindSessionByID(ctx, sessionID)
}
