// Package repository declares the persistence ports of the collector: session records and
// the per-item progress ledger.
package repository

import (
	"context"
	"errors"
	"time"

	model "github.com/tigerroll/matchday/pkg/batch/core/domain/model"
	"github.com/tigerroll/matchday/pkg/batch/support/util/exception"
)

var (
	// ErrSessionNotFound is returned when no session matches the lookup.
	ErrSessionNotFound = errors.New("session not found")
	// ErrLedgerEntryNotFound is returned when an item is not enqueued in the session.
	ErrLedgerEntryNotFound = errors.New("ledger entry not found")
	// ErrActiveSessionExists is returned when a second in_progress session is saved for a scope.
	ErrActiveSessionExists = errors.New("scope already has an in_progress session")
)

// SessionRepository persists SessionRecords.
type SessionRepository interface {
	// SaveSession inserts a new session. It fails with ErrActiveSessionExists when the
	// session is in_progress and its scope already has an in_progress session.
	SaveSession(ctx context.Context, session *model.SessionRecord) error
	// UpdateSession writes status, counters, notes and completion time,
	// guarded by the record's Version.
	UpdateSession(ctx context.Context, session *model.SessionRecord) error
	// FindSessionByID returns ErrSessionNotFound when absent.
	FindSessionByID(ctx context.Context, sessionID string) (*model.SessionRecord, error)
	// FindActiveSession returns the in_progress session for scope, or ErrSessionNotFound.
	FindActiveSession(ctx context.Context, scope string) (*model.SessionRecord, error)
	// FindSessionsByScope returns every session of scope, newest first.
	FindSessionsByScope(ctx context.Context, scope string) ([]*model.SessionRecord, error)
	// ListSessions returns the most recent sessions, newest first.
	ListSessions(ctx context.Context, limit int) ([]*model.SessionRecord, error)
}

// LedgerRepository persists LedgerEntries. Every method is durable on return.
type LedgerRepository interface {
	// EnqueueEntries inserts entries, leaving existing (session_id, item_id) rows untouched.
	EnqueueEntries(ctx context.Context, entries []*model.LedgerEntry) error
	// FindEntries returns the session's entries ordered by Sequence.
	FindEntries(ctx context.Context, sessionID string) ([]*model.LedgerEntry, error)
	// MarkEntryCompleted flips a non-completed entry to completed and sets the session's
	// completed counter to the number of completed entries, atomically.
	// It reports false when the entry was already completed.
	MarkEntryCompleted(ctx context.Context, sessionID, itemID string, at time.Time) (bool, error)
	// MarkEntryFailed flips a non-completed entry to failed, incrementing its failure count.
	// It reports false when the entry was already completed.
	MarkEntryFailed(ctx context.Context, sessionID, itemID, reason string, at time.Time) (bool, error)
	// CountEntries returns the number of entries per status.
	CountEntries(ctx context.Context, sessionID string) (map[model.EntryStatus]int, error)
	// FindCompletedItemIDs returns the items completed by any session of scope.
	FindCompletedItemIDs(ctx context.Context, scope string) (map[string]bool, error)
}

// Repository combines both ports over one store.
type Repository interface {
	SessionRepository
	LedgerRepository

	// Close releases resources such as database connections.
	Close() error
}

func init() {
	exception.RegisterErrorType("repository.ErrSessionNotFound", ErrSessionNotFound)
	exception.RegisterErrorType("repository.ErrLedgerEntryNotFound", ErrLedgerEntryNotFound)
	exception.RegisterErrorType("repository.ErrActiveSessionExists", ErrActiveSessionExists)
}
