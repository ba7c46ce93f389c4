// Package inmemory provides an in-memory implementation of repository.Repository.
// It keeps sessions and ledger entries in maps, suitable for tests and dry runs where
// nothing has to survive the process.
package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tigerroll/matchday/pkg/batch/core/domain/model"
	"github.com/tigerroll/matchday/pkg/batch/core/domain/repository"
	"github.com/tigerroll/matchday/pkg/batch/support/util/exception"
)

type entryKey struct {
	sessionID string
	itemID    string
}

// InMemoryRepository is an in-memory implementation of repository.Repository.
// Stored values are copies; callers never share memory with the repository.
type InMemoryRepository struct {
	sessions map[string]*model.SessionRecord
	entries  map[entryKey]*model.LedgerEntry
	bySess   map[string][]string
	mu       sync.RWMutex
}

// NewInMemoryRepository creates an empty repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		sessions: make(map[string]*model.SessionRecord),
		entries:  make(map[entryKey]*model.LedgerEntry),
		bySess:   make(map[string][]string),
	}
}

func copySession(s *model.SessionRecord) *model.SessionRecord {
	c := *s
	if s.CompletionTime != nil {
		t := *s.CompletionTime
		c.CompletionTime = &t
	}
	return &c
}

func copyEntry(e *model.LedgerEntry) *model.LedgerEntry {
	c := *e
	if e.LastAttemptAt != nil {
		t := *e.LastAttemptAt
		c.LastAttemptAt = &t
	}
	return &c
}

// SaveSession inserts a session. It returns an error if the ID already exists or the scope
// already has an in_progress session.
func (r *InMemoryRepository) SaveSession(ctx context.Context, session *model.SessionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[session.ID]; exists {
		return fmt.Errorf("session with ID %s already exists", session.ID)
	}
	if session.Status == model.SessionInProgress {
		for _, s := range r.sessions {
			if s.Scope == session.Scope && s.Status == model.SessionInProgress {
				return exception.NewBatchErrorf("repository", "session %s: scope %s", session.ID, session.Scope, repository.ErrActiveSessionExists)
			}
		}
	}
	r.sessions[session.ID] = copySession(session)
	return nil
}

// UpdateSession replaces a session when its version matches the stored one.
func (r *InMemoryRepository) UpdateSession(ctx context.Context, session *model.SessionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.sessions[session.ID]
	if !ok || stored.Version != session.Version {
		return exception.NewOptimisticLockingFailureException("repository", fmt.Sprintf("session (ID: %s) with version %d not found for update", session.ID, session.Version), nil)
	}
	session.Version++
	r.sessions[session.ID] = copySession(session)
	return nil
}

func (r *InMemoryRepository) FindSessionByID(ctx context.Context, sessionID string) (*model.SessionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, repository.ErrSessionNotFound
	}
	return copySession(s), nil
}

func (r *InMemoryRepository) FindActiveSession(ctx context.Context, scope string) (*model.SessionRecord, error) {
	active := r.sorted(func(s *model.SessionRecord) bool {
		return s.Scope == scope && s.Status == model.SessionInProgress
	})
	if len(active) == 0 {
		return nil, repository.ErrSessionNotFound
	}
	return active[0], nil
}

func (r *InMemoryRepository) FindSessionsByScope(ctx context.Context, scope string) ([]*model.SessionRecord, error) {
	return r.sorted(func(s *model.SessionRecord) bool { return s.Scope == scope }), nil
}

func (r *InMemoryRepository) ListSessions(ctx context.Context, limit int) ([]*model.SessionRecord, error) {
	all := r.sorted(func(*model.SessionRecord) bool { return true })
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// sorted returns copies of matching sessions, newest first.
func (r *InMemoryRepository) sorted(match func(*model.SessionRecord) bool) []*model.SessionRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*model.SessionRecord, 0)
	for _, s := range r.sessions {
		if match(s) {
			result = append(result, copySession(s))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].StartTime.Equal(result[j].StartTime) {
			return result[i].ID > result[j].ID
		}
		return result[i].StartTime.After(result[j].StartTime)
	})
	return result
}

// EnqueueEntries inserts entries; existing (session, item) pairs are left untouched.
func (r *InMemoryRepository) EnqueueEntries(ctx context.Context, entries []*model.LedgerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range entries {
		key := entryKey{e.SessionID, e.ItemID}
		if _, exists := r.entries[key]; exists {
			continue
		}
		r.entries[key] = copyEntry(e)
		r.bySess[e.SessionID] = append(r.bySess[e.SessionID], e.ItemID)
	}
	return nil
}

func (r *InMemoryRepository) FindEntries(ctx context.Context, sessionID string) ([]*model.LedgerEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]*model.LedgerEntry, 0, len(r.bySess[sessionID]))
	for _, itemID := range r.bySess[sessionID] {
		entries = append(entries, copyEntry(r.entries[entryKey{sessionID, itemID}]))
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Sequence < entries[j].Sequence })
	return entries, nil
}

func (r *InMemoryRepository) entry(op, sessionID, itemID string) (*model.LedgerEntry, error) {
	e, ok := r.entries[entryKey{sessionID, itemID}]
	if !ok {
		return nil, exception.NewBatchErrorf(op, "entry %s/%s not found", sessionID, itemID, repository.ErrLedgerEntryNotFound)
	}
	return e, nil
}

func (r *InMemoryRepository) MarkEntryCompleted(ctx context.Context, sessionID, itemID string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, err := r.entry("InMemoryRepository.MarkEntryCompleted", sessionID, itemID)
	if err != nil {
		return false, err
	}
	if e.Status == model.EntryCompleted {
		return false, nil
	}
	e.Status = model.EntryCompleted
	e.LastAttemptAt = &at
	e.FailureReason = ""
	e.Version++

	if s, ok := r.sessions[sessionID]; ok {
		s.CompletedItems = r.countLocked(sessionID)[model.EntryCompleted]
		s.LastUpdated = at
	}
	return true, nil
}

func (r *InMemoryRepository) MarkEntryFailed(ctx context.Context, sessionID, itemID, reason string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, err := r.entry("InMemoryRepository.MarkEntryFailed", sessionID, itemID)
	if err != nil {
		return false, err
	}
	if e.Status == model.EntryCompleted {
		return false, nil
	}
	e.Status = model.EntryFailed
	e.FailureCount++
	e.FailureReason = reason
	e.LastAttemptAt = &at
	e.Version++
	return true, nil
}

func (r *InMemoryRepository) CountEntries(ctx context.Context, sessionID string) (map[model.EntryStatus]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.countLocked(sessionID), nil
}

func (r *InMemoryRepository) countLocked(sessionID string) map[model.EntryStatus]int {
	counts := map[model.EntryStatus]int{
		model.EntryPending:   0,
		model.EntryCompleted: 0,
		model.EntryFailed:    0,
	}
	for _, itemID := range r.bySess[sessionID] {
		counts[r.entries[entryKey{sessionID, itemID}].Status]++
	}
	return counts
}

func (r *InMemoryRepository) FindCompletedItemIDs(ctx context.Context, scope string) (map[string]bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	completed := make(map[string]bool)
	for sessionID, s := range r.sessions {
		if s.Scope != scope {
			continue
		}
		for _, itemID := range r.bySess[sessionID] {
			if r.entries[entryKey{sessionID, itemID}].Status == model.EntryCompleted {
				completed[itemID] = true
			}
		}
	}
	return completed, nil
}

// Close releases resources used by the repository. It holds none.
func (r *InMemoryRepository) Close() error {
	return nil
}

var _ repository.Repository = (*InMemoryRepository)(nil)
