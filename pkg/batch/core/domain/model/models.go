// Package model defines the collector's domain types: work items, sessions, ledger entries
// and the progress snapshots handed to status reporters.
package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tigerroll/matchday/pkg/batch/support/util/exception"
	"github.com/tigerroll/matchday/pkg/batch/support/util/serialization"
)

// ItemKind enumerates the kinds of collection work.
type ItemKind string

const (
	KindFixturesByDate ItemKind = "fixtures_by_date"
	KindTeamHistory    ItemKind = "team_history"
	KindMatchStats     ItemKind = "match_stats"
	KindPlayerStats    ItemKind = "player_stats"
)

// AllKinds returns every kind in stage order: fixtures feed team history,
// finished fixtures feed match and player statistics.
func AllKinds() []ItemKind {
	return []ItemKind{KindFixturesByDate, KindTeamHistory, KindMatchStats, KindPlayerStats}
}

// IsValid reports whether k is one of the known kinds.
func (k ItemKind) IsValid() bool {
	for _, known := range AllKinds() {
		if k == known {
			return true
		}
	}
	return false
}

// ParseItemKind accepts both "match_stats" and "match-stats".
func ParseItemKind(s string) (ItemKind, error) {
	k := ItemKind(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	if !k.IsValid() {
		return "", fmt.Errorf("unknown item kind %q", s)
	}
	return k, nil
}

// Params is the opaque parameter bag a Source Fetcher needs for one item.
// It is stored as JSON.
type Params map[string]interface{}

// Value implements driver.Valuer.
func (p Params) Value() (driver.Value, error) {
	return serialization.MarshalParams(p)
}

// Scan implements sql.Scanner.
func (p *Params) Scan(value interface{}) error {
	var data string
	switch v := value.(type) {
	case nil:
		*p = Params{}
		return nil
	case []byte:
		data = string(v)
	case string:
		data = v
	default:
		return exception.NewBatchErrorf("model", "unsupported Params column type %T", v)
	}
	m, err := serialization.UnmarshalParams(data)
	if err != nil {
		return err
	}
	*p = m
	return nil
}

// GetString returns a string parameter.
func (p Params) GetString(key string) (string, bool) {
	v, ok := p[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// GetInt64 returns an integer parameter, accepting the float64 produced by JSON decoding
// and numeric strings.
func (p Params) GetInt64(key string) (int64, bool) {
	switch v := p[key].(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		return int64(v), true
	case json.Number:
		i, err := v.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(v, 10, 64)
		return i, err == nil
	}
	return 0, false
}

// WorkItem is one schedulable unit of collection. It is immutable once enqueued.
type WorkItem struct {
	// ID is the stable external identifier, unique within a session (e.g. "match:11352376").
	ID     string
	Kind   ItemKind
	Params Params
}

// NewWorkItem builds a WorkItem whose ID is "<prefix>:<key>".
func NewWorkItem(kind ItemKind, prefix string, key interface{}, params Params) WorkItem {
	return WorkItem{
		ID:     fmt.Sprintf("%s:%v", prefix, key),
		Kind:   kind,
		Params: params,
	}
}

// Classification is the outcome category of one outbound call.
type Classification string

const (
	ClassSuccess      Classification = "success"
	ClassSoftLimited  Classification = "soft_limited"
	ClassHardError    Classification = "hard_error"
	ClassNetworkError Classification = "network_error"
)

// Classifications lists every classification in reporting order.
func Classifications() []Classification {
	return []Classification{ClassSuccess, ClassSoftLimited, ClassHardError, ClassNetworkError}
}

// SessionStatus represents the state of a collection session.
type SessionStatus string

const (
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
	SessionFailed     SessionStatus = "failed"
)

// IsTerminal reports whether no further transition is allowed.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionCompleted || s == SessionFailed
}

// SessionRecord identifies one run over a scope. It is never deleted.
type SessionRecord struct {
	ID             string
	Kind           ItemKind
	Scope          string
	TotalItems     int
	CompletedItems int
	Status         SessionStatus
	StartTime      time.Time
	CompletionTime *time.Time
	Notes          string
	Version        int
	LastUpdated    time.Time
}

// NewSessionRecord creates an in-progress session with a fresh identifier.
func NewSessionRecord(kind ItemKind, scope string, total int, now time.Time) *SessionRecord {
	return &SessionRecord{
		ID:          uuid.NewString(),
		Kind:        kind,
		Scope:       scope,
		TotalItems:  total,
		Status:      SessionInProgress,
		StartTime:   now,
		LastUpdated: now,
	}
}

// ErrInvalidTransition is returned when a terminal session would be mutated.
var ErrInvalidTransition = errors.New("invalid session status transition")

// Finalize moves the session into a terminal status.
func (s *SessionRecord) Finalize(status SessionStatus, completed int, notes string, now time.Time) error {
	if s.Status.IsTerminal() {
		return exception.NewBatchErrorf("model", "session %s is already %s", s.ID, s.Status, ErrInvalidTransition)
	}
	if !status.IsTerminal() {
		return exception.NewBatchErrorf("model", "cannot finalize session %s as %s", s.ID, status, ErrInvalidTransition)
	}
	s.Status = status
	s.CompletedItems = completed
	s.Notes = notes
	s.CompletionTime = &now
	s.LastUpdated = now
	return nil
}

// EntryStatus is the per-item status inside a session.
type EntryStatus string

const (
	EntryPending   EntryStatus = "pending"
	EntryCompleted EntryStatus = "completed"
	EntryFailed    EntryStatus = "failed"
)

// LedgerEntry is the persisted status of one WorkItem within a session.
type LedgerEntry struct {
	SessionID string
	ItemID    string
	Kind      ItemKind
	// Sequence is the item's position in the scope's order; resume follows it.
	Sequence      int
	Params        Params
	Status        EntryStatus
	FailureCount  int
	LastAttemptAt *time.Time
	FailureReason string
	Version       int
}

// NewLedgerEntry creates a pending entry for item at position seq.
func NewLedgerEntry(sessionID string, seq int, item WorkItem) *LedgerEntry {
	return &LedgerEntry{
		SessionID: sessionID,
		ItemID:    item.ID,
		Kind:      item.Kind,
		Sequence:  seq,
		Params:    item.Params,
		Status:    EntryPending,
	}
}

// WorkItem reconstructs the work item the entry was created from.
func (e *LedgerEntry) WorkItem() WorkItem {
	return WorkItem{ID: e.ItemID, Kind: e.Kind, Params: e.Params}
}

// IsResumable reports whether a resumed run should attempt the item again.
// Failed items come back until they have failed retryCap times.
func (e *LedgerEntry) IsResumable(retryCap int) bool {
	switch e.Status {
	case EntryPending:
		return true
	case EntryFailed:
		return e.FailureCount < retryCap
	}
	return false
}

// RequestStats tallies classifications over a session.
type RequestStats struct {
	Counts map[Classification]int
}

// NewRequestStats creates an empty tally.
func NewRequestStats() *RequestStats {
	return &RequestStats{Counts: make(map[Classification]int)}
}

// Record adds one classification.
func (s *RequestStats) Record(c Classification) {
	s.Counts[c]++
}

// Total returns the number of recorded calls.
func (s *RequestStats) Total() int {
	total := 0
	for _, n := range s.Counts {
		total += n
	}
	return total
}

// SuccessRate returns the successful share in percent, 0 when nothing was recorded.
func (s *RequestStats) SuccessRate() float64 {
	total := s.Total()
	if total == 0 {
		return 0
	}
	return float64(s.Counts[ClassSuccess]) / float64(total) * 100
}

// String renders the tally in the form stored in SessionRecord.Notes.
func (s *RequestStats) String() string {
	return fmt.Sprintf("requests=%d success=%d soft_limited=%d hard_error=%d network_error=%d success_rate=%.1f%%",
		s.Total(), s.Counts[ClassSuccess], s.Counts[ClassSoftLimited], s.Counts[ClassHardError], s.Counts[ClassNetworkError], s.SuccessRate())
}

// Snapshot is the read-only progress view consumed by status reporters.
type Snapshot struct {
	SessionID          string
	Kind               ItemKind
	Scope              string
	Status             SessionStatus
	Total              int
	Completed          int
	Pending            int
	Failed             int
	StartTime          time.Time
	CompletionTime     *time.Time
	Elapsed            time.Duration
	EstimatedRemaining time.Duration
}

// NewSnapshot combines a session with its ledger counts. The estimate extrapolates the
// mean time per terminal item over the pending ones.
func NewSnapshot(s *SessionRecord, counts map[EntryStatus]int, now time.Time) Snapshot {
	snap := Snapshot{
		SessionID:      s.ID,
		Kind:           s.Kind,
		Scope:          s.Scope,
		Status:         s.Status,
		Total:          s.TotalItems,
		Completed:      counts[EntryCompleted],
		Pending:        counts[EntryPending],
		Failed:         counts[EntryFailed],
		StartTime:      s.StartTime,
		CompletionTime: s.CompletionTime,
	}
	end := now
	if s.CompletionTime != nil {
		end = *s.CompletionTime
	}
	snap.Elapsed = end.Sub(s.StartTime)

	done := snap.Completed + snap.Failed
	if !s.Status.IsTerminal() && done > 0 && snap.Pending > 0 {
		snap.EstimatedRemaining = snap.Elapsed / time.Duration(done) * time.Duration(snap.Pending)
	}
	return snap
}

// Progress returns the completed share in [0,1].
func (s Snapshot) Progress() float64 {
	if s.Total == 0 {
		return 1
	}
	return float64(s.Completed) / float64(s.Total)
}

// SessionSummary is emitted once per finalized session.
type SessionSummary struct {
	Snapshot
	BatchesRun  int
	Stats       *RequestStats
	AbortReason string
}
