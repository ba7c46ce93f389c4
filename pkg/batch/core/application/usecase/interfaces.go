package usecase

import (
	"context"
	"errors"

	model "github.com/tigerroll/matchday/pkg/batch/core/domain/model"
	"github.com/tigerroll/matchday/pkg/batch/support/util/exception"
)

var (
	// ErrSessionAborted is returned when a session ends as failed by abort: operator request
	// or a sustained failure rate.
	ErrSessionAborted = errors.New("session aborted")
	// ErrSessionTerminal is returned when an operation needs an in_progress session.
	ErrSessionTerminal = errors.New("session is already terminal")
	// ErrScopeBusy is returned when the scope is already being collected by this process.
	ErrScopeBusy = errors.New("scope is already being collected")
)

// Request describes one collection run.
type Request struct {
	Kind  model.ItemKind
	Scope string
	// Items is the full work list of the scope, in collection order.
	Items []model.WorkItem
}

// SessionRunner opens or resumes the session of a scope and drives it to a terminal
// state, or until ctx is cancelled.
type SessionRunner interface {
	// Run returns the session summary. A cancelled run leaves the session in_progress and
	// returns ctx.Err().
	Run(ctx context.Context, req Request) (model.SessionSummary, error)
}

// SessionOperator performs operator actions on sessions.
type SessionOperator interface {
	// Abort moves an in_progress session to failed. A session running in this process is
	// cancelled and finalized by its runner.
	Abort(ctx context.Context, sessionID, reason string) error
}

// StatusExplorer is the read-only view polled by status reporters.
type StatusExplorer interface {
	Snapshot(ctx context.Context, sessionID string) (model.Snapshot, error)
	// ActiveSnapshot returns the snapshot of the in_progress session of scope.
	ActiveSnapshot(ctx context.Context, scope string) (model.Snapshot, error)
	// ListSnapshots returns snapshots of the most recent sessions, newest first.
	ListSnapshots(ctx context.Context, limit int) ([]model.Snapshot, error)
}

func init() {
	exception.RegisterErrorType("usecase.ErrSessionAborted", ErrSessionAborted)
	exception.RegisterErrorType("usecase.ErrSessionTerminal", ErrSessionTerminal)
	exception.RegisterErrorType("usecase.ErrScopeBusy", ErrScopeBusy)
}
