package usecase

import (
	"context"

	model "github.com/tigerroll/matchday/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/matchday/pkg/batch/core/domain/repository"
	"github.com/tigerroll/matchday/pkg/batch/engine/ledger"
)

// SimpleStatusExplorer answers status queries straight from the ledger.
type SimpleStatusExplorer struct {
	ledger *ledger.ProgressLedger
	repo   repository.SessionRepository
}

var _ StatusExplorer = (*SimpleStatusExplorer)(nil)

// NewSimpleStatusExplorer creates a new instance of SimpleStatusExplorer.
func NewSimpleStatusExplorer(l *ledger.ProgressLedger, repo repository.Repository) *SimpleStatusExplorer {
	return &SimpleStatusExplorer{ledger: l, repo: repo}
}

func (e *SimpleStatusExplorer) Snapshot(ctx context.Context, sessionID string) (model.Snapshot, error) {
	return e.ledger.Snapshot(ctx, sessionID)
}

func (e *SimpleStatusExplorer) ActiveSnapshot(ctx context.Context, scope string) (model.Snapshot, error) {
	session, err := e.repo.FindActiveSession(ctx, scope)
	if err != nil {
		return model.Snapshot{}, err
	}
	return e.ledger.Snapshot(ctx, session.ID)
}

func (e *SimpleStatusExplorer) ListSnapshots(ctx context.Context, limit int) ([]model.Snapshot, error) {
	sessions, err := e.repo.ListSessions(ctx, limit)
	if err != nil {
		return nil, err
	}
	snapshots := make([]model.Snapshot, 0, len(sessions))
	for _, session := range sessions {
		snap, err := e.ledger.Snapshot(ctx, session.ID)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, nil
}
