package usecase

import (
	"go.uber.org/fx"

	port "github.com/tigerroll/matchday/pkg/batch/core/application/port"
	config "github.com/tigerroll/matchday/pkg/batch/core/config"
	repository "github.com/tigerroll/matchday/pkg/batch/core/domain/repository"
	metrics "github.com/tigerroll/matchday/pkg/batch/core/metrics"
	"github.com/tigerroll/matchday/pkg/batch/core/ports"
	tx "github.com/tigerroll/matchday/pkg/batch/core/tx"
	"github.com/tigerroll/matchday/pkg/batch/engine/ledger"
)

// NotifierGroup is the Fx value group session notifiers are collected into.
const NotifierGroup = "notifiers"

// SupervisorParams defines the dependencies of the SessionSupervisor.
type SupervisorParams struct {
	fx.In
	Ledger    *ledger.ProgressLedger
	Fetcher   port.SourceFetcher
	Store     port.DataStore
	Cfg       config.CollectorConfig
	Recorder  metrics.MetricRecorder
	Tracer    metrics.Tracer
	Notifiers []ports.Notifier `group:"notifiers"`
}

// NewSupervisorFromParams is the Fx constructor of SessionSupervisor.
func NewSupervisorFromParams(p SupervisorParams) *SessionSupervisor {
	return NewSessionSupervisor(p.Ledger, p.Fetcher, p.Store, p.Cfg,
		WithMetrics(p.Recorder, p.Tracer),
		WithNotifiers(p.Notifiers...),
	)
}

// LedgerParams defines the dependencies of the ProgressLedger. TxManager belongs to the
// ledger connection; without it sessions are opened without a transaction.
type LedgerParams struct {
	fx.In
	Repo      repository.Repository
	TxManager tx.TransactionManager `name:"ledger_tx" optional:"true"`
	Cfg       config.CollectorConfig
}

// NewProgressLedger builds the ledger with the configured retry cap for failed items.
func NewProgressLedger(p LedgerParams) *ledger.ProgressLedger {
	var opts []ledger.Option
	if p.TxManager != nil {
		opts = append(opts, ledger.WithTransactionManager(p.TxManager))
	}
	return ledger.NewProgressLedger(p.Repo, p.Cfg.Session.FailedItemRetryCap, opts...)
}

// Module is the Fx module for the supervisor, its operator view and the status explorer.
var Module = fx.Options(
	fx.Provide(NewProgressLedger),
	fx.Provide(NewSupervisorFromParams),
	fx.Provide(
		func(s *SessionSupervisor) SessionRunner { return s },
		func(s *SessionSupervisor) SessionOperator { return s },
	),
	fx.Provide(fx.Annotate(
		NewSimpleStatusExplorer,
		fx.As(new(StatusExplorer)),
	)),
)
