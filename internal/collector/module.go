package collector

import (
	"io"

	"go.uber.org/fx"

	"github.com/tigerroll/matchday/internal/store"
	"github.com/tigerroll/matchday/pkg/batch/core/application/usecase"
)

// Params defines the dependencies of the Collector.
type Params struct {
	fx.In
	Runner  usecase.SessionRunner
	Planner *Planner
	Out     io.Writer `name:"stdout" optional:"true"`
}

// NewCollectorFromParams is the Fx constructor of Collector.
func NewCollectorFromParams(p Params) *Collector {
	return NewCollector(p.Runner, p.Planner, p.Out)
}

// Module provides the planner on the data store and the collector.
var Module = fx.Provide(
	func(s *store.Store) Catalog { return s },
	NewPlanner,
	NewCollectorFromParams,
)
