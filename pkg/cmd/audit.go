package cmd

import (
	"log/slog"

	"github.com/dukex/contentflow/pkg/audit"
	"github.com/dukex/contentflow/pkg/eventbus"
	"github.com/dukex/contentflow/pkg/metrics"
	"github.com/dukex/contentflow/pkg/persistence"
)

// NewRecorder writes every applied transition to the audit store and, when a
// bus is configured, publishes it. Both run off the transition path. The
// caller must Close the returned recorder to flush pending records.
func NewRecorder(p persistence.Persistence, bus eventbus.EventBus, logger *slog.Logger, m *metrics.Metrics) *audit.AsyncRecorder {
	recorders := audit.Multi{audit.NewStoreRecorder(p.TransitionRepository(), logger, m)}

	if bus != nil {
		recorders = append(recorders, audit.NewEventRecorder(bus, logger, m))
	}

	return audit.NewAsyncRecorder(recorders, logger, m, audit.DefaultQueueSize, audit.DefaultWorkers)
}
