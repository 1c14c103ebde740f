// Package audit records committed workflow transitions.
//
// Recording is best effort: a recorder never reports failure to its caller,
// so a committed transition is never retried or rolled back because its
// audit entry could not be written.
package audit

import (
	"context"
	"log/slog"

	"github.com/dukex/contentflow/pkg/eventbus"
	"github.com/dukex/contentflow/pkg/events"
	"github.com/dukex/contentflow/pkg/metrics"
	"github.com/dukex/contentflow/pkg/models"
	"github.com/dukex/contentflow/pkg/persistence"
)

// Recorder receives one call per applied transition.
type Recorder interface {
	Record(ctx context.Context, record models.TransitionRecord)
}

// Nop discards every record.
type Nop struct{}

func (Nop) Record(context.Context, models.TransitionRecord) {}

// StoreRecorder appends records to the audit store.
type StoreRecorder struct {
	repo    persistence.TransitionRepository
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewStoreRecorder(repo persistence.TransitionRepository, logger *slog.Logger, m *metrics.Metrics) *StoreRecorder {
	return &StoreRecorder{
		repo:    repo,
		logger:  logger.With("module", "audit-store"),
		metrics: m,
	}
}

func (r *StoreRecorder) Record(ctx context.Context, record models.TransitionRecord) {
	err := r.repo.Append(ctx, &record)
	if err != nil {
		r.metrics.AuditFailed()
		r.logger.ErrorContext(ctx, "Failed to append transition record",
			"workflow_id", record.WorkflowID,
			"event", record.Event,
			"previous_state", record.PreviousState,
			"next_state", record.NextState,
			"error", err)
	}
}

// EventRecorder publishes each record as a workflow.transitioned event.
type EventRecorder struct {
	publisher eventbus.EventPublisher
	ids       func() string
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

func NewEventRecorder(bus eventbus.EventBus, logger *slog.Logger, m *metrics.Metrics) *EventRecorder {
	return &EventRecorder{
		publisher: bus,
		ids:       bus.GenerateID,
		logger:    logger.With("module", "audit-events"),
		metrics:   m,
	}
}

func (r *EventRecorder) Record(ctx context.Context, record models.TransitionRecord) {
	event := events.WorkflowTransitioned{
		BaseEvent: events.BaseEvent{
			ID:         r.ids(),
			Type:       events.WorkflowTransitionedEvent,
			Timestamp:  record.CreatedAt,
			WorkflowID: record.WorkflowID,
		},
		PreviousState: record.PreviousState,
		Event:         record.Event,
		NextState:     record.NextState,
		TriggeredBy:   record.TriggeredBy,
	}

	err := r.publisher.Publish(ctx, record.WorkflowID, event)
	if err != nil {
		r.metrics.AuditFailed()
		r.logger.ErrorContext(ctx, "Failed to publish transition event",
			"workflow_id", record.WorkflowID,
			"event", record.Event,
			"error", err)
	}
}

// Multi fans a record out to every recorder in order.
type Multi []Recorder

func (m Multi) Record(ctx context.Context, record models.TransitionRecord) {
	for _, r := range m {
		r.Record(ctx, record)
	}
}
