// Package dispatcher turns stage completion messages into workflow transitions.
package dispatcher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/contentflow/pkg/eventbus"
	"github.com/dukex/contentflow/pkg/events"
	"github.com/dukex/contentflow/pkg/models"
	"github.com/dukex/contentflow/pkg/otelhelper"
	"github.com/dukex/contentflow/pkg/persistence"
	"github.com/dukex/contentflow/pkg/workflow"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Transitioner applies events to workflows.
type Transitioner interface {
	Transition(ctx context.Context, workflowID string, event models.Event, opts models.TransitionOptions) (models.TransitionResult, error)
}

type Dispatcher struct {
	id       string
	engine   Transitioner
	eventBus eventbus.EventSubscriber
	logger   *slog.Logger
	tracer   trace.Tracer
}

func New(id string, engine Transitioner, eventBus eventbus.EventSubscriber, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		id:       id,
		engine:   engine,
		eventBus: eventBus,
		logger:   logger.With("module", "dispatcher", "dispatcher_id", id),
		tracer:   otel.Tracer("github.com/dukex/contentflow/pkg/dispatcher"),
	}
}

// Start registers the stage completion handler and begins consuming.
func (d *Dispatcher) Start(ctx context.Context) error {
	err := d.eventBus.Handle(events.StageCompletedEvent, d.HandleStageCompleted)
	if err != nil {
		return fmt.Errorf("failed to register stage completion handler: %w", err)
	}

	err = d.eventBus.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to stage completions: %w", err)
	}

	d.logger.InfoContext(ctx, "Dispatcher started")

	return nil
}

// HandleStageCompleted applies one completion. Rejected transitions and lost
// races are acknowledged: the workflow already moved on, and redelivery would
// be rejected again. Only infrastructure failures are returned, which makes
// the bus redeliver the message.
func (d *Dispatcher) HandleStageCompleted(ctx context.Context, event any) error {
	completed, ok := event.(*events.StageCompleted)
	if !ok {
		d.logger.ErrorContext(ctx, "Unexpected event payload", "type", fmt.Sprintf("%T", event))

		return nil
	}

	ctx, span := otelhelper.StartSpan(ctx, d.tracer, "dispatcher.stage_completed",
		attribute.String(otelhelper.WorkflowIDKey, completed.WorkflowID),
		attribute.String(otelhelper.EventKey, string(completed.Event)),
		attribute.String(otelhelper.WorkerIDKey, completed.WorkerID),
	)
	defer span.End()

	logger := d.logger.With(
		"workflow_id", completed.WorkflowID,
		"event", completed.Event,
		"worker_id", completed.WorkerID,
	)

	result, err := d.engine.Transition(ctx, completed.WorkflowID, completed.Event, models.TransitionOptions{})
	if err != nil {
		if workflow.IsInputError(err) || persistence.IsWorkflowNotFound(err) {
			logger.WarnContext(ctx, "Discarding stage completion", "error", err)

			return nil
		}

		otelhelper.SetError(span, err)
		logger.ErrorContext(ctx, "Failed to apply stage completion", "error", err)

		return err
	}

	span.SetAttributes(attribute.String(otelhelper.OutcomeKey, string(result.Outcome)))

	if !result.OK {
		logger.InfoContext(ctx, "Stage completion rejected",
			"outcome", result.Outcome,
			"current_state", result.NextState)

		return nil
	}

	logger.InfoContext(ctx, "Stage completion applied",
		"outcome", result.Outcome,
		"previous_state", result.PreviousState,
		"next_state", result.NextState)

	return nil
}
