// Package workflow implements the transition engine of the content pipeline.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/contentflow/pkg/audit"
	"github.com/dukex/contentflow/pkg/metrics"
	"github.com/dukex/contentflow/pkg/models"
	"github.com/dukex/contentflow/pkg/otelhelper"
	"github.com/dukex/contentflow/pkg/persistence"
	"github.com/dukex/contentflow/pkg/registry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/dukex/contentflow/pkg/workflow"

// outcomeError labels attempts that ended in an error rather than a result.
const outcomeError models.TransitionOutcome = "error"

// Engine validates and applies workflow transitions. It holds no locks; the
// repository's conditional write is the only serialization point, so one
// Engine may be shared by any number of goroutines.
type Engine struct {
	workflows persistence.WorkflowRepository
	recorder  audit.Recorder
	logger    *slog.Logger
	tracer    trace.Tracer
	metrics   *metrics.Metrics
	now       func() time.Time
}

type Option func(*Engine)

func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) {
		e.tracer = tracer
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates an engine. A nil recorder disables auditing.
func NewEngine(logger *slog.Logger, workflows persistence.WorkflowRepository, recorder audit.Recorder, opts ...Option) *Engine {
	if recorder == nil {
		recorder = audit.Nop{}
	}

	e := &Engine{
		workflows: workflows,
		recorder:  recorder,
		logger:    logger.With("module", "transition-engine"),
		tracer:    otel.Tracer(tracerName),
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Transition applies event to the workflow.
//
// Expected non-success outcomes (event not allowed, terminal state, lost race)
// come back as a TransitionResult with OK false. An error is returned only
// for invalid input (see IsInputError), a missing workflow, or a storage
// failure.
func (e *Engine) Transition(ctx context.Context, workflowID string, event models.Event, opts models.TransitionOptions) (models.TransitionResult, error) {
	start := time.Now()

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.transition",
		attribute.String(otelhelper.WorkflowIDKey, workflowID),
		attribute.String(otelhelper.EventKey, string(event)),
	)
	defer span.End()

	if opts.TriggeredBy != nil {
		span.SetAttributes(attribute.String(otelhelper.TriggeredByKey, *opts.TriggeredBy))
	}

	result, err := e.transition(ctx, workflowID, event, opts)
	if err != nil {
		otelhelper.SetError(span, err)
		e.metrics.ObserveTransition(event, outcomeError, time.Since(start).Seconds())
		e.logger.ErrorContext(ctx, "Transition failed",
			"workflow_id", workflowID,
			"event", event,
			"error", err)

		return models.TransitionResult{}, err
	}

	span.SetAttributes(
		attribute.String(otelhelper.PreviousStateKey, string(result.PreviousState)),
		attribute.String(otelhelper.NextStateKey, string(result.NextState)),
		attribute.String(otelhelper.OutcomeKey, string(result.Outcome)),
	)
	e.metrics.ObserveTransition(event, result.Outcome, time.Since(start).Seconds())

	e.log(ctx, workflowID, event, result)

	return result, nil
}

func (e *Engine) transition(ctx context.Context, workflowID string, event models.Event, opts models.TransitionOptions) (models.TransitionResult, error) {
	if !event.IsKnown() {
		return models.TransitionResult{}, fmt.Errorf("%w: %q", ErrUnknownEvent, event)
	}

	if event.IsRollback() {
		if opts.RollbackTarget == nil {
			return models.TransitionResult{}, ErrRollbackTargetRequired
		}

		if !registry.IsRollbackTarget(*opts.RollbackTarget) {
			return models.TransitionResult{}, fmt.Errorf("%w: %q", ErrInvalidRollbackTarget, *opts.RollbackTarget)
		}
	}

	current, err := e.workflows.GetState(ctx, workflowID)
	if err != nil {
		return models.TransitionResult{}, fmt.Errorf("failed to read state of workflow %s: %w", workflowID, err)
	}

	next, allowed := decide(current, event, opts)
	if !allowed {
		return rejected(current, current, models.OutcomeNotAllowed), nil
	}

	if next == current {
		return models.TransitionResult{
			OK:            true,
			PreviousState: current,
			NextState:     current,
			Outcome:       models.OutcomeNoop,
		}, nil
	}

	persisted, swapped, err := e.workflows.CompareAndSwapState(ctx, workflowID, current, next)
	if err != nil {
		return models.TransitionResult{}, fmt.Errorf("failed to write state of workflow %s: %w", workflowID, err)
	}

	if swapped {
		e.recorder.Record(ctx, models.TransitionRecord{
			ID:            newRecordID(),
			WorkflowID:    workflowID,
			PreviousState: current,
			Event:         event,
			NextState:     persisted,
			TriggeredBy:   opts.TriggeredBy,
			CreatedAt:     e.now().UTC(),
		})

		return models.TransitionResult{
			OK:            true,
			Applied:       true,
			PreviousState: current,
			NextState:     persisted,
			Outcome:       models.OutcomeApplied,
		}, nil
	}

	latest, err := e.workflows.GetState(ctx, workflowID)
	if err != nil {
		if persistence.IsWorkflowNotFound(err) {
			return models.TransitionResult{}, fmt.Errorf("%w: %s", ErrWorkflowVanished, workflowID)
		}

		return models.TransitionResult{}, fmt.Errorf("failed to re-read state of workflow %s: %w", workflowID, err)
	}

	if latest != current {
		return rejected(current, latest, models.OutcomeConflict), nil
	}

	return rejected(current, current, models.OutcomeNotPersisted), nil
}

// decide computes the target state of event from current. The boolean is
// false when the event is not allowed from current.
func decide(current models.State, event models.Event, opts models.TransitionOptions) (models.State, bool) {
	if registry.IsTerminal(current) {
		return current, false
	}

	if event.IsRollback() {
		target := *opts.RollbackTarget
		if registry.StageIndex(target) > registry.StageIndex(current) {
			return current, false
		}

		return target, true
	}

	return registry.NextState(current, event)
}

func rejected(previous, next models.State, outcome models.TransitionOutcome) models.TransitionResult {
	return models.TransitionResult{
		PreviousState: previous,
		NextState:     next,
		Outcome:       outcome,
	}
}

func newRecordID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}

	return id.String()
}

func (e *Engine) log(ctx context.Context, workflowID string, event models.Event, result models.TransitionResult) {
	attrs := []any{
		"workflow_id", workflowID,
		"event", event,
		"previous_state", result.PreviousState,
		"next_state", result.NextState,
		"outcome", result.Outcome,
	}

	switch result.Outcome {
	case models.OutcomeApplied:
		e.logger.InfoContext(ctx, "Transition applied", attrs...)
	case models.OutcomeConflict, models.OutcomeNotPersisted:
		e.logger.WarnContext(ctx, "Transition lost a concurrent update", attrs...)
	case models.OutcomeNotAllowed:
		e.logger.InfoContext(ctx, "Transition rejected", attrs...)
	default:
		e.logger.DebugContext(ctx, "Transition had no effect", attrs...)
	}
}

// GetCurrentState is a point read of the workflow state.
func (e *Engine) GetCurrentState(ctx context.Context, workflowID string) (models.State, error) {
	state, err := e.workflows.GetState(ctx, workflowID)
	if err != nil {
		return "", fmt.Errorf("failed to read state of workflow %s: %w", workflowID, err)
	}

	return state, nil
}

// AllowedEvents is advisory: the answer may be stale by the time it is used.
func (e *Engine) AllowedEvents(state models.State) []models.Event {
	return registry.AllowedEvents(state)
}

func (e *Engine) CanTransition(state models.State, event models.Event) bool {
	return registry.CanTransition(state, event)
}
