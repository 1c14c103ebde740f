// Package monitor reports workflows that stopped progressing.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukex/contentflow/pkg/metrics"
	"github.com/dukex/contentflow/pkg/persistence"
	"github.com/dukex/contentflow/pkg/progress"
	"github.com/robfig/cron/v3"
)

const (
	DefaultSchedule  = "@every 5m"
	DefaultThreshold = time.Hour
	DefaultLimit     = 500
)

// StalledWorkflow is a non-terminal workflow without a transition for longer
// than the threshold.
type StalledWorkflow struct {
	WorkflowID     string
	OrganizationID string
	State          string
	Percentage     int
	StalledFor     time.Duration
}

// Monitor periodically lists stalled workflows. It only reads: moving a
// stalled workflow is left to stage workers and operators.
type Monitor struct {
	workflows persistence.WorkflowRepository
	logger    *slog.Logger
	metrics   *metrics.Metrics
	threshold time.Duration
	limit     int
	now       func() time.Time

	mu   sync.Mutex
	cron *cron.Cron
}

type Option func(*Monitor)

func WithThreshold(threshold time.Duration) Option {
	return func(m *Monitor) {
		m.threshold = threshold
	}
}

func WithLimit(limit int) Option {
	return func(m *Monitor) {
		m.limit = limit
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Monitor) {
		m.metrics = mt
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		m.now = now
	}
}

func New(workflows persistence.WorkflowRepository, logger *slog.Logger, opts ...Option) *Monitor {
	m := &Monitor{
		workflows: workflows,
		logger:    logger.With("module", "stall-monitor"),
		threshold: DefaultThreshold,
		limit:     DefaultLimit,
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Sweep lists the stalled workflows once.
func (m *Monitor) Sweep(ctx context.Context) ([]StalledWorkflow, error) {
	now := m.now().UTC()
	cutoff := now.Add(-m.threshold)

	stale, err := m.workflows.ListStale(ctx, cutoff, m.limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list stalled workflows: %w", err)
	}

	// The listing is capped at m.limit; the gauge reports the whole backlog.
	total, err := m.workflows.CountStale(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to count stalled workflows: %w", err)
	}

	stalled := make([]StalledWorkflow, 0, len(stale))

	for _, wf := range stale {
		s := StalledWorkflow{
			WorkflowID:     wf.ID,
			OrganizationID: wf.OrganizationID,
			State:          string(wf.State),
			Percentage:     progress.Percentage(wf.State),
			StalledFor:     now.Sub(wf.UpdatedAt).Truncate(time.Second),
		}

		m.logger.WarnContext(ctx, "Workflow stalled",
			"workflow_id", s.WorkflowID,
			"organization_id", s.OrganizationID,
			"state", s.State,
			"percentage", s.Percentage,
			"stalled_for", s.StalledFor)

		stalled = append(stalled, s)
	}

	m.metrics.SetStalled(total)
	m.logger.InfoContext(ctx, "Stall sweep finished", "stalled", total, "listed", len(stalled), "threshold", m.threshold)

	return stalled, nil
}

// Start runs Sweep on schedule until Stop is called. Overlapping sweeps are
// skipped.
func (m *Monitor) Start(ctx context.Context, schedule string) error {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid sweep schedule: %w", err)
	}

	cronLogger := cron.PrintfLogger(slog.NewLogLogger(m.logger.Handler(), slog.LevelDebug))

	c := cron.New(
		cron.WithLogger(cronLogger),
		cron.WithChain(
			cron.SkipIfStillRunning(cronLogger),
			cron.Recover(cronLogger),
		),
	)

	_, err := c.AddFunc(schedule, func() {
		if _, err := m.Sweep(ctx); err != nil {
			m.logger.ErrorContext(ctx, "Stall sweep failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule stall sweep: %w", err)
	}

	m.mu.Lock()
	m.cron = c
	m.mu.Unlock()

	c.Start()
	m.logger.InfoContext(ctx, "Stall monitor started", "schedule", schedule, "threshold", m.threshold)

	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (m *Monitor) Stop() {
	m.mu.Lock()
	c := m.cron
	m.cron = nil
	m.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
}
