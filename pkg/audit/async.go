package audit

import (
	"context"
	"log/slog"
	"sync"

	"github.com/dukex/contentflow/pkg/metrics"
	"github.com/dukex/contentflow/pkg/models"
)

const (
	DefaultQueueSize = 1024
	DefaultWorkers   = 2
)

type queued struct {
	ctx    context.Context //nolint:containedctx // carries trace values to the worker
	record models.TransitionRecord
}

// AsyncRecorder hands records to background workers so the transition path
// never waits on the audit store. When the queue is full the record is
// dropped and counted.
type AsyncRecorder struct {
	next    Recorder
	logger  *slog.Logger
	metrics *metrics.Metrics

	queue chan queued
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewAsyncRecorder(next Recorder, logger *slog.Logger, m *metrics.Metrics, queueSize, workers int) *AsyncRecorder {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	if workers <= 0 {
		workers = DefaultWorkers
	}

	r := &AsyncRecorder{
		next:    next,
		logger:  logger.With("module", "audit-async"),
		metrics: m,
		queue:   make(chan queued, queueSize),
	}

	r.wg.Add(workers)

	for range workers {
		go r.work()
	}

	return r
}

func (r *AsyncRecorder) Record(ctx context.Context, record models.TransitionRecord) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		r.drop(ctx, record, "recorder closed")

		return
	}

	select {
	case r.queue <- queued{ctx: context.WithoutCancel(ctx), record: record}:
	default:
		r.drop(ctx, record, "queue full")
	}
}

func (r *AsyncRecorder) drop(ctx context.Context, record models.TransitionRecord, reason string) {
	r.metrics.AuditDropped()
	r.logger.WarnContext(ctx, "Dropping transition record",
		"reason", reason,
		"workflow_id", record.WorkflowID,
		"event", record.Event,
		"next_state", record.NextState)
}

func (r *AsyncRecorder) work() {
	defer r.wg.Done()

	for item := range r.queue {
		r.next.Record(item.ctx, item.record)
	}
}

// Close stops accepting records and waits until the queue is drained.
func (r *AsyncRecorder) Close() {
	r.mu.Lock()

	if r.closed {
		r.mu.Unlock()

		return
	}

	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	r.wg.Wait()
}
