// Package jobs is the queue-facing layer: it maps queue names to stage
// handlers, gates work on the persisted engine state and throttle
// table, and reports job failures to the ledger before re-throwing them
// so the queue's retry policy applies.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/domain"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/ledger"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/storage"
)

// ErrEngineNotRunning is returned when a job arrives while the engine
// is stopped or paused. The queue should requeue, not retry hot.
var ErrEngineNotRunning = errors.New("engine is not running")

// ErrUnknownQueue is returned for a queue with no registered handler.
var ErrUnknownQueue = errors.New("unknown queue")

// Progress reports fractional job completion, 0-100. External monitors
// treat no-progress beyond a timeout as a stalled job.
type Progress func(pct float64)

// Job is one unit of queued work as the handler sees it.
type Job struct {
	Payload []byte
	// Capacity is the governor's effective capacity for this module,
	// 1.0 when unthrottled. Handlers scale their batch sizes by it.
	Capacity float64
	Progress Progress
}

// ScaledBatch applies the capacity to a requested batch size, keeping
// at least one item so a throttled stage still drains slowly.
func (j Job) ScaledBatch(requested, fallback int) int {
	if requested <= 0 {
		requested = fallback
	}
	scaled := int(math.Floor(float64(requested) * j.Capacity))
	if scaled < 1 {
		scaled = 1
	}
	return scaled
}

// Handler executes one stage's jobs.
type Handler interface {
	Queue() string
	Handle(ctx context.Context, job Job) error
}

// Registry dispatches queued jobs to stage handlers.
type Registry struct {
	handlers     map[string]Handler
	controlStore storage.ControlStore
	ledger       *ledger.Writer
	logger       *log.Logger
	now          func() time.Time
}

// RegistryOptions contains dependencies for creating a Registry.
type RegistryOptions struct {
	ControlStore storage.ControlStore
	Ledger       *ledger.Writer
	Logger       *log.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(opts RegistryOptions) *Registry {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Registry{
		handlers:     make(map[string]Handler),
		controlStore: opts.ControlStore,
		ledger:       opts.Ledger,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Register adds a handler for its queue, replacing any previous one.
func (r *Registry) Register(h Handler) {
	r.handlers[h.Queue()] = h
}

// Dispatch runs one job through the gate and its handler. A handler
// error is recorded as a `<stage>.job_failed` ledger event and returned
// so the queue can apply its retry/backoff policy.
func (r *Registry) Dispatch(ctx context.Context, queue string, payload []byte, progress Progress) error {
	h, ok := r.handlers[queue]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownQueue, queue)
	}
	if progress == nil {
		progress = func(float64) {}
	}

	capacity, err := r.gate(ctx, queue)
	if err != nil {
		return err
	}

	err = h.Handle(ctx, Job{Payload: payload, Capacity: capacity, Progress: progress})
	if err != nil {
		r.ledger.Write(ctx, queue, queue+".job_failed", map[string]any{
			"queue": queue,
			"error": err.Error(),
		})
		return err
	}
	return nil
}

// gate checks the engine state and resolves the module's effective
// capacity. The governor's own queue bypasses the engine gate: the
// control loop must keep running to report on a paused system.
func (r *Registry) gate(ctx context.Context, queue string) (float64, error) {
	if queue != QueueGovern {
		state, err := r.controlStore.GetEngineState(ctx)
		if err != nil {
			return 0, fmt.Errorf("read engine state: %w", err)
		}
		if state != domain.EngineRunning {
			r.logger.Printf("[jobs] %s skipped: engine %s", queue, state)
			return 0, fmt.Errorf("%w: %s", ErrEngineNotRunning, state)
		}
	}

	throttles, err := r.controlStore.GetThrottles(ctx)
	if err != nil {
		return 0, fmt.Errorf("read throttles: %w", err)
	}
	module := moduleFor(queue)
	capacity := 1.0
	for _, t := range throttles {
		if t.Module == module || t.Module == "all" || t.Module == "" {
			if t.Capacity < capacity {
				capacity = t.Capacity
			}
		}
	}
	return capacity, nil
}

// moduleFor maps a queue name onto the module name the governor
// throttles. Stages whose queue and module names agree pass through.
func moduleFor(queue string) string {
	switch queue {
	case QueueHunt:
		return "hunter"
	case QueueEvaluate:
		return "evaluator"
	case QueueBuy:
		return "buyer"
	case QueueList:
		return "merchant"
	case QueueDeliver:
		return "fulfillment"
	case QueueExperiment:
		return "brains"
	default:
		return queue
	}
}
