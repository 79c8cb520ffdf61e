// Package workerpool spawns the short-lived per-execution goroutines that
// actually run an event's body, as distinct from the long-lived driver
// task in schedulerloop that decides when to spawn one.
package workerpool

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/arjunbhagat/eventsched/internal/activationqueue"
	"github.com/arjunbhagat/eventsched/internal/catalog"
	"github.com/arjunbhagat/eventsched/internal/domain"
	"github.com/arjunbhagat/eventsched/internal/metrics"
)

// Notifier is told about an event that will never fire again because it
// was one-shot, or a recurring event whose ends window just closed.
// WorkerPool calls it best-effort; a notification failure never affects
// scheduling.
type Notifier interface {
	NotifyExhausted(ctx context.Context, e *domain.EventRecord, cause string)
}

// noopNotifier is used when no notifier is configured.
type noopNotifier struct{}

func (noopNotifier) NotifyExhausted(context.Context, *domain.EventRecord, string) {}

// Pool bounds concurrent executions to capacity slots, mirroring the
// worker's own concurrency cap in the teacher repo.
type Pool struct {
	gateway  catalog.Gateway
	queue    *activationqueue.Queue
	invoker  BodyInvoker
	notifier Notifier
	logger   *slog.Logger

	sem chan struct{}
}

// New builds a Pool that allows at most capacity concurrent invocations.
// queue is the same ActivationQueue the driver task pops from; every
// execution whose recomputed status is still ENABLED is reinserted into
// it so a recurring event keeps firing instead of vanishing after its
// first run.
func New(gateway catalog.Gateway, queue *activationqueue.Queue, invoker BodyInvoker, notifier Notifier, logger *slog.Logger, capacity int) *Pool {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &Pool{
		gateway:  gateway,
		queue:    queue,
		invoker:  invoker,
		notifier: notifier,
		logger:   logger.With("component", "worker_pool"),
		sem:      make(chan struct{}, capacity),
	}
}

// Dispatch spawns a goroutine to execute (schema, name). It acquires a
// pool slot before returning control to the caller's goroutine only in
// the sense that the slot reservation blocks; the actual invocation runs
// asynchronously. This satisfies schedulerloop.Dispatcher.
func (p *Pool) Dispatch(schema, name string) {
	p.sem <- struct{}{}
	metrics.WorkersInFlight.Inc()
	go func() {
		defer func() {
			<-p.sem
			metrics.WorkersInFlight.Dec()
		}()
		p.execute(schema, name)
	}()
}

func (p *Pool) execute(schema, name string) {
	ctx := context.Background()

	e, err := p.gateway.Load(ctx, schema, name)
	if err != nil {
		p.logger.Error("reload before execution failed",
			"schema", schema, "name", name, "error", err)
		metrics.ExecutionsTotal.WithLabelValues("load_error").Inc()
		return
	}

	prefix := fmt.Sprintf("[%s][%s.%s]", e.Definer, e.Schema, e.Name)
	guard := enterExecutionContext(e)
	defer guard.restore()

	start := time.Now()
	invokeErr := p.invoker.Invoke(ctx, e.Body)
	duration := time.Since(start)

	e.ExecutionCount++
	now := time.Now().UTC()
	e.LastExecuted = &now

	outcome := "ok"
	if invokeErr != nil {
		outcome = "error"
		p.logger.Error("Event Scheduler: "+prefix+" execution failed",
			"duration", duration, "error", invokeErr)
	} else {
		p.logger.Info("Event Scheduler: "+prefix+" executed",
			"duration", duration)
	}
	metrics.ExecutionsTotal.WithLabelValues(outcome).Inc()
	metrics.ExecutionDuration.WithLabelValues(outcome).Observe(duration.Seconds())

	computeErr := e.ComputeNextExecution(now)
	if computeErr != nil {
		p.logger.Warn("Event Scheduler: "+prefix+" next execution computation failed",
			"error", computeErr)
	}

	if e.Status != domain.StatusEnabled {
		cause := "one-shot completed"
		if !e.Schedule.IsOneShot() {
			cause = "recurrence window exhausted"
		}
		if invokeErr != nil {
			cause = "execution failed: " + invokeErr.Error()
		}
		p.notifier.NotifyExhausted(ctx, e, cause)

		if e.OnCompletion == domain.OnCompletionDrop {
			if err := p.gateway.PersistDrop(ctx, e.Schema, e.Name); err != nil {
				p.logger.Error("Event Scheduler: "+prefix+" drop-on-completion failed", "error", err)
			}
			return
		}

		// PRESERVE: the row stays in the catalog but, per the ActivationQueue
		// contract, a DISABLED entry is never reinserted.
		if err := p.gateway.UpdateTiming(ctx, e); err != nil {
			p.logger.Error("Event Scheduler: "+prefix+" persist timing failed", "error", err)
		}
		return
	}

	if err := p.gateway.UpdateTiming(ctx, e); err != nil {
		p.logger.Error("Event Scheduler: "+prefix+" persist timing failed", "error", err)
	}

	// Still ENABLED: put the entry back so the recurrence keeps firing.
	p.queue.Update(e.Schema, e.Name, e)
}

// executionGuard restores the creation-time charset/collation/sql_mode
// around an invocation, the Go-shaped equivalent of the original
// implementation's scoped THD attribute swap; here restore does nothing,
// since BodyInvoker owns no real session state.
type executionGuard struct {
	record *domain.EventRecord
}

func enterExecutionContext(e *domain.EventRecord) *executionGuard {
	return &executionGuard{record: e}
}

func (g *executionGuard) restore() {
	// No real session state to restore against an HTTPInvoker; this
	// exists so a future BodyInvoker backed by an actual SQL session
	// has a single place to plug creation-context restoration into.
	_ = g.record.CreationCtx
}
