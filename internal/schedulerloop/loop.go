// Package schedulerloop implements the driver task's state machine: a
// single cooperative goroutine that walks the activation queue and hands
// due events to the worker pool.
package schedulerloop

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/arjunbhagat/eventsched/internal/activationqueue"
	"github.com/arjunbhagat/eventsched/internal/metrics"
)

// State is one of the three states spec.md §4.3 names.
type State int

const (
	StateInitialized State = iota
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "RUNNING"
	case StateStopping:
		return "STOPPING"
	default:
		return "INITIALIZED"
	}
}

// Dispatcher hands a due event off for execution; the WorkerPool
// satisfies this.
type Dispatcher interface {
	Dispatch(schema, name string)
}

// Loop is the SchedulerLoop component. It owns its own state mutex and
// condition variable, separate from the queue's, per spec.md §5.
type Loop struct {
	queue      *activationqueue.Queue
	dispatcher Dispatcher
	logger     *slog.Logger
	pollEvery  time.Duration

	mu    sync.Mutex
	cond  *sync.Cond
	state State

	stopCh chan struct{}
	doneCh chan struct{}
}

// New builds a Loop in the INITIALIZED state.
func New(queue *activationqueue.Queue, dispatcher Dispatcher, logger *slog.Logger, pollEvery time.Duration) *Loop {
	l := &Loop{
		queue:      queue,
		dispatcher: dispatcher,
		logger:     logger.With("component", "scheduler_loop"),
		pollEvery:  pollEvery,
		state:      StateInitialized,
	}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// State reports the current state under the loop's own mutex.
func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Loop) setState(s State) {
	l.mu.Lock()
	l.state = s
	l.cond.Broadcast()
	l.mu.Unlock()
	metrics.SchedulerStateTransitionsTotal.WithLabelValues(s.String()).Inc()
	if s == StateRunning {
		metrics.SchedulerUpTime.Set(1)
	} else {
		metrics.SchedulerUpTime.Set(0)
	}
}

// Start transitions INITIALIZED -> RUNNING and spawns the driver task.
// Calling Start twice without an intervening Stop is a no-op.
func (l *Loop) Start(ctx context.Context) {
	l.mu.Lock()
	if l.state != StateInitialized {
		l.mu.Unlock()
		return
	}
	l.mu.Unlock()

	l.stopCh = make(chan struct{})
	l.doneCh = make(chan struct{})
	l.setState(StateRunning)
	l.logger.Info("scheduler loop starting")

	go l.run(ctx)
}

// Stop transitions RUNNING -> STOPPING and blocks until the driver task
// has observed the stop and exited, landing back in INITIALIZED. This is
// cooperative: in-flight worker executions are not interrupted.
func (l *Loop) Stop() {
	l.mu.Lock()
	if l.state != StateRunning {
		l.mu.Unlock()
		return
	}
	l.mu.Unlock()

	l.setState(StateStopping)
	close(l.stopCh)
	<-l.doneCh
	l.setState(StateInitialized)
	l.logger.Info("scheduler loop stopped")
}

func (l *Loop) run(ctx context.Context) {
	defer close(l.doneCh)

	for {
		select {
		case <-l.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		now := time.Now().UTC()
		record, ok := l.queue.PopIfDue(now)
		if ok {
			metrics.QueueDispatchLatency.Observe(now.Sub(*record.ExecuteAt).Seconds())
			l.dispatcher.Dispatch(record.Schema, record.Name)
			metrics.QueueDepth.Set(float64(l.queue.Len()))
			continue
		}

		deadline, has := l.queue.PeekDeadline()
		if !has {
			deadline = now.Add(l.pollEvery)
		} else if deadline.After(now.Add(l.pollEvery)) {
			deadline = now.Add(l.pollEvery)
		}

		waitDone := make(chan struct{})
		go func() {
			l.queue.WaitUntil(deadline)
			close(waitDone)
		}()

		select {
		case <-l.stopCh:
			return
		case <-ctx.Done():
			return
		case <-waitDone:
		}
	}
}
