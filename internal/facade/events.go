// Package facade implements EventsFacade, the single entry point every
// external surface (the admin HTTP API, a future SQL front end) goes
// through to mutate or inspect events. It owns the one piece of shared
// mutable state those surfaces must serialize on: the in-memory queue.
package facade

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/arjunbhagat/eventsched/internal/activationqueue"
	"github.com/arjunbhagat/eventsched/internal/catalog"
	"github.com/arjunbhagat/eventsched/internal/domain"
	"github.com/arjunbhagat/eventsched/internal/schedulerloop"
)

// Facade is the EventsFacade from spec.md §4.5.
type Facade struct {
	gateway catalog.Gateway
	queue   *activationqueue.Queue
	loop    *schedulerloop.Loop

	// mu serializes metadata operations (create/update/drop) so two
	// concurrent CREATE EVENTs for the same name cannot both observe
	// "not found" in the catalog and both attempt an insert.
	mu sync.Mutex
}

func New(gateway catalog.Gateway, queue *activationqueue.Queue, loop *schedulerloop.Loop) *Facade {
	return &Facade{gateway: gateway, queue: queue, loop: loop}
}

// Create validates, persists, and enqueues a new event. If ifNotExists is
// set, a duplicate (schema, name) is not an error: Create returns a
// non-empty warning instead of failing, per spec.md §7's "duplicate
// CREATE without IF NOT EXISTS fails loudly; with IF NOT EXISTS emits a
// warning and succeeds."
func (f *Facade) Create(ctx context.Context, e *domain.EventRecord, ifNotExists bool) (warning string, err error) {
	if e.Schema == "" || e.Name == "" {
		return "", domain.ErrBadSchema
	}
	if e.Schedule.Kind == domain.KindRecurring {
		if err := validateRecurring(e.Schedule); err != nil {
			return "", err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if e.Status == "" {
		e.Status = domain.StatusEnabled
	}
	now := time.Now().UTC()
	e.Created = now
	e.Modified = now

	if err := e.ComputeNextExecution(now); err != nil {
		return "", err
	}

	if err := f.gateway.PersistCreate(ctx, e); err != nil {
		if ifNotExists && errors.Is(err, domain.ErrAlreadyExists) {
			return fmt.Sprintf("Event %s.%s already exists", e.Schema, e.Name), nil
		}
		return "", fmt.Errorf("persist create: %w", err)
	}

	f.queue.Create(e)
	return "", nil
}

// Update applies a new definition to the event currently identified by
// (oldSchema, oldName) and recomputes its timing, since a changed
// schedule invalidates the old execute_at. e.Schema/e.Name may differ
// from the old identity to rename the event in place (spec.md §4.5's
// `update(def, new_schema?, new_name?)`).
func (f *Facade) Update(ctx context.Context, oldSchema, oldName string, e *domain.EventRecord) error {
	if e.Schedule.Kind == domain.KindRecurring {
		if err := validateRecurring(e.Schedule); err != nil {
			return err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	existing, err := f.gateway.Load(ctx, oldSchema, oldName)
	if err != nil {
		return fmt.Errorf("load existing: %w", err)
	}
	e.Created = existing.Created
	e.LastExecuted = existing.LastExecuted
	e.ExecutionCount = existing.ExecutionCount
	e.Modified = time.Now().UTC()

	if err := e.ComputeNextExecution(e.Modified); err != nil {
		return err
	}

	if err := f.gateway.PersistUpdate(ctx, oldSchema, oldName, e); err != nil {
		return fmt.Errorf("persist update: %w", err)
	}

	f.queue.Update(oldSchema, oldName, e)
	return nil
}

// Drop removes a single event from the catalog and the queue. If
// ifExists is set, a missing event is not an error: Drop returns a
// non-empty warning instead of failing, per spec.md §7's "missing DROP
// without IF EXISTS fails, with IF EXISTS warns."
func (f *Facade) Drop(ctx context.Context, schema, name string, ifExists bool) (warning string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.gateway.PersistDrop(ctx, schema, name); err != nil {
		if ifExists && errors.Is(err, domain.ErrNotFound) {
			return fmt.Sprintf("Event %s.%s does not exist", schema, name), nil
		}
		return "", fmt.Errorf("persist drop: %w", err)
	}
	f.queue.Drop(schema, name)
	return "", nil
}

// DropSchemaEvents removes every event belonging to schema, called when
// the embedding database drops the schema itself.
func (f *Facade) DropSchemaEvents(ctx context.Context, schema string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.gateway.PersistDropSchema(ctx, schema); err != nil {
		return fmt.Errorf("persist drop schema: %w", err)
	}
	f.queue.DropSchema(schema)
	return nil
}

// ShowCreate renders the definition of (schema, name) as a SHOW CREATE
// EVENT-equivalent string.
func (f *Facade) ShowCreate(ctx context.Context, schema, name string) (string, error) {
	e, err := f.gateway.Load(ctx, schema, name)
	if err != nil {
		return "", fmt.Errorf("load: %w", err)
	}
	return renderShowCreate(e)
}

// FillInfoSchema returns every event's definition fields, analogous to
// the information_schema.EVENTS table.
func (f *Facade) FillInfoSchema(ctx context.Context) ([]*domain.EventRecord, error) {
	events, err := f.gateway.EnumerateEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerate: %w", err)
	}
	return events, nil
}

// Start brings the scheduler loop up, priming the queue from the catalog
// first if it is empty. Stop does not empty the queue, so a restart after
// Stop keeps the entries already held and does not re-read the catalog.
func (f *Facade) Start(ctx context.Context) error {
	if f.queue.Len() == 0 {
		events, err := f.gateway.EnumerateEvents(ctx)
		if err != nil {
			return fmt.Errorf("enumerate for priming: %w", err)
		}
		now := time.Now().UTC()
		for _, e := range events {
			_ = e.ComputeNextExecution(now)
			f.queue.Create(e)
		}
	}
	f.loop.Start(ctx)
	return nil
}

// Stop halts the scheduler loop cooperatively.
func (f *Facade) Stop() {
	f.loop.Stop()
}

// DumpInternalStatus reports the scheduler's operational state.
type DumpInternalStatus struct {
	LoopState      string
	QueueElements  int
	NextActivation *time.Time
}

func (f *Facade) DumpInternalStatus() DumpInternalStatus {
	q := f.queue.DumpInternalStatus()
	return DumpInternalStatus{
		LoopState:      f.loop.State().String(),
		QueueElements:  q.Elements,
		NextActivation: q.NextActivation,
	}
}

func validateRecurring(s domain.Schedule) error {
	if s.Expression <= 0 {
		return domain.ErrIntervalOutOfRange
	}
	if s.Unit == domain.IntervalMicrosecond {
		return domain.ErrMicrosecondUnsupported
	}
	if s.Starts != nil && s.Ends != nil && s.Ends.Before(*s.Starts) {
		return domain.ErrInvalidDateRange
	}
	return nil
}

func renderShowCreate(e *domain.EventRecord) (string, error) {
	scheduleClause := ""
	if e.Schedule.IsOneShot() {
		scheduleClause = fmt.Sprintf("AT '%s'", e.Schedule.ExecuteAt.Format(time.RFC3339))
	} else {
		text, err := domain.IntervalToText(e.Schedule.Unit, e.Schedule.Expression)
		if err != nil {
			return "", err
		}
		scheduleClause = fmt.Sprintf("EVERY %s %s", text, e.Schedule.Unit)
		if e.Schedule.Starts != nil {
			scheduleClause += fmt.Sprintf(" STARTS '%s'", e.Schedule.Starts.Format(time.RFC3339))
		}
		if e.Schedule.Ends != nil {
			scheduleClause += fmt.Sprintf(" ENDS '%s'", e.Schedule.Ends.Format(time.RFC3339))
		}
	}

	return fmt.Sprintf(
		"CREATE DEFINER=%s EVENT `%s`.`%s` ON SCHEDULE %s ON COMPLETION %s %s COMMENT '%s' DO <body>",
		e.Definer, e.Schema, e.Name, scheduleClause, e.OnCompletion, e.Status, e.Comment,
	), nil
}
