// Package catalog defines the persistence boundary between the scheduler
// and whatever stores event definitions durably. Nothing above this
// interface knows or cares that the implementation happens to be Postgres.
package catalog

import (
	"context"

	"github.com/arjunbhagat/eventsched/internal/domain"
)

// Gateway is the persistence seam spec.md calls CatalogGateway: the
// scheduler never issues SQL directly, it calls through here.
type Gateway interface {
	// EnumerateEvents returns every event the scheduler is responsible
	// for, used to prime the ActivationQueue on start and to list events.
	EnumerateEvents(ctx context.Context) ([]*domain.EventRecord, error)

	// Load re-reads a single event by identity, used by the worker pool
	// right before execution to pick up any concurrent definition change.
	Load(ctx context.Context, schema, name string) (*domain.EventRecord, error)

	// PersistCreate inserts a brand-new event. Returns
	// domain.ErrAlreadyExists if (schema, name) is already taken.
	PersistCreate(ctx context.Context, e *domain.EventRecord) error

	// PersistUpdate overwrites the event currently identified by
	// (oldSchema, oldName) with e's definition fields. e.Schema/e.Name may
	// differ from the old identity, in which case this is a rename.
	// Returns domain.ErrNotFound if (oldSchema, oldName) does not exist,
	// domain.ErrAlreadyExists if the rename collides with another event.
	PersistUpdate(ctx context.Context, oldSchema, oldName string, e *domain.EventRecord) error

	// PersistDrop removes a single event.
	PersistDrop(ctx context.Context, schema, name string) error

	// PersistDropSchema removes every event belonging to schema, used
	// when the embedding database drops the schema itself.
	PersistDropSchema(ctx context.Context, schema string) error

	// UpdateTiming persists the post-execution bookkeeping fields the
	// worker pool advances on every run: status, last_executed,
	// execute_at, execution_count. It never touches the definition
	// fields, so a concurrent ALTER EVENT racing a running execution
	// cannot be clobbered by this call.
	UpdateTiming(ctx context.Context, e *domain.EventRecord) error
}
