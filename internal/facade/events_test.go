package facade_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/arjunbhagat/eventsched/internal/activationqueue"
	"github.com/arjunbhagat/eventsched/internal/domain"
	"github.com/arjunbhagat/eventsched/internal/facade"
	"github.com/arjunbhagat/eventsched/internal/schedulerloop"
)

type fakeGateway struct {
	mu     sync.Mutex
	events map[string]*domain.EventRecord
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{events: make(map[string]*domain.EventRecord)}
}

func keyOf(schema, name string) string { return schema + "." + name }

func (f *fakeGateway) EnumerateEvents(context.Context) ([]*domain.EventRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.EventRecord
	for _, e := range f.events {
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeGateway) Load(_ context.Context, schema, name string) (*domain.EventRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.events[keyOf(schema, name)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (f *fakeGateway) PersistCreate(_ context.Context, e *domain.EventRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := keyOf(e.Schema, e.Name)
	if _, exists := f.events[k]; exists {
		return domain.ErrAlreadyExists
	}
	cp := *e
	f.events[k] = &cp
	return nil
}

func (f *fakeGateway) PersistUpdate(_ context.Context, oldSchema, oldName string, e *domain.EventRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	oldK := keyOf(oldSchema, oldName)
	if _, exists := f.events[oldK]; !exists {
		return domain.ErrNotFound
	}
	newK := keyOf(e.Schema, e.Name)
	if newK != oldK {
		if _, collides := f.events[newK]; collides {
			return domain.ErrAlreadyExists
		}
		delete(f.events, oldK)
	}
	cp := *e
	f.events[newK] = &cp
	return nil
}

func (f *fakeGateway) PersistDrop(_ context.Context, schema, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := keyOf(schema, name)
	if _, exists := f.events[k]; !exists {
		return domain.ErrNotFound
	}
	delete(f.events, k)
	return nil
}

func (f *fakeGateway) PersistDropSchema(_ context.Context, schema string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k, e := range f.events {
		if e.Schema == schema {
			delete(f.events, k)
		}
	}
	return nil
}

func (f *fakeGateway) UpdateTiming(_ context.Context, e *domain.EventRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := keyOf(e.Schema, e.Name)
	existing, ok := f.events[k]
	if !ok {
		return domain.ErrNotFound
	}
	existing.Status = e.Status
	existing.LastExecuted = e.LastExecuted
	existing.ExecuteAt = e.ExecuteAt
	existing.ExecutionCount = e.ExecutionCount
	return nil
}

type noopDispatcher struct{}

func (noopDispatcher) Dispatch(string, string) {}

func newTestFacade() (*facade.Facade, *fakeGateway) {
	gw := newFakeGateway()
	queue := activationqueue.New()
	loop := schedulerloop.New(queue, noopDispatcher{}, slog.Default(), time.Second)
	return facade.New(gw, queue, loop), gw
}

func TestCreate_PersistsAndEnqueues(t *testing.T) {
	f, gw := newTestFacade()

	e := &domain.EventRecord{
		Schema: "s", Name: "e", Definer: "u@h", Body: "http://example",
		Schedule: domain.Schedule{Kind: domain.KindOneShot, ExecuteAt: time.Now().UTC().Add(time.Hour)},
	}

	if _, err := f.Create(context.Background(), e, false); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := gw.Load(context.Background(), "s", "e"); err != nil {
		t.Fatalf("expected event persisted, load failed: %v", err)
	}
	if n := f.DumpInternalStatus().QueueElements; n != 1 {
		t.Fatalf("expected event enqueued, queue holds %d elements", n)
	}
}

func TestCreate_DuplicateFails(t *testing.T) {
	f, _ := newTestFacade()
	e := &domain.EventRecord{
		Schema: "s", Name: "e", Definer: "u@h", Body: "http://example",
		Schedule: domain.Schedule{Kind: domain.KindOneShot, ExecuteAt: time.Now().UTC().Add(time.Hour)},
	}

	if _, err := f.Create(context.Background(), e, false); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := f.Create(context.Background(), &domain.EventRecord{
		Schema: "s", Name: "e", Definer: "u@h", Body: "http://example",
		Schedule: domain.Schedule{Kind: domain.KindOneShot, ExecuteAt: time.Now().UTC().Add(time.Hour)},
	}, false)
	if !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestCreate_IfNotExists_WarnsInsteadOfFailing(t *testing.T) {
	f, _ := newTestFacade()
	e := &domain.EventRecord{
		Schema: "s", Name: "e", Definer: "u@h", Body: "http://example",
		Schedule: domain.Schedule{Kind: domain.KindOneShot, ExecuteAt: time.Now().UTC().Add(time.Hour)},
	}

	if _, err := f.Create(context.Background(), e, false); err != nil {
		t.Fatalf("first create: %v", err)
	}
	warning, err := f.Create(context.Background(), &domain.EventRecord{
		Schema: "s", Name: "e", Definer: "u@h", Body: "http://example",
		Schedule: domain.Schedule{Kind: domain.KindOneShot, ExecuteAt: time.Now().UTC().Add(time.Hour)},
	}, true)
	if err != nil {
		t.Fatalf("expected IF NOT EXISTS to succeed, got %v", err)
	}
	if warning == "" {
		t.Fatal("expected a warning for the duplicate create")
	}
}

func TestCreate_RejectsMicrosecondInterval(t *testing.T) {
	f, _ := newTestFacade()
	e := &domain.EventRecord{
		Schema: "s", Name: "e", Definer: "u@h", Body: "http://example",
		Schedule: domain.Schedule{Kind: domain.KindRecurring, Expression: 10, Unit: domain.IntervalMicrosecond},
	}
	_, err := f.Create(context.Background(), e, false)
	if !errors.Is(err, domain.ErrMicrosecondUnsupported) {
		t.Fatalf("expected ErrMicrosecondUnsupported, got %v", err)
	}
}

func TestDrop_RemovesFromCatalog(t *testing.T) {
	f, gw := newTestFacade()
	e := &domain.EventRecord{
		Schema: "s", Name: "e", Definer: "u@h", Body: "http://example",
		Schedule: domain.Schedule{Kind: domain.KindOneShot, ExecuteAt: time.Now().UTC().Add(time.Hour)},
	}
	if _, err := f.Create(context.Background(), e, false); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.Drop(context.Background(), "s", "e", false); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if _, err := gw.Load(context.Background(), "s", "e"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after drop, got %v", err)
	}
}

func TestDrop_IfExists_WarnsInsteadOfFailing(t *testing.T) {
	f, _ := newTestFacade()
	warning, err := f.Drop(context.Background(), "s", "missing", true)
	if err != nil {
		t.Fatalf("expected IF EXISTS to succeed, got %v", err)
	}
	if warning == "" {
		t.Fatal("expected a warning for the missing drop")
	}
}

func TestDrop_WithoutIfExistsFailsOnMissing(t *testing.T) {
	f, _ := newTestFacade()
	_, err := f.Drop(context.Background(), "s", "missing", false)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdate_UnknownEventFails(t *testing.T) {
	f, _ := newTestFacade()
	e := &domain.EventRecord{
		Schema: "s", Name: "missing", Definer: "u@h", Body: "http://example",
		Schedule: domain.Schedule{Kind: domain.KindOneShot, ExecuteAt: time.Now().UTC().Add(time.Hour)},
	}
	err := f.Update(context.Background(), "s", "missing", e)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdate_Rename(t *testing.T) {
	// S5 — Rename: create E6 in db1, update(("db1","E6"), ("db2","E7")).
	f, gw := newTestFacade()
	e6 := &domain.EventRecord{
		Schema: "db1", Name: "E6", Definer: "u@h", Body: "http://example",
		Schedule: domain.Schedule{Kind: domain.KindOneShot, ExecuteAt: time.Now().UTC().Add(time.Hour)},
	}
	if _, err := f.Create(context.Background(), e6, false); err != nil {
		t.Fatalf("create: %v", err)
	}

	e7 := &domain.EventRecord{
		Schema: "db2", Name: "E7", Definer: "u@h", Body: "http://example",
		Schedule: domain.Schedule{Kind: domain.KindOneShot, ExecuteAt: time.Now().UTC().Add(time.Hour)},
	}
	if err := f.Update(context.Background(), "db1", "E6", e7); err != nil {
		t.Fatalf("rename update: %v", err)
	}

	if _, err := gw.Load(context.Background(), "db1", "E6"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected old identity gone, got %v", err)
	}
	if _, err := gw.Load(context.Background(), "db2", "E7"); err != nil {
		t.Fatalf("expected new identity present, got %v", err)
	}
}

func TestShowCreate_RendersOneShotAndRecurring(t *testing.T) {
	f, _ := newTestFacade()

	oneShot := &domain.EventRecord{
		Schema: "s", Name: "once", Definer: "u@h", Body: "http://example",
		Schedule: domain.Schedule{Kind: domain.KindOneShot, ExecuteAt: time.Now().UTC().Add(time.Hour)},
	}
	if _, err := f.Create(context.Background(), oneShot, false); err != nil {
		t.Fatalf("create one-shot: %v", err)
	}
	ddl, err := f.ShowCreate(context.Background(), "s", "once")
	if err != nil {
		t.Fatalf("show create: %v", err)
	}
	if ddl == "" {
		t.Fatal("expected non-empty DDL")
	}

	recurring := &domain.EventRecord{
		Schema: "s", Name: "daily", Definer: "u@h", Body: "http://example",
		Schedule: domain.Schedule{Kind: domain.KindRecurring, Expression: 1, Unit: domain.IntervalDay},
	}
	if _, err := f.Create(context.Background(), recurring, false); err != nil {
		t.Fatalf("create recurring: %v", err)
	}
	ddl, err = f.ShowCreate(context.Background(), "s", "daily")
	if err != nil {
		t.Fatalf("show create recurring: %v", err)
	}
	if ddl == "" {
		t.Fatal("expected non-empty DDL for recurring event")
	}
}
