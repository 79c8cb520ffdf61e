package activationqueue_test

import (
	"testing"
	"time"

	"github.com/arjunbhagat/eventsched/internal/activationqueue"
	"github.com/arjunbhagat/eventsched/internal/domain"
)

func enabledAt(schema, name string, at time.Time) *domain.EventRecord {
	return &domain.EventRecord{
		Schema:    schema,
		Name:      name,
		Status:    domain.StatusEnabled,
		ExecuteAt: &at,
	}
}

func TestPopIfDue_OrdersByExecuteAtAscending(t *testing.T) {
	q := activationqueue.New()
	base := time.Now().UTC()

	q.Create(enabledAt("s", "third", base.Add(3*time.Minute)))
	q.Create(enabledAt("s", "first", base.Add(1*time.Minute)))
	q.Create(enabledAt("s", "second", base.Add(2*time.Minute)))

	far := base.Add(10 * time.Minute)

	first, ok := q.PopIfDue(far)
	if !ok || first.Name != "first" {
		t.Fatalf("expected 'first' to pop, got %+v ok=%v", first, ok)
	}
	second, ok := q.PopIfDue(far)
	if !ok || second.Name != "second" {
		t.Fatalf("expected 'second' to pop, got %+v ok=%v", second, ok)
	}
	third, ok := q.PopIfDue(far)
	if !ok || third.Name != "third" {
		t.Fatalf("expected 'third' to pop, got %+v ok=%v", third, ok)
	}
}

func TestPopIfDue_NotYetDueReturnsFalse(t *testing.T) {
	q := activationqueue.New()
	base := time.Now().UTC()
	q.Create(enabledAt("s", "later", base.Add(time.Hour)))

	_, ok := q.PopIfDue(base)
	if ok {
		t.Fatal("expected not due yet")
	}
}

func TestPopIfDue_DisabledSinksRegardlessOfExecuteAt(t *testing.T) {
	q := activationqueue.New()
	base := time.Now().UTC()

	disabled := &domain.EventRecord{
		Schema: "s", Name: "disabled-but-earliest",
		Status:    domain.StatusDisabled,
		ExecuteAt: &base,
	}
	enabled := enabledAt("s", "enabled-later", base.Add(time.Minute))

	q.Create(disabled)
	q.Create(enabled)

	far := base.Add(time.Hour)
	popped, ok := q.PopIfDue(far)
	if !ok || popped.Name != "enabled-later" {
		t.Fatalf("expected the enabled entry to pop first, got %+v ok=%v", popped, ok)
	}

	// The disabled entry must never be surfaced as due.
	_, ok = q.PopIfDue(far)
	if ok {
		t.Fatal("disabled entry should never be returned as due")
	}
}

func TestDrop_RemovesFromFutureDequeue(t *testing.T) {
	q := activationqueue.New()
	base := time.Now().UTC()

	q.Create(enabledAt("s", "keep", base.Add(time.Minute)))
	q.Create(enabledAt("s", "drop-me", base.Add(2*time.Minute)))

	q.Drop("s", "drop-me")

	far := base.Add(time.Hour)
	first, ok := q.PopIfDue(far)
	if !ok || first.Name != "keep" {
		t.Fatalf("expected 'keep' to pop, got %+v ok=%v", first, ok)
	}
	_, ok = q.PopIfDue(far)
	if ok {
		t.Fatal("dropped entry must not be returned")
	}
}

func TestDropSchema_RemovesOnlyMatchingSchema(t *testing.T) {
	q := activationqueue.New()
	base := time.Now().UTC()

	q.Create(enabledAt("a", "x", base.Add(time.Minute)))
	q.Create(enabledAt("b", "y", base.Add(2*time.Minute)))

	q.DropSchema("a")

	far := base.Add(time.Hour)
	e, ok := q.PopIfDue(far)
	if !ok || e.Schema != "b" {
		t.Fatalf("expected schema b's event to remain, got %+v ok=%v", e, ok)
	}
	if q.Len() != 0 {
		t.Fatalf("expected queue empty after popping the only remaining entry, len=%d", q.Len())
	}
}

func TestUpdate_ReplacesExistingEntryByKey(t *testing.T) {
	q := activationqueue.New()
	base := time.Now().UTC()

	q.Create(enabledAt("s", "e", base.Add(time.Hour)))
	q.Update("s", "e", enabledAt("s", "e", base.Add(time.Minute)))

	if q.Len() != 1 {
		t.Fatalf("expected update to replace rather than duplicate, len=%d", q.Len())
	}

	far := base.Add(2 * time.Hour)
	popped, ok := q.PopIfDue(far)
	if !ok {
		t.Fatal("expected entry to be due")
	}
	if !popped.ExecuteAt.Equal(base.Add(time.Minute)) {
		t.Fatalf("expected updated execute_at to take effect, got %v", popped.ExecuteAt)
	}
}

func TestRecalculateAll_TrimsDisabledFromTail(t *testing.T) {
	q := activationqueue.New()
	now := time.Now().UTC()

	// A one-shot event whose execute_at has already passed: recalculating
	// against `now` must flip it to DISABLED and it must never surface.
	stale := &domain.EventRecord{
		Schema: "s", Name: "stale",
		Status:   domain.StatusEnabled,
		Schedule: domain.Schedule{Kind: domain.KindOneShot, ExecuteAt: now.Add(-time.Hour)},
	}
	fresh := &domain.EventRecord{
		Schema: "s", Name: "fresh",
		Status:   domain.StatusEnabled,
		Schedule: domain.Schedule{Kind: domain.KindOneShot, ExecuteAt: now.Add(time.Minute)},
	}

	q.Create(stale)
	q.Create(fresh)
	q.RecalculateAll(now)

	far := now.Add(time.Hour)
	popped, ok := q.PopIfDue(far)
	if !ok || popped.Name != "fresh" {
		t.Fatalf("expected only 'fresh' to remain due, got %+v ok=%v", popped, ok)
	}
	_, ok = q.PopIfDue(far)
	if ok {
		t.Fatal("the stale, now-disabled entry must not surface")
	}
}

func TestPopThenUpdate_RecurringEventStaysLive(t *testing.T) {
	// §8.2: successive compute_next_execution calls are monotone, and a
	// still-ENABLED entry must come back into the queue after each firing
	// (spec.md §2, "either re-queues the entry or drops it").
	q := activationqueue.New()
	base := time.Now().UTC()

	at := base.Add(time.Minute)
	e := &domain.EventRecord{
		Schema: "s", Name: "recurring",
		Status: domain.StatusEnabled,
		Schedule: domain.Schedule{
			Kind: domain.KindRecurring, Expression: 1, Unit: domain.IntervalMinute, Starts: &base,
		},
		ExecuteAt: &at,
	}
	q.Create(e)

	far := base.Add(time.Hour)
	var fired []time.Time
	for i := 0; i < 5; i++ {
		popped, ok := q.PopIfDue(far)
		if !ok {
			t.Fatalf("round %d: expected entry to be due", i)
		}
		fired = append(fired, *popped.ExecuteAt)
		if err := popped.ComputeNextExecution(*popped.ExecuteAt); err != nil {
			t.Fatalf("round %d: compute next execution: %v", i, err)
		}
		if popped.Status != domain.StatusEnabled {
			t.Fatalf("round %d: expected still enabled, got %s", i, popped.Status)
		}
		q.Update(popped.Schema, popped.Name, popped)
	}

	for i := 1; i < len(fired); i++ {
		if !fired[i].After(fired[i-1]) {
			t.Fatalf("expected strictly increasing activations, got %v", fired)
		}
	}
	if q.Len() != 1 {
		t.Fatalf("expected the entry to still be live in the queue, len=%d", q.Len())
	}
}

func TestUpdate_RenameChangesIdentity(t *testing.T) {
	// S5 — Rename: update(("db1","E6"), ("db2","E7")) must make the old
	// identity unreachable and the new one poppable.
	q := activationqueue.New()
	base := time.Now().UTC()

	q.Create(enabledAt("db1", "E6", base.Add(time.Minute)))
	q.Update("db1", "E6", enabledAt("db2", "E7", base.Add(time.Minute)))

	far := base.Add(time.Hour)
	popped, ok := q.PopIfDue(far)
	if !ok || popped.Schema != "db2" || popped.Name != "E7" {
		t.Fatalf("expected (db2, E7) to pop, got %+v ok=%v", popped, ok)
	}
	if q.Len() != 0 {
		t.Fatalf("expected queue empty after popping the only entry, len=%d", q.Len())
	}
}

func TestPeekDeadline_ReflectsTopOfQueue(t *testing.T) {
	q := activationqueue.New()
	base := time.Now().UTC()

	if _, ok := q.PeekDeadline(); ok {
		t.Fatal("expected no deadline on empty queue")
	}

	q.Create(enabledAt("s", "a", base.Add(5*time.Minute)))
	q.Create(enabledAt("s", "b", base.Add(time.Minute)))

	deadline, ok := q.PeekDeadline()
	if !ok {
		t.Fatal("expected a deadline")
	}
	if !deadline.Equal(base.Add(time.Minute)) {
		t.Fatalf("expected deadline to be the earliest entry, got %v", deadline)
	}
}
