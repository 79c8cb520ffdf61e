// Package activationqueue implements the scheduler's priority queue: a
// binary heap of events ordered so the next one due to fire is always at
// the top, with DISABLED entries sunk to the back regardless of timing.
package activationqueue

import (
	"container/heap"
	"sync"
	"time"

	"github.com/arjunbhagat/eventsched/internal/domain"
)

type key struct {
	schema, name string
}

// entry is the queue's own view of an event: the catalog record plus the
// heap-specific bookkeeping spec.md's QueueEntry needs that does not
// belong on domain.EventRecord itself.
type entry struct {
	record  *domain.EventRecord
	dropped bool
	index   int
}

func keyOf(e *domain.EventRecord) key { return key{e.Schema, e.Name} }

// less orders entries by: DISABLED/REPLICA_DISABLED always sinks below
// ENABLED, regardless of execute_at; otherwise ascending by execute_at,
// with a nil execute_at (never fires) treated as infinitely far away.
func less(a, b *entry) bool {
	aEnabled := a.record.Status == domain.StatusEnabled
	bEnabled := b.record.Status == domain.StatusEnabled
	if aEnabled != bEnabled {
		return aEnabled
	}
	if !aEnabled {
		// Both disabled: neither is ordered before the other.
		return false
	}
	at, bt := a.record.ExecuteAt, b.record.ExecuteAt
	if at == nil && bt == nil {
		return false
	}
	if at == nil {
		return false
	}
	if bt == nil {
		return true
	}
	return at.Before(*bt)
}

// innerHeap implements container/heap.Interface over *entry.
type innerHeap []*entry

func (h innerHeap) Len() int            { return len(h) }
func (h innerHeap) Less(i, j int) bool  { return less(h[i], h[j]) }
func (h innerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *innerHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *innerHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// Queue is the concurrency-safe activation queue described in spec.md
// §4.1 and §5: one mutex guards the heap and the name index, and a
// condition variable wakes the driver task whenever the top of the heap
// could have changed.
type Queue struct {
	mu    sync.Mutex
	cond  *sync.Cond
	heap  innerHeap
	byKey map[key]*entry
}

// New returns an empty queue.
func New() *Queue {
	q := &Queue{byKey: make(map[key]*entry)}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Len reports the number of live (non-dropped) entries currently held.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.byKey)
}

// Create inserts a brand-new event. It is the caller's responsibility to
// have already confirmed the (schema, name) pair is not already present
// in the catalog; Create overwrites any stale in-memory entry sharing the
// same key, matching the "replace on conflict" behavior of the original
// implementation's queue_element when event identity collides.
func (q *Queue) Create(e *domain.EventRecord) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.upsertLocked(e)
	q.cond.Broadcast()
}

// Update removes any existing entry identified by (oldSchema, oldName),
// then inserts e as a fresh entry — spec.md §4.1's "removes any existing
// entry with same (schema,name), then behaves as create". Passing
// e.Schema/e.Name as the old identity is the common case of reseating an
// entry after it fires; a differing old identity implements a rename,
// moving the entry to its new (schema, name) key in one call.
func (q *Queue) Update(oldSchema, oldName string, e *domain.EventRecord) {
	q.mu.Lock()
	defer q.mu.Unlock()

	oldKey := key{oldSchema, oldName}
	if ent, ok := q.byKey[oldKey]; ok {
		ent.dropped = true
		delete(q.byKey, oldKey)
	}
	q.upsertLocked(e)
	q.cond.Broadcast()
}

func (q *Queue) upsertLocked(e *domain.EventRecord) {
	k := keyOf(e)
	if existing, ok := q.byKey[k]; ok {
		existing.record = e
		existing.dropped = false
		heap.Fix(&q.heap, existing.index)
		return
	}
	ent := &entry{record: e}
	q.byKey[k] = ent
	heap.Push(&q.heap, ent)
}

// Drop marks (schema, name) dropped. Per the original implementation's
// drop_schema_events behavior, this does not broadcast: the entry is
// removed from the name index immediately, but physically unlinking it
// from the heap is deferred to the next pop, which skips dropped
// entries. The driver notices on its next natural wakeup.
func (q *Queue) Drop(schema, name string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	k := key{schema, name}
	if ent, ok := q.byKey[k]; ok {
		ent.dropped = true
		delete(q.byKey, k)
	}
}

// DropSchema marks every event belonging to schema dropped, mirroring
// Event_queue::drop_schema_events: a linear scan, no broadcast.
func (q *Queue) DropSchema(schema string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for k, ent := range q.byKey {
		if k.schema == schema {
			ent.dropped = true
			delete(q.byKey, k)
		}
	}
}

// RecalculateAll recomputes ComputeNextExecution for every live entry
// against now and re-heapifies. Entries marked dropped since the last
// recalculation are physically unlinked here rather than left for a
// lazy pop to discover later. After the re-heapify, DISABLED entries are
// removed by walking backward from the tail and stopping at the first
// entry that is not DISABLED, like event_queue.cc's backward walk; a
// DISABLED entry with a non-DISABLED entry after it stays in the heap.
func (q *Queue) RecalculateAll(now time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()

	live := q.heap[:0]
	for _, ent := range q.heap {
		if ent.dropped {
			delete(q.byKey, keyOf(ent.record))
			continue
		}
		_ = ent.record.ComputeNextExecution(now)
		live = append(live, ent)
	}
	for i, ent := range live {
		ent.index = i
	}
	q.heap = live
	heap.Init(&q.heap)

	for n := len(q.heap); n > 0 && q.heap[n-1].record.Status == domain.StatusDisabled; n = len(q.heap) {
		delete(q.byKey, keyOf(q.heap[n-1].record))
		heap.Remove(&q.heap, n-1)
	}

	q.cond.Broadcast()
}

// PopIfDue removes and returns the top entry if it is ENABLED and its
// execute_at is not after now. Dropped entries encountered at the top
// are discarded silently before the real check is made, which is how
// Drop's deferred unlinking actually takes effect.
func (q *Queue) PopIfDue(now time.Time) (*domain.EventRecord, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.popIfDueLocked(now)
}

func (q *Queue) popIfDueLocked(now time.Time) (*domain.EventRecord, bool) {
	for len(q.heap) > 0 && q.heap[0].dropped {
		heap.Pop(&q.heap)
	}
	if len(q.heap) == 0 {
		return nil, false
	}
	top := q.heap[0]
	if top.record.Status != domain.StatusEnabled {
		return nil, false
	}
	if top.record.ExecuteAt == nil || top.record.ExecuteAt.After(now) {
		return nil, false
	}
	heap.Pop(&q.heap)
	delete(q.byKey, keyOf(top.record))
	return top.record, true
}

// PeekDeadline returns the execute_at of the top live, enabled entry, or
// ok=false if the queue holds nothing that will ever fire.
func (q *Queue) PeekDeadline() (deadline time.Time, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.heap) > 0 && q.heap[0].dropped {
		heap.Pop(&q.heap)
	}
	if len(q.heap) == 0 {
		return time.Time{}, false
	}
	top := q.heap[0]
	if top.record.Status != domain.StatusEnabled || top.record.ExecuteAt == nil {
		return time.Time{}, false
	}
	return *top.record.ExecuteAt, true
}

// WaitUntil blocks until either the condition variable is signaled (a
// mutation may have changed the top) or deadline passes, whichever comes
// first. It returns after re-acquiring no lock — callers re-check queue
// state via PopIfDue/PeekDeadline on return.
func (q *Queue) WaitUntil(deadline time.Time) {
	// The lock is taken before the timer is armed, so the timer's
	// broadcast cannot run until Wait has released the lock.
	q.mu.Lock()
	timer := time.AfterFunc(time.Until(deadline), func() {
		q.mu.Lock()
		q.cond.Broadcast()
		q.mu.Unlock()
	})
	defer timer.Stop()

	q.cond.Wait()
	q.mu.Unlock()
}

// DumpInternalStatus reports the fields Event_queue::dump_internal_status
// exposes: element count and the next activation deadline, if any.
type DumpInternalStatus struct {
	Elements       int
	NextActivation *time.Time
}

func (q *Queue) DumpInternalStatus() DumpInternalStatus {
	q.mu.Lock()
	defer q.mu.Unlock()
	status := DumpInternalStatus{Elements: len(q.heap)}
	for len(q.heap) > 0 && q.heap[0].dropped {
		heap.Pop(&q.heap)
	}
	if len(q.heap) > 0 {
		if top := q.heap[0]; top.record.Status == domain.StatusEnabled && top.record.ExecuteAt != nil {
			at := *top.record.ExecuteAt
			status.NextActivation = &at
		}
	}
	return status
}
