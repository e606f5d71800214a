// Package cooldown implements the Scheduler Actor's min-heap of
// credentials awaiting reactivation, grounded in the teacher's
// internal/credential/health_checker.go ready-again-at bookkeeping but
// replacing its health-score heuristic with a plain container/heap
// ordered on a fixed wall-clock deadline.
package cooldown

import (
	"container/heap"
	"time"

	"github.com/yeshanjun/pollux/internal/credential"
)

type entry struct {
	key      credential.Key
	provider credential.Provider
	readyAt  time.Time
	index    int
}

// innerHeap implements container/heap.Interface ordered by readyAt ascending.
type innerHeap []*entry

func (h innerHeap) Len() int            { return len(h) }
func (h innerHeap) Less(i, j int) bool  { return h[i].readyAt.Before(h[j].readyAt) }
func (h innerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
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

// Heap is a min-heap of CooldownEntry keyed by ReadyAt, with O(1) lookup
// by credential Key so a credential already cooling down is never pushed
// twice. Not safe for concurrent use; intended to be owned exclusively
// by the Scheduler Actor goroutine.
type Heap struct {
	h       innerHeap
	byKey   map[credential.Key]*entry
}

func New() *Heap {
	return &Heap{byKey: make(map[credential.Key]*entry)}
}

// Push schedules key for reactivation at readyAt. If key is already
// cooling down, its deadline is updated in place (no duplicate entries).
func (c *Heap) Push(key credential.Key, provider credential.Provider, readyAt time.Time) {
	if e, ok := c.byKey[key]; ok {
		e.readyAt = readyAt
		heap.Fix(&c.h, e.index)
		return
	}
	e := &entry{key: key, provider: provider, readyAt: readyAt}
	heap.Push(&c.h, e)
	c.byKey[key] = e
}

// Len reports how many credentials are currently cooling down.
func (c *Heap) Len() int { return c.h.Len() }

// NextReadyAt returns the earliest deadline in the heap, and false if empty.
func (c *Heap) NextReadyAt() (time.Time, bool) {
	if c.h.Len() == 0 {
		return time.Time{}, false
	}
	return c.h[0].readyAt, true
}

// DrainReady pops every entry whose ReadyAt is at or before now, in
// ascending ReadyAt order, removing them from the heap.
func (c *Heap) DrainReady(now time.Time) []credential.CooldownEntry {
	var out []credential.CooldownEntry
	for c.h.Len() > 0 && !c.h[0].readyAt.After(now) {
		e := heap.Pop(&c.h).(*entry)
		delete(c.byKey, e.key)
		out = append(out, credential.CooldownEntry{
			Key:      e.key,
			ReadyAt:  e.readyAt,
			Provider: e.provider,
		})
	}
	return out
}

// Remove drops key from the heap if present, e.g. when a credential is
// disabled while cooling down. Reports whether it was present.
func (c *Heap) Remove(key credential.Key) bool {
	e, ok := c.byKey[key]
	if !ok {
		return false
	}
	heap.Remove(&c.h, e.index)
	delete(c.byKey, key)
	return true
}

// Contains reports whether key is currently cooling down.
func (c *Heap) Contains(key credential.Key) bool {
	_, ok := c.byKey[key]
	return ok
}
