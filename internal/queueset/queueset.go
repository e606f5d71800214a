// Package queueset implements the Scheduler Actor's per-provider big/tiny
// FIFO queues, grounded in the teacher's internal/credential/manager_selection.go
// rotation ordering but reshaped into the spec's "dedup across two queues"
// design rather than the teacher's single weighted-selection list.
package queueset

import (
	"container/list"

	"github.com/yeshanjun/pollux/internal/credential"
)

// Tag selects which of the two FIFOs a request draws from.
type Tag = credential.QueueTag

const (
	Big  = credential.QueueBig
	Tiny = credential.QueueTiny
)

type fifo struct {
	order    *list.List
	elements map[credential.Key]*list.Element
}

func newFIFO() *fifo {
	return &fifo{order: list.New(), elements: make(map[credential.Key]*list.Element)}
}

func (f *fifo) pushTail(key credential.Key) {
	if _, ok := f.elements[key]; ok {
		return
	}
	f.elements[key] = f.order.PushBack(key)
}

func (f *fifo) popHead() (credential.Key, bool) {
	front := f.order.Front()
	if front == nil {
		return credential.Key{}, false
	}
	key := front.Value.(credential.Key)
	f.order.Remove(front)
	delete(f.elements, key)
	return key, true
}

func (f *fifo) remove(key credential.Key) {
	if elem, ok := f.elements[key]; ok {
		f.order.Remove(elem)
		delete(f.elements, key)
	}
}

func (f *fifo) len() int { return f.order.Len() }

// provider holds one provider's big and tiny queues.
type provider struct {
	big  *fifo
	tiny *fifo
}

// Set is the full Queue Set: one big/tiny pair per provider. A
// credential enqueued is pushed to both queues simultaneously;
// dequeuing from either removes it from both, preserving the "at most
// one runtime set" invariant. Not safe for concurrent use; owned
// exclusively by the Scheduler Actor goroutine.
type Set struct {
	providers map[credential.Provider]*provider
}

func New() *Set {
	return &Set{providers: make(map[credential.Provider]*provider)}
}

func (s *Set) providerFor(p credential.Provider) *provider {
	pr, ok := s.providers[p]
	if !ok {
		pr = &provider{big: newFIFO(), tiny: newFIFO()}
		s.providers[p] = pr
	}
	return pr
}

// Enqueue pushes key onto both the big and tiny queues for its provider.
// A no-op if key is already present in both.
func (s *Set) Enqueue(p credential.Provider, key credential.Key) {
	pr := s.providerFor(p)
	pr.big.pushTail(key)
	pr.tiny.pushTail(key)
}

// Dequeue pops the head of the requested queue and removes the same key
// from the sibling queue. Reports false if the requested queue is empty.
func (s *Set) Dequeue(p credential.Provider, tag Tag) (credential.Key, bool) {
	pr := s.providerFor(p)
	switch tag {
	case Big:
		key, ok := pr.big.popHead()
		if !ok {
			return credential.Key{}, false
		}
		pr.tiny.remove(key)
		return key, true
	default:
		key, ok := pr.tiny.popHead()
		if !ok {
			return credential.Key{}, false
		}
		pr.big.remove(key)
		return key, true
	}
}

// Remove drops key from both queues for its provider, e.g. when a
// credential is disabled while queued.
func (s *Set) Remove(p credential.Provider, key credential.Key) {
	pr := s.providerFor(p)
	pr.big.remove(key)
	pr.tiny.remove(key)
}

// Len reports queue depth for a provider/tag pair.
func (s *Set) Len(p credential.Provider, tag Tag) int {
	pr := s.providerFor(p)
	if tag == Big {
		return pr.big.len()
	}
	return pr.tiny.len()
}
