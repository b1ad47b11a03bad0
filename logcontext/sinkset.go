package logcontext

import (
	"sync"
	"sync/atomic"
)

// sinkSet is a copy-on-write collection of sinks attached to a single
// channel (or, for the set held by a Context, to every channel in that
// context). Reads never block: Load swaps in an *unchanging* slice, so a
// caller iterating over it is unaffected by concurrent mutation. Writers
// serialize on mu and build a new slice before publishing it, mirroring the
// CowVec<T> (ArcSwap + Mutex) pattern the set is grounded on.
type sinkSet struct {
	ptr atomic.Pointer[[]Sink]
	mu  sync.Mutex
}

func newSinkSet() *sinkSet {
	s := &sinkSet{}
	empty := make([]Sink, 0)
	s.ptr.Store(&empty)
	return s
}

// load returns the current snapshot. Safe to range over without holding any
// lock; the returned slice is never mutated in place.
func (s *sinkSet) load() []Sink {
	return *s.ptr.Load()
}

func (s *sinkSet) isEmpty() bool {
	return len(s.load()) == 0
}

func (s *sinkSet) len() int {
	return len(s.load())
}

// add attaches sink if it isn't already present, returning true if it was
// newly added.
func (s *sinkSet) add(sink Sink) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.load()
	for _, existing := range cur {
		if existing == sink {
			return false
		}
	}
	next := make([]Sink, len(cur), len(cur)+1)
	copy(next, cur)
	next = append(next, sink)
	s.ptr.Store(&next)
	return true
}

// remove detaches sink, returning true if it was present.
func (s *sinkSet) remove(sink Sink) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.load()
	idx := -1
	for i, existing := range cur {
		if existing == sink {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	next := make([]Sink, 0, len(cur)-1)
	next = append(next, cur[:idx]...)
	next = append(next, cur[idx+1:]...)
	s.ptr.Store(&next)
	return true
}

func (s *sinkSet) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	empty := make([]Sink, 0)
	s.ptr.Store(&empty)
}

// forEach calls fn for every sink in the current snapshot, in order. fn's
// own errors are the caller's responsibility to handle; forEach itself
// never short-circuits on a per-sink error.
func (s *sinkSet) forEach(fn func(Sink)) {
	for _, sink := range s.load() {
		fn(sink)
	}
}
