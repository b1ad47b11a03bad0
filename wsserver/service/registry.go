package service

import "sync"

// Registry is a thread-safe set of services keyed by id, with a secondary
// name index to reject duplicate names at registration time.
type Registry struct {
	mu       sync.RWMutex
	byID     map[ID]*Service
	byName   map[string]*Service
}

func NewRegistry() *Registry {
	return &Registry{
		byID:   make(map[ID]*Service),
		byName: make(map[string]*Service),
	}
}

// Add registers a service, returning false if a service with the same id
// or name is already registered.
func (r *Registry) Add(s *Service) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[s.ID()]; exists {
		return false
	}
	if _, exists := r.byName[s.Name()]; exists {
		return false
	}
	r.byID[s.ID()] = s
	r.byName[s.Name()] = s
	return true
}

// Remove unregisters a service by id.
func (r *Registry) Remove(id ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, exists := r.byID[id]
	if !exists {
		return false
	}
	delete(r.byID, id)
	delete(r.byName, s.Name())
	return true
}

// Get looks up a service by id.
func (r *Registry) Get(id ID) (*Service, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[id]
	return s, ok
}

// All returns a snapshot of every registered service.
func (r *Registry) All() []*Service {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Service, 0, len(r.byID))
	for _, s := range r.byID {
		out = append(out, s)
	}
	return out
}
