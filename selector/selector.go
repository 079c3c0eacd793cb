package selector

import "sync"

// Registry assigns stable integer selectors to virtual method identities.
//
// A selector identifies a method by name and descriptor, independent of the
// class declaring it, so an override and the method it overrides share one
// selector and dispatch can index tables instead of comparing strings.
//
// The registry is append-only and safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	byKey map[key]int
	byID  []key
}

type key struct {
	name       string
	descriptor string
}

func NewRegistry() *Registry {
	return &Registry{
		byKey: make(map[key]int),
		byID:  make([]key, 0, 256),
	}
}

// Assign returns the selector for name+descriptor, creating it if needed.
func (r *Registry) Assign(name, descriptor string) int {
	k := key{name, descriptor}

	r.mu.RLock()
	if id, ok := r.byKey[k]; ok {
		r.mu.RUnlock()
		return id
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock
	if id, ok := r.byKey[k]; ok {
		return id
	}

	id := len(r.byID)
	r.byKey[k] = id
	r.byID = append(r.byID, k)
	return id
}

// Lookup returns the selector for name+descriptor, or -1 if none was assigned.
func (r *Registry) Lookup(name, descriptor string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if id, ok := r.byKey[key{name, descriptor}]; ok {
		return id
	}
	return -1
}

// Method returns the name and descriptor behind a selector.
func (r *Registry) Method(id int) (name, descriptor string, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if id < 0 || id >= len(r.byID) {
		return "", "", false
	}
	k := r.byID[id]
	return k.name, k.descriptor, true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
