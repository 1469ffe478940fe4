package workspace

import (
	"fmt"
	"sort"
	"sync"
)

// Registry is a concurrency-safe store of workspace descriptors keyed by id.
// The most recently recorded workspace doubles as the "current" one for
// operator commands that do not name a workspace explicitly.
type Registry struct {
	mu        sync.Mutex
	byID      map[string]Descriptor
	currentID string
}

func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]Descriptor)}
}

// Record stores a descriptor and makes it the current workspace.
func (r *Registry) Record(d Descriptor) error {
	if d.ID == "" {
		return fmt.Errorf("workspace id is empty")
	}
	if !d.Language.Valid() {
		return fmt.Errorf("workspace %q has invalid language %q", d.ID, d.Language)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[d.ID] = d.clone()
	r.currentID = d.ID
	return nil
}

// Get returns an independent copy of the descriptor for id.
func (r *Registry) Get(id string) (Descriptor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.byID[id]
	if !ok {
		return Descriptor{}, false
	}
	return d.clone(), true
}

// Current returns an independent copy of the most recently recorded
// descriptor.
func (r *Registry) Current() (Descriptor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.byID[r.currentID]
	if !ok {
		return Descriptor{}, false
	}
	return d.clone(), true
}

// Count returns the number of recorded workspaces.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

// IDs returns the recorded workspace ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
