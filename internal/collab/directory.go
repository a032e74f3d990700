package collab

import (
	"fmt"
	"sync"
)

// Directory is a thread-safe collaborator lookup table. Registration happens
// at startup; Resolve is called from executor workers.
type Directory struct {
	collabs map[string]Collaborator
	mu      sync.RWMutex
}

// NewDirectory creates an empty Directory.
func NewDirectory() *Directory {
	return &Directory{collabs: make(map[string]Collaborator)}
}

// Register adds a collaborator under the given id, replacing any existing one.
func (d *Directory) Register(id string, c Collaborator) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.collabs[id] = c
}

// Resolve returns the collaborator registered under id.
func (d *Directory) Resolve(id string) (Collaborator, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.collabs[id]
	if !ok {
		return nil, fmt.Errorf("collab: no collaborator registered for %q", id)
	}
	return c, nil
}

// IDs returns the registered collaborator ids.
func (d *Directory) IDs() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ids := make([]string, 0, len(d.collabs))
	for id := range d.collabs {
		ids = append(ids, id)
	}
	return ids
}

// Verify Directory implements Resolver at compile time.
var _ Resolver = (*Directory)(nil)
