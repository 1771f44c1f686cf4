// Package registry tracks every download the engine knows about: its
// persisted metadata and its live control block. The two are guarded
// by independent mutexes so a metadata read never blocks on a control
// signal write, or vice versa.
package registry

import (
	"sync"

	"fluxdl/internal/model"
)

// Registry is the single shared lookup table the engine, the command
// surface, and the control server all read and write.
type Registry struct {
	metaMu   sync.RWMutex
	metadata map[string]*model.Metadata

	controlMu sync.RWMutex
	controls  map[string]*model.ControlBlock
}

func New() *Registry {
	return &Registry{
		metadata: make(map[string]*model.Metadata),
		controls: make(map[string]*model.ControlBlock),
	}
}

// Register adds a download to both maps. Callers hold no other lock
// when calling this.
func (r *Registry) Register(metadata *model.Metadata, control *model.ControlBlock) {
	r.metaMu.Lock()
	r.metadata[metadata.ID] = metadata
	r.metaMu.Unlock()

	r.controlMu.Lock()
	r.controls[metadata.ID] = control
	r.controlMu.Unlock()
}

func (r *Registry) Metadata(id string) (*model.Metadata, bool) {
	r.metaMu.RLock()
	defer r.metaMu.RUnlock()
	m, ok := r.metadata[id]
	return m, ok
}

func (r *Registry) Control(id string) (*model.ControlBlock, bool) {
	r.controlMu.RLock()
	defer r.controlMu.RUnlock()
	c, ok := r.controls[id]
	return c, ok
}

// UpdateMetadata replaces the stored metadata for id. It is a no-op if
// id was never registered.
func (r *Registry) UpdateMetadata(id string, metadata *model.Metadata) {
	r.metaMu.Lock()
	defer r.metaMu.Unlock()
	if _, ok := r.metadata[id]; ok {
		r.metadata[id] = metadata
	}
}

// Remove drops id from both maps. Safe to call on an absent id.
func (r *Registry) Remove(id string) {
	r.metaMu.Lock()
	delete(r.metadata, id)
	r.metaMu.Unlock()

	r.controlMu.Lock()
	delete(r.controls, id)
	r.controlMu.Unlock()
}

// List returns a snapshot of all registered metadata.
func (r *Registry) List() []*model.Metadata {
	r.metaMu.RLock()
	defer r.metaMu.RUnlock()
	out := make([]*model.Metadata, 0, len(r.metadata))
	for _, m := range r.metadata {
		out = append(out, m)
	}
	return out
}
