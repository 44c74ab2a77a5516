package catalog

import (
	"errors"
	"sync"

	"github.com/tipai/modelkit/pkg/ledger"
)

// ErrModelNotFound is a sentinel error returned by Registry.Get and
// Registry.Select if the model is not part of the catalog.
var ErrModelNotFound = errors.New("catalog: model not found")

// Registry is the single source of truth for model descriptors. It holds the
// static catalog merged with the latest ledger snapshot it has been given.
// The registry performs no I/O of its own: callers apply ledger snapshots via
// RefreshFromLedger, once at startup and after every ledger write.
type Registry struct {
	// mu guards all subsequent fields.
	mu sync.RWMutex
	// order preserves the catalog display order.
	order []string
	// models indexes descriptors by model ID.
	models map[string]ModelDescriptor
	// selected is the ID of the currently selected model, or empty. Selection
	// is plain UI state carried here for convenience.
	selected string
}

// NewRegistry creates a registry over the given static catalog. Download state
// carried on the input descriptors is discarded; descriptors start as not
// downloaded until a ledger snapshot is applied.
func NewRegistry(models []ModelDescriptor) *Registry {
	r := &Registry{
		order:  make([]string, 0, len(models)),
		models: make(map[string]ModelDescriptor, len(models)),
	}
	for _, m := range models {
		m.IsDownloaded = false
		m.DownloadProgress = 0
		r.order = append(r.order, m.ID)
		r.models[m.ID] = m
	}
	return r
}

// List returns all descriptors in catalog order.
func (r *Registry) List() []ModelDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]ModelDescriptor, 0, len(r.order))
	for _, id := range r.order {
		result = append(result, r.models[id])
	}
	return result
}

// Get returns the descriptor for the given model ID.
func (r *Registry) Get(modelID string) (ModelDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[modelID]
	if !ok {
		return ModelDescriptor{}, ErrModelNotFound
	}
	return m, nil
}

// RefreshFromLedger recomputes every descriptor's download state from a ledger
// snapshot. Models without a ledger entry read as not downloaded with zero
// progress. A completed entry always projects progress 1, regardless of the
// recorded ratio.
func (r *Registry) RefreshFromLedger(entries map[string]ledger.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, m := range r.models {
		entry, ok := entries[id]
		if !ok {
			m.IsDownloaded = false
			m.DownloadProgress = 0
		} else {
			m.IsDownloaded = entry.IsDownloaded
			if entry.IsDownloaded {
				m.DownloadProgress = 1
			} else {
				m.DownloadProgress = entry.DownloadProgress
			}
		}
		r.models[id] = m
	}
}

// Select marks the given model as the current UI selection.
func (r *Registry) Select(modelID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.models[modelID]; !ok {
		return ErrModelNotFound
	}
	r.selected = modelID
	return nil
}

// Selected returns the currently selected descriptor, if any.
func (r *Registry) Selected() (ModelDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[r.selected]
	return m, ok
}
