package ledger

import (
	"encoding/json"
	"sync"

	"github.com/tipai/modelkit/pkg/logging"
)

// storageKey is the single namespaced key under which the serialized mapping
// of all ledger entries is stored.
const storageKey = "downloadedModels"

// Entry is the durable download record for one model.
type Entry struct {
	// IsDownloaded indicates a completed artifact.
	IsDownloaded bool `json:"isDownloaded"`
	// DownloadProgress is the last recorded completion ratio in [0, 1].
	DownloadProgress float64 `json:"downloadProgress"`
}

// Update is a partial entry update. Nil fields leave the corresponding entry
// field unchanged.
type Update struct {
	IsDownloaded     *bool
	DownloadProgress *float64
}

// Progress returns an update that records a progress ratio.
func Progress(ratio float64) Update {
	return Update{DownloadProgress: &ratio}
}

// Completed returns the terminal update written when a download finishes.
func Completed() Update {
	done := true
	full := 1.0
	return Update{IsDownloaded: &done, DownloadProgress: &full}
}

// Reset returns the update written when an artifact is deleted.
func Reset() Update {
	gone := false
	zero := 0.0
	return Update{IsDownloaded: &gone, DownloadProgress: &zero}
}

// Ledger is the durable source of truth for download state. All entries are
// serialized into a single store key, so each write replaces the whole record
// set atomically: a crash mid-write leaves either the previous or the new
// record set readable, never a mix. A corrupt persisted value is treated as
// absence rather than an error, trading a from-scratch re-download for crash
// safety.
type Ledger struct {
	// log is the associated logger.
	log logging.Logger
	// store is the durable key-value collaborator.
	store Store
	// mu serializes writes so each one happens-after the previous write
	// completed.
	mu sync.Mutex
}

// New creates a ledger over the given store.
func New(log logging.Logger, store Store) *Ledger {
	return &Ledger{log: log, store: store}
}

// Read returns the entry for the given model ID, if one exists. Deserialization
// failures read as absent.
func (l *Ledger) Read(modelID string) (Entry, bool) {
	entry, ok := l.load()[modelID]
	return entry, ok
}

// ReadAll returns a snapshot of every entry, keyed by model ID.
func (l *Ledger) ReadAll() map[string]Entry {
	return l.load()
}

// Write merges update into the entry for the given model ID and persists the
// whole record set in one store write. An entry is created on first write for
// a model ID; entries are never removed, only reset.
func (l *Ledger) Write(modelID string, update Update) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := l.load()
	entry := entries[modelID]
	if update.IsDownloaded != nil {
		entry.IsDownloaded = *update.IsDownloaded
	}
	if update.DownloadProgress != nil {
		entry.DownloadProgress = *update.DownloadProgress
	}
	entries[modelID] = entry

	serialized, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return l.store.Set(storageKey, string(serialized))
}

// load reads and deserializes the full record set. Store read errors and
// corrupt records degrade to an empty set.
func (l *Ledger) load() map[string]Entry {
	value, ok, err := l.store.Get(storageKey)
	if err != nil {
		l.log.Warnf("Unable to read download ledger, treating as empty: %v", err)
		return make(map[string]Entry)
	}
	if !ok {
		return make(map[string]Entry)
	}
	entries := make(map[string]Entry)
	if err := json.Unmarshal([]byte(value), &entries); err != nil {
		l.log.Warnf("Corrupt download ledger record, treating as empty: %v", err)
		return make(map[string]Entry)
	}
	return entries
}
