package download

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tipai/modelkit/pkg/artifact"
	"github.com/tipai/modelkit/pkg/catalog"
	"github.com/tipai/modelkit/pkg/ledger"
	"github.com/tipai/modelkit/pkg/logging"
)

var errTransferFailed = errors.New("transfer failed")

// scriptedEngine replays a fixed sequence of progress callbacks and resolves
// with a scripted outcome.
type scriptedEngine struct {
	ticks       [][2]int64
	err         error
	started     chan struct{}
	startedOnce sync.Once
	release     chan struct{}
}

func (e *scriptedEngine) Transfer(ctx context.Context, sourceURL, destinationPath string, progress ProgressFunc) error {
	if e.started != nil {
		e.startedOnce.Do(func() { close(e.started) })
	}
	if e.release != nil {
		select {
		case <-e.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	for _, tick := range e.ticks {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		progress(tick[0], tick[1])
	}
	return e.err
}

type fixture struct {
	store       *ledger.MemoryStore
	registry    *catalog.Registry
	coordinator *Coordinator
}

func newFixture(t *testing.T, engine Engine) *fixture {
	t.Helper()
	store := ledger.NewMemoryStore()
	lg := ledger.New(logging.Discard(), store)
	registry := catalog.NewRegistry([]catalog.ModelDescriptor{
		{ID: "m1", Name: "Model One", DownloadURL: "https://example.com/one.gguf"},
		{ID: "m2", Name: "Model Two", DownloadURL: "https://example.com/two.gguf"},
		{ID: "local", Name: "Local Only"},
	})
	artifacts := artifact.NewStore(t.TempDir())
	return &fixture{
		store:       store,
		registry:    registry,
		coordinator: NewCoordinator(logging.Discard(), artifacts, lg, registry, engine),
	}
}

func waitDone(t *testing.T, task *Task) {
	t.Helper()
	select {
	case <-task.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("task did not resolve")
	}
}

func TestDownloadLifecycle(t *testing.T) {
	engine := &scriptedEngine{ticks: [][2]int64{{250, 1000}, {500, 1000}, {1000, 1000}}}
	f := newFixture(t, engine)

	task, err := f.coordinator.Start("m1")
	require.NoError(t, err)
	waitDone(t, task)
	require.NoError(t, task.Err())

	assert.Equal(t, 1.0, task.Progress())
	written, expected := task.Bytes()
	assert.Equal(t, int64(1000), written)
	assert.Equal(t, int64(1000), expected)

	model, err := f.registry.Get("m1")
	require.NoError(t, err)
	assert.True(t, model.IsDownloaded)
	assert.Equal(t, 1.0, model.DownloadProgress)

	// The terminal state is durable, not only in memory.
	value, ok, err := f.store.Get("downloadedModels")
	require.NoError(t, err)
	require.True(t, ok)
	entries := make(map[string]ledger.Entry)
	require.NoError(t, json.Unmarshal([]byte(value), &entries))
	assert.True(t, entries["m1"].IsDownloaded)
	assert.Equal(t, 1.0, entries["m1"].DownloadProgress)
}

func TestStartSingleFlight(t *testing.T) {
	engine := &scriptedEngine{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	f := newFixture(t, engine)

	task, err := f.coordinator.Start("m1")
	require.NoError(t, err)
	<-engine.started

	// A second download is rejected even for a different model.
	_, err = f.coordinator.Start("m2")
	assert.ErrorIs(t, err, ErrAlreadyDownloading)

	close(engine.release)
	waitDone(t, task)

	// The slot frees once the task resolves.
	_, err = f.coordinator.Start("m2")
	require.NoError(t, err)
}

func TestStartRejections(t *testing.T) {
	f := newFixture(t, &scriptedEngine{})

	_, err := f.coordinator.Start("nope")
	assert.ErrorIs(t, err, catalog.ErrModelNotFound)

	_, err = f.coordinator.Start("local")
	assert.ErrorIs(t, err, ErrNoSourceURL)

	f.registry.RefreshFromLedger(map[string]ledger.Entry{"m1": {IsDownloaded: true}})
	_, err = f.coordinator.Start("m1")
	assert.ErrorIs(t, err, ErrAlreadyDownloaded)
}

func TestCancelKeepsLastRecordedProgress(t *testing.T) {
	engine := &scriptedEngine{
		ticks: [][2]int64{{400, 1000}},
		err:   errTransferFailed,
	}
	f := newFixture(t, engine)

	// A failed first run records 0.4, then a second run is cancelled before
	// its engine makes any progress.
	task, err := f.coordinator.Start("m1")
	require.NoError(t, err)
	waitDone(t, task)
	require.ErrorIs(t, task.Err(), errTransferFailed)

	model, err := f.registry.Get("m1")
	require.NoError(t, err)
	assert.Equal(t, 0.4, model.DownloadProgress)

	blocked := &scriptedEngine{started: make(chan struct{}), release: make(chan struct{})}
	f.coordinator.engine = blocked
	task, err = f.coordinator.Start("m1")
	require.NoError(t, err)
	<-blocked.started

	f.coordinator.Cancel()
	waitDone(t, task)
	assert.ErrorIs(t, task.Err(), context.Canceled)

	// The ledger stays at the last recorded tick.
	model, err = f.registry.Get("m1")
	require.NoError(t, err)
	assert.False(t, model.IsDownloaded)
	assert.Equal(t, 0.4, model.DownloadProgress)
}

func TestProgressNeverDecreases(t *testing.T) {
	// A restarted stream can report a lower byte count; the published ratio
	// must hold at its high-water mark.
	engine := &scriptedEngine{ticks: [][2]int64{{600, 1000}, {200, 1000}, {1000, 1000}}}
	f := newFixture(t, engine)

	var mu sync.Mutex
	var seen []float64
	task, err := f.coordinator.Start("m1")
	require.NoError(t, err)
	go func() {
		for {
			mu.Lock()
			seen = append(seen, task.Progress())
			mu.Unlock()
			select {
			case <-task.Done():
				return
			case <-time.After(time.Millisecond):
			}
		}
	}()
	waitDone(t, task)
	require.NoError(t, task.Err())

	mu.Lock()
	defer mu.Unlock()
	last := 0.0
	for _, ratio := range seen {
		assert.GreaterOrEqual(t, ratio, last)
		last = ratio
	}
	assert.Equal(t, 1.0, task.Progress())
}

func TestDeleteResetsModel(t *testing.T) {
	engine := &scriptedEngine{ticks: [][2]int64{{1000, 1000}}}
	f := newFixture(t, engine)

	task, err := f.coordinator.Start("m1")
	require.NoError(t, err)
	waitDone(t, task)
	require.NoError(t, task.Err())

	require.NoError(t, f.coordinator.Delete("m1"))

	model, err := f.registry.Get("m1")
	require.NoError(t, err)
	assert.False(t, model.IsDownloaded)
	assert.Zero(t, model.DownloadProgress)

	// Starting over after delete is allowed.
	task, err = f.coordinator.Start("m1")
	require.NoError(t, err)
	waitDone(t, task)
}

func TestDeleteRejectsActiveDownload(t *testing.T) {
	engine := &scriptedEngine{started: make(chan struct{}), release: make(chan struct{})}
	f := newFixture(t, engine)

	task, err := f.coordinator.Start("m1")
	require.NoError(t, err)
	<-engine.started

	assert.ErrorIs(t, f.coordinator.Delete("m1"), ErrModelBusy)

	// Deleting an idle model is fine while another download runs.
	require.NoError(t, f.coordinator.Delete("m2"))

	close(engine.release)
	waitDone(t, task)
}

func TestDeleteUnknownModel(t *testing.T) {
	f := newFixture(t, &scriptedEngine{})
	assert.ErrorIs(t, f.coordinator.Delete("nope"), catalog.ErrModelNotFound)
}
