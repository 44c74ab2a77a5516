// Package download drives resumable artifact transfers, one at a time, and
// keeps the download ledger and catalog registry in step with transfer
// progress.
package download

import (
	"context"
	"math"
	"sync"
	"sync/atomic"

	"github.com/tipai/modelkit/pkg/artifact"
	"github.com/tipai/modelkit/pkg/catalog"
	"github.com/tipai/modelkit/pkg/ledger"
	"github.com/tipai/modelkit/pkg/logging"
)

// Task is one in-flight resumable transfer. It is exclusively owned by the
// coordinator; at most one task exists at any time.
type Task struct {
	// ModelID is the model being downloaded.
	ModelID string
	// SourceURL is the artifact source.
	SourceURL string
	// DestinationPath is the artifact destination on local storage.
	DestinationPath string
	// bytesWritten and bytesExpected mirror the latest progress callback.
	bytesWritten  atomic.Int64
	bytesExpected atomic.Int64
	// progress is the latest reported (monotonic) completion ratio,
	// represented as a float64 bit pattern.
	progress atomic.Uint64
	// cancel cooperatively abandons the transfer.
	cancel context.CancelFunc
	// done is closed once the task has resolved and err is safe to read.
	done chan struct{}
	// err is the terminal outcome. Nil on success.
	err error
}

// Done returns a channel closed when the task resolves.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Err returns the terminal outcome. It must only be consulted after Done is
// closed. A cancelled task resolves with context.Canceled.
func (t *Task) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Progress returns the latest reported completion ratio in [0, 1].
func (t *Task) Progress() float64 {
	return math.Float64frombits(t.progress.Load())
}

// Bytes returns the latest reported byte counts. Expected is -1 while the
// total is unknown.
func (t *Task) Bytes() (written, expected int64) {
	return t.bytesWritten.Load(), t.bytesExpected.Load()
}

// Coordinator owns artifact downloads. It enforces the single-flight
// invariant, reports monotonic progress into the ledger and registry, and
// orders the completion ledger write before the in-memory update so a crash
// immediately after completion still leaves the ledger consistent for the
// next cold start.
type Coordinator struct {
	// log is the associated logger.
	log logging.Logger
	// store locates artifact destinations.
	store *artifact.Store
	// ledger is the durable download state.
	ledger *ledger.Ledger
	// registry is the in-memory descriptor view refreshed after ledger writes.
	registry *catalog.Registry
	// engine performs the byte transfers.
	engine Engine
	// mu guards active.
	mu sync.Mutex
	// active is the in-flight task, if any.
	active *Task
}

// NewCoordinator creates a download coordinator.
func NewCoordinator(
	log logging.Logger,
	store *artifact.Store,
	lg *ledger.Ledger,
	registry *catalog.Registry,
	engine Engine,
) *Coordinator {
	return &Coordinator{
		log:      log,
		store:    store,
		ledger:   lg,
		registry: registry,
		engine:   engine,
	}
}

// Start begins a resumable download for the given model. It returns
// immediately; transfer work and progress delivery happen out of band and the
// task handle exposes the terminal outcome. Start rejects with
// ErrAlreadyDownloading while any task is in flight, ErrAlreadyDownloaded if
// the artifact is already complete, and ErrNoSourceURL if the model has no
// artifact source. Rejections mutate no state.
func (c *Coordinator) Start(modelID string) (*Task, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil {
		return nil, ErrAlreadyDownloading
	}

	model, err := c.registry.Get(modelID)
	if err != nil {
		return nil, err
	}
	if model.IsDownloaded {
		return nil, ErrAlreadyDownloaded
	}
	if !model.Downloadable() {
		return nil, ErrNoSourceURL
	}

	ctx, cancel := context.WithCancel(context.Background())
	task := &Task{
		ModelID:         model.ID,
		SourceURL:       model.DownloadURL,
		DestinationPath: c.store.PathFor(model),
		cancel:          cancel,
		done:            make(chan struct{}),
	}
	task.bytesExpected.Store(-1)
	c.active = task

	c.log.Infof("Starting download of model %s to %s", model.ID, task.DestinationPath)
	go c.run(ctx, task)
	return task, nil
}

// Cancel cooperatively abandons the in-flight task, if any. Partial bytes on
// disk are left in place so the next Start can resume, and the ledger stays
// at the last recorded tick.
func (c *Coordinator) Cancel() {
	c.mu.Lock()
	task := c.active
	c.mu.Unlock()
	if task != nil {
		c.log.Infof("Cancelling download of model %s", task.ModelID)
		task.cancel()
	}
}

// Delete removes a model's artifact from local storage and resets its ledger
// entry. It rejects with ErrModelBusy while a download for the model is in
// flight. The caller must close any inference session bound to the model
// first; the registry's not-downloaded state then gates new sessions.
func (c *Coordinator) Delete(modelID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil && c.active.ModelID == modelID {
		return ErrModelBusy
	}
	model, err := c.registry.Get(modelID)
	if err != nil {
		return err
	}
	if err := c.store.Remove(model); err != nil {
		return classifyWriteError(err)
	}
	if err := c.ledger.Write(modelID, ledger.Reset()); err != nil {
		return err
	}
	c.registry.RefreshFromLedger(c.ledger.ReadAll())
	c.log.Infof("Deleted artifact for model %s", modelID)
	return nil
}

// run drives one transfer to its terminal outcome.
func (c *Coordinator) run(ctx context.Context, task *Task) {
	err := c.engine.Transfer(ctx, task.SourceURL, task.DestinationPath, func(written, expected int64) {
		c.tick(ctx, task, written, expected)
	})
	if err == nil {
		err = c.complete(task)
	} else if ctx.Err() != nil {
		err = context.Canceled
		c.log.Infof("Download of model %s cancelled at %.0f%%", task.ModelID, task.Progress()*100)
	} else {
		c.log.Warnf("Download of model %s failed: %v", task.ModelID, err)
	}

	c.mu.Lock()
	c.active = nil
	c.mu.Unlock()
	task.err = err
	close(task.done)
}

// tick records one progress callback: the task's byte counters, a ledger
// write of the ratio, and a registry refresh. Ratios never decrease, and
// ledger writes stop once cancellation has been signalled.
func (c *Coordinator) tick(ctx context.Context, task *Task, written, expected int64) {
	task.bytesWritten.Store(written)
	task.bytesExpected.Store(expected)

	if expected <= 0 {
		return
	}
	ratio := float64(written) / float64(expected)
	if ratio > 1 {
		ratio = 1
	}
	if ratio < task.Progress() {
		return
	}
	task.progress.Store(math.Float64bits(ratio))

	if ctx.Err() != nil {
		return
	}
	if err := c.ledger.Write(task.ModelID, ledger.Progress(ratio)); err != nil {
		c.log.Warnf("Unable to record download progress for model %s: %v", task.ModelID, err)
		return
	}
	c.registry.RefreshFromLedger(c.ledger.ReadAll())
}

// complete runs the completion path: the terminal ledger write first, then
// the in-memory registry update. Running it twice for the same model leaves
// the ledger identical to running it once.
func (c *Coordinator) complete(task *Task) error {
	task.progress.Store(math.Float64bits(1))
	if err := c.ledger.Write(task.ModelID, ledger.Completed()); err != nil {
		return err
	}
	c.registry.RefreshFromLedger(c.ledger.ReadAll())
	c.log.Infof("Download of model %s complete", task.ModelID)

	// Advisory sanity check; a malformed artifact is still marked downloaded,
	// the session surfaces the load failure to the user.
	if model, err := c.registry.Get(task.ModelID); err == nil {
		if _, err := c.store.Inspect(model); err != nil {
			c.log.Warnf("Downloaded artifact for model %s failed inspection: %v", task.ModelID, err)
		}
	}
	return nil
}
