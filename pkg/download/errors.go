package download

import "errors"

// Sentinel errors for download operations. Rejections are reported
// synchronously by Start and mutate no state; task failures are reported
// through Task.Err. Each variant is distinct so the UI can render a specific
// message rather than a generic failure banner.
var (
	// ErrAlreadyDownloading indicates a second Start while a download is in
	// flight. Downloads are single-flight; cancel the active task first.
	ErrAlreadyDownloading = errors.New("download: another download is already in flight")

	// ErrAlreadyDownloaded indicates the artifact is already complete.
	ErrAlreadyDownloaded = errors.New("download: model is already downloaded")

	// ErrNoSourceURL indicates the model has no artifact source and can never
	// be downloaded.
	ErrNoSourceURL = errors.New("download: model has no download URL")

	// ErrNetwork indicates a transient transfer failure. The caller may retry
	// by invoking Start again; no automatic retry is built in.
	ErrNetwork = errors.New("download: network error")

	// ErrStorageFull indicates local storage ran out of space. Fatal for the
	// task.
	ErrStorageFull = errors.New("download: insufficient storage space")

	// ErrWrite indicates a non-space filesystem write failure. Fatal for the
	// task.
	ErrWrite = errors.New("download: write error")

	// ErrModelBusy indicates a delete was requested for a model with an
	// active download.
	ErrModelBusy = errors.New("download: model has a download in flight")
)
