package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/tipai/modelkit/pkg/logging"
)

const (
	// copyBufferSize is the transfer copy buffer size.
	copyBufferSize = 32 * 1024
	// progressInterval is the minimum time between progress callbacks.
	progressInterval = 100 * time.Millisecond
	// progressMinBytes is the minimum number of transferred bytes between
	// progress callbacks.
	progressMinBytes = 1024 * 1024
)

// ProgressFunc receives transfer progress as absolute byte counts. It is
// invoked zero or more times before the transfer resolves. bytesExpected is
// -1 when the server does not report a length.
type ProgressFunc func(bytesWritten, bytesExpected int64)

// Engine performs one resumable byte transfer to local storage. The
// coordinator treats it as an opaque collaborator: zero or more progress
// callbacks, then exactly one terminal outcome.
type Engine interface {
	Transfer(ctx context.Context, sourceURL, destinationPath string, progress ProgressFunc) error
}

// HTTPEngine is the HTTP(S) transfer engine. It resumes interrupted transfers
// by issuing a Range request from the size of whatever partial artifact is
// already on disk, and coalesces progress callbacks by time and byte
// thresholds.
type HTTPEngine struct {
	// log is the associated logger.
	log logging.Logger
	// client is the HTTP client used for transfers.
	client *http.Client
}

// NewHTTPEngine creates an HTTP transfer engine. If client is nil, a client
// without timeout is used; multi-gigabyte transfers cannot live under a
// whole-request deadline.
func NewHTTPEngine(log logging.Logger, client *http.Client) *HTTPEngine {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPEngine{log: log, client: client}
}

// Transfer implements Engine.
func (e *HTTPEngine) Transfer(ctx context.Context, sourceURL, destinationPath string, progress ProgressFunc) error {
	// Resume from any partial artifact already present.
	var existing int64
	if info, err := os.Stat(destinationPath); err == nil {
		existing = info.Size()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	if existing > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", existing))
	}

	resp, err := e.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
		// Full stream; any partial bytes are stale.
		if existing > 0 {
			e.log.Infof("Server ignored range request, restarting transfer of %s", sourceURL)
		}
		existing = 0
	case http.StatusPartialContent:
		if existing > 0 {
			e.log.Infof("Resuming transfer of %s from byte %d", sourceURL, existing)
		}
	case http.StatusRequestedRangeNotSatisfiable:
		// The partial artifact already covers the full resource.
		if existing > 0 {
			if progress != nil {
				progress(existing, existing)
			}
			return nil
		}
		return fmt.Errorf("%w: unexpected status %s", ErrNetwork, resp.Status)
	default:
		return fmt.Errorf("%w: unexpected status %s", ErrNetwork, resp.Status)
	}

	expected := expectedBytes(resp, existing)

	flags := os.O_CREATE | os.O_WRONLY
	if existing > 0 {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	destination, err := os.OpenFile(destinationPath, flags, 0o644)
	if err != nil {
		return classifyWriteError(err)
	}
	defer func() { _ = destination.Close() }()

	written := existing
	lastReport := written
	lastReportTime := time.Time{}
	buffer := make([]byte, copyBufferSize)
	for {
		n, readErr := resp.Body.Read(buffer)
		if n > 0 {
			if _, writeErr := destination.Write(buffer[:n]); writeErr != nil {
				return classifyWriteError(writeErr)
			}
			written += int64(n)
			if progress != nil {
				now := time.Now()
				if now.Sub(lastReportTime) >= progressInterval || written-lastReport >= progressMinBytes {
					progress(written, expected)
					lastReport = written
					lastReportTime = now
				}
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("%w: %v", ErrNetwork, readErr)
		}
	}

	if err := destination.Close(); err != nil {
		return classifyWriteError(err)
	}

	// Final callback carries the exact byte counts.
	if progress != nil {
		if expected < 0 {
			expected = written
		}
		progress(written, expected)
	}
	return nil
}

// expectedBytes determines the total resource size from the response, or -1
// if unknown. For resumed transfers the Content-Range total is authoritative;
// otherwise the Content-Length is offset by the bytes already on disk.
func expectedBytes(resp *http.Response, existing int64) int64 {
	if resp.StatusCode == http.StatusPartialContent {
		if contentRange := resp.Header.Get("Content-Range"); contentRange != "" {
			if idx := strings.LastIndex(contentRange, "/"); idx >= 0 {
				if total, err := strconv.ParseInt(contentRange[idx+1:], 10, 64); err == nil && total >= 0 {
					return total
				}
			}
		}
	}
	if resp.ContentLength >= 0 {
		return existing + resp.ContentLength
	}
	return -1
}

// classifyWriteError maps a filesystem error onto the task failure taxonomy.
func classifyWriteError(err error) error {
	if errors.Is(err, syscall.ENOSPC) {
		return fmt.Errorf("%w: %v", ErrStorageFull, err)
	}
	return fmt.Errorf("%w: %v", ErrWrite, err)
}
