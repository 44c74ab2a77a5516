package download

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tipai/modelkit/pkg/logging"
)

func TestTransferFull(t *testing.T) {
	payload := strings.Repeat("x", 4096)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(payload))
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "model.gguf")
	engine := NewHTTPEngine(logging.Discard(), server.Client())

	var lastWritten, lastExpected int64
	err := engine.Transfer(context.Background(), server.URL, dest, func(written, expected int64) {
		lastWritten, lastExpected = written, expected
	})
	require.NoError(t, err)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, payload, string(data))

	// The final callback carries the exact terminal counts.
	assert.Equal(t, int64(len(payload)), lastWritten)
	assert.Equal(t, int64(len(payload)), lastExpected)
}

func TestTransferResumesFromPartialFile(t *testing.T) {
	full := strings.Repeat("abcdefgh", 512)
	var gotRange string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRange = r.Header.Get("Range")
		var offset int
		if _, err := fmt.Sscanf(gotRange, "bytes=%d-", &offset); err == nil && offset > 0 {
			w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", offset, len(full)-1, len(full)))
			w.WriteHeader(http.StatusPartialContent)
			_, _ = w.Write([]byte(full[offset:]))
			return
		}
		_, _ = w.Write([]byte(full))
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "model.gguf")
	require.NoError(t, os.WriteFile(dest, []byte(full[:1000]), 0o644))

	engine := NewHTTPEngine(logging.Discard(), server.Client())
	var lastWritten, lastExpected int64
	err := engine.Transfer(context.Background(), server.URL, dest, func(written, expected int64) {
		lastWritten, lastExpected = written, expected
	})
	require.NoError(t, err)

	assert.Equal(t, "bytes=1000-", gotRange)
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, full, string(data))
	assert.Equal(t, int64(len(full)), lastWritten)
	assert.Equal(t, int64(len(full)), lastExpected)
}

func TestTransferRestartsWhenServerIgnoresRange(t *testing.T) {
	full := strings.Repeat("z", 2048)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Plain 200 regardless of any Range header.
		_, _ = w.Write([]byte(full))
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "model.gguf")
	require.NoError(t, os.WriteFile(dest, []byte("stale partial bytes"), 0o644))

	engine := NewHTTPEngine(logging.Discard(), server.Client())
	require.NoError(t, engine.Transfer(context.Background(), server.URL, dest, nil))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, full, string(data))
}

func TestTransferRangeNotSatisfiableWithCompleteFile(t *testing.T) {
	full := strings.Repeat("q", 512)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Range") != "" {
			w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
			return
		}
		_, _ = w.Write([]byte(full))
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "model.gguf")
	require.NoError(t, os.WriteFile(dest, []byte(full), 0o644))

	engine := NewHTTPEngine(logging.Discard(), server.Client())
	var lastWritten, lastExpected int64
	err := engine.Transfer(context.Background(), server.URL, dest, func(written, expected int64) {
		lastWritten, lastExpected = written, expected
	})
	require.NoError(t, err)
	assert.Equal(t, int64(len(full)), lastWritten)
	assert.Equal(t, int64(len(full)), lastExpected)
}

func TestTransferServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "model.gguf")
	engine := NewHTTPEngine(logging.Discard(), server.Client())
	err := engine.Transfer(context.Background(), server.URL, dest, nil)
	assert.ErrorIs(t, err, ErrNetwork)
}

func TestTransferCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("data"))
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "model.gguf")
	engine := NewHTTPEngine(logging.Discard(), server.Client())
	err := engine.Transfer(ctx, server.URL, dest, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExpectedBytes(t *testing.T) {
	partial := &http.Response{
		StatusCode: http.StatusPartialContent,
		Header:     http.Header{"Content-Range": []string{"bytes 1000-4095/4096"}},
	}
	assert.Equal(t, int64(4096), expectedBytes(partial, 1000))

	full := &http.Response{StatusCode: http.StatusOK, ContentLength: 2048, Header: http.Header{}}
	assert.Equal(t, int64(2048), expectedBytes(full, 0))

	unknown := &http.Response{StatusCode: http.StatusOK, ContentLength: -1, Header: http.Header{}}
	assert.Equal(t, int64(-1), expectedBytes(unknown, 0))
}

func TestExpectedBytesMalformedContentRange(t *testing.T) {
	resp := &http.Response{
		StatusCode:    http.StatusPartialContent,
		ContentLength: 100,
		Header:        http.Header{"Content-Range": []string{"bytes */?"}},
	}
	assert.Equal(t, int64(600), expectedBytes(resp, 500))
}
