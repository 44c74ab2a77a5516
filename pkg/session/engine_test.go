package session

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tipai/modelkit/pkg/logging"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig(logging.Discard(), "/data/models/model.gguf")
	assert.Equal(t, "/data/models/model.gguf", cfg.ModelPath)
	assert.Equal(t, DefaultContextSize, cfg.ContextSize)
	assert.Zero(t, cfg.Threads)

	// GPU offload is all-or-nothing depending on host RAM.
	assert.Contains(t, []int{0, defaultGPULayers}, cfg.GPULayers)
}
