package session

import (
	"context"
	"errors"

	"github.com/elastic/go-sysinfo"

	"github.com/tipai/modelkit/pkg/logging"
)

const (
	// DefaultContextSize is the fixed context-window size sessions open
	// engines with.
	DefaultContextSize = 2048
	// DefaultMaxNewTokens caps the tokens generated per turn.
	DefaultMaxNewTokens = 100
	// defaultGPULayers offloads effectively the whole model when the host
	// looks capable of it.
	defaultGPULayers = 99
	// minimumRAMForOffload is the RAM threshold below which the engine stays
	// CPU-only.
	minimumRAMForOffload = 4 * 1024 * 1024 * 1024
)

// ErrEngineInit indicates the engine context could not be acquired: a
// malformed artifact, out of memory, or an unsupported format.
var ErrEngineInit = errors.New("session: engine failed to initialize")

// ErrEngineNotCompiled indicates the llama.cpp engine was not compiled into
// this binary.
var ErrEngineNotCompiled = errors.New("session: inference engine not compiled in (build with -tags llama)")

// Config describes how to acquire an engine context.
type Config struct {
	// ModelPath is the artifact to load.
	ModelPath string
	// ContextSize is the context-window size in tokens.
	ContextSize int
	// GPULayers is the number of layers to offload to the GPU; zero keeps
	// inference on the CPU.
	GPULayers int
	// Threads is the CPU thread count; zero lets the engine decide.
	Threads int
}

// DefaultConfig returns the engine configuration for an artifact, with the
// hardware-acceleration preference derived from host memory.
func DefaultConfig(log logging.Logger, modelPath string) Config {
	return Config{
		ModelPath:   modelPath,
		ContextSize: DefaultContextSize,
		GPULayers:   probeGPULayers(log),
	}
}

// probeGPULayers probes host RAM to decide the offload preference.
// Unreadable host info defaults to full offload, matching the engine's own
// graceful fallback to CPU.
func probeGPULayers(log logging.Logger) int {
	host, err := sysinfo.Host()
	if err != nil {
		log.Warnf("Could not read host info: %s", err)
		return defaultGPULayers
	}
	ram, err := host.Memory()
	if err != nil {
		log.Warnf("Could not read host RAM size: %s", err)
		return defaultGPULayers
	}
	if ram.Total < minimumRAMForOffload {
		log.Infof("Host has %d MB RAM, keeping inference CPU-only", ram.Total/1024/1024)
		return 0
	}
	return defaultGPULayers
}

// GenerateOptions are the per-generation parameters.
type GenerateOptions struct {
	// MaxTokens caps the number of new tokens.
	MaxTokens int
	// Stop are literal sequences that end the generation early.
	Stop []string
}

// Engine is an acquired inference context bound to one artifact. Generate
// streams text incrementally on the first channel and resolves with at most
// one error on the second; both close when the generation ends. Release frees
// the underlying native resources.
type Engine interface {
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (<-chan string, <-chan error)
	Release() error
}

// EngineLoader acquires an engine for a configuration. NewEngine is the
// production loader; tests substitute their own.
type EngineLoader func(cfg Config) (Engine, error)
