//go:build llama

package session

import (
	"context"
	"fmt"

	llamago "github.com/tcpipuk/llama-go"
)

// llamaEngine implements Engine over the llama.cpp CGo bindings.
type llamaEngine struct {
	model    *llamago.Model
	llamaCtx *llamago.Context
}

// NewEngine acquires a llama.cpp engine context for the given configuration.
func NewEngine(cfg Config) (Engine, error) {
	model, err := llamago.LoadModel(cfg.ModelPath,
		llamago.WithGPULayers(cfg.GPULayers),
		llamago.WithSilentLoading(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: load model: %v", ErrEngineInit, err)
	}

	ctxOpts := []llamago.ContextOption{}
	if cfg.ContextSize > 0 {
		ctxOpts = append(ctxOpts, llamago.WithContext(cfg.ContextSize))
	}
	if cfg.Threads > 0 {
		ctxOpts = append(ctxOpts, llamago.WithThreads(cfg.Threads))
	}
	llamaCtx, err := model.NewContext(ctxOpts...)
	if err != nil {
		_ = model.Close()
		return nil, fmt.Errorf("%w: create context: %v", ErrEngineInit, err)
	}

	return &llamaEngine{model: model, llamaCtx: llamaCtx}, nil
}

// Generate implements Engine.
func (e *llamaEngine) Generate(ctx context.Context, prompt string, opts GenerateOptions) (<-chan string, <-chan error) {
	genOpts := []llamago.GenerateOption{}
	if opts.MaxTokens > 0 {
		genOpts = append(genOpts, llamago.WithMaxTokens(opts.MaxTokens))
	}
	if len(opts.Stop) > 0 {
		genOpts = append(genOpts, llamago.WithStopWords(opts.Stop...))
	}
	return e.llamaCtx.GenerateStream(ctx, prompt, genOpts...)
}

// Release implements Engine.
func (e *llamaEngine) Release() error {
	if e.llamaCtx != nil {
		_ = e.llamaCtx.Close()
	}
	if e.model != nil {
		_ = e.model.Close()
	}
	return nil
}
