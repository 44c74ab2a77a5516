//go:build !llama

package session

// NewEngine reports that the llama.cpp engine was not compiled into this
// binary. Hosts embedding the library without the llama build tag must supply
// their own EngineLoader.
func NewEngine(cfg Config) (Engine, error) {
	return nil, ErrEngineNotCompiled
}
