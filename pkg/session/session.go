// Package session owns the single live inference engine context: prompt
// construction, turn-taking, streaming generation, and teardown.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/tipai/modelkit/pkg/artifact"
	"github.com/tipai/modelkit/pkg/catalog"
	"github.com/tipai/modelkit/pkg/logging"
	"github.com/tipai/modelkit/pkg/tailbuffer"
)

// rawTailCapacity bounds the raw engine output retained for diagnostics.
const rawTailCapacity = 2048

var (
	// ErrModelNotDownloaded indicates an open was attempted for a model whose
	// artifact is not complete on local storage.
	ErrModelNotDownloaded = errors.New("session: model is not downloaded")
	// ErrInvalidState indicates an operation was attempted in a state that
	// does not permit it. The operation is a no-op.
	ErrInvalidState = errors.New("session: invalid state for operation")
	// ErrSessionActive indicates a second open while a session is live.
	// Sessions are single-flight; close the active session first.
	ErrSessionActive = errors.New("session: another session is active")
)

// State is the session lifecycle state.
type State int

const (
	// StateUninitialized is the zero state before Open.
	StateUninitialized State = iota
	// StateLoading means the engine context is being acquired.
	StateLoading
	// StateReady means the session can accept a turn.
	StateReady
	// StateGenerating means a turn is streaming.
	StateGenerating
	// StateClosed is terminal; engine resources have been released.
	StateClosed
	// StateFailed is terminal save for Close; the engine could not be
	// acquired or died mid-generation.
	StateFailed
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateGenerating:
		return "generating"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Chunk is one streamed piece of assistant output. A terminal chunk has Done
// set (or Err on failure); no further chunks follow it.
type Chunk struct {
	// Text is the incremental assistant text, already stop-truncated.
	Text string
	// Done marks the successful end of the turn.
	Done bool
	// Err carries a generation failure.
	Err error
}

// Manager enforces the single-session invariant: at most one live engine
// context system-wide. A second Open is rejected rather than queued.
type Manager struct {
	// log is the associated logger.
	log logging.Logger
	// store locates artifacts for engine loading.
	store *artifact.Store
	// registry validates that a model is downloaded before a session binds
	// to it.
	registry *catalog.Registry
	// loader acquires engine contexts.
	loader EngineLoader
	// mu guards active.
	mu sync.Mutex
	// active is the live session, if any.
	active *Session
}

// NewManager creates a session manager. A nil loader selects the built-in
// llama.cpp engine.
func NewManager(log logging.Logger, store *artifact.Store, registry *catalog.Registry, loader EngineLoader) *Manager {
	if loader == nil {
		loader = NewEngine
	}
	return &Manager{
		log:      log,
		store:    store,
		registry: registry,
		loader:   loader,
	}
}

// Open acquires an engine context bound to the model's artifact and returns a
// session in the Ready state with empty history. The model must be
// downloaded. While the engine loads the session occupies the single session
// slot in the Loading state; if loading fails the session lands in Failed and
// still holds the slot until it is closed, so the caller always ends up with
// exactly one session to close.
func (m *Manager) Open(ctx context.Context, modelID string) (*Session, error) {
	m.mu.Lock()
	if m.active != nil {
		m.mu.Unlock()
		return nil, ErrSessionActive
	}

	model, err := m.registry.Get(modelID)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	if !model.IsDownloaded {
		m.mu.Unlock()
		return nil, ErrModelNotDownloaded
	}

	s := &Session{
		log:     m.log,
		model:   model,
		state:   StateLoading,
		rawTail: tailbuffer.New(rawTailCapacity),
		release: func(closed *Session) {
			m.mu.Lock()
			if m.active == closed {
				m.active = nil
			}
			m.mu.Unlock()
		},
	}
	m.active = s
	m.mu.Unlock()

	m.log.Infof("Loading engine for model %s", model.ID)
	engine, err := m.loader(DefaultConfig(m.log, m.store.PathFor(model)))

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		// Closed while loading; release the freshly acquired engine.
		if err == nil {
			_ = engine.Release()
		}
		return nil, ErrInvalidState
	}
	if err != nil {
		s.state = StateFailed
		m.log.Warnf("Engine initialization for model %s failed: %v", model.ID, err)
		return nil, err
	}
	if ctx.Err() != nil {
		_ = engine.Release()
		s.state = StateFailed
		return nil, ctx.Err()
	}
	s.engine = engine
	s.state = StateReady
	return s, nil
}

// Active returns the live session, if any.
func (m *Manager) Active() (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active, m.active != nil
}

// Session is one live conversation bound to a downloaded model. The engine
// handle is exclusively owned by the session and released exactly once, by
// Close.
type Session struct {
	// log is the associated logger.
	log logging.Logger
	// model is the bound descriptor, captured at open time.
	model catalog.ModelDescriptor
	// rawTail retains the tail of raw engine output for diagnostics.
	rawTail *tailbuffer.Buffer
	// release clears the manager's session slot.
	release func(*Session)
	// mu guards all subsequent fields.
	mu sync.Mutex
	// state is the lifecycle state.
	state State
	// engine is the acquired engine context; nil unless Ready or Generating.
	engine Engine
	// history is the ordered conversation.
	history []Turn
}

// Model returns the bound model descriptor.
func (s *Session) Model() catalog.ModelDescriptor {
	return s.model
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// History returns a copy of the conversation so far.
func (s *Session) History() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	history := make([]Turn, len(s.history))
	copy(history, s.history)
	return history
}

// Send appends a user turn, renders the full history into a prompt, and
// streams the assistant reply on the returned channel. It rejects with
// ErrInvalidState unless the session is Ready. Streamed text is truncated at
// the first turn marker; on successful completion the truncated reply is
// appended to history and the session returns to Ready. Cancelling ctx ends
// the turn early, keeping whatever text had accumulated as the assistant
// turn.
func (s *Session) Send(ctx context.Context, userText string) (<-chan Chunk, error) {
	s.mu.Lock()
	if s.state != StateReady {
		state := s.state
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrInvalidState, state)
	}
	s.history = append(s.history, Turn{Role: RoleUser, Text: userText})
	prompt := RenderPrompt(s.history)
	s.state = StateGenerating
	engine := s.engine
	s.mu.Unlock()

	tokens, errs := engine.Generate(ctx, prompt, GenerateOptions{
		MaxTokens: DefaultMaxNewTokens,
		Stop:      StopSequences(),
	})

	out := make(chan Chunk, 16)
	go s.stream(ctx, tokens, errs, out)
	return out, nil
}

// stream drains the engine's token stream into out, applying stop-sequence
// truncation, and settles the session state when the turn ends.
func (s *Session) stream(ctx context.Context, tokens <-chan string, errs <-chan error, out chan<- Chunk) {
	defer close(out)

	scanner := newStopScanner(StopSequences())
	var reply strings.Builder

	emit := func(text string) {
		if text == "" {
			return
		}
		reply.WriteString(text)
		select {
		case out <- Chunk{Text: text}:
		case <-ctx.Done():
		}
	}

	for tokens != nil || errs != nil {
		select {
		case token, ok := <-tokens:
			if !ok {
				tokens = nil
				continue
			}
			_, _ = s.rawTail.WriteString(token)
			text, stopped := scanner.feed(token)
			emit(text)
			if stopped {
				// The reply is complete; anything further would be the
				// engine speaking for the next turn.
				s.settle(ctx, reply.String(), nil, out)
				return
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				s.settle(ctx, reply.String(), err, out)
				return
			}
		case <-ctx.Done():
			// Caller-initiated stop; keep the accumulated text.
			s.settle(ctx, reply.String(), nil, out)
			return
		}
	}

	emit(scanner.flush())
	s.settle(ctx, reply.String(), nil, out)
}

// settle records the turn outcome: the assistant turn on success (back to
// Ready), or the Failed state on an engine error.
func (s *Session) settle(ctx context.Context, reply string, err error, out chan<- Chunk) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		if s.state == StateGenerating {
			s.state = StateFailed
		}
		s.log.Warnf("Generation for model %s failed: %v (raw tail: %q)",
			s.model.ID, err, s.rawTail.String())
		deliver(ctx, out, Chunk{Err: err})
		return
	}
	if s.state != StateGenerating {
		// Closed mid-stream; history is frozen.
		return
	}
	s.history = append(s.history, Turn{Role: RoleAssistant, Text: strings.TrimSpace(reply)})
	s.state = StateReady
	deliver(ctx, out, Chunk{Done: true})
}

// deliver sends a terminal chunk unless the caller has gone away.
func deliver(ctx context.Context, out chan<- Chunk, chunk Chunk) {
	select {
	case out <- chunk:
	case <-ctx.Done():
	}
}

// Close releases the engine context and transitions to Closed. It is valid
// from any state and idempotent; this is the sole release path for the
// engine.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	engine := s.engine
	s.engine = nil
	s.state = StateClosed
	s.mu.Unlock()

	if engine != nil {
		if err := engine.Release(); err != nil {
			s.log.Warnf("Error releasing engine for model %s: %v", s.model.ID, err)
		}
	}
	if s.release != nil {
		s.release(s)
	}
	s.log.Infof("Session for model %s closed", s.model.ID)
	return nil
}
