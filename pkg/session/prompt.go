package session

import "strings"

const (
	// turnStart and turnEnd are the ChatML role markers the bound models use
	// as turn delimiters.
	turnStart = "<|im_start|>"
	turnEnd   = "<|im_end|>"
	// systemPreamble opens every rendered prompt.
	systemPreamble = "You are a helpful assistant."
)

// Role tags a conversation turn.
type Role string

const (
	// RoleUser marks a user turn.
	RoleUser Role = "user"
	// RoleAssistant marks an assistant turn.
	RoleAssistant Role = "assistant"
)

// Turn is one role-tagged message in a conversation.
type Turn struct {
	Role Role
	Text string
}

// RenderPrompt renders the full conversation history into a single ChatML
// prompt: a system preamble, each turn wrapped in role markers, and a
// trailing open assistant marker so the engine continues from there. The full
// history is re-rendered every turn; the template is stateless text, which
// keeps correctness independent of whatever incremental decoding the engine
// applies internally.
func RenderPrompt(history []Turn) string {
	var b strings.Builder
	b.WriteString(turnStart + "system\n" + systemPreamble + turnEnd + "\n")
	for _, turn := range history {
		b.WriteString(turnStart + string(turn.Role) + "\n" + turn.Text + turnEnd + "\n")
	}
	b.WriteString(turnStart + "assistant\n")
	return b.String()
}

// StopSequences returns the markers whose occurrence ends a generation early,
// so the engine cannot speak for the next user turn.
func StopSequences() []string {
	return []string{turnEnd, turnStart}
}

// stopScanner incrementally truncates a token stream at the first occurrence
// of a stop marker. Markers can straddle chunk boundaries, so the scanner
// holds back any trailing bytes that could still turn out to be a marker
// prefix.
type stopScanner struct {
	// stops are the literal stop markers.
	stops []string
	// pending holds bytes not yet cleared for emission.
	pending string
	// stopped is set once a marker has been seen; all further input is
	// discarded.
	stopped bool
}

func newStopScanner(stops []string) *stopScanner {
	return &stopScanner{stops: stops}
}

// feed consumes the next chunk and returns the text cleared for emission.
// stopped reports whether a stop marker has been reached.
func (s *stopScanner) feed(chunk string) (emit string, stopped bool) {
	if s.stopped {
		return "", true
	}
	s.pending += chunk

	// Truncate at the earliest marker occurrence.
	cut := -1
	for _, stop := range s.stops {
		if idx := strings.Index(s.pending, stop); idx >= 0 && (cut < 0 || idx < cut) {
			cut = idx
		}
	}
	if cut >= 0 {
		emit = s.pending[:cut]
		s.pending = ""
		s.stopped = true
		return emit, true
	}

	// Hold back the longest suffix that is a prefix of some marker.
	hold := 0
	for _, stop := range s.stops {
		max := len(stop) - 1
		if max > len(s.pending) {
			max = len(s.pending)
		}
		for n := max; n > hold; n-- {
			if strings.HasPrefix(stop, s.pending[len(s.pending)-n:]) {
				hold = n
				break
			}
		}
	}
	emit = s.pending[:len(s.pending)-hold]
	s.pending = s.pending[len(s.pending)-hold:]
	return emit, false
}

// flush returns any held-back text once the stream has ended without a
// marker.
func (s *stopScanner) flush() string {
	if s.stopped {
		return ""
	}
	rest := s.pending
	s.pending = ""
	return rest
}
