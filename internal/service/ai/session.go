package ai

import (
	"context"
	"sync"
)

// ProgressFunc receives the accumulated answer text after every streamed chunk.
type ProgressFunc func(partial string)

// Provider creates conversation sessions against a chat backend.
type Provider interface {
	NewSession(ctx context.Context) (Session, error)
}

// Session is a single conversation with the chat backend. Earlier turns are
// kept by the session and sent as context with every question.
type Session interface {
	ID() string
	Authenticated(ctx context.Context) bool
	Send(ctx context.Context, question string, onProgress ProgressFunc) (string, error)
}

// Turn is one completed question/answer exchange.
type Turn struct {
	Question string
	Answer   string
}

const historyLimit = 10

// transcript stores completed turns for a session.
type transcript struct {
	mu    sync.Mutex
	turns []Turn
}

func (t *transcript) append(question, answer string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.turns = append(t.turns, Turn{Question: question, Answer: answer})
}

// recent returns at most historyLimit of the latest turns.
func (t *transcript) recent() []Turn {
	t.mu.Lock()
	defer t.mu.Unlock()

	start := 0
	if len(t.turns) > historyLimit {
		start = len(t.turns) - historyLimit
	}
	out := make([]Turn, len(t.turns)-start)
	copy(out, t.turns[start:])
	return out
}
