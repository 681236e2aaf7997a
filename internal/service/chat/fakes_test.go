package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/z-ask/backend/internal/model/answer"
	"github.com/zhouzirui/z-ask/backend/internal/service/ai"
	"github.com/zhouzirui/z-ask/backend/internal/service/favorites"
	"github.com/zhouzirui/z-ask/backend/internal/storage/kv"
)

// reply scripts one Send call.
type reply struct {
	progress []string
	final    string
	err      error
}

type fakeSession struct {
	id            string
	authenticated bool

	mu      sync.Mutex
	replies map[string]reply
	gates   map[string]chan struct{}
}

func (s *fakeSession) ID() string { return s.id }

func (s *fakeSession) Authenticated(context.Context) bool { return s.authenticated }

func (s *fakeSession) Send(ctx context.Context, question string, onProgress ai.ProgressFunc) (string, error) {
	s.mu.Lock()
	r, ok := s.replies[question]
	gate := s.gates[question]
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if !ok {
		r = reply{final: "answer to " + question}
	}
	for _, p := range r.progress {
		onProgress(p)
	}
	if r.err != nil {
		return "", r.err
	}
	return r.final, nil
}

// gate holds the reply to question until the returned func is called.
func (s *fakeSession) gate(question string) func() {
	ch := make(chan struct{})
	s.mu.Lock()
	if s.gates == nil {
		s.gates = make(map[string]chan struct{})
	}
	s.gates[question] = ch
	s.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

func (s *fakeSession) script(question string, r reply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.replies == nil {
		s.replies = make(map[string]reply)
	}
	s.replies[question] = r
}

type fakeProvider struct {
	mu            sync.Mutex
	authenticated bool
	sessions      []*fakeSession
	err           error
}

func (p *fakeProvider) NewSession(context.Context) (ai.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	s := &fakeSession{id: uuid.NewString(), authenticated: p.authenticated}
	p.sessions = append(p.sessions, s)
	return s, nil
}

func (p *fakeProvider) current() *fakeSession {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sessions[len(p.sessions)-1]
}

type memoryClipboard struct {
	mu   sync.Mutex
	text string
	err  error
}

func (c *memoryClipboard) WriteText(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.text = text
	return nil
}

func (c *memoryClipboard) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text
}

type fakeSpeaker struct {
	mu      sync.Mutex
	spoken  []string
	stopped int
}

func (s *fakeSpeaker) Speak(_ context.Context, text string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spoken = append(s.spoken, text)
	return []byte("mp3:" + text), nil
}

func (s *fakeSpeaker) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped++
}

type fakeSharer struct {
	mu       sync.Mutex
	received []answer.Answer
	url      string
	err      error
}

func (s *fakeSharer) Share(_ context.Context, answers []answer.Answer) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.received = answers
	return s.url, nil
}

// stepClock advances one second on every reading.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type harness struct {
	svc       *Service
	provider  *fakeProvider
	favorites *favorites.Store
	backend   *kv.MemoryStore
	clipboard *memoryClipboard
	speaker   *fakeSpeaker
	sharer    *fakeSharer
}

func newHarness(t *testing.T, authenticated bool) *harness {
	t.Helper()

	h := &harness{
		provider:  &fakeProvider{authenticated: authenticated},
		backend:   kv.NewMemoryStore(),
		clipboard: &memoryClipboard{},
		speaker:   &fakeSpeaker{},
		sharer:    &fakeSharer{url: "https://shareg.pt/abc123"},
	}
	h.favorites = favorites.NewStore(h.backend)

	clock := &stepClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	svc, err := New(context.Background(), Options{
		Provider:    h.provider,
		Favorites:   h.favorites,
		Clipboard:   h.clipboard,
		Speaker:     h.speaker,
		Sharer:      h.sharer,
		SendTimeout: 5 * time.Second,
		Now:         clock.Now,
	})
	require.NoError(t, err)
	h.svc = svc

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		_ = svc.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-stopped
		svc.Wait()
	})
	return h
}

func (h *harness) view(t *testing.T) View {
	t.Helper()
	view, err := h.svc.Snapshot(context.Background())
	require.NoError(t, err)
	return view
}

// waitFor reads events until match returns true.
func waitFor(t *testing.T, events <-chan Event, match func(Event) bool) Event {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			require.True(t, ok, "event stream closed")
			if match(ev) {
				return ev
			}
		case <-timeout:
			require.FailNow(t, "timed out waiting for event")
		}
	}
}

func notificationTitled(title string) func(Event) bool {
	return func(ev Event) bool {
		return ev.Type == EventNotification && ev.Notification.Title == title
	}
}

var errBoom = errors.New("boom")
