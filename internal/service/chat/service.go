package chat

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/z-ask/backend/internal/model/answer"
	"github.com/zhouzirui/z-ask/backend/internal/service/ai"
)

const defaultSendTimeout = 2 * time.Minute

// FavoriteStore persists saved answers.
type FavoriteStore interface {
	Save(ctx context.Context, a answer.Answer, now time.Time) (answer.Favorite, error)
	List() []answer.Favorite
}

// Clipboard receives copied text.
type Clipboard interface {
	WriteText(text string) error
}

// Speaker turns answer text into audio. Speak replaces any running synthesis.
type Speaker interface {
	Speak(ctx context.Context, text string) ([]byte, error)
	Stop()
}

// Sharer uploads a conversation and returns its public link.
type Sharer interface {
	Share(ctx context.Context, answers []answer.Answer) (string, error)
}

// Options wires the collaborators of a Service.
type Options struct {
	Provider    ai.Provider
	Favorites   FavoriteStore
	Clipboard   Clipboard
	Speaker     Speaker
	Sharer      Sharer
	SendTimeout time.Duration
	Now         func() time.Time
}

type op func(st *state)

// Service owns the screen state. All state lives on the goroutine started by
// Run; every public method hands it a closure and waits for the result.
type Service struct {
	provider    ai.Provider
	favorites   FavoriteStore
	clipboard   Clipboard
	speaker     Speaker
	sharer      Sharer
	sendTimeout time.Duration
	now         func() time.Time

	ops  chan op
	done chan struct{}
	hub  *hub

	runCtx context.Context
	sends  sync.WaitGroup

	st state
}

// New creates the service and opens the first conversation.
func New(ctx context.Context, opts Options) (*Service, error) {
	if opts.Provider == nil {
		return nil, errors.New("chat provider is required")
	}
	if opts.Favorites == nil {
		return nil, errors.New("favorites store is required")
	}

	session, err := opts.Provider.NewSession(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "open conversation session")
	}

	timeout := opts.SendTimeout
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	s := &Service{
		provider:    opts.Provider,
		favorites:   opts.Favorites,
		clipboard:   opts.Clipboard,
		speaker:     opts.Speaker,
		sharer:      opts.Sharer,
		sendTimeout: timeout,
		now:         now,
		ops:         make(chan op),
		done:        make(chan struct{}),
		hub:         newHub(),
		runCtx:      context.Background(),
	}
	s.st.conversationID = uuid.NewString()
	s.st.session = session

	return s, nil
}

// Run processes screen operations until ctx is cancelled. Sends that are
// still streaming are cancelled with it.
func (s *Service) Run(ctx context.Context) error {
	s.runCtx = ctx
	log.Info().
		Str("component", "chat").
		Str("conversation_id", s.st.conversationID).
		Msg("screen loop started")

	defer func() {
		close(s.done)
		s.hub.closeAll()
		log.Info().Str("component", "chat").Msg("screen loop stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case fn := <-s.ops:
			fn(&s.st)
		}
	}
}

// do runs fn on the screen loop and waits for it to finish.
func (s *Service) do(ctx context.Context, fn op) error {
	reply := make(chan struct{})
	wrapped := func(st *state) {
		defer close(reply)
		fn(st)
	}

	select {
	case s.ops <- wrapped:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrClosed
	}
	<-reply
	return nil
}

// post queues fn without waiting. It is dropped once the loop has stopped.
func (s *Service) post(fn op) {
	select {
	case s.ops <- fn:
	case <-s.done:
	}
}

// Subscribe streams screen events. Slow subscribers miss events instead of
// stalling the screen. Call cancel to stop receiving.
func (s *Service) Subscribe(buffer int) (<-chan Event, func()) {
	return s.hub.subscribe(buffer)
}

// Wait blocks until every started send has finished.
func (s *Service) Wait() {
	s.sends.Wait()
}

// Snapshot returns the current view.
func (s *Service) Snapshot(ctx context.Context) (View, error) {
	var view View
	err := s.do(ctx, func(st *state) {
		view = st.view()
	})
	return view, err
}

// Answer returns the answer with id from the current conversation.
func (s *Service) Answer(ctx context.Context, id string) (answer.Answer, error) {
	var (
		found answer.Answer
		ok    bool
	)
	if err := s.do(ctx, func(st *state) {
		found, ok = st.find(id)
	}); err != nil {
		return answer.Answer{}, err
	}
	if !ok {
		return answer.Answer{}, errors.Wrapf(ErrAnswerNotFound, "answer %s", id)
	}
	return found, nil
}

// Favorites lists saved answers in the order they were saved.
func (s *Service) Favorites() []answer.Favorite {
	return s.favorites.List()
}

// Submit asks question in the current conversation. It returns the pending
// answer right away; progress and completion arrive as events.
func (s *Service) Submit(ctx context.Context, question string) (answer.Answer, error) {
	notice := s.notify(answer.Notification{Style: answer.StyleAnimated, Title: "Getting your answer..."})

	var session ai.Session
	if err := s.do(ctx, func(st *state) {
		session = st.session
	}); err != nil {
		return answer.Answer{}, err
	}

	if session == nil || !session.Authenticated(ctx) {
		notice.Style = answer.StyleFailure
		notice.Title = "Your session token is invalid!"
		notice.Message = "Check the chat provider credentials in your configuration."
		s.notify(notice)
		return answer.Answer{}, ErrUnauthenticated
	}

	var pending answer.Answer
	err := s.do(ctx, func(st *state) {
		pending = answer.Answer{
			ID:             uuid.NewString(),
			Question:       question,
			ConversationID: st.conversationID,
			CreatedAt:      s.now(),
		}
		st.answers = append(st.answers, pending)
		st.selectedID = pending.ID
		st.inflight++

		s.publishAnswer(pending)
		s.hub.publish(Event{Type: EventSelection, SelectedID: pending.ID})

		s.sends.Add(1)
		go s.send(st.session, st.generation, pending.ID, question, notice)
	})
	if err != nil {
		return answer.Answer{}, err
	}

	log.Info().
		Str("component", "chat").
		Str("answer_id", pending.ID).
		Str("conversation_id", pending.ConversationID).
		Msg("question submitted")

	return pending, nil
}

func (s *Service) send(session ai.Session, generation int, id, question string, notice answer.Notification) {
	defer s.sends.Done()

	ctx, cancel := context.WithTimeout(s.runCtx, s.sendTimeout)
	defer cancel()

	final, err := session.Send(ctx, question, func(partial string) {
		s.post(func(st *state) {
			if st.generation != generation {
				return
			}
			if updated, ok := st.updatePartial(id, partial); ok {
				s.publishAnswer(updated)
			}
		})
	})

	s.post(func(st *state) {
		// the notice always resolves; a reset only discards the record
		current := st.generation == generation
		if current {
			st.inflight--
		}

		if err != nil {
			log.Error().Err(err).
				Str("component", "chat").
				Str("answer_id", id).
				Bool("stale", !current).
				Msg("answer failed")
			notice.Style = answer.StyleFailure
			notice.Title = "Error"
			notice.Message = err.Error()
			s.notify(notice)
			return
		}

		if current {
			if updated, ok := st.complete(id, final); ok {
				s.publishAnswer(updated)
			}
			st.searchText = ""
			s.publishSearch("")
		}

		notice.Style = answer.StyleSuccess
		notice.Title = "Got your answer!"
		s.notify(notice)
	})
}

// notify publishes n, assigning an ID to new notifications.
func (s *Service) notify(n answer.Notification) answer.Notification {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	s.hub.publish(Event{Type: EventNotification, Notification: &n})
	return n
}

func (s *Service) publishAnswer(a answer.Answer) {
	s.hub.publish(Event{Type: EventAnswer, Answer: &a})
}

func (s *Service) publishSearch(text string) {
	s.hub.publish(Event{Type: EventSearch, SearchText: &text})
}
