package chat

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/z-ask/backend/internal/model/answer"
)

// Field selects which part of an answer to copy.
type Field string

const (
	FieldAnswer   Field = "answer"
	FieldQuestion Field = "question"
)

// Copy writes the answer text or the question of id to the clipboard.
func (s *Service) Copy(ctx context.Context, id string, field Field) error {
	if field != FieldAnswer && field != FieldQuestion {
		return ErrInvalidField
	}
	if s.clipboard == nil {
		return errors.New("clipboard is not available")
	}

	a, err := s.Answer(ctx, id)
	if err != nil {
		return err
	}

	text := a.Text()
	title := "Copied answer to clipboard!"
	if field == FieldQuestion {
		text = a.Question
		title = "Copied question to clipboard!"
	}

	if err := s.clipboard.WriteText(text); err != nil {
		s.notify(answer.Notification{Style: answer.StyleFailure, Title: "Error", Message: err.Error()})
		return errors.Wrap(err, "write clipboard")
	}
	s.notify(answer.Notification{Style: answer.StyleSuccess, Title: title})
	return nil
}

// Save appends the answer to the persisted favorites.
func (s *Service) Save(ctx context.Context, id string) (answer.Favorite, error) {
	a, err := s.Answer(ctx, id)
	if err != nil {
		return answer.Favorite{}, err
	}

	notice := s.notify(answer.Notification{Style: answer.StyleAnimated, Title: "Saving your answer..."})

	fav, err := s.favorites.Save(ctx, a, s.now())
	if err != nil {
		notice.Style = answer.StyleFailure
		notice.Title = "Error"
		notice.Message = err.Error()
		s.notify(notice)
		return answer.Favorite{}, err
	}

	notice.Style = answer.StyleSuccess
	notice.Title = "Answer saved!"
	s.notify(notice)
	return fav, nil
}

// Speak stops any running speech and synthesizes the answer text.
func (s *Service) Speak(ctx context.Context, id string) ([]byte, error) {
	if s.speaker == nil {
		return nil, ErrSpeechUnavailable
	}

	a, err := s.Answer(ctx, id)
	if err != nil {
		return nil, err
	}

	audio, err := s.speaker.Speak(ctx, a.Text())
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.notify(answer.Notification{Style: answer.StyleFailure, Title: "Error", Message: err.Error()})
		}
		return nil, err
	}
	return audio, nil
}

// StopSpeaking cancels a running synthesis, if any.
func (s *Service) StopSpeaking() {
	if s.speaker != nil {
		s.speaker.Stop()
	}
}

// Export uploads the conversation in the order it was asked and copies the
// resulting link to the clipboard.
func (s *Service) Export(ctx context.Context) (string, error) {
	if s.sharer == nil {
		return "", errors.New("sharing is not configured")
	}

	var answers []answer.Answer
	if err := s.do(ctx, func(st *state) {
		answers = st.chronological()
	}); err != nil {
		return "", err
	}
	if len(answers) == 0 {
		return "", ErrNothingToShare
	}

	notice := s.notify(answer.Notification{Style: answer.StyleAnimated, Title: "Sharing your conversation..."})

	fail := func(err error) (string, error) {
		notice.Style = answer.StyleFailure
		notice.Title = "Error while sharing conversation"
		notice.Message = err.Error()
		s.notify(notice)
		return "", err
	}

	url, err := s.sharer.Share(ctx, answers)
	if err != nil {
		return fail(err)
	}
	if s.clipboard != nil {
		if err := s.clipboard.WriteText(url); err != nil {
			return fail(errors.Wrap(err, "write clipboard"))
		}
	}

	notice.Style = answer.StyleSuccess
	notice.Title = "Copied link to clipboard!"
	notice.Message = url
	s.notify(notice)

	log.Info().
		Str("component", "chat").
		Int("answers", len(answers)).
		Str("url", url).
		Msg("conversation shared")
	return url, nil
}

// Reset starts a new conversation with an empty answer list.
func (s *Service) Reset(ctx context.Context) (string, error) {
	session, err := s.provider.NewSession(ctx)
	if err != nil {
		s.notify(answer.Notification{Style: answer.StyleFailure, Title: "Error", Message: err.Error()})
		return "", errors.Wrap(err, "open conversation session")
	}

	var conversationID string
	err = s.do(ctx, func(st *state) {
		st.answers = nil
		st.selectedID = ""
		st.searchText = ""
		st.inflight = 0
		st.generation++
		st.session = session
		st.conversationID = uuid.NewString()
		conversationID = st.conversationID

		s.publishSearch("")
		s.hub.publish(Event{Type: EventConversation, ConversationID: conversationID})
	})
	if err != nil {
		return "", err
	}

	log.Info().
		Str("component", "chat").
		Str("conversation_id", conversationID).
		Msg("conversation reset")
	return conversationID, nil
}

// Select focuses the answer with id.
func (s *Service) Select(ctx context.Context, id string) error {
	var ok bool
	err := s.do(ctx, func(st *state) {
		if _, ok = st.find(id); ok {
			st.selectedID = id
			s.hub.publish(Event{Type: EventSelection, SelectedID: id})
		}
	})
	if err != nil {
		return err
	}
	if !ok {
		return errors.Wrapf(ErrAnswerNotFound, "answer %s", id)
	}
	return nil
}

// SetSearchText records the current search bar text.
func (s *Service) SetSearchText(ctx context.Context, text string) error {
	return s.do(ctx, func(st *state) {
		st.searchText = text
		s.publishSearch(text)
	})
}
