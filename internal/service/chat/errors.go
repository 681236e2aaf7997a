package chat

import "github.com/pkg/errors"

var (
	ErrUnauthenticated   = errors.New("session token is invalid")
	ErrAnswerNotFound    = errors.New("answer not found")
	ErrNothingToShare    = errors.New("conversation has no answers to share")
	ErrInvalidField      = errors.New("field must be answer or question")
	ErrSpeechUnavailable = errors.New("speech is not available")
	ErrClosed            = errors.New("chat service stopped")
)
