package httperr

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/z-ask/backend/internal/service/chat"
	"github.com/zhouzirui/z-ask/backend/internal/service/speech"
	"github.com/zhouzirui/z-ask/backend/pkg/utils"
)

// Status maps service errors onto HTTP status codes. Anything unrecognised
// is treated as a failing upstream collaborator.
func Status(err error) int {
	switch {
	case errors.Is(err, chat.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, chat.ErrAnswerNotFound):
		return http.StatusNotFound
	case errors.Is(err, chat.ErrNothingToShare):
		return http.StatusConflict
	case errors.Is(err, chat.ErrInvalidField):
		return http.StatusBadRequest
	case errors.Is(err, chat.ErrSpeechUnavailable), errors.Is(err, speech.ErrSpeechDisabled), errors.Is(err, chat.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled):
		return 499
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

// Respond writes err as a JSON error body.
func Respond(w http.ResponseWriter, r *http.Request, err error) {
	status := Status(err)
	if status >= 500 {
		log.Error().Err(err).Str("component", "http").Str("path", r.URL.Path).Msg("request failed")
	}
	utils.RespondError(w, status, err.Error())
}
