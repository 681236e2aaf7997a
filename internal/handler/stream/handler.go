package stream

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	chatservice "github.com/zhouzirui/z-ask/backend/internal/service/chat"
	"github.com/zhouzirui/z-ask/backend/pkg/utils"
)

const defaultKeepAlive = 15 * time.Second

// Handler pushes screen events to clients via Server-Sent Events.
type Handler struct {
	chatSvc   *chatservice.Service
	keepAlive time.Duration
}

// New creates a new stream handler
func New(chatSvc *chatservice.Service) *Handler {
	return &Handler{chatSvc: chatSvc, keepAlive: defaultKeepAlive}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/events", h.handleEvents)
}

// handleEvents opens with a "screen" snapshot, then relays every event the
// chat service publishes under its type name.
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ctx := r.Context()

	// subscribe before the snapshot so nothing published in between is lost
	events, cancel := h.chatSvc.Subscribe(0)
	defer cancel()

	view, err := h.chatSvc.Snapshot(ctx)
	if err != nil {
		utils.RespondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	if err := utils.SendSSEEvent(w, flusher, "screen", view); err != nil {
		return
	}

	reqID := chimw.GetReqID(ctx)
	log.Debug().Str("component", "sse").Str("request_id", reqID).Msg("event stream opened")

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("component", "sse").Str("request_id", reqID).Msg("event stream closed by client")
			return
		case ev, ok := <-events:
			if !ok {
				log.Debug().Str("component", "sse").Str("request_id", reqID).Msg("chat service stopped, closing event stream")
				return
			}
			if err := utils.SendSSEEvent(w, flusher, string(ev.Type), ev); err != nil {
				log.Warn().Err(err).Str("component", "sse").Msg("failed to write event")
				return
			}
		case <-ticker.C:
			if err := utils.SendSSEComment(w, flusher, "keep-alive"); err != nil {
				return
			}
		}
	}
}
