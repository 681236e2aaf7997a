package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/z-ask/backend/internal/handler/chat"
	"github.com/zhouzirui/z-ask/backend/internal/handler/speech"
	"github.com/zhouzirui/z-ask/backend/internal/handler/stream"
	middlewarePkg "github.com/zhouzirui/z-ask/backend/internal/middleware"
	chatService "github.com/zhouzirui/z-ask/backend/internal/service/chat"
	speechService "github.com/zhouzirui/z-ask/backend/internal/service/speech"
	"github.com/zhouzirui/z-ask/backend/pkg/utils"
)

// NewRouter wires HTTP routes to the chat screen. synth may be nil when no
// speech credentials are configured.
func NewRouter(chatSvc *chatService.Service, synth speechService.Synthesizer, speechEnabled bool) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		chat.New(chatSvc).RegisterRoutes(api)
		stream.New(chatSvc).RegisterRoutes(api)
		speech.New(chatSvc, synth, speechEnabled).RegisterRoutes(api)
	})

	return r
}
