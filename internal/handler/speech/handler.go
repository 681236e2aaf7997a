package speech

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/z-ask/backend/internal/handler/httperr"
	"github.com/zhouzirui/z-ask/backend/internal/model/speech"
	chatservice "github.com/zhouzirui/z-ask/backend/internal/service/chat"
	speechsvc "github.com/zhouzirui/z-ask/backend/internal/service/speech"
	"github.com/zhouzirui/z-ask/backend/pkg/utils"
)

// Handler serves text-to-speech for answers and free text.
type Handler struct {
	chatSvc *chatservice.Service
	synth   speechsvc.Synthesizer
	enabled bool
}

func New(chatSvc *chatservice.Service, synth speechsvc.Synthesizer, enabled bool) *Handler {
	return &Handler{chatSvc: chatSvc, synth: synth, enabled: enabled}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/answers/{answerID}/speak", h.handleSpeakAnswer)

	r.Route("/speech", func(speechRouter chi.Router) {
		speechRouter.Post("/stop", h.handleStop)
		speechRouter.Post("/synthesize", h.handleSynthesize)
		speechRouter.Get("/health", h.handleHealth)
	})
}

func (h *Handler) handleSpeakAnswer(w http.ResponseWriter, r *http.Request) {
	audio, err := h.chatSvc.Speak(r.Context(), chi.URLParam(r, "answerID"))
	if err != nil {
		httperr.Respond(w, r, err)
		return
	}
	writeAudio(w, "mp3", audio)
}

func (h *Handler) handleStop(w http.ResponseWriter, _ *http.Request) {
	h.chatSvc.StopSpeaking()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	if !h.enabled || h.synth == nil {
		httperr.Respond(w, r, speechsvc.ErrSpeechDisabled)
		return
	}

	var req speech.TTSRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		utils.RespondError(w, http.StatusBadRequest, "text is required")
		return
	}

	resp, err := h.synth.Synthesize(r.Context(), req)
	if err != nil {
		log.Error().Err(err).Str("component", "speech").Msg("tts failed")
		httperr.Respond(w, r, err)
		return
	}
	writeAudio(w, resp.Format, resp.AudioData)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"enabled": h.enabled,
	})
}

func writeAudio(w http.ResponseWriter, format string, audio []byte) {
	contentType := "application/octet-stream"
	switch format {
	case "mp3", "":
		contentType = "audio/mpeg"
	case "pcm":
		contentType = "audio/pcm"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(audio)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(audio); err != nil {
		log.Warn().Err(err).Str("component", "speech").Msg("failed to write audio")
	}
}
