package chat

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/z-ask/backend/internal/handler/httperr"
	chatservice "github.com/zhouzirui/z-ask/backend/internal/service/chat"
	"github.com/zhouzirui/z-ask/backend/pkg/utils"
)

// Handler exposes the chat screen over HTTP.
type Handler struct {
	chatSvc *chatservice.Service
}

func New(chatSvc *chatservice.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/screen", h.handleScreen)
	r.Put("/screen/search", h.handleSetSearch)
	r.Put("/screen/selection", h.handleSelect)

	r.Post("/answers", h.handleSubmit)
	r.Get("/answers/{answerID}", h.handleGetAnswer)
	r.Post("/answers/{answerID}/copy", h.handleCopy)
	r.Post("/answers/{answerID}/save", h.handleSave)

	r.Get("/favorites", h.handleFavorites)

	r.Post("/conversation/reset", h.handleReset)
	r.Post("/conversation/export", h.handleExport)
}

func (h *Handler) handleScreen(w http.ResponseWriter, r *http.Request) {
	view, err := h.chatSvc.Snapshot(r.Context())
	if err != nil {
		httperr.Respond(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, view)
}

func (h *Handler) handleSetSearch(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text string `json:"text"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.chatSvc.SetSearchText(r.Context(), payload.Text); err != nil {
		httperr.Respond(w, r, err)
		return
	}
	h.handleScreen(w, r)
}

func (h *Handler) handleSelect(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ID string `json:"id"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.ID == "" {
		utils.RespondError(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := h.chatSvc.Select(r.Context(), payload.ID); err != nil {
		httperr.Respond(w, r, err)
		return
	}
	h.handleScreen(w, r)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Question string `json:"question"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(payload.Question) == "" {
		utils.RespondError(w, http.StatusBadRequest, "question is required")
		return
	}

	pending, err := h.chatSvc.Submit(r.Context(), payload.Question)
	if err != nil {
		httperr.Respond(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusAccepted, pending)
}

func (h *Handler) handleGetAnswer(w http.ResponseWriter, r *http.Request) {
	a, err := h.chatSvc.Answer(r.Context(), chi.URLParam(r, "answerID"))
	if err != nil {
		httperr.Respond(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, a)
}

func (h *Handler) handleCopy(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Field string `json:"field"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Field == "" {
		payload.Field = string(chatservice.FieldAnswer)
	}

	if err := h.chatSvc.Copy(r.Context(), chi.URLParam(r, "answerID"), chatservice.Field(payload.Field)); err != nil {
		httperr.Respond(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSave(w http.ResponseWriter, r *http.Request) {
	fav, err := h.chatSvc.Save(r.Context(), chi.URLParam(r, "answerID"))
	if err != nil {
		httperr.Respond(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, fav)
}

func (h *Handler) handleFavorites(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.chatSvc.Favorites())
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	conversationID, err := h.chatSvc.Reset(r.Context())
	if err != nil {
		httperr.Respond(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"conversationId": conversationID})
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	url, err := h.chatSvc.Export(r.Context())
	if err != nil {
		httperr.Respond(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"url": url})
}
