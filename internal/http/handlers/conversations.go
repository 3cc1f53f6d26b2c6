package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sherlock-labs/screenshot-sherlock/internal/pipeline"
	"github.com/sherlock-labs/screenshot-sherlock/internal/store"
	"github.com/sherlock-labs/screenshot-sherlock/pkg/logging"
)

const (
	defaultConversationPage = 20
	maxConversationPage     = 100
)

// ConversationHandler serves conversation CRUD and history.
type ConversationHandler struct {
	svc    *pipeline.Service
	logger *logging.Logger
}

func NewConversationHandler(svc *pipeline.Service, logger *logging.Logger) *ConversationHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &ConversationHandler{svc: svc, logger: logger}
}

// ListConversationsResponse is the response for listing conversations.
type ListConversationsResponse struct {
	Conversations []pipeline.ConversationSummary `json:"conversations"`
	Count         int                            `json:"count"`
	Limit         int                            `json:"limit"`
	Skip          int                            `json:"skip"`
}

// List handles GET /api/conversations?limit=&skip=.
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	limit := queryInt(r, "limit", defaultConversationPage, 1, maxConversationPage)
	skip := queryInt(r, "skip", 0, 0, 1<<30)

	list, err := h.svc.ListConversations(r.Context(), userID, limit, skip)
	if err != nil {
		writeServiceError(w, h.logger, err, "Conversation")
		return
	}
	writeJSON(w, http.StatusOK, ListConversationsResponse{
		Conversations: list,
		Count:         len(list),
		Limit:         limit,
		Skip:          skip,
	})
}

type createConversationRequest struct {
	Platform        string `json:"platform"`
	ParticipantName string `json:"participant_name"`
}

// Create handles POST /api/conversations.
func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req createConversationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := h.svc.CreateConversation(r.Context(), userID, req.Platform, req.ParticipantName)
	if err != nil {
		writeServiceError(w, h.logger, err, "Conversation")
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// Get handles GET /api/conversations/{conversationID}.
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	c, err := h.svc.GetConversation(r.Context(), userID, chi.URLParam(r, "conversationID"))
	if err != nil {
		writeServiceError(w, h.logger, err, "Conversation")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type updateConversationRequest struct {
	Platform        *string `json:"platform"`
	ParticipantName *string `json:"participant_name"`
}

// Update handles PUT /api/conversations/{conversationID}.
func (h *ConversationHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req updateConversationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := h.svc.UpdateConversation(r.Context(), userID, chi.URLParam(r, "conversationID"), store.MetaUpdate{
		Platform:        req.Platform,
		ParticipantName: req.ParticipantName,
	})
	if err != nil {
		writeServiceError(w, h.logger, err, "Conversation")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Delete handles DELETE /api/conversations/{conversationID}.
func (h *ConversationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteConversation(r.Context(), userID, chi.URLParam(r, "conversationID")); err != nil {
		writeServiceError(w, h.logger, err, "Conversation")
		return
	}
	writeMessage(w, "Conversation deleted successfully")
}

// Timeline handles GET /api/conversations/{conversationID}/timeline.
func (h *ConversationHandler) Timeline(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	points, err := h.svc.Timeline(r.Context(), userID, chi.URLParam(r, "conversationID"))
	if err != nil {
		writeServiceError(w, h.logger, err, "Conversation")
		return
	}
	writeJSON(w, http.StatusOK, points)
}

// Analyses handles GET /api/conversations/{conversationID}/analyses.
func (h *ConversationHandler) Analyses(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	list, err := h.svc.ConversationAnalyses(r.Context(), userID, chi.URLParam(r, "conversationID"))
	if err != nil {
		writeServiceError(w, h.logger, err, "Conversation")
		return
	}
	writeJSON(w, http.StatusOK, list)
}
