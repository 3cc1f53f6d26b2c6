package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sherlock-labs/screenshot-sherlock/internal/pipeline"
	"github.com/sherlock-labs/screenshot-sherlock/pkg/logging"
)

// WingmanHandler serves coaching derived from stored analyses.
type WingmanHandler struct {
	svc    *pipeline.Service
	logger *logging.Logger
}

func NewWingmanHandler(svc *pipeline.Service, logger *logging.Logger) *WingmanHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &WingmanHandler{svc: svc, logger: logger}
}

type suggestReplyRequest struct {
	ConversationContext string `json:"conversation_context"`
	CurrentMessage      string `json:"current_message"`
}

// SuggestReply handles POST /api/wingman/suggest-reply.
func (h *WingmanHandler) SuggestReply(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req suggestReplyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	replies, err := h.svc.SuggestReplies(r.Context(), userID, req.ConversationContext, req.CurrentMessage)
	if err != nil {
		writeServiceError(w, h.logger, err, "User")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"suggestions": replies})
}

// RealityCheck handles POST /api/wingman/reality-check/{analysisID}.
func (h *WingmanHandler) RealityCheck(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	rc, err := h.svc.RealityCheck(r.Context(), userID, chi.URLParam(r, "analysisID"))
	if err != nil {
		writeServiceError(w, h.logger, err, "Analysis")
		return
	}
	writeJSON(w, http.StatusOK, rc)
}

// Coaching handles GET /api/wingman/coaching/{analysisID}.
func (h *WingmanHandler) Coaching(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	c, err := h.svc.Coaching(r.Context(), userID, chi.URLParam(r, "analysisID"))
	if err != nil {
		writeServiceError(w, h.logger, err, "Analysis")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// QuickStats handles GET /api/wingman/quick-stats/{analysisID}.
func (h *WingmanHandler) QuickStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	qs, err := h.svc.QuickStats(r.Context(), userID, chi.URLParam(r, "analysisID"))
	if err != nil {
		writeServiceError(w, h.logger, err, "Analysis")
		return
	}
	writeJSON(w, http.StatusOK, qs)
}

// Overthinking handles GET /api/wingman/overthinking.
func (h *WingmanHandler) Overthinking(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	verdict, err := h.svc.Overthinking(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.logger, err, "User")
		return
	}
	writeJSON(w, http.StatusOK, verdict)
}
