package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sherlock-labs/screenshot-sherlock/internal/pipeline"
	"github.com/sherlock-labs/screenshot-sherlock/pkg/logging"
)

// AnalysisHandler runs and serves screenshot analyses.
type AnalysisHandler struct {
	svc    *pipeline.Service
	logger *logging.Logger
}

func NewAnalysisHandler(svc *pipeline.Service, logger *logging.Logger) *AnalysisHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AnalysisHandler{svc: svc, logger: logger}
}

type analyzeRequest struct {
	ConversationID  string `json:"conversation_id"`
	ScreenshotIndex int    `json:"screenshot_index"`
}

// Analyze handles POST /api/analyses.
func (h *AnalysisHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req analyzeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.ConversationID = strings.TrimSpace(req.ConversationID)
	if req.ConversationID == "" {
		jsonError(w, "conversation_id is required", http.StatusBadRequest)
		return
	}
	if req.ScreenshotIndex < 0 {
		jsonError(w, "screenshot_index must not be negative", http.StatusBadRequest)
		return
	}

	a, err := h.svc.Analyze(r.Context(), pipeline.AnalyzeInput{
		UserID:          userID,
		ConversationID:  req.ConversationID,
		ScreenshotIndex: req.ScreenshotIndex,
	})
	if err != nil {
		writeServiceError(w, h.logger, err, "Conversation")
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// Get handles GET /api/analyses/{analysisID}.
func (h *AnalysisHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	a, err := h.svc.GetAnalysis(r.Context(), userID, chi.URLParam(r, "analysisID"))
	if err != nil {
		writeServiceError(w, h.logger, err, "Analysis")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// Delete handles DELETE /api/analyses/{analysisID}.
func (h *AnalysisHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteAnalysis(r.Context(), userID, chi.URLParam(r, "analysisID")); err != nil {
		writeServiceError(w, h.logger, err, "Analysis")
		return
	}
	writeMessage(w, "Analysis deleted successfully")
}
