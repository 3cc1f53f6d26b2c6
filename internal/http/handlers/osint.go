package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sherlock-labs/screenshot-sherlock/internal/pipeline"
	"github.com/sherlock-labs/screenshot-sherlock/pkg/logging"
)

// OSINTHandler exposes username enrichment directly.
type OSINTHandler struct {
	svc    *pipeline.Service
	logger *logging.Logger
}

func NewOSINTHandler(svc *pipeline.Service, logger *logging.Logger) *OSINTHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &OSINTHandler{svc: svc, logger: logger}
}

// Check handles POST /api/osint/check/{username}. A failed scan is still a
// 200 carrying {"error": ...}.
func (h *OSINTHandler) Check(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}
	res, err := h.svc.CheckUsername(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		writeServiceError(w, h.logger, err, "Username")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type analyzeContextRequest struct {
	ConversationID string `json:"conversation_id"`
}

// AnalyzeContext handles POST /api/osint/analyze-context.
func (h *OSINTHandler) AnalyzeContext(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req analyzeContextRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.ConversationID) == "" {
		jsonError(w, "conversation_id is required", http.StatusBadRequest)
		return
	}
	out, err := h.svc.AnalyzeContext(r.Context(), userID, req.ConversationID)
	if err != nil {
		writeServiceError(w, h.logger, err, "Conversation")
		return
	}
	if out.Result == nil {
		writeMessage(w, out.Message)
		return
	}
	writeJSON(w, http.StatusOK, out.Result)
}
