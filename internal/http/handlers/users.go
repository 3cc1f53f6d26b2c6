package handlers

import (
	"net/http"

	"github.com/sherlock-labs/screenshot-sherlock/internal/http/middleware"
	"github.com/sherlock-labs/screenshot-sherlock/internal/pipeline"
	"github.com/sherlock-labs/screenshot-sherlock/internal/users"
	"github.com/sherlock-labs/screenshot-sherlock/pkg/logging"
)

// UserHandler serves the caller's profile.
type UserHandler struct {
	svc    *pipeline.Service
	logger *logging.Logger
}

func NewUserHandler(svc *pipeline.Service, logger *logging.Logger) *UserHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &UserHandler{svc: svc, logger: logger}
}

// GetMe handles GET /api/me. The profile is created on first call.
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	email := ""
	if claims, ok := middleware.UserClaimsFromContext(r.Context()); ok {
		email = claims.Email
	}
	u, err := h.svc.EnsureUser(r.Context(), userID, email)
	if err != nil {
		writeServiceError(w, h.logger, err, "User")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// UpdatePreferences handles PUT /api/me/preferences.
func (h *UserHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var prefs users.Preferences
	if !decodeJSON(w, r, &prefs) {
		return
	}
	u, err := h.svc.UpdatePreferences(r.Context(), userID, prefs)
	if err != nil {
		writeServiceError(w, h.logger, err, "User")
		return
	}
	writeJSON(w, http.StatusOK, u)
}
