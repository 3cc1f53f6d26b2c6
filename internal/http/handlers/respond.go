package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/sherlock-labs/screenshot-sherlock/internal/http/middleware"
	"github.com/sherlock-labs/screenshot-sherlock/internal/pipeline"
	"github.com/sherlock-labs/screenshot-sherlock/internal/store"
	"github.com/sherlock-labs/screenshot-sherlock/internal/vision"
	"github.com/sherlock-labs/screenshot-sherlock/pkg/logging"
)

const maxJSONBody = 1 << 20

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeMessage(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusOK, map[string]string{"message": msg})
}

// decodeJSON reads a bounded JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// requireUser returns the authenticated user id or writes 401.
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok || userID == "" {
		jsonError(w, "unauthorized", http.StatusUnauthorized)
		return "", false
	}
	return userID, true
}

// writeServiceError maps pipeline, store and vision errors to responses.
// notFound names the missing resource in 404 bodies.
func writeServiceError(w http.ResponseWriter, logger *logging.Logger, err error, notFound string) {
	var inputErr *pipeline.InputError
	var failed *vision.AnalysisFailedError
	switch {
	case errors.As(err, &inputErr):
		jsonError(w, inputErr.Error(), http.StatusBadRequest)
	case errors.Is(err, store.ErrScreenshotIndex):
		jsonError(w, "Screenshot not found", http.StatusNotFound)
	case errors.Is(err, store.ErrNotFound):
		jsonError(w, notFound+" not found", http.StatusNotFound)
	case errors.As(err, &failed):
		msg := "Analysis failed"
		if failed.Err != nil {
			msg += ": " + failed.Err.Error()
		}
		logger.Warn("model call failed", "error", failed.Err)
		jsonError(w, msg, http.StatusBadGateway)
	case errors.Is(err, pipeline.ErrOSINTDisabled), errors.Is(err, pipeline.ErrRepliesDisabled):
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, context.DeadlineExceeded):
		jsonError(w, "request timed out", http.StatusGatewayTimeout)
	default:
		logger.Error("request failed", "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
	}
}

func queryInt(r *http.Request, key string, def, lo, hi int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < lo || n > hi {
		return def
	}
	return n
}
