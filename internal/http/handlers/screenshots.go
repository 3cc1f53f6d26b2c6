package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/sherlock-labs/screenshot-sherlock/internal/pipeline"
	"github.com/sherlock-labs/screenshot-sherlock/pkg/logging"
)

// DefaultMaxUploadBytes caps screenshot uploads when no limit is configured.
const DefaultMaxUploadBytes = 10 << 20

// multipartOverhead leaves room for form fields and part headers.
const multipartOverhead = 64 << 10

// ScreenshotHandler accepts screenshot uploads from the extension.
type ScreenshotHandler struct {
	svc      *pipeline.Service
	logger   *logging.Logger
	maxBytes int64
}

func NewScreenshotHandler(svc *pipeline.Service, maxBytes int64, logger *logging.Logger) *ScreenshotHandler {
	if logger == nil {
		logger = logging.Default()
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &ScreenshotHandler{svc: svc, logger: logger, maxBytes: maxBytes}
}

type uploadResponse struct {
	pipeline.UploadResult
	Message string `json:"message"`
}

// Upload handles POST /api/screenshots (multipart field "image", optional
// platform, participant_name and conversation_id).
func (h *ScreenshotHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	limit := h.maxBytes + multipartOverhead
	if r.ContentLength > limit {
		jsonError(w, "image too large", http.StatusRequestEntityTooLarge)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, "image too large", http.StatusRequestEntityTooLarge)
			return
		}
		jsonError(w, "invalid multipart form", http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		jsonError(w, "image file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxBytes+1))
	if err != nil {
		jsonError(w, "could not read image", http.StatusBadRequest)
		return
	}
	if int64(len(data)) > h.maxBytes {
		jsonError(w, "image too large", http.StatusRequestEntityTooLarge)
		return
	}

	res, err := h.svc.UploadScreenshot(r.Context(), pipeline.UploadInput{
		UserID:          userID,
		ConversationID:  r.FormValue("conversation_id"),
		Platform:        r.FormValue("platform"),
		ParticipantName: r.FormValue("participant_name"),
		Data:            data,
		MIMEType:        header.Header.Get("Content-Type"),
	})
	if err != nil {
		writeServiceError(w, h.logger, err, "Conversation")
		return
	}
	writeJSON(w, http.StatusCreated, uploadResponse{UploadResult: res, Message: "Screenshot uploaded successfully"})
}
