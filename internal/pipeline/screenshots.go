package pipeline

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/sherlock-labs/screenshot-sherlock/internal/store"
	"github.com/sherlock-labs/screenshot-sherlock/internal/vision"
)

const defaultPlatform = "unknown"

// UploadInput is one screenshot upload. ConversationID is optional; without
// it a new conversation is created from Platform and ParticipantName.
type UploadInput struct {
	UserID          string
	ConversationID  string
	Platform        string
	ParticipantName string
	Data            []byte
	MIMEType        string
}

// UploadResult identifies the stored screenshot.
type UploadResult struct {
	ConversationID  string `json:"conversation_id"`
	ScreenshotIndex int    `json:"screenshot_index"`
	Width           int    `json:"width,omitempty"`
	Height          int    `json:"height,omitempty"`
}

// UploadScreenshot appends a screenshot to its conversation, creating the
// conversation first when none is named.
func (s *Service) UploadScreenshot(ctx context.Context, in UploadInput) (UploadResult, error) {
	if len(in.Data) == 0 {
		return UploadResult{}, &InputError{Err: ErrEmptyImage}
	}
	img := vision.NewImage(in.Data, in.MIMEType)

	var conv store.Conversation
	if in.ConversationID != "" {
		var err error
		conv, err = s.store.GetConversation(ctx, in.UserID, in.ConversationID)
		if err != nil {
			return UploadResult{}, err
		}
	} else {
		platform := strings.TrimSpace(in.Platform)
		if platform == "" {
			platform = defaultPlatform
		}
		conv = store.Conversation{
			UserID:          in.UserID,
			Platform:        platform,
			ParticipantName: strings.TrimSpace(in.ParticipantName),
		}
		if err := s.store.CreateConversation(ctx, &conv); err != nil {
			return UploadResult{}, err
		}
	}

	shot := store.Screenshot{MIMEType: img.MIMEType, UploadedAt: s.now()}
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(img.Data)); err == nil {
		shot.Width, shot.Height = cfg.Width, cfg.Height
	}
	if s.archive != nil && s.archive.Enabled() {
		key, err := s.archive.Put(ctx, in.UserID, conv.ID, img.Data, img.MIMEType)
		if err != nil {
			return UploadResult{}, fmt.Errorf("pipeline: store screenshot: %w", err)
		}
		shot.StorageKey = key
	} else {
		shot.ImageData = base64.StdEncoding.EncodeToString(img.Data)
	}

	idx, err := s.store.AppendScreenshot(ctx, in.UserID, conv.ID, shot)
	if err != nil {
		return UploadResult{}, err
	}
	s.logger.Info("screenshot uploaded", "user_id", in.UserID, "conversation_id", conv.ID, "index", idx, "archived", shot.StorageKey != "")
	return UploadResult{
		ConversationID:  conv.ID,
		ScreenshotIndex: idx,
		Width:           shot.Width,
		Height:          shot.Height,
	}, nil
}

func (s *Service) loadImage(ctx context.Context, shot store.Screenshot) (vision.Image, error) {
	if shot.StorageKey != "" {
		if s.archive == nil || !s.archive.Enabled() {
			return vision.Image{}, fmt.Errorf("pipeline: screenshot %s is archived but no archive is configured", shot.StorageKey)
		}
		data, err := s.archive.Get(ctx, shot.StorageKey)
		if err != nil {
			return vision.Image{}, fmt.Errorf("pipeline: load screenshot: %w", err)
		}
		return vision.NewImage(data, shot.MIMEType), nil
	}
	data, mimeType, err := vision.DecodeBase64(shot.ImageData)
	if err != nil {
		return vision.Image{}, fmt.Errorf("pipeline: decode screenshot: %w", err)
	}
	if shot.MIMEType != "" {
		mimeType = shot.MIMEType
	}
	return vision.NewImage(data, mimeType), nil
}
