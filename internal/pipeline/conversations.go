package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sherlock-labs/screenshot-sherlock/internal/analysis"
	"github.com/sherlock-labs/screenshot-sherlock/internal/store"
)

// ConversationSummary is a conversation list entry. Screenshot payloads are
// left out; only their count is reported.
type ConversationSummary struct {
	ID                  string    `json:"id"`
	UserID              string    `json:"user_id"`
	Platform            string    `json:"platform"`
	ParticipantName     string    `json:"participant_name,omitempty"`
	ScreenshotCount     int       `json:"screenshot_count"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
	LatestInterestScore *int      `json:"latest_interest_score"`
	LatestAnalysisID    *string   `json:"latest_analysis_id"`
}

// CreateConversation starts an empty conversation.
func (s *Service) CreateConversation(ctx context.Context, userID, platform, participant string) (store.Conversation, error) {
	platform = strings.TrimSpace(platform)
	if platform == "" {
		return store.Conversation{}, invalid("platform is required")
	}
	c := store.Conversation{
		UserID:          userID,
		Platform:        platform,
		ParticipantName: strings.TrimSpace(participant),
	}
	if err := s.store.CreateConversation(ctx, &c); err != nil {
		return store.Conversation{}, err
	}
	return c, nil
}

func (s *Service) GetConversation(ctx context.Context, userID, id string) (store.Conversation, error) {
	return s.store.GetConversation(ctx, userID, id)
}

// ListConversations returns the user's conversations, most recently updated
// first, each with its latest analysis score.
func (s *Service) ListConversations(ctx context.Context, userID string, limit, skip int) ([]ConversationSummary, error) {
	convs, err := s.store.ListConversations(ctx, userID, limit, skip)
	if err != nil {
		return nil, err
	}
	out := make([]ConversationSummary, 0, len(convs))
	for _, c := range convs {
		sum := ConversationSummary{
			ID:              c.ID,
			UserID:          c.UserID,
			Platform:        c.Platform,
			ParticipantName: c.ParticipantName,
			ScreenshotCount: len(c.Screenshots),
			CreatedAt:       c.CreatedAt,
			UpdatedAt:       c.UpdatedAt,
		}
		latest, err := s.store.ListByConversation(ctx, userID, c.ID, false, 1)
		if err != nil {
			return nil, err
		}
		if len(latest) > 0 {
			score, id := latest[0].InterestScore, latest[0].ID
			sum.LatestInterestScore = &score
			sum.LatestAnalysisID = &id
		}
		out = append(out, sum)
	}
	return out, nil
}

// UpdateConversation changes platform and/or participant; nil keeps the
// current value.
func (s *Service) UpdateConversation(ctx context.Context, userID, id string, update store.MetaUpdate) (store.Conversation, error) {
	if update.Platform == nil && update.ParticipantName == nil {
		return store.Conversation{}, invalid("nothing to update")
	}
	if update.Platform != nil && strings.TrimSpace(*update.Platform) == "" {
		return store.Conversation{}, invalid("platform cannot be empty")
	}
	if err := s.store.UpdateConversationMeta(ctx, userID, id, update); err != nil {
		return store.Conversation{}, err
	}
	return s.store.GetConversation(ctx, userID, id)
}

// DeleteConversation removes the conversation, its analyses and any
// archived screenshot payloads.
func (s *Service) DeleteConversation(ctx context.Context, userID, id string) error {
	conv, err := s.store.GetConversation(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteConversation(ctx, userID, id); err != nil {
		return err
	}
	s.deleteArchived(ctx, conv)
	s.logger.Info("conversation deleted", "user_id", userID, "conversation_id", id)
	return nil
}

// Timeline returns the conversation's interest scores, oldest first.
func (s *Service) Timeline(ctx context.Context, userID, conversationID string) ([]analysis.TimelinePoint, error) {
	if _, err := s.store.GetConversation(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	list, err := s.store.ListByConversation(ctx, userID, conversationID, true, conversationHistoryLimit)
	if err != nil {
		return nil, err
	}
	return analysis.Timeline(list), nil
}

// ConversationAnalyses returns the conversation's analyses, newest first.
func (s *Service) ConversationAnalyses(ctx context.Context, userID, conversationID string) ([]analysis.Analysis, error) {
	if _, err := s.store.GetConversation(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	return s.store.ListByConversation(ctx, userID, conversationID, false, conversationHistoryLimit)
}

func (s *Service) GetAnalysis(ctx context.Context, userID, id string) (analysis.Analysis, error) {
	return s.store.GetAnalysis(ctx, userID, id)
}

// DeleteAnalysis removes one analysis. A conversation left without analyses
// is removed with it.
func (s *Service) DeleteAnalysis(ctx context.Context, userID, id string) error {
	a, err := s.store.GetAnalysis(ctx, userID, id)
	if err != nil {
		return err
	}
	conv, convErr := s.store.GetConversation(ctx, userID, a.ConversationID)

	if err := s.store.DeleteAnalysis(ctx, userID, id); err != nil {
		return err
	}
	s.logger.Info("analysis deleted", "user_id", userID, "analysis_id", id)

	if convErr == nil {
		if _, err := s.store.GetConversation(ctx, userID, conv.ID); errors.Is(err, store.ErrNotFound) {
			s.deleteArchived(ctx, conv)
			s.logger.Info("empty conversation removed", "user_id", userID, "conversation_id", conv.ID)
		}
	}
	return nil
}

func (s *Service) deleteArchived(ctx context.Context, conv store.Conversation) {
	if s.archive == nil || !s.archive.Enabled() {
		return
	}
	var keys []string
	for _, shot := range conv.Screenshots {
		if shot.StorageKey != "" {
			keys = append(keys, shot.StorageKey)
		}
	}
	if len(keys) > 0 {
		s.archive.Delete(ctx, keys)
	}
}
