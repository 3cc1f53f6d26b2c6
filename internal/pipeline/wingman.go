package pipeline

import (
	"context"
	"strings"

	"github.com/sherlock-labs/screenshot-sherlock/internal/analysis"
	"github.com/sherlock-labs/screenshot-sherlock/internal/users"
)

// RealityCheck builds the overthinking intervention for an analysis and
// counts it against the user's stats.
func (s *Service) RealityCheck(ctx context.Context, userID, analysisID string) (analysis.RealityCheck, error) {
	a, err := s.store.GetAnalysis(ctx, userID, analysisID)
	if err != nil {
		return analysis.RealityCheck{}, err
	}
	user, err := s.store.GetOrCreateUser(ctx, userID, "")
	if err != nil {
		return analysis.RealityCheck{}, err
	}
	if err := s.store.IncrementStat(ctx, userID, users.StatOverthinkingInterventions, 1); err != nil {
		s.logger.Warn("stat increment failed", "user_id", userID, "stat", users.StatOverthinkingInterventions, "error", err)
	}
	return analysis.NewRealityCheck(a, user.Preferences), nil
}

func (s *Service) Coaching(ctx context.Context, userID, analysisID string) (analysis.Coaching, error) {
	a, err := s.store.GetAnalysis(ctx, userID, analysisID)
	if err != nil {
		return analysis.Coaching{}, err
	}
	return analysis.NewCoaching(a), nil
}

func (s *Service) QuickStats(ctx context.Context, userID, analysisID string) (analysis.QuickStats, error) {
	a, err := s.store.GetAnalysis(ctx, userID, analysisID)
	if err != nil {
		return analysis.QuickStats{}, err
	}
	return analysis.NewQuickStats(a), nil
}

// Overthinking inspects the user's most recent analyses for anxious
// re-checking patterns.
func (s *Service) Overthinking(ctx context.Context, userID string) (analysis.Overthinking, error) {
	recent, err := s.store.ListRecentByUser(ctx, userID, overthinkingWindow)
	if err != nil {
		return analysis.Overthinking{}, err
	}
	return analysis.DetectOverthinking(recent), nil
}

// SuggestReplies drafts replies for pasted conversation text. A non-empty
// currentMessage is appended as the message being answered.
func (s *Service) SuggestReplies(ctx context.Context, userID, conversationContext, currentMessage string) ([]analysis.SuggestedReply, error) {
	if s.replies == nil {
		return nil, ErrRepliesDisabled
	}
	conversationContext = strings.TrimSpace(conversationContext)
	if conversationContext == "" {
		return nil, invalid("conversation_context is required")
	}
	if msg := strings.TrimSpace(currentMessage); msg != "" {
		conversationContext += "\n\nLatest message: " + msg
	}
	user, err := s.store.GetOrCreateUser(ctx, userID, "")
	if err != nil {
		return nil, err
	}
	prefs := user.Preferences
	return s.replies.Suggest(ctx, conversationContext, &prefs)
}
