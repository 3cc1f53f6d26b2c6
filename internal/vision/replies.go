package vision

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sherlock-labs/screenshot-sherlock/internal/analysis"
	"github.com/sherlock-labs/screenshot-sherlock/internal/prompt"
	"github.com/sherlock-labs/screenshot-sherlock/internal/users"
)

const (
	replyMaxTokens   = 800
	replyTemperature = 0.8
)

type replySuggestion struct {
	Text               string  `json:"text" jsonschema:"required"`
	Tone               string  `json:"tone" jsonschema:"required"`
	SuccessProbability float64 `json:"success_probability" jsonschema:"required"`
	RiskLevel          string  `json:"risk_level" jsonschema:"required"`
	Rationale          string  `json:"rationale" jsonschema:"required"`
}

type replySuggestions struct {
	Suggestions []replySuggestion `json:"suggestions" jsonschema:"required"`
}

var replySchema = &Schema{
	Name:        "reply_suggestions",
	Description: "Suggested text replies",
	Definition:  GenerateSchema[replySuggestions](),
}

// ReplySuggester produces standalone reply suggestions from conversation
// context supplied as text.
type ReplySuggester struct {
	client Client
	logger *slog.Logger
}

func NewReplySuggester(client Client, logger *slog.Logger) *ReplySuggester {
	if client == nil {
		panic("vision: reply client cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ReplySuggester{client: client, logger: logger}
}

// Suggest returns normalized replies. The model is asked for three, but any
// count it returns is passed through.
func (s *ReplySuggester) Suggest(ctx context.Context, conversationContext string, prefs *users.Preferences) ([]analysis.SuggestedReply, error) {
	resp, err := s.client.Complete(ctx, Request{
		System:      prompt.ReplyCoachSystem,
		Text:        prompt.ReplyRequest(conversationContext, prefs),
		MaxTokens:   replyMaxTokens,
		Temperature: replyTemperature,
		JSON:        true,
		Schema:      replySchema,
	})
	if err != nil {
		return nil, &AnalysisFailedError{Err: fmt.Errorf("suggest replies: %w", err)}
	}

	data, err := ExtractJSON(resp.Text)
	if err != nil {
		s.logger.Warn("vision: reply suggestions were not JSON", "length", len(resp.Text))
		return nil, &AnalysisFailedError{Raw: resp.Text, Err: err}
	}
	return analysis.NormalizeReplies(data["suggestions"]), nil
}
