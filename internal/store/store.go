package store

import (
	"context"

	"github.com/sherlock-labs/screenshot-sherlock/internal/analysis"
	"github.com/sherlock-labs/screenshot-sherlock/internal/users"
)

// Users persists user profiles.
type Users interface {
	GetOrCreateUser(ctx context.Context, id, email string) (users.User, error)
	GetUser(ctx context.Context, id string) (users.User, error)
	UpdatePreferences(ctx context.Context, id string, prefs users.Preferences) (users.User, error)
	IncrementStat(ctx context.Context, id, stat string, delta int) error
}

// Conversations persists conversations. Every lookup is scoped to the
// owning user.
type Conversations interface {
	CreateConversation(ctx context.Context, c *Conversation) error
	GetConversation(ctx context.Context, userID, id string) (Conversation, error)
	// ListConversations returns conversations by updated_at, newest first.
	ListConversations(ctx context.Context, userID string, limit, skip int) ([]Conversation, error)
	// AppendScreenshot adds s and returns its index.
	AppendScreenshot(ctx context.Context, userID, id string, s Screenshot) (int, error)
	UpdateConversationMeta(ctx context.Context, userID, id string, update MetaUpdate) error
	// DeleteConversation removes the conversation and all of its analyses.
	DeleteConversation(ctx context.Context, userID, id string) error
}

// Analyses persists analysis records.
type Analyses interface {
	InsertAnalysis(ctx context.Context, a *analysis.Analysis) error
	GetAnalysis(ctx context.Context, userID, id string) (analysis.Analysis, error)
	ListByConversation(ctx context.Context, userID, conversationID string, ascending bool, limit int) ([]analysis.Analysis, error)
	// ListRecentByUser returns the user's analyses, newest first.
	ListRecentByUser(ctx context.Context, userID string, limit int) ([]analysis.Analysis, error)
	CountByUser(ctx context.Context, userID string) (int, error)
	// OldestIDsByUser returns up to n analysis ids, oldest first.
	OldestIDsByUser(ctx context.Context, userID string, n int) ([]string, error)
	// PruneAnalyses removes the user's analyses with the given ids, then every
	// conversation they belonged to that has no analyses left.
	PruneAnalyses(ctx context.Context, userID string, ids []string) (Pruned, error)
	// DeleteAnalysis removes one analysis and then its conversation, if that
	// conversation has no analyses left.
	DeleteAnalysis(ctx context.Context, userID, id string) error
}

// Store is the full document store.
type Store interface {
	Users
	Conversations
	Analyses
}

func checkStat(stat string) error {
	if !users.ValidStat(stat) {
		return ErrInvalidStat
	}
	return nil
}
