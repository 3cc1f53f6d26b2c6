package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sherlock-labs/screenshot-sherlock/internal/analysis"
	"github.com/sherlock-labs/screenshot-sherlock/internal/users"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore keeps each record as a JSONB document next to the columns
// used for ownership checks and ordering.
type PostgresStore struct {
	db  querier
	now func() time.Time
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("store: pgx pool required")
	}
	return newPostgresStore(pool)
}

func newPostgresStore(db querier) *PostgresStore {
	return &PostgresStore{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (s *PostgresStore) GetOrCreateUser(ctx context.Context, id, email string) (users.User, error) {
	doc, err := json.Marshal(users.New(id, email, s.now()))
	if err != nil {
		return users.User{}, fmt.Errorf("store: encode user: %w", err)
	}
	// DO UPDATE with a no-op assignment makes RETURNING yield the existing row.
	query := `
		INSERT INTO users (id, data, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET id = EXCLUDED.id
		RETURNING data
	`
	var raw []byte
	if err := s.db.QueryRow(ctx, query, id, doc, s.now()).Scan(&raw); err != nil {
		return users.User{}, fmt.Errorf("store: upsert user: %w", err)
	}
	return decodeUser(raw)
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (users.User, error) {
	var raw []byte
	err := s.db.QueryRow(ctx, `SELECT data FROM users WHERE id = $1`, id).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return users.User{}, ErrNotFound
		}
		return users.User{}, fmt.Errorf("store: select user: %w", err)
	}
	return decodeUser(raw)
}

func (s *PostgresStore) UpdatePreferences(ctx context.Context, id string, prefs users.Preferences) (users.User, error) {
	doc, err := json.Marshal(prefs)
	if err != nil {
		return users.User{}, fmt.Errorf("store: encode preferences: %w", err)
	}
	query := `
		UPDATE users SET data = jsonb_set(data, '{preferences}', $2::jsonb)
		WHERE id = $1
		RETURNING data
	`
	var raw []byte
	if err := s.db.QueryRow(ctx, query, id, doc).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return users.User{}, ErrNotFound
		}
		return users.User{}, fmt.Errorf("store: update preferences: %w", err)
	}
	return decodeUser(raw)
}

func (s *PostgresStore) IncrementStat(ctx context.Context, id, stat string, delta int) error {
	if err := checkStat(stat); err != nil {
		return err
	}
	query := `
		UPDATE users
		SET data = jsonb_set(data, ARRAY['stats', $2::text],
			to_jsonb(COALESCE((data->'stats'->>$2::text)::int, 0) + $3::int))
		WHERE id = $1
	`
	tag, err := s.db.Exec(ctx, query, id, stat, delta)
	if err != nil {
		return fmt.Errorf("store: increment %s: %w", stat, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CreateConversation(ctx context.Context, c *Conversation) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}
	fillConversation(c)

	doc, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("store: encode conversation: %w", err)
	}
	query := `
		INSERT INTO conversations (id, user_id, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := s.db.Exec(ctx, query, c.ID, c.UserID, doc, c.CreatedAt, c.UpdatedAt); err != nil {
		return fmt.Errorf("store: insert conversation: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetConversation(ctx context.Context, userID, id string) (Conversation, error) {
	var raw []byte
	query := `SELECT data FROM conversations WHERE id = $1 AND user_id = $2`
	if err := s.db.QueryRow(ctx, query, id, userID).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Conversation{}, ErrNotFound
		}
		return Conversation{}, fmt.Errorf("store: select conversation: %w", err)
	}
	return decodeConversation(raw)
}

func (s *PostgresStore) ListConversations(ctx context.Context, userID string, limit, skip int) ([]Conversation, error) {
	query := `
		SELECT data FROM conversations
		WHERE user_id = $1
		ORDER BY updated_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := s.db.Query(ctx, query, userID, limitOrAll(limit), skip)
	if err != nil {
		return nil, fmt.Errorf("store: list conversations: %w", err)
	}
	defer rows.Close()

	out := make([]Conversation, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("store: scan conversation: %w", err)
		}
		c, err := decodeConversation(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list conversations: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) AppendScreenshot(ctx context.Context, userID, id string, shot Screenshot) (int, error) {
	shotDoc, err := json.Marshal([]Screenshot{shot})
	if err != nil {
		return 0, fmt.Errorf("store: encode screenshot: %w", err)
	}
	now := s.now()
	nowDoc, _ := json.Marshal(now)
	query := `
		UPDATE conversations
		SET data = jsonb_set(
				jsonb_set(data, '{screenshots}', COALESCE(data->'screenshots', '[]'::jsonb) || $3::jsonb),
				'{updated_at}', $4::jsonb),
			updated_at = $5
		WHERE id = $1 AND user_id = $2
		RETURNING jsonb_array_length(data->'screenshots')
	`
	var count int
	if err := s.db.QueryRow(ctx, query, id, userID, shotDoc, nowDoc, now).Scan(&count); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("store: append screenshot: %w", err)
	}
	return count - 1, nil
}

func (s *PostgresStore) UpdateConversationMeta(ctx context.Context, userID, id string, update MetaUpdate) error {
	now := s.now()
	patch := map[string]any{"updated_at": now}
	if update.Platform != nil {
		patch["platform"] = *update.Platform
	}
	if update.ParticipantName != nil {
		patch["participant_name"] = *update.ParticipantName
	}
	doc, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("store: encode conversation patch: %w", err)
	}
	query := `
		UPDATE conversations SET data = data || $3::jsonb, updated_at = $4
		WHERE id = $1 AND user_id = $2
	`
	tag, err := s.db.Exec(ctx, query, id, userID, doc, now)
	if err != nil {
		return fmt.Errorf("store: update conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteConversation relies on the ON DELETE CASCADE from analyses.
func (s *PostgresStore) DeleteConversation(ctx context.Context, userID, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM conversations WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("store: delete conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) InsertAnalysis(ctx context.Context, a *analysis.Analysis) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = s.now()
	}
	fillAnalysis(a)

	doc, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("store: encode analysis: %w", err)
	}
	query := `
		INSERT INTO analyses (id, user_id, conversation_id, interest_score, data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := s.db.Exec(ctx, query, a.ID, a.UserID, a.ConversationID, a.InterestScore, doc, a.Timestamp); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateID
		}
		return fmt.Errorf("store: insert analysis: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAnalysis(ctx context.Context, userID, id string) (analysis.Analysis, error) {
	var raw []byte
	query := `SELECT data FROM analyses WHERE id = $1 AND user_id = $2`
	if err := s.db.QueryRow(ctx, query, id, userID).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return analysis.Analysis{}, ErrNotFound
		}
		return analysis.Analysis{}, fmt.Errorf("store: select analysis: %w", err)
	}
	return decodeAnalysis(raw)
}

func (s *PostgresStore) ListByConversation(ctx context.Context, userID, conversationID string, ascending bool, limit int) ([]analysis.Analysis, error) {
	order := "DESC"
	if ascending {
		order = "ASC"
	}
	query := `
		SELECT data FROM analyses
		WHERE conversation_id = $1 AND user_id = $2
		ORDER BY created_at ` + order + `
		LIMIT $3
	`
	return s.queryAnalyses(ctx, query, conversationID, userID, limitOrAll(limit))
}

func (s *PostgresStore) ListRecentByUser(ctx context.Context, userID string, limit int) ([]analysis.Analysis, error) {
	query := `
		SELECT data FROM analyses
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	return s.queryAnalyses(ctx, query, userID, limitOrAll(limit))
}

func (s *PostgresStore) CountByUser(ctx context.Context, userID string) (int, error) {
	var n int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM analyses WHERE user_id = $1`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count analyses: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) OldestIDsByUser(ctx context.Context, userID string, n int) ([]string, error) {
	if n <= 0 {
		return []string{}, nil
	}
	query := `
		SELECT id FROM analyses
		WHERE user_id = $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2
	`
	rows, err := s.db.Query(ctx, query, userID, n)
	if err != nil {
		return nil, fmt.Errorf("store: oldest analyses: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0, n)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: scan analysis id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: oldest analyses: %w", err)
	}
	return ids, nil
}

func (s *PostgresStore) PruneAnalyses(ctx context.Context, userID string, ids []string) (Pruned, error) {
	var out Pruned
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := s.db.Query(ctx, `
		DELETE FROM analyses
		WHERE user_id = $1 AND id = ANY($2)
		RETURNING conversation_id
	`, userID, ids)
	if err != nil {
		return out, fmt.Errorf("store: delete analyses: %w", err)
	}
	seen := map[string]struct{}{}
	var convIDs []string
	for rows.Next() {
		var convID string
		if err := rows.Scan(&convID); err != nil {
			rows.Close()
			return out, fmt.Errorf("store: scan deleted analysis: %w", err)
		}
		out.Analyses++
		if _, ok := seen[convID]; !ok {
			seen[convID] = struct{}{}
			convIDs = append(convIDs, convID)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return out, fmt.Errorf("store: delete analyses: %w", err)
	}
	if len(convIDs) == 0 {
		return out, nil
	}

	// Runs as a second statement: a data-modifying CTE would not see the
	// analyses removed above.
	convRows, err := s.db.Query(ctx, `
		DELETE FROM conversations c
		WHERE c.user_id = $1 AND c.id = ANY($2)
		  AND NOT EXISTS (SELECT 1 FROM analyses a WHERE a.conversation_id = c.id)
		RETURNING c.data
	`, userID, convIDs)
	if err != nil {
		return out, fmt.Errorf("store: delete empty conversations: %w", err)
	}
	defer convRows.Close()
	for convRows.Next() {
		var raw []byte
		if err := convRows.Scan(&raw); err != nil {
			return out, fmt.Errorf("store: scan deleted conversation: %w", err)
		}
		c, err := decodeConversation(raw)
		if err != nil {
			return out, err
		}
		out.Conversations = append(out.Conversations, c)
	}
	if err := convRows.Err(); err != nil {
		return out, fmt.Errorf("store: delete empty conversations: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) DeleteAnalysis(ctx context.Context, userID, id string) error {
	var conversationID string
	query := `DELETE FROM analyses WHERE id = $1 AND user_id = $2 RETURNING conversation_id`
	if err := s.db.QueryRow(ctx, query, id, userID).Scan(&conversationID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("store: delete analysis: %w", err)
	}

	cleanup := `
		DELETE FROM conversations c
		WHERE c.id = $1 AND c.user_id = $2
		  AND NOT EXISTS (SELECT 1 FROM analyses a WHERE a.conversation_id = c.id)
	`
	if _, err := s.db.Exec(ctx, cleanup, conversationID, userID); err != nil {
		return fmt.Errorf("store: delete empty conversation: %w", err)
	}
	return nil
}

func (s *PostgresStore) queryAnalyses(ctx context.Context, query string, args ...any) ([]analysis.Analysis, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list analyses: %w", err)
	}
	defer rows.Close()

	out := make([]analysis.Analysis, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("store: scan analysis: %w", err)
		}
		a, err := decodeAnalysis(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list analyses: %w", err)
	}
	return out, nil
}

// limitOrAll maps a non-positive limit to Postgres' "no limit" (LIMIT NULL).
func limitOrAll(limit int) any {
	if limit <= 0 {
		return nil
	}
	return limit
}

func decodeUser(raw []byte) (users.User, error) {
	var u users.User
	if err := json.Unmarshal(raw, &u); err != nil {
		return users.User{}, fmt.Errorf("store: decode user: %w", err)
	}
	return u, nil
}

func decodeConversation(raw []byte) (Conversation, error) {
	var c Conversation
	if err := json.Unmarshal(raw, &c); err != nil {
		return Conversation{}, fmt.Errorf("store: decode conversation: %w", err)
	}
	fillConversation(&c)
	return c, nil
}

func decodeAnalysis(raw []byte) (analysis.Analysis, error) {
	var a analysis.Analysis
	if err := json.Unmarshal(raw, &a); err != nil {
		return analysis.Analysis{}, fmt.Errorf("store: decode analysis: %w", err)
	}
	fillAnalysis(&a)
	return a, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
