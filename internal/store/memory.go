package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sherlock-labs/screenshot-sherlock/internal/analysis"
	"github.com/sherlock-labs/screenshot-sherlock/internal/users"
)

// MemoryStore is an in-process Store used for local runs and tests.
type MemoryStore struct {
	mu            sync.RWMutex
	users         map[string]users.User
	conversations map[string]Conversation
	analyses      map[string]memoryAnalysis
	seq           int64
	now           func() time.Time
}

// memoryAnalysis keeps insertion order to break timestamp ties.
type memoryAnalysis struct {
	analysis.Analysis
	seq int64
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         make(map[string]users.User),
		conversations: make(map[string]Conversation),
		analyses:      make(map[string]memoryAnalysis),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) GetOrCreateUser(ctx context.Context, id, email string) (users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	u := users.New(id, email, s.now())
	s.users[id] = u
	return u, nil
}

func (s *MemoryStore) GetUser(ctx context.Context, id string) (users.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return users.User{}, ErrNotFound
	}
	return u, nil
}

func (s *MemoryStore) UpdatePreferences(ctx context.Context, id string, prefs users.Preferences) (users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return users.User{}, ErrNotFound
	}
	u.Preferences = prefs
	s.users[id] = u
	return u, nil
}

func (s *MemoryStore) IncrementStat(ctx context.Context, id, stat string, delta int) error {
	if err := checkStat(stat); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	u.Stats.Increment(stat, delta)
	s.users[id] = u
	return nil
}

func (s *MemoryStore) CreateConversation(ctx context.Context, c *Conversation) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := s.now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}
	fillConversation(c)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[c.ID] = cloneConversation(*c)
	return nil
}

func (s *MemoryStore) GetConversation(ctx context.Context, userID, id string) (Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conversations[id]
	if !ok || c.UserID != userID {
		return Conversation{}, ErrNotFound
	}
	return cloneConversation(c), nil
}

func (s *MemoryStore) ListConversations(ctx context.Context, userID string, limit, skip int) ([]Conversation, error) {
	s.mu.RLock()
	out := make([]Conversation, 0)
	for _, c := range s.conversations {
		if c.UserID == userID {
			out = append(out, cloneConversation(c))
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return page(out, limit, skip), nil
}

func (s *MemoryStore) AppendScreenshot(ctx context.Context, userID, id string, shot Screenshot) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[id]
	if !ok || c.UserID != userID {
		return 0, ErrNotFound
	}
	c = cloneConversation(c)
	c.Screenshots = append(c.Screenshots, shot)
	c.UpdatedAt = s.now()
	s.conversations[id] = c
	return len(c.Screenshots) - 1, nil
}

func (s *MemoryStore) UpdateConversationMeta(ctx context.Context, userID, id string, update MetaUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[id]
	if !ok || c.UserID != userID {
		return ErrNotFound
	}
	if update.empty() {
		return nil
	}
	if update.Platform != nil {
		c.Platform = *update.Platform
	}
	if update.ParticipantName != nil {
		c.ParticipantName = *update.ParticipantName
	}
	c.UpdatedAt = s.now()
	s.conversations[id] = c
	return nil
}

func (s *MemoryStore) DeleteConversation(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[id]
	if !ok || c.UserID != userID {
		return ErrNotFound
	}
	delete(s.conversations, id)
	for aid, a := range s.analyses {
		if a.ConversationID == id {
			delete(s.analyses, aid)
		}
	}
	return nil
}

func (s *MemoryStore) InsertAnalysis(ctx context.Context, a *analysis.Analysis) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = s.now()
	}
	fillAnalysis(a)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.analyses[a.ID]; exists {
		return ErrDuplicateID
	}
	s.seq++
	s.analyses[a.ID] = memoryAnalysis{Analysis: *a, seq: s.seq}
	return nil
}

func (s *MemoryStore) GetAnalysis(ctx context.Context, userID, id string) (analysis.Analysis, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.analyses[id]
	if !ok || a.UserID != userID {
		return analysis.Analysis{}, ErrNotFound
	}
	return a.Analysis, nil
}

func (s *MemoryStore) ListByConversation(ctx context.Context, userID, conversationID string, ascending bool, limit int) ([]analysis.Analysis, error) {
	items := s.collect(func(a memoryAnalysis) bool {
		return a.UserID == userID && a.ConversationID == conversationID
	}, ascending)
	return page(items, limit, 0), nil
}

func (s *MemoryStore) ListRecentByUser(ctx context.Context, userID string, limit int) ([]analysis.Analysis, error) {
	items := s.collect(func(a memoryAnalysis) bool { return a.UserID == userID }, false)
	return page(items, limit, 0), nil
}

func (s *MemoryStore) CountByUser(ctx context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, a := range s.analyses {
		if a.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) OldestIDsByUser(ctx context.Context, userID string, n int) ([]string, error) {
	if n <= 0 {
		return []string{}, nil
	}
	items := s.collect(func(a memoryAnalysis) bool { return a.UserID == userID }, true)
	items = page(items, n, 0)
	ids := make([]string, 0, len(items))
	for _, a := range items {
		ids = append(ids, a.ID)
	}
	return ids, nil
}

func (s *MemoryStore) PruneAnalyses(ctx context.Context, userID string, ids []string) (Pruned, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out Pruned
	touched := map[string]struct{}{}
	for _, id := range ids {
		a, ok := s.analyses[id]
		if !ok || a.UserID != userID {
			continue
		}
		delete(s.analyses, id)
		out.Analyses++
		touched[a.ConversationID] = struct{}{}
	}
	for convID := range touched {
		if c, removed := s.dropIfEmptyLocked(userID, convID); removed {
			out.Conversations = append(out.Conversations, c)
		}
	}
	return out, nil
}

func (s *MemoryStore) DeleteAnalysis(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.analyses[id]
	if !ok || a.UserID != userID {
		return ErrNotFound
	}
	delete(s.analyses, id)
	s.dropIfEmptyLocked(userID, a.ConversationID)
	return nil
}

// dropIfEmptyLocked removes the conversation when no analysis references it.
func (s *MemoryStore) dropIfEmptyLocked(userID, convID string) (Conversation, bool) {
	for _, other := range s.analyses {
		if other.ConversationID == convID {
			return Conversation{}, false
		}
	}
	c, ok := s.conversations[convID]
	if !ok || c.UserID != userID {
		return Conversation{}, false
	}
	delete(s.conversations, convID)
	return cloneConversation(c), true
}

func (s *MemoryStore) collect(match func(memoryAnalysis) bool, ascending bool) []analysis.Analysis {
	s.mu.RLock()
	matched := make([]memoryAnalysis, 0)
	for _, a := range s.analyses {
		if match(a) {
			matched = append(matched, a)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if a.Timestamp.Equal(b.Timestamp) {
			if ascending {
				return a.seq < b.seq
			}
			return a.seq > b.seq
		}
		if ascending {
			return a.Timestamp.Before(b.Timestamp)
		}
		return a.Timestamp.After(b.Timestamp)
	})

	out := make([]analysis.Analysis, 0, len(matched))
	for _, a := range matched {
		out = append(out, a.Analysis)
	}
	return out
}

func cloneConversation(c Conversation) Conversation {
	shots := make([]Screenshot, len(c.Screenshots))
	copy(shots, c.Screenshots)
	c.Screenshots = shots
	return c
}

func page[T any](items []T, limit, skip int) []T {
	if skip > 0 {
		if skip >= len(items) {
			return items[:0]
		}
		items = items[skip:]
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
