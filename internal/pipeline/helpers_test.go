package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sherlock-labs/screenshot-sherlock/internal/analysis"
	"github.com/sherlock-labs/screenshot-sherlock/internal/osint"
	"github.com/sherlock-labs/screenshot-sherlock/internal/prompt"
	"github.com/sherlock-labs/screenshot-sherlock/internal/store"
	"github.com/sherlock-labs/screenshot-sherlock/internal/users"
	"github.com/sherlock-labs/screenshot-sherlock/internal/vision"
	"github.com/sherlock-labs/screenshot-sherlock/pkg/logging"
)

type analyzeCall struct {
	img      vision.Image
	prefs    users.Preferences
	stage    prompt.Stage
	findings *osint.Result
}

type stubAnalyzer struct {
	mu       sync.Mutex
	raw      vision.RawAnalysis
	err      error
	metadata vision.Metadata
	calls    []analyzeCall
	mdCalls  int
}

func (s *stubAnalyzer) AnalyzeScreenshot(ctx context.Context, img vision.Image, prefs *users.Preferences, stage prompt.Stage, findings *osint.Result) (vision.RawAnalysis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, analyzeCall{img: img, prefs: *prefs, stage: stage, findings: findings})
	if s.err != nil {
		return vision.RawAnalysis{}, s.err
	}
	return s.raw, nil
}

func (s *stubAnalyzer) ExtractMetadata(ctx context.Context, img vision.Image) vision.Metadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mdCalls++
	return s.metadata
}

type stubChecker struct {
	mu      sync.Mutex
	result  osint.Result
	handles []string
}

func (s *stubChecker) CheckUsername(ctx context.Context, username string) osint.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handles = append(s.handles, username)
	res := s.result
	if !res.Failed() {
		res.Username = username
	}
	return res
}

type stubReplier struct {
	replies []analysis.SuggestedReply
	err     error
	context string
	prefs   users.Preferences
}

func (s *stubReplier) Suggest(ctx context.Context, conversationContext string, prefs *users.Preferences) ([]analysis.SuggestedReply, error) {
	s.context = conversationContext
	s.prefs = *prefs
	return s.replies, s.err
}

type memoryArchive struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
	n       int
}

func newMemoryArchive() *memoryArchive {
	return &memoryArchive{objects: map[string][]byte{}}
}

func (a *memoryArchive) Enabled() bool { return true }

func (a *memoryArchive) Put(ctx context.Context, userID, conversationID string, data []byte, mimeType string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.n++
	key := "screenshots/" + userID + "/" + conversationID + "/" + string(rune('a'+a.n)) + ".png"
	a.objects[key] = append([]byte(nil), data...)
	return key, nil
}

func (a *memoryArchive) Get(ctx context.Context, key string) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	data, ok := a.objects[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return data, nil
}

func (a *memoryArchive) Delete(ctx context.Context, keys []string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, k := range keys {
		delete(a.objects, k)
		a.deleted = append(a.deleted, k)
	}
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func tickingClock(start time.Time, step time.Duration) func() time.Time {
	t := start
	return func() time.Time {
		t = t.Add(step)
		return t
	}
}

func newTestService(t *testing.T, analyzer *stubAnalyzer, opts ...Option) (*Service, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	svc := NewService(st, analyzer, logging.Discard(), opts...)
	svc.now = tickingClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC), time.Minute)
	return svc, st
}

func goodRaw() vision.RawAnalysis {
	data := map[string]any{
		"interest_score":   float64(82),
		"vibe_report":      map[string]any{"overall_mood": "flirty", "engagement_level": "high"},
		"green_flags":      []any{map[string]any{"type": "asks questions", "evidence": "asked about weekend"}},
		"wingman_notes":    "Keep the momentum.",
		"platform":         "Hinge",
		"participant_name": "sam_rivers",
	}
	return vision.RawAnalysis{Data: data, Text: `{"interest_score":82}`}
}
