package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/sherlock-labs/screenshot-sherlock/internal/analysis"
	"github.com/sherlock-labs/screenshot-sherlock/internal/http/middleware"
	"github.com/sherlock-labs/screenshot-sherlock/internal/osint"
	"github.com/sherlock-labs/screenshot-sherlock/internal/pipeline"
	"github.com/sherlock-labs/screenshot-sherlock/internal/prompt"
	"github.com/sherlock-labs/screenshot-sherlock/internal/store"
	"github.com/sherlock-labs/screenshot-sherlock/internal/users"
	"github.com/sherlock-labs/screenshot-sherlock/internal/vision"
	"github.com/sherlock-labs/screenshot-sherlock/pkg/logging"
)

type fakeAnalyzer struct {
	data map[string]any
	err  error
}

func (f *fakeAnalyzer) AnalyzeScreenshot(ctx context.Context, img vision.Image, prefs *users.Preferences, stage prompt.Stage, findings *osint.Result) (vision.RawAnalysis, error) {
	if f.err != nil {
		return vision.RawAnalysis{}, f.err
	}
	return vision.RawAnalysis{Data: f.data, Text: "{}"}, nil
}

func (f *fakeAnalyzer) ExtractMetadata(ctx context.Context, img vision.Image) vision.Metadata {
	return vision.Metadata{Platform: "Unknown", ParticipantName: "Unknown"}
}

type fakeChecker struct{}

func (fakeChecker) CheckUsername(ctx context.Context, username string) osint.Result {
	return osint.Result{
		Username:      username,
		FoundAccounts: []osint.Account{{Site: "github.com", URL: "https://github.com/" + username, Status: "found"}},
		TotalChecked:  osint.ScanModeFast,
	}
}

type fakeReplier struct{}

func (fakeReplier) Suggest(ctx context.Context, conversationContext string, prefs *users.Preferences) ([]analysis.SuggestedReply, error) {
	return []analysis.SuggestedReply{{Text: "Tacos sound perfect", Tone: "playful", SuccessProbability: 0.8, RiskLevel: "low"}}, nil
}

type testAPI struct {
	router   http.Handler
	store    *store.MemoryStore
	analyzer *fakeAnalyzer
}

// newTestAPI mounts every handler behind a fake auth layer that trusts the
// X-Test-User header.
func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	st := store.NewMemoryStore()
	analyzer := &fakeAnalyzer{data: map[string]any{"interest_score": float64(75), "wingman_notes": "Looking good."}}
	logger := logging.Discard()
	svc := pipeline.NewService(st, analyzer, logger,
		pipeline.WithOSINT(fakeChecker{}),
		pipeline.WithReplySuggester(fakeReplier{}))

	usersH := NewUserHandler(svc, logger)
	shots := NewScreenshotHandler(svc, 1<<20, logger)
	analyses := NewAnalysisHandler(svc, logger)
	convs := NewConversationHandler(svc, logger)
	wingman := NewWingmanHandler(svc, logger)
	osintH := NewOSINTHandler(svc, logger)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if id := req.Header.Get("X-Test-User"); id != "" {
				claims := &middleware.UserClaims{Email: id + "@example.com", RegisteredClaims: jwt.RegisteredClaims{Subject: id}}
				req = req.WithContext(middleware.WithUserClaims(req.Context(), claims))
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Get("/api/me", usersH.GetMe)
	r.Put("/api/me/preferences", usersH.UpdatePreferences)
	r.Post("/api/screenshots", shots.Upload)
	r.Post("/api/analyses", analyses.Analyze)
	r.Get("/api/analyses/{analysisID}", analyses.Get)
	r.Delete("/api/analyses/{analysisID}", analyses.Delete)
	r.Get("/api/conversations", convs.List)
	r.Post("/api/conversations", convs.Create)
	r.Get("/api/conversations/{conversationID}", convs.Get)
	r.Put("/api/conversations/{conversationID}", convs.Update)
	r.Delete("/api/conversations/{conversationID}", convs.Delete)
	r.Get("/api/conversations/{conversationID}/timeline", convs.Timeline)
	r.Get("/api/conversations/{conversationID}/analyses", convs.Analyses)
	r.Post("/api/wingman/suggest-reply", wingman.SuggestReply)
	r.Post("/api/wingman/reality-check/{analysisID}", wingman.RealityCheck)
	r.Get("/api/wingman/coaching/{analysisID}", wingman.Coaching)
	r.Get("/api/wingman/quick-stats/{analysisID}", wingman.QuickStats)
	r.Get("/api/wingman/overthinking", wingman.Overthinking)
	r.Post("/api/osint/check/{username}", osintH.Check)
	r.Post("/api/osint/analyze-context", osintH.AnalyzeContext)

	return &testAPI{router: r, store: st, analyzer: analyzer}
}

func (a *testAPI) do(t *testing.T, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) upload(t *testing.T, user string, fields map[string]string, img []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if img != nil {
		part, err := mw.CreateFormFile("image", "shot.png")
		require.NoError(t, err)
		_, err = part.Write(img)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/screenshots", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-Test-User", user)
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 6, 9))))
	return buf.Bytes()
}
