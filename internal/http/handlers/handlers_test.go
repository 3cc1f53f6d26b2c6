package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sherlock-labs/screenshot-sherlock/internal/analysis"
	"github.com/sherlock-labs/screenshot-sherlock/internal/http/middleware"
	"github.com/sherlock-labs/screenshot-sherlock/internal/pipeline"
	"github.com/sherlock-labs/screenshot-sherlock/internal/store"
	"github.com/sherlock-labs/screenshot-sherlock/internal/users"
	"github.com/sherlock-labs/screenshot-sherlock/internal/vision"
	"github.com/sherlock-labs/screenshot-sherlock/pkg/logging"
)

func TestUnauthenticatedRequestsAreRejected(t *testing.T) {
	api := newTestAPI(t)
	for _, path := range []string{"/api/me", "/api/conversations", "/api/wingman/overthinking"} {
		rec := api.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestMeAndPreferences(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodGet, "/api/me", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decodeBody[users.User](t, rec)
	assert.Equal(t, "u1", me.ID)
	assert.Equal(t, "u1@example.com", me.Email)
	assert.Equal(t, users.AttachmentSecure, me.Preferences.AttachmentStyle)

	rec = api.do(t, http.MethodPut, "/api/me/preferences", "u1", map[string]any{"attachment_style": "needy"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody[map[string]string](t, rec)["error"], "attachment_style")

	rec = api.do(t, http.MethodPut, "/api/me/preferences", "u1", map[string]any{"attachment_style": "avoidant", "dating_goal": "casual", "advanced_mode": true})
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decodeBody[users.User](t, rec)
	assert.Equal(t, users.AttachmentAvoidant, updated.Preferences.AttachmentStyle)
	assert.True(t, updated.Preferences.AdvancedMode)
}

func TestUploadAnalyzeAndFetch(t *testing.T) {
	api := newTestAPI(t)

	rec := api.upload(t, "u1", map[string]string{"platform": "Hinge", "participant_name": "Jo"}, pngBytes(t))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	up := decodeBody[map[string]any](t, rec)
	convID, _ := up["conversation_id"].(string)
	require.NotEmpty(t, convID)
	assert.Equal(t, float64(6), up["width"])
	assert.Equal(t, float64(9), up["height"])
	assert.Equal(t, "Screenshot uploaded successfully", up["message"])

	rec = api.do(t, http.MethodPost, "/api/analyses", "u1", map[string]any{"conversation_id": convID, "screenshot_index": 0})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	a := decodeBody[analysis.Analysis](t, rec)
	assert.Equal(t, 75, a.InterestScore)
	assert.Equal(t, "neutral", a.VibeReport.OverallMood)
	assert.NotNil(t, a.RedFlags)

	rec = api.do(t, http.MethodGet, "/api/analyses/"+a.ID, "u1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = api.do(t, http.MethodGet, "/api/analyses/"+a.ID, "u2", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Analysis not found", decodeBody[map[string]string](t, rec)["error"])

	rec = api.do(t, http.MethodGet, "/api/conversations/"+convID+"/timeline", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	points := decodeBody[[]analysis.TimelinePoint](t, rec)
	require.Len(t, points, 1)
	assert.Equal(t, a.ID, points[0].AnalysisID)

	rec = api.do(t, http.MethodGet, "/api/conversations/"+convID+"/analyses", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]analysis.Analysis](t, rec), 1)
}

func TestUploadValidation(t *testing.T) {
	api := newTestAPI(t)

	rec := api.upload(t, "u1", map[string]string{"platform": "Hinge"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.upload(t, "u1", map[string]string{"conversation_id": "missing"}, pngBytes(t))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	big := make([]byte, 2<<20)
	rec = api.upload(t, "u1", nil, big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestAnalyzeErrors(t *testing.T) {
	api := newTestAPI(t)
	rec := api.upload(t, "u1", nil, pngBytes(t))
	require.Equal(t, http.StatusCreated, rec.Code)
	convID := decodeBody[map[string]any](t, rec)["conversation_id"].(string)

	tests := []struct {
		name string
		body any
		want int
	}{
		{"missing conversation", map[string]any{"screenshot_index": 0}, http.StatusBadRequest},
		{"negative index", map[string]any{"conversation_id": convID, "screenshot_index": -2}, http.StatusBadRequest},
		{"index out of range", map[string]any{"conversation_id": convID, "screenshot_index": 4}, http.StatusNotFound},
		{"unknown conversation", map[string]any{"conversation_id": "nope"}, http.StatusNotFound},
		{"not json", "garbage", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(t, http.MethodPost, "/api/analyses", "u1", tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}

	api.analyzer.err = &vision.AnalysisFailedError{Raw: "nope", Err: vision.ErrNoJSON}
	rec = api.do(t, http.MethodPost, "/api/analyses", "u1", map[string]any{"conversation_id": convID})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, decodeBody[map[string]string](t, rec)["error"], "Analysis failed")
}

func TestConversationCRUD(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/conversations", "u1", map[string]any{"platform": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/conversations", "u1", map[string]any{"platform": "WhatsApp", "participant_name": "Rae"})
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decodeBody[map[string]any](t, rec)["id"].(string)

	rec = api.do(t, http.MethodPut, "/api/conversations/"+id, "u1", map[string]any{"participant_name": "Rae K"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Rae K", decodeBody[map[string]any](t, rec)["participant_name"])

	rec = api.do(t, http.MethodGet, "/api/conversations?limit=500", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[ListConversationsResponse](t, rec)
	assert.Equal(t, 1, list.Count)
	assert.Equal(t, defaultConversationPage, list.Limit)
	assert.Nil(t, list.Conversations[0].LatestInterestScore)

	rec = api.do(t, http.MethodGet, "/api/conversations/"+id, "u2", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = api.do(t, http.MethodDelete, "/api/conversations/"+id, "u2", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(t, http.MethodDelete, "/api/conversations/"+id, "u1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = api.do(t, http.MethodGet, "/api/conversations/"+id, "u1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteAnalysisCascadesConversation(t *testing.T) {
	api := newTestAPI(t)
	rec := api.upload(t, "u1", nil, pngBytes(t))
	convID := decodeBody[map[string]any](t, rec)["conversation_id"].(string)
	rec = api.do(t, http.MethodPost, "/api/analyses", "u1", map[string]any{"conversation_id": convID})
	id := decodeBody[analysis.Analysis](t, rec).ID

	rec = api.do(t, http.MethodDelete, "/api/analyses/"+id, "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = api.do(t, http.MethodGet, "/api/conversations/"+convID, "u1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWingmanEndpoints(t *testing.T) {
	api := newTestAPI(t)
	rec := api.upload(t, "u1", nil, pngBytes(t))
	convID := decodeBody[map[string]any](t, rec)["conversation_id"].(string)
	rec = api.do(t, http.MethodPost, "/api/analyses", "u1", map[string]any{"conversation_id": convID})
	id := decodeBody[analysis.Analysis](t, rec).ID

	rec = api.do(t, http.MethodPost, "/api/wingman/reality-check/"+id, "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rc := decodeBody[analysis.RealityCheck](t, rec)
	assert.Equal(t, "continue", rc.Recommendation)

	rec = api.do(t, http.MethodGet, "/api/wingman/coaching/"+id, "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Looking good.", decodeBody[analysis.Coaching](t, rec).PrimaryAdvice)

	rec = api.do(t, http.MethodGet, "/api/wingman/quick-stats/"+id, "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, 7.5, decodeBody[analysis.QuickStats](t, rec).HealthScore, 0.001)

	rec = api.do(t, http.MethodGet, "/api/wingman/coaching/"+id, "u2", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/wingman/overthinking", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Insufficient data", decodeBody[analysis.Overthinking](t, rec).Reason)

	rec = api.do(t, http.MethodPost, "/api/wingman/suggest-reply", "u1", map[string]any{"conversation_context": "want tacos?"})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[map[string][]analysis.SuggestedReply](t, rec)
	require.Len(t, body["suggestions"], 1)

	rec = api.do(t, http.MethodPost, "/api/wingman/suggest-reply", "u1", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	me, err := api.store.GetUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, me.Stats.OverthinkingInterventions)
	assert.Equal(t, 1, me.Stats.TotalAnalyses)
}

func TestOSINTEndpoints(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/osint/check/@night_owl", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "night_owl", res["username"])
	assert.Len(t, res["found_accounts"], 1)

	rec = api.do(t, http.MethodPost, "/api/osint/check/unknown", "u1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/conversations", "u1", map[string]any{"platform": "Instagram", "participant_name": "Jo Bloggs"})
	fullName := decodeBody[map[string]any](t, rec)["id"].(string)
	rec = api.do(t, http.MethodPost, "/api/osint/analyze-context", "u1", map[string]any{"conversation_id": fullName})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, pipeline.MsgFullNameSkipped, decodeBody[map[string]string](t, rec)["message"])

	rec = api.do(t, http.MethodPost, "/api/conversations", "u1", map[string]any{"platform": "Instagram", "participant_name": "@jo.b"})
	handle := decodeBody[map[string]any](t, rec)["id"].(string)
	rec = api.do(t, http.MethodPost, "/api/osint/analyze-context", "u1", map[string]any{"conversation_id": handle})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "jo.b", decodeBody[map[string]any](t, rec)["username"])

	rec = api.do(t, http.MethodPost, "/api/osint/analyze-context", "u1", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOSINTDisabledIsUnavailable(t *testing.T) {
	logger := logging.Discard()
	svc := pipeline.NewService(store.NewMemoryStore(), &fakeAnalyzer{}, logger)
	h := NewOSINTHandler(svc, logger)
	r := chi.NewRouter()
	r.Post("/api/osint/check/{username}", h.Check)

	req := httptest.NewRequest(http.MethodPost, "/api/osint/check/night_owl", nil)
	claims := &middleware.UserClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"}}
	req = req.WithContext(middleware.WithUserClaims(req.Context(), claims))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
