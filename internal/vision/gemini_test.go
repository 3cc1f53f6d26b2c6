package vision

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	errs  []error
	resp  *genai.GenerateContentResponse
	calls int
	parts []genai.Part
}

func (f *fakeGenerator) GenerateContent(_ context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	f.parts = parts
	n := f.calls
	f.calls++
	if n < len(f.errs) && f.errs[n] != nil {
		return nil, f.errs[n]
	}
	return f.resp, nil
}

func textResponse(s string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content:      &genai.Content{Parts: []genai.Part{genai.Text(s)}},
			FinishReason: genai.FinishReasonStop,
		}},
		UsageMetadata: &genai.UsageMetadata{PromptTokenCount: 10, CandidatesTokenCount: 5, TotalTokenCount: 15},
	}
}

func newTestGemini(gen contentGenerator) *GeminiClient {
	return &GeminiClient{
		modelID:    "test-model",
		model:      func(Request) contentGenerator { return gen },
		retryDelay: time.Millisecond,
	}
}

func TestGeminiCompleteRetriesTransientErrors(t *testing.T) {
	gen := &fakeGenerator{
		errs: []error{errors.New("503 unavailable"), errors.New("503 unavailable")},
		resp: textResponse(`{"interest_score": 64}`),
	}
	c := newTestGemini(gen)

	resp, err := c.Complete(context.Background(), Request{
		Text:  "analyze",
		Image: &Image{Data: pngHeader, MIMEType: "image/png"},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, gen.calls)
	assert.Equal(t, `{"interest_score": 64}`, resp.Text)
	assert.Equal(t, int32(15), resp.Usage.TotalTokens)

	require.Len(t, gen.parts, 2)
	assert.Equal(t, genai.Text("analyze"), gen.parts[0])
	blob, ok := gen.parts[1].(*genai.Blob)
	require.True(t, ok)
	assert.Equal(t, "image/png", blob.MIMEType)
}

func TestGeminiCompleteGivesUpAfterThreeAttempts(t *testing.T) {
	boom := errors.New("boom")
	gen := &fakeGenerator{errs: []error{boom, boom, boom}}
	c := newTestGemini(gen)

	_, err := c.Complete(context.Background(), Request{Text: "analyze"})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, gen.calls)
}

func TestGeminiCompleteRequiresInput(t *testing.T) {
	c := newTestGemini(&fakeGenerator{})
	_, err := c.Complete(context.Background(), Request{})
	assert.Error(t, err)
}

func TestGeminiResponseEmpty(t *testing.T) {
	_, err := geminiResponse(&genai.GenerateContentResponse{})
	assert.ErrorIs(t, err, ErrNoCandidates)

	_, err = geminiResponse(&genai.GenerateContentResponse{Candidates: []*genai.Candidate{{}}})
	assert.ErrorIs(t, err, ErrEmptyOutput)

	_, err = geminiResponse(textResponse("   "))
	assert.ErrorIs(t, err, ErrEmptyOutput)
}

func TestNewGeminiClientRequiresKey(t *testing.T) {
	_, err := NewGeminiClient(context.Background(), " ", "")
	assert.Error(t, err)
}
