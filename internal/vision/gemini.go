package vision

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const (
	defaultGeminiModel = "gemini-2.5-flash"
	geminiAttempts     = 3
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// GeminiClient implements Client using Google's Gemini API with inline image
// parts.
type GeminiClient struct {
	client     *genai.Client
	modelID    string
	model      func(req Request) contentGenerator
	retryDelay time.Duration
}

// NewGeminiClient creates a Gemini-backed multimodal client.
func NewGeminiClient(ctx context.Context, apiKey, modelID string) (*GeminiClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("vision: gemini api key is required")
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = defaultGeminiModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("vision: failed to create gemini client: %w", err)
	}

	c := &GeminiClient{
		client:     client,
		modelID:    modelID,
		retryDelay: 300 * time.Millisecond,
	}
	c.model = c.configuredModel
	return c, nil
}

func (c *GeminiClient) configuredModel(req Request) contentGenerator {
	m := c.client.GenerativeModel(c.modelID)
	cfg := genai.GenerationConfig{}
	if req.Temperature >= 0 {
		t := req.Temperature
		cfg.Temperature = &t
	}
	if req.MaxTokens > 0 {
		n := req.MaxTokens
		cfg.MaxOutputTokens = &n
	}
	if req.JSON {
		cfg.ResponseMIMEType = "application/json"
	}
	m.GenerationConfig = cfg

	if strings.TrimSpace(req.System) != "" {
		m.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.System)},
		}
	}
	return m
}

// Complete sends a single multimodal turn, retrying transient failures.
func (c *GeminiClient) Complete(ctx context.Context, req Request) (Response, error) {
	parts := geminiParts(req)
	if len(parts) == 0 {
		return Response{}, errors.New("vision: gemini requires text or an image")
	}
	m := c.model(req)

	var lastErr error
	for attempt := 1; attempt <= geminiAttempts; attempt++ {
		resp, err := m.GenerateContent(ctx, parts...)
		if err != nil {
			lastErr = fmt.Errorf("vision: gemini completion failed: %w", err)
			if attempt == geminiAttempts {
				break
			}
			select {
			case <-ctx.Done():
				return Response{}, ctx.Err()
			case <-time.After(time.Duration(attempt) * c.retryDelay):
			}
			continue
		}
		return geminiResponse(resp)
	}
	return Response{}, lastErr
}

// Close releases resources held by the Gemini client.
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

func geminiParts(req Request) []genai.Part {
	parts := make([]genai.Part, 0, 2)
	if strings.TrimSpace(req.Text) != "" {
		parts = append(parts, genai.Text(req.Text))
	}
	if req.Image != nil && len(req.Image.Data) > 0 {
		mime := req.Image.MIMEType
		if mime == "" {
			mime = DetectMIME(req.Image.Data)
		}
		parts = append(parts, &genai.Blob{MIMEType: mime, Data: req.Image.Data})
	}
	return parts
}

func geminiResponse(resp *genai.GenerateContentResponse) (Response, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return Response{}, ErrNoCandidates
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return Response{}, ErrEmptyOutput
	}

	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return Response{}, ErrEmptyOutput
	}

	out := Response{
		Text:       strings.TrimSpace(text.String()),
		StopReason: candidate.FinishReason.String(),
	}
	if resp.UsageMetadata != nil {
		out.Usage = TokenUsage{
			InputTokens:  resp.UsageMetadata.PromptTokenCount,
			OutputTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:  resp.UsageMetadata.TotalTokenCount,
		}
	}
	return out, nil
}
