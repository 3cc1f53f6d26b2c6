package vision

import "context"

// Image is a raw screenshot payload handed to a multimodal model.
type Image struct {
	Data     []byte
	MIMEType string
}

type TokenUsage struct {
	InputTokens  int32
	OutputTokens int32
	TotalTokens  int32
}

// Request is a single-turn model call. Image is optional; text-only
// requests are used for reply suggestions.
type Request struct {
	System      string
	Text        string
	Image       *Image
	MaxTokens   int32
	Temperature float32
	// JSON asks the provider for a JSON response body when it supports one.
	JSON bool
	// Schema, when set, is enforced by providers with structured output.
	Schema *Schema
}

// Schema is a named JSON schema for structured model output.
type Schema struct {
	Name        string
	Description string
	Definition  map[string]any
}

type Response struct {
	Text       string
	Usage      TokenUsage
	StopReason string
}

// Client is implemented by every model provider.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}
