package vision

import (
	"context"
	"log/slog"

	"github.com/sherlock-labs/screenshot-sherlock/internal/observability/metrics"
)

// FallbackClient answers from the primary model. When that call errors and
// the caller's context is still live, the same request goes to the secondary
// model exactly once. Only second attempts are counted.
type FallbackClient struct {
	primary   Client
	secondary Client
	metrics   *metrics.AnalysisMetrics
	logger    *slog.Logger
}

// NewFallbackClient chains primary and secondary. A nil secondary leaves the
// primary's errors untouched.
func NewFallbackClient(primary, secondary Client, m *metrics.AnalysisMetrics, logger *slog.Logger) *FallbackClient {
	if primary == nil {
		panic("vision: fallback chain needs a primary client")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackClient{primary: primary, secondary: secondary, metrics: m, logger: logger}
}

func (c *FallbackClient) Complete(ctx context.Context, req Request) (Response, error) {
	resp, primaryErr := c.primary.Complete(ctx, req)
	switch {
	case primaryErr == nil:
		return resp, nil
	case c.secondary == nil:
		return Response{}, primaryErr
	case ctx.Err() != nil:
		c.logger.Warn("vision: primary model failed after deadline, not retrying", "error", primaryErr)
		return Response{}, primaryErr
	}

	resp, err := c.secondary.Complete(ctx, req)
	attrs := []any{"primary_error", primaryErr.Error()}
	if err != nil {
		c.metrics.ObserveVisionFallback("failure")
		c.logger.Error("vision: both models failed", append(attrs, "secondary_error", err.Error())...)
		return Response{}, err
	}
	c.metrics.ObserveVisionFallback("success")
	c.logger.Warn("vision: answered by secondary model", attrs...)
	return resp, nil
}
