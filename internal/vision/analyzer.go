package vision

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/sherlock-labs/screenshot-sherlock/internal/observability/metrics"
	"github.com/sherlock-labs/screenshot-sherlock/internal/osint"
	"github.com/sherlock-labs/screenshot-sherlock/internal/prompt"
	"github.com/sherlock-labs/screenshot-sherlock/internal/users"
)

const (
	analysisMaxTokens   = 2000
	analysisTemperature = 0.7
	metadataMaxTokens   = 300
	metadataTemperature = 0.2
)

// RawAnalysis is the parsed model object plus the text it was parsed from.
type RawAnalysis struct {
	Data map[string]any
	Text string
}

// Analyzer drives the screenshot analysis and metadata extraction calls.
type Analyzer struct {
	client  Client
	timeout time.Duration
	metrics *metrics.AnalysisMetrics
	logger  *slog.Logger
	tracer  trace.Tracer
}

type AnalyzerOption func(*Analyzer)

// WithTimeout bounds each model call.
func WithTimeout(d time.Duration) AnalyzerOption {
	return func(a *Analyzer) { a.timeout = d }
}

func WithMetrics(m *metrics.AnalysisMetrics) AnalyzerOption {
	return func(a *Analyzer) { a.metrics = m }
}

func WithLogger(l *slog.Logger) AnalyzerOption {
	return func(a *Analyzer) {
		if l != nil {
			a.logger = l
		}
	}
}

func NewAnalyzer(client Client, opts ...AnalyzerOption) *Analyzer {
	if client == nil {
		panic("vision: client cannot be nil")
	}
	a := &Analyzer{
		client: client,
		logger: slog.Default(),
		tracer: otel.Tracer("sherlock.internal.vision"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AnalyzeScreenshot runs the layered analysis prompt against img. Any model
// or parse failure is returned as *AnalysisFailedError.
func (a *Analyzer) AnalyzeScreenshot(ctx context.Context, img Image, prefs *users.Preferences, stage prompt.Stage, findings *osint.Result) (RawAnalysis, error) {
	ctx, span := a.tracer.Start(ctx, "vision.analyze_screenshot")
	defer span.End()
	span.SetAttributes(
		attribute.String("vision.stage", string(stage)),
		attribute.Bool("vision.osint", findings != nil),
	)

	if len(img.Data) == 0 {
		return RawAnalysis{}, &AnalysisFailedError{Err: ErrEmptyImage}
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	resp, err := a.client.Complete(ctx, Request{
		System:      prompt.Build(prefs, stage, findings),
		Text:        prompt.AnalysisInstruction,
		Image:       &img,
		MaxTokens:   analysisMaxTokens,
		Temperature: analysisTemperature,
		JSON:        true,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "model call failed")
		return RawAnalysis{}, &AnalysisFailedError{Err: err}
	}

	data, err := ExtractJSON(resp.Text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "unparseable model output")
		a.logger.Warn("vision: analysis output was not JSON", "stop_reason", resp.StopReason, "length", len(resp.Text))
		return RawAnalysis{}, &AnalysisFailedError{Raw: resp.Text, Err: err}
	}

	span.SetAttributes(attribute.Int("vision.output_tokens", int(resp.Usage.OutputTokens)))
	return RawAnalysis{Data: data, Text: resp.Text}, nil
}

// ExtractMetadata asks the model for identifying details about the other
// participant. It never fails; problems are reported in Metadata.Error.
func (a *Analyzer) ExtractMetadata(ctx context.Context, img Image) Metadata {
	ctx, span := a.tracer.Start(ctx, "vision.extract_metadata")
	defer span.End()

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	resp, err := a.client.Complete(ctx, Request{
		Text:        prompt.MetadataInstruction,
		Image:       &img,
		MaxTokens:   metadataMaxTokens,
		Temperature: metadataTemperature,
		JSON:        true,
	})
	if err != nil {
		span.RecordError(err)
		a.metrics.ObserveMetadataFailure()
		a.logger.Warn("vision: metadata extraction failed", "error", err)
		return unknownMetadata(err.Error())
	}

	data, err := ExtractJSON(resp.Text)
	if err != nil {
		span.RecordError(err)
		a.metrics.ObserveMetadataFailure()
		return unknownMetadata("could not parse metadata response")
	}
	return metadataFromMap(data)
}

func (a *Analyzer) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, a.timeout)
}
