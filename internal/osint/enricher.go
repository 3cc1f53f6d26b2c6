package osint

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/sherlock-labs/screenshot-sherlock/internal/observability/metrics"
)

type toolRunner interface {
	Run(ctx context.Context, username string) error
	OutputPath(username string) string
}

type pageSummarizer interface {
	Summarize(ctx context.Context, accounts []Account)
}

// Enricher runs the username scan and page previews. It never returns an
// error: every failure becomes a Result with Error set.
type Enricher struct {
	runner  toolRunner
	pages   pageSummarizer
	cache   Cache
	metrics *metrics.AnalysisMetrics
	logger  *slog.Logger
	tracer  trace.Tracer
}

// EnricherOption customizes an Enricher.
type EnricherOption func(*Enricher)

// WithCache enables result caching.
func WithCache(c Cache) EnricherOption {
	return func(e *Enricher) { e.cache = c }
}

// WithMetrics records scan outcomes.
func WithMetrics(m *metrics.AnalysisMetrics) EnricherOption {
	return func(e *Enricher) { e.metrics = m }
}

func NewEnricher(runner toolRunner, pages pageSummarizer, logger *slog.Logger, opts ...EnricherOption) *Enricher {
	if runner == nil {
		panic("osint: tool runner cannot be nil")
	}
	if pages == nil {
		pages = NewPageFetcher(WithFetchLogger(logger))
	}
	if logger == nil {
		logger = slog.Default()
	}
	e := &Enricher{
		runner: runner,
		pages:  pages,
		logger: logger,
		tracer: otel.Tracer("sherlock.internal.osint"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CheckUsername scans for profiles under username. The caller is expected to
// have normalized the handle with NormalizeHandle.
func (e *Enricher) CheckUsername(ctx context.Context, username string) Result {
	ctx, span := e.tracer.Start(ctx, "osint.check_username")
	defer span.End()
	span.SetAttributes(attribute.String("osint.username", username))

	if _, ok := NormalizeHandle(username); !ok {
		e.metrics.ObserveOSINTScan("invalid_handle", 0)
		return errorResult("invalid username: " + username)
	}

	if e.cache != nil {
		cached, ok, err := e.cache.Get(ctx, username)
		if err != nil {
			e.logger.Warn("osint cache read failed", "username", username, "error", err)
		} else if ok {
			e.metrics.ObserveOSINTScan("cache_hit", len(cached.FoundAccounts))
			return cached
		}
	}

	start := time.Now()
	if err := e.runner.Run(ctx, username); err != nil {
		span.RecordError(err)
		e.logger.Warn("osint tool failed", "username", username, "error", err)
		e.metrics.ObserveOSINTScan("tool_failed", 0)
		return errorResult(err.Error())
	}

	accounts, err := ReadOutputFile(e.runner.OutputPath(username))
	if err != nil {
		span.RecordError(err)
		e.logger.Warn("osint output unreadable", "username", username, "error", err)
		e.metrics.ObserveOSINTScan("output_failed", 0)
		return errorResult(err.Error())
	}
	if len(accounts) > 0 {
		e.pages.Summarize(ctx, accounts)
	}

	res := Result{
		Username:      username,
		FoundAccounts: accounts,
		TotalChecked:  ScanModeFast,
	}
	e.logger.Info("osint scan complete", "username", username, "accounts", len(accounts), "elapsed", time.Since(start))
	e.metrics.ObserveOSINTScan("success", len(accounts))
	span.SetAttributes(attribute.Int("osint.accounts", len(accounts)))

	if e.cache != nil {
		if err := e.cache.Set(ctx, res); err != nil {
			e.logger.Warn("osint cache write failed", "username", username, "error", err)
		}
	}
	return res
}
