package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/sherlock-labs/screenshot-sherlock/cmd/mainconfig"
	"github.com/sherlock-labs/screenshot-sherlock/internal/archive"
	appconfig "github.com/sherlock-labs/screenshot-sherlock/internal/config"
	"github.com/sherlock-labs/screenshot-sherlock/internal/observability/metrics"
	"github.com/sherlock-labs/screenshot-sherlock/internal/osint"
	"github.com/sherlock-labs/screenshot-sherlock/internal/pipeline"
	"github.com/sherlock-labs/screenshot-sherlock/internal/store"
	"github.com/sherlock-labs/screenshot-sherlock/internal/vision"
	"github.com/sherlock-labs/screenshot-sherlock/pkg/logging"
)

// dependencies holds every long-lived client the service needs, so main can
// release them in one place on shutdown.
type dependencies struct {
	store    store.Store
	archive  *archive.ScreenshotStore
	analyzer *vision.Analyzer
	replies  *vision.ReplySuggester
	osint    *osint.Enricher

	closers []func()
}

func (d *dependencies) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

func (d *dependencies) service(cfg *appconfig.Config, m *metrics.AnalysisMetrics, logger *logging.Logger) *pipeline.Service {
	opts := []pipeline.Option{
		pipeline.WithMetrics(m),
		pipeline.WithRetentionCap(cfg.RetentionCap),
	}
	if d.archive.Enabled() {
		opts = append(opts, pipeline.WithArchive(d.archive))
	}
	if d.osint != nil {
		opts = append(opts, pipeline.WithOSINT(d.osint))
	}
	if d.replies != nil {
		opts = append(opts, pipeline.WithReplySuggester(d.replies))
	}
	return pipeline.NewService(d.store, d.analyzer, logger, opts...)
}

func setupMetrics() (http.Handler, *metrics.AnalysisMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewAnalysisMetrics(reg)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), m
}

func bootstrap(ctx context.Context, cfg *appconfig.Config, m *metrics.AnalysisMetrics, logger *logging.Logger) (*dependencies, error) {
	deps := &dependencies{}
	fail := func(err error) (*dependencies, error) {
		deps.Close()
		return nil, err
	}

	var awsCfg *aws.Config
	if needsAWS(cfg) {
		loaded, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			return fail(fmt.Errorf("load AWS config: %w", err))
		}
		awsCfg = &loaded
	}

	st, closeStore, err := buildStore(ctx, cfg, awsCfg, logger)
	if err != nil {
		return fail(err)
	}
	deps.store = st
	deps.closers = append(deps.closers, closeStore)

	if cfg.ScreenshotBucket != "" && awsCfg != nil {
		deps.archive = archive.NewScreenshotStore(mainconfig.NewS3Client(*awsCfg, cfg), cfg.ScreenshotBucket, logger.Logger)
		logger.Info("screenshot archive enabled", "bucket", cfg.ScreenshotBucket)
	}

	client, closeVision, err := buildVisionClient(ctx, cfg, awsCfg, m, logger)
	if err != nil {
		return fail(err)
	}
	deps.closers = append(deps.closers, closeVision)
	deps.analyzer = vision.NewAnalyzer(client,
		vision.WithTimeout(cfg.VisionTimeout),
		vision.WithMetrics(m),
		vision.WithLogger(logger.Logger),
	)
	deps.replies = buildReplySuggester(cfg, client, m, logger)

	rdb := mainconfig.NewRedisClient(cfg)
	if rdb != nil {
		deps.closers = append(deps.closers, func() { _ = rdb.Close() })
	}
	deps.osint = buildEnricher(cfg, rdb, m, logger)

	return deps, nil
}

func needsAWS(cfg *appconfig.Config) bool {
	return cfg.StoreBackend == "dynamodb" || cfg.ScreenshotBucket != "" || cfg.BedrockModelID != ""
}

func buildStore(ctx context.Context, cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) (store.Store, func(), error) {
	noop := func() {}
	switch cfg.StoreBackend {
	case "", "memory":
		logger.Warn("using in-memory store; data is lost on restart")
		return store.NewMemoryStore(), noop, nil
	case "postgres":
		pool := connectPostgresPool(ctx, cfg.DatabaseURL, logger)
		if pool == nil {
			return nil, noop, errors.New("postgres store requires a reachable DATABASE_URL")
		}
		return store.NewPostgresStore(pool), pool.Close, nil
	case "dynamodb":
		if awsCfg == nil {
			return nil, noop, errors.New("dynamodb store requires AWS config")
		}
		tables := store.DynamoTables{
			Users:         cfg.DynamoUsersTable,
			Conversations: cfg.DynamoConversationsTable,
			Analyses:      cfg.DynamoAnalysesTable,
		}
		return store.NewDynamoStore(mainconfig.NewDynamoClient(*awsCfg, cfg), tables, logger), noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
}

func connectPostgresPool(ctx context.Context, databaseURL string, logger *logging.Logger) *pgxpool.Pool {
	if databaseURL == "" {
		return nil
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		logger.Error("failed to connect postgres", "error", err)
		return nil
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Error("failed to ping postgres", "error", err)
		pool.Close()
		return nil
	}
	return pool
}

// buildVisionClient prefers Gemini and falls back to Bedrock when both are
// configured.
func buildVisionClient(ctx context.Context, cfg *appconfig.Config, awsCfg *aws.Config, m *metrics.AnalysisMetrics, logger *logging.Logger) (vision.Client, func(), error) {
	noop := func() {}

	var primary, fallback vision.Client
	closeFn := noop
	if cfg.GeminiAPIKey != "" {
		gemini, err := vision.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, noop, err
		}
		primary = gemini
		closeFn = func() { _ = gemini.Close() }
	}
	if cfg.BedrockModelID != "" && awsCfg != nil {
		bedrock := vision.NewBedrockClient(bedrockruntime.NewFromConfig(*awsCfg), cfg.BedrockModelID)
		if primary == nil {
			primary = bedrock
		} else {
			fallback = bedrock
		}
	}
	if primary == nil {
		return nil, noop, errors.New("no vision model configured: set GEMINI_API_KEY or BEDROCK_MODEL_ID")
	}
	return vision.NewFallbackClient(primary, fallback, m, logger.Logger), closeFn, nil
}

// buildReplySuggester routes text-only reply requests to OpenAI when a key is
// present, with the vision client as the fallback.
func buildReplySuggester(cfg *appconfig.Config, visionClient vision.Client, m *metrics.AnalysisMetrics, logger *logging.Logger) *vision.ReplySuggester {
	client := visionClient
	if cfg.OpenAIAPIKey != "" {
		oa, err := vision.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
		if err != nil {
			logger.Warn("openai client unavailable; replies use the vision model", "error", err)
		} else {
			client = vision.NewFallbackClient(oa, visionClient, m, logger.Logger)
		}
	}
	return vision.NewReplySuggester(client, logger.Logger)
}

// buildEnricher returns nil when the enumeration tool is not installed.
func buildEnricher(cfg *appconfig.Config, rdb *redis.Client, m *metrics.AnalysisMetrics, logger *logging.Logger) *osint.Enricher {
	if info, err := os.Stat(cfg.OSINTToolDir); err != nil || !info.IsDir() {
		logger.Warn("osint tool directory not found; advanced mode runs without enrichment", "dir", cfg.OSINTToolDir)
		return nil
	}
	runner := osint.NewToolRunner(cfg.OSINTToolDir, cfg.OSINTToolCommand, cfg.OSINTScanTimeout, logger.Logger)
	pages := osint.NewPageFetcher(
		osint.WithFetchTimeout(cfg.OSINTFetchTimeout),
		osint.WithFetchLogger(logger.Logger),
	)
	opts := []osint.EnricherOption{osint.WithMetrics(m)}
	if rdb != nil {
		opts = append(opts, osint.WithCache(osint.NewRedisCache(rdb, cfg.OSINTCacheTTL)))
	}
	return osint.NewEnricher(runner, pages, logger.Logger, opts...)
}
