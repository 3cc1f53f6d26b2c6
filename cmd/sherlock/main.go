/*
Command sherlock analyzes conversation screenshots from the terminal.

Usage:

	sherlock analyze <image> [--attachment-style --dating-goal --stage --osint-handle]
	sherlock osint <handle>
	sherlock token <user-id> [--email --ttl]

Configuration is read from the environment (and .env) exactly as the API
server reads it.
*/
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/joho/godotenv"

	"github.com/sherlock-labs/screenshot-sherlock/cmd/mainconfig"
	"github.com/sherlock-labs/screenshot-sherlock/internal/cli"
	appconfig "github.com/sherlock-labs/screenshot-sherlock/internal/config"
	"github.com/sherlock-labs/screenshot-sherlock/internal/osint"
	"github.com/sherlock-labs/screenshot-sherlock/internal/vision"
	"github.com/sherlock-labs/screenshot-sherlock/pkg/logging"
)

// Version information (set via ldflags during build)
var version = "dev"

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	// Logs go to stderr so stdout stays machine readable.
	logger := logging.NewWithOptions(logging.Options{
		Level:  cfg.LogLevel,
		Format: "text",
		Output: os.Stderr,
	})

	root := cli.NewRootCmd(newFactory(cfg, logger), version)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newFactory(cfg *appconfig.Config, logger *logging.Logger) cli.Factory {
	return func(ctx context.Context) (*cli.Deps, error) {
		deps := &cli.Deps{JWTSecret: cfg.JWTSecret}

		var closers []func()
		deps.Close = func() {
			for _, c := range closers {
				c()
			}
		}

		var primary, fallback vision.Client
		if cfg.GeminiAPIKey != "" {
			gemini, err := vision.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
			if err != nil {
				return nil, err
			}
			primary = gemini
			closers = append(closers, func() { _ = gemini.Close() })
		}
		if cfg.BedrockModelID != "" {
			awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
			if err != nil {
				deps.Close()
				return nil, fmt.Errorf("load AWS config: %w", err)
			}
			bedrock := vision.NewBedrockClient(bedrockruntime.NewFromConfig(awsCfg), cfg.BedrockModelID)
			if primary == nil {
				primary = bedrock
			} else {
				fallback = bedrock
			}
		}
		if primary != nil {
			deps.Analyzer = vision.NewAnalyzer(
				vision.NewFallbackClient(primary, fallback, nil, logger.Logger),
				vision.WithTimeout(cfg.VisionTimeout),
				vision.WithLogger(logger.Logger),
			)
		} else {
			deps.Analyzer = unconfiguredAnalyzer{}
		}

		if info, err := os.Stat(cfg.OSINTToolDir); err == nil && info.IsDir() {
			runner := osint.NewToolRunner(cfg.OSINTToolDir, cfg.OSINTToolCommand, cfg.OSINTScanTimeout, logger.Logger)
			pages := osint.NewPageFetcher(
				osint.WithFetchTimeout(cfg.OSINTFetchTimeout),
				osint.WithFetchLogger(logger.Logger),
			)
			var opts []osint.EnricherOption
			if rdb := mainconfig.NewRedisClient(cfg); rdb != nil {
				closers = append(closers, func() { _ = rdb.Close() })
				opts = append(opts, osint.WithCache(osint.NewRedisCache(rdb, cfg.OSINTCacheTTL)))
			}
			deps.OSINT = osint.NewEnricher(runner, pages, logger.Logger, opts...)
		}

		return deps, nil
	}
}
