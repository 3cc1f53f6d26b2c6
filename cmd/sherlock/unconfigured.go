package main

import (
	"context"
	"errors"

	"github.com/sherlock-labs/screenshot-sherlock/internal/osint"
	"github.com/sherlock-labs/screenshot-sherlock/internal/prompt"
	"github.com/sherlock-labs/screenshot-sherlock/internal/users"
	"github.com/sherlock-labs/screenshot-sherlock/internal/vision"
)

var errNoVisionModel = errors.New("no vision model configured: set GEMINI_API_KEY or BEDROCK_MODEL_ID")

// unconfiguredAnalyzer lets `osint` and `token` run without model
// credentials while `analyze` still fails clearly.
type unconfiguredAnalyzer struct{}

func (unconfiguredAnalyzer) AnalyzeScreenshot(ctx context.Context, img vision.Image, prefs *users.Preferences, stage prompt.Stage, findings *osint.Result) (vision.RawAnalysis, error) {
	return vision.RawAnalysis{}, errNoVisionModel
}
