package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/sherlock-labs/screenshot-sherlock/internal/analysis"
	"github.com/sherlock-labs/screenshot-sherlock/internal/archive"
	"github.com/sherlock-labs/screenshot-sherlock/internal/osint"
	"github.com/sherlock-labs/screenshot-sherlock/internal/prompt"
	"github.com/sherlock-labs/screenshot-sherlock/internal/store"
	"github.com/sherlock-labs/screenshot-sherlock/internal/users"
	"github.com/sherlock-labs/screenshot-sherlock/internal/vision"
)

// AnalyzeInput names the screenshot to analyze.
type AnalyzeInput struct {
	UserID          string
	ConversationID  string
	ScreenshotIndex int
}

// Analyze runs the full pipeline for one screenshot and stores the result.
// Model failures come back as *vision.AnalysisFailedError and nothing is
// persisted. OSINT and metadata problems never fail the call.
func (s *Service) Analyze(ctx context.Context, in AnalyzeInput) (analysis.Analysis, error) {
	ctx, span := pipelineTracer.Start(ctx, "analysis.analyze")
	defer span.End()
	span.SetAttributes(
		attribute.String("sherlock.user_id", in.UserID),
		attribute.String("sherlock.conversation_id", in.ConversationID),
		attribute.Int("sherlock.screenshot_index", in.ScreenshotIndex),
	)

	started := time.Now()
	osintUsed := false
	a, err := s.analyze(ctx, in, &osintUsed)
	outcome := "success"
	if err != nil {
		outcome = "error"
		var failed *vision.AnalysisFailedError
		if errors.As(err, &failed) {
			outcome = "analysis_failed"
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	s.metrics.ObserveAnalysis(outcome, osintUsed, time.Since(started).Seconds())
	return a, err
}

func (s *Service) analyze(ctx context.Context, in AnalyzeInput, osintUsed *bool) (analysis.Analysis, error) {
	conv, err := s.store.GetConversation(ctx, in.UserID, in.ConversationID)
	if err != nil {
		return analysis.Analysis{}, err
	}
	shot, err := conv.Screenshot(in.ScreenshotIndex)
	if err != nil {
		return analysis.Analysis{}, err
	}
	img, err := s.loadImage(ctx, shot)
	if err != nil {
		return analysis.Analysis{}, err
	}
	user, err := s.store.GetOrCreateUser(ctx, in.UserID, "")
	if err != nil {
		return analysis.Analysis{}, err
	}
	prefs := user.Preferences
	stage := prompt.StageFor(len(conv.Screenshots))

	var findings *osint.Result
	if prefs.AdvancedMode && s.osint != nil {
		findings = s.enrich(ctx, img)
		*osintUsed = findings != nil
	}

	raw, err := s.analyzer.AnalyzeScreenshot(ctx, img, &prefs, stage, findings)
	if err != nil {
		var failed *vision.AnalysisFailedError
		if errors.As(err, &failed) && failed.Raw != "" {
			s.logger.Warn("analysis output rejected",
				"user_id", in.UserID,
				"conversation_id", conv.ID,
				"raw", archive.ScrubPII(truncate(failed.Raw, 500)))
		}
		return analysis.Analysis{}, err
	}

	result := analysis.Normalize(raw.Data, conv.ID, in.UserID, s.now())
	result.RawAIResponse = raw.Text

	if platform, participant := analysis.Backfill(raw.Data); platform != "" || participant != "" {
		update := store.MetaUpdate{}
		if platform != "" {
			update.Platform = &platform
		}
		if participant != "" {
			update.ParticipantName = &participant
		}
		if err := s.store.UpdateConversationMeta(ctx, in.UserID, conv.ID, update); err != nil {
			s.logger.Warn("conversation backfill failed", "conversation_id", conv.ID, "error", err)
		}
	}

	if err := s.store.InsertAnalysis(ctx, &result); err != nil {
		return analysis.Analysis{}, fmt.Errorf("pipeline: save analysis: %w", err)
	}
	if err := s.store.IncrementStat(ctx, in.UserID, users.StatTotalAnalyses, 1); err != nil {
		s.logger.Warn("stat increment failed", "user_id", in.UserID, "stat", users.StatTotalAnalyses, "error", err)
	}
	s.retention.Enforce(ctx, in.UserID)

	s.logger.Info("analysis stored",
		"user_id", in.UserID,
		"conversation_id", conv.ID,
		"analysis_id", result.ID,
		"interest_score", result.InterestScore,
		"stage", string(stage),
		"osint", findings != nil)
	return result, nil
}

// enrich extracts the participant's handle from the screenshot and runs the
// OSINT check. It returns nil when no usable handle exists or the check
// failed; either way the analysis continues without OSINT context.
func (s *Service) enrich(ctx context.Context, img vision.Image) *osint.Result {
	ctx, span := pipelineTracer.Start(ctx, "analysis.osint")
	defer span.End()

	md := s.analyzer.ExtractMetadata(ctx, img)
	if md.Error != "" {
		s.logger.Debug("metadata extraction degraded", "error", md.Error)
	}
	handle, ok := osint.NormalizeHandle(md.Handle())
	if !ok {
		span.SetAttributes(attribute.Bool("sherlock.osint.skipped", true))
		return nil
	}
	span.SetAttributes(attribute.String("sherlock.osint.handle", handle))

	res := s.osint.CheckUsername(ctx, handle)
	if res.Failed() {
		span.SetStatus(codes.Error, res.Error)
		s.logger.Warn("osint enrichment skipped", "handle", handle, "error", res.Error)
		return nil
	}
	span.SetAttributes(attribute.Int("sherlock.osint.accounts", len(res.FoundAccounts)))
	return &res
}

// truncate keeps the first n runes of s.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
