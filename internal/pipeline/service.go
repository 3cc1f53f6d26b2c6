package pipeline

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/sherlock-labs/screenshot-sherlock/internal/analysis"
	"github.com/sherlock-labs/screenshot-sherlock/internal/observability/metrics"
	"github.com/sherlock-labs/screenshot-sherlock/internal/osint"
	"github.com/sherlock-labs/screenshot-sherlock/internal/prompt"
	"github.com/sherlock-labs/screenshot-sherlock/internal/store"
	"github.com/sherlock-labs/screenshot-sherlock/internal/users"
	"github.com/sherlock-labs/screenshot-sherlock/internal/vision"
	"github.com/sherlock-labs/screenshot-sherlock/pkg/logging"
)

var pipelineTracer = otel.Tracer("sherlock.internal.pipeline")

// DefaultRetentionCap is the number of analyses kept per user.
const DefaultRetentionCap = 50

const (
	conversationHistoryLimit = 100
	overthinkingWindow       = 10
)

// ScreenshotArchive stores screenshot payloads outside the document store.
type ScreenshotArchive interface {
	Enabled() bool
	Put(ctx context.Context, userID, conversationID string, data []byte, mimeType string) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, keys []string)
}

// ScreenshotAnalyzer runs the vision model calls.
type ScreenshotAnalyzer interface {
	AnalyzeScreenshot(ctx context.Context, img vision.Image, prefs *users.Preferences, stage prompt.Stage, findings *osint.Result) (vision.RawAnalysis, error)
	ExtractMetadata(ctx context.Context, img vision.Image) vision.Metadata
}

// UsernameChecker runs OSINT enrichment for one handle. It never fails;
// problems come back in Result.Error.
type UsernameChecker interface {
	CheckUsername(ctx context.Context, username string) osint.Result
}

// ReplySuggester drafts replies from conversation text.
type ReplySuggester interface {
	Suggest(ctx context.Context, conversationContext string, prefs *users.Preferences) ([]analysis.SuggestedReply, error)
}

// Service owns the upload, analysis and coaching flows.
type Service struct {
	store     store.Store
	archive   ScreenshotArchive
	analyzer  ScreenshotAnalyzer
	osint     UsernameChecker
	replies   ReplySuggester
	retention *RetentionEnforcer
	metrics   *metrics.AnalysisMetrics
	logger    *logging.Logger
	now       func() time.Time
}

type Option func(*Service)

// WithArchive offloads screenshot payloads to object storage when enabled.
func WithArchive(a ScreenshotArchive) Option {
	return func(s *Service) { s.archive = a }
}

// WithOSINT enables the enrichment branch for users in advanced mode.
func WithOSINT(c UsernameChecker) Option {
	return func(s *Service) { s.osint = c }
}

func WithReplySuggester(r ReplySuggester) Option {
	return func(s *Service) { s.replies = r }
}

func WithMetrics(m *metrics.AnalysisMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithRetentionCap overrides DefaultRetentionCap.
func WithRetentionCap(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.retention.cap = n
		}
	}
}

// NewService wires the pipeline. The store and analyzer are required.
func NewService(st store.Store, analyzer ScreenshotAnalyzer, logger *logging.Logger, opts ...Option) *Service {
	if st == nil {
		panic("pipeline: store required")
	}
	if analyzer == nil {
		panic("pipeline: analyzer required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{
		store:    st,
		analyzer: analyzer,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
	s.retention = NewRetentionEnforcer(st, DefaultRetentionCap, logger)
	for _, opt := range opts {
		opt(s)
	}
	s.retention.metrics = s.metrics
	s.retention.archive = s.archive
	return s
}

// EnsureUser returns the user, creating a default profile on first sight.
func (s *Service) EnsureUser(ctx context.Context, userID, email string) (users.User, error) {
	return s.store.GetOrCreateUser(ctx, userID, email)
}

// UpdatePreferences validates and stores prefs.
func (s *Service) UpdatePreferences(ctx context.Context, userID string, prefs users.Preferences) (users.User, error) {
	if err := prefs.Validate(); err != nil {
		return users.User{}, &InputError{Err: err}
	}
	if _, err := s.store.GetOrCreateUser(ctx, userID, ""); err != nil {
		return users.User{}, err
	}
	return s.store.UpdatePreferences(ctx, userID, prefs)
}
