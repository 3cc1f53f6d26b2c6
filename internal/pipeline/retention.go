package pipeline

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/sherlock-labs/screenshot-sherlock/internal/observability/metrics"
	"github.com/sherlock-labs/screenshot-sherlock/internal/store"
	"github.com/sherlock-labs/screenshot-sherlock/pkg/logging"
)

type retentionStore interface {
	CountByUser(ctx context.Context, userID string) (int, error)
	OldestIDsByUser(ctx context.Context, userID string, n int) ([]string, error)
	PruneAnalyses(ctx context.Context, userID string, ids []string) (store.Pruned, error)
}

var _ retentionStore = (store.Analyses)(nil)

// RetentionEnforcer keeps each user's analysis count at or below a cap by
// deleting the oldest records. Conversations left without analyses go with
// them, along with their archived screenshots.
type RetentionEnforcer struct {
	store   retentionStore
	archive ScreenshotArchive
	cap     int
	metrics *metrics.AnalysisMetrics
	logger  *logging.Logger
}

func NewRetentionEnforcer(st retentionStore, cap int, logger *logging.Logger) *RetentionEnforcer {
	if st == nil {
		panic("pipeline: retention store required")
	}
	if cap <= 0 {
		cap = DefaultRetentionCap
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &RetentionEnforcer{store: st, cap: cap, logger: logger}
}

// Enforce deletes the user's oldest analyses beyond the cap and returns how
// many were removed. Failures are logged, never returned: the insert that
// triggered enforcement has already succeeded.
func (r *RetentionEnforcer) Enforce(ctx context.Context, userID string) int {
	ctx, span := pipelineTracer.Start(ctx, "analysis.retention")
	defer span.End()
	span.SetAttributes(attribute.String("sherlock.user_id", userID))

	count, err := r.store.CountByUser(ctx, userID)
	if err != nil {
		span.RecordError(err)
		r.logger.Warn("retention: count failed", "user_id", userID, "error", err)
		return 0
	}
	excess := count - r.cap
	if excess <= 0 {
		return 0
	}

	ids, err := r.store.OldestIDsByUser(ctx, userID, excess)
	if err != nil {
		span.RecordError(err)
		r.logger.Warn("retention: select oldest failed", "user_id", userID, "error", err)
		return 0
	}
	pruned, err := r.store.PruneAnalyses(ctx, userID, ids)
	deleted := pruned.Analyses
	if err != nil {
		span.RecordError(err)
		r.logger.Warn("retention: delete failed", "user_id", userID, "requested", len(ids), "deleted", deleted, "error", err)
	}
	if n := len(pruned.Conversations); n > 0 {
		r.logger.Info("retention: dropped empty conversations", "user_id", userID, "conversations", n)
		if keys := pruned.StorageKeys(); len(keys) > 0 && r.archive != nil && r.archive.Enabled() {
			r.archive.Delete(ctx, keys)
		}
	}
	r.metrics.ObserveRetentionDeletes(deleted)
	span.SetAttributes(attribute.Int("sherlock.retention.deleted", deleted))
	if deleted > 0 {
		r.logger.Info("retention: pruned analyses", "user_id", userID, "deleted", deleted, "cap", r.cap)
	}
	return deleted
}
