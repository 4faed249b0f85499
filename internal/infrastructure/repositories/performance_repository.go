package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vestra-platform/vestra_service/internal/domain/entities"
)

// PerformanceRepository reads revenue-stream ROI snapshots. Rows are
// written by the external performance feed; this service only consumes
// the latest snapshot per stream.
type PerformanceRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewPerformanceRepository creates a new performance repository
func NewPerformanceRepository(db *sqlx.DB, logger *zap.Logger) *PerformanceRepository {
	return &PerformanceRepository{
		db:     db,
		logger: logger,
	}
}

// LatestROI returns the most recent ROI percentage for a stream. The
// bool is false when the stream has no snapshot at all.
func (r *PerformanceRepository) LatestROI(ctx context.Context, streamName string) (decimal.Decimal, bool, error) {
	query := `
		SELECT roi_pct
		FROM stream_performance
		WHERE stream_name = $1
		ORDER BY week_ending DESC
		LIMIT 1
	`

	var roi decimal.Decimal
	if err := r.db.GetContext(ctx, &roi, query, streamName); err != nil {
		if err == sql.ErrNoRows {
			return decimal.Zero, false, nil
		}
		return decimal.Zero, false, fmt.Errorf("failed to get stream roi: %w", err)
	}

	return roi, true, nil
}

// RecordSnapshot upserts a weekly ROI snapshot for a stream
func (r *PerformanceRepository) RecordSnapshot(ctx context.Context, snapshot *entities.StreamPerformance) error {
	query := `
		INSERT INTO stream_performance (id, stream_name, week_ending, roi_pct, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (stream_name, week_ending)
		DO UPDATE SET roi_pct = EXCLUDED.roi_pct
	`

	_, err := r.db.ExecContext(ctx, query,
		snapshot.ID,
		snapshot.StreamName,
		snapshot.WeekEnding,
		snapshot.ROIPct,
		snapshot.CreatedAt,
	)
	if err != nil {
		r.logger.Error("failed to record stream snapshot",
			zap.Error(err),
			zap.String("stream_name", snapshot.StreamName),
		)
		return fmt.Errorf("failed to record stream snapshot: %w", err)
	}

	return nil
}
