package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vestra-platform/vestra_service/internal/domain/entities"
)

// ReserveRepository handles the singleton reserve buffer row. Both
// figures update in one statement so the pair can never drift within a
// cycle.
type ReserveRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewReserveRepository creates a new reserve repository
func NewReserveRepository(db *sqlx.DB, logger *zap.Logger) *ReserveRepository {
	return &ReserveRepository{
		db:     db,
		logger: logger,
	}
}

// Get retrieves the reserve buffer
func (r *ReserveRepository) Get(ctx context.Context) (*entities.ReserveBuffer, error) {
	query := `
		SELECT current_amount, total_aum, updated_at
		FROM reserve_buffer
		WHERE singleton = TRUE
	`

	buffer := &entities.ReserveBuffer{}
	if err := r.db.GetContext(ctx, buffer, query); err != nil {
		return nil, fmt.Errorf("failed to get reserve buffer: %w", err)
	}

	return buffer, nil
}

// ApplyCycle records a finished distribution pass: the liability offset
// grows by the net profit paid out and the AUM snapshot is replaced.
func (r *ReserveRepository) ApplyCycle(ctx context.Context, totalAUM, profitDelta decimal.Decimal) (*entities.ReserveBuffer, error) {
	query := `
		UPDATE reserve_buffer
		SET current_amount = current_amount + $1,
		    total_aum = $2,
		    updated_at = $3
		WHERE singleton = TRUE
		RETURNING current_amount, total_aum, updated_at
	`

	buffer := &entities.ReserveBuffer{}
	err := r.db.GetContext(ctx, buffer, query, profitDelta, totalAUM, time.Now().UTC())
	if err != nil {
		r.logger.Error("failed to apply cycle to reserve buffer",
			zap.Error(err),
			zap.String("profit_delta", profitDelta.String()),
			zap.String("total_aum", totalAUM.String()),
		)
		return nil, fmt.Errorf("failed to apply cycle to reserve buffer: %w", err)
	}

	return buffer, nil
}
