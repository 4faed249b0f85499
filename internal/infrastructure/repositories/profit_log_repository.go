package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/vestra-platform/vestra_service/internal/domain/entities"
	domainerrors "github.com/vestra-platform/vestra_service/internal/domain/errors"
)

// ProfitLogRepository handles the per-period payout log. The
// (investment_id, period_ending) unique constraint is the authoritative
// double-credit guard for the distribution cycle.
type ProfitLogRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewProfitLogRepository creates a new profit log repository
func NewProfitLogRepository(db *sqlx.DB, logger *zap.Logger) *ProfitLogRepository {
	return &ProfitLogRepository{
		db:     db,
		logger: logger,
	}
}

// Insert writes a payout log entry. A unique violation on the
// (investment_id, period_ending) constraint maps to ErrAlreadyProcessed,
// never to a generic failure.
func (r *ProfitLogRepository) Insert(ctx context.Context, entry *entities.ProfitLogEntry) error {
	query := `
		INSERT INTO profit_log_entries (id, investment_id, amount, period_ending, weighted_pct, gross_profit, fee, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.InvestmentID,
		entry.Amount,
		entry.PeriodEnding,
		entry.WeightedPct,
		entry.GrossProfit,
		entry.Fee,
		entry.CreatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return domainerrors.ErrAlreadyProcessed
		}
		r.logger.Error("failed to insert profit log entry",
			zap.Error(err),
			zap.String("investment_id", entry.InvestmentID.String()),
			zap.Time("period_ending", entry.PeriodEnding),
		)
		return fmt.Errorf("failed to insert profit log entry: %w", err)
	}

	return nil
}

// Exists reports whether a period has already been paid
func (r *ProfitLogRepository) Exists(ctx context.Context, investmentID uuid.UUID, periodEnding time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM profit_log_entries
			WHERE investment_id = $1 AND period_ending = $2
		)
	`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, investmentID, periodEnding); err != nil {
		return false, fmt.Errorf("failed to check profit log entry: %w", err)
	}

	return exists, nil
}

// ListByInvestment returns the payout history of a position, oldest first
func (r *ProfitLogRepository) ListByInvestment(ctx context.Context, investmentID uuid.UUID) ([]*entities.ProfitLogEntry, error) {
	query := `
		SELECT id, investment_id, amount, period_ending, weighted_pct, gross_profit, fee, created_at
		FROM profit_log_entries
		WHERE investment_id = $1
		ORDER BY period_ending
	`

	entries := []*entities.ProfitLogEntry{}
	if err := r.db.SelectContext(ctx, &entries, query, investmentID); err != nil {
		return nil, fmt.Errorf("failed to list profit log entries: %w", err)
	}

	return entries, nil
}
