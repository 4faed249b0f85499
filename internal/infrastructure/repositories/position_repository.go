package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vestra-platform/vestra_service/internal/domain/entities"
	domainerrors "github.com/vestra-platform/vestra_service/internal/domain/errors"
)

// PositionRepository handles investment position persistence
type PositionRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewPositionRepository creates a new position repository
func NewPositionRepository(db *sqlx.DB, logger *zap.Logger) *PositionRepository {
	return &PositionRepository{
		db:     db,
		logger: logger,
	}
}

// Create persists a new position
func (r *PositionRepository) Create(ctx context.Context, position *entities.InvestmentPosition) error {
	if err := position.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO investment_positions (id, owner_id, plan_id, principal, status, start_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		position.ID,
		position.OwnerID,
		position.PlanID,
		position.Principal,
		position.Status,
		position.StartDate,
		position.CreatedAt,
	)
	if err != nil {
		r.logger.Error("failed to create position",
			zap.Error(err),
			zap.String("owner_id", position.OwnerID.String()),
			zap.String("plan_id", position.PlanID.String()),
		)
		return fmt.Errorf("failed to create position: %w", err)
	}

	return nil
}

// GetByID retrieves a position by id
func (r *PositionRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.InvestmentPosition, error) {
	query := `
		SELECT id, owner_id, plan_id, principal, status, start_date, created_at
		FROM investment_positions
		WHERE id = $1
	`

	position := &entities.InvestmentPosition{}
	if err := r.db.GetContext(ctx, position, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, domainerrors.NotFoundError("position")
		}
		return nil, fmt.Errorf("failed to get position: %w", err)
	}

	return position, nil
}

// ListByOwner returns an owner's positions, newest first
func (r *PositionRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*entities.InvestmentPosition, error) {
	query := `
		SELECT id, owner_id, plan_id, principal, status, start_date, created_at
		FROM investment_positions
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`

	positions := []*entities.InvestmentPosition{}
	if err := r.db.SelectContext(ctx, &positions, query, ownerID); err != nil {
		return nil, fmt.Errorf("failed to list positions: %w", err)
	}

	return positions, nil
}

// ListActive returns every ACTIVE position, ordered by start date for
// deterministic batch processing
func (r *PositionRepository) ListActive(ctx context.Context) ([]*entities.InvestmentPosition, error) {
	query := `
		SELECT id, owner_id, plan_id, principal, status, start_date, created_at
		FROM investment_positions
		WHERE status = $1
		ORDER BY start_date, id
	`

	positions := []*entities.InvestmentPosition{}
	if err := r.db.SelectContext(ctx, &positions, query, entities.PositionActive); err != nil {
		return nil, fmt.Errorf("failed to list active positions: %w", err)
	}

	return positions, nil
}

// UpdateStatus transitions a position between states. The from guard in
// the WHERE clause makes concurrent transitions race-safe: the loser sees
// zero rows and gets ErrAlreadyProcessed.
func (r *PositionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to entities.PositionStatus) error {
	query := `
		UPDATE investment_positions
		SET status = $3
		WHERE id = $1 AND status = $2
	`

	result, err := r.db.ExecContext(ctx, query, id, from, to)
	if err != nil {
		return fmt.Errorf("failed to update position status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return domainerrors.ErrAlreadyProcessed
	}

	return nil
}

// SumActivePrincipal returns the total principal across all ACTIVE
// positions (the assets-under-management figure)
func (r *PositionRepository) SumActivePrincipal(ctx context.Context) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(principal), 0)
		FROM investment_positions
		WHERE status = $1
	`

	var total decimal.Decimal
	if err := r.db.GetContext(ctx, &total, query, entities.PositionActive); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum active principal: %w", err)
	}

	return total, nil
}
