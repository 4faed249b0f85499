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

// PlanRepository handles investment plan persistence. Plans are seeded by
// migration and read-only at runtime.
type PlanRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewPlanRepository creates a new plan repository
func NewPlanRepository(db *sqlx.DB, logger *zap.Logger) *PlanRepository {
	return &PlanRepository{
		db:     db,
		logger: logger,
	}
}

const planColumns = `id, slug, name, tier, min_amount, max_amount, duration_days, return_percentage, payout_frequency, created_at`

// Resolve finds a plan by slug, then by exact name, then by id string.
// Unresolvable identifiers map to ErrPlanNotFound.
func (r *PlanRepository) Resolve(ctx context.Context, identifier string) (*entities.Plan, error) {
	query := `
		SELECT ` + planColumns + `
		FROM plans
		WHERE slug = $1 OR name = $1
		ORDER BY (slug = $1) DESC
		LIMIT 1
	`

	plan := &entities.Plan{}
	err := r.db.GetContext(ctx, plan, query, identifier)
	if err == nil {
		return r.attachAllocations(ctx, plan)
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to resolve plan: %w", err)
	}

	if id, parseErr := uuid.Parse(identifier); parseErr == nil {
		return r.GetByID(ctx, id)
	}

	return nil, domainerrors.PlanNotFoundError(identifier)
}

// GetByID retrieves a plan by id
func (r *PlanRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Plan, error) {
	query := `
		SELECT ` + planColumns + `
		FROM plans
		WHERE id = $1
	`

	plan := &entities.Plan{}
	if err := r.db.GetContext(ctx, plan, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, domainerrors.PlanNotFoundError(id.String())
		}
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}

	return r.attachAllocations(ctx, plan)
}

// List returns all plans ordered by minimum amount
func (r *PlanRepository) List(ctx context.Context) ([]*entities.Plan, error) {
	query := `
		SELECT ` + planColumns + `
		FROM plans
		ORDER BY min_amount
	`

	plans := []*entities.Plan{}
	if err := r.db.SelectContext(ctx, &plans, query); err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}

	for _, plan := range plans {
		if _, err := r.attachAllocations(ctx, plan); err != nil {
			return nil, err
		}
	}

	return plans, nil
}

// attachAllocations loads the revenue-stream allocation rows, if any. A
// plan with no rows is a flat-rate plan.
func (r *PlanRepository) attachAllocations(ctx context.Context, plan *entities.Plan) (*entities.Plan, error) {
	query := `
		SELECT stream_name, allocation_pct
		FROM plan_allocations
		WHERE plan_id = $1
	`

	rows, err := r.db.QueryxContext(ctx, query, plan.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load plan allocations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var streamName string
		var allocationPct decimal.Decimal
		if err := rows.Scan(&streamName, &allocationPct); err != nil {
			return nil, fmt.Errorf("failed to scan plan allocation: %w", err)
		}
		if plan.Allocations == nil {
			plan.Allocations = make(map[string]decimal.Decimal)
		}
		plan.Allocations[streamName] = allocationPct
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate plan allocations: %w", err)
	}

	return plan, nil
}
