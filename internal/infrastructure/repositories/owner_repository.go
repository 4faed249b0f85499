package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/vestra-platform/vestra_service/internal/domain/entities"
	domainerrors "github.com/vestra-platform/vestra_service/internal/domain/errors"
)

// OwnerRepository reads the slim owner records this core consumes
type OwnerRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewOwnerRepository creates a new owner repository
func NewOwnerRepository(db *sqlx.DB, logger *zap.Logger) *OwnerRepository {
	return &OwnerRepository{
		db:     db,
		logger: logger,
	}
}

// GetByID retrieves an owner by id
func (r *OwnerRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Owner, error) {
	query := `
		SELECT id, referrer_id, kyc_status, created_at
		FROM owners
		WHERE id = $1
	`

	owner := &entities.Owner{}
	if err := r.db.GetContext(ctx, owner, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, domainerrors.NotFoundError("owner")
		}
		return nil, fmt.Errorf("failed to get owner: %w", err)
	}

	return owner, nil
}
