package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/vestra-platform/vestra_service/internal/domain/entities"
)

// TransactionRepository handles the owner-facing transaction history
type TransactionRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *sqlx.DB, logger *zap.Logger) *TransactionRepository {
	return &TransactionRepository{
		db:     db,
		logger: logger,
	}
}

// Create persists a transaction record
func (r *TransactionRepository) Create(ctx context.Context, tx *entities.Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO transactions (id, owner_id, investment_id, type, amount, currency, status, reference, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		tx.ID,
		tx.OwnerID,
		tx.InvestmentID,
		tx.Type,
		tx.Amount,
		tx.Currency,
		tx.Status,
		tx.Reference,
		tx.CreatedAt,
	)
	if err != nil {
		r.logger.Error("failed to create transaction",
			zap.Error(err),
			zap.String("owner_id", tx.OwnerID.String()),
			zap.String("type", string(tx.Type)),
		)
		return fmt.Errorf("failed to create transaction: %w", err)
	}

	return nil
}

// ListByOwner returns an owner's transactions, newest first
func (r *TransactionRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*entities.Transaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT id, owner_id, investment_id, type, amount, currency, status, reference, created_at
		FROM transactions
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	transactions := []*entities.Transaction{}
	if err := r.db.SelectContext(ctx, &transactions, query, ownerID, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	return transactions, nil
}

// HasPrincipalRelease reports whether a position's principal has been
// returned. The release transaction is the maturity idempotency marker.
func (r *TransactionRepository) HasPrincipalRelease(ctx context.Context, investmentID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM transactions
			WHERE investment_id = $1 AND reference = $2 AND status = $3
		)
	`

	var exists bool
	err := r.db.GetContext(ctx, &exists, query, investmentID, entities.ReferencePrincipalRelease, entities.TransactionCompleted)
	if err != nil {
		return false, fmt.Errorf("failed to check principal release: %w", err)
	}

	return exists, nil
}

// HasProfitNear reports whether a completed profit transaction exists
// within the window around a period ending. Used only by the one-shot
// profit log repair tool, never by the distribution cycle itself.
func (r *TransactionRepository) HasProfitNear(ctx context.Context, investmentID uuid.UUID, periodEnding time.Time, window time.Duration) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM transactions
			WHERE investment_id = $1
			  AND type = $2
			  AND status = $3
			  AND created_at BETWEEN $4 AND $5
		)
	`

	var exists bool
	err := r.db.GetContext(ctx, &exists, query,
		investmentID,
		entities.TransactionProfit,
		entities.TransactionCompleted,
		periodEnding.Add(-window),
		periodEnding.Add(window),
	)
	if err != nil {
		return false, fmt.Errorf("failed to check profit transaction window: %w", err)
	}

	return exists, nil
}
