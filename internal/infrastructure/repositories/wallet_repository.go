package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/vestra-platform/vestra_service/internal/domain/entities"
	domainerrors "github.com/vestra-platform/vestra_service/internal/domain/errors"
)

// WalletRepository handles wallet and movement persistence
type WalletRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewWalletRepository creates a new wallet repository
func NewWalletRepository(db *sqlx.DB, logger *zap.Logger) *WalletRepository {
	return &WalletRepository{
		db:     db,
		logger: logger,
	}
}

// GetByOwnerAndCurrency retrieves a wallet, returning (nil, nil) when the
// owner has never held the currency
func (r *WalletRepository) GetByOwnerAndCurrency(ctx context.Context, ownerID uuid.UUID, currency string) (*entities.Wallet, error) {
	query := `
		SELECT id, owner_id, currency, balance, created_at, updated_at
		FROM wallets
		WHERE owner_id = $1 AND currency = $2
	`

	wallet := &entities.Wallet{}
	err := r.db.GetContext(ctx, wallet, query, ownerID, currency)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.Error("failed to get wallet",
			zap.Error(err),
			zap.String("owner_id", ownerID.String()),
			zap.String("currency", currency),
		)
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}

	return wallet, nil
}

// ListByOwner returns all wallets held by an owner
func (r *WalletRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*entities.Wallet, error) {
	query := `
		SELECT id, owner_id, currency, balance, created_at, updated_at
		FROM wallets
		WHERE owner_id = $1
		ORDER BY currency
	`

	wallets := []*entities.Wallet{}
	if err := r.db.SelectContext(ctx, &wallets, query, ownerID); err != nil {
		return nil, fmt.Errorf("failed to list wallets: %w", err)
	}

	return wallets, nil
}

// Credit applies a credit movement atomically, creating the wallet row if
// the owner has never held the currency. The balance update and the
// movement insert commit or roll back together.
func (r *WalletRepository) Credit(ctx context.Context, ref entities.WalletRef, movement *entities.WalletMovement) (*entities.Wallet, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	upsert := `
		INSERT INTO wallets (id, owner_id, currency, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (owner_id, currency)
		DO UPDATE SET
			balance = wallets.balance + EXCLUDED.balance,
			updated_at = EXCLUDED.updated_at
		RETURNING id, owner_id, currency, balance, created_at, updated_at
	`

	wallet := &entities.Wallet{}
	err = tx.GetContext(ctx, wallet, upsert, uuid.New(), ref.OwnerID, ref.Currency, movement.Amount, now)
	if err != nil {
		r.logger.Error("failed to credit wallet",
			zap.Error(err),
			zap.String("owner_id", ref.OwnerID.String()),
			zap.String("currency", ref.Currency),
			zap.String("amount", movement.Amount.String()),
		)
		return nil, fmt.Errorf("failed to credit wallet: %w", err)
	}

	movement.WalletID = wallet.ID
	if err := insertMovement(ctx, tx, movement); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit credit: %w", err)
	}

	return wallet, nil
}

// Debit applies a debit movement atomically. The guarded UPDATE is the
// overdraft protection: zero rows affected means the balance no longer
// covers the amount.
func (r *WalletRepository) Debit(ctx context.Context, ref entities.WalletRef, movement *entities.WalletMovement) (*entities.Wallet, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	update := `
		UPDATE wallets
		SET balance = balance - $3, updated_at = $4
		WHERE owner_id = $1 AND currency = $2 AND balance >= $3
		RETURNING id, owner_id, currency, balance, created_at, updated_at
	`

	wallet := &entities.Wallet{}
	err = tx.GetContext(ctx, wallet, update, ref.OwnerID, ref.Currency, movement.Amount, time.Now().UTC())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domainerrors.ErrInsufficientFunds
		}
		r.logger.Error("failed to debit wallet",
			zap.Error(err),
			zap.String("owner_id", ref.OwnerID.String()),
			zap.String("currency", ref.Currency),
			zap.String("amount", movement.Amount.String()),
		)
		return nil, fmt.Errorf("failed to debit wallet: %w", err)
	}

	movement.WalletID = wallet.ID
	if err := insertMovement(ctx, tx, movement); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit debit: %w", err)
	}

	return wallet, nil
}

// Movements returns the movement log of a wallet, newest first
func (r *WalletRepository) Movements(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]*entities.WalletMovement, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT id, wallet_id, direction, amount, source_kind, reference, performed_by, created_at
		FROM wallet_movements
		WHERE wallet_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	movements := []*entities.WalletMovement{}
	if err := r.db.SelectContext(ctx, &movements, query, walletID, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list movements: %w", err)
	}

	return movements, nil
}

func insertMovement(ctx context.Context, tx *sqlx.Tx, movement *entities.WalletMovement) error {
	if err := movement.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO wallet_movements (id, wallet_id, direction, amount, source_kind, reference, performed_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := tx.ExecContext(ctx, query,
		movement.ID,
		movement.WalletID,
		movement.Direction,
		movement.Amount,
		movement.SourceKind,
		movement.Reference,
		movement.PerformedBy,
		movement.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record movement: %w", err)
	}

	return nil
}
