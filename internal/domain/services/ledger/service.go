// Package ledger exposes the wallet ledger: per-currency balances backed
// by an append-only movement log.
package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vestra-platform/vestra_service/internal/domain/entities"
	domainerrors "github.com/vestra-platform/vestra_service/internal/domain/errors"
	"github.com/vestra-platform/vestra_service/internal/domain/repositories"
	"github.com/vestra-platform/vestra_service/internal/domain/services/currency"
	"github.com/vestra-platform/vestra_service/pkg/logger"
)

// Service handles wallet ledger operations. Every credit and debit
// writes exactly one movement row atomically with the balance change.
type Service struct {
	walletRepo repositories.WalletRepository
	currency   *currency.Service
	logger     *logger.Logger
}

// NewService creates a new ledger service.
func NewService(
	walletRepo repositories.WalletRepository,
	currencySvc *currency.Service,
	logger *logger.Logger,
) *Service {
	return &Service{
		walletRepo: walletRepo,
		currency:   currencySvc,
		logger:     logger,
	}
}

// GetBalance returns the balance of the owner's wallet in the given
// currency. A missing wallet reads as zero; absence is not an error.
func (s *Service) GetBalance(ctx context.Context, ownerID uuid.UUID, currencyCode string) (decimal.Decimal, error) {
	if !s.currency.Supports(currencyCode) {
		return decimal.Zero, domainerrors.UnknownCurrencyError(currencyCode)
	}

	wallet, err := s.walletRepo.GetByOwnerAndCurrency(ctx, ownerID, currencyCode)
	if err != nil {
		return decimal.Zero, domainerrors.Wrap(err, "get wallet")
	}
	if wallet == nil {
		return decimal.Zero, nil
	}
	return wallet.Balance, nil
}

// ListWallets returns all of the owner's wallets.
func (s *Service) ListWallets(ctx context.Context, ownerID uuid.UUID) ([]*entities.Wallet, error) {
	wallets, err := s.walletRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, domainerrors.Wrap(err, "list wallets")
	}
	return wallets, nil
}

// Credit adds amount to the referenced wallet, creating it with a zero
// balance first when absent, and appends one movement row.
func (s *Service) Credit(ctx context.Context, ref entities.WalletRef, amount decimal.Decimal, sourceKind entities.MovementSource, reference string, performedBy uuid.UUID) (*entities.Wallet, error) {
	if !amount.IsPositive() {
		return nil, domainerrors.InvalidInputError("credit amount must be positive")
	}
	if !s.currency.Supports(ref.Currency) {
		return nil, domainerrors.UnknownCurrencyError(ref.Currency)
	}

	movement := &entities.WalletMovement{
		ID:          uuid.New(),
		Amount:      amount,
		Direction:   entities.MovementCredit,
		SourceKind:  sourceKind,
		Reference:   reference,
		PerformedBy: performedBy,
		CreatedAt:   time.Now().UTC(),
	}

	wallet, err := s.walletRepo.Credit(ctx, ref, movement)
	if err != nil {
		return nil, domainerrors.Wrap(err, "credit wallet")
	}

	s.logger.Info("Wallet credited",
		"owner_id", ref.OwnerID.String(),
		"currency", ref.Currency,
		"amount", amount.String(),
		"source", string(sourceKind))

	return wallet, nil
}

// Debit removes amount from the referenced wallet and appends one
// movement row. It fails with ErrInsufficientFunds before any mutation
// when the balance cannot cover the amount; the store-level guarded
// update makes the check race-safe.
func (s *Service) Debit(ctx context.Context, ref entities.WalletRef, amount decimal.Decimal, sourceKind entities.MovementSource, reference string, performedBy uuid.UUID) (*entities.Wallet, error) {
	if !amount.IsPositive() {
		return nil, domainerrors.InvalidInputError("debit amount must be positive")
	}
	if !s.currency.Supports(ref.Currency) {
		return nil, domainerrors.UnknownCurrencyError(ref.Currency)
	}

	movement := &entities.WalletMovement{
		ID:          uuid.New(),
		Amount:      amount,
		Direction:   entities.MovementDebit,
		SourceKind:  sourceKind,
		Reference:   reference,
		PerformedBy: performedBy,
		CreatedAt:   time.Now().UTC(),
	}

	wallet, err := s.walletRepo.Debit(ctx, ref, movement)
	if err != nil {
		if domainerrors.IsInsufficientFunds(err) {
			return nil, err
		}
		return nil, domainerrors.Wrap(err, "debit wallet")
	}

	s.logger.Info("Wallet debited",
		"owner_id", ref.OwnerID.String(),
		"currency", ref.Currency,
		"amount", amount.String(),
		"source", string(sourceKind))

	return wallet, nil
}

// TotalAvailableUSD sums the USD equivalent of every wallet the owner
// holds, assessing purchasing power across currencies.
func (s *Service) TotalAvailableUSD(ctx context.Context, ownerID uuid.UUID) (decimal.Decimal, error) {
	wallets, err := s.walletRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		return decimal.Zero, domainerrors.Wrap(err, "list wallets")
	}

	total := decimal.Zero
	for _, w := range wallets {
		usd, err := s.currency.ToBase(w.Balance, w.Currency)
		if err != nil {
			// A wallet in a retired currency cannot contribute purchasing
			// power; skip it rather than fail the whole assessment.
			s.logger.Warn("Skipping wallet with unsupported currency",
				"wallet_id", w.ID.String(), "currency", w.Currency)
			continue
		}
		total = total.Add(usd)
	}
	return total, nil
}

// MovementHistory returns the movement log for the owner's wallet in the
// given currency, newest first.
func (s *Service) MovementHistory(ctx context.Context, ownerID uuid.UUID, currencyCode string, limit, offset int) ([]*entities.WalletMovement, error) {
	wallet, err := s.walletRepo.GetByOwnerAndCurrency(ctx, ownerID, currencyCode)
	if err != nil {
		return nil, domainerrors.Wrap(err, "get wallet")
	}
	if wallet == nil {
		return []*entities.WalletMovement{}, nil
	}

	movements, err := s.walletRepo.Movements(ctx, wallet.ID, limit, offset)
	if err != nil {
		return nil, domainerrors.Wrap(err, "list movements")
	}
	return movements, nil
}
