// Package repositories defines the persistence interfaces consumed by
// the domain services. Implementations live in
// internal/infrastructure/repositories; tests substitute in-memory fakes.
package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vestra-platform/vestra_service/internal/domain/entities"
)

// WalletRepository persists wallets and their append-only movement log.
//
// Credit and Debit apply the balance mutation and the movement insert as
// one atomic unit. Debit must enforce the non-negative balance invariant
// at the store level (guarded update), returning
// errors.ErrInsufficientFunds when the wallet cannot cover the amount.
type WalletRepository interface {
	// GetByOwnerAndCurrency returns nil, nil when the wallet does not
	// exist; absence is not an error.
	GetByOwnerAndCurrency(ctx context.Context, ownerID uuid.UUID, currency string) (*entities.Wallet, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*entities.Wallet, error)

	// Credit creates the wallet with a zero balance if absent, then
	// increments it and appends the movement.
	Credit(ctx context.Context, ref entities.WalletRef, movement *entities.WalletMovement) (*entities.Wallet, error)

	// Debit decrements the balance and appends the movement, failing the
	// whole operation when balance < amount.
	Debit(ctx context.Context, ref entities.WalletRef, movement *entities.WalletMovement) (*entities.Wallet, error)

	Movements(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]*entities.WalletMovement, error)
}

// PositionRepository persists investment positions.
type PositionRepository interface {
	Create(ctx context.Context, position *entities.InvestmentPosition) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.InvestmentPosition, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*entities.InvestmentPosition, error)
	ListActive(ctx context.Context) ([]*entities.InvestmentPosition, error)

	// UpdateStatus transitions a position only when it currently holds
	// the expected status, returning errors.ErrAlreadyProcessed when the
	// guard does not match.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to entities.PositionStatus) error

	// SumActivePrincipal recomputes total assets under management.
	SumActivePrincipal(ctx context.Context) (decimal.Decimal, error)
}

// PlanRepository reads the immutable plan catalog.
type PlanRepository interface {
	// Resolve matches by slug, then name, then id string.
	Resolve(ctx context.Context, identifier string) (*entities.Plan, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Plan, error)
	List(ctx context.Context) ([]*entities.Plan, error)
}

// ProfitLogRepository persists per-period payout records. Insert must be
// attempted with the store's (investment_id, period_ending) uniqueness
// guarantee and return errors.ErrAlreadyProcessed on violation; that
// return is the idempotency signal, not a failure.
type ProfitLogRepository interface {
	Insert(ctx context.Context, entry *entities.ProfitLogEntry) error
	Exists(ctx context.Context, investmentID uuid.UUID, periodEnding time.Time) (bool, error)
	ListByInvestment(ctx context.Context, investmentID uuid.UUID) ([]*entities.ProfitLogEntry, error)
}

// TransactionRepository persists user-facing statement rows.
type TransactionRepository interface {
	Create(ctx context.Context, tx *entities.Transaction) error
	ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*entities.Transaction, error)

	// HasPrincipalRelease reports whether a principal-release transfer
	// already exists for the position (maturity idempotency marker).
	HasPrincipalRelease(ctx context.Context, investmentID uuid.UUID) (bool, error)

	// HasProfitNear reports whether a completed PROFIT transaction exists
	// within the window around periodEnding. Used only by the one-shot
	// profit-log repair routine, never by the cycle itself.
	HasProfitNear(ctx context.Context, investmentID uuid.UUID, periodEnding time.Time, window time.Duration) (bool, error)
}

// ReserveRepository persists the singleton reserve buffer row.
type ReserveRepository interface {
	Get(ctx context.Context) (*entities.ReserveBuffer, error)

	// ApplyCycle sets total AUM and grows the buffer by profitDelta in
	// a single store statement.
	ApplyCycle(ctx context.Context, totalAUM, profitDelta decimal.Decimal) (*entities.ReserveBuffer, error)
}

// OwnerRepository reads the referral/KYC slice of the user record.
type OwnerRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Owner, error)
}

// PerformanceRepository reads the externally supplied revenue-stream
// ROI snapshots.
type PerformanceRepository interface {
	// LatestROI returns the most recent snapshot percentage for the
	// stream, with ok=false when no snapshot exists.
	LatestROI(ctx context.Context, streamName string) (decimal.Decimal, bool, error)
}
