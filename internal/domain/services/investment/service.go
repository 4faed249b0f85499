// Package investment implements the investment creation workflow:
// plan resolution, cross-currency funding of a position out of the
// owner's wallets, and compensating rollback when a step fails.
package investment

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vestra-platform/vestra_service/internal/domain/entities"
	domainerrors "github.com/vestra-platform/vestra_service/internal/domain/errors"
	"github.com/vestra-platform/vestra_service/internal/domain/repositories"
	"github.com/vestra-platform/vestra_service/internal/domain/services/currency"
	"github.com/vestra-platform/vestra_service/internal/domain/services/ledger"
	"github.com/vestra-platform/vestra_service/pkg/logger"
	"github.com/vestra-platform/vestra_service/pkg/metrics"
)

// DefaultPlanSlug is used when the caller does not name a plan.
const DefaultPlanSlug = "starter"

// Notifier is the external notification dispatch collaborator.
// Delivery is best-effort; callers swallow its errors.
type Notifier interface {
	Notify(ctx context.Context, ownerID uuid.UUID, n entities.Notification) error
}

// walletDebit records one completed debit so it can be compensated if a
// later step fails.
type walletDebit struct {
	ref          entities.WalletRef
	nativeAmount decimal.Decimal
	usdAmount    decimal.Decimal
}

// Service orchestrates investment creation.
type Service struct {
	planRepo        repositories.PlanRepository
	positionRepo    repositories.PositionRepository
	transactionRepo repositories.TransactionRepository
	ledger          *ledger.Service
	currency        *currency.Service
	notifier        Notifier
	logger          *logger.Logger
}

// NewService creates a new investment creation service.
func NewService(
	planRepo repositories.PlanRepository,
	positionRepo repositories.PositionRepository,
	transactionRepo repositories.TransactionRepository,
	ledgerSvc *ledger.Service,
	currencySvc *currency.Service,
	notifier Notifier,
	logger *logger.Logger,
) *Service {
	return &Service{
		planRepo:        planRepo,
		positionRepo:    positionRepo,
		transactionRepo: transactionRepo,
		ledger:          ledgerSvc,
		currency:        currencySvc,
		notifier:        notifier,
		logger:          logger,
	}
}

// Create runs the creation workflow. The result is ACTIVE when the
// position was funded, PENDING when the owner's purchasing power falls
// short (no wallet is mutated on that path). Validation errors reject
// before any lookup; storage failures after the first debit trigger a
// full compensating rollback before surfacing.
func (s *Service) Create(ctx context.Context, req *entities.CreateInvestmentRequest) (*entities.CreateInvestmentResult, error) {
	if req.OwnerID == uuid.Nil {
		return nil, domainerrors.InvalidInputError("owner id is required")
	}
	if !req.Amount.IsPositive() {
		return nil, domainerrors.InvalidInputError("amount must be positive")
	}

	plan, err := s.resolvePlan(ctx, req.PlanIdentifier)
	if err != nil {
		return nil, err
	}

	amountUSD, err := s.currency.ToBase(req.Amount, req.Currency)
	if err != nil {
		return nil, err
	}

	// Inclusive range: amounts exactly at min or max are valid.
	if amountUSD.LessThan(plan.MinAmount) || amountUSD.GreaterThan(plan.MaxAmount) {
		return nil, domainerrors.AmountOutOfRangeError(
			amountUSD.String(), plan.MinAmount.String(), plan.MaxAmount.String())
	}

	available, err := s.ledger.TotalAvailableUSD(ctx, req.OwnerID)
	if err != nil {
		return nil, domainerrors.Wrap(err, "assess purchasing power")
	}

	if available.LessThan(amountUSD) {
		return s.createPending(ctx, req.OwnerID, plan, amountUSD, available)
	}

	return s.createFunded(ctx, req, plan, amountUSD)
}

// resolvePlan matches the identifier against the catalog, falling back
// to the built-in default plan when no identifier was given.
func (s *Service) resolvePlan(ctx context.Context, identifier string) (*entities.Plan, error) {
	if identifier == "" {
		identifier = DefaultPlanSlug
	}
	plan, err := s.planRepo.Resolve(ctx, identifier)
	if err != nil {
		if domainerrors.IsNotFound(err) || domainerrors.IsPlanNotFound(err) {
			return nil, domainerrors.PlanNotFoundError(identifier)
		}
		return nil, domainerrors.Wrap(err, "resolve plan")
	}
	if plan == nil {
		return nil, domainerrors.PlanNotFoundError(identifier)
	}
	return plan, nil
}

// createPending records the intent without touching any wallet. This is
// a valid terminal outcome signaling the caller to top up funds.
func (s *Service) createPending(ctx context.Context, ownerID uuid.UUID, plan *entities.Plan, amountUSD, available decimal.Decimal) (*entities.CreateInvestmentResult, error) {
	now := time.Now().UTC()
	position := &entities.InvestmentPosition{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		PlanID:    plan.ID,
		Principal: amountUSD,
		Status:    entities.PositionPending,
		StartDate: now,
		CreatedAt: now,
	}

	if err := s.positionRepo.Create(ctx, position); err != nil {
		return nil, domainerrors.TransactionFailedError("create pending position", err)
	}

	fundingTx := &entities.Transaction{
		ID:           uuid.New(),
		OwnerID:      ownerID,
		InvestmentID: &position.ID,
		Type:         entities.TransactionTransfer,
		Amount:       amountUSD,
		Currency:     "USD",
		Status:       entities.TransactionPending,
		Reference:    entities.ReferenceInvestmentFunding,
		CreatedAt:    now,
	}
	if err := s.transactionRepo.Create(ctx, fundingTx); err != nil {
		// The pending position carries no funds; the missing statement
		// row is an audit gap, not a ledger inconsistency.
		s.logger.Error("Failed to record pending funding transaction",
			"position_id", position.ID.String(), "error", err)
	}

	metrics.InvestmentsCreatedTotal.WithLabelValues(string(entities.PositionPending)).Inc()
	s.logger.Info("Investment pending on insufficient funds",
		"owner_id", ownerID.String(),
		"plan", plan.Slug,
		"available_usd", available.String(),
		"requested_usd", amountUSD.String())

	return &entities.CreateInvestmentResult{
		Status:   entities.PositionPending,
		Position: position,
		Diagnostics: &entities.FundingDiagnostics{
			AvailableUSD: available,
			RequestedUSD: amountUSD,
		},
	}, nil
}

// createFunded debits the owner's wallets to cover the principal, then
// creates the active position. Each completed debit is pushed onto the
// compensation list; on failure the list is replayed in reverse as
// rollback credits.
func (s *Service) createFunded(ctx context.Context, req *entities.CreateInvestmentRequest, plan *entities.Plan, amountUSD decimal.Decimal) (*entities.CreateInvestmentResult, error) {
	positionID := uuid.New()
	reference := fmt.Sprintf("%s:%s", entities.ReferenceInvestmentFunding, positionID)

	debits, err := s.debitAcrossWallets(ctx, req, amountUSD, reference)
	if err != nil {
		s.rollback(ctx, req.OwnerID, debits, reference)
		return nil, err
	}

	now := time.Now().UTC()
	position := &entities.InvestmentPosition{
		ID:        positionID,
		OwnerID:   req.OwnerID,
		PlanID:    plan.ID,
		Principal: amountUSD,
		Status:    entities.PositionActive,
		StartDate: now,
		CreatedAt: now,
	}

	if err := s.positionRepo.Create(ctx, position); err != nil {
		s.rollback(ctx, req.OwnerID, debits, reference)
		return nil, domainerrors.TransactionFailedError("create position", err)
	}

	fundingTx := &entities.Transaction{
		ID:           uuid.New(),
		OwnerID:      req.OwnerID,
		InvestmentID: &position.ID,
		Type:         entities.TransactionTransfer,
		Amount:       amountUSD,
		Currency:     "USD",
		Status:       entities.TransactionCompleted,
		Reference:    entities.ReferenceInvestmentFunding,
		CreatedAt:    now,
	}
	if err := s.transactionRepo.Create(ctx, fundingTx); err != nil {
		// The position and debits are committed; the statement row is
		// reconcilable from the movement log.
		s.logger.Error("Failed to record funding transaction",
			"position_id", position.ID.String(), "error", err)
	}

	s.notify(ctx, req.OwnerID, entities.Notification{
		Type:    "investment_activated",
		Title:   "Investment activated",
		Message: fmt.Sprintf("Your %s plan investment of %s USD is now active.", plan.Name, amountUSD.StringFixed(2)),
	})

	metrics.InvestmentsCreatedTotal.WithLabelValues(string(entities.PositionActive)).Inc()
	s.logger.Info("Investment activated",
		"position_id", position.ID.String(),
		"owner_id", req.OwnerID.String(),
		"plan", plan.Slug,
		"principal_usd", amountUSD.String(),
		"wallets_debited", len(debits))

	return &entities.CreateInvestmentResult{
		Status:   entities.PositionActive,
		Position: position,
	}, nil
}

// debitAcrossWallets drains the owner's wallets in funding order until
// the USD-equivalent debited covers amountUSD. Returns the debits made
// so far even on failure so the caller can compensate.
func (s *Service) debitAcrossWallets(ctx context.Context, req *entities.CreateInvestmentRequest, amountUSD decimal.Decimal, reference string) ([]walletDebit, error) {
	wallets, err := s.ledger.ListWallets(ctx, req.OwnerID)
	if err != nil {
		return nil, domainerrors.TransactionFailedError("list wallets", err)
	}
	ordered := s.fundingOrder(wallets, req.Currency)

	var debits []walletDebit
	remaining := amountUSD

	for _, w := range ordered {
		if !remaining.IsPositive() {
			break
		}
		if !w.Balance.IsPositive() {
			continue
		}

		balanceUSD, err := s.currency.ToBase(w.Balance, w.Currency)
		if err != nil {
			continue
		}

		debitUSD := decimal.Min(remaining, balanceUSD)
		nativeAmount, err := s.currency.FromBase(debitUSD, w.Currency)
		if err != nil {
			continue
		}
		// Full drain: pin to the balance so conversion rounding can never
		// push the debit a hair above what the wallet holds.
		if debitUSD.Equal(balanceUSD) {
			nativeAmount = w.Balance
		}
		if !nativeAmount.IsPositive() {
			continue
		}

		ref := entities.WalletRef{OwnerID: req.OwnerID, Currency: w.Currency}
		if _, err := s.ledger.Debit(ctx, ref, nativeAmount, entities.SourceInvestmentFunding, reference, req.OwnerID); err != nil {
			if domainerrors.IsInsufficientFunds(err) {
				// A concurrent spend beat us to this wallet; funding can
				// still complete from the remaining ones.
				s.logger.Warn("Wallet balance changed during funding",
					"owner_id", req.OwnerID.String(), "currency", w.Currency)
				continue
			}
			return debits, domainerrors.TransactionFailedError("debit wallet", err)
		}

		debits = append(debits, walletDebit{ref: ref, nativeAmount: nativeAmount, usdAmount: debitUSD})
		remaining = remaining.Sub(debitUSD)
	}

	// Tolerate sub-cent conversion residue; anything larger means the
	// purchasing power moved between assessment and funding.
	if remaining.GreaterThan(decimal.NewFromFloat(0.000001)) {
		return debits, domainerrors.InsufficientFundsError(
			amountUSD.Sub(remaining).String(), amountUSD.String())
	}
	return debits, nil
}

// fundingOrder sorts wallets: request currency first, then USD, then the
// rest by descending USD-equivalent balance.
func (s *Service) fundingOrder(wallets []*entities.Wallet, requestCurrency string) []*entities.Wallet {
	ordered := make([]*entities.Wallet, len(wallets))
	copy(ordered, wallets)

	usdEquiv := func(w *entities.Wallet) decimal.Decimal {
		usd, err := s.currency.ToBase(w.Balance, w.Currency)
		if err != nil {
			return decimal.Zero
		}
		return usd
	}

	rank := func(w *entities.Wallet) int {
		switch w.Currency {
		case requestCurrency:
			return 0
		case "USD":
			return 1
		default:
			return 2
		}
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		ri, rj := rank(ordered[i]), rank(ordered[j])
		if ri != rj {
			return ri < rj
		}
		return usdEquiv(ordered[i]).GreaterThan(usdEquiv(ordered[j]))
	})
	return ordered
}

// rollback replays the recorded debits in reverse as rollback credits.
// A compensation failure is a data-integrity finding for out-of-band
// reconciliation; the remaining compensations still run.
func (s *Service) rollback(ctx context.Context, ownerID uuid.UUID, debits []walletDebit, reference string) {
	for i := len(debits) - 1; i >= 0; i-- {
		d := debits[i]
		if _, err := s.ledger.Credit(ctx, d.ref, d.nativeAmount, entities.SourceRollback, reference, ownerID); err != nil {
			s.logger.Error("Rollback credit failed, wallet needs reconciliation",
				"owner_id", ownerID.String(),
				"currency", d.ref.Currency,
				"amount", d.nativeAmount.String(),
				"reference", reference,
				"error", err)
		}
	}
	if len(debits) > 0 {
		s.logger.Warn("Investment funding rolled back",
			"owner_id", ownerID.String(),
			"wallets_compensated", len(debits),
			"reference", reference)
	}
}

// notify dispatches best-effort; failures never fail the workflow.
func (s *Service) notify(ctx context.Context, ownerID uuid.UUID, n entities.Notification) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, ownerID, n); err != nil {
		s.logger.Warn("Notification dispatch failed", "owner_id", ownerID.String(), "type", n.Type, "error", err)
	}
}

// ListPositions returns the owner's positions, newest first.
func (s *Service) ListPositions(ctx context.Context, ownerID uuid.UUID) ([]*entities.InvestmentPosition, error) {
	positions, err := s.positionRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, domainerrors.Wrap(err, "list positions")
	}
	return positions, nil
}

// GetPosition resolves a position by its id string.
func (s *Service) GetPosition(ctx context.Context, id string) (*entities.InvestmentPosition, error) {
	positionID, err := uuid.Parse(id)
	if err != nil {
		return nil, domainerrors.InvalidInputError("malformed position id")
	}
	return s.positionRepo.GetByID(ctx, positionID)
}
