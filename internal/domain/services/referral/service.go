// Package referral credits a percentage bonus to an investor's referrer
// whenever a profit event is credited.
package referral

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vestra-platform/vestra_service/internal/domain/entities"
	domainerrors "github.com/vestra-platform/vestra_service/internal/domain/errors"
	"github.com/vestra-platform/vestra_service/internal/domain/repositories"
	"github.com/vestra-platform/vestra_service/internal/domain/services/ledger"
	"github.com/vestra-platform/vestra_service/pkg/logger"
)

// Notifier is the external notification dispatch collaborator.
type Notifier interface {
	Notify(ctx context.Context, ownerID uuid.UUID, n entities.Notification) error
}

// TierRates maps a plan tier to the referral bonus rate applied to the
// net profit amount. Injected versioned configuration.
type TierRates map[string]decimal.Decimal

// DefaultTierRates reflects the published referral schedule.
func DefaultTierRates() TierRates {
	return TierRates{
		"starter": decimal.NewFromFloat(0.03),
		"growth":  decimal.NewFromFloat(0.05),
		"pro":     decimal.NewFromFloat(0.07),
	}
}

// Service computes and credits referral bonuses.
type Service struct {
	ownerRepo       repositories.OwnerRepository
	planRepo        repositories.PlanRepository
	transactionRepo repositories.TransactionRepository
	ledger          *ledger.Service
	rates           TierRates
	notifier        Notifier
	logger          *logger.Logger
}

// NewService creates a new referral cascade service.
func NewService(
	ownerRepo repositories.OwnerRepository,
	planRepo repositories.PlanRepository,
	transactionRepo repositories.TransactionRepository,
	ledgerSvc *ledger.Service,
	rates TierRates,
	notifier Notifier,
	logger *logger.Logger,
) *Service {
	return &Service{
		ownerRepo:       ownerRepo,
		planRepo:        planRepo,
		transactionRepo: transactionRepo,
		ledger:          ledgerSvc,
		rates:           rates,
		notifier:        notifier,
		logger:          logger,
	}
}

// OnProfitCredited credits the referrer's USD wallet with the tier-rate
// share of the credited net amount. Silent no-op when the owner has no
// referrer, when the tier carries no rate, or when the bonus rounds to
// zero or below.
func (s *Service) OnProfitCredited(ctx context.Context, position *entities.InvestmentPosition, netAmount decimal.Decimal) error {
	owner, err := s.ownerRepo.GetByID(ctx, position.OwnerID)
	if err != nil {
		return domainerrors.Wrap(err, "get owner")
	}
	if owner == nil || owner.ReferrerID == nil {
		return nil
	}

	plan, err := s.planRepo.GetByID(ctx, position.PlanID)
	if err != nil {
		return domainerrors.Wrap(err, "get plan")
	}

	rate, ok := s.rates[plan.Tier]
	if !ok {
		return nil
	}

	bonus := netAmount.Mul(rate).Round(6)
	if !bonus.IsPositive() {
		return nil
	}

	referrerID := *owner.ReferrerID
	reference := fmt.Sprintf("%s:%s", entities.ReferenceReferralBonus, position.ID)

	ref := entities.WalletRef{OwnerID: referrerID, Currency: "USD"}
	if _, err := s.ledger.Credit(ctx, ref, bonus, entities.SourceReferralCredit, reference, position.OwnerID); err != nil {
		return domainerrors.Wrap(err, "credit referrer")
	}

	bonusTx := &entities.Transaction{
		ID:           uuid.New(),
		OwnerID:      referrerID,
		InvestmentID: &position.ID,
		Type:         entities.TransactionTransfer,
		Amount:       bonus,
		Currency:     "USD",
		Status:       entities.TransactionCompleted,
		Reference:    entities.ReferenceReferralBonus,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.transactionRepo.Create(ctx, bonusTx); err != nil {
		s.logger.Error("Failed to record referral transaction",
			"referrer_id", referrerID.String(), "position_id", position.ID.String(), "error", err)
	}

	if s.notifier != nil {
		n := entities.Notification{
			Type:    "referral_bonus",
			Title:   "Referral bonus credited",
			Message: fmt.Sprintf("You earned a %s USD referral bonus.", bonus.StringFixed(2)),
		}
		if err := s.notifier.Notify(ctx, referrerID, n); err != nil {
			s.logger.Warn("Referral notification failed", "referrer_id", referrerID.String(), "error", err)
		}
	}

	s.logger.Info("Referral bonus credited",
		"referrer_id", referrerID.String(),
		"position_id", position.ID.String(),
		"tier", plan.Tier,
		"bonus", bonus.String())

	return nil
}
