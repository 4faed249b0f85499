// Package distribution implements the batch profit-distribution cycle:
// periodic ROI crediting for active positions (flat and revenue-stream
// weighted), principal release at maturity, and the reserve/AUM update
// that follows a committed run.
package distribution

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
	"github.com/vestra-platform/vestra_service/internal/domain/services/referral"
	"github.com/vestra-platform/vestra_service/internal/domain/services/reserve"
	"github.com/vestra-platform/vestra_service/pkg/logger"
	"github.com/vestra-platform/vestra_service/pkg/metrics"
	"github.com/vestra-platform/vestra_service/pkg/tracing"
)

const payoutPeriodDays = 7

// Notifier is the external notification dispatch collaborator.
type Notifier interface {
	Notify(ctx context.Context, ownerID uuid.UUID, n entities.Notification) error
}

// KYCProvider reports whether an owner has passed verification. Consulted
// only when the require-KYC policy flag is set.
type KYCProvider interface {
	IsApproved(ctx context.Context, ownerID uuid.UUID) (bool, error)
}

// StreamROIProvider serves the latest ROI percentage for a revenue
// stream; unknown streams contribute zero.
type StreamROIProvider interface {
	CurrentStreamROIPct(ctx context.Context, streamName string) (decimal.Decimal, error)
}

// RunLock prevents two scheduled cycle runs from overlapping. It is an
// optimization only; the profit-log uniqueness constraint remains the
// authoritative double-credit guard.
type RunLock interface {
	TryLock(ctx context.Context) (release func(), ok bool, err error)
}

// Config carries the cycle policy knobs.
type Config struct {
	ServiceFeePct decimal.Decimal
	RequireKYC    bool
}

// Options selects the behavior of a single run.
type Options struct {
	// DryRun computes every amount without writing any mutation.
	DryRun bool
	// WeekEnding overrides the evaluation instant (defaults to now).
	WeekEnding *time.Time
}

// Result aggregates a cycle run.
type Result struct {
	TotalProfit   decimal.Decimal `json:"total_profit"`
	TotalAUM      decimal.Decimal `json:"total_aum"`
	CreditedCount int             `json:"credited_count"`
	MaturedCount  int             `json:"matured_count"`
	SkippedCount  int             `json:"skipped_count"`
	FailedCount   int             `json:"failed_count"`
	DryRun        bool            `json:"dry_run"`
}

// Service runs the distribution cycle.
type Service struct {
	positionRepo    repositories.PositionRepository
	planRepo        repositories.PlanRepository
	profitLogRepo   repositories.ProfitLogRepository
	transactionRepo repositories.TransactionRepository
	ledger          *ledger.Service
	referral        *referral.Service
	reserve         *reserve.Service
	roiFeed         StreamROIProvider
	kyc             KYCProvider
	notifier        Notifier
	lock            RunLock
	cfg             Config
	logger          *logger.Logger
}

// NewService creates a new distribution cycle service. lock, kyc and
// notifier may be nil.
func NewService(
	positionRepo repositories.PositionRepository,
	planRepo repositories.PlanRepository,
	profitLogRepo repositories.ProfitLogRepository,
	transactionRepo repositories.TransactionRepository,
	ledgerSvc *ledger.Service,
	referralSvc *referral.Service,
	reserveSvc *reserve.Service,
	roiFeed StreamROIProvider,
	kyc KYCProvider,
	notifier Notifier,
	lock RunLock,
	cfg Config,
	logger *logger.Logger,
) *Service {
	return &Service{
		positionRepo:    positionRepo,
		planRepo:        planRepo,
		profitLogRepo:   profitLogRepo,
		transactionRepo: transactionRepo,
		ledger:          ledgerSvc,
		referral:        referralSvc,
		reserve:         reserveSvc,
		roiFeed:         roiFeed,
		kyc:             kyc,
		notifier:        notifier,
		lock:            lock,
		cfg:             cfg,
		logger:          logger,
	}
}

// Run executes one cycle pass over all active positions. Positions are
// processed sequentially; a failure on one is logged and counted, never
// aborting the batch. Interrupting between positions is safe: every
// position's mutation set is idempotent on a retried run.
func (s *Service) Run(ctx context.Context, opts Options) (*Result, error) {
	ctx, span := tracing.GetTracer("distribution").Start(ctx, "distribution.Run")
	defer span.End()

	started := time.Now()
	now := started.UTC()
	if opts.WeekEnding != nil {
		now = opts.WeekEnding.UTC()
	}

	if !opts.DryRun && s.lock != nil {
		release, ok, err := s.lock.TryLock(ctx)
		if err != nil {
			// Lock backend outage: proceed, the unique constraint still
			// protects against double-crediting.
			s.logger.Warn("Cycle lock unavailable, continuing unlocked", "error", err)
		} else if !ok {
			return nil, &domainerrors.DomainError{
				Err:     domainerrors.ErrAlreadyProcessed,
				Code:    "CYCLE_IN_PROGRESS",
				Message: "another distribution cycle run holds the lock",
			}
		} else {
			defer release()
		}
	}

	positions, err := s.positionRepo.ListActive(ctx)
	if err != nil {
		metrics.DistributionCycleRuns.WithLabelValues("error", fmt.Sprint(opts.DryRun)).Inc()
		return nil, domainerrors.Wrap(err, "list active positions")
	}

	result := &Result{TotalProfit: decimal.Zero, TotalAUM: decimal.Zero, DryRun: opts.DryRun}
	plans := make(map[uuid.UUID]*entities.Plan)

	for _, position := range positions {
		plan, err := s.planForPosition(ctx, plans, position)
		if err != nil {
			s.logger.Error("Skipping position with unresolvable plan",
				"position_id", position.ID.String(), "plan_id", position.PlanID.String(), "error", err)
			result.FailedCount++
			continue
		}

		if skip, err := s.kycExcluded(ctx, position.OwnerID); err != nil {
			s.logger.Error("KYC lookup failed", "position_id", position.ID.String(), "step", "kyc_check", "error", err)
			result.FailedCount++
			continue
		} else if skip {
			s.logger.Info("Position excluded from cycle pending verification",
				"position_id", position.ID.String(), "owner_id", position.OwnerID.String())
			result.SkippedCount++
			continue
		}

		s.processProfit(ctx, position, plan, now, opts.DryRun, result)

		// Maturity runs after the periodic-profit check for the same
		// position in the same pass.
		s.processMaturity(ctx, position, plan, now, opts.DryRun, result)
	}

	if opts.DryRun {
		totalAUM, err := s.positionRepo.SumActivePrincipal(ctx)
		if err != nil {
			return nil, domainerrors.Wrap(err, "sum active principal")
		}
		result.TotalAUM = totalAUM
	} else {
		buffer, err := s.reserve.ApplyCycle(ctx, result.TotalProfit)
		if err != nil {
			// Credits are committed; the accounting pair is behind until
			// the next successful run. Surface rather than hide.
			metrics.DistributionCycleRuns.WithLabelValues("error", "false").Inc()
			return result, domainerrors.Wrap(err, "reserve accounting")
		}
		result.TotalAUM = buffer.TotalAUM

		profitFloat, _ := result.TotalProfit.Float64()
		metrics.ProfitCreditedUSD.Add(profitFloat)
	}

	metrics.DistributionCycleRuns.WithLabelValues("ok", fmt.Sprint(opts.DryRun)).Inc()
	metrics.DistributionCycleDuration.Observe(time.Since(started).Seconds())

	s.logger.Info("Distribution cycle completed",
		"dry_run", opts.DryRun,
		"positions", len(positions),
		"credited", result.CreditedCount,
		"matured", result.MaturedCount,
		"skipped", result.SkippedCount,
		"failed", result.FailedCount,
		"total_profit", result.TotalProfit.String(),
		"total_aum", result.TotalAUM.String(),
		"duration", time.Since(started).String())

	return result, nil
}

func (s *Service) planForPosition(ctx context.Context, cache map[uuid.UUID]*entities.Plan, position *entities.InvestmentPosition) (*entities.Plan, error) {
	if plan, ok := cache[position.PlanID]; ok {
		return plan, nil
	}
	plan, err := s.planRepo.GetByID(ctx, position.PlanID)
	if err != nil {
		return nil, err
	}
	cache[position.PlanID] = plan
	return plan, nil
}

func (s *Service) kycExcluded(ctx context.Context, ownerID uuid.UUID) (bool, error) {
	if !s.cfg.RequireKYC || s.kyc == nil {
		return false, nil
	}
	approved, err := s.kyc.IsApproved(ctx, ownerID)
	if err != nil {
		return false, err
	}
	return !approved, nil
}

// periodProfit is the arithmetic shared byte-for-byte by the dry-run and
// committing paths.
type periodProfit struct {
	periodEnding time.Time
	weightedPct  *decimal.Decimal
	gross        decimal.Decimal
	fee          decimal.Decimal
	net          decimal.Decimal
}

// duePeriods enumerates the elapsed, not-yet-evaluated payout periods of
// a position as of now.
func duePeriods(position *entities.InvestmentPosition, plan *entities.Plan, now time.Time) []time.Time {
	totalPeriods := plan.DurationDays / payoutPeriodDays
	var due []time.Time
	for i := 1; i <= totalPeriods; i++ {
		periodEnding := position.StartDate.AddDate(0, 0, payoutPeriodDays*i)
		if now.Before(periodEnding) {
			break
		}
		due = append(due, periodEnding)
	}
	return due
}

// computeProfit produces the per-period amounts for a position. For
// stream-weighted plans the rate is the allocation-weighted sum of the
// latest stream ROI snapshots; otherwise the plan's flat weekly rate.
func (s *Service) computeProfit(ctx context.Context, position *entities.InvestmentPosition, plan *entities.Plan, periodEnding time.Time) (*periodProfit, error) {
	hundred := decimal.NewFromInt(100)
	var ratePct decimal.Decimal
	var weightedPct *decimal.Decimal

	if plan.IsStreamWeighted() {
		sum := decimal.Zero
		for stream, allocation := range plan.Allocations {
			roi, err := s.roiFeed.CurrentStreamROIPct(ctx, stream)
			if err != nil {
				return nil, domainerrors.Wrap(err, "stream roi")
			}
			sum = sum.Add(allocation.Div(hundred).Mul(roi))
		}
		ratePct = sum
		weightedPct = &sum
	} else {
		if plan.PayoutFrequency != entities.PayoutWeekly || !plan.ReturnPercentage.IsPositive() {
			return nil, nil
		}
		ratePct = plan.ReturnPercentage
	}

	gross := position.Principal.Mul(ratePct.Div(hundred))
	fee := gross.Mul(s.cfg.ServiceFeePct.Div(hundred))
	net := gross.Sub(fee)

	return &periodProfit{
		periodEnding: periodEnding,
		weightedPct:  weightedPct,
		gross:        gross,
		fee:          fee,
		net:          net,
	}, nil
}

// processProfit credits every elapsed unpaid period of the position.
func (s *Service) processProfit(ctx context.Context, position *entities.InvestmentPosition, plan *entities.Plan, now time.Time, dryRun bool, result *Result) {
	for _, periodEnding := range duePeriods(position, plan, now) {
		paid, err := s.profitLogRepo.Exists(ctx, position.ID, periodEnding)
		if err != nil {
			s.logger.Error("Profit log lookup failed",
				"position_id", position.ID.String(), "step", "idempotency_check", "error", err)
			result.FailedCount++
			continue
		}
		if paid {
			result.SkippedCount++
			continue
		}

		profit, err := s.computeProfit(ctx, position, plan, periodEnding)
		if err != nil {
			s.logger.Error("Profit computation failed",
				"position_id", position.ID.String(), "step", "compute", "error", err)
			result.FailedCount++
			continue
		}
		if profit == nil || !profit.net.IsPositive() {
			continue
		}

		if dryRun {
			result.TotalProfit = result.TotalProfit.Add(profit.net)
			result.CreditedCount++
			continue
		}

		if err := s.creditProfit(ctx, position, plan, profit); err != nil {
			if domainerrors.IsAlreadyProcessed(err) {
				result.SkippedCount++
				continue
			}
			s.logger.Error("Profit credit failed",
				"position_id", position.ID.String(), "period_ending", profit.periodEnding, "error", err)
			result.FailedCount++
			continue
		}

		result.TotalProfit = result.TotalProfit.Add(profit.net)
		result.CreditedCount++
		metrics.ProfitCreditsTotal.Inc()
	}
}

// creditProfit commits one period's payout. The profit-log insert runs
// first: its (investment_id, period_ending) uniqueness is the only
// double-credit guard that holds under concurrent runs, so it acts as
// the reservation. A wallet-credit failure after the insert is a
// data-integrity finding reconciled out of band, deliberately not
// retried within the pass.
func (s *Service) creditProfit(ctx context.Context, position *entities.InvestmentPosition, plan *entities.Plan, profit *periodProfit) error {
	entry := &entities.ProfitLogEntry{
		ID:           uuid.New(),
		InvestmentID: position.ID,
		Amount:       profit.net,
		PeriodEnding: profit.periodEnding,
		CreatedAt:    time.Now().UTC(),
	}
	if profit.weightedPct != nil {
		entry.WeightedPct = profit.weightedPct
		gross := profit.gross
		fee := profit.fee
		entry.GrossProfit = &gross
		entry.Fee = &fee
	}

	if err := s.profitLogRepo.Insert(ctx, entry); err != nil {
		return err
	}

	reference := fmt.Sprintf("%s:%s:%s", entities.ReferenceProfitPayout, position.ID, profit.periodEnding.Format("2006-01-02"))
	ref := entities.WalletRef{OwnerID: position.OwnerID, Currency: "USD"}
	if _, err := s.ledger.Credit(ctx, ref, profit.net, entities.SourceProfitCredit, reference, position.OwnerID); err != nil {
		s.logger.Error("Profit logged but wallet credit failed, reconciliation required",
			"position_id", position.ID.String(),
			"period_ending", profit.periodEnding,
			"amount", profit.net.String(),
			"error", err)
		return domainerrors.Wrap(domainerrors.ErrDataIntegrity, err.Error())
	}

	profitTx := &entities.Transaction{
		ID:           uuid.New(),
		OwnerID:      position.OwnerID,
		InvestmentID: &position.ID,
		Type:         entities.TransactionProfit,
		Amount:       profit.net,
		Currency:     "USD",
		Status:       entities.TransactionCompleted,
		Reference:    entities.ReferenceProfitPayout,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.transactionRepo.Create(ctx, profitTx); err != nil {
		s.logger.Error("Failed to record profit transaction",
			"position_id", position.ID.String(), "error", err)
	}

	s.notify(ctx, position.OwnerID, entities.Notification{
		Type:    "profit_credited",
		Title:   "Weekly profit credited",
		Message: fmt.Sprintf("%s USD profit was credited to your wallet.", profit.net.StringFixed(2)),
	})

	if s.referral != nil {
		if err := s.referral.OnProfitCredited(ctx, position, profit.net); err != nil {
			s.logger.Error("Referral cascade failed",
				"position_id", position.ID.String(), "error", err)
		}
	}

	return nil
}

// processMaturity releases principal and closes the position once its
// term has elapsed. The principal-release transaction is the idempotency
// marker; the guarded status transition backstops it.
func (s *Service) processMaturity(ctx context.Context, position *entities.InvestmentPosition, plan *entities.Plan, now time.Time, dryRun bool, result *Result) {
	if now.Before(position.MaturesAt(plan)) {
		return
	}

	released, err := s.transactionRepo.HasPrincipalRelease(ctx, position.ID)
	if err != nil {
		s.logger.Error("Principal release lookup failed",
			"position_id", position.ID.String(), "step", "maturity_check", "error", err)
		result.FailedCount++
		return
	}
	if released {
		return
	}

	if dryRun {
		result.MaturedCount++
		return
	}

	reference := fmt.Sprintf("%s:%s", entities.ReferencePrincipalRelease, position.ID)
	ref := entities.WalletRef{OwnerID: position.OwnerID, Currency: "USD"}
	if _, err := s.ledger.Credit(ctx, ref, position.Principal, entities.SourcePrincipalReturn, reference, position.OwnerID); err != nil {
		s.logger.Error("Principal release credit failed",
			"position_id", position.ID.String(), "step", "principal_credit", "error", err)
		result.FailedCount++
		return
	}

	releaseTx := &entities.Transaction{
		ID:           uuid.New(),
		OwnerID:      position.OwnerID,
		InvestmentID: &position.ID,
		Type:         entities.TransactionTransfer,
		Amount:       position.Principal,
		Currency:     "USD",
		Status:       entities.TransactionCompleted,
		Reference:    entities.ReferencePrincipalRelease,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.transactionRepo.Create(ctx, releaseTx); err != nil {
		// Without the marker a rerun would re-credit; this is the one
		// statement write that must be surfaced loudly.
		s.logger.Error("Principal released but marker transaction failed, reconciliation required",
			"position_id", position.ID.String(), "error", err)
		result.FailedCount++
		return
	}

	if err := s.positionRepo.UpdateStatus(ctx, position.ID, entities.PositionActive, entities.PositionMatured); err != nil {
		if !domainerrors.IsAlreadyProcessed(err) {
			s.logger.Error("Position status transition failed",
				"position_id", position.ID.String(), "step", "mature", "error", err)
			result.FailedCount++
			return
		}
	}

	s.notify(ctx, position.OwnerID, entities.Notification{
		Type:    "principal_released",
		Title:   "Investment matured",
		Message: fmt.Sprintf("Your principal of %s USD has been returned to your wallet.", position.Principal.StringFixed(2)),
	})

	result.MaturedCount++
	metrics.PositionsMaturedTotal.Inc()
	s.logger.Info("Position matured",
		"position_id", position.ID.String(),
		"owner_id", position.OwnerID.String(),
		"principal", position.Principal.String())
}

func (s *Service) notify(ctx context.Context, ownerID uuid.UUID, n entities.Notification) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, ownerID, n); err != nil {
		s.logger.Warn("Notification dispatch failed", "owner_id", ownerID.String(), "type", n.Type, "error", err)
	}
}
