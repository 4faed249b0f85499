package distribution

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vestra-platform/vestra_service/internal/domain/entities"
	domainerrors "github.com/vestra-platform/vestra_service/internal/domain/errors"
)

// repairWindow is the tolerance used when matching legacy payout
// transactions to their calendar period.
const repairWindow = 3 * 24 * time.Hour

// RepairReport summarizes a backfill pass.
type RepairReport struct {
	Scanned    int `json:"scanned"`
	Backfilled int `json:"backfilled"`
	Conflicts  int `json:"conflicts"`
}

// RepairProfitLog backfills profit-log entries for periods that were paid
// before the uniqueness constraint existed, inferring payment from a
// profit transaction within repairWindow of the period ending. It is an
// operator-invoked one-shot tool, never part of the scheduled cycle, and
// never writes money movements. Without apply it only reports.
func (s *Service) RepairProfitLog(ctx context.Context, apply bool) (*RepairReport, error) {
	now := time.Now().UTC()
	positions, err := s.positionRepo.ListActive(ctx)
	if err != nil {
		return nil, domainerrors.Wrap(err, "list active positions")
	}

	report := &RepairReport{}
	for _, position := range positions {
		plan, err := s.planRepo.GetByID(ctx, position.PlanID)
		if err != nil {
			s.logger.Error("Repair skipping position with unresolvable plan",
				"position_id", position.ID.String(), "error", err)
			continue
		}

		for _, periodEnding := range duePeriods(position, plan, now) {
			report.Scanned++

			logged, err := s.profitLogRepo.Exists(ctx, position.ID, periodEnding)
			if err != nil {
				return report, domainerrors.Wrap(err, "profit log lookup")
			}
			if logged {
				continue
			}

			paid, err := s.transactionRepo.HasProfitNear(ctx, position.ID, periodEnding, repairWindow)
			if err != nil {
				return report, domainerrors.Wrap(err, "transaction lookup")
			}
			if !paid {
				continue
			}

			profit, err := s.computeProfit(ctx, position, plan, periodEnding)
			if err != nil || profit == nil {
				s.logger.Warn("Repair cannot reconstruct period amount",
					"position_id", position.ID.String(), "period_ending", periodEnding, "error", err)
				report.Conflicts++
				continue
			}

			s.logger.Info("Repair found unlogged paid period",
				"position_id", position.ID.String(),
				"period_ending", periodEnding,
				"amount", profit.net.String(),
				"apply", apply)

			if !apply {
				report.Backfilled++
				continue
			}

			entry := backfillEntry(position.ID, profit)
			if err := s.profitLogRepo.Insert(ctx, entry); err != nil {
				if domainerrors.IsAlreadyProcessed(err) {
					continue
				}
				return report, domainerrors.Wrap(err, "backfill insert")
			}
			report.Backfilled++
		}
	}

	s.logger.Info("Profit log repair finished",
		"scanned", report.Scanned,
		"backfilled", report.Backfilled,
		"conflicts", report.Conflicts,
		"apply", apply)
	return report, nil
}

func backfillEntry(investmentID uuid.UUID, profit *periodProfit) *entities.ProfitLogEntry {
	entry := &entities.ProfitLogEntry{
		ID:           uuid.New(),
		InvestmentID: investmentID,
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
	return entry
}
