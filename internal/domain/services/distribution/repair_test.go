package distribution_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vestra-platform/vestra_service/internal/domain/entities"
	"github.com/vestra-platform/vestra_service/internal/domain/services/distribution"
)

// paidMarker plants a completed profit transaction near the period
// ending, the trace a pre-constraint payout left behind.
func paidMarker(f *fixture, position *entities.InvestmentPosition, periodEnding time.Time) {
	f.txRepo.transactions = append(f.txRepo.transactions, &entities.Transaction{
		ID:           uuid.New(),
		OwnerID:      position.OwnerID,
		InvestmentID: &position.ID,
		Type:         entities.TransactionProfit,
		Amount:       decimal.NewFromFloat(142.5),
		Currency:     "USD",
		Status:       entities.TransactionCompleted,
		Reference:    entities.ReferenceProfitPayout,
		CreatedAt:    periodEnding.Add(2 * time.Hour),
	})
}

func TestRepairReportsWithoutWriting(t *testing.T) {
	f := newFixture(feeCfg(5))
	plan := f.addPlan("starter", "starter", 90, 1.5, nil)
	start := time.Now().UTC().AddDate(0, 0, -14)
	ownerID := uuid.New()
	position := f.addPosition(ownerID, plan, decimal.NewFromInt(10000), start)

	paidMarker(f, position, start.AddDate(0, 0, 7))

	report, err := f.svc.RepairProfitLog(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Scanned)
	assert.Equal(t, 1, report.Backfilled)
	assert.Equal(t, 0, report.Conflicts)

	entries, _ := f.profitLogRepo.ListByInvestment(context.Background(), position.ID)
	assert.Empty(t, entries)
	assert.True(t, f.walletRepo.balance(ownerID, "USD").IsZero())
}

func TestRepairBackfillsPaidPeriods(t *testing.T) {
	f := newFixture(feeCfg(5))
	plan := f.addPlan("starter", "starter", 90, 1.5, nil)
	start := time.Now().UTC().AddDate(0, 0, -14)
	ownerID := uuid.New()
	position := f.addPosition(ownerID, plan, decimal.NewFromInt(10000), start)

	paidMarker(f, position, start.AddDate(0, 0, 7))

	report, err := f.svc.RepairProfitLog(context.Background(), true)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Backfilled)

	entries, _ := f.profitLogRepo.ListByInvestment(context.Background(), position.ID)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Amount.Equal(decimal.NewFromFloat(142.5)))

	// Backfill records history only, no money moves
	assert.True(t, f.walletRepo.balance(ownerID, "USD").IsZero())
	assert.Empty(t, f.walletRepo.movements)
}

func TestRepairSkipsLoggedPeriods(t *testing.T) {
	f := newFixture(feeCfg(5))
	plan := f.addPlan("starter", "starter", 90, 1.5, nil)
	start := time.Now().UTC().AddDate(0, 0, -7)
	ownerID := uuid.New()
	position := f.addPosition(ownerID, plan, decimal.NewFromInt(10000), start)

	// The period is already credited and logged by a regular cycle run
	wk := start.AddDate(0, 0, 7)
	_, err := f.svc.Run(context.Background(), distribution.Options{WeekEnding: &wk})
	require.NoError(t, err)

	report, err := f.svc.RepairProfitLog(context.Background(), true)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Scanned)
	assert.Equal(t, 0, report.Backfilled)

	entries, _ := f.profitLogRepo.ListByInvestment(context.Background(), position.ID)
	assert.Len(t, entries, 1)
}

func TestRepairIgnoresUnpaidPeriods(t *testing.T) {
	f := newFixture(feeCfg(5))
	plan := f.addPlan("starter", "starter", 90, 1.5, nil)
	start := time.Now().UTC().AddDate(0, 0, -21)
	f.addPosition(uuid.New(), plan, decimal.NewFromInt(10000), start)

	// No payout trace anywhere: repair must not invent history
	report, err := f.svc.RepairProfitLog(context.Background(), true)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Scanned)
	assert.Equal(t, 0, report.Backfilled)
	assert.Equal(t, 0, report.Conflicts)
}
