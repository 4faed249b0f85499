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
	domainerrors "github.com/vestra-platform/vestra_service/internal/domain/errors"
	"github.com/vestra-platform/vestra_service/internal/domain/services/currency"
	"github.com/vestra-platform/vestra_service/internal/domain/services/distribution"
	"github.com/vestra-platform/vestra_service/internal/domain/services/ledger"
	"github.com/vestra-platform/vestra_service/internal/domain/services/referral"
	"github.com/vestra-platform/vestra_service/internal/domain/services/reserve"
	"github.com/vestra-platform/vestra_service/pkg/logger"
)

type mockWalletRepo struct {
	wallets   map[string]*entities.Wallet
	movements []*entities.WalletMovement
}

func newMockWalletRepo() *mockWalletRepo {
	return &mockWalletRepo{wallets: make(map[string]*entities.Wallet)}
}

func walletKey(ownerID uuid.UUID, currency string) string {
	return ownerID.String() + ":" + currency
}

func (m *mockWalletRepo) balance(ownerID uuid.UUID, currency string) decimal.Decimal {
	if w, ok := m.wallets[walletKey(ownerID, currency)]; ok {
		return w.Balance
	}
	return decimal.Zero
}

func (m *mockWalletRepo) GetByOwnerAndCurrency(ctx context.Context, ownerID uuid.UUID, currency string) (*entities.Wallet, error) {
	return m.wallets[walletKey(ownerID, currency)], nil
}

func (m *mockWalletRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*entities.Wallet, error) {
	var result []*entities.Wallet
	for _, w := range m.wallets {
		if w.OwnerID == ownerID {
			result = append(result, w)
		}
	}
	return result, nil
}

func (m *mockWalletRepo) Credit(ctx context.Context, ref entities.WalletRef, movement *entities.WalletMovement) (*entities.Wallet, error) {
	w, ok := m.wallets[walletKey(ref.OwnerID, ref.Currency)]
	if !ok {
		w = &entities.Wallet{ID: uuid.New(), OwnerID: ref.OwnerID, Currency: ref.Currency, Balance: decimal.Zero}
		m.wallets[walletKey(ref.OwnerID, ref.Currency)] = w
	}
	w.Balance = w.Balance.Add(movement.Amount)
	movement.WalletID = w.ID
	m.movements = append(m.movements, movement)
	return w, nil
}

func (m *mockWalletRepo) Debit(ctx context.Context, ref entities.WalletRef, movement *entities.WalletMovement) (*entities.Wallet, error) {
	w, ok := m.wallets[walletKey(ref.OwnerID, ref.Currency)]
	if !ok || w.Balance.LessThan(movement.Amount) {
		return nil, domainerrors.ErrInsufficientFunds
	}
	w.Balance = w.Balance.Sub(movement.Amount)
	movement.WalletID = w.ID
	m.movements = append(m.movements, movement)
	return w, nil
}

func (m *mockWalletRepo) Movements(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]*entities.WalletMovement, error) {
	return nil, nil
}

type mockPositionRepo struct {
	positions []*entities.InvestmentPosition
}

func (m *mockPositionRepo) Create(ctx context.Context, p *entities.InvestmentPosition) error {
	m.positions = append(m.positions, p)
	return nil
}

func (m *mockPositionRepo) GetByID(ctx context.Context, id uuid.UUID) (*entities.InvestmentPosition, error) {
	for _, p := range m.positions {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, domainerrors.NotFoundError("position")
}

func (m *mockPositionRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*entities.InvestmentPosition, error) {
	return m.positions, nil
}

func (m *mockPositionRepo) ListActive(ctx context.Context) ([]*entities.InvestmentPosition, error) {
	var result []*entities.InvestmentPosition
	for _, p := range m.positions {
		if p.Status == entities.PositionActive {
			result = append(result, p)
		}
	}
	return result, nil
}

func (m *mockPositionRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to entities.PositionStatus) error {
	for _, p := range m.positions {
		if p.ID == id && p.Status == from {
			p.Status = to
			return nil
		}
	}
	return domainerrors.ErrAlreadyProcessed
}

func (m *mockPositionRepo) SumActivePrincipal(ctx context.Context) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, p := range m.positions {
		if p.Status == entities.PositionActive {
			total = total.Add(p.Principal)
		}
	}
	return total, nil
}

type mockPlanRepo struct {
	plans map[uuid.UUID]*entities.Plan
}

func (m *mockPlanRepo) Resolve(ctx context.Context, identifier string) (*entities.Plan, error) {
	for _, p := range m.plans {
		if p.Slug == identifier {
			return p, nil
		}
	}
	return nil, domainerrors.PlanNotFoundError(identifier)
}

func (m *mockPlanRepo) GetByID(ctx context.Context, id uuid.UUID) (*entities.Plan, error) {
	if p, ok := m.plans[id]; ok {
		return p, nil
	}
	return nil, domainerrors.PlanNotFoundError(id.String())
}

func (m *mockPlanRepo) List(ctx context.Context) ([]*entities.Plan, error) {
	var result []*entities.Plan
	for _, p := range m.plans {
		result = append(result, p)
	}
	return result, nil
}

type mockProfitLogRepo struct {
	entries map[string]*entities.ProfitLogEntry
}

func newMockProfitLogRepo() *mockProfitLogRepo {
	return &mockProfitLogRepo{entries: make(map[string]*entities.ProfitLogEntry)}
}

func entryKey(investmentID uuid.UUID, periodEnding time.Time) string {
	return investmentID.String() + ":" + periodEnding.UTC().Format("2006-01-02")
}

func (m *mockProfitLogRepo) Insert(ctx context.Context, entry *entities.ProfitLogEntry) error {
	k := entryKey(entry.InvestmentID, entry.PeriodEnding)
	if _, exists := m.entries[k]; exists {
		return domainerrors.ErrAlreadyProcessed
	}
	m.entries[k] = entry
	return nil
}

func (m *mockProfitLogRepo) Exists(ctx context.Context, investmentID uuid.UUID, periodEnding time.Time) (bool, error) {
	_, ok := m.entries[entryKey(investmentID, periodEnding)]
	return ok, nil
}

func (m *mockProfitLogRepo) ListByInvestment(ctx context.Context, investmentID uuid.UUID) ([]*entities.ProfitLogEntry, error) {
	var result []*entities.ProfitLogEntry
	for _, e := range m.entries {
		if e.InvestmentID == investmentID {
			result = append(result, e)
		}
	}
	return result, nil
}

type mockTransactionRepo struct {
	transactions []*entities.Transaction
}

func (m *mockTransactionRepo) Create(ctx context.Context, tx *entities.Transaction) error {
	m.transactions = append(m.transactions, tx)
	return nil
}

func (m *mockTransactionRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*entities.Transaction, error) {
	return m.transactions, nil
}

func (m *mockTransactionRepo) HasPrincipalRelease(ctx context.Context, investmentID uuid.UUID) (bool, error) {
	for _, tx := range m.transactions {
		if tx.InvestmentID != nil && *tx.InvestmentID == investmentID &&
			tx.Reference == entities.ReferencePrincipalRelease && tx.Status == entities.TransactionCompleted {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockTransactionRepo) HasProfitNear(ctx context.Context, investmentID uuid.UUID, periodEnding time.Time, window time.Duration) (bool, error) {
	for _, tx := range m.transactions {
		if tx.InvestmentID != nil && *tx.InvestmentID == investmentID &&
			tx.Type == entities.TransactionProfit && tx.Status == entities.TransactionCompleted &&
			!tx.CreatedAt.Before(periodEnding.Add(-window)) && !tx.CreatedAt.After(periodEnding.Add(window)) {
			return true, nil
		}
	}
	return false, nil
}

type mockOwnerRepo struct {
	owners map[uuid.UUID]*entities.Owner
}

func (m *mockOwnerRepo) GetByID(ctx context.Context, id uuid.UUID) (*entities.Owner, error) {
	if o, ok := m.owners[id]; ok {
		return o, nil
	}
	return nil, domainerrors.NotFoundError("owner")
}

type mockReserveRepo struct {
	buffer *entities.ReserveBuffer
}

func (m *mockReserveRepo) Get(ctx context.Context) (*entities.ReserveBuffer, error) {
	return m.buffer, nil
}

func (m *mockReserveRepo) ApplyCycle(ctx context.Context, totalAUM, profitDelta decimal.Decimal) (*entities.ReserveBuffer, error) {
	m.buffer.CurrentAmount = m.buffer.CurrentAmount.Add(profitDelta)
	m.buffer.TotalAUM = totalAUM
	m.buffer.UpdatedAt = time.Now().UTC()
	return m.buffer, nil
}

type stubROIFeed struct {
	rates map[string]decimal.Decimal
}

func (s *stubROIFeed) CurrentStreamROIPct(ctx context.Context, streamName string) (decimal.Decimal, error) {
	return s.rates[streamName], nil
}

type stubKYC struct {
	approved map[uuid.UUID]bool
}

func (s *stubKYC) IsApproved(ctx context.Context, ownerID uuid.UUID) (bool, error) {
	return s.approved[ownerID], nil
}

type stubLock struct {
	held bool
}

func (s *stubLock) TryLock(ctx context.Context) (func(), bool, error) {
	if s.held {
		return nil, false, nil
	}
	s.held = true
	return func() { s.held = false }, true, nil
}

type fixture struct {
	svc           *distribution.Service
	walletRepo    *mockWalletRepo
	positionRepo  *mockPositionRepo
	planRepo      *mockPlanRepo
	profitLogRepo *mockProfitLogRepo
	txRepo        *mockTransactionRepo
	ownerRepo     *mockOwnerRepo
	reserveRepo   *mockReserveRepo
	roiFeed       *stubROIFeed
	kyc           *stubKYC
	lock          *stubLock
	cfg           distribution.Config
}

func newFixture(cfg distribution.Config) *fixture {
	f := &fixture{
		walletRepo:    newMockWalletRepo(),
		positionRepo:  &mockPositionRepo{},
		planRepo:      &mockPlanRepo{plans: make(map[uuid.UUID]*entities.Plan)},
		profitLogRepo: newMockProfitLogRepo(),
		txRepo:        &mockTransactionRepo{},
		ownerRepo:     &mockOwnerRepo{owners: make(map[uuid.UUID]*entities.Owner)},
		reserveRepo:   &mockReserveRepo{buffer: &entities.ReserveBuffer{CurrentAmount: decimal.NewFromInt(100000)}},
		roiFeed:       &stubROIFeed{rates: make(map[string]decimal.Decimal)},
		kyc:           &stubKYC{approved: make(map[uuid.UUID]bool)},
		lock:          &stubLock{},
		cfg:           cfg,
	}

	log := logger.NewNop()
	table := currency.NewRateTable("test-v1", map[string]float64{"EUR": 1.08})
	currencySvc := currency.NewService(table)
	ledgerSvc := ledger.NewService(f.walletRepo, currencySvc, log)
	referralSvc := referral.NewService(f.ownerRepo, f.planRepo, f.txRepo, ledgerSvc, referral.DefaultTierRates(), nil, log)
	reserveSvc := reserve.NewService(f.reserveRepo, f.positionRepo, log)

	f.svc = distribution.NewService(
		f.positionRepo, f.planRepo, f.profitLogRepo, f.txRepo,
		ledgerSvc, referralSvc, reserveSvc,
		f.roiFeed, f.kyc, nil, f.lock, cfg, log)
	return f
}

func (f *fixture) addPlan(slug, tier string, durationDays int, weeklyPct float64, allocations map[string]decimal.Decimal) *entities.Plan {
	plan := &entities.Plan{
		ID:               uuid.New(),
		Slug:             slug,
		Name:             slug,
		Tier:             tier,
		MinAmount:        decimal.NewFromInt(100),
		MaxAmount:        decimal.NewFromInt(1000000),
		DurationDays:     durationDays,
		ReturnPercentage: decimal.NewFromFloat(weeklyPct),
		PayoutFrequency:  entities.PayoutWeekly,
		Allocations:      allocations,
	}
	f.planRepo.plans[plan.ID] = plan
	return plan
}

func (f *fixture) addPosition(ownerID uuid.UUID, plan *entities.Plan, principal decimal.Decimal, startDate time.Time) *entities.InvestmentPosition {
	position := &entities.InvestmentPosition{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		PlanID:    plan.ID,
		Principal: principal,
		Status:    entities.PositionActive,
		StartDate: startDate,
	}
	f.positionRepo.positions = append(f.positionRepo.positions, position)
	f.ownerRepo.owners[ownerID] = &entities.Owner{ID: ownerID, KYCStatus: entities.KYCStatusApproved}
	return position
}

func feeCfg(pct float64) distribution.Config {
	return distribution.Config{ServiceFeePct: decimal.NewFromFloat(pct)}
}

func weekEnding(start time.Time, weeks int) *time.Time {
	t := start.AddDate(0, 0, 7*weeks)
	return &t
}

func TestRunCreditsFlatWeeklyProfit(t *testing.T) {
	f := newFixture(feeCfg(5))
	plan := f.addPlan("starter", "starter", 90, 1.5, nil)
	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	ownerID := uuid.New()
	position := f.addPosition(ownerID, plan, decimal.NewFromInt(10000), start)

	result, err := f.svc.Run(context.Background(), distribution.Options{WeekEnding: weekEnding(start, 1)})
	require.NoError(t, err)

	// 10000 * 1.5% = 150 gross, 5% fee = 7.50, net 142.50
	expected := decimal.NewFromFloat(142.5)
	assert.Equal(t, 1, result.CreditedCount)
	assert.True(t, result.TotalProfit.Equal(expected), "total profit %s", result.TotalProfit)
	assert.True(t, f.walletRepo.balance(ownerID, "USD").Equal(expected))

	entries, _ := f.profitLogRepo.ListByInvestment(context.Background(), position.ID)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Amount.Equal(expected))
	assert.Nil(t, entries[0].WeightedPct)

	// Reserve grew by the credited profit, AUM re-derived
	assert.True(t, f.reserveRepo.buffer.TotalAUM.Equal(decimal.NewFromInt(10000)))
	assert.True(t, f.reserveRepo.buffer.CurrentAmount.Equal(decimal.NewFromInt(100000).Add(expected)))
	assert.True(t, result.TotalAUM.Equal(decimal.NewFromInt(10000)))
}

func TestRunSecondPassCreditsNothing(t *testing.T) {
	f := newFixture(feeCfg(5))
	plan := f.addPlan("starter", "starter", 90, 1.5, nil)
	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	ownerID := uuid.New()
	f.addPosition(ownerID, plan, decimal.NewFromInt(10000), start)

	opts := distribution.Options{WeekEnding: weekEnding(start, 1)}
	first, err := f.svc.Run(context.Background(), opts)
	require.NoError(t, err)
	require.Equal(t, 1, first.CreditedCount)

	second, err := f.svc.Run(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, 0, second.CreditedCount)
	assert.Equal(t, 1, second.SkippedCount)
	assert.True(t, second.TotalProfit.IsZero())
	assert.True(t, f.walletRepo.balance(ownerID, "USD").Equal(decimal.NewFromFloat(142.5)))
}

func TestRunCatchesUpMissedPeriods(t *testing.T) {
	f := newFixture(feeCfg(5))
	plan := f.addPlan("starter", "starter", 90, 1.5, nil)
	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	ownerID := uuid.New()
	position := f.addPosition(ownerID, plan, decimal.NewFromInt(10000), start)

	// Three elapsed weeks, none evaluated yet
	result, err := f.svc.Run(context.Background(), distribution.Options{WeekEnding: weekEnding(start, 3)})
	require.NoError(t, err)

	assert.Equal(t, 3, result.CreditedCount)
	assert.True(t, result.TotalProfit.Equal(decimal.NewFromFloat(427.5)))

	entries, _ := f.profitLogRepo.ListByInvestment(context.Background(), position.ID)
	assert.Len(t, entries, 3)
}

func TestRunStreamWeightedProfit(t *testing.T) {
	f := newFixture(feeCfg(5))
	allocations := map[string]decimal.Decimal{
		"trading": decimal.NewFromInt(60),
		"lending": decimal.NewFromInt(40),
	}
	plan := f.addPlan("pro", "pro", 365, 0, allocations)
	f.roiFeed.rates["trading"] = decimal.NewFromInt(2)
	f.roiFeed.rates["lending"] = decimal.NewFromInt(1)

	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	ownerID := uuid.New()
	position := f.addPosition(ownerID, plan, decimal.NewFromInt(10000), start)

	result, err := f.svc.Run(context.Background(), distribution.Options{WeekEnding: weekEnding(start, 1)})
	require.NoError(t, err)

	// weighted rate 0.6*2 + 0.4*1 = 1.6%; 10000 -> 160 gross, 8 fee, 152 net
	assert.Equal(t, 1, result.CreditedCount)
	assert.True(t, result.TotalProfit.Equal(decimal.NewFromInt(152)), "total profit %s", result.TotalProfit)

	entries, _ := f.profitLogRepo.ListByInvestment(context.Background(), position.ID)
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].WeightedPct)
	assert.True(t, entries[0].WeightedPct.Equal(decimal.NewFromFloat(1.6)))
	require.NotNil(t, entries[0].GrossProfit)
	assert.True(t, entries[0].GrossProfit.Equal(decimal.NewFromInt(160)))
	require.NotNil(t, entries[0].Fee)
	assert.True(t, entries[0].Fee.Equal(decimal.NewFromInt(8)))
}

func TestRunFlatPlanWithZeroRatePaysNothing(t *testing.T) {
	f := newFixture(feeCfg(5))
	plan := f.addPlan("flatzero", "pro", 90, 0, nil)
	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	f.addPosition(uuid.New(), plan, decimal.NewFromInt(10000), start)

	result, err := f.svc.Run(context.Background(), distribution.Options{WeekEnding: weekEnding(start, 2)})
	require.NoError(t, err)

	assert.Equal(t, 0, result.CreditedCount)
	assert.True(t, result.TotalProfit.IsZero())
	assert.Empty(t, f.walletRepo.movements)
}

func TestRunMaturityReleasesPrincipalOnce(t *testing.T) {
	f := newFixture(feeCfg(5))
	plan := f.addPlan("flatzero", "pro", 14, 0, nil)
	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	ownerID := uuid.New()
	position := f.addPosition(ownerID, plan, decimal.NewFromInt(2500), start)

	opts := distribution.Options{WeekEnding: weekEnding(start, 2)}
	result, err := f.svc.Run(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, 1, result.MaturedCount)
	assert.Equal(t, entities.PositionMatured, position.Status)
	assert.True(t, f.walletRepo.balance(ownerID, "USD").Equal(decimal.NewFromInt(2500)))

	released, _ := f.txRepo.HasPrincipalRelease(context.Background(), position.ID)
	assert.True(t, released)

	// Matured positions drop out of the active set, so the rerun is a no-op
	again, err := f.svc.Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 0, again.MaturedCount)
	assert.True(t, f.walletRepo.balance(ownerID, "USD").Equal(decimal.NewFromInt(2500)))
}

func TestRunMaturitySkipsWhenReleaseMarkerExists(t *testing.T) {
	f := newFixture(feeCfg(5))
	plan := f.addPlan("flatzero", "pro", 14, 0, nil)
	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	ownerID := uuid.New()
	position := f.addPosition(ownerID, plan, decimal.NewFromInt(2500), start)

	// A prior interrupted run released principal but never flipped status
	f.txRepo.transactions = append(f.txRepo.transactions, &entities.Transaction{
		ID:           uuid.New(),
		OwnerID:      ownerID,
		InvestmentID: &position.ID,
		Type:         entities.TransactionTransfer,
		Amount:       decimal.NewFromInt(2500),
		Currency:     "USD",
		Status:       entities.TransactionCompleted,
		Reference:    entities.ReferencePrincipalRelease,
	})

	result, err := f.svc.Run(context.Background(), distribution.Options{WeekEnding: weekEnding(start, 2)})
	require.NoError(t, err)

	assert.Equal(t, 0, result.MaturedCount)
	assert.True(t, f.walletRepo.balance(ownerID, "USD").IsZero())
}

func TestRunDryRunComputesWithoutMutation(t *testing.T) {
	f := newFixture(feeCfg(5))
	plan := f.addPlan("starter", "starter", 90, 1.5, nil)
	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	ownerID := uuid.New()
	position := f.addPosition(ownerID, plan, decimal.NewFromInt(10000), start)

	opts := distribution.Options{WeekEnding: weekEnding(start, 1)}
	dry, err := f.svc.Run(context.Background(), distribution.Options{DryRun: true, WeekEnding: opts.WeekEnding})
	require.NoError(t, err)

	assert.True(t, dry.DryRun)
	assert.Equal(t, 1, dry.CreditedCount)
	assert.True(t, dry.TotalAUM.Equal(decimal.NewFromInt(10000)))

	// Nothing moved
	assert.True(t, f.walletRepo.balance(ownerID, "USD").IsZero())
	assert.Empty(t, f.walletRepo.movements)
	entries, _ := f.profitLogRepo.ListByInvestment(context.Background(), position.ID)
	assert.Empty(t, entries)
	assert.True(t, f.reserveRepo.buffer.TotalAUM.IsZero())

	// The committed run reports the same arithmetic
	committed, err := f.svc.Run(context.Background(), opts)
	require.NoError(t, err)
	assert.True(t, dry.TotalProfit.Equal(committed.TotalProfit))
	assert.Equal(t, dry.CreditedCount, committed.CreditedCount)
}

func TestRunExcludesUnverifiedOwnersWhenKYCRequired(t *testing.T) {
	cfg := feeCfg(5)
	cfg.RequireKYC = true
	f := newFixture(cfg)
	plan := f.addPlan("starter", "starter", 90, 1.5, nil)
	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

	approvedOwner := uuid.New()
	pendingOwner := uuid.New()
	f.addPosition(approvedOwner, plan, decimal.NewFromInt(10000), start)
	f.addPosition(pendingOwner, plan, decimal.NewFromInt(10000), start)
	f.kyc.approved[approvedOwner] = true

	result, err := f.svc.Run(context.Background(), distribution.Options{WeekEnding: weekEnding(start, 1)})
	require.NoError(t, err)

	assert.Equal(t, 1, result.CreditedCount)
	assert.Equal(t, 1, result.SkippedCount)
	assert.True(t, f.walletRepo.balance(approvedOwner, "USD").Equal(decimal.NewFromFloat(142.5)))
	assert.True(t, f.walletRepo.balance(pendingOwner, "USD").IsZero())
}

func TestRunRefusedWhileLockHeld(t *testing.T) {
	f := newFixture(feeCfg(5))
	f.lock.held = true

	_, err := f.svc.Run(context.Background(), distribution.Options{})
	require.Error(t, err)
	assert.True(t, domainerrors.IsAlreadyProcessed(err))
	assert.Equal(t, "CYCLE_IN_PROGRESS", domainerrors.GetErrorCode(err))
}

func TestRunDryRunIgnoresLock(t *testing.T) {
	f := newFixture(feeCfg(5))
	f.lock.held = true

	result, err := f.svc.Run(context.Background(), distribution.Options{DryRun: true})
	require.NoError(t, err)
	assert.True(t, result.DryRun)
}

func TestRunCascadesReferralBonus(t *testing.T) {
	f := newFixture(feeCfg(5))
	plan := f.addPlan("pro", "pro", 365, 1, nil)
	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	ownerID := uuid.New()
	f.addPosition(ownerID, plan, decimal.NewFromInt(10000), start)

	referrerID := uuid.New()
	f.ownerRepo.owners[ownerID].ReferrerID = &referrerID

	result, err := f.svc.Run(context.Background(), distribution.Options{WeekEnding: weekEnding(start, 1)})
	require.NoError(t, err)

	// 10000 * 1% = 100 gross, 5 fee, 95 net; pro tier sends 7% of net
	net := decimal.NewFromInt(95)
	require.Equal(t, 1, result.CreditedCount)
	assert.True(t, f.walletRepo.balance(ownerID, "USD").Equal(net))
	assert.True(t, f.walletRepo.balance(referrerID, "USD").Equal(decimal.NewFromFloat(6.65)),
		"referrer balance %s", f.walletRepo.balance(referrerID, "USD"))
}

func TestRunIsolatesPerPositionFailures(t *testing.T) {
	f := newFixture(feeCfg(5))
	plan := f.addPlan("starter", "starter", 90, 1.5, nil)
	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

	healthyOwner := uuid.New()
	f.addPosition(healthyOwner, plan, decimal.NewFromInt(10000), start)

	// Position referencing a plan the catalog no longer serves
	orphanOwner := uuid.New()
	orphan := f.addPosition(orphanOwner, plan, decimal.NewFromInt(5000), start)
	orphan.PlanID = uuid.New()

	result, err := f.svc.Run(context.Background(), distribution.Options{WeekEnding: weekEnding(start, 1)})
	require.NoError(t, err)

	assert.Equal(t, 1, result.CreditedCount)
	assert.Equal(t, 1, result.FailedCount)
	assert.True(t, f.walletRepo.balance(healthyOwner, "USD").Equal(decimal.NewFromFloat(142.5)))
	assert.True(t, f.walletRepo.balance(orphanOwner, "USD").IsZero())
}
