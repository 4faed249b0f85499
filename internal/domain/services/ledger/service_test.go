package ledger_test

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
	"github.com/vestra-platform/vestra_service/internal/domain/services/ledger"
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
	key := walletKey(ref.OwnerID, ref.Currency)
	w, ok := m.wallets[key]
	if !ok {
		w = &entities.Wallet{
			ID:        uuid.New(),
			OwnerID:   ref.OwnerID,
			Currency:  ref.Currency,
			Balance:   decimal.Zero,
			CreatedAt: time.Now().UTC(),
		}
		m.wallets[key] = w
	}
	w.Balance = w.Balance.Add(movement.Amount)
	w.UpdatedAt = time.Now().UTC()
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
	w.UpdatedAt = time.Now().UTC()
	movement.WalletID = w.ID
	m.movements = append(m.movements, movement)
	return w, nil
}

func (m *mockWalletRepo) Movements(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]*entities.WalletMovement, error) {
	var result []*entities.WalletMovement
	for _, mv := range m.movements {
		if mv.WalletID == walletID {
			result = append(result, mv)
		}
	}
	return result, nil
}

func newTestLedger(repo *mockWalletRepo) *ledger.Service {
	table := currency.NewRateTable("test-v1", map[string]float64{"EUR": 1.08, "NGN": 0.00065})
	return ledger.NewService(repo, currency.NewService(table), logger.NewNop())
}

func TestCreditCreatesWalletAndMovement(t *testing.T) {
	repo := newMockWalletRepo()
	svc := newTestLedger(repo)
	ownerID := uuid.New()
	ref := entities.WalletRef{OwnerID: ownerID, Currency: "USD"}

	wallet, err := svc.Credit(context.Background(), ref, decimal.NewFromInt(500), entities.SourceDeposit, "dep-1", ownerID)
	require.NoError(t, err)
	assert.True(t, wallet.Balance.Equal(decimal.NewFromInt(500)))

	require.Len(t, repo.movements, 1)
	assert.Equal(t, entities.MovementCredit, repo.movements[0].Direction)
	assert.Equal(t, entities.SourceDeposit, repo.movements[0].SourceKind)
}

func TestDebitInsufficientFunds(t *testing.T) {
	repo := newMockWalletRepo()
	svc := newTestLedger(repo)
	ownerID := uuid.New()
	ref := entities.WalletRef{OwnerID: ownerID, Currency: "USD"}

	_, err := svc.Credit(context.Background(), ref, decimal.NewFromInt(100), entities.SourceDeposit, "dep-1", ownerID)
	require.NoError(t, err)

	_, err = svc.Debit(context.Background(), ref, decimal.NewFromInt(150), entities.SourceWithdrawal, "wd-1", ownerID)
	require.Error(t, err)
	assert.True(t, domainerrors.IsInsufficientFunds(err))

	// Balance untouched, no debit movement written
	balance, err := svc.GetBalance(context.Background(), ownerID, "USD")
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(100)))
	assert.Len(t, repo.movements, 1)
}

func TestNonPositiveAmountsRejected(t *testing.T) {
	svc := newTestLedger(newMockWalletRepo())
	ref := entities.WalletRef{OwnerID: uuid.New(), Currency: "USD"}

	_, err := svc.Credit(context.Background(), ref, decimal.Zero, entities.SourceDeposit, "", uuid.New())
	assert.True(t, domainerrors.IsInvalidInput(err))

	_, err = svc.Debit(context.Background(), ref, decimal.NewFromInt(-5), entities.SourceWithdrawal, "", uuid.New())
	assert.True(t, domainerrors.IsInvalidInput(err))
}

func TestGetBalanceMissingWalletReadsZero(t *testing.T) {
	svc := newTestLedger(newMockWalletRepo())

	balance, err := svc.GetBalance(context.Background(), uuid.New(), "EUR")
	require.NoError(t, err)
	assert.True(t, balance.IsZero())
}

func TestGetBalanceUnknownCurrency(t *testing.T) {
	svc := newTestLedger(newMockWalletRepo())

	_, err := svc.GetBalance(context.Background(), uuid.New(), "XAU")
	assert.True(t, domainerrors.IsUnknownCurrency(err))
}

func TestTotalAvailableUSDAcrossCurrencies(t *testing.T) {
	repo := newMockWalletRepo()
	svc := newTestLedger(repo)
	ownerID := uuid.New()
	ctx := context.Background()

	_, err := svc.Credit(ctx, entities.WalletRef{OwnerID: ownerID, Currency: "USD"}, decimal.NewFromInt(100), entities.SourceDeposit, "", ownerID)
	require.NoError(t, err)
	_, err = svc.Credit(ctx, entities.WalletRef{OwnerID: ownerID, Currency: "EUR"}, decimal.NewFromInt(200), entities.SourceDeposit, "", ownerID)
	require.NoError(t, err)

	total, err := svc.TotalAvailableUSD(ctx, ownerID)
	require.NoError(t, err)
	// 100 + 200 * 1.08
	assert.True(t, total.Equal(decimal.NewFromFloat(316)), "got %s", total)
}

func TestMovementHistoryMissingWalletIsEmpty(t *testing.T) {
	svc := newTestLedger(newMockWalletRepo())

	movements, err := svc.MovementHistory(context.Background(), uuid.New(), "USD", 50, 0)
	require.NoError(t, err)
	assert.Empty(t, movements)
}
