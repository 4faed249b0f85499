package currency_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/vestra-platform/vestra_service/internal/domain/errors"
	"github.com/vestra-platform/vestra_service/internal/domain/services/currency"
)

func newTestService() *currency.Service {
	table := currency.NewRateTable("test-v1", map[string]float64{
		"EUR": 1.08,
		"GBP": 1.27,
		"NGN": 0.00065,
	})
	return currency.NewService(table)
}

func TestToBaseUSDIsIdentity(t *testing.T) {
	svc := newTestService()

	amount := decimal.NewFromFloat(1234.56)
	usd, err := svc.ToBase(amount, "USD")
	require.NoError(t, err)
	assert.True(t, usd.Equal(amount))
}

func TestToBaseAppliesRate(t *testing.T) {
	svc := newTestService()

	usd, err := svc.ToBase(decimal.NewFromInt(100), "EUR")
	require.NoError(t, err)
	assert.True(t, usd.Equal(decimal.NewFromFloat(108)), "got %s", usd)
}

func TestFromBaseRoundTrip(t *testing.T) {
	svc := newTestService()

	original := decimal.NewFromFloat(250)
	usd, err := svc.ToBase(original, "GBP")
	require.NoError(t, err)

	back, err := svc.FromBase(usd, "GBP")
	require.NoError(t, err)

	diff := back.Sub(original).Abs()
	assert.True(t, diff.LessThan(decimal.NewFromFloat(0.000001)), "round trip drifted by %s", diff)
}

func TestUnknownCurrencyRejected(t *testing.T) {
	svc := newTestService()

	_, err := svc.ToBase(decimal.NewFromInt(10), "XAU")
	require.Error(t, err)
	assert.True(t, domainerrors.IsUnknownCurrency(err))

	_, err = svc.FromBase(decimal.NewFromInt(10), "XAU")
	require.Error(t, err)
	assert.True(t, domainerrors.IsUnknownCurrency(err))

	assert.False(t, svc.Supports("XAU"))
}

func TestSupportedListsCodesSorted(t *testing.T) {
	svc := newTestService()

	codes := svc.Supported()
	assert.Equal(t, []string{"EUR", "GBP", "NGN", "USD"}, codes)
	assert.Equal(t, "test-v1", svc.Version())
}
