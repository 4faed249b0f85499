// Package currency converts amounts between supported currencies and the
// USD base unit using an injected, versioned rate table. Conversions are
// pure and never touch the network.
package currency

import (
	"sort"

	"github.com/shopspring/decimal"

	domainerrors "github.com/vestra-platform/vestra_service/internal/domain/errors"
)

// RateTable maps a currency code to its USD value per unit
// (rate["EUR"] = 1.08 means 1 EUR = 1.08 USD).
type RateTable struct {
	Version string
	rates   map[string]decimal.Decimal
}

// NewRateTable builds a table from float rates, typically sourced from
// configuration. USD is always present at 1.0.
func NewRateTable(version string, rates map[string]float64) *RateTable {
	table := &RateTable{
		Version: version,
		rates:   make(map[string]decimal.Decimal, len(rates)+1),
	}
	for code, rate := range rates {
		table.rates[code] = decimal.NewFromFloat(rate)
	}
	table.rates["USD"] = decimal.NewFromInt(1)
	return table
}

// Service normalizes amounts to and from the USD base unit.
type Service struct {
	table *RateTable
}

// NewService creates a currency normalizer over the given rate table.
func NewService(table *RateTable) *Service {
	return &Service{table: table}
}

// ToBase converts an amount in the given currency to USD.
func (s *Service) ToBase(amount decimal.Decimal, currencyCode string) (decimal.Decimal, error) {
	rate, ok := s.table.rates[currencyCode]
	if !ok {
		return decimal.Zero, domainerrors.UnknownCurrencyError(currencyCode)
	}
	return amount.Mul(rate), nil
}

// FromBase converts a USD amount to the given currency.
func (s *Service) FromBase(usdAmount decimal.Decimal, currencyCode string) (decimal.Decimal, error) {
	rate, ok := s.table.rates[currencyCode]
	if !ok {
		return decimal.Zero, domainerrors.UnknownCurrencyError(currencyCode)
	}
	return usdAmount.DivRound(rate, 12), nil
}

// Supports reports whether the currency is in the rate table.
func (s *Service) Supports(currencyCode string) bool {
	_, ok := s.table.rates[currencyCode]
	return ok
}

// Supported returns the supported currency codes in sorted order.
func (s *Service) Supported() []string {
	codes := make([]string, 0, len(s.table.rates))
	for code := range s.table.rates {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Version returns the rate table version the service was built with.
func (s *Service) Version() string {
	return s.table.Version
}
