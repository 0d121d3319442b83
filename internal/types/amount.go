package types

import (
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// Currencies the provider charges in whole units (no minor unit).
var zeroDecimalCurrencies = []string{
	"bif", "clp", "djf", "gnf", "jpy", "kmf", "krw", "mga",
	"pyg", "rwf", "ugx", "vnd", "vuv", "xaf", "xof", "xpf",
}

// DefaultCurrency is used when the provider omits the currency
const DefaultCurrency = "usd"

func IsZeroDecimalCurrency(currency string) bool {
	return lo.Contains(zeroDecimalCurrencies, strings.ToLower(currency))
}

func currencyExponent(currency string) int32 {
	if IsZeroDecimalCurrency(currency) {
		return 0
	}
	return 2
}

// AmountFromMinorUnits converts a provider integer amount (e.g. cents) into a
// major-unit decimal. 1099 usd becomes exactly 10.99.
func AmountFromMinorUnits(amount int64, currency string) decimal.Decimal {
	return decimal.New(amount, -currencyExponent(currency))
}

// AmountToMinorUnits is the inverse of AmountFromMinorUnits. Fractions below
// the currency's minor unit are rounded half away from zero.
func AmountToMinorUnits(amount decimal.Decimal, currency string) int64 {
	exp := currencyExponent(currency)
	return amount.Round(exp).Shift(exp).IntPart()
}

// NormalizeCurrency lower-cases a currency code and applies the default
func NormalizeCurrency(currency string) string {
	currency = strings.ToLower(strings.TrimSpace(currency))
	if currency == "" {
		return DefaultCurrency
	}
	return currency
}
