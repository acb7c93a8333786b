// Package types provides common value types used across topup.
package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// DefaultCurrency is the currency used when none is configured.
const DefaultCurrency = "cup"

// Money is an amount in the smallest unit of its currency (centavos for
// CUP). Arithmetic is integer-only.
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"` // ISO 4217, lowercase
}

type currencyInfo struct {
	symbol   string // prefix used by String
	decimals int
}

var currencies = map[string]currencyInfo{
	"cup": {symbol: "CUP ", decimals: 2},
	"mlc": {symbol: "MLC ", decimals: 2},
	"usd": {symbol: "$", decimals: 2},
	"eur": {symbol: "€", decimals: 2},
	"jpy": {symbol: "¥", decimals: 0},
}

func lookup(currency string) currencyInfo {
	if info, ok := currencies[currency]; ok {
		return info
	}
	return currencyInfo{symbol: strings.ToUpper(currency) + " ", decimals: 2}
}

// New creates a Money value in the given currency.
func New(amount int64, currency string) Money {
	return Money{Amount: amount, Currency: strings.ToLower(currency)}
}

// CUP creates a Money value in Cuban pesos.
func CUP(centavos int64) Money { return Money{Amount: centavos, Currency: "cup"} }

// USD creates a Money value in US dollars.
func USD(cents int64) Money { return Money{Amount: cents, Currency: "usd"} }

// EUR creates a Money value in euros.
func EUR(cents int64) Money { return Money{Amount: cents, Currency: "eur"} }

// Zero returns zero in the given currency.
func Zero(currency string) Money { return New(0, currency) }

// ErrInvalidAmount is returned by ParseMajor for malformed input.
var ErrInvalidAmount = errors.New("money: invalid amount")

// ParseMajor parses an operator-entered amount in major units ("250",
// "250.5", "1,250.50") into Money. Spaces and thousands separators are
// ignored; more decimals than the currency allows are rejected.
func ParseMajor(s, currency string) (Money, error) {
	currency = strings.ToLower(currency)
	decimals := lookup(currency).decimals

	clean := strings.NewReplacer(" ", "", ",", "").Replace(strings.TrimSpace(s))
	neg := strings.HasPrefix(clean, "-")
	clean = strings.TrimPrefix(clean, "-")

	whole, frac, hasFrac := strings.Cut(clean, ".")
	if whole == "" || (hasFrac && (frac == "" || len(frac) > decimals)) {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	frac += strings.Repeat("0", decimals-len(frac))

	amount, err := strconv.ParseInt(whole+frac, 10, 64)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if neg {
		amount = -amount
	}
	return Money{Amount: amount, Currency: currency}, nil
}

// Add returns m + other. It panics on a currency mismatch.
func (m Money) Add(other Money) Money {
	m.mustMatch(other)
	m.Amount += other.Amount
	return m
}

// Subtract returns m - other. It panics on a currency mismatch.
func (m Money) Subtract(other Money) Money {
	m.mustMatch(other)
	m.Amount -= other.Amount
	return m
}

func (m Money) IsZero() bool     { return m.Amount == 0 }
func (m Money) IsPositive() bool { return m.Amount > 0 }
func (m Money) IsNegative() bool { return m.Amount < 0 }

// Equal compares amount and currency.
func (m Money) Equal(other Money) bool { return m == other }

// LessThan panics on a currency mismatch.
func (m Money) LessThan(other Money) bool {
	m.mustMatch(other)
	return m.Amount < other.Amount
}

// GreaterThan panics on a currency mismatch.
func (m Money) GreaterThan(other Money) bool {
	m.mustMatch(other)
	return m.Amount > other.Amount
}

// FormatMajor formats the amount in major units without a symbol,
// e.g. "10.00" for CUP(1000).
func (m Money) FormatMajor() string {
	decimals := lookup(m.Currency).decimals

	sign, abs := "", m.Amount
	if abs < 0 {
		sign, abs = "-", -abs
	}
	if decimals == 0 {
		return sign + strconv.FormatInt(abs, 10)
	}

	unit := int64(1)
	for range decimals {
		unit *= 10
	}
	return fmt.Sprintf("%s%d.%0*d", sign, abs/unit, decimals, abs%unit)
}

// String formats the amount with its currency, e.g. "CUP 10.00" or "$49.00".
func (m Money) String() string {
	return lookup(m.Currency).symbol + m.FormatMajor()
}

type moneyJSON struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Display  string `json:"display,omitempty"`
}

// MarshalJSON adds a display field for notification templates.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(moneyJSON{Amount: m.Amount, Currency: m.Currency, Display: m.String()})
}

// UnmarshalJSON ignores the display field.
func (m *Money) UnmarshalJSON(data []byte) error {
	var v moneyJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*m = New(v.Amount, v.Currency)
	return nil
}

func (m Money) mustMatch(other Money) {
	if m.Currency != other.Currency {
		panic(fmt.Sprintf("money: currency mismatch: %s != %s", m.Currency, other.Currency))
	}
}
