package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// DefaultCurrency is used when a request does not name one.
var DefaultCurrency = currency.USD

type Money struct {
	Amount   decimal.Decimal
	Currency currency.Unit
}

// NewMoney builds Money from a decimal string and an ISO 4217 code.
// An empty code falls back to DefaultCurrency.
func NewMoney(amount string, code string) (Money, error) {
	value, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("decimal.NewFromString: %w", err)
	}

	unit, err := ParseCurrency(code)
	if err != nil {
		return Money{}, err
	}

	return Money{Amount: value, Currency: unit}, nil
}

// MustMoney is NewMoney for literals; it panics on malformed input.
func MustMoney(amount string, code string) Money {
	m, err := NewMoney(amount, code)
	if err != nil {
		panic(err)
	}
	return m
}

// ParseCurrency parses an ISO 4217 code, defaulting to DefaultCurrency.
func ParseCurrency(code string) (currency.Unit, error) {
	if code == "" {
		return DefaultCurrency, nil
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return currency.Unit{}, fmt.Errorf("currency.ParseISO: %w", err)
	}
	return unit, nil
}

func (m Money) IsPositive() bool {
	return m.Amount.IsPositive()
}

// Equal compares amount numerically (20000 == 20000.00) and currency by code.
func (m Money) Equal(other Money) bool {
	return m.Amount.Equal(other.Amount) && m.Currency == other.Currency
}

func (m Money) String() string {
	return m.Currency.String() + " " + m.Amount.StringFixed(2)
}

// HasCurrency is false for a Money built without a currency.
func (m Money) HasCurrency() bool {
	return m.Currency != currency.Unit{}
}

// OrCurrency fills in unit when m carries no currency of its own.
func (m Money) OrCurrency(unit currency.Unit) Money {
	if !m.HasCurrency() {
		m.Currency = unit
	}
	return m
}
