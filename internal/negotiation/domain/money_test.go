package domain

import (
	"testing"

	"golang.org/x/text/currency"
)

func TestNewMoney(t *testing.T) {
	m, err := NewMoney("20000", "")
	if err != nil {
		t.Fatalf("new money: %v", err)
	}
	if m.Currency != currency.USD || m.String() != "USD 20000.00" {
		t.Fatalf("unexpected money %s", m)
	}

	if _, err := NewMoney("twenty", "USD"); err == nil {
		t.Fatal("expected malformed amount to fail")
	}
	if _, err := NewMoney("1", "XYZW"); err == nil {
		t.Fatal("expected malformed currency to fail")
	}
}

func TestMoneyEqualIgnoresScale(t *testing.T) {
	if !MustMoney("20000", "EUR").Equal(MustMoney("20000.00", "EUR")) {
		t.Fatal("expected equal amounts")
	}
	if MustMoney("20000", "EUR").Equal(MustMoney("20000", "USD")) {
		t.Fatal("different currencies must differ")
	}
}
