package vault_test

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"TermPool/internal/fixedpoint"
	"TermPool/internal/vault"
)

func TestAccruing_DepositAtPrice(t *testing.T) {
	v := vault.NewAccruing(fixedpoint.MustFromDec("1.25"))
	shares, err := v.Deposit(fixedpoint.Scaled(125))
	if err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	if !shares.Eq(fixedpoint.Scaled(100)) {
		t.Errorf("shares: got %s, want 100", shares)
	}
	if !v.SharesHeld().Eq(fixedpoint.Scaled(100)) {
		t.Errorf("held: got %s, want 100", v.SharesHeld())
	}
}

func TestAccruing_WithdrawAfterAccrual(t *testing.T) {
	v := vault.NewAccruing(fixedpoint.One())
	if _, err := v.Deposit(fixedpoint.Scaled(100)); err != nil {
		t.Fatalf("Deposit: %v", err)
	}

	v.Accrue(fixedpoint.MustFromDec("1.10"))
	base, err := v.Withdraw(fixedpoint.Scaled(100), uuid.New())
	if err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	if !base.Eq(fixedpoint.Scaled(110)) {
		t.Errorf("base: got %s, want 110", base)
	}
	if !v.SharesHeld().IsZero() {
		t.Errorf("held: got %s, want 0", v.SharesHeld())
	}
}

func TestAccruing_WithdrawInsufficient(t *testing.T) {
	v := vault.NewAccruing(fixedpoint.One())
	_, err := v.Withdraw(fixedpoint.Scaled(1), uuid.New())
	if !errors.Is(err, vault.ErrInsufficientShares) {
		t.Errorf("expected ErrInsufficientShares, got %v", err)
	}
}

func TestAccruing_PriceCompounds(t *testing.T) {
	v := vault.NewAccruing(fixedpoint.One())
	v.Accrue(fixedpoint.MustFromDec("1.10"))
	v.Accrue(fixedpoint.MustFromDec("1.10"))
	want := fixedpoint.MustFromDec("1.21")
	if !v.SharePrice().Eq(want) {
		t.Errorf("price: got %s, want %s", v.SharePrice(), want)
	}
}
