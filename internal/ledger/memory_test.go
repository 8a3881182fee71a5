package ledger_test

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"TermPool/internal/fixedpoint"
	"TermPool/internal/ledger"
)

// ============================================================================
// Test: AssetID
// ============================================================================

func TestAssetID_String(t *testing.T) {
	if got := ledger.ShortID(1_767_225_600).String(); got != "short:1767225600" {
		t.Errorf("got %q, want %q", got, "short:1767225600")
	}
	if got := ledger.LongID(86_400).String(); got != "long:86400" {
		t.Errorf("got %q, want %q", got, "long:86400")
	}
}

func TestAssetID_DistinctByKindAndMaturity(t *testing.T) {
	if ledger.LongID(100) == ledger.ShortID(100) {
		t.Error("long and short of same maturity must differ")
	}
	if ledger.ShortID(100) == ledger.ShortID(200) {
		t.Error("different maturities must differ")
	}
}

// ============================================================================
// Test: Memory ledger
// ============================================================================

func TestMemory_MintAndBalance(t *testing.T) {
	m := ledger.NewMemory()
	owner := uuid.New()
	id := ledger.ShortID(1_000)

	if err := m.Mint(id, owner, fixedpoint.Scaled(500)); err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if got := m.BalanceOf(id, owner); !got.Eq(fixedpoint.Scaled(500)) {
		t.Errorf("balance: got %s, want 500", got)
	}
	if got := m.TotalSupply(id); !got.Eq(fixedpoint.Scaled(500)) {
		t.Errorf("supply: got %s, want 500", got)
	}
}

func TestMemory_BurnReducesSupply(t *testing.T) {
	m := ledger.NewMemory()
	owner := uuid.New()
	id := ledger.LongID(1_000)

	if err := m.Mint(id, owner, fixedpoint.Scaled(500)); err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if err := m.Burn(id, owner, fixedpoint.Scaled(200)); err != nil {
		t.Fatalf("Burn: %v", err)
	}
	if got := m.BalanceOf(id, owner); !got.Eq(fixedpoint.Scaled(300)) {
		t.Errorf("balance: got %s, want 300", got)
	}
	if got := m.TotalSupply(id); !got.Eq(fixedpoint.Scaled(300)) {
		t.Errorf("supply: got %s, want 300", got)
	}
}

func TestMemory_BurnInsufficient(t *testing.T) {
	m := ledger.NewMemory()
	owner := uuid.New()
	id := ledger.ShortID(1_000)

	err := m.Burn(id, owner, fixedpoint.Scaled(1))
	if !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Errorf("expected ErrInsufficientBalance, got %v", err)
	}

	// A failed burn must not touch balances.
	if !m.BalanceOf(id, owner).IsZero() {
		t.Error("balance changed on failed burn")
	}
}

func TestMemory_BalancesIsolatedByOwnerAndAsset(t *testing.T) {
	m := ledger.NewMemory()
	alice, bob := uuid.New(), uuid.New()
	short := ledger.ShortID(1_000)
	long := ledger.LongID(1_000)

	if err := m.Mint(short, alice, fixedpoint.Scaled(100)); err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if !m.BalanceOf(short, bob).IsZero() {
		t.Error("bob should hold nothing")
	}
	if !m.BalanceOf(long, alice).IsZero() {
		t.Error("alice should hold no longs")
	}
}
