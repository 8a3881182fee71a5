package fees_test

import (
	"testing"

	"TermPool/internal/fees"
	"TermPool/internal/fixedpoint"
)

func testConfig() fees.Config {
	return fees.Config{
		Curve:      fixedpoint.MustFromDec("0.10"),
		Flat:       fixedpoint.MustFromDec("0.01"),
		Governance: fixedpoint.MustFromDec("0.15"),
	}
}

// ============================================================================
// Test: Config validation
// ============================================================================

func TestConfigValidate(t *testing.T) {
	if err := testConfig().Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}

	bad := testConfig()
	bad.Curve = fixedpoint.MustFromDec("1.5")
	if err := bad.Validate(); err == nil {
		t.Error("curve fraction above one should be rejected")
	}
}

// ============================================================================
// Test: Open fees
// ============================================================================

func TestOpenShortCurveFee(t *testing.T) {
	a := fees.NewAssessor(testConfig())
	// φ=0.10, p=0.95, Δy=1000: fee = 0.10 * 0.05 * 1000 = 5 bonds.
	got := a.OpenShortCurveFee(fixedpoint.Scaled(1_000), fixedpoint.MustFromDec("0.95"))
	if !got.Eq(fixedpoint.Scaled(5)) {
		t.Errorf("got %s, want 5", got)
	}
}

func TestOpenShortGovernanceFee(t *testing.T) {
	a := fees.NewAssessor(testConfig())
	// 15% of the 5-bond curve fee.
	got := a.OpenShortGovernanceFee(fixedpoint.Scaled(1_000), fixedpoint.MustFromDec("0.95"))
	if !got.Eq(fixedpoint.MustFromDec("0.75")) {
		t.Errorf("got %s, want 0.75", got)
	}
}

func TestOpenLongCurveFee(t *testing.T) {
	a := fees.NewAssessor(testConfig())
	// φ=0.10, p=0.8, Δx=1000: fee = 0.10 * (1.25 - 1) * 1000 = 25 bonds.
	got := a.OpenLongCurveFee(fixedpoint.Scaled(1_000), fixedpoint.MustFromDec("0.8"))
	if !got.Eq(fixedpoint.Scaled(25)) {
		t.Errorf("got %s, want 25", got)
	}
}

func TestOpenFees_ZeroAtParity(t *testing.T) {
	a := fees.NewAssessor(testConfig())
	if !a.OpenShortCurveFee(fixedpoint.Scaled(1_000), fixedpoint.One()).IsZero() {
		t.Error("short curve fee should vanish at spot price one")
	}
	if !a.OpenLongCurveFee(fixedpoint.Scaled(1_000), fixedpoint.One()).IsZero() {
		t.Error("long curve fee should vanish at spot price one")
	}
}

// ============================================================================
// Test: Close fees
// ============================================================================

func TestCloseFees_FullTimeRemaining(t *testing.T) {
	a := fees.NewAssessor(testConfig())
	s := a.CloseFees(
		fixedpoint.Scaled(1_000),
		fixedpoint.One(),
		fixedpoint.MustFromDec("0.95"),
		fixedpoint.One(),
	)
	// All curve, no flat: 0.10 * 0.05 * 1000 = 5 shares.
	if !s.Curve.Eq(fixedpoint.Scaled(5)) {
		t.Errorf("curve: got %s, want 5", s.Curve)
	}
	if !s.Flat.IsZero() {
		t.Errorf("flat: got %s, want 0", s.Flat)
	}
}

func TestCloseFees_AtMaturity(t *testing.T) {
	a := fees.NewAssessor(testConfig())
	s := a.CloseFees(
		fixedpoint.Scaled(1_000),
		fixedpoint.Zero(),
		fixedpoint.MustFromDec("0.95"),
		fixedpoint.One(),
	)
	// All flat, no curve: 0.01 * 1000 = 10 shares.
	if !s.Curve.IsZero() {
		t.Errorf("curve: got %s, want 0", s.Curve)
	}
	if !s.Flat.Eq(fixedpoint.Scaled(10)) {
		t.Errorf("flat: got %s, want 10", s.Flat)
	}
}

func TestCloseFees_SharePriceDenominates(t *testing.T) {
	a := fees.NewAssessor(testConfig())
	s := a.CloseFees(
		fixedpoint.Scaled(1_000),
		fixedpoint.Zero(),
		fixedpoint.MustFromDec("0.95"),
		fixedpoint.Scaled(2),
	)
	// Flat fee halves when the share price doubles.
	if !s.Flat.Eq(fixedpoint.Scaled(5)) {
		t.Errorf("flat: got %s, want 5", s.Flat)
	}
}

func TestGovernanceNeverExceedsTotal(t *testing.T) {
	a := fees.NewAssessor(testConfig())
	for _, tr := range []string{"0", "0.25", "0.5", "0.75", "1"} {
		s := a.CloseFees(
			fixedpoint.Scaled(12_345),
			fixedpoint.MustFromDec(tr),
			fixedpoint.MustFromDec("0.93"),
			fixedpoint.MustFromDec("1.07"),
		)
		if s.Governance.Gt(s.Total()) {
			t.Errorf("t=%s: governance %s exceeds total %s", tr, s.Governance, s.Total())
		}
	}
}
