package fixedpoint_test

import (
	"math/big"
	"testing"

	"TermPool/internal/fixedpoint"
)

func assertClose(t *testing.T, got, want fixedpoint.FixedPoint, tolRaw int64) {
	t.Helper()
	diff := new(big.Int).Sub(got.Raw(), want.Raw())
	diff.Abs(diff)
	if diff.Cmp(big.NewInt(tolRaw)) > 0 {
		t.Errorf("got %s, want %s (raw diff %s exceeds %d)", got, want, diff, tolRaw)
	}
}

// ============================================================================
// Test: Parsing and rendering
// ============================================================================

func TestFromDec_Basic(t *testing.T) {
	f, err := fixedpoint.FromDec("1.05")
	if err != nil {
		t.Fatalf("FromDec: %v", err)
	}
	want := big.NewInt(1_050_000_000_000_000_000)
	if f.Raw().Cmp(want) != 0 {
		t.Errorf("got %s, want %s", f.Raw(), want)
	}
}

func TestFromDec_Integer(t *testing.T) {
	f := fixedpoint.MustFromDec("1000000")
	if f.String() != "1000000" {
		t.Errorf("got %q, want %q", f.String(), "1000000")
	}
}

func TestFromDec_TooManyPlaces(t *testing.T) {
	if _, err := fixedpoint.FromDec("0.1234567890123456789"); err == nil {
		t.Error("expected error for 19 decimal places")
	}
}

func TestFromDec_Malformed(t *testing.T) {
	for _, s := range []string{"", "abc", "-1", "1.2.3"} {
		if _, err := fixedpoint.FromDec(s); err == nil {
			t.Errorf("expected error for %q", s)
		}
	}
}

func TestString_TrimsTrailingZeros(t *testing.T) {
	f := fixedpoint.MustFromDec("2.500000")
	if f.String() != "2.5" {
		t.Errorf("got %q, want %q", f.String(), "2.5")
	}
}

// ============================================================================
// Test: Checked arithmetic and rounding direction
// ============================================================================

func TestSub_UnderflowPanics(t *testing.T) {
	defer func() {
		r := recover()
		if _, ok := r.(*fixedpoint.ArithmeticError); !ok {
			t.Errorf("expected *ArithmeticError, got %v", r)
		}
	}()
	fixedpoint.Scaled(1).Sub(fixedpoint.Scaled(2))
}

func TestAdd_OverflowPanics(t *testing.T) {
	maxU256 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	huge := fixedpoint.FromRaw(maxU256)
	defer func() {
		r := recover()
		if _, ok := r.(*fixedpoint.ArithmeticError); !ok {
			t.Errorf("expected *ArithmeticError, got %v", r)
		}
	}()
	huge.Add(fixedpoint.One())
}

func TestDivByZeroPanics(t *testing.T) {
	defer func() {
		r := recover()
		if _, ok := r.(*fixedpoint.ArithmeticError); !ok {
			t.Errorf("expected *ArithmeticError, got %v", r)
		}
	}()
	fixedpoint.One().DivDown(fixedpoint.Zero())
}

func TestDivRoundingDirection(t *testing.T) {
	// 1 / 3 is non-terminating, so up and down must differ by one raw unit.
	a := fixedpoint.Scaled(1)
	b := fixedpoint.Scaled(3)
	down := a.DivDown(b)
	up := a.DivUp(b)
	diff := new(big.Int).Sub(up.Raw(), down.Raw())
	if diff.Cmp(big.NewInt(1)) != 0 {
		t.Errorf("up - down = %s, want 1", diff)
	}
}

func TestDivRoundingExact(t *testing.T) {
	// 6 / 3 is exact, so up and down must agree.
	a := fixedpoint.Scaled(6)
	b := fixedpoint.Scaled(3)
	if !a.DivDown(b).Eq(a.DivUp(b)) {
		t.Error("exact division should not round")
	}
	if !a.DivDown(b).Eq(fixedpoint.Scaled(2)) {
		t.Errorf("6/3 = %s, want 2", a.DivDown(b))
	}
}

func TestMulRoundingDirection(t *testing.T) {
	a := fixedpoint.FromUint64(1) // 1e-18
	b := fixedpoint.MustFromDec("0.5")
	if !a.MulDown(b).IsZero() {
		t.Error("mulDown(1e-18, 0.5) should round to zero")
	}
	if a.MulUp(b).Raw().Cmp(big.NewInt(1)) != 0 {
		t.Error("mulUp(1e-18, 0.5) should round to one raw unit")
	}
}

func TestMulDivDown(t *testing.T) {
	// 2.5 * 3 / 4 = 1.875 exactly.
	got := fixedpoint.MustFromDec("2.5").MulDivDown(fixedpoint.Scaled(3), fixedpoint.Scaled(4))
	if !got.Eq(fixedpoint.MustFromDec("1.875")) {
		t.Errorf("got %s, want 1.875", got)
	}
}

func TestMinMax(t *testing.T) {
	a := fixedpoint.Scaled(1)
	b := fixedpoint.Scaled(2)
	if !fixedpoint.Min(a, b).Eq(a) {
		t.Error("Min(1,2) != 1")
	}
	if !fixedpoint.Max(a, b).Eq(b) {
		t.Error("Max(1,2) != 2")
	}
}

// ============================================================================
// Test: Pow (exp/ln composition)
// ============================================================================

func TestPow_ZeroExponent(t *testing.T) {
	got := fixedpoint.MustFromDec("123.456").Pow(fixedpoint.Zero())
	if !got.Eq(fixedpoint.One()) {
		t.Errorf("x^0 = %s, want 1", got)
	}
}

func TestPow_ZeroBase(t *testing.T) {
	got := fixedpoint.Zero().Pow(fixedpoint.MustFromDec("0.5"))
	if !got.IsZero() {
		t.Errorf("0^y = %s, want 0", got)
	}
}

func TestPow_SquareRoot(t *testing.T) {
	got := fixedpoint.Scaled(4).Pow(fixedpoint.MustFromDec("0.5"))
	assertClose(t, got, fixedpoint.Scaled(2), 1_000_000_000)
}

func TestPow_Square(t *testing.T) {
	got := fixedpoint.Scaled(2).Pow(fixedpoint.Scaled(2))
	assertClose(t, got, fixedpoint.Scaled(4), 1_000_000_000)
}

func TestPow_FractionalBase(t *testing.T) {
	got := fixedpoint.MustFromDec("0.5").Pow(fixedpoint.Scaled(2))
	assertClose(t, got, fixedpoint.MustFromDec("0.25"), 1_000_000_000)
}

func TestPow_IdentityExponent(t *testing.T) {
	// exp(ln(x)) round trip.
	for _, s := range []string{"0.01", "0.9", "1.05", "42", "1000000"} {
		x := fixedpoint.MustFromDec(s)
		got := x.Pow(fixedpoint.One())
		assertClose(t, got, x, 1_000_000_000)
	}
}

func TestPow_TimeStretchShape(t *testing.T) {
	// The shape used by pricing: p = (ze/y)^t with a small time stretch.
	ratio := fixedpoint.MustFromDec("0.8")
	ts := fixedpoint.MustFromDec("0.045071688063194093")
	p := ratio.Pow(ts)
	// 0.8^0.045071688063194093 ≈ 0.98999...
	if p.Gte(fixedpoint.One()) {
		t.Errorf("price %s should be below one", p)
	}
	if p.Lt(fixedpoint.MustFromDec("0.98")) {
		t.Errorf("price %s unexpectedly small", p)
	}
}

func TestPow_NonPositiveLnPanics(t *testing.T) {
	// ln of values below the representable floor is out of domain; Pow on a
	// zero raw value is special-cased, but the guard must convert the panic
	// raised for pathological exponent products.
	var err error
	func() {
		defer fixedpoint.Guard(&err)
		// 1e-18 ^ huge underflows through exp's domain floor to zero.
		got := fixedpoint.FromUint64(1).Pow(fixedpoint.Scaled(10))
		if !got.IsZero() {
			t.Errorf("tiny^10 = %s, want 0", got)
		}
	}()
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

// ============================================================================
// Test: Guard
// ============================================================================

func TestGuard_ConvertsArithmeticPanic(t *testing.T) {
	var err error
	func() {
		defer fixedpoint.Guard(&err)
		fixedpoint.Scaled(1).Sub(fixedpoint.Scaled(2))
	}()
	if err == nil {
		t.Fatal("expected error from guarded underflow")
	}
	if _, ok := err.(*fixedpoint.ArithmeticError); !ok {
		t.Errorf("expected *ArithmeticError, got %T", err)
	}
}

func TestGuard_PassesThroughForeignPanic(t *testing.T) {
	defer func() {
		if r := recover(); r != "unrelated" {
			t.Errorf("expected foreign panic to propagate, got %v", r)
		}
	}()
	var err error
	func() {
		defer fixedpoint.Guard(&err)
		panic("unrelated")
	}()
}

func TestGuard_NoPanicLeavesErrNil(t *testing.T) {
	var err error
	func() {
		defer fixedpoint.Guard(&err)
		_ = fixedpoint.Scaled(2).Sub(fixedpoint.Scaled(1))
	}()
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

// ============================================================================
// Test: Signed
// ============================================================================

func TestSigned_SubGoesNegative(t *testing.T) {
	s := fixedpoint.SignedSub(fixedpoint.Scaled(1), fixedpoint.Scaled(3))
	if !s.IsNegative() {
		t.Error("1 - 3 should be negative")
	}
	if !s.Abs().Eq(fixedpoint.Scaled(2)) {
		t.Errorf("|1-3| = %s, want 2", s.Abs())
	}
}

func TestSigned_ClampFloorsAtZero(t *testing.T) {
	s := fixedpoint.SignedSub(fixedpoint.Scaled(1), fixedpoint.Scaled(3))
	if !s.Clamp().IsZero() {
		t.Errorf("clamp of negative = %s, want 0", s.Clamp())
	}
	p := fixedpoint.SignedFromFixed(fixedpoint.Scaled(5))
	if !p.Clamp().Eq(fixedpoint.Scaled(5)) {
		t.Errorf("clamp of positive = %s, want 5", p.Clamp())
	}
}

func TestSigned_ToFixedPanicsOnNegative(t *testing.T) {
	defer func() {
		if _, ok := recover().(*fixedpoint.ArithmeticError); !ok {
			t.Error("expected *ArithmeticError")
		}
	}()
	fixedpoint.SignedSub(fixedpoint.Zero(), fixedpoint.One()).ToFixed()
}

func TestSigned_String(t *testing.T) {
	s := fixedpoint.SignedSub(fixedpoint.Scaled(1), fixedpoint.MustFromDec("2.5"))
	if s.String() != "-1.5" {
		t.Errorf("got %q, want %q", s.String(), "-1.5")
	}
}
