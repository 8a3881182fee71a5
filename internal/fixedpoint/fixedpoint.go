// Package fixedpoint implements the checked 18-decimal fixed-point arithmetic
// used throughout the pricing and accounting code. Values are non-negative and
// bounded to 256 bits; callers pick the rounding direction per call
// (MulDown/MulUp, DivDown/DivUp) so that ambiguous roundings can favor the
// pool. Arithmetic violations raise typed panics which the engine's
// transactional wrapper converts into error returns; see Guard.
package fixedpoint

import (
	"fmt"
	"math/big"
	"strings"
)

const decimals = 18

var (
	scale      = new(big.Int).Exp(big.NewInt(10), big.NewInt(decimals), nil)
	maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
)

// FixedPoint is an unsigned 18-decimal fixed-point number. The zero value is
// usable and equal to Zero().
type FixedPoint struct {
	v *big.Int
}

// ArithmeticError reports a checked arithmetic violation: overflow past 256
// bits, underflow below zero, or division by zero.
type ArithmeticError struct {
	Op     string
	Detail string
}

func (e *ArithmeticError) Error() string {
	return fmt.Sprintf("fixedpoint: %s: %s", e.Op, e.Detail)
}

// InvalidExponentError reports an out-of-domain input to Pow: a zero or
// negative logarithm operand, or an exponent product too large to represent.
type InvalidExponentError struct {
	Detail string
}

func (e *InvalidExponentError) Error() string {
	return fmt.Sprintf("fixedpoint: invalid exponent: %s", e.Detail)
}

func arithmeticPanic(op, format string, args ...interface{}) {
	panic(&ArithmeticError{Op: op, Detail: fmt.Sprintf(format, args...)})
}

// Guard converts fixed-point panics into error returns. Use as
//
//	defer fixedpoint.Guard(&err)
//
// at the boundary of a transactional operation. Non-arithmetic panics are
// re-raised.
func Guard(err *error) {
	r := recover()
	if r == nil {
		return
	}
	switch e := r.(type) {
	case *ArithmeticError:
		*err = e
	case *InvalidExponentError:
		*err = e
	default:
		panic(r)
	}
}

func value(f FixedPoint) *big.Int {
	if f.v == nil {
		return new(big.Int)
	}
	return f.v
}

func checked(op string, v *big.Int) FixedPoint {
	if v.Sign() < 0 {
		arithmeticPanic(op, "result is negative")
	}
	if v.Cmp(maxUint256) > 0 {
		arithmeticPanic(op, "result exceeds 256 bits")
	}
	return FixedPoint{v: v}
}

// Zero returns the fixed-point zero.
func Zero() FixedPoint { return FixedPoint{} }

// One returns the fixed-point one (1e18 raw).
func One() FixedPoint { return FixedPoint{v: new(big.Int).Set(scale)} }

// FromRaw builds a FixedPoint from a raw 18-decimal integer representation.
// The input is copied. Negative or out-of-range inputs panic.
func FromRaw(v *big.Int) FixedPoint {
	return checked("fromRaw", new(big.Int).Set(v))
}

// FromUint64 builds a FixedPoint from a raw 18-decimal uint64.
func FromUint64(v uint64) FixedPoint {
	return FixedPoint{v: new(big.Int).SetUint64(v)}
}

// Scaled returns n as a fixed-point number, i.e. n * 1e18.
func Scaled(n int64) FixedPoint {
	if n < 0 {
		arithmeticPanic("scaled", "negative input %d", n)
	}
	return FixedPoint{v: new(big.Int).Mul(big.NewInt(n), scale)}
}

// MustFromDec parses a non-negative decimal string such as "1.05" or
// "1000000" into a FixedPoint. It panics on malformed input and is intended
// for constants, configuration, and tests.
func MustFromDec(s string) FixedPoint {
	f, err := FromDec(s)
	if err != nil {
		panic(err)
	}
	return f
}

// FromDec parses a non-negative decimal string into a FixedPoint.
func FromDec(s string) (FixedPoint, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return FixedPoint{}, fmt.Errorf("fixedpoint: empty decimal")
	}
	intPart := s
	fracPart := ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, fracPart = s[:i], s[i+1:]
	}
	if len(fracPart) > decimals {
		return FixedPoint{}, fmt.Errorf("fixedpoint: %q has more than %d decimal places", s, decimals)
	}
	fracPart += strings.Repeat("0", decimals-len(fracPart))
	if intPart == "" {
		intPart = "0"
	}
	raw, ok := new(big.Int).SetString(intPart+fracPart, 10)
	if !ok || raw.Sign() < 0 {
		return FixedPoint{}, fmt.Errorf("fixedpoint: malformed decimal %q", s)
	}
	if raw.Cmp(maxUint256) > 0 {
		return FixedPoint{}, fmt.Errorf("fixedpoint: %q exceeds 256 bits", s)
	}
	return FixedPoint{v: raw}, nil
}

// Raw returns a copy of the raw 18-decimal integer representation.
func (f FixedPoint) Raw() *big.Int { return new(big.Int).Set(value(f)) }

// Float64 returns a lossy float approximation, for metrics and logs only.
func (f FixedPoint) Float64() float64 {
	out, _ := new(big.Float).Quo(
		new(big.Float).SetInt(value(f)),
		new(big.Float).SetInt(scale),
	).Float64()
	return out
}

// String renders the value as a decimal with trailing zeros trimmed.
func (f FixedPoint) String() string {
	q, r := new(big.Int).QuoRem(value(f), scale, new(big.Int))
	if r.Sign() == 0 {
		return q.String()
	}
	frac := strings.TrimRight(fmt.Sprintf("%018s", r.String()), "0")
	return q.String() + "." + frac
}

// MarshalJSON renders the value as a decimal JSON string.
func (f FixedPoint) MarshalJSON() ([]byte, error) {
	return []byte(`"` + f.String() + `"`), nil
}

// UnmarshalJSON parses a decimal JSON string.
func (f *FixedPoint) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	parsed, err := FromDec(s)
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// Add returns f + other, panicking on 256-bit overflow.
func (f FixedPoint) Add(other FixedPoint) FixedPoint {
	return checked("add", new(big.Int).Add(value(f), value(other)))
}

// Sub returns f - other, panicking if the result would be negative.
func (f FixedPoint) Sub(other FixedPoint) FixedPoint {
	return checked("sub", new(big.Int).Sub(value(f), value(other)))
}

// MulDivDown returns f * other / divisor rounded toward zero.
func (f FixedPoint) MulDivDown(other, divisor FixedPoint) FixedPoint {
	d := value(divisor)
	if d.Sign() == 0 {
		arithmeticPanic("mulDivDown", "division by zero")
	}
	prod := new(big.Int).Mul(value(f), value(other))
	return checked("mulDivDown", prod.Quo(prod, d))
}

// MulDivUp returns f * other / divisor rounded away from zero.
func (f FixedPoint) MulDivUp(other, divisor FixedPoint) FixedPoint {
	d := value(divisor)
	if d.Sign() == 0 {
		arithmeticPanic("mulDivUp", "division by zero")
	}
	prod := new(big.Int).Mul(value(f), value(other))
	q, r := new(big.Int).QuoRem(prod, d, new(big.Int))
	if r.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return checked("mulDivUp", q)
}

// MulDown returns f * other rounded down.
func (f FixedPoint) MulDown(other FixedPoint) FixedPoint {
	return f.MulDivDown(other, One())
}

// MulUp returns f * other rounded up.
func (f FixedPoint) MulUp(other FixedPoint) FixedPoint {
	return f.MulDivUp(other, One())
}

// DivDown returns f / other rounded down.
func (f FixedPoint) DivDown(other FixedPoint) FixedPoint {
	return f.MulDivDown(One(), other)
}

// DivUp returns f / other rounded up.
func (f FixedPoint) DivUp(other FixedPoint) FixedPoint {
	return f.MulDivUp(One(), other)
}

// Pow returns f^y for fixed-point exponents via exp(y * ln(f)).
// Pow(0, y) = 0 and Pow(f, 0) = 1, matching the reference semantics.
func (f FixedPoint) Pow(y FixedPoint) FixedPoint {
	if y.IsZero() {
		return One()
	}
	if f.IsZero() {
		return Zero()
	}
	lnx := lnFixed(value(f))
	ylnx := new(big.Int).Mul(value(y), lnx)
	ylnx.Quo(ylnx, scale)
	return checked("pow", expFixed(ylnx))
}

// Cmp compares f and other, returning -1, 0, or 1.
func (f FixedPoint) Cmp(other FixedPoint) int { return value(f).Cmp(value(other)) }

// Lt reports f < other.
func (f FixedPoint) Lt(other FixedPoint) bool { return f.Cmp(other) < 0 }

// Lte reports f <= other.
func (f FixedPoint) Lte(other FixedPoint) bool { return f.Cmp(other) <= 0 }

// Gt reports f > other.
func (f FixedPoint) Gt(other FixedPoint) bool { return f.Cmp(other) > 0 }

// Gte reports f >= other.
func (f FixedPoint) Gte(other FixedPoint) bool { return f.Cmp(other) >= 0 }

// Eq reports f == other.
func (f FixedPoint) Eq(other FixedPoint) bool { return f.Cmp(other) == 0 }

// IsZero reports whether f is zero.
func (f FixedPoint) IsZero() bool { return value(f).Sign() == 0 }

// Min returns the smaller of f and other.
func Min(a, b FixedPoint) FixedPoint {
	if a.Lte(b) {
		return a
	}
	return b
}

// Max returns the larger of f and other.
func Max(a, b FixedPoint) FixedPoint {
	if a.Gte(b) {
		return a
	}
	return b
}
