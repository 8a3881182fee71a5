package fixedpoint

import (
	"math/big"
	"strings"
)

var (
	maxInt256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 255), big.NewInt(1))
	minInt256 = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 255))
)

// Signed is a signed 18-decimal fixed-point number bounded to 256 bits. It is
// used for the handful of quantities that can legitimately go negative: the
// share adjustment, checkpoint exposure, and present-value nets.
type Signed struct {
	v *big.Int
}

func signedValue(s Signed) *big.Int {
	if s.v == nil {
		return new(big.Int)
	}
	return s.v
}

func checkedSigned(op string, v *big.Int) Signed {
	if v.Cmp(maxInt256) > 0 || v.Cmp(minInt256) < 0 {
		arithmeticPanic(op, "signed result exceeds 256 bits")
	}
	return Signed{v: v}
}

// SignedZero returns the signed zero.
func SignedZero() Signed { return Signed{} }

// SignedFromFixed converts an unsigned fixed-point value to a signed one.
func SignedFromFixed(f FixedPoint) Signed {
	return checkedSigned("signedFromFixed", new(big.Int).Set(value(f)))
}

// SignedSub returns a - b as a signed value, for unsigned operands.
func SignedSub(a, b FixedPoint) Signed {
	return checkedSigned("signedSub", new(big.Int).Sub(value(a), value(b)))
}

// Add returns s + other.
func (s Signed) Add(other Signed) Signed {
	return checkedSigned("signedAdd", new(big.Int).Add(signedValue(s), signedValue(other)))
}

// Sub returns s - other.
func (s Signed) Sub(other Signed) Signed {
	return checkedSigned("signedSub", new(big.Int).Sub(signedValue(s), signedValue(other)))
}

// AddFixed returns s + f.
func (s Signed) AddFixed(f FixedPoint) Signed {
	return checkedSigned("signedAdd", new(big.Int).Add(signedValue(s), value(f)))
}

// SubFixed returns s - f.
func (s Signed) SubFixed(f FixedPoint) Signed {
	return checkedSigned("signedSub", new(big.Int).Sub(signedValue(s), value(f)))
}

// Neg returns -s.
func (s Signed) Neg() Signed {
	return checkedSigned("signedNeg", new(big.Int).Neg(signedValue(s)))
}

// Sign returns -1, 0, or 1.
func (s Signed) Sign() int { return signedValue(s).Sign() }

// IsNegative reports whether s < 0.
func (s Signed) IsNegative() bool { return s.Sign() < 0 }

// Cmp compares s and other.
func (s Signed) Cmp(other Signed) int { return signedValue(s).Cmp(signedValue(other)) }

// Abs returns |s| as an unsigned fixed-point value.
func (s Signed) Abs() FixedPoint {
	return FixedPoint{v: new(big.Int).Abs(signedValue(s))}
}

// Clamp returns max(s, 0) as an unsigned fixed-point value.
func (s Signed) Clamp() FixedPoint {
	if s.Sign() < 0 {
		return Zero()
	}
	return FixedPoint{v: new(big.Int).Set(signedValue(s))}
}

// ToFixed converts s to unsigned, panicking if s is negative.
func (s Signed) ToFixed() FixedPoint {
	if s.Sign() < 0 {
		arithmeticPanic("toFixed", "negative value %s", s.String())
	}
	return FixedPoint{v: new(big.Int).Set(signedValue(s))}
}

// Raw returns a copy of the raw signed 18-decimal representation.
func (s Signed) Raw() *big.Int { return new(big.Int).Set(signedValue(s)) }

// String renders the value as a decimal.
func (s Signed) String() string {
	if s.Sign() < 0 {
		return "-" + s.Abs().String()
	}
	return s.Abs().String()
}

// MarshalJSON renders the value as a decimal JSON string.
func (s Signed) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON parses a decimal JSON string, with an optional leading minus.
func (s *Signed) UnmarshalJSON(data []byte) error {
	str := strings.Trim(string(data), `"`)
	neg := strings.HasPrefix(str, "-")
	parsed, err := FromDec(strings.TrimPrefix(str, "-"))
	if err != nil {
		return err
	}
	out := SignedFromFixed(parsed)
	if neg {
		out = out.Neg()
	}
	*s = out
	return nil
}
