package fixedpoint

import "math/big"

// exp and ln over signed 18-decimal fixed point, evaluated with 2^96-basis
// rational approximations. The coefficients mirror the reference
// implementation digit for digit so Pow is deterministic across platforms.
// big.Int right shifts floor (infinite two's complement), matching the
// arithmetic shifts the approximations were derived for; quotients truncate
// toward zero, matching the reference division.

func mustBig(s string, base int) *big.Int {
	v, ok := new(big.Int).SetString(s, base)
	if !ok {
		panic("fixedpoint: bad constant " + s)
	}
	return v
}

var (
	// exp(x) underflows to 0 below this input and overflows 256 bits above it.
	expMinInput = mustBig("-42139678854452767551", 10)
	expMaxInput = mustBig("135305999368893231589", 10)

	pow5To18 = new(big.Int).Exp(big.NewInt(5), big.NewInt(18), nil)
	ln2Basis = mustBig("54916777467707473351141471128", 10) // ln(2) * 2^96
	two95    = new(big.Int).Lsh(big.NewInt(1), 95)

	expC1 = mustBig("1346386616545796478920950773328", 10)
	expC2 = mustBig("57155421227552351082224309758442", 10)
	expC3 = mustBig("94201549194550492254356042504812", 10)
	expC4 = mustBig("28719021644029726153956944680412240", 10)
	expC5 = new(big.Int).Lsh(mustBig("4385272521454847904659076985693276", 10), 96)
	expD1 = mustBig("2855989394907223263936484059900", 10)
	expD2 = mustBig("50020603652535783019961831881945", 10)
	expD3 = mustBig("533845033583426703283633433725380", 10)
	expD4 = mustBig("3604857256930695427073651918091429", 10)
	expD5 = mustBig("14423608567350463180887372962807573", 10)
	expD6 = mustBig("26449188498355588339934803723976023", 10)

	// s * 5e18 * 2^96 where s is the exp scale factor.
	expScale = mustBig("29d9dc38563c32e5c2f6dc192ee70ef65f9978af3", 16)

	lnC1 = mustBig("3273285459638523848632254066296", 10)
	lnC2 = mustBig("24828157081833163892658089445524", 10)
	lnC3 = mustBig("43456485725739037958740375743393", 10)
	lnC4 = mustBig("11111509109440967052023855526967", 10)
	lnC5 = mustBig("45023709667254063763336534515857", 10)
	lnC6 = mustBig("14706773417378608786704636184526", 10)
	lnC7 = new(big.Int).Lsh(mustBig("795164235651350426258249787498", 10), 96)
	lnD1 = mustBig("5573035233440673466300451813936", 10)
	lnD2 = mustBig("71694874799317883764090561454958", 10)
	lnD3 = mustBig("283447036172924575727196451306956", 10)
	lnD4 = mustBig("401686690394027663651624208769553", 10)
	lnD5 = mustBig("204048457590392012362485061816622", 10)
	lnD6 = mustBig("31853899698501571402653359427138", 10)
	lnD7 = mustBig("909429971244387300277376558375", 10)

	// s * 5e18 * 2^96 where s is the ln scale factor.
	lnScale = mustBig("1340daa0d5f769dba1915cef59f0815a5506", 16)
	// ln(2) * k term and ln(2^96 / 10^18) base conversion term, both in
	// 5e18 * 2^192 basis.
	lnLn2Term  = mustBig("267a36c0c95b3975ab3ee5b203a7614a3f75373f047d803ae7b6687f2b3", 16)
	lnBaseTerm = mustBig("57115e47018c7177eebf7cd370a3356a1b7863008a5ae8028c72b8864284", 16)
)

func mulShift96(a, b *big.Int) *big.Int {
	r := new(big.Int).Mul(a, b)
	return r.Rsh(r, 96)
}

// expFixed computes e^x for a signed 18-decimal fixed-point x.
// Inputs below ~-42e18 return 0; inputs at or above ~135e18 are out of
// domain and raise InvalidExponentError.
func expFixed(x *big.Int) *big.Int {
	if x.Cmp(expMinInput) <= 0 {
		return new(big.Int)
	}
	if x.Cmp(expMaxInput) >= 0 {
		panic(&InvalidExponentError{Detail: "exp input " + x.String() + " out of range"})
	}

	// Convert from 1e18 basis to 2^96 basis: multiply by 2^78 / 5^18.
	x = new(big.Int).Lsh(x, 78)
	x.Quo(x, pow5To18)

	// Range reduction: exp(x) = exp(x') * 2^k with x' in (-ln 2 / 2, ln 2 / 2).
	k := new(big.Int).Lsh(x, 96)
	k.Quo(k, ln2Basis)
	k.Add(k, two95)
	k.Rsh(k, 96)
	x.Sub(x, new(big.Int).Mul(k, ln2Basis))

	// (6,7)-term rational approximation; p is monic, scale applied at the end.
	y := new(big.Int).Add(x, expC1)
	y = mulShift96(y, x)
	y.Add(y, expC2)
	p := new(big.Int).Add(y, x)
	p.Sub(p, expC3)
	p = mulShift96(p, y)
	p.Add(p, expC4)
	p.Mul(p, x)
	p.Add(p, expC5)

	q := new(big.Int).Sub(x, expD1)
	q = mulShift96(q, x)
	q.Add(q, expD2)
	q = mulShift96(q, x)
	q.Sub(q, expD3)
	q = mulShift96(q, x)
	q.Add(q, expD4)
	q = mulShift96(q, x)
	q.Sub(q, expD5)
	q = mulShift96(q, x)
	q.Add(q, expD6)

	r := new(big.Int).Quo(p, q)

	// Reapply the 2^k factor, the approximation scale factor, and the basis
	// conversion back to 1e18, all in one multiply-and-shift.
	r.Mul(r, expScale)
	r.Rsh(r, uint(195-k.Int64()))
	return r
}

// lnFixed computes ln(x) for a positive 18-decimal fixed-point x. The result
// is negative for x < 1e18. Non-positive inputs raise InvalidExponentError.
func lnFixed(x *big.Int) *big.Int {
	if x.Sign() <= 0 {
		panic(&InvalidExponentError{Detail: "ln of non-positive value"})
	}

	// Range reduction: ln(2^k * x') = k*ln(2) + ln(x') with x' in [1, 2) * 2^96.
	k := int64(x.BitLen() - 1 - 96)
	x = new(big.Int).Lsh(x, uint(159-k))
	x.Rsh(x, 159)

	// (8,8)-term rational approximation; p is monic, q monic by convention.
	p := new(big.Int).Add(x, lnC1)
	p = mulShift96(p, x)
	p.Add(p, lnC2)
	p = mulShift96(p, x)
	p.Add(p, lnC3)
	p = mulShift96(p, x)
	p.Sub(p, lnC4)
	p = mulShift96(p, x)
	p.Sub(p, lnC5)
	p = mulShift96(p, x)
	p.Sub(p, lnC6)
	p.Mul(p, x)
	p.Sub(p, lnC7)

	q := new(big.Int).Add(x, lnD1)
	q = mulShift96(q, x)
	q.Add(q, lnD2)
	q = mulShift96(q, x)
	q.Add(q, lnD3)
	q = mulShift96(q, x)
	q.Add(q, lnD4)
	q = mulShift96(q, x)
	q.Add(q, lnD5)
	q = mulShift96(q, x)
	q.Add(q, lnD6)
	q = mulShift96(q, x)
	q.Add(q, lnD7)

	r := new(big.Int).Quo(p, q)

	// Finalize: scale factor, k*ln(2) term, basis conversion term, then shift
	// back down to the 1e18 basis.
	r.Mul(r, lnScale)
	r.Add(r, new(big.Int).Mul(lnLn2Term, big.NewInt(k)))
	r.Add(r, lnBaseTerm)
	r.Rsh(r, 174)
	return r
}
