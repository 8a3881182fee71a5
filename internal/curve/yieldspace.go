// Package curve implements the bonding-curve math for the term pool. The
// pool prices trades on the invariant
//
//	k = (c / µ) * (µ * ze)^(1 - t) + y^(1 - t)
//
// where ze is the effective share reserves, y the bond reserves, c the
// current vault share price, µ the share price at pool creation, and t the
// time stretch. Every inversion comes in a rounding flavor chosen so that
// ambiguous roundings favor the pool: amounts owed to a trader round down,
// amounts owed by a trader round up.
package curve

import (
	"errors"
	"fmt"

	"TermPool/internal/fixedpoint"
)

// ErrInvalidTradeSize is returned when a requested trade cannot be priced
// against the current reserves, for example buying more bonds than the curve
// can sell before its spot price reaches one.
var ErrInvalidTradeSize = errors.New("curve: invalid trade size")

// Reserves carries the pricing inputs for a single quote. Callers construct
// it from pool state; the effective share reserves must already have the
// share adjustment applied.
type Reserves struct {
	// EffectiveShares is ze, the share reserves net of the share adjustment.
	EffectiveShares fixedpoint.FixedPoint
	// Bonds is y, the bond reserves.
	Bonds fixedpoint.FixedPoint
	// SharePrice is c, the current vault share price.
	SharePrice fixedpoint.FixedPoint
	// InitialSharePrice is µ, the vault share price at pool creation.
	InitialSharePrice fixedpoint.FixedPoint
	// TimeStretch is t, the curvature parameter.
	TimeStretch fixedpoint.FixedPoint
}

func (r Reserves) oneMinusT() fixedpoint.FixedPoint {
	return fixedpoint.One().Sub(r.TimeStretch)
}

// SpotPrice returns the instantaneous price of a bond in base terms,
// ((µ * ze) / y)^t. Healthy pools keep this at or below one.
func (r Reserves) SpotPrice() fixedpoint.FixedPoint {
	return r.InitialSharePrice.MulDown(r.EffectiveShares).
		DivDown(r.Bonds).
		Pow(r.TimeStretch)
}

// KUp computes the invariant k, overestimating the result.
func (r Reserves) KUp() fixedpoint.FixedPoint {
	return r.SharePrice.MulDivUp(
		r.InitialSharePrice.MulUp(r.EffectiveShares).Pow(r.oneMinusT()),
		r.InitialSharePrice,
	).Add(r.Bonds.Pow(r.oneMinusT()))
}

// KDown computes the invariant k, underestimating the result.
func (r Reserves) KDown() fixedpoint.FixedPoint {
	return r.SharePrice.MulDivDown(
		r.InitialSharePrice.MulDown(r.EffectiveShares).Pow(r.oneMinusT()),
		r.InitialSharePrice,
	).Add(r.Bonds.Pow(r.oneMinusT()))
}

// BondsOutGivenSharesIn returns the bonds a trader receives for depositing
// dz shares. The result is underestimated.
func (r Reserves) BondsOutGivenSharesIn(dz fixedpoint.FixedPoint) fixedpoint.FixedPoint {
	// Rounding k up makes the rhs of the invariant equation larger.
	k := r.KUp()

	// (c / µ) * (µ * (ze + dz))^(1 - t), rounded down to keep the rhs large.
	ze := r.InitialSharePrice.MulDown(r.EffectiveShares.Add(dz)).Pow(r.oneMinusT())
	ze = r.SharePrice.MulDivDown(ze, r.InitialSharePrice)

	// y' = (k - (c / µ) * (µ * (ze + dz))^(1 - t))^(1 / (1 - t)), rounded up.
	y := k.Sub(ze)
	if y.Gte(fixedpoint.One()) {
		y = y.Pow(fixedpoint.One().DivUp(r.oneMinusT()))
	} else {
		y = y.Pow(fixedpoint.One().DivDown(r.oneMinusT()))
	}

	return r.Bonds.Sub(y)
}

// SharesInGivenBondsOutUp returns the shares a trader must deposit to
// receive dy bonds. The result is overestimated.
func (r Reserves) SharesInGivenBondsOutUp(dy fixedpoint.FixedPoint) (fixedpoint.FixedPoint, error) {
	// Rounding k up makes the lhs of the invariant equation larger.
	k := r.KUp()

	if r.Bonds.Lt(dy) {
		return fixedpoint.Zero(), fmt.Errorf("%w: bond reserves %s below requested %s", ErrInvalidTradeSize, r.Bonds, dy)
	}
	y := r.Bonds.Sub(dy).Pow(r.oneMinusT())

	if k.Lt(y) {
		return fixedpoint.Zero(), fmt.Errorf("%w: invariant %s below bond term %s", ErrInvalidTradeSize, k, y)
	}

	// z' = ((k - (y - dy)^(1 - t)) / (c / µ))^(1 / (1 - t)) / µ, rounded up.
	z := k.Sub(y).MulDivUp(r.InitialSharePrice, r.SharePrice)
	if z.Gte(fixedpoint.One()) {
		z = z.Pow(fixedpoint.One().DivUp(r.oneMinusT()))
	} else {
		z = z.Pow(fixedpoint.One().DivDown(r.oneMinusT()))
	}
	z = z.DivUp(r.InitialSharePrice)

	if z.Lt(r.EffectiveShares) {
		return fixedpoint.Zero(), fmt.Errorf("%w: ending share reserves %s below current %s", ErrInvalidTradeSize, z, r.EffectiveShares)
	}
	return z.Sub(r.EffectiveShares), nil
}

// SharesInGivenBondsOutDown returns the shares a trader must deposit to
// receive dy bonds. The result is underestimated.
func (r Reserves) SharesInGivenBondsOutDown(dy fixedpoint.FixedPoint) fixedpoint.FixedPoint {
	// Rounding k down makes the lhs of the invariant equation smaller.
	k := r.KDown()

	y := r.Bonds.Sub(dy).Pow(r.oneMinusT())

	// ze' = ((k - (y - dy)^(1 - t)) / (c / µ))^(1 / (1 - t)) / µ, rounded down.
	ze := k.Sub(y).MulDivDown(r.InitialSharePrice, r.SharePrice)
	if ze.Gte(fixedpoint.One()) {
		ze = ze.Pow(fixedpoint.One().DivDown(r.oneMinusT()))
	} else {
		ze = ze.Pow(fixedpoint.One().DivUp(r.oneMinusT()))
	}
	ze = ze.DivDown(r.InitialSharePrice)

	return ze.Sub(r.EffectiveShares)
}

// SharesOutGivenBondsIn returns the shares a trader receives for selling dy
// bonds to the pool. The result is underestimated. The result floors at zero
// when rounding would otherwise drive it negative.
func (r Reserves) SharesOutGivenBondsIn(dy fixedpoint.FixedPoint) (fixedpoint.FixedPoint, error) {
	// Rounding k up makes the rhs of the invariant equation larger.
	k := r.KUp()

	y := r.Bonds.Add(dy).Pow(r.oneMinusT())
	if k.Lt(y) {
		return fixedpoint.Zero(), fmt.Errorf("%w: invariant %s below bond term %s", ErrInvalidTradeSize, k, y)
	}

	// ze' = ((k - (y + dy)^(1 - t)) / (c / µ))^(1 / (1 - t)) / µ, rounded up.
	ze := k.Sub(y).MulDivUp(r.InitialSharePrice, r.SharePrice)
	if ze.Gte(fixedpoint.One()) {
		ze = ze.Pow(fixedpoint.One().DivUp(r.oneMinusT()))
	} else {
		ze = ze.Pow(fixedpoint.One().DivDown(r.oneMinusT()))
	}
	ze = ze.DivUp(r.InitialSharePrice)

	if r.EffectiveShares.Gt(ze) {
		return r.EffectiveShares.Sub(ze), nil
	}
	return fixedpoint.Zero(), nil
}

// MaxBuySharesIn returns the share payment that buys the maximum amount of
// bonds the curve can sell before its spot price reaches one.
func (r Reserves) MaxBuySharesIn() (fixedpoint.FixedPoint, error) {
	// At a spot price of one, µ * ze' = y', which collapses the invariant to
	// k = ((c / µ) + 1) * (µ * ze')^(1 - t) and gives
	// ze' = (1 / µ) * (k / ((c / µ) + 1))^(1 / (1 - t)).
	k := r.KDown()
	optimal := k.DivDown(r.SharePrice.DivUp(r.InitialSharePrice).Add(fixedpoint.One()))
	optimal = optimal.Pow(fixedpoint.One().DivDown(r.oneMinusT()))
	optimal = optimal.DivDown(r.InitialSharePrice)

	if optimal.Lt(r.EffectiveShares) {
		return fixedpoint.Zero(), fmt.Errorf("%w: optimal share reserves %s below current %s", ErrInvalidTradeSize, optimal, r.EffectiveShares)
	}
	return optimal.Sub(r.EffectiveShares), nil
}

// MaxBuyBondsOut returns the maximum amount of bonds the curve can sell
// before its spot price reaches one. The result is underestimated.
func (r Reserves) MaxBuyBondsOut() (fixedpoint.FixedPoint, error) {
	// At a spot price of one the invariant collapses to
	// k = ((c / µ) + 1) * y'^(1 - t), giving
	// y' = (k / ((c / µ) + 1))^(1 / (1 - t)).
	k := r.KUp()
	optimal := k.DivUp(r.SharePrice.DivDown(r.InitialSharePrice).Add(fixedpoint.One()))
	if optimal.Gte(fixedpoint.One()) {
		optimal = optimal.Pow(fixedpoint.One().DivUp(r.oneMinusT()))
	} else {
		optimal = optimal.Pow(fixedpoint.One().DivDown(r.oneMinusT()))
	}

	if r.Bonds.Lt(optimal) {
		return fixedpoint.Zero(), fmt.Errorf("%w: optimal bond reserves %s above current %s", ErrInvalidTradeSize, optimal, r.Bonds)
	}
	return r.Bonds.Sub(optimal), nil
}

// MaxSellBondsIn returns the maximum amount of bonds that can be sold to the
// pool before the share reserves hit the minimum. The share adjustment zeta
// shifts the floor when negative. The result is underestimated.
func (r Reserves) MaxSellBondsIn(zeta fixedpoint.Signed, zMin fixedpoint.FixedPoint) (fixedpoint.FixedPoint, error) {
	// A negative share adjustment raises the effective floor so the raw share
	// reserves never dip below the minimum.
	if zeta.IsNegative() {
		zMin = zMin.Add(zeta.Abs())
	}

	// Substituting ze = zMin collapses the invariant to
	// k = (c / µ) * (µ * zMin)^(1 - t) + y'^(1 - t), giving
	// y' = (k - (c / µ) * (µ * zMin)^(1 - t))^(1 / (1 - t)).
	k := r.KDown()
	optimal := k.Sub(r.SharePrice.MulDivUp(
		r.InitialSharePrice.MulUp(zMin).Pow(r.oneMinusT()),
		r.InitialSharePrice,
	))
	if optimal.Gte(fixedpoint.One()) {
		optimal = optimal.Pow(fixedpoint.One().DivDown(r.oneMinusT()))
	} else {
		optimal = optimal.Pow(fixedpoint.One().DivUp(r.oneMinusT()))
	}

	if optimal.Lt(r.Bonds) {
		return fixedpoint.Zero(), fmt.Errorf("%w: optimal bond reserves %s below current %s", ErrInvalidTradeSize, optimal, r.Bonds)
	}
	return optimal.Sub(r.Bonds), nil
}

// EffectiveShareReserves applies the share adjustment to the raw share
// reserves, ze = z - zeta. A positive adjustment reduces the reserves used
// for pricing; a negative one increases them.
func EffectiveShareReserves(z fixedpoint.FixedPoint, zeta fixedpoint.Signed) fixedpoint.FixedPoint {
	return fixedpoint.SignedFromFixed(z).Sub(zeta).ToFixed()
}
