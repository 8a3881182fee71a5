// Package fees assesses the trading fees charged by the term pool. Fees
// split into a curve component charged on the price-sensitive part of a
// trade, a flat component charged on the matured part, and a governance skim
// taken out of both. All results are expressed in shares unless noted.
package fees

import (
	"fmt"

	"TermPool/internal/fixedpoint"
)

// Config holds the immutable per-pool fee fractions, each in [0, 1].
type Config struct {
	Curve      fixedpoint.FixedPoint
	Flat       fixedpoint.FixedPoint
	Governance fixedpoint.FixedPoint
}

// Validate rejects fractions outside [0, 1].
func (c Config) Validate() error {
	one := fixedpoint.One()
	if c.Curve.Gt(one) {
		return fmt.Errorf("fees: curve fraction %s above one", c.Curve)
	}
	if c.Flat.Gt(one) {
		return fmt.Errorf("fees: flat fraction %s above one", c.Flat)
	}
	if c.Governance.Gt(one) {
		return fmt.Errorf("fees: governance fraction %s above one", c.Governance)
	}
	return nil
}

// Assessor computes fee splits for trades. It is stateless; the fee config
// is fixed at pool creation.
type Assessor struct {
	cfg Config
}

// NewAssessor builds an assessor from a validated config.
func NewAssessor(cfg Config) *Assessor {
	return &Assessor{cfg: cfg}
}

// Split is the fee breakdown for a single trade leg. Governance is always a
// slice of Curve + Flat, never an addition on top.
type Split struct {
	// Curve is the fee on the price-sensitive component, in shares.
	Curve fixedpoint.FixedPoint
	// Flat is the fee on the matured component, in shares.
	Flat fixedpoint.FixedPoint
	// Governance is the portion of Curve + Flat accrued to governance,
	// in shares.
	Governance fixedpoint.FixedPoint
}

// Total returns the full fee paid by the trader, in shares.
func (s Split) Total() fixedpoint.FixedPoint {
	return s.Curve.Add(s.Flat)
}

// OpenShortCurveFee returns the curve fee for opening a short of bondAmount,
// in bonds: φ_curve * (1 - p) * Δy.
func (a *Assessor) OpenShortCurveFee(bondAmount, spotPrice fixedpoint.FixedPoint) fixedpoint.FixedPoint {
	return a.cfg.Curve.
		MulDown(fixedpoint.One().Sub(spotPrice)).
		MulDown(bondAmount)
}

// OpenShortGovernanceFee returns the governance slice of the open-short curve
// fee, in bonds.
func (a *Assessor) OpenShortGovernanceFee(bondAmount, spotPrice fixedpoint.FixedPoint) fixedpoint.FixedPoint {
	return a.cfg.Governance.MulDown(a.OpenShortCurveFee(bondAmount, spotPrice))
}

// OpenLongCurveFee returns the curve fee for opening a long with baseAmount
// of base, in bonds: φ_curve * (1/p - 1) * Δx.
func (a *Assessor) OpenLongCurveFee(baseAmount, spotPrice fixedpoint.FixedPoint) fixedpoint.FixedPoint {
	return a.cfg.Curve.
		MulDown(fixedpoint.One().DivDown(spotPrice).Sub(fixedpoint.One())).
		MulDown(baseAmount)
}

// OpenLongGovernanceFee returns the governance slice of the open-long curve
// fee, in base: φ_gov * p * curveFee.
func (a *Assessor) OpenLongGovernanceFee(baseAmount, spotPrice fixedpoint.FixedPoint) fixedpoint.FixedPoint {
	return a.cfg.Governance.MulDown(spotPrice).MulDown(a.OpenLongCurveFee(baseAmount, spotPrice))
}

// CloseFees returns the fee split for closing a position of bondAmount with
// the given normalized time remaining. The formulas are shared by longs and
// shorts:
//
//	curve = φ_curve * (1 - p) * Δy * t / c
//	flat  = φ_flat * Δy * (1 - t) / c
//
// both in shares.
func (a *Assessor) CloseFees(bondAmount, timeRemaining, spotPrice, sharePrice fixedpoint.FixedPoint) Split {
	curve := a.cfg.Curve.
		MulDown(fixedpoint.One().Sub(spotPrice)).
		MulDown(bondAmount.MulDivDown(timeRemaining, sharePrice))
	flat := bondAmount.
		MulDivDown(fixedpoint.One().Sub(timeRemaining), sharePrice).
		MulDown(a.cfg.Flat)
	return Split{
		Curve:      curve,
		Flat:       flat,
		Governance: a.cfg.Governance.MulDown(curve.Add(flat)),
	}
}

// FlatFraction exposes the flat fee fraction for proceeds formulas that
// apply it directly to the interest differential.
func (a *Assessor) FlatFraction() fixedpoint.FixedPoint { return a.cfg.Flat }

// GovernanceFraction exposes the governance fee fraction.
func (a *Assessor) GovernanceFraction() fixedpoint.FixedPoint { return a.cfg.Governance }
