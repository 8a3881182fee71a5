package pool

import (
	"TermPool/internal/curve"
	"TermPool/internal/fixedpoint"
)

// isSolvent reports whether the pool can cover its long exposure and still
// retain the minimum share reserve buffer, all in base terms.
func (e *Engine) isSolvent(st State, sharePrice fixedpoint.FixedPoint) bool {
	margin := fixedpoint.SignedFromFixed(st.ShareReserves.MulDown(sharePrice)).
		Sub(fixedpoint.SignedFromFixed(st.LongExposure.Clamp())).
		SubFixed(e.cfg.MinimumShareReserves.MulDown(sharePrice))
	return !margin.IsNegative()
}

// idleShares returns the share reserves not needed to back exposure or the
// minimum buffer. This is the only capital the withdrawal pool may consume.
func (e *Engine) idleShares(st State, sharePrice fixedpoint.FixedPoint) fixedpoint.FixedPoint {
	exposureShares := st.LongExposure.Clamp().DivUp(sharePrice)
	idle := fixedpoint.SignedFromFixed(st.ShareReserves).
		SubFixed(exposureShares).
		SubFixed(e.cfg.MinimumShareReserves)
	return idle.Clamp()
}

// presentValue returns the pool's value to LPs in shares: the share reserves
// plus the cost of unwinding the net curve and flat positions, minus the
// minimum reserve buffer.
func (e *Engine) presentValue(st State, sharePrice fixedpoint.FixedPoint, now int64) fixedpoint.FixedPoint {
	reserves := st.Reserves(e.cfg, sharePrice)
	pv := fixedpoint.SignedFromFixed(st.ShareReserves).
		Add(e.netCurveTrade(st, reserves, now)).
		Add(e.netFlatTrade(st, sharePrice, now)).
		SubFixed(e.cfg.MinimumShareReserves)
	return pv.ToFixed()
}

// netCurveTrade values the pool's net curve position: the share flow from
// unwinding every outstanding position's curve part at market. When the net
// exceeds what the curve can absorb before hitting a bound, the overflow is
// valued at the bound.
func (e *Engine) netCurveTrade(st State, reserves curve.Reserves, now int64) fixedpoint.Signed {
	longsCurve := st.LongsOutstanding.
		MulDown(e.timeRemainingScaled(now, st.LongAverageMaturityTime))
	shortsCurve := st.ShortsOutstanding.
		MulDown(e.timeRemainingScaled(now, st.ShortAverageMaturityTime))
	net := fixedpoint.SignedSub(longsCurve, shortsCurve)

	switch {
	case net.Sign() > 0:
		// Net long: the pool must sell bonds. Bounded by the reserve floor.
		bonds := net.Abs()
		if maxSell, err := reserves.MaxSellBondsIn(st.ShareAdjustment, e.cfg.MinimumShareReserves); err == nil && maxSell.Gte(bonds) {
			if out, err := reserves.SharesOutGivenBondsIn(bonds); err == nil {
				return fixedpoint.SignedFromFixed(out).Neg()
			}
		}
		// Proceeds beyond the bound are lost: the curve can only give up the
		// shares above the floor.
		available := fixedpoint.SignedFromFixed(reserves.EffectiveShares).
			SubFixed(e.cfg.MinimumShareReserves).
			Clamp()
		return fixedpoint.SignedFromFixed(available).Neg()
	case net.Sign() < 0:
		// Net short: the pool must buy bonds back. Bounded by the price
		// ceiling; bonds past the ceiling cost face value.
		bonds := net.Abs()
		maxBuy, err := reserves.MaxBuyBondsOut()
		if err == nil && maxBuy.Gte(bonds) {
			if in, err := reserves.SharesInGivenBondsOutUp(bonds); err == nil {
				return fixedpoint.SignedFromFixed(in)
			}
		}
		maxShares := fixedpoint.Zero()
		if in, err := reserves.MaxBuySharesIn(); err == nil {
			maxShares = in
		}
		overflow := bonds.Sub(maxBuy).DivUp(reserves.SharePrice)
		return fixedpoint.SignedFromFixed(maxShares.Add(overflow))
	default:
		return fixedpoint.SignedZero()
	}
}

// netFlatTrade values the matured part of every outstanding position, which
// settles flat at the current share price.
func (e *Engine) netFlatTrade(st State, sharePrice fixedpoint.FixedPoint, now int64) fixedpoint.Signed {
	longsFlat := st.LongsOutstanding.MulDivDown(
		fixedpoint.One().Sub(e.timeRemainingScaled(now, st.LongAverageMaturityTime)),
		sharePrice)
	shortsFlat := st.ShortsOutstanding.MulDivDown(
		fixedpoint.One().Sub(e.timeRemainingScaled(now, st.ShortAverageMaturityTime)),
		sharePrice)
	return fixedpoint.SignedSub(shortsFlat, longsFlat)
}

// distributeExcessIdle pays down the withdrawal queue out of idle capital.
// The LP share price and the redeemable amount are mutually dependent, so
// the fair price is found by fixed-point iteration, bounded by the
// configured iteration cap and tolerance. A draft that reaches this point
// has already passed the solvency gates; distribution never fails, it only
// distributes less when idle is short.
func (e *Engine) distributeExcessIdle(d *draft, sharePrice fixedpoint.FixedPoint, now int64) {
	st := &d.state
	queued := st.WithdrawalSharesOutstanding.Sub(st.WithdrawalReadyToWithdraw)
	if queued.IsZero() {
		return
	}
	idle := e.idleShares(*st, sharePrice)
	if idle.IsZero() {
		return
	}
	if st.LPTotalSupply.IsZero() {
		return
	}

	pv := e.presentValue(*st, sharePrice, now)
	price := pv.DivDown(st.LPTotalSupply)
	if price.IsZero() {
		return
	}

	shares := fixedpoint.Min(queued, idle.DivDown(price))
	iterations := 0
	for ; iterations < e.cfg.SolverMaxIterations; iterations++ {
		proceeds := fixedpoint.Min(shares.MulDown(price), idle)
		remainingSupply := st.LPTotalSupply.Sub(shares)
		if remainingSupply.IsZero() {
			break
		}
		next := pv.Sub(proceeds).DivDown(remainingSupply)
		diff := fixedpoint.Max(next, price).Sub(fixedpoint.Min(next, price))
		price = next
		shares = fixedpoint.Min(queued, idle.DivDown(price))
		if diff.Lte(e.cfg.SolverTolerance) {
			break
		}
	}
	if e.metrics != nil {
		e.metrics.IdleSolverIterations.Observe(float64(iterations + 1))
	}

	proceeds := fixedpoint.Min(shares.MulDown(price), idle)
	st.ShareReserves = st.ShareReserves.Sub(proceeds)
	st.LPTotalSupply = st.LPTotalSupply.Sub(shares)
	st.WithdrawalReadyToWithdraw = st.WithdrawalReadyToWithdraw.Add(shares)
	st.WithdrawalProceeds = st.WithdrawalProceeds.Add(proceeds)

	e.log.Debug().
		Str("shares", shares.String()).
		Str("proceeds", proceeds.String()).
		Int("iterations", iterations+1).
		Msg("idle capital distributed")
}
