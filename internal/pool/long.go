package pool

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"TermPool/internal/fixedpoint"
	"TermPool/internal/ledger"
)

// OpenLong deposits baseAmount of base and buys bonds on the curve. The
// trade is rejected if the bond proceeds would fall below minOutput.
func (e *Engine) OpenLong(trader uuid.UUID, baseAmount, minOutput fixedpoint.FixedPoint, now int64) (res OpenLongResult, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()
	defer func() { e.observe(OpOpenLong, start, err) }()
	defer fixedpoint.Guard(&err)

	if !e.state.IsInitialized {
		return OpenLongResult{}, ErrNotInitialized
	}
	if e.state.IsPaused {
		return OpenLongResult{}, ErrPoolPaused
	}
	if baseAmount.Lt(e.cfg.MinimumTransactionAmount) {
		return OpenLongResult{}, fmt.Errorf("%w: %s below %s",
			ErrMinimumTransactionAmount, baseAmount, e.cfg.MinimumTransactionAmount)
	}

	c := e.vault.SharePrice()
	d := e.newDraft()
	e.applyCheckpoint(&d, now, c)
	bucket := d.cps.BucketStart(now)
	maturity := bucket + e.cfg.PositionDuration

	reserves := d.state.Reserves(e.cfg, c)
	spot := reserves.SpotPrice()

	sharesIn := baseAmount.DivDown(c)
	bondsOut := reserves.BondsOutGivenSharesIn(sharesIn)

	curveFee := e.assessor.OpenLongCurveFee(baseAmount, spot)
	govFee := e.assessor.OpenLongGovernanceFee(baseAmount, spot)
	govFeeShares := govFee.DivDown(c)
	bondProceeds := bondsOut.Sub(curveFee)
	if bondProceeds.Lt(minOutput) {
		return OpenLongResult{}, fmt.Errorf("%w: proceeds %s below min %s",
			ErrOutputLimit, bondProceeds, minOutput)
	}

	// Reject trades that would leave the ending spot price above one. The LP
	// slice of the curve fee stays in the bond reserves, which pulls the
	// price further from the ceiling, so checking with the full proceeds
	// removed is the conservative order.
	ending := reserves
	ending.EffectiveShares = ending.EffectiveShares.Add(sharesIn)
	ending.Bonds = ending.Bonds.Sub(bondProceeds)
	if ending.SpotPrice().Gt(fixedpoint.One()) {
		return OpenLongResult{}, fmt.Errorf("%w: ending spot price above one", ErrNegativeInterest)
	}

	d.state.ShareReserves = d.state.ShareReserves.Add(sharesIn.Sub(govFeeShares))
	d.state.BondReserves = d.state.BondReserves.Sub(bondProceeds)
	d.state.LongAverageMaturityTime = weightedMaturity(
		d.state.LongAverageMaturityTime, d.state.LongsOutstanding,
		maturity, bondProceeds, true)
	d.state.LongsOutstanding = d.state.LongsOutstanding.Add(bondProceeds)
	d.state.GovernanceFeesAccrued = d.state.GovernanceFeesAccrued.Add(govFeeShares)

	exposureDelta := fixedpoint.SignedFromFixed(bondProceeds)
	d.cps.AddLong(bucket, bondProceeds)
	d.cps.AddExposure(bucket, exposureDelta)
	d.state.LongExposure = d.state.LongExposure.Add(exposureDelta)

	if err := e.checkInvariants(d.state, c); err != nil {
		return OpenLongResult{}, err
	}
	e.distributeExcessIdle(&d, c, now)

	if _, err := e.vault.Deposit(baseAmount); err != nil {
		return OpenLongResult{}, fmt.Errorf("pool: vault deposit: %w", err)
	}
	if err := e.ledger.Mint(ledger.LongID(maturity), trader, bondProceeds); err != nil {
		return OpenLongResult{}, fmt.Errorf("pool: mint long: %w", err)
	}

	e.commit(d)
	t := Trade{
		ID:           uuid.New(),
		Operation:    OpOpenLong,
		Trader:       trader,
		MaturityTime: maturity,
		BondAmount:   bondProceeds,
		BaseAmount:   baseAmount,
		SpotPrice:    spot,
		Timestamp:    now,
	}
	e.emit(t)
	return OpenLongResult{TradeID: t.ID, MaturityTime: maturity, BondProceeds: bondProceeds}, nil
}

// CloseLong sells bondAmount of a long position back to the pool. Before
// maturity the curve part is sold at market; at or after maturity the
// position settles flat. The trade is rejected if the proceeds would fall
// below minOutput.
func (e *Engine) CloseLong(trader uuid.UUID, maturityTime int64, bondAmount, minOutput fixedpoint.FixedPoint, now int64) (res CloseLongResult, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()
	defer func() { e.observe(OpCloseLong, start, err) }()
	defer fixedpoint.Guard(&err)

	if !e.state.IsInitialized {
		return CloseLongResult{}, ErrNotInitialized
	}
	if bondAmount.Lt(e.cfg.MinimumTransactionAmount) {
		return CloseLongResult{}, fmt.Errorf("%w: %s below %s",
			ErrMinimumTransactionAmount, bondAmount, e.cfg.MinimumTransactionAmount)
	}
	asset := ledger.LongID(maturityTime)
	if e.ledger.BalanceOf(asset, trader).Lt(bondAmount) {
		return CloseLongResult{}, fmt.Errorf("%w: long %s", ledger.ErrInsufficientBalance, asset)
	}

	c := e.vault.SharePrice()
	d := e.newDraft()
	e.applyCheckpoint(&d, now, c)

	origin := maturityTime - e.cfg.PositionDuration
	timeRemaining := e.timeRemaining(now, maturityTime)

	reserves := d.state.Reserves(e.cfg, c)
	spot := reserves.SpotPrice()

	// Matured part settles flat; the rest is sold back on the curve.
	flat := bondAmount.MulDivDown(fixedpoint.One().Sub(timeRemaining), c)
	curveBonds := bondAmount.MulDown(timeRemaining)
	curveShares := fixedpoint.Zero()
	if !curveBonds.IsZero() {
		curveShares, err = reserves.SharesOutGivenBondsIn(curveBonds)
		if err != nil {
			return CloseLongResult{}, err
		}
	}

	split := e.assessor.CloseFees(bondAmount, timeRemaining, spot, c)
	proceedsShares := flat.Add(curveShares).Sub(split.Total())
	d.state.GovernanceFeesAccrued = d.state.GovernanceFeesAccrued.Add(split.Governance)

	if now < maturityTime {
		// Reserves give up the proceeds plus the governance slice; the LP
		// slice of the fees stays behind.
		d.state.ShareReserves = d.state.ShareReserves.
			Sub(proceedsShares.Add(split.Governance))
		d.state.ShareAdjustment = d.state.ShareAdjustment.SubFixed(flat)
		d.state.BondReserves = d.state.BondReserves.Add(curveBonds)
		d.state.LongAverageMaturityTime = weightedMaturity(
			d.state.LongAverageMaturityTime, d.state.LongsOutstanding,
			maturityTime, bondAmount, false)
		d.state.LongsOutstanding = d.state.LongsOutstanding.Sub(bondAmount)
		d.cps.RemoveLong(origin, bondAmount)

		exposureDelta := fixedpoint.SignedSub(fixedpoint.Zero(), bondAmount)
		d.cps.AddExposure(origin, exposureDelta)
		d.state.LongExposure = d.state.LongExposure.Add(exposureDelta)
	}

	proceedsBase := proceedsShares.MulDown(c)
	if proceedsBase.Lt(minOutput) {
		return CloseLongResult{}, fmt.Errorf("%w: proceeds %s below min %s",
			ErrOutputLimit, proceedsBase, minOutput)
	}

	if err := e.checkInvariants(d.state, c); err != nil {
		return CloseLongResult{}, err
	}
	e.distributeExcessIdle(&d, c, now)

	if !proceedsShares.IsZero() {
		if _, err := e.vault.Withdraw(proceedsShares, trader); err != nil {
			return CloseLongResult{}, fmt.Errorf("pool: vault withdraw: %w", err)
		}
	}
	if err := e.ledger.Burn(asset, trader, bondAmount); err != nil {
		return CloseLongResult{}, fmt.Errorf("pool: burn long: %w", err)
	}

	e.commit(d)
	t := Trade{
		ID:           uuid.New(),
		Operation:    OpCloseLong,
		Trader:       trader,
		MaturityTime: maturityTime,
		BondAmount:   bondAmount,
		BaseAmount:   proceedsBase,
		SpotPrice:    spot,
		Timestamp:    now,
	}
	e.emit(t)
	return CloseLongResult{TradeID: t.ID, Proceeds: proceedsBase}, nil
}
