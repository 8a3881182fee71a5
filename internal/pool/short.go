package pool

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"TermPool/internal/checkpoint"
	"TermPool/internal/fixedpoint"
	"TermPool/internal/ledger"
)

// OpenShort sells bondAmount of face value to the pool and collects a margin
// deposit from the trader covering the maximum possible loss plus fees. The
// trade is rejected if the deposit would exceed maxDeposit.
func (e *Engine) OpenShort(trader uuid.UUID, bondAmount, maxDeposit fixedpoint.FixedPoint, now int64) (res OpenShortResult, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()
	defer func() { e.observe(OpOpenShort, start, err) }()
	defer fixedpoint.Guard(&err)

	if !e.state.IsInitialized {
		return OpenShortResult{}, ErrNotInitialized
	}
	if e.state.IsPaused {
		return OpenShortResult{}, ErrPoolPaused
	}
	if bondAmount.Lt(e.cfg.MinimumTransactionAmount) {
		return OpenShortResult{}, fmt.Errorf("%w: %s below %s",
			ErrMinimumTransactionAmount, bondAmount, e.cfg.MinimumTransactionAmount)
	}

	c := e.vault.SharePrice()
	d := e.newDraft()
	openPrice := e.applyCheckpoint(&d, now, c)
	bucket := d.cps.BucketStart(now)
	maturity := bucket + e.cfg.PositionDuration

	reserves := d.state.Reserves(e.cfg, c)
	spot := reserves.SpotPrice()

	// Shares the pool pays out for buying bondAmount of face value.
	principal, err := reserves.SharesOutGivenBondsIn(bondAmount)
	if err != nil {
		return OpenShortResult{}, err
	}
	// The pool cannot pay more for the bonds than their face value.
	if principal.MulUp(c).Gt(bondAmount) {
		return OpenShortResult{}, fmt.Errorf("%w: principal %s exceeds face value %s",
			ErrNegativeInterest, principal.MulUp(c), bondAmount)
	}

	curveFee := e.assessor.OpenShortCurveFee(bondAmount, spot)
	govFee := e.assessor.OpenShortGovernanceFee(bondAmount, spot)
	curveFeeShares := curveFee.DivDown(c)
	govFeeShares := govFee.DivDown(c)

	// Deposit backdated to the bucket's open: face value carried from the
	// checkpoint price, plus the curve fee, minus the curve proceeds. The fee
	// is added before the proceeds are subtracted to keep the intermediate
	// value non-negative.
	deposit := bondAmount.MulDivDown(c, openPrice).
		Add(curveFee).
		Sub(principal.MulDown(c))
	if deposit.Gt(maxDeposit) {
		return OpenShortResult{}, fmt.Errorf("%w: deposit %s above max %s",
			ErrOutputLimit, deposit, maxDeposit)
	}

	// The LP slice of the curve fee stays in the reserves; only the
	// governance slice leaves the curve.
	d.state.ShareReserves = d.state.ShareReserves.
		Sub(principal.Sub(curveFeeShares.Sub(govFeeShares)))
	d.state.BondReserves = d.state.BondReserves.Add(bondAmount)
	d.state.ShortAverageMaturityTime = weightedMaturity(
		d.state.ShortAverageMaturityTime, d.state.ShortsOutstanding,
		maturity, bondAmount, true)
	d.state.ShortsOutstanding = d.state.ShortsOutstanding.Add(bondAmount)
	d.state.GovernanceFeesAccrued = d.state.GovernanceFeesAccrued.Add(govFeeShares)

	// Shorts reduce what the pool owes at maturity: the trader's margin plus
	// the pool's curve payment jointly cover the face value.
	exposureDelta := fixedpoint.SignedSub(fixedpoint.Zero(), deposit.Add(bondAmount))
	d.cps.AddShort(bucket, bondAmount)
	d.cps.AddExposure(bucket, exposureDelta)
	d.state.LongExposure = d.state.LongExposure.Add(exposureDelta)

	if err := e.checkInvariants(d.state, c); err != nil {
		return OpenShortResult{}, err
	}
	e.distributeExcessIdle(&d, c, now)

	if _, err := e.vault.Deposit(deposit); err != nil {
		return OpenShortResult{}, fmt.Errorf("pool: vault deposit: %w", err)
	}
	if err := e.ledger.Mint(ledger.ShortID(maturity), trader, bondAmount); err != nil {
		return OpenShortResult{}, fmt.Errorf("pool: mint short: %w", err)
	}

	e.commit(d)
	t := Trade{
		ID:           uuid.New(),
		Operation:    OpOpenShort,
		Trader:       trader,
		MaturityTime: maturity,
		BondAmount:   bondAmount,
		BaseAmount:   deposit,
		SpotPrice:    spot,
		Timestamp:    now,
	}
	e.emit(t)
	return OpenShortResult{TradeID: t.ID, MaturityTime: maturity, Deposit: deposit}, nil
}

// CloseShort buys back bondAmount of a short position. Before maturity the
// curve part is repurchased at market; at or after maturity the position
// settles flat against the maturity checkpoint price. The trade is rejected
// if the proceeds would fall below minOutput.
func (e *Engine) CloseShort(trader uuid.UUID, maturityTime int64, bondAmount, minOutput fixedpoint.FixedPoint, now int64) (res CloseShortResult, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()
	defer func() { e.observe(OpCloseShort, start, err) }()
	defer fixedpoint.Guard(&err)

	if !e.state.IsInitialized {
		return CloseShortResult{}, ErrNotInitialized
	}
	if bondAmount.Lt(e.cfg.MinimumTransactionAmount) {
		return CloseShortResult{}, fmt.Errorf("%w: %s below %s",
			ErrMinimumTransactionAmount, bondAmount, e.cfg.MinimumTransactionAmount)
	}
	asset := ledger.ShortID(maturityTime)
	if e.ledger.BalanceOf(asset, trader).Lt(bondAmount) {
		return CloseShortResult{}, fmt.Errorf("%w: short %s", ledger.ErrInsufficientBalance, asset)
	}

	c := e.vault.SharePrice()
	d := e.newDraft()
	e.applyCheckpoint(&d, now, c)

	origin := maturityTime - e.cfg.PositionDuration
	openPrice := d.cps.Ensure(origin, c)
	timeRemaining := e.timeRemaining(now, maturityTime)

	reserves := d.state.Reserves(e.cfg, c)
	spot := reserves.SpotPrice()

	// Matured part settles flat; the rest is bought back on the curve.
	flat := bondAmount.MulDivDown(fixedpoint.One().Sub(timeRemaining), c)
	curveBonds := bondAmount.MulDown(timeRemaining)
	curveShares := fixedpoint.Zero()
	if !curveBonds.IsZero() {
		curveShares, err = reserves.SharesInGivenBondsOutUp(curveBonds)
		if err != nil {
			return CloseShortResult{}, err
		}
		lhs := e.cfg.InitialSharePrice.MulDown(reserves.EffectiveShares.Add(curveShares))
		if lhs.Gt(reserves.Bonds.Sub(curveBonds)) {
			return CloseShortResult{}, fmt.Errorf("%w: buyback pushes spot above one", ErrNegativeInterest)
		}
	}

	split := e.assessor.CloseFees(bondAmount, timeRemaining, spot, c)
	sharePayment := flat.Add(curveShares).Add(split.Total())
	d.state.GovernanceFeesAccrued = d.state.GovernanceFeesAccrued.Add(split.Governance)

	if now < maturityTime {
		d.state.ShareReserves = d.state.ShareReserves.
			Add(flat).Add(curveShares).
			Add(split.Total().Sub(split.Governance))
		d.state.ShareAdjustment = d.state.ShareAdjustment.AddFixed(flat)
		d.state.BondReserves = d.state.BondReserves.Sub(curveBonds)
		d.state.ShortAverageMaturityTime = weightedMaturity(
			d.state.ShortAverageMaturityTime, d.state.ShortsOutstanding,
			maturityTime, bondAmount, false)
		d.state.ShortsOutstanding = d.state.ShortsOutstanding.Sub(bondAmount)
		d.cps.RemoveShort(origin, bondAmount)

		exposureDelta := fixedpoint.SignedFromFixed(bondAmount.Add(sharePayment.MulDown(c)))
		d.cps.AddExposure(origin, exposureDelta)
		d.state.LongExposure = d.state.LongExposure.Add(exposureDelta)
	}

	// The short's proceeds are the face value carried at the vault's yield
	// since open, plus the flat-fee rebate, minus everything paid back in.
	closePrice := c
	if now >= maturityTime {
		if cp, ok := d.cps.Get(maturityTime); ok {
			closePrice = cp.SharePrice
		}
	}
	bondFactor := bondAmount.MulDivDown(closePrice, openPrice.MulUp(c))
	bondFactor = bondFactor.Add(bondAmount.MulDivDown(e.assessor.FlatFraction(), c))
	proceedsShares := fixedpoint.Zero()
	if bondFactor.Gt(sharePayment) {
		proceedsShares = bondFactor.Sub(sharePayment)
	}
	proceedsBase := proceedsShares.MulDown(c)
	if proceedsBase.Lt(minOutput) {
		return CloseShortResult{}, fmt.Errorf("%w: proceeds %s below min %s",
			ErrOutputLimit, proceedsBase, minOutput)
	}

	if err := e.checkInvariants(d.state, c); err != nil {
		return CloseShortResult{}, err
	}
	e.distributeExcessIdle(&d, c, now)

	if !proceedsShares.IsZero() {
		if _, err := e.vault.Withdraw(proceedsShares, trader); err != nil {
			return CloseShortResult{}, fmt.Errorf("pool: vault withdraw: %w", err)
		}
	}
	if err := e.ledger.Burn(asset, trader, bondAmount); err != nil {
		return CloseShortResult{}, fmt.Errorf("pool: burn short: %w", err)
	}

	e.commit(d)
	t := Trade{
		ID:           uuid.New(),
		Operation:    OpCloseShort,
		Trader:       trader,
		MaturityTime: maturityTime,
		BondAmount:   bondAmount,
		BaseAmount:   proceedsBase,
		SpotPrice:    spot,
		Timestamp:    now,
	}
	e.emit(t)
	return CloseShortResult{TradeID: t.ID, Proceeds: proceedsBase}, nil
}

// weightedMaturity folds a maturity timestamp into a weighted average.
func weightedMaturity(avg, weight fixedpoint.FixedPoint, maturityTime int64, delta fixedpoint.FixedPoint, increasing bool) fixedpoint.FixedPoint {
	return checkpoint.WeightedAverage(avg, weight, fixedpoint.Scaled(maturityTime), delta, increasing)
}
