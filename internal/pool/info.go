package pool

import (
	"TermPool/internal/checkpoint"
	"TermPool/internal/fixedpoint"
)

// PoolInfo is the derived read-model snapshot served to clients.
type PoolInfo struct {
	ShareReserves     fixedpoint.FixedPoint `json:"share_reserves"`
	BondReserves      fixedpoint.FixedPoint `json:"bond_reserves"`
	ShareAdjustment   fixedpoint.Signed     `json:"share_adjustment"`
	LongsOutstanding  fixedpoint.FixedPoint `json:"longs_outstanding"`
	ShortsOutstanding fixedpoint.FixedPoint `json:"shorts_outstanding"`
	LPTotalSupply     fixedpoint.FixedPoint `json:"lp_total_supply"`

	// SpotPrice is the instantaneous bond price in base.
	SpotPrice fixedpoint.FixedPoint `json:"spot_price"`
	// SpotRate is the annualized fixed rate implied by the spot price.
	SpotRate fixedpoint.FixedPoint `json:"spot_rate"`
	// SharePrice is the vault share price the snapshot was taken at.
	SharePrice fixedpoint.FixedPoint `json:"share_price"`

	// PresentValue is the pool's value to LPs, in shares.
	PresentValue fixedpoint.FixedPoint `json:"present_value"`
	// LPSharePrice is PresentValue / LPTotalSupply.
	LPSharePrice fixedpoint.FixedPoint `json:"lp_share_price"`
	// IdleShares is the capital not backing exposure or the minimum buffer.
	IdleShares fixedpoint.FixedPoint `json:"idle_shares"`

	GovernanceFeesAccrued       fixedpoint.FixedPoint `json:"governance_fees_accrued"`
	WithdrawalSharesOutstanding fixedpoint.FixedPoint `json:"withdrawal_shares_outstanding"`
	WithdrawalReadyToWithdraw   fixedpoint.FixedPoint `json:"withdrawal_ready_to_withdraw"`
	WithdrawalProceeds          fixedpoint.FixedPoint `json:"withdrawal_proceeds"`

	IsPaused bool `json:"is_paused"`
}

// PoolState returns a copy of the raw pool state.
func (e *Engine) PoolState() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// GetCheckpoint returns the checkpoint covering ts, if recorded.
func (e *Engine) GetCheckpoint(ts int64) (checkpoint.Checkpoint, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.checkpoints.Get(e.checkpoints.BucketStart(ts))
}

// CheckpointTimes returns the recorded bucket start times in ascending order.
func (e *Engine) CheckpointTimes() []int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.checkpoints.Times()
}

// Config returns the immutable pool configuration.
func (e *Engine) Config() Config { return e.cfg }

// PoolInfo derives the read-model snapshot at the given time.
func (e *Engine) PoolInfo(now int64) (info PoolInfo, err error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	defer fixedpoint.Guard(&err)

	if !e.state.IsInitialized {
		return PoolInfo{}, ErrNotInitialized
	}

	st := e.state
	c := e.vault.SharePrice()
	reserves := st.Reserves(e.cfg, c)
	spot := reserves.SpotPrice()
	if e.metrics != nil {
		e.metrics.SpotPrice.Set(spot.Float64())
	}

	annualized := fixedpoint.Scaled(e.cfg.PositionDuration).
		DivDown(fixedpoint.Scaled(secondsPerYear))
	rate := fixedpoint.One().Sub(spot).DivDown(spot.MulUp(annualized))

	pv := e.presentValue(st, c, now)
	lpPrice := fixedpoint.Zero()
	if !st.LPTotalSupply.IsZero() {
		lpPrice = pv.DivDown(st.LPTotalSupply)
	}

	return PoolInfo{
		ShareReserves:               st.ShareReserves,
		BondReserves:                st.BondReserves,
		ShareAdjustment:             st.ShareAdjustment,
		LongsOutstanding:            st.LongsOutstanding,
		ShortsOutstanding:           st.ShortsOutstanding,
		LPTotalSupply:               st.LPTotalSupply,
		SpotPrice:                   spot,
		SpotRate:                    rate,
		SharePrice:                  c,
		PresentValue:                pv,
		LPSharePrice:                lpPrice,
		IdleShares:                  e.idleShares(st, c),
		GovernanceFeesAccrued:       st.GovernanceFeesAccrued,
		WithdrawalSharesOutstanding: st.WithdrawalSharesOutstanding,
		WithdrawalReadyToWithdraw:   st.WithdrawalReadyToWithdraw,
		WithdrawalProceeds:          st.WithdrawalProceeds,
		IsPaused:                    st.IsPaused,
	}, nil
}
