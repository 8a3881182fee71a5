package pool

import (
	"fmt"

	"TermPool/internal/curve"
	"TermPool/internal/fees"
	"TermPool/internal/fixedpoint"
)

// Config carries the immutable pool parameters fixed at creation.
type Config struct {
	// InitialSharePrice is µ, the vault share price when the pool was created.
	InitialSharePrice fixedpoint.FixedPoint
	// TimeStretch is the curvature parameter, in (0, 1).
	TimeStretch fixedpoint.FixedPoint
	// PositionDuration is the term length in seconds.
	PositionDuration int64
	// CheckpointDuration is the backdating bucket width in seconds. It must
	// divide PositionDuration.
	CheckpointDuration int64
	// MinimumShareReserves is the liquidity buffer the pool must retain.
	MinimumShareReserves fixedpoint.FixedPoint
	// MinimumTransactionAmount floors the bond size of every trade.
	MinimumTransactionAmount fixedpoint.FixedPoint
	// Fees holds the curve/flat/governance fee fractions.
	Fees fees.Config
	// SolverMaxIterations bounds the idle-distribution iteration.
	SolverMaxIterations int
	// SolverTolerance stops the idle-distribution iteration once the LP share
	// price moves by less than this between rounds.
	SolverTolerance fixedpoint.FixedPoint
}

// Validate rejects configurations the engine cannot run on.
func (c Config) Validate() error {
	if c.InitialSharePrice.IsZero() {
		return fmt.Errorf("pool: initial share price must be positive")
	}
	if c.TimeStretch.IsZero() || c.TimeStretch.Gte(fixedpoint.One()) {
		return fmt.Errorf("pool: time stretch %s outside (0, 1)", c.TimeStretch)
	}
	if c.PositionDuration <= 0 || c.CheckpointDuration <= 0 {
		return fmt.Errorf("pool: durations must be positive")
	}
	if c.PositionDuration%c.CheckpointDuration != 0 {
		return fmt.Errorf("pool: position duration %d not a multiple of checkpoint duration %d",
			c.PositionDuration, c.CheckpointDuration)
	}
	if c.SolverMaxIterations <= 0 {
		return fmt.Errorf("pool: solver iterations must be positive")
	}
	return c.Fees.Validate()
}

// State is the mutable pool state. Every mutating operation works on a copy
// and commits only after all invariants pass, so a State value held by the
// engine is always consistent.
type State struct {
	ShareReserves   fixedpoint.FixedPoint
	BondReserves    fixedpoint.FixedPoint
	ShareAdjustment fixedpoint.Signed

	LongsOutstanding         fixedpoint.FixedPoint
	ShortsOutstanding        fixedpoint.FixedPoint
	LongAverageMaturityTime  fixedpoint.FixedPoint
	ShortAverageMaturityTime fixedpoint.FixedPoint

	// LongExposure is the aggregate unnetted exposure the pool must cover.
	LongExposure fixedpoint.Signed

	// GovernanceFeesAccrued is the governance skim, in shares, awaiting
	// collection.
	GovernanceFeesAccrued fixedpoint.FixedPoint

	// LPTotalSupply tracks LP shares to the extent idle distribution needs a
	// share price; full LP issuance mechanics live outside the core.
	LPTotalSupply fixedpoint.FixedPoint

	// Withdrawal pool.
	WithdrawalSharesOutstanding fixedpoint.FixedPoint
	WithdrawalReadyToWithdraw   fixedpoint.FixedPoint
	WithdrawalProceeds          fixedpoint.FixedPoint

	IsInitialized bool
	IsPaused      bool
}

// EffectiveShareReserves returns the reserves the curve prices against.
func (s State) EffectiveShareReserves() fixedpoint.FixedPoint {
	return curve.EffectiveShareReserves(s.ShareReserves, s.ShareAdjustment)
}

// Reserves assembles the curve pricing inputs for the current state.
func (s State) Reserves(cfg Config, sharePrice fixedpoint.FixedPoint) curve.Reserves {
	return curve.Reserves{
		EffectiveShares:   s.EffectiveShareReserves(),
		Bonds:             s.BondReserves,
		SharePrice:        sharePrice,
		InitialSharePrice: cfg.InitialSharePrice,
		TimeStretch:       cfg.TimeStretch,
	}
}
