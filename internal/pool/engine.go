// Package pool implements the position-accounting engine: trade
// orchestration over the bonding curve, checkpointed interest backdating,
// solvency gating, and idle-capital distribution. All mutating operations
// are strictly sequential and atomic; on any failure the pool state is left
// untouched.
package pool

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"TermPool/internal/checkpoint"
	"TermPool/internal/curve"
	"TermPool/internal/fees"
	"TermPool/internal/fixedpoint"
	"TermPool/internal/ledger"
	"TermPool/internal/observability"
	"TermPool/internal/vault"
)

const secondsPerYear = 60 * 60 * 24 * 365

// Engine is the single writer for one pool. Reads may run concurrently;
// mutations are serialized and commit only after every invariant passes.
// The engine never reads the wall clock for pool semantics: operation
// timestamps are versioned inputs supplied by the caller.
type Engine struct {
	cfg       Config
	assessor  *fees.Assessor
	vault     vault.Vault
	ledger    ledger.Ledger
	log       zerolog.Logger
	metrics   *observability.Metrics
	tradeChan chan<- Trade

	mu          sync.RWMutex
	state       State
	checkpoints *checkpoint.Manager
}

// NewEngine wires an engine from its collaborators. tradeChan may be nil;
// when set, every applied mutation is sent on it (blocking, so the consumer
// provides backpressure the way the persistence path does).
func NewEngine(
	cfg Config,
	v vault.Vault,
	l ledger.Ledger,
	log zerolog.Logger,
	metrics *observability.Metrics,
	tradeChan chan<- Trade,
) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		cfg:         cfg,
		assessor:    fees.NewAssessor(cfg.Fees),
		vault:       v,
		ledger:      l,
		log:         log,
		metrics:     metrics,
		tradeChan:   tradeChan,
		checkpoints: checkpoint.NewManager(cfg.CheckpointDuration, cfg.PositionDuration),
	}, nil
}

// draft is a transactional copy of everything a mutation touches. Committing
// swaps both pieces in; abandoning it leaves the engine untouched.
type draft struct {
	state State
	cps   *checkpoint.Manager
}

func (e *Engine) newDraft() draft {
	return draft{state: e.state, cps: e.checkpoints.Clone()}
}

func (e *Engine) commit(d draft) {
	e.state = d.state
	e.checkpoints = d.cps
	e.updateGauges()
}

func (e *Engine) updateGauges() {
	if e.metrics == nil {
		return
	}
	e.metrics.ShareReserves.Set(e.state.ShareReserves.Float64())
	e.metrics.BondReserves.Set(e.state.BondReserves.Float64())
	e.metrics.LongsOutstanding.Set(e.state.LongsOutstanding.Float64())
	e.metrics.ShortsOutstanding.Set(e.state.ShortsOutstanding.Float64())
	e.metrics.GovernanceFeesAccrued.Set(e.state.GovernanceFeesAccrued.Float64())
}

func (e *Engine) observe(op string, start time.Time, err error) {
	if e.metrics != nil {
		if err != nil {
			e.metrics.TradesRejected.WithLabelValues(op, rejectReason(err)).Inc()
		} else {
			e.metrics.TradesApplied.WithLabelValues(op).Inc()
			e.metrics.TradeDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
		}
	}
	if err != nil {
		e.log.Warn().Str("op", op).Err(err).Msg("operation rejected")
	}
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrNotInitialized):
		return "not_initialized"
	case errors.Is(err, ErrPoolPaused):
		return "paused"
	case errors.Is(err, ErrMinimumTransactionAmount):
		return "minimum_transaction_amount"
	case errors.Is(err, ErrOutputLimit):
		return "output_limit"
	case errors.Is(err, ErrNegativeInterest):
		return "negative_interest"
	case errors.Is(err, ErrInvalidShareReserves):
		return "invalid_share_reserves"
	case errors.Is(err, ErrBaseBufferExceedsShareReserves):
		return "insolvent"
	case errors.Is(err, curve.ErrInvalidTradeSize):
		return "invalid_trade_size"
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return "insufficient_balance"
	default:
		var ae *fixedpoint.ArithmeticError
		var ie *fixedpoint.InvalidExponentError
		if errors.As(err, &ae) || errors.As(err, &ie) {
			return "arithmetic"
		}
		return "collaborator"
	}
}

func (e *Engine) emit(t Trade) {
	if e.tradeChan != nil {
		e.tradeChan <- t
	}
	e.log.Info().
		Str("trade_id", t.ID.String()).
		Str("op", t.Operation).
		Str("trader", t.Trader.String()).
		Int64("maturity", t.MaturityTime).
		Str("bonds", t.BondAmount.String()).
		Str("base", t.BaseAmount.String()).
		Msg("trade applied")
}

// Initialize seeds the pool from a base contribution at a target fixed rate.
// The bond reserves are derived so the starting spot price matches the rate:
// p = 1 / (1 + r * t_years) and y = µ * z * p^(-1/t_stretch).
func (e *Engine) Initialize(baseContribution, targetRate fixedpoint.FixedPoint, now int64) (lp fixedpoint.FixedPoint, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer fixedpoint.Guard(&err)

	if e.state.IsInitialized {
		return fixedpoint.Zero(), ErrAlreadyInitialized
	}

	c := e.vault.SharePrice()
	shares, err := e.vault.Deposit(baseContribution)
	if err != nil {
		return fixedpoint.Zero(), fmt.Errorf("pool: vault deposit: %w", err)
	}

	annualized := fixedpoint.Scaled(e.cfg.PositionDuration).
		DivDown(fixedpoint.Scaled(secondsPerYear))
	targetPrice := fixedpoint.One().
		DivDown(fixedpoint.One().Add(targetRate.MulDown(annualized)))
	bonds := e.cfg.InitialSharePrice.MulDown(shares).MulDown(
		fixedpoint.One().DivDown(targetPrice).
			Pow(fixedpoint.One().DivDown(e.cfg.TimeStretch)))

	d := e.newDraft()
	d.state.ShareReserves = shares
	d.state.BondReserves = bonds
	d.state.LPTotalSupply = shares.Sub(e.cfg.MinimumShareReserves)
	d.state.IsInitialized = true
	d.cps.Ensure(now, c)

	if err := e.checkInvariants(d.state, c); err != nil {
		return fixedpoint.Zero(), err
	}
	e.commit(d)

	e.log.Info().
		Str("share_reserves", shares.String()).
		Str("bond_reserves", bonds.String()).
		Str("target_rate", targetRate.String()).
		Msg("pool initialized")
	return d.state.LPTotalSupply, nil
}

// Restore loads a previously persisted pool state, replacing the current
// one. Used on warm restart after the host replays its store, and by tests
// that need exact reserve levels.
func (e *Engine) Restore(st State) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = st
	e.updateGauges()
}

// RestoreCheckpoints replaces the checkpoint map from a snapshot, paired
// with Restore on warm restart.
func (e *Engine) RestoreCheckpoints(snap map[int64]checkpoint.Checkpoint) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.checkpoints.Import(snap)
}

// ExportCheckpoints returns a copy of the checkpoint map for snapshotting.
func (e *Engine) ExportCheckpoints() map[int64]checkpoint.Checkpoint {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.checkpoints.Export()
}

// Pause toggles the pause flag. Opening positions and queueing withdrawals
// are blocked while paused; closes stay available so traders can always
// exit.
func (e *Engine) Pause(paused bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.IsPaused = paused
	e.log.Info().Bool("paused", paused).Msg("pause flag updated")
}

// Checkpoint records the share price for the bucket containing now and
// settles any cohorts past maturity. Idempotent per bucket.
func (e *Engine) Checkpoint(now int64) (price fixedpoint.FixedPoint, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()
	defer func() { e.observe(OpCheckpoint, start, err) }()
	defer fixedpoint.Guard(&err)

	if !e.state.IsInitialized {
		return fixedpoint.Zero(), ErrNotInitialized
	}

	c := e.vault.SharePrice()
	d := e.newDraft()
	price = e.applyCheckpoint(&d, now, c)
	if err := e.checkInvariants(d.state, c); err != nil {
		return fixedpoint.Zero(), err
	}
	e.commit(d)
	return price, nil
}

// applyCheckpoint ensures the bucket containing now exists and folds matured
// cohorts out of the draft aggregates. Returns the bucket's recorded price.
func (e *Engine) applyCheckpoint(d *draft, now int64, sharePrice fixedpoint.FixedPoint) fixedpoint.FixedPoint {
	openPrice, matured := d.cps.Apply(now, sharePrice)
	for _, m := range matured {
		e.settleMatured(&d.state, m)
		if e.metrics != nil {
			e.metrics.CheckpointMaturations.Inc()
		}
		e.log.Info().
			Int64("origin", m.OriginTime).
			Int64("maturity", m.MaturityTime).
			Str("longs", m.Longs.String()).
			Str("shorts", m.Shorts.String()).
			Msg("cohort matured")
	}
	return openPrice
}

// settleMatured folds one matured cohort into the aggregates: the positions
// settle flat at the maturity bucket's recorded price, and the flat legs are
// mirrored into the share adjustment so curve pricing is unaffected.
func (e *Engine) settleMatured(st *State, m checkpoint.Matured) {
	if !m.Shorts.IsZero() {
		flat := m.Shorts.DivDown(m.SharePrice)
		st.ShortAverageMaturityTime = checkpoint.WeightedAverage(
			st.ShortAverageMaturityTime, st.ShortsOutstanding,
			fixedpoint.Scaled(m.MaturityTime), m.Shorts, false)
		st.ShortsOutstanding = st.ShortsOutstanding.Sub(m.Shorts)
		st.ShareReserves = st.ShareReserves.Add(flat)
		st.ShareAdjustment = st.ShareAdjustment.AddFixed(flat)
	}
	if !m.Longs.IsZero() {
		flat := m.Longs.DivDown(m.SharePrice)
		st.LongAverageMaturityTime = checkpoint.WeightedAverage(
			st.LongAverageMaturityTime, st.LongsOutstanding,
			fixedpoint.Scaled(m.MaturityTime), m.Longs, false)
		st.LongsOutstanding = st.LongsOutstanding.Sub(m.Longs)
		st.ShareReserves = st.ShareReserves.Sub(flat)
		st.ShareAdjustment = st.ShareAdjustment.SubFixed(flat)
	}
	st.LongExposure = st.LongExposure.Sub(m.Exposure)
}

// timeRemaining returns the normalized time remaining for a maturity,
// clamped to [0, 1].
func (e *Engine) timeRemaining(now, maturityTime int64) fixedpoint.FixedPoint {
	if now >= maturityTime {
		return fixedpoint.Zero()
	}
	remaining := fixedpoint.Scaled(maturityTime - now).
		DivDown(fixedpoint.Scaled(e.cfg.PositionDuration))
	return fixedpoint.Min(remaining, fixedpoint.One())
}

// timeRemainingScaled is timeRemaining for a fixed-point average maturity.
func (e *Engine) timeRemainingScaled(now int64, avgMaturity fixedpoint.FixedPoint) fixedpoint.FixedPoint {
	nowFP := fixedpoint.Scaled(now)
	if avgMaturity.Lte(nowFP) {
		return fixedpoint.Zero()
	}
	remaining := avgMaturity.Sub(nowFP).
		DivDown(fixedpoint.Scaled(e.cfg.PositionDuration))
	return fixedpoint.Min(remaining, fixedpoint.One())
}

// checkInvariants runs the post-mutation gates on a draft state.
func (e *Engine) checkInvariants(st State, sharePrice fixedpoint.FixedPoint) error {
	if fixedpoint.SignedFromFixed(st.ShareReserves).Cmp(st.ShareAdjustment) < 0 {
		return fmt.Errorf("%w: reserves %s, adjustment %s",
			ErrInvalidShareReserves, st.ShareReserves, st.ShareAdjustment)
	}
	if !e.isSolvent(st, sharePrice) {
		return ErrBaseBufferExceedsShareReserves
	}
	return nil
}
