package pool

import (
	"fmt"

	"github.com/google/uuid"

	"TermPool/internal/fixedpoint"
)

// QueueWithdrawal converts lpShares into withdrawal shares. The shares join
// the queue immediately and are paid down from idle capital, here and on
// every subsequent mutation, until fully redeemed.
func (e *Engine) QueueWithdrawal(lpShares fixedpoint.FixedPoint, now int64) (err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer fixedpoint.Guard(&err)

	if !e.state.IsInitialized {
		return ErrNotInitialized
	}
	if e.state.IsPaused {
		return ErrPoolPaused
	}
	if lpShares.IsZero() {
		return fmt.Errorf("pool: withdrawal of zero lp shares")
	}
	if lpShares.Gt(e.state.LPTotalSupply) {
		return fmt.Errorf("pool: withdrawal %s exceeds lp supply %s",
			lpShares, e.state.LPTotalSupply)
	}

	c := e.vault.SharePrice()
	d := e.newDraft()
	e.applyCheckpoint(&d, now, c)
	d.state.WithdrawalSharesOutstanding = d.state.WithdrawalSharesOutstanding.Add(lpShares)
	e.distributeExcessIdle(&d, c, now)

	if err := e.checkInvariants(d.state, c); err != nil {
		return err
	}
	e.commit(d)

	e.log.Info().
		Str("lp_shares", lpShares.String()).
		Str("ready", d.state.WithdrawalReadyToWithdraw.String()).
		Msg("withdrawal queued")
	return nil
}

// CollectGovernanceFee pays the accrued governance skim out of the vault to
// the destination and zeroes the accrual.
func (e *Engine) CollectGovernanceFee(destination uuid.UUID, now int64) (base fixedpoint.FixedPoint, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer fixedpoint.Guard(&err)

	if !e.state.IsInitialized {
		return fixedpoint.Zero(), ErrNotInitialized
	}
	accrued := e.state.GovernanceFeesAccrued
	if accrued.IsZero() {
		return fixedpoint.Zero(), nil
	}

	base, err = e.vault.Withdraw(accrued, destination)
	if err != nil {
		return fixedpoint.Zero(), fmt.Errorf("pool: vault withdraw: %w", err)
	}
	e.state.GovernanceFeesAccrued = fixedpoint.Zero()
	e.updateGauges()

	e.log.Info().
		Str("destination", destination.String()).
		Str("base", base.String()).
		Int64("at", now).
		Msg("governance fees collected")
	return base, nil
}
