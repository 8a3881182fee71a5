// Package vault abstracts the yield source backing the pool. The engine
// only needs a share price oracle and deposit/withdraw primitives; concrete
// adapters for external yield sources live outside the core.
package vault

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"TermPool/internal/fixedpoint"
)

// ErrInsufficientShares is returned by Withdraw when the vault holds fewer
// pool shares than requested.
var ErrInsufficientShares = errors.New("vault: insufficient shares")

// Vault is the yield-source interface consumed by the engine. Share prices
// are in base per share and must be non-decreasing for well-behaved sources.
type Vault interface {
	// SharePrice returns the current price of one vault share in base.
	SharePrice() fixedpoint.FixedPoint
	// Deposit converts base into shares at the current price and returns the
	// shares received.
	Deposit(base fixedpoint.FixedPoint) (fixedpoint.FixedPoint, error)
	// Withdraw redeems shares for base on behalf of destination and returns
	// the base paid out.
	Withdraw(shares fixedpoint.FixedPoint, destination uuid.UUID) (fixedpoint.FixedPoint, error)
}

// Accruing is a deterministic in-memory vault for tests and local runs.
// Interest accrues only when Accrue is called, so scenarios control time
// explicitly.
type Accruing struct {
	price  fixedpoint.FixedPoint
	shares fixedpoint.FixedPoint
}

// NewAccruing builds a vault with the given starting share price.
func NewAccruing(initialPrice fixedpoint.FixedPoint) *Accruing {
	return &Accruing{price: initialPrice}
}

// SharePrice returns the current share price.
func (a *Accruing) SharePrice() fixedpoint.FixedPoint { return a.price }

// Accrue multiplies the share price by the given growth factor, e.g. 1.05
// for five percent interest.
func (a *Accruing) Accrue(factor fixedpoint.FixedPoint) {
	a.price = a.price.MulDown(factor)
}

// Deposit converts base to shares at the current price, rounding the shares
// received down.
func (a *Accruing) Deposit(base fixedpoint.FixedPoint) (fixedpoint.FixedPoint, error) {
	shares := base.DivDown(a.price)
	a.shares = a.shares.Add(shares)
	return shares, nil
}

// Withdraw redeems shares at the current price, rounding the base paid down.
func (a *Accruing) Withdraw(shares fixedpoint.FixedPoint, destination uuid.UUID) (fixedpoint.FixedPoint, error) {
	if a.shares.Lt(shares) {
		return fixedpoint.Zero(), fmt.Errorf("%w: have %s, need %s", ErrInsufficientShares, a.shares, shares)
	}
	a.shares = a.shares.Sub(shares)
	return shares.MulDown(a.price), nil
}

// SharesHeld reports the vault's outstanding pool shares.
func (a *Accruing) SharesHeld() fixedpoint.FixedPoint { return a.shares }
