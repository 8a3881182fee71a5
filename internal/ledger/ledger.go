// Package ledger defines the position-token interface the pool engine mints
// and burns against, plus an in-memory implementation. Position tokens are
// fungible within an asset ID, which deterministically encodes the position
// side and maturity timestamp.
package ledger

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"TermPool/internal/fixedpoint"
)

// ErrInsufficientBalance is returned by Burn when the owner holds fewer
// tokens than requested.
var ErrInsufficientBalance = errors.New("ledger: insufficient balance")

// Kind is the position side encoded into an asset ID.
type Kind uint8

const (
	KindLong Kind = iota + 1
	KindShort
)

func (k Kind) String() string {
	switch k {
	case KindLong:
		return "long"
	case KindShort:
		return "short"
	default:
		return "unknown"
	}
}

// AssetID identifies one fungible position-token class.
type AssetID struct {
	Kind         Kind
	MaturityTime int64
}

// LongID builds the asset ID for longs maturing at the given timestamp.
func LongID(maturityTime int64) AssetID {
	return AssetID{Kind: KindLong, MaturityTime: maturityTime}
}

// ShortID builds the asset ID for shorts maturing at the given timestamp.
func ShortID(maturityTime int64) AssetID {
	return AssetID{Kind: KindShort, MaturityTime: maturityTime}
}

// String renders the canonical form used in logs and persistence rows,
// e.g. "short:1767225600".
func (id AssetID) String() string {
	return id.Kind.String() + ":" + strconv.FormatInt(id.MaturityTime, 10)
}

// Ledger is the balance layer the engine trusts for position accounting.
// Implementations must apply each call atomically.
type Ledger interface {
	Mint(id AssetID, to uuid.UUID, amount fixedpoint.FixedPoint) error
	Burn(id AssetID, from uuid.UUID, amount fixedpoint.FixedPoint) error
	BalanceOf(id AssetID, owner uuid.UUID) fixedpoint.FixedPoint
	TotalSupply(id AssetID) fixedpoint.FixedPoint
}

type holding struct {
	asset AssetID
	owner uuid.UUID
}

// Memory is the in-memory Ledger used by tests and local runs. Not safe for
// concurrent use; the engine serializes access.
type Memory struct {
	balances map[holding]fixedpoint.FixedPoint
	supply   map[AssetID]fixedpoint.FixedPoint
}

// NewMemory builds an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{
		balances: make(map[holding]fixedpoint.FixedPoint),
		supply:   make(map[AssetID]fixedpoint.FixedPoint),
	}
}

// Mint credits amount of the asset to the owner.
func (m *Memory) Mint(id AssetID, to uuid.UUID, amount fixedpoint.FixedPoint) error {
	h := holding{asset: id, owner: to}
	m.balances[h] = m.balances[h].Add(amount)
	m.supply[id] = m.supply[id].Add(amount)
	return nil
}

// Burn debits amount of the asset from the owner.
func (m *Memory) Burn(id AssetID, from uuid.UUID, amount fixedpoint.FixedPoint) error {
	h := holding{asset: id, owner: from}
	bal := m.balances[h]
	if bal.Lt(amount) {
		return fmt.Errorf("%w: %s holds %s of %s, need %s", ErrInsufficientBalance, from, bal, id, amount)
	}
	m.balances[h] = bal.Sub(amount)
	m.supply[id] = m.supply[id].Sub(amount)
	return nil
}

// BalanceOf returns the owner's balance of the asset.
func (m *Memory) BalanceOf(id AssetID, owner uuid.UUID) fixedpoint.FixedPoint {
	return m.balances[holding{asset: id, owner: owner}]
}

// TotalSupply returns the outstanding amount of the asset.
func (m *Memory) TotalSupply(id AssetID) fixedpoint.FixedPoint {
	return m.supply[id]
}
