package pool

import (
	"github.com/google/uuid"

	"TermPool/internal/fixedpoint"
)

// Operation names used in trade records, metrics labels, and event subjects.
const (
	OpOpenShort  = "open_short"
	OpCloseShort = "close_short"
	OpOpenLong   = "open_long"
	OpCloseLong  = "close_long"
	OpCheckpoint = "checkpoint"
)

// Trade is the record emitted for every applied mutation. It carries enough
// to reconstruct the monetary result without replaying the engine.
type Trade struct {
	ID           uuid.UUID
	Operation    string
	Trader       uuid.UUID
	MaturityTime int64
	// BondAmount is the face value traded.
	BondAmount fixedpoint.FixedPoint
	// BaseAmount is the base paid (opens) or received (closes) by the trader.
	BaseAmount fixedpoint.FixedPoint
	// SpotPrice is the pre-trade spot price.
	SpotPrice fixedpoint.FixedPoint
	// Timestamp is the operation's versioned input time, unix seconds.
	Timestamp int64
}

// OpenShortResult reports the outcome of OpenShort.
type OpenShortResult struct {
	TradeID      uuid.UUID
	MaturityTime int64
	// Deposit is the base collected from the trader.
	Deposit fixedpoint.FixedPoint
}

// CloseShortResult reports the outcome of CloseShort.
type CloseShortResult struct {
	TradeID uuid.UUID
	// Proceeds is the base paid to the trader.
	Proceeds fixedpoint.FixedPoint
}

// OpenLongResult reports the outcome of OpenLong.
type OpenLongResult struct {
	TradeID      uuid.UUID
	MaturityTime int64
	// BondProceeds is the face value minted to the trader.
	BondProceeds fixedpoint.FixedPoint
}

// CloseLongResult reports the outcome of CloseLong.
type CloseLongResult struct {
	TradeID uuid.UUID
	// Proceeds is the base paid to the trader.
	Proceeds fixedpoint.FixedPoint
}
