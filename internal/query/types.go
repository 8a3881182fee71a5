package query

import (
	"time"

	"github.com/google/uuid"
)

// TradeResponse represents an applied trade for API queries. Amounts
// are 18-decimal strings, matching the wire format.
type TradeResponse struct {
	TradeID      uuid.UUID `json:"trade_id"`
	Operation    string    `json:"operation"`
	Trader       uuid.UUID `json:"trader"`
	MaturityTime int64     `json:"maturity_time"`
	BondAmount   string    `json:"bond_amount"`
	BaseAmount   string    `json:"base_amount"`
	SpotPrice    string    `json:"spot_price"`
	Timestamp    time.Time `json:"timestamp"`
}

// CheckpointResponse represents a checkpoint bucket for API queries.
type CheckpointResponse struct {
	BucketTime        int64  `json:"bucket_time"`
	SharePrice        string `json:"share_price"`
	LongsOutstanding  string `json:"longs_outstanding"`
	ShortsOutstanding string `json:"shorts_outstanding"`
	Exposure          string `json:"exposure"`
}

// PositionResponse is a trader's net open exposure in one maturity
// cohort, derived from the trade log at query time.
type PositionResponse struct {
	Trader       uuid.UUID `json:"trader"`
	MaturityTime int64     `json:"maturity_time"`
	// NetLongBonds is opened minus closed long face value.
	NetLongBonds string `json:"net_long_bonds"`
	// NetShortBonds is opened minus closed short face value.
	NetShortBonds string `json:"net_short_bonds"`
}

// VolumeResponse summarizes trade flow over a window.
type VolumeResponse struct {
	Operation  string `json:"operation"`
	TradeCount int64  `json:"trade_count"`
	BondVolume string `json:"bond_volume"`
	BaseVolume string `json:"base_volume"`
}
