package event

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"TermPool/internal/fixedpoint"
)

// Command types carried on the command subjects. Each maps to one
// engine operation.
const (
	TypeInitialize      = "initialize"
	TypeOpenShort       = "open_short"
	TypeCloseShort      = "close_short"
	TypeOpenLong        = "open_long"
	TypeCloseLong       = "close_long"
	TypeCheckpoint      = "checkpoint"
	TypeQueueWithdrawal = "queue_withdrawal"
	TypeCollectGovFee   = "collect_governance_fee"
	TypePause           = "pause"
)

// Command is a parsed, validated instruction for the pool engine.
type Command interface {
	Type() string
	CommandID() uuid.UUID
	Validate() error
}

// Meta is embedded in every command. Timestamp is the caller-supplied
// operation time; the consumer substitutes receive time when zero.
type Meta struct {
	ID        uuid.UUID
	Timestamp time.Time
}

func (m Meta) CommandID() uuid.UUID { return m.ID }

func (m Meta) validate() error {
	if m.ID == uuid.Nil {
		return fmt.Errorf("missing command_id")
	}
	return nil
}

// Initialize seeds an empty pool at a target fixed rate.
type Initialize struct {
	Meta
	BaseContribution fixedpoint.FixedPoint
	TargetRate       fixedpoint.FixedPoint
}

func (c Initialize) Type() string { return TypeInitialize }

func (c Initialize) Validate() error {
	if err := c.validate(); err != nil {
		return err
	}
	if c.BaseContribution.IsZero() {
		return fmt.Errorf("base_contribution must be positive")
	}
	if c.TargetRate.IsZero() {
		return fmt.Errorf("target_rate must be positive")
	}
	return nil
}

// OpenShort sells bondAmount of face value against the pool.
type OpenShort struct {
	Meta
	Trader     uuid.UUID
	BondAmount fixedpoint.FixedPoint
	MaxDeposit fixedpoint.FixedPoint
}

func (c OpenShort) Type() string { return TypeOpenShort }

func (c OpenShort) Validate() error {
	if err := c.validate(); err != nil {
		return err
	}
	if c.Trader == uuid.Nil {
		return fmt.Errorf("missing trader")
	}
	if c.BondAmount.IsZero() {
		return fmt.Errorf("bond_amount must be positive")
	}
	return nil
}

// CloseShort buys back a short position from a maturity cohort.
type CloseShort struct {
	Meta
	Trader       uuid.UUID
	MaturityTime int64
	BondAmount   fixedpoint.FixedPoint
	MinOutput    fixedpoint.FixedPoint
}

func (c CloseShort) Type() string { return TypeCloseShort }

func (c CloseShort) Validate() error {
	if err := c.validate(); err != nil {
		return err
	}
	if c.Trader == uuid.Nil {
		return fmt.Errorf("missing trader")
	}
	if c.MaturityTime <= 0 {
		return fmt.Errorf("maturity_time must be positive")
	}
	if c.BondAmount.IsZero() {
		return fmt.Errorf("bond_amount must be positive")
	}
	return nil
}

// OpenLong deposits baseAmount to buy bonds from the pool.
type OpenLong struct {
	Meta
	Trader     uuid.UUID
	BaseAmount fixedpoint.FixedPoint
	MinOutput  fixedpoint.FixedPoint
}

func (c OpenLong) Type() string { return TypeOpenLong }

func (c OpenLong) Validate() error {
	if err := c.validate(); err != nil {
		return err
	}
	if c.Trader == uuid.Nil {
		return fmt.Errorf("missing trader")
	}
	if c.BaseAmount.IsZero() {
		return fmt.Errorf("base_amount must be positive")
	}
	return nil
}

// CloseLong sells a long position back to the pool.
type CloseLong struct {
	Meta
	Trader       uuid.UUID
	MaturityTime int64
	BondAmount   fixedpoint.FixedPoint
	MinOutput    fixedpoint.FixedPoint
}

func (c CloseLong) Type() string { return TypeCloseLong }

func (c CloseLong) Validate() error {
	if err := c.validate(); err != nil {
		return err
	}
	if c.Trader == uuid.Nil {
		return fmt.Errorf("missing trader")
	}
	if c.MaturityTime <= 0 {
		return fmt.Errorf("maturity_time must be positive")
	}
	if c.BondAmount.IsZero() {
		return fmt.Errorf("bond_amount must be positive")
	}
	return nil
}

// Checkpoint forces a checkpoint mint at the command's timestamp.
type Checkpoint struct {
	Meta
}

func (c Checkpoint) Type() string { return TypeCheckpoint }

func (c Checkpoint) Validate() error { return c.validate() }

// QueueWithdrawal moves LP shares into the withdrawal queue.
type QueueWithdrawal struct {
	Meta
	Provider uuid.UUID
	LPShares fixedpoint.FixedPoint
}

func (c QueueWithdrawal) Type() string { return TypeQueueWithdrawal }

func (c QueueWithdrawal) Validate() error {
	if err := c.validate(); err != nil {
		return err
	}
	if c.Provider == uuid.Nil {
		return fmt.Errorf("missing provider")
	}
	if c.LPShares.IsZero() {
		return fmt.Errorf("lp_shares must be positive")
	}
	return nil
}

// CollectGovFee sweeps accrued governance fees to a destination.
type CollectGovFee struct {
	Meta
	Destination uuid.UUID
}

func (c CollectGovFee) Type() string { return TypeCollectGovFee }

func (c CollectGovFee) Validate() error {
	if err := c.validate(); err != nil {
		return err
	}
	if c.Destination == uuid.Nil {
		return fmt.Errorf("missing destination")
	}
	return nil
}

// Pause toggles the engine's pause flag.
type Pause struct {
	Meta
	Paused bool
}

func (c Pause) Type() string { return TypePause }

func (c Pause) Validate() error { return c.validate() }
