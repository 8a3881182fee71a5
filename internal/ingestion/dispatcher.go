package ingestion

import (
	"context"

	"github.com/rs/zerolog"

	"TermPool/internal/event"
	"TermPool/internal/pool"
)

// Dispatcher drains the raw command channel, parses each command, and
// applies it to the engine. Commands settle exactly once: both applied
// and rejected commands are acked, since a rejection (slippage, pause,
// insolvency) is deterministic and redelivery would only repeat it.
type Dispatcher struct {
	engine  *pool.Engine
	rawChan <-chan RawCommand
	log     zerolog.Logger
}

func NewDispatcher(engine *pool.Engine, rawChan <-chan RawCommand, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{engine: engine, rawChan: rawChan, log: log}
}

// Run processes commands until ctx is cancelled or the channel closes.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-d.rawChan:
			if !ok {
				return nil
			}
			d.handle(raw)
		}
	}
}

func (d *Dispatcher) handle(raw RawCommand) {
	cmd, err := ParseCommand(raw)
	if err != nil {
		d.log.Warn().Err(err).Str("subject", raw.Subject).Msg("dropping unparseable command")
		d.settle(raw.AckFunc)
		return
	}

	applyErr := d.apply(cmd)
	if applyErr != nil {
		d.log.Warn().
			Err(applyErr).
			Str("command_id", cmd.CommandID().String()).
			Str("type", cmd.Type()).
			Msg("command rejected")
	}
	d.settle(raw.AckFunc)
}

func (d *Dispatcher) apply(cmd event.Command) error {
	switch c := cmd.(type) {
	case event.Initialize:
		_, err := d.engine.Initialize(c.BaseContribution, c.TargetRate, c.Timestamp.Unix())
		return err
	case event.OpenShort:
		_, err := d.engine.OpenShort(c.Trader, c.BondAmount, c.MaxDeposit, c.Timestamp.Unix())
		return err
	case event.CloseShort:
		_, err := d.engine.CloseShort(c.Trader, c.MaturityTime, c.BondAmount, c.MinOutput, c.Timestamp.Unix())
		return err
	case event.OpenLong:
		_, err := d.engine.OpenLong(c.Trader, c.BaseAmount, c.MinOutput, c.Timestamp.Unix())
		return err
	case event.CloseLong:
		_, err := d.engine.CloseLong(c.Trader, c.MaturityTime, c.BondAmount, c.MinOutput, c.Timestamp.Unix())
		return err
	case event.Checkpoint:
		_, err := d.engine.Checkpoint(c.Timestamp.Unix())
		return err
	case event.QueueWithdrawal:
		return d.engine.QueueWithdrawal(c.LPShares, c.Timestamp.Unix())
	case event.CollectGovFee:
		_, err := d.engine.CollectGovernanceFee(c.Destination, c.Timestamp.Unix())
		return err
	case event.Pause:
		d.engine.Pause(c.Paused)
		return nil
	default:
		d.log.Error().Str("type", cmd.Type()).Msg("no handler for command type")
		return nil
	}
}

func (d *Dispatcher) settle(ack func() error) {
	if ack == nil {
		return
	}
	if err := ack(); err != nil {
		d.log.Error().Err(err).Msg("ack failed")
	}
}
