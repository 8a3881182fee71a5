package ingestion

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"TermPool/internal/event"
	"TermPool/internal/fixedpoint"
)

// Wire formats for command payloads. Amounts are 18-decimal strings so
// callers never lose precision to float encoding.

type commandHeader struct {
	CommandID string `json:"command_id"`
	Timestamp int64  `json:"timestamp"`
}

type initializeWire struct {
	commandHeader
	BaseContribution string `json:"base_contribution"`
	TargetRate       string `json:"target_rate"`
}

type openShortWire struct {
	commandHeader
	Trader     string `json:"trader"`
	BondAmount string `json:"bond_amount"`
	MaxDeposit string `json:"max_deposit"`
}

type closeShortWire struct {
	commandHeader
	Trader       string `json:"trader"`
	MaturityTime int64  `json:"maturity_time"`
	BondAmount   string `json:"bond_amount"`
	MinOutput    string `json:"min_output"`
}

type openLongWire struct {
	commandHeader
	Trader     string `json:"trader"`
	BaseAmount string `json:"base_amount"`
	MinOutput  string `json:"min_output"`
}

type closeLongWire struct {
	commandHeader
	Trader       string `json:"trader"`
	MaturityTime int64  `json:"maturity_time"`
	BondAmount   string `json:"bond_amount"`
	MinOutput    string `json:"min_output"`
}

type checkpointWire struct {
	commandHeader
}

type queueWithdrawalWire struct {
	commandHeader
	Provider string `json:"provider"`
	LPShares string `json:"lp_shares"`
}

type collectGovFeeWire struct {
	commandHeader
	Destination string `json:"destination"`
}

type pauseWire struct {
	commandHeader
	Paused bool `json:"paused"`
}

// CommandType extracts the command type from a subject, e.g.
// "term.pool.commands.open_short" yields "open_short".
func CommandType(subject string) string {
	idx := strings.LastIndex(subject, ".")
	if idx < 0 {
		return subject
	}
	return subject[idx+1:]
}

// ParseCommand decodes a raw command payload into a typed, validated
// command. Unparseable or invalid payloads are terminal errors: the
// caller should acknowledge and drop them rather than redeliver.
func ParseCommand(raw RawCommand) (event.Command, error) {
	cmdType := CommandType(raw.Subject)

	switch cmdType {
	case event.TypeInitialize:
		return parseInitialize(raw)
	case event.TypeOpenShort:
		return parseOpenShort(raw)
	case event.TypeCloseShort:
		return parseCloseShort(raw)
	case event.TypeOpenLong:
		return parseOpenLong(raw)
	case event.TypeCloseLong:
		return parseCloseLong(raw)
	case event.TypeCheckpoint:
		return parseCheckpoint(raw)
	case event.TypeQueueWithdrawal:
		return parseQueueWithdrawal(raw)
	case event.TypeCollectGovFee:
		return parseCollectGovFee(raw)
	case event.TypePause:
		return parsePause(raw)
	default:
		return nil, fmt.Errorf("unknown command type %q on subject %s", cmdType, raw.Subject)
	}
}

func parseMeta(h commandHeader, received time.Time) (event.Meta, error) {
	id, err := uuid.Parse(h.CommandID)
	if err != nil {
		return event.Meta{}, fmt.Errorf("invalid command_id %q: %w", h.CommandID, err)
	}
	ts := received
	if h.Timestamp > 0 {
		ts = time.Unix(h.Timestamp, 0).UTC()
	}
	return event.Meta{ID: id, Timestamp: ts}, nil
}

func parseTrader(s string) (uuid.UUID, error) {
	trader, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid trader %q: %w", s, err)
	}
	return trader, nil
}

func parseAmount(field, s string) (fixedpoint.FixedPoint, error) {
	v, err := fixedpoint.FromDec(s)
	if err != nil {
		return fixedpoint.Zero(), fmt.Errorf("invalid %s %q: %w", field, s, err)
	}
	return v, nil
}

// parseOptionalAmount treats an absent field as zero. Used for limit
// fields where zero means "no limit check" on min_output and "reject
// everything" would be wrong for max_deposit, so max_deposit is
// required and validated separately.
func parseOptionalAmount(field, s string) (fixedpoint.FixedPoint, error) {
	if s == "" {
		return fixedpoint.Zero(), nil
	}
	return parseAmount(field, s)
}

func parseInitialize(raw RawCommand) (event.Command, error) {
	var w initializeWire
	if err := json.Unmarshal(raw.Data, &w); err != nil {
		return nil, fmt.Errorf("unmarshal initialize: %w", err)
	}
	meta, err := parseMeta(w.commandHeader, raw.Timestamp)
	if err != nil {
		return nil, err
	}
	contribution, err := parseAmount("base_contribution", w.BaseContribution)
	if err != nil {
		return nil, err
	}
	rate, err := parseAmount("target_rate", w.TargetRate)
	if err != nil {
		return nil, err
	}
	cmd := event.Initialize{Meta: meta, BaseContribution: contribution, TargetRate: rate}
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("validate initialize: %w", err)
	}
	return cmd, nil
}

func parseOpenShort(raw RawCommand) (event.Command, error) {
	var w openShortWire
	if err := json.Unmarshal(raw.Data, &w); err != nil {
		return nil, fmt.Errorf("unmarshal open_short: %w", err)
	}
	meta, err := parseMeta(w.commandHeader, raw.Timestamp)
	if err != nil {
		return nil, err
	}
	trader, err := parseTrader(w.Trader)
	if err != nil {
		return nil, err
	}
	bondAmount, err := parseAmount("bond_amount", w.BondAmount)
	if err != nil {
		return nil, err
	}
	maxDeposit, err := parseAmount("max_deposit", w.MaxDeposit)
	if err != nil {
		return nil, err
	}
	cmd := event.OpenShort{Meta: meta, Trader: trader, BondAmount: bondAmount, MaxDeposit: maxDeposit}
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("validate open_short: %w", err)
	}
	return cmd, nil
}

func parseCloseShort(raw RawCommand) (event.Command, error) {
	var w closeShortWire
	if err := json.Unmarshal(raw.Data, &w); err != nil {
		return nil, fmt.Errorf("unmarshal close_short: %w", err)
	}
	meta, err := parseMeta(w.commandHeader, raw.Timestamp)
	if err != nil {
		return nil, err
	}
	trader, err := parseTrader(w.Trader)
	if err != nil {
		return nil, err
	}
	bondAmount, err := parseAmount("bond_amount", w.BondAmount)
	if err != nil {
		return nil, err
	}
	minOutput, err := parseOptionalAmount("min_output", w.MinOutput)
	if err != nil {
		return nil, err
	}
	cmd := event.CloseShort{
		Meta:         meta,
		Trader:       trader,
		MaturityTime: w.MaturityTime,
		BondAmount:   bondAmount,
		MinOutput:    minOutput,
	}
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("validate close_short: %w", err)
	}
	return cmd, nil
}

func parseOpenLong(raw RawCommand) (event.Command, error) {
	var w openLongWire
	if err := json.Unmarshal(raw.Data, &w); err != nil {
		return nil, fmt.Errorf("unmarshal open_long: %w", err)
	}
	meta, err := parseMeta(w.commandHeader, raw.Timestamp)
	if err != nil {
		return nil, err
	}
	trader, err := parseTrader(w.Trader)
	if err != nil {
		return nil, err
	}
	baseAmount, err := parseAmount("base_amount", w.BaseAmount)
	if err != nil {
		return nil, err
	}
	minOutput, err := parseOptionalAmount("min_output", w.MinOutput)
	if err != nil {
		return nil, err
	}
	cmd := event.OpenLong{Meta: meta, Trader: trader, BaseAmount: baseAmount, MinOutput: minOutput}
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("validate open_long: %w", err)
	}
	return cmd, nil
}

func parseCloseLong(raw RawCommand) (event.Command, error) {
	var w closeLongWire
	if err := json.Unmarshal(raw.Data, &w); err != nil {
		return nil, fmt.Errorf("unmarshal close_long: %w", err)
	}
	meta, err := parseMeta(w.commandHeader, raw.Timestamp)
	if err != nil {
		return nil, err
	}
	trader, err := parseTrader(w.Trader)
	if err != nil {
		return nil, err
	}
	bondAmount, err := parseAmount("bond_amount", w.BondAmount)
	if err != nil {
		return nil, err
	}
	minOutput, err := parseOptionalAmount("min_output", w.MinOutput)
	if err != nil {
		return nil, err
	}
	cmd := event.CloseLong{
		Meta:         meta,
		Trader:       trader,
		MaturityTime: w.MaturityTime,
		BondAmount:   bondAmount,
		MinOutput:    minOutput,
	}
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("validate close_long: %w", err)
	}
	return cmd, nil
}

func parseCheckpoint(raw RawCommand) (event.Command, error) {
	var w checkpointWire
	if err := json.Unmarshal(raw.Data, &w); err != nil {
		return nil, fmt.Errorf("unmarshal checkpoint: %w", err)
	}
	meta, err := parseMeta(w.commandHeader, raw.Timestamp)
	if err != nil {
		return nil, err
	}
	cmd := event.Checkpoint{Meta: meta}
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("validate checkpoint: %w", err)
	}
	return cmd, nil
}

func parseQueueWithdrawal(raw RawCommand) (event.Command, error) {
	var w queueWithdrawalWire
	if err := json.Unmarshal(raw.Data, &w); err != nil {
		return nil, fmt.Errorf("unmarshal queue_withdrawal: %w", err)
	}
	meta, err := parseMeta(w.commandHeader, raw.Timestamp)
	if err != nil {
		return nil, err
	}
	provider, err := uuid.Parse(w.Provider)
	if err != nil {
		return nil, fmt.Errorf("invalid provider %q: %w", w.Provider, err)
	}
	lpShares, err := parseAmount("lp_shares", w.LPShares)
	if err != nil {
		return nil, err
	}
	cmd := event.QueueWithdrawal{Meta: meta, Provider: provider, LPShares: lpShares}
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("validate queue_withdrawal: %w", err)
	}
	return cmd, nil
}

func parseCollectGovFee(raw RawCommand) (event.Command, error) {
	var w collectGovFeeWire
	if err := json.Unmarshal(raw.Data, &w); err != nil {
		return nil, fmt.Errorf("unmarshal collect_governance_fee: %w", err)
	}
	meta, err := parseMeta(w.commandHeader, raw.Timestamp)
	if err != nil {
		return nil, err
	}
	destination, err := uuid.Parse(w.Destination)
	if err != nil {
		return nil, fmt.Errorf("invalid destination %q: %w", w.Destination, err)
	}
	cmd := event.CollectGovFee{Meta: meta, Destination: destination}
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("validate collect_governance_fee: %w", err)
	}
	return cmd, nil
}

func parsePause(raw RawCommand) (event.Command, error) {
	var w pauseWire
	if err := json.Unmarshal(raw.Data, &w); err != nil {
		return nil, fmt.Errorf("unmarshal pause: %w", err)
	}
	meta, err := parseMeta(w.commandHeader, raw.Timestamp)
	if err != nil {
		return nil, err
	}
	cmd := event.Pause{Meta: meta, Paused: w.Paused}
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("validate pause: %w", err)
	}
	return cmd, nil
}
