package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"TermPool/internal/observability"
	"TermPool/internal/pool"
)

const (
	// TradeStream holds applied-trade notifications for downstream
	// consumers.
	TradeStream = "TERM_POOL_TRADES"
	// TradeSubjectPrefix is the subject root for applied trades; the
	// last token is the operation.
	TradeSubjectPrefix = "term.pool.trades"
)

// tradeWire is the published form of an applied trade. Amounts are
// 18-decimal strings, matching the command wire format.
type tradeWire struct {
	TradeID      string `json:"trade_id"`
	Operation    string `json:"operation"`
	Trader       string `json:"trader"`
	MaturityTime int64  `json:"maturity_time"`
	BondAmount   string `json:"bond_amount"`
	BaseAmount   string `json:"base_amount"`
	SpotPrice    string `json:"spot_price"`
	Timestamp    int64  `json:"timestamp"`
}

// EnsureTradeStream creates or updates the outbound trade stream.
func EnsureTradeStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      TradeStream,
		Subjects:  []string{TradeSubjectPrefix + ".>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
	})
	if err != nil {
		return fmt.Errorf("ensure stream %s: %w", TradeStream, err)
	}
	return nil
}

// Publisher fans applied trades out to JetStream, one subject per
// operation so consumers can filter by trade kind.
type Publisher struct {
	js      jetstream.JetStream
	trades  <-chan pool.Trade
	log     zerolog.Logger
	metrics *observability.Metrics
}

func NewPublisher(js jetstream.JetStream, trades <-chan pool.Trade, log zerolog.Logger, metrics *observability.Metrics) *Publisher {
	return &Publisher{js: js, trades: trades, log: log, metrics: metrics}
}

// Run publishes trades until ctx is cancelled or the channel closes.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case t, ok := <-p.trades:
			if !ok {
				return nil
			}
			p.publish(ctx, t)
		}
	}
}

func (p *Publisher) publish(ctx context.Context, t pool.Trade) {
	wire := tradeWire{
		TradeID:      t.ID.String(),
		Operation:    t.Operation,
		Trader:       t.Trader.String(),
		MaturityTime: t.MaturityTime,
		BondAmount:   t.BondAmount.String(),
		BaseAmount:   t.BaseAmount.String(),
		SpotPrice:    t.SpotPrice.String(),
		Timestamp:    t.Timestamp,
	}

	data, err := json.Marshal(wire)
	if err != nil {
		p.log.Error().Err(err).Str("trade_id", wire.TradeID).Msg("marshal trade")
		if p.metrics != nil {
			p.metrics.PublishErrors.Inc()
		}
		return
	}

	subject := TradeSubjectPrefix + "." + t.Operation
	if _, err := p.js.Publish(ctx, subject, data); err != nil {
		p.log.Error().Err(err).Str("subject", subject).Str("trade_id", wire.TradeID).Msg("publish trade")
		if p.metrics != nil {
			p.metrics.PublishErrors.Inc()
		}
		return
	}

	if p.metrics != nil {
		p.metrics.EventsPublished.WithLabelValues(t.Operation).Inc()
	}
}
