package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

const (
	// CommandStream holds inbound pool commands.
	CommandStream = "TERM_POOL_COMMANDS"
	// CommandSubjectPrefix is the subject root for commands; the last
	// token is the command type.
	CommandSubjectPrefix = "term.pool.commands"
)

// RawCommand is a command message pulled off JetStream before parsing.
// AckFunc and NakFunc settle the delivery once the command has been
// applied or rejected.
type RawCommand struct {
	Subject   string
	Data      []byte
	Timestamp time.Time
	AckFunc   func() error
	NakFunc   func() error
}

// ConnectNATS connects with unlimited reconnects so a broker restart
// does not take the pool down.
func ConnectNATS(url string, log zerolog.Logger) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats at %s: %w", url, err)
	}
	return nc, nil
}

// EnsureCommandStream creates or updates the inbound command stream.
func EnsureCommandStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      CommandStream,
		Subjects:  []string{CommandSubjectPrefix + ".>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
	})
	if err != nil {
		return fmt.Errorf("ensure stream %s: %w", CommandStream, err)
	}
	return nil
}

// Consumer pulls commands from JetStream and hands them to the
// dispatcher as RawCommand values.
type Consumer struct {
	js       jetstream.JetStream
	outChan  chan<- RawCommand
	log      zerolog.Logger
	consumer jetstream.Consumer
	consCtx  jetstream.ConsumeContext
}

func NewConsumer(js jetstream.JetStream, outChan chan<- RawCommand, log zerolog.Logger) *Consumer {
	return &Consumer{js: js, outChan: outChan, log: log}
}

// Start creates a durable consumer over the command stream and begins
// delivering messages. Explicit acks with bounded redelivery: a command
// the dispatcher cannot settle within AckWait is redelivered up to
// MaxDeliver times.
func (c *Consumer) Start(ctx context.Context) error {
	cons, err := c.js.CreateOrUpdateConsumer(ctx, CommandStream, jetstream.ConsumerConfig{
		Durable:       "term-pool-engine",
		FilterSubject: CommandSubjectPrefix + ".>",
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       30 * time.Second,
		MaxDeliver:    5,
	})
	if err != nil {
		return fmt.Errorf("create consumer on %s: %w", CommandStream, err)
	}
	c.consumer = cons

	consCtx, err := cons.Consume(func(msg jetstream.Msg) {
		meta, err := msg.Metadata()
		received := time.Now().UTC()
		if err == nil {
			received = meta.Timestamp
		}
		c.outChan <- RawCommand{
			Subject:   msg.Subject(),
			Data:      msg.Data(),
			Timestamp: received,
			AckFunc:   msg.Ack,
			NakFunc:   msg.Nak,
		}
	})
	if err != nil {
		return fmt.Errorf("start consume: %w", err)
	}
	c.consCtx = consCtx

	c.log.Info().
		Str("stream", CommandStream).
		Str("filter", CommandSubjectPrefix+".>").
		Msg("command consumer started")
	return nil
}

// Stop halts message delivery. In-flight commands already handed to the
// dispatcher still settle through their ack functions.
func (c *Consumer) Stop() {
	if c.consCtx != nil {
		c.consCtx.Stop()
	}
	c.log.Info().Msg("command consumer stopped")
}
