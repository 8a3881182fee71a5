package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"TermPool/internal/observability"
	"TermPool/internal/pool"
)

// Worker drains the engine's trade channel and batch-writes to Postgres.
// The trade channel uses blocking sends from the engine, so if this worker
// falls behind, the engine stalls rather than losing a trade.
type Worker struct {
	writer       *TradeLogWriter
	trades       <-chan pool.Trade
	batchSize    int
	flushTimeout time.Duration
	log          zerolog.Logger
	metrics      *observability.Metrics
}

func NewWorker(
	db *sql.DB,
	trades <-chan pool.Trade,
	batchSize int,
	flushTimeout time.Duration,
	log zerolog.Logger,
	metrics *observability.Metrics,
) *Worker {
	return &Worker{
		writer:       NewTradeLogWriter(db),
		trades:       trades,
		batchSize:    batchSize,
		flushTimeout: flushTimeout,
		log:          log,
		metrics:      metrics,
	}
}

// Run starts the worker loop. It batches incoming trades and flushes either
// when the batch is full or the flush timeout expires. Blocks until ctx is
// cancelled or the trade channel closes.
func (w *Worker) Run(ctx context.Context) error {
	batch := make([]TradeRow, 0, w.batchSize)

	timer := time.NewTimer(w.flushTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			if len(batch) > 0 {
				if err := w.flush(context.Background(), batch); err != nil {
					w.log.Error().Err(err).Msg("final flush failed")
				}
			}
			return ctx.Err()

		case t, ok := <-w.trades:
			if !ok {
				if len(batch) > 0 {
					if err := w.flush(context.Background(), batch); err != nil {
						w.log.Error().Err(err).Msg("final flush failed")
					}
				}
				return nil
			}

			batch = append(batch, NewTradeRow(t))
			if len(batch) >= w.batchSize {
				w.flushWithRetry(ctx, batch)
				batch = batch[:0]
				timer.Reset(w.flushTimeout)
			}

		case <-timer.C:
			if len(batch) > 0 {
				w.flushWithRetry(ctx, batch)
				batch = batch[:0]
			}
			timer.Reset(w.flushTimeout)
		}
	}
}

// flushWithRetry retries with exponential backoff. The worker never drops a
// batch: it retries until the write succeeds or the context is cancelled, in
// which case it makes one final attempt with a background context.
func (w *Worker) flushWithRetry(ctx context.Context, batch []TradeRow) {
	backoff := 100 * time.Millisecond
	const maxBackoff = 30 * time.Second

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			w.log.Warn().
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Int("trades", len(batch)).
				Msg("persistence retry")
			if w.metrics != nil {
				w.metrics.PersistRetry.Inc()
			}
			select {
			case <-ctx.Done():
				if err := w.flush(context.Background(), batch); err != nil {
					w.log.Error().Err(err).Msg("final flush on shutdown failed")
				}
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}

		if err := w.flush(ctx, batch); err == nil {
			if attempt > 0 {
				w.log.Info().Int("attempts", attempt).Msg("persistence flush recovered")
			}
			return
		}
	}
}

func (w *Worker) flush(ctx context.Context, batch []TradeRow) error {
	start := time.Now()

	tx, err := w.writer.db.BeginTx(ctx, nil)
	if err != nil {
		if w.metrics != nil {
			w.metrics.PersistErrors.WithLabelValues("tx_begin").Inc()
		}
		return err
	}
	defer tx.Rollback()

	if err := w.writer.WriteTradeBatch(ctx, tx, batch); err != nil {
		if w.metrics != nil {
			w.metrics.PersistErrors.WithLabelValues("write_trades").Inc()
		}
		return fmt.Errorf("write trade batch: %w", err)
	}

	if err := tx.Commit(); err != nil {
		if w.metrics != nil {
			w.metrics.PersistErrors.WithLabelValues("tx_commit").Inc()
		}
		return err
	}

	if w.metrics != nil {
		w.metrics.PersistBatchDur.Observe(time.Since(start).Seconds())
		w.metrics.PersistBatchSize.Observe(float64(len(batch)))
		w.metrics.PersistTradesWritten.Add(float64(len(batch)))
	}
	return nil
}

// ProjectCheckpoints writes the engine's current checkpoint map to the
// projection table. Called on a timer by the host rather than per trade:
// checkpoint aggregates change often but only the latest values matter.
func (w *Worker) ProjectCheckpoints(ctx context.Context, eng *pool.Engine) error {
	snap := eng.ExportCheckpoints()
	rows := make([]CheckpointRow, 0, len(snap))
	for bucket, c := range snap {
		rows = append(rows, NewCheckpointRow(bucket, c))
	}
	if err := w.writer.UpsertCheckpoints(ctx, rows); err != nil {
		if w.metrics != nil {
			w.metrics.PersistErrors.WithLabelValues("write_checkpoints").Inc()
		}
		return fmt.Errorf("upsert checkpoints: %w", err)
	}
	if w.metrics != nil {
		w.metrics.PersistCheckpointsWritten.Add(float64(len(rows)))
	}
	return nil
}
