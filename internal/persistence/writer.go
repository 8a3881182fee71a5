package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"TermPool/internal/checkpoint"
	"TermPool/internal/pool"
)

// TradeLogWriter writes applied trades and checkpoint projections to
// Postgres using multi-row INSERT batches. Writes are idempotent: the trade
// log conflicts on trade_id, the checkpoint projection upserts on
// bucket_time.
type TradeLogWriter struct {
	db *sql.DB
}

// TradeRow represents a row in term_pool.trades. Fixed-point amounts are
// stored as NUMERIC via their decimal string form.
type TradeRow struct {
	TradeID      uuid.UUID
	Operation    string
	Trader       uuid.UUID
	MaturityTime int64
	BondAmount   string
	BaseAmount   string
	SpotPrice    string
	Timestamp    time.Time
}

// CheckpointRow represents a row in term_pool.checkpoints.
type CheckpointRow struct {
	BucketTime        int64
	SharePrice        string
	LongsOutstanding  string
	ShortsOutstanding string
	Exposure          string
}

// NewTradeRow converts an applied trade into its persistence form.
func NewTradeRow(t pool.Trade) TradeRow {
	return TradeRow{
		TradeID:      t.ID,
		Operation:    t.Operation,
		Trader:       t.Trader,
		MaturityTime: t.MaturityTime,
		BondAmount:   t.BondAmount.String(),
		BaseAmount:   t.BaseAmount.String(),
		SpotPrice:    t.SpotPrice.String(),
		Timestamp:    time.Unix(t.Timestamp, 0).UTC(),
	}
}

// NewCheckpointRow converts a checkpoint bucket into its persistence form.
func NewCheckpointRow(bucketTime int64, c checkpoint.Checkpoint) CheckpointRow {
	return CheckpointRow{
		BucketTime:        bucketTime,
		SharePrice:        c.SharePrice.String(),
		LongsOutstanding:  c.LongsOutstanding.String(),
		ShortsOutstanding: c.ShortsOutstanding.String(),
		Exposure:          c.Exposure.String(),
	}
}

func NewTradeLogWriter(db *sql.DB) *TradeLogWriter {
	return &TradeLogWriter{db: db}
}

// DB exposes the underlying handle for transaction management.
func (w *TradeLogWriter) DB() *sql.DB { return w.db }

// WriteTradeBatch writes a batch of trades inside the given transaction.
func (w *TradeLogWriter) WriteTradeBatch(ctx context.Context, tx *sql.Tx, trades []TradeRow) error {
	if len(trades) == 0 {
		return nil
	}

	query := `INSERT INTO term_pool.trades
		(trade_id, operation, trader, maturity_time, bond_amount, base_amount, spot_price, timestamp)
		VALUES `

	values := make([]string, 0, len(trades))
	args := make([]interface{}, 0, len(trades)*8)

	for i, t := range trades {
		base := i * 8
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8,
		))
		args = append(args,
			t.TradeID, t.Operation, t.Trader, t.MaturityTime,
			t.BondAmount, t.BaseAmount, t.SpotPrice, t.Timestamp,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (trade_id) DO NOTHING"

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// UpsertCheckpoints writes checkpoint projections. Share prices are
// immutable once recorded; the cohort aggregates change as positions open,
// close, and mature, so the projection upserts them.
func (w *TradeLogWriter) UpsertCheckpoints(ctx context.Context, rows []CheckpointRow) error {
	if len(rows) == 0 {
		return nil
	}

	query := `INSERT INTO term_pool.checkpoints
		(bucket_time, share_price, longs_outstanding, shorts_outstanding, exposure)
		VALUES `

	values := make([]string, 0, len(rows))
	args := make([]interface{}, 0, len(rows)*5)

	for i, r := range rows {
		base := i * 5
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5,
		))
		args = append(args,
			r.BucketTime, r.SharePrice, r.LongsOutstanding, r.ShortsOutstanding, r.Exposure,
		)
	}

	query += strings.Join(values, ", ")
	query += ` ON CONFLICT (bucket_time) DO UPDATE SET
		longs_outstanding = EXCLUDED.longs_outstanding,
		shorts_outstanding = EXCLUDED.shorts_outstanding,
		exposure = EXCLUDED.exposure`

	_, err := w.db.ExecContext(ctx, query, args...)
	return err
}
