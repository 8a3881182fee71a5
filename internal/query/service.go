package query

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// QueryService provides read-only access to the trade log and
// checkpoint projections in PostgreSQL. Live pool state is served
// straight from the engine by the HTTP layer; this service covers
// everything historical.
type QueryService struct {
	db *sql.DB
}

func NewQueryService(db *sql.DB) *QueryService {
	return &QueryService{db: db}
}

// GetTrade returns a single trade by id, or nil when unknown.
func (qs *QueryService) GetTrade(ctx context.Context, tradeID uuid.UUID) (*TradeResponse, error) {
	var t TradeResponse
	err := qs.db.QueryRowContext(ctx, `
		SELECT trade_id, operation, trader, maturity_time,
		       bond_amount, base_amount, spot_price, timestamp
		FROM term_pool.trades
		WHERE trade_id = $1
	`, tradeID).Scan(
		&t.TradeID, &t.Operation, &t.Trader, &t.MaturityTime,
		&t.BondAmount, &t.BaseAmount, &t.SpotPrice, &t.Timestamp,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get trade %s: %w", tradeID, err)
	}
	return &t, nil
}

// GetTradeHistory returns trades matching the optional trader and
// operation filters, newest first, with cursor-based pagination on
// the timestamp.
func (qs *QueryService) GetTradeHistory(
	ctx context.Context,
	trader *uuid.UUID,
	operation *string,
	limit int,
	before *time.Time,
) ([]TradeResponse, error) {
	query := `
		SELECT trade_id, operation, trader, maturity_time,
		       bond_amount, base_amount, spot_price, timestamp
		FROM term_pool.trades
		WHERE 1=1
	`
	args := []interface{}{}
	argIdx := 1

	if trader != nil {
		query += fmt.Sprintf(" AND trader = $%d", argIdx)
		args = append(args, *trader)
		argIdx++
	}

	if operation != nil {
		query += fmt.Sprintf(" AND operation = $%d", argIdx)
		args = append(args, *operation)
		argIdx++
	}

	if before != nil {
		query += fmt.Sprintf(" AND timestamp < $%d", argIdx)
		args = append(args, *before)
		argIdx++
	}

	query += " ORDER BY timestamp DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := qs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []TradeResponse
	for rows.Next() {
		var t TradeResponse
		if err := rows.Scan(
			&t.TradeID, &t.Operation, &t.Trader, &t.MaturityTime,
			&t.BondAmount, &t.BaseAmount, &t.SpotPrice, &t.Timestamp,
		); err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}

	return trades, rows.Err()
}

// GetCheckpoints returns checkpoint buckets, oldest first, with
// cursor-based pagination on the bucket time.
func (qs *QueryService) GetCheckpoints(
	ctx context.Context,
	limit int,
	afterBucket *int64,
) ([]CheckpointResponse, error) {
	query := `
		SELECT bucket_time, share_price, longs_outstanding, shorts_outstanding, exposure
		FROM term_pool.checkpoints
	`
	args := []interface{}{}
	argIdx := 1

	if afterBucket != nil {
		query += fmt.Sprintf(" WHERE bucket_time > $%d", argIdx)
		args = append(args, *afterBucket)
		argIdx++
	}

	query += " ORDER BY bucket_time ASC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := qs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var checkpoints []CheckpointResponse
	for rows.Next() {
		var c CheckpointResponse
		if err := rows.Scan(
			&c.BucketTime, &c.SharePrice, &c.LongsOutstanding,
			&c.ShortsOutstanding, &c.Exposure,
		); err != nil {
			return nil, err
		}
		checkpoints = append(checkpoints, c)
	}

	return checkpoints, rows.Err()
}

// GetVolume aggregates trade flow per operation since the given time.
func (qs *QueryService) GetVolume(ctx context.Context, since time.Time) ([]VolumeResponse, error) {
	rows, err := qs.db.QueryContext(ctx, `
		SELECT operation, COUNT(*), COALESCE(SUM(bond_amount), 0), COALESCE(SUM(base_amount), 0)
		FROM term_pool.trades
		WHERE timestamp >= $1
		GROUP BY operation
		ORDER BY operation
	`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var volumes []VolumeResponse
	for rows.Next() {
		var v VolumeResponse
		if err := rows.Scan(&v.Operation, &v.TradeCount, &v.BondVolume, &v.BaseVolume); err != nil {
			return nil, err
		}
		volumes = append(volumes, v)
	}

	return volumes, rows.Err()
}
