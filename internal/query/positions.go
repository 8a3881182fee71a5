package query

import (
	"context"

	"github.com/google/uuid"
)

// GetPositions derives a trader's net open exposure per maturity
// cohort from the trade log. Opens add face value, closes subtract it;
// a cohort drops out once both nets are zero. Matured cohorts still
// appear until the trader closes, matching the engine's view that a
// matured position stays claimable.
func (qs *QueryService) GetPositions(ctx context.Context, trader uuid.UUID) ([]PositionResponse, error) {
	rows, err := qs.db.QueryContext(ctx, `
		SELECT maturity_time,
		       COALESCE(SUM(CASE WHEN operation = 'open_long'   THEN bond_amount
		                         WHEN operation = 'close_long'  THEN -bond_amount
		                         ELSE 0 END), 0) AS net_long,
		       COALESCE(SUM(CASE WHEN operation = 'open_short'  THEN bond_amount
		                         WHEN operation = 'close_short' THEN -bond_amount
		                         ELSE 0 END), 0) AS net_short
		FROM term_pool.trades
		WHERE trader = $1
		GROUP BY maturity_time
		HAVING SUM(CASE WHEN operation = 'open_long'   THEN bond_amount
		                WHEN operation = 'close_long'  THEN -bond_amount
		                ELSE 0 END) != 0
		    OR SUM(CASE WHEN operation = 'open_short'  THEN bond_amount
		                WHEN operation = 'close_short' THEN -bond_amount
		                ELSE 0 END) != 0
		ORDER BY maturity_time
	`, trader)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []PositionResponse
	for rows.Next() {
		var p PositionResponse
		p.Trader = trader
		if err := rows.Scan(&p.MaturityTime, &p.NetLongBonds, &p.NetShortBonds); err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}

	return positions, rows.Err()
}
