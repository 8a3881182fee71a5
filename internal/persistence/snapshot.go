package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"TermPool/internal/checkpoint"
	"TermPool/internal/pool"
)

// SnapshotManager persists full pool state snapshots for warm restart. The
// trade log is the source of truth; snapshots let the host restore the
// engine without replaying every trade.
type SnapshotManager struct {
	db *sql.DB
}

// SnapshotData contains the engine's full state at a point in time.
type SnapshotData struct {
	State       pool.State                      `json:"state"`
	Checkpoints map[int64]checkpoint.Checkpoint `json:"checkpoints"`
	CreatedAt   time.Time                       `json:"created_at"`
}

func NewSnapshotManager(db *sql.DB) *SnapshotManager {
	return &SnapshotManager{db: db}
}

// Save persists a snapshot of the engine's current state.
func (sm *SnapshotManager) Save(ctx context.Context, eng *pool.Engine, at time.Time) error {
	snap := SnapshotData{
		State:       eng.PoolState(),
		Checkpoints: eng.ExportCheckpoints(),
		CreatedAt:   at.UTC(),
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	_, err = sm.db.ExecContext(ctx, `
		INSERT INTO term_pool.snapshots (snapshot_id, data, size_bytes, created_at)
		VALUES ($1, $2, $3, $4)
	`, uuid.New(), data, len(data), snap.CreatedAt)
	return err
}

// LoadLatest loads the most recent snapshot, or nil on cold start.
func (sm *SnapshotManager) LoadLatest(ctx context.Context) (*SnapshotData, error) {
	row := sm.db.QueryRowContext(ctx, `
		SELECT data FROM term_pool.snapshots
		ORDER BY created_at DESC
		LIMIT 1
	`)

	var data []byte
	if err := row.Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	var snap SnapshotData
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// Restore applies a snapshot to the engine.
func (snap *SnapshotData) Restore(eng *pool.Engine) {
	eng.Restore(snap.State)
	eng.RestoreCheckpoints(snap.Checkpoints)
}
