// Package checkpoint implements the time-bucketed share price snapshots the
// pool uses to backdate interest accounting. Every trade is priced as if it
// happened at the start of its checkpoint bucket; positions opened in a
// bucket form a cohort that matures together exactly one position duration
// later.
package checkpoint

import (
	"sort"

	"TermPool/internal/fixedpoint"
)

// Checkpoint is the record for one time bucket. SharePrice is the vault
// share price observed at the first interaction within the bucket. The
// cohort aggregates track positions opened in this bucket and are zeroed
// when the cohort matures, which makes settlement naturally idempotent.
type Checkpoint struct {
	SharePrice        fixedpoint.FixedPoint
	LongsOutstanding  fixedpoint.FixedPoint
	ShortsOutstanding fixedpoint.FixedPoint
	Exposure          fixedpoint.Signed
}

// Matured describes one cohort folded out of the pool aggregates during
// checkpoint application.
type Matured struct {
	// OriginTime is the bucket the cohort's positions were opened in.
	OriginTime int64
	// MaturityTime is OriginTime plus the position duration.
	MaturityTime int64
	// SharePrice is the share price recorded at MaturityTime, used to settle
	// the cohort flat.
	SharePrice fixedpoint.FixedPoint
	Longs      fixedpoint.FixedPoint
	Shorts     fixedpoint.FixedPoint
	Exposure   fixedpoint.Signed
}

// Manager owns the checkpoint map for one pool. It is not safe for
// concurrent use; the engine serializes access.
type Manager struct {
	checkpointDuration int64
	positionDuration   int64
	checkpoints        map[int64]Checkpoint
}

// NewManager builds an empty manager. Durations are in seconds and the
// position duration must be a multiple of the checkpoint duration so that
// maturities land on bucket boundaries.
func NewManager(checkpointDuration, positionDuration int64) *Manager {
	return &Manager{
		checkpointDuration: checkpointDuration,
		positionDuration:   positionDuration,
		checkpoints:        make(map[int64]Checkpoint),
	}
}

// BucketStart floors a timestamp to its checkpoint bucket.
func (m *Manager) BucketStart(ts int64) int64 {
	return ts / m.checkpointDuration * m.checkpointDuration
}

// PositionDuration returns the configured position duration in seconds.
func (m *Manager) PositionDuration() int64 { return m.positionDuration }

// CheckpointDuration returns the configured bucket width in seconds.
func (m *Manager) CheckpointDuration() int64 { return m.checkpointDuration }

// Get returns the checkpoint recorded for a bucket start time.
func (m *Manager) Get(time int64) (Checkpoint, bool) {
	c, ok := m.checkpoints[time]
	return c, ok
}

// Ensure records a checkpoint for the bucket containing ts if one does not
// exist yet and returns the bucket's recorded share price.
func (m *Manager) Ensure(ts int64, sharePrice fixedpoint.FixedPoint) fixedpoint.FixedPoint {
	bucket := m.BucketStart(ts)
	if c, ok := m.checkpoints[bucket]; ok {
		return c.SharePrice
	}
	m.checkpoints[bucket] = Checkpoint{SharePrice: sharePrice}
	return sharePrice
}

// Apply creates the checkpoint for the bucket containing now (if absent) and
// settles every cohort whose maturity has passed. It returns the bucket's
// recorded share price and the settled cohorts in origin-time order.
// Re-applying an existing bucket is a no-op for that bucket; cohorts settle
// at most once because settlement zeroes their aggregates.
func (m *Manager) Apply(now int64, sharePrice fixedpoint.FixedPoint) (fixedpoint.FixedPoint, []Matured) {
	openPrice := m.Ensure(now, sharePrice)

	var origins []int64
	for t, c := range m.checkpoints {
		if t+m.positionDuration > now {
			continue
		}
		if c.LongsOutstanding.IsZero() && c.ShortsOutstanding.IsZero() && c.Exposure.Sign() == 0 {
			continue
		}
		origins = append(origins, t)
	}
	sort.Slice(origins, func(i, j int) bool { return origins[i] < origins[j] })

	var matured []Matured
	for _, t := range origins {
		c := m.checkpoints[t]
		maturity := t + m.positionDuration
		// Record the settlement price at the maturity bucket so late closes
		// of matured positions can read it back.
		price := m.Ensure(maturity, sharePrice)
		matured = append(matured, Matured{
			OriginTime:   t,
			MaturityTime: maturity,
			SharePrice:   price,
			Longs:        c.LongsOutstanding,
			Shorts:       c.ShortsOutstanding,
			Exposure:     c.Exposure,
		})
		c.LongsOutstanding = fixedpoint.Zero()
		c.ShortsOutstanding = fixedpoint.Zero()
		c.Exposure = fixedpoint.SignedZero()
		m.checkpoints[t] = c
	}
	return openPrice, matured
}

// AddLong records bonds opened long in the given bucket.
func (m *Manager) AddLong(bucket int64, bonds fixedpoint.FixedPoint) {
	c := m.checkpoints[bucket]
	c.LongsOutstanding = c.LongsOutstanding.Add(bonds)
	m.checkpoints[bucket] = c
}

// RemoveLong records bonds closed before maturity from the bucket's cohort.
func (m *Manager) RemoveLong(bucket int64, bonds fixedpoint.FixedPoint) {
	c := m.checkpoints[bucket]
	c.LongsOutstanding = c.LongsOutstanding.Sub(bonds)
	m.checkpoints[bucket] = c
}

// AddShort records bonds opened short in the given bucket.
func (m *Manager) AddShort(bucket int64, bonds fixedpoint.FixedPoint) {
	c := m.checkpoints[bucket]
	c.ShortsOutstanding = c.ShortsOutstanding.Add(bonds)
	m.checkpoints[bucket] = c
}

// RemoveShort records bonds closed before maturity from the bucket's cohort.
func (m *Manager) RemoveShort(bucket int64, bonds fixedpoint.FixedPoint) {
	c := m.checkpoints[bucket]
	c.ShortsOutstanding = c.ShortsOutstanding.Sub(bonds)
	m.checkpoints[bucket] = c
}

// AddExposure shifts the bucket's exposure contribution by delta.
func (m *Manager) AddExposure(bucket int64, delta fixedpoint.Signed) {
	c := m.checkpoints[bucket]
	c.Exposure = c.Exposure.Add(delta)
	m.checkpoints[bucket] = c
}

// Clone returns a deep copy for transactional drafts. Checkpoint values are
// immutable once stored, so copying the map entries is sufficient.
func (m *Manager) Clone() *Manager {
	cp := make(map[int64]Checkpoint, len(m.checkpoints))
	for t, c := range m.checkpoints {
		cp[t] = c
	}
	return &Manager{
		checkpointDuration: m.checkpointDuration,
		positionDuration:   m.positionDuration,
		checkpoints:        cp,
	}
}

// Export returns a copy of the checkpoint map for snapshotting.
func (m *Manager) Export() map[int64]Checkpoint {
	out := make(map[int64]Checkpoint, len(m.checkpoints))
	for t, c := range m.checkpoints {
		out[t] = c
	}
	return out
}

// Import replaces the checkpoint map from a snapshot.
func (m *Manager) Import(snap map[int64]Checkpoint) {
	m.checkpoints = make(map[int64]Checkpoint, len(snap))
	for t, c := range snap {
		m.checkpoints[t] = c
	}
}

// Times returns the recorded bucket start times in ascending order.
func (m *Manager) Times() []int64 {
	out := make([]int64, 0, len(m.checkpoints))
	for t := range m.checkpoints {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// WeightedAverage folds one contribution into a weighted average:
//
//	(avg*weight ± value*delta) / (weight ± delta)
//
// A zero current weight returns value exactly; a fully decremented weight
// returns zero exactly. Used for the average maturity time bookkeeping.
func WeightedAverage(avg, weight, value, delta fixedpoint.FixedPoint, increasing bool) fixedpoint.FixedPoint {
	if increasing {
		if weight.IsZero() {
			return value
		}
		return avg.MulDown(weight).
			Add(value.MulDown(delta)).
			DivDown(weight.Add(delta))
	}
	remaining := weight.Sub(delta)
	if remaining.IsZero() {
		return fixedpoint.Zero()
	}
	return avg.MulDown(weight).
		Sub(value.MulDown(delta)).
		DivDown(remaining)
}
