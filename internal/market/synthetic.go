package market

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"time"
)

// SyntheticProvider produces deterministic random-walk bars for local
// development and tests. The walk is seeded per symbol so repeated runs
// see the same history.
type SyntheticProvider struct {
	seed int64
}

// NewSyntheticProvider creates a provider; the seed offsets every symbol's walk.
func NewSyntheticProvider(seed int64) *SyntheticProvider {
	return &SyntheticProvider{seed: seed}
}

// GetBars generates limit bars ending at end. With limit <= 0 the window
// start..end is filled at the timeframe's cadence.
func (p *SyntheticProvider) GetBars(ctx context.Context, symbol string, tf Timeframe, start, end time.Time, limit int) ([]Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	step := tf.Duration()
	if limit <= 0 {
		limit = int(end.Sub(start) / step)
	}
	if limit <= 0 {
		return nil, nil
	}
	if limit > 10000 {
		limit = 10000
	}

	h := fnv.New32a()
	h.Write([]byte(symbol))
	sum := int64(h.Sum32())
	rng := rand.New(rand.NewSource(p.seed + sum))
	base := 50 + float64(sum%400)

	price := base
	ts := end.Truncate(step).Add(-step * time.Duration(limit-1))
	bars := make([]Bar, 0, limit)
	for i := 0; i < limit; i++ {
		open := price
		drift := (rng.Float64()*2 - 1) * base * 0.004
		closePx := open + drift
		high := math.Max(open, closePx) + rng.Float64()*base*0.001
		low := math.Min(open, closePx) - rng.Float64()*base*0.001
		bars = append(bars, Bar{
			Timestamp: ts,
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closePx,
			Volume:    1000 + rng.Float64()*5000,
		})
		price = closePx
		ts = ts.Add(step)
	}
	return bars, nil
}
