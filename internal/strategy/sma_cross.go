package strategy

import (
	"encoding/json"
	"fmt"
	"math"

	"autotrader/internal/indicators"
	"autotrader/internal/market"
)

// SMACrossParams configures the moving-average crossover family.
type SMACrossParams struct {
	FastPeriod int `json:"fast_period"`
	SlowPeriod int `json:"slow_period"`
}

// SMACross detects a 2-bar crossover between a fast and a slow SMA.
// Golden cross (fast crosses above slow) → BUY when no position is open.
// Death cross (fast crosses below slow) → SELL when a position is open.
type SMACross struct {
	params SMACrossParams
}

// NewSMACross builds a crossover generator, applying defaults of 10/30.
func NewSMACross(params json.RawMessage) (*SMACross, error) {
	p := SMACrossParams{FastPeriod: 10, SlowPeriod: 30}
	if err := unmarshalParams(params, &p); err != nil {
		return nil, fmt.Errorf("sma_cross params: %w", err)
	}
	if p.FastPeriod < 1 {
		return nil, fmt.Errorf("sma_cross fast period must be >= 1, got %d", p.FastPeriod)
	}
	if p.SlowPeriod <= p.FastPeriod {
		return nil, fmt.Errorf("sma_cross slow period %d must exceed fast period %d", p.SlowPeriod, p.FastPeriod)
	}
	return &SMACross{params: p}, nil
}

func (s *SMACross) Family() Family { return FamilySMACross }

func (s *SMACross) Snapshot(bars []market.Bar) (map[string]float64, error) {
	prevFast, prevSlow, fast, slow, err := indicators.SMAPair(market.Closes(bars), s.params.FastPeriod, s.params.SlowPeriod)
	if err != nil {
		return nil, err
	}
	return map[string]float64{
		"sma_fast":      fast,
		"sma_slow":      slow,
		"sma_fast_prev": prevFast,
		"sma_slow_prev": prevSlow,
	}, nil
}

func (s *SMACross) Evaluate(price float64, ind map[string]float64, hasPosition bool) Signal {
	fast := ind["sma_fast"]
	slow := ind["sma_slow"]
	prevFast := ind["sma_fast_prev"]
	prevSlow := ind["sma_slow_prev"]

	golden := prevFast <= prevSlow && fast > slow
	death := prevFast >= prevSlow && fast < slow

	// Strength scales with the percentage gap between the averages.
	gapPct := 0.0
	if slow != 0 {
		gapPct = (fast - slow) / slow * 100
	}
	strength := capped(math.Abs(gapPct)*5, 1.0)

	switch {
	case golden:
		if hasPosition {
			return hold(fmt.Sprintf("golden cross (SMA%d %.2f > SMA%d %.2f) but position already open",
				s.params.FastPeriod, fast, s.params.SlowPeriod, slow))
		}
		return Signal{
			Type:      Buy,
			Strength:  strength,
			Reasoning: fmt.Sprintf("Golden cross: SMA%d %.2f > SMA%d %.2f", s.params.FastPeriod, fast, s.params.SlowPeriod, slow),
		}

	case death:
		if !hasPosition {
			return hold(fmt.Sprintf("death cross (SMA%d %.2f < SMA%d %.2f) but no position to close",
				s.params.FastPeriod, fast, s.params.SlowPeriod, slow))
		}
		return Signal{
			Type:      Sell,
			Strength:  strength,
			Reasoning: fmt.Sprintf("Death cross: SMA%d %.2f < SMA%d %.2f", s.params.FastPeriod, fast, s.params.SlowPeriod, slow),
		}

	default:
		return hold(fmt.Sprintf("no crossover: SMA%d %.2f vs SMA%d %.2f", s.params.FastPeriod, fast, s.params.SlowPeriod, slow))
	}
}
