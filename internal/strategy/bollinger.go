package strategy

import (
	"encoding/json"
	"fmt"
	"math"

	"autotrader/internal/indicators"
	"autotrader/internal/market"
)

// BollingerParams configures the Bollinger Bands family.
type BollingerParams struct {
	Period         int     `json:"period"`
	StdDev         float64 `json:"std_dev"`
	TouchTolerance float64 `json:"touch_tolerance"`
}

// Bollinger trades band touches.
// BUY when price is at or below lower*(1+tolerance) and no position is open.
// SELL when price is at or above upper*(1-tolerance) and a position is open.
type Bollinger struct {
	params BollingerParams
}

// NewBollinger builds a Bollinger generator, applying defaults of
// period 20, 2.0 standard deviations and 1% touch tolerance.
func NewBollinger(params json.RawMessage) (*Bollinger, error) {
	p := BollingerParams{Period: 20, StdDev: 2.0, TouchTolerance: 0.01}
	if err := unmarshalParams(params, &p); err != nil {
		return nil, fmt.Errorf("bollinger params: %w", err)
	}
	if p.Period < 2 {
		return nil, fmt.Errorf("bollinger period must be >= 2, got %d", p.Period)
	}
	if p.StdDev <= 0 {
		return nil, fmt.Errorf("bollinger std_dev must be positive, got %.2f", p.StdDev)
	}
	if p.TouchTolerance < 0 || p.TouchTolerance >= 1 {
		return nil, fmt.Errorf("bollinger touch_tolerance must be in [0, 1), got %.2f", p.TouchTolerance)
	}
	return &Bollinger{params: p}, nil
}

func (s *Bollinger) Family() Family { return FamilyBollinger }

func (s *Bollinger) Snapshot(bars []market.Bar) (map[string]float64, error) {
	upper, middle, lower, err := indicators.Bollinger(market.Closes(bars), s.params.Period, s.params.StdDev)
	if err != nil {
		return nil, err
	}
	return map[string]float64{
		"bb_upper":  upper,
		"bb_middle": middle,
		"bb_lower":  lower,
	}, nil
}

func (s *Bollinger) Evaluate(price float64, ind map[string]float64, hasPosition bool) Signal {
	upper := ind["bb_upper"]
	middle := ind["bb_middle"]
	lower := ind["bb_lower"]

	width := upper - lower
	if width <= 0 {
		return hold(fmt.Sprintf("degenerate band width at middle %.2f", middle))
	}

	// Strength scales with the distance from the middle band.
	strength := capped(2*math.Abs(price-middle)/width, 1.0)

	buyLine := lower * (1 + s.params.TouchTolerance)
	sellLine := upper * (1 - s.params.TouchTolerance)

	switch {
	case price <= buyLine:
		if hasPosition {
			return hold(fmt.Sprintf("lower band touched (price %.2f, band %.2f) but position already open", price, lower))
		}
		return Signal{
			Type:      Buy,
			Strength:  strength,
			Reasoning: fmt.Sprintf("Lower band touch: price %.2f <= %.2f (lower %.2f, tolerance %.1f%%)", price, buyLine, lower, s.params.TouchTolerance*100),
		}

	case price >= sellLine:
		if !hasPosition {
			return hold(fmt.Sprintf("upper band touched (price %.2f, band %.2f) but no position to close", price, upper))
		}
		return Signal{
			Type:      Sell,
			Strength:  strength,
			Reasoning: fmt.Sprintf("Upper band touch: price %.2f >= %.2f (upper %.2f, tolerance %.1f%%)", price, sellLine, upper, s.params.TouchTolerance*100),
		}

	default:
		return hold(fmt.Sprintf("price %.2f inside bands [%.2f, %.2f]", price, lower, upper))
	}
}
