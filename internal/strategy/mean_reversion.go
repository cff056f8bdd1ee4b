package strategy

import (
	"encoding/json"
	"fmt"
	"math"

	"autotrader/internal/indicators"
	"autotrader/internal/market"
)

// Exit once the z-score has reverted to within half a standard deviation
// below the mean.
const meanReversionExitZ = -0.5

// MeanReversionParams configures the z-score mean-reversion family.
type MeanReversionParams struct {
	Window          int     `json:"window"`
	StdDevThreshold float64 `json:"std_dev_threshold"`
}

// MeanReversion buys statistically cheap prices and exits on reversion.
// BUY when z <= -std_dev_threshold and no position is open.
// SELL when holding and z >= -0.5.
type MeanReversion struct {
	params MeanReversionParams
}

// NewMeanReversion builds a mean-reversion generator, applying defaults
// of a 20-bar window and a 2.0 standard-deviation entry threshold.
func NewMeanReversion(params json.RawMessage) (*MeanReversion, error) {
	p := MeanReversionParams{Window: 20, StdDevThreshold: 2.0}
	if err := unmarshalParams(params, &p); err != nil {
		return nil, fmt.Errorf("mean_reversion params: %w", err)
	}
	if p.Window < 2 {
		return nil, fmt.Errorf("mean_reversion window must be >= 2, got %d", p.Window)
	}
	if p.StdDevThreshold <= 0 {
		return nil, fmt.Errorf("mean_reversion std_dev_threshold must be positive, got %.2f", p.StdDevThreshold)
	}
	return &MeanReversion{params: p}, nil
}

func (s *MeanReversion) Family() Family { return FamilyMeanReversion }

func (s *MeanReversion) Snapshot(bars []market.Bar) (map[string]float64, error) {
	z, mean, std, err := indicators.ZScore(market.Closes(bars), s.params.Window)
	if err != nil {
		return nil, err
	}
	return map[string]float64{
		"zscore":  z,
		"mean":    mean,
		"std_dev": std,
	}, nil
}

func (s *MeanReversion) Evaluate(price float64, ind map[string]float64, hasPosition bool) Signal {
	z := ind["zscore"]
	strength := capped(math.Abs(z)/3, 1.0)

	switch {
	case z <= -s.params.StdDevThreshold:
		if hasPosition {
			return hold(fmt.Sprintf("z-score %.2f below entry threshold but position already open", z))
		}
		return Signal{
			Type:      Buy,
			Strength:  strength,
			Reasoning: fmt.Sprintf("z-score %.2f <= entry threshold %.2f", z, -s.params.StdDevThreshold),
		}

	case hasPosition && z >= meanReversionExitZ:
		return Signal{
			Type:      Sell,
			Strength:  strength,
			Reasoning: fmt.Sprintf("z-score %.2f reverted above %.2f", z, meanReversionExitZ),
		}

	case hasPosition:
		return hold(fmt.Sprintf("holding through z-score %.2f", z))

	default:
		return hold(fmt.Sprintf("z-score %.2f above entry threshold %.2f", z, -s.params.StdDevThreshold))
	}
}
