package strategy

import (
	"encoding/json"
	"fmt"
	"math"

	"autotrader/internal/indicators"
	"autotrader/internal/market"
)

// KeltnerMode selects how the channel is traded.
type KeltnerMode string

const (
	// KeltnerBreakout trades channel escapes: strict inequality, so a
	// price sitting exactly on a band is HOLD.
	KeltnerBreakout KeltnerMode = "breakout"
	// KeltnerMeanReversion fades band touches: boundary inclusive.
	KeltnerMeanReversion KeltnerMode = "mean_reversion"
)

// KeltnerParams configures the Keltner channel family.
type KeltnerParams struct {
	EMAPeriod  int         `json:"ema_period"`
	ATRPeriod  int         `json:"atr_period"`
	Multiplier float64     `json:"multiplier"`
	Mode       KeltnerMode `json:"mode"`
}

// Keltner trades an EMA midline channel offset by a multiple of the ATR,
// in either breakout or mean-reversion mode.
type Keltner struct {
	params KeltnerParams
}

// NewKeltner builds a Keltner generator, applying defaults of EMA 20,
// ATR 10, multiplier 2.0 and breakout mode.
func NewKeltner(params json.RawMessage) (*Keltner, error) {
	p := KeltnerParams{EMAPeriod: 20, ATRPeriod: 10, Multiplier: 2.0, Mode: KeltnerBreakout}
	if err := unmarshalParams(params, &p); err != nil {
		return nil, fmt.Errorf("keltner params: %w", err)
	}
	if p.EMAPeriod < 1 || p.ATRPeriod < 1 {
		return nil, fmt.Errorf("keltner periods must be >= 1, got ema=%d atr=%d", p.EMAPeriod, p.ATRPeriod)
	}
	if p.Multiplier <= 0 {
		return nil, fmt.Errorf("keltner multiplier must be positive, got %.2f", p.Multiplier)
	}
	if p.Mode != KeltnerBreakout && p.Mode != KeltnerMeanReversion {
		return nil, fmt.Errorf("keltner mode must be %q or %q, got %q", KeltnerBreakout, KeltnerMeanReversion, p.Mode)
	}
	return &Keltner{params: p}, nil
}

func (s *Keltner) Family() Family { return FamilyKeltner }

func (s *Keltner) Snapshot(bars []market.Bar) (map[string]float64, error) {
	upper, middle, lower, err := indicators.Keltner(
		market.Highs(bars), market.Lows(bars), market.Closes(bars),
		s.params.EMAPeriod, s.params.ATRPeriod, s.params.Multiplier,
	)
	if err != nil {
		return nil, err
	}
	return map[string]float64{
		"kc_upper":  upper,
		"kc_middle": middle,
		"kc_lower":  lower,
	}, nil
}

func (s *Keltner) Evaluate(price float64, ind map[string]float64, hasPosition bool) Signal {
	upper := ind["kc_upper"]
	lower := ind["kc_lower"]

	if s.params.Mode == KeltnerMeanReversion {
		return s.evaluateMeanReversion(price, upper, lower, hasPosition)
	}
	return s.evaluateBreakout(price, upper, lower, hasPosition)
}

func (s *Keltner) evaluateBreakout(price, upper, lower float64, hasPosition bool) Signal {
	switch {
	case price > upper:
		if hasPosition {
			return hold(fmt.Sprintf("breakout above upper band (%.2f > %.2f) but position already open", price, upper))
		}
		strength := clamp(pctDistance(price, upper)*5, 0.3, 1.0)
		return Signal{
			Type:      Buy,
			Strength:  strength,
			Reasoning: fmt.Sprintf("Breakout above upper band: price %.2f > %.2f", price, upper),
		}

	case price < lower:
		if !hasPosition {
			return hold(fmt.Sprintf("breakdown below lower band (%.2f < %.2f) but no position to close", price, lower))
		}
		strength := clamp(pctDistance(price, lower)*5, 0.3, 1.0)
		return Signal{
			Type:      Sell,
			Strength:  strength,
			Reasoning: fmt.Sprintf("Breakdown below lower band: price %.2f < %.2f", price, lower),
		}

	default:
		return hold(fmt.Sprintf("price %.2f inside channel [%.2f, %.2f]", price, lower, upper))
	}
}

func (s *Keltner) evaluateMeanReversion(price, upper, lower float64, hasPosition bool) Signal {
	switch {
	case price <= lower:
		if hasPosition {
			return hold(fmt.Sprintf("lower band touched (%.2f <= %.2f) but position already open", price, lower))
		}
		strength := clamp(pctDistance(price, lower)*10, 0.3, 1.0)
		return Signal{
			Type:      Buy,
			Strength:  strength,
			Reasoning: fmt.Sprintf("Lower band touch: price %.2f <= %.2f", price, lower),
		}

	case price >= upper:
		if !hasPosition {
			return hold(fmt.Sprintf("upper band touched (%.2f >= %.2f) but no position to close", price, upper))
		}
		strength := clamp(pctDistance(price, upper)*10, 0.3, 1.0)
		return Signal{
			Type:      Sell,
			Strength:  strength,
			Reasoning: fmt.Sprintf("Upper band touch: price %.2f >= %.2f", price, upper),
		}

	default:
		return hold(fmt.Sprintf("price %.2f inside channel [%.2f, %.2f]", price, lower, upper))
	}
}

// pctDistance returns |price-band|/band as a percentage.
func pctDistance(price, band float64) float64 {
	if band == 0 {
		return 0
	}
	return math.Abs((price - band) / band * 100)
}
