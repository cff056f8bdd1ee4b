package strategy

import (
	"encoding/json"
	"fmt"
	"math"

	"autotrader/internal/indicators"
	"autotrader/internal/market"
)

// MACDParams configures the MACD momentum family.
type MACDParams struct {
	FastPeriod   int `json:"fast_period"`
	SlowPeriod   int `json:"slow_period"`
	SignalPeriod int `json:"signal_period"`
}

// MACD trades histogram direction confirmed by the MACD/signal relation.
// BUY when histogram > 0 and MACD > signal line and no position is open.
// SELL when histogram < 0 and MACD < signal line and a position is open.
type MACD struct {
	params MACDParams
}

// NewMACD builds a MACD generator, applying defaults of 12/26/9.
func NewMACD(params json.RawMessage) (*MACD, error) {
	p := MACDParams{FastPeriod: 12, SlowPeriod: 26, SignalPeriod: 9}
	if err := unmarshalParams(params, &p); err != nil {
		return nil, fmt.Errorf("macd params: %w", err)
	}
	if p.FastPeriod < 1 || p.SignalPeriod < 1 {
		return nil, fmt.Errorf("macd periods must be >= 1, got fast=%d signal=%d", p.FastPeriod, p.SignalPeriod)
	}
	if p.SlowPeriod <= p.FastPeriod {
		return nil, fmt.Errorf("macd slow period %d must exceed fast period %d", p.SlowPeriod, p.FastPeriod)
	}
	return &MACD{params: p}, nil
}

func (s *MACD) Family() Family { return FamilyMACD }

func (s *MACD) Snapshot(bars []market.Bar) (map[string]float64, error) {
	macd, signal, hist, err := indicators.MACD(market.Closes(bars), s.params.FastPeriod, s.params.SlowPeriod, s.params.SignalPeriod)
	if err != nil {
		return nil, err
	}
	return map[string]float64{
		"macd":           macd,
		"macd_signal":    signal,
		"macd_histogram": hist,
	}, nil
}

func (s *MACD) Evaluate(price float64, ind map[string]float64, hasPosition bool) Signal {
	macd := ind["macd"]
	signal := ind["macd_signal"]
	hist := ind["macd_histogram"]

	bullish := hist > 0 && macd > signal
	bearish := hist < 0 && macd < signal

	switch {
	case bullish:
		if hasPosition {
			return hold(fmt.Sprintf("MACD bullish (histogram %.4f) but position already open", hist))
		}
		strength := clamp(math.Abs(hist)*10, 0.3, 1.0)
		return Signal{
			Type:      Buy,
			Strength:  strength,
			Reasoning: fmt.Sprintf("MACD bullish: histogram %.4f > 0, MACD %.4f > signal %.4f", hist, macd, signal),
		}

	case bearish:
		if !hasPosition {
			return hold(fmt.Sprintf("MACD bearish (histogram %.4f) but no position to close", hist))
		}
		strength := clamp(math.Abs(hist)*10, 0.3, 1.0)
		return Signal{
			Type:      Sell,
			Strength:  strength,
			Reasoning: fmt.Sprintf("MACD bearish: histogram %.4f < 0, MACD %.4f < signal %.4f", hist, macd, signal),
		}

	default:
		return hold(fmt.Sprintf("MACD mixed: histogram %.4f, MACD %.4f, signal %.4f", hist, macd, signal))
	}
}
