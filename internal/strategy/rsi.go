package strategy

import (
	"encoding/json"
	"fmt"

	"autotrader/internal/indicators"
	"autotrader/internal/market"
)

// RSIParams configures the RSI overbought/oversold family.
type RSIParams struct {
	Period     int     `json:"period"`
	Oversold   float64 `json:"oversold"`
	Overbought float64 `json:"overbought"`
}

// RSI buys oversold and sells overbought.
// BUY when RSI < oversold and no position is open.
// SELL when RSI > overbought and a position is open.
type RSI struct {
	params RSIParams
}

// NewRSI builds an RSI generator, applying defaults of 14/30/70.
func NewRSI(params json.RawMessage) (*RSI, error) {
	p := RSIParams{Period: 14, Oversold: 30, Overbought: 70}
	if err := unmarshalParams(params, &p); err != nil {
		return nil, fmt.Errorf("rsi params: %w", err)
	}
	if p.Period < 2 {
		return nil, fmt.Errorf("rsi period must be >= 2, got %d", p.Period)
	}
	if p.Oversold >= p.Overbought {
		return nil, fmt.Errorf("rsi oversold %.2f must be below overbought %.2f", p.Oversold, p.Overbought)
	}
	return &RSI{params: p}, nil
}

func (s *RSI) Family() Family { return FamilyRSI }

func (s *RSI) Snapshot(bars []market.Bar) (map[string]float64, error) {
	rsi, err := indicators.RSI(market.Closes(bars), s.params.Period)
	if err != nil {
		return nil, err
	}
	return map[string]float64{"rsi": rsi}, nil
}

func (s *RSI) Evaluate(price float64, ind map[string]float64, hasPosition bool) Signal {
	rsi := ind["rsi"]

	switch {
	case rsi < s.params.Oversold:
		if hasPosition {
			return hold(fmt.Sprintf("RSI oversold (%.2f) but position already open", rsi))
		}
		strength := clamp((s.params.Oversold-rsi)/15, 0.3, 1.0)
		return Signal{
			Type:      Buy,
			Strength:  strength,
			Reasoning: fmt.Sprintf("RSI oversold: %.2f < %.2f", rsi, s.params.Oversold),
		}

	case rsi > s.params.Overbought:
		if !hasPosition {
			return hold(fmt.Sprintf("RSI overbought (%.2f) but no position to close", rsi))
		}
		strength := clamp((rsi-s.params.Overbought)/15, 0.3, 1.0)
		return Signal{
			Type:      Sell,
			Strength:  strength,
			Reasoning: fmt.Sprintf("RSI overbought: %.2f > %.2f", rsi, s.params.Overbought),
		}

	default:
		return hold(fmt.Sprintf("RSI neutral: %.2f", rsi))
	}
}
