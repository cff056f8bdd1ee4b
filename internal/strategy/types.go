// Package strategy holds the signal generators. Each family is a pure
// decision function: indicator snapshot + position flag in, signal out.
// No family does I/O.
package strategy

import (
	"encoding/json"
	"fmt"

	"autotrader/internal/market"
)

// SignalType is the decision emitted by a generator.
type SignalType string

const (
	Buy  SignalType = "BUY"
	Sell SignalType = "SELL"
	Hold SignalType = "HOLD"
)

// Signal is one cycle's decision. Strength is 0.0 for HOLD and within
// [0.0, 1.0] otherwise.
type Signal struct {
	Type      SignalType `json:"signal_type"`
	Strength  float64    `json:"strength"`
	Reasoning string     `json:"reasoning"`
}

// Family identifies a signal-generation rule set.
type Family string

const (
	FamilyRSI           Family = "rsi"
	FamilyMACD          Family = "macd"
	FamilySMACross      Family = "sma_cross"
	FamilyBollinger     Family = "bollinger"
	FamilyMeanReversion Family = "mean_reversion"
	FamilyKeltner       Family = "keltner"
)

// Families returns every supported family.
func Families() []Family {
	return []Family{FamilyRSI, FamilyMACD, FamilySMACross, FamilyBollinger, FamilyMeanReversion, FamilyKeltner}
}

// Generator is one configured strategy family instance.
type Generator interface {
	// Family returns the rule set this generator implements.
	Family() Family
	// Snapshot computes the scalar indicator values the family needs from
	// a bar window. Only these scalars are persisted with the signal.
	Snapshot(bars []market.Bar) (map[string]float64, error)
	// Evaluate decides BUY/SELL/HOLD from the snapshot. Pure: same inputs,
	// same signal.
	Evaluate(price float64, ind map[string]float64, hasPosition bool) Signal
}

// New builds a generator for the given family from its JSON parameters.
// Unknown families and invalid parameters are configuration errors.
func New(family Family, params json.RawMessage) (Generator, error) {
	switch family {
	case FamilyRSI:
		return NewRSI(params)
	case FamilyMACD:
		return NewMACD(params)
	case FamilySMACross:
		return NewSMACross(params)
	case FamilyBollinger:
		return NewBollinger(params)
	case FamilyMeanReversion:
		return NewMeanReversion(params)
	case FamilyKeltner:
		return NewKeltner(params)
	default:
		return nil, fmt.Errorf("unknown strategy family: %q", family)
	}
}

func hold(reasoning string) Signal {
	return Signal{Type: Hold, Strength: 0, Reasoning: reasoning}
}

// clamp bounds v to [lo, hi].
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// capped bounds v to [0, hi] with no lower floor.
func capped(v, hi float64) float64 {
	if v < 0 {
		return 0
	}
	if v > hi {
		return hi
	}
	return v
}

func unmarshalParams(params json.RawMessage, into any) error {
	if len(params) == 0 {
		return nil
	}
	return json.Unmarshal(params, into)
}
