package strategy

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"autotrader/internal/indicators"
	"autotrader/internal/market"
)

func mustNew(t *testing.T, family Family, params string) Generator {
	t.Helper()
	gen, err := New(family, json.RawMessage(params))
	if err != nil {
		t.Fatalf("New(%s) error: %v", family, err)
	}
	return gen
}

func barsFromCloses(closes []float64) []market.Bar {
	bars := make([]market.Bar, len(closes))
	start := time.Date(2025, 6, 2, 14, 30, 0, 0, time.UTC)
	for i, c := range closes {
		bars[i] = market.Bar{
			Timestamp: start.Add(time.Duration(i) * time.Minute),
			Open:      c,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
			Volume:    1000,
		}
	}
	return bars
}

func TestRSISignals(t *testing.T) {
	gen := mustNew(t, FamilyRSI, `{"period": 14, "oversold": 30, "overbought": 70}`)

	t.Run("oversold without position buys", func(t *testing.T) {
		sig := gen.Evaluate(100, map[string]float64{"rsi": 25}, false)
		if sig.Type != Buy {
			t.Fatalf("signal=%v, expected BUY", sig.Type)
		}
		if sig.Strength < 0.3 {
			t.Fatalf("strength=%v, expected >= 0.3", sig.Strength)
		}
		if want := (30.0 - 25.0) / 15.0; math.Abs(sig.Strength-want) > 1e-9 {
			t.Fatalf("strength=%v, expected %v", sig.Strength, want)
		}
		if !strings.Contains(sig.Reasoning, "oversold") {
			t.Fatalf("reasoning %q does not mention oversold", sig.Reasoning)
		}
	})

	t.Run("oversold with position holds", func(t *testing.T) {
		sig := gen.Evaluate(100, map[string]float64{"rsi": 25}, true)
		if sig.Type != Hold || sig.Strength != 0 {
			t.Fatalf("signal=%v strength=%v, expected HOLD 0.0", sig.Type, sig.Strength)
		}
	})

	t.Run("overbought with position sells", func(t *testing.T) {
		sig := gen.Evaluate(100, map[string]float64{"rsi": 80}, true)
		if sig.Type != Sell {
			t.Fatalf("signal=%v, expected SELL", sig.Type)
		}
		if want := (80.0 - 70.0) / 15.0; math.Abs(sig.Strength-want) > 1e-9 {
			t.Fatalf("strength=%v, expected %v", sig.Strength, want)
		}
	})

	t.Run("overbought without position holds", func(t *testing.T) {
		sig := gen.Evaluate(100, map[string]float64{"rsi": 80}, false)
		if sig.Type != Hold || sig.Strength != 0 {
			t.Fatalf("signal=%v strength=%v, expected HOLD 0.0", sig.Type, sig.Strength)
		}
	})

	t.Run("deep oversold caps at 1.0", func(t *testing.T) {
		sig := gen.Evaluate(100, map[string]float64{"rsi": 2}, false)
		if sig.Strength != 1.0 {
			t.Fatalf("strength=%v, expected 1.0", sig.Strength)
		}
	})
}

func TestMACDSignals(t *testing.T) {
	gen := mustNew(t, FamilyMACD, "")

	t.Run("bullish without position buys with floor", func(t *testing.T) {
		ind := map[string]float64{"macd": 1.0, "macd_signal": 0.98, "macd_histogram": 0.02}
		sig := gen.Evaluate(100, ind, false)
		if sig.Type != Buy {
			t.Fatalf("signal=%v, expected BUY", sig.Type)
		}
		if sig.Strength != 0.3 {
			t.Fatalf("strength=%v, expected floor 0.3", sig.Strength)
		}
	})

	t.Run("large histogram caps at 1.0", func(t *testing.T) {
		ind := map[string]float64{"macd": 2.0, "macd_signal": 1.5, "macd_histogram": 0.5}
		sig := gen.Evaluate(100, ind, false)
		if sig.Strength != 1.0 {
			t.Fatalf("strength=%v, expected 1.0", sig.Strength)
		}
	})

	t.Run("bullish with position holds", func(t *testing.T) {
		ind := map[string]float64{"macd": 1.0, "macd_signal": 0.98, "macd_histogram": 0.02}
		sig := gen.Evaluate(100, ind, true)
		if sig.Type != Hold || sig.Strength != 0 {
			t.Fatalf("signal=%v strength=%v, expected HOLD 0.0", sig.Type, sig.Strength)
		}
	})

	t.Run("bearish with position sells", func(t *testing.T) {
		ind := map[string]float64{"macd": -1.0, "macd_signal": -0.95, "macd_histogram": -0.05}
		sig := gen.Evaluate(100, ind, true)
		if sig.Type != Sell {
			t.Fatalf("signal=%v, expected SELL", sig.Type)
		}
		if want := 0.5; math.Abs(sig.Strength-want) > 1e-9 {
			t.Fatalf("strength=%v, expected %v", sig.Strength, want)
		}
	})

	t.Run("bearish without position holds", func(t *testing.T) {
		ind := map[string]float64{"macd": -1.0, "macd_signal": -0.95, "macd_histogram": -0.05}
		sig := gen.Evaluate(100, ind, false)
		if sig.Type != Hold || sig.Strength != 0 {
			t.Fatalf("signal=%v strength=%v, expected HOLD 0.0", sig.Type, sig.Strength)
		}
	})

	t.Run("histogram and line disagreeing holds", func(t *testing.T) {
		ind := map[string]float64{"macd": 0.9, "macd_signal": 1.0, "macd_histogram": 0.02}
		sig := gen.Evaluate(100, ind, false)
		if sig.Type != Hold || sig.Strength != 0 {
			t.Fatalf("signal=%v strength=%v, expected HOLD 0.0", sig.Type, sig.Strength)
		}
	})
}

func TestSMACrossSignals(t *testing.T) {
	gen := mustNew(t, FamilySMACross, `{"fast_period": 10, "slow_period": 30}`)

	t.Run("golden cross without position buys", func(t *testing.T) {
		ind := map[string]float64{
			"sma_fast": 100.1, "sma_slow": 100,
			"sma_fast_prev": 99.9, "sma_slow_prev": 100,
		}
		sig := gen.Evaluate(100.1, ind, false)
		if sig.Type != Buy {
			t.Fatalf("signal=%v, expected BUY", sig.Type)
		}
		// 0.1% gap scaled by 5.
		if want := 0.1 / 100 * 100 * 5; math.Abs(sig.Strength-want) > 1e-6 {
			t.Fatalf("strength=%v, expected %v", sig.Strength, want)
		}
		if !strings.Contains(sig.Reasoning, "Golden cross") {
			t.Fatalf("reasoning %q does not mention the cross", sig.Reasoning)
		}
	})

	t.Run("golden cross with position holds", func(t *testing.T) {
		ind := map[string]float64{
			"sma_fast": 100.1, "sma_slow": 100,
			"sma_fast_prev": 99.9, "sma_slow_prev": 100,
		}
		sig := gen.Evaluate(100.1, ind, true)
		if sig.Type != Hold || sig.Strength != 0 {
			t.Fatalf("signal=%v strength=%v, expected HOLD 0.0", sig.Type, sig.Strength)
		}
	})

	t.Run("death cross with position sells", func(t *testing.T) {
		ind := map[string]float64{
			"sma_fast": 99.9, "sma_slow": 100,
			"sma_fast_prev": 100.1, "sma_slow_prev": 100,
		}
		sig := gen.Evaluate(99.9, ind, true)
		if sig.Type != Sell {
			t.Fatalf("signal=%v, expected SELL", sig.Type)
		}
	})

	t.Run("death cross without position holds", func(t *testing.T) {
		ind := map[string]float64{
			"sma_fast": 99.9, "sma_slow": 100,
			"sma_fast_prev": 100.1, "sma_slow_prev": 100,
		}
		sig := gen.Evaluate(99.9, ind, false)
		if sig.Type != Hold || sig.Strength != 0 {
			t.Fatalf("signal=%v strength=%v, expected HOLD 0.0", sig.Type, sig.Strength)
		}
	})

	t.Run("no crossover holds", func(t *testing.T) {
		ind := map[string]float64{
			"sma_fast": 101, "sma_slow": 100,
			"sma_fast_prev": 101, "sma_slow_prev": 100,
		}
		sig := gen.Evaluate(101, ind, false)
		if sig.Type != Hold || sig.Strength != 0 {
			t.Fatalf("signal=%v strength=%v, expected HOLD 0.0", sig.Type, sig.Strength)
		}
	})
}

func TestBollingerSignals(t *testing.T) {
	gen := mustNew(t, FamilyBollinger, `{"period": 20, "std_dev": 2.0, "touch_tolerance": 0.01}`)
	ind := map[string]float64{"bb_upper": 102, "bb_middle": 100, "bb_lower": 98}

	t.Run("lower touch within tolerance buys", func(t *testing.T) {
		// 98.5 <= 98 * 1.01.
		sig := gen.Evaluate(98.5, ind, false)
		if sig.Type != Buy {
			t.Fatalf("signal=%v, expected BUY", sig.Type)
		}
		if want := 2 * 1.5 / 4; math.Abs(sig.Strength-want) > 1e-9 {
			t.Fatalf("strength=%v, expected %v", sig.Strength, want)
		}
	})

	t.Run("lower touch with position holds", func(t *testing.T) {
		sig := gen.Evaluate(98.5, ind, true)
		if sig.Type != Hold || sig.Strength != 0 {
			t.Fatalf("signal=%v strength=%v, expected HOLD 0.0", sig.Type, sig.Strength)
		}
	})

	t.Run("upper touch with position sells", func(t *testing.T) {
		// 101.5 >= 102 * 0.99.
		sig := gen.Evaluate(101.5, ind, true)
		if sig.Type != Sell {
			t.Fatalf("signal=%v, expected SELL", sig.Type)
		}
	})

	t.Run("upper touch without position holds", func(t *testing.T) {
		sig := gen.Evaluate(101.5, ind, false)
		if sig.Type != Hold || sig.Strength != 0 {
			t.Fatalf("signal=%v strength=%v, expected HOLD 0.0", sig.Type, sig.Strength)
		}
	})

	t.Run("middle zone holds", func(t *testing.T) {
		sig := gen.Evaluate(100, ind, false)
		if sig.Type != Hold || sig.Strength != 0 {
			t.Fatalf("signal=%v strength=%v, expected HOLD 0.0", sig.Type, sig.Strength)
		}
	})
}

func TestMeanReversionSignals(t *testing.T) {
	gen := mustNew(t, FamilyMeanReversion, `{"window": 20, "std_dev_threshold": 2.0}`)

	t.Run("deep negative z without position buys", func(t *testing.T) {
		sig := gen.Evaluate(95, map[string]float64{"zscore": -2.5}, false)
		if sig.Type != Buy {
			t.Fatalf("signal=%v, expected BUY", sig.Type)
		}
		if want := 2.5 / 3; math.Abs(sig.Strength-want) > 1e-9 {
			t.Fatalf("strength=%v, expected %v", sig.Strength, want)
		}
	})

	t.Run("deep negative z with position holds", func(t *testing.T) {
		sig := gen.Evaluate(95, map[string]float64{"zscore": -2.5}, true)
		if sig.Type != Hold || sig.Strength != 0 {
			t.Fatalf("signal=%v strength=%v, expected HOLD 0.0", sig.Type, sig.Strength)
		}
	})

	t.Run("reverted z while holding sells without floor", func(t *testing.T) {
		sig := gen.Evaluate(100, map[string]float64{"zscore": -0.1}, true)
		if sig.Type != Sell {
			t.Fatalf("signal=%v, expected SELL", sig.Type)
		}
		if want := 0.1 / 3; math.Abs(sig.Strength-want) > 1e-9 {
			t.Fatalf("strength=%v, expected %v", sig.Strength, want)
		}
	})

	t.Run("partially reverted z while holding holds", func(t *testing.T) {
		sig := gen.Evaluate(98, map[string]float64{"zscore": -1.2}, true)
		if sig.Type != Hold || sig.Strength != 0 {
			t.Fatalf("signal=%v strength=%v, expected HOLD 0.0", sig.Type, sig.Strength)
		}
	})

	t.Run("shallow z without position holds", func(t *testing.T) {
		sig := gen.Evaluate(99, map[string]float64{"zscore": -1.0}, false)
		if sig.Type != Hold || sig.Strength != 0 {
			t.Fatalf("signal=%v strength=%v, expected HOLD 0.0", sig.Type, sig.Strength)
		}
	})
}

func TestKeltnerBreakoutBoundaries(t *testing.T) {
	gen := mustNew(t, FamilyKeltner, `{"mode": "breakout"}`)
	ind := map[string]float64{"kc_upper": 104, "kc_middle": 100, "kc_lower": 96}

	t.Run("price exactly on upper band holds", func(t *testing.T) {
		sig := gen.Evaluate(104, ind, false)
		if sig.Type != Hold || sig.Strength != 0 {
			t.Fatalf("signal=%v strength=%v, expected HOLD 0.0", sig.Type, sig.Strength)
		}
	})

	t.Run("price epsilon above upper band buys", func(t *testing.T) {
		sig := gen.Evaluate(104.0001, ind, false)
		if sig.Type != Buy {
			t.Fatalf("signal=%v, expected BUY", sig.Type)
		}
		if sig.Strength != 0.3 {
			t.Fatalf("strength=%v, expected floor 0.3", sig.Strength)
		}
	})

	t.Run("breakout with position holds", func(t *testing.T) {
		sig := gen.Evaluate(105, ind, true)
		if sig.Type != Hold || sig.Strength != 0 {
			t.Fatalf("signal=%v strength=%v, expected HOLD 0.0", sig.Type, sig.Strength)
		}
	})

	t.Run("breakdown with position sells", func(t *testing.T) {
		sig := gen.Evaluate(95, ind, true)
		if sig.Type != Sell {
			t.Fatalf("signal=%v, expected SELL", sig.Type)
		}
	})

	t.Run("breakdown without position holds", func(t *testing.T) {
		sig := gen.Evaluate(95, ind, false)
		if sig.Type != Hold || sig.Strength != 0 {
			t.Fatalf("signal=%v strength=%v, expected HOLD 0.0", sig.Type, sig.Strength)
		}
	})
}

func TestKeltnerMeanReversionBoundaries(t *testing.T) {
	gen := mustNew(t, FamilyKeltner, `{"mode": "mean_reversion"}`)
	ind := map[string]float64{"kc_upper": 104, "kc_middle": 100, "kc_lower": 96}

	t.Run("price exactly on lower band buys", func(t *testing.T) {
		sig := gen.Evaluate(96, ind, false)
		if sig.Type != Buy {
			t.Fatalf("signal=%v, expected BUY", sig.Type)
		}
		if sig.Strength != 0.3 {
			t.Fatalf("strength=%v, expected floor 0.3", sig.Strength)
		}
	})

	t.Run("price exactly on upper band while holding sells", func(t *testing.T) {
		sig := gen.Evaluate(104, ind, true)
		if sig.Type != Sell {
			t.Fatalf("signal=%v, expected SELL", sig.Type)
		}
	})

	t.Run("inside channel holds", func(t *testing.T) {
		sig := gen.Evaluate(100, ind, false)
		if sig.Type != Hold || sig.Strength != 0 {
			t.Fatalf("signal=%v strength=%v, expected HOLD 0.0", sig.Type, sig.Strength)
		}
	})
}

// Every family must hold with zero strength when the indicator sits strictly
// between its decision thresholds.
func TestNeutralZoneHolds(t *testing.T) {
	cases := []struct {
		name   string
		family Family
		params string
		ind    map[string]float64
		price  float64
	}{
		{"rsi", FamilyRSI, "", map[string]float64{"rsi": 50}, 100},
		{"macd", FamilyMACD, "", map[string]float64{"macd": 0, "macd_signal": 0, "macd_histogram": 0}, 100},
		{"sma_cross", FamilySMACross, "", map[string]float64{"sma_fast": 101, "sma_slow": 100, "sma_fast_prev": 101, "sma_slow_prev": 100}, 101},
		{"bollinger", FamilyBollinger, "", map[string]float64{"bb_upper": 102, "bb_middle": 100, "bb_lower": 98}, 100},
		{"mean_reversion", FamilyMeanReversion, "", map[string]float64{"zscore": -1.0}, 99},
		{"keltner", FamilyKeltner, "", map[string]float64{"kc_upper": 104, "kc_middle": 100, "kc_lower": 96}, 100},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gen := mustNew(t, tc.family, tc.params)
			for _, hasPosition := range []bool{false, true} {
				sig := gen.Evaluate(tc.price, tc.ind, hasPosition)
				if sig.Type != Hold {
					t.Fatalf("hasPosition=%v: signal=%v, expected HOLD", hasPosition, sig.Type)
				}
				if sig.Strength != 0 {
					t.Fatalf("hasPosition=%v: strength=%v, expected 0.0", hasPosition, sig.Strength)
				}
			}
		})
	}
}

func TestFactory(t *testing.T) {
	t.Run("unknown family", func(t *testing.T) {
		_, err := New("momentum", nil)
		if err == nil || !strings.Contains(err.Error(), "unknown strategy family") {
			t.Fatalf("error=%v, expected unknown family error", err)
		}
	})

	t.Run("every family constructs with defaults", func(t *testing.T) {
		for _, family := range Families() {
			gen, err := New(family, nil)
			if err != nil {
				t.Fatalf("New(%s) error: %v", family, err)
			}
			if gen.Family() != family {
				t.Fatalf("Family()=%v, expected %v", gen.Family(), family)
			}
		}
	})

	t.Run("invalid parameters rejected", func(t *testing.T) {
		cases := []struct {
			family Family
			params string
		}{
			{FamilyRSI, `{"oversold": 80, "overbought": 70}`},
			{FamilyMACD, `{"fast_period": 26, "slow_period": 12}`},
			{FamilySMACross, `{"fast_period": 30, "slow_period": 10}`},
			{FamilyBollinger, `{"touch_tolerance": 1.5}`},
			{FamilyMeanReversion, `{"std_dev_threshold": -1}`},
			{FamilyKeltner, `{"mode": "sideways"}`},
		}
		for _, tc := range cases {
			if _, err := New(tc.family, json.RawMessage(tc.params)); err == nil {
				t.Fatalf("New(%s, %s) succeeded, expected error", tc.family, tc.params)
			}
		}
	})
}

func TestSnapshots(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + math.Sin(float64(i)/5)*3
	}
	bars := barsFromCloses(closes)

	t.Run("each family emits its scalar keys", func(t *testing.T) {
		wantKeys := map[Family][]string{
			FamilyRSI:           {"rsi"},
			FamilyMACD:          {"macd", "macd_signal", "macd_histogram"},
			FamilySMACross:      {"sma_fast", "sma_slow", "sma_fast_prev", "sma_slow_prev"},
			FamilyBollinger:     {"bb_upper", "bb_middle", "bb_lower"},
			FamilyMeanReversion: {"zscore", "mean", "std_dev"},
			FamilyKeltner:       {"kc_upper", "kc_middle", "kc_lower"},
		}
		for family, keys := range wantKeys {
			gen := mustNew(t, family, "")
			ind, err := gen.Snapshot(bars)
			if err != nil {
				t.Fatalf("%s Snapshot error: %v", family, err)
			}
			for _, k := range keys {
				if _, ok := ind[k]; !ok {
					t.Fatalf("%s snapshot missing key %q: %v", family, k, ind)
				}
			}
		}
	})

	t.Run("short window reports insufficient data", func(t *testing.T) {
		short := barsFromCloses(closes[:5])
		for _, family := range Families() {
			gen := mustNew(t, family, "")
			if _, err := gen.Snapshot(short); !errors.Is(err, indicators.ErrInsufficientData) {
				t.Fatalf("%s error=%v, expected ErrInsufficientData", family, err)
			}
		}
	})
}
