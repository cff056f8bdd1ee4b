package indicators

import (
	"errors"
	"math"
	"testing"
)

func risingCloses(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100 + float64(i)
	}
	return out
}

func TestRSI(t *testing.T) {
	closes := risingCloses(40)

	rsi, err := RSI(closes, 14)
	if err != nil {
		t.Fatalf("RSI error: %v", err)
	}
	if rsi < 50 || rsi > 100 {
		t.Fatalf("RSI of rising series = %v, expected value above 50", rsi)
	}

	if _, err := RSI(closes[:10], 14); !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("short window error = %v, expected ErrInsufficientData", err)
	}
}

func TestMACDRisingSeries(t *testing.T) {
	closes := risingCloses(80)

	macd, sig, hist, err := MACD(closes, 12, 26, 9)
	if err != nil {
		t.Fatalf("MACD error: %v", err)
	}
	if macd <= 0 {
		t.Fatalf("MACD of rising series = %v, expected positive", macd)
	}
	if got := macd - sig; math.Abs(got-hist) > 1e-9 {
		t.Fatalf("histogram = %v, expected macd-signal = %v", hist, got)
	}

	if _, _, _, err := MACD(closes[:30], 12, 26, 9); !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("short window error = %v, expected ErrInsufficientData", err)
	}
}

func TestSMAPair(t *testing.T) {
	// Flat then a jump: the fast average reacts before the slow one.
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100
	}
	closes[28] = 110
	closes[29] = 110

	prevFast, prevSlow, currFast, currSlow, err := SMAPair(closes, 5, 20)
	if err != nil {
		t.Fatalf("SMAPair error: %v", err)
	}
	if !(prevFast > prevSlow) || !(currFast > currSlow) {
		t.Fatalf("fast averages %v/%v not above slow %v/%v after jump", prevFast, currFast, prevSlow, currSlow)
	}

	if _, _, _, _, err := SMAPair(closes[:15], 5, 20); !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("short window error = %v, expected ErrInsufficientData", err)
	}
}

func TestBollingerOrdering(t *testing.T) {
	closes := []float64{100, 101, 99, 102, 98, 103, 97, 104, 96, 105, 100, 101, 99, 102, 98, 103, 97, 104, 96, 105}

	upper, middle, lower, err := Bollinger(closes, 20, 2.0)
	if err != nil {
		t.Fatalf("Bollinger error: %v", err)
	}
	if !(upper > middle && middle > lower) {
		t.Fatalf("band ordering violated: upper=%v middle=%v lower=%v", upper, middle, lower)
	}
}

func TestZScore(t *testing.T) {
	closes := []float64{100, 101, 99, 102, 98, 103, 97, 104, 96, 105, 100, 101, 99, 102, 98, 103, 97, 104, 96, 80}

	z, mean, std, err := ZScore(closes, 20)
	if err != nil {
		t.Fatalf("ZScore error: %v", err)
	}
	if std <= 0 {
		t.Fatalf("std = %v, expected positive", std)
	}
	if z >= 0 {
		t.Fatalf("z of collapsed close = %v, expected negative", z)
	}
	if want := (closes[19] - mean) / std; math.Abs(z-want) > 1e-9 {
		t.Fatalf("z = %v, expected %v", z, want)
	}

	flat := make([]float64, 25)
	for i := range flat {
		flat[i] = 100
	}
	if _, _, _, err := ZScore(flat, 20); !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("flat window error = %v, expected ErrInsufficientData", err)
	}
}

func TestKeltnerBands(t *testing.T) {
	n := 40
	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	for i := 0; i < n; i++ {
		closes[i] = 100 + math.Sin(float64(i)/3)*2
		highs[i] = closes[i] + 1
		lows[i] = closes[i] - 1
	}

	upper, middle, lower, err := Keltner(highs, lows, closes, 20, 10, 2.0)
	if err != nil {
		t.Fatalf("Keltner error: %v", err)
	}
	if !(upper > middle && middle > lower) {
		t.Fatalf("channel ordering violated: upper=%v middle=%v lower=%v", upper, middle, lower)
	}
	if math.Abs((upper-middle)-(middle-lower)) > 1e-9 {
		t.Fatalf("channel not symmetric around midline: upper=%v middle=%v lower=%v", upper, middle, lower)
	}

	if _, _, _, err := Keltner(highs[:5], lows[:5], closes[:5], 20, 10, 2.0); !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("short window error = %v, expected ErrInsufficientData", err)
	}
}
