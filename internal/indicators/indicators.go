// Package indicators wraps go-talib behind scalar-returning helpers.
// Families consume only these scalars; the underlying series never leave
// this package.
package indicators

import (
	"errors"

	talib "github.com/markcheno/go-talib"
)

// ErrInsufficientData is returned when the window is too short for the
// requested indicator. Callers treat it as "no signal this cycle".
var ErrInsufficientData = errors.New("insufficient data for indicator window")

// RSI returns the latest Relative Strength Index value.
func RSI(closes []float64, period int) (float64, error) {
	if period <= 0 || len(closes) < period+1 {
		return 0, ErrInsufficientData
	}
	out := talib.Rsi(closes, period)
	return out[len(out)-1], nil
}

// MACD returns the latest MACD line, signal line and histogram values.
func MACD(closes []float64, fast, slow, signal int) (macd, sig, hist float64, err error) {
	if fast <= 0 || slow <= fast || signal <= 0 || len(closes) < slow+signal {
		return 0, 0, 0, ErrInsufficientData
	}
	macdLine, signalLine, histogram := talib.Macd(closes, fast, slow, signal)
	n := len(closes) - 1
	return macdLine[n], signalLine[n], histogram[n], nil
}

// SMAPair returns the fast/slow simple moving averages at the last two bars,
// which is what 2-bar crossover detection needs.
func SMAPair(closes []float64, fast, slow int) (prevFast, prevSlow, currFast, currSlow float64, err error) {
	if fast <= 0 || slow <= fast || len(closes) < slow+1 {
		return 0, 0, 0, 0, ErrInsufficientData
	}
	fastMA := talib.Sma(closes, fast)
	slowMA := talib.Sma(closes, slow)
	n := len(closes) - 1
	return fastMA[n-1], slowMA[n-1], fastMA[n], slowMA[n], nil
}

// Bollinger returns the latest upper/middle/lower band values.
func Bollinger(closes []float64, period int, dev float64) (upper, middle, lower float64, err error) {
	if period <= 1 || len(closes) < period {
		return 0, 0, 0, ErrInsufficientData
	}
	up, mid, low := talib.BBands(closes, period, dev, dev, talib.SMA)
	n := len(closes) - 1
	return up[n], mid[n], low[n], nil
}

// ZScore returns how many standard deviations the last close sits from the
// rolling mean. A flat window has no defined z-score and reads as
// insufficient data.
func ZScore(closes []float64, period int) (z, mean, std float64, err error) {
	if period <= 1 || len(closes) < period {
		return 0, 0, 0, ErrInsufficientData
	}
	means := talib.Sma(closes, period)
	stds := talib.StdDev(closes, period, 1.0)
	n := len(closes) - 1
	mean = means[n]
	std = stds[n]
	if std <= 0 {
		return 0, mean, std, ErrInsufficientData
	}
	return (closes[n] - mean) / std, mean, std, nil
}

// Keltner returns the latest Keltner channel values: an EMA midline with
// bands offset by a multiple of the Average True Range.
func Keltner(highs, lows, closes []float64, emaPeriod, atrPeriod int, mult float64) (upper, middle, lower float64, err error) {
	if emaPeriod <= 0 || atrPeriod <= 0 {
		return 0, 0, 0, ErrInsufficientData
	}
	need := emaPeriod
	if atrPeriod+1 > need {
		need = atrPeriod + 1
	}
	if len(closes) < need || len(highs) != len(closes) || len(lows) != len(closes) {
		return 0, 0, 0, ErrInsufficientData
	}
	ema := talib.Ema(closes, emaPeriod)
	atr := talib.Atr(highs, lows, closes, atrPeriod)
	n := len(closes) - 1
	middle = ema[n]
	offset := mult * atr[n]
	return middle + offset, middle, middle - offset, nil
}
