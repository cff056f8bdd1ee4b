package market

import (
	"fmt"
	"time"
)

// Bar is one OHLCV sample for a symbol over a fixed interval.
type Bar struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Timeframe is a bar interval.
type Timeframe string

const (
	TF1Min  Timeframe = "1Min"
	TF5Min  Timeframe = "5Min"
	TF15Min Timeframe = "15Min"
	TF30Min Timeframe = "30Min"
	TF1Hour Timeframe = "1Hour"
	TF1Day  Timeframe = "1Day"
)

var timeframeMinutes = map[Timeframe]int{
	TF1Min:  1,
	TF5Min:  5,
	TF15Min: 15,
	TF30Min: 30,
	TF1Hour: 60,
	TF1Day:  1440,
}

// ParseTimeframe validates a timeframe string.
func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(s)
	if _, ok := timeframeMinutes[tf]; !ok {
		return "", fmt.Errorf("unknown timeframe %q", s)
	}
	return tf, nil
}

// Minutes returns the bar interval length in minutes.
func (tf Timeframe) Minutes() int {
	return timeframeMinutes[tf]
}

// Duration returns the bar interval as a time.Duration.
func (tf Timeframe) Duration() time.Duration {
	return time.Duration(tf.Minutes()) * time.Minute
}

// WindowDays returns the evaluation lookback for a bar interval:
// sub-5-minute bars look back 5 days, up to 30 minutes 10 days,
// up to hourly 30 days, everything coarser 365 days.
func (tf Timeframe) WindowDays() int {
	m := tf.Minutes()
	switch {
	case m < 5:
		return 5
	case m <= 30:
		return 10
	case m <= 60:
		return 30
	default:
		return 365
	}
}

// Closes extracts the close series from bars, oldest first.
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// Highs extracts the high series from bars, oldest first.
func Highs(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.High
	}
	return out
}

// Lows extracts the low series from bars, oldest first.
func Lows(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Low
	}
	return out
}
