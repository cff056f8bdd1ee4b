package market

import (
	"context"
	"testing"
	"time"
)

type countingProvider struct {
	calls int
}

func (p *countingProvider) GetBars(ctx context.Context, symbol string, tf Timeframe, start, end time.Time, limit int) ([]Bar, error) {
	p.calls++
	return []Bar{{Timestamp: end, Close: 100}}, nil
}

func TestCachedProviderAbsorbsDuplicateFetches(t *testing.T) {
	inner := &countingProvider{}
	p := NewCachedProvider(inner, time.Minute)

	ctx := context.Background()
	end := time.Now()
	start := end.Add(-time.Hour)

	bars, err := p.GetBars(ctx, "AAPL", TF5Min, start, end, 100)
	if err != nil {
		t.Fatalf("GetBars error: %v", err)
	}
	if len(bars) != 1 {
		t.Fatalf("len(bars) = %d, expected 1", len(bars))
	}
	if _, err := p.GetBars(ctx, "AAPL", TF5Min, start, end, 100); err != nil {
		t.Fatalf("cached GetBars error: %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("inner fetches = %d, expected 1 (second read served from cache)", inner.calls)
	}

	// Different timeframe is a different window.
	if _, err := p.GetBars(ctx, "AAPL", TF1Hour, start, end, 100); err != nil {
		t.Fatalf("GetBars error: %v", err)
	}
	if inner.calls != 2 {
		t.Fatalf("inner fetches = %d, expected 2 after new timeframe", inner.calls)
	}

	stats := p.CacheStats()
	if stats.TotalItems != 2 {
		t.Fatalf("cached windows = %d, expected 2", stats.TotalItems)
	}
}
