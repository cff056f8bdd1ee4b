package market

import (
	"context"
	"time"

	"autotrader/pkg/broker/alpaca"
)

// AlpacaProvider adapts the Alpaca data API to the DataProvider interface.
type AlpacaProvider struct {
	Client *alpaca.Client
}

// NewAlpacaProvider wraps an Alpaca client.
func NewAlpacaProvider(client *alpaca.Client) *AlpacaProvider {
	return &AlpacaProvider{Client: client}
}

// GetBars fetches and maps the wire bars.
func (p *AlpacaProvider) GetBars(ctx context.Context, symbol string, tf Timeframe, start, end time.Time, limit int) ([]Bar, error) {
	raw, err := p.Client.GetBars(ctx, symbol, string(tf), start, end, limit)
	if err != nil {
		return nil, err
	}
	bars := make([]Bar, 0, len(raw))
	for _, b := range raw {
		bars = append(bars, Bar{
			Timestamp: b.Timestamp,
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
		})
	}
	return bars, nil
}
