package alpaca

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// GetBars fetches OHLCV history from the data API, ascending by time.
// Pagination is followed until limit bars are collected or the feed runs out.
func (c *Client) GetBars(ctx context.Context, symbol, timeframe string, start, end time.Time, limit int) ([]Bar, error) {
	if limit <= 0 {
		limit = 1000
	}

	var (
		bars      []Bar
		pageToken string
	)
	for {
		params := url.Values{}
		params.Set("timeframe", timeframe)
		params.Set("adjustment", "raw")
		params.Set("feed", "iex")
		if !start.IsZero() {
			params.Set("start", start.UTC().Format(time.RFC3339))
		}
		if !end.IsZero() {
			params.Set("end", end.UTC().Format(time.RFC3339))
		}
		remaining := limit - len(bars)
		if remaining > 10000 {
			remaining = 10000
		}
		params.Set("limit", strconv.Itoa(remaining))
		if pageToken != "" {
			params.Set("page_token", pageToken)
		}

		u := fmt.Sprintf("%s/v2/stocks/%s/bars?%s", c.DataURL, symbol, params.Encode())
		var resp barsResponse
		if err := c.do(ctx, http.MethodGet, u, nil, &resp); err != nil {
			return nil, fmt.Errorf("get bars %s %s: %w", symbol, timeframe, err)
		}
		bars = append(bars, resp.Bars...)

		if resp.NextPageToken == "" || len(bars) >= limit {
			break
		}
		pageToken = resp.NextPageToken
	}
	return bars, nil
}
