// Package alpaca implements the broker surface over the Alpaca v2 REST API.
package alpaca

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"autotrader/pkg/broker"
)

const (
	liveURL  = "https://api.alpaca.markets"
	paperURL = "https://paper-api.alpaca.markets"
	dataURL  = "https://data.alpaca.markets"
)

// Client wraps REST access to the trading and data APIs.
type Client struct {
	APIKey     string
	APISecret  string
	BaseURL    string
	DataURL    string
	HTTPClient *http.Client
	Paper      bool

	limiter *rate.Limiter
}

// NewClient builds a REST client; paper switches to the paper-trading host.
// Requests are throttled to stay under the venue's 200 req/min account limit.
func NewClient(apiKey, apiSecret string, paper bool) *Client {
	base := liveURL
	if paper {
		base = paperURL
	}
	return &Client{
		APIKey:     apiKey,
		APISecret:  apiSecret,
		BaseURL:    base,
		DataURL:    dataURL,
		Paper:      paper,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(3), 10),
	}
}

// APIError is a non-2xx response from the venue.
type APIError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("alpaca: status %d code %d: %s", e.StatusCode, e.Code, e.Message)
}

func (c *Client) do(ctx context.Context, method, url string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, rdr)
	if err != nil {
		return err
	}
	req.Header.Set("APCA-API-KEY-ID", c.APIKey)
	req.Header.Set("APCA-API-SECRET-KEY", c.APISecret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		io.Copy(io.Discard, res.Body)
		return broker.ErrNotFound
	}
	if res.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: res.StatusCode}
		var payload struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		}
		if err := json.NewDecoder(res.Body).Decode(&payload); err == nil {
			apiErr.Code = payload.Code
			apiErr.Message = payload.Message
		}
		return apiErr
	}

	if out == nil {
		io.Copy(io.Discard, res.Body)
		return nil
	}
	return json.NewDecoder(res.Body).Decode(out)
}

// GetAccount fetches the trading account.
func (c *Client) GetAccount(ctx context.Context) (*broker.Account, error) {
	var resp accountResponse
	if err := c.do(ctx, http.MethodGet, c.BaseURL+"/v2/account", nil, &resp); err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return &broker.Account{
		ID:          resp.ID,
		Status:      resp.Status,
		Cash:        toFloat(resp.Cash),
		BuyingPower: toFloat(resp.BuyingPower),
		Equity:      toFloat(resp.Equity),
	}, nil
}

// GetPosition returns the open position for a symbol, or broker.ErrNotFound
// when the account is flat in it.
func (c *Client) GetPosition(ctx context.Context, symbol string) (*broker.Position, error) {
	var resp positionResponse
	if err := c.do(ctx, http.MethodGet, c.BaseURL+"/v2/positions/"+symbol, nil, &resp); err != nil {
		return nil, err
	}
	p := mapPosition(resp)
	return &p, nil
}

// ListPositions returns all open positions.
func (c *Client) ListPositions(ctx context.Context) ([]broker.Position, error) {
	var resp []positionResponse
	if err := c.do(ctx, http.MethodGet, c.BaseURL+"/v2/positions", nil, &resp); err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	out := make([]broker.Position, 0, len(resp))
	for _, p := range resp {
		out = append(out, mapPosition(p))
	}
	return out, nil
}

// PlaceOrder submits an order and returns the venue's initial order state.
func (c *Client) PlaceOrder(ctx context.Context, req broker.OrderRequest) (*broker.Order, error) {
	body := orderRequestBody{
		Symbol:      req.Symbol,
		Side:        string(req.Side),
		Type:        req.Type,
		TimeInForce: req.TimeInForce,
	}
	if req.Notional > 0 {
		body.Notional = formatQty(req.Notional)
	} else {
		body.Qty = formatQty(req.Qty)
	}

	var resp orderResponse
	if err := c.do(ctx, http.MethodPost, c.BaseURL+"/v2/orders", body, &resp); err != nil {
		return nil, fmt.Errorf("place order: %w", err)
	}
	o := mapOrder(resp)
	return &o, nil
}

// GetOrder fetches the current state of an order.
func (c *Client) GetOrder(ctx context.Context, id string) (*broker.Order, error) {
	var resp orderResponse
	if err := c.do(ctx, http.MethodGet, c.BaseURL+"/v2/orders/"+id, nil, &resp); err != nil {
		return nil, fmt.Errorf("get order %s: %w", id, err)
	}
	o := mapOrder(resp)
	return &o, nil
}

// GetClock fetches the venue session clock.
func (c *Client) GetClock(ctx context.Context) (*broker.Clock, error) {
	var resp clockResponse
	if err := c.do(ctx, http.MethodGet, c.BaseURL+"/v2/clock", nil, &resp); err != nil {
		return nil, fmt.Errorf("get clock: %w", err)
	}
	return &broker.Clock{
		Timestamp: resp.Timestamp,
		IsOpen:    resp.IsOpen,
		NextOpen:  resp.NextOpen,
		NextClose: resp.NextClose,
	}, nil
}

func mapPosition(p positionResponse) broker.Position {
	return broker.Position{
		Symbol:        p.Symbol,
		Qty:           toFloat(p.Qty),
		AvgEntryPrice: toFloat(p.AvgEntryPrice),
		MarketValue:   toFloat(p.MarketValue),
		UnrealizedPL:  toFloat(p.UnrealizedPL),
	}
}

func mapOrder(o orderResponse) broker.Order {
	return broker.Order{
		ID:             o.ID,
		ClientOrderID:  o.ClientOrderID,
		Symbol:         o.Symbol,
		Side:           broker.Side(o.Side),
		Qty:            toFloat(o.Qty),
		FilledQty:      toFloat(o.FilledQty),
		FilledAvgPrice: toFloat(o.FilledAvgPrice),
		Status:         o.Status,
		SubmittedAt:    o.SubmittedAt,
	}
}
