// Package order dispatches admitted signals to a broker and reports fills.
package order

import (
	"context"

	"autotrader/pkg/broker"
)

// Request describes one order to place. Exactly one of Qty or Notional
// should be set. PriceHint carries the latest close so the simulator can
// fill without a live quote.
type Request struct {
	StrategyID string
	Symbol     string
	Side       broker.Side
	Qty        float64
	Notional   float64
	PriceHint  float64
}

// Fill is the usable outcome of one placed order.
type Fill struct {
	OrderID  string
	Qty      float64
	AvgPrice float64
	Status   string
}

// Executor places one order and blocks until a usable fill or an error.
// There is no implicit retry; the caller decides what a failure means.
type Executor interface {
	PlaceOrder(ctx context.Context, req Request) (Fill, error)
}
