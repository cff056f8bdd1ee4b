package order

import (
	"context"
	"fmt"
	"time"

	"autotrader/pkg/broker"
)

// BrokerExecutor routes orders to a live broker and polls until the fill
// lands or the context deadline expires.
type BrokerExecutor struct {
	Broker       broker.Broker
	PollInterval time.Duration
}

// NewBrokerExecutor builds an executor over a broker with a 500ms fill poll.
func NewBrokerExecutor(b broker.Broker) *BrokerExecutor {
	return &BrokerExecutor{Broker: b, PollInterval: 500 * time.Millisecond}
}

func (e *BrokerExecutor) PlaceOrder(ctx context.Context, req Request) (Fill, error) {
	ord, err := e.Broker.PlaceOrder(ctx, broker.OrderRequest{
		Symbol:      req.Symbol,
		Qty:         req.Qty,
		Notional:    req.Notional,
		Side:        req.Side,
		Type:        "market",
		TimeInForce: "day",
	})
	if err != nil {
		return Fill{}, fmt.Errorf("place order: %w", err)
	}

	id := ord.ID
	for !ord.Filled() {
		switch ord.Status {
		case broker.StatusRejected, broker.StatusCanceled, broker.StatusExpired:
			return Fill{}, fmt.Errorf("order %s %s", id, ord.Status)
		}

		select {
		case <-ctx.Done():
			return Fill{}, fmt.Errorf("wait fill for order %s: %w", id, ctx.Err())
		case <-time.After(e.PollInterval):
		}

		ord, err = e.Broker.GetOrder(ctx, id)
		if err != nil {
			return Fill{}, fmt.Errorf("poll order %s: %w", id, err)
		}
	}

	return Fill{
		OrderID:  id,
		Qty:      ord.FilledQty,
		AvgPrice: ord.FilledAvgPrice,
		Status:   ord.Status,
	}, nil
}
