package broker

import "time"

// Account is the venue-side trading account snapshot.
type Account struct {
	ID          string  `json:"id"`
	Status      string  `json:"status"`
	Cash        float64 `json:"cash"`
	BuyingPower float64 `json:"buying_power"`
	Equity      float64 `json:"equity"`
}

// Position is an open venue-side position.
type Position struct {
	Symbol        string  `json:"symbol"`
	Qty           float64 `json:"qty"`
	AvgEntryPrice float64 `json:"avg_entry_price"`
	MarketValue   float64 `json:"market_value"`
	UnrealizedPL  float64 `json:"unrealized_pl"`
}

// Side is the order direction.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// OrderRequest describes one order submission. Exactly one of Qty or
// Notional should be set.
type OrderRequest struct {
	Symbol      string
	Qty         float64
	Notional    float64
	Side        Side
	Type        string // "market"
	TimeInForce string // "day"
}

// Order statuses in the venue's lifecycle.
const (
	StatusNew             = "new"
	StatusAccepted        = "accepted"
	StatusPendingNew      = "pending_new"
	StatusPartiallyFilled = "partially_filled"
	StatusFilled          = "filled"
	StatusRejected        = "rejected"
	StatusCanceled        = "canceled"
	StatusExpired         = "expired"
)

// Order is the venue-side order state.
type Order struct {
	ID             string    `json:"id"`
	ClientOrderID  string    `json:"client_order_id"`
	Symbol         string    `json:"symbol"`
	Side           Side      `json:"side"`
	Qty            float64   `json:"qty"`
	FilledQty      float64   `json:"filled_qty"`
	FilledAvgPrice float64   `json:"filled_avg_price"`
	Status         string    `json:"status"`
	SubmittedAt    time.Time `json:"submitted_at"`
}

// Filled reports whether the order has a usable fill.
func (o *Order) Filled() bool {
	if o == nil {
		return false
	}
	return (o.Status == StatusFilled || o.Status == StatusPartiallyFilled) && o.FilledQty > 0 && o.FilledAvgPrice > 0
}

// Clock is the venue's session clock.
type Clock struct {
	Timestamp time.Time `json:"timestamp"`
	IsOpen    bool      `json:"is_open"`
	NextOpen  time.Time `json:"next_open"`
	NextClose time.Time `json:"next_close"`
}
