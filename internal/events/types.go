package events

import "time"

// Event enumerates high-level topics inside the automation engine.
type Event string

const (
	EventTick           Event = "scheduler.tick"
	EventDailyReset     Event = "scheduler.daily_reset"
	EventSignal         Event = "signal.generated"
	EventOrderPlaced    Event = "order.placed"
	EventOrderFailed    Event = "order.failed"
	EventStateChanged   Event = "execution.state_changed"
	EventCircuitBreaker Event = "risk.circuit_breaker"
)

// Topics lists every event the engine publishes, in a stable order.
// The WebSocket hub subscribes to all of them.
func Topics() []Event {
	return []Event{
		EventTick,
		EventDailyReset,
		EventSignal,
		EventOrderPlaced,
		EventOrderFailed,
		EventStateChanged,
		EventCircuitBreaker,
	}
}

// TickEvent is published after every scheduler wake-up.
type TickEvent struct {
	At         time.Time `json:"at"`
	MarketOpen bool      `json:"market_open"`
	Dispatched int       `json:"dispatched"`
}

// DailyResetEvent is published after the session-open bookkeeping job.
type DailyResetEvent struct {
	Day     string    `json:"day"`
	Reset   int       `json:"reset"`
	Resumed int       `json:"resumed"`
	At      time.Time `json:"at"`
}

// SignalEvent is published once per evaluation cycle that produced a signal.
type SignalEvent struct {
	StrategyID string    `json:"strategy_id"`
	Symbol     string    `json:"symbol"`
	Type       string    `json:"type"`
	Strength   float64   `json:"strength"`
	Reasoning  string    `json:"reasoning"`
	Executed   bool      `json:"executed"`
	At         time.Time `json:"at"`
}

// OrderPlacedEvent is published after a broker fill.
type OrderPlacedEvent struct {
	StrategyID string    `json:"strategy_id"`
	OrderID    string    `json:"order_id"`
	Symbol     string    `json:"symbol"`
	Side       string    `json:"side"`
	Qty        float64   `json:"qty"`
	Price      float64   `json:"price"`
	PnL        float64   `json:"pnl,omitempty"`
	At         time.Time `json:"at"`
}

// OrderFailedEvent is published when order placement fails.
type OrderFailedEvent struct {
	StrategyID string    `json:"strategy_id"`
	Symbol     string    `json:"symbol"`
	Side       string    `json:"side"`
	Reason     string    `json:"reason"`
	At         time.Time `json:"at"`
}

// StateChangedEvent is published on every execution state transition.
type StateChangedEvent struct {
	StrategyID string    `json:"strategy_id"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	Reason     string    `json:"reason,omitempty"`
	At         time.Time `json:"at"`
}

// CircuitBreakerEvent is published when a risk threshold trips the breaker.
type CircuitBreakerEvent struct {
	StrategyID string    `json:"strategy_id"`
	Reason     string    `json:"reason"`
	At         time.Time `json:"at"`
}
