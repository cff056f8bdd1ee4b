package db

import "time"

// User represents an application user.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Strategy represents a configured strategy row. Params holds the
// family-specific parameters as JSON.
type Strategy struct {
	ID                   string
	Name                 string
	Symbol               string
	Family               string
	Timeframe            string
	Params               string
	Qty                  float64
	Notional             float64
	DryRun               bool
	Enabled              bool
	MaxTradesPerDay      int
	MaxLossPerDay        float64
	MaxConsecutiveLosses int
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Execution is the persisted automation state for one strategy instance.
type Execution struct {
	StrategyID           string
	State                string
	HasOpenPosition      bool
	PositionQty          float64
	EntryPrice           float64
	TradesToday          int
	MaxTradesPerDay      int
	LossToday            float64
	MaxLossPerDay        float64
	ConsecutiveLosses    int
	MaxConsecutiveLosses int
	ErrorCount           int
	LastError            string
	PausedForDay         bool
	LastEvaluatedAt      time.Time
	LastSignalAt         time.Time
	UpdatedAt            time.Time
}

// SignalRecord is the audit row written once per evaluation cycle.
type SignalRecord struct {
	ID                string
	StrategyID        string
	Symbol            string
	SignalType        string
	Strength          float64
	PriceAtSignal     float64
	IndicatorSnapshot string
	Reasoning         string
	WasExecuted       bool
	RejectionReason   string
	ExecutionError    string
	CreatedAt         time.Time
}

// Trade is the append-only fill audit row.
type Trade struct {
	ID         string
	StrategyID string
	OrderID    string
	Symbol     string
	Side       string
	Qty        float64
	Price      float64
	Notional   float64
	PnL        float64
	ExecutedAt time.Time
}
