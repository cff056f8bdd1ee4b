package engine

import (
	"time"

	"autotrader/internal/monitor"
	"autotrader/internal/scheduler"
)

// Meta holds the static deployment facts reported by SystemStatus.
type Meta struct {
	Version        string `json:"version"`
	DataSource     string `json:"data_source"`
	Broker         string `json:"broker"`
	TradingEnabled bool   `json:"trading_enabled"`
	NodeID         string `json:"node_id,omitempty"`
}

// StrategyStatus is the per-strategy automation view.
type StrategyStatus struct {
	StrategyID           string    `json:"strategy_id"`
	Name                 string    `json:"name,omitempty"`
	Symbol               string    `json:"symbol,omitempty"`
	DryRun               bool      `json:"dry_run"`
	State                string    `json:"state"`
	HasOpenPosition      bool      `json:"has_open_position"`
	PositionQty          float64   `json:"position_qty"`
	EntryPrice           float64   `json:"entry_price"`
	TradesToday          int       `json:"trades_today"`
	MaxTradesPerDay      int       `json:"max_trades_per_day"`
	LossToday            float64   `json:"loss_today"`
	MaxLossPerDay        float64   `json:"max_loss_per_day"`
	ConsecutiveLosses    int       `json:"consecutive_losses"`
	MaxConsecutiveLosses int       `json:"max_consecutive_losses"`
	ErrorCount           int       `json:"error_count"`
	LastError            string    `json:"last_error,omitempty"`
	PausedForDay         bool      `json:"paused_for_day"`
	LastEvaluatedAt      time.Time `json:"last_evaluated_at"`
	LastSignalAt         time.Time `json:"last_signal_at"`
}

// SystemStatus is the whole-engine runtime view.
type SystemStatus struct {
	Meta
	Scheduler       scheduler.Status `json:"scheduler"`
	ExecutionStates map[string]int   `json:"execution_states"`
	Metrics         monitor.Snapshot `json:"metrics"`
	ServerTime      time.Time        `json:"server_time"`
}
