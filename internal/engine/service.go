// Package engine exposes the lifecycle and status surface of the
// automation core. The API layer interacts with the core only through
// the Service interface, keeping transport concerns out of the engine.
package engine

import (
	"context"

	"autotrader/internal/executor"
)

// Service defines the operations the control surface may invoke.
type Service interface {
	// Lifecycle commands
	StartStrategy(ctx context.Context, id string) error
	PauseStrategy(ctx context.Context, id string) error
	ResumeStrategy(ctx context.Context, id string) error
	StopStrategy(ctx context.Context, id string) error
	ResetStrategy(ctx context.Context, id string) error
	DeleteStrategy(ctx context.Context, id string) error

	// ExecuteOnce runs one on-demand evaluation cycle. Signal-only in
	// IDLE and PAUSED; full cycle in ACTIVE; refused in terminal states.
	ExecuteOnce(ctx context.Context, id string) (executor.Result, error)

	// Queries
	StrategyStatus(ctx context.Context, id string) (*StrategyStatus, error)
	SystemStatus(ctx context.Context) *SystemStatus
}
