package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"autotrader/internal/events"
	"autotrader/internal/executor"
	"autotrader/internal/monitor"
	"autotrader/internal/scheduler"
	"autotrader/internal/state"
	"autotrader/pkg/db"
)

// CycleRunner runs one evaluation cycle for a strategy.
type CycleRunner interface {
	Execute(ctx context.Context, strat db.Strategy) (executor.Result, error)
}

// Impl implements the Service interface by composing the core modules.
type Impl struct {
	reg     *state.Registry
	db      *db.Database
	runner  CycleRunner
	sched   *scheduler.Scheduler
	bus     *events.Bus
	metrics *monitor.Metrics
	meta    Meta
}

// Config holds the wiring for the engine implementation.
type Config struct {
	Registry *state.Registry
	DB       *db.Database
	Runner   CycleRunner
	Sched    *scheduler.Scheduler
	Bus      *events.Bus
	Metrics  *monitor.Metrics
	Meta     Meta
}

// NewImpl creates the engine implementation.
func NewImpl(cfg Config) *Impl {
	return &Impl{
		reg:     cfg.Registry,
		db:      cfg.DB,
		runner:  cfg.Runner,
		sched:   cfg.Sched,
		bus:     cfg.Bus,
		metrics: cfg.Metrics,
		meta:    cfg.Meta,
	}
}

// --- Lifecycle commands ---

// StartStrategy moves a strategy into automated evaluation. The execution
// row is created on first start and its limits are refreshed from the
// strategy row on every start.
func (e *Impl) StartStrategy(ctx context.Context, id string) error {
	strat, err := e.db.GetStrategy(ctx, id)
	if err != nil {
		return err
	}
	if strat == nil {
		return fmt.Errorf("strategy %s not found", id)
	}

	if _, ok := e.reg.Get(id); !ok {
		exec := db.Execution{
			StrategyID:           id,
			State:                string(state.StateIdle),
			MaxTradesPerDay:      strat.MaxTradesPerDay,
			MaxLossPerDay:        strat.MaxLossPerDay,
			MaxConsecutiveLosses: strat.MaxConsecutiveLosses,
		}
		if err := e.reg.Create(ctx, exec); err != nil {
			return fmt.Errorf("create execution: %w", err)
		}
	}

	var from string
	_, err = e.reg.Update(ctx, id, func(exec *db.Execution) error {
		if state.State(exec.State) != state.StateIdle {
			return fmt.Errorf("cannot start from %s", exec.State)
		}
		from = exec.State
		exec.State = string(state.StateActive)
		exec.MaxTradesPerDay = strat.MaxTradesPerDay
		exec.MaxLossPerDay = strat.MaxLossPerDay
		exec.MaxConsecutiveLosses = strat.MaxConsecutiveLosses
		return nil
	})
	if err != nil {
		return err
	}

	e.stateChanged(id, from, string(state.StateActive), "started")
	log.Printf("🚀 automation started for %s", strat.Name)
	return nil
}

// PauseStrategy suspends evaluation without losing position or counters.
func (e *Impl) PauseStrategy(ctx context.Context, id string) error {
	var from string
	_, err := e.reg.Update(ctx, id, func(exec *db.Execution) error {
		if state.State(exec.State) != state.StateActive {
			return fmt.Errorf("cannot pause from %s", exec.State)
		}
		from = exec.State
		exec.State = string(state.StatePaused)
		exec.PausedForDay = false
		return nil
	})
	if err != nil {
		return err
	}
	e.stateChanged(id, from, string(state.StatePaused), "paused")
	return nil
}

// ResumeStrategy re-enters ACTIVE from a pause.
func (e *Impl) ResumeStrategy(ctx context.Context, id string) error {
	var from string
	_, err := e.reg.Update(ctx, id, func(exec *db.Execution) error {
		if state.State(exec.State) != state.StatePaused {
			return fmt.Errorf("cannot resume from %s", exec.State)
		}
		from = exec.State
		exec.State = string(state.StateActive)
		exec.PausedForDay = false
		return nil
	})
	if err != nil {
		return err
	}
	e.stateChanged(id, from, string(state.StateActive), "resumed")
	return nil
}

// StopStrategy ends automation from any state. Stopping an already
// stopped execution is a no-op.
func (e *Impl) StopStrategy(ctx context.Context, id string) error {
	var from string
	_, err := e.reg.Update(ctx, id, func(exec *db.Execution) error {
		if state.State(exec.State) == state.StateStopped {
			return nil
		}
		from = exec.State
		exec.State = string(state.StateStopped)
		return nil
	})
	if err != nil {
		return err
	}
	if from != "" {
		e.stateChanged(id, from, string(state.StateStopped), "stopped")
		log.Printf("🛑 automation stopped for %s", id)
	}
	return nil
}

// ResetStrategy zeroes counters and position tracking and returns the
// execution to IDLE. This is the only way out of CIRCUIT_BREAKER and
// ERROR. History rows (signals, trades) are untouched.
func (e *Impl) ResetStrategy(ctx context.Context, id string) error {
	var from string
	var hadPosition bool
	_, err := e.reg.Update(ctx, id, func(exec *db.Execution) error {
		from = exec.State
		hadPosition = exec.HasOpenPosition
		exec.State = string(state.StateIdle)
		exec.HasOpenPosition = false
		exec.PositionQty = 0
		exec.EntryPrice = 0
		exec.TradesToday = 0
		exec.LossToday = 0
		exec.ConsecutiveLosses = 0
		exec.ErrorCount = 0
		exec.LastError = ""
		exec.PausedForDay = false
		return nil
	})
	if err != nil {
		return err
	}
	if hadPosition {
		log.Printf("⚠️ reset cleared position tracking for %s; a position may remain at the broker", id)
	}
	e.stateChanged(id, from, string(state.StateIdle), "reset")
	log.Printf("🔄 execution reset for %s", id)
	return nil
}

// DeleteStrategy removes a strategy and its rows. Only never-started or
// stopped strategies may be deleted.
func (e *Impl) DeleteStrategy(ctx context.Context, id string) error {
	if exec, ok := e.reg.Get(id); ok {
		s := state.State(exec.State)
		if s != state.StateStopped && s != state.StateIdle {
			return fmt.Errorf("strategy must be stopped before deletion (state %s)", exec.State)
		}
	}
	if err := e.db.DeleteStrategy(ctx, id); err != nil {
		return err
	}
	e.reg.Remove(id)
	log.Printf("🗑️ strategy %s deleted", id)
	return nil
}

// ExecuteOnce runs one on-demand evaluation cycle outside the scheduler.
func (e *Impl) ExecuteOnce(ctx context.Context, id string) (executor.Result, error) {
	exec, ok := e.reg.Get(id)
	if !ok {
		return executor.Result{}, state.ErrNotFound
	}
	if state.Terminal(state.State(exec.State)) {
		return executor.Result{}, fmt.Errorf("execution in %s; reset before evaluating", exec.State)
	}

	strat, err := e.db.GetStrategy(ctx, id)
	if err != nil {
		return executor.Result{}, err
	}
	if strat == nil {
		return executor.Result{}, fmt.Errorf("strategy %s not found", id)
	}
	return e.runner.Execute(ctx, *strat)
}

// --- Queries ---

// StrategyStatus returns the automation view for one strategy.
func (e *Impl) StrategyStatus(ctx context.Context, id string) (*StrategyStatus, error) {
	exec, ok := e.reg.Get(id)
	if !ok {
		return nil, state.ErrNotFound
	}

	st := &StrategyStatus{
		StrategyID:           exec.StrategyID,
		State:                exec.State,
		HasOpenPosition:      exec.HasOpenPosition,
		PositionQty:          exec.PositionQty,
		EntryPrice:           exec.EntryPrice,
		TradesToday:          exec.TradesToday,
		MaxTradesPerDay:      exec.MaxTradesPerDay,
		LossToday:            exec.LossToday,
		MaxLossPerDay:        exec.MaxLossPerDay,
		ConsecutiveLosses:    exec.ConsecutiveLosses,
		MaxConsecutiveLosses: exec.MaxConsecutiveLosses,
		ErrorCount:           exec.ErrorCount,
		LastError:            exec.LastError,
		PausedForDay:         exec.PausedForDay,
		LastEvaluatedAt:      exec.LastEvaluatedAt,
		LastSignalAt:         exec.LastSignalAt,
	}
	if strat, err := e.db.GetStrategy(ctx, id); err == nil && strat != nil {
		st.Name = strat.Name
		st.Symbol = strat.Symbol
		st.DryRun = strat.DryRun
	}
	return st, nil
}

// SystemStatus returns the whole-engine runtime view.
func (e *Impl) SystemStatus(ctx context.Context) *SystemStatus {
	counts := make(map[string]int, len(state.States()))
	for _, s := range state.States() {
		counts[string(s)] = 0
	}
	for _, exec := range e.reg.List() {
		counts[exec.State]++
	}

	status := &SystemStatus{
		Meta:            e.meta,
		ExecutionStates: counts,
		ServerTime:      time.Now().UTC(),
	}
	if e.sched != nil {
		status.Scheduler = e.sched.Status()
	}
	if e.metrics != nil {
		status.Metrics = e.metrics.GetSnapshot()
	}
	return status
}

func (e *Impl) stateChanged(id, from, to, reason string) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(events.EventStateChanged, events.StateChangedEvent{
		StrategyID: id,
		From:       from,
		To:         to,
		Reason:     reason,
		At:         time.Now().UTC(),
	})
}
