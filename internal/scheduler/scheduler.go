// Package scheduler drives the evaluation loop. A wall-clock ticker fans
// ACTIVE executions out to a bounded worker pool while the market is open,
// and runs the session bookkeeping jobs at the open and close edges.
package scheduler

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"autotrader/internal/events"
	"autotrader/internal/executor"
	"autotrader/internal/market"
	"autotrader/internal/monitor"
	"autotrader/internal/state"
	"autotrader/pkg/db"
)

// settingLastReset stores the venue-local day of the last session-open
// reset, so a mid-session restart does not re-zero counters.
const settingLastReset = "scheduler.last_daily_reset"

const (
	defaultInterval = 60 * time.Second
	defaultWorkers  = 5
)

// CycleRunner runs one evaluation cycle for a strategy.
type CycleRunner interface {
	Execute(ctx context.Context, strat db.Strategy) (executor.Result, error)
}

// StrategySource lists the configured strategies.
type StrategySource interface {
	ListStrategies(ctx context.Context) ([]db.Strategy, error)
}

// Config wires the scheduler. DB and Bus may be nil.
type Config struct {
	Interval   time.Duration
	Workers    int
	Calendar   *market.Calendar
	Registry   *state.Registry
	Strategies StrategySource
	Runner     CycleRunner
	DB         *db.Database
	Bus        *events.Bus
	Metrics    *monitor.Metrics
}

// Scheduler owns the tick loop.
type Scheduler struct {
	interval   time.Duration
	calendar   *market.Calendar
	reg        *state.Registry
	strategies StrategySource
	runner     CycleRunner
	db         *db.Database
	bus        *events.Bus
	metrics    *monitor.Metrics

	pool chan struct{}
	wg   sync.WaitGroup

	mu         sync.Mutex
	running    bool
	paused     bool
	marketOpen bool
	lastTick   time.Time
	cancel     context.CancelFunc
}

// New creates a scheduler from its wiring.
func New(cfg Config) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.Metrics == nil {
		cfg.Metrics = monitor.NewMetrics()
	}
	return &Scheduler{
		interval:   cfg.Interval,
		calendar:   cfg.Calendar,
		reg:        cfg.Registry,
		strategies: cfg.Strategies,
		runner:     cfg.Runner,
		db:         cfg.DB,
		bus:        cfg.Bus,
		metrics:    cfg.Metrics,
		pool:       make(chan struct{}, cfg.Workers),
	}
}

// Start launches the tick loop; the first tick fires immediately. ctx
// bounds the evaluations themselves: cancelling it aborts in-flight
// cycles at their next timeout, while Stop only halts the loop and lets
// them drain.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("scheduler already running")
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.mu.Unlock()

	go s.run(loopCtx, ctx)
	log.Printf("🚀 scheduler started: interval %v, %d workers", s.interval, cap(s.pool))
	return nil
}

// Stop halts the loop and waits for in-flight evaluations to finish
// their critical sections.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
	log.Println("🛑 scheduler stopped")
}

// Pause keeps the loop ticking but suspends evaluation dispatch. Session
// bookkeeping still runs at the boundaries.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
	log.Println("⏸️ scheduler paused")
}

// Resume re-enables evaluation dispatch.
func (s *Scheduler) Resume() {
	s.mu.Lock()
	s.paused = false
	s.mu.Unlock()
	log.Println("▶️ scheduler resumed")
}

func (s *Scheduler) run(loopCtx, evalCtx context.Context) {
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(loopCtx, evalCtx, time.Now())
	for {
		select {
		case <-loopCtx.Done():
			return
		case now := <-ticker.C:
			s.tick(loopCtx, evalCtx, now)
		}
	}
}

func (s *Scheduler) tick(loopCtx, evalCtx context.Context, now time.Time) {
	open := s.calendar.IsOpen(now)

	s.mu.Lock()
	was := s.marketOpen
	s.marketOpen = open
	s.lastTick = now
	paused := s.paused
	s.mu.Unlock()

	if open && !was {
		s.sessionOpen(evalCtx, now)
	}
	if !open && was {
		s.sessionClose(evalCtx, now)
	}

	dispatched := 0
	if open && !paused {
		dispatched = s.fanOut(loopCtx, evalCtx)
	}

	s.metrics.IncrementTicks()
	s.publish(events.EventTick, events.TickEvent{At: now, MarketOpen: open, Dispatched: dispatched})
}

func (s *Scheduler) fanOut(loopCtx, evalCtx context.Context) int {
	strats, err := s.strategies.ListStrategies(evalCtx)
	if err != nil {
		log.Printf("❌ list strategies: %v", err)
		return 0
	}
	byID := make(map[string]db.Strategy, len(strats))
	for _, st := range strats {
		byID[st.ID] = st
	}

	dispatched := 0
	for _, snap := range s.reg.ListByState(state.StateActive) {
		strat, ok := byID[snap.StrategyID]
		if !ok || !strat.Enabled {
			continue
		}
		select {
		case s.pool <- struct{}{}:
		case <-loopCtx.Done():
			return dispatched
		}
		s.wg.Add(1)
		go s.evaluate(evalCtx, strat)
		dispatched++
	}
	return dispatched
}

// evaluate runs one cycle in a worker slot. Nothing escapes: errors are
// logged against the strategy and panics stop at this boundary, so a bad
// evaluation never takes down the loop or its siblings.
func (s *Scheduler) evaluate(ctx context.Context, strat db.Strategy) {
	defer s.wg.Done()
	defer func() { <-s.pool }()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("❌ evaluation panic for %s: %v", strat.Name, r)
		}
	}()

	if _, err := s.runner.Execute(ctx, strat); err != nil {
		log.Printf("❌ evaluate %s: %v", strat.Name, err)
	}
}

// sessionOpen zeroes the session counters of every non-terminal execution
// and resumes the ones paused for the day boundary. Runs once per
// venue-local day.
func (s *Scheduler) sessionOpen(ctx context.Context, now time.Time) {
	day := s.calendar.Day(now)
	if s.db != nil {
		last, err := s.db.GetSetting(ctx, settingLastReset)
		if err != nil {
			log.Printf("⚠️ read last daily reset: %v", err)
		} else if last == day {
			return
		}
	}

	reset, resumed := 0, 0
	for _, snap := range s.reg.List() {
		if state.Terminal(state.State(snap.State)) {
			continue
		}
		id := snap.StrategyID
		var from string
		didResume := false
		_, err := s.reg.Update(ctx, id, func(e *db.Execution) error {
			if state.Terminal(state.State(e.State)) {
				return nil
			}
			e.TradesToday = 0
			e.LossToday = 0
			if e.PausedForDay && state.State(e.State) == state.StatePaused {
				from = e.State
				e.State = string(state.StateActive)
				e.PausedForDay = false
				didResume = true
			}
			return nil
		})
		if err != nil {
			log.Printf("⚠️ daily reset for %s: %v", id, err)
			continue
		}
		reset++
		if didResume {
			resumed++
			s.publish(events.EventStateChanged, events.StateChangedEvent{
				StrategyID: id,
				From:       from,
				To:         string(state.StateActive),
				Reason:     "session open",
				At:         now,
			})
		}
	}

	if s.db != nil {
		if err := s.db.PutSetting(ctx, settingLastReset, day); err != nil {
			log.Printf("⚠️ record daily reset day: %v", err)
		}
	}
	log.Printf("🔄 session open %s: counters reset for %d executions, %d resumed", day, reset, resumed)
	s.publish(events.EventDailyReset, events.DailyResetEvent{Day: day, Reset: reset, Resumed: resumed, At: now})
}

// sessionClose parks every ACTIVE execution for the day.
func (s *Scheduler) sessionClose(ctx context.Context, now time.Time) {
	paused := 0
	for _, snap := range s.reg.ListByState(state.StateActive) {
		id := snap.StrategyID
		var from string
		changed := false
		_, err := s.reg.Update(ctx, id, func(e *db.Execution) error {
			if state.State(e.State) != state.StateActive {
				return nil
			}
			from = e.State
			e.State = string(state.StatePaused)
			e.PausedForDay = true
			changed = true
			return nil
		})
		if err != nil {
			log.Printf("⚠️ session close for %s: %v", id, err)
			continue
		}
		if changed {
			paused++
			s.publish(events.EventStateChanged, events.StateChangedEvent{
				StrategyID: id,
				From:       from,
				To:         string(state.StatePaused),
				Reason:     "session close",
				At:         now,
			})
		}
	}
	if paused > 0 {
		log.Printf("🌙 session close: %d executions paused for the day", paused)
	}
}

// Status is the scheduler's runtime snapshot.
type Status struct {
	Running     bool      `json:"running"`
	Paused      bool      `json:"paused"`
	MarketOpen  bool      `json:"market_open"`
	Interval    string    `json:"interval"`
	LastTickAt  time.Time `json:"last_tick_at"`
	NextTickAt  time.Time `json:"next_tick_at"`
	ActiveCount int       `json:"active_strategy_count"`
	InFlight    int       `json:"in_flight"`
}

// Status reports the loop state and the current dispatch load.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	running := s.running
	paused := s.paused
	open := s.marketOpen
	last := s.lastTick
	s.mu.Unlock()

	st := Status{
		Running:     running,
		Paused:      paused,
		MarketOpen:  open,
		Interval:    s.interval.String(),
		LastTickAt:  last,
		ActiveCount: len(s.reg.ListByState(state.StateActive)),
		InFlight:    len(s.pool),
	}
	if running && !last.IsZero() {
		st.NextTickAt = last.Add(s.interval)
	}
	return st
}

func (s *Scheduler) publish(e events.Event, payload any) {
	if s.bus != nil {
		s.bus.Publish(e, payload)
	}
}
