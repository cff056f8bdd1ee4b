// Package executor runs the per-strategy evaluation cycle: fetch a bar
// window, compute the indicator snapshot, evaluate the signal, gate it
// through the risk limits, dispatch the order, and settle the outcome
// into the execution row.
package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"autotrader/internal/events"
	"autotrader/internal/indicators"
	"autotrader/internal/market"
	"autotrader/internal/monitor"
	"autotrader/internal/order"
	"autotrader/internal/risk"
	"autotrader/internal/state"
	"autotrader/internal/strategy"
	"autotrader/pkg/broker"
	"autotrader/pkg/db"
)

// minBars is the smallest window any family evaluates against.
const minBars = 20

const (
	defaultDataTimeout  = 10 * time.Second
	defaultOrderTimeout = 15 * time.Second
)

// Config wires the cycle's collaborators. DB and Bus may be nil; audit
// rows and events are then skipped.
type Config struct {
	Data           market.DataProvider
	Orders         order.Executor
	Registry       *state.Registry
	DB             *db.Database
	Bus            *events.Bus
	Metrics        *monitor.Metrics
	DataTimeout    time.Duration
	OrderTimeout   time.Duration
	TradingEnabled bool
}

// Executor evaluates one strategy per call. All execution-row mutations
// happen inside the registry's per-strategy lock, so two cycles for the
// same strategy never interleave.
type Executor struct {
	data           market.DataProvider
	orders         order.Executor
	reg            *state.Registry
	db             *db.Database
	bus            *events.Bus
	metrics        *monitor.Metrics
	dataTimeout    time.Duration
	orderTimeout   time.Duration
	tradingEnabled bool
}

// New creates an executor from its wiring.
func New(cfg Config) *Executor {
	if cfg.Metrics == nil {
		cfg.Metrics = monitor.NewMetrics()
	}
	if cfg.DataTimeout <= 0 {
		cfg.DataTimeout = defaultDataTimeout
	}
	if cfg.OrderTimeout <= 0 {
		cfg.OrderTimeout = defaultOrderTimeout
	}
	return &Executor{
		data:           cfg.Data,
		orders:         cfg.Orders,
		reg:            cfg.Registry,
		db:             cfg.DB,
		bus:            cfg.Bus,
		metrics:        cfg.Metrics,
		dataTimeout:    cfg.DataTimeout,
		orderTimeout:   cfg.OrderTimeout,
		tradingEnabled: cfg.TradingEnabled,
	}
}

// Result summarizes one evaluation cycle.
type Result struct {
	StrategyID string              `json:"strategy_id"`
	SignalType strategy.SignalType `json:"signal_type"`
	Strength   float64             `json:"strength"`
	Reasoning  string              `json:"reasoning"`
	OrderID    string              `json:"order_id,omitempty"`
	Executed   bool                `json:"executed"`
	Rejection  string              `json:"rejection,omitempty"`
	Fault      *Fault              `json:"fault,omitempty"`
}

// Execute runs one evaluation cycle for the strategy. Cycle failures are
// attributed through Result.Fault and folded into the execution row; the
// returned error is reserved for a missing execution or a failed persist.
func (x *Executor) Execute(ctx context.Context, strat db.Strategy) (Result, error) {
	res := Result{StrategyID: strat.ID, SignalType: strategy.Hold}

	timer := monitor.NewTimer(x.metrics.CycleLatency)
	defer func() {
		timer.Stop()
		x.metrics.IncrementCycles()
	}()

	_, err := x.reg.Update(ctx, strat.ID, func(exec *db.Execution) error {
		// A panic inside the cycle is attributed to this execution and
		// must not escape the critical section with the lock held.
		defer func() {
			if r := recover(); r != nil {
				x.fail(exec, &res, internalFault("panic: %v", r))
			}
		}()
		x.runCycle(ctx, strat, exec, &res)
		return nil
	})
	return res, err
}

func (x *Executor) runCycle(ctx context.Context, strat db.Strategy, exec *db.Execution, res *Result) {
	now := time.Now().UTC()
	exec.LastEvaluatedAt = now

	gen, tf, fault := buildGenerator(strat)
	if fault != nil {
		x.fail(exec, res, fault)
		return
	}

	bars, fault := x.fetchBars(ctx, strat.Symbol, tf)
	if fault != nil {
		x.fail(exec, res, fault)
		return
	}

	ind, err := gen.Snapshot(bars)
	if err != nil {
		if errors.Is(err, indicators.ErrInsufficientData) {
			x.fail(exec, res, dataFault("snapshot for %s: %v", strat.Symbol, err))
		} else {
			x.fail(exec, res, configFault("snapshot for %s: %v", strat.Symbol, err))
		}
		return
	}
	price := bars[len(bars)-1].Close

	sig := gen.Evaluate(price, ind, exec.HasOpenPosition)
	res.SignalType = sig.Type
	res.Strength = sig.Strength
	res.Reasoning = sig.Reasoning
	if sig.Type != strategy.Hold {
		exec.LastSignalAt = now
		x.metrics.IncrementSignals()
	}

	sigID := x.auditSignal(ctx, strat, sig, price, ind, now)
	defer x.publishSignal(strat, res, now)

	if d := risk.ValidateSignal(sig.Type, *exec); !d.Allowed {
		res.Rejection = d.Reason
		x.auditOutcome(ctx, sigID, false, d.Reason, "")
		x.finishClean(exec)
		return
	}

	if sig.Type == strategy.Hold {
		x.finishClean(exec)
		return
	}

	if why := x.dispatchBlock(strat, exec); why != "" {
		res.Rejection = why
		x.auditOutcome(ctx, sigID, false, why, "")
		x.finishClean(exec)
		return
	}

	side := broker.SideBuy
	qty := strat.Qty
	notional := strat.Notional
	if qty > 0 {
		notional = 0
	}
	if sig.Type == strategy.Sell {
		// A SELL unwinds whatever is held, not the configured entry size.
		side = broker.SideSell
		qty = exec.PositionQty
		notional = 0
	}

	req := order.Request{
		StrategyID: strat.ID,
		Symbol:     strat.Symbol,
		Side:       side,
		Qty:        qty,
		Notional:   notional,
		PriceHint:  price,
	}

	orderCtx, cancel := context.WithTimeout(ctx, x.orderTimeout)
	orderTimer := monitor.NewTimer(x.metrics.OrderLatency)
	fill, err := x.orders.PlaceOrder(orderCtx, req)
	orderTimer.Stop()
	cancel()
	if err != nil {
		x.auditOutcome(ctx, sigID, false, "", err.Error())
		x.publish(events.EventOrderFailed, events.OrderFailedEvent{
			StrategyID: strat.ID,
			Symbol:     strat.Symbol,
			Side:       string(side),
			Reason:     err.Error(),
			At:         now,
		})
		x.fail(exec, res, brokerFault("place %s %s: %v", side, strat.Symbol, err))
		return
	}

	var pnl float64
	if sig.Type == strategy.Buy {
		exec.HasOpenPosition = true
		exec.PositionQty = fill.Qty
		exec.EntryPrice = fill.AvgPrice
	} else {
		pnl = (fill.AvgPrice - exec.EntryPrice) * exec.PositionQty
		exec.HasOpenPosition = false
		exec.PositionQty = 0
		exec.EntryPrice = 0
	}
	risk.ApplyTrade(exec, sig.Type, pnl)

	res.OrderID = fill.OrderID
	res.Executed = true
	x.metrics.IncrementOrders()
	log.Printf("✅ %s: %s %s qty=%.4f @ %.2f", strat.Name, side, strat.Symbol, fill.Qty, fill.AvgPrice)

	x.auditTrade(ctx, strat, fill, side, pnl, now)
	x.auditOutcome(ctx, sigID, true, "", "")
	x.publish(events.EventOrderPlaced, events.OrderPlacedEvent{
		StrategyID: strat.ID,
		OrderID:    fill.OrderID,
		Symbol:     strat.Symbol,
		Side:       string(side),
		Qty:        fill.Qty,
		Price:      fill.AvgPrice,
		PnL:        pnl,
		At:         now,
	})

	// The fill may have pushed a counter over its limit.
	if tripped, reason := risk.CircuitBreakerReason(*exec); tripped && state.State(exec.State) == state.StateActive {
		x.trip(exec, strat, reason, now)
	}

	x.finishClean(exec)
}

// buildGenerator validates the strategy row into a runnable generator.
func buildGenerator(strat db.Strategy) (strategy.Generator, market.Timeframe, *Fault) {
	if strat.Symbol == "" {
		return nil, "", configFault("strategy %q has no symbol", strat.Name)
	}
	tf, err := market.ParseTimeframe(strat.Timeframe)
	if err != nil {
		return nil, "", configFault("strategy %q: %v", strat.Name, err)
	}
	gen, err := strategy.New(strategy.Family(strat.Family), json.RawMessage(strat.Params))
	if err != nil {
		return nil, "", configFault("strategy %q: %v", strat.Name, err)
	}
	return gen, tf, nil
}

func (x *Executor) fetchBars(ctx context.Context, symbol string, tf market.Timeframe) ([]market.Bar, *Fault) {
	end := time.Now().UTC()
	start := end.AddDate(0, 0, -tf.WindowDays())

	fetchCtx, cancel := context.WithTimeout(ctx, x.dataTimeout)
	defer cancel()

	timer := monitor.NewTimer(x.metrics.DataLatency)
	bars, err := x.data.GetBars(fetchCtx, symbol, tf, start, end, 0)
	timer.Stop()
	if err != nil {
		return nil, dataFault("fetch bars for %s: %v", symbol, err)
	}
	if len(bars) < minBars {
		return nil, dataFault("only %d bars for %s, need at least %d", len(bars), symbol, minBars)
	}
	return bars, nil
}

// dispatchBlock reports why an admitted non-HOLD signal must stay
// signal-only. Empty means dispatch.
func (x *Executor) dispatchBlock(strat db.Strategy, exec *db.Execution) string {
	if strat.DryRun {
		return "not dispatched: dry run"
	}
	if !x.tradingEnabled {
		return "not dispatched: trading disabled"
	}
	if state.State(exec.State) != state.StateActive {
		return fmt.Sprintf("not dispatched: execution state %s", exec.State)
	}
	return ""
}

// fail attributes a cycle fault. Insufficient data is benign and leaves
// the fault streak alone; configuration and broker faults grow it and
// force ERROR once it reaches maxConsecutiveFaults.
func (x *Executor) fail(exec *db.Execution, res *Result, f *Fault) {
	res.Fault = f
	x.metrics.IncrementFaults()

	if !f.Counts() {
		log.Printf("⚠️ %s: %v", exec.StrategyID, f)
		return
	}

	exec.ErrorCount++
	exec.LastError = f.Error()
	log.Printf("❌ %s: %v (fault %d/%d)", exec.StrategyID, f, exec.ErrorCount, maxConsecutiveFaults)

	if exec.ErrorCount >= maxConsecutiveFaults && state.State(exec.State) == state.StateActive {
		from := exec.State
		exec.State = string(state.StateError)
		log.Printf("❌ %s entered ERROR after %d consecutive faults", exec.StrategyID, exec.ErrorCount)
		x.publish(events.EventStateChanged, events.StateChangedEvent{
			StrategyID: exec.StrategyID,
			From:       from,
			To:         exec.State,
			Reason:     fmt.Sprintf("%d consecutive faults: %v", exec.ErrorCount, f.Err),
			At:         time.Now().UTC(),
		})
	}
}

// finishClean closes a fault-free cycle and resets the fault streak.
func (x *Executor) finishClean(exec *db.Execution) {
	exec.ErrorCount = 0
	exec.LastError = ""
}

func (x *Executor) trip(exec *db.Execution, strat db.Strategy, reason string, now time.Time) {
	from := exec.State
	exec.State = string(state.StateCircuitBreaker)
	x.metrics.IncrementBreakerTrips()
	log.Printf("⚠️ circuit breaker tripped for %s: %s", strat.Name, reason)

	x.publish(events.EventCircuitBreaker, events.CircuitBreakerEvent{
		StrategyID: strat.ID,
		Reason:     reason,
		At:         now,
	})
	x.publish(events.EventStateChanged, events.StateChangedEvent{
		StrategyID: strat.ID,
		From:       from,
		To:         exec.State,
		Reason:     reason,
		At:         now,
	})
}

// auditSignal writes the signal row and returns its id, or "" when there
// is no database. Audit failures are logged, never fatal to the cycle.
func (x *Executor) auditSignal(ctx context.Context, strat db.Strategy, sig strategy.Signal, price float64, ind map[string]float64, now time.Time) string {
	if x.db == nil {
		return ""
	}
	snapshot, err := json.Marshal(ind)
	if err != nil {
		snapshot = []byte("{}")
	}
	rec := db.SignalRecord{
		ID:                uuid.NewString(),
		StrategyID:        strat.ID,
		Symbol:            strat.Symbol,
		SignalType:        string(sig.Type),
		Strength:          sig.Strength,
		PriceAtSignal:     price,
		IndicatorSnapshot: string(snapshot),
		Reasoning:         sig.Reasoning,
		CreatedAt:         now,
	}
	if err := x.db.InsertSignal(ctx, rec); err != nil {
		log.Printf("⚠️ insert signal for %s: %v", strat.Name, err)
		return ""
	}
	return rec.ID
}

func (x *Executor) auditOutcome(ctx context.Context, sigID string, wasExecuted bool, rejection, execErr string) {
	if x.db == nil || sigID == "" {
		return
	}
	if err := x.db.UpdateSignalOutcome(ctx, sigID, wasExecuted, rejection, execErr); err != nil {
		log.Printf("⚠️ update signal outcome %s: %v", sigID, err)
	}
}

func (x *Executor) auditTrade(ctx context.Context, strat db.Strategy, fill order.Fill, side broker.Side, pnl float64, now time.Time) {
	if x.db == nil {
		return
	}
	t := db.Trade{
		ID:         uuid.NewString(),
		StrategyID: strat.ID,
		OrderID:    fill.OrderID,
		Symbol:     strat.Symbol,
		Side:       string(side),
		Qty:        fill.Qty,
		Price:      fill.AvgPrice,
		Notional:   fill.Qty * fill.AvgPrice,
		PnL:        pnl,
		ExecutedAt: now,
	}
	if err := x.db.InsertTrade(ctx, t); err != nil {
		log.Printf("⚠️ insert trade for %s: %v", strat.Name, err)
	}
}

func (x *Executor) publishSignal(strat db.Strategy, res *Result, now time.Time) {
	x.publish(events.EventSignal, events.SignalEvent{
		StrategyID: strat.ID,
		Symbol:     strat.Symbol,
		Type:       string(res.SignalType),
		Strength:   res.Strength,
		Reasoning:  res.Reasoning,
		Executed:   res.Executed,
		At:         now,
	})
}

func (x *Executor) publish(e events.Event, payload any) {
	if x.bus != nil {
		x.bus.Publish(e, payload)
	}
}
