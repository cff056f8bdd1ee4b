package main

import (
	"context"
	"log"

	"github.com/google/uuid"

	"autotrader/internal/executor"
	"autotrader/internal/market"
	"autotrader/internal/order"
	"autotrader/internal/state"
	"autotrader/internal/strategy"
	"autotrader/pkg/db"
)

// dry_run_demo runs evaluation cycles against synthetic market data and
// an in-memory database. It never touches a broker or the real store.
//
// Usage:
//   go run ./scripts/dry_run_demo
//
// It will:
//   1) Create an RSI strategy and sweep synthetic walks until one
//      produces a BUY that fills through the simulated executor.
//   2) Re-run the same walk with the daily trade budget exhausted to
//      show the risk gate rejecting the signal.
//   3) Print the final execution counters.

func main() {
	log.Println("=== dry-run demo starting ===")

	ctx := context.Background()

	database, err := db.New(":memory:")
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer database.Close()
	if err := db.ApplyMigrations(database); err != nil {
		log.Fatalf("apply migrations: %v", err)
	}

	registry := state.NewRegistry(database)

	strat := db.Strategy{
		ID:                   uuid.NewString(),
		Name:                 "demo-rsi",
		Symbol:               "DEMO",
		Family:               "rsi",
		Timeframe:            "15Min",
		Params:               `{"period":14,"oversold":30,"overbought":70}`,
		Qty:                  5,
		Enabled:              true,
		MaxTradesPerDay:      3,
		MaxLossPerDay:        500,
		MaxConsecutiveLosses: 3,
	}
	if err := database.CreateStrategy(ctx, strat); err != nil {
		log.Fatalf("create strategy: %v", err)
	}
	if err := registry.Create(ctx, db.Execution{
		StrategyID:           strat.ID,
		State:                string(state.StateActive),
		MaxTradesPerDay:      strat.MaxTradesPerDay,
		MaxLossPerDay:        strat.MaxLossPerDay,
		MaxConsecutiveLosses: strat.MaxConsecutiveLosses,
	}); err != nil {
		log.Fatalf("create execution: %v", err)
	}

	log.Println("[scenario 1] sweep synthetic walks until a BUY fills")
	var buySeed int64 = -1
	for seed := int64(1); seed <= 200; seed++ {
		runner := executor.New(executor.Config{
			Data:           market.NewSyntheticProvider(seed),
			Orders:         order.NewSimExecutor(100_000),
			Registry:       registry,
			DB:             database,
			TradingEnabled: true,
		})
		res, err := runner.Execute(ctx, strat)
		if err != nil {
			log.Fatalf("execute: %v", err)
		}
		if res.SignalType != strategy.Buy {
			continue
		}
		buySeed = seed
		log.Printf("seed %d: %s strength=%.2f reasoning=%q", seed, res.SignalType, res.Strength, res.Reasoning)
		if res.Executed {
			log.Printf("order %s filled through the simulator", res.OrderID)
		} else {
			log.Printf("signal not dispatched: %s", res.Rejection)
		}
		break
	}
	if buySeed < 0 {
		log.Fatal("no BUY signal in 200 synthetic walks")
	}

	log.Println("[scenario 2] same walk with the daily trade budget spent")
	if _, err := registry.Update(ctx, strat.ID, func(e *db.Execution) error {
		e.TradesToday = e.MaxTradesPerDay
		e.HasOpenPosition = false
		e.PositionQty = 0
		return nil
	}); err != nil {
		log.Fatalf("update execution: %v", err)
	}
	runner := executor.New(executor.Config{
		Data:           market.NewSyntheticProvider(buySeed),
		Orders:         order.NewSimExecutor(100_000),
		Registry:       registry,
		DB:             database,
		TradingEnabled: true,
	})
	res, err := runner.Execute(ctx, strat)
	if err != nil {
		log.Fatalf("execute: %v", err)
	}
	log.Printf("signal=%s executed=%v rejection=%q", res.SignalType, res.Executed, res.Rejection)

	exec, _ := registry.Get(strat.ID)
	log.Printf("[done] state=%s trades_today=%d open_position=%v error_count=%d",
		exec.State, exec.TradesToday, exec.HasOpenPosition, exec.ErrorCount)

	log.Println("=== dry-run demo finished ===")
}
