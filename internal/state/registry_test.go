package state

import (
	"context"
	"errors"
	"sync"
	"testing"

	"autotrader/pkg/db"
)

func newTestRegistry(t *testing.T) (*Registry, *db.Database) {
	t.Helper()
	database, err := db.New(":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := db.ApplyMigrations(database); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewRegistry(database), database
}

func seedStrategy(t *testing.T, database *db.Database, id string) {
	t.Helper()
	err := database.CreateStrategy(context.Background(), db.Strategy{
		ID: id, Name: "strat-" + id, Symbol: "AAPL", Family: "rsi", Timeframe: "5Min",
		Qty: 1, MaxTradesPerDay: 10, MaxLossPerDay: 500, MaxConsecutiveLosses: 3,
	})
	if err != nil {
		t.Fatalf("seed strategy: %v", err)
	}
}

func TestRegistryCreateAndGet(t *testing.T) {
	ctx := context.Background()
	reg, database := newTestRegistry(t)
	seedStrategy(t, database, "s1")

	exec := db.Execution{StrategyID: "s1", State: string(StateIdle), MaxTradesPerDay: 10}
	if err := reg.Create(ctx, exec); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	got, ok := reg.Get("s1")
	if !ok {
		t.Fatal("Get returned no execution")
	}
	if got.State != string(StateIdle) {
		t.Fatalf("State=%q, expected IDLE", got.State)
	}

	if _, ok := reg.Get("missing"); ok {
		t.Fatal("Get returned an execution for an unknown strategy")
	}
}

func TestRegistryLoad(t *testing.T) {
	ctx := context.Background()
	reg, database := newTestRegistry(t)
	seedStrategy(t, database, "s1")

	err := database.SaveExecution(ctx, db.Execution{
		StrategyID: "s1", State: string(StateActive), TradesToday: 4, MaxTradesPerDay: 10,
	})
	if err != nil {
		t.Fatalf("SaveExecution error: %v", err)
	}

	fresh := NewRegistry(database)
	if err := fresh.Load(ctx); err != nil {
		t.Fatalf("Load error: %v", err)
	}

	got, ok := fresh.Get("s1")
	if !ok || got.TradesToday != 4 {
		t.Fatalf("loaded execution=%+v ok=%v, expected TradesToday=4", got, ok)
	}

	_ = reg
}

func TestRegistryUpdate(t *testing.T) {
	ctx := context.Background()
	reg, database := newTestRegistry(t)
	seedStrategy(t, database, "s1")

	if err := reg.Create(ctx, db.Execution{StrategyID: "s1", State: string(StateActive)}); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	t.Run("persists mutations", func(t *testing.T) {
		updated, err := reg.Update(ctx, "s1", func(e *db.Execution) error {
			e.TradesToday = 3
			return nil
		})
		if err != nil {
			t.Fatalf("Update error: %v", err)
		}
		if updated.TradesToday != 3 {
			t.Fatalf("TradesToday=%d, expected 3", updated.TradesToday)
		}

		row, err := database.GetExecution(ctx, "s1")
		if err != nil || row == nil {
			t.Fatalf("GetExecution: row=%v err=%v", row, err)
		}
		if row.TradesToday != 3 {
			t.Fatalf("persisted TradesToday=%d, expected 3", row.TradesToday)
		}
	})

	t.Run("fn error aborts without persisting", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := reg.Update(ctx, "s1", func(e *db.Execution) error {
			e.TradesToday = 99
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("error=%v, expected boom", err)
		}

		got, _ := reg.Get("s1")
		if got.TradesToday != 3 {
			t.Fatalf("TradesToday=%d after aborted update, expected 3", got.TradesToday)
		}
	})

	t.Run("unknown strategy", func(t *testing.T) {
		_, err := reg.Update(ctx, "missing", func(e *db.Execution) error { return nil })
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("error=%v, expected ErrNotFound", err)
		}
	})
}

func TestRegistryUpdateSerializes(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(nil)
	if err := reg.Create(ctx, db.Execution{StrategyID: "s1", State: string(StateActive)}); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	const workers = 8
	const perWorker = 50

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				_, _ = reg.Update(ctx, "s1", func(e *db.Execution) error {
					e.TradesToday++
					return nil
				})
			}
		}()
	}
	wg.Wait()

	got, _ := reg.Get("s1")
	if got.TradesToday != workers*perWorker {
		t.Fatalf("TradesToday=%d, expected %d", got.TradesToday, workers*perWorker)
	}
}

func TestRegistryListByState(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(nil)

	for _, e := range []db.Execution{
		{StrategyID: "a", State: string(StateActive)},
		{StrategyID: "b", State: string(StatePaused)},
		{StrategyID: "c", State: string(StateActive)},
	} {
		if err := reg.Create(ctx, e); err != nil {
			t.Fatalf("Create error: %v", err)
		}
	}

	active := reg.ListByState(StateActive)
	if len(active) != 2 {
		t.Fatalf("len(active)=%d, expected 2", len(active))
	}
	for _, e := range active {
		if e.State != string(StateActive) {
			t.Fatalf("state=%q in active list", e.State)
		}
	}
}

func TestTerminal(t *testing.T) {
	for s, want := range map[State]bool{
		StateIdle: false, StateActive: false, StatePaused: false,
		StateCircuitBreaker: true, StateError: true, StateStopped: true,
	} {
		if got := Terminal(s); got != want {
			t.Fatalf("Terminal(%s)=%v, expected %v", s, got, want)
		}
	}
}
