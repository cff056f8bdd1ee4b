package risk

import (
	"strings"
	"testing"

	"autotrader/internal/strategy"
	"autotrader/pkg/db"
)

func baseExecution() db.Execution {
	return db.Execution{
		StrategyID:           "strat-1",
		State:                "ACTIVE",
		MaxTradesPerDay:      10,
		MaxLossPerDay:        500,
		MaxConsecutiveLosses: 3,
	}
}

func TestValidateSignalHold(t *testing.T) {
	exec := baseExecution()
	exec.HasOpenPosition = true
	exec.TradesToday = 99
	exec.LossToday = 9999
	exec.ConsecutiveLosses = 99

	dec := ValidateSignal(strategy.Hold, exec)
	if !dec.Allowed {
		t.Fatalf("HOLD rejected: %q", dec.Reason)
	}
}

func TestValidateSignalBuy(t *testing.T) {
	t.Run("open position rejects regardless of counters", func(t *testing.T) {
		exec := baseExecution()
		exec.HasOpenPosition = true

		dec := ValidateSignal(strategy.Buy, exec)
		if dec.Allowed {
			t.Fatal("BUY admitted with an open position")
		}
		if !strings.Contains(dec.Reason, "open position") {
			t.Fatalf("reason=%q, expected open-position rejection", dec.Reason)
		}
	})

	t.Run("position check precedes counter checks", func(t *testing.T) {
		exec := baseExecution()
		exec.HasOpenPosition = true
		exec.TradesToday = exec.MaxTradesPerDay

		dec := ValidateSignal(strategy.Buy, exec)
		if dec.Allowed || !strings.Contains(dec.Reason, "open position") {
			t.Fatalf("decision=%+v, expected open-position rejection first", dec)
		}
	})

	t.Run("trade limit embeds the limit", func(t *testing.T) {
		exec := baseExecution()
		exec.TradesToday = 10

		dec := ValidateSignal(strategy.Buy, exec)
		if dec.Allowed {
			t.Fatal("BUY admitted at the daily trade limit")
		}
		if !strings.Contains(dec.Reason, "10") {
			t.Fatalf("reason=%q does not embed the limit", dec.Reason)
		}
	})

	t.Run("loss limit", func(t *testing.T) {
		exec := baseExecution()
		exec.LossToday = 500

		dec := ValidateSignal(strategy.Buy, exec)
		if dec.Allowed || !strings.Contains(dec.Reason, "500.00") {
			t.Fatalf("decision=%+v, expected loss-limit rejection", dec)
		}
	})

	t.Run("consecutive loss limit", func(t *testing.T) {
		exec := baseExecution()
		exec.ConsecutiveLosses = 3

		dec := ValidateSignal(strategy.Buy, exec)
		if dec.Allowed || !strings.Contains(dec.Reason, "3/3") {
			t.Fatalf("decision=%+v, expected consecutive-loss rejection", dec)
		}
	})

	t.Run("clean counters admit", func(t *testing.T) {
		exec := baseExecution()
		exec.TradesToday = 9
		exec.LossToday = 499.99
		exec.ConsecutiveLosses = 2

		dec := ValidateSignal(strategy.Buy, exec)
		if !dec.Allowed {
			t.Fatalf("BUY rejected under limits: %q", dec.Reason)
		}
	})
}

func TestValidateSignalSell(t *testing.T) {
	t.Run("no position rejects", func(t *testing.T) {
		exec := baseExecution()

		dec := ValidateSignal(strategy.Sell, exec)
		if dec.Allowed {
			t.Fatal("SELL admitted without a position")
		}
		if !strings.Contains(dec.Reason, "no open position") {
			t.Fatalf("reason=%q, expected no-position rejection", dec.Reason)
		}
	})

	t.Run("position admits even with counters breached", func(t *testing.T) {
		exec := baseExecution()
		exec.HasOpenPosition = true
		exec.TradesToday = 99
		exec.LossToday = 9999
		exec.ConsecutiveLosses = 99

		dec := ValidateSignal(strategy.Sell, exec)
		if !dec.Allowed {
			t.Fatalf("SELL rejected with a position: %q", dec.Reason)
		}
	})
}

func TestApplyTrade(t *testing.T) {
	t.Run("buy counts the trade only", func(t *testing.T) {
		exec := baseExecution()
		ApplyTrade(&exec, strategy.Buy, 0)

		if exec.TradesToday != 1 {
			t.Fatalf("TradesToday=%d, expected 1", exec.TradesToday)
		}
		if exec.LossToday != 0 || exec.ConsecutiveLosses != 0 {
			t.Fatalf("loss fields mutated on BUY: %+v", exec)
		}
	})

	t.Run("losing sell grows loss and streak", func(t *testing.T) {
		exec := baseExecution()
		ApplyTrade(&exec, strategy.Sell, -120.50)

		if exec.TradesToday != 1 {
			t.Fatalf("TradesToday=%d, expected 1", exec.TradesToday)
		}
		if exec.LossToday != 120.50 {
			t.Fatalf("LossToday=%v, expected 120.50", exec.LossToday)
		}
		if exec.ConsecutiveLosses != 1 {
			t.Fatalf("ConsecutiveLosses=%d, expected 1", exec.ConsecutiveLosses)
		}
	})

	t.Run("winning sell resets the streak but not the loss total", func(t *testing.T) {
		exec := baseExecution()
		ApplyTrade(&exec, strategy.Sell, -50)
		ApplyTrade(&exec, strategy.Sell, -30)
		ApplyTrade(&exec, strategy.Sell, 200)

		if exec.ConsecutiveLosses != 0 {
			t.Fatalf("ConsecutiveLosses=%d after winner, expected 0", exec.ConsecutiveLosses)
		}
		if exec.LossToday != 80 {
			t.Fatalf("LossToday=%v, expected 80 (monotonic)", exec.LossToday)
		}
		if exec.TradesToday != 3 {
			t.Fatalf("TradesToday=%d, expected 3", exec.TradesToday)
		}
	})
}

func TestCircuitBreakerReason(t *testing.T) {
	t.Run("under limits", func(t *testing.T) {
		exec := baseExecution()
		exec.TradesToday = 9
		exec.LossToday = 499
		exec.ConsecutiveLosses = 2

		if tripped, reason := CircuitBreakerReason(exec); tripped {
			t.Fatalf("tripped under limits: %q", reason)
		}
	})

	t.Run("loss limit trips first", func(t *testing.T) {
		exec := baseExecution()
		exec.LossToday = 500
		exec.TradesToday = 10

		tripped, reason := CircuitBreakerReason(exec)
		if !tripped {
			t.Fatal("not tripped at loss limit")
		}
		if !strings.Contains(reason, "loss limit") {
			t.Fatalf("reason=%q, expected the loss limit to take priority", reason)
		}
	})

	t.Run("consecutive losses trip", func(t *testing.T) {
		exec := baseExecution()
		exec.ConsecutiveLosses = 3

		tripped, reason := CircuitBreakerReason(exec)
		if !tripped || !strings.Contains(reason, "consecutive") {
			t.Fatalf("tripped=%v reason=%q, expected consecutive-loss trip", tripped, reason)
		}
	})

	t.Run("trade count trips", func(t *testing.T) {
		exec := baseExecution()
		exec.TradesToday = 10

		tripped, reason := CircuitBreakerReason(exec)
		if !tripped || !strings.Contains(reason, "trade limit") {
			t.Fatalf("tripped=%v reason=%q, expected trade-limit trip", tripped, reason)
		}
	})
}
