// Package risk holds the admission-control and circuit-breaker rules.
// Everything here is a pure decision over an execution's counters.
package risk

import (
	"fmt"

	"autotrader/internal/strategy"
	"autotrader/pkg/db"
)

// Decision is the outcome of admission control for one signal.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision {
	return Decision{Allowed: true}
}

func reject(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// ValidateSignal checks a signal against the execution's risk limits.
// HOLD is always admitted. BUY is checked against open position and the
// session counters, in that order. SELL only requires an open position.
func ValidateSignal(signalType strategy.SignalType, exec db.Execution) Decision {
	switch signalType {
	case strategy.Hold:
		return allow()

	case strategy.Buy:
		if exec.HasOpenPosition {
			return reject("already have an open position")
		}
		if exec.MaxTradesPerDay > 0 && exec.TradesToday >= exec.MaxTradesPerDay {
			return reject(fmt.Sprintf("daily trade limit reached: %d/%d", exec.TradesToday, exec.MaxTradesPerDay))
		}
		if exec.MaxLossPerDay > 0 && exec.LossToday >= exec.MaxLossPerDay {
			return reject(fmt.Sprintf("daily loss limit reached: %.2f/%.2f", exec.LossToday, exec.MaxLossPerDay))
		}
		if exec.MaxConsecutiveLosses > 0 && exec.ConsecutiveLosses >= exec.MaxConsecutiveLosses {
			return reject(fmt.Sprintf("consecutive loss limit reached: %d/%d", exec.ConsecutiveLosses, exec.MaxConsecutiveLosses))
		}
		return allow()

	case strategy.Sell:
		if !exec.HasOpenPosition {
			return reject("no open position to close")
		}
		return allow()

	default:
		return reject(fmt.Sprintf("unknown signal type %q", signalType))
	}
}

// ApplyTrade folds one fill into the execution's session counters.
// Every fill counts toward trades_today; realized PnL only exists on SELL,
// where a loss grows loss_today and the consecutive-loss streak and a
// non-losing close resets the streak.
func ApplyTrade(exec *db.Execution, signalType strategy.SignalType, pnl float64) {
	exec.TradesToday++

	if signalType != strategy.Sell {
		return
	}
	if pnl < 0 {
		exec.LossToday += -pnl
		exec.ConsecutiveLosses++
	} else {
		exec.ConsecutiveLosses = 0
	}
}
