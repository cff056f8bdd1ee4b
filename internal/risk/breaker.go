package risk

import (
	"fmt"

	"autotrader/pkg/db"
)

// CircuitBreakerReason reports whether the execution's counters have
// breached a risk threshold. Called immediately after each completed trade
// update; a true result moves the execution into CIRCUIT_BREAKER, which
// only an explicit reset clears.
func CircuitBreakerReason(exec db.Execution) (bool, string) {
	switch {
	case exec.MaxLossPerDay > 0 && exec.LossToday >= exec.MaxLossPerDay:
		return true, fmt.Sprintf("daily loss limit breached: %.2f/%.2f", exec.LossToday, exec.MaxLossPerDay)

	case exec.MaxConsecutiveLosses > 0 && exec.ConsecutiveLosses >= exec.MaxConsecutiveLosses:
		return true, fmt.Sprintf("consecutive loss limit breached: %d/%d", exec.ConsecutiveLosses, exec.MaxConsecutiveLosses)

	case exec.MaxTradesPerDay > 0 && exec.TradesToday >= exec.MaxTradesPerDay:
		return true, fmt.Sprintf("daily trade limit breached: %d/%d", exec.TradesToday, exec.MaxTradesPerDay)

	default:
		return false, ""
	}
}
