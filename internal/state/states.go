// Package state keeps the in-memory view of strategy executions while
// persisting every mutation for durability. It also owns the per-execution
// lock that serializes evaluation cycles.
package state

// State is the automation lifecycle state of one execution.
type State string

const (
	StateIdle           State = "IDLE"
	StateActive         State = "ACTIVE"
	StatePaused         State = "PAUSED"
	StateCircuitBreaker State = "CIRCUIT_BREAKER"
	StateError          State = "ERROR"
	StateStopped        State = "STOPPED"
)

// States returns every lifecycle state.
func States() []State {
	return []State{StateIdle, StateActive, StatePaused, StateCircuitBreaker, StateError, StateStopped}
}

// Terminal reports whether automated trading is suspended until an explicit
// user action. CIRCUIT_BREAKER and ERROR never self-heal.
func Terminal(s State) bool {
	return s == StateCircuitBreaker || s == StateError || s == StateStopped
}
