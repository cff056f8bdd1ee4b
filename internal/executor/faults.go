package executor

import (
	"encoding/json"
	"fmt"
)

// FaultKind classifies what went wrong in one evaluation cycle.
type FaultKind string

const (
	// FaultConfiguration means the strategy setup is invalid. Not retryable
	// without user correction; counts toward error_count.
	FaultConfiguration FaultKind = "configuration"
	// FaultInsufficientData means the bar window was too short or the data
	// fetch failed. Yields no signal and leaves error_count untouched.
	FaultInsufficientData FaultKind = "insufficient_data"
	// FaultBroker means order placement failed or timed out. Counts toward
	// error_count; the order did not take effect.
	FaultBroker FaultKind = "broker"
	// FaultInternal covers recovered panics inside a cycle. Counts toward
	// error_count.
	FaultInternal FaultKind = "internal"
)

// Five faults that count toward error_count in a row force the ERROR state.
const maxConsecutiveFaults = 5

// Fault is one cycle's attributed failure.
type Fault struct {
	Kind FaultKind
	Err  error
}

func (f *Fault) Error() string {
	return fmt.Sprintf("%s fault: %v", f.Kind, f.Err)
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// MarshalJSON renders the fault for API responses, where the wrapped error
// would otherwise serialize to an empty object.
func (f *Fault) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind    FaultKind `json:"kind"`
		Message string    `json:"message"`
	}{Kind: f.Kind, Message: f.Err.Error()})
}

// Counts reports whether this fault kind increments error_count.
func (f *Fault) Counts() bool {
	return f.Kind != FaultInsufficientData
}

func configFault(format string, args ...any) *Fault {
	return &Fault{Kind: FaultConfiguration, Err: fmt.Errorf(format, args...)}
}

func dataFault(format string, args ...any) *Fault {
	return &Fault{Kind: FaultInsufficientData, Err: fmt.Errorf(format, args...)}
}

func brokerFault(format string, args ...any) *Fault {
	return &Fault{Kind: FaultBroker, Err: fmt.Errorf(format, args...)}
}

func internalFault(format string, args ...any) *Fault {
	return &Fault{Kind: FaultInternal, Err: fmt.Errorf(format, args...)}
}
