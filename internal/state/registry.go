package state

import (
	"context"
	"errors"
	"sync"

	"autotrader/pkg/db"
)

// ErrNotFound is returned when no execution exists for a strategy.
var ErrNotFound = errors.New("execution not found")

// Registry holds the executions and their cycle locks. Reads return the
// latest committed snapshot; mutations go through Update, which holds the
// execution's lock for the whole closure so cycles for the same strategy
// never overlap.
type Registry struct {
	mu    sync.RWMutex
	execs map[string]db.Execution
	locks map[string]*sync.Mutex
	db    *db.Database
}

// NewRegistry creates a registry. A nil database keeps state in memory only.
func NewRegistry(database *db.Database) *Registry {
	return &Registry{
		execs: make(map[string]db.Execution),
		locks: make(map[string]*sync.Mutex),
		db:    database,
	}
}

// Load seeds the in-memory view from the database on startup.
func (r *Registry) Load(ctx context.Context) error {
	if r.db == nil {
		return nil
	}
	execs, err := r.db.ListExecutions(ctx)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range execs {
		r.execs[e.StrategyID] = e
	}
	return nil
}

// Get returns the latest committed snapshot for a strategy.
func (r *Registry) Get(strategyID string) (db.Execution, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.execs[strategyID]
	return e, ok
}

// List returns a snapshot of all executions.
func (r *Registry) List() []db.Execution {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]db.Execution, 0, len(r.execs))
	for _, e := range r.execs {
		out = append(out, e)
	}
	return out
}

// ListByState returns snapshots of the executions currently in s.
func (r *Registry) ListByState(s State) []db.Execution {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []db.Execution
	for _, e := range r.execs {
		if State(e.State) == s {
			out = append(out, e)
		}
	}
	return out
}

// Create persists a new execution and publishes it to the in-memory view.
func (r *Registry) Create(ctx context.Context, exec db.Execution) error {
	if r.db != nil {
		if err := r.db.SaveExecution(ctx, exec); err != nil {
			return err
		}
	}
	r.mu.Lock()
	r.execs[exec.StrategyID] = exec
	r.mu.Unlock()
	return nil
}

// Update runs fn while holding the execution's lock, then persists and
// publishes the result. A fn error aborts without persisting. Concurrent
// reads during fn see the previous committed snapshot.
func (r *Registry) Update(ctx context.Context, strategyID string, fn func(*db.Execution) error) (db.Execution, error) {
	lock, ok := r.lockFor(strategyID)
	if !ok {
		return db.Execution{}, ErrNotFound
	}
	lock.Lock()
	defer lock.Unlock()

	r.mu.RLock()
	exec, ok := r.execs[strategyID]
	r.mu.RUnlock()
	if !ok {
		return db.Execution{}, ErrNotFound
	}

	if err := fn(&exec); err != nil {
		return exec, err
	}

	if r.db != nil {
		if err := r.db.SaveExecution(ctx, exec); err != nil {
			return exec, err
		}
	}
	r.mu.Lock()
	r.execs[strategyID] = exec
	r.mu.Unlock()
	return exec, nil
}

// Remove drops an execution from the in-memory view. The database row is
// removed by the strategy-deletion cascade.
func (r *Registry) Remove(strategyID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.execs, strategyID)
	delete(r.locks, strategyID)
}

func (r *Registry) lockFor(strategyID string) (*sync.Mutex, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.execs[strategyID]; !ok {
		return nil, false
	}
	lock, ok := r.locks[strategyID]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[strategyID] = lock
	}
	return lock, true
}
