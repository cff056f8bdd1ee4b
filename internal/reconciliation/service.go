// Package reconciliation compares the position tracking in execution state
// against what the broker actually holds and repairs drift. The engine runs
// one pass at startup, before the scheduler dispatches anything, and can keep
// a periodic pass running after that.
package reconciliation

import (
	"context"
	"log"
	"math"
	"sort"
	"sync"
	"time"

	"autotrader/internal/state"
	"autotrader/pkg/broker"
	"autotrader/pkg/db"
)

// qtyTolerance is the quantity delta below which two positions count as equal.
const qtyTolerance = 0.0001

const defaultInterval = 5 * time.Minute

// PositionSource is the venue surface reconciliation needs.
type PositionSource interface {
	ListPositions(ctx context.Context) ([]broker.Position, error)
}

// StrategySource resolves strategy rows so executions can be mapped to symbols.
type StrategySource interface {
	ListStrategies(ctx context.Context) ([]db.Strategy, error)
}

// Service checks tracked positions against the venue.
type Service struct {
	venue      PositionSource
	reg        *state.Registry
	strategies StrategySource
	interval   time.Duration

	mu       sync.Mutex
	autoSync bool
}

// Config wires a reconciliation service.
type Config struct {
	Venue      PositionSource
	Registry   *state.Registry
	Strategies StrategySource
	Interval   time.Duration
	AutoSync   bool
}

// New creates a reconciliation service.
func New(cfg Config) *Service {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Service{
		venue:      cfg.Venue,
		reg:        cfg.Registry,
		strategies: cfg.Strategies,
		interval:   interval,
		autoSync:   cfg.AutoSync,
	}
}

// Report is the outcome of one reconciliation pass.
type Report struct {
	Timestamp   time.Time      `json:"timestamp"`
	Diffs       []PositionDiff `json:"diffs"`
	HasDiffs    bool           `json:"has_diffs"`
	SyncedCount int            `json:"synced_count"`
}

// PositionDiff is one mismatch between tracked and venue quantity.
// StrategyID is empty when the venue holds a symbol no execution tracks.
type PositionDiff struct {
	StrategyID string  `json:"strategy_id,omitempty"`
	Symbol     string  `json:"symbol"`
	LocalQty   float64 `json:"local_qty"`
	BrokerQty  float64 `json:"broker_qty"`
	Difference float64 `json:"difference"`
	Synced     bool    `json:"synced"`
}

// SetAutoSync enables or disables automatic repair of drifted positions.
func (s *Service) SetAutoSync(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autoSync = enabled
	log.Printf("📊 reconciliation auto-sync: %v", enabled)
}

// Start begins periodic reconciliation until ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := s.Reconcile(ctx); err != nil {
					log.Printf("❌ reconciliation: %v", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	log.Printf("✅ reconciliation started: interval %v, auto-sync %v", s.interval, s.autoSync)
}

// holder is one execution with tracked exposure in a symbol.
type holder struct {
	strategyID string
	qty        float64
}

// Reconcile performs one pass: every execution flagged with an open position
// is compared against the venue, and venue positions no execution tracks are
// reported. When auto-sync is on and a symbol is held by exactly one
// execution, the tracked quantity is overwritten with the venue quantity.
// A symbol held by several executions cannot be attributed and is only
// reported.
func (s *Service) Reconcile(ctx context.Context) (*Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report := &Report{Timestamp: time.Now().UTC()}
	if s.venue == nil {
		// Simulated broker: nothing venue-side to reconcile against.
		return report, nil
	}

	venuePositions, err := s.venue.ListPositions(ctx)
	if err != nil {
		return nil, err
	}
	bySymbol := make(map[string]broker.Position, len(venuePositions))
	for _, p := range venuePositions {
		bySymbol[p.Symbol] = p
	}

	strategies, err := s.strategies.ListStrategies(ctx)
	if err != nil {
		return nil, err
	}
	symbolOf := make(map[string]string, len(strategies))
	for _, strat := range strategies {
		symbolOf[strat.ID] = strat.Symbol
	}

	holders := make(map[string][]holder)
	for _, exec := range s.reg.List() {
		if !exec.HasOpenPosition {
			continue
		}
		symbol, ok := symbolOf[exec.StrategyID]
		if !ok || symbol == "" {
			log.Printf("⚠️ reconciliation: execution %s has a position but no strategy row", exec.StrategyID)
			continue
		}
		holders[symbol] = append(holders[symbol], holder{strategyID: exec.StrategyID, qty: exec.PositionQty})
	}

	for symbol, held := range holders {
		local := 0.0
		for _, h := range held {
			local += h.qty
		}
		venuePos := bySymbol[symbol]
		delete(bySymbol, symbol)

		if math.Abs(local-venuePos.Qty) <= qtyTolerance {
			continue
		}

		diff := PositionDiff{
			Symbol:     symbol,
			LocalQty:   local,
			BrokerQty:  venuePos.Qty,
			Difference: local - venuePos.Qty,
		}
		switch {
		case len(held) > 1:
			log.Printf("⚠️ reconciliation: %s held by %d executions, cannot attribute venue quantity", symbol, len(held))
		case s.autoSync:
			diff.StrategyID = held[0].strategyID
			if s.syncExecution(ctx, held[0].strategyID, venuePos) {
				diff.Synced = true
				report.SyncedCount++
			}
		default:
			diff.StrategyID = held[0].strategyID
		}
		report.Diffs = append(report.Diffs, diff)
		report.HasDiffs = true
	}

	// Whatever is left venue-side has no tracking execution at all.
	for symbol, venuePos := range bySymbol {
		if math.Abs(venuePos.Qty) <= qtyTolerance {
			continue
		}
		report.Diffs = append(report.Diffs, PositionDiff{
			Symbol:     symbol,
			LocalQty:   0,
			BrokerQty:  venuePos.Qty,
			Difference: -venuePos.Qty,
		})
		report.HasDiffs = true
	}

	sort.Slice(report.Diffs, func(i, j int) bool {
		if report.Diffs[i].Symbol != report.Diffs[j].Symbol {
			return report.Diffs[i].Symbol < report.Diffs[j].Symbol
		}
		return report.Diffs[i].StrategyID < report.Diffs[j].StrategyID
	})

	s.logReport(report)
	return report, nil
}

// syncExecution overwrites one execution's tracked position with the venue
// quantity. A flat venue position clears the tracking entirely.
func (s *Service) syncExecution(ctx context.Context, strategyID string, venuePos broker.Position) bool {
	_, err := s.reg.Update(ctx, strategyID, func(exec *db.Execution) error {
		log.Printf("🔄 syncing %s: %.4f -> %.4f", strategyID, exec.PositionQty, venuePos.Qty)
		if math.Abs(venuePos.Qty) <= qtyTolerance {
			exec.HasOpenPosition = false
			exec.PositionQty = 0
			exec.EntryPrice = 0
			return nil
		}
		exec.HasOpenPosition = true
		exec.PositionQty = venuePos.Qty
		if exec.EntryPrice == 0 && venuePos.AvgEntryPrice > 0 {
			exec.EntryPrice = venuePos.AvgEntryPrice
		}
		return nil
	})
	if err != nil {
		log.Printf("❌ sync %s: %v", strategyID, err)
		return false
	}
	return true
}

func (s *Service) logReport(report *Report) {
	if !report.HasDiffs {
		log.Printf("✅ reconciliation OK: all tracked positions match the venue")
		return
	}
	for _, diff := range report.Diffs {
		status := "not synced"
		if diff.Synced {
			status = "synced"
		}
		who := diff.StrategyID
		if who == "" {
			who = "untracked"
		}
		log.Printf("⚠️ reconciliation %s (%s): local=%.4f venue=%.4f diff=%.4f [%s]",
			diff.Symbol, who, diff.LocalQty, diff.BrokerQty, diff.Difference, status)
	}
	if report.SyncedCount > 0 {
		log.Printf("🔄 auto-synced %d positions", report.SyncedCount)
	}
}
