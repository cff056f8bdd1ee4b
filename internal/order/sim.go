package order

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"autotrader/pkg/broker"
)

// SimExecutor fills every order immediately at the hinted price, with
// optional slippage and fees, and tracks a cash balance for inspection.
type SimExecutor struct {
	FeeRate     float64
	SlippageBps float64

	mu      sync.Mutex
	initial float64
	balance float64
	rng     *rand.Rand
}

// NewSimExecutor builds a simulator. A zero initial balance disables the
// balance check.
func NewSimExecutor(initialBalance float64) *SimExecutor {
	return &SimExecutor{
		initial: initialBalance,
		balance: initialBalance,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (e *SimExecutor) PlaceOrder(ctx context.Context, req Request) (Fill, error) {
	if err := ctx.Err(); err != nil {
		return Fill{}, err
	}
	if req.PriceHint <= 0 {
		return Fill{}, fmt.Errorf("simulated fill needs a price hint for %s", req.Symbol)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	price := req.PriceHint
	if e.SlippageBps > 0 {
		noise := e.rng.Float64() * e.SlippageBps / 10000.0
		if req.Side == broker.SideBuy {
			price *= 1 + noise
		} else {
			price *= 1 - noise
		}
	}

	qty := req.Qty
	if qty <= 0 && req.Notional > 0 {
		qty = req.Notional / price
	}
	if qty <= 0 {
		return Fill{}, fmt.Errorf("order for %s has no quantity", req.Symbol)
	}

	value := qty * price
	fee := value * e.FeeRate
	if e.initial > 0 && req.Side == broker.SideBuy && value+fee > e.balance {
		return Fill{}, fmt.Errorf("insufficient balance: need %.2f, have %.2f", value+fee, e.balance)
	}

	if req.Side == broker.SideBuy {
		e.balance -= value + fee
	} else {
		e.balance += value - fee
	}

	log.Printf("sim fill: %s %s qty=%.4f price=%.4f balance=%.2f",
		strings.ToUpper(string(req.Side)), req.Symbol, qty, price, e.balance)

	return Fill{
		OrderID:  uuid.NewString(),
		Qty:      qty,
		AvgPrice: price,
		Status:   broker.StatusFilled,
	}, nil
}

// Balance returns the simulator's current cash balance.
func (e *SimExecutor) Balance() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.balance
}
