// Package broker defines the order/account surface the engine needs from a
// trading venue. Implementations live in subpackages.
package broker

import (
	"context"
	"errors"
)

// ErrNotFound is returned when the venue has no record for the query
// (for example, requesting the position of a flat symbol).
var ErrNotFound = errors.New("broker: not found")

// Broker is the account and order surface consumed by the engine.
type Broker interface {
	GetAccount(ctx context.Context) (*Account, error)
	GetPosition(ctx context.Context, symbol string) (*Position, error)
	ListPositions(ctx context.Context) ([]Position, error)
	PlaceOrder(ctx context.Context, req OrderRequest) (*Order, error)
	GetOrder(ctx context.Context, id string) (*Order, error)
}
