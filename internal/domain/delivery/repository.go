//go:generate mockgen -source=repository.go -destination=mocks/repository_mock.go -package=mocks

package delivery

import (
	"context"
	"errors"
)

var ErrStateNotFound = errors.New("state not found")

// StateStore is durable local storage holding opaque blobs under a key.
// Load returns ErrStateNotFound for a key that was never saved or was deleted.
type StateStore interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

// TelemetryAPI is the part of the remote delivery service the tracking
// coordinator talks to.
type TelemetryAPI interface {
	SendUpdate(ctx context.Context, u Update) error
	UpdateStatus(ctx context.Context, deliveryID string, status RouteStatus) error
}

// RouteService is the remote order/routing service used by the session.
type RouteService interface {
	GetRoute(ctx context.Context, deliveryID string) (*Route, error)
	AddStop(ctx context.Context, deliveryID string, stop Stop) (*Stop, error)
	ReorderStops(ctx context.Context, deliveryID string, stopIDs []string) error
	OptimizeRoute(ctx context.Context, deliveryID string) (*Route, error)
}

// Connectivity reports whether the network is plausibly reachable.
type Connectivity interface {
	IsOnline(ctx context.Context) bool
}
