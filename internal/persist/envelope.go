// Package persist stores versioned JSON blobs in a delivery.StateStore.
package persist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"delivery-agent/internal/domain/delivery"
	appErrors "delivery-agent/pkg/errors"

	"github.com/goccy/go-json"
)

// Keys of the two persisted blobs.
const (
	KeyOfflineQueue = "delivery.offline_queue"
	KeyActiveRoute  = "delivery.active_route"
)

// ErrVersionMismatch is returned when a stored blob was written by an
// incompatible format version. Callers discard such blobs.
var ErrVersionMismatch = errors.New("persisted state version mismatch")

type envelope struct {
	Version int             `json:"version"`
	SavedAt time.Time       `json:"savedAt"`
	Data    json.RawMessage `json:"data"`
}

// Save wraps v in a versioned envelope and writes it under key.
func Save(ctx context.Context, store delivery.StateStore, key string, version int, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return appErrors.PersistenceError("encode", key, err)
	}
	blob, err := json.Marshal(envelope{Version: version, SavedAt: time.Now().UTC(), Data: data})
	if err != nil {
		return appErrors.PersistenceError("encode", key, err)
	}
	if err := store.Save(ctx, key, blob); err != nil {
		return appErrors.PersistenceError("save", key, err)
	}
	return nil
}

// Load reads key into v. It returns found=false when nothing is stored, and
// ErrVersionMismatch when the stored version differs from version.
func Load(ctx context.Context, store delivery.StateStore, key string, version int, v any) (bool, error) {
	blob, err := store.Load(ctx, key)
	if errors.Is(err, delivery.ErrStateNotFound) {
		return false, nil
	}
	if err != nil {
		return false, appErrors.PersistenceError("load", key, err)
	}

	var env envelope
	if err := json.Unmarshal(blob, &env); err != nil {
		return false, appErrors.PersistenceError("decode", key, err)
	}
	if env.Version != version {
		return false, fmt.Errorf("%w: %s has version %d, want %d", ErrVersionMismatch, key, env.Version, version)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return false, appErrors.PersistenceError("decode", key, err)
	}
	return true, nil
}

// Delete removes key. Deleting a missing key is not an error.
func Delete(ctx context.Context, store delivery.StateStore, key string) error {
	if err := store.Delete(ctx, key); err != nil && !errors.Is(err, delivery.ErrStateNotFound) {
		return appErrors.PersistenceError("delete", key, err)
	}
	return nil
}
