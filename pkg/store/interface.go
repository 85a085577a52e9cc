// Package store persists trading activity across restarts: a journal of
// fills received over the stream and the last known state of each tracked
// order. Backends share one interface so callers can swap memory, badger,
// and redis without code changes.
package store

import "github.com/meridian-labs/hyperliquid-go/pkg/types"

// IEventStore defines the interface for persisting fills and order state.
// All implementations must be thread-safe; the stream session dispatches
// fills from its own goroutine.
type IEventStore interface {
	// Fill Journal

	// AppendFill journals one fill. Appending the same (oid, time) pair twice
	// is idempotent. Returns error only on storage failure.
	AppendFill(fill *types.Fill) error

	// ListFills returns all journaled fills sorted by time (ascending).
	// Returns empty slice if no fills exist, error only on storage failure.
	ListFills() ([]*types.Fill, error)

	// Order State

	// SaveOrderState persists the last known state of an order, keyed by oid.
	// Overwrites any existing state for the same oid.
	SaveOrderState(state *OrderState) error

	// LoadOrderState retrieves order state by oid.
	// Returns nil if no state exists, error only on storage failure.
	LoadOrderState(oid int64) (*OrderState, error)

	// Lifecycle Management

	// Close cleanly shuts down the store.
	// Idempotent - safe to call multiple times.
	// After Close(), all other operations return errors.
	Close() error

	// HealthCheck verifies the store is operational.
	// Returns nil if healthy, error describing the problem if not.
	HealthCheck() error
}
