package memory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/meridian-labs/hyperliquid-go/pkg/store"
	"github.com/meridian-labs/hyperliquid-go/pkg/types"
)

// fillKey identifies one fill; the same execution reported twice maps to the
// same key, making AppendFill idempotent.
type fillKey struct {
	oid  int64
	time int64
}

// MemoryStore is an in-memory implementation of IEventStore.
// This implementation is intended for TESTING ONLY.
//
// All data is stored in memory and will be lost when the process exits.
// Thread-safe using sync.RWMutex for concurrent access.
// Deep copies data to prevent external mutation.
type MemoryStore struct {
	mu sync.RWMutex

	fills  map[fillKey]*types.Fill
	orders map[int64]*store.OrderState

	closed bool
}

var _ store.IEventStore = (*MemoryStore)(nil)

// NewMemoryStore creates a new in-memory event store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		fills:  make(map[fillKey]*types.Fill),
		orders: make(map[int64]*store.OrderState),
	}
}

// AppendFill journals one fill.
func (m *MemoryStore) AppendFill(fill *types.Fill) error {
	if fill == nil {
		return fmt.Errorf("cannot append nil fill")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("store is closed")
	}

	copied := *fill
	m.fills[fillKey{oid: fill.Oid, time: fill.Time}] = &copied
	return nil
}

// ListFills returns all journaled fills sorted by time ascending.
func (m *MemoryStore) ListFills() ([]*types.Fill, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("store is closed")
	}

	fills := make([]*types.Fill, 0, len(m.fills))
	for _, fill := range m.fills {
		copied := *fill
		fills = append(fills, &copied)
	}
	sort.Slice(fills, func(i, j int) bool {
		if fills[i].Time != fills[j].Time {
			return fills[i].Time < fills[j].Time
		}
		return fills[i].Oid < fills[j].Oid
	})
	return fills, nil
}

// SaveOrderState persists order state keyed by oid.
func (m *MemoryStore) SaveOrderState(state *store.OrderState) error {
	if state == nil {
		return fmt.Errorf("cannot save nil order state")
	}
	if state.Oid == 0 {
		return fmt.Errorf("order state requires an oid")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("store is closed")
	}

	copied := *state
	m.orders[state.Oid] = &copied
	return nil
}

// LoadOrderState retrieves order state by oid; nil when absent.
func (m *MemoryStore) LoadOrderState(oid int64) (*store.OrderState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("store is closed")
	}

	state, exists := m.orders[oid]
	if !exists {
		return nil, nil
	}
	copied := *state
	return &copied, nil
}

// Close shuts the store down. Idempotent.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// HealthCheck reports whether the store is usable.
func (m *MemoryStore) HealthCheck() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return fmt.Errorf("store is closed")
	}
	return nil
}
