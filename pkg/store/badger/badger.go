package badger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"path/filepath"
	"sync"
	"time"

	badgerdb "github.com/dgraph-io/badger/v3"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/meridian-labs/hyperliquid-go/pkg/store"
	"github.com/meridian-labs/hyperliquid-go/pkg/types"
)

// Key prefixes for namespacing
const (
	keyPrefixFill        = "fill:"
	keyPrefixOrder       = "order:"
	keySchemaVersion     = "metadata:schema_version"
	currentSchemaVersion = "v1"
)

// BadgerStore is a durable, disk-based implementation of IEventStore.
// Fill keys embed the big-endian timestamp so iteration order is time order.
type BadgerStore struct {
	db       *badgerdb.DB
	logger   *zap.Logger
	gcCancel context.CancelFunc
	gcWg     sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
}

var _ store.IEventStore = (*BadgerStore)(nil)

// NewBadgerStore opens a badger-backed event store at dataPath with
// SyncWrites enabled and starts a background garbage collection loop.
func NewBadgerStore(dataPath string, logger *zap.Logger) (*BadgerStore, error) {
	absPath, err := filepath.Abs(dataPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve absolute path")
	}

	opts := badgerdb.DefaultOptions(absPath)
	opts.Logger = &badgerLoggerAdapter{logger: logger}
	opts.SyncWrites = true
	opts.CompactL0OnClose = true
	opts.NumVersionsToKeep = 1

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open badger database at %s", absPath)
	}

	bs := &BadgerStore{
		db:     db,
		logger: logger,
	}

	if err := bs.initSchema(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to initialize schema")
	}

	ctx, cancel := context.WithCancel(context.Background())
	bs.gcCancel = cancel
	bs.gcWg.Add(1)
	go bs.runGC(ctx)

	logger.Sugar().Infow("Badger store initialized", "path", absPath)
	return bs, nil
}

// initSchema initializes or validates the schema version
func (b *BadgerStore) initSchema() error {
	return b.db.Update(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(keySchemaVersion))
		if err == badgerdb.ErrKeyNotFound {
			return txn.Set([]byte(keySchemaVersion), []byte(currentSchemaVersion))
		}
		if err != nil {
			return errors.Wrap(err, "failed to read schema version")
		}

		var existing string
		if err := item.Value(func(val []byte) error {
			existing = string(val)
			return nil
		}); err != nil {
			return errors.Wrap(err, "failed to read schema version value")
		}
		if existing != currentSchemaVersion {
			return errors.Errorf("unsupported schema version: %s (expected: %s)", existing, currentSchemaVersion)
		}
		return nil
	})
}

// runGC runs periodic value-log garbage collection in the background
func (b *BadgerStore) runGC(ctx context.Context) {
	defer b.gcWg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// RunValueLogGC errors when nothing was collected; that is normal
			if err := b.db.RunValueLogGC(0.5); err != nil && err != badgerdb.ErrNoRewrite {
				b.logger.Sugar().Warnw("Badger GC failed", "error", err)
			}
		}
	}
}

func fillKey(fill *types.Fill) []byte {
	key := make([]byte, len(keyPrefixFill)+16)
	copy(key, keyPrefixFill)
	binary.BigEndian.PutUint64(key[len(keyPrefixFill):], uint64(fill.Time))
	binary.BigEndian.PutUint64(key[len(keyPrefixFill)+8:], uint64(fill.Oid))
	return key
}

func orderKey(oid int64) []byte {
	key := make([]byte, len(keyPrefixOrder)+8)
	copy(key, keyPrefixOrder)
	binary.BigEndian.PutUint64(key[len(keyPrefixOrder):], uint64(oid))
	return key
}

// AppendFill journals one fill.
func (b *BadgerStore) AppendFill(fill *types.Fill) error {
	if fill == nil {
		return errors.New("cannot append nil fill")
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return errors.New("store is closed")
	}

	data, err := json.Marshal(fill)
	if err != nil {
		return errors.Wrap(err, "failed to serialize fill")
	}
	return b.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(fillKey(fill), data)
	})
}

// ListFills returns all journaled fills sorted by time ascending. Key order
// is time order, so a prefix scan returns fills already sorted.
func (b *BadgerStore) ListFills() ([]*types.Fill, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, errors.New("store is closed")
	}

	fills := make([]*types.Fill, 0)
	err := b.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefixFill)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var fill types.Fill
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &fill)
			}); err != nil {
				return errors.Wrap(err, "failed to deserialize fill")
			}
			fills = append(fills, &fill)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return fills, nil
}

// SaveOrderState persists order state keyed by oid.
func (b *BadgerStore) SaveOrderState(state *store.OrderState) error {
	if state == nil {
		return errors.New("cannot save nil order state")
	}
	if state.Oid == 0 {
		return errors.New("order state requires an oid")
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return errors.New("store is closed")
	}

	data, err := json.Marshal(state)
	if err != nil {
		return errors.Wrap(err, "failed to serialize order state")
	}
	return b.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(orderKey(state.Oid), data)
	})
}

// LoadOrderState retrieves order state by oid; nil when absent.
func (b *BadgerStore) LoadOrderState(oid int64) (*store.OrderState, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, errors.New("store is closed")
	}

	var state *store.OrderState
	err := b.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(orderKey(oid))
		if err == badgerdb.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "failed to read order state")
		}
		return item.Value(func(val []byte) error {
			var decoded store.OrderState
			if err := json.Unmarshal(val, &decoded); err != nil {
				return errors.Wrap(err, "failed to deserialize order state")
			}
			state = &decoded
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

// Close stops the GC loop and closes the database. Idempotent.
func (b *BadgerStore) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	b.gcCancel()
	b.gcWg.Wait()

	if err := b.db.Close(); err != nil {
		return errors.Wrap(err, "failed to close badger database")
	}
	return nil
}

// HealthCheck verifies the database accepts reads.
func (b *BadgerStore) HealthCheck() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return errors.New("store is closed")
	}
	return b.db.View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get([]byte(keySchemaVersion))
		if err != nil && err != badgerdb.ErrKeyNotFound {
			return errors.Wrap(err, "failed to read schema version")
		}
		return nil
	})
}
