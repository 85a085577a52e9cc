package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/meridian-labs/hyperliquid-go/pkg/store"
	"github.com/meridian-labs/hyperliquid-go/pkg/types"
)

// Key layout in Redis
const (
	keyPrefixFill        = "hl:fill:"
	keyPrefixOrder       = "hl:order:"
	keySchemaVersion     = "hl:metadata:schema_version"
	currentSchemaVersion = "v1"

	// Sorted set indexing fills by time; Redis has no ordered prefix scan
	keySetFills = "hl:fills:index"

	opTimeout = 5 * time.Second
)

// RedisStore is a shared implementation of IEventStore suitable for multiple
// processes journaling against one account.
type RedisStore struct {
	client    *redis.Client
	logger    *zap.Logger
	keyPrefix string
	mu        sync.RWMutex
	closed    bool
}

var _ store.IEventStore = (*RedisStore)(nil)

// Config holds the configuration for connecting to Redis
type Config struct {
	// Address is the Redis server address (host:port)
	Address string
	// Password is the optional Redis password
	Password string
	// DB is the Redis database number (0-15)
	DB int
	// KeyPrefix is an optional prefix prepended to every key, for sharing one
	// Redis instance between accounts.
	KeyPrefix string
}

// NewRedisStore creates a redis-backed event store and verifies connectivity.
func NewRedisStore(cfg *Config, logger *zap.Logger) (*RedisStore, error) {
	if cfg == nil {
		return nil, errors.New("redis config cannot be nil")
	}
	if cfg.Address == "" {
		return nil, errors.New("redis address cannot be empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to connect to redis at %s", cfg.Address)
	}

	rs := &RedisStore{
		client:    client,
		logger:    logger,
		keyPrefix: cfg.KeyPrefix,
	}

	if err := rs.initSchema(ctx); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "failed to initialize schema")
	}

	logger.Sugar().Infow("Redis store initialized", "address", cfg.Address, "db", cfg.DB)
	return rs, nil
}

func (r *RedisStore) key(base string) string {
	return r.keyPrefix + base
}

func (r *RedisStore) initSchema(ctx context.Context) error {
	existing, err := r.client.Get(ctx, r.key(keySchemaVersion)).Result()
	if err == redis.Nil {
		return r.client.Set(ctx, r.key(keySchemaVersion), currentSchemaVersion, 0).Err()
	}
	if err != nil {
		return errors.Wrap(err, "failed to read schema version")
	}
	if existing != currentSchemaVersion {
		return errors.Errorf("unsupported schema version: %s (expected: %s)", existing, currentSchemaVersion)
	}
	return nil
}

func fillMember(fill *types.Fill) string {
	return fmt.Sprintf("%d:%d", fill.Time, fill.Oid)
}

// AppendFill journals one fill and indexes it by time.
func (r *RedisStore) AppendFill(fill *types.Fill) error {
	if fill == nil {
		return errors.New("cannot append nil fill")
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return errors.New("store is closed")
	}

	data, err := json.Marshal(fill)
	if err != nil {
		return errors.Wrap(err, "failed to serialize fill")
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	member := fillMember(fill)
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.key(keyPrefixFill)+member, data, 0)
	pipe.ZAdd(ctx, r.key(keySetFills), redis.Z{Score: float64(fill.Time), Member: member})
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "failed to journal fill")
	}
	return nil
}

// ListFills returns all journaled fills sorted by time ascending.
func (r *RedisStore) ListFills() ([]*types.Fill, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, errors.New("store is closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	members, err := r.client.ZRange(ctx, r.key(keySetFills), 0, -1).Result()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read fill index")
	}
	if len(members) == 0 {
		return []*types.Fill{}, nil
	}

	keys := make([]string, len(members))
	for i, member := range members {
		keys[i] = r.key(keyPrefixFill) + member
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read fills")
	}

	fills := make([]*types.Fill, 0, len(values))
	for _, value := range values {
		raw, ok := value.(string)
		if !ok {
			// Index entry whose value expired or was deleted out of band
			continue
		}
		var fill types.Fill
		if err := json.Unmarshal([]byte(raw), &fill); err != nil {
			return nil, errors.Wrap(err, "failed to deserialize fill")
		}
		fills = append(fills, &fill)
	}
	sort.Slice(fills, func(i, j int) bool { return fills[i].Time < fills[j].Time })
	return fills, nil
}

// SaveOrderState persists order state keyed by oid.
func (r *RedisStore) SaveOrderState(state *store.OrderState) error {
	if state == nil {
		return errors.New("cannot save nil order state")
	}
	if state.Oid == 0 {
		return errors.New("order state requires an oid")
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return errors.New("store is closed")
	}

	data, err := json.Marshal(state)
	if err != nil {
		return errors.Wrap(err, "failed to serialize order state")
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	key := fmt.Sprintf("%s%d", r.key(keyPrefixOrder), state.Oid)
	if err := r.client.Set(ctx, key, data, 0).Err(); err != nil {
		return errors.Wrap(err, "failed to save order state")
	}
	return nil
}

// LoadOrderState retrieves order state by oid; nil when absent.
func (r *RedisStore) LoadOrderState(oid int64) (*store.OrderState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, errors.New("store is closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	raw, err := r.client.Get(ctx, fmt.Sprintf("%s%d", r.key(keyPrefixOrder), oid)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read order state")
	}

	var state store.OrderState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil, errors.Wrap(err, "failed to deserialize order state")
	}
	return &state, nil
}

// Close closes the Redis connection. Idempotent.
func (r *RedisStore) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	if err := r.client.Close(); err != nil {
		return errors.Wrap(err, "failed to close redis client")
	}
	return nil
}

// HealthCheck pings the Redis server.
func (r *RedisStore) HealthCheck() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return errors.New("store is closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := r.client.Ping(ctx).Err(); err != nil {
		return errors.Wrap(err, "redis ping failed")
	}
	return nil
}
