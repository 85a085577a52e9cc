package redis

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/meridian-labs/hyperliquid-go/pkg/store"
	"github.com/meridian-labs/hyperliquid-go/pkg/types"
)

// getTestRedisAddress returns the Redis address for testing.
// Uses REDIS_TEST_ADDRESS env var if set, otherwise defaults to localhost:6379.
func getTestRedisAddress() string {
	if addr := os.Getenv("REDIS_TEST_ADDRESS"); addr != "" {
		return addr
	}
	return "localhost:6379"
}

// requireRedis skips the test if Redis is not reachable. Each test gets its
// own key prefix so runs do not interfere.
func requireRedis(t *testing.T) *RedisStore {
	t.Helper()

	cfg := &Config{
		Address:   getTestRedisAddress(),
		DB:        15, // dedicated test DB
		KeyPrefix: fmt.Sprintf("test:%d:", time.Now().UnixNano()),
	}
	rs, err := NewRedisStore(cfg, zap.NewNop())
	if err != nil {
		t.Skipf("Redis not available at %s: %v", cfg.Address, err)
		return nil
	}
	return rs
}

func TestNewRedisStore_Validation(t *testing.T) {
	_, err := NewRedisStore(nil, zap.NewNop())
	require.Error(t, err)

	_, err = NewRedisStore(&Config{}, zap.NewNop())
	require.Error(t, err)
}

func TestRedisStore_FillJournal(t *testing.T) {
	rs := requireRedis(t)
	defer func() { _ = rs.Close() }()

	for _, f := range []*types.Fill{
		{Coin: "ETH", Oid: 2, Time: 300},
		{Coin: "BTC", Oid: 1, Time: 100},
	} {
		require.NoError(t, rs.AppendFill(f))
	}

	fills, err := rs.ListFills()
	require.NoError(t, err)
	require.Len(t, fills, 2)
	assert.Equal(t, int64(100), fills[0].Time)
	assert.Equal(t, "BTC", fills[0].Coin)
}

func TestRedisStore_OrderState(t *testing.T) {
	rs := requireRedis(t)
	defer func() { _ = rs.Close() }()

	require.NoError(t, rs.SaveOrderState(&store.OrderState{Oid: 42, Coin: "ETH", Status: "open"}))

	state, err := rs.LoadOrderState(42)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, "open", state.Status)

	absent, err := rs.LoadOrderState(4242)
	require.NoError(t, err)
	assert.Nil(t, absent)
}

func TestRedisStore_Close(t *testing.T) {
	rs := requireRedis(t)

	require.NoError(t, rs.HealthCheck())
	require.NoError(t, rs.Close())
	require.NoError(t, rs.Close())
	require.Error(t, rs.HealthCheck())
}
