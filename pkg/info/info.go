// Package info implements the read-only query surface of the exchange. Every
// query is an unsigned POST of a typed request body to the /info endpoint.
package info

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/meridian-labs/hyperliquid-go/pkg/transport"
	"github.com/meridian-labs/hyperliquid-go/pkg/types"
)

const infoPath = "/info"

// Client issues market data and account queries. It caches the asset universe
// after the first Meta call so coin-to-asset lookups do not hit the network.
type Client struct {
	transport *transport.Client
	logger    *zap.Logger

	metaMu sync.Mutex
	meta   *types.Meta
	assets map[string]int
}

// NewClient creates a new info client
func NewClient(tc *transport.Client, logger *zap.Logger) (*Client, error) {
	if tc == nil {
		return nil, fmt.Errorf("transport client is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Client{
		transport: tc,
		logger:    logger,
	}, nil
}

// AllMids returns the current mid price for every listed coin.
func (c *Client) AllMids(ctx context.Context) (map[string]string, error) {
	var mids map[string]string
	req := types.InfoRequest{Type: "allMids"}
	if err := c.transport.Post(ctx, infoPath, req, &mids); err != nil {
		return nil, fmt.Errorf("failed to query mids: %w", err)
	}
	return mids, nil
}

// L2Book returns the current order book snapshot for a coin.
func (c *Client) L2Book(ctx context.Context, coin string) (*types.L2Book, error) {
	if coin == "" {
		return nil, fmt.Errorf("coin is required")
	}
	var book types.L2Book
	req := types.InfoRequest{Type: "l2Book", Coin: coin}
	if err := c.transport.Post(ctx, infoPath, req, &book); err != nil {
		return nil, fmt.Errorf("failed to query book for %s: %w", coin, err)
	}
	return &book, nil
}

// OpenOrders returns every resting order for a user address.
func (c *Client) OpenOrders(ctx context.Context, user string) ([]types.OpenOrder, error) {
	if err := validateUser(user); err != nil {
		return nil, err
	}
	var orders []types.OpenOrder
	req := types.InfoRequest{Type: "openOrders", User: user}
	if err := c.transport.Post(ctx, infoPath, req, &orders); err != nil {
		return nil, fmt.Errorf("failed to query open orders: %w", err)
	}
	return orders, nil
}

// UserState returns the clearinghouse state for a user address.
func (c *Client) UserState(ctx context.Context, user string) (*types.UserState, error) {
	if err := validateUser(user); err != nil {
		return nil, err
	}
	var state types.UserState
	req := types.InfoRequest{Type: "clearinghouseState", User: user}
	if err := c.transport.Post(ctx, infoPath, req, &state); err != nil {
		return nil, fmt.Errorf("failed to query user state: %w", err)
	}
	return &state, nil
}

// UserFills returns recent fills for a user address, newest first.
func (c *Client) UserFills(ctx context.Context, user string) ([]types.Fill, error) {
	if err := validateUser(user); err != nil {
		return nil, err
	}
	var fills []types.Fill
	req := types.InfoRequest{Type: "userFills", User: user}
	if err := c.transport.Post(ctx, infoPath, req, &fills); err != nil {
		return nil, fmt.Errorf("failed to query user fills: %w", err)
	}
	return fills, nil
}

// Meta returns the asset universe. The first successful result is cached for
// the lifetime of the client.
func (c *Client) Meta(ctx context.Context) (*types.Meta, error) {
	c.metaMu.Lock()
	defer c.metaMu.Unlock()

	if c.meta != nil {
		return c.meta, nil
	}

	var meta types.Meta
	req := types.InfoRequest{Type: "meta"}
	if err := c.transport.Post(ctx, infoPath, req, &meta); err != nil {
		return nil, fmt.Errorf("failed to query meta: %w", err)
	}

	assets := make(map[string]int, len(meta.Universe))
	for i, asset := range meta.Universe {
		assets[asset.Name] = i
	}
	c.meta = &meta
	c.assets = assets

	c.logger.Sugar().Infow("Loaded asset universe", "assets", len(meta.Universe))
	return c.meta, nil
}

// AssetIndex resolves a coin name to its wire asset index, fetching the
// universe on first use.
func (c *Client) AssetIndex(ctx context.Context, coin string) (int, error) {
	if _, err := c.Meta(ctx); err != nil {
		return 0, err
	}

	c.metaMu.Lock()
	defer c.metaMu.Unlock()
	index, ok := c.assets[coin]
	if !ok {
		return 0, fmt.Errorf("unknown coin %q", coin)
	}
	return index, nil
}

func validateUser(user string) error {
	if user == "" {
		return fmt.Errorf("user address is required")
	}
	if !strings.HasPrefix(user, "0x") || len(user) != 42 {
		return fmt.Errorf("user address %q is not a 0x-prefixed 20-byte address", user)
	}
	return nil
}
