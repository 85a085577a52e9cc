// Package exchange implements the signed action surface: orders, cancels,
// leverage changes, and transfers. Every operation builds a wire action,
// signs it with the session key, and posts it to /exchange.
package exchange

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/meridian-labs/hyperliquid-go/pkg/config"
	"github.com/meridian-labs/hyperliquid-go/pkg/info"
	"github.com/meridian-labs/hyperliquid-go/pkg/signing"
	"github.com/meridian-labs/hyperliquid-go/pkg/transport"
	"github.com/meridian-labs/hyperliquid-go/pkg/types"
	"github.com/meridian-labs/hyperliquid-go/pkg/wallet"
)

const exchangePath = "/exchange"

// Client submits signed actions for one account. Safe for concurrent use;
// nonces are issued from a single monotonic source.
type Client struct {
	transport *transport.Client
	info      *info.Client
	logger    *zap.Logger

	key          *ecdsa.PrivateKey
	chainTag     string
	vaultAddress string

	lastNonce atomic.Int64
}

// Config holds the configuration for an exchange client
type Config struct {
	Transport *transport.Client
	Info      *info.Client
	Logger    *zap.Logger

	PrivateKey string
	Network    config.Network
	// VaultAddress, when set, signs and submits on behalf of a vault.
	VaultAddress string
}

// NewClient creates a new exchange client
func NewClient(cfg Config) (*Client, error) {
	if cfg.Transport == nil {
		return nil, fmt.Errorf("transport client is required")
	}
	if cfg.Info == nil {
		return nil, fmt.Errorf("info client is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	chainTag, err := cfg.Network.ChainTag()
	if err != nil {
		return nil, err
	}

	key, err := wallet.ParsePrivateKey(cfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	return &Client{
		transport:    cfg.Transport,
		info:         cfg.Info,
		logger:       cfg.Logger,
		key:          key,
		chainTag:     chainTag,
		vaultAddress: cfg.VaultAddress,
	}, nil
}

// Address returns the signer address for this client.
func (c *Client) Address() string {
	return wallet.AddressFromKey(c.key).Hex()
}

// nextNonce issues a strictly increasing millisecond nonce. Concurrent calls
// within the same millisecond step forward by one.
func (c *Client) nextNonce() int64 {
	for {
		now := time.Now().UnixMilli()
		prev := c.lastNonce.Load()
		next := now
		if next <= prev {
			next = prev + 1
		}
		if c.lastNonce.CompareAndSwap(prev, next) {
			return next
		}
	}
}

// submit signs an action with a fresh nonce and posts it. A non-ok status in
// the decoded response is returned as an error distinct from transport
// failures.
func (c *Client) submit(ctx context.Context, action any) (*types.ExchangeResponse, error) {
	nonce := c.nextNonce()

	sig, err := signing.Sign(action, c.key, c.vaultAddress, nonce, c.chainTag)
	if err != nil {
		return nil, fmt.Errorf("failed to sign action: %w", err)
	}

	req := types.ExchangeRequest{
		Action:       action,
		Nonce:        nonce,
		Signature:    sig,
		VaultAddress: c.vaultAddress,
	}

	var resp types.ExchangeResponse
	if err := c.transport.Post(ctx, exchangePath, req, &resp); err != nil {
		return nil, fmt.Errorf("failed to submit action: %w", err)
	}
	if !resp.Ok() {
		return &resp, fmt.Errorf("exchange rejected action: status %q: %s", resp.Status, string(resp.Response))
	}
	return &resp, nil
}

// NewCloid returns a fresh client order id in the exchange's 16-byte hex form.
func NewCloid() string {
	id := uuid.New()
	return fmt.Sprintf("0x%x", id[:])
}

type orderAction struct {
	Type     string            `json:"type"`
	Orders   []types.OrderWire `json:"orders"`
	Grouping string            `json:"grouping"`
}

// PlaceOrder submits a single order.
func (c *Client) PlaceOrder(ctx context.Context, order types.OrderRequest) (*types.ExchangeResponse, error) {
	return c.BulkOrders(ctx, []types.OrderRequest{order})
}

// BulkOrders submits a batch of orders as one signed action.
func (c *Client) BulkOrders(ctx context.Context, orders []types.OrderRequest) (*types.ExchangeResponse, error) {
	if len(orders) == 0 {
		return nil, fmt.Errorf("at least one order is required")
	}

	wires := make([]types.OrderWire, 0, len(orders))
	for _, order := range orders {
		wire, err := c.toWire(ctx, order)
		if err != nil {
			return nil, err
		}
		wires = append(wires, wire)
	}

	c.logger.Sugar().Infow("Submitting orders", "count", len(wires))
	return c.submit(ctx, orderAction{Type: "order", Orders: wires, Grouping: "na"})
}

func (c *Client) toWire(ctx context.Context, order types.OrderRequest) (types.OrderWire, error) {
	if order.Coin == "" {
		return types.OrderWire{}, fmt.Errorf("order coin is required")
	}
	asset, err := c.info.AssetIndex(ctx, order.Coin)
	if err != nil {
		return types.OrderWire{}, err
	}

	wire := types.OrderWire{
		Asset:      asset,
		IsBuy:      order.IsBuy,
		LimitPx:    order.LimitPx.String(),
		Sz:         order.Sz.String(),
		ReduceOnly: order.ReduceOnly,
		OrderType:  order.OrderType,
	}
	if order.Cloid != "" {
		cloid := order.Cloid
		wire.Cloid = &cloid
	}
	return wire, nil
}

type cancelAction struct {
	Type    string             `json:"type"`
	Cancels []types.CancelWire `json:"cancels"`
}

// Cancel cancels one resting order by coin and order id.
func (c *Client) Cancel(ctx context.Context, coin string, oid int64) (*types.ExchangeResponse, error) {
	asset, err := c.info.AssetIndex(ctx, coin)
	if err != nil {
		return nil, err
	}
	return c.submit(ctx, cancelAction{
		Type:    "cancel",
		Cancels: []types.CancelWire{{Asset: asset, Oid: oid}},
	})
}

// BulkCancel cancels a batch of orders as one signed action.
func (c *Client) BulkCancel(ctx context.Context, cancels []types.CancelWire) (*types.ExchangeResponse, error) {
	if len(cancels) == 0 {
		return nil, fmt.Errorf("at least one cancel is required")
	}
	return c.submit(ctx, cancelAction{Type: "cancel", Cancels: cancels})
}

type cancelByCloidAction struct {
	Type    string                    `json:"type"`
	Cancels []types.CancelByCloidWire `json:"cancels"`
}

// CancelByCloid cancels one resting order by its client order id.
func (c *Client) CancelByCloid(ctx context.Context, coin, cloid string) (*types.ExchangeResponse, error) {
	asset, err := c.info.AssetIndex(ctx, coin)
	if err != nil {
		return nil, err
	}
	return c.submit(ctx, cancelByCloidAction{
		Type:    "cancelByCloid",
		Cancels: []types.CancelByCloidWire{{Asset: asset, Cloid: cloid}},
	})
}

type modifyAction struct {
	Type  string          `json:"type"`
	Oid   int64           `json:"oid"`
	Order types.OrderWire `json:"order"`
}

// ModifyOrder replaces a resting order in place.
func (c *Client) ModifyOrder(ctx context.Context, oid int64, order types.OrderRequest) (*types.ExchangeResponse, error) {
	wire, err := c.toWire(ctx, order)
	if err != nil {
		return nil, err
	}
	return c.submit(ctx, modifyAction{Type: "modify", Oid: oid, Order: wire})
}

type updateLeverageAction struct {
	Type     string `json:"type"`
	Asset    int    `json:"asset"`
	IsCross  bool   `json:"isCross"`
	Leverage int    `json:"leverage"`
}

// UpdateLeverage sets the leverage for one asset.
func (c *Client) UpdateLeverage(ctx context.Context, coin string, isCross bool, leverage int) (*types.ExchangeResponse, error) {
	if leverage <= 0 {
		return nil, fmt.Errorf("leverage must be positive")
	}
	asset, err := c.info.AssetIndex(ctx, coin)
	if err != nil {
		return nil, err
	}
	return c.submit(ctx, updateLeverageAction{
		Type:     "updateLeverage",
		Asset:    asset,
		IsCross:  isCross,
		Leverage: leverage,
	})
}

type updateIsolatedMarginAction struct {
	Type  string `json:"type"`
	Asset int    `json:"asset"`
	IsBuy bool   `json:"isBuy"`
	Ntli  int64  `json:"ntli"`
}

// UpdateIsolatedMargin adds or removes isolated margin on one asset, in USD
// millionths.
func (c *Client) UpdateIsolatedMargin(ctx context.Context, coin string, isBuy bool, ntli int64) (*types.ExchangeResponse, error) {
	asset, err := c.info.AssetIndex(ctx, coin)
	if err != nil {
		return nil, err
	}
	return c.submit(ctx, updateIsolatedMarginAction{
		Type:  "updateIsolatedMargin",
		Asset: asset,
		IsBuy: isBuy,
		Ntli:  ntli,
	})
}

type usdTransferAction struct {
	Type        string `json:"type"`
	Destination string `json:"destination"`
	Amount      string `json:"amount"`
	Time        int64  `json:"time"`
}

// UsdTransfer moves USD to another address on the exchange.
func (c *Client) UsdTransfer(ctx context.Context, destination string, amount types.FlexDecimal) (*types.ExchangeResponse, error) {
	if destination == "" {
		return nil, fmt.Errorf("destination address is required")
	}
	return c.submit(ctx, usdTransferAction{
		Type:        "usdSend",
		Destination: destination,
		Amount:      amount.String(),
		Time:        time.Now().UnixMilli(),
	})
}

type withdrawAction struct {
	Type        string `json:"type"`
	Destination string `json:"destination"`
	Amount      string `json:"amount"`
	Time        int64  `json:"time"`
}

// Withdraw initiates a withdrawal to an L1 address.
func (c *Client) Withdraw(ctx context.Context, destination string, amount types.FlexDecimal) (*types.ExchangeResponse, error) {
	if destination == "" {
		return nil, fmt.Errorf("destination address is required")
	}
	return c.submit(ctx, withdrawAction{
		Type:        "withdraw3",
		Destination: destination,
		Amount:      amount.String(),
		Time:        time.Now().UnixMilli(),
	})
}
