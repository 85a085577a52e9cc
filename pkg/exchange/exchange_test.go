package exchange

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/meridian-labs/hyperliquid-go/pkg/config"
	"github.com/meridian-labs/hyperliquid-go/pkg/info"
	"github.com/meridian-labs/hyperliquid-go/pkg/signing"
	"github.com/meridian-labs/hyperliquid-go/pkg/transport"
	"github.com/meridian-labs/hyperliquid-go/pkg/types"
	"github.com/meridian-labs/hyperliquid-go/pkg/wallet"
)

// Well-known anvil development key; never used with real funds.
const testKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
const testAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"

type capturedSubmission struct {
	Action       json.RawMessage   `json:"action"`
	Nonce        int64             `json:"nonce"`
	Signature    signing.Signature `json:"signature"`
	VaultAddress string            `json:"vaultAddress"`
}

type fixture struct {
	client      *Client
	submissions chan capturedSubmission
}

func newFixture(t *testing.T, mutate func(*Config)) *fixture {
	t.Helper()
	submissions := make(chan capturedSubmission, 16)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/info":
			_, _ = w.Write([]byte(`{"universe":[{"name":"BTC","szDecimals":5},{"name":"ETH","szDecimals":4}]}`))
		case "/exchange":
			var sub capturedSubmission
			require.NoError(t, json.NewDecoder(r.Body).Decode(&sub))
			submissions <- sub
			_, _ = w.Write([]byte(`{"status":"ok","response":{"type":"default"}}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	t.Cleanup(srv.Close)

	tc, err := transport.NewClient(transport.Config{
		BaseURL: srv.URL,
		Timeout: 2 * time.Second,
		Logger:  zap.NewNop(),
	})
	require.NoError(t, err)
	ic, err := info.NewClient(tc, zap.NewNop())
	require.NoError(t, err)

	cfg := Config{
		Transport:  tc,
		Info:       ic,
		Logger:     zap.NewNop(),
		PrivateKey: testKey,
		Network:    config.NetworkTestnet,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	client, err := NewClient(cfg)
	require.NoError(t, err)

	return &fixture{client: client, submissions: submissions}
}

func (f *fixture) next(t *testing.T) capturedSubmission {
	t.Helper()
	select {
	case sub := <-f.submissions:
		return sub
	case <-time.After(2 * time.Second):
		t.Fatal("no submission captured")
		return capturedSubmission{}
	}
}

func limitOrder(coin, px, sz string, isBuy bool) types.OrderRequest {
	return types.OrderRequest{
		Coin:    coin,
		IsBuy:   isBuy,
		LimitPx: types.FlexFromString(px),
		Sz:      types.FlexFromString(sz),
		OrderType: types.OrderTypeWire{
			Limit: &types.LimitOrderType{Tif: types.TifGtc},
		},
	}
}

func TestNewClient_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad private key", func(c *Config) { c.PrivateKey = "nothex" }},
		{"empty private key", func(c *Config) { c.PrivateKey = "" }},
		{"unknown network", func(c *Config) { c.Network = "devnet" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, nil)
			cfg := Config{
				Transport:  f.client.transport,
				Info:       f.client.info,
				Logger:     zap.NewNop(),
				PrivateKey: testKey,
				Network:    config.NetworkTestnet,
			}
			tc.mutate(&cfg)
			_, err := NewClient(cfg)
			require.Error(t, err)
		})
	}
}

func TestAddress(t *testing.T) {
	f := newFixture(t, nil)
	assert.Equal(t, testAddress, f.client.Address())
}

func TestPlaceOrder_WireShape(t *testing.T) {
	f := newFixture(t, nil)

	order := limitOrder("ETH", "1800.5", "0.25", true)
	order.Cloid = "0x00000000000000000000000000000001"
	resp, err := f.client.PlaceOrder(context.Background(), order)
	require.NoError(t, err)
	assert.True(t, resp.Ok())

	sub := f.next(t)
	var action struct {
		Type     string            `json:"type"`
		Orders   []types.OrderWire `json:"orders"`
		Grouping string            `json:"grouping"`
	}
	require.NoError(t, json.Unmarshal(sub.Action, &action))
	assert.Equal(t, "order", action.Type)
	assert.Equal(t, "na", action.Grouping)
	require.Len(t, action.Orders, 1)
	wire := action.Orders[0]
	assert.Equal(t, 1, wire.Asset) // ETH is second in the universe
	assert.True(t, wire.IsBuy)
	assert.Equal(t, "1800.5", wire.LimitPx)
	assert.Equal(t, "0.25", wire.Sz)
	require.NotNil(t, wire.Cloid)
	assert.Equal(t, order.Cloid, *wire.Cloid)
}

func TestPlaceOrder_UnknownCoin(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.client.PlaceOrder(context.Background(), limitOrder("DOGE", "1", "1", true))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown coin")
}

func TestBulkOrders_RequiresOrders(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.client.BulkOrders(context.Background(), nil)
	require.Error(t, err)
}

func TestCancel_ActionShapeAndSignature(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.client.Cancel(context.Background(), "ETH", 77)
	require.NoError(t, err)

	sub := f.next(t)
	var action struct {
		Type    string             `json:"type"`
		Cancels []types.CancelWire `json:"cancels"`
	}
	require.NoError(t, json.Unmarshal(sub.Action, &action))
	assert.Equal(t, "cancel", action.Type)
	require.Len(t, action.Cancels, 1)
	assert.Equal(t, 1, action.Cancels[0].Asset)
	assert.Equal(t, int64(77), action.Cancels[0].Oid)

	assert.True(t, strings.HasPrefix(sub.Signature.R, "0x"))
	assert.True(t, strings.HasPrefix(sub.Signature.S, "0x"))
	assert.Contains(t, []int{27, 28}, sub.Signature.V)
}

func TestSubmit_SignatureRecoversToSigner(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.client.Cancel(context.Background(), "BTC", 1)
	require.NoError(t, err)
	sub := f.next(t)

	// Rebuild the digest from the submitted action and nonce and confirm the
	// signature recovers to the client's own address.
	actionHash, err := signing.ActionHash(sub.Action, "", sub.Nonce)
	require.NoError(t, err)
	agent := signing.BuildPhantomAgent(actionHash, "b")
	digest, err := signing.Digest(agent)
	require.NoError(t, err)

	sigBytes, err := sub.Signature.Bytes()
	require.NoError(t, err)
	recovered, err := wallet.RecoverAddress(digest, sigBytes)
	require.NoError(t, err)
	assert.Equal(t, testAddress, recovered.Hex())
}

func TestSubmit_NoncesStrictlyIncrease(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	var nonces []int64
	for i := 0; i < 5; i++ {
		_, err := f.client.Cancel(ctx, "BTC", int64(i))
		require.NoError(t, err)
		nonces = append(nonces, f.next(t).Nonce)
	}
	for i := 1; i < len(nonces); i++ {
		assert.Greater(t, nonces[i], nonces[i-1])
	}
}

func TestSubmit_VaultAddressIncluded(t *testing.T) {
	vault := "0x1111111111111111111111111111111111111111"
	f := newFixture(t, func(c *Config) { c.VaultAddress = vault })

	_, err := f.client.Cancel(context.Background(), "BTC", 1)
	require.NoError(t, err)

	sub := f.next(t)
	assert.Equal(t, vault, sub.VaultAddress)

	// The vault address is bound into the action hash as well
	actionHash, err := signing.ActionHash(sub.Action, vault, sub.Nonce)
	require.NoError(t, err)
	digest, err := signing.Digest(signing.BuildPhantomAgent(actionHash, "b"))
	require.NoError(t, err)
	sigBytes, err := sub.Signature.Bytes()
	require.NoError(t, err)
	recovered, err := wallet.RecoverAddress(digest, sigBytes)
	require.NoError(t, err)
	assert.Equal(t, testAddress, recovered.Hex())
}

func TestSubmit_RejectedStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/info" {
			_, _ = w.Write([]byte(`{"universe":[{"name":"BTC","szDecimals":5}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"err","response":"Insufficient margin"}`))
	}))
	defer srv.Close()

	tc, err := transport.NewClient(transport.Config{BaseURL: srv.URL, Logger: zap.NewNop()})
	require.NoError(t, err)
	ic, err := info.NewClient(tc, zap.NewNop())
	require.NoError(t, err)
	client, err := NewClient(Config{
		Transport:  tc,
		Info:       ic,
		Logger:     zap.NewNop(),
		PrivateKey: testKey,
		Network:    config.NetworkMainnet,
	})
	require.NoError(t, err)

	resp, err := client.Cancel(context.Background(), "BTC", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Insufficient margin")
	require.NotNil(t, resp)
	assert.False(t, resp.Ok())
}

func TestUpdateLeverage(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.client.UpdateLeverage(context.Background(), "ETH", true, 5)
	require.NoError(t, err)

	sub := f.next(t)
	assert.JSONEq(t, `{"type":"updateLeverage","asset":1,"isCross":true,"leverage":5}`, string(sub.Action))

	_, err = f.client.UpdateLeverage(context.Background(), "ETH", true, 0)
	require.Error(t, err)
}

func TestUpdateIsolatedMargin(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.client.UpdateIsolatedMargin(context.Background(), "BTC", true, 1000000)
	require.NoError(t, err)

	sub := f.next(t)
	assert.JSONEq(t, `{"type":"updateIsolatedMargin","asset":0,"isBuy":true,"ntli":1000000}`, string(sub.Action))
}

func TestTransfers(t *testing.T) {
	f := newFixture(t, nil)
	dest := "0x2222222222222222222222222222222222222222"

	_, err := f.client.UsdTransfer(context.Background(), dest, types.FlexFromString("12.5"))
	require.NoError(t, err)
	sub := f.next(t)
	var usd struct {
		Type        string `json:"type"`
		Destination string `json:"destination"`
		Amount      string `json:"amount"`
		Time        int64  `json:"time"`
	}
	require.NoError(t, json.Unmarshal(sub.Action, &usd))
	assert.Equal(t, "usdSend", usd.Type)
	assert.Equal(t, dest, usd.Destination)
	assert.Equal(t, "12.5", usd.Amount)
	assert.NotZero(t, usd.Time)

	_, err = f.client.Withdraw(context.Background(), dest, types.FlexFromString("100"))
	require.NoError(t, err)
	sub = f.next(t)
	require.NoError(t, json.Unmarshal(sub.Action, &usd))
	assert.Equal(t, "withdraw3", usd.Type)

	_, err = f.client.UsdTransfer(context.Background(), "", types.FlexFromString("1"))
	require.Error(t, err)
}

func TestNewCloid(t *testing.T) {
	a := NewCloid()
	b := NewCloid()
	assert.Len(t, a, 34) // 0x + 32 hex chars
	assert.True(t, strings.HasPrefix(a, "0x"))
	assert.NotEqual(t, a, b)
}
