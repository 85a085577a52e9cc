// Package types holds the wire DTOs exchanged with the REST and streaming
// endpoints: order and cancel actions, books, trades, fills, and the stream
// event envelope. The signing pipeline treats all of these as opaque
// serializable payloads.
package types

import (
	"encoding/json"

	"github.com/meridian-labs/hyperliquid-go/pkg/signing"
)

// Tif is the time-in-force of a limit order.
type Tif string

const (
	TifGtc Tif = "Gtc"
	TifIoc Tif = "Ioc"
	TifAlo Tif = "Alo"
)

// LimitOrderType configures a resting limit order.
type LimitOrderType struct {
	Tif Tif `json:"tif"`
}

// TriggerOrderType configures a stop/take-profit trigger.
type TriggerOrderType struct {
	TriggerPx string `json:"triggerPx"`
	IsMarket  bool   `json:"isMarket"`
	Tpsl      string `json:"tpsl"`
}

// OrderTypeWire is the wire form of an order type; exactly one field is set.
type OrderTypeWire struct {
	Limit   *LimitOrderType   `json:"limit,omitempty"`
	Trigger *TriggerOrderType `json:"trigger,omitempty"`
}

// OrderWire is an order in the exchange's compact wire encoding.
type OrderWire struct {
	Asset      int           `json:"a"`
	IsBuy      bool          `json:"b"`
	LimitPx    string        `json:"p"`
	Sz         string        `json:"s"`
	ReduceOnly bool          `json:"r"`
	OrderType  OrderTypeWire `json:"t"`
	Cloid      *string       `json:"c,omitempty"`
}

// OrderRequest is the caller-facing order description; prices and sizes are
// exact decimals converted to wire strings at submission time.
type OrderRequest struct {
	Coin       string
	IsBuy      bool
	LimitPx    FlexDecimal
	Sz         FlexDecimal
	ReduceOnly bool
	OrderType  OrderTypeWire
	Cloid      string
}

// CancelWire cancels one order by asset and order id.
type CancelWire struct {
	Asset int   `json:"a"`
	Oid   int64 `json:"o"`
}

// CancelByCloidWire cancels one order by client order id.
type CancelByCloidWire struct {
	Asset int    `json:"asset"`
	Cloid string `json:"cloid"`
}

// ModifyWire wraps an order replacement.
type ModifyWire struct {
	Oid   int64     `json:"oid"`
	Order OrderWire `json:"order"`
}

// ExchangeRequest is the signed action submission body posted to /exchange.
type ExchangeRequest struct {
	Action       any               `json:"action"`
	Nonce        int64             `json:"nonce"`
	Signature    signing.Signature `json:"signature"`
	VaultAddress string            `json:"vaultAddress,omitempty"`
}

// ExchangeResponse is the top-level reply from /exchange. The inner response
// shape depends on the action type, so it stays raw until the caller decodes
// it for its action.
type ExchangeResponse struct {
	Status   string          `json:"status"`
	Response json.RawMessage `json:"response,omitempty"`
}

// Ok reports whether the exchange accepted the action.
func (r *ExchangeResponse) Ok() bool {
	return r.Status == "ok"
}

// InfoRequest is the unsigned query body posted to /info.
type InfoRequest struct {
	Type string `json:"type"`
	Coin string `json:"coin,omitempty"`
	User string `json:"user,omitempty"`
}

// Level is one price level of an order book side.
type Level struct {
	Px FlexDecimal `json:"px"`
	Sz FlexDecimal `json:"sz"`
	N  int         `json:"n,omitempty"`
}

// L2Book is an order book snapshot; Levels[0] are bids, Levels[1] asks.
type L2Book struct {
	Coin   string    `json:"coin"`
	Levels [][]Level `json:"levels"`
	Time   int64     `json:"time"`
}

// Trade is a public market trade.
type Trade struct {
	Coin string      `json:"coin"`
	Side string      `json:"side"`
	Px   FlexDecimal `json:"px"`
	Sz   FlexDecimal `json:"sz"`
	Time int64       `json:"time"`
	Hash string      `json:"hash"`
	Tid  int64       `json:"tid,omitempty"`
}

// Fill is an execution against the caller's account.
type Fill struct {
	Coin          string      `json:"coin"`
	Px            FlexDecimal `json:"px"`
	Sz            FlexDecimal `json:"sz"`
	Side          string      `json:"side"`
	Time          int64       `json:"time"`
	Oid           int64       `json:"oid"`
	StartPosition string      `json:"startPosition,omitempty"`
	Dir           string      `json:"dir,omitempty"`
	ClosedPnl     string      `json:"closedPnl,omitempty"`
	Hash          string      `json:"hash,omitempty"`
	Crossed       bool        `json:"crossed,omitempty"`
	Fee           string      `json:"fee,omitempty"`
}

// OpenOrder is a resting order as reported by /info.
type OpenOrder struct {
	Coin      string      `json:"coin"`
	Side      string      `json:"side"`
	LimitPx   FlexDecimal `json:"limitPx"`
	Sz        FlexDecimal `json:"sz"`
	Oid       int64       `json:"oid"`
	Timestamp int64       `json:"timestamp"`
	OrigSz    FlexDecimal `json:"origSz"`
	Cloid     string      `json:"cloid,omitempty"`
}

// Position is one open position inside a user state snapshot.
type Position struct {
	Coin           string      `json:"coin"`
	Szi            FlexDecimal `json:"szi"`
	EntryPx        FlexDecimal `json:"entryPx"`
	PositionValue  FlexDecimal `json:"positionValue"`
	UnrealizedPnl  FlexDecimal `json:"unrealizedPnl"`
	ReturnOnEquity FlexDecimal `json:"returnOnEquity"`
	Leverage       Leverage    `json:"leverage"`
	MaxLeverage    int         `json:"maxLeverage,omitempty"`
	LiquidationPx  FlexDecimal `json:"liquidationPx"`
	MarginUsed     FlexDecimal `json:"marginUsed"`
}

// Leverage is the leverage configuration attached to a position.
type Leverage struct {
	Type   string      `json:"type"`
	Value  int         `json:"value"`
	RawUsd FlexDecimal `json:"rawUsd,omitempty"`
}

// AssetPosition wraps a position with its type discriminator.
type AssetPosition struct {
	Type     string   `json:"type"`
	Position Position `json:"position"`
}

// MarginSummary aggregates account-level margin figures.
type MarginSummary struct {
	AccountValue    FlexDecimal `json:"accountValue"`
	TotalNtlPos     FlexDecimal `json:"totalNtlPos"`
	TotalRawUsd     FlexDecimal `json:"totalRawUsd"`
	TotalMarginUsed FlexDecimal `json:"totalMarginUsed"`
}

// UserState is the clearinghouse snapshot for one account.
type UserState struct {
	AssetPositions     []AssetPosition `json:"assetPositions"`
	MarginSummary      MarginSummary   `json:"marginSummary"`
	CrossMarginSummary MarginSummary   `json:"crossMarginSummary"`
	Withdrawable       FlexDecimal     `json:"withdrawable"`
	Time               int64           `json:"time,omitempty"`
}

// AssetMeta describes one tradable asset in the exchange universe.
type AssetMeta struct {
	Name       string `json:"name"`
	SzDecimals int    `json:"szDecimals"`
	MaxLevs    int    `json:"maxLeverage,omitempty"`
}

// Meta is the exchange universe listing; the position of an asset in
// Universe is its wire asset index.
type Meta struct {
	Universe []AssetMeta `json:"universe"`
}
