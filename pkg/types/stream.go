package types

import (
	"bytes"
	"encoding/json"
)

// Streaming control message methods
const (
	StreamMethodSubscribe   = "subscribe"
	StreamMethodUnsubscribe = "unsubscribe"
)

// StreamControl is the outbound subscribe/unsubscribe message.
type StreamControl struct {
	Method       string `json:"method"`
	Subscription string `json:"subscription"`
}

// StreamPing is the liveness message sent on the heartbeat interval.
type StreamPing struct {
	Type string `json:"type"`
}

// NewStreamPing builds the fixed ping frame.
func NewStreamPing() StreamPing {
	return StreamPing{Type: "ping"}
}

// Envelope is the inbound stream frame: a channel key and a payload whose
// shape depends on the channel.
type Envelope struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

// AllMids is the full mid-price map for every coin.
type AllMids struct {
	Mids map[string]string `json:"mids"`
}

// UserEvents carries account-scoped events; only fills are populated today.
type UserEvents struct {
	Fills []Fill `json:"fills"`
}

// Unknown wraps a payload that matched none of the known shapes. It is
// surfaced to handlers rather than dropped so callers can log feed drift.
type Unknown struct {
	Raw json.RawMessage
}

// DecodeStreamData resolves the payload variant of an inbound frame. Shapes
// are structurally ambiguous on the wire, so decoding attempts each known
// shape in a fixed priority order: price map, book, trades, user events,
// fills, and finally Unknown.
func DecodeStreamData(raw json.RawMessage) any {
	for _, decode := range streamDecoders {
		if v, ok := decode(raw); ok {
			return v
		}
	}
	return Unknown{Raw: raw}
}

var streamDecoders = []func(json.RawMessage) (any, bool){
	decodeAllMids,
	decodeL2Book,
	decodeTrades,
	decodeUserEvents,
	decodeFills,
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

func isArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}

func objectKeys(raw json.RawMessage) (map[string]json.RawMessage, bool) {
	if !isObject(raw) {
		return nil, false
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keys); err != nil {
		return nil, false
	}
	return keys, true
}

func decodeAllMids(raw json.RawMessage) (any, bool) {
	keys, ok := objectKeys(raw)
	if !ok {
		return nil, false
	}
	if _, has := keys["mids"]; !has {
		return nil, false
	}
	var out AllMids
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, false
	}
	return out, true
}

func decodeL2Book(raw json.RawMessage) (any, bool) {
	keys, ok := objectKeys(raw)
	if !ok {
		return nil, false
	}
	if _, has := keys["levels"]; !has {
		return nil, false
	}
	var out L2Book
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, false
	}
	return out, true
}

func decodeTrades(raw json.RawMessage) (any, bool) {
	if !isArray(raw) {
		return nil, false
	}
	var probe []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, false
	}
	// A trade is identified by its transaction hash; fills carry an oid instead
	for _, elem := range probe {
		if _, has := elem["hash"]; !has {
			return nil, false
		}
		if _, has := elem["oid"]; has {
			return nil, false
		}
	}
	var out []Trade
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, false
	}
	return out, true
}

func decodeUserEvents(raw json.RawMessage) (any, bool) {
	keys, ok := objectKeys(raw)
	if !ok {
		return nil, false
	}
	if _, has := keys["fills"]; !has {
		return nil, false
	}
	var out UserEvents
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, false
	}
	return out, true
}

func decodeFills(raw json.RawMessage) (any, bool) {
	if !isArray(raw) {
		return nil, false
	}
	var probe []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, false
	}
	for _, elem := range probe {
		if _, has := elem["oid"]; !has {
			return nil, false
		}
	}
	var out []Fill
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, false
	}
	return out, true
}
