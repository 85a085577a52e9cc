package store

// OrderState is the last observed lifecycle state of one order. It is updated
// from fills and open-order snapshots and survives restarts so a client can
// resume tracking without replaying history.
type OrderState struct {
	// Oid is the exchange-assigned order id. Primary key for storage.
	Oid int64 `json:"oid"`

	// Cloid is the client order id, if the order was placed with one.
	Cloid string `json:"cloid,omitempty"`

	// Coin is the traded asset name.
	Coin string `json:"coin"`

	// Side is "B" or "A" as reported by the exchange.
	Side string `json:"side"`

	// Status is the last observed status ("open", "filled", "canceled").
	Status string `json:"status"`

	// FilledSz and RemainingSz are decimal strings in the exchange's wire form.
	FilledSz    string `json:"filledSz,omitempty"`
	RemainingSz string `json:"remainingSz,omitempty"`

	// UpdatedAt is the ms timestamp of the event that produced this state.
	UpdatedAt int64 `json:"updatedAt"`
}
