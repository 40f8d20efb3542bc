package service

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event is the published record of one settled operation. It goes
// through the outbox to Kafka and ends up in the index, so the JSON
// shape is the external contract.
type Event struct {
	V    int    `json:"v"`
	ID   string `json:"id"`
	Seq  uint64 `json:"seq"`
	Type string `json:"type"`
	Time int64  `json:"time"`

	Caller  uint64 `json:"caller,omitempty"`
	Account uint64 `json:"account,omitempty"`
	Addr    string `json:"addr,omitempty"`

	Side    string          `json:"side,omitempty"`
	Price   int64           `json:"price,omitempty"`
	OrderID uint32          `json:"order_id,omitempty"`
	Amount  decimal.Decimal `json:"amount,omitempty"`

	Filled decimal.Decimal `json:"filled,omitempty"`
	Cost   decimal.Decimal `json:"cost,omitempty"`
	Fee    decimal.Decimal `json:"fee,omitempty"`

	FeeTraded decimal.Decimal `json:"fee_traded,omitempty"`
	FeeBase   decimal.Decimal `json:"fee_base,omitempty"`

	NewOwner uint64 `json:"new_owner,omitempty"`
}

const eventVersion = 1

func newEvent(seq uint64, typ string, now int64) Event {
	return Event{
		V:    eventVersion,
		ID:   uuid.NewString(),
		Seq:  seq,
		Type: typ,
		Time: now,
	}
}

func EncodeEvent(e Event) ([]byte, error) {
	return json.Marshal(e)
}

func DecodeEvent(data []byte) (Event, error) {
	var e Event
	err := json.Unmarshal(data, &e)
	return e, err
}
