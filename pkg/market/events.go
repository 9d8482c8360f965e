package market

import "time"

// EventType identifies a board lifecycle transition.
type EventType string

const (
	EventAskPlaced    EventType = "ask_placed"
	EventAskCancelled EventType = "ask_cancelled"
	EventAskFilled    EventType = "ask_filled"
	EventBidPlaced    EventType = "bid_placed"
	EventBidReplaced  EventType = "bid_replaced"
	EventBidCancelled EventType = "bid_cancelled"
	EventBidFilled    EventType = "bid_filled"
)

// Event is emitted after an operation commits. Events are the integration
// point for off-node indexing; the boards themselves never read them back.
type Event struct {
	Type       EventType `json:"type"`
	Collection string    `json:"collection"`
	AssetID    uint64    `json:"assetId"`

	// Accounts involved. Maker is the order owner (seller/bidder), Taker the
	// counterparty on fills. Refunded is set on bid overwrites.
	Maker    string `json:"maker,omitempty"`
	Taker    string `json:"taker,omitempty"`
	Refunded string `json:"refunded,omitempty"`

	Price     int64 `json:"price,omitempty"`  // ask price
	Amount    int64 `json:"amount,omitempty"` // bid amount
	Fee       int64 `json:"fee,omitempty"`
	Timestamp int64 `json:"timestamp"` // Unix milliseconds
}

// EventSink receives committed board events. Implementations must not block;
// the boards publish synchronously from inside the operation path.
type EventSink interface {
	Publish(Event)
}

func newEvent(typ EventType, key OrderKey) Event {
	return Event{
		Type:       typ,
		Collection: key.Collection.Hex(),
		AssetID:    key.AssetID,
		Timestamp:  time.Now().UnixMilli(),
	}
}

// publish is nil-safe so boards can run without a sink (tests, tooling).
func publish(sink EventSink, ev Event) {
	if sink != nil {
		sink.Publish(ev)
	}
}
