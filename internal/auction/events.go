package auction

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventBidAccepted      = "BidAccepted"
	EventLifecycleChanged = "LifecycleChanged"
)

// Event is what a committed unit of work hands to the fan-out. One event per
// accepted bid, one per lifecycle transition.
type Event struct {
	Type       string
	AuctionID  string
	OccurredAt time.Time

	// BidAccepted
	Bid        *Bid
	NewPrice   decimal.Decimal
	NewEndTime time.Time

	// LifecycleChanged
	OldStatus Status
	NewStatus Status
	WinnerID  *string
}

// Envelope is the wire shape shared by the websocket stream, redis pub/sub
// and the kafka topics.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id"` // auction id
	Payload       json.RawMessage `json:"payload"`
}

type BidAcceptedPayload struct {
	AuctionID  string          `json:"auction_id"`
	Bid        Bid             `json:"bid"`
	NewPrice   decimal.Decimal `json:"new_price"`
	NewEndTime time.Time       `json:"new_end_time"`
}

type LifecycleChangedPayload struct {
	AuctionID string  `json:"auction_id"`
	OldStatus Status  `json:"old_status"`
	NewStatus Status  `json:"new_status"`
	WinnerID  *string `json:"winner_id,omitempty"`
}

// NewEnvelope wraps an Event for the wire. Marshaling our own payload types
// cannot fail, so an error here panics.
func NewEnvelope(producer string, ev Event) Envelope {
	var payload any
	switch ev.Type {
	case EventBidAccepted:
		payload = BidAcceptedPayload{
			AuctionID:  ev.AuctionID,
			Bid:        *ev.Bid,
			NewPrice:   ev.NewPrice,
			NewEndTime: ev.NewEndTime,
		}
	case EventLifecycleChanged:
		payload = LifecycleChangedPayload{
			AuctionID: ev.AuctionID,
			OldStatus: ev.OldStatus,
			NewStatus: ev.NewStatus,
			WinnerID:  ev.WinnerID,
		}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     ev.Type,
		EventVersion:  1,
		OccurredAt:    ev.OccurredAt,
		Producer:      producer,
		CorrelationID: ev.AuctionID,
		Payload:       raw,
	}
}
