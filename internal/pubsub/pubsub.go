// README: Typed-topic publish/subscribe used for status and location fan-out.
package pubsub

import (
	"context"
	"encoding/json"
	"time"

	"safar/internal/types"
)

// Topics. Booking topics are keyed per booking for customer-facing consumers;
// TopicDriversAll is the unkeyed operator-facing broadcast; TopicBookingEvents
// is the internal stream of accepted status transitions.
const (
	TopicDriversAll    = "drivers:all"
	TopicBookingEvents = "bookings:events"
)

func BookingTopic(id types.ID) string {
	return "booking:" + string(id)
}

// Event kinds.
const (
	KindStatusChanged = "status_changed"
	KindLocation      = "location"
)

type Event struct {
	Kind      string          `json:"kind"`
	BookingID types.ID        `json:"booking_id,omitempty"`
	DriverID  types.ID        `json:"driver_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	At        time.Time       `json:"at"`
}

// Broker delivers events best-effort, at-least-once. Consumers must tolerate
// duplicate and out-of-order delivery.
type Broker interface {
	Publish(ctx context.Context, topic string, ev Event) error
	// Subscribe returns a receive channel and a cancel function that releases
	// the subscription and closes the channel.
	Subscribe(ctx context.Context, topic string) (<-chan Event, func(), error)
}
