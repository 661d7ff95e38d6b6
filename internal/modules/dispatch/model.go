// README: Driver registry records for the dispatch protocol.
package dispatch

import (
	"time"

	"safar/internal/types"
)

type Availability string

const (
	AvailabilityActive   Availability = "active"
	AvailabilityInactive Availability = "inactive"
)

type Driver struct {
	ID           types.ID
	Name         string
	Phone        string
	Availability Availability
	CreatedAt    time.Time
}

// PublicProfile is the customer-facing shape: exposed only when the driver
// accepted the offer and the operator enabled contact sharing.
type PublicProfile struct {
	ID    types.ID `json:"id"`
	Name  string   `json:"name"`
	Phone string   `json:"phone"`
}
