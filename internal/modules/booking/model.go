// README: Booking aggregate, status vocabulary, and audit history records.
package booking

import (
	"time"

	"safar/internal/types"
)

type Status string

const (
	StatusDraft                Status = "draft"
	StatusUnderReview          Status = "under_review"
	StatusAwaitingConfirmation Status = "awaiting_customer_confirmation"
	StatusConfirmed            Status = "confirmed"
	StatusPaid                 Status = "paid"
	StatusAssigned             Status = "assigned"
	StatusAccepted             Status = "accepted"
	StatusOnTrip               Status = "on_trip"
	StatusCompleted            Status = "completed"
	StatusCancelled            Status = "cancelled"
	StatusRejected             Status = "rejected"
)

// Terminal statuses have no outgoing transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusRejected:
		return true
	}
	return false
}

// Trackable statuses are the window during which live location data may exist
// for the booking. Ingest additionally requires a current assignment, so no
// new points land while "confirmed"; it is in the window so that teardown does
// not wipe the last known location between a driver rejection and reassignment.
func (s Status) Trackable() bool {
	switch s {
	case StatusConfirmed, StatusAccepted, StatusOnTrip:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

type DriverResponse string

const (
	ResponseNone     DriverResponse = "none"
	ResponseAccepted DriverResponse = "accepted"
	ResponseRejected DriverResponse = "rejected"
)

type Booking struct {
	ID             types.ID
	CustomerID     types.ID
	ServiceType    string
	ServiceDetails string
	MeetingPoint   *types.Point
	Status         Status
	StatusVersion  int

	QuotedPrice           types.Money
	AdminFinalPrice       *types.Money
	PriceNotes            *string
	CustomerProposedPrice *types.Money
	PriceConfirmed        bool
	PriceConfirmedAt      *time.Time

	PaymentStatus PaymentStatus

	AssignedDriverID   *types.ID
	DriverResponse     DriverResponse
	DriverResponseAt   *time.Time
	ShareDriverContact bool

	CancelReason *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// StatusHistory is the append-only audit trail. Rows are written in the same
// store transaction as the status change and never mutated.
type StatusHistory struct {
	ID        int64
	BookingID types.ID
	Action    Action
	OldStatus Status
	NewStatus Status
	ActorID   types.ID
	ActorRole types.Role
	Notes     *string
	CreatedAt time.Time
}

// StatusChange is the fan-out payload published on every accepted transition.
type StatusChange struct {
	Action    Action     `json:"action"`
	OldStatus Status     `json:"old_status"`
	NewStatus Status     `json:"new_status"`
	ActorRole types.Role `json:"actor_role"`
}
