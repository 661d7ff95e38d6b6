// README: Dispatch service: assignment, auto-assignment, driver response, visibility.
package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"safar/internal/modules/booking"
	"safar/internal/types"
)

var (
	// ErrUnavailable: auto-assignment found no eligible driver.
	ErrUnavailable = errors.New("unavailable")
	// ErrDriverInactive: manual assignment targeting a driver who is not
	// currently active. Best-effort check, not a lock; the booking CAS is
	// what makes assignment race-safe.
	ErrDriverInactive = errors.New("driver-inactive")
)

// Bookings is the slice of the booking service dispatch needs.
type Bookings interface {
	GetFor(ctx context.Context, bookingID, actorID types.ID, role types.Role) (*booking.Booking, error)
	Assign(ctx context.Context, cmd booking.AssignCommand) error
	DriverRespond(ctx context.Context, cmd booking.RespondCommand) error
	LastRejectedDriver(ctx context.Context, bookingID types.ID) (*types.ID, error)
}

type Service struct {
	drivers       DriverStore
	bookings      Bookings
	defaultPolicy RankingPolicy
	log           *zap.Logger
}

func NewService(drivers DriverStore, bookings Bookings, defaultPolicy RankingPolicy, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{drivers: drivers, bookings: bookings, defaultPolicy: defaultPolicy, log: log}
}

type CreateDriverCommand struct {
	Name  string
	Phone string
}

type AssignCommand struct {
	BookingID    types.ID
	OperatorID   types.ID
	DriverID     types.ID
	ShareContact bool
	Notes        *string
}

type AutoAssignCommand struct {
	BookingID    types.ID
	OperatorID   types.ID
	ShareContact bool
	// Policy overrides the default ranking when set.
	Policy RankingPolicy
}

func (s *Service) CreateDriver(ctx context.Context, cmd CreateDriverCommand) (*Driver, error) {
	if cmd.Name == "" || cmd.Phone == "" {
		return nil, booking.ErrBadRequest
	}
	d := &Driver{
		ID:           types.ID(uuid.NewString()),
		Name:         cmd.Name,
		Phone:        cmd.Phone,
		Availability: AvailabilityActive,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.drivers.Create(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) SetAvailability(ctx context.Context, driverID types.ID, a Availability) error {
	if a != AvailabilityActive && a != AvailabilityInactive {
		return booking.ErrBadRequest
	}
	return s.drivers.SetAvailability(ctx, driverID, a)
}

// Assign offers the booking to an operator-chosen driver. The driver sees it
// as a pending offer (driverResponse = none).
func (s *Service) Assign(ctx context.Context, cmd AssignCommand) error {
	d, err := s.drivers.Get(ctx, cmd.DriverID)
	if err != nil {
		return err
	}
	if d.Availability != AvailabilityActive {
		return ErrDriverInactive
	}
	return s.bookings.Assign(ctx, booking.AssignCommand{
		BookingID:    cmd.BookingID,
		OperatorID:   cmd.OperatorID,
		DriverID:     cmd.DriverID,
		ShareContact: cmd.ShareContact,
		Notes:        cmd.Notes,
	})
}

// AutoAssign picks the best active driver under the ranking policy, excluding
// whoever rejected this booking last, and assigns the top candidate. A
// concurrent assignment surfaces as stale-state; the caller refetches and
// retries.
func (s *Service) AutoAssign(ctx context.Context, cmd AutoAssignCommand) (types.ID, error) {
	b, err := s.bookings.GetFor(ctx, cmd.BookingID, cmd.OperatorID, types.RoleOperator)
	if err != nil {
		return "", err
	}

	candidates, err := s.drivers.ListActive(ctx)
	if err != nil {
		return "", err
	}
	if rejected, err := s.bookings.LastRejectedDriver(ctx, cmd.BookingID); err == nil && rejected != nil {
		filtered := candidates[:0]
		for _, d := range candidates {
			if d.ID != *rejected {
				filtered = append(filtered, d)
			}
		}
		candidates = filtered
	}
	if len(candidates) == 0 {
		return "", ErrUnavailable
	}

	policy := cmd.Policy
	if policy == nil {
		policy = s.defaultPolicy
	}
	ranked, err := policy.Rank(ctx, candidates, b)
	if err != nil {
		return "", err
	}
	if len(ranked) == 0 {
		return "", ErrUnavailable
	}

	pick := ranked[0]
	err = s.bookings.Assign(ctx, booking.AssignCommand{
		BookingID:    cmd.BookingID,
		OperatorID:   cmd.OperatorID,
		DriverID:     pick.ID,
		ShareContact: cmd.ShareContact,
	})
	if err != nil {
		return "", err
	}
	s.log.Info("auto-assigned driver",
		zap.String("booking_id", string(cmd.BookingID)),
		zap.String("driver_id", string(pick.ID)))
	return pick.ID, nil
}

func (s *Service) Respond(ctx context.Context, cmd booking.RespondCommand) error {
	return s.bookings.DriverRespond(ctx, cmd)
}

// DriverForCustomer exposes the assigned driver's identity to the booking's
// customer only once the driver accepted AND the operator enabled sharing.
// Pending offers and rejections never leak driver identity.
func (s *Service) DriverForCustomer(ctx context.Context, bookingID, customerID types.ID) (*PublicProfile, error) {
	b, err := s.bookings.GetFor(ctx, bookingID, customerID, types.RoleCustomer)
	if err != nil {
		return nil, err
	}
	if b.AssignedDriverID == nil || b.DriverResponse != booking.ResponseAccepted || !b.ShareDriverContact {
		return nil, booking.ErrNotFound
	}
	d, err := s.drivers.Get(ctx, *b.AssignedDriverID)
	if err != nil {
		return nil, err
	}
	return &PublicProfile{ID: d.ID, Name: d.Name, Phone: d.Phone}, nil
}
