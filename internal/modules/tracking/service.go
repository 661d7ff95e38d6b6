// README: Location ingestion: authorize against booking state, upsert, fan out, tear down.
package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"safar/internal/modules/booking"
	"safar/internal/pubsub"
	"safar/internal/types"
)

// ErrRejectedLocation: update outside the authorized trackable window. Always
// an explicit rejection, never a silent drop, so callers can detect it and
// stop polling.
var ErrRejectedLocation = errors.New("rejected-location")

// BookingReader is the read slice of the booking store the authorizer needs.
type BookingReader interface {
	Get(ctx context.Context, id types.ID) (*booking.Booking, error)
}

type Service struct {
	store    Store
	bookings BookingReader
	broker   pubsub.Broker
	log      *zap.Logger
}

func NewService(store Store, bookings BookingReader, broker pubsub.Broker, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, bookings: bookings, broker: broker, log: log}
}

type IngestCommand struct {
	// CallerID is the authenticated actor; it must equal DriverID.
	CallerID  types.ID
	DriverID  types.ID
	BookingID types.ID
	Position  types.Point
	Heading   *float64
	Speed     *float64
	Accuracy  *float64
}

// Ingest accepts a position update when the caller is the booking's assigned
// driver and the booking is in the trackable window. Accepted updates are
// idempotent last-write-wins upserts; stale deliveries are discarded without
// error and without fan-out.
func (s *Service) Ingest(ctx context.Context, cmd IngestCommand) error {
	if cmd.CallerID != cmd.DriverID {
		return booking.ErrUnauthorized
	}
	b, err := s.bookings.Get(ctx, cmd.BookingID)
	if err != nil {
		return err
	}
	if b.AssignedDriverID == nil || *b.AssignedDriverID != cmd.DriverID || !b.Status.Trackable() {
		return ErrRejectedLocation
	}

	bookingID := cmd.BookingID
	loc := &DriverLocation{
		DriverID:  cmd.DriverID,
		BookingID: &bookingID,
		Position:  cmd.Position,
		Heading:   cmd.Heading,
		Speed:     cmd.Speed,
		Accuracy:  cmd.Accuracy,
		UpdatedAt: time.Now().UTC(),
	}
	applied, err := s.store.Upsert(ctx, loc)
	if err != nil {
		return err
	}
	if applied {
		s.publish(ctx, loc)
	}
	return nil
}

// DriverOffline removes the driver's live row. Drivers may take themselves
// offline; operators may force it.
func (s *Service) DriverOffline(ctx context.Context, driverID, actorID types.ID, role types.Role) error {
	if role == types.RoleDriver && actorID != driverID {
		return booking.ErrUnauthorized
	}
	if role == types.RoleCustomer {
		return booking.ErrUnauthorized
	}
	return s.store.Delete(ctx, driverID)
}

// RunTeardown consumes the internal status stream and deletes location rows
// the moment a booking leaves the trackable window. Blocks until ctx is done.
func (s *Service) RunTeardown(ctx context.Context) error {
	events, cancel, err := s.broker.Subscribe(ctx, pubsub.TopicBookingEvents)
	if err != nil {
		return err
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if ev.Kind != pubsub.KindStatusChanged {
				continue
			}
			var change booking.StatusChange
			if err := json.Unmarshal(ev.Payload, &change); err != nil {
				continue
			}
			if change.OldStatus.Trackable() && !change.NewStatus.Trackable() {
				if err := s.store.DeleteByBooking(ctx, ev.BookingID); err != nil {
					s.log.Warn("teardown delete", zap.String("booking_id", string(ev.BookingID)), zap.Error(err))
				}
			}
		}
	}
}

func (s *Service) publish(ctx context.Context, loc *DriverLocation) {
	if s.broker == nil {
		return
	}
	payload, err := json.Marshal(loc)
	if err != nil {
		return
	}
	ev := pubsub.Event{
		Kind:      pubsub.KindLocation,
		BookingID: *loc.BookingID,
		DriverID:  loc.DriverID,
		Payload:   payload,
		At:        loc.UpdatedAt,
	}
	// Keyed customer-facing topic plus the operator-facing broadcast.
	if err := s.broker.Publish(ctx, pubsub.BookingTopic(*loc.BookingID), ev); err != nil {
		s.log.Warn("publish location", zap.String("driver_id", string(loc.DriverID)), zap.Error(err))
	}
	if err := s.broker.Publish(ctx, pubsub.TopicDriversAll, ev); err != nil {
		s.log.Warn("publish drivers broadcast", zap.String("driver_id", string(loc.DriverID)), zap.Error(err))
	}
}
