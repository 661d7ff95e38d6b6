// README: Booking lifecycle service: validated transitions, price negotiation, payment guard.
package booking

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"safar/internal/pubsub"
	"safar/internal/types"
)

// Quoter supplies the informational quote attached to a new draft.
type Quoter interface {
	Quote(ctx context.Context, serviceType string) (types.Money, error)
}

type Service struct {
	store  Store
	broker pubsub.Broker
	quoter Quoter
	log    *zap.Logger
}

func NewService(store Store, broker pubsub.Broker, quoter Quoter, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, broker: broker, quoter: quoter, log: log}
}

type CreateDraftCommand struct {
	CustomerID     types.ID
	ServiceType    string
	ServiceDetails string
	MeetingPoint   *types.Point
	Currency       string
}

type SetPriceCommand struct {
	BookingID  types.ID
	OperatorID types.ID
	Price      types.Money
	Notes      *string
}

type ProposePriceCommand struct {
	BookingID  types.ID
	CustomerID types.ID
	Amount     types.Money
}

type AssignCommand struct {
	BookingID    types.ID
	OperatorID   types.ID
	DriverID     types.ID
	ShareContact bool
	Notes        *string
}

type RespondCommand struct {
	BookingID types.ID
	DriverID  types.ID
	Accept    bool
	Notes     *string
}

type CancelCommand struct {
	BookingID types.ID
	ActorID   types.ID
	ActorRole types.Role
	Reason    *string
}

// CreateDraft is an idempotent upsert: a customer holds at most one draft, and
// re-creating it refreshes the payload instead of inserting a second row.
func (s *Service) CreateDraft(ctx context.Context, cmd CreateDraftCommand) (*Booking, error) {
	if cmd.CustomerID == "" || cmd.ServiceType == "" {
		return nil, ErrBadRequest
	}
	now := time.Now().UTC()
	quote := types.Money{Currency: cmd.Currency}
	if s.quoter != nil {
		if m, err := s.quoter.Quote(ctx, cmd.ServiceType); err == nil {
			quote = m
		}
	}

	b := &Booking{
		ID:             types.ID(uuid.NewString()),
		CustomerID:     cmd.CustomerID,
		ServiceType:    cmd.ServiceType,
		ServiceDetails: cmd.ServiceDetails,
		MeetingPoint:   cmd.MeetingPoint,
		Status:         StatusDraft,
		StatusVersion:  0,
		QuotedPrice:    quote,
		PaymentStatus:  PaymentPending,
		DriverResponse: ResponseNone,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	out, created, err := s.store.UpsertDraft(ctx, b)
	if err != nil {
		return nil, err
	}
	if created {
		_ = s.store.AppendHistory(ctx, &StatusHistory{
			BookingID: out.ID,
			Action:    ActionCreateDraft,
			OldStatus: "",
			NewStatus: StatusDraft,
			ActorID:   cmd.CustomerID,
			ActorRole: types.RoleCustomer,
			CreatedAt: now,
		})
	}
	return out, nil
}

func (s *Service) SubmitForReview(ctx context.Context, bookingID, customerID types.ID) error {
	b, err := s.getOwned(ctx, bookingID, customerID)
	if err != nil {
		return err
	}
	return s.transition(ctx, b, ActionSubmitForReview, customerID, types.RoleCustomer, nil, nil)
}

// SetPrice is the operator's quote. Issuing a new quote during negotiation
// implicitly declines any pending counter-proposal.
func (s *Service) SetPrice(ctx context.Context, cmd SetPriceCommand) error {
	b, err := s.store.Get(ctx, cmd.BookingID)
	if err != nil {
		return err
	}
	if err := s.checkPrice(b, cmd.Price); err != nil {
		return err
	}
	price := cmd.Price
	return s.transition(ctx, b, ActionSetPrice, cmd.OperatorID, types.RoleOperator, cmd.Notes, func(nb *Booking) {
		nb.AdminFinalPrice = &price
		nb.PriceNotes = cmd.Notes
		nb.CustomerProposedPrice = nil
		nb.PriceConfirmed = false
		nb.PriceConfirmedAt = nil
	})
}

// ConfirmPrice accepts the operator's current quote. Confirming clears any
// pending counter-proposal; the two are mutually exclusive.
func (s *Service) ConfirmPrice(ctx context.Context, bookingID, customerID types.ID) error {
	b, err := s.getOwned(ctx, bookingID, customerID)
	if err != nil {
		return err
	}
	if b.AdminFinalPrice == nil {
		return stateErr(ErrInvalidTransition, b.Status)
	}
	now := time.Now().UTC()
	return s.transition(ctx, b, ActionConfirmPrice, customerID, types.RoleCustomer, nil, func(nb *Booking) {
		nb.PriceConfirmed = true
		nb.PriceConfirmedAt = &now
		nb.CustomerProposedPrice = nil
	})
}

// ProposePrice is the customer's counter-offer. Proposing clears confirmation.
// No round limit is enforced; see DESIGN.md.
func (s *Service) ProposePrice(ctx context.Context, cmd ProposePriceCommand) error {
	b, err := s.getOwned(ctx, cmd.BookingID, cmd.CustomerID)
	if err != nil {
		return err
	}
	if err := s.checkPrice(b, cmd.Amount); err != nil {
		return err
	}
	amount := cmd.Amount
	return s.transition(ctx, b, ActionProposePrice, cmd.CustomerID, types.RoleCustomer, nil, func(nb *Booking) {
		nb.CustomerProposedPrice = &amount
		nb.PriceConfirmed = false
		nb.PriceConfirmedAt = nil
	})
}

// AcceptProposal promotes the customer's counter-offer to the final price and
// clears it, ending the round.
func (s *Service) AcceptProposal(ctx context.Context, bookingID, operatorID types.ID) error {
	b, err := s.store.Get(ctx, bookingID)
	if err != nil {
		return err
	}
	if b.CustomerProposedPrice == nil {
		return stateErr(ErrInvalidTransition, b.Status)
	}
	proposal := *b.CustomerProposedPrice
	return s.transition(ctx, b, ActionAcceptProposal, operatorID, types.RoleOperator, nil, func(nb *Booking) {
		nb.AdminFinalPrice = &proposal
		nb.CustomerProposedPrice = nil
	})
}

// Pay re-derives the guard at the moment of charge; a client-cached guard
// value is never trusted.
func (s *Service) Pay(ctx context.Context, bookingID, customerID types.ID) (types.Money, error) {
	b, err := s.getOwned(ctx, bookingID, customerID)
	if err != nil {
		return types.Money{}, err
	}
	guard := GuardFor(b)
	if !guard.CanPay || b.PaymentStatus == PaymentPaid {
		return types.Money{}, stateErr(ErrInvalidTransition, b.Status)
	}
	approved := *guard.ApprovedPrice
	err = s.transition(ctx, b, ActionPay, customerID, types.RoleCustomer, nil, func(nb *Booking) {
		nb.PaymentStatus = PaymentPaid
	})
	if err != nil {
		return types.Money{}, err
	}
	return approved, nil
}

// Guard computes the payment guard for a booking the actor may see.
func (s *Service) Guard(ctx context.Context, bookingID, actorID types.ID, role types.Role) (PaymentGuard, error) {
	b, err := s.GetFor(ctx, bookingID, actorID, role)
	if err != nil {
		return PaymentGuard{}, err
	}
	return GuardFor(b), nil
}

// Assign offers the booking to a driver. The compare-and-swap on
// (status, version) gives at-most-one-assignment-in-flight semantics: two
// concurrent assigns cannot both see the unassigned row.
func (s *Service) Assign(ctx context.Context, cmd AssignCommand) error {
	b, err := s.store.Get(ctx, cmd.BookingID)
	if err != nil {
		return err
	}
	if b.AssignedDriverID != nil {
		return stateErr(ErrInvalidTransition, b.Status)
	}
	driverID := cmd.DriverID
	return s.transition(ctx, b, ActionAssignDriver, cmd.OperatorID, types.RoleOperator, cmd.Notes, func(nb *Booking) {
		nb.AssignedDriverID = &driverID
		nb.DriverResponse = ResponseNone
		nb.DriverResponseAt = nil
		nb.ShareDriverContact = cmd.ShareContact
	})
}

// DriverRespond records the assigned driver's accept or reject. Reject always
// releases the assignment and returns the booking to confirmed, making it
// eligible for reassignment.
func (s *Service) DriverRespond(ctx context.Context, cmd RespondCommand) error {
	b, err := s.store.Get(ctx, cmd.BookingID)
	if err != nil {
		return err
	}
	if b.AssignedDriverID == nil || *b.AssignedDriverID != cmd.DriverID {
		return ErrUnauthorized
	}
	now := time.Now().UTC()
	if cmd.Accept {
		return s.transition(ctx, b, ActionDriverAccept, cmd.DriverID, types.RoleDriver, cmd.Notes, func(nb *Booking) {
			nb.DriverResponse = ResponseAccepted
			nb.DriverResponseAt = &now
		})
	}
	return s.transition(ctx, b, ActionDriverReject, cmd.DriverID, types.RoleDriver, cmd.Notes, func(nb *Booking) {
		nb.AssignedDriverID = nil
		nb.DriverResponse = ResponseRejected
		nb.DriverResponseAt = &now
		nb.ShareDriverContact = false
	})
}

func (s *Service) StartTrip(ctx context.Context, bookingID, operatorID types.ID) error {
	b, err := s.store.Get(ctx, bookingID)
	if err != nil {
		return err
	}
	return s.transition(ctx, b, ActionStartTrip, operatorID, types.RoleOperator, nil, nil)
}

// Complete may come from the operator or the assigned driver. The assignment
// is cleared on completion; the audit trail keeps who drove.
func (s *Service) Complete(ctx context.Context, bookingID, actorID types.ID, role types.Role) error {
	b, err := s.store.Get(ctx, bookingID)
	if err != nil {
		return err
	}
	if role == types.RoleDriver && (b.AssignedDriverID == nil || *b.AssignedDriverID != actorID) {
		return ErrUnauthorized
	}
	return s.transition(ctx, b, ActionComplete, actorID, role, nil, func(nb *Booking) {
		nb.AssignedDriverID = nil
	})
}

// Cancel is terminal and immediately invalidates any in-flight assignment; a
// driver's later accept or reject against the cancelled booking fails cleanly.
func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) error {
	b, err := s.store.Get(ctx, cmd.BookingID)
	if err != nil {
		return err
	}
	if cmd.ActorRole == types.RoleCustomer && b.CustomerID != cmd.ActorID {
		return ErrNotFound
	}
	return s.transition(ctx, b, ActionCancel, cmd.ActorID, cmd.ActorRole, cmd.Reason, func(nb *Booking) {
		nb.CancelReason = cmd.Reason
		nb.AssignedDriverID = nil
		nb.ShareDriverContact = false
	})
}

// Reject is the operator declining the request; absorbing, like cancel.
func (s *Service) Reject(ctx context.Context, bookingID, operatorID types.ID, notes *string) error {
	b, err := s.store.Get(ctx, bookingID)
	if err != nil {
		return err
	}
	return s.transition(ctx, b, ActionReject, operatorID, types.RoleOperator, notes, func(nb *Booking) {
		nb.AssignedDriverID = nil
		nb.ShareDriverContact = false
	})
}

// GetFor returns the booking subject to the actor's visibility: customers see
// their own, drivers see bookings currently offered or assigned to them,
// operators see everything.
func (s *Service) GetFor(ctx context.Context, bookingID, actorID types.ID, role types.Role) (*Booking, error) {
	b, err := s.store.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	switch role {
	case types.RoleOperator:
		return b, nil
	case types.RoleCustomer:
		if b.CustomerID != actorID {
			return nil, ErrNotFound
		}
		return b, nil
	case types.RoleDriver:
		if b.AssignedDriverID == nil || *b.AssignedDriverID != actorID {
			return nil, ErrNotFound
		}
		return b, nil
	}
	return nil, ErrUnauthorized
}

func (s *Service) History(ctx context.Context, bookingID, actorID types.ID, role types.Role) ([]StatusHistory, error) {
	if _, err := s.GetFor(ctx, bookingID, actorID, role); err != nil {
		return nil, err
	}
	return s.store.History(ctx, bookingID)
}

func (s *Service) LastRejectedDriver(ctx context.Context, bookingID types.ID) (*types.ID, error) {
	return s.store.LastRejectedDriver(ctx, bookingID)
}

func (s *Service) ActiveAssignmentCounts(ctx context.Context) (map[types.ID]int, error) {
	return s.store.ActiveAssignmentCounts(ctx)
}

func (s *Service) getOwned(ctx context.Context, bookingID, customerID types.ID) (*Booking, error) {
	b, err := s.store.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.CustomerID != customerID {
		return nil, ErrNotFound
	}
	return b, nil
}

func (s *Service) checkPrice(b *Booking, m types.Money) error {
	if m.Amount <= 0 {
		return ErrInvalidPrice
	}
	if m.Currency != "" && b.QuotedPrice.Currency != "" && m.Currency != b.QuotedPrice.Currency {
		return ErrInvalidPrice
	}
	return nil
}

// transition runs the validator, applies mutate to a copy, and writes it with
// a compare-and-swap on the status and version read above. A miss means a
// concurrent actor got there first: stale-state, caller refetches and retries.
func (s *Service) transition(ctx context.Context, b *Booking, action Action, actorID types.ID, role types.Role, notes *string, mutate func(*Booking)) error {
	next, err := Validate(b.Status, action, role)
	if err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			return stateErr(ErrInvalidTransition, b.Status)
		}
		return err
	}
	now := time.Now().UTC()
	old := b.Status

	nb := cloneBooking(b)
	if mutate != nil {
		mutate(nb)
	}
	nb.Status = next
	nb.UpdatedAt = now

	h := &StatusHistory{
		BookingID: b.ID,
		Action:    action,
		OldStatus: old,
		NewStatus: next,
		ActorID:   actorID,
		ActorRole: role,
		Notes:     notes,
		CreatedAt: now,
	}
	ok, err := s.store.Transition(ctx, nb, old, b.StatusVersion, h)
	if err != nil {
		return err
	}
	if !ok {
		// Report the status the record holds now, not the one we read.
		current := old
		if cur, gerr := s.store.Get(ctx, b.ID); gerr == nil {
			current = cur.Status
		}
		return stateErr(ErrStaleState, current)
	}

	*b = *nb
	b.StatusVersion++
	s.publishStatus(ctx, b, action, old, role)
	s.log.Info("booking transition",
		zap.String("booking_id", string(b.ID)),
		zap.String("action", string(action)),
		zap.String("from", string(old)),
		zap.String("to", string(next)))
	return nil
}

// publishStatus fans the accepted transition out to the booking's topic and
// the internal event stream. Delivery is best-effort; the audit row already
// committed.
func (s *Service) publishStatus(ctx context.Context, b *Booking, action Action, old Status, role types.Role) {
	if s.broker == nil {
		return
	}
	payload, err := json.Marshal(StatusChange{
		Action:    action,
		OldStatus: old,
		NewStatus: b.Status,
		ActorRole: role,
	})
	if err != nil {
		return
	}
	ev := pubsub.Event{
		Kind:      pubsub.KindStatusChanged,
		BookingID: b.ID,
		Payload:   payload,
		At:        time.Now().UTC(),
	}
	if err := s.broker.Publish(ctx, pubsub.BookingTopic(b.ID), ev); err != nil {
		s.log.Warn("publish booking topic", zap.String("booking_id", string(b.ID)), zap.Error(err))
	}
	if err := s.broker.Publish(ctx, pubsub.TopicBookingEvents, ev); err != nil {
		s.log.Warn("publish booking events", zap.String("booking_id", string(b.ID)), zap.Error(err))
	}
}
