// README: Dispatch tests: manual/auto assignment, rejection exclusion, visibility.
package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"

	"safar/internal/modules/booking"
	"safar/internal/pubsub"
	"safar/internal/types"
)

type fixedQuoter struct{ m types.Money }

func (q fixedQuoter) Quote(_ context.Context, _ string) (types.Money, error) { return q.m, nil }

type testEnv struct {
	bookings *booking.Service
	dispatch *Service
	drivers  *MemStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := booking.NewMemStore()
	bookings := booking.NewService(store, pubsub.NewMemoryBroker(), fixedQuoter{types.Money{Amount: 10000, Currency: "USD"}}, nil)
	drivers := NewMemStore()
	dispatch := NewService(drivers, bookings, LeastLoadedPolicy{Counts: bookings}, nil)
	return &testEnv{bookings: bookings, dispatch: dispatch, drivers: drivers}
}

func (e *testEnv) confirmedBooking(t *testing.T, customer types.ID) *booking.Booking {
	t.Helper()
	ctx := context.Background()
	b, err := e.bookings.CreateDraft(ctx, booking.CreateDraftCommand{CustomerID: customer, ServiceType: "airport_transfer"})
	if err != nil {
		t.Fatalf("draft: %v", err)
	}
	if err := e.bookings.SubmitForReview(ctx, b.ID, customer); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := e.bookings.SetPrice(ctx, booking.SetPriceCommand{BookingID: b.ID, OperatorID: "op", Price: types.Money{Amount: 12000, Currency: "USD"}}); err != nil {
		t.Fatalf("set price: %v", err)
	}
	if err := e.bookings.ConfirmPrice(ctx, b.ID, customer); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	b, err = e.bookings.GetFor(ctx, b.ID, "op", types.RoleOperator)
	if err != nil {
		t.Fatalf("refetch: %v", err)
	}
	return b
}

func (e *testEnv) addDriver(t *testing.T, name string) types.ID {
	t.Helper()
	d, err := e.dispatch.CreateDriver(context.Background(), CreateDriverCommand{Name: name, Phone: "+99890" + name})
	if err != nil {
		t.Fatalf("create driver %s: %v", name, err)
	}
	return d.ID
}

func TestManualAssignRequiresActiveDriver(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	b := env.confirmedBooking(t, "c1")
	d := env.addDriver(t, "a")

	if err := env.dispatch.SetAvailability(ctx, d, AvailabilityInactive); err != nil {
		t.Fatalf("set availability: %v", err)
	}
	if err := env.dispatch.Assign(ctx, AssignCommand{BookingID: b.ID, OperatorID: "op", DriverID: d}); !errors.Is(err, ErrDriverInactive) {
		t.Fatalf("assign inactive err = %v, want %v", err, ErrDriverInactive)
	}

	if err := env.dispatch.SetAvailability(ctx, d, AvailabilityActive); err != nil {
		t.Fatalf("reactivate: %v", err)
	}
	if err := env.dispatch.Assign(ctx, AssignCommand{BookingID: b.ID, OperatorID: "op", DriverID: d}); err != nil {
		t.Fatalf("assign: %v", err)
	}

	cur, _ := env.bookings.GetFor(ctx, b.ID, "op", types.RoleOperator)
	if cur.Status != booking.StatusAssigned || cur.AssignedDriverID == nil || *cur.AssignedDriverID != d {
		t.Fatalf("booking %s assigned=%v, want assigned to %s", cur.Status, cur.AssignedDriverID, d)
	}
	if cur.DriverResponse != booking.ResponseNone {
		t.Fatalf("driver response = %s, want pending offer", cur.DriverResponse)
	}
}

func TestCreateDriverDuplicatePhone(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.dispatch.CreateDriver(ctx, CreateDriverCommand{Name: "a", Phone: "+998901"}); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := env.dispatch.CreateDriver(ctx, CreateDriverCommand{Name: "b", Phone: "+998901"}); !errors.Is(err, booking.ErrConflict) {
		t.Fatalf("duplicate phone err = %v, want %v", err, booking.ErrConflict)
	}
}

// Reject then auto-assign: the rejecting driver is excluded from the next
// round even if the ranking would prefer them.
func TestAutoAssignExcludesLastRejector(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	b := env.confirmedBooking(t, "c1")
	d1 := env.addDriver(t, "first")
	d2 := env.addDriver(t, "second")

	picked, err := env.dispatch.AutoAssign(ctx, AutoAssignCommand{BookingID: b.ID, OperatorID: "op"})
	if err != nil {
		t.Fatalf("auto-assign: %v", err)
	}
	if picked != d1 {
		t.Fatalf("picked %s, want the earliest-registered %s", picked, d1)
	}

	if err := env.dispatch.Respond(ctx, booking.RespondCommand{BookingID: b.ID, DriverID: d1, Accept: false}); err != nil {
		t.Fatalf("reject: %v", err)
	}

	picked, err = env.dispatch.AutoAssign(ctx, AutoAssignCommand{BookingID: b.ID, OperatorID: "op"})
	if err != nil {
		t.Fatalf("second auto-assign: %v", err)
	}
	if picked != d2 {
		t.Fatalf("picked %s after rejection, want %s", picked, d2)
	}
}

func TestAutoAssignNoCandidates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	b := env.confirmedBooking(t, "c1")
	if _, err := env.dispatch.AutoAssign(ctx, AutoAssignCommand{BookingID: b.ID, OperatorID: "op"}); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("empty roster err = %v, want %v", err, ErrUnavailable)
	}

	// The only driver rejected this booking already.
	d1 := env.addDriver(t, "only")
	if _, err := env.dispatch.AutoAssign(ctx, AutoAssignCommand{BookingID: b.ID, OperatorID: "op"}); err != nil {
		t.Fatalf("auto-assign: %v", err)
	}
	if err := env.dispatch.Respond(ctx, booking.RespondCommand{BookingID: b.ID, DriverID: d1, Accept: false}); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if _, err := env.dispatch.AutoAssign(ctx, AutoAssignCommand{BookingID: b.ID, OperatorID: "op"}); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("rejector-only roster err = %v, want %v", err, ErrUnavailable)
	}
}

// Least-loaded ranking spreads bookings across the roster.
func TestLeastLoadedSpreadsAssignments(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	d1 := env.addDriver(t, "one")
	d2 := env.addDriver(t, "two")

	b1 := env.confirmedBooking(t, "c1")
	first, err := env.dispatch.AutoAssign(ctx, AutoAssignCommand{BookingID: b1.ID, OperatorID: "op"})
	if err != nil {
		t.Fatalf("first auto-assign: %v", err)
	}
	if first != d1 {
		t.Fatalf("first pick = %s, want %s", first, d1)
	}

	b2 := env.confirmedBooking(t, "c2")
	second, err := env.dispatch.AutoAssign(ctx, AutoAssignCommand{BookingID: b2.ID, OperatorID: "op"})
	if err != nil {
		t.Fatalf("second auto-assign: %v", err)
	}
	if second != d2 {
		t.Fatalf("second pick = %s, want the unloaded %s", second, d2)
	}
}

// Two concurrent auto-assigns on one booking: exactly one wins, the loser
// sees a state error it can retry on.
func TestConcurrentAutoAssign(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	b := env.confirmedBooking(t, "c_race")
	env.addDriver(t, "one")
	env.addDriver(t, "two")

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	start := make(chan struct{})
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := env.dispatch.AutoAssign(ctx, AutoAssignCommand{BookingID: b.ID, OperatorID: "op"})
			errs <- err
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	success := 0
	for err := range errs {
		if err == nil {
			success++
			continue
		}
		if !errors.Is(err, booking.ErrStaleState) && !errors.Is(err, booking.ErrInvalidTransition) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if success != 1 {
		t.Fatalf("expected exactly 1 winner, got %d", success)
	}
}

func TestDriverForCustomerGating(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	b := env.confirmedBooking(t, "c1")
	d := env.addDriver(t, "visible")

	// Pending offer: hidden.
	if err := env.dispatch.Assign(ctx, AssignCommand{BookingID: b.ID, OperatorID: "op", DriverID: d, ShareContact: true}); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := env.dispatch.DriverForCustomer(ctx, b.ID, "c1"); !errors.Is(err, booking.ErrNotFound) {
		t.Fatalf("pending offer err = %v, want %v", err, booking.ErrNotFound)
	}

	// Accepted with sharing enabled: visible to the owner only.
	if err := env.dispatch.Respond(ctx, booking.RespondCommand{BookingID: b.ID, DriverID: d, Accept: true}); err != nil {
		t.Fatalf("accept: %v", err)
	}
	p, err := env.dispatch.DriverForCustomer(ctx, b.ID, "c1")
	if err != nil {
		t.Fatalf("driver for customer: %v", err)
	}
	if p.ID != d || p.Name != "visible" {
		t.Fatalf("profile = %+v, want driver %s", p, d)
	}
	if _, err := env.dispatch.DriverForCustomer(ctx, b.ID, "c2"); !errors.Is(err, booking.ErrNotFound) {
		t.Fatalf("foreign customer err = %v, want %v", err, booking.ErrNotFound)
	}
}

func TestDriverForCustomerSharingDisabled(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	b := env.confirmedBooking(t, "c1")
	d := env.addDriver(t, "hidden")

	if err := env.dispatch.Assign(ctx, AssignCommand{BookingID: b.ID, OperatorID: "op", DriverID: d, ShareContact: false}); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := env.dispatch.Respond(ctx, booking.RespondCommand{BookingID: b.ID, DriverID: d, Accept: true}); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := env.dispatch.DriverForCustomer(ctx, b.ID, "c1"); !errors.Is(err, booking.ErrNotFound) {
		t.Fatalf("sharing disabled err = %v, want %v", err, booking.ErrNotFound)
	}
}
