// README: Concurrency tests for booking transitions (run with -race).
package booking

import (
	"context"
	"errors"
	"sync"
	"testing"

	"safar/internal/types"
)

// Two operators assigning different drivers at once: the compare-and-swap
// admits exactly one.
func TestConcurrentAssignExactlyOne(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	b := driveToConfirmed(t, svc, "c_race")

	drivers := []types.ID{"d1", "d2", "d3", "d4"}
	errs := make(chan error, len(drivers))
	start := make(chan struct{})
	var wg sync.WaitGroup

	for _, d := range drivers {
		wg.Add(1)
		go func(driverID types.ID) {
			defer wg.Done()
			<-start
			errs <- svc.Assign(ctx, AssignCommand{BookingID: b.ID, OperatorID: "op", DriverID: driverID})
		}(d)
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
		if !errors.Is(err, ErrStaleState) && !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if success != 1 {
		t.Fatalf("expected exactly 1 successful assign, got %d", success)
	}

	cur, err := svc.GetFor(ctx, b.ID, "op", types.RoleOperator)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if cur.Status != StatusAssigned || cur.AssignedDriverID == nil {
		t.Fatalf("final state = %s assigned=%v, want assigned with a driver", cur.Status, cur.AssignedDriverID)
	}
}

func TestConcurrentCancelVsAssign(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	b := driveToConfirmed(t, svc, "c_cancel_race")

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	start := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		<-start
		errs <- svc.Assign(ctx, AssignCommand{BookingID: b.ID, OperatorID: "op", DriverID: "d1"})
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-start
		errs <- svc.Cancel(ctx, CancelCommand{BookingID: b.ID, ActorID: "c_cancel_race", ActorRole: types.RoleCustomer})
	}()
	close(start)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrStaleState) && !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	cur, err := svc.GetFor(ctx, b.ID, "op", types.RoleOperator)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	// Either ordering is fine; what is not fine is a cancelled booking
	// keeping its assignment.
	if cur.Status == StatusCancelled && cur.AssignedDriverID != nil {
		t.Fatal("cancelled booking kept a driver assignment")
	}
	if cur.Status != StatusCancelled && cur.Status != StatusAssigned {
		t.Fatalf("unexpected final status: %s", cur.Status)
	}
}

// Concurrent drafts from one customer collapse onto a single row.
func TestConcurrentDraftUpsert(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	const n = 8
	ids := make(chan types.ID, n)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			b, err := svc.CreateDraft(ctx, CreateDraftCommand{CustomerID: "c_draft_race", ServiceType: "city_tour"})
			if err != nil {
				t.Errorf("draft: %v", err)
				return
			}
			ids <- b.ID
		}()
	}
	close(start)
	wg.Wait()
	close(ids)

	seen := make(map[types.ID]bool)
	for id := range ids {
		seen[id] = true
	}
	if len(seen) != 1 {
		t.Fatalf("expected one draft row, got %d distinct ids", len(seen))
	}
}
