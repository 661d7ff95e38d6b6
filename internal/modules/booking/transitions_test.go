// README: Transition table tests: legal edges, role gating, terminal absorption.
package booking

import (
	"errors"
	"testing"

	"safar/internal/types"
)

// TestValidateEdges walks the transition table without a store.
func TestValidateEdges(t *testing.T) {
	cases := []struct {
		from   Status
		action Action
		role   types.Role
		next   Status
		err    error
	}{
		// happy-path forward edges
		{StatusDraft, ActionSubmitForReview, types.RoleCustomer, StatusUnderReview, nil},
		{StatusUnderReview, ActionSetPrice, types.RoleOperator, StatusAwaitingConfirmation, nil},
		{StatusAwaitingConfirmation, ActionConfirmPrice, types.RoleCustomer, StatusConfirmed, nil},
		{StatusConfirmed, ActionPay, types.RoleCustomer, StatusPaid, nil},
		{StatusConfirmed, ActionAssignDriver, types.RoleOperator, StatusAssigned, nil},
		{StatusPaid, ActionAssignDriver, types.RoleOperator, StatusAssigned, nil},
		{StatusAssigned, ActionDriverAccept, types.RoleDriver, StatusAccepted, nil},
		{StatusAccepted, ActionStartTrip, types.RoleOperator, StatusOnTrip, nil},
		{StatusOnTrip, ActionComplete, types.RoleOperator, StatusCompleted, nil},
		{StatusOnTrip, ActionComplete, types.RoleDriver, StatusCompleted, nil},

		// negotiation self-loops
		{StatusAwaitingConfirmation, ActionSetPrice, types.RoleOperator, StatusAwaitingConfirmation, nil},
		{StatusAwaitingConfirmation, ActionProposePrice, types.RoleCustomer, StatusAwaitingConfirmation, nil},
		{StatusAwaitingConfirmation, ActionAcceptProposal, types.RoleOperator, StatusAwaitingConfirmation, nil},

		// paying after dispatch keeps the current status
		{StatusAssigned, ActionPay, types.RoleCustomer, StatusAssigned, nil},
		{StatusAccepted, ActionPay, types.RoleCustomer, StatusAccepted, nil},
		{StatusOnTrip, ActionPay, types.RoleCustomer, StatusOnTrip, nil},

		// driver reject releases back to confirmed
		{StatusAssigned, ActionDriverReject, types.RoleDriver, StatusConfirmed, nil},
		{StatusAccepted, ActionDriverReject, types.RoleDriver, StatusConfirmed, nil},

		// cancel and reject from every non-terminal status
		{StatusDraft, ActionCancel, types.RoleCustomer, StatusCancelled, nil},
		{StatusOnTrip, ActionCancel, types.RoleOperator, StatusCancelled, nil},
		{StatusUnderReview, ActionReject, types.RoleOperator, StatusRejected, nil},
		{StatusAssigned, ActionReject, types.RoleOperator, StatusRejected, nil},

		// terminal statuses absorb everything
		{StatusCompleted, ActionCancel, types.RoleOperator, "", ErrInvalidTransition},
		{StatusCancelled, ActionSubmitForReview, types.RoleCustomer, "", ErrInvalidTransition},
		{StatusRejected, ActionPay, types.RoleCustomer, "", ErrInvalidTransition},

		// skipping states
		{StatusDraft, ActionPay, types.RoleCustomer, "", ErrInvalidTransition},
		{StatusUnderReview, ActionAssignDriver, types.RoleOperator, "", ErrInvalidTransition},
		{StatusConfirmed, ActionStartTrip, types.RoleOperator, "", ErrInvalidTransition},
		{StatusAssigned, ActionStartTrip, types.RoleOperator, "", ErrInvalidTransition},

		// role gating
		{StatusDraft, ActionSubmitForReview, types.RoleOperator, "", ErrUnauthorized},
		{StatusUnderReview, ActionSetPrice, types.RoleCustomer, "", ErrUnauthorized},
		{StatusAwaitingConfirmation, ActionConfirmPrice, types.RoleOperator, "", ErrUnauthorized},
		{StatusAssigned, ActionDriverAccept, types.RoleOperator, "", ErrUnauthorized},
		{StatusOnTrip, ActionComplete, types.RoleCustomer, "", ErrUnauthorized},
		{StatusUnderReview, ActionCancel, types.RoleDriver, "", ErrUnauthorized},
		{StatusUnderReview, ActionReject, types.RoleCustomer, "", ErrUnauthorized},
	}
	for _, tc := range cases {
		next, err := Validate(tc.from, tc.action, tc.role)
		if !errors.Is(err, tc.err) {
			t.Errorf("Validate(%s, %s, %s) err = %v, want %v", tc.from, tc.action, tc.role, err, tc.err)
			continue
		}
		if err == nil && next != tc.next {
			t.Errorf("Validate(%s, %s, %s) = %s, want %s", tc.from, tc.action, tc.role, next, tc.next)
		}
	}
}

func TestTerminalAndTrackable(t *testing.T) {
	for _, s := range []Status{StatusCompleted, StatusCancelled, StatusRejected} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
		if s.Trackable() {
			t.Errorf("%s should not be trackable", s)
		}
	}
	for _, s := range []Status{StatusConfirmed, StatusAccepted, StatusOnTrip} {
		if !s.Trackable() {
			t.Errorf("%s should be trackable", s)
		}
	}
	for _, s := range []Status{StatusDraft, StatusUnderReview, StatusAwaitingConfirmation, StatusPaid, StatusAssigned} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
		if s.Trackable() {
			t.Errorf("%s should not be trackable", s)
		}
	}
}

func TestValidateUnknownAction(t *testing.T) {
	if _, err := Validate(StatusDraft, Action("teleport"), types.RoleOperator); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("unknown action err = %v, want %v", err, ErrInvalidTransition)
	}
}
