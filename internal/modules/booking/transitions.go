// README: The transition validator: one table owns every legal (status, action, role) edge.
package booking

import "safar/internal/types"

type Action string

const (
	ActionCreateDraft     Action = "create_draft"
	ActionSubmitForReview Action = "submit_for_review"
	ActionSetPrice        Action = "set_price"
	ActionConfirmPrice    Action = "confirm_price"
	ActionProposePrice    Action = "propose_price"
	ActionAcceptProposal  Action = "accept_proposal"
	ActionPay             Action = "pay"
	ActionAssignDriver    Action = "assign_driver"
	ActionDriverAccept    Action = "driver_accept"
	ActionDriverReject    Action = "driver_reject"
	ActionStartTrip       Action = "start_trip"
	ActionComplete        Action = "complete"
	ActionCancel          Action = "cancel"
	ActionReject          Action = "reject"
)

// rule binds an action to the roles allowed to perform it and the edges it may
// follow. Edge-less rules with anyNonTerminal apply from every non-terminal
// status (cancel, reject).
type rule struct {
	roles          map[types.Role]bool
	edges          map[Status]Status
	anyNonTerminal bool
	next           Status
}

func roles(rs ...types.Role) map[types.Role]bool {
	m := make(map[types.Role]bool, len(rs))
	for _, r := range rs {
		m[r] = true
	}
	return m
}

var rules = map[Action]rule{
	ActionSubmitForReview: {
		roles: roles(types.RoleCustomer),
		edges: map[Status]Status{StatusDraft: StatusUnderReview},
	},
	ActionSetPrice: {
		roles: roles(types.RoleOperator),
		edges: map[Status]Status{
			StatusUnderReview: StatusAwaitingConfirmation,
			// Re-quote during negotiation stays in the same status.
			StatusAwaitingConfirmation: StatusAwaitingConfirmation,
		},
	},
	ActionConfirmPrice: {
		roles: roles(types.RoleCustomer),
		edges: map[Status]Status{StatusAwaitingConfirmation: StatusConfirmed},
	},
	ActionProposePrice: {
		roles: roles(types.RoleCustomer),
		edges: map[Status]Status{StatusAwaitingConfirmation: StatusAwaitingConfirmation},
	},
	ActionAcceptProposal: {
		roles: roles(types.RoleOperator),
		edges: map[Status]Status{StatusAwaitingConfirmation: StatusAwaitingConfirmation},
	},
	ActionPay: {
		roles: roles(types.RoleCustomer),
		edges: map[Status]Status{
			StatusConfirmed: StatusPaid,
			// Paying after dispatch started must not regress the assignment.
			StatusAssigned: StatusAssigned,
			StatusAccepted: StatusAccepted,
			StatusOnTrip:   StatusOnTrip,
		},
	},
	ActionAssignDriver: {
		roles: roles(types.RoleOperator),
		edges: map[Status]Status{
			StatusConfirmed: StatusAssigned,
			StatusPaid:      StatusAssigned,
		},
	},
	ActionDriverAccept: {
		roles: roles(types.RoleDriver),
		edges: map[Status]Status{StatusAssigned: StatusAccepted},
	},
	ActionDriverReject: {
		roles: roles(types.RoleDriver),
		edges: map[Status]Status{
			StatusAssigned: StatusConfirmed,
			StatusAccepted: StatusConfirmed,
		},
	},
	ActionStartTrip: {
		roles: roles(types.RoleOperator),
		edges: map[Status]Status{StatusAccepted: StatusOnTrip},
	},
	ActionComplete: {
		roles: roles(types.RoleOperator, types.RoleDriver),
		edges: map[Status]Status{StatusOnTrip: StatusCompleted},
	},
	ActionCancel: {
		roles:          roles(types.RoleCustomer, types.RoleOperator),
		anyNonTerminal: true,
		next:           StatusCancelled,
	},
	ActionReject: {
		roles:          roles(types.RoleOperator),
		anyNonTerminal: true,
		next:           StatusRejected,
	},
}

// Validate is the single authorization and transition source. It answers
// whether role may perform action from current, and what the next status is.
// Ownership checks (customer owns booking, driver is the assigned driver) are
// the service's responsibility; they need the record, not just the status.
func Validate(current Status, action Action, role types.Role) (Status, error) {
	r, ok := rules[action]
	if !ok {
		return "", ErrInvalidTransition
	}
	if !r.roles[role] {
		return "", ErrUnauthorized
	}
	if r.anyNonTerminal {
		if current.Terminal() {
			return "", ErrInvalidTransition
		}
		return r.next, nil
	}
	next, ok := r.edges[current]
	if !ok {
		return "", ErrInvalidTransition
	}
	return next, nil
}
