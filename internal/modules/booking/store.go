// README: Store contract for booking records, history, and dispatch lookups.
package booking

import (
	"context"

	"safar/internal/types"
)

// Store is the persistence contract. PGStore backs production; MemStore backs
// tests and keeps every scenario runnable without external services.
type Store interface {
	// UpsertDraft enforces at-most-one-draft-per-customer: an existing draft
	// is updated in place and returned, never duplicated. created reports
	// whether a new row was inserted.
	UpsertDraft(ctx context.Context, b *Booking) (out *Booking, created bool, err error)

	Get(ctx context.Context, id types.ID) (*Booking, error)

	// Transition applies b as the booking's new state if and only if the row
	// still carries (expectStatus, expectVersion), and appends the history row
	// in the same transaction. Returns false when the compare-and-swap misses.
	Transition(ctx context.Context, b *Booking, expectStatus Status, expectVersion int, h *StatusHistory) (bool, error)

	// AppendHistory records an audit row outside a status change (draft
	// creation). Best-effort from the caller's perspective.
	AppendHistory(ctx context.Context, h *StatusHistory) error

	History(ctx context.Context, id types.ID) ([]StatusHistory, error)

	// LastRejectedDriver reads the audit trail for the driver who most
	// recently rejected this booking, so auto-assignment can exclude them.
	LastRejectedDriver(ctx context.Context, id types.ID) (*types.ID, error)

	// ActiveAssignmentCounts reports, per driver, how many bookings currently
	// hold an active assignment. Feeds the least-loaded ranking policy.
	ActiveAssignmentCounts(ctx context.Context) (map[types.ID]int, error)
}
