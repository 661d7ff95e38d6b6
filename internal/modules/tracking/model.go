// README: Live driver location rows; at most one per driver, never historical.
package tracking

import (
	"time"

	"safar/internal/types"
)

// DriverLocation is the single live row per driver. It is upserted on every
// accepted ingest and deleted outright on teardown, never marked stale.
// History, if anyone needs it, is an external collaborator's concern.
type DriverLocation struct {
	DriverID  types.ID    `json:"driver_id"`
	BookingID *types.ID   `json:"booking_id,omitempty"`
	Position  types.Point `json:"position"`
	Heading   *float64    `json:"heading,omitempty"`
	Speed     *float64    `json:"speed,omitempty"`
	Accuracy  *float64    `json:"accuracy,omitempty"`
	UpdatedAt time.Time   `json:"updated_at"`
}
