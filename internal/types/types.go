// README: Shared identifier, role, and geo value types used across modules.
package types

// ID is an opaque entity identifier.
type ID string

// Role is the already-authenticated actor role attached to every request.
// The core never authenticates; it only consumes id + role handed in by the
// gateway.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleOperator Role = "operator"
	RoleDriver   Role = "driver"
)

func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleOperator, RoleDriver:
		return true
	}
	return false
}

// Point is a WGS84 coordinate pair.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}
