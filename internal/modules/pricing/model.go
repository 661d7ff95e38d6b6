// README: Rate definitions for the informational draft quote.
package pricing

import "time"

// ServiceRate is the base amount quoted for a service type. The quote is
// informational: the binding price comes out of the negotiation between
// operator and customer, never from this table.
type ServiceRate struct {
	ServiceType string
	BaseAmount  int64
	Currency    string
	UpdatedAt   time.Time
}
