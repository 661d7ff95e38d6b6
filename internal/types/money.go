// README: Money value object; amounts are minor units in the booking's base currency.
package types

type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}
