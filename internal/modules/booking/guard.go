// README: Payment guard: derived on every read, never stored as a flag.
package booking

import "safar/internal/types"

// PaymentGuard answers "may this customer pay now, and for how much". It is
// the sole authorization source for the pay action; Pay re-derives it at the
// moment of charge instead of trusting anything client-cached.
type PaymentGuard struct {
	CanPay        bool         `json:"can_pay"`
	ApprovedPrice *types.Money `json:"approved_price"`
}

func GuardFor(b *Booking) PaymentGuard {
	if !b.PriceConfirmed || b.AdminFinalPrice == nil {
		return PaymentGuard{}
	}
	switch b.Status {
	case StatusDraft, StatusUnderReview, StatusCancelled, StatusRejected:
		return PaymentGuard{}
	}
	price := *b.AdminFinalPrice
	return PaymentGuard{CanPay: true, ApprovedPrice: &price}
}
