// README: Quote fallback tests.
package pricing

import (
	"context"
	"testing"
	"time"
)

func TestQuoteUsesRateWhenPresent(t *testing.T) {
	svc := NewService(NewMemStore(ServiceRate{
		ServiceType: "airport_transfer",
		BaseAmount:  15000,
		Currency:    "USD",
		UpdatedAt:   time.Now().UTC(),
	}), "USD")

	m, err := svc.Quote(context.Background(), "airport_transfer")
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if m.Amount != 15000 || m.Currency != "USD" {
		t.Fatalf("quote = %+v, want 15000 USD", m)
	}
}

func TestQuoteFallsBackToZero(t *testing.T) {
	svc := NewService(NewMemStore(), "UZS")

	m, err := svc.Quote(context.Background(), "heli_tour")
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if m.Amount != 0 || m.Currency != "UZS" {
		t.Fatalf("quote = %+v, want zero in the default currency", m)
	}
}
