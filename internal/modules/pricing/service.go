// README: Pricing service computes the informational quote for new drafts.
package pricing

import (
	"context"
	"errors"

	"safar/internal/types"
)

type Service struct {
	store Store
	// defaultCurrency backs quotes for service types without a rate row.
	defaultCurrency string
}

func NewService(store Store, defaultCurrency string) *Service {
	return &Service{store: store, defaultCurrency: defaultCurrency}
}

func (s *Service) Quote(ctx context.Context, serviceType string) (types.Money, error) {
	r, err := s.store.GetRate(ctx, serviceType)
	if errors.Is(err, ErrRateNotFound) {
		return types.Money{Amount: 0, Currency: s.defaultCurrency}, nil
	}
	if err != nil {
		return types.Money{}, err
	}
	return types.Money{Amount: r.BaseAmount, Currency: r.Currency}, nil
}
