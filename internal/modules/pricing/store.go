// README: Rate store contract plus PostgreSQL and in-memory implementations.
package pricing

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrRateNotFound = errors.New("rate not found")

type Store interface {
	GetRate(ctx context.Context, serviceType string) (ServiceRate, error)
}

type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) GetRate(ctx context.Context, serviceType string) (ServiceRate, error) {
	row := s.db.QueryRow(ctx, `
		SELECT service_type, base_amount, currency, updated_at
		FROM service_rates WHERE service_type = $1`, serviceType)
	var r ServiceRate
	err := row.Scan(&r.ServiceType, &r.BaseAmount, &r.Currency, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ServiceRate{}, ErrRateNotFound
	}
	return r, err
}

type MemStore struct {
	rates map[string]ServiceRate
}

func NewMemStore(rates ...ServiceRate) *MemStore {
	m := make(map[string]ServiceRate, len(rates))
	for _, r := range rates {
		m[r.ServiceType] = r
	}
	return &MemStore{rates: m}
}

func (s *MemStore) GetRate(_ context.Context, serviceType string) (ServiceRate, error) {
	r, ok := s.rates[serviceType]
	if !ok {
		return ServiceRate{}, ErrRateNotFound
	}
	return r, nil
}
