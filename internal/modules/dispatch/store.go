// README: Driver store contract plus PostgreSQL and in-memory implementations.
package dispatch

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"safar/internal/modules/booking"
	"safar/internal/types"
)

type DriverStore interface {
	// Create inserts a driver; a duplicate phone number is a conflict.
	Create(ctx context.Context, d *Driver) error
	Get(ctx context.Context, id types.ID) (*Driver, error)
	// ListActive returns active drivers ordered by created_at then id, so
	// ranking tie-breaks are reproducible.
	ListActive(ctx context.Context) ([]Driver, error)
	SetAvailability(ctx context.Context, id types.ID, a Availability) error
}

type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Create(ctx context.Context, d *Driver) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO drivers (id, name, phone, availability, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		string(d.ID), d.Name, d.Phone, string(d.Availability), d.CreatedAt)
	if booking.IsUniqueViolation(err) {
		return booking.ErrConflict
	}
	return err
}

func (s *PGStore) Get(ctx context.Context, id types.ID) (*Driver, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, name, phone, availability, created_at
		FROM drivers WHERE id = $1`, string(id))
	var d Driver
	err := row.Scan(&d.ID, &d.Name, &d.Phone, &d.Availability, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
		return nil, booking.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *PGStore) ListActive(ctx context.Context) ([]Driver, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, phone, availability, created_at
		FROM drivers WHERE availability = 'active'
		ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Driver
	for rows.Next() {
		var d Driver
		if err := rows.Scan(&d.ID, &d.Name, &d.Phone, &d.Availability, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *PGStore) SetAvailability(ctx context.Context, id types.ID, a Availability) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE drivers SET availability = $1 WHERE id = $2`, string(a), string(id))
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return booking.ErrNotFound
	}
	return nil
}

type MemStore struct {
	mu      sync.Mutex
	drivers map[types.ID]*Driver
	phones  map[string]bool
}

func NewMemStore() *MemStore {
	return &MemStore{drivers: make(map[types.ID]*Driver), phones: make(map[string]bool)}
}

func (s *MemStore) Create(_ context.Context, d *Driver) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phones[d.Phone] {
		return booking.ErrConflict
	}
	cp := *d
	s.drivers[d.ID] = &cp
	s.phones[d.Phone] = true
	return nil
}

func (s *MemStore) Get(_ context.Context, id types.ID) (*Driver, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drivers[id]
	if !ok {
		return nil, booking.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (s *MemStore) ListActive(_ context.Context) ([]Driver, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Driver
	for _, d := range s.drivers {
		if d.Availability == AvailabilityActive {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemStore) SetAvailability(_ context.Context, id types.ID, a Availability) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drivers[id]
	if !ok {
		return booking.ErrNotFound
	}
	d.Availability = a
	return nil
}
