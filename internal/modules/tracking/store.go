// README: Location store contract and the in-memory implementation.
package tracking

import (
	"context"
	"errors"
	"sort"
	"sync"

	"safar/internal/types"
)

type Store interface {
	// Upsert applies the row last-write-wins per driver: an update older than
	// the stored one is discarded and applied reports false. No ordering
	// guarantee is assumed from the transport.
	Upsert(ctx context.Context, loc *DriverLocation) (applied bool, err error)
	Get(ctx context.Context, driverID types.ID) (*DriverLocation, error)
	Delete(ctx context.Context, driverID types.ID) error
	DeleteByBooking(ctx context.Context, bookingID types.ID) error
	// Nearby returns driver ids ordered by distance from p. Feeds the
	// nearest ranking policy.
	Nearby(ctx context.Context, p types.Point, radiusKm float64, limit int) ([]types.ID, error)
	// Positions resolves current coordinates for the given drivers; drivers
	// without a live row are absent from the result.
	Positions(ctx context.Context, ids []types.ID) (map[types.ID]types.Point, error)
}

// ErrNoLocation is returned by Get when the driver has no live row.
var ErrNoLocation = errors.New("no live location")

type MemStore struct {
	mu   sync.Mutex
	rows map[types.ID]*DriverLocation
}

func NewMemStore() *MemStore {
	return &MemStore{rows: make(map[types.ID]*DriverLocation)}
}

func (s *MemStore) Upsert(_ context.Context, loc *DriverLocation) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.rows[loc.DriverID]; ok && cur.UpdatedAt.After(loc.UpdatedAt) {
		return false, nil
	}
	cp := *loc
	s.rows[loc.DriverID] = &cp
	return true, nil
}

func (s *MemStore) Get(_ context.Context, driverID types.ID) (*DriverLocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	loc, ok := s.rows[driverID]
	if !ok {
		return nil, ErrNoLocation
	}
	cp := *loc
	return &cp, nil
}

func (s *MemStore) Delete(_ context.Context, driverID types.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, driverID)
	return nil
}

func (s *MemStore) DeleteByBooking(_ context.Context, bookingID types.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, loc := range s.rows {
		if loc.BookingID != nil && *loc.BookingID == bookingID {
			delete(s.rows, id)
		}
	}
	return nil
}

func (s *MemStore) Nearby(_ context.Context, p types.Point, radiusKm float64, limit int) ([]types.ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	type entry struct {
		id   types.ID
		dist float64
	}
	var entries []entry
	for id, loc := range s.rows {
		if d := distanceKm(p, loc.Position); d <= radiusKm {
			entries = append(entries, entry{id: id, dist: d})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].dist != entries[j].dist {
			return entries[i].dist < entries[j].dist
		}
		return entries[i].id < entries[j].id
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	ids := make([]types.ID, len(entries))
	for i, e := range entries {
		ids[i] = e.id
	}
	return ids, nil
}

func (s *MemStore) Positions(_ context.Context, ids []types.ID) (map[types.ID]types.Point, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[types.ID]types.Point)
	for _, id := range ids {
		if loc, ok := s.rows[id]; ok {
			out[id] = loc.Position
		}
	}
	return out, nil
}
