// README: Pluggable ranking policies for auto-assignment.
package dispatch

import (
	"context"
	"sort"

	"safar/internal/modules/booking"
	"safar/internal/types"
)

// RankingPolicy orders candidate drivers for a booking, best first. Policies
// are swappable without touching the transition logic; callers may supply
// their own per request.
type RankingPolicy interface {
	Rank(ctx context.Context, candidates []Driver, b *booking.Booking) ([]Driver, error)
}

// AssignmentCounter reports per-driver active assignment counts. Satisfied by
// the booking service.
type AssignmentCounter interface {
	ActiveAssignmentCounts(ctx context.Context) (map[types.ID]int, error)
}

// LeastLoadedPolicy is the default: drivers with no current active assignment
// first, then fewer assignments, tie-broken by earliest created_at then id.
// Fully deterministic, so tests can predict the pick.
type LeastLoadedPolicy struct {
	Counts AssignmentCounter
}

func (p LeastLoadedPolicy) Rank(ctx context.Context, candidates []Driver, _ *booking.Booking) ([]Driver, error) {
	counts, err := p.Counts.ActiveAssignmentCounts(ctx)
	if err != nil {
		return nil, err
	}
	ranked := make([]Driver, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		ci, cj := counts[ranked[i].ID], counts[ranked[j].ID]
		if ci != cj {
			return ci < cj
		}
		if !ranked[i].CreatedAt.Equal(ranked[j].CreatedAt) {
			return ranked[i].CreatedAt.Before(ranked[j].CreatedAt)
		}
		return ranked[i].ID < ranked[j].ID
	})
	return ranked, nil
}

// GeoIndex answers nearest-driver queries. Satisfied by the tracking store's
// Redis GEO index.
type GeoIndex interface {
	Nearby(ctx context.Context, p types.Point, radiusKm float64, limit int) ([]types.ID, error)
}

// NearestPolicy orders candidates by distance from the booking's meeting
// point. Candidates without a live location keep their incoming order after
// the located ones; bookings without a meeting point are left unranked.
type NearestPolicy struct {
	Geo      GeoIndex
	RadiusKm float64
	Limit    int
}

func (p NearestPolicy) Rank(ctx context.Context, candidates []Driver, b *booking.Booking) ([]Driver, error) {
	if b.MeetingPoint == nil {
		return candidates, nil
	}
	near, err := p.Geo.Nearby(ctx, *b.MeetingPoint, p.RadiusKm, p.Limit)
	if err != nil {
		return nil, err
	}
	byID := make(map[types.ID]Driver, len(candidates))
	for _, d := range candidates {
		byID[d.ID] = d
	}
	ranked := make([]Driver, 0, len(candidates))
	seen := make(map[types.ID]bool, len(near))
	for _, id := range near {
		if d, ok := byID[id]; ok {
			ranked = append(ranked, d)
			seen[id] = true
		}
	}
	for _, d := range candidates {
		if !seen[d.ID] {
			ranked = append(ranked, d)
		}
	}
	return ranked, nil
}
