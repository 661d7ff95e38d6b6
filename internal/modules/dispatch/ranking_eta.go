// README: ETA ranking policy: order candidates by driving time to the meeting point.
package dispatch

import (
	"context"
	"sort"
	"time"

	"safar/internal/modules/booking"
	"safar/internal/types"
)

// ETASource estimates driving durations. Satisfied by maps.ETAService.
type ETASource interface {
	DrivingETAs(ctx context.Context, origins []types.Point, dest types.Point) ([]time.Duration, error)
}

// PositionSource resolves current driver positions. Satisfied by the tracking
// store.
type PositionSource interface {
	Positions(ctx context.Context, ids []types.ID) (map[types.ID]types.Point, error)
}

// ETAPolicy ranks by estimated driving time from each driver's live position
// to the booking's meeting point. Drivers without a position or a reachable
// route keep their incoming order after the ranked ones.
type ETAPolicy struct {
	ETAs      ETASource
	Positions PositionSource
}

func (p ETAPolicy) Rank(ctx context.Context, candidates []Driver, b *booking.Booking) ([]Driver, error) {
	if b.MeetingPoint == nil || len(candidates) == 0 {
		return candidates, nil
	}
	ids := make([]types.ID, len(candidates))
	for i, d := range candidates {
		ids[i] = d.ID
	}
	positions, err := p.Positions.Positions(ctx, ids)
	if err != nil {
		return nil, err
	}

	var located []Driver
	var origins []types.Point
	var rest []Driver
	for _, d := range candidates {
		if pos, ok := positions[d.ID]; ok {
			located = append(located, d)
			origins = append(origins, pos)
		} else {
			rest = append(rest, d)
		}
	}
	if len(located) == 0 {
		return candidates, nil
	}

	etas, err := p.ETAs.DrivingETAs(ctx, origins, *b.MeetingPoint)
	if err != nil {
		return nil, err
	}

	type scored struct {
		d   Driver
		eta time.Duration
	}
	ranked := make([]scored, 0, len(located))
	for i, d := range located {
		if etas[i] < 0 {
			rest = append(rest, d)
			continue
		}
		ranked = append(ranked, scored{d: d, eta: etas[i]})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].eta < ranked[j].eta })

	out := make([]Driver, 0, len(candidates))
	for _, s := range ranked {
		out = append(out, s.d)
	}
	return append(out, rest...), nil
}
