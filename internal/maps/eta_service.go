// README: Google Maps travel-time estimates backing the ETA ranking policy.
package maps

import (
	"context"
	"fmt"
	"time"

	"googlemaps.github.io/maps"

	"safar/internal/types"
)

type ETAService struct {
	client *maps.Client
}

func NewETAService(apiKey string) (*ETAService, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("maps client: %w", err)
	}
	return &ETAService{client: client}, nil
}

// DrivingETAs returns driving durations from each origin to the destination.
// Results align with origins by index; unreachable origins report a negative
// duration.
func (s *ETAService) DrivingETAs(ctx context.Context, origins []types.Point, dest types.Point) ([]time.Duration, error) {
	if len(origins) == 0 {
		return nil, nil
	}
	originStrs := make([]string, len(origins))
	for i, p := range origins {
		originStrs[i] = fmt.Sprintf("%f,%f", p.Lat, p.Lng)
	}
	req := &maps.DistanceMatrixRequest{
		Origins:      originStrs,
		Destinations: []string{fmt.Sprintf("%f,%f", dest.Lat, dest.Lng)},
		Mode:         maps.TravelModeDriving,
	}
	resp, err := s.client.DistanceMatrix(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("distance matrix: %w", err)
	}
	out := make([]time.Duration, len(origins))
	for i, row := range resp.Rows {
		if i >= len(out) {
			break
		}
		if len(row.Elements) == 0 || row.Elements[0].Status != "OK" {
			out[i] = -1
			continue
		}
		out[i] = row.Elements[0].Duration
	}
	return out, nil
}
