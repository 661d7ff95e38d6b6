// README: Location store backed by PostgreSQL rows and a Redis GEO index.
package tracking

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"safar/internal/types"
)

const geoKey = "tracking:drivers"

type PGStore struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func NewPGStore(db *pgxpool.Pool, redis *redis.Client) *PGStore {
	return &PGStore{db: db, redis: redis}
}

func (s *PGStore) Upsert(ctx context.Context, loc *DriverLocation) (bool, error) {
	// The updated_at predicate makes the upsert last-write-wins: out-of-order
	// deliveries older than the stored row are no-ops.
	tag, err := s.db.Exec(ctx, `
		INSERT INTO driver_locations (
			driver_id, booking_id, latitude, longitude, heading, speed, accuracy, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (driver_id) DO UPDATE SET
			booking_id = EXCLUDED.booking_id,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			heading = EXCLUDED.heading,
			speed = EXCLUDED.speed,
			accuracy = EXCLUDED.accuracy,
			updated_at = EXCLUDED.updated_at
		WHERE driver_locations.updated_at <= EXCLUDED.updated_at`,
		string(loc.DriverID), idPtr(loc.BookingID), loc.Position.Lat, loc.Position.Lng,
		loc.Heading, loc.Speed, loc.Accuracy, loc.UpdatedAt)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() != 1 {
		return false, nil
	}
	err = s.redis.GeoAdd(ctx, geoKey, &redis.GeoLocation{
		Name:      string(loc.DriverID),
		Longitude: loc.Position.Lng,
		Latitude:  loc.Position.Lat,
	}).Err()
	return true, err
}

func (s *PGStore) Get(ctx context.Context, driverID types.ID) (*DriverLocation, error) {
	row := s.db.QueryRow(ctx, `
		SELECT driver_id, booking_id, latitude, longitude, heading, speed, accuracy, updated_at
		FROM driver_locations WHERE driver_id = $1`, string(driverID))
	loc, err := scanLocation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoLocation
	}
	return loc, err
}

func (s *PGStore) Delete(ctx context.Context, driverID types.ID) error {
	if _, err := s.db.Exec(ctx,
		`DELETE FROM driver_locations WHERE driver_id = $1`, string(driverID)); err != nil {
		return err
	}
	return s.redis.ZRem(ctx, geoKey, string(driverID)).Err()
}

func (s *PGStore) DeleteByBooking(ctx context.Context, bookingID types.ID) error {
	rows, err := s.db.Query(ctx, `
		DELETE FROM driver_locations WHERE booking_id = $1 RETURNING driver_id`, string(bookingID))
	if err != nil {
		return err
	}
	defer rows.Close()
	var drivers []interface{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return err
		}
		drivers = append(drivers, id)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(drivers) == 0 {
		return nil
	}
	return s.redis.ZRem(ctx, geoKey, drivers...).Err()
}

func (s *PGStore) Nearby(ctx context.Context, p types.Point, radiusKm float64, limit int) ([]types.ID, error) {
	q := &redis.GeoSearchQuery{
		Longitude:  p.Lng,
		Latitude:   p.Lat,
		Radius:     radiusKm,
		RadiusUnit: "km",
		Sort:       "ASC",
	}
	if limit > 0 {
		q.Count = limit
	}
	results, err := s.redis.GeoSearch(ctx, geoKey, q).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]types.ID, len(results))
	for i, r := range results {
		ids[i] = types.ID(r)
	}
	return ids, nil
}

func (s *PGStore) Positions(ctx context.Context, ids []types.ID) (map[types.ID]types.Point, error) {
	if len(ids) == 0 {
		return map[types.ID]types.Point{}, nil
	}
	members := make([]string, len(ids))
	for i, id := range ids {
		members[i] = string(id)
	}
	positions, err := s.redis.GeoPos(ctx, geoKey, members...).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[types.ID]types.Point, len(ids))
	for i, pos := range positions {
		if pos == nil {
			continue
		}
		out[ids[i]] = types.Point{Lat: pos.Latitude, Lng: pos.Longitude}
	}
	return out, nil
}

func scanLocation(row interface{ Scan(...any) error }) (*DriverLocation, error) {
	var loc DriverLocation
	var bookingID sql.NullString
	var heading, speed, accuracy sql.NullFloat64
	err := row.Scan(&loc.DriverID, &bookingID, &loc.Position.Lat, &loc.Position.Lng,
		&heading, &speed, &accuracy, &loc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if bookingID.Valid {
		id := types.ID(bookingID.String)
		loc.BookingID = &id
	}
	if heading.Valid {
		loc.Heading = &heading.Float64
	}
	if speed.Valid {
		loc.Speed = &speed.Float64
	}
	if accuracy.Valid {
		loc.Accuracy = &accuracy.Float64
	}
	return &loc, nil
}

func idPtr(id *types.ID) *string {
	if id == nil {
		return nil
	}
	s := string(*id)
	return &s
}
