// README: Booking store backed by PostgreSQL; transitions are conditional writes.
package booking

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"safar/internal/types"
)

type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

const bookingColumns = `
	id, customer_id, service_type, service_details, meeting_lat, meeting_lng,
	status, status_version, currency, quoted_amount, admin_final_amount,
	price_notes, proposed_amount, price_confirmed, price_confirmed_at,
	payment_status, assigned_driver_id, driver_response, driver_response_at,
	share_driver_contact, cancel_reason, created_at, updated_at`

func (s *PGStore) UpsertDraft(ctx context.Context, b *Booking) (*Booking, bool, error) {
	var meetLat, meetLng *float64
	if b.MeetingPoint != nil {
		meetLat, meetLng = &b.MeetingPoint.Lat, &b.MeetingPoint.Lng
	}
	// The partial unique index bookings_one_draft_per_customer turns a second
	// draft for the same customer into an update of the existing one.
	row := s.db.QueryRow(ctx, `
		INSERT INTO bookings (
			id, customer_id, service_type, service_details, meeting_lat, meeting_lng,
			status, status_version, currency, quoted_amount,
			payment_status, driver_response, share_driver_contact,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (customer_id) WHERE status = 'draft'
		DO UPDATE SET
			service_type = EXCLUDED.service_type,
			service_details = EXCLUDED.service_details,
			meeting_lat = EXCLUDED.meeting_lat,
			meeting_lng = EXCLUDED.meeting_lng,
			quoted_amount = EXCLUDED.quoted_amount,
			updated_at = EXCLUDED.updated_at
		RETURNING `+bookingColumns+`, (xmax = 0) AS inserted`,
		string(b.ID), string(b.CustomerID), b.ServiceType, b.ServiceDetails, meetLat, meetLng,
		string(b.Status), b.StatusVersion, b.QuotedPrice.Currency, b.QuotedPrice.Amount,
		string(b.PaymentStatus), string(b.DriverResponse), b.ShareDriverContact,
		b.CreatedAt, b.UpdatedAt,
	)
	out, created, err := scanBookingWithInserted(row)
	if err != nil {
		return nil, false, err
	}
	return out, created, nil
}

func (s *PGStore) Get(ctx context.Context, id types.ID) (*Booking, error) {
	row := s.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, string(id))
	b, err := scanBooking(row)
	if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return b, err
}

func (s *PGStore) Transition(ctx context.Context, b *Booking, expectStatus Status, expectVersion int, h *StatusHistory) (bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var meetLat, meetLng *float64
	if b.MeetingPoint != nil {
		meetLat, meetLng = &b.MeetingPoint.Lat, &b.MeetingPoint.Lng
	}
	tag, err := tx.Exec(ctx, `
		UPDATE bookings SET
			status = $1,
			status_version = status_version + 1,
			admin_final_amount = $2,
			price_notes = $3,
			proposed_amount = $4,
			price_confirmed = $5,
			price_confirmed_at = $6,
			payment_status = $7,
			assigned_driver_id = $8,
			driver_response = $9,
			driver_response_at = $10,
			share_driver_contact = $11,
			cancel_reason = $12,
			meeting_lat = $13,
			meeting_lng = $14,
			updated_at = $15
		WHERE id = $16 AND status = $17 AND status_version = $18`,
		string(b.Status),
		moneyAmount(b.AdminFinalPrice),
		b.PriceNotes,
		moneyAmount(b.CustomerProposedPrice),
		b.PriceConfirmed,
		b.PriceConfirmedAt,
		string(b.PaymentStatus),
		idPtr(b.AssignedDriverID),
		string(b.DriverResponse),
		b.DriverResponseAt,
		b.ShareDriverContact,
		b.CancelReason,
		meetLat, meetLng,
		b.UpdatedAt,
		string(b.ID), string(expectStatus), expectVersion,
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() != 1 {
		return false, nil
	}
	if err := appendHistoryTx(ctx, tx, h); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

func (s *PGStore) AppendHistory(ctx context.Context, h *StatusHistory) error {
	_, err := s.db.Exec(ctx, historyInsertSQL,
		string(h.BookingID), string(h.Action), string(h.OldStatus), string(h.NewStatus),
		string(h.ActorID), string(h.ActorRole), h.Notes, h.CreatedAt)
	return err
}

const historyInsertSQL = `
	INSERT INTO booking_status_history (
		booking_id, action, old_status, new_status, actor_id, actor_role, notes, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

func appendHistoryTx(ctx context.Context, tx pgx.Tx, h *StatusHistory) error {
	_, err := tx.Exec(ctx, historyInsertSQL,
		string(h.BookingID), string(h.Action), string(h.OldStatus), string(h.NewStatus),
		string(h.ActorID), string(h.ActorRole), h.Notes, h.CreatedAt)
	return err
}

func (s *PGStore) History(ctx context.Context, id types.ID) ([]StatusHistory, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, booking_id, action, old_status, new_status, actor_id, actor_role, notes, created_at
		FROM booking_status_history
		WHERE booking_id = $1
		ORDER BY id`, string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StatusHistory
	for rows.Next() {
		var h StatusHistory
		var notes sql.NullString
		if err := rows.Scan(&h.ID, &h.BookingID, &h.Action, &h.OldStatus, &h.NewStatus,
			&h.ActorID, &h.ActorRole, &notes, &h.CreatedAt); err != nil {
			return nil, err
		}
		if notes.Valid {
			h.Notes = &notes.String
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (s *PGStore) LastRejectedDriver(ctx context.Context, id types.ID) (*types.ID, error) {
	row := s.db.QueryRow(ctx, `
		SELECT actor_id FROM booking_status_history
		WHERE booking_id = $1 AND action = $2
		ORDER BY id DESC LIMIT 1`, string(id), string(ActionDriverReject))
	var actor string
	err := row.Scan(&actor)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	d := types.ID(actor)
	return &d, nil
}

func (s *PGStore) ActiveAssignmentCounts(ctx context.Context) (map[types.ID]int, error) {
	rows, err := s.db.Query(ctx, `
		SELECT assigned_driver_id, COUNT(*)
		FROM bookings
		WHERE assigned_driver_id IS NOT NULL
		  AND status IN ('assigned', 'accepted', 'on_trip')
		GROUP BY assigned_driver_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[types.ID]int)
	for rows.Next() {
		var driver string
		var n int
		if err := rows.Scan(&driver, &n); err != nil {
			return nil, err
		}
		counts[types.ID(driver)] = n
	}
	return counts, rows.Err()
}

// IsUniqueViolation reports whether err is a Postgres unique-constraint error.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

type scannable interface {
	Scan(dest ...any) error
}

func scanBooking(row scannable) (*Booking, error) {
	b, _, err := scanBookingFields(row, false)
	return b, err
}

func scanBookingWithInserted(row scannable) (*Booking, bool, error) {
	return scanBookingFields(row, true)
}

func scanBookingFields(row scannable, withInserted bool) (*Booking, bool, error) {
	var b Booking
	var meetLat, meetLng sql.NullFloat64
	var currency string
	var quoted int64
	var adminAmount, proposedAmount sql.NullInt64
	var priceNotes, assignedDriver, cancelReason sql.NullString
	var priceConfirmedAt, driverResponseAt sql.NullTime
	var inserted bool

	dest := []any{
		&b.ID, &b.CustomerID, &b.ServiceType, &b.ServiceDetails, &meetLat, &meetLng,
		&b.Status, &b.StatusVersion, &currency, &quoted, &adminAmount,
		&priceNotes, &proposedAmount, &b.PriceConfirmed, &priceConfirmedAt,
		&b.PaymentStatus, &assignedDriver, &b.DriverResponse, &driverResponseAt,
		&b.ShareDriverContact, &cancelReason, &b.CreatedAt, &b.UpdatedAt,
	}
	if withInserted {
		dest = append(dest, &inserted)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, false, err
	}

	if meetLat.Valid && meetLng.Valid {
		b.MeetingPoint = &types.Point{Lat: meetLat.Float64, Lng: meetLng.Float64}
	}
	b.QuotedPrice = types.Money{Amount: quoted, Currency: currency}
	if adminAmount.Valid {
		m := types.Money{Amount: adminAmount.Int64, Currency: currency}
		b.AdminFinalPrice = &m
	}
	if proposedAmount.Valid {
		m := types.Money{Amount: proposedAmount.Int64, Currency: currency}
		b.CustomerProposedPrice = &m
	}
	if priceNotes.Valid {
		b.PriceNotes = &priceNotes.String
	}
	if priceConfirmedAt.Valid {
		t := priceConfirmedAt.Time
		b.PriceConfirmedAt = &t
	}
	if assignedDriver.Valid {
		d := types.ID(assignedDriver.String)
		b.AssignedDriverID = &d
	}
	if driverResponseAt.Valid {
		t := driverResponseAt.Time
		b.DriverResponseAt = &t
	}
	if cancelReason.Valid {
		b.CancelReason = &cancelReason.String
	}
	return &b, inserted, nil
}

func moneyAmount(m *types.Money) *int64 {
	if m == nil {
		return nil
	}
	n := m.Amount
	return &n
}

func idPtr(id *types.ID) *string {
	if id == nil {
		return nil
	}
	s := string(*id)
	return &s
}
