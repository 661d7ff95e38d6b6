// README: In-memory booking store; mirrors PGStore semantics under one mutex.
package booking

import (
	"context"
	"sync"

	"safar/internal/types"
)

type MemStore struct {
	mu       sync.Mutex
	bookings map[types.ID]*Booking
	history  []StatusHistory
	nextHist int64
}

func NewMemStore() *MemStore {
	return &MemStore{bookings: make(map[types.ID]*Booking), nextHist: 1}
}

func cloneBooking(b *Booking) *Booking {
	cp := *b
	if b.MeetingPoint != nil {
		p := *b.MeetingPoint
		cp.MeetingPoint = &p
	}
	if b.AdminFinalPrice != nil {
		m := *b.AdminFinalPrice
		cp.AdminFinalPrice = &m
	}
	if b.CustomerProposedPrice != nil {
		m := *b.CustomerProposedPrice
		cp.CustomerProposedPrice = &m
	}
	if b.PriceNotes != nil {
		s := *b.PriceNotes
		cp.PriceNotes = &s
	}
	if b.PriceConfirmedAt != nil {
		t := *b.PriceConfirmedAt
		cp.PriceConfirmedAt = &t
	}
	if b.AssignedDriverID != nil {
		d := *b.AssignedDriverID
		cp.AssignedDriverID = &d
	}
	if b.DriverResponseAt != nil {
		t := *b.DriverResponseAt
		cp.DriverResponseAt = &t
	}
	if b.CancelReason != nil {
		s := *b.CancelReason
		cp.CancelReason = &s
	}
	return &cp
}

func (s *MemStore) UpsertDraft(_ context.Context, b *Booking) (*Booking, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.bookings {
		if existing.CustomerID == b.CustomerID && existing.Status == StatusDraft {
			existing.ServiceType = b.ServiceType
			existing.ServiceDetails = b.ServiceDetails
			existing.MeetingPoint = b.MeetingPoint
			existing.QuotedPrice = b.QuotedPrice
			existing.UpdatedAt = b.UpdatedAt
			return cloneBooking(existing), false, nil
		}
	}
	s.bookings[b.ID] = cloneBooking(b)
	return cloneBooking(b), true, nil
}

func (s *MemStore) Get(_ context.Context, id types.ID) (*Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneBooking(b), nil
}

func (s *MemStore) Transition(_ context.Context, b *Booking, expectStatus Status, expectVersion int, h *StatusHistory) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.bookings[b.ID]
	if !ok {
		return false, ErrNotFound
	}
	if cur.Status != expectStatus || cur.StatusVersion != expectVersion {
		return false, nil
	}
	nb := cloneBooking(b)
	nb.StatusVersion = expectVersion + 1
	s.bookings[b.ID] = nb
	s.appendHistoryLocked(h)
	return true, nil
}

func (s *MemStore) AppendHistory(_ context.Context, h *StatusHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendHistoryLocked(h)
	return nil
}

func (s *MemStore) appendHistoryLocked(h *StatusHistory) {
	row := *h
	row.ID = s.nextHist
	s.nextHist++
	s.history = append(s.history, row)
}

func (s *MemStore) History(_ context.Context, id types.ID) ([]StatusHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []StatusHistory
	for _, h := range s.history {
		if h.BookingID == id {
			out = append(out, h)
		}
	}
	return out, nil
}

func (s *MemStore) LastRejectedDriver(_ context.Context, id types.ID) (*types.ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.history) - 1; i >= 0; i-- {
		h := s.history[i]
		if h.BookingID == id && h.Action == ActionDriverReject {
			d := h.ActorID
			return &d, nil
		}
	}
	return nil, nil
}

func (s *MemStore) ActiveAssignmentCounts(_ context.Context) (map[types.ID]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[types.ID]int)
	for _, b := range s.bookings {
		if b.AssignedDriverID == nil {
			continue
		}
		switch b.Status {
		case StatusAssigned, StatusAccepted, StatusOnTrip:
			counts[*b.AssignedDriverID]++
		}
	}
	return counts, nil
}
