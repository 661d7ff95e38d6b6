// README: Booking lifecycle handlers: drafts, review, pricing, payment, trip progress.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"safar/internal/http/middleware"
	"safar/internal/modules/booking"
	"safar/internal/types"
)

type BookingHandler struct {
	bookings *booking.Service
}

func NewBookingHandler(svc *booking.Service) *BookingHandler {
	return &BookingHandler{bookings: svc}
}

type pointReq struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type moneyReq struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type createDraftReq struct {
	ServiceType    string    `json:"service_type"`
	ServiceDetails string    `json:"service_details"`
	MeetingPoint   *pointReq `json:"meeting_point"`
	Currency       string    `json:"currency"`
}

type moneyView struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type bookingView struct {
	ID             types.ID     `json:"id"`
	CustomerID     types.ID     `json:"customer_id"`
	ServiceType    string       `json:"service_type"`
	ServiceDetails string       `json:"service_details,omitempty"`
	MeetingPoint   *types.Point `json:"meeting_point,omitempty"`
	Status         string       `json:"status"`
	StatusVersion  int          `json:"status_version"`

	QuotedPrice      moneyView  `json:"quoted_price"`
	AdminFinalPrice  *moneyView `json:"admin_final_price,omitempty"`
	PriceNotes       *string    `json:"price_notes,omitempty"`
	ProposedPrice    *moneyView `json:"proposed_price,omitempty"`
	PriceConfirmed   bool       `json:"price_confirmed"`
	PriceConfirmedAt *time.Time `json:"price_confirmed_at,omitempty"`

	PaymentStatus string `json:"payment_status"`

	AssignedDriverID   *types.ID  `json:"assigned_driver_id,omitempty"`
	DriverResponse     string     `json:"driver_response"`
	DriverResponseAt   *time.Time `json:"driver_response_at,omitempty"`
	ShareDriverContact bool       `json:"share_driver_contact"`

	CancelReason *string   `json:"cancel_reason,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func viewMoney(m *types.Money) *moneyView {
	if m == nil {
		return nil
	}
	return &moneyView{Amount: m.Amount, Currency: m.Currency}
}

func viewBooking(b *booking.Booking) bookingView {
	return bookingView{
		ID:                 b.ID,
		CustomerID:         b.CustomerID,
		ServiceType:        b.ServiceType,
		ServiceDetails:     b.ServiceDetails,
		MeetingPoint:       b.MeetingPoint,
		Status:             string(b.Status),
		StatusVersion:      b.StatusVersion,
		QuotedPrice:        moneyView{Amount: b.QuotedPrice.Amount, Currency: b.QuotedPrice.Currency},
		AdminFinalPrice:    viewMoney(b.AdminFinalPrice),
		PriceNotes:         b.PriceNotes,
		ProposedPrice:      viewMoney(b.CustomerProposedPrice),
		PriceConfirmed:     b.PriceConfirmed,
		PriceConfirmedAt:   b.PriceConfirmedAt,
		PaymentStatus:      string(b.PaymentStatus),
		AssignedDriverID:   b.AssignedDriverID,
		DriverResponse:     string(b.DriverResponse),
		DriverResponseAt:   b.DriverResponseAt,
		ShareDriverContact: b.ShareDriverContact,
		CancelReason:       b.CancelReason,
		CreatedAt:          b.CreatedAt,
		UpdatedAt:          b.UpdatedAt,
	}
}

func (h *BookingHandler) CreateDraft(c *gin.Context) {
	actorID, role := middleware.Actor(c)
	if role != types.RoleCustomer {
		writeDomainError(c, booking.ErrUnauthorized)
		return
	}
	var req createDraftReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	cmd := booking.CreateDraftCommand{
		CustomerID:     actorID,
		ServiceType:    req.ServiceType,
		ServiceDetails: req.ServiceDetails,
		Currency:       req.Currency,
	}
	if req.MeetingPoint != nil {
		cmd.MeetingPoint = &types.Point{Lat: req.MeetingPoint.Lat, Lng: req.MeetingPoint.Lng}
	}
	b, err := h.bookings.CreateDraft(c.Request.Context(), cmd)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, viewBooking(b))
}

func (h *BookingHandler) Get(c *gin.Context) {
	actorID, role := middleware.Actor(c)
	b, err := h.bookings.GetFor(c.Request.Context(), types.ID(c.Param("id")), actorID, role)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, viewBooking(b))
}

func (h *BookingHandler) History(c *gin.Context) {
	actorID, role := middleware.Actor(c)
	entries, err := h.bookings.History(c.Request.Context(), types.ID(c.Param("id")), actorID, role)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	type entryView struct {
		Action    string     `json:"action"`
		OldStatus string     `json:"old_status"`
		NewStatus string     `json:"new_status"`
		ActorRole types.Role `json:"actor_role"`
		Notes     *string    `json:"notes,omitempty"`
		At        time.Time  `json:"at"`
	}
	out := make([]entryView, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryView{
			Action:    string(e.Action),
			OldStatus: string(e.OldStatus),
			NewStatus: string(e.NewStatus),
			ActorRole: e.ActorRole,
			Notes:     e.Notes,
			At:        e.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"history": out})
}

func (h *BookingHandler) Submit(c *gin.Context) {
	actorID, _ := middleware.Actor(c)
	if err := h.bookings.SubmitForReview(c.Request.Context(), types.ID(c.Param("id")), actorID); err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": booking.StatusUnderReview})
}

type setPriceReq struct {
	Price moneyReq `json:"price"`
	Notes string   `json:"notes"`
}

func (h *BookingHandler) SetPrice(c *gin.Context) {
	actorID, _ := middleware.Actor(c)
	var req setPriceReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	err := h.bookings.SetPrice(c.Request.Context(), booking.SetPriceCommand{
		BookingID:  types.ID(c.Param("id")),
		OperatorID: actorID,
		Price:      types.Money{Amount: req.Price.Amount, Currency: req.Price.Currency},
		Notes:      optString(req.Notes),
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": booking.StatusAwaitingConfirmation})
}

func (h *BookingHandler) ConfirmPrice(c *gin.Context) {
	actorID, _ := middleware.Actor(c)
	if err := h.bookings.ConfirmPrice(c.Request.Context(), types.ID(c.Param("id")), actorID); err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": booking.StatusConfirmed})
}

type proposePriceReq struct {
	Amount moneyReq `json:"amount"`
}

func (h *BookingHandler) ProposePrice(c *gin.Context) {
	actorID, _ := middleware.Actor(c)
	var req proposePriceReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	err := h.bookings.ProposePrice(c.Request.Context(), booking.ProposePriceCommand{
		BookingID:  types.ID(c.Param("id")),
		CustomerID: actorID,
		Amount:     types.Money{Amount: req.Amount.Amount, Currency: req.Amount.Currency},
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": booking.StatusAwaitingConfirmation})
}

func (h *BookingHandler) AcceptProposal(c *gin.Context) {
	actorID, _ := middleware.Actor(c)
	if err := h.bookings.AcceptProposal(c.Request.Context(), types.ID(c.Param("id")), actorID); err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": booking.StatusAwaitingConfirmation})
}

func (h *BookingHandler) Guard(c *gin.Context) {
	actorID, role := middleware.Actor(c)
	g, err := h.bookings.Guard(c.Request.Context(), types.ID(c.Param("id")), actorID, role)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"can_pay":        g.CanPay,
		"approved_price": viewMoney(g.ApprovedPrice),
	})
}

func (h *BookingHandler) Pay(c *gin.Context) {
	actorID, _ := middleware.Actor(c)
	amount, err := h.bookings.Pay(c.Request.Context(), types.ID(c.Param("id")), actorID)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"payment_status": booking.PaymentPaid,
		"charged":        moneyView{Amount: amount.Amount, Currency: amount.Currency},
	})
}

func (h *BookingHandler) StartTrip(c *gin.Context) {
	actorID, _ := middleware.Actor(c)
	if err := h.bookings.StartTrip(c.Request.Context(), types.ID(c.Param("id")), actorID); err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": booking.StatusOnTrip})
}

func (h *BookingHandler) Complete(c *gin.Context) {
	actorID, role := middleware.Actor(c)
	if err := h.bookings.Complete(c.Request.Context(), types.ID(c.Param("id")), actorID, role); err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": booking.StatusCompleted})
}

type cancelReq struct {
	Reason string `json:"reason"`
}

func (h *BookingHandler) Cancel(c *gin.Context) {
	actorID, role := middleware.Actor(c)
	var req cancelReq
	_ = c.ShouldBindJSON(&req)
	err := h.bookings.Cancel(c.Request.Context(), booking.CancelCommand{
		BookingID: types.ID(c.Param("id")),
		ActorID:   actorID,
		ActorRole: role,
		Reason:    optString(req.Reason),
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": booking.StatusCancelled})
}

type rejectReq struct {
	Notes string `json:"notes"`
}

func (h *BookingHandler) Reject(c *gin.Context) {
	actorID, _ := middleware.Actor(c)
	var req rejectReq
	_ = c.ShouldBindJSON(&req)
	if err := h.bookings.Reject(c.Request.Context(), types.ID(c.Param("id")), actorID, optString(req.Notes)); err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": booking.StatusRejected})
}
