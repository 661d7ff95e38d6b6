// README: Driver roster and dispatch handlers: assignment, responses, visibility.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"safar/internal/http/middleware"
	"safar/internal/modules/booking"
	"safar/internal/modules/dispatch"
	"safar/internal/types"
)

type DispatchHandler struct {
	dispatch *dispatch.Service
}

func NewDispatchHandler(svc *dispatch.Service) *DispatchHandler {
	return &DispatchHandler{dispatch: svc}
}

type createDriverReq struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

func (h *DispatchHandler) CreateDriver(c *gin.Context) {
	var req createDriverReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	d, err := h.dispatch.CreateDriver(c.Request.Context(), dispatch.CreateDriverCommand{
		Name:  req.Name,
		Phone: req.Phone,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"driver_id": d.ID, "availability": d.Availability})
}

type availabilityReq struct {
	Availability string `json:"availability"`
}

func (h *DispatchHandler) SetAvailability(c *gin.Context) {
	actorID, role := middleware.Actor(c)
	driverID := types.ID(c.Param("id"))
	// Drivers flip their own switch; operators may flip anyone's.
	if role == types.RoleDriver && actorID != driverID {
		writeDomainError(c, booking.ErrUnauthorized)
		return
	}
	var req availabilityReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	err := h.dispatch.SetAvailability(c.Request.Context(), driverID, dispatch.Availability(req.Availability))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"driver_id": driverID, "availability": req.Availability})
}

type assignReq struct {
	DriverID     string `json:"driver_id"`
	ShareContact bool   `json:"share_contact"`
	Notes        string `json:"notes"`
}

func (h *DispatchHandler) Assign(c *gin.Context) {
	actorID, _ := middleware.Actor(c)
	var req assignReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.DriverID == "" {
		writeError(c, http.StatusBadRequest, "missing driver_id")
		return
	}
	err := h.dispatch.Assign(c.Request.Context(), dispatch.AssignCommand{
		BookingID:    types.ID(c.Param("id")),
		OperatorID:   actorID,
		DriverID:     types.ID(req.DriverID),
		ShareContact: req.ShareContact,
		Notes:        optString(req.Notes),
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": booking.StatusAssigned, "driver_id": req.DriverID})
}

type autoAssignReq struct {
	ShareContact bool `json:"share_contact"`
}

func (h *DispatchHandler) AutoAssign(c *gin.Context) {
	actorID, _ := middleware.Actor(c)
	var req autoAssignReq
	_ = c.ShouldBindJSON(&req)
	driverID, err := h.dispatch.AutoAssign(c.Request.Context(), dispatch.AutoAssignCommand{
		BookingID:    types.ID(c.Param("id")),
		OperatorID:   actorID,
		ShareContact: req.ShareContact,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": booking.StatusAssigned, "driver_id": driverID})
}

type respondReq struct {
	Accept bool   `json:"accept"`
	Notes  string `json:"notes"`
}

func (h *DispatchHandler) Respond(c *gin.Context) {
	actorID, _ := middleware.Actor(c)
	var req respondReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	err := h.dispatch.Respond(c.Request.Context(), booking.RespondCommand{
		BookingID: types.ID(c.Param("id")),
		DriverID:  actorID,
		Accept:    req.Accept,
		Notes:     optString(req.Notes),
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	status := booking.StatusAccepted
	if !req.Accept {
		status = booking.StatusConfirmed
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

// Driver returns the assigned driver's public profile for the booking's
// customer. 404 covers every hidden case so callers cannot probe state.
func (h *DispatchHandler) Driver(c *gin.Context) {
	actorID, _ := middleware.Actor(c)
	p, err := h.dispatch.DriverForCustomer(c.Request.Context(), types.ID(c.Param("id")), actorID)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}
