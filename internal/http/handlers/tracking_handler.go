// README: Live location handlers: driver position ingest and offline signal.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"safar/internal/http/middleware"
	"safar/internal/modules/tracking"
	"safar/internal/types"
)

type TrackingHandler struct {
	tracking *tracking.Service
}

func NewTrackingHandler(svc *tracking.Service) *TrackingHandler {
	return &TrackingHandler{tracking: svc}
}

type ingestReq struct {
	BookingID string   `json:"booking_id"`
	Lat       float64  `json:"lat"`
	Lng       float64  `json:"lng"`
	Heading   *float64 `json:"heading"`
	Speed     *float64 `json:"speed"`
	Accuracy  *float64 `json:"accuracy"`
}

func (h *TrackingHandler) Ingest(c *gin.Context) {
	actorID, _ := middleware.Actor(c)
	var req ingestReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.BookingID == "" {
		writeError(c, http.StatusBadRequest, "missing booking_id")
		return
	}
	err := h.tracking.Ingest(c.Request.Context(), tracking.IngestCommand{
		CallerID:  actorID,
		DriverID:  actorID,
		BookingID: types.ID(req.BookingID),
		Position:  types.Point{Lat: req.Lat, Lng: req.Lng},
		Heading:   req.Heading,
		Speed:     req.Speed,
		Accuracy:  req.Accuracy,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"accepted": true})
}

func (h *TrackingHandler) Offline(c *gin.Context) {
	actorID, role := middleware.Actor(c)
	err := h.tracking.DriverOffline(c.Request.Context(), types.ID(c.Param("id")), actorID, role)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"driver_id": c.Param("id"), "online": false})
}
