// README: Shared handler utilities; maps domain errors to HTTP responses.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"safar/internal/modules/booking"
	"safar/internal/modules/dispatch"
	"safar/internal/modules/tracking"
)

type errorResponse struct {
	Error string `json:"error"`
	// CurrentStatus is set on state conflicts so clients can refresh
	// their view instead of guessing.
	CurrentStatus string `json:"current_status,omitempty"`
	Hint          string `json:"hint,omitempty"`
}

func writeError(c *gin.Context, status int, msg string) {
	c.JSON(status, errorResponse{Error: msg})
}

func writeDomainError(c *gin.Context, err error) {
	resp := errorResponse{Error: err.Error()}
	var se *booking.StateError
	if errors.As(err, &se) {
		resp.Error = se.Err.Error()
		resp.CurrentStatus = string(se.Current)
	}

	switch {
	case errors.Is(err, booking.ErrBadRequest), errors.Is(err, booking.ErrInvalidPrice):
		c.JSON(http.StatusBadRequest, resp)
	case errors.Is(err, booking.ErrUnauthorized):
		c.JSON(http.StatusForbidden, resp)
	case errors.Is(err, booking.ErrNotFound):
		c.JSON(http.StatusNotFound, resp)
	case errors.Is(err, booking.ErrStaleState):
		resp.Hint = "booking has changed, refresh and retry"
		c.JSON(http.StatusConflict, resp)
	case errors.Is(err, booking.ErrInvalidTransition),
		errors.Is(err, booking.ErrConflict),
		errors.Is(err, dispatch.ErrUnavailable),
		errors.Is(err, dispatch.ErrDriverInactive):
		c.JSON(http.StatusConflict, resp)
	case errors.Is(err, tracking.ErrRejectedLocation):
		c.JSON(http.StatusUnprocessableEntity, resp)
	default:
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
