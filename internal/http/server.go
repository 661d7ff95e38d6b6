// README: API surface; builds the gin engine and registers all routes.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"safar/internal/http/handlers"
	"safar/internal/http/middleware"
	"safar/internal/modules/booking"
	"safar/internal/modules/dispatch"
	"safar/internal/modules/tracking"
	"safar/internal/pubsub"
	"safar/internal/types"
	"safar/internal/ws"
)

type ServerDeps struct {
	Bookings *booking.Service
	Dispatch *dispatch.Service
	Tracking *tracking.Service
	Hub      *ws.Hub
	Log      *zap.Logger
}

type Server struct {
	bookings *booking.Service
	dispatch *dispatch.Service
	tracking *tracking.Service
	hub      *ws.Hub
	log      *zap.Logger
}

func NewServer(deps ServerDeps) *Server {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		bookings: deps.Bookings,
		dispatch: deps.Dispatch,
		tracking: deps.Tracking,
		hub:      deps.Hub,
		log:      log,
	}
}

func (s *Server) Routes() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(middleware.Recovery(s.log), middleware.Logging(s.log))

	r.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "OK") })

	api := r.Group("/api", middleware.Identity())

	bh := handlers.NewBookingHandler(s.bookings)
	bookings := api.Group("/bookings")
	bookings.POST("", bh.CreateDraft)
	bookings.GET("/:id", bh.Get)
	bookings.GET("/:id/history", bh.History)
	bookings.POST("/:id/submit", bh.Submit)
	bookings.POST("/:id/confirm-price", bh.ConfirmPrice)
	bookings.POST("/:id/propose-price", bh.ProposePrice)
	bookings.GET("/:id/payment-guard", bh.Guard)
	bookings.POST("/:id/pay", bh.Pay)
	bookings.POST("/:id/cancel", bh.Cancel)
	bookings.POST("/:id/complete", bh.Complete)

	operator := middleware.RequireRole(types.RoleOperator)
	bookings.POST("/:id/price", operator, bh.SetPrice)
	bookings.POST("/:id/accept-proposal", operator, bh.AcceptProposal)
	bookings.POST("/:id/start", operator, bh.StartTrip)
	bookings.POST("/:id/reject", operator, bh.Reject)

	dh := handlers.NewDispatchHandler(s.dispatch)
	api.POST("/drivers", operator, dh.CreateDriver)
	api.POST("/drivers/:id/availability", dh.SetAvailability)
	bookings.POST("/:id/assign", operator, dh.Assign)
	bookings.POST("/:id/auto-assign", operator, dh.AutoAssign)
	bookings.POST("/:id/respond", middleware.RequireRole(types.RoleDriver), dh.Respond)
	bookings.GET("/:id/driver", middleware.RequireRole(types.RoleCustomer), dh.Driver)

	th := handlers.NewTrackingHandler(s.tracking)
	api.POST("/locations", middleware.RequireRole(types.RoleDriver), th.Ingest)
	api.POST("/drivers/:id/offline", th.Offline)

	wsGroup := r.Group("/ws", middleware.Identity())
	wsGroup.GET("/bookings/:id", s.serveBookingSocket)
	wsGroup.GET("/drivers", middleware.RequireRole(types.RoleOperator), s.serveDriversSocket)

	return r
}

// serveBookingSocket upgrades the connection after the same visibility check
// the REST read path applies.
func (s *Server) serveBookingSocket(c *gin.Context) {
	actorID, role := middleware.Actor(c)
	id := types.ID(c.Param("id"))
	if _, err := s.bookings.GetFor(c.Request.Context(), id, actorID, role); err != nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	if err := s.hub.Serve(c.Writer, c.Request, pubsub.BookingTopic(id)); err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
	}
}

func (s *Server) serveDriversSocket(c *gin.Context) {
	if err := s.hub.Serve(c.Writer, c.Request, pubsub.TopicDriversAll); err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
	}
}
