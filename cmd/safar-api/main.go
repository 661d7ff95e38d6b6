// README: Entry point; loads config, wires modules, starts HTTP server and background consumers.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"safar/internal/config"
	httptransport "safar/internal/http"
	"safar/internal/infra"
	"safar/internal/maps"
	"safar/internal/modules/booking"
	"safar/internal/modules/dispatch"
	"safar/internal/modules/pricing"
	"safar/internal/modules/tracking"
	"safar/internal/pubsub"
	"safar/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := infra.NewLogger(cfg.Log.Level)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		logger.Fatal("postgres init", zap.Error(err))
	}
	defer dbPool.Close()

	redisClient, err := infra.NewRedis(ctx, cfg.Redis.Addr)
	if err != nil {
		logger.Fatal("redis init", zap.Error(err))
	}
	defer func() { _ = redisClient.Close() }()

	broker := pubsub.NewRedisBroker(redisClient, logger)

	pricingSvc := pricing.NewService(pricing.NewPGStore(dbPool), cfg.Pricing.Currency)

	bookingStore := booking.NewPGStore(dbPool)
	bookingSvc := booking.NewService(bookingStore, broker, pricingSvc, logger)

	trackingStore := tracking.NewPGStore(dbPool, redisClient)
	trackingSvc := tracking.NewService(trackingStore, bookingStore, broker, logger)

	var policy dispatch.RankingPolicy
	switch cfg.Dispatch.Policy {
	case "nearest":
		policy = dispatch.NearestPolicy{
			Geo:      trackingStore,
			RadiusKm: cfg.Dispatch.SearchRadiusKm,
			Limit:    cfg.Dispatch.MaxCandidates,
		}
	case "eta":
		etaSvc, err := maps.NewETAService(cfg.Maps.APIKey)
		if err != nil {
			logger.Fatal("maps init", zap.Error(err))
		}
		policy = dispatch.ETAPolicy{ETAs: etaSvc, Positions: trackingStore}
	case "least_loaded":
		policy = dispatch.LeastLoadedPolicy{Counts: bookingSvc}
	default:
		logger.Fatal("unknown dispatch policy", zap.String("policy", cfg.Dispatch.Policy))
	}

	driverStore := dispatch.NewPGStore(dbPool)
	dispatchSvc := dispatch.NewService(driverStore, bookingSvc, policy, logger)

	hub := ws.NewHub(broker, logger)

	handler := httptransport.NewServer(httptransport.ServerDeps{
		Bookings: bookingSvc,
		Dispatch: dispatchSvc,
		Tracking: trackingSvc,
		Hub:      hub,
		Log:      logger,
	})

	go func() {
		if err := trackingSvc.RunTeardown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("tracking teardown consumer stopped", zap.Error(err))
		}
	}()

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler.Routes()}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("listening", zap.String("addr", cfg.HTTP.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("http server", zap.Error(err))
	}
}
