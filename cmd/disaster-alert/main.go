package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/joho/godotenv"

	"github.com/mr1hm/disasterwatch/internal/alerts"
	"github.com/mr1hm/disasterwatch/internal/api"
	"github.com/mr1hm/disasterwatch/internal/config"
	"github.com/mr1hm/disasterwatch/internal/feeds"
	internalgrpc "github.com/mr1hm/disasterwatch/internal/grpc"
	"github.com/mr1hm/disasterwatch/internal/logging"
	"github.com/mr1hm/disasterwatch/internal/notify"
	"github.com/mr1hm/disasterwatch/internal/observability"
	"github.com/mr1hm/disasterwatch/internal/repository"
	"github.com/mr1hm/disasterwatch/internal/stream"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Fatal while loading config: %v", err)
	}
	logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	logger.Info("Server starting", "host", cfg.Server.Host, "port", cfg.Server.Port, "db_driver", cfg.DB.Driver)
	if cfg.Auth.JWTSecret == "" {
		logger.Warn("AUTH_JWT_SECRET is not set; authenticated routes will reject every request")
	}

	clock := clockwork.NewRealClock()

	store, err := repository.Open(cfg.DB, clock)
	if err != nil {
		logging.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	metrics := observability.NewMetrics()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mailer := notify.NewEmailSenderFromConfig(cfg.Notify, logger, metrics)
	texter := notify.NewSMSSenderFromConfig(cfg.Notify, logger, metrics)
	if mailer.Provider() == nil {
		logger.Warn("no email provider configured; email alerts will be skipped")
	}
	if texter.Provider() == nil {
		logger.Warn("no SMS provider configured; SMS alerts will be skipped")
	}

	dispatcher := alerts.NewDispatcher(
		alerts.NewMatcher(store, logger),
		mailer,
		texter,
		logger,
		metrics,
		alerts.Options{Workers: cfg.Worker.Count, BufferSize: cfg.Worker.BufferSize},
	)
	dispatcher.Start(ctx)

	broadcaster := stream.NewBroadcaster()
	observability.RegisterStream(broadcaster)

	grpcServer := internalgrpc.NewServer(logger)
	go func() {
		grpcAddr := fmt.Sprintf(":%d", cfg.GRPC.Port)
		if err := grpcServer.Start(grpcAddr); err != nil {
			logging.Fatalf("gRPC server error: %v", err)
		}
	}()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false, // must stay false with wildcard origins
	}))
	router.Use(api.RateLimitMiddleware(cfg.Server.RateLimitRPS))

	handler := api.NewHandler(api.Deps{
		Disasters:     store,
		Subscriptions: store,
		Broadcaster:   broadcaster,
		Notifier:      dispatcher,
		Earthquakes:   feeds.NewUSGSClient(cfg.Feeds.USGSURL, cfg.Feeds.Timeout, clock),
		Ambee:         feeds.NewAmbeeClient(cfg.Feeds.AmbeeURL, cfg.Feeds.AmbeeAPIKey, cfg.Feeds.Timeout),
		JWTSecret:     cfg.Auth.JWTSecret,
		Logger:        logger,
		Clock:         clock,
	})
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatalf("server error: %v", err)
		}
	}()
	grpcServer.SetServing(true)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down...")
	grpcServer.SetServing(false)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// Close streams first so open SSE handlers return and Shutdown can drain.
	broadcaster.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	// Requests are drained, so nothing else can Notify; let queued cycles finish.
	dispatcher.Stop()
	cancel()
	grpcServer.Stop()

	logger.Info("shutdown complete")
}
