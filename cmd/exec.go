package cmd

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v5"
	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	pubnub "github.com/pubnub/go/v7"

	"seat-waitroom/config"
	"seat-waitroom/handlers"
	_ "seat-waitroom/migrations"
	"seat-waitroom/monitoring"
	"seat-waitroom/security"
	"seat-waitroom/services"
	"seat-waitroom/utils"
)

func Start() error {
	app := pocketbase.New()

	// Load configuration
	cfg := config.LoadConfig()

	// Initialize Redis
	redisClient := utils.NewRedisClient(cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB)
	defer redisClient.Close()

	// Initialize the event publisher. Without PubNub keys events are
	// dropped and clients rely on status polling alone.
	var publisher services.Publisher = services.NopPublisher{}
	if cfg.PubNubPublishKey != "" && cfg.PubNubSubscribeKey != "" {
		pnConfig := pubnub.NewConfigWithUserId(pubnub.UserId("seat-waitroom-server"))
		pnConfig.PublishKey = cfg.PubNubPublishKey
		pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
		pnConfig.SecretKey = cfg.PubNubSecretKey
		publisher = services.NewPubNubPublisher(pubnub.NewPubNub(pnConfig))
	} else {
		log.Println("PubNub keys not configured, push notifications disabled")
	}

	// Initialize services
	store := services.NewRedisStore(redisClient)
	locker := services.NewStoreLocker(store)
	monitor := monitoring.NewMonitor()
	queueService := services.NewQueueService(store, locker, publisher, cfg, monitor)

	// Initialize handlers
	queueHandler := handlers.NewQueueHandler(app, queueService)
	adminHandler := handlers.NewAdminHandler(app, queueService, cfg)
	rateLimiter := security.NewRateLimiter(redisClient)

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: cfg.Environment == "development",
	})

	// Create context for background tasks
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.EnableMetrics {
		go monitor.StartCollector(ctx, redisClient, cfg.PresenceStale)
		go startOpsServer(ctx, cfg)
	}

	// Setup graceful shutdown
	go handleShutdown(cancel)

	// Register routes
	app.OnServe().BindFunc(func(se *core.ServeEvent) error {
		// Waiting-room endpoints
		se.Router.POST("/api/waitroom/join", queueHandler.Join).
			BindFunc(rateLimiter.PerIPLimit("join", int64(cfg.JoinRateLimit)))
		se.Router.POST("/api/waitroom/heartbeat", queueHandler.Heartbeat)
		se.Router.GET("/api/waitroom/status", queueHandler.Status)
		se.Router.POST("/api/waitroom/leave", queueHandler.Leave)
		se.Router.POST("/api/waitroom/complete", queueHandler.Complete)

		// Admin endpoints
		se.Router.POST("/api/admin/waitroom/terminate", adminHandler.Terminate)
		se.Router.POST("/api/admin/waitroom/pause", adminHandler.Pause)
		se.Router.POST("/api/admin/waitroom/resume", adminHandler.Resume)
		se.Router.GET("/api/admin/waitroom/dashboard", adminHandler.Dashboard)

		// Health check
		se.Router.GET("/health", func(e *core.RequestEvent) error {
			if err := utils.RedisHealthCheck(redisClient); err != nil {
				return e.JSON(http.StatusServiceUnavailable, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
			}
			return e.JSON(http.StatusOK, map[string]string{"status": "healthy"})
		})

		log.Println("Server routes registered")

		return se.Next()
	})

	return app.Start()
}

// startOpsServer runs the metrics/health sidecar on its own port so the
// scrape surface is never exposed on the public API.
func startOpsServer(ctx context.Context, cfg *config.Config) {
	e := echo.New()
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	srv := &http.Server{
		Addr:    ":" + cfg.MetricsPort,
		Handler: e,
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	log.Printf("Ops server listening on :%s", cfg.MetricsPort)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Printf("Ops server error: %v", err)
	}
}

// handleShutdown handles graceful shutdown
func handleShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Println("Shutdown signal received, cleaning up...")
	cancel()
}
