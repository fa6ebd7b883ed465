package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	goredis "github.com/redis/go-redis/v9"

	"cabnet/internal/app"
	"cabnet/internal/auth"
	"cabnet/internal/config"
	"cabnet/internal/events"
	"cabnet/internal/handler"
	"cabnet/internal/logging"
	"cabnet/internal/maps"
	"cabnet/internal/payment"
	"cabnet/internal/pricing"
	"cabnet/internal/realtime"
	"cabnet/internal/redis"
	"cabnet/internal/repository/postgres"
	"cabnet/internal/service"
)

func main() {
	cfg := config.Load()

	logger := logging.New(os.Stdout, cfg.Log.Level)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	startCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic first so the database driver can be instrumented.
	var nrApp *newrelic.Application
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		var err error
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			logger.Warn("failed to initialize New Relic", "error", err)
			nrApp = nil
		} else {
			logger.Info("New Relic enabled", "app", cfg.NewRelic.AppName)
		}
	}

	db, err := app.NewDatabase(startCtx, cfg.Database, nrApp)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("connected to PostgreSQL")

	redisClient, err := app.NewRedisClient(startCtx, cfg.Redis, nrApp)
	if err != nil {
		return err
	}
	defer redisClient.Close()
	logger.Info("connected to Redis")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server, cleanup, err := wireServer(ctx, db, redisClient, nrApp, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "port", cfg.Server.Port, "env", cfg.App.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}
	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if nrApp != nil {
		nrApp.Shutdown(cfg.Server.ShutdownTimeout)
	}

	logger.Info("server exited")
	return nil
}

// wireServer wires all dependencies and returns the HTTP server together with
// a cleanup func for the background resources it started.
func wireServer(
	ctx context.Context,
	db *sql.DB,
	redisClient *goredis.Client,
	nrApp *newrelic.Application,
	cfg *config.Config,
	logger *slog.Logger,
) (*http.Server, func(), error) {
	// Redis stores.
	locationStore := redis.NewLocationStore(redisClient)
	cacheStore := redis.NewCacheStore(redisClient)
	lockStore := redis.NewLockStore(redisClient)
	rateLimiter := redis.NewRateLimiter(redisClient, cfg.Server.RateLimit, cfg.Server.RateWindow)
	eventBus := redis.NewEventBus(redisClient, cfg.Redis.EventPrefix, logger)

	// Repositories.
	riderRepo := postgres.NewRiderRepository(db)
	driverRepo := postgres.NewDriverRepository(db)
	rideRepo := postgres.NewRideRepository(db)
	paymentRepo := postgres.NewPaymentRepository(db)
	reviewRepo := postgres.NewReviewRepository(db)

	// Realtime fan-out. Every instance publishes to the bus and relays what it
	// receives to its own sockets.
	hub := realtime.NewHub(rideRepo, cfg.Server.CORSOrigins, logger)
	go func() {
		if err := eventBus.Subscribe(ctx, hub.Deliver); err != nil {
			logger.Error("event bus subscription ended", "error", err)
		}
	}()

	publishers := []events.Publisher{eventBus}
	var amqpPublisher *events.AMQPPublisher
	if cfg.AMQP.URL != "" {
		var err error
		amqpPublisher, err = events.NewAMQPPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange, logger)
		if err != nil {
			logger.Warn("AMQP mirror disabled", "error", err)
		} else {
			publishers = append(publishers, amqpPublisher)
		}
	}

	// External providers.
	var primary maps.Estimator
	if cfg.Maps.GoogleAPIKey != "" {
		routes, err := maps.NewRouteService(cfg.Maps.GoogleAPIKey)
		if err != nil {
			logger.Warn("route service disabled", "error", err)
		} else {
			primary = routes
		}
	}
	estimator := maps.NewFallbackEstimator(primary, logger)

	var gateway payment.Gateway
	if cfg.Payment.StripeSecretKey != "" {
		gateway = payment.NewStripeGateway(cfg.Payment.StripeSecretKey, cfg.Payment.StripeWebhookSecret)
	} else {
		logger.Warn("STRIPE_SECRET_KEY not set, using mock payment gateway")
		gateway = payment.NewMockGateway()
	}

	tokens := auth.NewManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	// Services.
	notificationService := service.NewNotificationService(events.NewMultiPublisher(publishers...), logger)
	identityService := service.NewIdentityService(tokens, riderRepo, driverRepo, logger)
	matchingService := service.NewMatchingService(locationStore, cacheStore, driverRepo, logger)
	surgeService := service.NewSurgeService(locationStore, rideRepo, logger)
	driverService := service.NewDriverService(locationStore, cacheStore, driverRepo, logger)
	rideService := service.NewRideService(
		rideRepo, riderRepo, driverRepo,
		estimator,
		pricing.NewRateCardStrategy(nil, cfg.Payment.Currency),
		surgeService,
		notificationService,
		cacheStore,
		logger,
	)
	paymentService := service.NewPaymentService(paymentRepo, rideRepo, gateway, cfg.Payment.Timeout, logger)
	paymentService.SetReturnBaseURL(cfg.Payment.ReturnBaseURL)
	reviewService := service.NewReviewService(reviewRepo, rideRepo, cacheStore, logger)

	handler.SetProductionMode(cfg.App.IsProduction())

	router := app.NewRouter(app.RouterDeps{
		AuthHandler:    handler.NewAuthHandler(identityService),
		UserHandler:    handler.NewUserHandler(identityService, rideService),
		DriverHandler:  handler.NewDriverHandler(driverService, rideService),
		RideHandler:    handler.NewRideHandler(rideService, matchingService),
		PaymentHandler: handler.NewPaymentHandler(paymentService),
		ReviewHandler:  handler.NewReviewHandler(reviewService),
		SocketHandler:  handler.NewSocketHandler(hub),
		HealthHandler: handler.NewHealthHandler(map[string]handler.Pinger{
			"database": handler.PingFunc(db.PingContext),
			"redis": handler.PingFunc(func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			}),
		}),
		Verifier:    identityService,
		RateLimiter: rateLimiter,
		LockStore:   lockStore,
		RedisClient: redisClient,
		NewRelicApp: nrApp,
		CORSOrigins: cfg.Server.CORSOrigins,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	cleanup := func() {
		hub.Close()
		if amqpPublisher != nil {
			if err := amqpPublisher.Close(); err != nil {
				logger.Warn("failed to close AMQP publisher", "error", err)
			}
		}
	}
	return server, cleanup, nil
}
