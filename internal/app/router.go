package app

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	goredis "github.com/redis/go-redis/v9"

	"cabnet/internal/domain"
	"cabnet/internal/handler"
	"cabnet/internal/middleware"
	"cabnet/internal/redis"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	AuthHandler    *handler.AuthHandler
	UserHandler    *handler.UserHandler
	DriverHandler  *handler.DriverHandler
	RideHandler    *handler.RideHandler
	PaymentHandler *handler.PaymentHandler
	ReviewHandler  *handler.ReviewHandler
	SocketHandler  *handler.SocketHandler
	HealthHandler  *handler.HealthHandler

	Verifier    middleware.TokenVerifier
	RateLimiter redis.RateLimiterInterface
	LockStore   redis.LockStoreInterface
	RedisClient *goredis.Client
	NewRelicApp *newrelic.Application
	CORSOrigins []string
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORSMiddleware(deps.CORSOrigins))

	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	router.GET("/health", deps.HealthHandler.Check)

	api := router.Group("/api")
	if deps.RateLimiter != nil {
		api.Use(middleware.RateLimitMiddleware(deps.RateLimiter))
	}

	// Gateway callbacks are authenticated by signature, not by token.
	api.POST("/payments/webhook", deps.PaymentHandler.Webhook)
	api.GET("/reviews/:model/:id", deps.ReviewHandler.List)
	api.GET("/ws", middleware.AuthWithQueryToken(deps.Verifier), middleware.NewRelicIdentity(), deps.SocketHandler.Connect)

	authRoutes := api.Group("/auth")
	{
		authRoutes.POST("/signup/user", deps.AuthHandler.SignupUser)
		authRoutes.POST("/signup/driver", deps.AuthHandler.SignupDriver)
		authRoutes.POST("/login", deps.AuthHandler.Login)
	}

	secured := api.Group("")
	secured.Use(
		middleware.Auth(deps.Verifier),
		middleware.NewRelicIdentity(),
		middleware.IdempotencyMiddleware(deps.RedisClient, deps.LockStore),
	)

	rider := middleware.RequireRole(domain.RoleRider)
	driver := middleware.RequireRole(domain.RoleDriver)
	system := middleware.RequireRole(domain.RoleSystem)

	users := secured.Group("/users", rider)
	{
		users.GET("/profile", deps.UserHandler.GetProfile)
		users.PUT("/profile", deps.UserHandler.UpdateProfile)
		users.GET("/rides", deps.UserHandler.Rides)
	}

	drivers := secured.Group("/drivers", driver)
	{
		drivers.GET("/profile", deps.DriverHandler.GetProfile)
		drivers.PUT("/profile", deps.DriverHandler.UpdateProfile)
		drivers.PUT("/status", deps.DriverHandler.SetStatus)
		drivers.PUT("/location", deps.DriverHandler.UpdateLocation)
		drivers.GET("/rides/available", deps.DriverHandler.AvailableRides)
		drivers.GET("/rides/history", deps.DriverHandler.RideHistory)
	}

	rides := secured.Group("/rides")
	{
		rides.POST("/request", rider, deps.RideHandler.Request)
		rides.GET("/drivers/nearby", rider, deps.RideHandler.NearbyDrivers)
		rides.PUT("/:id/accept", driver, deps.RideHandler.Accept)
		rides.PUT("/:id/status", deps.RideHandler.UpdateStatus)
		rides.PUT("/:id/fare", system, deps.RideHandler.AdjustFare)
		rides.GET("/:id", deps.RideHandler.Get)
	}

	payments := secured.Group("/payments", rider)
	{
		payments.POST("/create-intent", deps.PaymentHandler.CreateIntent)
		payments.POST("/create-checkout-session", deps.PaymentHandler.CreateCheckoutSession)
		payments.POST("/confirm", deps.PaymentHandler.Confirm)
		payments.GET("/history", deps.PaymentHandler.History)
	}

	reviews := secured.Group("/reviews")
	{
		reviews.POST("", deps.ReviewHandler.Create)
		reviews.PUT("/:id/helpful", deps.ReviewHandler.ToggleHelpful)
	}

	return router
}
