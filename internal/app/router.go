package app

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"carpool/internal/handler"
	"carpool/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	CarpoolHandler *handler.CarpoolHandler
	UserHandler    *handler.UserHandler
	HealthHandler  *handler.HealthHandler
	RedisClient    *redis.Client // Optional; nil disables idempotent replay.
	NewRelicApp    *newrelic.Application
	Logger         *zap.Logger
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(deps.Logger))

	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	idempotency := middleware.IdempotencyMiddleware(deps.RedisClient, deps.Logger)

	router.GET("/health", deps.HealthHandler.Health)

	v1 := router.Group("/v1")
	{
		users := v1.Group("/users")
		{
			users.POST("/register", idempotency, deps.UserHandler.Register)
			users.GET("/:id", deps.UserHandler.Get)
			users.GET("/:id/transactions", deps.UserHandler.ListTransactions)
		}

		carpools := v1.Group("/carpools")
		{
			carpools.GET("", deps.CarpoolHandler.ListOpen)
			carpools.GET("/:id", deps.CarpoolHandler.Get)
		}

		// Routes acting on behalf of a user.
		acting := carpools.Group("", middleware.RequireUser(), idempotency)
		{
			acting.POST("", deps.CarpoolHandler.Create)
			acting.GET("/:id/participations", deps.CarpoolHandler.ListParticipations)
			acting.POST("/:id/join", deps.CarpoolHandler.Join)
			acting.POST("/:id/leave", deps.CarpoolHandler.Leave)
			acting.POST("/:id/cancel", deps.CarpoolHandler.Cancel)
			acting.POST("/:id/start", deps.CarpoolHandler.Start)
			acting.POST("/:id/complete", deps.CarpoolHandler.Complete)
			acting.POST("/:id/validate", deps.CarpoolHandler.Validate)
		}
	}

	return router
}
