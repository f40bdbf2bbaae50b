package app

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"travel/internal/handler"
	"travel/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	UserHandler    *handler.UserHandler
	ListingHandler *handler.ListingHandler
	BookingHandler *handler.BookingHandler
	PaymentHandler *handler.PaymentHandler
	Tokens         middleware.TokenParser
	// RedisClient backs idempotent replay; nil disables it.
	RedisClient redis.Cmdable
	NewRelicApp *newrelic.Application
	Logger      *zap.Logger
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	router := gin.New()

	// Global middleware.
	router.Use(middleware.Recovery(log))
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.CORSMiddleware())

	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authenticated := middleware.AuthMiddleware(deps.Tokens)
	idempotent := middleware.IdempotencyMiddleware(deps.RedisClient, log)

	v1 := router.Group("/v1")
	{
		v1.POST("/users/register", deps.UserHandler.Register)

		// Listing reads are public.
		v1.GET("/listings", deps.ListingHandler.GetAll)
		v1.GET("/listings/:id", deps.ListingHandler.Get)
		v1.GET("/listings/:id/reviews", deps.ListingHandler.GetReviews)

		private := v1.Group("", authenticated, idempotent)

		listings := private.Group("/listings")
		{
			listings.POST("", deps.ListingHandler.Create)
			listings.PUT("/:id", deps.ListingHandler.Update)
			listings.DELETE("/:id", deps.ListingHandler.Delete)
			listings.POST("/:id/reviews", deps.ListingHandler.CreateReview)
		}

		bookings := private.Group("/bookings")
		{
			bookings.POST("", deps.BookingHandler.Create)
			bookings.GET("/:id", deps.BookingHandler.Get)
			bookings.POST("/:id/cancel", deps.BookingHandler.Cancel)
			bookings.GET("/:id/payments", deps.BookingHandler.GetPayments)
		}

		payments := private.Group("/payments")
		{
			payments.POST("", deps.PaymentHandler.CreatePayment)
			payments.GET("/:id", deps.PaymentHandler.GetPayment)
			payments.POST("/:id/initialize", deps.PaymentHandler.InitializePayment)
			payments.POST("/:id/verify", deps.PaymentHandler.VerifyPayment)
			payments.GET("/:id/verify", deps.PaymentHandler.VerifyPayment)
			payments.GET("/:id/complete", deps.PaymentHandler.GetPayment)
		}
	}

	return router
}
