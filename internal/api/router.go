package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// RouterConfig carries the settings SetupRouter needs besides the handler.
type RouterConfig struct {
	GinMode        string
	AllowedOrigins []string
	TrustedProxies []string // nil: never trust X-Forwarded-For
	Limiter        *IPRateLimiter
	Log            *logrus.Logger
	Gatherer       prometheus.Gatherer
}

// SetupRouter configures the Gin router with all routes and middleware.
func SetupRouter(handler *Handler, cfg RouterConfig) *gin.Engine {
	gin.SetMode(cfg.GinMode)

	router := gin.New()
	// ClientIP keys the rate limiter, so forwarded headers count only from
	// known proxies.
	if err := router.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		cfg.Log.WithError(err).Warn("Invalid trusted proxies, trusting none")
		_ = router.SetTrustedProxies(nil)
	}

	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())
	router.Use(RequestLogger(cfg.Log))
	router.Use(CORSMiddleware(cfg.AllowedOrigins))

	router.GET("/health", handler.Health)
	if cfg.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := router.Group("/api/v1")
	{
		payments := v1.Group("/payments")
		{
			// Called from the storefront in the browser
			checkout := payments.Group("")
			if cfg.Limiter != nil {
				checkout.Use(RateLimit(cfg.Limiter))
			}
			checkout.POST("/orders", handler.CreateOrder)

			// Called by the gateway through the customer's browser
			payments.POST("/callback", handler.HandleCallback)
			payments.GET("/callback", handler.HandleCallback)
			payments.POST("/cancel", handler.HandleCallback)
			payments.GET("/cancel", handler.HandleCallback)
		}
	}

	return router
}
