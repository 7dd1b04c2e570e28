package routes

import (
	"html/template"

	"ngo-inquiry-tracker/internal/handlers"
	"ngo-inquiry-tracker/internal/metrics"
	"ngo-inquiry-tracker/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Options carries the router-level dependencies.
type Options struct {
	Templates        *template.Template
	Metrics          *metrics.Metrics
	SubscribeLimiter *middleware.RateLimiter
	Logger           *logrus.Logger
	// TrustedProxies may set X-Forwarded-For. Nil trusts no one.
	TrustedProxies []string
}

func SetupRoutes(h *handlers.Handler, opts Options) *gin.Engine {
	// Create a new GIN Router
	ginRouter := gin.New()
	if err := ginRouter.SetTrustedProxies(opts.TrustedProxies); err != nil {
		if opts.Logger != nil {
			opts.Logger.WithError(err).Warn("Invalid trusted proxies, trusting none")
		}
		_ = ginRouter.SetTrustedProxies(nil)
	}
	ginRouter.Use(gin.Recovery())
	if opts.Logger != nil {
		ginRouter.Use(middleware.RequestLogger(opts.Logger))
	}
	if opts.Metrics != nil {
		ginRouter.Use(middleware.CollectHTTPMetrics(opts.Metrics.RequestsTotal, opts.Metrics.RequestDuration))
	}
	if opts.Templates != nil {
		ginRouter.SetHTMLTemplate(opts.Templates)
	}

	// CORS middleware (for the admin frontend)
	ginRouter.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Health check endpoint
	ginRouter.GET("/health", h.Health)
	if opts.Metrics != nil {
		ginRouter.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}

	// Public pages
	ginRouter.GET("/", h.Dashboard)
	ginRouter.GET("/inquiries/:id", h.InquiryDetail)
	ginRouter.GET("/impressum", h.Impressum)
	ginRouter.GET("/datenschutz", h.Datenschutz)
	ginRouter.GET("/sitemap.xml", h.Sitemap)
	ginRouter.GET("/ws", h.WebSocketHandler)

	newsletter := ginRouter.Group("/newsletter")
	{
		newsletter.GET("", h.NewsletterForm)
		subscribe := []gin.HandlerFunc{h.Subscribe}
		if opts.SubscribeLimiter != nil {
			subscribe = append([]gin.HandlerFunc{opts.SubscribeLimiter.Handler()}, subscribe...)
		}
		newsletter.POST("/subscribe", subscribe...)
		newsletter.GET("/confirm", h.Confirm)
		newsletter.GET("/unsubscribe", h.Unsubscribe)
	}

	// Admin API
	admin := ginRouter.Group("/api/admin")
	{
		admin.POST("/login", h.Login)
	}

	// Protected routes (admin token required)
	protectedRoutes := admin.Group("")
	protectedRoutes.Use(middleware.JWTAuthMiddleware())
	{
		protectedRoutes.GET("/cache/stats", h.CacheStats)
		protectedRoutes.POST("/cache/clear", h.ClearCache)
		protectedRoutes.POST("/inquiries/refresh", h.RefreshInquiries)
		protectedRoutes.GET("/subscribers", h.ListSubscribers)
	}

	return ginRouter
}
