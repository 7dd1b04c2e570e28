package cli

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"ngo-inquiry-tracker/internal/auth"
	"ngo-inquiry-tracker/internal/cache"
	"ngo-inquiry-tracker/internal/config"
	"ngo-inquiry-tracker/internal/database"
	"ngo-inquiry-tracker/internal/dip"
	"ngo-inquiry-tracker/internal/handlers"
	"ngo-inquiry-tracker/internal/inquiries"
	"ngo-inquiry-tracker/internal/mail"
	"ngo-inquiry-tracker/internal/metrics"
	"ngo-inquiry-tracker/internal/middleware"
	"ngo-inquiry-tracker/internal/newsletter"
	"ngo-inquiry-tracker/internal/realtime"
	"ngo-inquiry-tracker/internal/routes"
	"ngo-inquiry-tracker/web"
)

// app holds the components shared by the commands.
type app struct {
	cfg     *config.Config
	logger  *logrus.Logger
	files   *cache.FileCache
	store   cache.Store
	metrics *metrics.Metrics
	dip     *dip.Client

	// limiter is set by router.
	limiter *middleware.RateLimiter
}

func newApp(cfg *config.Config, logger *logrus.Logger) (*app, error) {
	files, err := cache.New(cache.Options{
		Directory:         cfg.Cache.Directory,
		DefaultTTLSeconds: cfg.Cache.DefaultTTLSeconds,
		Logger:            logger,
	})
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	m.WatchCache(files)

	client, err := dip.NewClient(dip.ClientOptions{
		BaseURL:  cfg.DIP.BaseURL,
		APIKey:   cfg.DIP.APIKey,
		Timeout:  cfg.DIP.Timeout,
		RetryMax: cfg.DIP.RetryMax,
		Logger:   logger,
		Observe: func(endpoint, outcome string) {
			m.UpstreamRequests.WithLabelValues(endpoint, outcome).Inc()
		},
	})
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:     cfg,
		logger:  logger,
		files:   files,
		store:   m.Instrument(files),
		metrics: m,
		dip:     client,
	}, nil
}

func (a *app) inquiryService(hub inquiries.Broadcaster) *inquiries.Service {
	return inquiries.NewService(a.dip, a.store, hub, inquiries.Options{
		Wahlperiode: a.cfg.DIP.Wahlperiode,
		StartDate:   a.cfg.DIP.StartDate,
		MaxPages:    a.cfg.DIP.MaxPages,
		TTL:         a.cfg.Cache.InquiriesTTL,
		Logger:      a.logger,
	})
}

func (a *app) mailSender() mail.Sender {
	if a.cfg.Email.SendGridAPIKey == "" {
		a.logger.Warn("SENDGRID_API_KEY not set, newsletter mails are only logged")
		return mail.NewLogSender(a.logger)
	}
	return mail.NewSendGridSender(a.cfg.Email.SendGridAPIKey, a.cfg.Email.FromEmail, a.cfg.Email.FromName, a.logger)
}

// router wires the database, services and HTTP routes.
func (a *app) router() (*gin.Engine, error) {
	gin.SetMode(a.cfg.Server.Mode)
	auth.Configure(a.cfg.JWT.Secret, a.cfg.JWT.Issuer, a.cfg.JWT.Audience)

	if err := database.InitDB(a.cfg.Database.Path); err != nil {
		return nil, err
	}

	mailTemplates, err := mail.LoadTemplates()
	if err != nil {
		return nil, err
	}
	pages, err := web.Templates()
	if err != nil {
		return nil, fmt.Errorf("failed to parse page templates: %w", err)
	}

	a.limiter = middleware.NewRateLimiter(a.cfg.Newsletter.SubscribeLimit, a.cfg.Newsletter.SubscribeWindow, a.logger)
	hub := realtime.GetHub()
	h := handlers.New(handlers.Handler{
		Inquiries: a.inquiryService(hub),
		Newsletter: newsletter.NewService(database.GetDB(), a.mailSender(), mailTemplates, newsletter.Options{
			SiteName:   a.cfg.Site.Name,
			BaseURL:    a.cfg.Site.BaseURL,
			ConfirmTTL: a.cfg.Newsletter.ConfirmTTL,
			Logger:     a.logger,
		}),
		Cache:    a.store,
		Hub:      hub,
		Site:     a.cfg.Site,
		Admin:    a.cfg.Admin,
		AdminTTL: a.cfg.JWT.AdminTTL,
		Logger:   a.logger,
	})

	return routes.SetupRoutes(h, routes.Options{
		TrustedProxies:   a.cfg.Server.TrustedProxies,
		Templates:        pages,
		Metrics:          a.metrics,
		SubscribeLimiter: a.limiter,
		Logger:           a.logger,
	}), nil
}
