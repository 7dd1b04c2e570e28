package handlers

import (
	"net/http"
	"time"

	"ngo-inquiry-tracker/internal/cache"
	"ngo-inquiry-tracker/internal/config"
	"ngo-inquiry-tracker/internal/inquiries"
	"ngo-inquiry-tracker/internal/newsletter"
	"ngo-inquiry-tracker/internal/realtime"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Handler carries the services the HTTP handlers depend on.
type Handler struct {
	Inquiries  *inquiries.Service
	Newsletter *newsletter.Service
	Cache      cache.Store
	Hub        *realtime.Hub
	Site       config.SiteConfig
	Admin      config.AdminConfig
	AdminTTL   time.Duration
	Logger     *logrus.Logger

	startedAt time.Time
}

// New returns a Handler. A nil hub falls back to the shared hub and a nil
// logger to the logrus standard logger.
func New(h Handler) *Handler {
	if h.Hub == nil {
		h.Hub = realtime.GetHub()
	}
	if h.Logger == nil {
		h.Logger = logrus.StandardLogger()
	}
	if h.AdminTTL <= 0 {
		h.AdminTTL = 12 * time.Hour
	}
	h.startedAt = time.Now()
	return &h
}

// render executes an HTML page with the fields every page expects.
func (h *Handler) render(c *gin.Context, status int, page, title string, data gin.H) {
	base := gin.H{
		"Site":    h.Site,
		"Title":   title,
		"Error":   "",
		"Message": "",
	}
	for k, v := range data {
		base[k] = v
	}
	c.HTML(status, page, base)
}

// statusPage renders a short page with a banner, used for errors and the
// newsletter confirmation steps.
func (h *Handler) statusPage(c *gin.Context, status int, title, errMsg, msg string) {
	h.render(c, status, "status.html", title, gin.H{"Error": errMsg, "Message": msg})
}

// Health reports liveness and the cache state.
// GET /health
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"message": h.Site.Name + " is running",
		"uptime":  time.Since(h.startedAt).Round(time.Second).String(),
		"cache":   h.Cache.Stats(),
	})
}
