package handlers

import (
	"errors"
	"net/http"
	"time"

	"ngo-inquiry-tracker/internal/auth"
	"ngo-inquiry-tracker/internal/middleware"
	"ngo-inquiry-tracker/internal/models"
	"ngo-inquiry-tracker/internal/newsletter"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// LoginRequest represents the login request payload
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse represents the login response
type LoginResponse struct {
	Token     string    `json:"token"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expiresAt"`
	Message   string    `json:"message"`
}

// Login checks the configured admin credentials and issues an admin token.
// POST /api/admin/login
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request. Username and password are required.",
		})
		return
	}

	if !auth.CheckCredentials(req.Username, req.Password, h.Admin.Username, h.Admin.PasswordHash) {
		h.Logger.WithField("username", req.Username).Warn("Admin login failed")
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "Invalid username or password",
		})
		return
	}

	token, err := auth.GenerateToken(req.Username, auth.PurposeAdmin, h.AdminTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to generate token",
		})
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		Token:     token,
		Username:  req.Username,
		ExpiresAt: time.Now().Add(h.AdminTTL),
		Message:   "Login successful",
	})
}

// CacheStats reports the cache directory statistics.
// GET /api/admin/cache/stats
func (h *Handler) CacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.Cache.Stats())
}

// ClearCacheRequest optionally limits clearing to entries older than the
// given number of seconds.
type ClearCacheRequest struct {
	OlderThanSeconds *int `json:"olderThanSeconds"`
}

// ClearCache removes cache entries.
// POST /api/admin/cache/clear
func (h *Handler) ClearCache(c *gin.Context) {
	var req ClearCacheRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
	}

	var removed int
	if req.OlderThanSeconds != nil {
		if *req.OlderThanSeconds < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "olderThanSeconds must not be negative"})
			return
		}
		removed = h.Cache.ClearOlderThan(time.Duration(*req.OlderThanSeconds) * time.Second)
	} else {
		removed = h.Cache.Clear()
	}

	h.Logger.WithFields(logrus.Fields{
		"admin":   c.GetString(middleware.AdminKey),
		"removed": removed,
	}).Info("Cache cleared")
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

// RefreshInquiries rebuilds the dashboard from the DIP API.
// POST /api/admin/inquiries/refresh
func (h *Handler) RefreshInquiries(c *gin.Context) {
	d, err := h.Inquiries.Refresh(c.Request.Context())
	if err != nil {
		h.Logger.WithError(err).Error("Failed to refresh inquiries")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to refresh inquiries: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"total":       d.Total,
		"generatedAt": d.GeneratedAt,
	})
}

// ListSubscribers returns newsletter subscribers, optionally filtered.
// GET /api/admin/subscribers?status=
func (h *Handler) ListSubscribers(c *gin.Context) {
	subs, err := h.Newsletter.List(c.Request.Context(), models.SubscriberStatus(c.Query("status")))
	if errors.Is(err, newsletter.ErrInvalidStatus) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status filter"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch subscribers"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscribers": subs, "count": len(subs)})
}
