package handlers

import (
	"errors"
	"net/http"
	"strings"

	"ngo-inquiry-tracker/internal/newsletter"

	"github.com/gin-gonic/gin"
)

// SubscribeRequest is accepted as form post or JSON.
type SubscribeRequest struct {
	Email string `form:"email" json:"email" binding:"required"`
}

func wantsJSON(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "application/json") ||
		strings.Contains(c.GetHeader("Accept"), "application/json")
}

// NewsletterForm renders the subscribe form.
// GET /newsletter
func (h *Handler) NewsletterForm(c *gin.Context) {
	h.render(c, http.StatusOK, "newsletter.html", "Newsletter", gin.H{"Email": "", "Done": false})
}

// Subscribe starts the double opt-in.
// POST /newsletter/subscribe
func (h *Handler) Subscribe(c *gin.Context) {
	var req SubscribeRequest
	if err := c.ShouldBind(&req); err != nil {
		h.subscribeResult(c, http.StatusBadRequest, req.Email, "Bitte geben Sie eine E-Mail-Adresse an.")
		return
	}

	_, err := h.Newsletter.Subscribe(c.Request.Context(), req.Email)
	switch {
	case errors.Is(err, newsletter.ErrInvalidEmail):
		h.subscribeResult(c, http.StatusBadRequest, req.Email, "Diese E-Mail-Adresse ist ungültig.")
		return
	case err != nil:
		h.Logger.WithError(err).Error("Failed to subscribe")
		h.subscribeResult(c, http.StatusInternalServerError, req.Email, "Die Anmeldung ist fehlgeschlagen. Bitte versuchen Sie es später erneut.")
		return
	}
	h.subscribeResult(c, http.StatusOK, "", "")
}

func (h *Handler) subscribeResult(c *gin.Context, status int, email, errMsg string) {
	const done = "Fast geschafft! Bitte bestätigen Sie Ihre Anmeldung über den Link in der E-Mail, die wir Ihnen gesendet haben."
	if wantsJSON(c) {
		if errMsg != "" {
			c.JSON(status, gin.H{"error": errMsg})
			return
		}
		c.JSON(status, gin.H{"message": done})
		return
	}

	data := gin.H{"Email": email, "Done": errMsg == "", "Error": errMsg}
	if errMsg == "" {
		data["Message"] = done
	}
	h.render(c, status, "newsletter.html", "Newsletter", data)
}

// Confirm completes the double opt-in.
// GET /newsletter/confirm?token=
func (h *Handler) Confirm(c *gin.Context) {
	_, err := h.Newsletter.Confirm(c.Request.Context(), c.Query("token"))
	if err != nil {
		h.tokenError(c, err, "Anmeldung")
		return
	}
	h.statusPage(c, http.StatusOK, "Anmeldung bestätigt", "", "Vielen Dank! Ihre Anmeldung zum Newsletter ist bestätigt.")
}

// Unsubscribe ends a subscription.
// GET /newsletter/unsubscribe?token=
func (h *Handler) Unsubscribe(c *gin.Context) {
	_, err := h.Newsletter.Unsubscribe(c.Request.Context(), c.Query("token"))
	if err != nil {
		h.tokenError(c, err, "Abmeldung")
		return
	}
	h.statusPage(c, http.StatusOK, "Abgemeldet", "", "Sie wurden vom Newsletter abgemeldet.")
}

func (h *Handler) tokenError(c *gin.Context, err error, title string) {
	switch {
	case errors.Is(err, newsletter.ErrInvalidToken):
		h.statusPage(c, http.StatusBadRequest, title, "Der Link ist ungültig oder abgelaufen.", "")
	case errors.Is(err, newsletter.ErrNotFound):
		h.statusPage(c, http.StatusNotFound, title, "Dieses Abonnement existiert nicht mehr.", "")
	default:
		h.Logger.WithError(err).Error("Newsletter token handling failed")
		h.statusPage(c, http.StatusInternalServerError, title, "Es ist ein Fehler aufgetreten.", "")
	}
}
