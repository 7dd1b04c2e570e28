package handlers

import (
	"encoding/xml"
	"errors"
	"net/http"
	"regexp"

	"ngo-inquiry-tracker/internal/cache"
	"ngo-inquiry-tracker/internal/inquiries"

	"github.com/gin-gonic/gin"
)

var numericID = regexp.MustCompile(`^[0-9]{1,12}$`)

// Dashboard renders the overview of NGO-related inquiries.
// GET /
func (h *Handler) Dashboard(c *gin.Context) {
	d, err := h.Inquiries.Dashboard(c.Request.Context())
	if err != nil {
		h.Logger.WithError(err).Error("Failed to load dashboard")
		h.render(c, http.StatusBadGateway, "dashboard.html", "Dashboard", gin.H{
			"Error": "Die Daten des Bundestages sind derzeit nicht erreichbar. Bitte versuchen Sie es später erneut.",
		})
		return
	}
	h.render(c, http.StatusOK, "dashboard.html", "", gin.H{"Dashboard": d})
}

// InquiryDetail renders one proceeding.
// GET /inquiries/:id
func (h *Handler) InquiryDetail(c *gin.Context) {
	id := c.Param("id")
	if !numericID.MatchString(id) {
		h.statusPage(c, http.StatusNotFound, "Nicht gefunden", "Diese Anfrage existiert nicht.", "")
		return
	}

	inq, err := h.Inquiries.Inquiry(c.Request.Context(), id)
	switch {
	case errors.Is(err, inquiries.ErrNotFound):
		h.statusPage(c, http.StatusNotFound, "Nicht gefunden", "Diese Anfrage existiert nicht.", "")
		return
	case err != nil:
		h.Logger.WithError(err).WithField("id", id).Error("Failed to load inquiry")
		h.statusPage(c, http.StatusBadGateway, "Fehler", "Die Daten des Bundestages sind derzeit nicht erreichbar.", "")
		return
	}
	h.render(c, http.StatusOK, "inquiry.html", inq.Title, gin.H{"Inquiry": inq})
}

// Impressum renders the legal notice.
// GET /impressum
func (h *Handler) Impressum(c *gin.Context) {
	h.render(c, http.StatusOK, "impressum.html", "Impressum", nil)
}

// Datenschutz renders the privacy policy.
// GET /datenschutz
func (h *Handler) Datenschutz(c *gin.Context) {
	h.render(c, http.StatusOK, "datenschutz.html", "Datenschutz", nil)
}

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

type sitemap struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

// Sitemap lists the static pages and, when the dashboard is cached, every
// inquiry detail page. It never triggers an upstream fetch.
// GET /sitemap.xml
func (h *Handler) Sitemap(c *gin.Context) {
	base := h.Site.BaseURL
	sm := sitemap{XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9"}
	for _, p := range []string{"/", "/newsletter", "/impressum", "/datenschutz"} {
		sm.URLs = append(sm.URLs, sitemapURL{Loc: base + p})
	}

	if d, ok := cache.Fetch[inquiries.Dashboard](h.Cache, h.Inquiries.DashboardKey()); ok {
		for _, inq := range d.Inquiries {
			sm.URLs = append(sm.URLs, sitemapURL{Loc: base + "/inquiries/" + inq.ID, LastMod: inq.Date})
		}
	}

	out, err := xml.MarshalIndent(sm, "", "  ")
	if err != nil {
		c.String(http.StatusInternalServerError, "failed to render sitemap")
		return
	}
	c.Data(http.StatusOK, "application/xml; charset=utf-8", append([]byte(xml.Header), out...))
}
