package handlers

import (
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"closetvote/internal/services"
)

type SEOHandler struct {
	items   services.ItemStore
	siteURL string
}

func NewSEOHandler(items services.ItemStore, siteURL string) *SEOHandler {
	return &SEOHandler{items: items, siteURL: strings.TrimRight(siteURL, "/")}
}

// RobotsTxt keeps crawlers away from the JSON API except the sitemap.
func (h *SEOHandler) RobotsTxt(c *gin.Context) {
	content := fmt.Sprintf(`User-agent: *
Allow: /

Disallow: /api/

Sitemap: %s/sitemap.xml
`, h.siteURL)

	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.String(http.StatusOK, content)
}

type sitemapURL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod,omitempty"`
	ChangeFreq string `xml:"changefreq,omitempty"`
	Priority   string `xml:"priority,omitempty"`
}

type urlSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

// SitemapXML lists the home page, the leaderboard and every approved item.
func (h *SEOHandler) SitemapXML(c *gin.Context) {
	items, err := h.items.ListApproved(c.Request.Context(), services.ItemFilter{})
	if err != nil {
		internalError(c, err)
		return
	}

	set := urlSet{XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9"}
	set.URLs = append(set.URLs,
		sitemapURL{Loc: h.siteURL + "/", ChangeFreq: "daily", Priority: "1.0"},
		sitemapURL{Loc: h.siteURL + "/leaderboard", ChangeFreq: "hourly", Priority: "0.9"},
	)
	for _, it := range items {
		set.URLs = append(set.URLs, sitemapURL{
			Loc:        fmt.Sprintf("%s/items/%d", h.siteURL, it.ID),
			LastMod:    it.UpdatedAt.Format("2006-01-02"),
			ChangeFreq: "weekly",
			Priority:   "0.7",
		})
	}

	out, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		internalError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/xml; charset=utf-8", append([]byte(xml.Header), out...))
}
