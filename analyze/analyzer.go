// Package analyze classifies a page before extraction: is it an e-commerce
// page, and does it need browser rendering?
package analyze

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/use-agent/harvest/config"
	"github.com/use-agent/harvest/fetch"
	"github.com/use-agent/harvest/models"
)

// ecommerceKeywords are matched against element class and id attributes.
var ecommerceKeywords = []string{
	"price", "product", "cart", "add-to-cart", "buy", "shop", "store", "item",
}

// frameworkNames flag client-side rendering when referenced by script tags.
var frameworkNames = []string{
	"react", "vue", "angular", "next", "nuxt", "svelte", "ember",
}

// Analyzer runs one static fetch and two independent signal scans over the
// result.
type Analyzer struct {
	engine  fetch.Engine
	timeout time.Duration
}

// New creates an Analyzer over the given (static) fetch engine.
func New(engine fetch.Engine, cfg config.FetchConfig) *Analyzer {
	return &Analyzer{engine: engine, timeout: cfg.Timeout}
}

// Analyze classifies the page. It never fails: a fetch error yields the
// default analysis with the error attached as a note.
func (a *Analyzer) Analyze(ctx context.Context, pageURL string) *models.SiteAnalysis {
	analysis := &models.SiteAnalysis{
		URL:               pageURL,
		DetectedPatterns:  []string{},
		RecommendedMethod: models.RenderStatic,
	}

	res, err := a.engine.Fetch(ctx, &fetch.Request{URL: pageURL, Timeout: a.timeout})
	if err != nil {
		analysis.Note = err.Error()
		slog.Warn("site analysis fetch failed, using defaults", "url", pageURL, "error", err)
		return analysis
	}

	doc, err := res.Document()
	if err != nil {
		analysis.Note = err.Error()
		return analysis
	}

	for _, kw := range ecommerceKeywords {
		sel := fmt.Sprintf(`[class*=%q], [id*=%q]`, kw, kw)
		if doc.Find(sel).Length() > 0 {
			analysis.IsEcommerce = true
			analysis.DetectedPatterns = append(analysis.DetectedPatterns, kw+" pattern found")
		}
	}

	if hasFrameworkScript(doc) {
		analysis.IsDynamic = true
		analysis.RecommendedMethod = models.RenderBrowser
		analysis.DetectedPatterns = append(analysis.DetectedPatterns, "javascript framework detected")
	}

	slog.Info("site analysis complete",
		"url", pageURL,
		"isEcommerce", analysis.IsEcommerce,
		"isDynamic", analysis.IsDynamic,
		"method", analysis.RecommendedMethod,
	)
	return analysis
}

// hasFrameworkScript reports whether any script tag references a known
// client-side framework by src or inline body.
func hasFrameworkScript(doc *goquery.Document) bool {
	found := false
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		src, _ := s.Attr("src")
		body := src + " " + s.Text()
		body = strings.ToLower(body)
		for _, name := range frameworkNames {
			if strings.Contains(body, name) {
				found = true
				return false
			}
		}
		return true
	})
	return found
}
