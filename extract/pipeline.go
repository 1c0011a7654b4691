package extract

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/use-agent/harvest/config"
	"github.com/use-agent/harvest/fetch"
	"github.com/use-agent/harvest/locate"
	"github.com/use-agent/harvest/models"
)

// Pipeline stages, in the order they are attempted per URL.
const (
	stageFetching    = "fetching"
	stageLocating    = "locating"
	stageExpanding   = "expanding"
	stageDetail      = "detail-following"
	stageFallback    = "model-fallback"
	stagePlaceholder = "placeholder"
)

// placeholderTitle is the sentinel title when even the document title is
// unavailable.
const placeholderTitle = "No products found"

// Pipeline is the per-URL extraction state machine. One Run is sequential;
// independent Runs may execute concurrently, sharing the engines.
type Pipeline struct {
	static   fetch.Engine
	browser  fetch.Engine // nil when no renderer is available
	fallback *FallbackExtractor
	timeout  time.Duration
}

// NewPipeline composes the extraction pipeline. browser may be nil; rendered
// requests then degrade to the placeholder record instead of failing a batch.
func NewPipeline(static, browser fetch.Engine, fallback *FallbackExtractor, cfg config.FetchConfig) *Pipeline {
	return &Pipeline{
		static:   static,
		browser:  browser,
		fallback: fallback,
		timeout:  cfg.Timeout,
	}
}

// Run extracts up to limit records from one URL using the given render
// method ("static" or "browser").
//
// Stage order: fetch → locate containers (a listing page yields one record
// per container) → hop to up to 3 listing/category pages → follow
// product-detail links → model-assisted fallback over candidate markup →
// placeholder record. Every stage enforces the item limit and title-based
// dedup within this URL's own results.
//
// When rendering fails, Run returns BOTH a degraded result holding the
// placeholder record and the error that caused the degradation, so callers
// can keep the record while listing the failure.
func (p *Pipeline) Run(ctx context.Context, pageURL string, limit int, method string) (*models.ExtractionResult, error) {
	result := &models.ExtractionResult{
		URL:          pageURL,
		Timestamp:    time.Now().UTC(),
		RenderMethod: method,
	}

	eng := p.static
	if method == models.RenderBrowser {
		if p.browser == nil {
			slog.Warn("renderer unavailable, degrading to placeholder", "url", pageURL)
			result.Records = []models.ProductRecord{placeholderRecord(pageURL, "")}
			return result, models.NewHarvestError(models.ErrCodeRender, "renderer unavailable", nil)
		}
		eng = p.browser
	}

	slog.Debug("pipeline stage", "stage", stageFetching, "url", pageURL, "engine", eng.Name())
	doc, base, err := p.fetchDocument(ctx, eng, pageURL)
	if err != nil {
		if eng.Name() == models.RenderBrowser {
			slog.Warn("render failed, degrading to placeholder", "url", pageURL, "error", err)
			result.Records = []models.ProductRecord{placeholderRecord(pageURL, "")}
			return result, err
		}
		return nil, err
	}

	col := newCollector(limit)

	// ── Locate containers; >=2 means this page is a listing ─────────
	slog.Debug("pipeline stage", "stage", stageLocating, "url", pageURL)
	candidates, listing := locate.Containers(doc)
	if listing {
		extractContainers(col, candidates, base, doc)
	}

	// ── One hop to listing/category pages ───────────────────────────
	if !col.full() {
		for _, listingURL := range locate.ListingLinks(doc, base) {
			if col.full() {
				break
			}
			slog.Debug("pipeline stage", "stage", stageExpanding, "url", pageURL, "listing", listingURL)
			hopDoc, hopBase, hopErr := p.fetchDocument(ctx, eng, listingURL)
			if hopErr != nil {
				slog.Warn("listing page fetch failed", "url", listingURL, "error", hopErr)
				continue
			}
			hopContainers, hopListing := locate.Containers(hopDoc)
			if hopListing {
				extractContainers(col, hopContainers, hopBase, hopDoc)
			}
		}
	}

	// ── Follow product-detail links ─────────────────────────────────
	if !col.full() {
		for _, detailURL := range locate.ProductLinks(doc, base, limit) {
			if col.full() {
				break
			}
			slog.Debug("pipeline stage", "stage", stageDetail, "url", pageURL, "detail", detailURL)
			detailDoc, _, detailErr := p.fetchDocument(ctx, eng, detailURL)
			if detailErr != nil {
				slog.Warn("detail page fetch failed", "url", detailURL, "error", detailErr)
				continue
			}
			if rec, ok := FromDetailPage(detailDoc, detailURL); ok {
				col.add(rec)
			}
		}
	}

	// ── Model-assisted fallback over candidate markup ───────────────
	if col.empty() && len(candidates) >= 1 && p.fallback != nil {
		slog.Debug("pipeline stage", "stage", stageFallback, "url", pageURL, "candidates", len(candidates))
		for _, rec := range p.fallback.Extract(ctx, candidates, base, limit) {
			col.add(rec)
		}
	}

	// ── Placeholder: exactly one sentinel record ────────────────────
	if col.empty() {
		slog.Debug("pipeline stage", "stage", stagePlaceholder, "url", pageURL)
		title := cleanText(doc.Find("title").First().Text())
		col.records = []models.ProductRecord{placeholderRecord(pageURL, title)}
	}

	result.Records = col.records
	slog.Info("extraction complete", "url", pageURL, "records", len(result.Records), "engine", eng.Name())
	return result, nil
}

// fetchDocument runs one engine fetch under the pipeline timeout and parses
// the markup.
func (p *Pipeline) fetchDocument(ctx context.Context, eng fetch.Engine, pageURL string) (*goquery.Document, *url.URL, error) {
	res, err := eng.Fetch(ctx, &fetch.Request{URL: pageURL, Timeout: p.timeout})
	if err != nil {
		return nil, nil, err
	}

	doc, err := res.Document()
	if err != nil {
		return nil, nil, models.NewHarvestError(models.ErrCodeParse, "failed to parse page markup", err)
	}

	base, err := url.Parse(res.FinalURL)
	if err != nil || base.Host == "" {
		base, err = url.Parse(pageURL)
		if err != nil {
			return nil, nil, models.NewHarvestError(models.ErrCodeParse, "unusable page URL", err)
		}
	}
	return doc, base, nil
}

func extractContainers(col *collector, containers []*goquery.Selection, base *url.URL, doc *goquery.Document) {
	for _, sel := range containers {
		if col.full() {
			return
		}
		if rec, ok := FromContainer(sel, base, doc); ok {
			col.add(rec)
		}
	}
}

func placeholderRecord(pageURL, title string) models.ProductRecord {
	if title == "" {
		title = placeholderTitle
	}
	return models.ProductRecord{Title: truncateTitle(title), Link: pageURL}
}

// collector accumulates one URL's records, enforcing the item limit and
// skipping records whose title duplicates one already collected.
type collector struct {
	limit   int
	seen    map[string]bool
	records []models.ProductRecord
}

func newCollector(limit int) *collector {
	return &collector{limit: limit, seen: make(map[string]bool)}
}

func (c *collector) add(rec models.ProductRecord) bool {
	if c.full() {
		return false
	}
	if rec.Title != "" {
		if c.seen[rec.Title] {
			return false
		}
		c.seen[rec.Title] = true
	}
	c.records = append(c.records, rec)
	return true
}

func (c *collector) full() bool {
	return c.limit > 0 && len(c.records) >= c.limit
}

func (c *collector) empty() bool {
	return len(c.records) == 0
}
