package models

import "time"

// Render methods for obtaining page markup.
const (
	RenderStatic  = "static"
	RenderBrowser = "browser"
)

// MaxTitleLen is the hard cap on extracted titles.
const MaxTitleLen = 200

// ProductRecord is one extracted product. Records are immutable once
// produced: either Title or Price is non-empty, except for the single
// placeholder record emitted when every strategy fails for a URL.
type ProductRecord struct {
	Title string `json:"title,omitempty"`
	Link  string `json:"link"`
	Price string `json:"price,omitempty"`
}

// ExtractionResult is the output of one pipeline run over one page.
type ExtractionResult struct {
	URL          string          `json:"url"`
	Timestamp    time.Time       `json:"timestamp"`
	RenderMethod string          `json:"render_method"`
	Records      []ProductRecord `json:"records"`
}

// SiteAnalysis classifies a page before extraction. Computed once per
// batch and read-only afterwards.
type SiteAnalysis struct {
	URL               string   `json:"url"`
	IsDynamic         bool     `json:"is_dynamic"`
	IsEcommerce       bool     `json:"is_ecommerce"`
	DetectedPatterns  []string `json:"detected_patterns"`
	RecommendedMethod string   `json:"recommended_method"`

	// Note carries a non-fatal diagnostic, e.g. the fetch error when
	// analysis fell back to defaults.
	Note string `json:"note,omitempty"`
}

// PolitenessDecision is the cached per-origin crawl policy.
type PolitenessDecision struct {
	Origin     string        `json:"origin"`
	CanFetch   bool          `json:"can_fetch"`
	CrawlDelay time.Duration `json:"crawl_delay"`

	// Source records where the decision came from: "robots.txt" when a
	// policy was parsed, "no policy found" for the permissive default.
	Source string `json:"source"`
}
