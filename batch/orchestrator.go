// Package batch sequences a full harvesting run: analysis, politeness
// checking, per-URL extraction, and final deduplication.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/use-agent/harvest/analyze"
	"github.com/use-agent/harvest/config"
	"github.com/use-agent/harvest/dedupe"
	"github.com/use-agent/harvest/extract"
	"github.com/use-agent/harvest/fetch"
	"github.com/use-agent/harvest/locate"
	"github.com/use-agent/harvest/models"
	"github.com/use-agent/harvest/politeness"
)

// Orchestrator owns the process-wide fetch context (identity rotation via
// the engines, the politeness cache) and runs the batch state machine:
//
//	initialized → analyzed → checked_policy → {blocked | extracted | no_data}
//	→ completed | failed
type Orchestrator struct {
	analyzer     *analyze.Analyzer
	checker      *politeness.Checker
	pipeline     *extract.Pipeline
	static       fetch.Engine
	cfg          config.PipelineConfig
	fetchTimeout time.Duration
}

// New wires the orchestrator. static is reused for seed expansion so the
// link-discovery fetch shares the identity rotation with everything else.
func New(analyzer *analyze.Analyzer, checker *politeness.Checker, pipeline *extract.Pipeline, static fetch.Engine, cfg config.PipelineConfig, fetchCfg config.FetchConfig) *Orchestrator {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.DetailLinksPerSeed <= 0 {
		cfg.DetailLinksPerSeed = 10
	}
	return &Orchestrator{
		analyzer:     analyzer,
		checker:      checker,
		pipeline:     pipeline,
		static:       static,
		cfg:          cfg,
		fetchTimeout: fetchCfg.Timeout,
	}
}

// AnalyzeURL exposes single-URL site analysis to the boundary adapter.
func (o *Orchestrator) AnalyzeURL(ctx context.Context, pageURL string) *models.SiteAnalysis {
	return o.analyzer.Analyze(ctx, normalizeURL(pageURL))
}

// Run executes one batch. Validation failures are returned as errors before
// any fetch happens; everything after that surfaces through the result's
// status and error list, never as a raw internal failure.
func (o *Orchestrator) Run(ctx context.Context, req *models.BatchRequest) (*models.BatchResult, error) {
	if req == nil || len(req.URLs) == 0 {
		return nil, models.NewHarvestError(models.ErrCodeInvalidInput, "no seed URLs provided", nil)
	}
	req.Defaults()

	seeds := make([]string, 0, len(req.URLs))
	for _, raw := range req.URLs {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return nil, models.NewHarvestError(models.ErrCodeInvalidInput, "empty seed URL", nil)
		}
		seeds = append(seeds, normalizeURL(raw))
	}

	runID := uuid.NewString()
	logger := slog.With("run", runID)
	logger.Info("batch run starting", "state", models.StateInitialized, "seeds", len(seeds), "limit", req.ItemLimit)

	// ── initialized → analyzed ──────────────────────────────────────
	// Analysis runs once on the first seed; the batch is assumed to
	// share rendering characteristics (known simplification).
	analysis := o.analyzer.Analyze(ctx, seeds[0])
	logger.Info("batch state", "state", models.StateAnalyzed, "method", analysis.RecommendedMethod)

	// ── analyzed → checked_policy ───────────────────────────────────
	decision := o.checker.Check(ctx, seeds[0])
	logger.Info("batch state", "state", models.StateCheckedPolicy, "canFetch", decision.CanFetch, "source", decision.Source)
	if !decision.CanFetch {
		logger.Warn("batch state", "state", models.StateBlocked, "origin", decision.Origin)
		return &models.BatchResult{
			Status:    models.BatchStatusBlocked,
			Records:   []models.ProductRecord{},
			Timestamp: time.Now().UTC(),
			Errors: []string{
				fmt.Sprintf("%s: %s: crawling disallowed by robots.txt", decision.Origin, models.ErrCodePolicyBlocked),
			},
		}, nil
	}

	method := models.RenderStatic
	if analysis.RecommendedMethod == models.RenderBrowser {
		method = models.RenderBrowser
	}
	if req.ForceRender {
		method = models.RenderBrowser
	}

	// ── checked_policy → extracted | no_data ────────────────────────
	urls, expandErrors := o.expandSeeds(ctx, seeds)
	records, runErrors := o.runPipelines(ctx, urls, req.ItemLimit, method)
	errorList := append(expandErrors, runErrors...)

	if len(records) == 0 {
		logger.Warn("batch state", "state", models.StateNoData)
		logger.Info("batch state", "state", models.StateFailed)
		return &models.BatchResult{
			Status:    models.BatchStatusNoData,
			Records:   []models.ProductRecord{},
			Timestamp: time.Now().UTC(),
			Errors:    errorList,
		}, nil
	}
	logger.Info("batch state", "state", models.StateExtracted, "records", len(records))

	// ── extracted → completed ───────────────────────────────────────
	// Finalize on (title, link): anchor-less listing records all carry the
	// page URL as their link, so link-only keying would collapse distinct
	// products into one record.
	deduped := dedupe.ByTitleLink(records)
	status := models.BatchStatusSuccess
	if len(errorList) > 0 {
		status = models.BatchStatusPartial
	}
	logger.Info("batch state", "state", models.StateCompleted, "status", status, "records", len(deduped))

	return &models.BatchResult{
		Status:     status,
		Records:    deduped,
		TotalItems: len(deduped),
		Timestamp:  time.Now().UTC(),
		Errors:     errorList,
	}, nil
}

// expandSeeds fetches each seed once and expands it to up to
// DetailLinksPerSeed product-detail links, falling back to the seed itself
// when none are found. Expansion failures keep the seed in play.
func (o *Orchestrator) expandSeeds(ctx context.Context, seeds []string) ([]string, []string) {
	var urls []string
	var errs []string

	for _, seed := range seeds {
		if err := o.checker.Wait(ctx, seed); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", seed, err))
			continue
		}

		res, err := o.static.Fetch(ctx, &fetch.Request{URL: seed, Timeout: o.fetchTimeout})
		if err != nil {
			// Let the pipeline retry the seed itself; the failure may
			// have been transient or render-specific.
			urls = append(urls, seed)
			continue
		}

		doc, docErr := res.Document()
		if docErr != nil {
			urls = append(urls, seed)
			continue
		}
		base, baseErr := urlBase(res.FinalURL, seed)
		if baseErr != nil {
			urls = append(urls, seed)
			continue
		}

		links := locate.ProductLinks(doc, base, o.cfg.DetailLinksPerSeed)
		if len(links) == 0 {
			urls = append(urls, seed)
			continue
		}
		slog.Debug("seed expanded", "seed", seed, "links", len(links))
		urls = append(urls, links...)
	}
	return urls, errs
}

// runPipelines executes per-URL extractions with bounded concurrency.
// Results are slotted by index so the final ordering is deterministic
// (seed order, then discovery order) before deduplication.
func (o *Orchestrator) runPipelines(ctx context.Context, urls []string, limit int, method string) ([]models.ProductRecord, []string) {
	results := make([]*models.ExtractionResult, len(urls))
	errs := make([]error, len(urls))

	sem := make(chan struct{}, o.cfg.Workers)
	var wg sync.WaitGroup

	for i, pageURL := range urls {
		wg.Add(1)
		go func(i int, pageURL string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := o.checker.Wait(ctx, pageURL); err != nil {
				errs[i] = err
				return
			}
			results[i], errs[i] = o.pipeline.Run(ctx, pageURL, limit, method)
		}(i, pageURL)
	}
	wg.Wait()

	var records []models.ProductRecord
	var errorList []string
	for i, pageURL := range urls {
		if results[i] != nil {
			records = append(records, results[i].Records...)
		}
		if errs[i] != nil {
			errorList = append(errorList, fmt.Sprintf("%s: %v", pageURL, errs[i]))
		}
	}
	return records, errorList
}

// normalizeURL prefixes scheme-less seeds with https.
func normalizeURL(raw string) string {
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		return "https://" + raw
	}
	return raw
}

// urlBase picks a usable base URL for resolving discovered links.
func urlBase(finalURL, fallback string) (*url.URL, error) {
	if u, err := url.Parse(finalURL); err == nil && u.Host != "" {
		return u, nil
	}
	return url.Parse(fallback)
}
