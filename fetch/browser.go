package fetch

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"

	"github.com/use-agent/harvest/config"
	"github.com/use-agent/harvest/models"
)

// Browser manages the global headless-browser lifecycle and the page pool.
// It is safe for concurrent use.
type Browser struct {
	browser *rod.Browser
	pool    rod.Pool[rod.Page]
	cfg     config.BrowserConfig
}

// NewBrowser launches a headless browser and initialises the reusable
// page pool.
func NewBrowser(cfg config.BrowserConfig) (*Browser, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)

	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}

	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewHarvestError(models.ErrCodeRender, "failed to launch browser", err)
	}
	slog.Info("browser launched", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, models.NewHarvestError(models.ErrCodeRender, "failed to connect to browser", err)
	}

	pool := rod.NewPagePool(cfg.MaxPages)
	slog.Info("page pool created", "maxPages", cfg.MaxPages)

	return &Browser{
		browser: browser,
		pool:    pool,
		cfg:     cfg,
	}, nil
}

// Close drains the page pool and kills the browser process.
// Call this on shutdown to prevent zombie Chrome processes.
func (b *Browser) Close() {
	slog.Info("browser shutting down: draining page pool")
	b.pool.Cleanup(func(p *rod.Page) {
		_ = p.Close()
	})
	b.browser.MustClose()
	slog.Info("browser shutdown complete")
}

// BrowserEngine is the rendered fetch strategy: load the page in a headless
// browser, let it settle, scroll to the middle to trigger lazy content,
// settle again, and read the fully rendered markup. Strictly costlier than
// the static engine; used only when analysis flags framework rendering or
// the caller forces it.
type BrowserEngine struct {
	b          *Browser
	identities *Identities
}

// NewBrowserEngine creates the rendered fetch strategy over a running
// browser.
func NewBrowserEngine(b *Browser, identities *Identities) *BrowserEngine {
	return &BrowserEngine{b: b, identities: identities}
}

func (e *BrowserEngine) Name() string { return models.RenderBrowser }

// Fetch renders one URL. Lifecycle:
//
//  1. Timeout guard      – hard deadline on the entire render
//  2. Acquire page       – borrow a tab from the pool (or create one)
//  3. DEFER: cleanup     – about:blank + return to pool on every exit path
//  4. Stealth injection  – mask navigator.webdriver etc. (before navigation)
//  5. Identity headers   – rotated profile via NetworkSetExtraHTTPHeaders
//  6. Navigate + settle  – DOM stable wait + fixed settle delay
//  7. Lazy-load scroll   – scroll to the middle of the document, settle again
//  8. Extract            – rendered HTML + title + final URL
//
// Step 3 uses the ORIGINAL page reference (without request context), so
// cleanup succeeds even if the request context has expired.
func (e *BrowserEngine) Fetch(ctx context.Context, req *Request) (*Result, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	page, acquireErr := e.b.pool.Get(func() (*rod.Page, error) {
		return e.b.browser.Page(proto.TargetCreateTarget{})
	})
	if acquireErr != nil {
		return nil, models.NewHarvestError(models.ErrCodeRender, "failed to acquire page from pool", acquireErr)
	}

	defer func() {
		if navErr := page.Navigate("about:blank"); navErr != nil {
			slog.Warn("cleanup: failed to navigate to about:blank", "error", navErr)
		}
		e.b.pool.Put(page)
	}()

	if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
		slog.Warn("stealth injection failed, proceeding without stealth", "error", evalErr)
	}

	headers := e.identities.Next()
	for k, v := range req.Headers {
		headers[k] = v
	}
	_ = proto.NetworkSetExtraHTTPHeaders{
		Headers: toHeadersMap(headers),
	}.Call(page)

	p := page.Context(ctx)

	if navErr := p.Navigate(req.URL); navErr != nil {
		return nil, categorize(navErr, models.ErrCodeRender, "navigation to target URL failed")
	}

	settle := e.b.cfg.SettleDelay
	waitSettled(ctx, p, settle)

	// Scroll to the middle of the document so lazy-loaded product grids
	// below the fold start fetching, then settle again.
	_, _ = p.Eval(`() => window.scrollTo(0, document.body.scrollHeight / 2)`)
	waitSettled(ctx, p, settle)

	rawHTML, htmlErr := p.HTML()
	if htmlErr != nil {
		return nil, categorize(htmlErr, models.ErrCodeRender, "failed to extract rendered HTML")
	}

	title := evalStringOrEmpty(p, `() => document.title`)
	finalURL := evalStringOrEmpty(p, `() => window.location.href`)
	if finalURL == "" {
		finalURL = req.URL
	}

	return &Result{
		HTML:       rawHTML,
		Title:      title,
		FinalURL:   finalURL,
		EngineName: e.Name(),
	}, nil
}

// waitSettled waits for the DOM to stop mutating, then applies the fixed
// settle delay (bounded by the request context).
func waitSettled(ctx context.Context, p *rod.Page, settle time.Duration) {
	if stableErr := p.WaitDOMStable(300*time.Millisecond, 0.1); stableErr != nil {
		slog.Debug("WaitDOMStable did not converge, proceeding with current DOM", "error", stableErr)
	}
	if settle <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(settle):
	}
}

// evalStringOrEmpty evaluates a JS expression and returns the string result,
// swallowing any errors (useful for optional metadata extraction).
func evalStringOrEmpty(page *rod.Page, js string) string {
	res, err := page.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}
