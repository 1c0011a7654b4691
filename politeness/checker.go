// Package politeness fetches and caches per-origin crawl policy derived
// from robots.txt, and paces outbound fetches to the advertised crawl delay.
package politeness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"github.com/temoto/robotstxt"
	"golang.org/x/time/rate"

	"github.com/use-agent/harvest/config"
	"github.com/use-agent/harvest/models"
)

// Source tags for PolitenessDecision.
const (
	SourceRobots  = "robots.txt"
	SourceDefault = "no policy found"
)

// Checker resolves crawl policy per origin. Decisions are cached for the
// process lifetime with no invalidation; the cache is shared across
// concurrent runs.
type Checker struct {
	client *http.Client
	cfg    config.PolitenessConfig

	mu       sync.RWMutex
	cache    map[string]*models.PolitenessDecision
	limiters map[string]*rate.Limiter
}

// NewChecker creates a Checker. Pass nil to use a default http.Client with
// the configured robots.txt timeout.
func NewChecker(client *http.Client, cfg config.PolitenessConfig) *Checker {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Checker{
		client:   client,
		cfg:      cfg,
		cache:    make(map[string]*models.PolitenessDecision),
		limiters: make(map[string]*rate.Limiter),
	}
}

// Check resolves the crawl policy for the given URL's origin. Absence of a
// policy must never block extraction, so every failure path (missing file,
// network error, parse error) yields the permissive default decision.
func (c *Checker) Check(ctx context.Context, rawURL string) *models.PolitenessDecision {
	origin, path := splitOrigin(rawURL)
	if origin == "" {
		return c.defaultDecision(rawURL)
	}

	c.mu.RLock()
	cached, ok := c.cache[origin]
	c.mu.RUnlock()
	if ok {
		return cached
	}

	decision := c.resolve(ctx, origin, path)

	c.mu.Lock()
	c.cache[origin] = decision
	c.mu.Unlock()

	return decision
}

// Wait blocks until the origin's crawl-delay pacing admits another fetch,
// or the context expires.
func (c *Checker) Wait(ctx context.Context, rawURL string) error {
	decision := c.Check(ctx, rawURL)

	c.mu.Lock()
	limiter, ok := c.limiters[decision.Origin]
	if !ok {
		delay := decision.CrawlDelay
		if delay <= 0 {
			delay = c.cfg.DefaultDelay
		}
		limiter = rate.NewLimiter(rate.Every(delay), 1)
		c.limiters[decision.Origin] = limiter
	}
	c.mu.Unlock()

	return limiter.Wait(ctx)
}

func (c *Checker) resolve(ctx context.Context, origin, path string) *models.PolitenessDecision {
	robotsURL := origin + "/robots.txt"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return c.defaultDecision(origin)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		slog.Debug("robots.txt unreachable, using permissive default", "origin", origin, "error", err)
		return c.defaultDecision(origin)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.defaultDecision(origin)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return c.defaultDecision(origin)
	}

	data, err := robotstxt.FromBytes(body)
	if err != nil {
		slog.Debug("robots.txt parse failed, using permissive default", "origin", origin, "error", err)
		return c.defaultDecision(origin)
	}

	group := data.FindGroup(c.cfg.UserAgent)
	delay := group.CrawlDelay
	if delay <= 0 {
		delay = c.cfg.DefaultDelay
	}
	if path == "" {
		path = "/"
	}

	decision := &models.PolitenessDecision{
		Origin:     origin,
		CanFetch:   group.Test(path),
		CrawlDelay: delay,
		Source:     SourceRobots,
	}
	slog.Info("crawl policy resolved",
		"origin", origin,
		"canFetch", decision.CanFetch,
		"crawlDelay", decision.CrawlDelay,
	)
	return decision
}

func (c *Checker) defaultDecision(origin string) *models.PolitenessDecision {
	return &models.PolitenessDecision{
		Origin:     origin,
		CanFetch:   true,
		CrawlDelay: c.cfg.DefaultDelay,
		Source:     SourceDefault,
	}
}

// splitOrigin derives "scheme://host" and the request path from a raw URL.
func splitOrigin(rawURL string) (origin, path string) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", ""
	}
	return fmt.Sprintf("%s://%s", u.Scheme, u.Host), u.Path
}
