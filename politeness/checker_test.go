package politeness

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/harvest/config"
)

func testConfig() config.PolitenessConfig {
	return config.PolitenessConfig{
		UserAgent:    "harvestbot",
		DefaultDelay: time.Millisecond,
		Timeout:      5 * time.Second,
	}
}

func robotsServer(t *testing.T, body string, hits *atomic.Int64) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		if hits != nil {
			hits.Add(1)
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestCheck_DisallowAll(t *testing.T) {
	ts := robotsServer(t, "User-agent: *\nDisallow: /\n", nil)
	c := NewChecker(nil, testConfig())

	decision := c.Check(context.Background(), ts.URL+"/products")
	assert.False(t, decision.CanFetch)
	assert.Equal(t, SourceRobots, decision.Source)
	assert.Equal(t, ts.URL, decision.Origin)
}

func TestCheck_AllowWithCrawlDelay(t *testing.T) {
	ts := robotsServer(t, "User-agent: *\nCrawl-delay: 2\nDisallow: /private\n", nil)
	c := NewChecker(nil, testConfig())

	decision := c.Check(context.Background(), ts.URL+"/products")
	assert.True(t, decision.CanFetch)
	assert.Equal(t, 2*time.Second, decision.CrawlDelay)
	assert.Equal(t, SourceRobots, decision.Source)
}

func TestCheck_SpecificAgentGroup(t *testing.T) {
	ts := robotsServer(t, "User-agent: harvestbot\nDisallow: /\n\nUser-agent: *\nAllow: /\n", nil)
	c := NewChecker(nil, testConfig())

	decision := c.Check(context.Background(), ts.URL+"/")
	assert.False(t, decision.CanFetch)
}

func TestCheck_MissingRobotsIsPermissive(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	t.Cleanup(ts.Close)
	c := NewChecker(nil, testConfig())

	decision := c.Check(context.Background(), ts.URL+"/products")
	assert.True(t, decision.CanFetch)
	assert.Equal(t, SourceDefault, decision.Source)
	assert.Equal(t, time.Millisecond, decision.CrawlDelay)
}

func TestCheck_UnreachableOriginIsPermissive(t *testing.T) {
	c := NewChecker(nil, testConfig())

	decision := c.Check(context.Background(), "http://127.0.0.1:1/page")
	assert.True(t, decision.CanFetch)
	assert.Equal(t, SourceDefault, decision.Source)
}

func TestCheck_UnparseableURLIsPermissive(t *testing.T) {
	c := NewChecker(nil, testConfig())

	decision := c.Check(context.Background(), "not a url")
	assert.True(t, decision.CanFetch)
}

func TestCheck_DecisionCachedPerOrigin(t *testing.T) {
	var hits atomic.Int64
	ts := robotsServer(t, "User-agent: *\nAllow: /\n", &hits)
	c := NewChecker(nil, testConfig())

	first := c.Check(context.Background(), ts.URL+"/a")
	second := c.Check(context.Background(), ts.URL+"/b")
	assert.Same(t, first, second)
	assert.Equal(t, int64(1), hits.Load())
}

func TestWait_PacesByOrigin(t *testing.T) {
	ts := robotsServer(t, "User-agent: *\nCrawl-delay: 1\nAllow: /\n", nil)
	cfg := testConfig()
	c := NewChecker(nil, cfg)

	// First permit is immediate; the second would wait a full second, so
	// cancel and verify the limiter reported the context error.
	require.NoError(t, c.Wait(context.Background(), ts.URL+"/a"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := c.Wait(ctx, ts.URL+"/b")
	assert.Error(t, err)
}

func TestWait_DefaultDelay(t *testing.T) {
	ts := robotsServer(t, "User-agent: *\nAllow: /\n", nil)
	c := NewChecker(nil, testConfig())

	// With a 1ms default delay several sequential waits finish quickly.
	for i := 0; i < 3; i++ {
		require.NoError(t, c.Wait(context.Background(), ts.URL+"/a"))
	}
}
