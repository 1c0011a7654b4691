package batch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/harvest/analyze"
	"github.com/use-agent/harvest/config"
	"github.com/use-agent/harvest/extract"
	"github.com/use-agent/harvest/fetch"
	"github.com/use-agent/harvest/models"
	"github.com/use-agent/harvest/politeness"
)

// stubEngine serves canned markup keyed by URL.
type stubEngine struct {
	pages map[string]string
	errs  map[string]error
}

func (e *stubEngine) Name() string { return models.RenderStatic }

func (e *stubEngine) Fetch(_ context.Context, req *fetch.Request) (*fetch.Result, error) {
	if err, ok := e.errs[req.URL]; ok {
		return nil, err
	}
	page, ok := e.pages[req.URL]
	if !ok {
		return nil, models.NewHarvestError(models.ErrCodeFetch, "no such page", nil)
	}
	return &fetch.Result{HTML: page, StatusCode: 200, FinalURL: req.URL, EngineName: models.RenderStatic}, nil
}

// serveRobots stands in for the seed's origin so politeness checks hit a
// real HTTP endpoint while page fetches go through the stub engine.
func serveRobots(t *testing.T, body string) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" && body != "" {
			w.Write([]byte(body))
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func newTestOrchestrator(static fetch.Engine) *Orchestrator {
	fetchCfg := config.FetchConfig{Timeout: 5 * time.Second}
	polCfg := config.PolitenessConfig{
		UserAgent:    "harvestbot",
		DefaultDelay: time.Millisecond,
		Timeout:      5 * time.Second,
	}
	pipeCfg := config.PipelineConfig{ItemLimit: 5, DetailLinksPerSeed: 10, Workers: 2}

	analyzer := analyze.New(static, fetchCfg)
	checker := politeness.NewChecker(nil, polCfg)
	pipeline := extract.NewPipeline(static, nil, nil, fetchCfg)
	return New(analyzer, checker, pipeline, static, pipeCfg, fetchCfg)
}

func listingPage() string {
	return `<html><head><title>Shop</title></head><body>
<div class="product-card"><a href="/alpha-chair"><h2>Alpha Chair</h2></a><span class="price">$9.00</span></div>
<div class="product-card"><a href="/beta-desk"><h2>Beta Desk</h2></a><span class="price">$19.00</span></div>
<div class="product-card"><a href="/gamma-lamp"><h2>Gamma Lamp</h2></a><span class="price">$29.00</span></div>
</body></html>`
}

func TestRun_ValidationErrors(t *testing.T) {
	o := New(nil, nil, nil, nil, config.PipelineConfig{}, config.FetchConfig{})
	ctx := context.Background()

	for _, req := range []*models.BatchRequest{
		nil,
		{},
		{URLs: []string{"  "}},
		{URLs: []string{"https://shop.example.com", ""}},
	} {
		result, err := o.Run(ctx, req)
		require.Error(t, err)
		assert.Nil(t, result)

		var herr *models.HarvestError
		require.ErrorAs(t, err, &herr)
		assert.Equal(t, models.ErrCodeInvalidInput, herr.Code)
	}
}

func TestRun_Success(t *testing.T) {
	ts := serveRobots(t, "User-agent: *\nAllow: /\n")
	static := &stubEngine{pages: map[string]string{ts.URL: listingPage()}}
	o := newTestOrchestrator(static)

	result, err := o.Run(context.Background(), &models.BatchRequest{URLs: []string{ts.URL}})
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, models.BatchStatusSuccess, result.Status)
	assert.Empty(t, result.Errors)
	require.Len(t, result.Records, 3)
	assert.Equal(t, 3, result.TotalItems)
	assert.Equal(t, models.ProductRecord{
		Title: "Alpha Chair",
		Link:  ts.URL + "/alpha-chair",
		Price: "9.00",
	}, result.Records[0])
}

func TestRun_AnchorlessListing(t *testing.T) {
	ts := serveRobots(t, "")
	// No per-card anchors: every record falls back to the page URL as its
	// link, so finalization must not collapse the distinct titles.
	static := &stubEngine{pages: map[string]string{ts.URL: `<html><body>
<div class="product-card"><h2>Alpha Chair</h2><span class="price">$9.00</span></div>
<div class="product-card"><h2>Beta Desk</h2><span class="price">$9.00</span></div>
<div class="product-card"><h2>Gamma Lamp</h2><span class="price">$9.00</span></div>
</body></html>`}}
	o := newTestOrchestrator(static)

	result, err := o.Run(context.Background(), &models.BatchRequest{
		URLs:      []string{ts.URL},
		ItemLimit: 3,
	})
	require.NoError(t, err)

	assert.Equal(t, models.BatchStatusSuccess, result.Status)
	require.Len(t, result.Records, 3)
	assert.Equal(t, 3, result.TotalItems)
	for i, title := range []string{"Alpha Chair", "Beta Desk", "Gamma Lamp"} {
		assert.Equal(t, title, result.Records[i].Title)
		assert.Equal(t, "9.00", result.Records[i].Price)
		assert.Equal(t, ts.URL, result.Records[i].Link)
	}
}

func TestRun_Blocked(t *testing.T) {
	ts := serveRobots(t, "User-agent: *\nDisallow: /\n")
	static := &stubEngine{pages: map[string]string{ts.URL: listingPage()}}
	o := newTestOrchestrator(static)

	result, err := o.Run(context.Background(), &models.BatchRequest{URLs: []string{ts.URL}})
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, models.BatchStatusBlocked, result.Status)
	assert.Empty(t, result.Records)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], models.ErrCodePolicyBlocked)
}

func TestRun_SeedExpansion(t *testing.T) {
	ts := serveRobots(t, "")
	static := &stubEngine{pages: map[string]string{
		ts.URL: `<html><body>
			<a href="/product/100">first</a>
			<a href="/product/200">second</a>
		</body></html>`,
		ts.URL + "/product/100": `<html><body><h1>Alpha Chair</h1><span class="price">$9.00</span></body></html>`,
		ts.URL + "/product/200": `<html><body><h1>Beta Desk</h1><span class="price">$19.00</span></body></html>`,
	}}
	o := newTestOrchestrator(static)

	result, err := o.Run(context.Background(), &models.BatchRequest{URLs: []string{ts.URL}})
	require.NoError(t, err)

	assert.Equal(t, models.BatchStatusSuccess, result.Status)
	require.Len(t, result.Records, 2)
	assert.Equal(t, "Alpha Chair", result.Records[0].Title)
	assert.Equal(t, ts.URL+"/product/100", result.Records[0].Link)
	assert.Equal(t, "Beta Desk", result.Records[1].Title)
}

func TestRun_PartialOnPipelineError(t *testing.T) {
	ts := serveRobots(t, "")
	static := &stubEngine{pages: map[string]string{ts.URL: listingPage()}}
	o := newTestOrchestrator(static)

	result, err := o.Run(context.Background(), &models.BatchRequest{
		URLs: []string{ts.URL, ts.URL + "/missing"},
	})
	require.NoError(t, err)

	assert.Equal(t, models.BatchStatusPartial, result.Status)
	assert.Len(t, result.Records, 3)
	assert.NotEmpty(t, result.Errors)
}

func TestRun_NoData(t *testing.T) {
	ts := serveRobots(t, "")
	static := &stubEngine{}
	o := newTestOrchestrator(static)

	result, err := o.Run(context.Background(), &models.BatchRequest{URLs: []string{ts.URL}})
	require.NoError(t, err)

	assert.Equal(t, models.BatchStatusNoData, result.Status)
	assert.Empty(t, result.Records)
	assert.NotEmpty(t, result.Errors)
}

func TestRun_ForceRenderWithoutBrowserDegrades(t *testing.T) {
	ts := serveRobots(t, "")
	static := &stubEngine{pages: map[string]string{ts.URL: listingPage()}}
	o := newTestOrchestrator(static)

	result, err := o.Run(context.Background(), &models.BatchRequest{
		URLs:        []string{ts.URL},
		ForceRender: true,
	})
	require.NoError(t, err)

	// The placeholder record survives alongside the render error.
	assert.Equal(t, models.BatchStatusPartial, result.Status)
	require.Len(t, result.Records, 1)
	assert.Equal(t, "No products found", result.Records[0].Title)
	assert.NotEmpty(t, result.Errors)
}

func TestNormalizeURL(t *testing.T) {
	assert.Equal(t, "https://shop.example.com", normalizeURL("shop.example.com"))
	assert.Equal(t, "http://shop.example.com", normalizeURL("http://shop.example.com"))
	assert.Equal(t, "https://shop.example.com", normalizeURL("https://shop.example.com"))
}
