package fetch

import (
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Engine is the interface both fetch strategies implement.
type Engine interface {
	// Name returns the engine identifier ("static" or "browser").
	Name() string

	// Fetch retrieves the page content for the given request.
	Fetch(ctx context.Context, req *Request) (*Result, error)
}

// Request contains everything an engine needs to fetch a page.
type Request struct {
	URL     string
	Headers map[string]string
	Timeout time.Duration
}

// Result is the output of a successful engine fetch.
type Result struct {
	HTML       string
	Title      string
	StatusCode int
	FinalURL   string
	EngineName string
}

// Document parses the fetched markup into a queryable document.
func (r *Result) Document() (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(r.HTML))
}
