package locate

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// maxListingLinks caps how many listing/category pages the pipeline hops to.
const maxListingLinks = 3

// productLinkKeywords mark hrefs that look like product-detail pages.
var productLinkKeywords = []string{"product", "item", "detail"}

// listingLinkKeywords mark hrefs that look like listing/category pages.
var listingLinkKeywords = []string{
	"collections", "collection", "category", "shop", "store", "products", "catalog",
}

// reNumericPath matches a numeric id segment of 3+ digits in a URL path.
var reNumericPath = regexp.MustCompile(`\d{3,}`)

// ProductLinks scans all anchors and collects absolute URLs whose href
// contains a product-ish keyword, a 3+ digit path segment, or an id= query
// parameter. Order follows the document; duplicates are dropped. limit <= 0
// means no cap.
func ProductLinks(doc *goquery.Document, base *url.URL, limit int) []string {
	var links []string
	seen := make(map[string]bool)

	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if limit > 0 && len(links) >= limit {
			return false
		}
		href, _ := s.Attr("href")
		abs, ok := Absolute(base, href)
		if !ok || seen[abs] {
			return true
		}
		if !looksLikeProductLink(href, abs) {
			return true
		}
		seen[abs] = true
		links = append(links, abs)
		return true
	})
	return links
}

// ListingLinks collects same-host listing/category links, capped at the
// first three found.
func ListingLinks(doc *goquery.Document, base *url.URL) []string {
	var links []string
	seen := make(map[string]bool)

	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if len(links) >= maxListingLinks {
			return false
		}
		href, _ := s.Attr("href")
		lower := strings.ToLower(href)
		match := false
		for _, kw := range listingLinkKeywords {
			if strings.Contains(lower, kw) {
				match = true
				break
			}
		}
		if !match {
			return true
		}
		abs, ok := Absolute(base, href)
		if !ok || seen[abs] {
			return true
		}
		// Stay on the seed's host; external "shop" links are navigation noise.
		if u, err := url.Parse(abs); err != nil || u.Host != base.Host {
			return true
		}
		seen[abs] = true
		links = append(links, abs)
		return true
	})
	return links
}

// Absolute resolves href against base and reports whether the result is a
// fetchable http(s) URL. Fragment, javascript:, mailto: and tel: targets
// are rejected.
func Absolute(base *url.URL, href string) (string, bool) {
	if skipHref(href) {
		return "", false
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", false
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	abs.Fragment = ""
	return abs.String(), true
}

func looksLikeProductLink(href, abs string) bool {
	lower := strings.ToLower(href)
	for _, kw := range productLinkKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	u, err := url.Parse(abs)
	if err != nil {
		return false
	}
	if reNumericPath.MatchString(u.Path) {
		return true
	}
	return u.Query().Get("id") != ""
}
