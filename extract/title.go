// Package extract pulls product fields out of candidate containers and
// composes the per-URL extraction pipeline. Every "try A, else B, else C"
// cascade is an ordered data table walked with early exit.
package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/use-agent/harvest/models"
)

// Title length bounds for the selector and alt-text strategies.
const (
	minSelectorTitleLen = 6
	maxSelectorTitleLen = 199
	minSegmentTitleLen  = 11
)

// titleMatchers is the title-ish selector cascade: class/attribute
// containing title/name/heading, plus schema.org itemprop.
var titleMatchers = []cascadia.Selector{
	cascadia.MustCompile(`[class*="title"]`),
	cascadia.MustCompile(`[class*="name"]`),
	cascadia.MustCompile(`[class*="heading"]`),
	cascadia.MustCompile(`[itemprop="name"]`),
}

// reNumericSegment matches text that is purely numeric/currency noise.
var reNumericSegment = regexp.MustCompile(`^[\s\d.,\-$€£₹¥]+$`)

// Title extracts a product title from one container, trying in order:
// first non-empty heading, the title-ish selector cascade, image alt text,
// and finally the first substantial split-text segment. The result is
// truncated to 200 characters; empty means no title found.
func Title(sel *goquery.Selection) string {
	if t := headingTitle(sel); t != "" {
		return truncateTitle(t)
	}

	for _, m := range titleMatchers {
		text := cleanText(sel.FindMatcher(m).First().Text())
		if n := len(text); n >= minSelectorTitleLen && n <= maxSelectorTitleLen {
			return truncateTitle(text)
		}
	}

	if alt, ok := sel.Find("img").First().Attr("alt"); ok {
		alt = cleanText(alt)
		if n := len(alt); n >= minSelectorTitleLen && n <= maxSelectorTitleLen {
			return truncateTitle(alt)
		}
	}

	for _, seg := range textSegments(sel) {
		n := len(seg)
		if n >= minSegmentTitleLen && n < maxSelectorTitleLen && !reNumericSegment.MatchString(seg) {
			return truncateTitle(seg)
		}
	}

	return ""
}

// headingTitle returns the first non-empty h1..h6 text in the container.
func headingTitle(sel *goquery.Selection) string {
	title := ""
	sel.Find("h1, h2, h3, h4, h5, h6").EachWithBreak(func(_ int, h *goquery.Selection) bool {
		if t := cleanText(h.Text()); t != "" {
			title = t
			return false
		}
		return true
	})
	return title
}

// textSegments collects the container's individual text nodes in document
// order, skipping script and style bodies.
func textSegments(sel *goquery.Selection) []string {
	var segments []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			if seg := cleanText(n.Data); seg != "" {
				segments = append(segments, seg)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, node := range sel.Nodes {
		walk(node)
	}
	return segments
}

// cleanText collapses all whitespace runs to single spaces and trims.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateTitle(s string) string {
	if len(s) > models.MaxTitleLen {
		return s[:models.MaxTitleLen]
	}
	return s
}
