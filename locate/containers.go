// Package locate finds candidate product containers and product-detail
// links in a parsed page. The cascades and keyword lists are plain data so
// the control flow stays a single early-exit iteration.
package locate

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// minListingMatches guards against mistaking a single banner for a listing:
// a structural pattern only wins with at least this many matches.
const minListingMatches = 2

// minClassGroup is the repetition threshold for the statistical fallback.
const minClassGroup = 3

// maxAdjacencyAnchors caps the link-adjacency scan.
const maxAdjacencyAnchors = 50

// containerPatterns is the structural selector cascade, tried in order.
var containerPatterns = []cascadia.Selector{
	cascadia.MustCompile(`div[class*="product"], li[class*="product"], article[class*="product"], section[class*="product"]`),
	cascadia.MustCompile(`div[class*="product-item"], div[class*="product-card"], div[class*="ProductCard"]`),
	cascadia.MustCompile(`div[class*="grid-item"], div[class*="collection-item"]`),
	cascadia.MustCompile(`div[class*="item"][class*="grid"], div[class*="card"], div[class*="tile"]`),
	cascadia.MustCompile(`div[data-product], article[data-product]`),
}

// classGroupKeywords qualify a repeated class string as product-ish for the
// statistical fallback.
var classGroupKeywords = []string{"product", "item", "card", "tile"}

// skipHrefPrefixes are anchor targets that never lead to content.
var skipHrefPrefixes = []string{"#", "javascript:", "mailto:", "tel:"}

// Containers returns candidate product containers in document order.
//
// The cascade is strict: the first rule yielding enough matches wins.
//  1. Structural selector cascade (first pattern with >=2 matches).
//  2. Statistical fallback: block elements grouped by exact class string;
//     the first group of >=3 with a product-ish class wins.
//  3. Link-adjacency fallback: each anchor's immediate parent, first 50
//     anchors scanned.
//
// listing reports whether a rule produced enough matches to treat the page
// as a listing. When it is false, the returned candidates (zero or one
// structural matches) are only useful as raw markup for the model-assisted
// fallback.
func Containers(doc *goquery.Document) (candidates []*goquery.Selection, listing bool) {
	var structural []*goquery.Selection
	for _, pattern := range containerPatterns {
		matches := splitSelection(doc.FindMatcher(pattern))
		if len(matches) >= minListingMatches {
			return matches, true
		}
		if structural == nil && len(matches) > 0 {
			structural = matches
		}
	}

	if group := classGroups(doc); len(group) >= minClassGroup {
		return group, true
	}

	if parents := anchorParents(doc); len(parents) >= minListingMatches {
		return parents, true
	}

	return structural, false
}

// classGroups groups block-level elements by their exact class string and
// returns the first product-ish group of minClassGroup or more, in
// first-appearance order.
func classGroups(doc *goquery.Document) []*goquery.Selection {
	groups := make(map[string][]*goquery.Selection)
	var order []string

	doc.Find("div, li, article, section").Each(func(_ int, s *goquery.Selection) {
		class, ok := s.Attr("class")
		class = strings.TrimSpace(class)
		if !ok || class == "" {
			return
		}
		if _, seen := groups[class]; !seen {
			order = append(order, class)
		}
		groups[class] = append(groups[class], s)
	})

	for _, class := range order {
		group := groups[class]
		if len(group) < minClassGroup {
			continue
		}
		lower := strings.ToLower(class)
		for _, kw := range classGroupKeywords {
			if strings.Contains(lower, kw) {
				return group
			}
		}
	}
	return nil
}

// anchorParents collects each anchor's immediate parent as a candidate,
// skipping fragment/javascript:/mailto:/tel: targets and deduplicating
// parents that hold several anchors.
func anchorParents(doc *goquery.Document) []*goquery.Selection {
	var parents []*goquery.Selection
	seen := make(map[*html.Node]bool)

	doc.Find("a[href]").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if i >= maxAdjacencyAnchors {
			return false
		}
		href, _ := s.Attr("href")
		if skipHref(href) {
			return true
		}
		parent := s.Parent()
		if len(parent.Nodes) == 0 || seen[parent.Nodes[0]] {
			return true
		}
		seen[parent.Nodes[0]] = true
		parents = append(parents, parent)
		return true
	})
	return parents
}

func skipHref(href string) bool {
	href = strings.TrimSpace(strings.ToLower(href))
	if href == "" {
		return true
	}
	for _, prefix := range skipHrefPrefixes {
		if strings.HasPrefix(href, prefix) {
			return true
		}
	}
	return false
}

// splitSelection turns one matched set into per-node selections, preserving
// document order.
func splitSelection(sel *goquery.Selection) []*goquery.Selection {
	out := make([]*goquery.Selection, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, s)
	})
	return out
}
