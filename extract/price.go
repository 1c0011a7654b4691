package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

// Plausibility bounds for normalized prices (exclusive).
const (
	minPlausiblePrice = 0
	maxPlausiblePrice = 1_000_000
)

// priceMatchers is the price-ish selector cascade.
var priceMatchers = []cascadia.Selector{
	cascadia.MustCompile(`[itemprop="price"]`),
	cascadia.MustCompile(`[class*="price"]`),
	cascadia.MustCompile(`[class*="amount"]`),
	cascadia.MustCompile(`[class*="cost"]`),
	cascadia.MustCompile(`[class*="money"]`),
	cascadia.MustCompile(`[data-price]`),
}

// priceAttrs are checked when a matched element's text has no usable number.
var priceAttrs = []string{"content", "data-price", "value", "aria-label"}

var (
	// reNumeric grabs the first numeric run (with separators) in a string.
	reNumeric = regexp.MustCompile(`\d[\d,.]*`)

	// reCurrencyAdjacent finds numbers next to a currency marker in free text.
	reCurrencyAdjacent = regexp.MustCompile(`(?i)(?:[$€£₹¥]|Rs\.?|USD|EUR|GBP)\s*\d[\d,.]*|\d[\d,.]*\s*(?:[$€£₹¥]|USD|EUR|GBP)`)

	// reScriptPrice finds "price": "<number>" tokens in inline script bodies.
	reScriptPrice = regexp.MustCompile(`"price"\s*[:=]\s*"?(\d[\d,.]*)"?`)

	// rePriceChars strips everything but digits and separators.
	rePriceChars = regexp.MustCompile(`[^\d,.]`)
)

// Price extracts a normalized price from one container. doc, when non-nil,
// is the whole page and enables the inline-script fallback. Empty result
// means no plausible price was found.
func Price(sel *goquery.Selection, doc *goquery.Document) string {
	for _, m := range priceMatchers {
		el := sel.FindMatcher(m).First()
		if el.Length() == 0 {
			continue
		}
		if p := NormalizePrice(reNumeric.FindString(el.Text())); p != "" {
			return p
		}
		for _, attr := range priceAttrs {
			if v, ok := el.Attr(attr); ok {
				if p := NormalizePrice(reNumeric.FindString(v)); p != "" {
					return p
				}
			}
		}
	}

	if m := reCurrencyAdjacent.FindString(sel.Text()); m != "" {
		if p := NormalizePrice(reNumeric.FindString(m)); p != "" {
			return p
		}
	}

	if doc != nil {
		price := ""
		doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if m := reScriptPrice.FindStringSubmatch(s.Text()); m != nil {
				if p := NormalizePrice(m[1]); p != "" {
					price = p
					return false
				}
			}
			return true
		})
		if price != "" {
			return price
		}
	}

	return ""
}

// NormalizePrice turns raw price text into fixed two-decimal form.
//
// Rules: strip everything but digits and separators; treat "," as a
// thousands separator, unless no "." is present and the comma is followed
// by exactly two trailing digits (then it is the decimal mark, as in
// "19,99"); reject values outside the plausibility bounds. Empty result
// means rejection.
func NormalizePrice(raw string) string {
	cleaned := rePriceChars.ReplaceAllString(raw, "")
	if cleaned == "" {
		return ""
	}

	if strings.Contains(cleaned, ".") {
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	} else if i := strings.LastIndex(cleaned, ","); i >= 0 && len(cleaned)-i-1 == 2 {
		cleaned = strings.ReplaceAll(cleaned[:i], ",", "") + "." + cleaned[i+1:]
	} else {
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	}

	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || v <= minPlausiblePrice || v >= maxPlausiblePrice {
		return ""
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}
