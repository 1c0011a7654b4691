package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/PuerkitoBio/goquery"

	"github.com/use-agent/harvest/llm"
	"github.com/use-agent/harvest/locate"
	"github.com/use-agent/harvest/models"
)

// maxFallbackContainers caps how many candidate fragments are sent to the
// completion service.
const maxFallbackContainers = 3

// FallbackExtractor is the model-assisted last resort, invoked only when
// structural and link-following heuristics found nothing but candidate
// markup exists. It is best-effort: every service error, timeout, or
// malformed response is swallowed and the caller falls through to the
// placeholder record.
type FallbackExtractor struct {
	completer llm.Completer
	conv      *converter.Converter
}

// NewFallbackExtractor wires the completion capability. Candidate markup is
// converted to Markdown before prompting to keep fragments small.
func NewFallbackExtractor(completer llm.Completer) *FallbackExtractor {
	return &FallbackExtractor{
		completer: completer,
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
			),
		),
	}
}

// fallbackEntry mirrors the array elements the completion is asked for.
// Price is loosely typed because models return both strings and numbers.
type fallbackEntry struct {
	Title string `json:"title"`
	Link  string `json:"link"`
	Price any    `json:"price"`
}

// Extract prompts the completion service with up to three candidate
// fragments and parses the first well-formed JSON array in the response.
// A nil result means the fallback produced nothing usable.
func (f *FallbackExtractor) Extract(ctx context.Context, containers []*goquery.Selection, base *url.URL, limit int) []models.ProductRecord {
	prompt, ok := f.buildPrompt(containers, base)
	if !ok {
		return nil
	}

	response, err := f.completer.Complete(ctx, prompt)
	if err != nil {
		slog.Debug("model fallback completion failed", "error", err)
		return nil
	}

	entries := parseFirstArray(response)
	if entries == nil {
		slog.Debug("model fallback returned no parseable array")
		return nil
	}

	var records []models.ProductRecord
	for _, e := range entries {
		if limit > 0 && len(records) >= limit {
			break
		}
		rec := models.ProductRecord{
			Title: truncateTitle(cleanText(e.Title)),
			Price: NormalizePrice(priceString(e.Price)),
			Link:  base.String(),
		}
		if e.Link != "" {
			if abs, resolved := locate.Absolute(base, e.Link); resolved {
				rec.Link = abs
			}
		}
		if rec.Title == "" && rec.Price == "" {
			continue
		}
		records = append(records, rec)
	}
	return records
}

func (f *FallbackExtractor) buildPrompt(containers []*goquery.Selection, base *url.URL) (string, bool) {
	var b strings.Builder
	b.WriteString("Extract every product from the page fragments below.\n")
	b.WriteString(`Return ONLY a JSON array of objects with fields "title", "link", "price".`)
	b.WriteString("\nUse null for fields you cannot find. No markdown fences, no explanation.\n")

	count := 0
	for _, sel := range containers {
		if count >= maxFallbackContainers {
			break
		}
		rawHTML, err := goquery.OuterHtml(sel)
		if err != nil || strings.TrimSpace(rawHTML) == "" {
			continue
		}
		fragment, err := f.conv.ConvertString(rawHTML, converter.WithDomain(base.Host))
		if err != nil || strings.TrimSpace(fragment) == "" {
			fragment = rawHTML
		}
		count++
		fmt.Fprintf(&b, "\nFragment %d:\n%s\n", count, fragment)
	}
	return b.String(), count > 0
}

// parseFirstArray scans the response for the first well-formed JSON array
// of entries. Models often wrap the array in prose; a streaming decoder
// started at each '[' tolerates trailing text.
func parseFirstArray(response string) []fallbackEntry {
	for i := 0; i < len(response); i++ {
		if response[i] != '[' {
			continue
		}
		var entries []fallbackEntry
		dec := json.NewDecoder(strings.NewReader(response[i:]))
		if err := dec.Decode(&entries); err == nil {
			return entries
		}
	}
	return nil
}

func priceString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return fmt.Sprintf("%.2f", t)
	default:
		return fmt.Sprint(t)
	}
}
