// Package dedupe canonicalizes record sets. Both policies preserve
// first-occurrence order and are idempotent under re-application.
package dedupe

import "github.com/use-agent/harvest/models"

// ByTitleLink keys records on (title, link) and drops records with an
// empty title. Default policy for single-pipeline results and batch
// finalization.
func ByTitleLink(records []models.ProductRecord) []models.ProductRecord {
	type key struct{ title, link string }
	seen := make(map[key]bool, len(records))
	out := make([]models.ProductRecord, 0, len(records))

	for _, rec := range records {
		if rec.Title == "" {
			continue
		}
		k := key{rec.Title, rec.Link}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, rec)
	}
	return out
}

// ByLink keys records on link alone: one physical page contributes one
// record. Suited to record sets whose links are known to be distinct
// detail pages; untitled listing records sharing a page-URL fallback
// link would collapse under it.
func ByLink(records []models.ProductRecord) []models.ProductRecord {
	seen := make(map[string]bool, len(records))
	out := make([]models.ProductRecord, 0, len(records))

	for _, rec := range records {
		if seen[rec.Link] {
			continue
		}
		seen[rec.Link] = true
		out = append(out, rec)
	}
	return out
}
