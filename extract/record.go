package extract

import (
	"net/url"

	"github.com/PuerkitoBio/goquery"

	"github.com/use-agent/harvest/locate"
	"github.com/use-agent/harvest/models"
)

// FromContainer builds a record from one candidate container. doc, when
// non-nil, enables the page-wide script fallback for prices. The record's
// link is the container's first anchor resolved against base, falling back
// to the page URL itself. ok is false when neither title nor price was
// found.
func FromContainer(sel *goquery.Selection, base *url.URL, doc *goquery.Document) (models.ProductRecord, bool) {
	rec := models.ProductRecord{
		Title: Title(sel),
		Price: Price(sel, doc),
		Link:  base.String(),
	}

	if href, ok := sel.Find("a[href]").First().Attr("href"); ok {
		if abs, resolved := locate.Absolute(base, href); resolved {
			rec.Link = abs
		}
	}

	return rec, rec.Title != "" || rec.Price != ""
}

// FromDetailPage builds a record from a product-detail page. The title
// preference is the page's first <h1>, then the og:title meta tag, then
// the document title.
func FromDetailPage(doc *goquery.Document, pageURL string) (models.ProductRecord, bool) {
	title := cleanText(doc.Find("h1").First().Text())
	if title == "" {
		title, _ = doc.Find(`meta[property="og:title"]`).First().Attr("content")
		title = cleanText(title)
	}
	if title == "" {
		title = cleanText(doc.Find("title").First().Text())
	}

	rec := models.ProductRecord{
		Title: truncateTitle(title),
		Price: Price(doc.Selection, doc),
		Link:  pageURL,
	}
	return rec, rec.Title != "" || rec.Price != ""
}
