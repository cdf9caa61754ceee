package crawler

import (
	"context"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Confidence marks whether an item was resolved from real page content or
// synthesized as a low-confidence placeholder.
type Confidence string

const (
	ConfidenceResolved    Confidence = "resolved"
	ConfidencePlaceholder Confidence = "placeholder"
)

// Item represents one extracted product listing.
// Prices are in KRW. URL is the canonical item link and serves as the
// identity key when deduplicating within a single crawl.
type Item struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Price         int64      `json:"price"`
	OriginalPrice int64      `json:"original_price,omitempty"`
	DiscountRate  int        `json:"discount_rate,omitempty"`
	ImageURL      string     `json:"image_url,omitempty"`
	Brand         string     `json:"brand"`
	Source        string     `json:"source"`
	URL           string     `json:"url"`
	Confidence    Confidence `json:"confidence"`
	FetchedAt     time.Time  `json:"fetched_at"`
}

// Candidate is a scored text fragment considered during name selection.
// Never persisted; higher score wins, ties resolved by first-seen order.
type Candidate struct {
	Text  string
	Score int
}

// Fetcher retrieves a URL and parses it into a document. Implementations
// differ only in how they bound concurrency; behavior is otherwise identical.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*goquery.Document, error)
}

// SiteProfile contains the selectors and URL shapes for one source site.
type SiteProfile struct {
	Name      string
	SearchURL string // keyword is appended URL-escaped
	BaseURL   string

	LinkSelector  string
	AdMarkers     []string // href substrings that mark sponsored slots
	AdTextMarkers []string // link-text substrings that mark sponsored slots
	IDParam       string   // query fragment preceding the item id

	NameSelectors      []string // listing neighborhood name elements
	PageNameSelectors  []string // detail page name elements
	PagePriceSelectors []string // detail page price elements
	BrandSelectors     []string
	ImageSelectors     []string
}

// SSGProfile returns the selector profile for ssg.com.
func SSGProfile(searchURL, baseURL string) SiteProfile {
	return SiteProfile{
		Name:          "SSG",
		SearchURL:     searchURL,
		BaseURL:       baseURL,
		LinkSelector:  `a[href*="itemView.ssg"][href*="itemId="]`,
		AdMarkers:     []string{"advertBidId", "advertExtensTeryDivCd"},
		AdTextMarkers: []string{"ADAD"},
		IDParam:       "itemId=",
		NameSelectors: []string{
			".cunit_tit", ".item_tit", ".prod_tit", ".tit", ".title",
		},
		PageNameSelectors: []string{
			"h2.cdtl_prd_nm", "h1.cdtl_prd_nm", ".prod_tit", "title",
		},
		PagePriceSelectors: []string{
			".cdtl_price .blind", ".cdtl_old_price .blind",
			".price_original", ".price_discount", ".ssg_price", ".price",
		},
		BrandSelectors: []string{
			".cunit_brand", ".brand_name", ".brand", ".maker", ".vendor",
		},
		ImageSelectors: []string{
			".cunit_img img", ".prod_img img", ".item_img img", "img",
		},
	}
}
