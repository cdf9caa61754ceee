package crawler

import (
	"strings"

	"github.com/minlano/ssg-price-tracker/helpers"

	"github.com/PuerkitoBio/goquery"
)

// Link is one discovered product link with its surrounding selection kept
// for neighborhood extraction.
type Link struct {
	URL string
	ID  string

	sel *goquery.Selection
}

// DiscoverLinks collects up to max non-ad product links from a listing
// page, in document order, dropping sponsored slots and duplicate URLs.
func (e *Extractor) DiscoverLinks(doc *goquery.Document, max int) []Link {
	if max <= 0 {
		return nil
	}

	links := make([]Link, 0, max)
	seen := make(map[string]struct{}, max)

	doc.Find(e.profile.LinkSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, ok := s.Attr("href")
		if !ok || href == "" {
			return true
		}
		if e.isAd(href, s.Text()) {
			return true
		}

		url := e.resolveURL(href)
		if url == "" {
			return true
		}
		if _, dup := seen[url]; dup {
			return true
		}
		seen[url] = struct{}{}

		links = append(links, Link{URL: url, ID: e.itemID(href), sel: s})
		return len(links) < max
	})

	return links
}

// isAd flags sponsored slots by href and link-text markers
func (e *Extractor) isAd(href, text string) bool {
	for _, marker := range e.profile.AdMarkers {
		if strings.Contains(href, marker) {
			return true
		}
	}
	for _, marker := range e.profile.AdTextMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

// itemID extracts the site's item id from an href, empty when absent
func (e *Extractor) itemID(href string) string {
	tail, err := helpers.GetSplitPart(href, e.profile.IDParam, 1)
	if err != nil {
		return ""
	}
	if i := strings.IndexAny(tail, "&#"); i >= 0 {
		tail = tail[:i]
	}
	return tail
}

// resolveURL makes an href absolute against the profile's base URL and
// strips any fragment.
func (e *Extractor) resolveURL(href string) string {
	if i := strings.Index(href, "#"); i >= 0 {
		href = href[:i]
	}
	if href == "" {
		return ""
	}

	switch {
	case strings.HasPrefix(href, "http://"), strings.HasPrefix(href, "https://"):
		return href
	case strings.HasPrefix(href, "//"):
		return "https:" + href
	case strings.HasPrefix(href, "/"):
		return strings.TrimSuffix(e.profile.BaseURL, "/") + href
	default:
		return strings.TrimSuffix(e.profile.BaseURL, "/") + "/" + href
	}
}
