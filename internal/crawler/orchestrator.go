package crawler

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/minlano/ssg-price-tracker/config"
	"github.com/minlano/ssg-price-tracker/logger"
	apperrors "github.com/minlano/ssg-price-tracker/pkg/errors"
	"github.com/minlano/ssg-price-tracker/services/cache"
)

const defaultSearchLimit = 10

// Orchestrator runs keyword searches end to end: cache lookup, listing
// fetch, bounded link fan-out, detail-page refinement, ordered dedup and
// placeholder fill. Search degrades instead of failing; only invalid input
// produces an error.
type Orchestrator struct {
	fetcher   Fetcher
	extractor *Extractor
	cache     cache.CacheService

	ttl      time.Duration
	multiple int
	log      *logger.Logger
}

// NewOrchestrator wires a crawl orchestrator from its collaborators
func NewOrchestrator(fetcher Fetcher, extractor *Extractor, c cache.CacheService, cfg *config.Config) *Orchestrator {
	return &Orchestrator{
		fetcher:   fetcher,
		extractor: extractor,
		cache:     c,
		ttl:       cfg.CacheTTL,
		multiple:  cfg.CandidateMultiple,
		log:       logger.ForCrawler(),
	}
}

// searchCacheKey derives the cache key for one keyword+limit pair
func searchCacheKey(keyword string, limit int) string {
	sum := md5.Sum([]byte(fmt.Sprintf("search:%s:%d", keyword, limit)))
	return hex.EncodeToString(sum[:])
}

// Search returns up to limit items for a keyword. Results come from the
// cache when fresh; otherwise the listing page is crawled, candidate links
// are refined concurrently against their detail pages, and the deduplicated
// results are cached. A failed or empty crawl yields placeholder items with
// a nil error.
func (o *Orchestrator) Search(ctx context.Context, keyword string, limit int) ([]Item, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, apperrors.NewValidation("search", "keyword must not be empty")
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	key := searchCacheKey(keyword, limit)
	if data, ok := o.cacheGet(key); ok {
		var items []Item
		if err := json.Unmarshal(data, &items); err == nil {
			o.log.Debug().Str("keyword", keyword).Msg("Cache hit")
			return items, nil
		}
		o.cacheDelete(key)
	}

	searchURL := o.extractor.Profile().SearchURL + url.QueryEscape(keyword)
	doc, err := o.fetcher.Fetch(ctx, searchURL)
	if err != nil {
		o.log.Warn().Err(err).Str("keyword", keyword).
			Msg("Search page fetch failed, returning placeholders")
		return o.extractor.PlaceholderItems(keyword, limit), nil
	}

	links := o.extractor.DiscoverLinks(doc, limit*o.multiple)
	items := o.refine(ctx, links, keyword)
	items = dedupItems(items)
	if len(items) > limit {
		items = items[:limit]
	}

	if len(items) == 0 {
		o.log.Warn().Str("keyword", keyword).Msg("No items extracted, returning placeholders")
		return o.extractor.PlaceholderItems(keyword, limit), nil
	}

	if data, err := json.Marshal(items); err == nil {
		o.cacheSet(key, data)
	}

	o.log.Info().
		Str("keyword", keyword).
		Int("links", len(links)).
		Int("items", len(items)).
		Msg("Search complete")
	return items, nil
}

// SearchSorted runs Search and orders the result by price. Placeholder
// items keep their relative order after resolved ones when ascending.
func (o *Orchestrator) SearchSorted(ctx context.Context, keyword string, limit int, ascending bool) ([]Item, error) {
	items, err := o.Search(ctx, keyword, limit)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool {
		if ascending {
			return items[i].Price < items[j].Price
		}
		return items[i].Price > items[j].Price
	})
	return items, nil
}

// refine fetches each candidate's detail page concurrently and merges the
// page item with the listing-neighborhood item. A candidate whose page
// fetch fails is dropped; document order is preserved via indexed results.
func (o *Orchestrator) refine(ctx context.Context, links []Link, keyword string) []Item {
	results := make([]*Item, len(links))
	var wg sync.WaitGroup

	for i, link := range links {
		wg.Add(1)
		go func(i int, link Link) {
			defer wg.Done()

			base := o.extractor.ItemFromNeighborhood(link, keyword)

			pageDoc, err := o.fetcher.Fetch(ctx, link.URL)
			if err != nil {
				o.log.Debug().Err(err).Str("url", link.URL).Msg("Item page fetch failed, dropping candidate")
				return
			}

			page := o.extractor.FromProductPage(pageDoc, link.URL, keyword)
			merged := mergeItem(base, page)
			results[i] = &merged
		}(i, link)
	}
	wg.Wait()

	items := make([]Item, 0, len(links))
	for _, r := range results {
		if r != nil {
			items = append(items, *r)
		}
	}
	return items
}

// mergeItem prefers detail-page fields and falls back to the listing
// neighborhood per field.
func mergeItem(base, page Item) Item {
	merged := page
	merged.ID = base.ID

	if merged.Confidence != ConfidenceResolved {
		merged.Name = base.Name
		merged.Confidence = base.Confidence
	}
	if merged.Price == 0 {
		merged.Price = base.Price
	}
	if merged.Brand == "" || merged.Brand == brandUnknown {
		if base.Brand != "" {
			merged.Brand = base.Brand
		}
	}
	if merged.ImageURL == "" {
		merged.ImageURL = base.ImageURL
	}
	if merged.OriginalPrice > merged.Price && merged.Price > 0 {
		merged.DiscountRate = int((merged.OriginalPrice - merged.Price) * 100 / merged.OriginalPrice)
	} else {
		merged.OriginalPrice = 0
		merged.DiscountRate = 0
	}
	return merged
}

// dedupItems drops an item when its URL or its extracted name was already
// accepted, keeping first-seen order. The name check catches the same
// product listed under different URLs.
func dedupItems(items []Item) []Item {
	seenURLs := make(map[string]struct{}, len(items))
	seenNames := make(map[string]struct{}, len(items))
	out := items[:0]
	for _, item := range items {
		if _, dup := seenURLs[item.URL]; dup {
			continue
		}
		if _, dup := seenNames[item.Name]; dup {
			continue
		}
		seenURLs[item.URL] = struct{}{}
		seenNames[item.Name] = struct{}{}
		out = append(out, item)
	}
	return out
}

// cache helpers: the cache is advisory, so failures are logged and ignored

func (o *Orchestrator) cacheGet(key string) ([]byte, bool) {
	if o.cache == nil {
		return nil, false
	}
	data, ok, err := o.cache.Get(key)
	if err != nil {
		o.log.Debug().Err(err).Msg("Cache get failed")
		return nil, false
	}
	return data, ok
}

func (o *Orchestrator) cacheSet(key string, data []byte) {
	if o.cache == nil {
		return
	}
	if err := o.cache.Set(key, data, o.ttl); err != nil {
		o.log.Debug().Err(err).Msg("Cache set failed")
	}
}

func (o *Orchestrator) cacheDelete(key string) {
	if o.cache == nil {
		return
	}
	if err := o.cache.Delete(key); err != nil {
		o.log.Debug().Err(err).Msg("Cache delete failed")
	}
}
