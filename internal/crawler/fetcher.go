package crawler

import (
	"context"
	"sync"
	"time"

	"github.com/minlano/ssg-price-tracker/config"
	"github.com/minlano/ssg-price-tracker/helpers"
	"github.com/minlano/ssg-price-tracker/logger"
	apperrors "github.com/minlano/ssg-price-tracker/pkg/errors"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/semaphore"
)

// NewFetcher selects a fetcher implementation by capability: a bounded
// concurrent fetcher when a positive permit count is configured, the serial
// fallback otherwise.
func NewFetcher(cfg *config.Config) Fetcher {
	if cfg.MaxConcurrentFetches > 0 {
		logger.ForFetcher().Debug().
			Int("permits", cfg.MaxConcurrentFetches).
			Msg("Using bounded fetcher")
		return NewBoundedFetcher(cfg.MaxConcurrentFetches, cfg.FetchTimeout)
	}
	logger.ForFetcher().Debug().Msg("Using serial fetcher")
	return NewSerialFetcher(cfg.FetchTimeout)
}

// BoundedFetcher limits in-flight fetches with a fixed-size permit pool.
// The pool is shared by every caller holding the same instance, so crawls
// and tracker passes contend for the same permits.
type BoundedFetcher struct {
	sem     *semaphore.Weighted
	timeout time.Duration
}

// NewBoundedFetcher creates a fetcher with the given permit count
func NewBoundedFetcher(permits int, timeout time.Duration) *BoundedFetcher {
	return &BoundedFetcher{
		sem:     semaphore.NewWeighted(int64(permits)),
		timeout: timeout,
	}
}

// Fetch retrieves and parses a URL. The permit is acquired under the same
// deadline as the request itself, so a fetch blocked on the pool fails with
// a retryable error once the timeout elapses.
func (f *BoundedFetcher) Fetch(ctx context.Context, url string) (*goquery.Document, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	if err := f.sem.Acquire(ctx, 1); err != nil {
		return nil, apperrors.NewNetwork(url, "no fetch permit before deadline", err)
	}
	defer f.sem.Release(1)

	return fetchDocument(ctx, url)
}

// SerialFetcher is the single-threaded fallback: same contract, one fetch
// at a time.
type SerialFetcher struct {
	mu      sync.Mutex
	timeout time.Duration
}

// NewSerialFetcher creates the serial fallback fetcher
func NewSerialFetcher(timeout time.Duration) *SerialFetcher {
	return &SerialFetcher{timeout: timeout}
}

// Fetch retrieves and parses a URL, serializing all callers
func (f *SerialFetcher) Fetch(ctx context.Context, url string) (*goquery.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	return fetchDocument(ctx, url)
}

// fetchDocument is the shared transport + parse path for both fetchers
func fetchDocument(ctx context.Context, url string) (*goquery.Document, error) {
	body, err := helpers.FetchWithRandomHeaders(ctx, url)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, apperrors.NewParsing(url, "failed to parse HTML", err)
	}
	return doc, nil
}
