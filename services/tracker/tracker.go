package tracker

import (
	"context"
	"time"

	"github.com/minlano/ssg-price-tracker/config"
	"github.com/minlano/ssg-price-tracker/internal/crawler"
	"github.com/minlano/ssg-price-tracker/logger"
	apperrors "github.com/minlano/ssg-price-tracker/pkg/errors"
	"github.com/minlano/ssg-price-tracker/services/notify"
	"github.com/minlano/ssg-price-tracker/services/store"

	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"
)

// streamTrimmer is implemented by notifiers with trimmable backlogs
type streamTrimmer interface {
	TrimStreams() error
}

// Tracker periodically re-checks every active watch, records observations
// and fires alerts. A pass paces item fetches with a rate limiter and
// isolates per-watch failures; one bad item never aborts the pass.
type Tracker struct {
	fetcher   crawler.Fetcher
	extractor *crawler.Extractor
	store     store.Store
	notifier  notify.Notifier

	limiter       *rate.Limiter
	checkInterval time.Duration
	purgeSpec     string
	retentionDays int

	cron *cron.Cron
	log  *logger.Logger
}

// New wires a tracker from its collaborators
func New(fetcher crawler.Fetcher, extractor *crawler.Extractor, st store.Store, notifier notify.Notifier, cfg *config.Config) *Tracker {
	return &Tracker{
		fetcher:       fetcher,
		extractor:     extractor,
		store:         st,
		notifier:      notifier,
		limiter:       rate.NewLimiter(rate.Every(cfg.ItemDelay), 1),
		checkInterval: cfg.CheckInterval,
		purgeSpec:     cfg.PurgeSpec,
		retentionDays: cfg.RetentionDays,
		log:           logger.ForTracker(),
	}
}

// Start schedules the periodic price pass and the retention purge
func (t *Tracker) Start(ctx context.Context) error {
	t.cron = cron.New()

	if _, err := t.cron.AddFunc("@every "+t.checkInterval.String(), func() {
		t.CheckPrices(ctx)
	}); err != nil {
		return apperrors.NewConfiguration("failed to schedule price checks", err)
	}
	if _, err := t.cron.AddFunc(t.purgeSpec, func() {
		t.Purge()
	}); err != nil {
		return apperrors.NewConfiguration("failed to schedule retention purge", err)
	}

	t.cron.Start()
	t.log.Info().
		Dur("interval", t.checkInterval).
		Str("purgeSpec", t.purgeSpec).
		Msg("Tracker started")
	return nil
}

// Stop halts scheduling and waits for a running pass to finish
func (t *Tracker) Stop() {
	if t.cron == nil {
		return
	}
	<-t.cron.Stop().Done()
	t.log.Info().Msg("Tracker stopped")
}

// Watch registers an item for tracking and seeds its history with the
// item's current price when one is known. An empty userRef leaves the
// watch unclaimed and inactive until ClaimWatches assigns it.
func (t *Tracker) Watch(item crawler.Item, targetPrice int64, userRef string) (int64, error) {
	id, err := t.store.AddWatch(store.WatchedItem{
		ItemID:      item.ID,
		Name:        item.Name,
		URL:         item.URL,
		TargetPrice: targetPrice,
		UserRef:     userRef,
	})
	if err != nil {
		return 0, err
	}

	if item.Price > 0 && item.Confidence == crawler.ConfidenceResolved {
		if err := t.store.AppendObservation(id, item.Price, item.FetchedAt); err != nil {
			t.log.Warn().Err(err).Int64("watchId", id).Msg("Failed to seed price history")
		}
	}
	return id, nil
}

// ClaimWatches assigns every unclaimed watch to userRef and activates it
func (t *Tracker) ClaimWatches(userRef string) (int64, error) {
	n, err := t.store.ClaimWatches(userRef)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		t.log.Info().Int64("claimed", n).Str("userRef", userRef).Msg("Watches claimed")
	}
	return n, nil
}

// Unwatch deactivates a watch, keeping its history and alert log
func (t *Tracker) Unwatch(id int64) error {
	return t.store.RemoveWatch(id)
}

// PriceHistory returns the watch's observations from the last `days` days
func (t *Tracker) PriceHistory(watchID int64, days int) ([]store.PriceObservation, error) {
	if days <= 0 {
		days = t.retentionDays
	}
	return t.store.History(watchID, days)
}

// RecentAlerts returns the newest fired alerts, most recent first
func (t *Tracker) RecentAlerts(limit int) ([]store.AlertEvent, error) {
	return t.store.RecentAlerts(limit)
}

// CheckPrices runs one pass over every active watch. The pass stops early
// only when the context is cancelled.
func (t *Tracker) CheckPrices(ctx context.Context) {
	watches, err := t.store.ActiveWatches()
	if err != nil {
		t.log.Error().Err(err).Msg("Failed to list watches")
		return
	}

	checked, failed := 0, 0
	for _, w := range watches {
		if err := t.limiter.Wait(ctx); err != nil {
			t.log.Warn().Err(err).Msg("Price pass cancelled")
			return
		}
		if err := t.checkWatch(ctx, w); err != nil {
			failed++
			logger.LogError("tracker", err, "Failed to check watch %d (%s)", w.ID, w.URL)
			continue
		}
		checked++
	}

	t.log.Info().
		Int("watches", len(watches)).
		Int("checked", checked).
		Int("failed", failed).
		Msg("Price pass complete")
}

// checkWatch fetches one watch's page, records the price and evaluates
// alerts against the history recorded before this observation.
func (t *Tracker) checkWatch(ctx context.Context, w store.WatchedItem) error {
	doc, err := t.fetcher.Fetch(ctx, w.URL)
	if err != nil {
		return err
	}

	price := t.extractor.PagePrice(doc)
	if price == 0 {
		return apperrors.NewParsing(w.URL, "no price found on page", nil)
	}

	prevMin, hadMin, err := t.store.MinPrice(w.ID)
	if err != nil {
		return err
	}
	lastPrice, hadLast, err := t.store.LastPrice(w.ID)
	if err != nil {
		return err
	}

	if err := t.store.TouchWatch(w.ID); err != nil {
		t.log.Warn().Err(err).Int64("watchId", w.ID).Msg("Failed to update last-checked")
	}

	// unchanged price: no observation, no alert evaluation
	if hadLast && price == lastPrice {
		t.log.Debug().Int64("watchId", w.ID).Int64("price", price).Msg("Price unchanged")
		return nil
	}

	if err := t.store.AppendObservation(w.ID, price, time.Now()); err != nil {
		return err
	}

	oldPrice := price
	if hadLast {
		oldPrice = lastPrice
	}

	if hadMin && price <= prevMin {
		t.fire(w, store.AlertNewMinimum, oldPrice, price)
	}
	if w.TargetPrice > 0 && price <= w.TargetPrice {
		t.fire(w, store.AlertTargetReached, oldPrice, price)
	}
	return nil
}

// fire records and delivers one alert unless the same tuple already fired.
// Delivery failures are logged; the audit record still stands.
func (t *Tracker) fire(w store.WatchedItem, kind store.AlertKind, oldPrice, newPrice int64) {
	fired, err := t.store.HasAlert(w.ID, kind, oldPrice, newPrice)
	if err != nil {
		t.log.Error().Err(err).Int64("watchId", w.ID).Msg("Failed to check alert log")
		return
	}
	if fired {
		return
	}

	event := store.AlertEvent{
		WatchID:   w.ID,
		Kind:      kind,
		OldPrice:  oldPrice,
		NewPrice:  newPrice,
		UserRef:   w.UserRef,
		ItemName:  w.Name,
		URL:       w.URL,
		CreatedAt: time.Now(),
	}
	if err := t.store.RecordAlert(event); err != nil {
		t.log.Error().Err(err).Int64("watchId", w.ID).Msg("Failed to record alert")
		return
	}
	if err := t.notifier.Send(event); err != nil {
		logger.LogError("tracker", err, "Failed to deliver alert for watch %d", w.ID)
	}

	t.log.Info().
		Int64("watchId", w.ID).
		Str("kind", string(kind)).
		Int64("oldPrice", oldPrice).
		Int64("newPrice", newPrice).
		Msg("Alert fired")
}

// Purge applies the retention policy to price history and, when the
// notifier supports it, trims the alert stream backlog.
func (t *Tracker) Purge() {
	cutoff := time.Now().AddDate(0, 0, -t.retentionDays)
	n, err := t.store.PurgeObservations(cutoff)
	if err != nil {
		t.log.Error().Err(err).Msg("Retention purge failed")
		return
	}

	if trimmer, ok := t.notifier.(streamTrimmer); ok {
		if err := trimmer.TrimStreams(); err != nil {
			t.log.Warn().Err(err).Msg("Failed to trim alert streams")
		}
	}

	t.log.Info().Int64("purged", n).Int("retentionDays", t.retentionDays).Msg("Retention purge complete")
}
