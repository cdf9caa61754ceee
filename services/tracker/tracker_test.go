package tracker

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/minlano/ssg-price-tracker/config"
	"github.com/minlano/ssg-price-tracker/internal/crawler"
	"github.com/minlano/ssg-price-tracker/services/notify"
	"github.com/minlano/ssg-price-tracker/services/store"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedFetcher serves a product page whose price follows a script,
// one entry per call; the last entry repeats.
type scriptedFetcher struct {
	mu     sync.Mutex
	prices []string
	calls  int
}

var _ crawler.Fetcher = (*scriptedFetcher)(nil)

func (f *scriptedFetcher) Fetch(ctx context.Context, url string) (*goquery.Document, error) {
	f.mu.Lock()
	idx := f.calls
	if idx >= len(f.prices) {
		idx = len(f.prices) - 1
	}
	price := f.prices[idx]
	f.calls++
	f.mu.Unlock()

	html := fmt.Sprintf(`<html><body>
		<h2 class="cdtl_prd_nm">삼성전자 갤럭시 버즈3 프로 블루투스 이어폰</h2>
		<div class="cdtl_price"><em class="blind">%s원</em></div>
	</body></html>`, price)
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

// recordingNotifier captures delivered alerts
type recordingNotifier struct {
	mu     sync.Mutex
	events []store.AlertEvent
}

var _ notify.Notifier = (*recordingNotifier)(nil)

func (n *recordingNotifier) Send(event store.AlertEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func (n *recordingNotifier) Close() error { return nil }

func (n *recordingNotifier) sent() []store.AlertEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]store.AlertEvent(nil), n.events...)
}

func newTestTracker(t *testing.T, prices []string) (*Tracker, *store.SQLiteStore, *recordingNotifier) {
	t.Helper()

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "tracker.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	cfg := &config.Config{
		CheckInterval: 3 * time.Hour,
		ItemDelay:     time.Millisecond,
		RetentionDays: 7,
		PurgeSpec:     "0 2 * * *",
	}
	notifier := &recordingNotifier{}
	fetcher := &scriptedFetcher{prices: prices}
	extractor := crawler.NewExtractor(crawler.SSGProfile("https://www.ssg.com/search.ssg?target=all&query=", "https://www.ssg.com"))

	return New(fetcher, extractor, st, notifier, cfg), st, notifier
}

func addActiveWatch(t *testing.T, tr *Tracker, target int64) int64 {
	t.Helper()
	id, err := tr.Watch(crawler.Item{
		ID:   "1000012345678",
		Name: "삼성전자 갤럭시 버즈3 프로",
		URL:  "https://www.ssg.com/item/itemView.ssg?itemId=1000012345678",
	}, target, "user-1")
	require.NoError(t, err)
	return id
}

func TestCheckPricesRecordsObservations(t *testing.T) {
	tr, st, _ := newTestTracker(t, []string{"100,000"})
	id := addActiveWatch(t, tr, 0)

	tr.CheckPrices(context.Background())

	history, err := st.History(id, 7)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, int64(100000), history[0].Price)

	w, err := st.Watch(id)
	require.NoError(t, err)
	assert.False(t, w.LastChecked.IsZero())
}

func TestAlertScenario(t *testing.T) {
	tr, st, notifier := newTestTracker(t, []string{"100,000", "90,000", "90,000", "85,000"})

	// the watch starts with a known price of 100,000
	id, err := tr.Watch(crawler.Item{
		ID:         "1000012345678",
		Name:       "삼성전자 갤럭시 버즈3 프로",
		Price:      100000,
		URL:        "https://www.ssg.com/item/itemView.ssg?itemId=1000012345678",
		Confidence: crawler.ConfidenceResolved,
		FetchedAt:  time.Now(),
	}, 87000, "user-1")
	require.NoError(t, err)

	ctx := context.Background()

	// poll 1: 100,000 again, unchanged
	tr.CheckPrices(ctx)
	assert.Empty(t, notifier.sent())

	// poll 2: drop to 90,000, new minimum
	tr.CheckPrices(ctx)
	events := notifier.sent()
	require.Len(t, events, 1)
	assert.Equal(t, store.AlertNewMinimum, events[0].Kind)
	assert.Equal(t, int64(100000), events[0].OldPrice)
	assert.Equal(t, int64(90000), events[0].NewPrice)
	assert.Equal(t, id, events[0].WatchID)

	// poll 3: flat at 90,000, no alert
	tr.CheckPrices(ctx)
	assert.Len(t, notifier.sent(), 1)

	// poll 4: 85,000 crosses the 87,000 target and sets a new minimum
	tr.CheckPrices(ctx)
	events = notifier.sent()
	require.Len(t, events, 3)
	kinds := []store.AlertKind{events[1].Kind, events[2].Kind}
	assert.Contains(t, kinds, store.AlertNewMinimum)
	assert.Contains(t, kinds, store.AlertTargetReached)
	for _, e := range events[1:] {
		assert.Equal(t, int64(90000), e.OldPrice)
		assert.Equal(t, int64(85000), e.NewPrice)
	}

	// unchanged polls recorded nothing: seed + two drops
	history, err := st.History(id, 7)
	require.NoError(t, err)
	assert.Len(t, history, 3)
}

func TestFlatPollsAlertOnce(t *testing.T) {
	tr, st, notifier := newTestTracker(t, []string{"60,000", "50,000", "50,000", "50,000", "50,000"})
	id := addActiveWatch(t, tr, 0)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		tr.CheckPrices(ctx)
	}

	// one drop followed by flat polls fires the minimum alert exactly once
	events := notifier.sent()
	require.Len(t, events, 1)
	assert.Equal(t, store.AlertNewMinimum, events[0].Kind)
	assert.Equal(t, int64(60000), events[0].OldPrice)
	assert.Equal(t, int64(50000), events[0].NewPrice)

	history, err := st.History(id, 7)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestTargetAlertRequiresTarget(t *testing.T) {
	tr, _, notifier := newTestTracker(t, []string{"100,000", "95,000"})
	addActiveWatch(t, tr, 0)

	ctx := context.Background()
	tr.CheckPrices(ctx)
	tr.CheckPrices(ctx)

	for _, e := range notifier.sent() {
		assert.NotEqual(t, store.AlertTargetReached, e.Kind)
	}
}

func TestCheckPricesSkipsInactiveWatches(t *testing.T) {
	tr, st, _ := newTestTracker(t, []string{"100,000"})

	// unclaimed watch stays inactive and is never checked
	id, err := tr.Watch(crawler.Item{
		URL: "https://www.ssg.com/item/itemView.ssg?itemId=1",
	}, 0, "")
	require.NoError(t, err)

	tr.CheckPrices(context.Background())

	history, err := st.History(id, 7)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestClaimWatchesActivatesTracking(t *testing.T) {
	tr, st, _ := newTestTracker(t, []string{"100,000"})

	id, err := tr.Watch(crawler.Item{
		URL: "https://www.ssg.com/item/itemView.ssg?itemId=1",
	}, 0, "")
	require.NoError(t, err)

	n, err := tr.ClaimWatches("user-2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	tr.CheckPrices(context.Background())

	history, err := st.History(id, 7)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	w, err := st.Watch(id)
	require.NoError(t, err)
	assert.Equal(t, "user-2", w.UserRef)
}

func TestWatchSeedsHistoryFromResolvedItem(t *testing.T) {
	tr, st, _ := newTestTracker(t, []string{"100,000"})

	id, err := tr.Watch(crawler.Item{
		ID:         "1000012345678",
		Name:       "갤럭시 버즈",
		Price:      99000,
		URL:        "https://www.ssg.com/item/itemView.ssg?itemId=1000012345678",
		Confidence: crawler.ConfidenceResolved,
		FetchedAt:  time.Now(),
	}, 0, "user-1")
	require.NoError(t, err)

	history, err := st.History(id, 7)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, int64(99000), history[0].Price)
}

func TestWatchDoesNotSeedFromPlaceholder(t *testing.T) {
	tr, st, _ := newTestTracker(t, []string{"100,000"})

	id, err := tr.Watch(crawler.Item{
		Name:       "노트북 관련 상품 1",
		Price:      29900,
		URL:        "https://www.ssg.com/item/itemView.ssg?itemId=PLACEHOLDER0001",
		Confidence: crawler.ConfidencePlaceholder,
	}, 0, "user-1")
	require.NoError(t, err)

	history, err := st.History(id, 7)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestPurgeAppliesRetention(t *testing.T) {
	tr, st, _ := newTestTracker(t, []string{"100,000"})
	id := addActiveWatch(t, tr, 0)

	require.NoError(t, st.AppendObservation(id, 120000, time.Now().AddDate(0, 0, -30)))
	require.NoError(t, st.AppendObservation(id, 110000, time.Now()))

	tr.Purge()

	history, err := st.History(id, 365)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, int64(110000), history[0].Price)
}

func TestCheckPricesCancelledContext(t *testing.T) {
	tr, st, _ := newTestTracker(t, []string{"100,000"})
	id := addActiveWatch(t, tr, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tr.CheckPrices(ctx)

	history, err := st.History(id, 7)
	require.NoError(t, err)
	assert.Empty(t, history)
}
