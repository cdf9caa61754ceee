package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Ensure SQLiteStore implements Store
var _ Store = (*SQLiteStore)(nil)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "tracker.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAddWatchClaimed(t *testing.T) {
	s := newTestStore(t)

	id, err := s.AddWatch(WatchedItem{
		ItemID:      "1000012345678",
		Name:        "삼성전자 갤럭시 버즈",
		URL:         "https://www.ssg.com/item/itemView.ssg?itemId=1000012345678",
		TargetPrice: 87000,
		UserRef:     "user-1",
	})
	require.NoError(t, err)
	assert.Greater(t, id, int64(0))

	w, err := s.Watch(id)
	require.NoError(t, err)
	assert.True(t, w.Active)
	assert.Equal(t, "user-1", w.UserRef)
	assert.Equal(t, int64(87000), w.TargetPrice)
}

func TestAddWatchUnclaimedStaysInactive(t *testing.T) {
	s := newTestStore(t)

	id, err := s.AddWatch(WatchedItem{
		URL: "https://www.ssg.com/item/itemView.ssg?itemId=1",
	})
	require.NoError(t, err)

	w, err := s.Watch(id)
	require.NoError(t, err)
	assert.False(t, w.Active)
	assert.Empty(t, w.UserRef)

	active, err := s.ActiveWatches()
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestClaimWatches(t *testing.T) {
	s := newTestStore(t)

	_, err := s.AddWatch(WatchedItem{URL: "https://www.ssg.com/item/itemView.ssg?itemId=1"})
	require.NoError(t, err)
	_, err = s.AddWatch(WatchedItem{URL: "https://www.ssg.com/item/itemView.ssg?itemId=2"})
	require.NoError(t, err)
	_, err = s.AddWatch(WatchedItem{URL: "https://www.ssg.com/item/itemView.ssg?itemId=3", UserRef: "other"})
	require.NoError(t, err)

	n, err := s.ClaimWatches("user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	active, err := s.ActiveWatches()
	require.NoError(t, err)
	assert.Len(t, active, 3)

	// claiming again finds nothing unclaimed
	n, err = s.ClaimWatches("user-2")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestClaimWatchesEmptyUserRef(t *testing.T) {
	s := newTestStore(t)

	_, err := s.ClaimWatches("")
	assert.Error(t, err)
}

func TestRemoveWatchKeepsHistory(t *testing.T) {
	s := newTestStore(t)

	id, err := s.AddWatch(WatchedItem{URL: "https://www.ssg.com/item/itemView.ssg?itemId=1", UserRef: "u"})
	require.NoError(t, err)
	require.NoError(t, s.AppendObservation(id, 10000, time.Now()))

	require.NoError(t, s.RemoveWatch(id))

	active, err := s.ActiveWatches()
	require.NoError(t, err)
	assert.Empty(t, active)

	history, err := s.History(id, 7)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestObservationsMinAndLast(t *testing.T) {
	s := newTestStore(t)

	id, err := s.AddWatch(WatchedItem{URL: "https://www.ssg.com/item/itemView.ssg?itemId=1", UserRef: "u"})
	require.NoError(t, err)

	_, ok, err := s.MinPrice(id)
	require.NoError(t, err)
	assert.False(t, ok)

	base := time.Now().Add(-3 * time.Hour)
	for i, price := range []int64{100000, 90000, 95000} {
		require.NoError(t, s.AppendObservation(id, price, base.Add(time.Duration(i)*time.Hour)))
	}

	min, ok, err := s.MinPrice(id)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(90000), min)

	last, ok, err := s.LastPrice(id)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(95000), last)
}

func TestHistoryWindow(t *testing.T) {
	s := newTestStore(t)

	id, err := s.AddWatch(WatchedItem{URL: "https://www.ssg.com/item/itemView.ssg?itemId=1", UserRef: "u"})
	require.NoError(t, err)

	require.NoError(t, s.AppendObservation(id, 50000, time.Now().AddDate(0, 0, -10)))
	require.NoError(t, s.AppendObservation(id, 48000, time.Now().AddDate(0, 0, -2)))
	require.NoError(t, s.AppendObservation(id, 47000, time.Now()))

	history, err := s.History(id, 7)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, int64(48000), history[0].Price)
	assert.Equal(t, int64(47000), history[1].Price)
}

func TestAlertIdempotency(t *testing.T) {
	s := newTestStore(t)

	id, err := s.AddWatch(WatchedItem{URL: "https://www.ssg.com/item/itemView.ssg?itemId=1", UserRef: "u"})
	require.NoError(t, err)

	event := AlertEvent{
		WatchID:  id,
		Kind:     AlertTargetReached,
		OldPrice: 90000,
		NewPrice: 85000,
		UserRef:  "u",
		ItemName: "갤럭시 버즈",
	}

	fired, err := s.HasAlert(id, AlertTargetReached, 90000, 85000)
	require.NoError(t, err)
	assert.False(t, fired)

	require.NoError(t, s.RecordAlert(event))
	require.NoError(t, s.RecordAlert(event)) // duplicate is a no-op

	fired, err = s.HasAlert(id, AlertTargetReached, 90000, 85000)
	require.NoError(t, err)
	assert.True(t, fired)

	alerts, err := s.RecentAlerts(10)
	require.NoError(t, err)
	assert.Len(t, alerts, 1)

	// a different tuple is a distinct alert
	event.NewPrice = 80000
	require.NoError(t, s.RecordAlert(event))
	alerts, err = s.RecentAlerts(10)
	require.NoError(t, err)
	assert.Len(t, alerts, 2)
}

func TestPurgeKeepsNewestObservation(t *testing.T) {
	s := newTestStore(t)

	id, err := s.AddWatch(WatchedItem{URL: "https://www.ssg.com/item/itemView.ssg?itemId=1", UserRef: "u"})
	require.NoError(t, err)

	old := time.Now().AddDate(0, 0, -30)
	require.NoError(t, s.AppendObservation(id, 60000, old))
	require.NoError(t, s.AppendObservation(id, 55000, old.Add(time.Hour)))

	// both observations predate the cutoff; the newest must survive
	n, err := s.PurgeObservations(time.Now().AddDate(0, 0, -7))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	last, ok, err := s.LastPrice(id)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(55000), last)
}

func TestPurgeLeavesRecentHistory(t *testing.T) {
	s := newTestStore(t)

	id, err := s.AddWatch(WatchedItem{URL: "https://www.ssg.com/item/itemView.ssg?itemId=1", UserRef: "u"})
	require.NoError(t, err)

	require.NoError(t, s.AppendObservation(id, 60000, time.Now().AddDate(0, 0, -30)))
	require.NoError(t, s.AppendObservation(id, 58000, time.Now().Add(-time.Hour)))
	require.NoError(t, s.AppendObservation(id, 57000, time.Now()))

	n, err := s.PurgeObservations(time.Now().AddDate(0, 0, -7))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	history, err := s.History(id, 365)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}
