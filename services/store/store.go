package store

import (
	"time"
)

// AlertKind identifies why an alert fired
type AlertKind string

const (
	// AlertNewMinimum fires when an observed price is at or below every
	// prior observation for the watch.
	AlertNewMinimum AlertKind = "new_minimum"
	// AlertTargetReached fires when an observed price is at or below the
	// watch's target price.
	AlertTargetReached AlertKind = "target_reached"
)

// WatchedItem is one tracked product. A watch created without a user
// reference is unclaimed and stays inactive until claimed.
type WatchedItem struct {
	ID          int64
	ItemID      string
	Name        string
	URL         string
	TargetPrice int64 // 0 disables target alerts
	UserRef     string
	Active      bool
	CreatedAt   time.Time
	LastChecked time.Time
}

// PriceObservation is one recorded price sample for a watch
type PriceObservation struct {
	ID         int64
	WatchID    int64
	Price      int64
	ObservedAt time.Time
}

// AlertEvent is one fired alert, kept as an audit record and used for
// idempotency: the same (watch, kind, old, new) tuple never fires twice.
type AlertEvent struct {
	ID        int64
	WatchID   int64
	Kind      AlertKind
	OldPrice  int64
	NewPrice  int64
	UserRef   string
	ItemName  string
	URL       string
	CreatedAt time.Time
}

// Store persists watches, price history and the alert audit log.
type Store interface {
	// AddWatch inserts a watch and returns its id. Watches with an empty
	// UserRef are stored unclaimed and inactive.
	AddWatch(w WatchedItem) (int64, error)

	// ClaimWatches assigns every unclaimed watch to userRef and activates
	// it, returning how many were claimed.
	ClaimWatches(userRef string) (int64, error)

	// RemoveWatch deactivates a watch; history and alerts are kept.
	RemoveWatch(id int64) error

	// Watch returns one watch by id.
	Watch(id int64) (*WatchedItem, error)

	// ActiveWatches returns all active watches in creation order.
	ActiveWatches() ([]WatchedItem, error)

	// TouchWatch updates the watch's last-checked timestamp.
	TouchWatch(id int64) error

	// AppendObservation records one price sample.
	AppendObservation(watchID int64, price int64, observedAt time.Time) error

	// History returns the watch's observations from the last `days` days,
	// oldest first.
	History(watchID int64, days int) ([]PriceObservation, error)

	// MinPrice returns the lowest recorded price for the watch; ok is
	// false when no observation exists.
	MinPrice(watchID int64) (price int64, ok bool, err error)

	// LastPrice returns the most recent recorded price for the watch.
	LastPrice(watchID int64) (price int64, ok bool, err error)

	// RecordAlert appends to the alert audit log. Recording a duplicate
	// (watch, kind, old, new) tuple is a no-op.
	RecordAlert(e AlertEvent) error

	// HasAlert reports whether the exact alert tuple was already fired.
	HasAlert(watchID int64, kind AlertKind, oldPrice, newPrice int64) (bool, error)

	// RecentAlerts returns the newest alerts, most recent first.
	RecentAlerts(limit int) ([]AlertEvent, error)

	// PurgeObservations deletes observations older than the cutoff while
	// always keeping each watch's newest observation. Returns rows deleted.
	PurgeObservations(olderThan time.Time) (int64, error)

	// Close releases the underlying database handle.
	Close() error
}
