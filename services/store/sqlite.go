package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/minlano/ssg-price-tracker/logger"
	apperrors "github.com/minlano/ssg-price-tracker/pkg/errors"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS watches (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	item_id TEXT NOT NULL DEFAULT '',
	name TEXT NOT NULL DEFAULT '',
	url TEXT NOT NULL,
	target_price INTEGER NOT NULL DEFAULT 0,
	user_ref TEXT NOT NULL DEFAULT '',
	active BOOLEAN NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	last_checked DATETIME
);

CREATE TABLE IF NOT EXISTS price_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	watch_id INTEGER NOT NULL REFERENCES watches(id),
	price INTEGER NOT NULL,
	observed_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_price_history_watch ON price_history(watch_id, observed_at);

CREATE TABLE IF NOT EXISTS price_alerts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	watch_id INTEGER NOT NULL REFERENCES watches(id),
	kind TEXT NOT NULL,
	old_price INTEGER NOT NULL,
	new_price INTEGER NOT NULL,
	user_ref TEXT NOT NULL DEFAULT '',
	item_name TEXT NOT NULL DEFAULT '',
	url TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_price_alerts_dedup
	ON price_alerts(watch_id, kind, old_price, new_price);
`

// SQLiteStore implements Store on a local SQLite database
type SQLiteStore struct {
	conn *sql.DB
}

// NewSQLiteStore opens the database and creates missing tables
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, apperrors.NewPersistence(dbPath, "failed to open database", err)
	}

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, apperrors.NewPersistence(dbPath, "failed to initialize schema", err)
	}

	logger.ForStore().Info().Str("path", dbPath).Msg("Database ready")
	return &SQLiteStore{conn: conn}, nil
}

// Close releases the underlying database handle
func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}

// AddWatch inserts a watch; an empty UserRef stores it unclaimed and inactive
func (s *SQLiteStore) AddWatch(w WatchedItem) (int64, error) {
	active := w.UserRef != ""
	res, err := s.conn.Exec(
		"INSERT INTO watches (item_id, name, url, target_price, user_ref, active) VALUES (?, ?, ?, ?, ?, ?)",
		w.ItemID, w.Name, w.URL, w.TargetPrice, w.UserRef, active,
	)
	if err != nil {
		return 0, apperrors.NewPersistence("watches", "failed to insert watch", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, apperrors.NewPersistence("watches", "failed to read watch id", err)
	}
	return id, nil
}

// ClaimWatches assigns every unclaimed watch to userRef and activates it
func (s *SQLiteStore) ClaimWatches(userRef string) (int64, error) {
	if userRef == "" {
		return 0, apperrors.NewValidation("watches", "user reference must not be empty")
	}
	res, err := s.conn.Exec(
		"UPDATE watches SET user_ref = ?, active = 1 WHERE user_ref = ''",
		userRef,
	)
	if err != nil {
		return 0, apperrors.NewPersistence("watches", "failed to claim watches", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperrors.NewPersistence("watches", "failed to count claimed watches", err)
	}
	return n, nil
}

// RemoveWatch deactivates a watch, keeping its history and alerts
func (s *SQLiteStore) RemoveWatch(id int64) error {
	_, err := s.conn.Exec("UPDATE watches SET active = 0 WHERE id = ?", id)
	if err != nil {
		return apperrors.NewPersistence("watches", "failed to deactivate watch", err)
	}
	return nil
}

// Watch returns one watch by id
func (s *SQLiteStore) Watch(id int64) (*WatchedItem, error) {
	row := s.conn.QueryRow(
		"SELECT id, item_id, name, url, target_price, user_ref, active, created_at, last_checked FROM watches WHERE id = ?",
		id,
	)
	w, err := scanWatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewPersistence("watches", "watch not found", err)
	}
	if err != nil {
		return nil, apperrors.NewPersistence("watches", "failed to load watch", err)
	}
	return w, nil
}

// ActiveWatches returns all active watches in creation order
func (s *SQLiteStore) ActiveWatches() ([]WatchedItem, error) {
	rows, err := s.conn.Query(
		"SELECT id, item_id, name, url, target_price, user_ref, active, created_at, last_checked FROM watches WHERE active = 1 ORDER BY created_at",
	)
	if err != nil {
		return nil, apperrors.NewPersistence("watches", "failed to list watches", err)
	}
	defer rows.Close()

	var watches []WatchedItem
	for rows.Next() {
		w, err := scanWatch(rows)
		if err != nil {
			return nil, apperrors.NewPersistence("watches", "failed to scan watch", err)
		}
		watches = append(watches, *w)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewPersistence("watches", "failed to iterate watches", err)
	}
	return watches, nil
}

// TouchWatch updates the watch's last-checked timestamp
func (s *SQLiteStore) TouchWatch(id int64) error {
	_, err := s.conn.Exec("UPDATE watches SET last_checked = CURRENT_TIMESTAMP WHERE id = ?", id)
	if err != nil {
		return apperrors.NewPersistence("watches", "failed to touch watch", err)
	}
	return nil
}

// AppendObservation records one price sample
func (s *SQLiteStore) AppendObservation(watchID int64, price int64, observedAt time.Time) error {
	_, err := s.conn.Exec(
		"INSERT INTO price_history (watch_id, price, observed_at) VALUES (?, ?, ?)",
		watchID, price, observedAt.UTC(),
	)
	if err != nil {
		return apperrors.NewPersistence("price_history", "failed to insert observation", err)
	}
	return nil
}

// History returns the watch's observations from the last `days` days, oldest first
func (s *SQLiteStore) History(watchID int64, days int) ([]PriceObservation, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	rows, err := s.conn.Query(
		"SELECT id, watch_id, price, observed_at FROM price_history WHERE watch_id = ? AND observed_at >= ? ORDER BY observed_at",
		watchID, cutoff,
	)
	if err != nil {
		return nil, apperrors.NewPersistence("price_history", "failed to query history", err)
	}
	defer rows.Close()

	var history []PriceObservation
	for rows.Next() {
		var o PriceObservation
		if err := rows.Scan(&o.ID, &o.WatchID, &o.Price, &o.ObservedAt); err != nil {
			return nil, apperrors.NewPersistence("price_history", "failed to scan observation", err)
		}
		history = append(history, o)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewPersistence("price_history", "failed to iterate history", err)
	}
	return history, nil
}

// MinPrice returns the lowest recorded price for the watch
func (s *SQLiteStore) MinPrice(watchID int64) (int64, bool, error) {
	var price sql.NullInt64
	err := s.conn.QueryRow(
		"SELECT MIN(price) FROM price_history WHERE watch_id = ?", watchID,
	).Scan(&price)
	if err != nil {
		return 0, false, apperrors.NewPersistence("price_history", "failed to query min price", err)
	}
	return price.Int64, price.Valid, nil
}

// LastPrice returns the most recent recorded price for the watch
func (s *SQLiteStore) LastPrice(watchID int64) (int64, bool, error) {
	var price int64
	err := s.conn.QueryRow(
		"SELECT price FROM price_history WHERE watch_id = ? ORDER BY observed_at DESC, id DESC LIMIT 1",
		watchID,
	).Scan(&price)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, apperrors.NewPersistence("price_history", "failed to query last price", err)
	}
	return price, true, nil
}

// RecordAlert appends to the alert audit log; duplicate tuples are no-ops
func (s *SQLiteStore) RecordAlert(e AlertEvent) error {
	_, err := s.conn.Exec(
		"INSERT OR IGNORE INTO price_alerts (watch_id, kind, old_price, new_price, user_ref, item_name, url) VALUES (?, ?, ?, ?, ?, ?, ?)",
		e.WatchID, string(e.Kind), e.OldPrice, e.NewPrice, e.UserRef, e.ItemName, e.URL,
	)
	if err != nil {
		return apperrors.NewPersistence("price_alerts", "failed to record alert", err)
	}
	return nil
}

// HasAlert reports whether the exact alert tuple was already fired
func (s *SQLiteStore) HasAlert(watchID int64, kind AlertKind, oldPrice, newPrice int64) (bool, error) {
	var n int
	err := s.conn.QueryRow(
		"SELECT COUNT(1) FROM price_alerts WHERE watch_id = ? AND kind = ? AND old_price = ? AND new_price = ?",
		watchID, string(kind), oldPrice, newPrice,
	).Scan(&n)
	if err != nil {
		return false, apperrors.NewPersistence("price_alerts", "failed to query alerts", err)
	}
	return n > 0, nil
}

// RecentAlerts returns the newest alerts, most recent first
func (s *SQLiteStore) RecentAlerts(limit int) ([]AlertEvent, error) {
	rows, err := s.conn.Query(
		"SELECT id, watch_id, kind, old_price, new_price, user_ref, item_name, url, created_at FROM price_alerts ORDER BY created_at DESC, id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, apperrors.NewPersistence("price_alerts", "failed to query alerts", err)
	}
	defer rows.Close()

	var alerts []AlertEvent
	for rows.Next() {
		var e AlertEvent
		var kind string
		if err := rows.Scan(&e.ID, &e.WatchID, &kind, &e.OldPrice, &e.NewPrice, &e.UserRef, &e.ItemName, &e.URL, &e.CreatedAt); err != nil {
			return nil, apperrors.NewPersistence("price_alerts", "failed to scan alert", err)
		}
		e.Kind = AlertKind(kind)
		alerts = append(alerts, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewPersistence("price_alerts", "failed to iterate alerts", err)
	}
	return alerts, nil
}

// PurgeObservations deletes observations older than the cutoff, always
// keeping each watch's newest observation.
func (s *SQLiteStore) PurgeObservations(olderThan time.Time) (int64, error) {
	res, err := s.conn.Exec(
		`DELETE FROM price_history
		 WHERE observed_at < ?
		   AND id NOT IN (
			SELECT id FROM (
				SELECT id, MAX(observed_at) FROM price_history GROUP BY watch_id
			)
		 )`,
		olderThan.UTC(),
	)
	if err != nil {
		return 0, apperrors.NewPersistence("price_history", "failed to purge history", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperrors.NewPersistence("price_history", "failed to count purged rows", err)
	}
	return n, nil
}

// scanner abstracts sql.Row and sql.Rows for watch scanning
type scanner interface {
	Scan(dest ...any) error
}

func scanWatch(row scanner) (*WatchedItem, error) {
	var w WatchedItem
	var lastChecked sql.NullTime
	err := row.Scan(&w.ID, &w.ItemID, &w.Name, &w.URL, &w.TargetPrice, &w.UserRef, &w.Active, &w.CreatedAt, &lastChecked)
	if err != nil {
		return nil, err
	}
	if lastChecked.Valid {
		w.LastChecked = lastChecked.Time
	}
	return &w, nil
}
