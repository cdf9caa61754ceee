package notify

import (
	"github.com/minlano/ssg-price-tracker/logger"
	"github.com/minlano/ssg-price-tracker/services/store"
)

// LogNotifier is the fallback Notifier: alerts go to the structured log
type LogNotifier struct {
	log *logger.Logger
}

var _ Notifier = (*LogNotifier)(nil)

// NewLogNotifier creates the log fallback notifier
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{log: logger.ForNotifier()}
}

// Send writes the alert to the log
func (n *LogNotifier) Send(event store.AlertEvent) error {
	n.log.Info().
		Int64("watchId", event.WatchID).
		Str("kind", string(event.Kind)).
		Int64("oldPrice", event.OldPrice).
		Int64("newPrice", event.NewPrice).
		Str("userRef", event.UserRef).
		Str("item", event.ItemName).
		Msg("Price alert")
	return nil
}

// Close is a no-op for the log notifier
func (n *LogNotifier) Close() error {
	return nil
}
