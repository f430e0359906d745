package server

import (
	"context"
	"log"
)

// logNotifier records notification requests in the service log. It stands in
// for an external dispatcher; delivery is the dispatcher's concern, the trade
// service only hands requests over.
type logNotifier struct{}

func (logNotifier) Send(_ context.Context, userID, title, _ string, category, referenceID string) error {
	log.Printf("trade notify: user=%s category=%s ref=%s title=%q", userID, category, referenceID, title)
	return nil
}
