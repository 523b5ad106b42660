// Package quota enforces a per-source daily cap on adapter invocations.
//
// The counter is the only state shared between concurrent adapter runs, so
// every store must make the check-and-increment atomic: overlapping callers
// on the same source can never push the count past the configured maximum.
package quota

import (
	"time"

	"github.com/mikandro/smartfamilytravelscout-sub001/models"
)

// Store is the durable counter behind the quota guard. CheckAndIncrement
// returns nil and consumes one invocation, or a *scraper.RateLimitError
// without mutating state when the source is at its daily maximum.
type Store interface {
	CheckAndIncrement(source models.Source) error
}

// State is one persisted per-source counter record.
type State struct {
	Date  string `json:"date"` // YYYY-MM-DD, local time
	Count int    `json:"count"`
}

// secondsUntilMidnight returns the wait until the counter resets: the next
// local midnight after now.
func secondsUntilMidnight(now time.Time) time.Duration {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).
		AddDate(0, 0, 1)
	return midnight.Sub(now)
}

func today(now time.Time) string {
	return now.Format("2006-01-02")
}
