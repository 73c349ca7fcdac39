// Package schedule decides when a business is due for a rescrape.
// All functions are pure: same inputs, same answer.
package schedule

import (
	"fmt"
	"time"
)

const secondsPerHour = 3600

// Decision is the outcome of a due check. HoursRemaining is only set
// when Due is false.
type Decision struct {
	Due            bool
	HoursRemaining int
}

// IsDue reports whether enough time has elapsed since the last scrape.
// force bypasses the window; a nil lastScrapedAt means never scraped.
func IsDue(lastScrapedAt *time.Time, frequencyHours int, now time.Time, force bool) Decision {
	if force || lastScrapedAt == nil {
		return Decision{Due: true}
	}
	window := int64(frequencyHours) * secondsPerHour
	elapsed := int64(now.Sub(*lastScrapedAt).Seconds())
	if elapsed >= window {
		return Decision{Due: true}
	}
	remaining := window - elapsed
	hours := int((remaining + secondsPerHour - 1) / secondsPerHour)
	return Decision{Due: false, HoursRemaining: hours}
}

// NextDueAt computes the display-facing next scrape time. It is
// independent of the IsDue gate.
func NextDueAt(lastScrapedAt time.Time, frequencyHours int) time.Time {
	return lastScrapedAt.Add(time.Duration(frequencyHours) * time.Hour)
}

// TooSoonError signals a due-check rejection. It is informational: callers
// surface it, they do not retry it.
type TooSoonError struct {
	HoursRemaining int
}

func (e *TooSoonError) Error() string {
	return fmt.Sprintf("scraped too recently, next scrape due in %d hours", e.HoursRemaining)
}
