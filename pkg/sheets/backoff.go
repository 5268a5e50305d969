package sheets

import "time"

// Backoff is an explicit retry policy: Attempts total tries with exponential
// delays starting at Base and capped at Max.
type Backoff struct {
	Base     time.Duration
	Max      time.Duration
	Attempts int
}

// DefaultBackoff matches the quota behaviour of the spreadsheet API: a quick
// first retry, then progressively longer waits.
var DefaultBackoff = Backoff{
	Base:     200 * time.Millisecond,
	Max:      5 * time.Second,
	Attempts: 4,
}

// Delay returns the wait before the given retry (attempt 0 is the first
// retry, after the initial call failed).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := b.Base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= b.Max {
			return b.Max
		}
	}
	if b.Max > 0 && d > b.Max {
		return b.Max
	}
	return d
}
