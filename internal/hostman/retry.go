package hostman

import (
	"context"
	"time"
)

// Backoff retries an operation a bounded number of times, doubling the
// pause after every failure.
type Backoff struct {
	Attempts int
	Base     time.Duration
}

// Do calls fn until it succeeds, attempts run out or ctx is done. fn receives
// the 1-based attempt number. The last error is returned.
func (b Backoff) Do(ctx context.Context, fn func(attempt int) error) error {
	attempts := b.Attempts
	if attempts < 1 {
		attempts = 1
	}
	pause := b.Base

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(attempt); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		if pause > 0 {
			t := time.NewTimer(pause)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
			pause *= 2
		}
	}
	return err
}
