// Package poll provides the single bounded-retry primitive shared by port
// readiness checks, selector waits and scroll settling. One loop instead of a
// per-caller copy.
package poll

import (
	"context"
	"errors"
	"time"
)

// ErrExhausted is returned when every attempt failed without a hard error.
var ErrExhausted = errors.New("poll: attempts exhausted")

// Until calls fn up to attempts times, sleeping interval between calls.
// It returns nil on the first attempt where fn reports done, fn's error if
// one occurs, or ErrExhausted. Context cancellation cuts the wait short.
func Until(ctx context.Context, attempts int, interval time.Duration, fn func(ctx context.Context) (bool, error)) error {
	for i := 0; i < attempts; i++ {
		done, err := fn(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
	return ErrExhausted
}
