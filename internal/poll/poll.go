// Package poll runs a step function at a fixed interval until it reports
// completion, the attempt budget runs out, or the context is cancelled.
package poll

import (
	"context"
	"errors"
	"time"
)

// Policy used when waiting for a download job.
const (
	JobInterval    = 5 * time.Second
	JobMaxAttempts = 60
)

// ErrInvalidOptions is returned for a non-positive attempt budget.
var ErrInvalidOptions = errors.New("poll: max attempts must be positive")

// Result is what a single step reports. Value is only read when Done is set.
type Result[T any] struct {
	Done  bool
	Value T
}

// Options configures a poll.
type Options struct {
	Interval    time.Duration
	MaxAttempts int
	// Wait replaces the delay between attempts; tests use it to count delays.
	Wait func(ctx context.Context, d time.Duration) error
}

// Step is invoked once per attempt; attempt starts at 1.
type Step[T any] func(ctx context.Context, attempt int) (Result[T], error)

// Do executes step up to MaxAttempts times. It returns the value and true on
// the first Done result, the zero value and false when attempts run out, and
// the context error as soon as ctx is cancelled. A step error ends the poll.
func Do[T any](ctx context.Context, opts Options, step Step[T]) (T, bool, error) {
	var zero T
	if opts.MaxAttempts <= 0 {
		return zero, false, ErrInvalidOptions
	}
	wait := opts.Wait
	if wait == nil {
		wait = Sleep
	}

	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, false, err
		}
		res, err := step(ctx, attempt)
		if err != nil {
			return zero, false, err
		}
		if res.Done {
			return res.Value, true, nil
		}
		if attempt == opts.MaxAttempts {
			break
		}
		if err := wait(ctx, opts.Interval); err != nil {
			return zero, false, err
		}
	}
	return zero, false, nil
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
