// Package retry runs fallible operations with bounded attempts and linear
// backoff: the wait after attempt n is BaseDelay*n.
package retry

import (
	"context"
	"time"
)

// Policy bounds a retried operation.
type Policy struct {
	Attempts  int
	BaseDelay time.Duration
	// Sleep waits between attempts. Nil uses a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Do invokes op until it succeeds or p.Attempts is exhausted. The final
// attempt's error is returned unmodified. A cancelled context stops the
// loop during the wait and returns the context error.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = wait
	}

	var (
		val T
		err error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		val, err = op(ctx)
		if err == nil {
			return val, nil
		}
		if attempt == attempts {
			break
		}
		if serr := sleep(ctx, p.BaseDelay*time.Duration(attempt)); serr != nil {
			var zero T
			return zero, serr
		}
	}
	return val, err
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
