package resilience

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/help-search/pkg/errors"
)

// Call runs fn under a deadline of timeout and returns its value. When the
// deadline passes first the error wraps apperrors.ErrTimeout; fn keeps
// running in the background and its late result is discarded. A
// non-positive timeout runs fn inline.
func Call[T any](ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := fn(ctx)
		done <- outcome{value: v, err: err}
	}()

	select {
	case out := <-done:
		return out.value, out.err
	case <-ctx.Done():
		var zero T
		if ctx.Err() == context.DeadlineExceeded {
			return zero, fmt.Errorf("%s: %w after %v", name, apperrors.ErrTimeout, timeout)
		}
		return zero, fmt.Errorf("%s: %w", name, ctx.Err())
	}
}
