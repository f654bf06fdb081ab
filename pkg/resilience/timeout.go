package resilience

import (
	"context"
	"fmt"
	"time"
)

// TimeoutError reports an operation that overran its limit. It matches
// context.DeadlineExceeded under errors.Is.
type TimeoutError struct {
	Op    string
	Limit time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: timed out after %v", e.Op, e.Limit)
}

func (e *TimeoutError) Unwrap() error {
	return context.DeadlineExceeded
}

// WithTimeout bounds fn by timeout. fn runs on its own goroutine, so a
// function that ignores its context still cannot hold the caller past the
// limit. A non-positive timeout runs fn inline.
func WithTimeout(ctx context.Context, timeout time.Duration, op string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn(ctx) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return &TimeoutError{Op: op, Limit: timeout}
		}
		return fmt.Errorf("%s: %w", op, ctx.Err())
	}
}
