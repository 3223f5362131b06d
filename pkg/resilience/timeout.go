package resilience

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/lexical-dispersion/pkg/errors"
)

// Bounded returns fn's result, or gives up once limit has passed. An expired
// limit yields an error matching both ErrTimeout and
// context.DeadlineExceeded; a cancelled parent yields the parent's error.
// fn is abandoned, not stopped, so it must return when its context ends.
// A non-positive limit calls fn inline.
func Bounded[T any](ctx context.Context, limit time.Duration, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	if limit <= 0 {
		return fn(ctx)
	}
	opCtx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	type outcome struct {
		v   T
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		v, err := fn(opCtx)
		ch <- outcome{v, err}
	}()

	var zero T
	select {
	case out := <-ch:
		return out.v, out.err
	case <-opCtx.Done():
		if err := ctx.Err(); err != nil {
			return zero, fmt.Errorf("%s abandoned: %w", op, err)
		}
		return zero, fmt.Errorf("%s exceeded %v: %w: %w", op, limit, apperrors.ErrTimeout, context.DeadlineExceeded)
	}
}

// Within is Bounded for calls that only report an error.
func Within(ctx context.Context, limit time.Duration, op string, fn func(ctx context.Context) error) error {
	_, err := Bounded(ctx, limit, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
