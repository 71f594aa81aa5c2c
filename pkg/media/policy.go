package media

import (
	"context"
)

// FailurePolicy decides what an adapter hands back when its backend fails.
type FailurePolicy[T any] struct {
	abort    bool
	fallback T
}

// Abort propagates every failure to the caller.
func Abort[T any]() FailurePolicy[T] {
	return FailurePolicy[T]{abort: true}
}

// FallbackTo swallows remote and parse failures and substitutes value.
// Configuration errors and cancellation of the caller's context still propagate.
func FallbackTo[T any](value T) FailurePolicy[T] {
	return FailurePolicy[T]{fallback: value}
}

func (p FailurePolicy[T]) Aborts() bool {
	return p.abort
}

func (p FailurePolicy[T]) Fallback() T {
	return p.fallback
}

// absorb reports whether err is replaced by the fallback value.
func (p FailurePolicy[T]) absorb(ctx context.Context, err error) (T, bool) {
	var zero T
	if p.abort || !absorbable(ctx, err) {
		return zero, false
	}
	return p.fallback, true
}
