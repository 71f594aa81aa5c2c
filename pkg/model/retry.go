package model

import (
	"context"
	"errors"
	"time"

	"github.com/Nephrolytics-ai/polyglot-media/pkg/logging"
	"github.com/cenkalti/backoff/v4"
)

// Retry runs call until it succeeds, fails with a non-transient error or exhausts maxRetries.
// It returns the number of attempts made.
func Retry(ctx context.Context, maxRetries int, baseDelay time.Duration, call func() error) (int, error) {
	log := logging.NewLogger(ctx)
	attempts := 0

	operation := func() error {
		attempts++
		err := call()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		var remoteErr *RemoteError
		if errors.As(err, &remoteErr) && remoteErr.Transient() {
			return err
		}
		return backoff.Permanent(err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = baseDelay
	bounded := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(max(maxRetries, 0))), ctx)

	err := backoff.RetryNotify(operation, bounded, func(err error, wait time.Duration) {
		log.Warnf("attempt=%d retry_in=%s transient failure: %v", attempts, wait, err)
	})
	return attempts, err
}
