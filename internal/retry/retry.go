// Package retry runs an operation a bounded number of times with a fixed pause between attempts.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy bounds an operation to Attempts tries, Interval apart.
type Policy struct {
	Attempts int
	Interval time.Duration
}

// Permanent marks err as not worth retrying; Do returns it immediately.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do calls op until it returns nil, returns a permanent error, the context is
// done or the policy is exhausted. There is no pause after the last attempt.
// It returns the number of attempts made and the last error.
func Do(ctx context.Context, policy Policy, op func(ctx context.Context, attempt int) error) (int, error) {
	attempts := policy.Attempts
	if attempts < 1 {
		attempts = 1
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(policy.Interval), uint64(attempts-1)),
		ctx,
	)

	n := 0
	err := backoff.Retry(func() error {
		n++
		return op(ctx, n)
	}, b)

	return n, err
}
