package coreadmin

import (
	"context"
	"errors"
	"time"

	retry "github.com/sethvargo/go-retry"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	DefaultRetryAttempts  = 3
	DefaultRetryBaseDelay = 200 * time.Millisecond
)

// RetryPolicy bounds retries of a single admin request. Only transport
// failures are retried; a node that answered with an error is not asked
// again.
type RetryPolicy struct {
	MaxAttempts uint64
	BaseDelay   time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: DefaultRetryAttempts, BaseDelay: DefaultRetryBaseDelay}
}

func (p RetryPolicy) Backoff() retry.Backoff {
	attempts := p.MaxAttempts
	if attempts == 0 {
		attempts = 1
	}
	base := p.BaseDelay
	if base <= 0 {
		base = DefaultRetryBaseDelay
	}
	return retry.WithMaxRetries(attempts-1, retry.WithJitterPercent(20, retry.NewExponential(base)))
}

func (p RetryPolicy) Do(ctx context.Context, f func(ctx context.Context) error) error {
	return retry.Do(ctx, p.Backoff(), func(ctx context.Context) error {
		err := f(ctx)
		if IsRetryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

type retryable interface {
	Retryable() bool
}

// IsRetryable reports whether err is a transport failure worth retrying.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var r retryable
	if errors.As(err, &r) {
		return r.Retryable()
	}
	st, ok := status.FromError(err)
	return ok && st.Code() == codes.Unavailable
}
