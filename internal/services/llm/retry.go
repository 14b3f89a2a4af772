package llm

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"buildvault/internal/services"
)

// retryAfterBackOff prefers a server supplied Retry-After delay over the
// exponential schedule for the next attempt.
type retryAfterBackOff struct {
	*backoff.ExponentialBackOff
	maxDelay time.Duration
	hint     time.Duration
}

func (b *retryAfterBackOff) NextBackOff() time.Duration {
	next := b.ExponentialBackOff.NextBackOff()
	if b.hint > 0 && next != backoff.Stop {
		next = b.hint
		b.hint = 0
	}
	if b.maxDelay > 0 && next > b.maxDelay {
		next = b.maxDelay
	}
	return next
}

func (c *Client) newBackOff(ctx context.Context) (backoff.BackOff, *retryAfterBackOff) {
	exp := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(c.retryBaseDelay),
		backoff.WithMaxInterval(c.retryMaxDelay),
		backoff.WithRandomizationFactor(0),
		backoff.WithMultiplier(2),
		backoff.WithMaxElapsedTime(0),
	)
	ra := &retryAfterBackOff{ExponentialBackOff: exp, maxDelay: c.retryMaxDelay}
	attempts := c.retryMaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(ra, uint64(attempts-1)), ctx), ra
}

func (c *Client) completeWithRetry(ctx context.Context, payload chatRequest, op string) (string, error) {
	policy, ra := c.newBackOff(ctx)
	attempts := 0
	content, err := backoff.RetryWithData(func() (string, error) {
		attempts++
		text, err := c.send(ctx, payload)
		if err == nil {
			return text, nil
		}
		if !retryable(ctx, err) {
			return "", backoff.Permanent(err)
		}
		var statusErr *httpStatusError
		if errors.As(err, &statusErr) && statusErr.RetryAfter > 0 {
			ra.hint = statusErr.RetryAfter
		}
		return "", err
	}, policy)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return "", err
		}
		return "", services.Wrap(services.ErrCompletion, "llm", op, "failed after "+strconv.Itoa(attempts)+" attempt(s)", err)
	}
	return content, nil
}

func retryable(ctx context.Context, err error) bool {
	if err == nil || ctx.Err() != nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var emptyErr *emptyContentError
	if errors.As(err, &emptyErr) {
		return true
	}
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusRequestTimeout ||
			statusErr.StatusCode == http.StatusTooManyRequests ||
			statusErr.StatusCode >= http.StatusInternalServerError
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		if delay := time.Until(when); delay > 0 {
			return delay, true
		}
	}
	return 0, false
}
