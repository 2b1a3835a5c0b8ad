package llm

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

type retryPolicy struct {
	attempts int
	base     time.Duration
	ceiling  time.Duration
}

var defaultRetryPolicy = retryPolicy{attempts: 3, base: time.Second, ceiling: 30 * time.Second}

func retryableStatus(code int) bool {
	return code == http.StatusRequestTimeout || code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// retryDelay reports whether attempt may be repeated and how long to wait
// first. Gateways relay upstream quota errors with assorted status codes, so
// rate limiting is also recognised by message.
func (c *Client) retryDelay(ctx context.Context, err error, attempt, attempts int) (time.Duration, bool) {
	if attempt >= attempts || ctx.Err() != nil ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}
	var (
		statusErr *HTTPStatusError
		emptyErr  *emptyContentError
		netErr    net.Error
	)
	switch {
	case errors.As(err, &statusErr):
		if !retryableStatus(statusErr.StatusCode) && !IsRateLimited(err) {
			return 0, false
		}
		if statusErr.RetryAfter > 0 && retryableStatus(statusErr.StatusCode) {
			return c.capDelay(statusErr.RetryAfter), true
		}
	case errors.As(err, &emptyErr), IsRateLimited(err):
	case errors.As(err, &netErr) && netErr.Timeout():
	default:
		return 0, false
	}
	return c.backoffDelay(attempt), true
}

// backoffDelay is base, 2*base, 4*base... capped at the ceiling.
func (c *Client) backoffDelay(attempt int) time.Duration {
	if c.retry.base <= 0 {
		return 0
	}
	shift := min(max(attempt, 1), 16) - 1
	return c.capDelay(c.retry.base << shift)
}

func (c *Client) capDelay(delay time.Duration) time.Duration {
	ceiling := c.retry.ceiling
	if ceiling <= 0 {
		ceiling = defaultRetryPolicy.ceiling
	}
	return min(max(delay, 0), ceiling)
}

func (c *Client) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if c.sleeper != nil {
		c.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// parseRetryAfter accepts delta seconds or an HTTP date.
func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second, seconds >= 0
	}
	when, err := http.ParseTime(value)
	if err != nil {
		return 0, false
	}
	delay := time.Until(when)
	return delay, delay >= 0
}
