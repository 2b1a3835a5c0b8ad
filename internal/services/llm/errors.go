package llm

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// HTTPStatusError reports a non-2xx response from the completion endpoint.
type HTTPStatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("llm request: http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

type emptyContentError struct {
	Op           string
	FinishReason string
	Refusal      string
	Snippet      string
}

func (e *emptyContentError) Error() string {
	return fmt.Sprintf(
		"%s: empty content (finish_reason=%q, refusal=%q, response_snippet=%s)",
		e.Op,
		e.FinishReason,
		e.Refusal,
		e.Snippet,
	)
}

var rateLimitPhrases = []string{"429", "rate limit", "rate_limit", "too many requests"}

// IsRateLimited reports whether err signals upstream rate limiting: an HTTP
// 429 status, or an error message mentioning 429 or rate limiting. Providers
// behind gateways often surface quota errors as 200s or 5xxs with a rate limit
// message, so the message check applies to any error.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusTooManyRequests {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, phrase := range rateLimitPhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}
