package llm

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
)

type failureReason string

const (
	reasonTimeout           failureReason = "timeout"
	reasonRateLimited       failureReason = "rate_limit"
	reasonAuth              failureReason = "auth"
	reasonBilling           failureReason = "billing"
	reasonModelUnavailable  failureReason = "model_unavailable"
	reasonServerError       failureReason = "server_error"
	reasonInvalidRequest    failureReason = "invalid_request"
	reasonToolsUnsupported  failureReason = "tools_unsupported"
	reasonMaxTokensTooLarge failureReason = "max_tokens_too_large"
	reasonTransient         failureReason = "transient"
	reasonUnknown           failureReason = "unknown"
)

// classifyProviderError maps a failed Chat call to one of the Router's
// retry/failover decisions per §4.2 step 5.
func classifyProviderError(err error) failureReason {
	if err == nil {
		return reasonUnknown
	}

	var perr *ProviderError
	if errors.As(err, &perr) {
		body := strings.ToLower(perr.Body)
		switch {
		case perr.StatusCode == 400 && (strings.Contains(body, "tool") || strings.Contains(body, "auto")):
			return reasonToolsUnsupported
		case perr.StatusCode == 400 && strings.Contains(body, "max_tokens"):
			return reasonMaxTokensTooLarge
		case perr.StatusCode == 404 && (strings.Contains(body, "tool use") || strings.Contains(body, "endpoints")):
			return reasonToolsUnsupported
		case perr.StatusCode == 429 || containsAny(body, "rate limit", "rate_limit", "too many requests"):
			return reasonRateLimited
		case perr.StatusCode >= 500 || strings.Contains(body, "internal server") || strings.Contains(body, "server error"):
			return reasonTransient
		case perr.StatusCode == 401 || perr.StatusCode == 403 || containsAny(body, "unauthorized", "invalid api key", "authentication"):
			return reasonAuth
		case perr.StatusCode == 402 || containsAny(body, "billing", "payment", "quota"):
			return reasonBilling
		case containsAny(body, "model not found", "does not exist", "model unavailable"):
			return reasonModelUnavailable
		case perr.StatusCode == 400 || containsAny(body, "invalid", "bad request"):
			return reasonInvalidRequest
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "timeout", "deadline exceeded", "context deadline"):
		return reasonTransient
	case containsAny(msg, "rate limit", "rate_limit", "429", "too many requests"):
		return reasonRateLimited
	case containsAny(msg, "connection reset", "connection refused", "eof"):
		return reasonTransient
	}
	return reasonUnknown
}

func containsAny(haystack string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

var (
	retryAfterSeconds   = regexp.MustCompile(`(?i)wait\s+(\d+)\s+seconds?`)
	retryAfterShortForm = regexp.MustCompile(`(?i)(\d+)\s*s\b`)
	retryAfterMillis    = regexp.MustCompile(`(?i)(\d+)\s*milliseconds?`)
)

// retryAfterDelay extracts a retry-after delay from a rate-limit error,
// preferring an explicit header value, then "wait N seconds", then "Ns",
// then "N milliseconds", defaulting to 60s.
func retryAfterDelay(err error) time.Duration {
	var perr *ProviderError
	if errors.As(err, &perr) {
		if v := perr.retryAfterHeader(); v > 0 {
			return v
		}
		if d, ok := parseRetryAfterText(perr.Body); ok {
			return d
		}
	}
	if d, ok := parseRetryAfterText(err.Error()); ok {
		return d
	}
	return 60 * time.Second
}

func parseRetryAfterText(text string) (time.Duration, bool) {
	if m := retryAfterSeconds.FindStringSubmatch(text); len(m) == 2 {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return time.Duration(n) * time.Second, true
		}
	}
	if m := retryAfterShortForm.FindStringSubmatch(text); len(m) == 2 {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return time.Duration(n) * time.Second, true
		}
	}
	if m := retryAfterMillis.FindStringSubmatch(text); len(m) == 2 {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return time.Duration(n) * time.Millisecond, true
		}
	}
	return 0, false
}

// retryAfterHeader is a hook point: concrete providers may embed an explicit
// Retry-After header value into ProviderError.Body as "retry-after: N" which
// this checks first, matching "explicit header value" being first in the
// precedence list.
func (e *ProviderError) retryAfterHeader() time.Duration {
	const prefix = "retry-after:"
	lower := strings.ToLower(e.Body)
	idx := strings.Index(lower, prefix)
	if idx < 0 {
		return 0
	}
	rest := strings.TrimSpace(e.Body[idx+len(prefix):])
	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}
	n, err := strconv.Atoi(rest[:end])
	if err != nil {
		return 0
	}
	return time.Duration(n) * time.Second
}
