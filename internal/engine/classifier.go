package engine

import (
	"errors"
	"strconv"
	"strings"

	"github.com/relayforge/reliant/internal/provider"
)

// isNonRetryable reports whether err represents a client-side failure that
// retrying will not fix: any 4xx status except 408 (request timeout) and
// 429 (rate limited), which are worth retrying.
//
// It first looks for a typed *provider.HTTPError so well-behaved adapters
// never need their errors string-matched. For opaque errors (a bare error
// from a third-party SDK that doesn't expose a status code) it falls back
// to scanning the error text for the first 3-digit number in [400, 500).
func isNonRetryable(err error) bool {
	if err == nil {
		return false
	}

	var httpErr *provider.HTTPError
	if errors.As(err, &httpErr) {
		return statusIsNonRetryable(httpErr.StatusCode)
	}

	if code, ok := firstStatusCodeInText(err.Error()); ok {
		return statusIsNonRetryable(code)
	}
	return false
}

func statusIsNonRetryable(status int) bool {
	if status == 408 || status == 429 {
		return false
	}
	return status >= 400 && status < 500
}

// firstStatusCodeInText scans s for the first run of digits that parses as
// a status code in [400, 500) — the only range that changes the
// non-retryable verdict — skipping over any other digit run (a 100, a
// 500, an IP address octet) rather than stopping there.
func firstStatusCodeInText(s string) (int, bool) {
	var run strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			run.WriteRune(r)
			continue
		}
		if run.Len() > 0 {
			if code, ok := parseStatusCandidate(run.String()); ok {
				return code, true
			}
			run.Reset()
		}
	}
	if run.Len() > 0 {
		if code, ok := parseStatusCandidate(run.String()); ok {
			return code, true
		}
	}
	return 0, false
}

func parseStatusCandidate(digits string) (int, bool) {
	if len(digits) != 3 {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	if n >= 400 && n < 500 {
		return n, true
	}
	return 0, false
}

// isTimeoutError reports whether err represents a request timeout, used to
// bump the engine's timeout counter independently of retry decisions.
func isTimeoutError(err error) bool {
	if err == nil {
		return false
	}

	var httpErr *provider.HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.IsTimeout() {
			return true
		}
		return httpErr.StatusCode == 408
	}

	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "timeout") || strings.Contains(lower, "timed out") || strings.Contains(lower, "deadline exceeded")
}
