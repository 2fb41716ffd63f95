package httpclient

import (
	"net/http"
	"strconv"
	"time"
)

// ParseRetryAfterHeader extracts the standard Retry-After header, which the
// voice and routing providers both use on 429/503 responses. It supports
// both the delay-seconds and HTTP-date forms.
func ParseRetryAfterHeader(headers http.Header) RateLimitInfo {
	info := RateLimitInfo{}

	raw := headers.Get("Retry-After")
	if raw == "" {
		return info
	}

	if seconds, err := strconv.Atoi(raw); err == nil {
		info.RetryAfter = time.Duration(seconds) * time.Second
		return info
	}

	if when, err := http.ParseTime(raw); err == nil {
		if d := time.Until(when); d > 0 {
			info.RetryAfter = d
		}
	}

	return info
}
