package llm

import (
	"errors"
	"strings"
)

// TransportError is a provider failure carrying the HTTP-equivalent status.
type TransportError struct {
	StatusCode int
	Message    string
}

func (e *TransportError) Error() string {
	return e.Message
}

// rateLimitSignals are message fragments providers use for quota pressure.
var rateLimitSignals = []string{
	"429",
	"rate limit",
	"too many requests",
	"quota exceeded",
	"resource exhausted",
	"resource_exhausted",
	"throttl",
}

// serverErrorSignals are message fragments for transient server-side faults.
var serverErrorSignals = []string{
	"500",
	"502",
	"503",
	"504",
	"internal server error",
	"bad gateway",
	"service unavailable",
	"overloaded",
}

// authErrorSignals are message fragments for credential failures.
var authErrorSignals = []string{
	"401",
	"403",
	"unauthorized",
	"forbidden",
	"invalid api key",
	"api key not valid",
	"authentication",
	"permission denied",
}

func matchesAny(err error, signals []string) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range signals {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// IsRateLimit reports whether err is a rate-limit signal (HTTP 429 or
// an equivalent provider message).
func IsRateLimit(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return te.StatusCode == 429
	}
	return matchesAny(err, rateLimitSignals)
}

// IsServerError reports whether err is a server-side 5xx-class failure.
func IsServerError(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return te.StatusCode >= 500 && te.StatusCode < 600
	}
	return matchesAny(err, serverErrorSignals)
}

// IsAuthError reports whether err is a credential failure. Auth errors are
// never retried.
func IsAuthError(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return te.StatusCode == 401 || te.StatusCode == 403
	}
	return matchesAny(err, authErrorSignals)
}

// IsRetryable reports whether the retry policy may re-attempt after err:
// only rate-limit and server-side failures qualify.
func IsRetryable(err error) bool {
	if IsAuthError(err) {
		return false
	}
	return IsRateLimit(err) || IsServerError(err)
}
