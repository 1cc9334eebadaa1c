package llm

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsRateLimit(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"typed 429", &TransportError{StatusCode: 429, Message: "slow down"}, true},
		{"typed 500", &TransportError{StatusCode: 500, Message: "boom"}, false},
		{"quota message", errors.New("quota exceeded for model"), true},
		{"throttle message", errors.New("request throttled by upstream"), true},
		{"wrapped", fmt.Errorf("call: %w", errors.New("429 too many requests")), true},
		{"plain failure", errors.New("connection reset"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRateLimit(tt.err); got != tt.want {
				t.Errorf("IsRateLimit(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsServerError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"typed 503", &TransportError{StatusCode: 503, Message: "unavailable"}, true},
		{"typed 404", &TransportError{StatusCode: 404, Message: "missing"}, false},
		{"bad gateway", errors.New("502 bad gateway"), true},
		{"overloaded", errors.New("model overloaded, try later"), true},
		{"timeout", errors.New("context deadline exceeded"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsServerError(tt.err); got != tt.want {
				t.Errorf("IsServerError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsAuthError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"typed 401", &TransportError{StatusCode: 401, Message: "no"}, true},
		{"typed 403", &TransportError{StatusCode: 403, Message: "no"}, true},
		{"invalid key", errors.New("invalid api key provided"), true},
		{"rate limit is not auth", &TransportError{StatusCode: 429, Message: "slow"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsAuthError(tt.err); got != tt.want {
				t.Errorf("IsAuthError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(&TransportError{StatusCode: 429}) {
		t.Error("429 must be retryable")
	}
	if !IsRetryable(&TransportError{StatusCode: 500}) {
		t.Error("5xx must be retryable")
	}
	if IsRetryable(&TransportError{StatusCode: 401}) {
		t.Error("auth failures must not be retryable")
	}
	if IsRetryable(errors.New("malformed request")) {
		t.Error("ordinary errors must not be retryable")
	}
}
