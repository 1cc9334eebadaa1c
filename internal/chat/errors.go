package chat

import (
	"errors"
	"fmt"
	"time"

	"github.com/tddg/qwen-code/internal/llm"
)

// ErrEmptyMessage is returned when a send is attempted with no content.
var ErrEmptyMessage = errors.New("message must carry at least one part")

// ExchangeError is the typed failure reported to callers when an exchange
// ultimately fails after retries.
type ExchangeError struct {
	Model    string
	Duration time.Duration
	Err      error
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("exchange failed after %s on %s: %v", e.Duration.Round(time.Millisecond), e.Model, e.Err)
}

func (e *ExchangeError) Unwrap() error {
	return e.Err
}

// errorType names the error class for telemetry.
func errorType(err error) string {
	switch {
	case llm.IsAuthError(err):
		return "auth"
	case llm.IsRateLimit(err):
		return "rate_limit"
	case llm.IsServerError(err):
		return "server_error"
	default:
		return "api_error"
	}
}
