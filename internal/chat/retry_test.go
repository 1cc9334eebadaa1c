package chat

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tddg/qwen-code/internal/config"
	"github.com/tddg/qwen-code/internal/genai"
	"github.com/tddg/qwen-code/internal/llm"
)

func newRetrySession(t *testing.T, gen genai.ContentGenerator, opts Options) *Session {
	t.Helper()
	opts.Generator = gen
	if opts.Model == "" {
		opts.Model = config.DefaultModel
	}
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := NewSession(opts)
	require.NoError(t, err)
	s.retryInitialInterval = time.Millisecond
	s.retryMaxInterval = 2 * time.Millisecond
	return s
}

func TestRetryRecoversFromTransientFailures(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCalls int
	}{
		{
			name:      "rate limit retried",
			err:       &llm.TransportError{StatusCode: 429, Message: "too many requests"},
			wantCalls: 3,
		},
		{
			name:      "server error retried",
			err:       &llm.TransportError{StatusCode: 503, Message: "service unavailable"},
			wantCalls: 3,
		},
		{
			name:      "untyped overload message retried",
			err:       errString("model is overloaded, try again"),
			wantCalls: 3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{
				generate: func(call int, req *genai.GenerateContentRequest) (*genai.GenerateContentResponse, error) {
					if call < 3 {
						return nil, tt.err
					}
					return textResponse("recovered", 1, 1), nil
				},
			}
			s := newRetrySession(t, gen, Options{})

			resp, err := s.SendText(context.Background(), "hello", "p")
			require.NoError(t, err)
			assert.Equal(t, "recovered", resp.Text())
			assert.Equal(t, tt.wantCalls, gen.callCount())
		})
	}
}

func TestRetryStopsOnPermanentFailure(t *testing.T) {
	gen := &fakeGenerator{
		generate: func(call int, req *genai.GenerateContentRequest) (*genai.GenerateContentResponse, error) {
			return nil, errString("400 bad request: malformed content")
		},
	}
	s := newRetrySession(t, gen, Options{})

	_, err := s.SendText(context.Background(), "hello", "p")
	require.Error(t, err)
	assert.Equal(t, 1, gen.callCount())
}

func TestRetryGivesUpAfterMaxAttempts(t *testing.T) {
	gen := &fakeGenerator{
		generate: func(call int, req *genai.GenerateContentRequest) (*genai.GenerateContentResponse, error) {
			return nil, &llm.TransportError{StatusCode: 500, Message: "internal server error"}
		},
	}
	s := newRetrySession(t, gen, Options{})
	s.retryMaxAttempts = 2

	_, err := s.SendText(context.Background(), "hello", "p")
	var exchangeErr *ExchangeError
	require.ErrorAs(t, err, &exchangeErr)
	assert.Equal(t, 3, gen.callCount(), "initial attempt plus two retries")
}

func TestPersistentRateLimitTriggersFallback(t *testing.T) {
	var offered []string
	gen := &fakeGenerator{
		generate: func(call int, req *genai.GenerateContentRequest) (*genai.GenerateContentResponse, error) {
			if req.Model == config.DefaultModel {
				return nil, &llm.TransportError{StatusCode: 429, Message: "too many requests"}
			}
			return textResponse("from fallback", 1, 1), nil
		},
	}
	s := newRetrySession(t, gen, Options{
		AuthType:      config.AuthQwenOAuth,
		FallbackModel: config.DefaultFallbackModel,
		OnPersistent429: func(ctx context.Context, current, fallback string, cause error) bool {
			offered = append(offered, current+"->"+fallback)
			return true
		},
	})

	resp, err := s.SendText(context.Background(), "hello", "p")
	require.NoError(t, err)
	assert.Equal(t, "from fallback", resp.Text())
	assert.Equal(t, config.DefaultFallbackModel, s.Model())
	assert.Equal(t, []string{config.DefaultModel + "->" + config.DefaultFallbackModel}, offered)
}

func TestFallbackDeclinedKeepsModel(t *testing.T) {
	gen := &fakeGenerator{
		generate: func(call int, req *genai.GenerateContentRequest) (*genai.GenerateContentResponse, error) {
			return nil, &llm.TransportError{StatusCode: 429, Message: "too many requests"}
		},
	}
	s := newRetrySession(t, gen, Options{
		AuthType:      config.AuthQwenOAuth,
		FallbackModel: config.DefaultFallbackModel,
		OnPersistent429: func(ctx context.Context, current, fallback string, cause error) bool {
			return false
		},
	})

	_, err := s.SendText(context.Background(), "hello", "p")
	require.Error(t, err)
	assert.Equal(t, config.DefaultModel, s.Model())
}

func TestNoFallbackLoopFromFallbackModel(t *testing.T) {
	calls := 0
	gen := &fakeGenerator{
		generate: func(call int, req *genai.GenerateContentRequest) (*genai.GenerateContentResponse, error) {
			return nil, &llm.TransportError{StatusCode: 429, Message: "too many requests"}
		},
	}
	s := newRetrySession(t, gen, Options{
		Model:         config.DefaultFallbackModel,
		AuthType:      config.AuthQwenOAuth,
		FallbackModel: config.DefaultFallbackModel,
		OnPersistent429: func(ctx context.Context, current, fallback string, cause error) bool {
			calls++
			return true
		},
	})

	_, err := s.SendText(context.Background(), "hello", "p")
	require.Error(t, err)
	assert.Zero(t, calls, "the hook is never consulted once on the fallback model")
	assert.Equal(t, config.DefaultFallbackModel, s.Model())
}

func TestOpenAIAuthNeverFallsBack(t *testing.T) {
	gen := &fakeGenerator{
		generate: func(call int, req *genai.GenerateContentRequest) (*genai.GenerateContentResponse, error) {
			return nil, &llm.TransportError{StatusCode: 429, Message: "too many requests"}
		},
	}
	s := newRetrySession(t, gen, Options{
		Model:         "gpt-4o",
		AuthType:      config.AuthOpenAI,
		FallbackModel: config.DefaultFallbackModel,
	})

	_, err := s.SendText(context.Background(), "hello", "p")
	require.Error(t, err)
	assert.Equal(t, "gpt-4o", s.Model())
}

func TestRetryHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gen := &fakeGenerator{
		generate: func(call int, req *genai.GenerateContentRequest) (*genai.GenerateContentResponse, error) {
			cancel()
			return nil, &llm.TransportError{StatusCode: 500, Message: "internal server error"}
		},
	}
	s := newRetrySession(t, gen, Options{})

	_, err := s.SendText(ctx, "hello", "p")
	require.Error(t, err)
	assert.LessOrEqual(t, gen.callCount(), 2)
}

// errString is a bare error with only a message, standing in for untyped
// provider failures.
type errString string

func (e errString) Error() string { return string(e) }
