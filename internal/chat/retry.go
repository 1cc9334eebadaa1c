package chat

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/tddg/qwen-code/internal/config"
	"github.com/tddg/qwen-code/internal/genai"
	"github.com/tddg/qwen-code/internal/llm"
)

const (
	defaultRetryInitialInterval = 500 * time.Millisecond
	defaultRetryMaxInterval     = 30 * time.Second
	defaultRetryMaxAttempts     = 5

	// persistentRateLimitThreshold is how many consecutive rate-limit
	// failures count as a persistent condition worth consulting the
	// fallback hook for.
	persistentRateLimitThreshold = 2
)

func (s *Session) newBackOff(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = s.retryInitialInterval
	eb.MaxInterval = s.retryMaxInterval
	eb.Multiplier = 2
	return backoff.WithContext(backoff.WithMaxRetries(eb, s.retryMaxAttempts), ctx)
}

// retryGate applies the retry predicate to one attempt's failure: rate
// limits and 5xx-class failures are retried, everything else propagates
// immediately. It also tracks the persistent-429 condition and swaps the
// session model when the fallback hook accepts.
type retryGate struct {
	s              *Session
	consecutive429 int
}

// check returns the error to hand the backoff policy: nil is never passed
// here; a backoff.Permanent result stops retrying.
func (g *retryGate) check(ctx context.Context, err error) error {
	if llm.IsRateLimit(err) {
		g.consecutive429++
		if g.consecutive429 >= persistentRateLimitThreshold && g.s.maybeFallback(ctx, err) {
			g.consecutive429 = 0
		}
		return err
	}
	if llm.IsServerError(err) {
		g.consecutive429 = 0
		return err
	}
	return backoff.Permanent(err)
}

// callWithRetry invokes the round-trip transport under the retry policy.
// After a model fallback the in-flight exchange continues on the new model;
// it is never retried with the old one.
func (s *Session) callWithRetry(ctx context.Context, req *genai.GenerateContentRequest, promptID, requestID string) (*genai.GenerateContentResponse, error) {
	gate := &retryGate{s: s}
	var resp *genai.GenerateContentResponse

	op := func() error {
		req.Model = s.Model()
		r, err := s.gen.GenerateContent(ctx, req, promptID, requestID)
		if err != nil {
			return gate.check(ctx, err)
		}
		resp = r
		return nil
	}
	if err := backoff.Retry(op, s.newBackOff(ctx)); err != nil {
		return nil, err
	}
	return resp, nil
}

// callStreamWithRetry establishes a streamed exchange under the same retry
// policy. Only stream establishment is retried; errors raised mid-stream
// surface through the stream itself.
func (s *Session) callStreamWithRetry(ctx context.Context, req *genai.GenerateContentRequest, promptID, requestID string) (genai.ChunkStream, error) {
	gate := &retryGate{s: s}
	var stream genai.ChunkStream

	op := func() error {
		req.Model = s.Model()
		st, err := s.gen.GenerateContentStream(ctx, req, promptID, requestID)
		if err != nil {
			return gate.check(ctx, err)
		}
		stream = st
		return nil
	}
	if err := backoff.Retry(op, s.newBackOff(ctx)); err != nil {
		return nil, err
	}
	return stream, nil
}

// maybeFallback consults the per-auth-mode policy for a persistent
// rate-limit condition. Returns true when the session switched models.
func (s *Session) maybeFallback(ctx context.Context, cause error) bool {
	switch s.authType {
	case config.AuthQwenOAuth:
		current := s.Model()
		if s.fallbackModel == "" || current == s.fallbackModel {
			// Already on the fallback model; never loop further down.
			return false
		}
		if s.onPersistent429 == nil || !s.onPersistent429(ctx, current, s.fallbackModel, cause) {
			return false
		}
		s.setModel(s.fallbackModel)
		s.logger.Info("switched to fallback model after persistent rate limiting",
			"from", current, "to", s.fallbackModel)
		return true

	case config.AuthOpenAI:
		if llm.IsAuthError(cause) {
			s.logger.Warn("persistent failures look like an authentication problem, check your API key", "error", cause)
		} else {
			s.logger.Warn("persistent rate limiting from provider, consider lowering request volume", "error", cause)
		}
		return false

	default:
		return false
	}
}
