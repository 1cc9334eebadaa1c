// Package chat implements the session-scoped conversation client: it owns
// the conversation history, serializes exchanges with the content
// generator, applies the retry and fallback policy, and emits correlated
// telemetry around every exchange.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tddg/qwen-code/internal/classify"
	"github.com/tddg/qwen-code/internal/config"
	"github.com/tddg/qwen-code/internal/genai"
	"github.com/tddg/qwen-code/internal/metrics"
	"github.com/tddg/qwen-code/internal/telemetry"
)

// FallbackHandler decides whether to switch to the fallback model after
// persistent rate-limiting. Returning true accepts the switch.
type FallbackHandler func(ctx context.Context, currentModel, fallbackModel string, cause error) bool

// Options assembles a Session. Generator and Model are required; every
// other collaborator is optional.
type Options struct {
	Generator genai.ContentGenerator
	Recorder  *telemetry.Recorder
	Metrics   *metrics.Collector
	Logger    *slog.Logger

	SessionID       string
	Model           string
	FallbackModel   string
	AuthType        config.AuthType
	OnPersistent429 FallbackHandler

	Config  *genai.GenerateContentConfig
	History []*genai.Content
}

// Session is the only mutator of its conversation history and the sole
// point of contact with the transport. Exchanges are strictly serialized:
// a new send queues behind the in-flight exchange's completion, success or
// failure, via a single-slot gate.
type Session struct {
	gen      genai.ContentGenerator
	recorder *telemetry.Recorder
	metrics  *metrics.Collector
	logger   *slog.Logger

	sessionID       string
	authType        config.AuthType
	fallbackModel   string
	onPersistent429 FallbackHandler
	genConfig       *genai.GenerateContentConfig

	// Retry tuning, overridable in tests.
	retryInitialInterval time.Duration
	retryMaxInterval     time.Duration
	retryMaxAttempts     uint64

	gate chan struct{}

	modelMu sync.RWMutex
	model   string

	history []*genai.Content
}

// NewSession creates a session over the given generator.
func NewSession(opts Options) (*Session, error) {
	if opts.Generator == nil {
		return nil, fmt.Errorf("content generator required")
	}
	if opts.Model == "" {
		return nil, fmt.Errorf("model required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		gen:             opts.Generator,
		recorder:        opts.Recorder,
		metrics:         opts.Metrics,
		logger:          logger,
		sessionID:       opts.SessionID,
		authType:        opts.AuthType,
		fallbackModel:   opts.FallbackModel,
		onPersistent429: opts.OnPersistent429,
		genConfig:       opts.Config,

		retryInitialInterval: defaultRetryInitialInterval,
		retryMaxInterval:     defaultRetryMaxInterval,
		retryMaxAttempts:     defaultRetryMaxAttempts,

		gate:    make(chan struct{}, 1),
		model:   opts.Model,
		history: append([]*genai.Content(nil), opts.History...),
	}, nil
}

// Model returns the active model, which may have been swapped by the
// fallback policy.
func (s *Session) Model() string {
	s.modelMu.RLock()
	defer s.modelMu.RUnlock()
	return s.model
}

func (s *Session) setModel(model string) {
	s.modelMu.Lock()
	s.model = model
	s.modelMu.Unlock()
}

// History returns a copy of the conversation history: the comprehensive
// record, or the curated view that is safe to resend.
func (s *Session) History(curated bool) []*genai.Content {
	if err := s.acquire(context.Background()); err != nil {
		return nil
	}
	defer s.release()
	if curated {
		return CuratedHistory(s.history)
	}
	return append([]*genai.Content(nil), s.history...)
}

// acquire claims the exchange gate, queueing behind any in-flight exchange.
func (s *Session) acquire(ctx context.Context) error {
	select {
	case s.gate <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) release() {
	<-s.gate
}

// SendText sends a single text message.
func (s *Session) SendText(ctx context.Context, text, promptID string) (*genai.GenerateContentResponse, error) {
	return s.Send(ctx, []*genai.Part{genai.NewTextPart(text)}, promptID)
}

// Send performs one full exchange: it builds the outgoing content set from
// curated history, emits a request event, invokes the transport through the
// retry policy, emits at most one correlated response event, and folds the
// model's output into history. On unrecoverable failure an error event is
// emitted and history is left unchanged.
func (s *Session) Send(ctx context.Context, parts []*genai.Part, promptID string) (*genai.GenerateContentResponse, error) {
	if len(parts) == 0 {
		return nil, ErrEmptyMessage
	}
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()

	userTurn := genai.NewUserContent(parts...)
	requestContents := append(CuratedHistory(s.history), userTurn)
	requestID := uuid.NewString()
	start := time.Now()

	s.recordRequest(requestContents, promptID, requestID)

	req := &genai.GenerateContentRequest{
		Model:    s.Model(),
		Contents: requestContents,
		Config:   s.genConfig,
	}
	resp, err := s.callWithRetry(ctx, req, promptID, requestID)
	duration := time.Since(start)
	if err != nil {
		s.recordError(err, duration, promptID, requestID)
		if s.metrics != nil {
			s.metrics.RecordFailure(metrics.OpSend)
		}
		return nil, &ExchangeError{Model: req.Model, Duration: duration, Err: err}
	}

	s.recordResponse(resp, classify.ResponseType(resp), duration, promptID, requestID)
	s.commit(userTurn, responseOutputs(resp), resp.AutomaticFunctionCallingHistory)

	if s.metrics != nil && resp.UsageMetadata != nil {
		s.metrics.RecordExchange(metrics.OpSend, duration,
			int64(resp.UsageMetadata.InputTokenCount), int64(resp.UsageMetadata.OutputTokenCount))
	}
	return resp, nil
}

// responseOutputs extracts the model turns to fold into history, with
// thought parts stripped.
func responseOutputs(resp *genai.GenerateContentResponse) []*genai.Content {
	content := resp.FirstContent()
	if content == nil {
		return nil
	}
	stripped := content.WithoutThoughts()
	if stripped == nil {
		return nil
	}
	return []*genai.Content{stripped}
}

// commit folds one exchange into comprehensive history. When the transport
// reports an automatic function calling sub-history, its curated form
// replaces the single user turn, preserving the multi-step tool-call
// trace. An exchange that produced no usable output is recorded as the
// user turn plus an empty model turn; curation reverses both later.
func (s *Session) commit(userTurn *genai.Content, outputs []*genai.Content, afcHistory []*genai.Content) {
	if len(afcHistory) > 0 {
		s.history = append(s.history, CuratedHistory(afcHistory)...)
	} else {
		s.history = append(s.history, userTurn)
	}

	if len(outputs) == 0 {
		s.history = append(s.history, genai.NewModelContent())
		return
	}
	s.history = append(s.history, outputs...)
	s.consolidateTail()
}

// consolidateTail merges adjacent pure-text model turns in the trailing
// model run of history. A tool-calling sub-history frequently ends with a
// text turn that the final output should extend rather than sit next to.
func (s *Session) consolidateTail() {
	i := len(s.history)
	for i > 0 && s.history[i-1] != nil && s.history[i-1].Role == genai.RoleModel {
		i--
	}
	if len(s.history)-i < 2 {
		return
	}
	s.history = append(s.history[:i], consolidateModelTurns(s.history[i:])...)
}

// recordRequest emits the request telemetry event. Fire and forget: the
// recorder swallows its own failures.
func (s *Session) recordRequest(contents []*genai.Content, promptID, requestID string) {
	if s.recorder == nil {
		return
	}
	s.recorder.Record(telemetry.Event{
		EventType: telemetry.EventAPIRequest,
		SessionID: s.sessionID,
		Model:     s.Model(),
		PromptID:  promptID,
		RequestID: requestID,

		OperationType:      classify.OperationType(contents),
		ToolsCalled:        classify.PredictTools(contents),
		RequestContext:     classify.RequestContext(contents),
		EstimatedTokens:    classify.EstimateTokens(contents),
		ConversationTurn:   len(contents),
		HasFileContext:     classify.HasFileContext(contents),
		SystemPromptLength: classify.SystemPromptLength(s.genConfig),
	})
}

// recordResponse emits exactly one response event per correlation id.
// Responses without usage metadata are non-billable artifacts and are not
// logged at all.
func (s *Session) recordResponse(resp *genai.GenerateContentResponse, responseType string, duration time.Duration, promptID, requestID string) {
	if s.recorder == nil || resp == nil || resp.UsageMetadata == nil {
		return
	}
	s.recorder.RecordResponse(telemetry.Event{
		EventType: telemetry.EventAPIResponse,
		SessionID: s.sessionID,
		Model:     s.Model(),
		PromptID:  promptID,
		RequestID: requestID,

		ResponseType:     responseType,
		InputTokenCount:  resp.UsageMetadata.InputTokenCount,
		OutputTokenCount: resp.UsageMetadata.OutputTokenCount,
		DurationMs:       duration.Milliseconds(),
	})
}

func (s *Session) recordError(err error, duration time.Duration, promptID, requestID string) {
	if s.recorder == nil {
		return
	}
	s.recorder.Record(telemetry.Event{
		EventType: telemetry.EventAPIError,
		SessionID: s.sessionID,
		Model:     s.Model(),
		PromptID:  promptID,
		RequestID: requestID,

		DurationMs: duration.Milliseconds(),
		Error:      err.Error(),
		ErrorType:  errorType(err),
		AuthType:   string(s.authType),
	})
}
