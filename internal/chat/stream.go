package chat

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/tddg/qwen-code/internal/classify"
	"github.com/tddg/qwen-code/internal/genai"
	"github.com/tddg/qwen-code/internal/metrics"
)

// SendStreamText streams a single text message.
func (s *Session) SendStreamText(ctx context.Context, text, promptID string) (*Stream, error) {
	return s.SendStream(ctx, []*genai.Part{genai.NewTextPart(text)}, promptID)
}

// SendStream performs one streamed exchange. The returned Stream holds the
// exchange gate until it is drained, fails, or is closed; history commit
// and the response telemetry event happen only when the stream completes
// normally.
func (s *Session) SendStream(ctx context.Context, parts []*genai.Part, promptID string) (*Stream, error) {
	if len(parts) == 0 {
		return nil, ErrEmptyMessage
	}
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}

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
	inner, err := s.callStreamWithRetry(ctx, req, promptID, requestID)
	if err != nil {
		duration := time.Since(start)
		s.recordError(err, duration, promptID, requestID)
		if s.metrics != nil {
			s.metrics.RecordFailure(metrics.OpStream)
		}
		s.release()
		return nil, &ExchangeError{Model: req.Model, Duration: duration, Err: err}
	}

	return &Stream{
		session:   s,
		inner:     inner,
		userTurn:  userTurn,
		promptID:  promptID,
		requestID: requestID,
		model:     req.Model,
		start:     start,
	}, nil
}

// Stream is the consumer side of a streamed exchange. Exactly one of
// complete, fail, or Close finishes it; each path releases the exchange
// gate once.
type Stream struct {
	session   *Session
	inner     genai.ChunkStream
	userTurn  *genai.Content
	promptID  string
	requestID string
	model     string
	start     time.Time

	chunks   []*genai.GenerateContentResponse
	finished bool
	err      error
}

// Next returns the next chunk. io.EOF marks normal completion, after which
// the exchange is committed to history; any other error marks failure and
// leaves history unchanged.
func (st *Stream) Next() (*genai.GenerateContentResponse, error) {
	if st.finished {
		if st.err != nil {
			return nil, st.err
		}
		return nil, io.EOF
	}
	chunk, err := st.inner.Next()
	if err == io.EOF {
		st.complete()
		return nil, io.EOF
	}
	if err != nil {
		st.fail(err)
		return nil, st.err
	}
	st.chunks = append(st.chunks, chunk)
	return chunk, nil
}

// Close abandons the stream. An abandoned exchange emits no further
// telemetry and commits nothing; the gate is released so the next send can
// proceed. Safe to call after completion.
func (st *Stream) Close() error {
	if st.finished {
		return nil
	}
	st.finished = true
	st.inner.Close()
	st.session.release()
	return nil
}

func (st *Stream) complete() {
	st.finished = true
	s := st.session
	duration := time.Since(st.start)

	aggregate := st.aggregateResponse()
	s.recordResponse(aggregate, classify.ResponseType(aggregate), duration, st.promptID, st.requestID)
	s.commit(st.userTurn, responseOutputs(aggregate), st.afcHistory())

	if s.metrics != nil && aggregate.UsageMetadata != nil {
		s.metrics.RecordExchange(metrics.OpStream, duration,
			int64(aggregate.UsageMetadata.InputTokenCount), int64(aggregate.UsageMetadata.OutputTokenCount))
	}
	st.inner.Close()
	s.release()
}

func (st *Stream) fail(err error) {
	st.finished = true
	s := st.session
	duration := time.Since(st.start)

	s.recordError(err, duration, st.promptID, st.requestID)
	if s.metrics != nil {
		s.metrics.RecordFailure(metrics.OpStream)
	}
	st.inner.Close()
	s.release()
	st.err = &ExchangeError{Model: st.model, Duration: duration, Err: err}
}

// aggregateResponse reassembles the full exchange from the received
// chunks: all model parts in arrival order, with usage metadata taken from
// the last chunk that carried any.
func (st *Stream) aggregateResponse() *genai.GenerateContentResponse {
	var parts []*genai.Part
	for _, chunk := range st.chunks {
		if content := chunk.FirstContent(); content != nil {
			parts = append(parts, content.Parts...)
		}
	}
	resp := &genai.GenerateContentResponse{}
	if len(parts) > 0 {
		resp.Candidates = []*genai.Candidate{{Content: genai.NewModelContent(parts...)}}
	}
	for i := len(st.chunks) - 1; i >= 0; i-- {
		if st.chunks[i].UsageMetadata != nil {
			resp.UsageMetadata = st.chunks[i].UsageMetadata
			break
		}
	}
	return resp
}

func (st *Stream) afcHistory() []*genai.Content {
	for i := len(st.chunks) - 1; i >= 0; i-- {
		if len(st.chunks[i].AutomaticFunctionCallingHistory) > 0 {
			return st.chunks[i].AutomaticFunctionCallingHistory
		}
	}
	return nil
}
