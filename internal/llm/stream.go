package llm

import (
	"context"
	"fmt"
	"io"

	"github.com/tmc/langchaingo/llms"

	"github.com/tddg/qwen-code/internal/genai"
)

type streamItem struct {
	chunk *genai.GenerateContentResponse
	err   error
}

// chunkStream bridges langchaingo's push-style streaming callback into the
// pull-style ChunkStream contract. The producer goroutine blocks on an
// unbuffered channel, so consuming the stream is what drives the transport;
// Close cancels the producer's context and releases it.
type chunkStream struct {
	ch     chan streamItem
	cancel context.CancelFunc
	done   bool
	err    error
}

var _ genai.ChunkStream = (*chunkStream)(nil)

func newChunkStream(ctx context.Context, model llms.Model, messages []llms.MessageContent, opts []llms.CallOption) *chunkStream {
	ctx, cancel := context.WithCancel(ctx)
	st := &chunkStream{
		ch:     make(chan streamItem),
		cancel: cancel,
	}

	send := func(item streamItem) bool {
		select {
		case st.ch <- item:
			return true
		case <-ctx.Done():
			return false
		}
	}

	go func() {
		defer close(st.ch)

		streamOpts := append(opts, llms.WithStreamingFunc(func(cbCtx context.Context, delta []byte) error {
			if len(delta) == 0 {
				return nil
			}
			chunk := &genai.GenerateContentResponse{
				Candidates: []*genai.Candidate{{
					Content: genai.NewModelContent(genai.NewTextPart(string(delta))),
				}},
				Partial: true,
			}
			if !send(streamItem{chunk: chunk}) {
				return ctx.Err()
			}
			return nil
		}))

		resp, err := model.GenerateContent(ctx, messages, streamOpts...)
		if err != nil {
			send(streamItem{err: fmt.Errorf("generate content stream: %w", err)})
			return
		}

		// Terminal chunk: token accounting and any tool calls the text
		// deltas could not carry. Text already streamed is not repeated.
		final := convertResponse(resp)
		final.Candidates = stripTextCandidates(final.Candidates)
		send(streamItem{chunk: final})
	}()

	return st
}

// stripTextCandidates drops text parts from the terminal chunk so content
// is not duplicated after the deltas that already delivered it.
func stripTextCandidates(candidates []*genai.Candidate) []*genai.Candidate {
	var out []*genai.Candidate
	for _, cand := range candidates {
		copied := &genai.Candidate{FinishReason: cand.FinishReason}
		if cand.Content != nil {
			var parts []*genai.Part
			for _, p := range cand.Content.Parts {
				if p != nil && p.FunctionCall != nil {
					parts = append(parts, p)
				}
			}
			if len(parts) > 0 {
				copied.Content = genai.NewModelContent(parts...)
			}
		}
		out = append(out, copied)
	}
	return out
}

// Next returns the next chunk, io.EOF after the terminal chunk, or the
// transport error that ended the stream.
func (st *chunkStream) Next() (*genai.GenerateContentResponse, error) {
	if st.done {
		if st.err != nil {
			return nil, st.err
		}
		return nil, io.EOF
	}
	item, ok := <-st.ch
	if !ok {
		st.done = true
		return nil, io.EOF
	}
	if item.err != nil {
		st.done = true
		st.err = item.err
		return nil, st.err
	}
	return item.chunk, nil
}

// Close releases the transport. Safe to call at any point; pulls after
// Close report io.EOF.
func (st *chunkStream) Close() error {
	st.cancel()
	st.done = true
	return nil
}
