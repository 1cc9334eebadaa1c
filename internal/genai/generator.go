package genai

import "context"

// UsageMetadata reports token accounting for one response. Its absence on
// a chunk marks a non-terminal, non-billable streaming artifact.
type UsageMetadata struct {
	InputTokenCount         int `json:"inputTokenCount"`
	OutputTokenCount        int `json:"outputTokenCount"`
	CachedContentTokenCount int `json:"cachedContentTokenCount,omitempty"`
	ThoughtsTokenCount      int `json:"thoughtsTokenCount,omitempty"`
	TotalTokenCount         int `json:"totalTokenCount,omitempty"`
}

// Candidate is one generated completion.
type Candidate struct {
	Content      *Content `json:"content,omitempty"`
	FinishReason string   `json:"finishReason,omitempty"`
}

// GenerateContentRequest is the outgoing content set plus generation config.
type GenerateContentRequest struct {
	Model    string
	Contents []*Content
	Config   *GenerateContentConfig
}

// GenerateContentResponse is a full response or one streamed chunk.
type GenerateContentResponse struct {
	Candidates    []*Candidate   `json:"candidates,omitempty"`
	UsageMetadata *UsageMetadata `json:"usageMetadata,omitempty"`

	// Partial marks an intermediate streaming chunk that carries no final
	// candidate set.
	Partial bool `json:"partial,omitempty"`

	// AutomaticFunctionCallingHistory, when set, is the full multi-step
	// tool-call trace the transport executed on the session's behalf. It
	// replaces the single user+model pair during history commit.
	AutomaticFunctionCallingHistory []*Content `json:"-"`
}

// FirstContent returns the first candidate's content, or nil.
func (r *GenerateContentResponse) FirstContent() *Content {
	if r == nil || len(r.Candidates) == 0 {
		return nil
	}
	return r.Candidates[0].Content
}

// Text returns the concatenated non-thought text of the first candidate.
func (r *GenerateContentResponse) Text() string {
	return r.FirstContent().Text()
}

// ChunkStream is a lazy, single-pass sequence of response chunks. Next
// returns io.EOF after the final chunk. Callers that stop pulling early
// must call Close to release transport resources; Close is idempotent.
type ChunkStream interface {
	Next() (*GenerateContentResponse, error)
	Close() error
}

// ContentGenerator is the transport capability a chat session talks to.
//
// Contract: requestID is the exchange's correlation id, minted exactly once
// by the session. Implementations must thread it through unchanged and must
// never mint their own, even when delegating to an alternate protocol
// adapter.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, req *GenerateContentRequest, promptID, requestID string) (*GenerateContentResponse, error)
	GenerateContentStream(ctx context.Context, req *GenerateContentRequest, promptID, requestID string) (ChunkStream, error)
}
