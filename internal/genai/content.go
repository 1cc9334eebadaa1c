// Package genai defines the conversation content model and the contract
// for pluggable content generators.
package genai

import "strings"

// Conversation roles.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// FunctionCall is a tool invocation requested by the model.
type FunctionCall struct {
	ID   string         `json:"id,omitempty"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// FunctionResponse carries the result of a tool invocation back to the model.
type FunctionResponse struct {
	ID       string         `json:"id,omitempty"`
	Name     string         `json:"name"`
	Response map[string]any `json:"response,omitempty"`
}

// Part is one unit of content within a turn: text, a thought marker,
// a tool invocation, or a tool result. Exactly one field is expected to
// be meaningful per part.
type Part struct {
	Text             string            `json:"text,omitempty"`
	Thought          bool              `json:"thought,omitempty"`
	FunctionCall     *FunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *FunctionResponse `json:"functionResponse,omitempty"`
}

// NewTextPart creates a plain text part.
func NewTextPart(text string) *Part {
	return &Part{Text: text}
}

// NewThoughtPart creates a thought-marker part. Thought parts are shown to
// callers during streaming but never persisted as conversation state.
func NewThoughtPart(text string) *Part {
	return &Part{Text: text, Thought: true}
}

// IsText reports whether the part carries plain (non-thought) text.
func (p *Part) IsText() bool {
	return p != nil && !p.Thought && p.FunctionCall == nil && p.FunctionResponse == nil
}

// IsValid reports whether the part carries any usable content. An empty
// text part that is not a thought marker is invalid.
func (p *Part) IsValid() bool {
	if p == nil {
		return false
	}
	if p.FunctionCall != nil || p.FunctionResponse != nil || p.Thought {
		return true
	}
	return strings.TrimSpace(p.Text) != ""
}

// Content is one turn in a conversation.
type Content struct {
	Role  string  `json:"role"`
	Parts []*Part `json:"parts"`
}

// NewUserContent builds a user turn from parts.
func NewUserContent(parts ...*Part) *Content {
	return &Content{Role: RoleUser, Parts: parts}
}

// NewUserText builds a user turn from a single text part.
func NewUserText(text string) *Content {
	return NewUserContent(NewTextPart(text))
}

// NewModelContent builds a model turn from parts.
func NewModelContent(parts ...*Part) *Content {
	return &Content{Role: RoleModel, Parts: parts}
}

// Text returns the concatenated non-thought text of the turn.
func (c *Content) Text() string {
	if c == nil {
		return ""
	}
	var sb strings.Builder
	for _, p := range c.Parts {
		if p != nil && !p.Thought {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

// IsValid reports whether the turn is safe to resend to the model: it has
// at least one part and every part carries usable content.
func (c *Content) IsValid() bool {
	if c == nil || len(c.Parts) == 0 {
		return false
	}
	for _, p := range c.Parts {
		if !p.IsValid() {
			return false
		}
	}
	return true
}

// IsTextOnly reports whether every part of the turn is plain text.
func (c *Content) IsTextOnly() bool {
	if c == nil || len(c.Parts) == 0 {
		return false
	}
	for _, p := range c.Parts {
		if !p.IsText() {
			return false
		}
	}
	return true
}

// HasFunctionCall reports whether any part of the turn is a tool invocation.
func (c *Content) HasFunctionCall() bool {
	if c == nil {
		return false
	}
	for _, p := range c.Parts {
		if p != nil && p.FunctionCall != nil {
			return true
		}
	}
	return false
}

// HasFunctionResponse reports whether any part of the turn is a tool result.
func (c *Content) HasFunctionResponse() bool {
	if c == nil {
		return false
	}
	for _, p := range c.Parts {
		if p != nil && p.FunctionResponse != nil {
			return true
		}
	}
	return false
}

// WithoutThoughts returns a copy of the turn with thought parts removed.
// Returns nil if nothing but thoughts remain.
func (c *Content) WithoutThoughts() *Content {
	if c == nil {
		return nil
	}
	parts := make([]*Part, 0, len(c.Parts))
	for _, p := range c.Parts {
		if p != nil && !p.Thought {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return nil
	}
	return &Content{Role: c.Role, Parts: parts}
}
