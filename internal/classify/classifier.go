// Package classify derives descriptive request and response metadata from
// conversation contents. Everything here is a pure function over the
// outgoing content set; nothing inspects session state or performs I/O.
package classify

import (
	"strings"

	"github.com/tddg/qwen-code/internal/genai"
)

// Operation types attached to request events. The classifier itself only
// produces chat, tool_call, and unknown; completion and embedding complete
// the recorded enum for analysis tooling reading the JSONL files.
const (
	OpChat       = "chat"
	OpToolCall   = "tool_call"
	OpCompletion = "completion"
	OpEmbedding  = "embedding"
	OpUnknown    = "unknown"
)

// Request contexts.
const (
	ContextNew          = "new"
	ContextContinuation = "continuation"
	ContextToolResult   = "tool_result"
)

// Response types.
const (
	ResponseError          = "error"
	ResponseToolCall       = "tool_call"
	ResponseText           = "text_response"
	ResponseMixed          = "mixed"
	ResponseStreamingChunk = "streaming_chunk"
)

// OperationType classifies the outgoing content set: tool_call when any
// past model turn carries a tool invocation, chat when at least one turn
// is present, unknown otherwise.
func OperationType(contents []*genai.Content) string {
	for _, c := range contents {
		if c != nil && c.Role == genai.RoleModel && c.HasFunctionCall() {
			return OpToolCall
		}
	}
	if len(contents) > 0 {
		return OpChat
	}
	return OpUnknown
}

// toolSignals maps keyword groups to the tool they predict. Order is fixed
// so the returned set is deterministic.
var toolSignals = []struct {
	tool     string
	keywords []string
}{
	{"read_file", []string{"read", "file", "@"}},
	{"write_file", []string{"write", "create", "save"}},
	{"search", []string{"search", "find", "grep"}},
	{"shell", []string{"run", "execute", "command"}},
	{"web_fetch", []string{"web", "http", "url"}},
}

// PredictTools scans only the most recent user turn's text for keyword
// signals and returns the deduplicated set of predicted tool names. This is
// a heuristic about what is about to be sent, never an execution trace, so
// earlier turns are deliberately not inspected.
func PredictTools(contents []*genai.Content) []string {
	var last *genai.Content
	for i := len(contents) - 1; i >= 0; i-- {
		if contents[i] != nil && contents[i].Role == genai.RoleUser {
			last = contents[i]
			break
		}
	}
	if last == nil {
		return nil
	}
	text := strings.ToLower(last.Text())
	var tools []string
	for _, sig := range toolSignals {
		for _, kw := range sig.keywords {
			if strings.Contains(text, kw) {
				tools = append(tools, sig.tool)
				break
			}
		}
	}
	return tools
}

// RequestContext classifies how the request relates to the conversation:
// tool_result when the final content is a user turn carrying a tool result,
// continuation when more than one turn is present, new otherwise.
func RequestContext(contents []*genai.Content) string {
	if len(contents) > 0 {
		final := contents[len(contents)-1]
		if final != nil && final.Role == genai.RoleUser && final.HasFunctionResponse() {
			return ContextToolResult
		}
	}
	if len(contents) > 1 {
		return ContextContinuation
	}
	return ContextNew
}

// EstimateTokens sums ceil(len/4) over all text parts. A coarse
// deterministic proxy, not a tokenizer.
func EstimateTokens(contents []*genai.Content) int {
	total := 0
	for _, c := range contents {
		if c == nil {
			continue
		}
		for _, p := range c.Parts {
			if p != nil && p.Text != "" {
				total += (len(p.Text) + 3) / 4
			}
		}
	}
	return total
}

// fileMarkers are substrings that suggest a file path is present in text.
var fileMarkers = []string{
	".go", ".md", ".py", ".js", ".ts", ".json", ".yaml", ".txt", "file:",
}

// HasFileContext reports whether any text part looks like it references a
// file.
func HasFileContext(contents []*genai.Content) bool {
	for _, c := range contents {
		if c == nil {
			continue
		}
		for _, p := range c.Parts {
			if p == nil || p.Text == "" {
				continue
			}
			lower := strings.ToLower(p.Text)
			for _, marker := range fileMarkers {
				if strings.Contains(lower, marker) {
					return true
				}
			}
		}
	}
	return false
}

// SystemPromptLength returns the character length of the configured system
// instruction, zero when absent.
func SystemPromptLength(cfg *genai.GenerateContentConfig) int {
	if cfg == nil || cfg.SystemInstruction == nil {
		return 0
	}
	return cfg.SystemInstruction.PromptLength()
}

// ResponseType classifies a response or chunk by its candidate parts.
func ResponseType(resp *genai.GenerateContentResponse) string {
	content := resp.FirstContent()
	if content == nil || len(content.Parts) == 0 {
		if resp != nil && resp.Partial {
			return ResponseStreamingChunk
		}
		return ResponseError
	}

	hasText, hasCall := false, false
	for _, p := range content.Parts {
		switch {
		case p == nil:
		case p.FunctionCall != nil:
			hasCall = true
		case !p.Thought && p.Text != "":
			hasText = true
		}
	}
	switch {
	case hasCall && hasText:
		return ResponseMixed
	case hasCall:
		return ResponseToolCall
	case hasText:
		return ResponseText
	case resp.Partial:
		return ResponseStreamingChunk
	default:
		return ResponseError
	}
}
