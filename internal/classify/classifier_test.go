package classify

import (
	"reflect"
	"testing"

	"github.com/tddg/qwen-code/internal/genai"
)

func TestOperationType(t *testing.T) {
	tests := []struct {
		name     string
		contents []*genai.Content
		want     string
	}{
		{"empty", nil, OpUnknown},
		{"single user turn", []*genai.Content{genai.NewUserText("hi")}, OpChat},
		{
			"multi turn",
			[]*genai.Content{
				genai.NewUserText("hi"),
				genai.NewModelContent(genai.NewTextPart("hello")),
				genai.NewUserText("more"),
			},
			OpChat,
		},
		{
			"model turn with tool invocation",
			[]*genai.Content{
				genai.NewUserText("list files"),
				genai.NewModelContent(&genai.Part{FunctionCall: &genai.FunctionCall{Name: "shell"}}),
				genai.NewUserText("thanks"),
			},
			OpToolCall,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := OperationType(tt.contents); got != tt.want {
				t.Errorf("OperationType() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPredictTools(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"read with at-mention", "read @notes.md", []string{"read_file"}},
		{"plain conversation", "hello, how are you", nil},
		{"write request", "please save this to disk", []string{"write_file"}},
		{"search request", "grep for the handler", []string{"search"}},
		{"shell request", "execute the tests", []string{"shell"}},
		{"web request", "fetch that url for me", []string{"web_fetch"}},
		{"multiple signals", "read the file and run the command", []string{"read_file", "shell"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			contents := []*genai.Content{genai.NewUserText(tt.text)}
			if got := PredictTools(contents); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("PredictTools(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestPredictToolsIgnoresEarlierTurns(t *testing.T) {
	contents := []*genai.Content{
		genai.NewUserText("read @notes.md"),
		genai.NewModelContent(genai.NewTextPart("done")),
		genai.NewUserText("thanks a lot"),
	}
	if got := PredictTools(contents); got != nil {
		t.Errorf("PredictTools should only inspect the most recent user turn, got %v", got)
	}
}

func TestRequestContext(t *testing.T) {
	toolResult := genai.NewUserContent(&genai.Part{
		FunctionResponse: &genai.FunctionResponse{Name: "shell"},
	})
	tests := []struct {
		name     string
		contents []*genai.Content
		want     string
	}{
		{"empty", nil, ContextNew},
		{"single turn", []*genai.Content{genai.NewUserText("hi")}, ContextNew},
		{
			"continuation",
			[]*genai.Content{genai.NewUserText("hi"), genai.NewModelContent(genai.NewTextPart("hey")), genai.NewUserText("go on")},
			ContextContinuation,
		},
		{
			"tool result final",
			[]*genai.Content{genai.NewUserText("run it"), toolResult},
			ContextToolResult,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RequestContext(tt.contents); got != tt.want {
				t.Errorf("RequestContext() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEstimateTokens(t *testing.T) {
	contents := []*genai.Content{
		// 4 chars round to one token, 5 chars to two.
		genai.NewUserText("abcd"),
		genai.NewUserText("abcde"),
		// A tool invocation contributes no text.
		genai.NewModelContent(&genai.Part{FunctionCall: &genai.FunctionCall{Name: "x"}}),
	}
	if got := EstimateTokens(contents); got != 3 {
		t.Errorf("EstimateTokens() = %d, want 3", got)
	}
	if got := EstimateTokens(nil); got != 0 {
		t.Errorf("EstimateTokens(nil) = %d, want 0", got)
	}
}

func TestHasFileContext(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"open main.go please", true},
		{"see file:README", true},
		{"just chatting", false},
	}
	for _, tt := range tests {
		contents := []*genai.Content{genai.NewUserText(tt.text)}
		if got := HasFileContext(contents); got != tt.want {
			t.Errorf("HasFileContext(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestSystemPromptLength(t *testing.T) {
	if got := SystemPromptLength(nil); got != 0 {
		t.Errorf("nil config should yield 0, got %d", got)
	}
	cfg := &genai.GenerateContentConfig{SystemInstruction: genai.SystemText("abc")}
	if got := SystemPromptLength(cfg); got != 3 {
		t.Errorf("SystemPromptLength() = %d, want 3", got)
	}
	cfg.SystemInstruction = genai.SystemParts{genai.NewTextPart("ab"), genai.NewTextPart("cd")}
	if got := SystemPromptLength(cfg); got != 4 {
		t.Errorf("SystemPromptLength(parts) = %d, want 4", got)
	}
}

func TestResponseType(t *testing.T) {
	textResp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: genai.NewModelContent(genai.NewTextPart("hi"))}},
	}
	callResp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: genai.NewModelContent(
			&genai.Part{FunctionCall: &genai.FunctionCall{Name: "shell"}},
		)}},
	}
	mixedResp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: genai.NewModelContent(
			genai.NewTextPart("running"),
			&genai.Part{FunctionCall: &genai.FunctionCall{Name: "shell"}},
		)}},
	}

	tests := []struct {
		name string
		resp *genai.GenerateContentResponse
		want string
	}{
		{"no candidates", &genai.GenerateContentResponse{}, ResponseError},
		{"partial chunk", &genai.GenerateContentResponse{Partial: true}, ResponseStreamingChunk},
		{"text only", textResp, ResponseText},
		{"tool call only", callResp, ResponseToolCall},
		{"mixed", mixedResp, ResponseMixed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResponseType(tt.resp); got != tt.want {
				t.Errorf("ResponseType() = %q, want %q", got, tt.want)
			}
		})
	}
}
