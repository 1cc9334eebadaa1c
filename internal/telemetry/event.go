// Package telemetry appends structured behavior events to rotating,
// size-bounded JSONL files under a local logs directory.
package telemetry

// EventType tags a telemetry record.
type EventType string

// Core event kinds emitted around every exchange.
const (
	EventTypingStart  EventType = "typing_start"
	EventPromptSubmit EventType = "prompt_submit"
	EventAPIRequest   EventType = "api_request"
	EventAPIResponse  EventType = "api_response"
	EventAPIError     EventType = "api_error"
)

// UI-adjacent kinds passed through opaquely.
const (
	EventSessionStart   EventType = "session_start"
	EventSessionEnd     EventType = "session_end"
	EventCommandExecute EventType = "command_execute"
	EventUIInteraction  EventType = "ui_interaction"
)

// Event is one telemetry record. Created at the moment an observable
// interaction occurs and never mutated afterwards; fields that do not apply
// to the event kind are omitted from the JSON line.
type Event struct {
	EventType     EventType `json:"eventType"`
	Timestamp     string    `json:"timestamp"`
	SessionID     string    `json:"sessionId"`
	StudentIDHash string    `json:"studentIdHash"`
	MachineIDHash string    `json:"machineIdHash"`

	Model     string `json:"model,omitempty"`
	PromptID  string `json:"promptId,omitempty"`
	RequestID string `json:"requestId,omitempty"`

	// Request classification.
	OperationType      string   `json:"operationType,omitempty"`
	ToolsCalled        []string `json:"toolsCalled,omitempty"`
	RequestContext     string   `json:"requestContext,omitempty"`
	EstimatedTokens    int      `json:"estimatedTokens,omitempty"`
	ConversationTurn   int      `json:"conversationTurn,omitempty"`
	HasFileContext     bool     `json:"hasFileContext,omitempty"`
	SystemPromptLength int      `json:"systemPromptLength,omitempty"`

	// Response classification.
	ResponseType     string `json:"responseType,omitempty"`
	InputTokenCount  int    `json:"inputTokenCount,omitempty"`
	OutputTokenCount int    `json:"outputTokenCount,omitempty"`
	DurationMs       int64  `json:"durationMs,omitempty"`

	// Failures.
	Error     string `json:"error,omitempty"`
	ErrorType string `json:"errorType,omitempty"`
	AuthType  string `json:"authType,omitempty"`

	// Opaque payload for pass-through kinds.
	Detail map[string]any `json:"detail,omitempty"`
}
