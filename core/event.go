package core

import (
	"time"

	"github.com/google/uuid"
)

// EventType is the outer discriminant of an Event frame.
type EventType string

const (
	EventTrace  EventType = "trace"
	EventTokens EventType = "tokens"
	EventDone   EventType = "done"
	EventError  EventType = "error"
)

// TraceType is the discriminant of a TraceEntry.
type TraceType string

const (
	TraceText       TraceType = "text"
	TraceToolCall   TraceType = "tool_call"
	TraceToolResult TraceType = "tool_result"
	TraceError      TraceType = "error"
)

// TraceEntry is one line of the observable run transcript.
type TraceEntry struct {
	Type    TraceType      `json:"type"`
	Name    string         `json:"name,omitempty"`
	Args    map[string]any `json:"args,omitempty"`
	Content string         `json:"content,omitempty"`
}

// TokenUsage holds the running totals of a run.
type TokenUsage struct {
	InputTokens    int `json:"inputTokens"`
	OutputTokens   int `json:"outputTokens"`
	ThinkingTokens int `json:"thinkingTokens"`
	ToolCallCount  int `json:"toolCallCount"`
}

// DoneInfo is carried by the terminal done event.
type DoneInfo struct {
	Completed      bool `json:"completed"`
	NeedsUserInput bool `json:"needsUserInput"`
}

// ErrorInfo is carried by the terminal error event.
type ErrorInfo struct {
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
	Kind    string `json:"kind,omitempty"`
}

// Event is the unit of the outbound stream. It is immutable after emission.
// Exactly one payload matching Type is set.
type Event struct {
	ID        string      `json:"id"`
	RunID     string      `json:"runId,omitempty"`
	Seq       int         `json:"seq"`
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Entry     *TraceEntry `json:"entry,omitempty"`
	Tokens    *TokenUsage `json:"tokens,omitempty"`
	Done      *DoneInfo   `json:"done,omitempty"`
	Error     *ErrorInfo  `json:"error,omitempty"`
}

// NewID generates a new unique identifier for runs and events.
func NewID() string { return uuid.NewString() }

func newEvent(runID string, typ EventType) Event {
	return Event{
		ID:        NewID(),
		RunID:     runID,
		Type:      typ,
		Timestamp: time.Now().UTC(),
	}
}

// NewTextEvent reports user-visible model text.
func NewTextEvent(runID, text string) Event {
	e := newEvent(runID, EventTrace)
	e.Entry = &TraceEntry{Type: TraceText, Content: text}
	return e
}

// NewToolCallEvent reports the intent to execute a tool.
func NewToolCallEvent(runID, name string, args map[string]any) Event {
	e := newEvent(runID, EventTrace)
	e.Entry = &TraceEntry{Type: TraceToolCall, Name: name, Args: args}
	return e
}

// NewToolResultEvent reports the outcome of a tool execution.
func NewToolResultEvent(runID, name, content string) Event {
	e := newEvent(runID, EventTrace)
	e.Entry = &TraceEntry{Type: TraceToolResult, Name: name, Content: content}
	return e
}

// NewTokensEvent reports the current running totals.
func NewTokensEvent(runID string, usage TokenUsage) Event {
	e := newEvent(runID, EventTokens)
	e.Tokens = &usage
	return e
}

// NewDoneEvent terminates a run normally.
func NewDoneEvent(runID string, completed, needsUserInput bool) Event {
	e := newEvent(runID, EventDone)
	e.Done = &DoneInfo{Completed: completed, NeedsUserInput: needsUserInput}
	return e
}

// NewErrorEvent terminates a run with a failure. The kind is derived from err.
func NewErrorEvent(runID, message string, err error) Event {
	e := newEvent(runID, EventError)
	info := &ErrorInfo{Message: message, Kind: ErrorKind(err)}
	if err != nil {
		info.Detail = err.Error()
	}
	e.Error = info
	return e
}

// IsTerminal reports whether no further events follow this one.
func (e Event) IsTerminal() bool {
	return e.Type == EventDone || e.Type == EventError
}
