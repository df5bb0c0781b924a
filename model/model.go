package model

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hupe1980/agentplay/core"
)

// ToolDefinition declaratively exposes a callable function to the model.
// Parameters is a JSON Schema object with type, properties and required.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Properties returns the schema properties, never nil.
func (d ToolDefinition) Properties() map[string]any {
	if p, ok := d.Parameters["properties"].(map[string]any); ok {
		return p
	}
	return map[string]any{}
}

// Required returns the names of the required parameters.
func (d ToolDefinition) Required() []string {
	switch r := d.Parameters["required"].(type) {
	case []string:
		return r
	case []any:
		out := make([]string, 0, len(r))
		for _, v := range r {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Request is the normalized input of one adapter invocation.
type Request struct {
	Credential         string
	ModelID            string
	SystemInstructions string
	History            []core.Turn
	Tools              []ToolDefinition
}

// Usage is the token accounting of one adapter invocation.
type Usage struct {
	InputTokens    int `json:"inputTokens"`
	OutputTokens   int `json:"outputTokens"`
	ThinkingTokens int `json:"thinkingTokens"`
}

// Total returns the sum of all counters.
func (u Usage) Total() int { return u.InputTokens + u.OutputTokens + u.ThinkingTokens }

// Response is the normalized result of one adapter invocation: the model's
// turn plus accounting.
type Response struct {
	ID           string                  `json:"id,omitempty"`
	Text         string                  `json:"text,omitempty"`
	ToolCalls    []core.ToolCall         `json:"toolCalls,omitempty"`
	Usage        Usage                   `json:"usage"`
	Continuation *core.ContinuationState `json:"continuation,omitempty"`
	FinishReason string                  `json:"finishReason,omitempty"`
}

// Turn converts the response into the model turn appended to history.
func (r *Response) Turn() core.Turn {
	return core.NewModelTurn(r.Text, r.ToolCalls, r.Continuation)
}

// Adapter normalizes one vendor's chat API. Implementations must not retry
// and must wrap vendor failures in *core.ProviderError.
type Adapter interface {
	Provider() Provider
	Invoke(ctx context.Context, req Request) (*Response, error)
}

// DecodeArguments parses a JSON argument payload. Malformed input is kept
// under "_raw" so the model can see what it sent.
func DecodeArguments(raw string) map[string]any {
	if raw == "" {
		return map[string]any{}
	}

	args := map[string]any{}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return map[string]any{"_raw": raw}
	}

	return args
}

// EncodeArguments serializes arguments for vendors that expect a JSON string.
func EncodeArguments(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}

	b, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}

	return string(b)
}

// EnsureCallIDs assigns call_<n> ids to calls the provider left unnamed.
func EnsureCallIDs(calls []core.ToolCall) {
	for i := range calls {
		if calls[i].ID == "" {
			calls[i].ID = fmt.Sprintf("call_%d", i)
		}
	}
}

// UnexpectedTurnError reports a history turn an adapter cannot translate.
func UnexpectedTurnError(t core.Turn) error {
	return fmt.Errorf("unsupported turn kind %q", t.Kind)
}
