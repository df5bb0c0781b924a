package core

import (
	"encoding/json"
	"fmt"
)

// TurnKind discriminates the payload carried by a Turn.
type TurnKind string

const (
	TurnUser        TurnKind = "user"
	TurnModel       TurnKind = "model"
	TurnToolResults TurnKind = "tool_results"
)

// Turn is one logical exchange of a conversation. Exactly one payload field
// matching Kind is set.
type Turn struct {
	Kind        TurnKind        `json:"kind"`
	User        *UserTurn       `json:"user,omitempty"`
	Model       *ModelTurn      `json:"model,omitempty"`
	ToolResults *ToolResultTurn `json:"toolResults,omitempty"`
}

// UserTurn is a plain user message.
type UserTurn struct {
	Text string `json:"text"`
}

// ModelTurn is what the model produced in one iteration. Continuation is
// opaque to everything but the adapter that created it.
type ModelTurn struct {
	Text         string             `json:"text,omitempty"`
	ToolCalls    []ToolCall         `json:"toolCalls,omitempty"`
	Continuation *ContinuationState `json:"continuation,omitempty"`
}

// ToolResultTurn bundles the results of one batch of tool calls, in call order.
type ToolResultTurn struct {
	Results []ToolResult `json:"results"`
}

// ToolCall is a structured request emitted by the model. ID may be empty for
// providers that correlate results by position.
type ToolCall struct {
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// ToolResult is the outcome of a single ToolCall.
type ToolResult struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name"`
	Content string `json:"content"`
	IsError bool   `json:"isError,omitempty"`
}

// ContinuationState is provider-specific data that must be replayed verbatim
// on the next request, e.g. reasoning segments with their signatures.
type ContinuationState struct {
	Provider string          `json:"provider"`
	Data     json.RawMessage `json:"data"`
}

// For reports whether the state was produced by the given provider.
func (c *ContinuationState) For(provider string) bool {
	return c != nil && c.Provider == provider && len(c.Data) > 0
}

// NewUserTurn creates a user turn.
func NewUserTurn(text string) Turn {
	return Turn{Kind: TurnUser, User: &UserTurn{Text: text}}
}

// NewModelTurn creates a model turn.
func NewModelTurn(text string, calls []ToolCall, cont *ContinuationState) Turn {
	return Turn{Kind: TurnModel, Model: &ModelTurn{Text: text, ToolCalls: calls, Continuation: cont}}
}

// NewToolResultTurn creates a tool-result turn.
func NewToolResultTurn(results []ToolResult) Turn {
	return Turn{Kind: TurnToolResults, ToolResults: &ToolResultTurn{Results: results}}
}

// Validate checks that the payload matches the kind.
func (t Turn) Validate() error {
	set := 0
	if t.User != nil {
		set++
	}
	if t.Model != nil {
		set++
	}
	if t.ToolResults != nil {
		set++
	}
	if set != 1 {
		return fmt.Errorf("turn %q must carry exactly one payload, got %d", t.Kind, set)
	}

	switch t.Kind {
	case TurnUser:
		if t.User == nil {
			return fmt.Errorf("user turn without user payload")
		}
	case TurnModel:
		if t.Model == nil {
			return fmt.Errorf("model turn without model payload")
		}
		for i, c := range t.Model.ToolCalls {
			if c.Name == "" {
				return fmt.Errorf("model turn tool call %d has no name", i)
			}
		}
	case TurnToolResults:
		if t.ToolResults == nil {
			return fmt.Errorf("tool_results turn without results payload")
		}
	default:
		return fmt.Errorf("unknown turn kind %q", t.Kind)
	}

	return nil
}
