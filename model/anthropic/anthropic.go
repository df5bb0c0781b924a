// Package anthropic provides a model adapter for the Anthropic Messages API.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/hupe1980/agentplay/core"
	"github.com/hupe1980/agentplay/model"
)

// Options configures the Anthropic adapter. ThinkingBudget > 0 requests
// extended thinking; the budget must stay below MaxTokens.
type Options struct {
	MaxTokens      int64
	Temperature    *float64
	ThinkingBudget int64
	// RequestOptions are appended to every client, e.g. option.WithBaseURL
	// for a proxy or a test server.
	RequestOptions []option.RequestOption
}

// Adapter implements model.Adapter on top of the official SDK.
type Adapter struct {
	opts Options
}

// New creates an Anthropic adapter.
func New(optFns ...func(o *Options)) *Adapter {
	opts := Options{
		MaxTokens: 4096,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Adapter{opts: opts}
}

// Provider implements model.Adapter.
func (a *Adapter) Provider() model.Provider { return model.ProviderAnthropic }

// Invoke implements model.Adapter.
func (a *Adapter) Invoke(ctx context.Context, req model.Request) (*model.Response, error) {
	messages, err := buildMessages(req.History)
	if err != nil {
		return nil, core.NewProviderError(string(model.ProviderAnthropic), err)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.ModelID),
		Messages:  messages,
		MaxTokens: a.opts.MaxTokens,
	}

	if req.SystemInstructions != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemInstructions}}
	}

	if len(req.Tools) > 0 {
		params.Tools = buildTools(req.Tools)
	}

	if a.opts.ThinkingBudget > 0 {
		params.Thinking = anthropic.ThinkingConfigParamOfEnabled(a.opts.ThinkingBudget)
	} else if a.opts.Temperature != nil {
		params.Temperature = anthropic.Float(*a.opts.Temperature)
	}

	clientOpts := append([]option.RequestOption{
		option.WithAPIKey(req.Credential),
		option.WithMaxRetries(0),
	}, a.opts.RequestOptions...)
	client := anthropic.NewClient(clientOpts...)

	msg, err := client.Messages.New(ctx, params)
	if err != nil {
		return nil, core.NewProviderError(string(model.ProviderAnthropic), err)
	}

	return parseMessage(msg)
}

// thinkingBlock is the continuation payload: reasoning blocks that must be
// sent back unchanged with the assistant turn.
type thinkingBlock struct {
	Type      string `json:"type"`
	Thinking  string `json:"thinking,omitempty"`
	Signature string `json:"signature,omitempty"`
	Data      string `json:"data,omitempty"`
}

func parseMessage(msg *anthropic.Message) (*model.Response, error) {
	if msg == nil || len(msg.Content) == 0 {
		return nil, core.NewProviderError(string(model.ProviderAnthropic), fmt.Errorf("no content returned"))
	}

	resp := &model.Response{
		ID:           msg.ID,
		FinishReason: string(msg.StopReason),
		Usage: model.Usage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
		},
	}

	var (
		text     strings.Builder
		thinking []thinkingBlock
	)

	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.Text)
		case "tool_use":
			args := map[string]any{}
			if len(block.Input) > 0 {
				args = model.DecodeArguments(string(block.Input))
			}
			resp.ToolCalls = append(resp.ToolCalls, core.ToolCall{ID: block.ID, Name: block.Name, Arguments: args})
		case "thinking":
			thinking = append(thinking, thinkingBlock{Type: "thinking", Thinking: block.Thinking, Signature: block.Signature})
		case "redacted_thinking":
			thinking = append(thinking, thinkingBlock{Type: "redacted_thinking", Data: block.Data})
		}
	}

	resp.Text = text.String()
	model.EnsureCallIDs(resp.ToolCalls)

	if len(thinking) > 0 {
		data, err := json.Marshal(thinking)
		if err != nil {
			return nil, fmt.Errorf("encode thinking blocks: %w", err)
		}
		resp.Continuation = &core.ContinuationState{Provider: string(model.ProviderAnthropic), Data: data}
	}

	return resp, nil
}

// buildMessages converts turns to Messages API messages. Consecutive turns
// with the same role are merged because the API requires alternation.
func buildMessages(history []core.Turn) ([]anthropic.MessageParam, error) {
	var messages []anthropic.MessageParam

	push := func(role anthropic.MessageParamRole, blocks []anthropic.ContentBlockParamUnion) {
		if len(blocks) == 0 {
			return
		}
		if n := len(messages); n > 0 && messages[n-1].Role == role {
			messages[n-1].Content = append(messages[n-1].Content, blocks...)
			return
		}
		messages = append(messages, anthropic.MessageParam{Role: role, Content: blocks})
	}

	for _, turn := range history {
		switch turn.Kind {
		case core.TurnUser:
			if turn.User.Text == "" {
				continue
			}
			push(anthropic.MessageParamRoleUser, []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(turn.User.Text)})
		case core.TurnModel:
			blocks, err := buildAssistantContent(turn.Model)
			if err != nil {
				return nil, err
			}
			push(anthropic.MessageParamRoleAssistant, blocks)
		case core.TurnToolResults:
			blocks := make([]anthropic.ContentBlockParamUnion, 0, len(turn.ToolResults.Results))
			for _, r := range turn.ToolResults.Results {
				blocks = append(blocks, anthropic.NewToolResultBlock(r.ID, r.Content, r.IsError))
			}
			push(anthropic.MessageParamRoleUser, blocks)
		default:
			return nil, model.UnexpectedTurnError(turn)
		}
	}

	return messages, nil
}

func buildAssistantContent(t *core.ModelTurn) ([]anthropic.ContentBlockParamUnion, error) {
	var blocks []anthropic.ContentBlockParamUnion

	if t.Continuation.For(string(model.ProviderAnthropic)) {
		var thinking []thinkingBlock
		if err := json.Unmarshal(t.Continuation.Data, &thinking); err != nil {
			return nil, fmt.Errorf("decode thinking continuation: %w", err)
		}
		for _, tb := range thinking {
			if tb.Type == "redacted_thinking" {
				blocks = append(blocks, anthropic.NewRedactedThinkingBlock(tb.Data))
				continue
			}
			blocks = append(blocks, anthropic.NewThinkingBlock(tb.Signature, tb.Thinking))
		}
	}

	if t.Text != "" {
		blocks = append(blocks, anthropic.NewTextBlock(t.Text))
	}

	for _, call := range t.ToolCalls {
		args := call.Arguments
		if args == nil {
			args = map[string]any{}
		}
		blocks = append(blocks, anthropic.NewToolUseBlock(call.ID, args, call.Name))
	}

	return blocks, nil
}

func buildTools(defs []model.ToolDefinition) []anthropic.ToolUnionParam {
	tools := make([]anthropic.ToolUnionParam, 0, len(defs))

	for _, d := range defs {
		schema := anthropic.ToolInputSchemaParam{
			Type:       constant.Object("object"),
			Properties: d.Properties(),
			Required:   d.Required(),
		}

		tool := anthropic.ToolUnionParamOfTool(schema, d.Name)
		if d.Description != "" && tool.OfTool != nil {
			tool.OfTool.Description = anthropic.String(d.Description)
		}

		tools = append(tools, tool)
	}

	return tools
}
