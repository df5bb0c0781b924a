// Package openai provides an implementation of model.Adapter using the OpenAI
// Chat Completions API with function/tool calling. It adapts AgentPlay's
// normalized turns into the SDK's message format and back.
package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/hupe1980/agentplay/core"
	"github.com/hupe1980/agentplay/model"
)

// Options configure the OpenAI model adapter.
// Fields mirror a subset of Chat Completion parameters intentionally kept
// minimal; extend via functional options without breaking callers.
type Options struct {
	Temperature         *float64
	MaxCompletionTokens int64
	// BaseURL targets an OpenAI-compatible endpoint.
	BaseURL        string
	RequestOptions []option.RequestOption
}

// Adapter wraps the OpenAI Chat Completions API behind model.Adapter.
type Adapter struct {
	opts Options
}

// New creates an OpenAI adapter.
func New(optFns ...func(o *Options)) *Adapter {
	opts := Options{}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Adapter{opts: opts}
}

// Provider implements model.Adapter.
func (a *Adapter) Provider() model.Provider { return model.ProviderOpenAI }

// Invoke implements model.Adapter.
func (a *Adapter) Invoke(ctx context.Context, req model.Request) (*model.Response, error) {
	messages, err := buildMessages(req.SystemInstructions, req.History)
	if err != nil {
		return nil, core.NewProviderError(string(model.ProviderOpenAI), err)
	}

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(req.ModelID),
		Messages: messages,
	}

	if len(req.Tools) > 0 {
		params.Tools = buildTools(req.Tools)
	}
	if a.opts.Temperature != nil {
		params.Temperature = openai.Float(*a.opts.Temperature)
	}
	if a.opts.MaxCompletionTokens > 0 {
		params.MaxCompletionTokens = openai.Int(a.opts.MaxCompletionTokens)
	}

	clientOpts := []option.RequestOption{
		option.WithAPIKey(req.Credential),
		option.WithMaxRetries(0),
	}
	if a.opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(a.opts.BaseURL))
	}
	clientOpts = append(clientOpts, a.opts.RequestOptions...)
	client := openai.NewClient(clientOpts...)

	completion, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, core.NewProviderError(string(model.ProviderOpenAI), err)
	}

	return parseCompletion(completion)
}

func parseCompletion(c *openai.ChatCompletion) (*model.Response, error) {
	if c == nil || len(c.Choices) == 0 {
		return nil, core.NewProviderError(string(model.ProviderOpenAI), fmt.Errorf("no choices returned"))
	}

	choice := c.Choices[0]
	msg := choice.Message

	text := msg.Content
	if text == "" {
		text = msg.Refusal
	}

	resp := &model.Response{
		ID:           c.ID,
		Text:         text,
		FinishReason: choice.FinishReason,
		Usage: model.Usage{
			InputTokens:  int(c.Usage.PromptTokens),
			OutputTokens: int(c.Usage.CompletionTokens),
		},
	}

	for _, tc := range msg.ToolCalls {
		resp.ToolCalls = append(resp.ToolCalls, core.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: model.DecodeArguments(tc.Function.Arguments),
		})
	}
	model.EnsureCallIDs(resp.ToolCalls)

	return resp, nil
}

// buildMessages converts turns into Chat Completion messages. Tool results
// become one tool message per result following the assistant tool_calls.
func buildMessages(system string, history []core.Turn) ([]openai.ChatCompletionMessageParamUnion, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+1)

	if system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}

	for _, turn := range history {
		switch turn.Kind {
		case core.TurnUser:
			messages = append(messages, openai.UserMessage(turn.User.Text))
		case core.TurnModel:
			messages = append(messages, buildAssistantMessage(turn.Model))
		case core.TurnToolResults:
			for _, r := range turn.ToolResults.Results {
				messages = append(messages, openai.ToolMessage(r.Content, r.ID))
			}
		default:
			return nil, model.UnexpectedTurnError(turn)
		}
	}

	return messages, nil
}

func buildAssistantMessage(t *core.ModelTurn) openai.ChatCompletionMessageParamUnion {
	assistant := openai.ChatCompletionAssistantMessageParam{}

	if t.Text != "" {
		assistant.Content.OfString = openai.String(t.Text)
	}

	for _, call := range t.ToolCalls {
		assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallParam{
			ID: call.ID,
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      call.Name,
				Arguments: model.EncodeArguments(call.Arguments),
			},
		})
	}

	return openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant}
}

func buildTools(defs []model.ToolDefinition) []openai.ChatCompletionToolParam {
	tools := make([]openai.ChatCompletionToolParam, 0, len(defs))

	for _, d := range defs {
		fn := shared.FunctionDefinitionParam{
			Name:       d.Name,
			Parameters: shared.FunctionParameters(d.Parameters),
		}
		if d.Description != "" {
			fn.Description = openai.String(d.Description)
		}

		tools = append(tools, openai.ChatCompletionToolParam{Function: fn})
	}

	return tools
}
