// Package gemini provides a model adapter for the Gemini API built on
// google.golang.org/genai.
//
// Gemini differs from the other vendors in two ways the adapter absorbs:
// reasoning ("thought") parts carry signatures that must be echoed back with
// the next request, and function responses are correlated by name and
// position rather than by call id.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/hupe1980/agentplay/core"
	"github.com/hupe1980/agentplay/model"
)

// localIDPrefix marks call ids the adapter invented for calls that arrived
// without one. They are never sent back to the API.
const localIDPrefix = "gemini-local-"

// Options configures the Gemini adapter.
type Options struct {
	// ThinkingBudget is requested for reasoning-capable models; -1 lets the
	// model decide.
	ThinkingBudget int32
	Temperature    *float32
	BaseURL        string
	HTTPClient     *http.Client
	// ClientFactory overrides client construction, mainly for tests.
	ClientFactory ClientFactory
}

// Adapter implements model.Adapter for Gemini.
type Adapter struct {
	opts Options
}

// New creates a Gemini adapter.
func New(optFns ...func(o *Options)) *Adapter {
	opts := Options{
		ThinkingBudget: -1,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.ClientFactory == nil {
		opts.ClientFactory = NewClientFactory(opts.BaseURL, opts.HTTPClient)
	}

	return &Adapter{opts: opts}
}

// Provider implements model.Adapter.
func (a *Adapter) Provider() model.Provider { return model.ProviderGemini }

// IsReasoningModel reports whether the model id names a thinking-capable model.
func IsReasoningModel(modelID string) bool {
	id := strings.ToLower(modelID)
	return strings.Contains(id, "2.5") || strings.Contains(id, "thinking") || strings.Contains(id, "gemini-3")
}

// Invoke implements model.Adapter.
func (a *Adapter) Invoke(ctx context.Context, req model.Request) (*model.Response, error) {
	contents, err := buildContents(req.History)
	if err != nil {
		return nil, core.NewProviderError(string(model.ProviderGemini), err)
	}

	models, err := a.opts.ClientFactory(ctx, req.Credential)
	if err != nil {
		return nil, core.NewProviderError(string(model.ProviderGemini), fmt.Errorf("create client: %w", err))
	}

	resp, err := models.GenerateContent(ctx, req.ModelID, contents, a.buildConfig(req))
	if err != nil {
		return nil, core.NewProviderError(string(model.ProviderGemini), err)
	}

	return parseResponse(resp)
}

func (a *Adapter) buildConfig(req model.Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}

	if req.SystemInstructions != "" {
		cfg.SystemInstruction = genai.NewContentFromParts([]*genai.Part{{Text: req.SystemInstructions}}, genai.RoleUser)
	}

	if len(req.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
		for _, d := range req.Tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:                 d.Name,
				Description:          d.Description,
				ParametersJsonSchema: d.Parameters,
			})
		}
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	if IsReasoningModel(req.ModelID) {
		cfg.ThinkingConfig = &genai.ThinkingConfig{
			IncludeThoughts: true,
			ThinkingBudget:  genai.Ptr(a.opts.ThinkingBudget),
		}
	}

	if a.opts.Temperature != nil {
		cfg.Temperature = genai.Ptr(*a.opts.Temperature)
	}

	return cfg
}

func parseResponse(resp *genai.GenerateContentResponse) (*model.Response, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return nil, core.NewProviderError(string(model.ProviderGemini), errors.New("no candidates returned"))
	}

	cand := resp.Candidates[0]
	if cand.Content == nil {
		return nil, core.NewProviderError(string(model.ProviderGemini),
			fmt.Errorf("candidate has no content (finish reason %s)", cand.FinishReason))
	}

	out := &model.Response{
		ID:           resp.ResponseID,
		FinishReason: string(cand.FinishReason),
		Usage:        convertUsage(resp.UsageMetadata),
	}

	var text strings.Builder
	hasThought := false

	for _, part := range cand.Content.Parts {
		if part == nil {
			continue
		}
		if part.Thought {
			hasThought = true
			continue
		}
		if len(part.ThoughtSignature) > 0 {
			hasThought = true
		}
		if part.Text != "" {
			text.WriteString(part.Text)
		}
		if part.FunctionCall != nil {
			args := part.FunctionCall.Args
			if args == nil {
				args = map[string]any{}
			}
			id := part.FunctionCall.ID
			if id == "" {
				id = fmt.Sprintf("%s%d", localIDPrefix, len(out.ToolCalls))
			}
			out.ToolCalls = append(out.ToolCalls, core.ToolCall{ID: id, Name: part.FunctionCall.Name, Arguments: args})
		}
	}

	out.Text = text.String()

	// Only reasoning output needs replaying; plain turns are rebuilt from
	// text and calls.
	if hasThought {
		data, err := json.Marshal(cand.Content.Parts)
		if err != nil {
			return nil, fmt.Errorf("encode continuation parts: %w", err)
		}
		out.Continuation = &core.ContinuationState{Provider: string(model.ProviderGemini), Data: data}
	}

	return out, nil
}

// convertUsage splits thought tokens out of the candidate count. Output is
// floored at zero in case the vendor reports more thoughts than candidates.
func convertUsage(u *genai.GenerateContentResponseUsageMetadata) model.Usage {
	if u == nil {
		return model.Usage{}
	}

	thinking := int(u.ThoughtsTokenCount)

	return model.Usage{
		InputTokens:    int(u.PromptTokenCount),
		OutputTokens:   max(int(u.CandidatesTokenCount)-thinking, 0),
		ThinkingTokens: thinking,
	}
}

func buildContents(history []core.Turn) ([]*genai.Content, error) {
	contents := make([]*genai.Content, 0, len(history))

	for _, turn := range history {
		switch turn.Kind {
		case core.TurnUser:
			contents = append(contents, genai.NewContentFromParts([]*genai.Part{{Text: turn.User.Text}}, genai.RoleUser))
		case core.TurnModel:
			parts, err := modelParts(turn.Model)
			if err != nil {
				return nil, err
			}
			if len(parts) == 0 {
				continue
			}
			contents = append(contents, genai.NewContentFromParts(parts, genai.RoleModel))
		case core.TurnToolResults:
			parts := make([]*genai.Part, 0, len(turn.ToolResults.Results))
			for _, r := range turn.ToolResults.Results {
				key := "result"
				if r.IsError {
					key = "error"
				}
				parts = append(parts, &genai.Part{FunctionResponse: &genai.FunctionResponse{
					ID:       wireID(r.ID),
					Name:     r.Name,
					Response: map[string]any{key: r.Content},
				}})
			}
			if len(parts) == 0 {
				continue
			}
			contents = append(contents, genai.NewContentFromParts(parts, genai.RoleUser))
		default:
			return nil, model.UnexpectedTurnError(turn)
		}
	}

	return contents, nil
}

// modelParts replays the original parts when they carry reasoning state and
// rebuilds them from text and calls otherwise.
func modelParts(t *core.ModelTurn) ([]*genai.Part, error) {
	if t.Continuation.For(string(model.ProviderGemini)) {
		var parts []*genai.Part
		if err := json.Unmarshal(t.Continuation.Data, &parts); err != nil {
			return nil, fmt.Errorf("decode continuation parts: %w", err)
		}
		return parts, nil
	}

	parts := make([]*genai.Part, 0, len(t.ToolCalls)+1)
	if t.Text != "" {
		parts = append(parts, &genai.Part{Text: t.Text})
	}
	for _, c := range t.ToolCalls {
		parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{ID: wireID(c.ID), Name: c.Name, Args: c.Arguments}})
	}

	return parts, nil
}

func wireID(id string) string {
	if strings.HasPrefix(id, localIDPrefix) {
		return ""
	}
	return id
}
