package testutil

import (
	"fmt"

	"github.com/hupe1980/agentplay/core"
	"github.com/hupe1980/agentplay/model"
)

// ResponseBuilder provides a fluent helper for scripted model responses.
// Example:
//
//	resp := NewResponse().Text("checking").Call("show_balance", nil).Usage(10, 5, 0).Build()
type ResponseBuilder struct {
	resp model.Response
}

// NewResponse creates an empty response builder.
func NewResponse() *ResponseBuilder { return &ResponseBuilder{} }

// Text sets the visible text of the turn (chainable).
func (b *ResponseBuilder) Text(t string) *ResponseBuilder { b.resp.Text = t; return b }

// Call appends a tool call with a generated id (chainable).
func (b *ResponseBuilder) Call(name string, args map[string]any) *ResponseBuilder {
	return b.CallWithID(fmt.Sprintf("call-%d", len(b.resp.ToolCalls)+1), name, args)
}

// CallWithID appends a tool call with an explicit id (chainable).
func (b *ResponseBuilder) CallWithID(id, name string, args map[string]any) *ResponseBuilder {
	if args == nil {
		args = map[string]any{}
	}
	b.resp.ToolCalls = append(b.resp.ToolCalls, core.ToolCall{ID: id, Name: name, Arguments: args})
	return b
}

// Usage sets the token accounting (chainable).
func (b *ResponseBuilder) Usage(input, output, thinking int) *ResponseBuilder {
	b.resp.Usage = model.Usage{InputTokens: input, OutputTokens: output, ThinkingTokens: thinking}
	return b
}

// Continuation attaches provider continuation state (chainable).
func (b *ResponseBuilder) Continuation(provider, data string) *ResponseBuilder {
	b.resp.Continuation = &core.ContinuationState{Provider: provider, Data: []byte(data)}
	return b
}

// Build returns the response.
func (b *ResponseBuilder) Build() *model.Response {
	r := b.resp
	return &r
}
