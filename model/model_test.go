package model

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentplay/core"
)

func TestParseProvider(t *testing.T) {
	tests := []struct {
		in   string
		want Provider
	}{
		{"gemini", ProviderGemini},
		{"Google", ProviderGemini},
		{"claude", ProviderAnthropic},
		{"anthropic", ProviderAnthropic},
		{" openai ", ProviderOpenAI},
		{"gpt", ProviderOpenAI},
	}
	for _, tt := range tests {
		got, err := ParseProvider(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseProvider("mistral")
	assert.ErrorIs(t, err, core.ErrUnknownProvider)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(NewScriptedModel(ProviderOpenAI), NewScriptedModel(ProviderGemini))

	a, err := r.Get("gpt")
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, a.Provider())

	_, err = r.Get("anthropic")
	assert.ErrorIs(t, err, core.ErrUnknownProvider)

	assert.Equal(t, []Provider{ProviderGemini, ProviderOpenAI}, r.Providers())
}

func TestDecodeArguments(t *testing.T) {
	assert.Equal(t, map[string]any{}, DecodeArguments(""))
	assert.Equal(t, map[string]any{"a": 1.0}, DecodeArguments(`{"a":1}`))
	assert.Equal(t, map[string]any{"_raw": "{oops"}, DecodeArguments("{oops"))
	assert.Equal(t, "{}", EncodeArguments(nil))
	assert.JSONEq(t, `{"x":"y"}`, EncodeArguments(map[string]any{"x": "y"}))
}

func TestEnsureCallIDs(t *testing.T) {
	calls := []core.ToolCall{{Name: "a"}, {ID: "keep", Name: "b"}}
	EnsureCallIDs(calls)
	assert.Equal(t, "call_0", calls[0].ID)
	assert.Equal(t, "keep", calls[1].ID)
}

func TestToolDefinition_Accessors(t *testing.T) {
	d := ToolDefinition{Parameters: map[string]any{
		"type":       "object",
		"properties": map[string]any{"q": map[string]any{"type": "string"}},
		"required":   []any{"q"},
	}}
	assert.Contains(t, d.Properties(), "q")
	assert.Equal(t, []string{"q"}, d.Required())
	assert.Empty(t, ToolDefinition{}.Properties())
}

func TestScriptedModel(t *testing.T) {
	m := NewScriptedModel(ProviderAnthropic).
		Reply(&Response{Text: "hi", Usage: Usage{InputTokens: 3}}).
		Fail(errors.New("boom"))

	resp, err := m.Invoke(context.Background(), Request{ModelID: "m"})
	require.NoError(t, err)
	assert.Equal(t, "hi", resp.Text)
	assert.Equal(t, core.TurnModel, resp.Turn().Kind)

	_, err = m.Invoke(context.Background(), Request{})
	assert.EqualError(t, err, "boom")

	_, err = m.Invoke(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrScriptExhausted)

	assert.Equal(t, 3, m.Calls())
	assert.Equal(t, "m", m.Requests()[0].ModelID)
}
