package model

import (
	"context"
	"errors"
	"sync"
)

// ScriptedModel is a lightweight in‑memory Adapter useful for tests & examples.
// Each Invoke consumes the next scripted step in order.
type ScriptedModel struct {
	provider Provider

	mu       sync.Mutex
	steps    []ScriptStep
	requests []Request
}

// ScriptStep is one canned adapter outcome. Hook, when set, runs before the
// step is returned and may block to simulate a slow provider.
type ScriptStep struct {
	Response *Response
	Err      error
	Hook     func(ctx context.Context, req Request)
}

// ErrScriptExhausted is returned once all steps were consumed.
var ErrScriptExhausted = errors.New("scripted model has no more responses")

// NewScriptedModel constructs a ScriptedModel impersonating the given provider.
func NewScriptedModel(provider Provider, steps ...ScriptStep) *ScriptedModel {
	return &ScriptedModel{provider: provider, steps: steps}
}

// Reply appends a successful step.
func (m *ScriptedModel) Reply(r *Response) *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, ScriptStep{Response: r})
	return m
}

// Fail appends a failing step.
func (m *ScriptedModel) Fail(err error) *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, ScriptStep{Err: err})
	return m
}

// Provider implements Adapter.
func (m *ScriptedModel) Provider() Provider { return m.provider }

// Invoke implements Adapter.
func (m *ScriptedModel) Invoke(ctx context.Context, req Request) (*Response, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	if len(m.steps) == 0 {
		m.mu.Unlock()
		return nil, ErrScriptExhausted
	}
	step := m.steps[0]
	m.steps = m.steps[1:]
	m.mu.Unlock()

	if step.Hook != nil {
		step.Hook(ctx, req)
	}
	if step.Err != nil {
		return nil, step.Err
	}

	resp := *step.Response
	return &resp, nil
}

// Requests returns the requests received so far.
func (m *ScriptedModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// Calls returns how many times Invoke ran.
func (m *ScriptedModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}
