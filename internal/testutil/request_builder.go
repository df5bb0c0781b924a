package testutil

import (
	"time"

	"github.com/hupe1980/agentplay/core"
)

// RequestBuilder constructs run requests with valid defaults: a gemini model,
// a credential, an initialized session and one user turn.
type RequestBuilder struct {
	req core.RunRequest
}

// NewRequest creates a builder for a request asking prompt.
func NewRequest(prompt string) *RequestBuilder {
	return &RequestBuilder{req: core.RunRequest{
		Provider:   "gemini",
		ModelID:    "gemini-2.5-flash",
		Credential: "test-key",
		Session:    core.SessionHandle{TaskID: "task-1", Token: "token-1"},
		History:    []core.Turn{core.NewUserTurn(prompt)},
	}}
}

// Provider sets the provider and model (chainable).
func (b *RequestBuilder) Provider(provider, modelID string) *RequestBuilder {
	b.req.Provider, b.req.ModelID = provider, modelID
	return b
}

// Credential sets the credential (chainable).
func (b *RequestBuilder) Credential(c string) *RequestBuilder { b.req.Credential = c; return b }

// Session sets the session handle (chainable).
func (b *RequestBuilder) Session(taskID, token string) *RequestBuilder {
	b.req.Session = core.SessionHandle{TaskID: taskID, Token: token}
	return b
}

// Tools restricts the active tool subset (chainable).
func (b *RequestBuilder) Tools(names ...string) *RequestBuilder { b.req.ActiveTools = names; return b }

// System sets the system instructions (chainable).
func (b *RequestBuilder) System(s string) *RequestBuilder { b.req.SystemInstructions = s; return b }

// MaxIterations sets the per-request iteration limit (chainable).
func (b *RequestBuilder) MaxIterations(n int) *RequestBuilder { b.req.MaxIterations = n; return b }

// History replaces the conversation history (chainable).
func (b *RequestBuilder) History(turns ...core.Turn) *RequestBuilder { b.req.History = turns; return b }

// Build returns the request.
func (b *RequestBuilder) Build() core.RunRequest { return b.req }

// NewWorldSession returns an initialized session for taskID.
func NewWorldSession(taskID, token string) *core.WorldSession {
	return &core.WorldSession{
		Handle:      core.SessionHandle{TaskID: taskID, Token: token},
		Instruction: "Check the Venmo balance",
		Metadata:    map[string]string{"experiment": "test"},
		CreatedAt:   time.Now(),
	}
}
