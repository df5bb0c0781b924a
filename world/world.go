// Package world connects the agent loop to the simulated world service that
// executes rendered tool instructions against per-task app state.
package world

import (
	"context"

	"github.com/hupe1980/agentplay/core"
)

// Executor runs one rendered instruction in the world identified by session
// and returns its textual output. A returned error means the instruction did
// not produce a result; the loop reports it to the model and keeps going.
type Executor interface {
	Execute(ctx context.Context, session core.SessionHandle, instruction string) (string, error)
}

// Provisioner creates and tears down world sessions.
type Provisioner interface {
	Initialize(ctx context.Context, taskID, experiment string) (*core.WorldSession, error)
	Reset(ctx context.Context, taskID string) error
}

// Func adapts a plain function to the Executor interface.
type Func func(ctx context.Context, session core.SessionHandle, instruction string) (string, error)

// Execute implements Executor.
func (f Func) Execute(ctx context.Context, session core.SessionHandle, instruction string) (string, error) {
	return f(ctx, session, instruction)
}
