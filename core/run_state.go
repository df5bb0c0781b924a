package core

// Phase is the state of the agent loop state machine.
type Phase string

const (
	PhaseReady             Phase = "ready"
	PhaseIterating         Phase = "iterating"
	PhaseToolExecuting     Phase = "tool_executing"
	PhaseCompleted         Phase = "completed"
	PhaseAwaitingUserInput Phase = "awaiting_user_input"
	PhaseFailed            Phase = "failed"
	PhaseCancelled         Phase = "cancelled"
	PhaseExhausted         Phase = "exhausted"
)

// Terminal reports whether the loop has stopped.
func (p Phase) Terminal() bool {
	switch p {
	case PhaseCompleted, PhaseAwaitingUserInput, PhaseFailed, PhaseCancelled, PhaseExhausted:
		return true
	default:
		return false
	}
}

// RunState is owned by exactly one loop invocation and never shared.
type RunState struct {
	Phase          Phase
	Iteration      int
	Usage          TokenUsage
	Completed      bool
	NeedsUserInput bool
	FinalText      string
	History        []Turn
}

// NewRunState seeds a run with a copy of the caller's history.
func NewRunState(history []Turn) *RunState {
	h := make([]Turn, len(history))
	copy(h, history)
	return &RunState{Phase: PhaseReady, History: h}
}

// AddUsage adds one adapter call's token counts to the running totals.
// Negative values are ignored so totals never decrease.
func (s *RunState) AddUsage(input, output, thinking int) {
	s.Usage.InputTokens += max(input, 0)
	s.Usage.OutputTokens += max(output, 0)
	s.Usage.ThinkingTokens += max(thinking, 0)
}

// Snapshot returns a copy of the running totals.
func (s *RunState) Snapshot() TokenUsage { return s.Usage }

// Append adds turns to the run's history.
func (s *RunState) Append(turns ...Turn) {
	s.History = append(s.History, turns...)
}
