package core

import "time"

// Summary is the post-hoc record of a run and the body of the non-streaming
// response.
type Summary struct {
	RunID          string       `json:"runId,omitempty"`
	TaskID         string       `json:"taskId,omitempty"`
	Trace          []TraceEntry `json:"trace"`
	FinalText      string       `json:"finalText,omitempty"`
	InputTokens    int          `json:"inputTokens"`
	OutputTokens   int          `json:"outputTokens"`
	ThinkingTokens int          `json:"thinkingTokens"`
	ToolCallCount  int          `json:"toolCallCount"`
	Completed      bool         `json:"completed"`
	NeedsUserInput bool         `json:"needsUserInput"`
	Error          *ErrorInfo   `json:"error,omitempty"`
	Cancelled      bool         `json:"cancelled,omitempty"`
	StartedAt      time.Time    `json:"startedAt"`
	FinishedAt     time.Time    `json:"finishedAt,omitempty"`
}

// NewSummary creates an empty summary for a run.
func NewSummary(runID, taskID string) *Summary {
	return &Summary{RunID: runID, TaskID: taskID, Trace: []TraceEntry{}, StartedAt: time.Now().UTC()}
}

// Apply folds one event into the summary. Token events carry running totals
// and overwrite the counters.
func (s *Summary) Apply(e Event) {
	if s.RunID == "" {
		s.RunID = e.RunID
	}

	switch e.Type {
	case EventTrace:
		if e.Entry == nil {
			return
		}
		s.Trace = append(s.Trace, *e.Entry)
		if e.Entry.Type == TraceText && e.Entry.Content != "" {
			s.FinalText = e.Entry.Content
		}
	case EventTokens:
		if e.Tokens == nil {
			return
		}
		s.InputTokens = e.Tokens.InputTokens
		s.OutputTokens = e.Tokens.OutputTokens
		s.ThinkingTokens = e.Tokens.ThinkingTokens
		s.ToolCallCount = e.Tokens.ToolCallCount
	case EventDone:
		if e.Done != nil {
			s.Completed = e.Done.Completed
			s.NeedsUserInput = e.Done.NeedsUserInput
		}
		s.FinishedAt = e.Timestamp
	case EventError:
		if e.Error != nil {
			errInfo := *e.Error
			s.Error = &errInfo
			s.Trace = append(s.Trace, TraceEntry{Type: TraceError, Content: errInfo.Message})
		}
		s.Completed = false
		s.NeedsUserInput = false
		s.FinishedAt = e.Timestamp
	}
}

// Terminated reports whether a done or error event was applied.
func (s *Summary) Terminated() bool {
	return !s.FinishedAt.IsZero() && !s.Cancelled
}

// Clone returns a deep copy of the summary. Trace argument maps are shared
// because trace entries are immutable once recorded.
func (s *Summary) Clone() *Summary {
	c := *s
	c.Trace = append([]TraceEntry(nil), s.Trace...)
	if c.Trace == nil {
		c.Trace = []TraceEntry{}
	}
	if s.Error != nil {
		errInfo := *s.Error
		c.Error = &errInfo
	}
	return &c
}
