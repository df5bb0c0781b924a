package core

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestEvent_Constructors(t *testing.T) {
	text := NewTextEvent("run-1", "hello")
	if text.Type != EventTrace || text.Entry == nil || text.Entry.Type != TraceText || text.Entry.Content != "hello" {
		t.Fatalf("NewTextEvent malformed: %+v", text)
	}
	if text.ID == "" || text.RunID != "run-1" || text.Timestamp.IsZero() {
		t.Fatalf("NewTextEvent did not initialize fields: %+v", text)
	}

	call := NewToolCallEvent("run-1", "check_balance", map[string]any{"account": "a"})
	if call.Entry.Type != TraceToolCall || call.Entry.Name != "check_balance" || call.Entry.Args["account"] != "a" {
		t.Fatalf("NewToolCallEvent malformed: %+v", call.Entry)
	}

	res := NewToolResultEvent("run-1", "check_balance", "42")
	if res.Entry.Type != TraceToolResult || res.Entry.Content != "42" {
		t.Fatalf("NewToolResultEvent malformed: %+v", res.Entry)
	}

	tok := NewTokensEvent("run-1", TokenUsage{InputTokens: 1, ToolCallCount: 2})
	if tok.Type != EventTokens || tok.Tokens.InputTokens != 1 || tok.Tokens.ToolCallCount != 2 {
		t.Fatalf("NewTokensEvent malformed: %+v", tok)
	}

	done := NewDoneEvent("run-1", true, false)
	if !done.IsTerminal() || !done.Done.Completed || done.Done.NeedsUserInput {
		t.Fatalf("NewDoneEvent malformed: %+v", done)
	}

	fail := NewErrorEvent("run-1", "model call failed", NewProviderError("openai", errors.New("401 unauthorized")))
	if !fail.IsTerminal() || fail.Error.Kind != KindProviderError || fail.Error.Detail == "" {
		t.Fatalf("NewErrorEvent malformed: %+v", fail.Error)
	}

	if text.IsTerminal() || tok.IsTerminal() {
		t.Error("trace and tokens events must not be terminal")
	}
}

func TestEvent_WireShape(t *testing.T) {
	raw, err := json.Marshal(NewToolCallEvent("r", "send_email", map[string]any{"to": "x@y.z"}))
	if err != nil {
		t.Fatal(err)
	}

	var frame map[string]any
	if err := json.Unmarshal(raw, &frame); err != nil {
		t.Fatal(err)
	}

	if frame["type"] != "trace" {
		t.Fatalf("outer type = %v", frame["type"])
	}
	entry, ok := frame["entry"].(map[string]any)
	if !ok || entry["type"] != "tool_call" || entry["name"] != "send_email" {
		t.Fatalf("entry = %v", frame["entry"])
	}
	if _, ok := frame["tokens"]; ok {
		t.Error("unset payloads must be omitted")
	}
}

func TestSummary_Apply(t *testing.T) {
	s := NewSummary("", "task-1")
	events := []Event{
		NewTokensEvent("r", TokenUsage{InputTokens: 10, OutputTokens: 3}),
		NewTextEvent("r", "thinking about it"),
		NewToolCallEvent("r", "check_balance", nil),
		NewToolResultEvent("r", "check_balance", "42"),
		NewTokensEvent("r", TokenUsage{InputTokens: 10, OutputTokens: 3, ToolCallCount: 1}),
		NewTextEvent("r", "You have $42"),
		NewDoneEvent("r", false, true),
	}
	for _, e := range events {
		s.Apply(e)
	}

	if s.RunID != "r" {
		t.Errorf("RunID = %q", s.RunID)
	}
	if len(s.Trace) != 4 {
		t.Fatalf("expected 4 trace entries, got %d", len(s.Trace))
	}
	if s.FinalText != "You have $42" {
		t.Errorf("FinalText = %q", s.FinalText)
	}
	if s.InputTokens != 10 || s.ToolCallCount != 1 {
		t.Errorf("totals = %d/%d", s.InputTokens, s.ToolCallCount)
	}
	if s.Completed || !s.NeedsUserInput || !s.Terminated() {
		t.Errorf("terminal fields wrong: %+v", s)
	}
}

func TestSummary_ApplyError(t *testing.T) {
	s := NewSummary("r", "")
	s.Apply(NewErrorEvent("r", "model call failed", NewProviderError("gemini", errors.New("quota"))))

	if s.Error == nil || s.Error.Kind != KindProviderError {
		t.Fatalf("error not recorded: %+v", s.Error)
	}
	if len(s.Trace) != 1 || s.Trace[0].Type != TraceError {
		t.Fatalf("error trace entry missing: %+v", s.Trace)
	}
}

func TestErrors_KindsAndSentinels(t *testing.T) {
	cfg := NewConfigurationError(MissingCredential, "no key")
	if !errors.Is(cfg, ErrMissingCredential) {
		t.Error("configuration error should match its sentinel")
	}
	if errors.Is(cfg, ErrUnknownProvider) {
		t.Error("configuration error should not match another kind")
	}

	cases := map[string]error{
		"MissingCredential":     cfg,
		KindProviderError:       NewProviderError("anthropic", errors.New("boom")),
		KindToolResolutionError: &ToolResolutionError{Name: "nope"},
		KindToolExecutionError:  &ToolExecutionError{Name: "x", Err: errors.New("down")},
		KindInternal:            errors.New("other"),
	}
	for want, err := range cases {
		if got := ErrorKind(err); got != want {
			t.Errorf("ErrorKind(%v) = %q, want %q", err, got, want)
		}
	}

	if (&ToolResolutionError{Name: "nope"}).Error() != "unknown tool: nope" {
		t.Error("unexpected resolution error text")
	}
}

func TestIterationLimiter(t *testing.T) {
	l := NewIterationLimiter(2)
	l.Increment()
	if l.Exhausted() || l.Remaining() != 1 {
		t.Fatalf("one iteration left expected, remaining=%d", l.Remaining())
	}
	l.Increment()
	if !l.Exhausted() || l.Remaining() != 0 || l.Count() != 2 {
		t.Fatalf("limiter should be exhausted, remaining=%d count=%d", l.Remaining(), l.Count())
	}

	for _, bound := range []int{0, -3} {
		if got := NewIterationLimiter(bound).Max(); got != DefaultMaxIterations {
			t.Errorf("NewIterationLimiter(%d).Max() = %d, want %d", bound, got, DefaultMaxIterations)
		}
	}
}

func TestRunState_AddUsageMonotonic(t *testing.T) {
	s := NewRunState(nil)
	s.AddUsage(10, 5, 2)
	s.AddUsage(3, -1, 0)

	u := s.Snapshot()
	if u.InputTokens != 13 || u.OutputTokens != 5 || u.ThinkingTokens != 2 {
		t.Fatalf("unexpected totals: %+v", u)
	}
}
