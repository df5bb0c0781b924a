package testutil

import (
	"github.com/hupe1980/agentplay/core"
)

// Drain reads events until the channel is closed.
func Drain(ch <-chan core.Event) []core.Event {
	var out []core.Event
	for ev := range ch {
		out = append(out, ev)
	}
	return out
}

// Kinds condenses events into comparable labels: "text", "tool_call:<name>",
// "tool_result:<name>", "tokens", "done", "error".
func Kinds(events []core.Event) []string {
	out := make([]string, 0, len(events))

	for _, ev := range events {
		switch ev.Type {
		case core.EventTrace:
			switch ev.Entry.Type {
			case core.TraceToolCall, core.TraceToolResult:
				out = append(out, string(ev.Entry.Type)+":"+ev.Entry.Name)
			default:
				out = append(out, string(ev.Entry.Type))
			}
		default:
			out = append(out, string(ev.Type))
		}
	}

	return out
}

// Last returns the final event, or the zero event when there is none.
func Last(events []core.Event) core.Event {
	if len(events) == 0 {
		return core.Event{}
	}
	return events[len(events)-1]
}
