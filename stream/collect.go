package stream

import (
	"errors"
	"io"

	"github.com/hupe1980/agentplay/core"
)

// Collect drains events into a summary. It returns once the channel is closed.
// The run id is taken from the events.
func Collect(events <-chan core.Event) *core.Summary {
	s := core.NewSummary("", "")
	for ev := range events {
		s.Apply(ev)
	}
	return s
}

// CollectReader reads a whole SSE stream into a summary.
func CollectReader(r *Reader) (*core.Summary, error) {
	s := core.NewSummary("", "")

	for {
		ev, err := r.Next()
		if errors.Is(err, io.EOF) {
			return s, nil
		}
		if err != nil {
			return s, err
		}
		s.Apply(ev)
	}
}
