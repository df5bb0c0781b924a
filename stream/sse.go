// Package stream carries run events to observers as Server-Sent Events and
// reads them back. Each event is one frame of the form
//
//	data: <json>\n\n
//
// Collect provides the non-streaming fallback: it drains an event channel
// into a core.Summary.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hupe1980/agentplay/core"
)

// ErrObserverGone is returned by Forward when the client can no longer be
// written to. Callers treat it as cancellation of the run.
var ErrObserverGone = errors.New("stream observer gone")

// SSEWriter writes events as SSE frames and flushes after each one.
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewSSEWriter prepares w for streaming. It fails if w cannot flush.
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("response writer does not support flushing")
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")

	return &SSEWriter{w: w, flusher: flusher}, nil
}

// WriteEvent writes one data frame.
func (s *SSEWriter) WriteEvent(ev core.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		return err
	}

	s.flusher.Flush()

	return nil
}

// WriteComment writes a comment frame, used as keep-alive.
func (s *SSEWriter) WriteComment(text string) error {
	if _, err := fmt.Fprintf(s.w, ": %s\n\n", text); err != nil {
		return err
	}

	s.flusher.Flush()

	return nil
}

// ForwardOptions configures Forward.
type ForwardOptions struct {
	// PingInterval is the keep-alive period; zero disables pings.
	PingInterval time.Duration
	// OnEvent is called for every event after it was written.
	OnEvent func(core.Event)
}

// Forward writes events to w in order until the channel is closed. It returns
// ErrObserverGone when a write fails or ctx ends first.
func Forward(ctx context.Context, w *SSEWriter, events <-chan core.Event, optFns ...func(o *ForwardOptions)) error {
	opts := ForwardOptions{
		PingInterval: 15 * time.Second,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	var ping <-chan time.Time

	if opts.PingInterval > 0 {
		ticker := time.NewTicker(opts.PingInterval)
		defer ticker.Stop()

		ping = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return ErrObserverGone
		case <-ping:
			if err := w.WriteComment("ping"); err != nil {
				return fmt.Errorf("%w: %v", ErrObserverGone, err)
			}
		case ev, ok := <-events:
			if !ok {
				return nil
			}

			if err := w.WriteEvent(ev); err != nil {
				return fmt.Errorf("%w: %v", ErrObserverGone, err)
			}

			if opts.OnEvent != nil {
				opts.OnEvent(ev)
			}
		}
	}
}
