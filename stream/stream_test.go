package stream

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentplay/core"
)

func sampleEvents() []core.Event {
	evs := []core.Event{
		core.NewToolCallEvent("run-1", "check_balance", map[string]any{"account": "main"}),
		core.NewToolResultEvent("run-1", "check_balance", "42"),
		core.NewTokensEvent("run-1", core.TokenUsage{InputTokens: 10, OutputTokens: 4, ThinkingTokens: 2, ToolCallCount: 1}),
		core.NewTextEvent("run-1", "You have $42"),
		core.NewDoneEvent("run-1", false, true),
	}
	for i := range evs {
		evs[i].Seq = i + 1
	}
	return evs
}

func feed(evs []core.Event) <-chan core.Event {
	ch := make(chan core.Event, len(evs))
	for _, ev := range evs {
		ch <- ev
	}
	close(ch)
	return ch
}

type nonFlusher struct{ http.ResponseWriter }

func TestNewSSEWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := NewSSEWriter(rec)
	require.NoError(t, err)
	require.NotNil(t, w)

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "keep-alive", rec.Header().Get("Connection"))

	_, err = NewSSEWriter(nonFlusher{rec})
	assert.Error(t, err)
}

func TestWriteEvent_Framing(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := NewSSEWriter(rec)
	require.NoError(t, err)

	require.NoError(t, w.WriteEvent(core.NewTextEvent("run-1", "hi\nthere")))
	require.NoError(t, w.WriteComment("ping"))

	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, "data: {"))
	assert.True(t, strings.HasSuffix(body, "}\n\n: ping\n\n"))
	assert.Equal(t, 1, strings.Count(body, "data: "), "newlines in content stay JSON-escaped")
	assert.Contains(t, body, `"type":"trace"`)
	assert.Contains(t, body, `"entry":{"type":"text","content":"hi\nthere"}`)
	assert.True(t, rec.Flushed)
}

func TestForwardAndRead_RoundTrip(t *testing.T) {
	evs := sampleEvents()

	rec := httptest.NewRecorder()
	w, err := NewSSEWriter(rec)
	require.NoError(t, err)

	var seen int
	err = Forward(context.Background(), w, feed(evs), func(o *ForwardOptions) {
		o.PingInterval = 0
		o.OnEvent = func(core.Event) { seen++ }
	})
	require.NoError(t, err)
	assert.Equal(t, len(evs), seen)

	r := NewReader(strings.NewReader(rec.Body.String()))
	for _, want := range evs {
		got, err := r.Next()
		require.NoError(t, err)
		assert.Equal(t, want.ID, got.ID)
		assert.Equal(t, want.Seq, got.Seq)
		assert.Equal(t, want.Type, got.Type)
		assert.Equal(t, want.Entry, got.Entry)
		assert.Equal(t, want.Tokens, got.Tokens)
		assert.Equal(t, want.Done, got.Done)
	}

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReader_Tolerance(t *testing.T) {
	src := ": ping\n\n" +
		"\n" +
		"data:{\"type\":\"done\",\"seq\":1,\"done\":{\"completed\":true,\"needsUserInput\":false}}\r\n\r\n" +
		"data: {\"type\":\"tokens\",\n" +
		"data: \"tokens\":{\"inputTokens\":3}}"

	r := NewReader(strings.NewReader(src))

	ev, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, core.EventDone, ev.Type)
	assert.True(t, ev.Done.Completed)

	ev, err = r.Next()
	require.NoError(t, err, "multi-line frame without trailing blank line")
	assert.Equal(t, 3, ev.Tokens.InputTokens)

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)

	_, err = NewReader(strings.NewReader("data: {oops\n\n")).Next()
	assert.ErrorContains(t, err, "decode event frame")
}

type failingWriter struct {
	*httptest.ResponseRecorder
	after int
}

func (f *failingWriter) Write(p []byte) (int, error) {
	if f.after <= 0 {
		return 0, errors.New("broken pipe")
	}
	f.after--
	return f.ResponseRecorder.Write(p)
}

func TestForward_ObserverGone(t *testing.T) {
	t.Run("write failure", func(t *testing.T) {
		w, err := NewSSEWriter(&failingWriter{ResponseRecorder: httptest.NewRecorder(), after: 1})
		require.NoError(t, err)

		err = Forward(context.Background(), w, feed(sampleEvents()), func(o *ForwardOptions) { o.PingInterval = 0 })
		assert.ErrorIs(t, err, ErrObserverGone)
	})

	t.Run("context done", func(t *testing.T) {
		w, err := NewSSEWriter(httptest.NewRecorder())
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err = Forward(ctx, w, make(chan core.Event), func(o *ForwardOptions) { o.PingInterval = 0 })
		assert.ErrorIs(t, err, ErrObserverGone)
	})
}

func TestForward_Pings(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := NewSSEWriter(rec)
	require.NoError(t, err)

	events := make(chan core.Event)
	go func() {
		time.Sleep(50 * time.Millisecond)
		close(events)
	}()

	require.NoError(t, Forward(context.Background(), w, events, func(o *ForwardOptions) { o.PingInterval = 5 * time.Millisecond }))
	assert.Contains(t, rec.Body.String(), ": ping\n\n")
}

func TestCollect(t *testing.T) {
	s := Collect(feed(sampleEvents()))

	assert.Equal(t, "run-1", s.RunID)
	assert.Len(t, s.Trace, 3)
	assert.Equal(t, "You have $42", s.FinalText)
	assert.Equal(t, 10, s.InputTokens)
	assert.Equal(t, 1, s.ToolCallCount)
	assert.True(t, s.NeedsUserInput)
	assert.False(t, s.Completed)
	assert.True(t, s.Terminated())
}

func TestCollectReader(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := NewSSEWriter(rec)
	require.NoError(t, err)

	errEv := core.NewErrorEvent("run-9", "gemini request failed: quota", core.NewProviderError("gemini", errors.New("quota")))
	for _, ev := range []core.Event{core.NewTokensEvent("run-9", core.TokenUsage{InputTokens: 1}), errEv} {
		require.NoError(t, w.WriteEvent(ev))
	}

	s, err := CollectReader(NewReader(rec.Body))
	require.NoError(t, err)
	assert.Equal(t, "run-9", s.RunID)
	require.NotNil(t, s.Error)
	assert.Equal(t, core.KindProviderError, s.Error.Kind)
	assert.Equal(t, core.TraceError, s.Trace[0].Type)
}
