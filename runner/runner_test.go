package runner

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentplay/artifact"
	"github.com/hupe1980/agentplay/core"
	"github.com/hupe1980/agentplay/engine"
	"github.com/hupe1980/agentplay/internal/testutil"
	"github.com/hupe1980/agentplay/model"
	"github.com/hupe1980/agentplay/session"
	"github.com/hupe1980/agentplay/tool"
	"github.com/hupe1980/agentplay/world"
)

type recordingWorld struct {
	mu      sync.Mutex
	handles []core.SessionHandle
}

func (w *recordingWorld) Execute(_ context.Context, h core.SessionHandle, instruction string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handles = append(w.handles, h)
	return "ok", nil
}

func newRunner(t *testing.T, m *model.ScriptedModel, exec world.Executor, optFns ...func(o *Options)) *Runner {
	t.Helper()

	tools, err := tool.NewRegistry(
		tool.MustTemplateTool("show_profile", "Show the profile", nil, "print(apis.supervisor.show_profile())"),
		tool.NewCompletionTool(""),
	)
	require.NoError(t, err)

	r, err := New(engine.New(model.NewRegistry(m), tools, exec), optFns...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Shutdown(context.Background()) })

	return r
}

// blockingStep blocks the model call until release is closed. entered is
// closed once the call started.
func blockingStep(entered, release chan struct{}, resp *model.Response) model.ScriptStep {
	return model.ScriptStep{
		Response: resp,
		Hook: func(context.Context, model.Request) {
			close(entered)
			<-release
		},
	}
}

func TestRunSync_CompletesAndArchives(t *testing.T) {
	m := model.NewScriptedModel(model.ProviderGemini).
		Reply(testutil.NewResponse().Call("show_profile", nil).Usage(10, 2, 0).Build()).
		Reply(testutil.NewResponse().Call(tool.DefaultCompletionTool, map[string]any{"answer": "Ada"}).Usage(20, 3, 0).Build())

	store := artifact.NewInMemoryStore(0)
	r := newRunner(t, m, &recordingWorld{}, func(o *Options) { o.TranscriptStore = store })

	summary, err := r.RunSync(context.Background(), testutil.NewRequest("who am I").Build())
	require.NoError(t, err)

	assert.True(t, summary.Completed)
	assert.False(t, summary.Cancelled)
	assert.Equal(t, "task-1", summary.TaskID)
	assert.Equal(t, 2, summary.ToolCallCount)
	assert.Equal(t, 30, summary.InputTokens)

	archived, err := store.Get(summary.RunID)
	require.NoError(t, err)
	assert.Equal(t, summary, archived)
	assert.Empty(t, r.Active())
}

func TestStart_CredentialFallback(t *testing.T) {
	m := model.NewScriptedModel(model.ProviderGemini).Reply(testutil.NewResponse().Text("hi").Build())
	r := newRunner(t, m, &recordingWorld{}, func(o *Options) {
		o.Credentials = func(provider string) string {
			if provider == "gemini" {
				return "from-config"
			}
			return ""
		}
	})

	_, err := r.RunSync(context.Background(), testutil.NewRequest("hello").Credential("").Build())
	require.NoError(t, err)
	assert.Equal(t, "from-config", m.Requests()[0].Credential)

	_, err = r.RunSync(context.Background(), testutil.NewRequest("hello").Provider("openai", "gpt-4o").Credential("").Build())
	require.ErrorIs(t, err, core.ErrMissingCredential)
}

func TestStart_CredentialFallbackResolvesAliases(t *testing.T) {
	m := model.NewScriptedModel(model.ProviderAnthropic).
		Reply(testutil.NewResponse().Text("hi").Build()).
		Reply(testutil.NewResponse().Text("hi again").Build())

	var asked []string
	r := newRunner(t, m, &recordingWorld{}, func(o *Options) {
		o.Credentials = func(provider string) string {
			asked = append(asked, provider)
			if provider == "anthropic" {
				return "sk-ant-config"
			}
			return ""
		}
	})

	for _, alias := range []string{"claude", " Anthropic "} {
		summary, err := r.RunSync(context.Background(), testutil.NewRequest("hello").Provider(alias, "claude-sonnet-4").Credential("").Build())
		require.NoError(t, err, alias)
		assert.Nil(t, summary.Error)
	}

	require.Len(t, m.Requests(), 2)
	assert.Equal(t, "sk-ant-config", m.Requests()[0].Credential)
	assert.Equal(t, "sk-ant-config", m.Requests()[1].Credential)
	assert.Equal(t, []string{"anthropic", "anthropic"}, asked)
}

func TestStart_FillsSessionToken(t *testing.T) {
	sessions := session.NewInMemoryStore()
	require.NoError(t, sessions.Put(testutil.NewWorldSession("task-9", "stored-token")))

	m := model.NewScriptedModel(model.ProviderGemini).
		Reply(testutil.NewResponse().Call("show_profile", nil).Build()).
		Reply(testutil.NewResponse().Text("done").Build())
	w := &recordingWorld{}
	r := newRunner(t, m, w, func(o *Options) { o.SessionStore = sessions })

	_, err := r.RunSync(context.Background(), testutil.NewRequest("profile").Session("task-9", "").Build())
	require.NoError(t, err)

	require.Len(t, w.handles, 1)
	assert.Equal(t, core.SessionHandle{TaskID: "task-9", Token: "stored-token"}, w.handles[0])

	_, err = r.RunSync(context.Background(), testutil.NewRequest("profile").Session("unknown", "").Build())
	require.ErrorIs(t, err, core.ErrUninitializedSession)
}

func TestStart_ConfigurationErrors(t *testing.T) {
	m := model.NewScriptedModel(model.ProviderGemini)
	r := newRunner(t, m, &recordingWorld{})

	_, _, err := r.Start(context.Background(), testutil.NewRequest("x").Provider("mistral", "large").Build())
	require.ErrorIs(t, err, core.ErrUnknownProvider)

	_, _, err = r.Start(context.Background(), testutil.NewRequest("x").Tools("nope").Build())
	require.ErrorIs(t, err, core.ErrInvalidRequest)

	assert.Zero(t, m.Calls())
	assert.Empty(t, r.Active())
}

func TestStart_PoolLimit(t *testing.T) {
	entered, release := make(chan struct{}), make(chan struct{})
	m := model.NewScriptedModel(model.ProviderGemini,
		blockingStep(entered, release, testutil.NewResponse().Text("first").Build()))

	r := newRunner(t, m, &recordingWorld{}, func(o *Options) { o.MaxConcurrentRuns = 1 })

	_, events, err := r.Start(context.Background(), testutil.NewRequest("one").Build())
	require.NoError(t, err)
	<-entered

	_, _, err = r.Start(context.Background(), testutil.NewRequest("two").Build())
	require.ErrorIs(t, err, core.ErrTooManyRuns)
	assert.Len(t, r.Active(), 1)

	close(release)
	evs := testutil.Drain(events)
	assert.Equal(t, core.EventDone, testutil.Last(evs).Type)
}

func TestCancel(t *testing.T) {
	entered, release := make(chan struct{}), make(chan struct{})
	m := model.NewScriptedModel(model.ProviderGemini,
		blockingStep(entered, release, testutil.NewResponse().Call("show_profile", nil).Build()))

	w := &recordingWorld{}
	r := newRunner(t, m, w)

	runID, events, err := r.Start(context.Background(), testutil.NewRequest("slow").Build())
	require.NoError(t, err)
	<-entered

	assert.True(t, r.IsActive(runID))
	require.NoError(t, r.Cancel(runID))
	close(release)

	for _, ev := range testutil.Drain(events) {
		assert.False(t, ev.IsTerminal(), "cancelled runs emit no terminal event")
	}

	archived, err := r.Transcripts().Get(runID)
	require.NoError(t, err)
	assert.True(t, archived.Cancelled)
	assert.False(t, archived.Completed)
	assert.Empty(t, w.handles, "no tool runs after cancellation")

	require.ErrorIs(t, r.Cancel(runID), core.ErrRunNotFound)
	assert.False(t, r.IsActive(runID))
}

func TestStart_CallerContextCancels(t *testing.T) {
	entered, release := make(chan struct{}), make(chan struct{})
	m := model.NewScriptedModel(model.ProviderGemini,
		blockingStep(entered, release, testutil.NewResponse().Text("late").Build()))
	r := newRunner(t, m, &recordingWorld{})

	ctx, cancel := context.WithCancel(context.Background())
	runID, events, err := r.Start(ctx, testutil.NewRequest("bye").Build())
	require.NoError(t, err)
	<-entered

	cancel()
	close(release)
	testutil.Drain(events)

	archived, err := r.Transcripts().Get(runID)
	require.NoError(t, err)
	assert.True(t, archived.Cancelled)
}

func TestShutdown(t *testing.T) {
	entered, release := make(chan struct{}), make(chan struct{})
	m := model.NewScriptedModel(model.ProviderGemini,
		blockingStep(entered, release, testutil.NewResponse().Text("x").Build()))
	r := newRunner(t, m, &recordingWorld{})

	runID, events, err := r.Start(context.Background(), testutil.NewRequest("x").Build())
	require.NoError(t, err)
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, r.Shutdown(ctx), context.DeadlineExceeded, "run still blocked in the model call")

	close(release)
	testutil.Drain(events)

	require.NoError(t, r.Shutdown(context.Background()))
	archived, err := r.Transcripts().Get(runID)
	require.NoError(t, err)
	assert.True(t, archived.Cancelled)
}

func TestNew_NegativeLimit(t *testing.T) {
	_, err := New(nil, func(o *Options) { o.MaxConcurrentRuns = -1 })
	require.Error(t, err)
}
