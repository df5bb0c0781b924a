package agentplay

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentplay/core"
	"github.com/hupe1980/agentplay/internal/config"
	"github.com/hupe1980/agentplay/internal/testutil"
	"github.com/hupe1980/agentplay/model"
	"github.com/hupe1980/agentplay/tool"
	"github.com/hupe1980/agentplay/world"
)

func TestNew_DryRunWithDefaultCatalog(t *testing.T) {
	m := model.NewScriptedModel(model.ProviderAnthropic).
		Reply(testutil.NewResponse().Call("show_venmo_balance", map[string]any{"access_token": "t"}).Build()).
		Reply(testutil.NewResponse().Call(tool.DefaultCompletionTool, nil).Build())

	called := false
	app, err := New(func(o *Options) {
		o.Adapters = []model.Adapter{m}
		o.World = world.Func(func(context.Context, core.SessionHandle, string) (string, error) {
			called = true
			return "", nil
		})
		o.DryRun = true
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Shutdown(context.Background()) })

	assert.True(t, app.Tools().Has("login"))

	summary, err := app.RunSync(context.Background(),
		testutil.NewRequest("balance?").Provider("anthropic", "claude-sonnet-4-5").Build())
	require.NoError(t, err)

	assert.True(t, summary.Completed)
	assert.False(t, called, "dry runs never reach the world")
	require.Len(t, summary.Trace, 4)
	assert.Contains(t, summary.Trace[1].Content, "[dry-run] print(apis.venmo.show_venmo_balance(")
}

func TestInitializeSession_NeedsProvisioner(t *testing.T) {
	app, err := New(func(o *Options) {
		o.World = world.Func(func(context.Context, core.SessionHandle, string) (string, error) { return "", nil })
	})
	require.NoError(t, err)

	_, err = app.InitializeSession(context.Background(), "task-1", "")
	require.ErrorContains(t, err, "cannot provision")
}

func TestFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Engine.MaxConcurrentRuns = 2
	cfg.Providers.OpenAI.APIKey = "sk-test"

	app, err := FromConfig(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Shutdown(context.Background()) })

	assert.Positive(t, app.Tools().Len())
	assert.NotNil(t, app.Server())

	// No key is configured for an unknown provider, so the credential check fails first.
	_, _, err = app.Start(context.Background(), testutil.NewRequest("x").Provider("mistral", "m").Credential("").Build())
	require.ErrorIs(t, err, core.ErrMissingCredential)
}

func TestFromConfig_CatalogPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tools.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
tools:
  - name: ping
    description: Ping the world
    template: print("pong")
  - name: complete_task
    description: Finish
    completion: true
`), 0o600))

	cfg := config.DefaultConfig()
	cfg.CatalogPath = path

	app, err := FromConfig(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Shutdown(context.Background()) })
	assert.Equal(t, []string{"complete_task", "ping"}, app.Tools().Names())

	cfg.CatalogPath = filepath.Join(dir, "missing.yaml")
	_, err = FromConfig(cfg, nil)
	require.ErrorContains(t, err, "open catalog")
}
