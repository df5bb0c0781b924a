package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultMaxIterations, cfg.Engine.MaxIterations)
	assert.Equal(t, DefaultCompletionTool, cfg.Engine.CompletionTool)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
}

func TestLoad_File(t *testing.T) {
	t.Setenv("AGENTPLAY_ADDR", "")
	path := filepath.Join(t.TempDir(), "agentplay.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: "127.0.0.1:9090"
  shutdownTimeout: 3s
world:
  baseUrl: http://world:8000
engine:
  maxIterations: 7
  dryRun: true
providers:
  anthropic:
    maxTokens: 1024
log:
  level: debug
  format: json
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9090", cfg.Server.Addr)
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "http://world:8000", cfg.World.BaseURL)
	assert.Equal(t, 7, cfg.Engine.MaxIterations)
	assert.True(t, cfg.Engine.DryRun)
	assert.Equal(t, int64(1024), cfg.Providers.Anthropic.MaxTokens)
	assert.Equal(t, "json", cfg.Log.Format)
	// untouched sections keep their defaults
	assert.Equal(t, DefaultEventBufferSize, cfg.Engine.EventBufferSize)
	assert.Equal(t, DefaultExperimentName, cfg.World.ExperimentName)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [oops"), 0o600))

	_, err := Load(path)
	require.ErrorContains(t, err, "parse config")
}

func TestApplyEnv(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.applyEnv(envMap(map[string]string{
		"AGENTPLAY_ADDR":                ":9000",
		"AGENTPLAY_WORLD_URL":           "http://appworld:8000",
		"AGENTPLAY_MAX_ITERATIONS":      "12",
		"AGENTPLAY_MAX_CONCURRENT_RUNS": "2",
		"AGENTPLAY_DRY_RUN":             "true",
		"AGENTPLAY_ALLOWED_ORIGINS":     "http://a.test, http://b.test,",
		"GEMINI_API_KEY":                "gem",
		"AGENTPLAY_ANTHROPIC_API_KEY":   "ant-prefixed",
		"ANTHROPIC_API_KEY":             "ant-vendor",
		"OPENAI_API_KEY":                "oai",
	}))
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, "http://appworld:8000", cfg.World.BaseURL)
	assert.Equal(t, 12, cfg.Engine.MaxIterations)
	assert.Equal(t, 2, cfg.Engine.MaxConcurrentRuns)
	assert.True(t, cfg.Engine.DryRun)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.AllowedOrigins)

	assert.Equal(t, "gem", cfg.Credential("gemini"))
	assert.Equal(t, "ant-prefixed", cfg.Credential("anthropic"))
	assert.Equal(t, "oai", cfg.Credential("openai"))
	assert.Empty(t, cfg.Credential("mistral"))
}

func TestApplyEnv_BadValues(t *testing.T) {
	for name, env := range map[string]map[string]string{
		"iterations": {"AGENTPLAY_MAX_ITERATIONS": "many"},
		"dry run":    {"AGENTPLAY_DRY_RUN": "sometimes"},
	} {
		t.Run(name, func(t *testing.T) {
			require.Error(t, DefaultConfig().applyEnv(envMap(env)))
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		msg    string
	}{
		{"addr", func(c *Config) { c.Server.Addr = "localhost" }, "server.addr"},
		{"port", func(c *Config) { c.Server.Addr = ":99999" }, "invalid port"},
		{"world", func(c *Config) { c.World.BaseURL = "" }, "world.baseUrl"},
		{"iterations", func(c *Config) { c.Engine.MaxIterations = -1 }, "maxIterations"},
		{"concurrency", func(c *Config) { c.Engine.MaxConcurrentRuns = -3 }, "maxConcurrentRuns"},
		{"completion", func(c *Config) { c.Engine.CompletionTool = "" }, "completionTool"},
		{"max tokens", func(c *Config) { c.Providers.Anthropic.MaxTokens = 0 }, "maxTokens"},
		{"level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			require.ErrorContains(t, cfg.Validate(), tt.msg)
		})
	}
}

func TestNewLogger(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Log.Format = "json"
	l, err := cfg.NewLogger()
	require.NoError(t, err)
	require.NotNil(t, l)
}
