// Package config loads the agentplay configuration: built-in defaults, then an
// optional YAML file, then environment overrides.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/agentplay/logging"
)

const (
	DefaultAddr               = ":8080"
	DefaultShutdownTimeout    = 15 * time.Second
	DefaultWorldBaseURL       = "http://localhost:8000"
	DefaultWorldTimeout       = 2 * time.Minute
	DefaultExperimentName     = "agentplay"
	DefaultMaxIterations      = 50
	DefaultEventBufferSize    = 100
	DefaultCompletionTool     = "complete_task"
	DefaultMaxConcurrentRuns  = 16
	DefaultTranscriptsPerTask = 100
	DefaultGeminiThinking     = -1
	DefaultAnthropicMaxTokens = 4096
	DefaultLogLevel           = "info"
	DefaultLogFormat          = logging.FormatText
	EnvPrefix                 = "AGENTPLAY_"
)

type Config struct {
	Server      ServerConfig    `yaml:"server"`
	World       WorldConfig     `yaml:"world"`
	Engine      EngineConfig    `yaml:"engine"`
	Providers   ProvidersConfig `yaml:"providers"`
	Log         LogConfig       `yaml:"log"`
	CatalogPath string          `yaml:"catalogPath"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	AllowedOrigins  []string      `yaml:"allowedOrigins"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

type WorldConfig struct {
	BaseURL        string        `yaml:"baseUrl"`
	Timeout        time.Duration `yaml:"timeout"`
	ExperimentName string        `yaml:"experimentName"`
}

type EngineConfig struct {
	MaxIterations      int    `yaml:"maxIterations"`
	EventBufferSize    int    `yaml:"eventBufferSize"`
	CompletionTool     string `yaml:"completionTool"`
	MaxConcurrentRuns  int    `yaml:"maxConcurrentRuns"`
	TranscriptsPerTask int    `yaml:"transcriptsPerTask"`
	DryRun             bool   `yaml:"dryRun"`
}

type ProvidersConfig struct {
	Gemini    GeminiConfig    `yaml:"gemini"`
	Anthropic AnthropicConfig `yaml:"anthropic"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
}

type GeminiConfig struct {
	APIKey         string `yaml:"apiKey"`
	BaseURL        string `yaml:"baseUrl,omitempty"`
	ThinkingBudget int32  `yaml:"thinkingBudget"`
}

type AnthropicConfig struct {
	APIKey         string `yaml:"apiKey"`
	BaseURL        string `yaml:"baseUrl,omitempty"`
	MaxTokens      int64  `yaml:"maxTokens"`
	ThinkingBudget int64  `yaml:"thinkingBudget"`
}

type OpenAIConfig struct {
	APIKey  string `yaml:"apiKey"`
	BaseURL string `yaml:"baseUrl,omitempty"`
}

type LogConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	AddSource bool   `yaml:"addSource"`
}

// DefaultConfig returns the configuration used when nothing else is set.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            DefaultAddr,
			AllowedOrigins:  []string{"*"},
			ShutdownTimeout: DefaultShutdownTimeout,
		},
		World: WorldConfig{
			BaseURL:        DefaultWorldBaseURL,
			Timeout:        DefaultWorldTimeout,
			ExperimentName: DefaultExperimentName,
		},
		Engine: EngineConfig{
			MaxIterations:      DefaultMaxIterations,
			EventBufferSize:    DefaultEventBufferSize,
			CompletionTool:     DefaultCompletionTool,
			MaxConcurrentRuns:  DefaultMaxConcurrentRuns,
			TranscriptsPerTask: DefaultTranscriptsPerTask,
		},
		Providers: ProvidersConfig{
			Gemini:    GeminiConfig{ThinkingBudget: DefaultGeminiThinking},
			Anthropic: AnthropicConfig{MaxTokens: DefaultAnthropicMaxTokens},
		},
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// Load builds the configuration. An empty path skips the file; a path that
// does not exist is an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	integer := func(name string, dst *int) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("env %s%s: %w", EnvPrefix, name, err)
		}
		*dst = n
		return nil
	}

	str("ADDR", &c.Server.Addr)
	str("WORLD_URL", &c.World.BaseURL)
	str("EXPERIMENT", &c.World.ExperimentName)
	str("COMPLETION_TOOL", &c.Engine.CompletionTool)
	str("CATALOG", &c.CatalogPath)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)

	if v, ok := lookup(EnvPrefix + "ALLOWED_ORIGINS"); ok && v != "" {
		c.Server.AllowedOrigins = splitList(v)
	}

	if v, ok := lookup(EnvPrefix + "DRY_RUN"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("env %sDRY_RUN: %w", EnvPrefix, err)
		}
		c.Engine.DryRun = b
	}

	if err := integer("MAX_ITERATIONS", &c.Engine.MaxIterations); err != nil {
		return err
	}
	if err := integer("MAX_CONCURRENT_RUNS", &c.Engine.MaxConcurrentRuns); err != nil {
		return err
	}

	// Vendor keys: the prefixed variable wins over the vendor's own.
	for _, k := range []struct {
		dst  *string
		envs []string
	}{
		{&c.Providers.Gemini.APIKey, []string{EnvPrefix + "GEMINI_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY"}},
		{&c.Providers.Anthropic.APIKey, []string{EnvPrefix + "ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY"}},
		{&c.Providers.OpenAI.APIKey, []string{EnvPrefix + "OPENAI_API_KEY", "OPENAI_API_KEY"}},
	} {
		for _, env := range k.envs {
			if v, ok := lookup(env); ok && v != "" {
				*k.dst = v
				break
			}
		}
	}

	return nil
}

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if _, port, err := net.SplitHostPort(c.Server.Addr); err != nil {
		errs = append(errs, fmt.Errorf("server.addr %q: %w", c.Server.Addr, err))
	} else if n, err := strconv.Atoi(port); err != nil || n < 0 || n > 65535 {
		errs = append(errs, fmt.Errorf("server.addr %q: invalid port", c.Server.Addr))
	}

	if c.World.BaseURL == "" {
		errs = append(errs, errors.New("world.baseUrl is required"))
	}
	if c.Engine.MaxIterations < 0 {
		errs = append(errs, errors.New("engine.maxIterations must not be negative"))
	}
	if c.Engine.EventBufferSize < 0 {
		errs = append(errs, errors.New("engine.eventBufferSize must not be negative"))
	}
	if c.Engine.MaxConcurrentRuns < 0 {
		errs = append(errs, errors.New("engine.maxConcurrentRuns must not be negative"))
	}
	if c.Engine.CompletionTool == "" {
		errs = append(errs, errors.New("engine.completionTool is required"))
	}
	if c.Providers.Anthropic.MaxTokens <= 0 {
		errs = append(errs, errors.New("providers.anthropic.maxTokens must be positive"))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}

	switch c.Log.Format {
	case logging.FormatJSON, logging.FormatText, logging.FormatConsole:
	default:
		errs = append(errs, fmt.Errorf("log.format %q: want json, text or console", c.Log.Format))
	}

	return errors.Join(errs...)
}

// Credential returns the configured API key of a provider ("gemini",
// "anthropic" or "openai"), or "".
func (c *Config) Credential(provider string) string {
	switch provider {
	case "gemini":
		return c.Providers.Gemini.APIKey
	case "anthropic":
		return c.Providers.Anthropic.APIKey
	case "openai":
		return c.Providers.OpenAI.APIKey
	default:
		return ""
	}
}

// NewLogger builds the logger described by the log section.
func (c *Config) NewLogger() (*logging.AgentPlayLogger, error) {
	level, err := logging.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	return logging.NewSlogLogger(level, c.Log.Format, c.Log.AddSource), nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
