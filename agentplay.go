// Package agentplay wires the agent loop into a ready-to-use service: model
// adapters for Gemini, Anthropic and OpenAI, the tool catalog, the HTTP world
// client, the runner with its stores, and optionally the HTTP server.
//
// Most applications either build an AgentPlay from configuration (FromConfig)
// or call New with a few overrides and then:
//  1. Start a run and consume its events (Start), or
//  2. Run it to the end and read the summary (RunSync), or
//  3. Serve everything over HTTP (Server).
//
// All defaults are safe for local development: in-memory session and
// transcript stores and a world service on localhost.
package agentplay

import (
	"context"
	"fmt"
	"os"

	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"

	"github.com/hupe1980/agentplay/artifact"
	"github.com/hupe1980/agentplay/core"
	"github.com/hupe1980/agentplay/engine"
	"github.com/hupe1980/agentplay/internal/config"
	"github.com/hupe1980/agentplay/logging"
	"github.com/hupe1980/agentplay/model"
	"github.com/hupe1980/agentplay/model/anthropic"
	"github.com/hupe1980/agentplay/model/gemini"
	"github.com/hupe1980/agentplay/model/openai"
	"github.com/hupe1980/agentplay/runner"
	"github.com/hupe1980/agentplay/server"
	"github.com/hupe1980/agentplay/session"
	"github.com/hupe1980/agentplay/tool"
	"github.com/hupe1980/agentplay/world"
)

// Options configures an AgentPlay instance.
type Options struct {
	// Adapters are the installed providers. Defaults to Gemini, Anthropic and
	// OpenAI with their default settings.
	Adapters []model.Adapter

	// Tools is the tool catalog. Defaults to the embedded catalog.
	Tools *tool.Registry

	// World executes instructions and provisions sessions. Defaults to a
	// world.Client on localhost. Executors that do not implement
	// world.Provisioner leave the session endpoints read-only.
	World world.Executor

	// Engine tuning.
	MaxIterations   int
	EventBufferSize int
	CompletionTool  string
	// DryRun answers every tool call with its rendered instruction instead
	// of running it in the world.
	DryRun bool
	Hooks  []engine.Callback

	// MaxConcurrentRuns limits simultaneous runs; zero means unbounded.
	MaxConcurrentRuns int

	// Credentials supplies fallback provider credentials.
	Credentials runner.CredentialFunc

	// Stores (defaults to in-memory implementations if not provided).
	SessionStore    core.SessionStore
	TranscriptStore core.TranscriptStore

	// Logger (defaults to NoOp logger if nil).
	Logger logging.Logger
}

// AgentPlay aggregates the runner and the world it talks to.
type AgentPlay struct {
	runner *runner.Runner
	world  world.Executor
	logger logging.Logger
}

// New creates an AgentPlay with optional overrides.
func New(optFns ...func(o *Options)) (*AgentPlay, error) {
	opts := Options{
		MaxIterations:     core.DefaultMaxIterations,
		EventBufferSize:   100,
		CompletionTool:    tool.DefaultCompletionTool,
		MaxConcurrentRuns: runner.DefaultMaxConcurrentRuns,
		Logger:            logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if len(opts.Adapters) == 0 {
		opts.Adapters = []model.Adapter{gemini.New(), anthropic.New(), openai.New()}
	}

	if opts.Tools == nil {
		catalog, err := tool.DefaultCatalog()
		if err != nil {
			return nil, fmt.Errorf("load default catalog: %w", err)
		}
		opts.Tools = catalog
	}

	if opts.World == nil {
		opts.World = world.NewClient(func(o *world.ClientOptions) { o.Logger = opts.Logger })
	}

	if opts.SessionStore == nil {
		opts.SessionStore = session.NewInMemoryStore()
	}

	if opts.TranscriptStore == nil {
		opts.TranscriptStore = artifact.NewInMemoryStore(0)
	}

	hooks := engine.NewCallbackManager(opts.Hooks...)
	if opts.DryRun {
		hooks.RegisterCallback(engine.DryRunCallback())
	}

	eng := engine.New(model.NewRegistry(opts.Adapters...), opts.Tools, opts.World, func(o *engine.Options) {
		o.MaxIterations = opts.MaxIterations
		o.EventBufferSize = opts.EventBufferSize
		o.CompletionTool = opts.CompletionTool
		o.Logger = opts.Logger
		o.Hooks = hooks
	})

	r, err := runner.New(eng, func(o *runner.Options) {
		o.MaxConcurrentRuns = opts.MaxConcurrentRuns
		o.EventBufferSize = opts.EventBufferSize
		o.Credentials = opts.Credentials
		o.SessionStore = opts.SessionStore
		o.TranscriptStore = opts.TranscriptStore
		o.Logger = opts.Logger
	})
	if err != nil {
		return nil, err
	}

	return &AgentPlay{runner: r, world: opts.World, logger: opts.Logger}, nil
}

// FromConfig builds an AgentPlay from a loaded configuration.
func FromConfig(cfg *config.Config, logger logging.Logger, optFns ...func(o *Options)) (*AgentPlay, error) {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	tools, err := loadTools(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}

	p := cfg.Providers

	adapters := []model.Adapter{
		gemini.New(func(o *gemini.Options) {
			o.ThinkingBudget = p.Gemini.ThinkingBudget
			o.BaseURL = p.Gemini.BaseURL
		}),
		anthropic.New(func(o *anthropic.Options) {
			o.MaxTokens = p.Anthropic.MaxTokens
			o.ThinkingBudget = p.Anthropic.ThinkingBudget
			if p.Anthropic.BaseURL != "" {
				o.RequestOptions = append(o.RequestOptions, anthropicopt.WithBaseURL(p.Anthropic.BaseURL))
			}
		}),
		openai.New(func(o *openai.Options) {
			o.BaseURL = p.OpenAI.BaseURL
		}),
	}

	worldClient := world.NewClient(func(o *world.ClientOptions) {
		o.BaseURL = cfg.World.BaseURL
		o.HTTPClient.Timeout = cfg.World.Timeout
		o.ExperimentName = cfg.World.ExperimentName
		o.Logger = logger
	})

	all := append([]func(o *Options){func(o *Options) {
		o.Adapters = adapters
		o.Tools = tools
		o.World = worldClient
		o.MaxIterations = cfg.Engine.MaxIterations
		o.EventBufferSize = cfg.Engine.EventBufferSize
		o.CompletionTool = cfg.Engine.CompletionTool
		o.DryRun = cfg.Engine.DryRun
		o.MaxConcurrentRuns = cfg.Engine.MaxConcurrentRuns
		o.Credentials = cfg.Credential
		o.TranscriptStore = artifact.NewInMemoryStore(cfg.Engine.TranscriptsPerTask)
		o.Logger = logger
	}}, optFns...)

	return New(all...)
}

func loadTools(path string) (*tool.Registry, error) {
	if path == "" {
		return tool.DefaultCatalog()
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()

	tools, err := tool.LoadCatalog(f)
	if err != nil {
		return nil, fmt.Errorf("load catalog %s: %w", path, err)
	}

	return tools, nil
}

// Runner returns the underlying runner.
func (a *AgentPlay) Runner() *runner.Runner { return a.runner }

// Tools returns the tool catalog.
func (a *AgentPlay) Tools() *tool.Registry { return a.runner.Engine().Tools() }

// Start begins an asynchronous run returning its id and event channel.
func (a *AgentPlay) Start(ctx context.Context, req core.RunRequest) (string, <-chan core.Event, error) {
	return a.runner.Start(ctx, req)
}

// RunSync runs req to its end and returns the summary.
func (a *AgentPlay) RunSync(ctx context.Context, req core.RunRequest) (*core.Summary, error) {
	return a.runner.RunSync(ctx, req)
}

// Cancel stops an active run.
func (a *AgentPlay) Cancel(runID string) error { return a.runner.Cancel(runID) }

// InitializeSession provisions a world session and stores it, so later runs
// may omit the token.
func (a *AgentPlay) InitializeSession(ctx context.Context, taskID, experiment string) (*core.WorldSession, error) {
	p, ok := a.world.(world.Provisioner)
	if !ok {
		return nil, fmt.Errorf("world executor %T cannot provision sessions", a.world)
	}

	ws, err := p.Initialize(ctx, taskID, experiment)
	if err != nil {
		return nil, err
	}

	if err := a.runner.Sessions().Put(ws); err != nil {
		return nil, err
	}

	return ws, nil
}

// Server returns the HTTP API over this instance.
func (a *AgentPlay) Server(optFns ...func(o *server.Options)) *server.Server {
	return server.New(a.runner, append([]func(o *server.Options){func(o *server.Options) {
		if p, ok := a.world.(world.Provisioner); ok {
			o.Provisioner = p
		}
		o.Logger = a.logger
	}}, optFns...)...)
}

// Shutdown cancels active runs and waits for them to be archived.
func (a *AgentPlay) Shutdown(ctx context.Context) error { return a.runner.Shutdown(ctx) }
