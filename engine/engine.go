package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/agentplay/core"
	"github.com/hupe1980/agentplay/logging"
	"github.com/hupe1980/agentplay/model"
	"github.com/hupe1980/agentplay/tool"
	"github.com/hupe1980/agentplay/world"
)

// TracerName is the instrumentation scope of the engine's spans.
const TracerName = "github.com/hupe1980/agentplay/engine"

// CompletionResult is the tool result produced for the completion tool when
// the active tool set does not provide an executable one.
const CompletionResult = "task marked complete"

// ErrObserverGone is returned by Run when the event consumer stopped
// accepting events. The run is treated as cancelled.
var ErrObserverGone = errors.New("event observer gone")

// Options configures an Engine instance using the functional options pattern.
//
// Example:
//
//	eng := engine.New(adapters, tools, worldClient, func(o *engine.Options) {
//	    o.MaxIterations = 20
//	    o.Logger = logger
//	})
type Options struct {
	// MaxIterations bounds the model invocations of a run whose request does
	// not set its own limit. Values below one fall back to
	// core.DefaultMaxIterations.
	MaxIterations int

	// EventBufferSize sets the channel buffer size of Start.
	EventBufferSize int

	// CompletionTool is the tool name that marks a task as done.
	CompletionTool string

	// Logger provides structured logging. Loggers implementing
	// logging.LLMCallLogger and logging.ToolCallLogger also get per-call records.
	Logger logging.Logger

	// Tracer creates the run, model and tool spans.
	Tracer trace.Tracer

	// Hooks are executed around model and tool calls.
	Hooks *CallbackManager
}

// Engine drives the agent loop: it alternates between provider invocations
// and tool executions until the model completes the task, hands control back
// to the user, fails, or runs out of iterations.
//
// An Engine holds no per-run state and is safe for concurrent use; each run
// owns its own core.RunState.
type Engine struct {
	adapters *model.Registry
	tools    *tool.Registry
	executor world.Executor
	opts     Options
}

// New creates an Engine resolving providers from adapters, tools from tools
// and executing rendered instructions with executor.
func New(
	adapters *model.Registry,
	tools *tool.Registry,
	executor world.Executor,
	optFns ...func(o *Options),
) *Engine {
	opts := Options{
		MaxIterations:   core.DefaultMaxIterations,
		EventBufferSize: 100,
		CompletionTool:  tool.DefaultCompletionTool,
		Logger:          logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.MaxIterations < 1 {
		opts.MaxIterations = core.DefaultMaxIterations
	}

	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(TracerName)
	}

	if opts.Hooks == nil {
		opts.Hooks = NewCallbackManager()
	}

	return &Engine{
		adapters: adapters,
		tools:    tools,
		executor: executor,
		opts:     opts,
	}
}

// Tools returns the engine's full tool registry.
func (e *Engine) Tools() *tool.Registry { return e.tools }

// Start validates req and runs the loop on a new goroutine. The returned
// channel yields the run's events in order and is closed when the run ends.
//
// Configuration problems are reported synchronously as *core.ConfigurationError
// and no provider is contacted. Once ctx is cancelled, the run emits nothing
// further; in particular no terminal event follows.
//
// Example:
//
//	events, err := eng.Start(ctx, core.NewID(), req)
//	if err != nil {
//	    return err
//	}
//	for ev := range events {
//	    handle(ev)
//	}
func (e *Engine) Start(ctx context.Context, runID string, req core.RunRequest) (<-chan core.Event, error) {
	r, err := e.prepare(runID, req)
	if err != nil {
		return nil, err
	}

	ch := make(chan core.Event, e.opts.EventBufferSize)

	go func() {
		defer close(ch)

		_, _ = r.loop(ctx, func(ev core.Event) bool {
			select {
			case ch <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		})
	}()

	return ch, nil
}

// Run executes the loop synchronously, handing each event to emit. emit
// returning false means the observer is gone; the run then stops as if
// cancelled and Run returns ErrObserverGone.
//
// The returned state is the run's final state. The error is a
// ConfigurationError (state is nil), the ProviderError that failed the run,
// or the cancellation cause.
func (e *Engine) Run(ctx context.Context, runID string, req core.RunRequest, emit func(core.Event) bool) (*core.RunState, error) {
	r, err := e.prepare(runID, req)
	if err != nil {
		return nil, err
	}

	return r.loop(ctx, emit)
}

// Validate runs the synchronous checks of Start without starting a run.
func (e *Engine) Validate(req core.RunRequest) error {
	_, err := e.prepare("", req)
	return err
}

func (e *Engine) prepare(runID string, req core.RunRequest) (*run, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	adapter, err := e.adapters.Get(req.Provider)
	if err != nil {
		return nil, err
	}

	tools, err := e.tools.Subset(req.ActiveTools)
	if err != nil {
		return nil, err
	}

	if runID == "" {
		runID = core.NewID()
	}

	maxIterations := e.opts.MaxIterations
	if req.MaxIterations > 0 {
		maxIterations = req.MaxIterations
	}

	logger := e.opts.Logger
	if l, ok := logger.(*logging.AgentPlayLogger); ok {
		logger = l.WithRun(runID, req.Session.TaskID)
	}

	return &run{
		engine:  e,
		id:      runID,
		req:     req,
		adapter: adapter,
		tools:   tools,
		defs:    tools.Definitions(),
		limiter: core.NewIterationLimiter(maxIterations),
		state:   core.NewRunState(req.History),
		logger:  logger,
	}, nil
}

// run is the per-invocation state of the loop. It is confined to one goroutine.
type run struct {
	engine  *Engine
	id      string
	req     core.RunRequest
	adapter model.Adapter
	tools   *tool.Registry
	defs    []model.ToolDefinition
	limiter *core.IterationLimiter
	state   *core.RunState
	logger  logging.Logger

	ctx     context.Context
	sink    func(core.Event) bool
	seq     int
	stopErr error
}

// emit delivers ev unless the run has been cancelled or the observer is gone.
// It reports whether the run may continue.
func (r *run) emit(ev core.Event) bool {
	if r.stopErr != nil {
		return false
	}

	if err := r.ctx.Err(); err != nil {
		r.stopErr = err
		return false
	}

	r.seq++
	ev.Seq = r.seq

	if !r.sink(ev) {
		if err := r.ctx.Err(); err != nil {
			r.stopErr = err
		} else {
			r.stopErr = ErrObserverGone
		}
		return false
	}

	return true
}

func (r *run) cancelled() (*core.RunState, error) {
	r.state.Phase = core.PhaseCancelled
	if r.stopErr == nil {
		r.stopErr = r.ctx.Err()
	}
	return r.state, r.stopErr
}

func (r *run) loop(ctx context.Context, sink func(core.Event) bool) (state *core.RunState, err error) {
	ctx, span := r.engine.opts.Tracer.Start(ctx, "agentplay.run", trace.WithAttributes(
		attribute.String("agentplay.run_id", r.id),
		attribute.String("agentplay.task_id", r.req.Session.TaskID),
		attribute.String("agentplay.provider", string(r.adapter.Provider())),
		attribute.String("agentplay.model", r.req.ModelID),
	))

	r.ctx = ctx
	r.sink = sink
	started := time.Now()

	defer func() {
		span.SetAttributes(
			attribute.String("agentplay.phase", string(r.state.Phase)),
			attribute.Int("agentplay.iterations", r.state.Iteration),
			attribute.Int("agentplay.tool_calls", r.state.Usage.ToolCallCount),
		)
		if err != nil && r.state.Phase == core.PhaseFailed {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()

		if l, ok := r.logger.(logging.RunLogger); ok {
			l.LogRun(r.id, r.state.Iteration, time.Since(started), string(r.state.Phase), err)
		}
	}()

	for {
		if ctx.Err() != nil {
			return r.cancelled()
		}

		if r.limiter.Exhausted() {
			r.state.Phase = core.PhaseExhausted
			if !r.emit(core.NewDoneEvent(r.id, false, false)) {
				return r.cancelled()
			}
			return r.state, nil
		}

		r.limiter.Increment()
		r.state.Iteration = r.limiter.Count()
		r.state.Phase = core.PhaseIterating

		resp, invokeErr := r.invokeModel(ctx)

		if ctx.Err() != nil {
			return r.cancelled()
		}

		if invokeErr != nil {
			r.state.Phase = core.PhaseFailed
			if !r.emit(core.NewErrorEvent(r.id, errorMessage(invokeErr), invokeErr)) {
				return r.cancelled()
			}
			return r.state, invokeErr
		}

		model.EnsureCallIDs(resp.ToolCalls)

		r.state.AddUsage(resp.Usage.InputTokens, resp.Usage.OutputTokens, resp.Usage.ThinkingTokens)
		if !r.emit(core.NewTokensEvent(r.id, r.state.Snapshot())) {
			return r.cancelled()
		}

		if resp.Text != "" {
			r.state.FinalText = resp.Text
			if !r.emit(core.NewTextEvent(r.id, resp.Text)) {
				return r.cancelled()
			}
		}

		if len(resp.ToolCalls) == 0 {
			r.state.Append(resp.Turn())
			r.state.NeedsUserInput = resp.Text != ""

			r.state.Phase = core.PhaseCompleted
			if r.state.NeedsUserInput {
				r.state.Phase = core.PhaseAwaitingUserInput
			}

			if !r.emit(core.NewDoneEvent(r.id, false, r.state.NeedsUserInput)) {
				return r.cancelled()
			}
			return r.state, nil
		}

		r.state.Phase = core.PhaseToolExecuting

		results := make([]core.ToolResult, 0, len(resp.ToolCalls))

		for i, call := range resp.ToolCalls {
			if i > 0 && ctx.Err() != nil {
				return r.cancelled()
			}

			if !r.emit(core.NewToolCallEvent(r.id, call.Name, call.Arguments)) {
				return r.cancelled()
			}

			if call.Name == r.engine.opts.CompletionTool {
				r.state.Completed = true
			}

			result := r.executeTool(ctx, call)
			results = append(results, result)

			if !r.emit(core.NewToolResultEvent(r.id, call.Name, result.Content)) {
				return r.cancelled()
			}

			r.state.Usage.ToolCallCount++
			if !r.emit(core.NewTokensEvent(r.id, r.state.Snapshot())) {
				return r.cancelled()
			}
		}

		r.state.Append(resp.Turn(), core.NewToolResultTurn(results))

		if r.state.Completed {
			r.state.Phase = core.PhaseCompleted
			r.state.NeedsUserInput = false
			if !r.emit(core.NewDoneEvent(r.id, true, false)) {
				return r.cancelled()
			}
			return r.state, nil
		}
	}
}

// invokeModel performs one provider call. The call itself is detached from
// ctx so that it finishes even if the run is cancelled meanwhile.
func (r *run) invokeModel(ctx context.Context) (*model.Response, error) {
	req := model.Request{
		Credential:         r.req.Credential,
		ModelID:            r.req.ModelID,
		SystemInstructions: r.req.SystemInstructions,
		History:            slices.Clone(r.state.History),
		Tools:              r.defs,
	}

	cc := &CallbackContext{RunID: r.id, TaskID: r.req.Session.TaskID, Iteration: r.state.Iteration, Request: &req}
	r.engine.opts.Hooks.ExecuteCallbacks(ctx, CallbackBeforeModel, cc, r.logger)

	ctx, span := r.engine.opts.Tracer.Start(ctx, "agentplay.model", trace.WithAttributes(
		attribute.String("agentplay.provider", string(r.adapter.Provider())),
		attribute.String("agentplay.model", r.req.ModelID),
		attribute.Int("agentplay.iteration", r.state.Iteration),
	))
	defer span.End()

	start := time.Now()
	resp, err := r.adapter.Invoke(context.WithoutCancel(ctx), req)

	if err == nil && resp == nil {
		err = errors.New("adapter returned no response")
	}

	if err != nil {
		var provErr *core.ProviderError
		if !errors.As(err, &provErr) {
			err = core.NewProviderError(string(r.adapter.Provider()), err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(
			attribute.Int("agentplay.input_tokens", resp.Usage.InputTokens),
			attribute.Int("agentplay.output_tokens", resp.Usage.OutputTokens),
			attribute.Int("agentplay.thinking_tokens", resp.Usage.ThinkingTokens),
			attribute.Int("agentplay.tool_calls", len(resp.ToolCalls)),
		)
	}

	if l, ok := r.logger.(logging.LLMCallLogger); ok {
		tokens := 0
		if resp != nil {
			tokens = resp.Usage.Total()
		}
		l.LogLLMCall(r.req.ModelID, tokens, time.Since(start), err == nil, err)
	}

	cc.Response, cc.Err = resp, err
	r.engine.opts.Hooks.ExecuteCallbacks(ctx, CallbackAfterModel, cc, r.logger)

	if err != nil {
		return nil, err
	}

	return resp, nil
}

// executeTool resolves, renders and executes one call. Every failure becomes
// an error result the model gets to see; none of them stops the run.
func (r *run) executeTool(ctx context.Context, call core.ToolCall) core.ToolResult {
	ctx, span := r.engine.opts.Tracer.Start(ctx, "agentplay.tool", trace.WithAttributes(
		attribute.String("agentplay.tool", call.Name),
		attribute.String("agentplay.call_id", call.ID),
	))
	defer span.End()

	start := time.Now()
	cc := &CallbackContext{RunID: r.id, TaskID: r.req.Session.TaskID, Iteration: r.state.Iteration, ToolCall: &call}

	result, err := r.runTool(ctx, call, cc)
	if err != nil {
		result.Content = err.Error()
		result.IsError = true
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	span.SetAttributes(attribute.Bool("agentplay.is_error", result.IsError))

	if l, ok := r.logger.(logging.ToolCallLogger); ok {
		l.LogToolCall(call.Name, time.Since(start), err == nil, err)
	}

	cc.Result = &result
	r.engine.opts.Hooks.ExecuteCallbacks(ctx, CallbackAfterTool, cc, r.logger)

	return result
}

func (r *run) runTool(ctx context.Context, call core.ToolCall, cc *CallbackContext) (core.ToolResult, error) {
	result := core.ToolResult{ID: call.ID, Name: call.Name}

	if !r.tools.Has(call.Name) {
		if call.Name == r.engine.opts.CompletionTool {
			result.Content = CompletionResult
			return result, nil
		}
		return result, &core.ToolResolutionError{Name: call.Name}
	}

	instruction, err := r.tools.Render(call.Name, call.Arguments)
	if err != nil {
		return result, &core.ToolExecutionError{Name: call.Name, Err: err}
	}

	cc.Instruction = instruction
	r.engine.opts.Hooks.ExecuteCallbacks(ctx, CallbackBeforeTool, cc, r.logger)

	if cc.Override != nil {
		result.Content = cc.Override.Content
		result.IsError = cc.Override.IsError
		return result, nil
	}

	output, err := r.executeInstruction(ctx, instruction)
	if err != nil {
		return result, &core.ToolExecutionError{Name: call.Name, Err: err}
	}

	result.Content = output

	return result, nil
}

// executeInstruction runs the instruction in the world, detached from ctx.
// Executor panics are converted into errors.
func (r *run) executeInstruction(ctx context.Context, instruction string) (output string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("executor panicked: %v", rec)
		}
	}()

	return r.engine.executor.Execute(context.WithoutCancel(ctx), r.req.Session, instruction)
}

func errorMessage(err error) string {
	var provErr *core.ProviderError
	if errors.As(err, &provErr) {
		return fmt.Sprintf("%s request failed: %s", provErr.Provider, provErr.Message)
	}
	return err.Error()
}
