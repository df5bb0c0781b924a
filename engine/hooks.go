package engine

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentplay/core"
	"github.com/hupe1980/agentplay/logging"
	"github.com/hupe1980/agentplay/model"
)

// CallbackType defines the lifecycle points of a run where callbacks execute.
//
// Available callback types:
//   - BeforeModel/AfterModel: around each provider invocation
//   - BeforeTool/AfterTool: around each tool execution
type CallbackType string

const (
	// CallbackBeforeModel is triggered before each provider invocation.
	CallbackBeforeModel CallbackType = "before_model"

	// CallbackAfterModel is triggered after each provider invocation, with
	// either Response or Err set.
	CallbackAfterModel CallbackType = "after_model"

	// CallbackBeforeTool is triggered after a tool call has been rendered and
	// before it is sent to the world. Setting Override skips execution.
	CallbackBeforeTool CallbackType = "before_tool"

	// CallbackAfterTool is triggered once a tool result is known.
	CallbackAfterTool CallbackType = "after_tool"
)

// CallbackContext carries what a callback may inspect at its lifecycle point.
// Fields that do not apply to the point are nil or empty.
type CallbackContext struct {
	RunID        string
	TaskID       string
	Iteration    int
	CallbackType CallbackType

	// Model calls.
	Request  *model.Request
	Response *model.Response
	Err      error

	// Tool calls.
	ToolCall    *core.ToolCall
	Instruction string
	Result      *core.ToolResult

	// Override, when set by a before_tool callback, becomes the tool result
	// and the world is not contacted.
	Override *core.ToolResult

	// Metadata provides extensible storage for custom callback data.
	Metadata map[string]any
}

// Callback is a run lifecycle hook.
//
// Callbacks run synchronously on the run's goroutine, so they should be fast.
// A returned error is logged and does not stop the run.
type Callback interface {
	// Type returns the callback type this implementation handles.
	Type() CallbackType

	// Execute performs the callback logic with the provided context.
	Execute(ctx context.Context, callbackCtx *CallbackContext) error
}

// FunctionCallback wraps a function as a callback implementation.
//
// Example:
//
//	audit := NewFunctionCallback(
//	    CallbackAfterTool,
//	    func(ctx context.Context, cc *CallbackContext) error {
//	        log.Printf("%s -> %s", cc.ToolCall.Name, cc.Result.Content)
//	        return nil
//	    },
//	)
type FunctionCallback struct {
	callbackType CallbackType
	fn           func(ctx context.Context, callbackCtx *CallbackContext) error
}

// NewFunctionCallback creates a new function-based callback.
func NewFunctionCallback(
	callbackType CallbackType,
	fn func(ctx context.Context, callbackCtx *CallbackContext) error,
) *FunctionCallback {
	return &FunctionCallback{
		callbackType: callbackType,
		fn:           fn,
	}
}

// Type returns the callback type this function handles.
func (c *FunctionCallback) Type() CallbackType {
	return c.callbackType
}

// Execute calls the wrapped function with the provided context.
func (c *FunctionCallback) Execute(ctx context.Context, callbackCtx *CallbackContext) error {
	return c.fn(ctx, callbackCtx)
}

// CallbackManager holds the callbacks of an engine.
//
// Callbacks are executed in registration order. Register all callbacks before
// the engine starts runs; execution is then safe for concurrent use.
type CallbackManager struct {
	callbacks map[CallbackType][]Callback
}

// NewCallbackManager creates a new callback manager instance.
func NewCallbackManager(callbacks ...Callback) *CallbackManager {
	cm := &CallbackManager{
		callbacks: make(map[CallbackType][]Callback),
	}
	for _, cb := range callbacks {
		cm.RegisterCallback(cb)
	}
	return cm
}

// RegisterCallback adds a callback to the manager for its type.
func (cm *CallbackManager) RegisterCallback(callback Callback) {
	callbackType := callback.Type()
	cm.callbacks[callbackType] = append(cm.callbacks[callbackType], callback)
}

// Len returns the number of callbacks registered for callbackType.
func (cm *CallbackManager) Len(callbackType CallbackType) int {
	if cm == nil {
		return 0
	}
	return len(cm.callbacks[callbackType])
}

// ExecuteCallbacks runs every callback registered for callbackType. Errors and
// panics are reported to logger and never interrupt the remaining callbacks.
func (cm *CallbackManager) ExecuteCallbacks(
	ctx context.Context,
	callbackType CallbackType,
	callbackCtx *CallbackContext,
	logger logging.Logger,
) {
	if cm == nil {
		return
	}

	callbackCtx.CallbackType = callbackType

	for _, callback := range cm.callbacks[callbackType] {
		if err := safeExecute(ctx, callback, callbackCtx); err != nil {
			logger.Warn("callback failed", "callback_type", string(callbackType), "run_id", callbackCtx.RunID, "error", err)
		}
	}
}

func safeExecute(ctx context.Context, callback Callback, callbackCtx *CallbackContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("callback panicked: %v", r)
		}
	}()

	return callback.Execute(ctx, callbackCtx)
}

// LoggingCallback logs the lifecycle point it is registered for.
type LoggingCallback struct {
	callbackType CallbackType
	logger       logging.Logger
}

// NewLoggingCallback creates a new logging callback.
func NewLoggingCallback(callbackType CallbackType, logger logging.Logger) *LoggingCallback {
	return &LoggingCallback{
		callbackType: callbackType,
		logger:       logger,
	}
}

// Type returns the callback type this logger handles.
func (c *LoggingCallback) Type() CallbackType {
	return c.callbackType
}

// Execute logs the lifecycle point at debug level.
func (c *LoggingCallback) Execute(_ context.Context, cc *CallbackContext) error {
	if c.logger == nil {
		return nil
	}

	args := []any{"callback_type", string(c.callbackType), "run_id", cc.RunID, "iteration", cc.Iteration}
	if cc.ToolCall != nil {
		args = append(args, "tool", cc.ToolCall.Name)
	}
	if cc.Result != nil {
		args = append(args, "is_error", cc.Result.IsError)
	}
	if cc.Response != nil {
		args = append(args, "tool_calls", len(cc.Response.ToolCalls), "finish_reason", cc.Response.FinishReason)
	}

	c.logger.Debug("run lifecycle", args...)

	return nil
}

// DryRunCallback short-circuits every tool execution, answering with the
// rendered instruction instead of running it in the world.
func DryRunCallback() Callback {
	return NewFunctionCallback(CallbackBeforeTool, func(_ context.Context, cc *CallbackContext) error {
		cc.Override = &core.ToolResult{Content: "[dry-run] " + cc.Instruction}
		return nil
	})
}
