// Package engine implements the agent loop of agentplay.
//
// The Engine alternates between one provider invocation and the sequential
// execution of the tool calls the model asked for, feeding results back into
// the conversation until the run terminates.
//
// # State Machine
//
//	Ready → Iterating → ToolExecuting → Iterating → ... → terminal
//
// Terminal phases and the event that ends them:
//
//	Completed          Done{completed: true}   the completion tool was called
//	AwaitingUserInput  Done{needsUserInput}    the model answered in text only
//	Exhausted          Done{false, false}      the iteration limit was reached
//	Failed             Error                   the provider call failed
//	Cancelled          (nothing)               ctx was cancelled or the observer left
//
// # Event Order
//
// Every model turn yields a tokens event, then an optional text trace. Each
// tool call yields tool_call, tool_result and an updated tokens event, in the
// order the model listed the calls. A run that is not cancelled ends with
// exactly one done or error event.
//
// # Tool Failures
//
// Unknown tools, invalid arguments and failed executions are reported to the
// model as error results and the run continues. Only provider failures end a
// run with an error.
//
// # Cancellation
//
// Provider calls and tool executions that are already in flight finish;
// their contexts are detached with context.WithoutCancel. Cancellation is
// observed at the boundaries in between, after which no further event is
// emitted.
//
// # Hooks
//
// A CallbackManager runs callbacks before and after every model and tool
// call. Callback errors and panics are logged and ignored. A before_tool
// callback may set CallbackContext.Override to answer a call without
// contacting the world; DryRunCallback uses this.
//
// # Tracing
//
// Each run is wrapped in an OpenTelemetry span named "agentplay.run" with
// "agentplay.model" and "agentplay.tool" children.
//
// # Usage
//
//	adapters := model.NewRegistry(gemini.New(), anthropic.New(), openai.New())
//	tools, _ := tool.DefaultCatalog()
//	eng := engine.New(adapters, tools, world.NewClient())
//
//	events, err := eng.Start(ctx, core.NewID(), req)
//	if err != nil {
//	    return err // *core.ConfigurationError
//	}
//	summary := stream.Collect(events)
package engine
