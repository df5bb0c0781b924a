// Package model defines the provider‑agnostic adapter contract for the chat
// APIs the agent loop can drive.
//
// Core goals:
//   - One synchronous Invoke per loop iteration returning text, tool calls,
//     token usage and opaque continuation state
//   - Normalize tool declarations (ToolDefinition) and tool calls across vendors
//   - Keep vendor SDK types out of the engine
//   - Facilitate lightweight mocking for tests (ScriptedModel)
//
// Vendors live in subpackages (gemini, anthropic, openai) and are selected at
// run time through a Registry keyed by Provider.
package model
