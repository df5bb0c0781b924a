// Package core provides the foundational domain types shared by every layer
// of AgentPlay. It defines:
//
//   - Turns (user, model and tool-result exchanges) and the opaque,
//     provider-tagged continuation state threaded through model turns
//   - Tool calls and tool results as they flow between model and world
//   - RunRequest, the inbound description of a single agent run
//   - RunState, the mutable accumulator owned by one loop invocation
//   - Events, the ordered and externally observable projection of a run,
//     and Summary, the post-hoc record folded from those events
//   - The error taxonomy (configuration, provider, tool resolution, tool
//     execution) and the store interfaces for sessions and transcripts
//
// The package holds no orchestration logic. Engine, transport and adapters
// live in their own packages and exchange these values.
package core
