// Package runner is the orchestration layer between the HTTP/CLI surfaces and
// the agent loop engine.
//
// A Runner prepares inbound run requests (fallback credentials from
// configuration, session tokens from the session store), bounds the number of
// concurrent runs with a worker pool, keeps a cancel func per active run and
// archives every finished or cancelled run's summary in the transcript store.
//
// # Lifecycle
//
//	Start ──► validate ──► pool.Submit ──► engine.Run ──► archive ──► close(events)
//	   │                        │
//	   └─ ConfigurationError    └─ core.ErrTooManyRuns
//
// Cancel(runID), a cancelled caller context and a consumer that stops reading
// all end the run the same way: the engine stops emitting and the archived
// summary is marked cancelled.
//
// RunSync is the non-streaming fallback: it drains the events internally and
// returns the final core.Summary.
package runner
