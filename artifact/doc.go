// Package artifact contains implementations of core.TranscriptStore, the
// archive of finished run summaries.
//
// The interface lives in the core package so the runner and server depend
// only on the contract. Durable backends can be added in sub-packages without
// changing calling code.
package artifact
