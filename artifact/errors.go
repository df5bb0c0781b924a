package artifact

import "errors"

var (
	// ErrTranscriptNotFound is returned when no transcript exists for a run id.
	ErrTranscriptNotFound = errors.New("transcript not found")
)
