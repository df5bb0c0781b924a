package core

// TranscriptStore archives run summaries. Implementations should be
// thread-safe. Short method names mirror SessionStore.
type TranscriptStore interface {
	Save(summary *Summary) error
	Get(runID string) (*Summary, error)
	List(taskID string) ([]*Summary, error)
	Delete(runID string) error
}
