package artifact

import (
	"sort"
	"sync"

	"github.com/hupe1980/agentplay/core"
)

// InMemoryStore is an in-process TranscriptStore. Summaries are copied on
// save and retrieval so callers cannot mutate stored transcripts.
//
// Layout: runID -> summary, with a taskID -> runIDs index for List.
//
// A positive maxPerTask drops the oldest transcripts of a task beyond that
// count.
type InMemoryStore struct {
	mu          sync.RWMutex
	transcripts map[string]*core.Summary
	byTask      map[string][]string
	maxPerTask  int
}

// NewInMemoryStore returns an empty in-memory transcript store.
func NewInMemoryStore(maxPerTask int) *InMemoryStore {
	return &InMemoryStore{
		transcripts: make(map[string]*core.Summary),
		byTask:      make(map[string][]string),
		maxPerTask:  maxPerTask,
	}
}

// Save stores (or overwrites) the transcript of summary.RunID.
func (a *InMemoryStore) Save(summary *core.Summary) error {
	if summary == nil || summary.RunID == "" {
		return core.NewConfigurationError(core.InvalidRequest, "transcript needs a run id")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if prev, exists := a.transcripts[summary.RunID]; exists {
		a.unindexLocked(prev.TaskID, prev.RunID)
	}

	a.transcripts[summary.RunID] = summary.Clone()
	a.byTask[summary.TaskID] = append(a.byTask[summary.TaskID], summary.RunID)

	if a.maxPerTask > 0 {
		for ids := a.byTask[summary.TaskID]; len(ids) > a.maxPerTask; ids = a.byTask[summary.TaskID] {
			delete(a.transcripts, ids[0])
			a.byTask[summary.TaskID] = ids[1:]
		}
	}

	return nil
}

// Get returns a copy of the stored transcript or ErrTranscriptNotFound.
func (a *InMemoryStore) Get(runID string) (*core.Summary, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	s, ok := a.transcripts[runID]
	if !ok {
		return nil, ErrTranscriptNotFound
	}

	return s.Clone(), nil
}

// List returns copies of the transcripts of a task, oldest first. An empty
// taskID lists every transcript.
func (a *InMemoryStore) List(taskID string) ([]*core.Summary, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := []*core.Summary{}

	if taskID == "" {
		for _, s := range a.transcripts {
			out = append(out, s.Clone())
		}
	} else {
		for _, id := range a.byTask[taskID] {
			out = append(out, a.transcripts[id].Clone())
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })

	return out, nil
}

// Delete removes the transcript if present or returns ErrTranscriptNotFound.
func (a *InMemoryStore) Delete(runID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.transcripts[runID]
	if !ok {
		return ErrTranscriptNotFound
	}

	delete(a.transcripts, runID)
	a.unindexLocked(s.TaskID, runID)

	return nil
}

func (a *InMemoryStore) unindexLocked(taskID, runID string) {
	ids := a.byTask[taskID]
	for i, id := range ids {
		if id == runID {
			a.byTask[taskID] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	if len(a.byTask[taskID]) == 0 {
		delete(a.byTask, taskID)
	}
}
