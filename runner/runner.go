package runner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/hupe1980/agentplay/artifact"
	"github.com/hupe1980/agentplay/core"
	"github.com/hupe1980/agentplay/engine"
	"github.com/hupe1980/agentplay/logging"
	"github.com/hupe1980/agentplay/model"
	"github.com/hupe1980/agentplay/session"
)

// DefaultMaxConcurrentRuns bounds the worker pool when no limit is given.
const DefaultMaxConcurrentRuns = 16

// CredentialFunc returns the fallback credential of a provider, or "".
type CredentialFunc func(provider string) string

// Options holds dependency and configuration overrides passed to New().
type Options struct {
	// MaxConcurrentRuns limits concurrent runs. Zero means unbounded.
	MaxConcurrentRuns int
	// EventBufferSize sets channel buffering for events returned by Start.
	EventBufferSize int
	// Credentials supplies a credential when a request has none.
	Credentials CredentialFunc
	// Session management services.
	SessionStore core.SessionStore
	// Run summary archive.
	TranscriptStore core.TranscriptStore
	// Logging services.
	Logger logging.Logger
}

// Runner coordinates runs: it prepares requests, schedules them on the worker
// pool, streams events, tracks cancellation and archives summaries. Public
// methods are safe for concurrent use.
type Runner struct {
	engine *engine.Engine
	pool   *ants.Pool

	eventBufferSize int
	credentials     CredentialFunc
	sessionStore    core.SessionStore
	transcripts     core.TranscriptStore
	logger          logging.Logger

	activeRuns map[string]context.CancelFunc
	mu         sync.RWMutex
	wg         sync.WaitGroup
}

// New constructs a Runner around eng with optional overrides.
func New(eng *engine.Engine, optFns ...func(o *Options)) (*Runner, error) {
	opts := Options{
		MaxConcurrentRuns: DefaultMaxConcurrentRuns,
		EventBufferSize:   100,
		SessionStore:      session.NewInMemoryStore(),
		TranscriptStore:   artifact.NewInMemoryStore(0),
		Logger:            logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.MaxConcurrentRuns < 0 {
		return nil, fmt.Errorf("max concurrent runs must not be negative: %d", opts.MaxConcurrentRuns)
	}

	r := &Runner{
		engine:          eng,
		eventBufferSize: opts.EventBufferSize,
		credentials:     opts.Credentials,
		sessionStore:    opts.SessionStore,
		transcripts:     opts.TranscriptStore,
		logger:          opts.Logger,
		activeRuns:      make(map[string]context.CancelFunc),
	}

	if opts.MaxConcurrentRuns > 0 {
		pool, err := ants.NewPool(opts.MaxConcurrentRuns,
			ants.WithNonblocking(true),
			ants.WithLogger(poolLogger{opts.Logger}),
			ants.WithPanicHandler(func(p any) {
				opts.Logger.Error("run panicked", "panic", p)
			}),
		)
		if err != nil {
			return nil, fmt.Errorf("create run pool: %w", err)
		}
		r.pool = pool
	}

	return r, nil
}

// Engine returns the engine runs are executed on.
func (r *Runner) Engine() *engine.Engine { return r.engine }

// Sessions returns the session store used to complete request handles.
func (r *Runner) Sessions() core.SessionStore { return r.sessionStore }

// Transcripts returns the archive of finished runs.
func (r *Runner) Transcripts() core.TranscriptStore { return r.transcripts }

type handle struct {
	id      string
	events  chan core.Event
	summary chan *core.Summary
}

// Start validates req and schedules the run. The returned channel yields the
// run's events in order and is closed after the summary has been archived.
//
// Configuration problems are returned as *core.ConfigurationError; a
// saturated pool yields core.ErrTooManyRuns. Neither contacts a provider.
func (r *Runner) Start(ctx context.Context, req core.RunRequest) (string, <-chan core.Event, error) {
	h, err := r.start(ctx, req)
	if err != nil {
		return "", nil, err
	}
	return h.id, h.events, nil
}

// RunSync runs req to its end and returns the final summary.
func (r *Runner) RunSync(ctx context.Context, req core.RunRequest) (*core.Summary, error) {
	h, err := r.start(ctx, req)
	if err != nil {
		return nil, err
	}

	for range h.events {
	}

	return <-h.summary, nil
}

func (r *Runner) start(ctx context.Context, req core.RunRequest) (*handle, error) {
	req = r.complete(req)

	if err := r.engine.Validate(req); err != nil {
		return nil, err
	}

	runID := core.NewID()
	runCtx, cancel := context.WithCancel(ctx)

	h := &handle{
		id:      runID,
		events:  make(chan core.Event, r.eventBufferSize),
		summary: make(chan *core.Summary, 1),
	}

	r.mu.Lock()
	r.activeRuns[runID] = cancel
	r.mu.Unlock()
	r.wg.Add(1)

	task := func() {
		defer r.wg.Done()
		defer r.finish(runID)
		r.execute(runCtx, h, req)
	}

	if r.pool == nil {
		go task()
		return h, nil
	}

	if err := r.pool.Submit(task); err != nil {
		r.wg.Done()
		r.finish(runID)
		if errors.Is(err, ants.ErrPoolOverload) {
			return nil, core.ErrTooManyRuns
		}
		return nil, fmt.Errorf("schedule run: %w", err)
	}

	return h, nil
}

// complete fills in what the request left for the runner: the provider's
// configured credential and the stored token of a known task.
func (r *Runner) complete(req core.RunRequest) core.RunRequest {
	if strings.TrimSpace(req.Credential) == "" && r.credentials != nil {
		name := strings.ToLower(strings.TrimSpace(req.Provider))
		if p, err := model.ParseProvider(name); err == nil {
			name = string(p)
		}
		req.Credential = r.credentials(name)
	}

	if req.Session.Token == "" && req.Session.TaskID != "" && r.sessionStore != nil {
		if s, err := r.sessionStore.Get(req.Session.TaskID); err == nil {
			req.Session.Token = s.Handle.Token
		}
	}

	return req
}

func (r *Runner) execute(ctx context.Context, h *handle, req core.RunRequest) {
	defer close(h.events)

	summary := core.NewSummary(h.id, req.Session.TaskID)

	_, err := r.engine.Run(ctx, h.id, req, func(ev core.Event) bool {
		select {
		case h.events <- ev:
			summary.Apply(ev)
			return true
		case <-ctx.Done():
			return false
		}
	})

	if !summary.Terminated() {
		summary.Cancelled = true
		summary.FinishedAt = time.Now().UTC()
	}

	switch {
	case summary.Cancelled:
		r.logger.Info("run cancelled", "run_id", h.id, "task_id", req.Session.TaskID, "cause", err)
	case err != nil:
		r.logger.Warn("run failed", "run_id", h.id, "task_id", req.Session.TaskID, "error", err)
	default:
		r.logger.Debug("run finished", "run_id", h.id, "task_id", req.Session.TaskID, "completed", summary.Completed)
	}

	if r.transcripts != nil {
		if err := r.transcripts.Save(summary); err != nil {
			r.logger.Error("archive transcript", "run_id", h.id, "error", err)
		}
	}

	h.summary <- summary.Clone()
}

func (r *Runner) finish(runID string) {
	r.mu.Lock()
	cancel, ok := r.activeRuns[runID]
	delete(r.activeRuns, runID)
	r.mu.Unlock()

	if ok {
		cancel()
	}
}

// Cancel cancels a running run by ID.
func (r *Runner) Cancel(runID string) error {
	r.mu.RLock()
	cancel, exists := r.activeRuns[runID]
	r.mu.RUnlock()

	if !exists {
		return fmt.Errorf("run %s: %w", runID, core.ErrRunNotFound)
	}

	cancel()

	return nil
}

// Active lists the ids of runs that have not finished yet.
func (r *Runner) Active() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.activeRuns))
	for id := range r.activeRuns {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return ids
}

// IsActive reports whether runID is still running.
func (r *Runner) IsActive(runID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.activeRuns[runID]
	return ok
}

// Shutdown cancels every active run and waits for them to be archived, or for
// ctx to end. The runner must not be used afterwards.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.RLock()
	for _, cancel := range r.activeRuns {
		cancel()
	}
	r.mu.RUnlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}

	if r.pool != nil {
		r.pool.Release()
	}

	return err
}

type poolLogger struct {
	logger logging.Logger
}

func (l poolLogger) Printf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...), "component", "run_pool")
}
