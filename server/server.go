// Package server exposes the runner over HTTP: session management against
// the world service, streaming runs as Server-Sent Events, the non-streaming
// summary fallback and the transcript archive.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/hupe1980/agentplay/artifact"
	"github.com/hupe1980/agentplay/core"
	"github.com/hupe1980/agentplay/logging"
	"github.com/hupe1980/agentplay/runner"
	"github.com/hupe1980/agentplay/session"
	"github.com/hupe1980/agentplay/world"
)

// DefaultMaxBodyBytes limits request bodies.
const DefaultMaxBodyBytes = 1 << 20

// RunIDHeader carries the id of a streamed run.
const RunIDHeader = "X-Run-ID"

// Options configures a Server.
type Options struct {
	// AllowedOrigins for CORS. Defaults to "*".
	AllowedOrigins []string
	// MaxBodyBytes caps decoded request bodies.
	MaxBodyBytes int64
	// PingInterval is the SSE keep-alive period; zero disables pings.
	PingInterval time.Duration
	// Provisioner initializes and resets world sessions. Without one the
	// session endpoints only serve what is already in the session store.
	Provisioner world.Provisioner
	// ExperimentName is passed to the provisioner when a request names none.
	ExperimentName string
	Logger         logging.Logger
}

// Server is the HTTP front of a Runner.
type Server struct {
	runner  *runner.Runner
	router  *mux.Router
	handler http.Handler
	opts    Options
}

// New creates a server for r.
func New(r *runner.Runner, optFns ...func(o *Options)) *Server {
	opts := Options{
		AllowedOrigins: []string{"*"},
		MaxBodyBytes:   DefaultMaxBodyBytes,
		PingInterval:   15 * time.Second,
		Logger:         logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	s := &Server{
		runner: r,
		router: mux.NewRouter(),
		opts:   opts,
	}

	s.registerRoutes()

	c := cors.New(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{RunIDHeader, "Content-Type"},
	})
	s.handler = c.Handler(s.router)

	return s
}

// Handler returns the root handler, CORS included.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/v1/tools", s.handleListTools).Methods(http.MethodGet)

	// Session APIs.
	s.router.HandleFunc("/v1/sessions", s.handleCreateSession).Methods(http.MethodPost)
	s.router.HandleFunc("/v1/sessions", s.handleListSessions).Methods(http.MethodGet)
	s.router.HandleFunc("/v1/sessions/{taskId}", s.handleDeleteSession).Methods(http.MethodDelete)

	// Run APIs.
	s.router.HandleFunc("/v1/runs", s.handleRunSSE).Methods(http.MethodPost)
	s.router.HandleFunc("/v1/runs/sync", s.handleRunSync).Methods(http.MethodPost)
	s.router.HandleFunc("/v1/runs/{runId}", s.handleGetRun).Methods(http.MethodGet)
	s.router.HandleFunc("/v1/runs/{runId}", s.handleCancelRun).Methods(http.MethodDelete)
	s.router.HandleFunc("/v1/transcripts", s.handleListTranscripts).Methods(http.MethodGet)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusNotFound, "NotFound", "no such route")
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusMethodNotAllowed, "MethodNotAllowed", "method not allowed")
	})
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.opts.Logger.Warn("write response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, kind, message string) {
	s.writeJSON(w, status, errorBody{Error: errorDetail{Kind: kind, Message: message}})
}

// fail maps err onto a status code and error kind.
func (s *Server) fail(w http.ResponseWriter, err error) {
	status, kind := classify(err)
	if status >= http.StatusInternalServerError {
		s.opts.Logger.Error("request failed", "status", status, "error", err)
	}
	s.writeError(w, status, kind, err.Error())
}

func classify(err error) (int, string) {
	var (
		cfgErr    *core.ConfigurationError
		statusErr *world.StatusError
		execErr   *world.ExecutionError
		maxErr    *http.MaxBytesError
	)

	switch {
	case errors.As(err, &cfgErr):
		return http.StatusBadRequest, string(cfgErr.Kind)
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge, string(core.InvalidRequest)
	case errors.Is(err, core.ErrTooManyRuns):
		return http.StatusTooManyRequests, "TooManyRuns"
	case errors.Is(err, core.ErrRunNotFound),
		errors.Is(err, artifact.ErrTranscriptNotFound),
		errors.Is(err, session.ErrSessionNotFound):
		return http.StatusNotFound, "NotFound"
	case errors.As(err, &statusErr), errors.As(err, &execErr):
		return http.StatusBadGateway, "WorldError"
	default:
		return http.StatusInternalServerError, core.KindInternal
	}
}

// decode reads one JSON value, rejecting unknown fields and oversized bodies.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
	defer body.Close()

	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return err
		}
		return core.NewConfigurationError(core.InvalidRequest, "decode body: %v", err)
	}

	if dec.More() {
		return core.NewConfigurationError(core.InvalidRequest, "decode body: %s", "trailing data")
	}

	return nil
}
