package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/hupe1980/agentplay/core"
	"github.com/hupe1980/agentplay/stream"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type toolInfo struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

func (s *Server) handleListTools(w http.ResponseWriter, _ *http.Request) {
	defs := s.runner.Engine().Tools().Definitions()

	out := make([]toolInfo, 0, len(defs))
	for _, d := range defs {
		out = append(out, toolInfo{Name: d.Name, Description: d.Description, Parameters: d.Parameters})
	}

	s.writeJSON(w, http.StatusOK, out)
}

type createSessionRequest struct {
	TaskID         string `json:"taskId"`
	ExperimentName string `json:"experimentName,omitempty"`
}

type sessionResponse struct {
	TaskID      string            `json:"taskId"`
	Token       string            `json:"token"`
	Instruction string            `json:"instruction,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
}

func toSessionResponse(ws *core.WorldSession) sessionResponse {
	return sessionResponse{
		TaskID:      ws.Handle.TaskID,
		Token:       ws.Handle.Token,
		Instruction: ws.Instruction,
		Metadata:    ws.Metadata,
		CreatedAt:   ws.CreatedAt,
	}
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := s.decode(w, r, &req); err != nil {
		s.fail(w, err)
		return
	}

	if strings.TrimSpace(req.TaskID) == "" {
		s.fail(w, core.NewConfigurationError(core.InvalidRequest, "taskId is required"))
		return
	}

	if s.opts.Provisioner == nil {
		s.writeError(w, http.StatusNotImplemented, "NotImplemented", "no world provisioner configured")
		return
	}

	experiment := req.ExperimentName
	if experiment == "" {
		experiment = s.opts.ExperimentName
	}

	ws, err := s.opts.Provisioner.Initialize(r.Context(), req.TaskID, experiment)
	if err != nil {
		s.fail(w, err)
		return
	}

	if ws.CreatedAt.IsZero() {
		ws.CreatedAt = time.Now().UTC()
	}

	if err := s.runner.Sessions().Put(ws); err != nil {
		s.fail(w, err)
		return
	}

	s.opts.Logger.Info("session initialized", "task_id", ws.Handle.TaskID)
	s.writeJSON(w, http.StatusCreated, toSessionResponse(ws))
}

func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	list, err := s.runner.Sessions().List()
	if err != nil {
		s.fail(w, err)
		return
	}

	out := make([]sessionResponse, 0, len(list))
	for _, ws := range list {
		out = append(out, toSessionResponse(ws))
	}

	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	taskID := mux.Vars(r)["taskId"]

	if _, err := s.runner.Sessions().Get(taskID); err != nil {
		s.fail(w, err)
		return
	}

	if s.opts.Provisioner != nil {
		if err := s.opts.Provisioner.Reset(r.Context(), taskID); err != nil {
			s.fail(w, err)
			return
		}
	}

	if err := s.runner.Sessions().Delete(taskID); err != nil {
		s.fail(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRunSSE(w http.ResponseWriter, r *http.Request) {
	var req core.RunRequest
	if err := s.decode(w, r, &req); err != nil {
		s.fail(w, err)
		return
	}

	sse, err := stream.NewSSEWriter(w)
	if err != nil {
		s.fail(w, err)
		return
	}

	runID, events, err := s.runner.Start(r.Context(), req)
	if err != nil {
		s.fail(w, err)
		return
	}

	w.Header().Set(RunIDHeader, runID)
	w.WriteHeader(http.StatusOK)

	err = stream.Forward(r.Context(), sse, events, func(o *stream.ForwardOptions) {
		o.PingInterval = s.opts.PingInterval
	})
	if errors.Is(err, stream.ErrObserverGone) {
		s.opts.Logger.Info("observer gone, cancelling run", "run_id", runID, "error", err)
		_ = s.runner.Cancel(runID)
		// The run closes the channel once it has been archived.
		for range events {
		}
	}
}

func (s *Server) handleRunSync(w http.ResponseWriter, r *http.Request) {
	var req core.RunRequest
	if err := s.decode(w, r, &req); err != nil {
		s.fail(w, err)
		return
	}

	summary, err := s.runner.RunSync(r.Context(), req)
	if err != nil {
		s.fail(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	summary, err := s.runner.Transcripts().Get(mux.Vars(r)["runId"])
	if err != nil {
		s.fail(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	if err := s.runner.Cancel(mux.Vars(r)["runId"]); err != nil {
		s.fail(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListTranscripts(w http.ResponseWriter, r *http.Request) {
	list, err := s.runner.Transcripts().List(r.URL.Query().Get("taskId"))
	if err != nil {
		s.fail(w, err)
		return
	}

	if list == nil {
		list = []*core.Summary{}
	}

	s.writeJSON(w, http.StatusOK, list)
}
