// Command agentplay serves the agent loop over HTTP and runs single tasks
// from the command line.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/agentplay"
	"github.com/hupe1980/agentplay/core"
	"github.com/hupe1980/agentplay/internal/config"
	"github.com/hupe1980/agentplay/server"
	"github.com/hupe1980/agentplay/stream"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "agentplay",
		Short:        "agentplay - tool-calling agent loop for simulated worlds",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")

	root.AddCommand(
		newServeCmd(&configPath),
		newRunCmd(&configPath),
		newToolsCmd(&configPath),
	)

	return root
}

func newServeCmd(configPath *string) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")

	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger, err := cfg.NewLogger()
	if err != nil {
		return err
	}

	app, err := agentplay.FromConfig(cfg, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: app.Server(func(o *server.Options) {
			o.AllowedOrigins = cfg.Server.AllowedOrigins
			o.ExperimentName = cfg.World.ExperimentName
		}).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Server.Addr, "world", cfg.World.BaseURL)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down", "timeout", cfg.Server.ShutdownTimeout)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Runs go first so open streams end and the server can drain.
	runErr := app.Shutdown(shutdownCtx)
	srvErr := srv.Shutdown(shutdownCtx)

	return errors.Join(runErr, srvErr)
}

type runFlags struct {
	provider   string
	model      string
	credential string
	task       string
	token      string
	prompt     string
	system     string
	tools      []string
	maxIter    int
	serverURL  string
}

func newRunCmd(configPath *string) *cobra.Command {
	var f runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one task and print its trace",
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := core.RunRequest{
				Provider:           f.provider,
				ModelID:            f.model,
				Credential:         f.credential,
				ActiveTools:        f.tools,
				SystemInstructions: f.system,
				History:            []core.Turn{core.NewUserTurn(f.prompt)},
				Session:            core.SessionHandle{TaskID: f.task, Token: f.token},
				MaxIterations:      f.maxIter,
			}

			var (
				summary *core.Summary
				err     error
			)
			if f.serverURL != "" {
				summary, err = runRemote(cmd.Context(), cmd.OutOrStdout(), f.serverURL, req)
			} else {
				summary, err = runLocal(cmd.Context(), cmd.OutOrStdout(), *configPath, req)
			}
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), summaryLine(summary))
			if summary.Error != nil {
				return errors.New(summary.Error.Message)
			}
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.provider, "provider", "gemini", "model provider (gemini, anthropic, openai)")
	fl.StringVar(&f.model, "model", "", "model id")
	fl.StringVar(&f.credential, "credential", "", "provider API key (defaults to the configured key)")
	fl.StringVar(&f.task, "task", "", "world task id")
	fl.StringVar(&f.token, "token", "", "world session token (looked up by task when omitted)")
	fl.StringVar(&f.prompt, "prompt", "", "user message")
	fl.StringVar(&f.system, "system", "", "system instructions")
	fl.StringSliceVar(&f.tools, "tools", nil, "active tools (default all)")
	fl.IntVar(&f.maxIter, "max-iterations", 0, "iteration limit (default from config)")
	fl.StringVar(&f.serverURL, "server", "", "stream from an agentplay server instead of running in-process")
	_ = cmd.MarkFlagRequired("model")
	_ = cmd.MarkFlagRequired("task")
	_ = cmd.MarkFlagRequired("prompt")

	return cmd
}

func runLocal(ctx context.Context, out io.Writer, configPath string, req core.RunRequest) (*core.Summary, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := cfg.NewLogger()
	if err != nil {
		return nil, err
	}

	app, err := agentplay.FromConfig(cfg, logger)
	if err != nil {
		return nil, err
	}
	defer func() { _ = app.Shutdown(context.Background()) }()

	if req.Session.Token == "" {
		if _, err := app.InitializeSession(ctx, req.Session.TaskID, ""); err != nil {
			return nil, fmt.Errorf("initialize session: %w", err)
		}
	}

	runID, events, err := app.Start(ctx, req)
	if err != nil {
		return nil, err
	}

	summary := core.NewSummary(runID, req.Session.TaskID)
	for ev := range events {
		printEvent(out, ev)
		summary.Apply(ev)
	}

	return summary, nil
}

func runRemote(ctx context.Context, out io.Writer, baseURL string, req core.RunRequest) (*core.Summary, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(baseURL, "/")+"/v1/runs", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("post run: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var eb struct {
			Error struct {
				Kind    string `json:"kind"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&eb); err != nil || eb.Error.Message == "" {
			return nil, fmt.Errorf("run rejected: %s", resp.Status)
		}
		return nil, fmt.Errorf("run rejected (%s): %s", eb.Error.Kind, eb.Error.Message)
	}

	summary := core.NewSummary(resp.Header.Get(server.RunIDHeader), req.Session.TaskID)
	r := stream.NewReader(resp.Body)

	for {
		ev, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		printEvent(out, ev)
		summary.Apply(ev)
	}

	if !summary.Terminated() {
		summary.Cancelled = true
	}

	return summary, nil
}

func printEvent(out io.Writer, ev core.Event) {
	if line := formatEvent(ev); line != "" {
		fmt.Fprintln(out, line)
	}
}

func formatEvent(ev core.Event) string {
	switch ev.Type {
	case core.EventTrace:
		if ev.Entry == nil {
			return ""
		}
		switch ev.Entry.Type {
		case core.TraceText:
			return "model: " + ev.Entry.Content
		case core.TraceToolCall:
			args, _ := json.Marshal(ev.Entry.Args)
			return fmt.Sprintf("-> %s %s", ev.Entry.Name, args)
		case core.TraceToolResult:
			return fmt.Sprintf("<- %s: %s", ev.Entry.Name, ev.Entry.Content)
		default:
			return fmt.Sprintf("%s: %s", ev.Entry.Type, ev.Entry.Content)
		}
	case core.EventError:
		if ev.Error == nil {
			return "error"
		}
		return "error: " + ev.Error.Message
	default:
		return ""
	}
}

func summaryLine(s *core.Summary) string {
	status := "stopped"
	switch {
	case s.Cancelled:
		status = "cancelled"
	case s.Error != nil:
		status = "failed"
	case s.Completed:
		status = "completed"
	case s.NeedsUserInput:
		status = "awaiting user input"
	}

	return fmt.Sprintf("run %s %s: %d tool calls, tokens in=%d out=%d thinking=%d",
		s.RunID, status, s.ToolCallCount, s.InputTokens, s.OutputTokens, s.ThinkingTokens)
}

func newToolsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the tool catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			app, err := agentplay.FromConfig(cfg, nil)
			if err != nil {
				return err
			}
			defer func() { _ = app.Shutdown(context.Background()) }()

			for _, d := range app.Tools().Descriptors() {
				fmt.Fprintf(cmd.OutOrStdout(), "%-24s %s\n", d.Name, d.Description)
			}
			return nil
		},
	}
}
