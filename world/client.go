package world

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/hupe1980/agentplay/core"
	"github.com/hupe1980/agentplay/logging"
)

const maxErrorBody = 4 << 10

// StatusError is returned for non-2xx responses of the world service.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("world %s: status %d: %s", e.Op, e.Status, e.Body)
}

// transient reports whether a retry could succeed.
func (e *StatusError) transient() bool {
	return e.Status >= 500 || e.Status == http.StatusTooManyRequests
}

// ExecutionError carries the error text the world reported for an instruction.
type ExecutionError struct {
	Message string
}

func (e *ExecutionError) Error() string { return e.Message }

// ClientOptions configures the HTTP world client.
type ClientOptions struct {
	BaseURL    string
	HTTPClient *http.Client
	// ExperimentName is sent on Initialize when the caller passes none.
	ExperimentName string
	// MaxInitializeTries bounds Initialize attempts; Execute is never retried.
	MaxInitializeTries uint
	// InitialBackoff is the first retry delay of Initialize.
	InitialBackoff time.Duration
	Logger         logging.Logger
}

// Client talks to the world service over HTTP.
type Client struct {
	opts ClientOptions
}

// NewClient creates a world client.
func NewClient(optFns ...func(o *ClientOptions)) *Client {
	opts := ClientOptions{
		BaseURL:            "http://localhost:8000",
		HTTPClient:         &http.Client{Timeout: 2 * time.Minute},
		ExperimentName:     "agentplay",
		MaxInitializeTries: 3,
		InitialBackoff:     500 * time.Millisecond,
		Logger:             logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")

	return &Client{opts: opts}
}

type executeRequest struct {
	TaskID string `json:"task_id"`
	Code   string `json:"code"`
}

type executeResponse struct {
	Output *string `json:"output"`
	Error  string  `json:"error"`
}

// Execute implements Executor.
func (c *Client) Execute(ctx context.Context, session core.SessionHandle, instruction string) (string, error) {
	var out executeResponse
	if err := c.post(ctx, "execute", session.Token, executeRequest{TaskID: session.TaskID, Code: instruction}, &out); err != nil {
		return "", err
	}

	if out.Error != "" {
		return "", &ExecutionError{Message: out.Error}
	}

	if out.Output == nil {
		return "", nil
	}

	return *out.Output, nil
}

type initializeRequest struct {
	TaskID         string `json:"task_id"`
	ExperimentName string `json:"experiment_name"`
}

// Initialize implements Provisioner. Transient failures are retried with
// exponential backoff.
func (c *Client) Initialize(ctx context.Context, taskID, experiment string) (*core.WorldSession, error) {
	if taskID == "" {
		return nil, core.NewConfigurationError(core.InvalidRequest, "task id is required")
	}

	if experiment == "" {
		experiment = c.opts.ExperimentName
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.InitialBackoff

	attempt := 0

	raw, err := backoff.Retry(ctx, func() (map[string]any, error) {
		attempt++

		var out map[string]any

		err := c.post(ctx, "initialize", "", initializeRequest{TaskID: taskID, ExperimentName: experiment}, &out)
		if err == nil {
			return out, nil
		}

		var statusErr *StatusError
		if errors.As(err, &statusErr) && !statusErr.transient() {
			return nil, backoff.Permanent(err)
		}

		c.opts.Logger.Warn("world initialize failed", "task_id", taskID, "attempt", attempt, "error", err)

		return nil, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(c.opts.MaxInitializeTries))
	if err != nil {
		return nil, err
	}

	return sessionFromResponse(taskID, raw)
}

// sessionFromResponse keeps task_id, token and instruction as typed fields
// and the rest of the response as string metadata.
func sessionFromResponse(taskID string, raw map[string]any) (*core.WorldSession, error) {
	s := &core.WorldSession{
		Handle:    core.SessionHandle{TaskID: taskID},
		CreatedAt: time.Now(),
		Metadata:  map[string]string{},
	}

	for k, v := range raw {
		switch k {
		case "task_id":
			if id, ok := v.(string); ok && id != "" {
				s.Handle.TaskID = id
			}
		case "token":
			s.Handle.Token, _ = v.(string)
		case "instruction":
			s.Instruction, _ = v.(string)
		default:
			if str, ok := v.(string); ok {
				s.Metadata[k] = str
				continue
			}
			b, err := json.Marshal(v)
			if err != nil {
				continue
			}
			s.Metadata[k] = string(b)
		}
	}

	if s.Handle.Token == "" {
		return nil, fmt.Errorf("world initialize: response for task %s has no token", taskID)
	}

	return s, nil
}

// Reset implements Provisioner. It closes the world for taskID.
func (c *Client) Reset(ctx context.Context, taskID string) error {
	return c.post(ctx, "close", "", map[string]string{"task_id": taskID}, nil)
}

func (c *Client) post(ctx context.Context, op, token string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("world %s: encode request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.BaseURL+"/"+op, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("world %s: %w", op, err)
	}

	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("world %s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(text))}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("world %s: decode response: %w", op, err)
	}

	return nil
}
