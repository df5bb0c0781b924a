package world

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentplay/core"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	return NewClient(func(o *ClientOptions) {
		o.BaseURL = srv.URL + "/"
		o.HTTPClient = srv.Client()
		o.InitialBackoff = time.Millisecond
	})
}

func TestClient_Execute(t *testing.T) {
	var got executeRequest

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/execute", r.URL.Path)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"output":"42"}`))
	})

	out, err := c.Execute(context.Background(), core.SessionHandle{TaskID: "t1", Token: "tok-1"}, "print(1)")
	require.NoError(t, err)
	assert.Equal(t, "42", out)
	assert.Equal(t, executeRequest{TaskID: "t1", Code: "print(1)"}, got)
}

func TestClient_ExecuteErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "world error",
			status: http.StatusOK,
			body:   `{"error":"NameError: name 'x' is not defined"}`,
			check: func(t *testing.T, err error) {
				var execErr *ExecutionError
				require.ErrorAs(t, err, &execErr)
				assert.Equal(t, "NameError: name 'x' is not defined", err.Error())
			},
		},
		{
			name:   "http status",
			status: http.StatusUnauthorized,
			body:   "bad token\n",
			check: func(t *testing.T, err error) {
				var statusErr *StatusError
				require.ErrorAs(t, err, &statusErr)
				assert.Equal(t, http.StatusUnauthorized, statusErr.Status)
				assert.Equal(t, "bad token", statusErr.Body)
				assert.Contains(t, err.Error(), "401")
			},
		},
		{
			name:   "malformed body",
			status: http.StatusOK,
			body:   `{`,
			check: func(t *testing.T, err error) {
				assert.Contains(t, err.Error(), "decode response")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := c.Execute(context.Background(), core.SessionHandle{TaskID: "t", Token: "k"}, "x")
			require.Error(t, err)
			tt.check(t, err)
			assert.Equal(t, int32(1), calls.Load(), "execute is never retried")
		})
	}
}

func TestClient_InitializeRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		var req initializeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "agentplay", req.ExperimentName)

		_, _ = w.Write([]byte(`{"task_id":"t9","token":"secret","instruction":"Pay Bob $5","supervisor":{"name":"Ada"},"app":"venmo"}`))
	})

	s, err := c.Initialize(context.Background(), "t9", "")
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, core.SessionHandle{TaskID: "t9", Token: "secret"}, s.Handle)
	assert.Equal(t, "Pay Bob $5", s.Instruction)
	assert.Equal(t, "venmo", s.Metadata["app"])
	assert.JSONEq(t, `{"name":"Ada"}`, s.Metadata["supervisor"])
	assert.False(t, s.CreatedAt.IsZero())
}

func TestClient_InitializeFailures(t *testing.T) {
	t.Run("client errors are permanent", func(t *testing.T) {
		var calls atomic.Int32
		c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadRequest)
		})

		_, err := c.Initialize(context.Background(), "t", "exp")
		var statusErr *StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("gives up after max tries", func(t *testing.T) {
		var calls atomic.Int32
		c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadGateway)
		})

		_, err := c.Initialize(context.Background(), "t", "exp")
		require.Error(t, err)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("missing token", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"task_id":"t"}`))
		})

		_, err := c.Initialize(context.Background(), "t", "exp")
		assert.ErrorContains(t, err, "no token")
	})

	t.Run("empty task id", func(t *testing.T) {
		_, err := NewClient().Initialize(context.Background(), "", "")
		assert.ErrorIs(t, err, core.ErrInvalidRequest)
	})
}

func TestClient_Reset(t *testing.T) {
	var got map[string]string

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/close", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, c.Reset(context.Background(), "t3"))
	assert.Equal(t, map[string]string{"task_id": "t3"}, got)
}

func TestFunc(t *testing.T) {
	var e Executor = Func(func(_ context.Context, s core.SessionHandle, instruction string) (string, error) {
		return s.TaskID + ":" + instruction, nil
	})

	out, err := e.Execute(context.Background(), core.SessionHandle{TaskID: "t"}, "go")
	require.NoError(t, err)
	assert.Equal(t, "t:go", out)
}
