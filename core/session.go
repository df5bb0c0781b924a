package core

import (
	"strings"
	"time"
)

// SessionHandle identifies one initialized simulated-world instance. The
// engine only reads it.
type SessionHandle struct {
	TaskID string `json:"taskId"`
	Token  string `json:"token"`
}

// Validate returns an UninitializedSession error when the handle is incomplete.
func (h SessionHandle) Validate() error {
	if strings.TrimSpace(h.TaskID) == "" {
		return NewConfigurationError(UninitializedSession, "session task id is missing")
	}
	if strings.TrimSpace(h.Token) == "" {
		return NewConfigurationError(UninitializedSession, "session %q has no token; initialize it first", h.TaskID)
	}
	return nil
}

// WorldSession is a session handle as tracked by the session store, together
// with whatever the world returned when it was initialized.
type WorldSession struct {
	Handle      SessionHandle     `json:"handle"`
	Instruction string            `json:"instruction,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
}

// Clone returns a copy that shares no maps with the original.
func (s *WorldSession) Clone() *WorldSession {
	c := *s
	if s.Metadata != nil {
		c.Metadata = make(map[string]string, len(s.Metadata))
		for k, v := range s.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

// SessionStore keeps initialized world sessions keyed by task id.
// Implementations must be safe for concurrent use.
type SessionStore interface {
	Put(session *WorldSession) error
	Get(taskID string) (*WorldSession, error)
	List() ([]*WorldSession, error)
	Delete(taskID string) error
}
