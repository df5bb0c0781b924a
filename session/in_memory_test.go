package session

import (
	"errors"
	"testing"
	"time"

	"github.com/hupe1980/agentplay/core"
)

// Interface compliance (compile-time assertion)
var _ core.SessionStore = (*InMemoryStore)(nil)

func newSession(taskID string, created time.Time) *core.WorldSession {
	return &core.WorldSession{
		Handle:    core.SessionHandle{TaskID: taskID, Token: "tok-" + taskID},
		Metadata:  map[string]string{"experiment": "e1"},
		CreatedAt: created,
	}
}

func TestInMemorySessionStore_PutGet(t *testing.T) {
	store := NewInMemoryStore()
	s := newSession("t1", time.Now())

	if err := store.Put(s); err != nil {
		t.Fatalf("put: %v", err)
	}

	s.Metadata["experiment"] = "mutated"

	got, err := store.Get("t1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Handle.Token != "tok-t1" {
		t.Fatalf("unexpected token %q", got.Handle.Token)
	}
	if got.Metadata["experiment"] != "e1" {
		t.Fatalf("store shares metadata with caller: %v", got.Metadata)
	}

	got.Metadata["experiment"] = "mutated"
	again, _ := store.Get("t1")
	if again.Metadata["experiment"] != "e1" {
		t.Fatalf("store shares metadata with reader: %v", again.Metadata)
	}
}

func TestInMemorySessionStore_Invalid(t *testing.T) {
	store := NewInMemoryStore()

	if err := store.Put(nil); !errors.Is(err, core.ErrInvalidRequest) {
		t.Fatalf("expected invalid request, got %v", err)
	}

	s := newSession("t1", time.Now())
	s.Handle.Token = ""
	if err := store.Put(s); !errors.Is(err, core.ErrUninitializedSession) {
		t.Fatalf("expected uninitialized session, got %v", err)
	}

	if _, err := store.Get("missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestInMemorySessionStore_ListDelete(t *testing.T) {
	store := NewInMemoryStore()
	now := time.Now()

	_ = store.Put(newSession("old", now.Add(-time.Hour)))
	_ = store.Put(newSession("new", now))

	list, err := store.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].Handle.TaskID != "new" {
		t.Fatalf("expected newest first, got %+v", list)
	}

	if err := store.Delete("old"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete("old"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}

	list, _ = store.List()
	if len(list) != 1 {
		t.Fatalf("expected 1 session, got %d", len(list))
	}
}
