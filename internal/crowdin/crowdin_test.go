package crowdin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/afterlands/langforge/internal/apperr"
	"github.com/afterlands/langforge/internal/logging"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(Config{BaseURL: srv.URL, ProjectID: "1", Token: "secret", MaxRetries: 2, BaseBackoff: 2 * time.Millisecond}, logging.NewDiscard())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return c
}

func TestUploadStorageSuccess(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/storages" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Crowdin-API-FileName") != "messages.yml" {
			t.Fatalf("missing filename header")
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"id": 42}})
	}))

	id, err := c.UploadStorage(context.Background(), "messages.yml", []byte("hello: world"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != 42 {
		t.Fatalf("got %d", id)
	}
}

func TestDoJSONRetriesTransientThenSucceeds(t *testing.T) {
	var attempts int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"id": 7, "status": "finished"}})
	}))

	status, _, err := c.BuildStatus(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != "finished" {
		t.Fatalf("got %q", status)
	}
	if atomic.LoadInt32(&attempts) != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestDoJSONSurfacesPermanentFailureImmediately(t *testing.T) {
	var attempts int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("bad request"))
	}))

	_, _, err := c.BuildStatus(context.Background(), 1)
	if err == nil {
		t.Fatal("expected error")
	}
	if atomic.LoadInt32(&attempts) != 1 {
		t.Fatalf("expected no retries on permanent failure, got %d attempts", attempts)
	}
}

func TestDoJSONReturnsAuthErrorOn401(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := c.ProjectMetadata(context.Background())
	if !apperr.IsKind(err, apperr.KindAuth) {
		t.Fatalf("expected auth error, got %v", err)
	}
}

func TestPollBuildReturnsTimeoutWhenNeverFinishes(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"status": "inProgress"}})
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := c.PollBuild(ctx, 1, 10*time.Millisecond)
	if !apperr.IsKind(err, apperr.KindTimeout) {
		t.Fatalf("expected timeout error, got %v", err)
	}
}

func TestResolveOrCreateDirectoryPathCreatesMissingSegments(t *testing.T) {
	var created []string
	mux := http.NewServeMux()
	mux.HandleFunc("/projects/1/directories", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_ = json.NewEncoder(w).Encode(map[string]any{"data": []any{}})
		case http.MethodPost:
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			created = append(created, body["name"].(string))
			_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"id": len(created), "name": body["name"]}})
		}
	})
	c := newTestClient(t, mux)

	id, err := c.ResolveOrCreateDirectoryPath(context.Background(), "group/shop")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id == 0 {
		t.Fatal("expected non-zero directory id")
	}
	if len(created) != 2 || created[0] != "group" || created[1] != "shop" {
		t.Fatalf("got %v", created)
	}
}

func TestResolveOrCreateDirectoryPathEmptyIsRoot(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not make any HTTP calls for an empty path")
	}))
	id, err := c.ResolveOrCreateDirectoryPath(context.Background(), "")
	if err != nil || id != 0 {
		t.Fatalf("id=%d err=%v", id, err)
	}
}
