package scheduler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/afterlands/langforge/internal/cache"
	"github.com/afterlands/langforge/internal/capability"
	"github.com/afterlands/langforge/internal/crowdin"
	"github.com/afterlands/langforge/internal/dynamic"
	"github.com/afterlands/langforge/internal/events"
	"github.com/afterlands/langforge/internal/logging"
	"github.com/afterlands/langforge/internal/registry"
	"github.com/afterlands/langforge/internal/sqlitestore"
	"github.com/afterlands/langforge/internal/syncengine"
)

// manualScheduler is a capability.Scheduler test double that captures
// the registered periodic function instead of running it on a timer,
// letting tests trigger runs deterministically.
type manualScheduler struct {
	mu  sync.Mutex
	fn  func()
	ran int
}

func (m *manualScheduler) RunAsync(fn func() error) *capability.Future[struct{}] {
	return capability.Resolved(struct{}{}, fn())
}
func (m *manualScheduler) RunOnPrimary(fn func()) { fn() }
func (m *manualScheduler) Every(interval time.Duration, fn func()) func() {
	m.mu.Lock()
	m.fn = fn
	m.mu.Unlock()
	return func() {}
}

func (m *manualScheduler) registered() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fn != nil
}

func (m *manualScheduler) trigger() {
	m.mu.Lock()
	fn := m.fn
	m.mu.Unlock()
	fn()
	m.ran++
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) Notify(summary string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, summary)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.messages)
}

func newTestEngine(t *testing.T, client *crowdin.Client, namespaces []string) (*syncengine.Engine, *registry.Registry) {
	t.Helper()
	reg := registry.New()
	tiered := cache.NewTiered(cache.Config{L1MaxSize: 10, L3MaxSize: 10})
	bus := events.NewBus()
	dir := t.TempDir()
	dyn, err := dynamic.Open(sqlitestore.Config{Path: filepath.Join(dir, "d.db")}, reg, tiered, bus, logging.NewDiscard())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg := syncengine.Config{
		SourceLanguage: "pt_br",
		BackupDir:      filepath.Join(dir, "backups"),
		SyncNamespaces: namespaces,
	}
	return syncengine.New(cfg, client, reg, dyn, logging.NewDiscard()), reg
}

func TestSchedulerRunsFullSyncAndNotifies(t *testing.T) {
	engine, _ := newTestEngine(t, nil, nil)
	host := &manualScheduler{}
	notifier := &recordingNotifier{}
	s := New(engine, host, time.Minute, logging.NewDiscard(), notifier)
	s.Start()

	host.trigger()

	summary, ok := s.LastRun()
	if !ok {
		t.Fatal("expected a recorded run")
	}
	if summary.Skipped {
		t.Fatal("expected the run not to be skipped")
	}
	if notifier.count() != 1 {
		t.Fatalf("expected one notification, got %d", notifier.count())
	}
}

func TestSchedulerSkipsWhenEngineBusy(t *testing.T) {
	release := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("/storages", func(w http.ResponseWriter, r *http.Request) {
		<-release
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"id": 1}})
	})
	mux.HandleFunc("/projects/1/directories", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"data": []any{}})
	})
	mux.HandleFunc("/projects/1/files", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			_ = json.NewEncoder(w).Encode(map[string]any{"data": []any{}})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"id": 1}})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, err := crowdin.New(crowdin.Config{BaseURL: srv.URL, ProjectID: "1", Token: "t"}, logging.NewDiscard())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	engine, reg := newTestEngine(t, client, []string{"shop"})
	if err := reg.Register(registry.Translation{Namespace: "shop", Key: "title", Language: "pt_br", Text: "Loja"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	host := &manualScheduler{}
	s := New(engine, host, time.Minute, logging.NewDiscard(), nil)
	s.Start()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = engine.SyncAll(context.Background())
	}()

	// Give the goroutine time to acquire the busy flag and block inside
	// the handler above.
	time.Sleep(50 * time.Millisecond)
	host.trigger()
	close(release)
	wg.Wait()

	summary, ok := s.LastRun()
	if !ok {
		t.Fatal("expected a recorded run")
	}
	if !summary.Skipped {
		t.Fatalf("expected scheduled run to be skipped while engine busy, got %+v", summary)
	}
}

func TestSchedulerDoesNotStartWithZeroInterval(t *testing.T) {
	engine, _ := newTestEngine(t, nil, nil)
	host := &manualScheduler{}
	s := New(engine, host, 0, logging.NewDiscard(), nil)
	s.Start()

	if host.registered() {
		t.Fatal("expected Every to never be registered for a zero interval")
	}
}
