// Package syncengine implements the Sync Engine (spec.md §4.L), the
// hardest subsystem: it orchestrates uploading local translations to
// Crowdin, downloading and reconciling remote translations, and the
// merge policy (REMOTE_WINS/LOCAL_WINS/MANUAL) for conflicting edits.
package syncengine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/afterlands/langforge/internal/apperr"
	"github.com/afterlands/langforge/internal/crowdin"
	"github.com/afterlands/langforge/internal/dynamic"
	"github.com/afterlands/langforge/internal/logging"
	"github.com/afterlands/langforge/internal/registry"
)

// ConflictPolicy selects how the download pipeline handles a remote
// value that differs from a locally-edited one (spec.md §4.L step 5).
type ConflictPolicy string

const (
	RemoteWins ConflictPolicy = "REMOTE_WINS"
	LocalWins  ConflictPolicy = "LOCAL_WINS"
	Manual     ConflictPolicy = "MANUAL"
)

// Status is the outcome of one sync operation.
type Status string

const (
	Success Status = "SUCCESS"
	Partial Status = "PARTIAL"
	Failed  Status = "FAILED"
	Busy    Status = "BUSY"
)

// Result summarizes one upload, download, or full-sync run.
type Result struct {
	Namespace  string
	Status     Status
	Uploaded   int
	Skipped    int
	Downloaded int
	Conflicts  int
	Err        error
	At         time.Time
}

// Config configures directory resolution, locale mapping, and conflict
// handling for every namespace the engine manages.
type Config struct {
	SourceLanguage       string
	ServerID             string
	NamespaceDirectories map[string]string // ns -> "" (global) | "group" (shared); absent -> server-isolated if ServerID set
	LocaleMapping        map[string]string // remoteCode -> internalCode
	ConflictPolicy       ConflictPolicy
	SkipUntranslated     bool
	ExportApprovedOnly   bool
	BuildTimeout         time.Duration
	BackupDir            string
	SyncNamespaces       []string
}

func (c Config) withDefaults() Config {
	if c.ConflictPolicy == "" {
		c.ConflictPolicy = Manual
	}
	if c.BuildTimeout <= 0 {
		c.BuildTimeout = 60 * time.Second
	}
	if c.BackupDir == "" {
		c.BackupDir = filepath.Join("cache", "sync-backups")
	}
	return c
}

// DirectoryPath resolves a namespace's remote file path per spec.md
// §6's directory policy. The distinction between "not configured" and
// "configured as empty string" matters: an explicit "" override means
// global regardless of ServerID, while an absent entry falls through
// to the server-isolated case when ServerID is set.
func (c Config) DirectoryPath(ns string) string {
	if override, ok := c.NamespaceDirectories[ns]; ok {
		if override == "" {
			return fmt.Sprintf("%s/%s.yml", ns, ns)
		}
		if override == "group" {
			return fmt.Sprintf("group/%s/%s.yml", ns, ns)
		}
	}
	if c.ServerID != "" {
		return fmt.Sprintf("%s/%s/%s.yml", c.ServerID, ns, ns)
	}
	return fmt.Sprintf("%s/%s.yml", ns, ns)
}

// Engine is the Sync Engine. One Engine instance serializes all sync
// activity behind a single atomic "in progress" flag (spec.md §5:
// "Sync in-progress flag: a single atomic boolean owned by Sync
// Engine; only compare-and-swap transitions").
type Engine struct {
	cfg      Config
	client   *crowdin.Client
	reg      *registry.Registry
	dyn      *dynamic.Store
	log      *logging.Logger
	syncing  atomic.Bool
	resultMu sync.RWMutex
	results  map[string]Result
}

func New(cfg Config, client *crowdin.Client, reg *registry.Registry, dyn *dynamic.Store, log *logging.Logger) *Engine {
	return &Engine{
		cfg: cfg.withDefaults(), client: client, reg: reg, dyn: dyn, log: log,
		results: make(map[string]Result),
	}
}

// IsSyncInProgress reports whether a sync is currently running.
func (e *Engine) IsSyncInProgress() bool { return e.syncing.Load() }

// GetLastSyncResult returns the most recent Result recorded for ns.
func (e *Engine) GetLastSyncResult(ns string) (Result, bool) {
	e.resultMu.RLock()
	defer e.resultMu.RUnlock()
	r, ok := e.results[ns]
	return r, ok
}

func (e *Engine) recordResult(r Result) {
	r.At = time.Now().UTC()
	e.resultMu.Lock()
	e.results[r.Namespace] = r
	e.resultMu.Unlock()
}

// acquire attempts the compare-and-swap transition into "syncing"; the
// returned release func must be deferred by the caller that acquired it.
func (e *Engine) acquire() (release func(), ok bool) {
	if !e.syncing.CompareAndSwap(false, true) {
		return nil, false
	}
	return func() { e.syncing.Store(false) }, true
}

// TestConnection verifies Crowdin credentials and project id are valid.
func (e *Engine) TestConnection(ctx context.Context) error {
	return e.client.TestConnection(ctx)
}

// SyncAll runs a full sync (upload then download) for every namespace
// in cfg.SyncNamespaces, sequentially, under one acquisition of the
// busy flag (spec.md §4.N: scheduler invokes "full sync for all
// namespaces" as a single run).
func (e *Engine) SyncAll(ctx context.Context) ([]Result, error) {
	release, ok := e.acquire()
	if !ok {
		return nil, apperr.Busy
	}
	defer release()

	results := make([]Result, 0, len(e.cfg.SyncNamespaces))
	for _, ns := range e.cfg.SyncNamespaces {
		r := e.fullSyncLocked(ctx, ns)
		results = append(results, r)
		e.recordResult(r)
	}
	return results, nil
}

// SyncNamespace runs upload then download for a single namespace.
func (e *Engine) SyncNamespace(ctx context.Context, ns string) (Result, error) {
	release, ok := e.acquire()
	if !ok {
		return Result{Namespace: ns, Status: Busy}, apperr.Busy
	}
	defer release()

	r := e.fullSyncLocked(ctx, ns)
	e.recordResult(r)
	return r, nil
}

func (e *Engine) fullSyncLocked(ctx context.Context, ns string) Result {
	up, err := e.uploadLocked(ctx, ns)
	if err != nil {
		up.Err = err
		up.Status = Failed
		return up
	}
	down, err := e.downloadLocked(ctx, ns)
	if err != nil {
		down.Err = err
		down.Status = Failed
	}
	down.Uploaded = up.Uploaded
	down.Skipped = up.Skipped
	if down.Status == "" {
		down.Status = Success
	}
	return down
}

// UploadNamespace uploads a single namespace's translations, acquiring
// the busy flag itself (for callers invoking upload alone, outside a
// full sync).
func (e *Engine) UploadNamespace(ctx context.Context, ns string) (Result, error) {
	release, ok := e.acquire()
	if !ok {
		return Result{Namespace: ns, Status: Busy}, apperr.Busy
	}
	defer release()
	r, err := e.uploadLocked(ctx, ns)
	e.recordResult(r)
	return r, err
}

// DownloadNamespace downloads and reconciles a single namespace.
func (e *Engine) DownloadNamespace(ctx context.Context, ns string) (Result, error) {
	release, ok := e.acquire()
	if !ok {
		return Result{Namespace: ns, Status: Busy}, apperr.Busy
	}
	defer release()
	r, err := e.downloadLocked(ctx, ns)
	e.recordResult(r)
	return r, err
}

func ensureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}
