// Package scheduler implements the Scheduler (spec.md §4.N): a
// periodic full-sync task registered on the host's capability.Scheduler,
// skipping a run if the Sync Engine is already busy. Grounded on the
// teacher's background-cleanup ticker (internal/logger's
// startBackgroundCleanup, reused directly via
// capability.InProcessScheduler.Every) repurposed from log retention to
// sync scheduling.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/afterlands/langforge/internal/apperr"
	"github.com/afterlands/langforge/internal/capability"
	"github.com/afterlands/langforge/internal/logging"
	"github.com/afterlands/langforge/internal/syncengine"
)

// Notifier delivers a human-readable summary to the host's admin
// notification channel once a scheduled sync completes (spec.md §4.N:
// "optionally notify administrators through the host").
type Notifier interface {
	Notify(summary string)
}

// Summary records one scheduled run's outcome for admin inspection.
type Summary struct {
	At      time.Time
	Skipped bool
	Results []syncengine.Result
	Err     error
}

// Scheduler registers a periodic full-sync task.
type Scheduler struct {
	engine   *syncengine.Engine
	host     capability.Scheduler
	interval time.Duration
	log      *logging.Logger
	notifier Notifier

	cancel func()

	mu      sync.RWMutex
	last    Summary
	hasLast bool
}

// New builds a Scheduler. notifier may be nil (no admin notification).
func New(engine *syncengine.Engine, host capability.Scheduler, interval time.Duration, log *logging.Logger, notifier Notifier) *Scheduler {
	return &Scheduler{engine: engine, host: host, interval: interval, log: log, notifier: notifier}
}

// Start registers the periodic task. The host's Every implementation
// fires its first tick after one interval, never on startup, matching
// spec.md §4.N.
func (s *Scheduler) Start() {
	if s.interval <= 0 {
		return
	}
	s.cancel = s.host.Every(s.interval, s.runOnce)
}

// Stop cancels the periodic task, if started.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Scheduler) runOnce() {
	if s.engine.IsSyncInProgress() {
		s.log.Info("scheduled sync skipped: a sync is already in progress", nil)
		s.recordLast(Summary{At: time.Now().UTC(), Skipped: true})
		return
	}

	results, err := s.engine.SyncAll(context.Background())
	summary := Summary{At: time.Now().UTC(), Results: results, Err: err}
	s.recordLast(summary)

	if err != nil {
		if apperr.IsKind(err, apperr.KindBusy) {
			s.log.Info("scheduled sync skipped: engine reported busy", nil)
			summary.Skipped = true
			s.recordLast(summary)
			return
		}
		s.log.Error("scheduled sync failed", err, nil)
		return
	}

	text := summarize(results)
	s.log.Info(fmt.Sprintf("scheduled sync completed: %s", text), nil)
	if s.notifier != nil {
		s.notifier.Notify(text)
	}
}

func (s *Scheduler) recordLast(summary Summary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = summary
	s.hasLast = true
}

// LastRun returns the most recent scheduled run's summary.
func (s *Scheduler) LastRun() (Summary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last, s.hasLast
}

func summarize(results []syncengine.Result) string {
	var uploaded, downloaded, conflicts, failed int
	for _, r := range results {
		uploaded += r.Uploaded
		downloaded += r.Downloaded
		conflicts += r.Conflicts
		if r.Status == syncengine.Failed {
			failed++
		}
	}
	return fmt.Sprintf("%d namespaces synced, %d uploaded, %d downloaded, %d conflicts, %d failed",
		len(results), uploaded, downloaded, conflicts, failed)
}
