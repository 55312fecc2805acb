package capability

import (
	"fmt"
	"sync"
	"time"
)

// InProcessScheduler is the default Scheduler used by the demo
// composition root: a bounded goroutine pool for RunAsync and
// time.Ticker for Every, mirroring the background-cleanup ticker
// pattern the teacher used for log retention (internal/logger's
// startBackgroundCleanup). Real hosts inject their own Scheduler
// backed by their actual primary/worker thread split instead.
type InProcessScheduler struct {
	sem chan struct{}

	mu      sync.Mutex
	tickers []*time.Ticker
}

// NewInProcessScheduler bounds concurrent RunAsync work to maxWorkers.
func NewInProcessScheduler(maxWorkers int) *InProcessScheduler {
	if maxWorkers <= 0 {
		maxWorkers = 8
	}
	return &InProcessScheduler{sem: make(chan struct{}, maxWorkers)}
}

func (s *InProcessScheduler) RunAsync(fn func() error) *Future[struct{}] {
	f, resolve := NewFuture[struct{}]()
	go func() {
		s.sem <- struct{}{}
		defer func() { <-s.sem }()
		resolve(struct{}{}, fn())
	}()
	return f
}

// RunOnPrimary has no real primary thread to hop to in-process; it
// runs fn synchronously, which is the correct behavior for a single
// caller goroutine that already owns the call site.
func (s *InProcessScheduler) RunOnPrimary(fn func()) {
	fn()
}

func (s *InProcessScheduler) Every(interval time.Duration, fn func()) func() {
	t := time.NewTicker(interval)
	s.mu.Lock()
	s.tickers = append(s.tickers, t)
	s.mu.Unlock()

	stop := make(chan struct{})
	go func() {
		for {
			select {
			case <-t.C:
				fn()
			case <-stop:
				t.Stop()
				return
			}
		}
	}()
	return func() { close(stop) }
}

// LogMessenger is a Messenger stand-in for hosts with no chat
// transport wired yet: it records deliveries through the logger
// instead of dropping them silently. A real host replaces this with
// its own player-messaging API at composition time.
type LogMessenger struct {
	sink func(line string)
}

// NewLogMessenger builds a LogMessenger that writes through sink.
func NewLogMessenger(sink func(line string)) *LogMessenger {
	if sink == nil {
		sink = func(string) {}
	}
	return &LogMessenger{sink: sink}
}

func (m *LogMessenger) SendToPlayer(playerID, text string) {
	m.sink(fmt.Sprintf("[to %s] %s", playerID, text))
}

func (m *LogMessenger) Broadcast(permission, text string) {
	if permission == "" {
		m.sink(fmt.Sprintf("[broadcast] %s", text))
		return
	}
	m.sink(fmt.Sprintf("[broadcast perm=%s] %s", permission, text))
}
