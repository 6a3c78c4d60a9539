// Package scheduledscan fires a scan at calendar times. The trigger
// loop is a context-cancellable goroutine that wakes periodically and
// checks whether the configured schedule is due.
package scheduledscan

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sentineld/avengine/internal/scanner"
)

const (
	defaultPollInterval = 15 * time.Second
	minRescanInterval   = time.Hour
	fireWindow          = time.Minute
)

// ScanRunner is the subset of *scanner.Scanner the scheduler depends
// on, kept as an interface so it can be exercised with a fake.
type ScanRunner interface {
	StartAsync(kind scanner.Kind, targets []string) bool
	IsScanning() bool
}

// Scheduler triggers a scan when its configured Config is due.
type Scheduler struct {
	runner ScanRunner
	log    *zap.Logger

	pollInterval time.Duration
	clock        func() time.Time

	mu         sync.RWMutex
	config     Config
	targets    []string
	lastScanAt time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Scheduler bound to runner. The schedule starts
// Disabled; call SetSchedule to configure it.
func New(runner ScanRunner, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		runner:       runner,
		log:          log,
		pollInterval: defaultPollInterval,
		clock:        time.Now,
	}
}

// SetPollInterval overrides how often the trigger loop wakes. Must be
// called before Start.
func (s *Scheduler) SetPollInterval(d time.Duration) {
	if d > 0 {
		s.pollInterval = d
	}
}

// SetTargets sets the paths passed to the scanner with every scheduled
// or manually triggered scan. The scanner uses them for the File,
// Folder, Drive and Custom kinds and ignores them for System, Quick and
// Full.
func (s *Scheduler) SetTargets(paths []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.targets = paths
}

// SetSchedule validates and installs cfg. An invalid schedule is
// rejected without touching the previously installed config.
func (s *Scheduler) SetSchedule(cfg Config) error {
	if err := cfg.validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = cfg
	return nil
}

// Schedule returns the currently installed config.
func (s *Scheduler) Schedule() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// Start launches the trigger loop goroutine.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.ctx != nil {
		s.mu.Unlock()
		return
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	ctx := s.ctx
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop(ctx)
}

// Stop cancels the trigger loop and waits for it to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.maybeTrigger()
		case <-ctx.Done():
			return
		}
	}
}

// maybeTrigger fires a scan if the schedule is enabled, no scan is
// currently running, the last scan is at least an hour old, and the
// calendar next-fire time is within one minute of now.
func (s *Scheduler) maybeTrigger() {
	s.mu.RLock()
	cfg := s.config
	last := s.lastScanAt
	targets := s.targets
	s.mu.RUnlock()

	if !cfg.Enabled || cfg.Kind == Disabled {
		return
	}
	if s.runner.IsScanning() {
		return
	}
	now := s.clock()
	if !last.IsZero() && now.Sub(last) < minRescanInterval {
		return
	}

	fireAt, ok := nextFire(cfg, now)
	if !ok {
		return
	}
	delta := fireAt.Sub(now)
	if delta < 0 || delta > fireWindow {
		return
	}

	if s.runner.StartAsync(cfg.ScanKind, targets) {
		s.mu.Lock()
		s.lastScanAt = now
		s.mu.Unlock()
		s.log.Info("scheduled scan triggered", zap.Int("kind", int(cfg.ScanKind)))
	}
}

// TriggerNow starts a scan of kind immediately, subject to the
// single-concurrent-scan invariant enforced by the runner.
func (s *Scheduler) TriggerNow(kind scanner.Kind) bool {
	s.mu.RLock()
	targets := s.targets
	s.mu.RUnlock()

	if s.runner.IsScanning() {
		return false
	}
	accepted := s.runner.StartAsync(kind, targets)
	if accepted {
		s.mu.Lock()
		s.lastScanAt = s.clock()
		s.mu.Unlock()
	}
	return accepted
}
