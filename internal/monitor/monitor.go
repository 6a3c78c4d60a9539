// Package monitor delivers newly created or modified files in watched
// trees to the threat engine through a priority queue and a fixed
// worker pool. Platform directory-change notification is not
// available anywhere in this codebase's dependency surface, so
// each watched root is polled on a ticker and diffed by modification
// time.
package monitor

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/sentineld/avengine/internal/threatengine"
)

const (
	defaultWorkers   = 4
	defaultScanDelay = 100 * time.Millisecond
	defaultPollEvery = 2 * time.Second

	// autoQuarantineSeverity is the severity threshold at or above
	// which a worker auto-quarantines the finding.
	autoQuarantineSeverity = 8
)

// ThreatEvent is delivered to the registered callback whenever a worker
// gets a positive finding.
type ThreatEvent struct {
	Finding         threatengine.Finding
	AutoQuarantined bool
}

// ThreatEventFunc is the monitor's threat-event port.
type ThreatEventFunc func(ThreatEvent)

// Monitor watches directory trees and dispatches admitted files to the
// threat engine.
type Monitor struct {
	engine    *threatengine.Engine
	log       *zap.Logger
	workers   int
	scanDelay time.Duration
	pollEvery time.Duration

	mu      sync.Mutex
	watches map[string]chan struct{}
	running bool

	onThreat ThreatEventFunc

	queue *priorityQueue
	wg    sync.WaitGroup

	enqueued    atomic.Int64
	quarantined atomic.Int64
}

// New creates a Monitor bound to engine, with the default worker count
// and scan delay.
func New(engine *threatengine.Engine, log *zap.Logger) *Monitor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Monitor{
		engine:    engine,
		log:       log,
		workers:   defaultWorkers,
		scanDelay: defaultScanDelay,
		pollEvery: defaultPollEvery,
		watches:   make(map[string]chan struct{}),
		queue:     newPriorityQueue(),
	}
}

// SetWorkerCount overrides the default worker pool size. Must be called
// before Initialize.
func (m *Monitor) SetWorkerCount(n int) {
	if n > 0 {
		m.workers = n
	}
}

// SetScanDelay overrides the default re-stat delay. Must be called
// before Initialize.
func (m *Monitor) SetScanDelay(d time.Duration) {
	if d >= 0 {
		m.scanDelay = d
	}
}

// SetPollInterval overrides how often watched roots are re-walked.
func (m *Monitor) SetPollInterval(d time.Duration) {
	if d > 0 {
		m.pollEvery = d
	}
}

// SetThreatCallback registers the threat-event port consumer.
func (m *Monitor) SetThreatCallback(fn ThreatEventFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onThreat = fn
}

// Initialize starts the fixed worker pool. Safe to call once; a second
// call is a no-op while already running.
func (m *Monitor) Initialize() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	m.running = true
	for i := 0; i < m.workers; i++ {
		m.wg.Add(1)
		go m.worker()
	}
}

// Shutdown sets the cancel signal, wakes every blocked worker and
// poller via broadcast, and joins. After Shutdown returns, no new
// enqueues are accepted.
func (m *Monitor) Shutdown() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	for _, stop := range m.watches {
		close(stop)
	}
	m.watches = make(map[string]chan struct{})
	m.mu.Unlock()

	m.queue.Close()
	m.wg.Wait()
}

// IsRunning reports whether the worker pool is active.
func (m *Monitor) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// AddWatch begins polling root for newly created or modified files.
// Renames and deletions are ignored.
func (m *Monitor) AddWatch(root string) {
	m.mu.Lock()
	if _, exists := m.watches[root]; exists {
		m.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	m.watches[root] = stop
	m.mu.Unlock()

	m.wg.Add(1)
	go m.pollRoot(root, stop)
}

// RemoveWatch stops polling root. Requests already enqueued from it are
// still processed.
func (m *Monitor) RemoveWatch(root string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if stop, ok := m.watches[root]; ok {
		close(stop)
		delete(m.watches, root)
	}
}

// WatchedRoots returns the currently watched root paths.
func (m *Monitor) WatchedRoots() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	roots := make([]string, 0, len(m.watches))
	for r := range m.watches {
		roots = append(roots, r)
	}
	return roots
}

// pollRoot is the notification thread: it never calls into the scan
// algorithm directly, only enqueues.
func (m *Monitor) pollRoot(root string, stop chan struct{}) {
	defer m.wg.Done()

	seen := make(map[string]time.Time)
	ticker := time.NewTicker(m.pollEvery)
	defer ticker.Stop()

	scan := func() {
		_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
			if err != nil || info == nil || info.IsDir() {
				return nil
			}
			modTime := info.ModTime()
			prior, known := seen[path]
			seen[path] = modTime
			if known && !modTime.After(prior) {
				return nil
			}
			m.Enqueue(path)
			return nil
		})
	}

	scan()
	for {
		select {
		case <-ticker.C:
			scan()
		case <-stop:
			return
		}
	}
}

// Enqueue applies the admission filter to path and, if it survives,
// pushes it onto the priority queue. Exported so pollers and tests can
// feed candidate paths without a real filesystem poll.
func (m *Monitor) Enqueue(path string) bool {
	if !admit(path) {
		return false
	}
	ok := m.queue.Push(Request{Path: path, Priority: priorityFor(path), EnqueuedAt: time.Now()})
	if ok {
		m.enqueued.Add(1)
	}
	return ok
}

// QueueLength reports the number of requests currently queued.
func (m *Monitor) QueueLength() int { return m.queue.Len() }

// EnqueuedCount reports the lifetime number of accepted requests.
func (m *Monitor) EnqueuedCount() int64 { return m.enqueued.Load() }

// QuarantinedCount reports the lifetime number of auto-quarantines.
func (m *Monitor) QuarantinedCount() int64 { return m.quarantined.Load() }

func (m *Monitor) worker() {
	defer m.wg.Done()
	for {
		req, ok := m.queue.Pop()
		if !ok {
			return
		}

		time.Sleep(m.scanDelay)

		if _, err := os.Stat(req.Path); err != nil {
			continue
		}

		finding, err := m.engine.ScanPath(req.Path)
		if err != nil || finding == nil {
			continue
		}

		event := ThreatEvent{Finding: *finding}
		if finding.Severity >= autoQuarantineSeverity {
			if _, qerr := m.engine.Quarantine(req.Path, finding.RuleName); qerr == nil {
				event.AutoQuarantined = true
				m.quarantined.Add(1)
			} else {
				m.log.Warn("auto-quarantine failed, reporting finding without isolation",
					zap.String("path", req.Path), zap.Error(qerr))
			}
		}

		m.mu.Lock()
		cb := m.onThreat
		m.mu.Unlock()
		if cb != nil {
			cb(event)
		}
	}
}
