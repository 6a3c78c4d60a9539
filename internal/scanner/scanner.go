// Package scanner enumerates files according to a scan kind and
// dispatches each to the threat engine, tracking progress statistics
// and supporting a single concurrent asynchronous scan with cooperative
// cancellation.
package scanner

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/sentineld/avengine/internal/threatengine"
)

// Kind identifies what a scan operation enumerates.
type Kind int

const (
	KindFile Kind = iota
	KindFolder
	KindDrive
	KindSystem
	KindQuick
	KindFull
	KindCustom
)

// Outcome is the terminal status of a scan operation.
type Outcome int

const (
	Success Outcome = iota
	Failed
	Cancelled
	AccessDenied
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "SUCCESS"
	case Failed:
		return "FAILED"
	case Cancelled:
		return "CANCELLED"
	case AccessDenied:
		return "ACCESS_DENIED"
	default:
		return "UNKNOWN"
	}
}

// Options configures enumeration for a scan.
type Options struct {
	MaxFileSize       int64
	FollowSymlinks    bool
	ScanArchives      bool
	Extensions        []string // allow-list; empty means allow all
	ExclusionPrefixes []string
}

// DefaultOptions returns the scan options for an unconfigured scanner,
// with the exclusion prefixes that are pathological to scan.
func DefaultOptions() Options {
	return Options{
		MaxFileSize: 100 * 1024 * 1024,
		ExclusionPrefixes: []string{
			"/proc/",
			"/sys/",
			"/swapfile",
			"pagefile.sys",
			"hiberfil.sys",
			"$recycle.bin",
			"system volume information",
		},
	}
}

// Statistics is a point-in-time snapshot of a scan's progress.
type Statistics struct {
	TotalFiles   int64
	ScannedFiles int64
	SkippedFiles int64
	ScannedBytes int64
	TotalBytes   int64
}

// ProgressFunc is invoked after each file is scanned, with the path just
// processed, the current percent (0..100, non-decreasing), and a
// statistics snapshot.
type ProgressFunc func(path string, percent int, stats Statistics)

// Result is what every scan operation returns.
type Result struct {
	Outcome  Outcome
	Findings []threatengine.Finding
}

// Scanner drives enumeration and dispatch against a threat engine.
type Scanner struct {
	engine  *threatengine.Engine
	options Options
	log     *zap.Logger

	mu    sync.Mutex
	stats Statistics

	onProgress ProgressFunc

	scanning   atomic.Bool
	cancelFlag atomic.Bool

	lastAsyncResult *Result
}

// New creates a Scanner bound to engine with the given options.
func New(engine *threatengine.Engine, options Options, log *zap.Logger) *Scanner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scanner{engine: engine, options: options, log: log}
}

// SetProgressCallback registers the progress port consumer.
func (s *Scanner) SetProgressCallback(fn ProgressFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onProgress = fn
}

// Statistics returns a snapshot of the current scan's statistics.
func (s *Scanner) Statistics() Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// IsScanning reports whether an async scan is currently in progress.
func (s *Scanner) IsScanning() bool { return s.scanning.Load() }

// Cancel requests cooperative cancellation of the running scan, if any.
func (s *Scanner) Cancel() {
	s.cancelFlag.Store(true)
}

// ScanFile scans a single path.
func (s *Scanner) ScanFile(path string) Result {
	return s.runScan([]string{path})
}

// ScanFolder recursively scans a directory.
func (s *Scanner) ScanFolder(path string) Result {
	return s.runScan([]string{path})
}

// ScanDrive scans the filesystem rooted at the given mount point.
func (s *Scanner) ScanDrive(driveID string) Result {
	return s.runScan([]string{driveID})
}

// ScanSystem scans the fixed list of critical system directories.
func (s *Scanner) ScanSystem() Result {
	return s.runScan(systemDirectories())
}

// QuickScan scans system directories plus temp and common user folders.
func (s *Scanner) QuickScan() Result {
	return s.runScan(quickScanTargets())
}

// FullScan scans every accessible mounted filesystem.
func (s *Scanner) FullScan() Result {
	return s.runScan(enumerateDrives())
}

// CustomScan scans a caller-supplied list of paths.
func (s *Scanner) CustomScan(paths []string) Result {
	return s.runScan(paths)
}

// StartAsync launches a scan of kind against targets on a background
// goroutine. It returns false without starting anything if a scan is
// already running, per the single-concurrent-async-scan invariant.
func (s *Scanner) StartAsync(kind Kind, targets []string) bool {
	if !s.scanning.CompareAndSwap(false, true) {
		return false
	}

	go func() {
		defer s.scanning.Store(false)
		defer s.cancelFlag.Store(false)

		var result Result
		switch kind {
		case KindFile:
			result = s.runScan(targets)
		case KindFolder:
			result = s.runScan(targets)
		case KindDrive:
			result = s.runScan(targets)
		case KindSystem:
			result = s.runScan(systemDirectories())
		case KindQuick:
			result = s.runScan(quickScanTargets())
		case KindFull:
			result = s.runScan(enumerateDrives())
		case KindCustom:
			result = s.runScan(targets)
		}

		s.mu.Lock()
		s.lastAsyncResult = &result
		s.mu.Unlock()
	}()
	return true
}

// LastAsyncResult returns the result of the most recently completed
// asynchronous scan, if any has completed.
func (s *Scanner) LastAsyncResult() (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastAsyncResult == nil {
		return Result{}, false
	}
	return *s.lastAsyncResult, true
}

func (s *Scanner) resetStats() {
	s.mu.Lock()
	s.stats = Statistics{}
	s.mu.Unlock()
}

// runScan enumerates targets in a first pass (to make progress
// non-decreasing from the first scanned file) and dispatches each
// candidate to the threat engine in a second pass.
func (s *Scanner) runScan(targets []string) Result {
	s.resetStats()
	s.cancelFlag.Store(false)

	var candidates []string
	denied, failed := 0, 0

	for _, target := range targets {
		info, err := os.Lstat(target)
		if err != nil {
			if os.IsPermission(err) {
				denied++
			} else {
				failed++
			}
			continue
		}

		if info.IsDir() {
			found, walkErr := s.enumerateDir(target)
			if walkErr != nil {
				if os.IsPermission(walkErr) {
					denied++
				} else {
					failed++
				}
				continue
			}
			candidates = append(candidates, found...)
			continue
		}

		s.mu.Lock()
		if s.admit(target, info) {
			s.stats.TotalFiles++
			s.mu.Unlock()
			candidates = append(candidates, target)
		} else {
			s.stats.TotalFiles++
			s.stats.SkippedFiles++
			s.mu.Unlock()
		}
	}

	if len(targets) > 0 && len(candidates) == 0 {
		if denied == len(targets) {
			return Result{Outcome: AccessDenied}
		}
		if failed == len(targets) {
			return Result{Outcome: Failed}
		}
	}

	findings := s.scanCandidates(candidates)

	if s.cancelFlag.Load() {
		return Result{Outcome: Cancelled, Findings: findings}
	}
	return Result{Outcome: Success, Findings: findings}
}

// enumerateDir walks root, applying the admission filter to every
// regular file found and tallying totals/skips as it goes.
func (s *Scanner) enumerateDir(root string) ([]string, error) {
	var candidates []string

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			s.mu.Lock()
			s.stats.TotalFiles++
			s.stats.SkippedFiles++
			s.mu.Unlock()
			return nil
		}
		if info.IsDir() {
			return nil
		}

		s.mu.Lock()
		admitted := s.admit(path, info)
		s.stats.TotalFiles++
		if !admitted {
			s.stats.SkippedFiles++
		}
		s.mu.Unlock()

		if admitted {
			candidates = append(candidates, path)
		}
		return nil
	})
	if err != nil && os.IsPermission(err) {
		return candidates, err
	}
	return candidates, nil
}

// admit applies the enumeration policy. Callers must hold s.mu.
func (s *Scanner) admit(path string, info os.FileInfo) bool {
	if info.Mode()&os.ModeSymlink != 0 && !s.options.FollowSymlinks {
		return false
	}

	lower := strings.ToLower(path)
	for _, prefix := range s.options.ExclusionPrefixes {
		if strings.HasPrefix(lower, strings.ToLower(prefix)) {
			return false
		}
	}

	if s.options.MaxFileSize > 0 && info.Size() > s.options.MaxFileSize {
		return false
	}

	if len(s.options.Extensions) > 0 {
		ext := strings.ToLower(filepath.Ext(path))
		ok := false
		for _, allowed := range s.options.Extensions {
			if ext == strings.ToLower(allowed) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}

	return true
}

// scanCandidates dispatches each candidate to the threat engine,
// checking the cancellation flag before opening each next file.
func (s *Scanner) scanCandidates(candidates []string) []threatengine.Finding {
	var findings []threatengine.Finding

	for _, path := range candidates {
		if s.cancelFlag.Load() {
			break
		}

		finding, err := s.engine.ScanPath(path)

		s.mu.Lock()
		if err != nil {
			if kind, ok := threatengine.KindOf(err); ok && (kind == threatengine.Unreadable || kind == threatengine.TooLarge) {
				s.stats.SkippedFiles++
			}
		} else {
			s.stats.ScannedFiles++
			if info, statErr := os.Stat(path); statErr == nil {
				s.stats.ScannedBytes += info.Size()
			}
		}
		stats := s.stats
		cb := s.onProgress
		s.mu.Unlock()

		if cb != nil {
			cb(path, percentOf(stats), stats)
		}
		if finding != nil {
			findings = append(findings, *finding)
		}
	}
	return findings
}

func percentOf(stats Statistics) int {
	if stats.TotalFiles <= 0 {
		return 100
	}
	done := stats.ScannedFiles + stats.SkippedFiles
	percent := int(done * 100 / stats.TotalFiles)
	if percent > 100 {
		percent = 100
	}
	return percent
}
