// Package threatengine decides whether a file is a threat by combining
// ordered signature matching with a small set of behavioral heuristics,
// and owns quarantine/restore of files it (or a caller) flags.
package threatengine

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/sentineld/avengine/internal/quarantine"
	"github.com/sentineld/avengine/internal/signatures"
)

const defaultMaxFileSize = 100 * 1024 * 1024 // 100 MiB

// Finding is emitted when a scan identifies a malicious file. It is a
// value: producing one never mutates the file.
type Finding struct {
	Path       string
	RuleName   string
	Severity   int
	FileSize   int64
	DetectedAt time.Time
}

// Engine composes a signature Store and a quarantine Store to decide
// whether a path is a threat.
type Engine struct {
	sigStore   *signatures.Store
	quarantine *quarantine.Store
	log        *zap.Logger

	heuristicsEnabled atomic.Bool
	maxFileSize       int64
	dbPath            string
}

// New creates an Engine bound to the given signature and quarantine
// stores. Heuristics are enabled by default.
func New(sigStore *signatures.Store, quarantineStore *quarantine.Store, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{
		sigStore:    sigStore,
		quarantine:  quarantineStore,
		log:         log,
		maxFileSize: defaultMaxFileSize,
	}
	e.heuristicsEnabled.Store(true)
	return e
}

// Configure toggles heuristic evaluation. Signature matching always runs.
func (e *Engine) Configure(heuristicsEnabled bool) {
	e.heuristicsEnabled.Store(heuristicsEnabled)
}

// SetMaxFileSize overrides the default 100 MiB scan ceiling.
func (e *Engine) SetMaxFileSize(n int64) {
	if n > 0 {
		e.maxFileSize = n
	}
}

// SetDatabasePath records the path UpdateDatabase re-reads from.
func (e *Engine) SetDatabasePath(path string) {
	e.dbPath = path
}

// ScanPath applies the single-file scan algorithm to path. A nil
// finding with a nil error means clean (including the 0-byte case).
// Unreadable and too-large paths return a nil finding with an error
// whose KindOf is Unreadable or TooLarge; callers treat those as a skip.
func (e *Engine) ScanPath(path string) (*Finding, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, newError(Unreadable, err)
	}
	if info.IsDir() {
		return nil, newError(Unreadable, errors.New("path is a directory"))
	}
	if info.Size() == 0 {
		return nil, nil
	}
	if info.Size() > e.maxFileSize {
		return nil, newError(TooLarge, nil)
	}

	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, newError(Unreadable, err)
	}

	snap := e.sigStore.ActiveSnapshot()
	for _, sig := range snap.Signatures() {
		if matchSignature(sig, buf) {
			return &Finding{
				Path:       path,
				RuleName:   sig.Name,
				Severity:   sig.Severity,
				FileSize:   info.Size(),
				DetectedAt: time.Now(),
			}, nil
		}
	}

	if e.heuristicsEnabled.Load() {
		if kind, severity, fired := heuristicVerdict(path, buf); fired {
			return &Finding{
				Path:       path,
				RuleName:   kind.String(),
				Severity:   severity,
				FileSize:   info.Size(),
				DetectedAt: time.Now(),
			}, nil
		}
	}

	return nil, nil
}

// matchSignature reports whether sig's pattern occurs in buf at its
// configured anchor.
func matchSignature(sig signatures.Signature, buf []byte) bool {
	if sig.Anchor.Fixed {
		o := sig.Anchor.Offset
		end := o + len(sig.Pattern)
		if o < 0 || end > len(buf) {
			return false
		}
		return bytes.Equal(buf[o:end], sig.Pattern)
	}
	return bytes.Contains(buf, sig.Pattern)
}

// ScanDirectory walks root depth-first, scanning every regular file it
// can stat. Unreadable or oversized files are skipped, not reported as
// errors, matching ScanPath's skip semantics; a finding is recorded for
// every other file that scores positive.
func (e *Engine) ScanDirectory(root string) ([]Finding, error) {
	var findings []Finding

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			e.log.Warn("skipping unstat-able entry during directory scan",
				zap.String("path", path), zap.Error(err))
			return nil
		}
		if info.IsDir() {
			return nil
		}

		finding, scanErr := e.ScanPath(path)
		if scanErr != nil {
			if kind, ok := KindOf(scanErr); ok && (kind == Unreadable || kind == TooLarge) {
				return nil
			}
			return scanErr
		}
		if finding != nil {
			findings = append(findings, *finding)
		}
		return nil
	})
	if err != nil {
		return findings, err
	}
	return findings, nil
}

// Quarantine isolates path under the quarantine root, recording
// threatName as the reason.
func (e *Engine) Quarantine(path, threatName string) (quarantine.Entry, error) {
	entry, err := e.quarantine.Admit(path, threatName)
	if err != nil {
		return quarantine.Entry{}, newError(IOQuarantine, err)
	}
	return entry, nil
}

// Restore reverses a prior Quarantine call, writing the payload back to
// destination.
func (e *Engine) Restore(entryID, destination string) error {
	if err := e.quarantine.Restore(entryID, destination); err != nil {
		if errors.Is(err, quarantine.ErrNotFound) {
			return newError(NotFound, err)
		}
		return newError(IOQuarantine, err)
	}
	return nil
}

// QuarantinedFiles lists every currently quarantined entry.
func (e *Engine) QuarantinedFiles() []quarantine.Entry {
	return e.quarantine.Enumerate()
}

// QuarantinedFile looks up a single quarantine entry by id.
func (e *Engine) QuarantinedFile(id string) (quarantine.Entry, bool) {
	return e.quarantine.Get(id)
}

// PurgeQuarantine permanently deletes a quarantined payload.
func (e *Engine) PurgeQuarantine(id string) error {
	if err := e.quarantine.Purge(id); err != nil {
		if errors.Is(err, quarantine.ErrNotFound) {
			return newError(NotFound, err)
		}
		return newError(IOQuarantine, err)
	}
	return nil
}

// ActiveSignatureVersion returns the version of the currently loaded
// signature snapshot.
func (e *Engine) ActiveSignatureVersion() uint32 {
	return e.sigStore.ActiveSnapshot().Version()
}

// UpdateDatabase re-reads the signature database from the path set via
// SetDatabasePath and publishes it as the new active snapshot, returning
// its version number.
func (e *Engine) UpdateDatabase() (uint32, error) {
	if e.dbPath == "" {
		return 0, newError(InvalidConfig, errors.New("no database path configured"))
	}
	if err := e.sigStore.Load(e.dbPath); err != nil {
		return 0, newError(MalformedDB, err)
	}
	return e.sigStore.ActiveSnapshot().Version(), nil
}
