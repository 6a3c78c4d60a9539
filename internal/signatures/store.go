// Package signatures owns the on-disk signature database: loading,
// atomic replacement, and the read-only snapshot handed to the matcher.
package signatures

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Snapshot is an immutable view of the active signature set. A snapshot
// remains valid for as long as any holder keeps a reference to it, even
// after Store.Load or Store.Replace publishes a newer one.
type Snapshot struct {
	version uint32
	sigs    []Signature
}

// Version returns the database version this snapshot was loaded from.
func (s *Snapshot) Version() uint32 { return s.version }

// Len returns the number of signatures in the snapshot.
func (s *Snapshot) Len() int { return len(s.sigs) }

// Signatures returns the ordered signature list. Callers must not
// mutate the returned slice; it is shared across readers.
func (s *Snapshot) Signatures() []Signature { return s.sigs }

// Store owns the signature database file and publishes immutable
// snapshots to readers. The active pointer is replaced atomically so a
// scan in progress keeps observing the snapshot it started with.
type Store struct {
	mu      sync.Mutex // serializes Load/Save/bootstrap against each other
	active  atomic.Pointer[Snapshot]
	log     *zap.Logger
	dbPath  string
	bootFn  func() []Signature // overridable in tests
}

// New creates a Store that has not yet loaded anything; call Load to
// populate it (falling back to a bootstrap set on failure).
func New(log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Store{log: log, bootFn: defaultBootstrapSignatures}
	s.active.Store(&Snapshot{version: 0, sigs: nil})
	return s
}

// Load reads the database at path and publishes it as the active
// snapshot. A read or parse failure is non-fatal: it is logged and the
// store falls back to a small bootstrapped default ruleset so the
// engine is never inert.
func (s *Store) Load(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dbPath = path

	f, err := os.Open(path)
	if err != nil {
		s.log.Warn("signature database unavailable, using bootstrap set",
			zap.String("path", path), zap.Error(err))
		s.publishBootstrap()
		return err
	}
	defer f.Close()

	sigs, version, err := decode(f)
	if err != nil {
		s.log.Warn("signature database malformed, using bootstrap set",
			zap.String("path", path), zap.Error(err))
		s.publishBootstrap()
		return err
	}

	s.active.Store(&Snapshot{version: version, sigs: sigs})
	s.log.Info("loaded signature database",
		zap.String("path", path), zap.Uint32("version", version), zap.Int("count", len(sigs)))
	return nil
}

func (s *Store) publishBootstrap() {
	sigs := s.bootFn()
	s.active.Store(&Snapshot{version: 0, sigs: sigs})
}

// Save writes the active snapshot to path atomically: it writes to a
// temp file in the same directory and renames it over the destination.
func (s *Store) Save(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.active.Load()

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".signatures-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := encode(tmp, snap.sigs); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmpPath, path)
}

// ActiveSnapshot returns the current read-only snapshot handle.
func (s *Store) ActiveSnapshot() *Snapshot {
	return s.active.Load()
}

// Replace atomically installs sigs as a new snapshot with a bumped
// version number.
func (s *Store) Replace(sigs []Signature) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.active.Load()
	next := &Snapshot{version: prev.version + 1, sigs: sigs}
	s.active.Store(next)
	return next.version
}

// defaultBootstrapSignatures returns the small default ruleset created
// on first run, seeded so the detector exercises both anchor kinds and
// both severity bands.
func defaultBootstrapSignatures() []Signature {
	return []Signature{
		{
			Name:     "TEST.EICAR",
			Pattern:  []byte("X5O!P%@AP[4\\PZX54(P^)"),
			Severity: 10,
			Anchor:   Anchor{Fixed: false},
		},
		{
			Name:     "PE.MAGIC",
			Pattern:  []byte{0x4D, 0x5A},
			Severity: 3,
			Anchor:   Anchor{Fixed: true, Offset: 0},
		},
		{
			Name:     "GENERIC.SUSPICIOUS.MARKER",
			Pattern:  []byte("this_is_definitely_malware"),
			Severity: 6,
			Anchor:   Anchor{Fixed: false},
		},
	}
}
