// Package quarantine implements durable, reversible file isolation:
// admitting a threat moves it under an administratively-protected root
// and records it in a metadata journal so it survives restarts.
package quarantine

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Entry records one isolated file.
type Entry struct {
	ID             string
	OriginalPath   string
	QuarantinePath string
	ThreatName     string
	QuarantinedAt  time.Time
	OriginalSize   int64
}

// ErrNotFound is returned when an entry id has no matching quarantine entry.
var ErrNotFound = errors.New("quarantine: entry not found")

// dirMode restricts the quarantine root to the owning (administrative)
// principal only.
const dirMode = 0o700

// Store owns the quarantine root directory and its metadata journal.
type Store struct {
	mu      sync.Mutex
	root    string
	journal string
	entries map[string]Entry
	log     *zap.Logger
}

// Open opens (creating if necessary) the quarantine root at root and
// replays its metadata journal to rebuild the in-memory index. Payload
// files with no corresponding journal entry are garbage collected, and
// journal entries whose payload is missing are dropped, so every
// surviving entry refers to an extant payload immediately after Open
// returns.
func Open(root string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(root, dirMode); err != nil {
		return nil, fmt.Errorf("create quarantine root: %w", err)
	}
	// Directories created before this process (or with a looser umask)
	// may not carry the restrictive mode; enforce it explicitly.
	if err := os.Chmod(root, dirMode); err != nil {
		log.Warn("failed to restrict quarantine root permissions", zap.Error(err))
	}

	s := &Store{
		root:    root,
		journal: filepath.Join(root, "metadata.dat"),
		entries: make(map[string]Entry),
		log:     log,
	}

	if err := s.replay(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) replay() error {
	records, err := readJournal(s.journal)
	if err != nil {
		s.log.Warn("quarantine journal unreadable, starting empty", zap.Error(err))
		records = nil
	}

	live := make(map[string]Entry, len(records))
	for _, r := range records {
		id := filepath.Base(r.QuarantinePath)
		info, err := os.Stat(r.QuarantinePath)
		if err != nil {
			s.log.Warn("dropping quarantine entry with missing payload",
				zap.String("id", id), zap.String("path", r.QuarantinePath))
			continue
		}
		live[id] = Entry{
			ID:             id,
			OriginalPath:   r.OriginalPath,
			QuarantinePath: r.QuarantinePath,
			ThreatName:     r.ThreatName,
			QuarantinedAt:  time.Unix(r.QuarantinedAt, 0),
			OriginalSize:   info.Size(),
		}
	}
	s.entries = live

	return s.gcOrphans()
}

// gcOrphans removes payload files under root that have no journal
// entry.
func (s *Store) gcOrphans() error {
	dirEntries, err := os.ReadDir(s.root)
	if err != nil {
		return err
	}
	for _, de := range dirEntries {
		if de.IsDir() || de.Name() == "metadata.dat" {
			continue
		}
		if _, ok := s.entries[de.Name()]; !ok {
			orphan := filepath.Join(s.root, de.Name())
			s.log.Warn("removing orphaned quarantine payload", zap.String("path", orphan))
			_ = os.Remove(orphan)
		}
	}
	return nil
}

// Admit moves source under the quarantine root and journals it. On a
// cross-volume source, the move falls back to copy-then-unlink.
func (s *Store) Admit(source, threatName string) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := os.Stat(source)
	if err != nil {
		return Entry{}, fmt.Errorf("stat source: %w", err)
	}

	id := fmt.Sprintf("%d_%s", time.Now().Unix(), filepath.Base(source))
	dest := filepath.Join(s.root, id)

	if err := moveFile(source, dest); err != nil {
		return Entry{}, fmt.Errorf("move to quarantine: %w", err)
	}

	entry := Entry{
		ID:             id,
		OriginalPath:   source,
		QuarantinePath: dest,
		ThreatName:     threatName,
		QuarantinedAt:  time.Now(),
		OriginalSize:   info.Size(),
	}

	s.entries[id] = entry
	if err := s.flush(); err != nil {
		// The payload has already moved; leave the entry in memory so a
		// subsequent flush (or the next successful mutation) can persist
		// it rather than silently losing track of the isolated file.
		s.log.Error("failed to flush quarantine journal after admit", zap.Error(err))
		return entry, fmt.Errorf("flush journal: %w", err)
	}

	return entry, nil
}

// Restore reverses a quarantine: it moves the payload back to
// destination and removes the entry from the journal.
func (s *Store) Restore(id, destination string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[id]
	if !ok {
		return ErrNotFound
	}

	if err := moveFile(entry.QuarantinePath, destination); err != nil {
		return fmt.Errorf("restore from quarantine: %w", err)
	}

	delete(s.entries, id)
	if err := s.flush(); err != nil {
		s.log.Error("failed to flush quarantine journal after restore", zap.Error(err))
		return fmt.Errorf("flush journal: %w", err)
	}
	return nil
}

// Purge permanently deletes a quarantined payload and its entry.
func (s *Store) Purge(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[id]
	if !ok {
		return ErrNotFound
	}

	if err := os.Remove(entry.QuarantinePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete quarantined payload: %w", err)
	}

	delete(s.entries, id)
	return s.flush()
}

// Enumerate returns an immutable snapshot of the current entries.
func (s *Store) Enumerate() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	return out
}

// Get looks up a single entry by id.
func (s *Store) Get(id string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	return e, ok
}

func (s *Store) flush() error {
	records := make([]journalEntry, 0, len(s.entries))
	for _, e := range s.entries {
		records = append(records, journalEntry{
			OriginalPath:   e.OriginalPath,
			QuarantinePath: e.QuarantinePath,
			ThreatName:     e.ThreatName,
			QuarantinedAt:  e.QuarantinedAt.Unix(),
		})
	}
	return writeJournal(s.journal, records)
}

// moveFile renames src to dst, falling back to copy-then-unlink when
// the rename fails because src and dst live on different volumes.
func moveFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return err
	}

	if err := copyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

