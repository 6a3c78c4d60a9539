package quarantine

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"unicode/utf16"
)

// journalEntry is the on-disk representation of one Entry:
// length-prefixed UTF-16LE strings for the three path/name fields,
// then a little-endian u64 quarantine timestamp.
type journalEntry struct {
	OriginalPath   string
	QuarantinePath string
	ThreatName     string
	QuarantinedAt  int64 // unix seconds
}

// writeJournal atomically rewrites the metadata journal to reflect the
// full current entry set. Rewriting the whole snapshot on every mutation
// keeps the file always self-consistent: a crash mid-write leaves the
// previous journal in place because the write lands in a temp file
// first, and the rename that publishes it is a single filesystem
// operation.
func writeJournal(path string, entries []journalEntry) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".metadata-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	bw := bufio.NewWriter(tmp)
	if err := writeU32(bw, uint32(len(entries))); err != nil {
		tmp.Close()
		return err
	}
	for _, e := range entries {
		if err := encodeJournalEntry(bw, e); err != nil {
			tmp.Close()
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmpPath, path)
}

// readJournal loads the metadata journal. A missing file is treated as
// an empty journal (fresh quarantine root); any other error is
// surfaced so the caller can decide whether to proceed.
func readJournal(path string) ([]journalEntry, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	count, err := readU32(br)
	if err != nil {
		return nil, fmt.Errorf("truncated journal count: %w", err)
	}

	entries := make([]journalEntry, 0, count)
	for i := uint32(0); i < count; i++ {
		e, err := decodeJournalEntry(br)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func encodeJournalEntry(w *bufio.Writer, e journalEntry) error {
	if err := writeUTF16String(w, e.OriginalPath); err != nil {
		return err
	}
	if err := writeUTF16String(w, e.QuarantinePath); err != nil {
		return err
	}
	if err := writeUTF16String(w, e.ThreatName); err != nil {
		return err
	}
	return writeU64(w, uint64(e.QuarantinedAt))
}

func decodeJournalEntry(r *bufio.Reader) (journalEntry, error) {
	original, err := readUTF16String(r)
	if err != nil {
		return journalEntry{}, fmt.Errorf("truncated original_path: %w", err)
	}
	quarantinePath, err := readUTF16String(r)
	if err != nil {
		return journalEntry{}, fmt.Errorf("truncated quarantine_path: %w", err)
	}
	threatName, err := readUTF16String(r)
	if err != nil {
		return journalEntry{}, fmt.Errorf("truncated threat_name: %w", err)
	}
	quarantinedAt, err := readU64(r)
	if err != nil {
		return journalEntry{}, fmt.Errorf("truncated quarantined_at: %w", err)
	}

	return journalEntry{
		OriginalPath:   original,
		QuarantinePath: quarantinePath,
		ThreatName:     threatName,
		QuarantinedAt:  int64(quarantinedAt),
	}, nil
}

func writeUTF16String(w io.Writer, s string) error {
	units := utf16.Encode([]rune(s))
	if err := writeU32(w, uint32(len(units))); err != nil {
		return err
	}
	for _, u := range units {
		if err := writeU16(w, u); err != nil {
			return err
		}
	}
	return nil
}

func readUTF16String(r io.Reader) (string, error) {
	n, err := readU32(r)
	if err != nil {
		return "", err
	}
	units := make([]uint16, n)
	for i := range units {
		u, err := readU16(r)
		if err != nil {
			return "", err
		}
		units[i] = u
	}
	return string(utf16.Decode(units)), nil
}

func readU32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func readU16(r io.Reader) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b[:]), nil
}

func readU64(r io.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

func writeU32(w io.Writer, v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func writeU16(w io.Writer, v uint16) error {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func writeU64(w io.Writer, v uint64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	_, err := w.Write(b[:])
	return err
}
