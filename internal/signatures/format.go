package signatures

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"unicode/utf16"
)

// magic identifies the on-disk signature database format.
var magic = [4]byte{'S', 'I', 'G', 'S'}

const (
	formatVersion  = uint32(1)
	headerSize     = 12
	floatingOffset = int32(-1)
)

// ErrMalformed indicates the database file is truncated or otherwise
// unreadable as a valid signature database.
type ErrMalformed struct {
	Reason string
}

func (e *ErrMalformed) Error() string {
	return fmt.Sprintf("malformed signature database: %s", e.Reason)
}

// Anchor describes where a signature's pattern must occur in a file.
type Anchor struct {
	Fixed  bool
	Offset int // valid only when Fixed is true
}

// Floating reports whether the anchor matches anywhere in the buffer.
func (a Anchor) Floating() bool { return !a.Fixed }

// Signature is a single named detection rule.
type Signature struct {
	Name     string
	Pattern  []byte
	Severity int
	Anchor   Anchor
}

func validateSeverity(s int) error {
	if s < 1 || s > 10 {
		return &ErrMalformed{Reason: fmt.Sprintf("severity %d out of range 1..10", s)}
	}
	return nil
}

// decode reads a signature database from r: a 12-byte header followed
// by length-prefixed records, in file order.
func decode(r io.Reader) ([]Signature, uint32, error) {
	br := bufio.NewReader(r)

	var hdr [headerSize]byte
	if _, err := io.ReadFull(br, hdr[:]); err != nil {
		return nil, 0, &ErrMalformed{Reason: "truncated header"}
	}
	if hdr[0] != magic[0] || hdr[1] != magic[1] || hdr[2] != magic[2] || hdr[3] != magic[3] {
		return nil, 0, &ErrMalformed{Reason: "bad magic"}
	}
	version := binary.LittleEndian.Uint32(hdr[4:8])
	count := binary.LittleEndian.Uint32(hdr[8:12])

	sigs := make([]Signature, 0, count)
	for i := uint32(0); i < count; i++ {
		sig, err := decodeRecord(br)
		if err != nil {
			return nil, 0, err
		}
		sigs = append(sigs, sig)
	}
	return sigs, version, nil
}

func decodeRecord(br *bufio.Reader) (Signature, error) {
	nameLen, err := readU32(br)
	if err != nil {
		return Signature{}, &ErrMalformed{Reason: "truncated name length"}
	}
	nameUnits := make([]uint16, nameLen)
	for i := range nameUnits {
		u, err := readU16(br)
		if err != nil {
			return Signature{}, &ErrMalformed{Reason: "truncated name"}
		}
		nameUnits[i] = u
	}
	name := string(utf16.Decode(nameUnits))

	severity, err := readU32(br)
	if err != nil {
		return Signature{}, &ErrMalformed{Reason: "truncated severity"}
	}
	if err := validateSeverity(int(severity)); err != nil {
		return Signature{}, err
	}

	patLen, err := readU32(br)
	if err != nil {
		return Signature{}, &ErrMalformed{Reason: "truncated pattern length"}
	}
	pattern := make([]byte, patLen)
	if _, err := io.ReadFull(br, pattern); err != nil {
		return Signature{}, &ErrMalformed{Reason: "truncated pattern"}
	}

	anchorRaw, err := readI32(br)
	if err != nil {
		return Signature{}, &ErrMalformed{Reason: "truncated anchor"}
	}

	anchor := Anchor{}
	if anchorRaw == floatingOffset {
		anchor.Fixed = false
	} else if anchorRaw >= 0 {
		anchor.Fixed = true
		anchor.Offset = int(anchorRaw)
	} else {
		return Signature{}, &ErrMalformed{Reason: "invalid anchor offset"}
	}

	return Signature{
		Name:     name,
		Pattern:  pattern,
		Severity: int(severity),
		Anchor:   anchor,
	}, nil
}

// encode writes sigs to w in the on-disk format, preserving order so
// that a save-then-load round-trip is byte-identical when no signature
// was mutated.
func encode(w io.Writer, sigs []Signature) error {
	bw := bufio.NewWriter(w)

	var hdr [headerSize]byte
	copy(hdr[0:4], magic[:])
	binary.LittleEndian.PutUint32(hdr[4:8], formatVersion)
	binary.LittleEndian.PutUint32(hdr[8:12], uint32(len(sigs)))
	if _, err := bw.Write(hdr[:]); err != nil {
		return err
	}

	for _, sig := range sigs {
		if err := encodeRecord(bw, sig); err != nil {
			return err
		}
	}

	return bw.Flush()
}

func encodeRecord(bw *bufio.Writer, sig Signature) error {
	units := utf16.Encode([]rune(sig.Name))
	if err := writeU32(bw, uint32(len(units))); err != nil {
		return err
	}
	for _, u := range units {
		if err := writeU16(bw, u); err != nil {
			return err
		}
	}

	if err := writeU32(bw, uint32(sig.Severity)); err != nil {
		return err
	}

	if err := writeU32(bw, uint32(len(sig.Pattern))); err != nil {
		return err
	}
	if _, err := bw.Write(sig.Pattern); err != nil {
		return err
	}

	anchorRaw := floatingOffset
	if sig.Anchor.Fixed {
		anchorRaw = int32(sig.Anchor.Offset)
	}
	return writeI32(bw, anchorRaw)
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

func readI32(r io.Reader) (int32, error) {
	u, err := readU32(r)
	return int32(u), err
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

func writeI32(w io.Writer, v int32) error {
	return writeU32(w, uint32(v))
}
