package signatures

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileFallsBackToBootstrap(t *testing.T) {
	s := New(nil)
	err := s.Load(filepath.Join(t.TempDir(), "does-not-exist.db"))
	require.Error(t, err)

	snap := s.ActiveSnapshot()
	assert.GreaterOrEqual(t, snap.Len(), 3)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := New(nil)
	s.Replace([]Signature{
		{Name: "ONE", Pattern: []byte{0x01, 0x02}, Severity: 5, Anchor: Anchor{Fixed: true, Offset: 4}},
		{Name: "TWO", Pattern: []byte("floaty"), Severity: 1, Anchor: Anchor{Fixed: false}},
	})

	path := filepath.Join(t.TempDir(), "signatures.db")
	require.NoError(t, s.Save(path))

	loaded := New(nil)
	require.NoError(t, loaded.Load(path))

	before := s.ActiveSnapshot()
	after := loaded.ActiveSnapshot()

	require.Equal(t, before.Len(), after.Len())
	for i := range before.Signatures() {
		assert.Equal(t, before.Signatures()[i], after.Signatures()[i])
	}
}

func TestLoadRejectsBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.db")
	require.NoError(t, os.WriteFile(path, []byte("NOPE00000000"), 0o644))

	s := New(nil)
	err := s.Load(path)
	require.Error(t, err)
	var malformed *ErrMalformed
	assert.ErrorAs(t, err, &malformed)

	// Falls back to bootstrap rather than leaving the engine inert.
	assert.GreaterOrEqual(t, s.ActiveSnapshot().Len(), 3)
}

func TestLoadRejectsSeverityOutOfRange(t *testing.T) {
	s := New(nil)
	s.Replace([]Signature{{Name: "BAD", Pattern: []byte{0x1}, Severity: 11, Anchor: Anchor{Fixed: false}}})

	path := filepath.Join(t.TempDir(), "signatures.db")

	// Bypass Store.Save's severity-agnostic encode to write a genuinely
	// out-of-range record, then confirm Load rejects it.
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, encode(f, s.ActiveSnapshot().Signatures()))
	require.NoError(t, f.Close())

	loaded := New(nil)
	err = loaded.Load(path)
	require.Error(t, err)
}

func TestReplaceBumpsVersionAndOldSnapshotStaysValid(t *testing.T) {
	s := New(nil)
	old := s.ActiveSnapshot()

	v1 := s.Replace([]Signature{{Name: "A", Pattern: []byte{1}, Severity: 1, Anchor: Anchor{Fixed: false}}})
	assert.Equal(t, uint32(1), v1)

	// The reference taken before Replace is untouched.
	assert.Equal(t, 0, old.Len())
	assert.Equal(t, 1, s.ActiveSnapshot().Len())
}
