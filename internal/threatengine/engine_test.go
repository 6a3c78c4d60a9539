package threatengine

import (
	"crypto/sha256"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentineld/avengine/internal/quarantine"
	"github.com/sentineld/avengine/internal/signatures"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	sigStore := signatures.New(nil)
	sigStore.Replace([]signatures.Signature{
		{
			Name:     "TEST.EICAR",
			Pattern:  []byte(`X5O!P%@AP[4\PZX54(P^)`),
			Severity: 10,
			Anchor:   signatures.Anchor{Fixed: false},
		},
		{
			Name:     "PE.MAGIC",
			Pattern:  []byte{0x4D, 0x5A},
			Severity: 3,
			Anchor:   signatures.Anchor{Fixed: true, Offset: 0},
		},
	})

	qStore, err := quarantine.Open(filepath.Join(t.TempDir(), "quarantine"), nil)
	require.NoError(t, err)

	return New(sigStore, qStore, nil)
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func repeat(n int, b byte) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = b
	}
	return out
}

func TestScanPathFloatingSignatureMatch(t *testing.T) {
	e := newTestEngine(t)
	dir := t.TempDir()

	path := writeFile(t, dir, "eicar.txt", []byte(`X5O!P%@AP[4\PZX54(P^)`+"\n"))

	finding, err := e.ScanPath(path)
	require.NoError(t, err)
	require.NotNil(t, finding)
	assert.Equal(t, "TEST.EICAR", finding.RuleName)
	assert.Equal(t, 10, finding.Severity)
}

func TestScanPathFixedOffsetMatchAndMiss(t *testing.T) {
	e := newTestEngine(t)
	dir := t.TempDir()

	match := append([]byte("MZ"), repeat(4096, 0xAB)...)
	matchPath := writeFile(t, dir, "a.exe", match)

	finding, err := e.ScanPath(matchPath)
	require.NoError(t, err)
	require.NotNil(t, finding)
	assert.Equal(t, "PE.MAGIC", finding.RuleName)
	assert.Equal(t, 3, finding.Severity)

	miss := append([]byte("ZZMZ"), repeat(4096, 0xAB)...)
	missPath := writeFile(t, dir, "b.bin", miss)

	finding, err = e.ScanPath(missPath)
	require.NoError(t, err)
	assert.Nil(t, finding)
}

func TestScanPathTinyExecutableHeuristic(t *testing.T) {
	e := newTestEngine(t)
	dir := t.TempDir()

	// 512 bytes of low-entropy, signature-free content.
	path := writeFile(t, dir, "tiny.exe", repeat(512, 'a'))

	finding, err := e.ScanPath(path)
	require.NoError(t, err)
	require.NotNil(t, finding)
	assert.Equal(t, "TINY_EXECUTABLE", finding.RuleName)
	assert.Equal(t, 6, finding.Severity)
}

func TestScanPathSuspiciousStringHeuristic(t *testing.T) {
	e := newTestEngine(t)
	dir := t.TempDir()

	path := writeFile(t, dir, "note.txt",
		[]byte("your files have been encrypted, pay up or lose everything"))

	finding, err := e.ScanPath(path)
	require.NoError(t, err)
	require.NotNil(t, finding)
	assert.Equal(t, "SUSPICIOUS_STRING", finding.RuleName)
	assert.Equal(t, 5, finding.Severity)
}

func TestScanPathZeroByteFileIsClean(t *testing.T) {
	e := newTestEngine(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "empty.bin", nil)

	finding, err := e.ScanPath(path)
	assert.NoError(t, err)
	assert.Nil(t, finding)
}

func TestScanPathRespectsMaxFileSizeBoundary(t *testing.T) {
	e := newTestEngine(t)
	e.SetMaxFileSize(1024)
	dir := t.TempDir()

	atLimit := writeFile(t, dir, "atlimit.bin", repeat(1024, 'x'))
	_, err := e.ScanPath(atLimit)
	assert.NoError(t, err)

	overLimit := writeFile(t, dir, "overlimit.bin", repeat(1025, 'x'))
	_, err = e.ScanPath(overLimit)
	require.Error(t, err)
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, TooLarge, kind)
}

func TestScanPathWithHeuristicsDisabledIsClean(t *testing.T) {
	e := newTestEngine(t)
	e.Configure(false)
	dir := t.TempDir()
	path := writeFile(t, dir, "tiny.exe", repeat(512, 'a'))

	finding, err := e.ScanPath(path)
	assert.NoError(t, err)
	assert.Nil(t, finding)
}

func TestScanDirectoryFindsNestedThreat(t *testing.T) {
	e := newTestEngine(t)
	root := t.TempDir()
	sub := filepath.Join(root, "nested")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	writeFile(t, root, "clean.txt", []byte("nothing to see here"))
	writeFile(t, sub, "eicar.txt", []byte(`X5O!P%@AP[4\PZX54(P^)`))

	findings, err := e.ScanDirectory(root)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "TEST.EICAR", findings[0].RuleName)
}

func TestQuarantineRestoreRoundTripReproducesFinding(t *testing.T) {
	e := newTestEngine(t)
	dir := t.TempDir()

	content := []byte(`X5O!P%@AP[4\PZX54(P^)`)
	path := writeFile(t, dir, "eicar.txt", content)
	wantHash := sha256.Sum256(content)

	finding, err := e.ScanPath(path)
	require.NoError(t, err)
	require.NotNil(t, finding)

	entry, err := e.Quarantine(path, finding.RuleName)
	require.NoError(t, err)

	restoredPath := filepath.Join(dir, "restored.txt")
	require.NoError(t, e.Restore(entry.ID, restoredPath))

	restored, err := os.ReadFile(restoredPath)
	require.NoError(t, err)
	assert.Equal(t, wantHash, sha256.Sum256(restored))

	again, err := e.ScanPath(restoredPath)
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, finding.RuleName, again.RuleName)
	assert.Equal(t, finding.Severity, again.Severity)
}
