package scanner

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentineld/avengine/internal/quarantine"
	"github.com/sentineld/avengine/internal/signatures"
	"github.com/sentineld/avengine/internal/threatengine"
)

func newTestScanner(t *testing.T, opts Options) *Scanner {
	t.Helper()
	sigStore := signatures.New(nil)
	sigStore.Replace([]signatures.Signature{
		{
			Name:     "TEST.EICAR",
			Pattern:  []byte(`X5O!P%@AP[4\PZX54(P^)`),
			Severity: 10,
			Anchor:   signatures.Anchor{Fixed: false},
		},
	})
	qStore, err := quarantine.Open(filepath.Join(t.TempDir(), "quarantine"), nil)
	require.NoError(t, err)

	engine := threatengine.New(sigStore, qStore, nil)
	return New(engine, opts, nil)
}

func TestScanFolderFindsThreatsAndCountsTotals(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "clean.txt"), []byte("hello"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "evil.txt"), []byte(`X5O!P%@AP[4\PZX54(P^)`), 0o644))

	s := newTestScanner(t, DefaultOptions())
	result := s.ScanFolder(root)

	assert.Equal(t, Success, result.Outcome)
	require.Len(t, result.Findings, 1)
	assert.Equal(t, "TEST.EICAR", result.Findings[0].RuleName)

	stats := s.Statistics()
	assert.Equal(t, int64(2), stats.TotalFiles)
	assert.Equal(t, int64(2), stats.ScannedFiles)
	assert.Equal(t, int64(0), stats.SkippedFiles)
}

func TestScanFolderSkipsOversizedAndDisallowedExtensions(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "big.bin"), make([]byte, 2048), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "small.bin"), make([]byte, 10), 0o644))

	opts := DefaultOptions()
	opts.MaxFileSize = 1024
	opts.Extensions = []string{".bin"}

	s := newTestScanner(t, opts)
	result := s.ScanFolder(root)

	assert.Equal(t, Success, result.Outcome)
	stats := s.Statistics()
	assert.Equal(t, int64(2), stats.TotalFiles)
	assert.Equal(t, int64(1), stats.ScannedFiles)
	assert.Equal(t, int64(1), stats.SkippedFiles)
}

func TestScanFolderExclusionPrefix(t *testing.T) {
	root := t.TempDir()
	excluded := filepath.Join(root, "tmp")
	require.NoError(t, os.MkdirAll(excluded, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(excluded, "a.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.txt"), []byte("y"), 0o644))

	opts := DefaultOptions()
	opts.ExclusionPrefixes = []string{excluded}

	s := newTestScanner(t, opts)
	result := s.ScanFolder(root)

	assert.Equal(t, Success, result.Outcome)
	stats := s.Statistics()
	assert.Equal(t, int64(1), stats.ScannedFiles)
	assert.Equal(t, int64(1), stats.SkippedFiles)
}

func TestProgressIsNonDecreasingAndEndsAt100(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(
			filepath.Join(root, string(rune('a'+i))+".txt"), []byte("x"), 0o644))
	}

	s := newTestScanner(t, DefaultOptions())

	var percents []int
	s.SetProgressCallback(func(path string, percent int, stats Statistics) {
		percents = append(percents, percent)
	})

	result := s.ScanFolder(root)
	require.Equal(t, Success, result.Outcome)
	require.NotEmpty(t, percents)

	last := -1
	for _, p := range percents {
		assert.LessOrEqual(t, last, p)
		assert.LessOrEqual(t, p, 100)
		last = p
	}
	assert.Equal(t, 100, percents[len(percents)-1])
}

func TestCancelStopsEnumerationAndReportsPartialFindings(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 20; i++ {
		require.NoError(t, os.WriteFile(
			filepath.Join(root, "f"+string(rune('a'+i))+".txt"), []byte("x"), 0o644))
	}

	s := newTestScanner(t, DefaultOptions())
	s.SetProgressCallback(func(path string, percent int, stats Statistics) {
		if stats.ScannedFiles >= 3 {
			s.Cancel()
		}
	})

	result := s.ScanFolder(root)
	assert.Equal(t, Cancelled, result.Outcome)
}

func TestStartAsyncRejectsConcurrentScan(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("x"), 0o644))

	s := newTestScanner(t, DefaultOptions())

	accepted := s.StartAsync(KindFolder, []string{root})
	require.True(t, accepted)

	second := s.StartAsync(KindFolder, []string{root})
	assert.False(t, second)

	require.Eventually(t, func() bool { return !s.IsScanning() }, time.Second, time.Millisecond)

	result, ok := s.LastAsyncResult()
	require.True(t, ok)
	assert.Equal(t, Success, result.Outcome)
}

func TestScanFileFailsForMissingTarget(t *testing.T) {
	s := newTestScanner(t, DefaultOptions())
	result := s.ScanFile(filepath.Join(t.TempDir(), "does-not-exist.bin"))
	assert.Equal(t, Failed, result.Outcome)
}
