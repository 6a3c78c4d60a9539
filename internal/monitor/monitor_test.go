package monitor

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

func TestAdmitRejectsTempAndSystemStorePaths(t *testing.T) {
	assert.False(t, admit(`C:\Users\bob\AppData\Local\Temp\x.exe`))
	assert.False(t, admit("/var/tmp/x.exe"))
	assert.False(t, admit(`C:\Windows\WinSxS\thing.dll`))
	assert.True(t, admit("/home/bob/payload.exe"))
}

func TestAdmitRejectsDeniedExtensions(t *testing.T) {
	assert.False(t, admit("/home/bob/notes.txt"))
	assert.False(t, admit("/home/bob/app.log"))
	assert.True(t, admit("/home/bob/app.exe"))
}

func TestPriorityForClassTable(t *testing.T) {
	assert.Equal(t, 10, priorityFor("a.exe"))
	assert.Equal(t, 7, priorityFor("a.ps1"))
	assert.Equal(t, 5, priorityFor("a.docx"))
	assert.Equal(t, 3, priorityFor("a.zip"))
	assert.Equal(t, 1, priorityFor("a.csv"))
}

func TestPriorityQueueOrdersByPriorityThenEnqueueTime(t *testing.T) {
	q := newPriorityQueue()

	q.Push(Request{Path: "low-first", Priority: 1, EnqueuedAt: time.Unix(1, 0)})
	q.Push(Request{Path: "high", Priority: 10, EnqueuedAt: time.Unix(2, 0)})
	q.Push(Request{Path: "low-second", Priority: 1, EnqueuedAt: time.Unix(3, 0)})

	first, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, "high", first.Path)

	second, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, "low-first", second.Path)

	third, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, "low-second", third.Path)
}

func TestPriorityQueuePopBlocksThenClosed(t *testing.T) {
	q := newPriorityQueue()

	done := make(chan bool, 1)
	go func() {
		_, ok := q.Pop()
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Pop did not unblock on Close")
	}
}

// tempWorkDir creates a scratch directory under the package's working
// directory rather than the OS temp dir, since paths under the OS temp
// dir are themselves rejected by the admission filter under test.
func tempWorkDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp(".", "monitor-test-")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

func newTestMonitor(t *testing.T) *Monitor {
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
			Name:     "GENERIC.LOWSEV",
			Pattern:  []byte("not-that-bad"),
			Severity: 4,
			Anchor:   signatures.Anchor{Fixed: false},
		},
	})
	qStore, err := quarantine.Open(filepath.Join(t.TempDir(), "quarantine"), nil)
	require.NoError(t, err)

	engine := threatengine.New(sigStore, qStore, nil)
	m := New(engine, nil)
	m.SetScanDelay(0)
	return m
}

func TestWorkerAutoQuarantinesHighSeverityFinding(t *testing.T) {
	m := newTestMonitor(t)
	dir := tempWorkDir(t)
	path := filepath.Join(dir, "evil.exe")
	require.NoError(t, os.WriteFile(path, []byte(`X5O!P%@AP[4\PZX54(P^)`), 0o644))

	events := make(chan ThreatEvent, 1)
	m.SetThreatCallback(func(e ThreatEvent) { events <- e })

	m.Initialize()
	defer m.Shutdown()

	require.True(t, m.Enqueue(path))

	select {
	case e := <-events:
		assert.Equal(t, "TEST.EICAR", e.Finding.RuleName)
		assert.True(t, e.AutoQuarantined)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for threat event")
	}
}

func TestWorkerDoesNotAutoQuarantineLowSeverityFinding(t *testing.T) {
	m := newTestMonitor(t)
	dir := tempWorkDir(t)
	path := filepath.Join(dir, "suspect.exe")
	require.NoError(t, os.WriteFile(path, []byte("not-that-bad"), 0o644))

	events := make(chan ThreatEvent, 1)
	m.SetThreatCallback(func(e ThreatEvent) { events <- e })

	m.Initialize()
	defer m.Shutdown()

	require.True(t, m.Enqueue(path))

	select {
	case e := <-events:
		assert.Equal(t, "GENERIC.LOWSEV", e.Finding.RuleName)
		assert.False(t, e.AutoQuarantined)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for threat event")
	}

	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestShutdownRejectsNewEnqueues(t *testing.T) {
	m := newTestMonitor(t)
	m.Initialize()
	m.Shutdown()

	assert.False(t, m.IsRunning())
	assert.False(t, m.Enqueue("/home/bob/payload.exe"))
}

func TestAddWatchDiscoversExistingFile(t *testing.T) {
	m := newTestMonitor(t)
	dir := tempWorkDir(t)
	path := filepath.Join(dir, "evil.exe")
	require.NoError(t, os.WriteFile(path, []byte(`X5O!P%@AP[4\PZX54(P^)`), 0o644))

	m.SetPollInterval(20 * time.Millisecond)

	events := make(chan ThreatEvent, 1)
	m.SetThreatCallback(func(e ThreatEvent) { events <- e })

	m.Initialize()
	defer m.Shutdown()
	m.AddWatch(dir)

	select {
	case e := <-events:
		assert.Equal(t, "TEST.EICAR", e.Finding.RuleName)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for watch to discover file")
	}
}
