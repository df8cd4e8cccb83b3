package auditlog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/pinsweeper/internal/pins"
)

type fakeRemote struct {
	mu       sync.Mutex
	writeErr error
	listErr  error
	docs     map[string]pins.LogEntry
	order    []string
}

func newFakeRemote() *fakeRemote { return &fakeRemote{docs: map[string]pins.LogEntry{}} }

func (f *fakeRemote) Name() string { return "firestore" }

func (f *fakeRemote) WriteLog(ctx context.Context, docID string, e pins.LogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	e.ID = docID
	f.docs[docID] = e
	f.order = append(f.order, docID)
	return nil
}

func (f *fakeRemote) ListLogs(ctx context.Context) ([]pins.LogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]pins.LogEntry, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, f.docs[id])
	}
	return out, nil
}

func entry(pinID string) pins.LogEntry {
	return pins.LogEntry{ID: "ts-" + pinID, Timestamp: "ts-" + pinID, PinID: pinID, Fields: map[string]any{"title": pinID}}
}

func TestFileMissingReadsEmpty(t *testing.T) {
	f := NewFile(filepath.Join(t.TempDir(), "deleted_pins_log.json"))
	entries, found, err := f.Read()
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, entries)
}

func TestFileAppendAcrossInstancesKeepsOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deleted_pins_log.json")
	for _, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, NewFile(path).Append(entry(id)))
	}

	entries, found, err := NewFile(path).Read()
	require.NoError(t, err)
	assert.True(t, found)
	require.Len(t, entries, 4)
	for i, id := range []string{"a", "b", "c", "d"} {
		assert.Equal(t, id, entries[i].PinID)
	}
}

func TestFileIsIndentedJSONArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.json")
	require.NoError(t, NewFile(path).Append(entry("a")))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, byte('['), b[0])
	assert.Contains(t, string(b), "\n  {")
	assert.NotContains(t, string(b), "imageUrl")
}

func TestFileAppendRecoversFromCorruptLog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "log.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	f := NewFile(path)
	_, found, err := f.Read()
	assert.True(t, found)
	assert.ErrorIs(t, err, errCorrupt)

	require.NoError(t, f.Append(entry("a")))
	entries, _, err := f.Read()
	require.NoError(t, err)
	require.Len(t, entries, 1)

	matches, _ := filepath.Glob(path + ".corrupt-*")
	assert.Len(t, matches, 1)
}

func TestFileAppendLeavesUnreadableLogAlone(t *testing.T) {
	dir := t.TempDir()

	// a directory where the log should be
	path := filepath.Join(dir, "log.json")
	require.NoError(t, os.Mkdir(path, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(path, "keep"), []byte("x"), 0o644))

	err := NewFile(path).Append(entry("a"))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, errCorrupt)
	info, statErr := os.Stat(path)
	require.NoError(t, statErr)
	assert.True(t, info.IsDir())
	assert.FileExists(t, filepath.Join(path, "keep"))

	// parent is a regular file
	parent := filepath.Join(dir, "not-a-dir")
	require.NoError(t, os.WriteFile(parent, []byte("x"), 0o644))
	assert.Error(t, NewFile(filepath.Join(parent, "log.json")).Append(entry("b")))

	matches, _ := filepath.Glob(filepath.Join(dir, "*.corrupt-*"))
	assert.Empty(t, matches)
}

func TestFileEmptyContentIsEmptyLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.json")
	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0o644))

	entries, found, err := NewFile(path).Read()
	require.NoError(t, err)
	assert.True(t, found)
	assert.Empty(t, entries)
}

func TestFileConcurrentAppends(t *testing.T) {
	f := NewFile(filepath.Join(t.TempDir(), "log.json"))
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, f.Append(entry(string(rune('a'+i)))))
		}(i)
	}
	wg.Wait()

	entries, _, err := f.Read()
	require.NoError(t, err)
	assert.Len(t, entries, 20)
}

func TestWriterRemoteFailureStillWritesLocal(t *testing.T) {
	remote := newFakeRemote()
	remote.writeErr = errors.New("permission denied")
	local := NewFile(filepath.Join(t.TempDir(), "log.json"))

	out := NewWriter(remote, local).Record(context.Background(), entry("a"))
	assert.Error(t, out.RemoteErr)
	assert.NoError(t, out.LocalErr)
	assert.NotContains(t, out.DocID, ":")
	assert.NotContains(t, out.DocID, ".")

	entries, _, err := local.Read()
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWriterWritesBothSinks(t *testing.T) {
	remote := newFakeRemote()
	local := NewFile(filepath.Join(t.TempDir(), "log.json"))
	w := NewWriter(remote, local)

	out := w.Record(context.Background(), entry("a"))
	require.NoError(t, out.RemoteErr)
	require.NoError(t, out.LocalErr)
	assert.Contains(t, remote.docs, out.DocID)

	// no deduplication
	w.Record(context.Background(), entry("a"))
	entries, _, _ := local.Read()
	assert.Len(t, entries, 2)
}

func TestWriterWithoutRemote(t *testing.T) {
	local := NewFile(filepath.Join(t.TempDir(), "log.json"))
	out := NewWriter(nil, local).Record(context.Background(), entry("a"))
	assert.NoError(t, out.RemoteErr)
	assert.NoError(t, out.LocalErr)
}

func TestReaderPrefersRemote(t *testing.T) {
	remote := newFakeRemote()
	require.NoError(t, remote.WriteLog(context.Background(), "d1", entry("a")))
	local := NewFile(filepath.Join(t.TempDir(), "log.json"))
	require.NoError(t, local.Append(entry("x")))
	require.NoError(t, local.Append(entry("y")))

	snap, err := NewReader(remote, local).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "firestore", snap.Source)
	require.Len(t, snap.Entries, 1)
	assert.Equal(t, "d1", snap.Entries[0].ID)
}

func TestReaderFallsBackToLocal(t *testing.T) {
	remote := newFakeRemote()
	remote.listErr = errors.New("unavailable")
	local := NewFile(filepath.Join(t.TempDir(), "log.json"))
	require.NoError(t, local.Append(entry("x")))
	require.NoError(t, local.Append(entry("y")))

	snap, err := NewReader(remote, local).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "local file (firestore unavailable)", snap.Source)
	assert.Len(t, snap.Entries, 2)
}

func TestReaderEmptyEverywhere(t *testing.T) {
	remote := newFakeRemote()
	remote.listErr = errors.New("unavailable")
	local := NewFile(filepath.Join(t.TempDir(), "log.json"))

	snap, err := NewReader(remote, local).Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.Source)
	assert.NotNil(t, snap.Entries)
	assert.Empty(t, snap.Entries)

	snap, err = NewReader(newFakeRemote(), local).Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.Source)
	assert.Empty(t, snap.Entries)
}

func TestReaderCorruptLocalIsError(t *testing.T) {
	remote := newFakeRemote()
	remote.listErr = errors.New("unavailable")
	path := filepath.Join(t.TempDir(), "log.json")
	require.NoError(t, os.WriteFile(path, []byte("[{"), 0o644))

	_, err := NewReader(remote, NewFile(path)).Load(context.Background())
	assert.Error(t, err)
}
