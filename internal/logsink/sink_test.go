package logsink

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LzdqesjG/BungeeLog/internal/domain"
)

func fakeClock(t *testing.T) *clockwork.FakeClock {
	t.Helper()
	return clockwork.NewFakeClockAt(time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC))
}

func newTestSink(t *testing.T, opts Options, clock clockwork.Clock) *Sink {
	t.Helper()
	sink, err := New(opts, clock)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sink.Close() })
	return sink
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestAppend_DailyNaming(t *testing.T) {
	dir := t.TempDir()
	sink := newTestSink(t, Options{Dir: dir, Daily: true}, fakeClock(t))

	require.NoError(t, sink.Append("first line"))

	path := filepath.Join(dir, "bungee-2024-03-15.log")
	assert.Equal(t, path, sink.Path())
	assert.Equal(t, "first line\n", readFile(t, path))
}

func TestAppend_FixedNameWhenDailyDisabled(t *testing.T) {
	dir := t.TempDir()
	clock := fakeClock(t)
	sink := newTestSink(t, Options{Dir: dir, Daily: false}, clock)

	require.NoError(t, sink.Append("one"))
	clock.Advance(48 * time.Hour)
	require.NoError(t, sink.Append("two"))

	assert.Equal(t, "one\ntwo\n", readFile(t, filepath.Join(dir, "bungee.log")))
}

func TestAppend_RotatesOnDateChange(t *testing.T) {
	dir := t.TempDir()
	clock := fakeClock(t)
	sink := newTestSink(t, Options{Dir: dir, Daily: true}, clock)

	require.NoError(t, sink.Append("yesterday"))
	clock.Advance(24 * time.Hour)
	require.NoError(t, sink.Append("today"))

	assert.Equal(t, "yesterday\n", readFile(t, filepath.Join(dir, "bungee-2024-03-15.log")))
	assert.Equal(t, "today\n", readFile(t, filepath.Join(dir, "bungee-2024-03-16.log")))
}

func TestPrune_KeepsMostRecentByModTime(t *testing.T) {
	dir := t.TempDir()
	clock := fakeClock(t)

	// Pre-existing rotated files, oldest first by mtime.
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range []string{"bungee-2024-03-01.log", "bungee-2024-03-02.log", "bungee-2024-03-03.log"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte("old\n"), 0o644))
		mtime := base.AddDate(0, 0, i)
		require.NoError(t, os.Chtimes(path, mtime, mtime))
	}

	// Opening the current file triggers pruning down to the two newest.
	newTestSink(t, Options{Dir: dir, Daily: true, MaxFiles: 2}, clock)

	assert.NoFileExists(t, filepath.Join(dir, "bungee-2024-03-01.log"))
	assert.NoFileExists(t, filepath.Join(dir, "bungee-2024-03-02.log"))
	assert.FileExists(t, filepath.Join(dir, "bungee-2024-03-03.log"))
	assert.FileExists(t, filepath.Join(dir, "bungee-2024-03-15.log"))
}

func TestPrune_DisabledWhenMaxFilesZero(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bungee-2024-01-01.log")
	require.NoError(t, os.WriteFile(path, []byte("old\n"), 0o644))

	newTestSink(t, Options{Dir: dir, Daily: true, MaxFiles: 0}, fakeClock(t))

	assert.FileExists(t, path)
}

func TestAppend_DegradedSinkIsNoOp(t *testing.T) {
	dir := t.TempDir()

	// Occupy the target directory path with a regular file so opening fails.
	blocked := filepath.Join(dir, "blocked")
	require.NoError(t, os.WriteFile(blocked, nil, 0o644))

	sink, err := New(Options{Dir: blocked, Daily: true}, fakeClock(t))
	require.Error(t, err)
	t.Cleanup(func() { _ = sink.Close() })

	assert.False(t, sink.Healthy())
	assert.ErrorIs(t, sink.Append("dropped"), domain.ErrSinkUnavailable)
}

func TestRotation_CompressesClosedFile(t *testing.T) {
	dir := t.TempDir()
	clock := fakeClock(t)
	sink := newTestSink(t, Options{Dir: dir, Daily: true, Compress: true}, clock)

	require.NoError(t, sink.Append("yesterday"))
	clock.Advance(24 * time.Hour)
	require.NoError(t, sink.Append("today"))

	assert.NoFileExists(t, filepath.Join(dir, "bungee-2024-03-15.log"))

	f, err := os.Open(filepath.Join(dir, "bungee-2024-03-15.log.gz"))
	require.NoError(t, err)
	defer f.Close()

	gr, err := gzip.NewReader(f)
	require.NoError(t, err)
	content, err := io.ReadAll(gr)
	require.NoError(t, err)
	assert.Equal(t, "yesterday\n", string(content))
}

func TestRun_PeriodicCheckRotates(t *testing.T) {
	dir := t.TempDir()
	clock := fakeClock(t)
	sink := newTestSink(t, Options{Dir: dir, Daily: true}, clock)

	require.NoError(t, sink.Append("yesterday"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sink.Run(ctx)

	// Wait for the rotation ticker to be armed, then cross midnight.
	clock.BlockUntil(1)
	clock.Advance(24 * time.Hour)

	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(dir, "bungee-2024-03-16.log"))
		return err == nil
	}, time.Second, 5*time.Millisecond)
}

func TestReconfigure_SwitchesNamingImmediately(t *testing.T) {
	dir := t.TempDir()
	clock := fakeClock(t)
	sink := newTestSink(t, Options{Dir: dir, Daily: true}, clock)

	require.NoError(t, sink.Reconfigure(Options{Dir: dir, Daily: false}))
	require.NoError(t, sink.Append("fixed"))

	assert.Equal(t, "fixed\n", readFile(t, filepath.Join(dir, "bungee.log")))
}
