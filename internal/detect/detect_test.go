package detect

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/custodian/internal/record"
)

func receive(t *testing.T, ch <-chan Artifact) Artifact {
	t.Helper()
	select {
	case a, ok := <-ch:
		require.True(t, ok, "channel closed")
		return a
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for artifact")
		return Artifact{}
	}
}

func TestPoller_EmitsNewStableFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Screenshot old.png"), []byte("old"), 0o600))

	p := &Poller{Dir: dir, Patterns: []string{"Screenshot*.png", "Screen Shot*.png"}, Interval: 10 * time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := p.Watch(ctx)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Screen Shot 2025-03-14.png"), []byte("png!"), 0o600))

	a := receive(t, ch)
	assert.Equal(t, filepath.Join(dir, "Screen Shot 2025-03-14.png"), a.Path)
	assert.Equal(t, record.KindScreenshot, a.Kind)
	assert.Equal(t, int64(4), a.Size)

	cancel()
	for range ch {
	}
}

func TestPoller_SkipsEmptyFilesUntilWritten(t *testing.T) {
	dir := t.TempDir()
	p := &Poller{Dir: dir, Patterns: []string{"*.png"}, Interval: 10 * time.Millisecond, Kind: record.KindPhoto}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := p.Watch(ctx)
	require.NoError(t, err)

	path := filepath.Join(dir, "capture.png")
	require.NoError(t, os.WriteFile(path, nil, 0o600))
	time.Sleep(50 * time.Millisecond)
	select {
	case a := <-ch:
		t.Fatalf("empty file emitted: %+v", a)
	default:
	}

	require.NoError(t, os.WriteFile(path, []byte("done"), 0o600))
	a := receive(t, ch)
	assert.Equal(t, path, a.Path)
	assert.Equal(t, record.KindPhoto, a.Kind)
}

func TestPoller_InvalidConfig(t *testing.T) {
	_, err := (&Poller{Dir: t.TempDir(), Patterns: []string{"*"}}).Watch(context.Background())
	assert.Error(t, err)

	_, err = (&Poller{Dir: t.TempDir(), Patterns: []string{"["}, Interval: time.Second}).Watch(context.Background())
	assert.Error(t, err)

	_, err = (&Poller{Dir: filepath.Join(t.TempDir(), "missing"), Interval: time.Second}).Watch(context.Background())
	assert.Error(t, err)
}

func TestNotifier(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.mov")
	require.NoError(t, os.WriteFile(path, []byte("movie"), 0o600))

	n := NewNotifier()
	assert.ErrorIs(t, n.Notify(context.Background(), path, record.KindVideo), ErrNotWatching)

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := n.Watch(ctx)
	require.NoError(t, err)

	_, err = n.Watch(ctx)
	assert.Error(t, err, "only one watch at a time")

	errc := make(chan error, 1)
	go func() { errc <- n.Notify(context.Background(), path, record.KindVideo) }()

	a := receive(t, ch)
	assert.Equal(t, path, a.Path)
	assert.Equal(t, record.KindVideo, a.Kind)
	assert.Equal(t, int64(5), a.Size)
	require.NoError(t, <-errc)

	// Duplicates are dropped without blocking.
	assert.NoError(t, n.Notify(context.Background(), path, record.KindVideo))

	cancel()
	_, ok := <-ch
	assert.False(t, ok, "channel closes when the watch ends")
}

func TestNotifier_MissingFile(t *testing.T) {
	n := NewNotifier()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, err := n.Watch(ctx)
	require.NoError(t, err)

	assert.Error(t, n.Notify(ctx, filepath.Join(t.TempDir(), "none.png"), record.KindScreenshot))
}

var _ Detector = (*Poller)(nil)
var _ Detector = (*Notifier)(nil)
