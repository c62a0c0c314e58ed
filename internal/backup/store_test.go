package backup

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStores(t *testing.T) map[string]Store {
	dir, err := NewDirStore(filepath.Join(t.TempDir(), "mirror"))
	require.NoError(t, err)
	return map[string]Store{
		"memory": NewMemoryStore(),
		"dir":    dir,
	}
}

func TestStore_PutGet(t *testing.T) {
	ctx := context.Background()
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			data := []byte(`{"id":"x"}`)
			require.NoError(t, s.Put(ctx, "photos", "abc/record.json", bytes.NewReader(data), int64(len(data)), "application/json"))

			rc, err := s.Get(ctx, "photos", "abc/record.json")
			require.NoError(t, err)
			got, err := io.ReadAll(rc)
			require.NoError(t, rc.Close())
			require.NoError(t, err)
			assert.Equal(t, data, got)

			// Put replaces.
			require.NoError(t, s.Put(ctx, "photos", "abc/record.json", strings.NewReader("v2"), 2, "application/json"))
			rc, err = s.Get(ctx, "photos", "abc/record.json")
			require.NoError(t, err)
			got, _ = io.ReadAll(rc)
			rc.Close()
			assert.Equal(t, "v2", string(got))
		})
	}
}

func TestStore_GetMissing(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get(context.Background(), "photos", "nope/file")
			assert.ErrorIs(t, err, ErrObjectNotFound)
		})
	}
}

func TestStore_ShortRead(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			err := s.Put(context.Background(), "videos", "id/file", strings.NewReader("abc"), 10, "application/octet-stream")
			assert.Error(t, err)
			_, err = s.Get(context.Background(), "videos", "id/file")
			assert.ErrorIs(t, err, ErrObjectNotFound)
		})
	}
}

func TestStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			err := s.Put(ctx, "photos", "id/file", strings.NewReader("x"), 1, "")
			assert.ErrorIs(t, err, context.Canceled)
		})
	}
}

func TestObjectPath_RejectsEscapes(t *testing.T) {
	bad := [][2]string{
		{"", "k"},
		{"photos", ""},
		{"..", "k"},
		{"photos", "../../etc/passwd"},
		{"photos", "/abs"},
		{"photos", "a//b"},
		{"photos", `a\b`},
	}
	for _, c := range bad {
		_, err := ObjectPath(c[0], c[1])
		assert.ErrorIs(t, err, ErrInvalidKey, "%q/%q", c[0], c[1])
	}

	p, err := ObjectPath("photos", "id/file")
	require.NoError(t, err)
	assert.Equal(t, "photos/id/file", p)
}

func TestDirStore_Layout(t *testing.T) {
	root := filepath.Join(t.TempDir(), "mirror")
	s, err := NewDirStore(root)
	require.NoError(t, err)

	require.NoError(t, s.Put(context.Background(), "screenshots", "id-1/file", strings.NewReader("png"), 3, "image/png"))
	data, err := os.ReadFile(filepath.Join(root, "screenshots", "id-1", "file"))
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))

	entries, err := os.ReadDir(filepath.Join(root, "screenshots", "id-1"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files left behind")
}

func TestMemoryStore_FailPut(t *testing.T) {
	s := NewMemoryStore()
	boom := errors.New("network unreachable")
	s.FailPut = func(container, key string) error {
		if strings.HasSuffix(key, "/file") {
			return boom
		}
		return nil
	}

	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "audio_recordings", "id/record.json", strings.NewReader("{}"), 2, "application/json"))
	assert.ErrorIs(t, s.Put(ctx, "audio_recordings", "id/file", strings.NewReader("x"), 1, ""), boom)
	assert.Equal(t, []string{"audio_recordings/id/record.json"}, s.Paths())
	assert.Equal(t, 1, s.Puts())
}
