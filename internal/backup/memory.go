package backup

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
)

// Object is a stored MemoryStore entry.
type Object struct {
	Data        []byte
	ContentType string
}

// MemoryStore implements Store in memory. It is safe for concurrent use.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string]Object
	puts    int

	// FailPut, when set, is consulted before every Put; a non-nil result is
	// returned instead of storing the object.
	FailPut func(container, key string) error
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]Object)}
}

// Put implements Store.
func (s *MemoryStore) Put(ctx context.Context, container, key string, r io.Reader, size int64, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name, err := ObjectPath(container, key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	fail := s.FailPut
	s.mu.Unlock()
	if fail != nil {
		if err := fail(container, key); err != nil {
			return err
		}
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("put %s: %w", name, err)
	}
	if size >= 0 && int64(len(data)) != size {
		return fmt.Errorf("put %s: read %d bytes, want %d", name, len(data), size)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[name] = Object{Data: data, ContentType: contentType}
	s.puts++
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, container, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name, err := ObjectPath(container, key)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, name)
	}
	return io.NopCloser(bytes.NewReader(obj.Data)), nil
}

// Object returns a stored object by its full path.
func (s *MemoryStore) Object(path string) (Object, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[path]
	return obj, ok
}

// Corrupt replaces the bytes stored at path.
func (s *MemoryStore) Corrupt(path string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj := s.objects[path]
	obj.Data = data
	s.objects[path] = obj
}

// Paths lists stored object paths in sorted order.
func (s *MemoryStore) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.objects))
	for p := range s.objects {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Puts returns the number of successful Put calls.
func (s *MemoryStore) Puts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.puts
}
