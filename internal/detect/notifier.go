package detect

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/roach88/custodian/internal/record"
)

// ErrNotWatching is returned by Notify when no Watch is active.
var ErrNotWatching = errors.New("detect: notifier is not watching")

// Notifier is a push-driven Detector. Capture collaborators call Notify
// when an artifact is complete.
type Notifier struct {
	mu      sync.Mutex
	out     chan Artifact
	seen    map[string]bool
	closed  chan struct{}
	senders sync.WaitGroup
}

// NewNotifier creates an idle notifier.
func NewNotifier() *Notifier {
	return &Notifier{seen: make(map[string]bool)}
}

// Watch implements Detector. Only one Watch may be active at a time.
func (n *Notifier) Watch(ctx context.Context) (<-chan Artifact, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.out != nil {
		return nil, errors.New("detect: notifier already watching")
	}
	out := make(chan Artifact)
	closed := make(chan struct{})
	n.out, n.closed = out, closed

	go func() {
		<-ctx.Done()
		n.mu.Lock()
		n.out = nil
		n.closed = nil
		n.mu.Unlock()
		close(closed)
		n.senders.Wait()
		close(out)
	}()
	return out, nil
}

// Notify reports a finished artifact at path. Repeated notifications for
// the same path are ignored. Notify blocks until the artifact is received,
// ctx is done or the watch ends.
func (n *Notifier) Notify(ctx context.Context, path string, kind record.Kind) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("detect: %w", err)
	}

	n.mu.Lock()
	out, closed := n.out, n.closed
	if out == nil {
		n.mu.Unlock()
		return ErrNotWatching
	}
	if n.seen[path] {
		n.mu.Unlock()
		return nil
	}
	n.seen[path] = true
	n.senders.Add(1)
	n.mu.Unlock()
	defer n.senders.Done()

	a := Artifact{Path: path, Kind: kind, Size: info.Size(), DetectedAt: time.Now()}
	select {
	case out <- a:
		return nil
	case <-closed:
		return ErrNotWatching
	case <-ctx.Done():
		return ctx.Err()
	}
}
