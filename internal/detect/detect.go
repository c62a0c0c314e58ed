// Package detect finds newly finished capture artifacts.
//
// A Detector emits each new artifact once. Two backends share the
// interface: Poller scans a directory on an interval (for hosts without
// capture notifications), Notifier is fed paths by a capture collaborator
// that is told when a capture completes.
package detect

import (
	"context"
	"time"

	"github.com/roach88/custodian/internal/record"
)

// Artifact is a finished capture waiting to be cataloged.
type Artifact struct {
	Path       string
	Kind       record.Kind
	Size       int64
	DetectedAt time.Time
}

// Detector emits new artifacts until ctx is done, then closes the channel.
type Detector interface {
	Watch(ctx context.Context) (<-chan Artifact, error)
}
