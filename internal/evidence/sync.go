package evidence

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/custodian/internal/custody"
	"github.com/roach88/custodian/internal/integrity"
	"github.com/roach88/custodian/internal/reconcile"
	"github.com/roach88/custodian/internal/record"
)

// Sync mirrors one stored record and, once the backup confirms, appends a
// "synced" event. A failed upload leaves the local record untouched and may
// simply be retried.
func (s *Service) Sync(ctx context.Context, kind record.Kind, id uuid.UUID) (record.Record, error) {
	if s.reconciler == nil {
		return nil, ErrNoBackup
	}
	r, err := s.Lookup(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if err := s.reconciler.Mirror(ctx, r); err != nil {
		return r, err
	}
	return s.append(ctx, r, custody.ActionSynced)
}

// SyncReport summarizes SyncPending.
type SyncReport struct {
	Attempted int               `json:"attempted"`
	Synced    int               `json:"synced"`
	Failed    map[string]string `json:"failed,omitempty"` // record id -> error
}

// SyncPending mirrors every record whose last custody event is not
// "synced", across all kinds.
func (s *Service) SyncPending(ctx context.Context) (SyncReport, error) {
	report := SyncReport{Failed: map[string]string{}}
	if s.reconciler == nil {
		return report, ErrNoBackup
	}

	var pending []record.Record
	for _, k := range record.Kinds() {
		recs, err := s.catalog.Pending(ctx, k)
		if err != nil {
			return report, err
		}
		pending = append(pending, recs...)
	}
	report.Attempted = len(pending)

	for _, o := range s.reconciler.UploadAll(ctx, pending) {
		id := record.ID(o.Record).String()
		if o.Err != nil {
			report.Failed[id] = o.Err.Error()
			continue
		}
		if _, err := s.append(ctx, o.Record, custody.ActionSynced); err != nil {
			report.Failed[id] = err.Error()
			continue
		}
		report.Synced++
	}
	return report, nil
}

// VerifyRemote compares the mirrored artifact of a stored record with its
// stored checksum. No custody event is recorded.
func (s *Service) VerifyRemote(ctx context.Context, kind record.Kind, id uuid.UUID) (integrity.Result, error) {
	if s.reconciler == nil {
		return 0, ErrNoBackup
	}
	r, err := s.Lookup(ctx, kind, id)
	if err != nil {
		return 0, err
	}
	res, err := s.reconciler.VerifyRemote(ctx, r)
	if err != nil {
		return 0, fmt.Errorf("verify remote: %w", err)
	}
	return res, nil
}

// Reconciler returns the configured reconciler, or nil.
func (s *Service) Reconciler() *reconcile.Reconciler { return s.reconciler }
