package reconcile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/roach88/custodian/internal/backup"
	"github.com/roach88/custodian/internal/integrity"
	"github.com/roach88/custodian/internal/metrics"
	"github.com/roach88/custodian/internal/record"
)

// DefaultConcurrency bounds UploadAll when no option is given.
const DefaultConcurrency = 4

// Reconciler uploads record snapshots to a backup store.
type Reconciler struct {
	store       backup.Store
	logger      *slog.Logger
	metrics     *metrics.Metrics
	concurrency int64

	inflight sync.WaitGroup
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reconciler) { r.logger = l }
}

// WithMetrics records upload outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Reconciler) { r.metrics = m }
}

// WithConcurrency bounds how many records UploadAll mirrors at once.
func WithConcurrency(n int) Option {
	return func(r *Reconciler) {
		if n > 0 {
			r.concurrency = int64(n)
		}
	}
}

// New creates a Reconciler on store.
func New(store backup.Store, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:       store,
		logger:      slog.Default(),
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Upload is a handle on one enqueued upload.
type Upload struct {
	Kind     record.Kind
	RecordID uuid.UUID

	done  chan struct{}
	err   error
	bytes int64
}

// Done is closed when the upload finishes.
func (u *Upload) Done() <-chan struct{} { return u.done }

// Err returns the upload result. It is only meaningful after Done is
// closed.
func (u *Upload) Err() error { return u.err }

// Wait blocks until the upload finishes or ctx is done. Canceling ctx stops
// the wait, not the upload.
func (u *Upload) Wait(ctx context.Context) error {
	select {
	case <-u.done:
		return u.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Enqueue snapshots rec and starts uploading it. The upload is detached
// from ctx cancellation; ctx values are kept. A snapshot failure is returned
// directly and nothing is started.
func (r *Reconciler) Enqueue(ctx context.Context, rec record.Record) (*Upload, error) {
	snap, err := TakeSnapshot(rec)
	if err != nil {
		return nil, &UploadError{Kind: rec.Kind(), RecordID: record.ID(rec), Err: err}
	}

	u := &Upload{
		Kind:     rec.Kind(),
		RecordID: record.ID(rec),
		done:     make(chan struct{}),
	}

	bg := context.WithoutCancel(ctx)
	r.inflight.Add(1)
	go func() {
		defer r.inflight.Done()
		defer close(u.done)

		start := time.Now()
		u.err = r.send(bg, snap, &u.bytes)
		took := time.Since(start)
		r.metrics.Upload(string(u.Kind), u.err, u.bytes, took)

		if u.err != nil {
			r.logger.Warn("upload failed", "kind", u.Kind, "id", u.RecordID, "error", u.err)
			return
		}
		r.logger.Info("record mirrored", "kind", u.Kind, "id", u.RecordID, "bytes", u.bytes, "took", took)
	}()
	return u, nil
}

// Mirror enqueues rec and waits for the result.
func (r *Reconciler) Mirror(ctx context.Context, rec record.Record) error {
	u, err := r.Enqueue(ctx, rec)
	if err != nil {
		return err
	}
	return u.Wait(ctx)
}

// Outcome is the per-record result of UploadAll.
type Outcome struct {
	Record record.Record
	Err    error
}

// UploadAll mirrors recs with bounded concurrency. Every record gets an
// outcome; one failure does not stop the others. Records not yet started
// when ctx is canceled report ctx.Err().
func (r *Reconciler) UploadAll(ctx context.Context, recs []record.Record) []Outcome {
	out := make([]Outcome, len(recs))
	sem := semaphore.NewWeighted(r.concurrency)
	var wg sync.WaitGroup

	for i, rec := range recs {
		out[i].Record = rec
		if err := sem.Acquire(ctx, 1); err != nil {
			out[i].Err = err
			continue
		}
		wg.Add(1)
		go func(i int, rec record.Record) {
			defer wg.Done()
			defer sem.Release(1)
			out[i].Err = r.Mirror(context.WithoutCancel(ctx), rec)
		}(i, rec)
	}
	wg.Wait()
	return out
}

// drain waits for every enqueued upload to finish or ctx to be done.
func (r *Reconciler) drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// send writes the documents and the artifact concurrently. The artifact is
// checked against the stored checksum up front and hashed again while it
// streams, so bytes changed between the two still fail the upload.
func (r *Reconciler) send(ctx context.Context, snap *Snapshot, sent *int64) error {
	rec := snap.Record
	fail := func(object string, err error) error {
		return &UploadError{Kind: rec.Kind(), RecordID: record.ID(rec), Object: object, Err: err}
	}

	path, hasFile := rec.FileRef()
	if hasFile {
		stored := rec.StoredChecksum()
		current, _, err := integrity.ChecksumFile(path)
		if err != nil {
			return fail(FileObject, err)
		}
		if stored == "" || current != stored {
			return fail(FileObject, fmt.Errorf("%w: %s", integrity.ErrChecksumMismatch, path))
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range []string{RecordDocument, MetadataDocument, CustodyDocument} {
		data := snap.Documents[name]
		g.Go(func() error {
			if err := r.store.Put(gctx, snap.Container, snap.Key(name), bytes.NewReader(data), int64(len(data)), jsonContentType); err != nil {
				return fail(name, err)
			}
			atomic.AddInt64(sent, int64(len(data)))
			return nil
		})
	}
	if hasFile {
		g.Go(func() error {
			n, err := r.putFile(gctx, snap, path)
			if err != nil {
				return fail(FileObject, err)
			}
			atomic.AddInt64(sent, n)
			return nil
		})
	}
	return g.Wait()
}

func (r *Reconciler) putFile(ctx context.Context, snap *Snapshot, path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, fmt.Errorf("%w: %s", integrity.ErrFileMissing, path)
		}
		return 0, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return 0, err
	}
	body := integrity.NewVerifyingReader(f, snap.Record.StoredChecksum())
	if err := r.store.Put(ctx, snap.Container, snap.Key(FileObject), body, st.Size(), contentTypeFor(path)); err != nil {
		return 0, err
	}
	// Some stores stop after size bytes and never see EOF.
	if err := body.Verify(); err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	return st.Size(), nil
}

// VerifyRemote downloads the mirrored artifact of rec and compares it with
// the stored checksum. A record without a file, or whose artifact was never
// mirrored, yields FileMissing.
func (r *Reconciler) VerifyRemote(ctx context.Context, rec record.Record) (integrity.Result, error) {
	if _, ok := rec.FileRef(); !ok {
		return integrity.FileMissing, nil
	}
	container, err := Container(rec.Kind())
	if err != nil {
		return 0, err
	}

	rc, err := r.store.Get(ctx, container, record.ID(rec).String()+"/"+FileObject)
	if errors.Is(err, backup.ErrObjectNotFound) {
		return integrity.FileMissing, nil
	}
	if err != nil {
		return 0, fmt.Errorf("verify remote %s: %w", record.ID(rec), err)
	}
	defer rc.Close()

	sum, _, err := integrity.ChecksumReader(rc)
	if err != nil {
		return 0, fmt.Errorf("verify remote %s: %w", record.ID(rec), err)
	}
	stored := rec.StoredChecksum()
	if stored == "" || sum != stored {
		return integrity.Mismatch, nil
	}
	return integrity.Match, nil
}

// fetchDocument reads one mirrored document of kind/id.
func (r *Reconciler) fetchDocument(ctx context.Context, kind record.Kind, id uuid.UUID, name string) ([]byte, error) {
	container, err := Container(kind)
	if err != nil {
		return nil, err
	}
	rc, err := r.store.Get(ctx, container, id.String()+"/"+name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
