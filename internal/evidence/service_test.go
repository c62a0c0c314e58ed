package evidence

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/custodian/internal/backup"
	"github.com/roach88/custodian/internal/catalog"
	"github.com/roach88/custodian/internal/custody"
	"github.com/roach88/custodian/internal/detect"
	"github.com/roach88/custodian/internal/integrity"
	"github.com/roach88/custodian/internal/metrics"
	"github.com/roach88/custodian/internal/reconcile"
	"github.com/roach88/custodian/internal/record"
	"github.com/roach88/custodian/internal/testutil"
)

type harness struct {
	svc     *Service
	catalog *catalog.Catalog
	store   *backup.MemoryStore
	metrics *metrics.Metrics
	key     *catalog.Key
}

func newHarness(t *testing.T, withBackup bool) *harness {
	t.Helper()
	key, err := catalog.ParseKey("000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f")
	require.NoError(t, err)

	c, err := catalog.Open(context.Background(), filepath.Join(t.TempDir(), "catalog.db"), key,
		catalog.WithLogger(testutil.Logger()))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	ledger := testutil.Ledger(testutil.NewStepClock(testutil.Epoch, time.Second))
	h := &harness{catalog: c, metrics: metrics.New(), key: key}
	opts := []Option{WithLogger(testutil.Logger()), WithMetrics(h.metrics)}
	if withBackup {
		h.store = backup.NewMemoryStore()
		opts = append(opts, WithReconciler(reconcile.New(h.store,
			reconcile.WithLogger(testutil.Logger()),
			reconcile.WithMetrics(h.metrics))))
	}
	h.svc = New(c, ledger, testutil.Factory(ledger), opts...)
	return h
}

func (h *harness) capturePhoto(t *testing.T, data []byte) (record.Record, string) {
	t.Helper()
	path := testutil.WriteFile(t, "IMG_0001.jpg", data)
	r, err := h.svc.Capture(context.Background(), record.Photo{Resolution: "4032x3024", Format: "jpeg"},
		record.Source{FileReference: path})
	require.NoError(t, err)
	return r, path
}

func actions(r record.Record) []custody.Action {
	var out []custody.Action
	for _, e := range r.Base().Custody {
		out = append(out, e.Action)
	}
	return out
}

func TestCapture_StoresRecord(t *testing.T) {
	h := newHarness(t, false)
	r, _ := h.capturePhoto(t, testutil.JPEGLike(512))

	got, err := h.svc.Lookup(context.Background(), record.KindPhoto, record.ID(r))
	require.NoError(t, err)
	assert.Equal(t, r, got)
	assert.Equal(t, []custody.Action{custody.ActionCreated}, actions(got))
	assert.Equal(t, 1.0, promtest.ToFloat64(h.metrics.Captures.WithLabelValues("photo")))
}

func TestCapture_UnreadableSourceStoresNothing(t *testing.T) {
	h := newHarness(t, false)
	_, err := h.svc.Capture(context.Background(), record.Photo{},
		record.Source{FileReference: filepath.Join(t.TempDir(), "gone.jpg")})
	require.ErrorIs(t, err, record.ErrUnreadableSource)

	n, err := h.catalog.Count(context.Background(), record.KindPhoto)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestView_AppendsViewed(t *testing.T) {
	h := newHarness(t, false)
	r, _ := h.capturePhoto(t, testutil.JPEGLike(64))

	viewed, err := h.svc.View(context.Background(), "", record.ID(r))
	require.NoError(t, err)
	assert.Equal(t, []custody.Action{custody.ActionCreated, custody.ActionViewed}, actions(viewed))
	assert.Equal(t, r.StoredChecksum(), viewed.StoredChecksum())
	assert.True(t, viewed.Base().ModifiedAt.After(r.Base().ModifiedAt))
}

func TestView_UnknownID(t *testing.T) {
	h := newHarness(t, false)
	_, err := h.svc.View(context.Background(), record.KindPhoto, testutil.NewSequentialIDs("ffffffff").Next())
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestVerify(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	r, path := h.capturePhoto(t, testutil.JPEGLike(256))

	res, updated, err := h.svc.Verify(ctx, record.KindPhoto, record.ID(r))
	require.NoError(t, err)
	assert.Equal(t, integrity.Match, res)
	assert.Equal(t, []custody.Action{custody.ActionCreated, custody.ActionVerified}, actions(updated))

	require.NoError(t, os.WriteFile(path, []byte("tampered"), 0o600))
	res, updated, err = h.svc.Verify(ctx, record.KindPhoto, record.ID(r))
	require.NoError(t, err)
	assert.Equal(t, integrity.Mismatch, res)
	assert.Len(t, updated.Base().Custody, 2, "mismatch must not record an event")
	assert.Equal(t, r.StoredChecksum(), updated.StoredChecksum())

	require.NoError(t, os.Remove(path))
	res, _, err = h.svc.Verify(ctx, record.KindPhoto, record.ID(r))
	require.NoError(t, err)
	assert.Equal(t, integrity.FileMissing, res)

	assert.Equal(t, 1.0, promtest.ToFloat64(h.metrics.Verifications.WithLabelValues("match")))
	assert.Equal(t, 1.0, promtest.ToFloat64(h.metrics.Verifications.WithLabelValues("mismatch")))
	assert.Equal(t, 1.0, promtest.ToFloat64(h.metrics.Verifications.WithLabelValues("file_missing")))
}

func TestVerifyAll(t *testing.T) {
	h := newHarness(t, false)
	a, _ := h.capturePhoto(t, testutil.JPEGLike(32))
	b, pathB := h.capturePhoto(t, testutil.JPEGLike(48))
	require.NoError(t, os.Remove(pathB))

	got, err := h.svc.VerifyAll(context.Background(), record.KindPhoto)
	require.NoError(t, err)
	assert.Equal(t, integrity.Match, got[record.ID(a)])
	assert.Equal(t, integrity.FileMissing, got[record.ID(b)])
}

func TestExport_RoundTrip(t *testing.T) {
	h := newHarness(t, false)
	data := testutil.JPEGLike(300)
	r, _ := h.capturePhoto(t, data)
	dst := filepath.Join(t.TempDir(), "photo.bundle")

	updated, err := h.svc.Export(context.Background(), record.KindPhoto, record.ID(r), dst)
	require.NoError(t, err)
	assert.Equal(t, []custody.Action{custody.ActionCreated, custody.ActionExported}, actions(updated))

	b, err := ReadExport(h.key, dst)
	require.NoError(t, err)
	assert.Equal(t, BundleVersion, b.Version)
	assert.Equal(t, record.KindPhoto, b.Kind)
	assert.Equal(t, data, b.File)
	assert.Equal(t, r.StoredChecksum(), b.Checksum())
	assert.Equal(t, record.ID(r).String(), b.Record["id"])
	require.Len(t, b.Custody, 2)
	assert.Equal(t, custody.ActionExported, b.Custody[1].Action)
	assert.Equal(t, r.Base().Metadata.UserIdentifier, b.Metadata.UserIdentifier)
}

func TestExport_WrongKeyFails(t *testing.T) {
	h := newHarness(t, false)
	r, _ := h.capturePhoto(t, testutil.JPEGLike(40))
	dst := filepath.Join(t.TempDir(), "photo.bundle")
	_, err := h.svc.Export(context.Background(), record.KindPhoto, record.ID(r), dst)
	require.NoError(t, err)

	other, err := catalog.GenerateKey()
	require.NoError(t, err)
	_, err = ReadExport(other, dst)
	assert.ErrorIs(t, err, catalog.ErrDecryptionFailed)
}

func TestExport_RefusesTamperedArtifact(t *testing.T) {
	h := newHarness(t, false)
	r, path := h.capturePhoto(t, testutil.JPEGLike(40))
	require.NoError(t, os.WriteFile(path, []byte("edited"), 0o600))
	dst := filepath.Join(t.TempDir(), "photo.bundle")

	_, err := h.svc.Export(context.Background(), record.KindPhoto, record.ID(r), dst)
	require.ErrorIs(t, err, ErrExportRefused)
	assert.ErrorIs(t, err, integrity.ErrChecksumMismatch)
	assert.NoFileExists(t, dst)

	stored, err := h.svc.Lookup(context.Background(), record.KindPhoto, record.ID(r))
	require.NoError(t, err)
	assert.Len(t, stored.Base().Custody, 1)
}

func TestExport_RecordWithoutFile(t *testing.T) {
	h := newHarness(t, false)
	r, err := h.svc.Capture(context.Background(), record.AIChatLog{ConversationTitle: "Notes", MessageCount: 3}, record.Source{})
	require.NoError(t, err)
	dst := filepath.Join(t.TempDir(), "chat.bundle")

	_, err = h.svc.Export(context.Background(), record.KindAIChatLog, record.ID(r), dst)
	require.NoError(t, err)
	b, err := ReadExport(h.key, dst)
	require.NoError(t, err)
	assert.Nil(t, b.File)
	assert.Equal(t, "Notes", b.Record["conversation_title"])
}

func TestOpenExport_RejectsCorruptBundle(t *testing.T) {
	h := newHarness(t, false)
	sealed, err := h.key.Seal(catalog.PurposeExport, []byte(`{"version":1,"kind":"photo","record":{"checksum_sha256":"00"},"custody":[]}`))
	require.NoError(t, err)
	_, err = OpenExport(h.key, sealed)
	assert.ErrorIs(t, err, ErrBundleCorrupt)

	sealed, err = h.key.Seal(catalog.PurposeExport, []byte(`not json`))
	require.NoError(t, err)
	_, err = OpenExport(h.key, sealed)
	assert.ErrorIs(t, err, ErrBundleCorrupt)
}

func TestSync(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	r, _ := h.capturePhoto(t, testutil.JPEGLike(128))

	synced, err := h.svc.Sync(ctx, record.KindPhoto, record.ID(r))
	require.NoError(t, err)
	assert.Equal(t, []custody.Action{custody.ActionCreated, custody.ActionSynced}, actions(synced))

	_, ok := h.store.Object("photos/" + record.ID(r).String() + "/file")
	assert.True(t, ok)

	res, err := h.svc.VerifyRemote(ctx, record.KindPhoto, record.ID(r))
	require.NoError(t, err)
	assert.Equal(t, integrity.Match, res)
}

func TestSync_FailureLeavesRecordUnchanged(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	r, _ := h.capturePhoto(t, testutil.JPEGLike(128))
	h.store.FailPut = func(string, string) error { return errors.New("network down") }

	_, err := h.svc.Sync(ctx, record.KindPhoto, record.ID(r))
	require.ErrorIs(t, err, reconcile.ErrUploadFailed)

	stored, err := h.svc.Lookup(ctx, record.KindPhoto, record.ID(r))
	require.NoError(t, err)
	assert.Equal(t, r, stored)
}

func TestSync_NoBackup(t *testing.T) {
	h := newHarness(t, false)
	r, _ := h.capturePhoto(t, testutil.JPEGLike(16))

	_, err := h.svc.Sync(context.Background(), record.KindPhoto, record.ID(r))
	assert.ErrorIs(t, err, ErrNoBackup)
	_, err = h.svc.SyncPending(context.Background())
	assert.ErrorIs(t, err, ErrNoBackup)
	_, err = h.svc.VerifyRemote(context.Background(), record.KindPhoto, record.ID(r))
	assert.ErrorIs(t, err, ErrNoBackup)
}

func TestSyncPending(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	photo, _ := h.capturePhoto(t, testutil.JPEGLike(64))
	chat, err := h.svc.Capture(ctx, record.AIChatLog{ConversationTitle: "t", MessageCount: 1}, record.Source{})
	require.NoError(t, err)

	report, err := h.svc.SyncPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Attempted)
	assert.Equal(t, 2, report.Synced)
	assert.Empty(t, report.Failed)

	for _, r := range []record.Record{photo, chat} {
		got, err := h.svc.Lookup(ctx, r.Kind(), record.ID(r))
		require.NoError(t, err)
		assert.False(t, record.PendingSync(got))
	}

	report, err = h.svc.SyncPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Attempted)
}

func TestSyncPending_ReportsFailures(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	photo, _ := h.capturePhoto(t, testutil.JPEGLike(64))
	chat, err := h.svc.Capture(ctx, record.AIChatLog{ConversationTitle: "t", MessageCount: 1}, record.Source{})
	require.NoError(t, err)
	h.store.FailPut = func(container, _ string) error {
		if container == "photos" {
			return errors.New("quota exceeded")
		}
		return nil
	}

	report, err := h.svc.SyncPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Attempted)
	assert.Equal(t, 1, report.Synced)
	assert.Contains(t, report.Failed, record.ID(photo).String())

	got, err := h.svc.Lookup(ctx, record.KindAIChatLog, record.ID(chat))
	require.NoError(t, err)
	assert.False(t, record.PendingSync(got))
}

func writePNG(t *testing.T, name string, w, hgt int) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, hgt))))
	return testutil.WriteFile(t, name, buf.Bytes())
}

func TestTemplate(t *testing.T) {
	shot := writePNG(t, "Screenshot 2025-03-14.PNG", 3, 2)
	assert.Equal(t, record.Screenshot{Resolution: "3x2", Format: "png"},
		Template(detect.Artifact{Path: shot, Kind: record.KindScreenshot}))

	assert.Equal(t, record.Photo{Resolution: "", Format: "jpg"},
		Template(detect.Artifact{Path: testutil.WriteFile(t, "x.jpg", []byte("not an image")), Kind: record.KindPhoto}))

	assert.Equal(t, record.Document{DocumentType: "pdf", Description: "lease.pdf"},
		Template(detect.Artifact{Path: "/tmp/lease.pdf", Kind: record.KindDocument}))

	assert.Equal(t, record.AIChatLog{ConversationTitle: "chat-export"},
		Template(detect.Artifact{Path: "/tmp/chat-export.json", Kind: record.KindAIChatLog}))
}

func TestIngest(t *testing.T) {
	h := newHarness(t, true)
	n := detect.NewNotifier()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type result struct {
		stored int
		err    error
	}
	done := make(chan result, 1)
	go func() {
		stored, err := h.svc.Ingest(ctx, n, true)
		done <- result{stored, err}
	}()

	shot := writePNG(t, "Screenshot 1.png", 4, 5)
	require.Eventually(t, func() bool {
		return !errors.Is(n.Notify(ctx, shot, record.KindScreenshot), detect.ErrNotWatching)
	}, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, n.Notify(ctx, testutil.WriteFile(t, "memo.txt", []byte("memo")), record.KindDocument))

	cancel()
	var res result
	select {
	case res = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("ingest did not stop")
	}
	require.NoError(t, res.err)
	assert.Equal(t, 2, res.stored)

	shots, err := h.catalog.FetchAll(context.Background(), record.KindScreenshot)
	require.NoError(t, err)
	require.Len(t, shots, 1)
	assert.Equal(t, "4x5", shots[0].(record.Screenshot).Resolution)
	assert.Equal(t, []custody.Action{custody.ActionCreated, custody.ActionSynced}, actions(shots[0]))

	docs, err := h.catalog.FetchAll(context.Background(), record.KindDocument)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.False(t, record.PendingSync(docs[0]))
}

func TestIngest_AutoSyncNeedsBackup(t *testing.T) {
	h := newHarness(t, false)
	_, err := h.svc.Ingest(context.Background(), detect.NewNotifier(), true)
	assert.ErrorIs(t, err, ErrNoBackup)
}
