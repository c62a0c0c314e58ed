package catalog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/custodian/internal/custody"
	"github.com/roach88/custodian/internal/record"
	"github.com/roach88/custodian/internal/testutil"
)

func testKey(t *testing.T) *Key {
	t.Helper()
	k, err := ParseKey("000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f")
	require.NoError(t, err)
	return k
}

func openTestCatalog(t *testing.T, opts ...Option) (*Catalog, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.db")
	opts = append([]Option{WithLogger(testutil.Logger())}, opts...)
	c, err := Open(context.Background(), path, testKey(t), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, path
}

type fixture struct {
	clock   *testutil.StepClock
	ledger  *custody.Ledger
	factory *record.Factory
}

func newFixture() *fixture {
	clock := testutil.NewStepClock(testutil.Epoch, time.Second)
	ledger := testutil.Ledger(clock)
	return &fixture{clock: clock, ledger: ledger, factory: testutil.Factory(ledger)}
}

func (f *fixture) create(t *testing.T, tmpl record.Record, data []byte) record.Record {
	t.Helper()
	src := record.Source{}
	if data != nil {
		src.FileReference = testutil.WriteFile(t, string(tmpl.Kind())+".bin", data)
	}
	r, err := f.factory.Create(context.Background(), tmpl, src)
	require.NoError(t, err)
	return r
}

// samples returns one populated template per kind.
func samples() []record.Record {
	return []record.Record{
		record.ScreenRecording{Duration: 95*time.Second + 250*time.Millisecond, Resolution: "2880x1800", FrameRate: 59.94},
		record.Video{Duration: 12 * time.Second, Resolution: "3840x2160", Codec: "hevc", FrameRate: 29.97},
		record.Photo{Resolution: "4032x3024", Format: "heic"},
		record.Audio{Duration: 3*time.Minute + 7*time.Second, Format: "m4a", SampleRate: 48000},
		record.Screenshot{Resolution: "1179x2556", Format: "png"},
		record.AIChatLog{ConversationTitle: "Contract review", MessageCount: 42},
		record.Document{DocumentType: "pdf", Description: "Signed lease agreement"},
	}
}
