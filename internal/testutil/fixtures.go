package testutil

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/custodian/internal/custody"
	"github.com/roach88/custodian/internal/record"
)

// Identity is the actor used by fixtures.
var Identity = custody.Identity{User: "examiner@example.test", Device: "device-0001"}

// Environment is the capture environment used by fixtures.
var Environment = record.Environment{
	DeviceModel: "TestDevice1,1",
	OSVersion:   "17.4",
	AppVersion:  "1.0.0",
	Timezone:    "America/New_York",
}

// Logger discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// WriteFile writes data under t.TempDir and returns its path.
func WriteFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

// JPEGLike returns n bytes that start with a JPEG SOI marker and end with
// EOI, filled with a repeating pattern.
func JPEGLike(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i * 31)
	}
	if n >= 4 {
		b[0], b[1] = 0xFF, 0xD8
		b[n-2], b[n-1] = 0xFF, 0xD9
	}
	return b
}

// Ledger returns a ledger on a step clock with sequential event ids.
func Ledger(clock custody.Clock) *custody.Ledger {
	return custody.NewLedger(custody.StaticIdentity(Identity),
		custody.WithClock(clock),
		custody.WithIDGenerator(NewSequentialIDs("e0000000").Next))
}

// Factory returns a record factory sharing ledger with sequential record ids.
func Factory(ledger *custody.Ledger) *record.Factory {
	return record.NewFactory(ledger, Environment,
		record.WithRecordIDs(NewSequentialIDs("a0000000").Next))
}
