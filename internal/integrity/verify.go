package integrity

import (
	"errors"
	"fmt"
	"os"
)

var (
	// ErrChecksumMismatch reports that current content no longer hashes to the
	// stored digest.
	ErrChecksumMismatch = errors.New("integrity: checksum mismatch")

	// ErrFileMissing reports that the artifact no longer exists at its reference.
	ErrFileMissing = errors.New("integrity: file missing")
)

// Result is the outcome of re-verifying an artifact.
type Result int

const (
	Match Result = iota + 1
	Mismatch
	FileMissing
)

func (r Result) String() string {
	switch r {
	case Match:
		return "match"
	case Mismatch:
		return "mismatch"
	case FileMissing:
		return "file_missing"
	default:
		return fmt.Sprintf("Result(%d)", int(r))
	}
}

// Err converts a non-matching result into its sentinel error.
func (r Result) Err() error {
	switch r {
	case Match:
		return nil
	case FileMissing:
		return ErrFileMissing
	default:
		return ErrChecksumMismatch
	}
}

// Subject is anything carrying a stored checksum and an optional file
// reference. Every record variant satisfies it.
type Subject interface {
	StoredChecksum() string
	FileRef() (string, bool)
}

// Verify compares the digest of current against the subject's stored digest.
// A subject with an empty stored digest never matches.
func Verify(s Subject, current []byte) Result {
	stored := s.StoredChecksum()
	if stored == "" {
		return Mismatch
	}
	if ComputeChecksum(current) != stored {
		return Mismatch
	}
	return Match
}

// VerifyFile re-reads the subject's file from its reference and verifies it.
// Subjects without a file reference, or whose file is gone, yield FileMissing.
func VerifyFile(s Subject) (Result, error) {
	path, ok := s.FileRef()
	if !ok {
		return FileMissing, nil
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileMissing, nil
		}
		return 0, fmt.Errorf("verify %s: %w", path, err)
	}

	digest, _, err := ChecksumFile(path)
	if err != nil {
		if errors.Is(err, ErrFileMissing) {
			return FileMissing, nil
		}
		return 0, fmt.Errorf("verify: %w", err)
	}

	stored := s.StoredChecksum()
	if stored == "" || digest != stored {
		return Mismatch, nil
	}
	return Match, nil
}

// Check is the error-returning form of VerifyFile: nil on Match,
// ErrChecksumMismatch or ErrFileMissing otherwise.
func Check(s Subject) error {
	res, err := VerifyFile(s)
	if err != nil {
		return err
	}
	return res.Err()
}
