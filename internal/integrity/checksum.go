package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
)

// ChecksumLength is the length of a hex encoded SHA-256 digest.
const ChecksumLength = sha256.Size * 2

// ComputeChecksum returns the lowercase hex SHA-256 digest of data.
func ComputeChecksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ChecksumReader streams r through SHA-256 and returns the digest together
// with the number of bytes read.
func ChecksumReader(r io.Reader) (string, int64, error) {
	h := sha256.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return "", n, fmt.Errorf("checksum: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// VerifyingReader hashes everything read through it. When the underlying
// reader is exhausted it returns an ErrChecksumMismatch error in place of
// io.EOF if the digest differs from the expected one, so a consumer that
// reads to the end fails instead of committing the bytes.
type VerifyingReader struct {
	r    io.Reader
	h    hash.Hash
	want string
	n    int64
	done bool
}

// NewVerifyingReader wraps r, expecting it to hash to want.
func NewVerifyingReader(r io.Reader, want string) *VerifyingReader {
	return &VerifyingReader{r: r, h: sha256.New(), want: want}
}

func (v *VerifyingReader) Read(p []byte) (int, error) {
	if v.done {
		return 0, v.result()
	}
	n, err := v.r.Read(p)
	v.h.Write(p[:n])
	v.n += int64(n)
	if err == io.EOF {
		v.done = true
		return n, v.result()
	}
	return n, err
}

// Verify consumes whatever the caller left unread and reports whether the
// whole stream matched.
func (v *VerifyingReader) Verify() error {
	_, err := io.Copy(io.Discard, v)
	return err
}

func (v *VerifyingReader) result() error {
	if sum := hex.EncodeToString(v.h.Sum(nil)); sum != v.want {
		return fmt.Errorf("%w: streamed %d bytes hashing to %s", ErrChecksumMismatch, v.n, sum)
	}
	return io.EOF
}

// ChecksumFile hashes the file at path. A missing file is reported as
// ErrFileMissing so callers can tell it apart from read failures.
func ChecksumFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", 0, fmt.Errorf("%w: %s", ErrFileMissing, path)
		}
		return "", 0, fmt.Errorf("checksum %s: %w", path, err)
	}
	defer f.Close()

	return ChecksumReader(f)
}

// IsChecksum reports whether s is a well-formed lowercase hex SHA-256 digest.
func IsChecksum(s string) bool {
	if len(s) != ChecksumLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
