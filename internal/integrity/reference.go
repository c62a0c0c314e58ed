package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
)

// DomainCatalog separates catalog self-check references from artifact
// checksums so the two can never be confused for one another.
const DomainCatalog = "custodian/catalog/v1"

// walMarker separates the main file from its write-ahead log in the
// reference digest.
const walMarker = "\x00wal\x00"

// newDomainHash starts SHA256(domain || 0x00 || ...).
func newDomainHash(domain string) hash.Hash {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	return h
}

// CatalogReference returns the self-check reference value for a catalog
// storage file. A non-empty "-wal" sidecar is folded into the digest, so
// frames written to the log outside a session change the reference just
// like edits to the main file do. An absent or empty log leaves the
// reference equal to the digest of the main file alone.
func CatalogReference(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrFileMissing, path)
		}
		return "", fmt.Errorf("catalog reference: %w", err)
	}
	defer f.Close()

	h := newDomainHash(DomainCatalog)
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("catalog reference: %w", err)
	}

	wal, err := os.Open(path + "-wal")
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return "", fmt.Errorf("catalog reference: %w", err)
	default:
		defer wal.Close()
		st, err := wal.Stat()
		if err != nil {
			return "", fmt.Errorf("catalog reference: %w", err)
		}
		if st.Size() > 0 {
			h.Write([]byte(walMarker))
			if _, err := io.Copy(h, wal); err != nil {
				return "", fmt.Errorf("catalog reference: %w", err)
			}
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
