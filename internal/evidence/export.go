package evidence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/roach88/custodian/internal/catalog"
	"github.com/roach88/custodian/internal/custody"
	"github.com/roach88/custodian/internal/integrity"
	"github.com/roach88/custodian/internal/record"
)

// BundleVersion is the current export bundle format.
const BundleVersion = 1

// ErrExportRefused is returned when a record's artifact no longer matches
// its stored checksum. Nothing is written and no event is recorded.
var ErrExportRefused = errors.New("evidence: export refused")

// ErrBundleCorrupt is returned by OpenExport when the bundled file does not
// hash to the bundled checksum.
var ErrBundleCorrupt = errors.New("evidence: bundle corrupt")

// Bundle is the plaintext of a sealed export.
type Bundle struct {
	Version  int             `json:"version"`
	Kind     record.Kind     `json:"kind"`
	Record   map[string]any  `json:"record"`
	Metadata record.Metadata `json:"metadata"`
	Custody  custody.Chain   `json:"custody"`
	File     []byte          `json:"file,omitempty"`
}

// Checksum returns the bundled capture-time checksum.
func (b *Bundle) Checksum() string {
	s, _ := b.Record["checksum_sha256"].(string)
	return s
}

// Export writes a sealed bundle of the record to dst. The artifact is
// re-verified first; the "exported" event is appended before the bundle is
// built so the bundle carries it.
func (s *Service) Export(ctx context.Context, kind record.Kind, id uuid.UUID, dst string) (record.Record, error) {
	r, err := s.Lookup(ctx, kind, id)
	if err != nil {
		return nil, err
	}

	if _, ok := r.FileRef(); ok {
		res, err := integrity.VerifyFile(r)
		if err != nil {
			return nil, fmt.Errorf("export: %w", err)
		}
		if res != integrity.Match {
			s.metrics.Verification(res.String())
			return nil, fmt.Errorf("%w: %w", ErrExportRefused, res.Err())
		}
	}

	updated, err := s.append(ctx, r, custody.ActionExported)
	if err != nil {
		return nil, err
	}

	sealed, err := s.seal(updated)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	if err := writeFileAtomic(dst, sealed); err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	s.logger.Info("record exported", "kind", updated.Kind(), "id", id, "path", dst)
	return updated, nil
}

func (s *Service) seal(r record.Record) ([]byte, error) {
	scalars, err := catalog.Scalars(r)
	if err != nil {
		return nil, err
	}
	h := r.Base()
	b := Bundle{
		Version:  BundleVersion,
		Kind:     r.Kind(),
		Record:   scalars,
		Metadata: h.Metadata,
		Custody:  h.Custody,
	}
	if path, ok := r.FileRef(); ok {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		// The file may have changed between verification and this read.
		if integrity.Verify(r, data) != integrity.Match {
			return nil, fmt.Errorf("%w: %w", ErrExportRefused, integrity.ErrChecksumMismatch)
		}
		b.File = data
	}

	plaintext, err := json.Marshal(b)
	if err != nil {
		return nil, err
	}
	return s.catalog.Key().Seal(catalog.PurposeExport, plaintext)
}

// OpenExport unseals a bundle produced by Export under key and checks the
// bundled file against the bundled checksum.
func OpenExport(key *catalog.Key, sealed []byte) (*Bundle, error) {
	plaintext, err := key.Unseal(catalog.PurposeExport, sealed)
	if err != nil {
		return nil, err
	}
	var b Bundle
	if err := json.Unmarshal(plaintext, &b); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBundleCorrupt, err)
	}
	if b.Version != BundleVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrBundleCorrupt, b.Version)
	}
	if err := custody.Validate(b.Custody); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBundleCorrupt, err)
	}
	if b.File != nil && integrity.ComputeChecksum(b.File) != b.Checksum() {
		return nil, fmt.Errorf("%w: %w", ErrBundleCorrupt, integrity.ErrChecksumMismatch)
	}
	return &b, nil
}

// ReadExport reads and opens the bundle at path.
func ReadExport(key *catalog.Key, path string) (*Bundle, error) {
	sealed, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return OpenExport(key, sealed)
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
