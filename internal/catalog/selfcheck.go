package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/roach88/custodian/internal/integrity"
)

// SelfCheckStatus is the outcome of comparing the catalog file against its
// last-known-good reference.
type SelfCheckStatus string

const (
	// SelfCheckNew means the catalog file did not exist before this session.
	SelfCheckNew SelfCheckStatus = "new"
	// SelfCheckNoReference means no sealed reference was found.
	SelfCheckNoReference SelfCheckStatus = "no_reference"
	// SelfCheckMatch means the file is unchanged since the last clean close.
	SelfCheckMatch SelfCheckStatus = "match"
	// SelfCheckMismatch means the file changed outside a catalog session, or
	// the reference could not be unsealed.
	SelfCheckMismatch SelfCheckStatus = "mismatch"
)

// SelfCheck reports the open-time self-check. The reference covers the main
// database file and any non-empty write-ahead log next to it. A session that
// ends without Close leaves the reference stale, which reads as a mismatch on
// the next open; reopening under IntegrityWarn and closing cleanly reseals it.
type SelfCheck struct {
	Status    SelfCheckStatus
	Expected  string
	Actual    string
	Reference string // path of the sealed reference file
}

// ReferencePath returns where the sealed self-check reference for the
// catalog at path is kept.
func ReferencePath(path string) string {
	return path + ".seal"
}

func (c *Catalog) checkReference() (SelfCheck, error) {
	sc := SelfCheck{Reference: ReferencePath(c.path)}

	if _, err := os.Stat(c.path); errors.Is(err, os.ErrNotExist) {
		sc.Status = SelfCheckNew
		return sc, nil
	}

	sealed, err := os.ReadFile(sc.Reference)
	if errors.Is(err, os.ErrNotExist) {
		sc.Status = SelfCheckNoReference
		c.logger.Debug("catalog has no self-check reference", "path", c.path)
		return sc, nil
	}
	if err != nil {
		return sc, newError(CodeOpenFailed, "self-check", err)
	}

	actual, err := integrity.CatalogReference(c.path)
	if err != nil {
		return sc, newError(CodeOpenFailed, "self-check", err)
	}
	sc.Actual = actual

	plain, err := c.key.Unseal(PurposeSelfCheck, sealed)
	if err == nil {
		sc.Expected = string(plain)
	}
	if err == nil && sc.Expected == actual {
		sc.Status = SelfCheckMatch
		return sc, nil
	}

	sc.Status = SelfCheckMismatch
	if c.policy == IntegrityStrict {
		return sc, newError(CodeIntegrityCheckFailed, "self-check",
			fmt.Errorf("%s does not match its reference", c.path))
	}
	c.logger.Warn("catalog self-check mismatch",
		"path", c.path,
		"expected", sc.Expected,
		"actual", sc.Actual)
	return sc, nil
}

// writeReference seals the current file digest next to the catalog. It
// runs after the final checkpoint so the main file holds every commit.
func (c *Catalog) writeReference() error {
	ref, err := integrity.CatalogReference(c.path)
	if err != nil {
		return newError(CodeExecuteFailed, "write reference", err)
	}
	sealed, err := c.key.Seal(PurposeSelfCheck, []byte(ref))
	if err != nil {
		return err
	}

	dst := ReferencePath(c.path)
	tmp, err := os.CreateTemp(filepath.Dir(dst), filepath.Base(dst)+".*")
	if err != nil {
		return newError(CodeExecuteFailed, "write reference", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(sealed); err != nil {
		tmp.Close()
		return newError(CodeExecuteFailed, "write reference", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return newError(CodeExecuteFailed, "write reference", err)
	}
	if err := tmp.Close(); err != nil {
		return newError(CodeExecuteFailed, "write reference", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return newError(CodeExecuteFailed, "write reference", err)
	}
	return nil
}
