package reconcile

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/custodian/internal/record"
)

// ErrUploadFailed matches every *UploadError.
var ErrUploadFailed = errors.New("reconcile: upload failed")

// UploadError reports a failed mirror of one record.
type UploadError struct {
	Kind     record.Kind
	RecordID uuid.UUID
	Object   string // object that failed, empty when no object was attempted
	Err      error
}

func (e *UploadError) Error() string {
	if e.Object != "" {
		return fmt.Sprintf("reconcile: upload %s %s: %s: %v", e.Kind, e.RecordID, e.Object, e.Err)
	}
	return fmt.Sprintf("reconcile: upload %s %s: %v", e.Kind, e.RecordID, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// Is matches ErrUploadFailed.
func (e *UploadError) Is(target error) bool { return target == ErrUploadFailed }
