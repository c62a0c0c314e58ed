package catalog

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes catalog failures.
type ErrorCode string

const (
	CodeOpenFailed           ErrorCode = "OPEN_FAILED"
	CodePrepareFailed        ErrorCode = "PREPARE_FAILED"
	CodeExecuteFailed        ErrorCode = "EXECUTE_FAILED"
	CodeEncryptionFailed     ErrorCode = "ENCRYPTION_FAILED"
	CodeDecryptionFailed     ErrorCode = "DECRYPTION_FAILED"
	CodeIntegrityCheckFailed ErrorCode = "INTEGRITY_CHECK_FAILED"
	CodeKeyUnavailable       ErrorCode = "KEY_UNAVAILABLE"
)

// Error is a coded catalog failure. errors.Is matches any two Errors with the
// same code, so callers compare against the Err* sentinels below.
type Error struct {
	Code ErrorCode
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("catalog: %s: %s: %v", e.Op, e.Code, e.Err)
	case e.Op != "":
		return fmt.Sprintf("catalog: %s: %s", e.Op, e.Code)
	default:
		return fmt.Sprintf("catalog: %s", e.Code)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

var (
	ErrOpenFailed           = &Error{Code: CodeOpenFailed}
	ErrPrepareFailed        = &Error{Code: CodePrepareFailed}
	ErrExecuteFailed        = &Error{Code: CodeExecuteFailed}
	ErrEncryptionFailed     = &Error{Code: CodeEncryptionFailed}
	ErrDecryptionFailed     = &Error{Code: CodeDecryptionFailed}
	ErrIntegrityCheckFailed = &Error{Code: CodeIntegrityCheckFailed}
	ErrKeyUnavailable       = &Error{Code: CodeKeyUnavailable}
)

var (
	// ErrNotFound is returned when no row has the requested id.
	ErrNotFound = errors.New("catalog: record not found")

	// ErrIDConflict is returned when saving different evidence under an id
	// that is already stored.
	ErrIDConflict = errors.New("catalog: id already stored with different content")

	// ErrAppendOnly is returned when a custody update does not strictly
	// extend the stored chain.
	ErrAppendOnly = errors.New("catalog: custody chain is append-only")

	// ErrInvalidRecord is returned for records that violate model invariants.
	ErrInvalidRecord = errors.New("catalog: invalid record")

	// ErrClosed is returned by operations on a closed catalog.
	ErrClosed = errors.New("catalog: closed")
)

func newError(code ErrorCode, op string, err error) *Error {
	return &Error{Code: code, Op: op, Err: err}
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func notFound(id fmt.Stringer) error {
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}
