package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/custodian/internal/backup"
	"github.com/roach88/custodian/internal/catalog"
	"github.com/roach88/custodian/internal/config"
	"github.com/roach88/custodian/internal/evidence"
	"github.com/roach88/custodian/internal/integrity"
	"github.com/roach88/custodian/internal/reconcile"
	"github.com/roach88/custodian/internal/record"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Evidence failed a check (mismatch, missing file, failed upload)
	ExitCommandError = 2 // Command error (bad arguments, unreadable config, locked catalog, etc.)
)

// Error codes reported in CLIError.Code.
const (
	ErrCodeGeneric   = "E001"
	ErrCodeConfig    = "E002"
	ErrCodeKey       = "E003"
	ErrCodeCatalog   = "E004"
	ErrCodeNotFound  = "E005"
	ErrCodeIntegrity = "E006"
	ErrCodeBackup    = "E007"
	ErrCodeArgs      = "E008"
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Success outputs a successful result in the configured format. Text
// output relies on the payload's String method.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// VerboseLog outputs a message only if verbose mode is enabled.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

// Fail reports err in the configured format and returns the ExitError for
// it. The code and exit status are derived from the error chain.
func (f *OutputFormatter) Fail(message string, err error) error {
	code, exit := classify(err)
	_ = f.Error(code, fmt.Sprintf("%s: %v", message, err), nil)
	return WrapExitError(exit, fmt.Sprintf("%s: %s", code, message), err)
}

func classify(err error) (string, int) {
	switch {
	case errors.Is(err, config.ErrInvalid):
		return ErrCodeConfig, ExitCommandError
	case errors.Is(err, catalog.ErrKeyUnavailable),
		errors.Is(err, catalog.ErrDecryptionFailed),
		errors.Is(err, errBadKey):
		return ErrCodeKey, ExitCommandError
	case errors.Is(err, catalog.ErrNotFound), errors.Is(err, backup.ErrObjectNotFound):
		return ErrCodeNotFound, ExitCommandError
	case errors.Is(err, record.ErrUnknownKind), errors.Is(err, errBadArgs):
		return ErrCodeArgs, ExitCommandError
	case errors.Is(err, integrity.ErrChecksumMismatch),
		errors.Is(err, integrity.ErrFileMissing),
		errors.Is(err, catalog.ErrIntegrityCheckFailed),
		errors.Is(err, evidence.ErrExportRefused),
		errors.Is(err, evidence.ErrBundleCorrupt):
		return ErrCodeIntegrity, ExitFailure
	case errors.Is(err, reconcile.ErrUploadFailed), errors.Is(err, evidence.ErrNoBackup):
		return ErrCodeBackup, ExitFailure
	case errors.Is(err, catalog.ErrOpenFailed), errors.Is(err, catalog.ErrClosed):
		return ErrCodeCatalog, ExitCommandError
	default:
		return ErrCodeGeneric, ExitCommandError
	}
}
