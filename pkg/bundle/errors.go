package bundle

import (
	"errors"
	"fmt"
)

// Error codes attached to verification failures.
const (
	// ErrCodeMalformed indicates a required block or field is absent or has the wrong shape.
	ErrCodeMalformed = "BUNDLE_MALFORMED"

	// ErrCodePublicKeyMissing indicates no verifying key was supplied or embedded.
	ErrCodePublicKeyMissing = "PUBLIC_KEY_MISSING"

	// ErrCodeSignatureInvalid indicates the detached signature did not verify or decode.
	ErrCodeSignatureInvalid = "SIGNATURE_INVALID"

	// ErrCodeBundleHashMismatch indicates the declared bundle_hash differs from the recomputed one.
	ErrCodeBundleHashMismatch = "BUNDLE_HASH_MISMATCH"

	// ErrCodeMerkleRootMismatch indicates the declared merkle_root differs from the recomputed one.
	ErrCodeMerkleRootMismatch = "MERKLE_ROOT_MISMATCH"

	// ErrCodeIntentHashMismatch indicates an audit entry is bound to a different intent.
	ErrCodeIntentHashMismatch = "INTENT_HASH_MISMATCH"

	// ErrCodePrevHashMismatch indicates the audit trail's hash chain is broken.
	ErrCodePrevHashMismatch = "PREV_HASH_MISMATCH"
)

// Error is a verification failure carrying an error code and the
// human-readable reason reported in VerificationResult.Errors.
type Error struct {
	// Code is one of the ErrCode* constants.
	Code string

	// Message is the reason reported to callers.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// NewError creates a new Error with the given code and message.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError creates a new Error that wraps an underlying error.
func WrapError(code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Sentinel failures for use with errors.Is.
var (
	ErrSignatureInvalid  = NewError(ErrCodeSignatureInvalid, "SIGNATURE INVALID")
	ErrBundleHashInvalid = NewError(ErrCodeBundleHashMismatch, "BUNDLE HASH MISMATCH")
	ErrMerkleRootInvalid = NewError(ErrCodeMerkleRootMismatch, "MERKLE ROOT MISMATCH")
)

// Errors returned while assembling or signing bundles.
var (
	ErrMissingArtifact = errors.New("missing bundle artifact")
	ErrNoAuditEntries  = errors.New("at least one audit entry is required")
	ErrIntentRequired  = errors.New("intent must be set before creating audit entries")
	ErrNotAnObject     = errors.New("bundle must be a JSON object")
)

// GetErrorCode extracts the error code from an Error, or returns empty string.
func GetErrorCode(err error) string {
	var bundleErr *Error
	if errors.As(err, &bundleErr) {
		return bundleErr.Code
	}
	return ""
}
