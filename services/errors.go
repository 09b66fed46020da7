package services

import "errors"

// ErrorKind identifies a validation failure. Kinds are part of the wire
// contract: the HTTP layer maps them to status codes and the desktop client
// switches messaging on them.
type ErrorKind string

const (
	KindFormatInvalid     ErrorKind = "FORMAT_INVALID"
	KindKeyNotFound       ErrorKind = "KEY_NOT_FOUND"
	KindKeyDisabled       ErrorKind = "KEY_DISABLED"
	KindKeyExpired        ErrorKind = "KEY_EXPIRED"
	KindAlreadyUsed       ErrorKind = "ALREADY_USED"
	KindUsageLimitReached ErrorKind = "USAGE_LIMIT_REACHED"
	KindDuplicateKey      ErrorKind = "DUPLICATE_KEY"
	KindIssuanceExhausted ErrorKind = "ISSUANCE_EXHAUSTED"
	KindNotFound          ErrorKind = "NOT_FOUND"
)

// ValidationError is a terminal, non-retriable rejection with a
// user-facing message. Infrastructure faults (connection failures,
// timeouts) are never wrapped in it; they propagate as opaque errors.
type ValidationError struct {
	Kind    ErrorKind
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func newValidationError(kind ErrorKind, message string) *ValidationError {
	return &ValidationError{Kind: kind, Message: message}
}

// AsValidationError unwraps err into a *ValidationError if it is one.
func AsValidationError(err error) (*ValidationError, bool) {
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return vErr, true
	}
	return nil, false
}

// User-facing failure messages, one per kind.
const (
	msgFormatInvalid     = "Invalid key format. Keys must contain at least 12 letters or digits."
	msgKeyNotFound       = "License key not found."
	msgKeyDisabled       = "This key has been disabled."
	msgKeyExpired        = "This key has expired."
	msgAlreadyUsed       = "This key has already been consumed and cannot be reused."
	msgUsageLimitReached = "This key has reached its usage limit."
	msgDuplicateKey      = "A key with this value already exists."
	msgIssuanceExhausted = "Could not generate a unique key."
	msgNotFound          = "License key not found."
)
