package errs

import (
	"errors"
	"fmt"
)

// Sentinel categories for failures crossing component boundaries. Handlers
// map these to HTTP status codes with errors.Is.
var (
	// ErrValidation covers unsupported formats, oversized files, insufficient
	// content quality, and malformed FAQ structure. No side effects occurred.
	ErrValidation = errors.New("validation failed")

	// ErrConflict is returned when a file already exists and replace_existing
	// was not set, or when a concurrent operation holds the file's lock.
	ErrConflict = errors.New("conflict")

	// ErrNotFound is returned for unknown files and expired or unknown
	// validation sessions.
	ErrNotFound = errors.New("not found")

	// ErrProcessing covers chunking and embedding failures. The file is left
	// in status failed with no partial vectors.
	ErrProcessing = errors.New("processing failed")

	// ErrExternalService is returned after retries against a collaborator
	// (document understanding, embedding, reranking, generation, storage)
	// have been exhausted.
	ErrExternalService = errors.New("external service unavailable")

	// ErrAuth is returned for a missing or invalid token before any
	// collaborator is called.
	ErrAuth = errors.New("authentication failed")
)

// Validationf wraps ErrValidation with a formatted message.
func Validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, prepend(ErrValidation, args)...)
}

// Conflictf wraps ErrConflict with a formatted message.
func Conflictf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, prepend(ErrConflict, args)...)
}

// NotFoundf wraps ErrNotFound with a formatted message.
func NotFoundf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, prepend(ErrNotFound, args)...)
}

// Processingf wraps ErrProcessing with a formatted message. correlationID
// identifies the failed job in logs.
func Processingf(correlationID, format string, args ...interface{}) error {
	return fmt.Errorf("%w [%s]: "+format, prepend2(ErrProcessing, correlationID, args)...)
}

// Externalf wraps ErrExternalService with a formatted message.
func Externalf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, prepend(ErrExternalService, args)...)
}

func prepend(err error, args []interface{}) []interface{} {
	return append([]interface{}{err}, args...)
}

func prepend2(err error, s string, args []interface{}) []interface{} {
	return append([]interface{}{err, s}, args...)
}
