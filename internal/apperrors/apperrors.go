// Package apperrors defines the error taxonomy shared by the storage
// engine: validation failures on user-supplied paths and missing
// resources. All other errors propagate unmodified.
package apperrors

import (
	"errors"
	"fmt"
)

// ValidationError reports malformed or unsafe input, naming the
// specific rule that was violated.
type ValidationError struct {
	// Path is the offending input, as supplied by the caller.
	Path string
	// Reason names the violated rule.
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid path %q: %s", e.Path, e.Reason)
}

// NewValidation constructs a ValidationError for the given input and rule.
func NewValidation(path, reason string) error {
	return &ValidationError{Path: path, Reason: reason}
}

// NotFoundError reports that a referenced resource does not exist.
type NotFoundError struct {
	// Resource is the kind of missing thing ("document", "vault", "file").
	Resource string
	// Key identifies which one was requested.
	Key string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.Key)
}

// NewNotFound constructs a NotFoundError for the given resource and key.
func NewNotFound(resource, key string) error {
	return &NotFoundError{Resource: resource, Key: key}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
