package core

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument indicates a request that fails validation (dimension
// mismatch, negative k, malformed threshold). Rejected synchronously, never
// coerced.
type ErrInvalidArgument struct {
	Field   string
	Message string
}

func (e *ErrInvalidArgument) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid argument for %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("invalid argument: %s", e.Message)
}

// NewInvalidArgumentError creates a validation error.
func NewInvalidArgumentError(field, message string) error {
	return &ErrInvalidArgument{Field: field, Message: message}
}

// ErrResourceExhausted indicates a capacity limit was hit (dispatch queue
// full, rate limit). Distinct from validation so callers can apply backoff.
type ErrResourceExhausted struct {
	Resource string
	Message  string
}

func (e *ErrResourceExhausted) Error() string {
	return fmt.Sprintf("resource exhausted (%s): %s", e.Resource, e.Message)
}

// NewResourceExhaustedError creates a capacity error.
func NewResourceExhaustedError(resource, message string) error {
	return &ErrResourceExhausted{Resource: resource, Message: message}
}

// ErrDeadlineExceeded indicates a request missed its deadline while queued or
// executing. Any result that later completes is discarded.
type ErrDeadlineExceeded struct {
	Operation string
}

func (e *ErrDeadlineExceeded) Error() string {
	return fmt.Sprintf("deadline exceeded during %s", e.Operation)
}

// NewDeadlineExceededError creates a timeout error.
func NewDeadlineExceededError(operation string) error {
	return &ErrDeadlineExceeded{Operation: operation}
}

// ErrUnavailable indicates the service cannot answer right now (empty or
// uninitialized index). Fails fast rather than blocking.
type ErrUnavailable struct {
	Operation string
	Reason    string
}

func (e *ErrUnavailable) Error() string {
	return fmt.Sprintf("service unavailable for %s: %s", e.Operation, e.Reason)
}

// NewUnavailableError creates an unavailability error.
func NewUnavailableError(operation, reason string) error {
	return &ErrUnavailable{Operation: operation, Reason: reason}
}

// ErrCorruptIndex indicates an on-disk index that cannot be trusted
// (bad magic, mismatched format version, wrong dimension or metric).
// This is fatal at startup; the service must not run against it.
type ErrCorruptIndex struct {
	Path   string
	Reason string
}

func (e *ErrCorruptIndex) Error() string {
	return fmt.Sprintf("corrupt or incompatible index %s: %s", e.Path, e.Reason)
}

// NewCorruptIndexError creates a fatal index-format error.
func NewCorruptIndexError(path, reason string) error {
	return &ErrCorruptIndex{Path: path, Reason: reason}
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool {
	var e *ErrInvalidArgument
	return errors.As(err, &e)
}

// IsCapacity reports whether err is a capacity/backpressure error.
func IsCapacity(err error) bool {
	var e *ErrResourceExhausted
	return errors.As(err, &e)
}

// IsTimeout reports whether err is a deadline error.
func IsTimeout(err error) bool {
	var e *ErrDeadlineExceeded
	return errors.As(err, &e)
}

// IsUnavailable reports whether err is an unavailability error.
func IsUnavailable(err error) bool {
	var e *ErrUnavailable
	return errors.As(err, &e)
}
