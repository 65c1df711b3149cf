package domain

import (
	"errors"

	"github.com/cuongbtq/jobstore/internal/codec"
	"github.com/cuongbtq/jobstore/internal/funcref"
)

var (
	// ErrConfiguration is returned when the store is constructed with missing or conflicting input
	ErrConfiguration = errors.New("invalid job store configuration")

	// ErrStorageUnavailable is returned when the backing database cannot serve a request
	ErrStorageUnavailable = errors.New("job storage unavailable")

	// ErrDuplicateJobName is returned when a job name collides with a stored job
	ErrDuplicateJobName = errors.New("duplicate job name")

	// ErrJobNotFound is returned when the target job is not stored
	ErrJobNotFound = errors.New("job not found")

	// ErrCodecVersionMismatch is returned when a blob was written by an unknown codec format
	ErrCodecVersionMismatch = codec.ErrVersionMismatch

	// ErrUnresolvableReference is returned when a func reference has no registered function
	ErrUnresolvableReference = funcref.ErrUnresolvable

	// ErrValidation is returned when a job record is malformed
	ErrValidation = errors.New("invalid job")
)

// StoreError binds an error kind from the taxonomy above to its underlying cause
type StoreError struct {
	Op   string
	Kind error
	Err  error
}

// Error omits the kind when the cause already names it
func (e *StoreError) Error() string {
	switch {
	case e.Err == nil:
		return e.Op + ": " + e.Kind.Error()
	case errors.Is(e.Err, e.Kind):
		return e.Op + ": " + e.Err.Error()
	default:
		return e.Op + ": " + e.Kind.Error() + ": " + e.Err.Error()
	}
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As
func (e *StoreError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewStoreError creates a new StoreError
func NewStoreError(op string, kind, err error) error {
	return &StoreError{Op: op, Kind: kind, Err: err}
}
