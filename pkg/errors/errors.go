// Package errors defines the sentinel errors shared by the dispersion engine
// and the services around it, plus an AppError wrapper that carries an HTTP
// status alongside a human readable reason.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInvalidInput marks malformed construction input: length mismatch,
	// non-positive part size, negative frequency or fewer than two parts.
	ErrInvalidInput = errors.New("invalid input")
	// ErrComputation marks an index that cannot be formed for an otherwise
	// valid distribution (zero mean, degenerate minimum part size).
	ErrComputation = errors.New("computation error")
	// ErrUndefined marks an index with no value for this distribution, most
	// often because the word never occurs.
	ErrUndefined   = errors.New("undefined")
	ErrNotFound    = errors.New("not found")
	ErrUnavailable = errors.New("backend unavailable")
	ErrInternal    = errors.New("internal error")
	ErrTimeout     = errors.New("operation timed out")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// InvalidInput builds a 400 error wrapping ErrInvalidInput.
func InvalidInput(format string, args ...any) *AppError {
	return Newf(ErrInvalidInput, http.StatusBadRequest, format, args...)
}

// Computation builds a 422 error wrapping ErrComputation.
func Computation(format string, args ...any) *AppError {
	return Newf(ErrComputation, http.StatusUnprocessableEntity, format, args...)
}

// Undefined builds a 422 error wrapping ErrUndefined.
func Undefined(format string, args ...any) *AppError {
	return Newf(ErrUndefined, http.StatusUnprocessableEntity, format, args...)
}

// Reason returns the message of an AppError, or err.Error() otherwise.
func Reason(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrComputation), errors.Is(err, ErrUndefined):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrUnavailable), errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
