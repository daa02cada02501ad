package common

import "errors"

// AppError represents an error with a stable code and the HTTP status a
// transport layer should map it to.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		if e.Message == "" {
			return e.Err.Error()
		}
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap allows errors.Is/As to inspect the underlying error.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches any AppError carrying the same code, so a sentinel still
// matches after Wrap attached a cause to it.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Code != "" && e.Code == t.Code
}

// NewAppError constructs an AppError.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// Wrap returns a copy of kind with cause attached.
func Wrap(kind *AppError, cause error) *AppError {
	out := *kind
	out.Err = cause
	return &out
}

// WithDetails returns a copy of kind carrying details.
func WithDetails(kind *AppError, details any) *AppError {
	out := *kind
	out.Details = details
	return &out
}

// IsAppError checks whether the error is an AppError.
func IsAppError(err error) bool {
	var target *AppError
	return errors.As(err, &target)
}

// CodeOf returns the code of the first AppError in the chain.
func CodeOf(err error) string {
	var target *AppError
	if errors.As(err, &target) {
		return target.Code
	}
	return ""
}
