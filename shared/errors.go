package shared

import (
	"errors"
	"net/http"
)

// AppError is the error contract between services and the HTTP layer. Services
// return one whenever the failure should surface to the caller with a specific
// status; anything else degrades to a generic 500 in the Fiber error handler.
type AppError struct {
	StatusCode int
	Message    string
	Data       interface{}

	// RetryAfterSeconds is set on rate-limit errors and becomes the
	// Retry-After response header.
	RetryAfterSeconds int

	Err error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewAppError(statusCode int, err error, message string) *AppError {
	return &AppError{StatusCode: statusCode, Message: message, Err: err}
}

func NewBadRequestError(err error, message string) *AppError {
	return NewAppError(http.StatusBadRequest, err, message)
}

func NewUnauthorizedError(err error, message string) *AppError {
	return NewAppError(http.StatusUnauthorized, err, message)
}

func NewNotFoundError(err error, message string) *AppError {
	return NewAppError(http.StatusNotFound, err, message)
}

func NewConflictError(err error, message string) *AppError {
	return NewAppError(http.StatusConflict, err, message)
}

func NewServiceUnavailableError(err error, message string) *AppError {
	return NewAppError(http.StatusServiceUnavailable, err, message)
}

func NewInternalError(err error, message string) *AppError {
	return NewAppError(http.StatusInternalServerError, err, message)
}

func NewRateLimitError(message string, retryAfterSeconds int, data interface{}) *AppError {
	return &AppError{
		StatusCode:        http.StatusTooManyRequests,
		Message:           message,
		Data:              data,
		RetryAfterSeconds: retryAfterSeconds,
	}
}

func GetAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
