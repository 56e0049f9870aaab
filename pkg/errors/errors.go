package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError provides a structured error that can be rendered to API consumers.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e == nil {
		return "<nil>"
	}

	if e.Internal != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	}

	return e.Message
}

// Is matches AppErrors by code so sentinel values compare equal to the
// copies produced by WithInternal and WithMessage.
func (e *AppError) Is(target error) bool {
	other, ok := target.(*AppError)
	if !ok || e == nil || other == nil {
		return false
	}
	return e.Code == other.Code
}

// Unwrap exposes the internal error for errors.Is / errors.As compatibility.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Internal
}

// WithInternal returns a copy of the AppError with an attached internal error.
func (e *AppError) WithInternal(err error) *AppError {
	if e == nil {
		return nil
	}

	cpy := *e
	cpy.Internal = err
	return &cpy
}

// WithMessage returns a copy of the AppError carrying a more specific message.
func (e *AppError) WithMessage(message string) *AppError {
	if e == nil {
		return nil
	}

	cpy := *e
	cpy.Message = message
	return &cpy
}

// Common errors exposed to the rest of the application.
var (
	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "Resource not found",
		StatusCode: http.StatusNotFound,
	}

	// ErrUpstream covers any non-2xx answer from the GitHub REST API.
	// Remote calls are attempted once per logical operation; failures
	// surface immediately instead of being retried.
	ErrUpstream = &AppError{
		Code:       "UPSTREAM_ERROR",
		Message:    "GitHub API request failed",
		StatusCode: http.StatusBadGateway,
	}

	// ErrMissingTenant indicates the repository owner has no recorded
	// installation. The caller must (re-)install the app; there is no
	// automatic recovery.
	ErrMissingTenant = &AppError{
		Code:       "INSTALLATION_NOT_FOUND",
		Message:    "No app installation recorded for this repository owner",
		StatusCode: http.StatusNotFound,
	}

	// ErrDirectoryNotReady distinguishes a lookup that raced the startup
	// installation sync from a genuine unknown owner.
	ErrDirectoryNotReady = &AppError{
		Code:       "DIRECTORY_NOT_READY",
		Message:    "Installation directory is still warming up",
		StatusCode: http.StatusServiceUnavailable,
	}

	// ErrAuthExchangeRejected maps GitHub's bad_verification_code answer;
	// handlers recover by restarting the login flow.
	ErrAuthExchangeRejected = &AppError{
		Code:       "AUTH_EXCHANGE_REJECTED",
		Message:    "OAuth code exchange was rejected",
		StatusCode: http.StatusUnauthorized,
	}

	ErrBadRequest = &AppError{
		Code:       "BAD_REQUEST",
		Message:    "Invalid request",
		StatusCode: http.StatusBadRequest,
	}

	ErrInternalServer = &AppError{
		Code:       "INTERNAL_SERVER_ERROR",
		Message:    "Internal server error",
		StatusCode: http.StatusInternalServerError,
	}

	ErrRateLimit = &AppError{
		Code:       "RATE_LIMIT_EXCEEDED",
		Message:    "Too many requests, please slow down",
		StatusCode: http.StatusTooManyRequests,
	}
)

// New builds a new application error with the provided metadata.
func New(code, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// FromError converts a generic error into an AppError, defaulting to ErrInternalServer.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	return ErrInternalServer.WithInternal(err)
}

// NewBadRequest wraps validation errors with a helpful message.
func NewBadRequest(message string) *AppError {
	return &AppError{
		Code:       ErrBadRequest.Code,
		Message:    message,
		StatusCode: ErrBadRequest.StatusCode,
	}
}
