package domain

import (
	"errors"
	"net/http"
)

// Error codes for console and backend errors.
const (
	CodeNotFound       = 1
	CodeAlreadyExists  = 2
	CodeValidation     = 3
	CodeInternal       = 4
	CodeNetwork        = 5
	CodeResponseFormat = 6
	CodeApplication    = 7
	CodeUnauthorized   = 8
)

// AppError represents a categorised error with a code, a user-facing message,
// and an optional wrapped cause.
type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap returns the wrapped error for use with errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Predefined errors.
//
// Use the Is* helpers to classify an error. They match by code through
// errors.As, so wrapped errors and fresh instances from NewAppError are
// recognised as well as these sentinels.
var (
	ErrNotFound       = &AppError{Code: CodeNotFound, Message: "not found"}
	ErrAlreadyExists  = &AppError{Code: CodeAlreadyExists, Message: "already exists"}
	ErrValidation     = &AppError{Code: CodeValidation, Message: "validation error"}
	ErrInternal       = &AppError{Code: CodeInternal, Message: "internal error"}
	ErrNetwork        = &AppError{Code: CodeNetwork, Message: "backend unreachable"}
	ErrResponseFormat = &AppError{Code: CodeResponseFormat, Message: "unexpected response format"}
	ErrUnauthorized   = &AppError{Code: CodeUnauthorized, Message: "not signed in"}
)

// NewAppError creates a new AppError with the given code, message, and wrapped error.
func NewAppError(code int, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewValidationError returns a Validation error carrying a user-facing message.
func NewValidationError(message string) *AppError {
	return &AppError{Code: CodeValidation, Message: message}
}

// NewNetworkError wraps a transport failure.
func NewNetworkError(err error) *AppError {
	return &AppError{Code: CodeNetwork, Message: ErrNetwork.Message, Err: err}
}

// NewResponseFormatError wraps a decoding failure of a backend response.
func NewResponseFormatError(err error) *AppError {
	return &AppError{Code: CodeResponseFormat, Message: ErrResponseFormat.Message, Err: err}
}

// NewApplicationError reports a backend-side failure. The message is shown
// to the admin verbatim.
func NewApplicationError(message string) *AppError {
	return &AppError{Code: CodeApplication, Message: message}
}

// IsNotFound reports whether err is or wraps an AppError with CodeNotFound.
func IsNotFound(err error) bool {
	return hasCode(err, CodeNotFound)
}

// IsAlreadyExists reports whether err is or wraps an AppError with CodeAlreadyExists.
func IsAlreadyExists(err error) bool {
	return hasCode(err, CodeAlreadyExists)
}

// IsValidation reports whether err is or wraps an AppError with CodeValidation.
func IsValidation(err error) bool {
	return hasCode(err, CodeValidation)
}

// IsInternal reports whether err is or wraps an AppError with CodeInternal.
func IsInternal(err error) bool {
	return hasCode(err, CodeInternal)
}

// IsNetwork reports whether err is or wraps an AppError with CodeNetwork.
func IsNetwork(err error) bool {
	return hasCode(err, CodeNetwork)
}

// IsResponseFormat reports whether err is or wraps an AppError with CodeResponseFormat.
func IsResponseFormat(err error) bool {
	return hasCode(err, CodeResponseFormat)
}

// IsApplication reports whether err is or wraps an AppError with CodeApplication.
func IsApplication(err error) bool {
	return hasCode(err, CodeApplication)
}

// IsUnauthorized reports whether err is or wraps an AppError with CodeUnauthorized.
func IsUnauthorized(err error) bool {
	return hasCode(err, CodeUnauthorized)
}

// UserMessage returns the message of a user-facing error, or fallback for
// anything that may carry internal details.
func UserMessage(err error, fallback string) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		switch appErr.Code {
		case CodeNotFound, CodeAlreadyExists, CodeValidation, CodeApplication, CodeUnauthorized:
			return appErr.Message
		}
	}
	return fallback
}

// hasCode checks whether err is or wraps an *AppError with the given code.
func hasCode(err error, code int) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// HTTPStatusCode maps an error to an HTTP status code.
// If the error is an *AppError, the code is mapped; otherwise http.StatusInternalServerError is returned.
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if err != nil && errors.As(err, &appErr) {
		switch appErr.Code {
		case CodeNotFound:
			return http.StatusNotFound
		case CodeAlreadyExists:
			return http.StatusConflict
		case CodeValidation:
			return http.StatusBadRequest
		case CodeInternal:
			return http.StatusInternalServerError
		case CodeNetwork, CodeResponseFormat:
			return http.StatusBadGateway
		case CodeApplication:
			return http.StatusUnprocessableEntity
		case CodeUnauthorized:
			return http.StatusUnauthorized
		}
	}
	return http.StatusInternalServerError
}
