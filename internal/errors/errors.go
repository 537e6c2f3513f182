package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a category of session error.
type ErrorCode string

const (
	// ErrCodeTokenDecode indicates a bearer token that is malformed or whose payload cannot be parsed.
	ErrCodeTokenDecode ErrorCode = "token_decode"
	// ErrCodeTokenExpired indicates a stored token whose expiry has passed or cannot be determined.
	ErrCodeTokenExpired ErrorCode = "token_expired"
	// ErrCodeTokenMissing indicates no token is stored.
	ErrCodeTokenMissing ErrorCode = "token_missing"
	// ErrCodeIdentityFetch indicates the identity round trip failed (network, non-2xx, malformed body).
	ErrCodeIdentityFetch ErrorCode = "identity_fetch"
	// ErrCodeLogin indicates the authenticate-with-credentials call failed.
	ErrCodeLogin ErrorCode = "login"
	// ErrCodeLogout indicates the remote logout call failed. Always absorbed by the controller.
	ErrCodeLogout ErrorCode = "logout"
	// ErrCodeValidation indicates invalid input data.
	ErrCodeValidation ErrorCode = "validation"
	// ErrCodeInternal indicates an unexpected local failure (storage, encoding).
	ErrCodeInternal ErrorCode = "internal"
)

// AppError represents a structured error with a code, message, and optional cause.
// It supports error wrapping and unwrapping for use with errors.Is and errors.As.
type AppError struct {
	// Code categorizes the error type
	Code ErrorCode
	// Message is a human-readable error message
	Message string
	// Cause is the underlying error that caused this error (optional)
	Cause error
	// Status is the HTTP status returned by the backend, when there was one
	Status int
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause, enabling errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Decode creates a DecodeError wrapping the parse failure.
func Decode(cause error) *AppError {
	return &AppError{Code: ErrCodeTokenDecode, Message: "decode token", Cause: cause}
}

// ExpiredToken creates an ExpiredTokenError.
func ExpiredToken() *AppError {
	return &AppError{Code: ErrCodeTokenExpired, Message: "token expired"}
}

// MissingToken creates the error used when no token is stored.
func MissingToken() *AppError {
	return &AppError{Code: ErrCodeTokenMissing, Message: "no token stored"}
}

// IdentityFetch creates an IdentityFetchError wrapping the cause.
func IdentityFetch(cause error) *AppError {
	return &AppError{Code: ErrCodeIdentityFetch, Message: "fetch current identity", Cause: cause}
}

// IdentityFetchStatus creates an IdentityFetchError for a non-2xx backend response.
func IdentityFetchStatus(status int, body string) *AppError {
	return &AppError{
		Code:    ErrCodeIdentityFetch,
		Message: fmt.Sprintf("fetch current identity: unexpected status %d: %s", status, body),
		Status:  status,
	}
}

// Login creates a LoginError wrapping the cause.
func Login(cause error) *AppError {
	return &AppError{Code: ErrCodeLogin, Message: "login", Cause: cause}
}

// LoginStatus creates a LoginError for a non-2xx backend response.
func LoginStatus(status int, body string) *AppError {
	return &AppError{
		Code:    ErrCodeLogin,
		Message: fmt.Sprintf("login: unexpected status %d: %s", status, body),
		Status:  status,
	}
}

// Logout creates a LogoutError wrapping the cause.
func Logout(cause error) *AppError {
	return &AppError{Code: ErrCodeLogout, Message: "logout", Cause: cause}
}

// Validation creates a new Validation error.
func Validation(message string) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: message}
}

// Wrap wraps an existing error with an AppError, preserving the cause.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Message: message, Cause: err}
}

// Wrapf wraps an existing error with an AppError and formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...any) *AppError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// IsCode checks if an error has a specific error code anywhere in its chain.
func IsCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// IsTokenDecode checks if an error is a DecodeError.
func IsTokenDecode(err error) bool { return IsCode(err, ErrCodeTokenDecode) }

// IsTokenExpired checks if an error is an ExpiredTokenError.
func IsTokenExpired(err error) bool { return IsCode(err, ErrCodeTokenExpired) }

// IsTokenMissing checks if an error reports an absent token.
func IsTokenMissing(err error) bool { return IsCode(err, ErrCodeTokenMissing) }

// IsIdentityFetch checks if an error is an IdentityFetchError.
func IsIdentityFetch(err error) bool { return IsCode(err, ErrCodeIdentityFetch) }

// IsLogin checks if an error is a LoginError.
func IsLogin(err error) bool { return IsCode(err, ErrCodeLogin) }

// GetCode returns the ErrorCode from an error, or empty string if not an AppError.
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// GetStatus returns the backend HTTP status carried by an AppError, or 0.
func GetStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	return 0
}
