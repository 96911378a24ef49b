package errors

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeNotFound                = "NOT_FOUND"
	CodeBadRequest              = "BAD_REQUEST"
	CodeValidation              = "VALIDATION_ERROR"
	CodeUnauthorized            = "UNAUTHORIZED"
	CodeForbidden               = "FORBIDDEN"
	CodeConflict                = "CONFLICT"
	CodeInternal                = "INTERNAL_ERROR"
	CodeTooManyRequests         = "TOO_MANY_REQUESTS"
	CodeSelfConnection          = "SELF_CONNECTION"
	CodeDuplicateConnection     = "DUPLICATE_CONNECTION"
	CodePeerMessagingDisallowed = "PEER_MESSAGING_DISALLOWED"
	CodeConnectionRequired      = "CONNECTION_REQUIRED"
)

type AppError struct {
	Code    string
	Message string
	Status  int
	Err     error
	Details map[string]interface{}
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail attaches a client-visible detail and returns the same error.
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func New(code string, message string, status int, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

func NotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Status:  http.StatusNotFound,
		Err:     err,
	}
}

func BadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    CodeBadRequest,
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     err,
	}
}

func Validation(message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
		Status:  http.StatusBadRequest,
	}
}

// Unauthorized is the authentication failure: bad, expired or missing bearer token.
func Unauthorized(message string, err error) *AppError {
	return &AppError{
		Code:    CodeUnauthorized,
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     err,
	}
}

func Internal(message string, err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: message,
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

func Forbidden(message string, err error) *AppError {
	return &AppError{
		Code:    CodeForbidden,
		Message: message,
		Status:  http.StatusForbidden,
		Err:     err,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Code:    CodeConflict,
		Message: message,
		Status:  http.StatusConflict,
	}
}

func TooManyRequests(message string, waitTime interface{}) *AppError {
	appErr := &AppError{
		Code:    CodeTooManyRequests,
		Message: message,
		Status:  http.StatusTooManyRequests,
	}
	if waitTime != nil {
		appErr.WithDetail("retryAfter", fmt.Sprint(waitTime))
	}
	return appErr
}

func SelfConnection() *AppError {
	return &AppError{
		Code:    CodeSelfConnection,
		Message: "You cannot send a connection request to yourself",
		Status:  http.StatusBadRequest,
	}
}

func DuplicateConnection(status string) *AppError {
	return (&AppError{
		Code:    CodeDuplicateConnection,
		Message: "A connection already exists between these users",
		Status:  http.StatusConflict,
	}).WithDetail("status", status)
}

func PeerMessagingDisallowed() *AppError {
	return &AppError{
		Code:    CodePeerMessagingDisallowed,
		Message: "Students cannot message other students",
		Status:  http.StatusForbidden,
	}
}

// ConnectionRequired carries the hint that the caller should offer a
// connection request with the message text as its note.
func ConnectionRequired() *AppError {
	return (&AppError{
		Code:    CodeConnectionRequired,
		Message: "An accepted connection is required before messaging this user",
		Status:  http.StatusForbidden,
	}).WithDetail("suggestConnectionRequest", true)
}

func Is(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// CodeOf returns the AppError code of err, or CodeInternal for foreign errors.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// IsAuthorizationDenial reports whether err is a messaging policy denial.
func IsAuthorizationDenial(err error) bool {
	return Is(err, CodePeerMessagingDisallowed) || Is(err, CodeConnectionRequired)
}
