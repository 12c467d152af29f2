package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error code
type ErrorCode int

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	// Status is the HTTP status reported by the backend, zero when no response was received.
	Status int `json:"status,omitempty"`
	// Step names the workflow step that failed when an operation has more than one.
	Step  string `json:"step,omitempty"`
	Token string `json:"confirm_token,omitempty"`
	Err   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// StatusCode maps the error to the status the BFF answers with.
func (e *AppError) StatusCode() int {
	switch e.Code {
	case ErrValidation, ErrInvalidTransition, ErrNotConfirmed:
		return http.StatusUnprocessableEntity
	case ErrConfirmationRequired:
		return http.StatusPreconditionRequired
	case ErrBadRequest:
		return http.StatusBadRequest
	case ErrNotFound:
		return http.StatusNotFound
	case ErrForbidden:
		return http.StatusForbidden
	case ErrUnauthorized:
		return http.StatusUnauthorized
	case ErrTransport:
		return http.StatusServiceUnavailable
	case ErrServer, ErrRetrieval:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrBadRequest
	ErrUnauthorized
	ErrForbidden
	ErrInternal
	ErrValidation
	ErrInvalidTransition
	ErrConfirmationRequired
	ErrNotConfirmed
	ErrTransport
	ErrServer
	ErrRetrieval
)

// Messages shown to users when the backend gives nothing better.
const (
	MsgCannotReachServer = "cannot reach server"
	MsgFillDrugDetails   = "please fill in the drug details"
	MsgRetrievalFailed   = "failed to retrieve image"
	MsgAccessDenied      = "you do not have permission to view this image"
)

// Error constructors
func NewNotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Status:  http.StatusNotFound,
		Err:     err,
	}
}

func NewBadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    ErrBadRequest,
		Message: message,
		Err:     err,
	}
}

func NewInternal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal server error",
		Err:     err,
	}
}

// Validation is a client-side pre-flight failure. No request was sent.
func Validation(message string) *AppError {
	return &AppError{Code: ErrValidation, Message: message}
}

// InvalidTransition reports a forbidden status change. No request was sent.
func InvalidTransition(from, to fmt.Stringer) *AppError {
	return &AppError{
		Code:    ErrInvalidTransition,
		Message: fmt.Sprintf("cannot move from %s to %s", from, to),
	}
}

// ConfirmationRequired asks the caller to repeat the action with the given token.
func ConfirmationRequired(message, token string) *AppError {
	return &AppError{Code: ErrConfirmationRequired, Message: message, Token: token}
}

func NotConfirmed(action string) *AppError {
	return &AppError{
		Code:    ErrNotConfirmed,
		Message: fmt.Sprintf("%s was not confirmed", action),
	}
}

// Transport means no response was received from the backend.
func Transport(err error) *AppError {
	return &AppError{Code: ErrTransport, Message: MsgCannotReachServer, Err: err}
}

// Server wraps a non-2xx backend response. The message is the backend's own when present.
func Server(status int, message string) *AppError {
	if message == "" {
		message = fallbackMessage(status)
	}
	code := ErrServer
	switch status {
	case http.StatusNotFound:
		code = ErrNotFound
	case http.StatusForbidden:
		code = ErrForbidden
	case http.StatusUnauthorized:
		code = ErrUnauthorized
	}
	return &AppError{Code: code, Message: message, Status: status}
}

func Forbidden(message string, err error) *AppError {
	return &AppError{Code: ErrForbidden, Message: message, Status: http.StatusForbidden, Err: err}
}

func Retrieval(err error) *AppError {
	return &AppError{Code: ErrRetrieval, Message: MsgRetrievalFailed, Err: err}
}

// AtStep tags err with the workflow step it came from.
func AtStep(step string, err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		tagged := *appErr
		tagged.Step = step
		tagged.Message = fmt.Sprintf("%s failed: %s", step, appErr.Message)
		return &tagged
	}
	return &AppError{
		Code:    ErrInternal,
		Message: fmt.Sprintf("%s failed", step),
		Step:    step,
		Err:     err,
	}
}

// Common errors
func NotFound(resource string, err error) *AppError {
	return NewNotFound(resource, err)
}

func BadRequest(message string, err error) *AppError {
	return NewBadRequest(message, err)
}

func Internal(err error) *AppError {
	return NewInternal(err)
}

func Unauthorized(err error) *AppError {
	return &AppError{
		Code:    ErrUnauthorized,
		Message: "unauthorized",
		Err:     err,
	}
}

// CodeOf returns the AppError code in err's chain, or ErrInternal.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}

// Is reports whether err carries the given code.
func Is(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

func fallbackMessage(status int) string {
	switch {
	case status == http.StatusBadRequest:
		return "the request was rejected by the server"
	case status == http.StatusUnauthorized:
		return "your session has expired, please sign in again"
	case status == http.StatusForbidden:
		return "you do not have permission to perform this action"
	case status == http.StatusNotFound:
		return "the requested record no longer exists"
	case status == http.StatusConflict:
		return "the record was changed by someone else, please reload"
	case status >= 500:
		return "the server failed to process the request"
	default:
		return fmt.Sprintf("request failed with status %d", status)
	}
}
