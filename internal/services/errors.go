package services

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/lib/pq"
)

// ErrorKind classifies service failures so the HTTP layer can map them.
type ErrorKind int

const (
	KindValidation ErrorKind = iota + 1
	KindNotFound
	KindAuth
	KindStorage
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindAuth:
		return "auth"
	case KindStorage:
		return "storage"
	default:
		return "unknown"
	}
}

// Error codes surfaced to clients alongside the message
const (
	CodeAccountNotValidated = "ACCOUNT_NOT_VALIDATED"
	CodeTooManyAttempts     = "TOO_MANY_ATTEMPTS"
)

// Error is the error type returned by every service operation.
type Error struct {
	Kind    ErrorKind
	Message string
	Code    string
	Details map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// StatusCode maps the error kind onto an HTTP status
func (e *Error) StatusCode() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindAuth:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func NewValidationError(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

func NewNotFoundError(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

func NewAuthError(message string) *Error {
	return &Error{Kind: KindAuth, Message: message}
}

func NewStorageError(message string, err error) *Error {
	return &Error{Kind: KindStorage, Message: message, Err: err}
}

// ErrAccountNotValidated is returned for every capability-bearing operation
// on an account that staff have not validated yet.
var ErrAccountNotValidated = &Error{
	Kind:    KindAuth,
	Message: "Account is pending verification",
	Code:    CodeAccountNotValidated,
}

// IsKind reports whether err is a service error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Kind == kind
	}
	return false
}

// AsError converts any error into a service error. Unknown errors become
// storage errors so their detail never reaches the client.
func AsError(err error) *Error {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr
	}
	return NewStorageError("An Internal Error Occurred", err)
}

// isUniqueViolation reports a PostgreSQL unique_violation (23505).
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// isNumericOverflow reports a PostgreSQL numeric_value_out_of_range (22003).
func isNumericOverflow(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "22003"
}

// notFoundOr maps sql.ErrNoRows to a not-found error and anything else to a
// storage error.
func notFoundOr(err error, notFoundMsg, storageMsg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return NewNotFoundError(notFoundMsg)
	}
	return NewStorageError(storageMsg, err)
}
