// Package apperror defines the error taxonomy shared by the reconciliation and
// dispatch components. Callers branch on kinds with errors.Is, never on text.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrNotFound      = errors.New("not found")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrRateLimited   = errors.New("rate limited")
	ErrUnreachable   = errors.New("unreachable")
	ErrDuplicateSend = errors.New("duplicate send")
	ErrUnexpected    = errors.New("unexpected")

	// Notification Sender failures.
	ErrChannelUnavailable = errors.New("channel unavailable")
	ErrRejected           = errors.New("rejected")
	ErrTransient          = errors.New("transient")
)

// Kind is the taxonomy bucket of an error, used in results and logs.
type Kind string

const (
	KindNone               Kind = ""
	KindInvalidInput       Kind = "InvalidInput"
	KindNotFound           Kind = "NotFound"
	KindUnauthorized       Kind = "Unauthorized"
	KindRateLimited        Kind = "RateLimited"
	KindUnreachable        Kind = "Unreachable"
	KindDuplicateSend      Kind = "DuplicateSend"
	KindChannelUnavailable Kind = "ChannelUnavailable"
	KindRejected           Kind = "Rejected"
	KindTransient          Kind = "Transient"
	KindUnexpected         Kind = "Unexpected"
)

var kinds = []struct {
	sentinel error
	kind     Kind
}{
	{ErrInvalidInput, KindInvalidInput},
	{ErrNotFound, KindNotFound},
	{ErrUnauthorized, KindUnauthorized},
	{ErrRateLimited, KindRateLimited},
	{ErrUnreachable, KindUnreachable},
	{ErrDuplicateSend, KindDuplicateSend},
	{ErrChannelUnavailable, KindChannelUnavailable},
	{ErrRejected, KindRejected},
	{ErrTransient, KindTransient},
	{ErrUnexpected, KindUnexpected},
}

type AppError struct {
	Err     error  // taxonomy sentinel
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Cause   error  // Optional: underlying transport/storage error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap exposes both the sentinel and the cause to errors.Is / errors.As.
func (e *AppError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

func InvalidInput(field, message string) *AppError {
	return &AppError{Err: ErrInvalidInput, Message: message, Field: field}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func Unauthorized(message string, cause error) *AppError {
	return &AppError{Err: ErrUnauthorized, Message: message, Cause: cause}
}

func RateLimited(message string, cause error) *AppError {
	return &AppError{Err: ErrRateLimited, Message: message, Cause: cause}
}

func Unreachable(message string, cause error) *AppError {
	return &AppError{Err: ErrUnreachable, Message: message, Cause: cause}
}

// DuplicateSend reports a lost dedup claim. It is an outcome, not a failure.
func DuplicateSend(key string) *AppError {
	return &AppError{Err: ErrDuplicateSend, Message: fmt.Sprintf("already claimed: %s", key)}
}

func ChannelUnavailable(message string, cause error) *AppError {
	return &AppError{Err: ErrChannelUnavailable, Message: message, Cause: cause}
}

func Rejected(message string, cause error) *AppError {
	return &AppError{Err: ErrRejected, Message: message, Cause: cause}
}

func Transient(message string, cause error) *AppError {
	return &AppError{Err: ErrTransient, Message: message, Cause: cause}
}

func Unexpected(message string, cause error) *AppError {
	return &AppError{Err: ErrUnexpected, Message: message, Cause: cause}
}

// KindOf classifies err. Errors outside the taxonomy are Unexpected.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	for _, k := range kinds {
		if errors.Is(err, k.sentinel) {
			return k.kind
		}
	}
	return KindUnexpected
}

// Retryable reports whether a later attempt may succeed without operator action.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindRateLimited, KindUnreachable, KindTransient:
		return true
	default:
		return false
	}
}
