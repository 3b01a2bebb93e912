// Package apperr defines the error taxonomy shared by the store, presence,
// liveness, and streaming packages.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an error for propagation and HTTP mapping
type Kind string

// Error kinds
const (
	KindValidation     Kind = "validation"
	KindNotFound       Kind = "not_found"
	KindStorage        Kind = "storage"
	KindPipelineLaunch Kind = "pipeline_launch"
	KindProtocol       Kind = "protocol"
)

// String returns the string representation of the kind
func (k Kind) String() string {
	return string(k)
}

// Error is a classified error carrying the operation and the resource it touched
type Error struct {
	Kind    Kind
	Op      string // operation, e.g. "store.read"
	Path    string // file path or resource identifier
	Message string
	Cause   error
}

// Sentinel values for errors.Is comparisons against a kind
var (
	ErrValidation     = &Error{Kind: KindValidation}
	ErrNotFound       = &Error{Kind: KindNotFound}
	ErrStorage        = &Error{Kind: KindStorage}
	ErrPipelineLaunch = &Error{Kind: KindPipelineLaunch}
	ErrProtocol       = &Error{Kind: KindProtocol}
)

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Op != "" {
		b.WriteString(" ")
		b.WriteString(e.Op)
	}
	if e.Path != "" {
		fmt.Fprintf(&b, " [%s]", e.Path)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, " (caused by: %v)", e.Cause)
	}
	return b.String()
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is the bare sentinel for this error's kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Path == "" && t.Message == "" && t.Cause == nil
}

// Validation builds a ValidationFailure
func Validation(op, message string) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: message}
}

// NotFound builds a NotFound error for the given resource
func NotFound(op, resource, message string) *Error {
	return &Error{Kind: KindNotFound, Op: op, Path: resource, Message: message}
}

// Storage builds a StorageFailure carrying the document path
func Storage(op, path string, cause error) *Error {
	return &Error{Kind: KindStorage, Op: op, Path: path, Message: "document i/o failed", Cause: cause}
}

// PipelineLaunch builds a PipelineLaunchFailure
func PipelineLaunch(op, resource, message string, cause error) *Error {
	return &Error{Kind: KindPipelineLaunch, Op: op, Path: resource, Message: message, Cause: cause}
}

// Protocol builds a ProtocolError for a malformed presence message
func Protocol(message string, cause error) *Error {
	return &Error{Kind: KindProtocol, Op: "presence.decode", Message: message, Cause: cause}
}

// KindOf returns the kind of the first classified error in err's chain
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// IsNotFound checks if the error is a NotFound error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if the error is a ValidationFailure
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsStorage checks if the error is a StorageFailure
func IsStorage(err error) bool {
	return errors.Is(err, ErrStorage)
}

// IsPipelineLaunch checks if the error is a PipelineLaunchFailure
func IsPipelineLaunch(err error) bool {
	return errors.Is(err, ErrPipelineLaunch)
}

// IsProtocol checks if the error is a ProtocolError
func IsProtocol(err error) bool {
	return errors.Is(err, ErrProtocol)
}
