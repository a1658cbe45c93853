// Package dberror defines the error kinds surfaced by the bridge.
//
// Every engine or setup failure is wrapped into an *Error carrying one Kind.
// Callers branch with errors.Is against the sentinels or with IsRetryable.
package dberror

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an Error.
type Kind string

// Error kinds.
const (
	KindConnect          Kind = "connect"
	KindRetryableConnect Kind = "retryable_connect"
	KindStatement        Kind = "statement"
	KindConfiguration    Kind = "configuration"
	KindUnsupported      Kind = "unsupported"
)

// Sentinels for errors.Is. Only the Kind is compared.
var (
	ErrConnect          = &Error{Kind: KindConnect}
	ErrRetryableConnect = &Error{Kind: KindRetryableConnect}
	ErrStatement        = &Error{Kind: KindStatement}
	ErrConfiguration    = &Error{Kind: KindConfiguration}
	ErrUnsupported      = &Error{Kind: KindUnsupported}
)

// Error is a classified bridge error.
type Error struct {
	Kind    Kind
	Message string
	// SQL is the physical statement that failed, if any.
	SQL string
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message == "" && e.Err != nil {
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// NewConnectError reports a fatal failure while connecting or during
// post-connect setup.
func NewConnectError(message string, err error) *Error {
	return &Error{Kind: KindConnect, Message: message, Err: err}
}

// NewRetryableConnectError reports a transport failure during connect that
// an outer retry policy may re-attempt.
func NewRetryableConnectError(message string, err error) *Error {
	return &Error{Kind: KindRetryableConnect, Message: message, Err: err}
}

// NewStatementError wraps an engine failure for one physical statement.
// The engine message is trimmed of surrounding whitespace.
func NewStatementError(sql string, err error) *Error {
	msg := ""
	if err != nil {
		msg = strings.TrimSpace(err.Error())
	}
	return &Error{Kind: KindStatement, Message: msg, SQL: sql, Err: err}
}

// NewConfigurationError reports an invalid credential combination.
func NewConfigurationError(message string) *Error {
	return &Error{Kind: KindConfiguration, Message: message}
}

// NewUnsupportedError reports an operation with no defined behavior on this engine.
func NewUnsupportedError(operation string) *Error {
	return &Error{Kind: KindUnsupported, Message: fmt.Sprintf("%s is not supported by this adapter", operation)}
}

// IsRetryable reports whether err is a RetryableConnectError.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRetryableConnect)
}

// KindOf returns the Kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
