// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error types and error handling utilities for hioload-attach.

package api

import (
	"errors"
	"fmt"
)

// Common errors used across the library.
var (
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrNotSupported     = errors.New("operation not supported")
	ErrHandleClosed     = errors.New("handle is closed")
	ErrPollerClosed     = errors.New("poller is closed")
	ErrOperationTimeout = errors.New("operation timeout")
	ErrWouldBlock       = errors.New("operation would block")

	// ErrStreamClosed reports a zero-byte read: the peer closed the stream.
	// The frame reader turns it into a graceful end or ErrTruncatedFrame
	// depending on where it happens, so consumers of a stream never see it.
	ErrStreamClosed = errors.New("stream closed by peer")

	// ErrTruncatedFrame reports closure after a header was read but before
	// its declared payload completed.
	ErrTruncatedFrame = errors.New("truncated frame")

	// ErrFrameTooLarge reports a declared payload above the configured limit.
	ErrFrameTooLarge = errors.New("frame exceeds maximum size")
)

// ErrorCode represents specific error conditions in the library.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeInvalidArgument
	ErrCodeTimeout
	ErrCodeClosed
	ErrCodeTruncated
	ErrCodeTooLarge
	ErrCodeNotSupported
	ErrCodeInternal
)

// String returns a short name for the code.
func (c ErrorCode) String() string {
	switch c {
	case ErrCodeOK:
		return "ok"
	case ErrCodeInvalidArgument:
		return "invalid_argument"
	case ErrCodeTimeout:
		return "timeout"
	case ErrCodeClosed:
		return "closed"
	case ErrCodeTruncated:
		return "truncated"
	case ErrCodeTooLarge:
		return "too_large"
	case ErrCodeNotSupported:
		return "not_supported"
	default:
		return "internal"
	}
}

// Error represents a structured error with code and context.
// It wraps one of the sentinel errors above so errors.Is keeps working.
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if len(e.Context) == 0 {
		return msg
	}
	return fmt.Sprintf("%s (context: %+v)", msg, e.Context)
}

// Unwrap returns the wrapped sentinel.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new structured error. It wraps the sentinel matching
// code, if any, so errors.Is sees the same condition as for Wrap.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: make(map[string]any),
		Err:     sentinelFor(code),
	}
}

func sentinelFor(code ErrorCode) error {
	switch code {
	case ErrCodeInvalidArgument:
		return ErrInvalidArgument
	case ErrCodeTimeout:
		return ErrOperationTimeout
	case ErrCodeClosed:
		return ErrStreamClosed
	case ErrCodeTruncated:
		return ErrTruncatedFrame
	case ErrCodeTooLarge:
		return ErrFrameTooLarge
	case ErrCodeNotSupported:
		return ErrNotSupported
	default:
		return nil
	}
}

// Wrap creates a structured error around a sentinel, reusing its text.
func Wrap(code ErrorCode, err error) *Error {
	return &Error{
		Code:    code,
		Message: err.Error(),
		Context: make(map[string]any),
		Err:     err,
	}
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// CodeOf extracts the ErrorCode of err, or ErrCodeInternal when err carries none.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ErrCodeOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}
