// Package kvserr defines the typed error taxonomy shared by the storage
// engine, the wire protocol, and the network client/server.
package kvserr

import (
	"errors"
	"fmt"
)

// Code categorizes a failure so callers can branch on it without parsing
// messages.
type Code string

const (
	// CodeIO covers filesystem or socket failures.
	CodeIO Code = "IO"
	// CodeCorrupt covers a record that cannot be decoded where one was
	// expected (malformed framing, not a truncated tail).
	CodeCorrupt Code = "CORRUPT_RECORD"
	// CodeUnexpectedRecordType covers an index entry pointing at a
	// non-Set record.
	CodeUnexpectedRecordType Code = "UNEXPECTED_RECORD_TYPE"
	// CodeNotFound covers remove of an absent key.
	CodeNotFound Code = "NOT_FOUND"
	// CodeEngineMismatch covers a configured engine flavor disagreeing
	// with the data directory's marker file.
	CodeEngineMismatch Code = "ENGINE_MISMATCH"
	// CodeAddrInvalid covers address parse/bind failures.
	CodeAddrInvalid Code = "ADDR_INVALID"
	// CodeRemote covers an opaque message carried back from a remote
	// server's Err response.
	CodeRemote Code = "REMOTE"
)

// Error is the concrete error type returned across package boundaries in
// this module. It wraps an optional cause and carries a Code plus
// free-form structured detail for logging.
type Error struct {
	Code    Code
	Message string
	Cause   error
	Details map[string]any
}

// New creates an Error with the given code and message.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Wrap creates an Error that preserves an underlying cause.
func Wrap(code Code, cause error, msg string) *Error {
	return &Error{Code: code, Message: msg, Cause: cause}
}

// WithDetail attaches a structured field, lazily allocating the map.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any, 1)
	}
	e.Details[key] = value
	return e
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NotFound reports whether err is, or wraps, a CodeNotFound error.
func NotFound(err error) bool {
	return hasCode(err, CodeNotFound)
}

// Corrupt reports whether err is, or wraps, a CodeCorrupt error.
func Corrupt(err error) bool {
	return hasCode(err, CodeCorrupt)
}

func hasCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// CodeOf extracts the Code of err, or "" if err isn't one of ours.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
