// Package status defines the tagged Status enum every fallible dive
// computer operation returns, plus an Error type that chains a cause onto
// a Status code.
package status

import "fmt"

// Status is the tagged result of a fallible operation. Every routine in
// this module that can fail returns exactly one of these.
type Status int

const (
	Success Status = iota
	Unsupported
	InvalidArgs
	NoMemory
	NoDevice
	NoAccess
	IO
	Timeout
	Protocol
	DataFormat
	Cancelled
)

var names = map[Status]string{
	Success:     "success",
	Unsupported: "unsupported",
	InvalidArgs: "invalid arguments",
	NoMemory:    "no memory",
	NoDevice:    "no device",
	NoAccess:    "no access",
	IO:          "io error",
	Timeout:     "timeout",
	Protocol:    "protocol error",
	DataFormat:  "data format error",
	Cancelled:   "cancelled",
}

func (s Status) String() string {
	if n, ok := names[s]; ok {
		return n
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Error wraps a Status with a message and an optional underlying cause.
// It is the only error type this module returns; callers that need to
// branch on the failure kind type-assert or call errors.As.
type Error struct {
	Code    Status
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error with the same Code, so that
// errors.Is(err, status.New(status.Protocol, "")) style checks work.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New builds an *Error carrying code and message with no wrapped cause.
func New(code Status, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap builds an *Error carrying code and message, wrapping cause.
func Wrap(code Status, message string, cause error) error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Code extracts the Status carried by err, or Success if err is nil, or
// IO if err is a non-nil error of an unrecognized type (it reached us
// from an external collaborator without going through New/Wrap).
func Code(err error) Status {
	if err == nil {
		return Success
	}
	var se *Error
	if ok := asError(err, &se); ok {
		return se.Code
	}
	return IO
}

func asError(err error, target **Error) bool {
	for err != nil {
		if se, ok := err.(*Error); ok {
			*target = se
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
