package ccd

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failure independently of the backend which produced it
type Kind int

const (
	// KindNone is carried by no error; KindOf(nil) returns it
	KindNone Kind = iota

	// InvalidArgument is a nil or out of range input, or a buffer which is too small
	InvalidArgument

	// UnsupportedOperation is an operation the active driver does not implement
	UnsupportedOperation

	// HardwareCommandFailed is a vendor SDK call which returned a failure code
	HardwareCommandFailed

	// Aborted is a user requested cancellation
	Aborted

	// Timeout is an exposure which did not complete within its length plus margin
	Timeout

	// AllocationFailed is a failure to allocate a buffer
	AllocationFailed
)

var kindNames = map[Kind]string{
	KindNone:              "none",
	InvalidArgument:       "invalid argument",
	UnsupportedOperation:  "unsupported operation",
	HardwareCommandFailed: "hardware command failed",
	Aborted:               "aborted",
	Timeout:               "timeout",
	AllocationFailed:      "allocation failed",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is returned by every failing operation of a session or backend.
//
// Code is the backend's own numeric code for HardwareCommandFailed errors and
// zero otherwise.  Msg holds the human readable diagnostic.
type Error struct {
	Kind Kind
	Op   string
	Code int
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Msg != "" {
		b.WriteString(e.Msg)
	} else {
		b.WriteString(e.Kind.String())
	}
	if e.Kind == HardwareCommandFailed && e.Code != 0 {
		fmt.Fprintf(&b, " (%d)", e.Code)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause, if any
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels, so errors.Is(err, ErrAborted) is true for
// any aborted exposure regardless of which backend produced it
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Op != "" || t.Code != 0 {
		return false
	}
	return t.Kind == e.Kind
}

var (
	// ErrInvalidArgument matches errors of kind InvalidArgument
	ErrInvalidArgument = &Error{Kind: InvalidArgument}

	// ErrNotImplemented is returned by operations a backend does not provide
	ErrNotImplemented = &Error{Kind: UnsupportedOperation, Msg: "not implemented"}

	// ErrHardware matches errors of kind HardwareCommandFailed
	ErrHardware = &Error{Kind: HardwareCommandFailed}

	// ErrAborted matches errors of kind Aborted
	ErrAborted = &Error{Kind: Aborted}

	// ErrTimeout matches errors of kind Timeout
	ErrTimeout = &Error{Kind: Timeout}

	// ErrAllocation matches errors of kind AllocationFailed
	ErrAllocation = &Error{Kind: AllocationFailed}
)

// Errorf builds an Error of the given kind with a formatted message
func Errorf(kind Kind, op, format string, args ...interface{}) error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// HardwareError builds a HardwareCommandFailed error carrying a backend code
// and the backend's description of it
func HardwareError(op string, code int, format string, args ...interface{}) error {
	return &Error{Kind: HardwareCommandFailed, Op: op, Code: code, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the Kind of err.  Errors foreign to this package report
// HardwareCommandFailed when they carry no Kind of their own.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return HardwareCommandFailed
}

// CodeOf returns the numeric code recorded for err in an ErrorState.
// Backend codes win; otherwise the Kind is used.
func CodeOf(err error) int {
	if err == nil {
		return 0
	}
	var e *Error
	if errors.As(err, &e) {
		if e.Code != 0 {
			return e.Code
		}
		return int(e.Kind)
	}
	return int(HardwareCommandFailed)
}
