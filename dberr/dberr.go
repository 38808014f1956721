// Package dberr defines the error taxonomy shared by pagefile, bufferpool
// and record so that callers can switch on a stable Code instead of
// matching error strings.
package dberr

import "fmt"

// Code identifies a class of failure. The zero value is never returned
// by a failing operation — OK is only used when a Code must be compared
// against "no error" explicitly.
type Code int

const (
	OK Code = iota
	FileNotFound
	FileExists
	FileHandleNotInit
	WriteFailed
	ReadFailed
	NonExistingPage
	InvalidParam
	OutOfMemory
	PinnedPagesOnShutdown
	PageNotFoundInPool
	NoFreeFrame
	NoSuchTuple
	NoMoreTuples
	TypeMismatch
)

var names = map[Code]string{
	OK:                    "ok",
	FileNotFound:          "file not found",
	FileExists:            "file already exists",
	FileHandleNotInit:     "file handle not initialized",
	WriteFailed:           "write failed",
	ReadFailed:            "read failed",
	NonExistingPage:       "non-existing page",
	InvalidParam:          "invalid parameter",
	OutOfMemory:           "out of memory",
	PinnedPagesOnShutdown: "pinned pages on shutdown",
	PageNotFoundInPool:    "page not found in pool",
	NoFreeFrame:           "no free frame",
	NoSuchTuple:           "no such tuple",
	NoMoreTuples:          "no more tuples",
	TypeMismatch:          "type mismatch",
}

func (c Code) String() string {
	if s, ok := names[c]; ok {
		return s
	}
	return "unknown error code"
}

// Error is the structured failure value surfaced across every package
// boundary in this module. It replaces the original implementation's
// process-wide RC_message: the context travels with the error value
// instead of living in a global.
type Error struct {
	Code  Code
	Op    string // operation that failed, e.g. "pagefile.ReadBlock"
	Cause error  // wrapped underlying error, if any
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Code)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is a *Error with the same Code, so callers
// can write errors.Is(err, dberr.New("", dberr.NoSuchTuple)) or compare
// against a sentinel built with Code alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New builds an *Error with no wrapped cause.
func New(op string, code Code) *Error {
	return &Error{Op: op, Code: code}
}

// Wrap builds an *Error that wraps cause, preserving it for errors.Is/As
// chains that reach past this package's own taxonomy.
func Wrap(op string, code Code, cause error) *Error {
	return &Error{Op: op, Code: code, Cause: cause}
}

// CodeOf extracts the Code carried by err, walking Unwrap chains. It
// returns OK and false if no *Error is found.
func CodeOf(err error) (Code, bool) {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Code, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return OK, false
}
