// Package hkv implements an in-memory hierarchical key/value store: a
// tree of byte-string keys where every value is either a scalar byte
// string or another nested store. It is usable directly as an embedded
// library (see Store) and is the data model served over the wire by
// the sibling server and client packages.
package hkv

import "fmt"

// Code is a wire-stable numeric error code. The integer values are
// part of the wire protocol and must never be renumbered.
type Code uint32

const (
	CodeUnknown   Code = 1
	CodeNoCmd     Code = 2
	CodeNoResp    Code = 3
	CodeNoStore   Code = 4
	CodeNoKey     Code = 5
	CodeBadNest   Code = 6
	CodeBadType   Code = 7
	CodeBadPath   Code = 8
	CodeBadLClass Code = 9
	CodeBadUnlock Code = 10
)

var codeNames = map[Code]string{
	CodeUnknown:   "UNKNOWN",
	CodeNoCmd:     "NOCMD",
	CodeNoResp:    "NORESP",
	CodeNoStore:   "NOSTORE",
	CodeNoKey:     "NOKEY",
	CodeBadNest:   "BADNEST",
	CodeBadType:   "BADTYPE",
	CodeBadPath:   "BADPATH",
	CodeBadLClass: "BADLCLASS",
	CodeBadUnlock: "BADUNLOCK",
}

var codeMessages = map[Code]string{
	CodeUnknown:   "unknown error",
	CodeNoCmd:     "no such command",
	CodeNoResp:    "unknown response",
	CodeNoStore:   "no store opened",
	CodeNoKey:     "no such key",
	CodeBadNest:   "path traverses a scalar",
	CodeBadType:   "operation invoked on wrong node type",
	CodeBadPath:   "path too short",
	CodeBadLClass: "invalid listing class",
	CodeBadUnlock: "unpaired unlock",
}

// Name returns the symbolic name of the error code, or "" if unknown.
func (c Code) Name() string { return codeNames[c] }

// Error is the single error type returned by every operation in this
// package and propagated, unchanged in meaning, across the wire.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("hkv: code %d (%s): %s", e.Code, e.Code.Name(), e.Message)
}

// errFor builds an *Error for a known code, falling back to a generic
// message for codes outside the closed enumeration (used when decoding
// a wire error code we don't recognize).
func errFor(code Code) *Error {
	msg, ok := codeMessages[code]
	if !ok {
		return &Error{Code: CodeUnknown, Message: "unrecognized error code"}
	}
	return &Error{Code: code, Message: msg}
}

// ErrNoCmd, ErrNoStore, etc. are the canonical instances for each
// member of the closed error enumeration; comparisons should use
// errors.As against *Error and inspect Code, not pointer identity.
var (
	ErrUnknown   = errFor(CodeUnknown)
	ErrNoCmd     = errFor(CodeNoCmd)
	ErrNoResp    = errFor(CodeNoResp)
	ErrNoStore   = errFor(CodeNoStore)
	ErrNoKey     = errFor(CodeNoKey)
	ErrBadNest   = errFor(CodeBadNest)
	ErrBadType   = errFor(CodeBadType)
	ErrBadPath   = errFor(CodeBadPath)
	ErrBadLClass = errFor(CodeBadLClass)
	ErrBadUnlock = errFor(CodeBadUnlock)
)

// ErrorForCode maps a wire error code back to an *Error, for use by
// clients decoding an 'e' response. Unrecognized codes decode to
// CodeUnknown, matching HKVError.for_code in the original source.
func ErrorForCode(code Code) *Error { return errFor(code) }
