// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tool

import (
	"fmt"

	"github.com/aegis-foundation/aegis/lib/protocol"
)

// Kind classifies tool errors so the router can map failures to
// protocol error codes without parsing message text.
type Kind string

const (
	// KindInvalidInput indicates the caller provided bad arguments:
	// missing required fields, wrong types, unparseable values.
	KindInvalidInput Kind = "invalid_input"

	// KindPermissionDenied indicates a path or command outside the
	// tool's configured allowlist.
	KindPermissionDenied Kind = "permission_denied"

	// KindTimeout indicates the tool or its subprocess exceeded its
	// deadline.
	KindTimeout Kind = "timeout"

	// KindExternal indicates a downstream failure: subprocess spawn
	// failure, non-zero exit, I/O error against an external system.
	KindExternal Kind = "external"

	// KindNotFound indicates a referenced resource (key, conversation,
	// URI) does not exist.
	KindNotFound Kind = "not_found"

	// KindInternal indicates a bug or invariant violation in the
	// server itself.
	KindInternal Kind = "internal"
)

// Error is a categorized error returned by tools. It wraps an inner
// error, preserving the chain for errors.Is/As, while the Kind travels
// to the protocol layer.
type Error struct {
	Kind Kind
	Err  error
}

// Error returns the underlying message. The kind is not included in
// the string; it is carried separately to the protocol layer.
func (e *Error) Error() string { return e.Err.Error() }

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error { return e.Err }

// Code returns the JSON-RPC error code for this error's kind.
func (e *Error) Code() int {
	switch e.Kind {
	case KindInvalidInput:
		return protocol.CodeInvalidParams
	case KindPermissionDenied:
		return protocol.CodePermissionDenied
	case KindTimeout:
		return protocol.CodeTimeout
	case KindExternal:
		return protocol.CodeExternal
	case KindNotFound:
		return protocol.CodeNotFound
	default:
		return protocol.CodeInternalError
	}
}

// InvalidInput creates an invalid-input error.
func InvalidInput(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidInput, Err: fmt.Errorf(format, args...)}
}

// PermissionDenied creates a permission-denied error.
func PermissionDenied(format string, args ...any) *Error {
	return &Error{Kind: KindPermissionDenied, Err: fmt.Errorf(format, args...)}
}

// Timeout creates a timeout error.
func Timeout(format string, args ...any) *Error {
	return &Error{Kind: KindTimeout, Err: fmt.Errorf(format, args...)}
}

// External creates an external-failure error.
func External(format string, args ...any) *Error {
	return &Error{Kind: KindExternal, Err: fmt.Errorf(format, args...)}
}

// NotFound creates a not-found error.
func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Err: fmt.Errorf(format, args...)}
}

// Internal creates an internal error.
func Internal(format string, args ...any) *Error {
	return &Error{Kind: KindInternal, Err: fmt.Errorf(format, args...)}
}
