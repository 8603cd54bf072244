// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package plugin turns declarative JSON descriptors into executable
// tools.
//
// A plugin is a tool whose behavior is a single supervised command:
// the descriptor names the program, an argument template, and how the
// caller's arguments reach the child (argument substitution, a JSON
// object on stdin, or environment variables). The descriptor also
// fixes the working directory, environment additions, timeout, and how
// stdout is turned into tool output.
//
// Template substitution is literal string interpolation, not shell
// expansion: every ${key} whose key appears in the arguments is
// replaced by the stringified value in one pass, unknown placeholders
// are left intact, and the substituted vector is passed element-wise
// to the supervisor. Values that themselves contain ${...} sequences
// are never re-substituted.
package plugin
