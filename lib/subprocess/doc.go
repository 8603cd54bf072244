// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package subprocess spawns, watches, and reaps external commands
// under a hard deadline.
//
// [Run] never invokes a shell: the argument vector is passed to the
// program element-wise, with no interpretation of whitespace or
// metacharacters. The child runs in its own process group so that
// timeout signals reach the command and all of its children; without
// Setpgid, grandchildren survive the kill and hold the inherited
// output pipes open, blocking the caller.
//
// On timeout the group receives SIGTERM, then SIGKILL after a short
// grace window. The child is always reaped before Run returns, and
// whatever stdout/stderr was captured before termination is included
// in the result.
//
// Non-zero exit is not an error at this layer: the caller decides
// whether a failing exit status means tool failure. Only an invalid
// spec, a spawn failure (program not found, permission denied), or
// cancellation of the caller's context returns an error.
package subprocess
