// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package builtin implements the tools compiled into the server.
//
// Core tools (always registered): echo, get_time, uuid.generate,
// env.get, env.list, fs.read_file, fs.write_file, cmd.exec, and the
// memory.* key-value tools. Extras (registered when extras_enabled):
// the conversation.* tools.
//
// The filesystem and command tools capture their allowlists at
// construction from the security configuration and check every
// argument against them before any side effect. Path checks compare
// canonical forms: the argument is made absolute and lexically
// cleaned, checked, and — when it resolves — symlink-expanded and
// checked again, so neither ".." nor a symlink escapes the envelope.
package builtin
