// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package protocol implements JSON-RPC 2.0 message framing and the MCP
// wire types shared by both transports.
//
// The codec is deliberately strict about the request surface this
// server accepts: version must be the literal "2.0", method must be a
// non-empty string, the id must be a string, an integer, or absent, and
// batches (top-level arrays) are rejected — the server is
// single-request-per-frame on both transports.
//
// [DecodeRequest] and [EncodeResponse] are pure: they touch no I/O and
// hold no state, so the stdio loop and the HTTP handler share them
// without synchronization. Framing (the trailing newline on stdio, the
// HTTP body boundary) belongs to the transports, not to this package.
package protocol
