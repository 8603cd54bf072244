// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport carries protocol frames between clients and the
// router.
//
// Two implementations share one request/response semantics. [Stdio]
// reads newline-delimited JSON-RPC from an input stream and writes
// responses to an output stream; diagnostics go to the logger (stderr)
// only, never to the protocol stream. [Server] is the HTTP binding:
// POST /mcp carries one request per body, GET /health and GET /metrics
// serve operational documents, and GET /events is an event-stream sink
// that can receive responses for clients that request delivery there.
//
// Middleware (authentication, rate limiting, request logging, metrics)
// applies only to the HTTP transport; stdio serves exactly one trusted
// local client.
package transport
