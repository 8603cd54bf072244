// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package memory is the persistent store behind the memory.* and
// conversation.* tools and the resources/* projections.
//
// One SQLite file holds three tables: kv_store (key-value entries with
// optional TTL), conversations, and messages. The database runs in WAL
// mode — concurrent readers, single writer — behind a fixed-size
// connection pool. Each caller takes a connection, runs its statements,
// and puts the connection back; connections are never shared between
// goroutines.
//
// Expired kv entries are invisible to reads and removed lazily: a get
// that finds an expired row deletes it and reports not-found.
package memory
