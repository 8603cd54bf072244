// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package tool defines the polymorphic tool contract and the registry
// that maps tool names to implementations.
//
// A [Tool] is a named, schema-described unit of work: Definition
// returns its wire description, Execute runs it. Tools capture their
// collaborators (allowlists, the memory store, the supervisor
// configuration) at construction, so Execute needs only a context and
// the caller's arguments. This keeps the registry free of reference
// cycles with the runtime state: the runtime owns the registry, and no
// tool holds a handle back to the runtime or to another tool.
//
// [Error] is the categorized error type every tool returns on failure.
// Its [Kind] maps one-to-one onto the protocol error codes, so the
// router converts tool failures to wire errors without inspecting
// message text.
package tool
