// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tool

import (
	"context"

	"github.com/aegis-foundation/aegis/lib/protocol"
)

// Tool is a named, schema-described unit of work invokable by the
// client. Implementations must be safe for concurrent Execute calls:
// two in-flight invocations share no mutable tool-private state.
type Tool interface {
	// Definition returns the tool's name, optional description, and
	// the JSON Schema for its input. The name must be stable across
	// calls and unique within a registry.
	Definition() protocol.ToolDescription

	// Execute runs the tool with the given arguments. It must honor
	// ctx cancellation on every blocking operation and must not block
	// on unbounded CPU work. Failures are reported as *Error; any
	// other error is treated as internal.
	Execute(ctx context.Context, arguments map[string]any) (*Output, error)
}

// Output is a tool's structured reply: an ordered, non-empty sequence
// of content parts.
type Output struct {
	Content []protocol.ContentBlock
}

// TextOutput builds an output with a single text part.
func TextOutput(text string) *Output {
	return &Output{Content: []protocol.ContentBlock{protocol.TextContent(text)}}
}

// JSONOutput builds an output with a single structured JSON part.
func JSONOutput(value any) *Output {
	return &Output{Content: []protocol.ContentBlock{protocol.JSONContent(value)}}
}
