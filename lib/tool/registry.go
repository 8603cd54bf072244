// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tool

import (
	"fmt"

	"github.com/aegis-foundation/aegis/lib/protocol"
)

// Registry maps tool names to tool implementations. Register is called
// only during startup; after startup the registry is read-only, so Get
// and List need no synchronization.
type Registry struct {
	byName map[string]Tool

	// order preserves registration order so List returns a stable
	// sequence across calls.
	order []string
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Tool)}
}

// Register adds a tool under its definition name. Duplicate or empty
// names are rejected: a name collision at startup is a configuration
// bug, not a condition to resolve silently.
func (r *Registry) Register(t Tool) error {
	name := t.Definition().Name
	if name == "" {
		return fmt.Errorf("registering tool: empty name")
	}
	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("registering tool %q: name already registered", name)
	}
	r.byName[name] = t
	r.order = append(r.order, name)
	return nil
}

// Get returns the tool registered under name, or a KindNotFound error.
func (r *Registry) Get(name string) (Tool, *Error) {
	t, ok := r.byName[name]
	if !ok {
		return nil, NotFound("tool not found: %s", name)
	}
	return t, nil
}

// List returns every registered tool's definition in registration
// order.
func (r *Registry) List() []protocol.ToolDescription {
	definitions := make([]protocol.ToolDescription, 0, len(r.order))
	for _, name := range r.order {
		definitions = append(definitions, r.byName[name].Definition())
	}
	return definitions
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	return len(r.order)
}
