// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package builtin

import (
	"context"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aegis-foundation/aegis/lib/clock"
	"github.com/aegis-foundation/aegis/lib/protocol"
	"github.com/aegis-foundation/aegis/lib/tool"
)

// EchoTool returns its text argument unchanged. It doubles as the
// liveness probe for end-to-end transport tests.
type EchoTool struct{}

func (EchoTool) Definition() protocol.ToolDescription {
	return protocol.ToolDescription{
		Name:        "echo",
		Description: "Echoes the input text back unchanged.",
		InputSchema: tool.ObjectSchema(map[string]any{
			"text": tool.StringProperty("Text to echo back."),
		}, "text"),
	}
}

func (EchoTool) Execute(_ context.Context, arguments map[string]any) (*tool.Output, error) {
	if err := tool.ValidateArguments(EchoTool{}.Definition().InputSchema.(map[string]any), arguments); err != nil {
		return nil, err
	}
	text, _ := arguments["text"].(string)
	return tool.TextOutput(text), nil
}

// TimeTool reports the current time.
type TimeTool struct {
	Clock clock.Clock
}

func (t TimeTool) Definition() protocol.ToolDescription {
	return protocol.ToolDescription{
		Name:        "get_time",
		Description: "Returns the current time. Format: rfc3339 (default) or unix.",
		InputSchema: tool.ObjectSchema(map[string]any{
			"format": tool.StringProperty("Output format: rfc3339 or unix."),
		}),
	}
}

func (t TimeTool) Execute(_ context.Context, arguments map[string]any) (*tool.Output, error) {
	now := t.Clock.Now().UTC()
	format, _ := arguments["format"].(string)
	switch format {
	case "", "rfc3339":
		return tool.TextOutput(now.Format(time.RFC3339)), nil
	case "unix":
		return tool.JSONOutput(map[string]any{"unix": now.Unix()}), nil
	default:
		return nil, tool.InvalidInput("unknown time format %q", format)
	}
}

// UUIDTool generates a random UUID.
type UUIDTool struct{}

func (UUIDTool) Definition() protocol.ToolDescription {
	return protocol.ToolDescription{
		Name:        "uuid.generate",
		Description: "Generates a random version 4 UUID.",
		InputSchema: tool.ObjectSchema(map[string]any{}),
	}
}

func (UUIDTool) Execute(context.Context, map[string]any) (*tool.Output, error) {
	return tool.TextOutput(uuid.NewString()), nil
}

// EnvGetTool reads one environment variable. Redacted names are
// invisible, matching what subprocesses see.
type EnvGetTool struct {
	Redacted []string
}

func (t EnvGetTool) Definition() protocol.ToolDescription {
	return protocol.ToolDescription{
		Name:        "env.get",
		Description: "Returns the value of an environment variable.",
		InputSchema: tool.ObjectSchema(map[string]any{
			"name": tool.StringProperty("Environment variable name."),
		}, "name"),
	}
}

func (t EnvGetTool) Execute(_ context.Context, arguments map[string]any) (*tool.Output, error) {
	if err := tool.ValidateArguments(t.Definition().InputSchema.(map[string]any), arguments); err != nil {
		return nil, err
	}
	name, _ := arguments["name"].(string)
	for _, redacted := range t.Redacted {
		if name == redacted {
			return nil, tool.NotFound("environment variable not set: %s", name)
		}
	}
	value, ok := os.LookupEnv(name)
	if !ok {
		return nil, tool.NotFound("environment variable not set: %s", name)
	}
	return tool.TextOutput(value), nil
}

// EnvListTool lists environment variable names. Values are withheld:
// the caller must ask for a specific name via env.get.
type EnvListTool struct {
	Redacted []string
}

func (t EnvListTool) Definition() protocol.ToolDescription {
	return protocol.ToolDescription{
		Name:        "env.list",
		Description: "Lists environment variable names (values are not included).",
		InputSchema: tool.ObjectSchema(map[string]any{
			"prefix": tool.StringProperty("Only names with this prefix."),
		}),
	}
}

func (t EnvListTool) Execute(_ context.Context, arguments map[string]any) (*tool.Output, error) {
	prefix, _ := arguments["prefix"].(string)
	redacted := make(map[string]bool, len(t.Redacted))
	for _, name := range t.Redacted {
		redacted[name] = true
	}

	var names []string
	for _, entry := range os.Environ() {
		name, _, ok := strings.Cut(entry, "=")
		if !ok || redacted[name] {
			continue
		}
		if prefix != "" && !strings.HasPrefix(name, prefix) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return tool.JSONOutput(map[string]any{"names": names}), nil
}
