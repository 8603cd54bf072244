// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package builtin

import (
	"context"
	"strings"
	"time"

	"github.com/aegis-foundation/aegis/lib/protocol"
	"github.com/aegis-foundation/aegis/lib/subprocess"
	"github.com/aegis-foundation/aegis/lib/tool"
)

// CmdExecTool runs an allowlisted command through the supervisor.
type CmdExecTool struct {
	// AllowedCommands holds exact program names, or the single
	// wildcard "*" to allow everything. The check covers the program
	// name only, never the arguments.
	AllowedCommands []string

	// RedactedEnv lists environment variable names withheld from the
	// child.
	RedactedEnv []string

	// DefaultTimeout bounds each run unless the caller shortens it.
	DefaultTimeout time.Duration
}

func (t CmdExecTool) Definition() protocol.ToolDescription {
	return protocol.ToolDescription{
		Name:        "cmd.exec",
		Description: "Executes an allowlisted command without a shell and returns its output.",
		InputSchema: tool.ObjectSchema(map[string]any{
			"command": tool.StringProperty("Program name to execute."),
			"args": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Argument vector, passed as-is.",
			},
			"timeout_secs": map[string]any{
				"type":        "integer",
				"description": "Deadline in seconds. Cannot exceed the configured tool timeout.",
			},
		}, "command"),
	}
}

func (t CmdExecTool) Execute(ctx context.Context, arguments map[string]any) (*tool.Output, error) {
	if err := tool.ValidateArguments(t.Definition().InputSchema.(map[string]any), arguments); err != nil {
		return nil, err
	}
	command, _ := arguments["command"].(string)

	if !t.commandAllowed(command) {
		return nil, tool.PermissionDenied("command not allowed: %s", command)
	}

	var args []string
	if rawArgs, ok := arguments["args"].([]any); ok {
		for _, entry := range rawArgs {
			value, ok := entry.(string)
			if !ok {
				return nil, tool.InvalidInput("args entries must be strings")
			}
			args = append(args, value)
		}
	}

	timeout := t.DefaultTimeout
	if requested, ok := arguments["timeout_secs"].(float64); ok && requested > 0 {
		requestedDuration := time.Duration(requested) * time.Second
		if requestedDuration < timeout {
			timeout = requestedDuration
		}
	}

	result, err := subprocess.Run(ctx, subprocess.Spec{
		Program:   command,
		Args:      args,
		RedactEnv: t.RedactedEnv,
		Timeout:   timeout,
	})
	if err != nil {
		return nil, tool.External("%v", err)
	}
	if result.TimedOut {
		return nil, tool.Timeout("timeout after %ds", int(timeout/time.Second))
	}
	if result.ExitCode != 0 {
		stderr := strings.TrimSpace(string(result.Stderr))
		return nil, tool.External("command exited with status %d: %s", result.ExitCode, stderr)
	}
	return tool.TextOutput(string(result.Stdout)), nil
}

// commandAllowed applies the allowlist: the single entry "*" allows
// everything, anything else must match the program name exactly. There
// is deliberately no partial-wildcard mode — an operator listing a
// command name gets that literal name and nothing else.
func (t CmdExecTool) commandAllowed(command string) bool {
	for _, allowed := range t.AllowedCommands {
		if allowed == "*" || allowed == command {
			return true
		}
	}
	return false
}
