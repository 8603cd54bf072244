// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package builtin

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/aegis-foundation/aegis/lib/protocol"
	"github.com/aegis-foundation/aegis/lib/tool"
)

// pathAllowed reports whether candidate falls under one of the
// allowlist prefixes. The candidate is made absolute and lexically
// cleaned before the first check, so a rejected path never causes any
// filesystem access. When the path (or an ancestor) exists, symlinks
// are resolved and the check repeats on the canonical form.
func pathAllowed(candidate string, allowlist []string) (string, bool) {
	if len(allowlist) == 0 {
		return "", false
	}

	absolute, err := filepath.Abs(candidate)
	if err != nil {
		return "", false
	}
	absolute = filepath.Clean(absolute)

	canonicalAllowlist := make([]string, 0, len(allowlist))
	for _, entry := range allowlist {
		absoluteEntry, err := filepath.Abs(entry)
		if err != nil {
			continue
		}
		if resolved, err := filepath.EvalSymlinks(absoluteEntry); err == nil {
			absoluteEntry = resolved
		}
		canonicalAllowlist = append(canonicalAllowlist, filepath.Clean(absoluteEntry))
	}

	if !hasAllowedPrefix(absolute, canonicalAllowlist) {
		return "", false
	}

	// The lexical form passed; now resolve symlinks so a link inside
	// an allowed directory cannot point outside it. The target may
	// not exist yet (fs.write_file), so resolve the deepest existing
	// ancestor and re-attach the remainder.
	resolved, err := resolveExisting(absolute)
	if err != nil {
		return "", false
	}
	if !hasAllowedPrefix(resolved, canonicalAllowlist) {
		return "", false
	}
	return resolved, true
}

func hasAllowedPrefix(path string, allowlist []string) bool {
	for _, prefix := range allowlist {
		if path == prefix || strings.HasPrefix(path, prefix+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// resolveExisting canonicalizes path, tolerating a nonexistent tail:
// the deepest existing ancestor is symlink-resolved and the remaining
// components are appended lexically.
func resolveExisting(path string) (string, error) {
	remainder := ""
	current := path
	for {
		resolved, err := filepath.EvalSymlinks(current)
		if err == nil {
			return filepath.Clean(filepath.Join(resolved, remainder)), nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", err
		}
		remainder = filepath.Join(filepath.Base(current), remainder)
		current = parent
	}
}

// FsReadTool reads a file within the read allowlist.
type FsReadTool struct {
	AllowedPaths []string
}

func (t FsReadTool) Definition() protocol.ToolDescription {
	return protocol.ToolDescription{
		Name:        "fs.read_file",
		Description: "Reads a file. The path must be inside an allowed read directory.",
		InputSchema: tool.ObjectSchema(map[string]any{
			"path": tool.StringProperty("Path of the file to read."),
		}, "path"),
	}
}

func (t FsReadTool) Execute(_ context.Context, arguments map[string]any) (*tool.Output, error) {
	if err := tool.ValidateArguments(t.Definition().InputSchema.(map[string]any), arguments); err != nil {
		return nil, err
	}
	path, _ := arguments["path"].(string)

	resolved, ok := pathAllowed(path, t.AllowedPaths)
	if !ok {
		return nil, tool.PermissionDenied("path not allowed")
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, tool.NotFound("file not found: %s", path)
		}
		return nil, tool.External("reading %s: %v", path, err)
	}
	return tool.TextOutput(string(data)), nil
}

// FsWriteTool writes a file within the write allowlist. The parent
// directory must exist unless create_dirs is set.
type FsWriteTool struct {
	AllowedPaths []string
}

func (t FsWriteTool) Definition() protocol.ToolDescription {
	return protocol.ToolDescription{
		Name:        "fs.write_file",
		Description: "Writes a file. The path must be inside an allowed write directory.",
		InputSchema: tool.ObjectSchema(map[string]any{
			"path":        tool.StringProperty("Path of the file to write."),
			"content":     tool.StringProperty("Content to write."),
			"create_dirs": map[string]any{"type": "boolean", "description": "Create missing parent directories."},
		}, "path", "content"),
	}
}

func (t FsWriteTool) Execute(_ context.Context, arguments map[string]any) (*tool.Output, error) {
	if err := tool.ValidateArguments(t.Definition().InputSchema.(map[string]any), arguments); err != nil {
		return nil, err
	}
	path, _ := arguments["path"].(string)
	content, _ := arguments["content"].(string)
	createDirs, _ := arguments["create_dirs"].(bool)

	resolved, ok := pathAllowed(path, t.AllowedPaths)
	if !ok {
		return nil, tool.PermissionDenied("path not allowed")
	}

	parent := filepath.Dir(resolved)
	if _, err := os.Stat(parent); err != nil {
		if !os.IsNotExist(err) {
			return nil, tool.External("checking directory %s: %v", parent, err)
		}
		if !createDirs {
			return nil, tool.InvalidInput("parent directory does not exist: %s", parent)
		}
		if err := os.MkdirAll(parent, 0755); err != nil {
			return nil, tool.External("creating directory %s: %v", parent, err)
		}
	}

	if err := os.WriteFile(resolved, []byte(content), 0644); err != nil {
		return nil, tool.External("writing %s: %v", path, err)
	}
	return tool.TextOutput("wrote " + path), nil
}
