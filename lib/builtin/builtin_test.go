// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package builtin

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aegis-foundation/aegis/lib/clock"
	"github.com/aegis-foundation/aegis/lib/memory"
	"github.com/aegis-foundation/aegis/lib/tool"
)

func wantKind(t *testing.T, err error, kind tool.Kind) *tool.Error {
	t.Helper()
	var toolErr *tool.Error
	if !errors.As(err, &toolErr) || toolErr.Kind != kind {
		t.Fatalf("error = %v, want kind %s", err, kind)
	}
	return toolErr
}

func TestEcho(t *testing.T) {
	output, err := EchoTool{}.Execute(context.Background(), map[string]any{"text": "hello"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if output.Content[0].Text != "hello" {
		t.Errorf("output = %q, want hello", output.Content[0].Text)
	}
}

func TestEchoMissingText(t *testing.T) {
	_, err := EchoTool{}.Execute(context.Background(), map[string]any{})
	wantKind(t, err, tool.KindInvalidInput)
}

func TestGetTime(t *testing.T) {
	fake := clock.NewFake()
	fake.SetNow(time.Date(2026, 8, 6, 12, 0, 0, 0, time.UTC))
	timeTool := TimeTool{Clock: fake}

	output, err := timeTool.Execute(context.Background(), map[string]any{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if output.Content[0].Text != "2026-08-06T12:00:00Z" {
		t.Errorf("time = %q", output.Content[0].Text)
	}

	_, err = timeTool.Execute(context.Background(), map[string]any{"format": "martian"})
	wantKind(t, err, tool.KindInvalidInput)
}

func TestUUIDGenerate(t *testing.T) {
	first, err := UUIDTool{}.Execute(context.Background(), map[string]any{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	second, _ := UUIDTool{}.Execute(context.Background(), map[string]any{})
	if first.Content[0].Text == second.Content[0].Text {
		t.Error("two generated UUIDs are identical")
	}
	if len(first.Content[0].Text) != 36 {
		t.Errorf("uuid = %q, want canonical 36-character form", first.Content[0].Text)
	}
}

func TestFsReadInsideAllowlist(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.txt")
	if err := os.WriteFile(path, []byte("contents"), 0644); err != nil {
		t.Fatalf("seeding file: %v", err)
	}

	reader := FsReadTool{AllowedPaths: []string{dir}}
	output, err := reader.Execute(context.Background(), map[string]any{"path": path})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if output.Content[0].Text != "contents" {
		t.Errorf("read = %q", output.Content[0].Text)
	}
}

func TestFsReadOutsideAllowlist(t *testing.T) {
	reader := FsReadTool{AllowedPaths: []string{t.TempDir()}}
	_, err := reader.Execute(context.Background(), map[string]any{"path": "/etc/passwd"})
	toolErr := wantKind(t, err, tool.KindPermissionDenied)
	if toolErr.Error() != "path not allowed" {
		t.Errorf("message = %q, want \"path not allowed\"", toolErr.Error())
	}
}

func TestFsReadDotDotEscape(t *testing.T) {
	dir := t.TempDir()
	reader := FsReadTool{AllowedPaths: []string{dir}}
	_, err := reader.Execute(context.Background(),
		map[string]any{"path": filepath.Join(dir, "..", "..", "etc", "passwd")})
	wantKind(t, err, tool.KindPermissionDenied)
}

func TestFsReadSymlinkEscape(t *testing.T) {
	outside := t.TempDir()
	secret := filepath.Join(outside, "secret.txt")
	if err := os.WriteFile(secret, []byte("hidden"), 0644); err != nil {
		t.Fatalf("seeding file: %v", err)
	}

	allowed := t.TempDir()
	link := filepath.Join(allowed, "sneaky")
	if err := os.Symlink(secret, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	reader := FsReadTool{AllowedPaths: []string{allowed}}
	_, err := reader.Execute(context.Background(), map[string]any{"path": link})
	wantKind(t, err, tool.KindPermissionDenied)
}

func TestFsReadMissingFile(t *testing.T) {
	dir := t.TempDir()
	reader := FsReadTool{AllowedPaths: []string{dir}}
	_, err := reader.Execute(context.Background(),
		map[string]any{"path": filepath.Join(dir, "absent.txt")})
	wantKind(t, err, tool.KindNotFound)
}

func TestFsReadEmptyAllowlistDeniesEverything(t *testing.T) {
	reader := FsReadTool{}
	_, err := reader.Execute(context.Background(), map[string]any{"path": "/tmp/anything"})
	wantKind(t, err, tool.KindPermissionDenied)
}

func TestFsWriteRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")

	writer := FsWriteTool{AllowedPaths: []string{dir}}
	if _, err := writer.Execute(context.Background(),
		map[string]any{"path": path, "content": "written"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil || string(data) != "written" {
		t.Errorf("file = %q, %v", data, err)
	}
}

func TestFsWriteRequiresExistingParent(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "missing", "out.txt")

	writer := FsWriteTool{AllowedPaths: []string{dir}}
	_, err := writer.Execute(context.Background(),
		map[string]any{"path": nested, "content": "x"})
	wantKind(t, err, tool.KindInvalidInput)

	// With create_dirs the intermediate directory is created.
	if _, err := writer.Execute(context.Background(),
		map[string]any{"path": nested, "content": "x", "create_dirs": true}); err != nil {
		t.Fatalf("Execute with create_dirs: %v", err)
	}
	if _, err := os.Stat(nested); err != nil {
		t.Errorf("file not created: %v", err)
	}
}

func TestFsWriteOutsideAllowlist(t *testing.T) {
	writer := FsWriteTool{AllowedPaths: []string{t.TempDir()}}
	_, err := writer.Execute(context.Background(),
		map[string]any{"path": "/tmp/escape.txt", "content": "x"})
	wantKind(t, err, tool.KindPermissionDenied)
}

func TestCmdExecAllowlist(t *testing.T) {
	cmd := CmdExecTool{
		AllowedCommands: []string{"echo", "date"},
		DefaultTimeout:  5 * time.Second,
	}

	output, err := cmd.Execute(context.Background(),
		map[string]any{"command": "echo", "args": []any{"allowed"}})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if output.Content[0].Text != "allowed\n" {
		t.Errorf("output = %q", output.Content[0].Text)
	}

	_, err = cmd.Execute(context.Background(), map[string]any{"command": "rm"})
	wantKind(t, err, tool.KindPermissionDenied)
}

func TestCmdExecWildcard(t *testing.T) {
	cmd := CmdExecTool{AllowedCommands: []string{"*"}, DefaultTimeout: 5 * time.Second}
	if _, err := cmd.Execute(context.Background(),
		map[string]any{"command": "echo", "args": []any{"x"}}); err != nil {
		t.Errorf("wildcard rejected echo: %v", err)
	}
}

func TestCmdExecMatchIsExactOnly(t *testing.T) {
	// The allowlist has no partial-wildcard mode: neither a prefix
	// entry ("ech") nor a glob-looking entry ("echo*") matches the
	// program name "echo".
	cmd := CmdExecTool{AllowedCommands: []string{"ech", "echo*"}, DefaultTimeout: 5 * time.Second}
	_, err := cmd.Execute(context.Background(),
		map[string]any{"command": "echo", "args": []any{"x"}})
	wantKind(t, err, tool.KindPermissionDenied)
}

func TestCmdExecNonZeroExit(t *testing.T) {
	cmd := CmdExecTool{AllowedCommands: []string{"sh"}, DefaultTimeout: 5 * time.Second}
	_, err := cmd.Execute(context.Background(),
		map[string]any{"command": "sh", "args": []any{"-c", "exit 7"}})
	toolErr := wantKind(t, err, tool.KindExternal)
	if !strings.Contains(toolErr.Error(), "status 7") {
		t.Errorf("message = %q, want the exit status", toolErr.Error())
	}
}

func TestCmdExecTimeout(t *testing.T) {
	cmd := CmdExecTool{AllowedCommands: []string{"sleep"}, DefaultTimeout: time.Second}
	_, err := cmd.Execute(context.Background(),
		map[string]any{"command": "sleep", "args": []any{"30"}})
	wantKind(t, err, tool.KindTimeout)
}

func TestMemoryToolsRoundTrip(t *testing.T) {
	store, err := memory.Open(memory.Config{
		Path:  filepath.Join(t.TempDir(), "aegis.db"),
		Clock: clock.NewFake(),
	})
	if err != nil {
		t.Fatalf("memory.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	ctx := context.Background()

	if _, err := (MemoryStoreTool{Store: store}).Execute(ctx,
		map[string]any{"key": "k", "value": "v"}); err != nil {
		t.Fatalf("memory.store: %v", err)
	}

	output, err := MemoryRecallTool{Store: store}.Execute(ctx, map[string]any{"key": "k"})
	if err != nil {
		t.Fatalf("memory.recall: %v", err)
	}
	if output.Content[0].Text != "v" {
		t.Errorf("recalled = %q, want v", output.Content[0].Text)
	}

	listOutput, err := MemoryListTool{Store: store}.Execute(ctx, map[string]any{})
	if err != nil {
		t.Fatalf("memory.list: %v", err)
	}
	keys := listOutput.Content[0].JSON.(map[string]any)["keys"].([]string)
	if len(keys) != 1 || keys[0] != "k" {
		t.Errorf("keys = %v, want [k]", keys)
	}

	if _, err := (MemoryDeleteTool{Store: store}).Execute(ctx, map[string]any{"key": "k"}); err != nil {
		t.Fatalf("memory.delete: %v", err)
	}
	_, err = MemoryRecallTool{Store: store}.Execute(ctx, map[string]any{"key": "k"})
	wantKind(t, err, tool.KindNotFound)
}

func TestConversationTools(t *testing.T) {
	store, err := memory.Open(memory.Config{
		Path:  filepath.Join(t.TempDir(), "aegis.db"),
		Clock: clock.NewFake(),
	})
	if err != nil {
		t.Fatalf("memory.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	ctx := context.Background()

	created, err := ConversationCreateTool{Store: store}.Execute(ctx,
		map[string]any{"title": "notes"})
	if err != nil {
		t.Fatalf("conversation.create: %v", err)
	}
	id := created.Content[0].JSON.(map[string]any)["id"].(string)

	if _, err := (ConversationAddMessageTool{Store: store}).Execute(ctx, map[string]any{
		"conversation_id": id, "role": "user", "content": "hello",
	}); err != nil {
		t.Fatalf("conversation.add_message: %v", err)
	}

	history, err := ConversationHistoryTool{Store: store}.Execute(ctx,
		map[string]any{"conversation_id": id})
	if err != nil {
		t.Fatalf("conversation.history: %v", err)
	}
	messages := history.Content[0].JSON.(map[string]any)["messages"].([]memory.Message)
	if len(messages) != 1 || messages[0].Content != "hello" {
		t.Errorf("messages = %+v", messages)
	}

	_, err = ConversationHistoryTool{Store: store}.Execute(ctx,
		map[string]any{"conversation_id": "missing"})
	wantKind(t, err, tool.KindNotFound)
}

func TestEnvTools(t *testing.T) {
	t.Setenv("AEGIS_TEST_VISIBLE", "shown")
	t.Setenv("AEGIS_TEST_HIDDEN", "secret")

	get := EnvGetTool{Redacted: []string{"AEGIS_TEST_HIDDEN"}}
	output, err := get.Execute(context.Background(), map[string]any{"name": "AEGIS_TEST_VISIBLE"})
	if err != nil {
		t.Fatalf("env.get: %v", err)
	}
	if output.Content[0].Text != "shown" {
		t.Errorf("env.get = %q", output.Content[0].Text)
	}

	_, err = get.Execute(context.Background(), map[string]any{"name": "AEGIS_TEST_HIDDEN"})
	wantKind(t, err, tool.KindNotFound)

	list := EnvListTool{Redacted: []string{"AEGIS_TEST_HIDDEN"}}
	listOutput, err := list.Execute(context.Background(), map[string]any{"prefix": "AEGIS_TEST_"})
	if err != nil {
		t.Fatalf("env.list: %v", err)
	}
	names := listOutput.Content[0].JSON.(map[string]any)["names"].([]string)
	if len(names) != 1 || names[0] != "AEGIS_TEST_VISIBLE" {
		t.Errorf("names = %v, want only the visible variable", names)
	}
}
