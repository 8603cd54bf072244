// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package router

import (
	"context"
	"encoding/json"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/aegis-foundation/aegis/lib/clock"
	"github.com/aegis-foundation/aegis/lib/config"
	"github.com/aegis-foundation/aegis/lib/protocol"
	"github.com/aegis-foundation/aegis/lib/runtime"
)

func newTestRouter(t *testing.T, mutate func(*config.Config)) *Router {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.DatabasePath = filepath.Join(dir, "aegis.db")
	cfg.SecretsPath = filepath.Join(dir, "aegis.secrets")
	cfg.Security.AllowedReadPaths = []string{"/tmp"}
	if mutate != nil {
		mutate(cfg)
	}

	state, err := runtime.New(cfg, clock.NewFake(), nil)
	if err != nil {
		t.Fatalf("runtime.New: %v", err)
	}
	t.Cleanup(func() { state.Close() })
	return New(state, nil)
}

// roundTrip decodes a request line, routes it, and returns the
// response re-decoded from its wire form.
func roundTrip(t *testing.T, r *Router, frame string) map[string]any {
	t.Helper()
	request, decodeErr := protocol.DecodeRequest([]byte(frame))
	if decodeErr != nil {
		t.Fatalf("DecodeRequest(%q): %v", frame, decodeErr)
	}
	response := r.Handle(context.Background(), request)
	if response == nil {
		t.Fatalf("no response for %q", frame)
	}
	data, err := protocol.EncodeResponse(response)
	if err != nil {
		t.Fatalf("EncodeResponse: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal response: %v", err)
	}
	return decoded
}

func TestScenarioEcho(t *testing.T) {
	r := newTestRouter(t, nil)
	response := roundTrip(t, r,
		`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"echo","arguments":{"text":"hi"}}}`)

	if response["id"] != float64(1) {
		t.Errorf("id = %v, want 1", response["id"])
	}
	result := response["result"].(map[string]any)
	content := result["content"].([]any)
	if len(content) == 0 {
		t.Fatal("content is empty")
	}
	block := content[0].(map[string]any)
	if block["type"] != "text" || block["text"] != "hi" {
		t.Errorf("content = %v, want text hi", block)
	}
}

func TestScenarioUnknownTool(t *testing.T) {
	r := newTestRouter(t, nil)
	response := roundTrip(t, r,
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"nope","arguments":{}}}`)

	errObject := response["error"].(map[string]any)
	if errObject["code"] != float64(protocol.CodeMethodNotFound) {
		t.Errorf("code = %v, want %d", errObject["code"], protocol.CodeMethodNotFound)
	}
	if errObject["message"] != "tool not found: nope" {
		t.Errorf("message = %q", errObject["message"])
	}
}

func TestScenarioPathDenied(t *testing.T) {
	r := newTestRouter(t, nil)
	response := roundTrip(t, r,
		`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"fs.read_file","arguments":{"path":"/etc/passwd"}}}`)

	errObject := response["error"].(map[string]any)
	if errObject["code"] != float64(protocol.CodePermissionDenied) {
		t.Errorf("code = %v, want %d", errObject["code"], protocol.CodePermissionDenied)
	}
	if errObject["message"] != "path not allowed" {
		t.Errorf("message = %q, want \"path not allowed\"", errObject["message"])
	}
}

func TestInitializeIdempotent(t *testing.T) {
	r := newTestRouter(t, nil)
	frame := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"clientInfo":{"name":"test"}}}`

	first := roundTrip(t, r, frame)
	second := roundTrip(t, r, frame)
	if !reflect.DeepEqual(first["result"], second["result"]) {
		t.Errorf("initialize results differ:\n%v\n%v", first["result"], second["result"])
	}

	result := first["result"].(map[string]any)
	if result["protocolVersion"] != protocol.Version {
		t.Errorf("protocolVersion = %v", result["protocolVersion"])
	}
	serverInfo := result["serverInfo"].(map[string]any)
	if serverInfo["name"] != "aegis" {
		t.Errorf("server name = %v", serverInfo["name"])
	}
	capabilities := result["capabilities"].(map[string]any)
	for _, family := range []string{"tools", "resources", "prompts"} {
		if _, ok := capabilities[family]; !ok {
			t.Errorf("capabilities missing %s", family)
		}
	}
}

func TestPing(t *testing.T) {
	r := newTestRouter(t, nil)
	response := roundTrip(t, r, `{"jsonrpc":"2.0","id":9,"method":"ping"}`)
	result, ok := response["result"].(map[string]any)
	if !ok || len(result) != 0 {
		t.Errorf("ping result = %v, want {}", response["result"])
	}
}

func TestUnknownMethod(t *testing.T) {
	r := newTestRouter(t, nil)
	response := roundTrip(t, r, `{"jsonrpc":"2.0","id":4,"method":"bogus/method"}`)
	errObject := response["error"].(map[string]any)
	if errObject["code"] != float64(protocol.CodeMethodNotFound) {
		t.Errorf("code = %v, want %d", errObject["code"], protocol.CodeMethodNotFound)
	}
}

func TestToolsListStableAndComplete(t *testing.T) {
	r := newTestRouter(t, nil)

	first := roundTrip(t, r, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	second := roundTrip(t, r, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)

	firstTools := first["result"].(map[string]any)["tools"].([]any)
	secondTools := second["result"].(map[string]any)["tools"].([]any)
	if !reflect.DeepEqual(firstTools, secondTools) {
		t.Error("tools/list results differ between consecutive calls")
	}

	names := make(map[string]bool)
	for _, entry := range firstTools {
		names[entry.(map[string]any)["name"].(string)] = true
	}
	for _, expected := range []string{
		"echo", "get_time", "uuid.generate", "fs.read_file", "fs.write_file",
		"cmd.exec", "memory.store", "memory.recall", "memory.delete", "memory.list",
	} {
		if !names[expected] {
			t.Errorf("tools/list missing %s", expected)
		}
	}
}

func TestNotificationGetsNoResponse(t *testing.T) {
	r := newTestRouter(t, nil)
	request, decodeErr := protocol.DecodeRequest(
		[]byte(`{"jsonrpc":"2.0","method":"notifications/initialized"}`))
	if decodeErr != nil {
		t.Fatalf("DecodeRequest: %v", decodeErr)
	}
	if response := r.Handle(context.Background(), request); response != nil {
		t.Errorf("notification produced a response: %+v", response)
	}
}

func TestMemoryStoreRecallThroughProtocol(t *testing.T) {
	r := newTestRouter(t, nil)

	store := roundTrip(t, r,
		`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"memory.store","arguments":{"key":"k1","value":"v1"}}}`)
	if _, ok := store["result"]; !ok {
		t.Fatalf("memory.store failed: %v", store["error"])
	}

	recall := roundTrip(t, r,
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"memory.recall","arguments":{"key":"k1"}}}`)
	content := recall["result"].(map[string]any)["content"].([]any)
	block := content[0].(map[string]any)
	if block["text"] != "v1" {
		t.Errorf("recalled = %v, want v1", block["text"])
	}
}

func TestResourcesListAndRead(t *testing.T) {
	r := newTestRouter(t, nil)

	roundTrip(t, r,
		`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"memory.store","arguments":{"key":"res-key","value":"res-value"}}}`)

	list := roundTrip(t, r, `{"jsonrpc":"2.0","id":2,"method":"resources/list"}`)
	resources := list["result"].(map[string]any)["resources"].([]any)
	uris := make(map[string]bool)
	for _, entry := range resources {
		uris[entry.(map[string]any)["uri"].(string)] = true
	}
	if !uris["aegis://kv"] || !uris["aegis://kv/res-key"] {
		t.Errorf("resources = %v, want aegis://kv and aegis://kv/res-key", uris)
	}

	read := roundTrip(t, r,
		`{"jsonrpc":"2.0","id":3,"method":"resources/read","params":{"uri":"aegis://kv/res-key"}}`)
	contents := read["result"].(map[string]any)["contents"].([]any)
	text := contents[0].(map[string]any)["text"].(string)
	var entry map[string]any
	if err := json.Unmarshal([]byte(text), &entry); err != nil {
		t.Fatalf("resource text is not JSON: %v", err)
	}
	if entry["value"] != "res-value" {
		t.Errorf("resource value = %v, want res-value", entry["value"])
	}
}

func TestResourcesReadUnknownURI(t *testing.T) {
	r := newTestRouter(t, nil)
	response := roundTrip(t, r,
		`{"jsonrpc":"2.0","id":1,"method":"resources/read","params":{"uri":"aegis://kv/absent"}}`)
	errObject := response["error"].(map[string]any)
	if errObject["code"] != float64(protocol.CodeNotFound) {
		t.Errorf("code = %v, want %d", errObject["code"], protocol.CodeNotFound)
	}
}

func TestPromptsListEmpty(t *testing.T) {
	r := newTestRouter(t, nil)
	response := roundTrip(t, r, `{"jsonrpc":"2.0","id":1,"method":"prompts/list"}`)
	prompts := response["result"].(map[string]any)["prompts"].([]any)
	if len(prompts) != 0 {
		t.Errorf("prompts = %v, want empty", prompts)
	}
}

func TestPluginThroughProtocol(t *testing.T) {
	r := newTestRouter(t, func(cfg *config.Config) {
		cfg.Plugins = append(cfg.Plugins, pluginDescriptor("greet", "echo", "Hello, ${name}!"))
	})

	response := roundTrip(t, r,
		`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"greet","arguments":{"name":"World"}}}`)
	content := response["result"].(map[string]any)["content"].([]any)
	block := content[0].(map[string]any)
	if block["text"] != "Hello, World!" {
		t.Errorf("plugin output = %v, want Hello, World!", block["text"])
	}
}

func TestRequiredFieldMissingThroughProtocol(t *testing.T) {
	r := newTestRouter(t, nil)
	response := roundTrip(t, r,
		`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"echo","arguments":{}}}`)
	errObject := response["error"].(map[string]any)
	if errObject["code"] != float64(protocol.CodeInvalidParams) {
		t.Errorf("code = %v, want %d", errObject["code"], protocol.CodeInvalidParams)
	}
}
