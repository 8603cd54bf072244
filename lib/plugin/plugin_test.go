// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package plugin

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aegis-foundation/aegis/lib/tool"
)

func TestSubstitute(t *testing.T) {
	tests := []struct {
		name      string
		template  string
		arguments map[string]any
		want      string
	}{
		{
			name:      "simple replacement",
			template:  "Hello, ${name}!",
			arguments: map[string]any{"name": "World"},
			want:      "Hello, World!",
		},
		{
			name:      "absent key left intact",
			template:  "--path ${HOME}/data",
			arguments: map[string]any{"other": "x"},
			want:      "--path ${HOME}/data",
		},
		{
			name:      "number stringifies naturally",
			template:  "count=${n}",
			arguments: map[string]any{"n": float64(42)},
			want:      "count=42",
		},
		{
			name:      "boolean stringifies naturally",
			template:  "flag=${b}",
			arguments: map[string]any{"b": true},
			want:      "flag=true",
		},
		{
			name:      "composite value is compact JSON",
			template:  "${config}",
			arguments: map[string]any{"config": map[string]any{"key": "value"}},
			want:      `{"key":"value"}`,
		},
		{
			name:      "no recursive substitution",
			template:  "${outer}",
			arguments: map[string]any{"outer": "${inner}", "inner": "nested"},
			want:      "${inner}",
		},
		{
			name:      "multiple occurrences",
			template:  "${x} and ${x}",
			arguments: map[string]any{"x": "a"},
			want:      "a and a",
		},
		{
			name:      "unterminated placeholder passes through",
			template:  "broken ${key",
			arguments: map[string]any{"key": "v"},
			want:      "broken ${key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Substitute(tt.template, tt.arguments); got != tt.want {
				t.Errorf("Substitute(%q) = %q, want %q", tt.template, got, tt.want)
			}
		})
	}
}

func TestExecuteArgsMode(t *testing.T) {
	plugin, err := New(Descriptor{
		Name:         "greet",
		Command:      "echo",
		ArgsTemplate: []string{"Hello, ${name}!"},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	output, err := plugin.Execute(context.Background(), map[string]any{"name": "World"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := output.Content[0].Text; got != "Hello, World!" {
		t.Errorf("output = %q, want %q", got, "Hello, World!")
	}
}

func TestExecuteStdinMode(t *testing.T) {
	plugin, err := New(Descriptor{
		Name:      "stdin-cat",
		Command:   "cat",
		InputMode: InputModeStdin,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	output, err := plugin.Execute(context.Background(), map[string]any{"key": "value"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := output.Content[0].Text; got != `{"key":"value"}` {
		t.Errorf("output = %q, want the JSON arguments object", got)
	}
}

func TestExecuteEnvMode(t *testing.T) {
	plugin, err := New(Descriptor{
		Name:         "env-echo",
		Command:      "sh",
		ArgsTemplate: []string{"-c", "echo $AEGIS_ARG_CITY; echo $AEGIS_ARGS_JSON"},
		InputMode:    InputModeEnv,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	output, err := plugin.Execute(context.Background(), map[string]any{"city": "Oslo"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	lines := strings.Split(output.Content[0].Text, "\n")
	if lines[0] != "Oslo" {
		t.Errorf("AEGIS_ARG_CITY = %q, want %q", lines[0], "Oslo")
	}
	if lines[1] != `{"city":"Oslo"}` {
		t.Errorf("AEGIS_ARGS_JSON = %q, want the full arguments object", lines[1])
	}
}

func TestExecuteJSONOutputMode(t *testing.T) {
	plugin, err := New(Descriptor{
		Name:         "emit-json",
		Command:      "echo",
		ArgsTemplate: []string{`{"answer": 42}`},
		OutputMode:   OutputModeJSON,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	output, err := plugin.Execute(context.Background(), map[string]any{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	block := output.Content[0]
	if block.Type != "json" {
		t.Fatalf("content type = %q, want json", block.Type)
	}
	object, ok := block.JSON.(map[string]any)
	if !ok || object["answer"] != float64(42) {
		t.Errorf("parsed JSON = %#v, want answer=42", block.JSON)
	}
}

func TestExecuteJSONOutputModeRejectsNonJSON(t *testing.T) {
	plugin, err := New(Descriptor{
		Name:         "bad-json",
		Command:      "echo",
		ArgsTemplate: []string{"not json at all"},
		OutputMode:   OutputModeJSON,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = plugin.Execute(context.Background(), map[string]any{})
	var toolErr *tool.Error
	if !errors.As(err, &toolErr) || toolErr.Kind != tool.KindExternal {
		t.Fatalf("error = %v, want KindExternal", err)
	}
}

func TestExecuteTimeout(t *testing.T) {
	plugin, err := New(Descriptor{
		Name:         "sleep10",
		Command:      "sleep",
		ArgsTemplate: []string{"10"},
		TimeoutSecs:  1,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = plugin.Execute(context.Background(), map[string]any{})
	var toolErr *tool.Error
	if !errors.As(err, &toolErr) || toolErr.Kind != tool.KindTimeout {
		t.Fatalf("error = %v, want KindTimeout", err)
	}
	if !strings.Contains(toolErr.Error(), "timeout after 1s") {
		t.Errorf("message = %q, want it to name the deadline", toolErr.Error())
	}
}

func TestExecuteNonZeroExit(t *testing.T) {
	plugin, err := New(Descriptor{
		Name:         "fails",
		Command:      "sh",
		ArgsTemplate: []string{"-c", "echo oops >&2; exit 2"},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = plugin.Execute(context.Background(), map[string]any{})
	var toolErr *tool.Error
	if !errors.As(err, &toolErr) || toolErr.Kind != tool.KindExternal {
		t.Fatalf("error = %v, want KindExternal", err)
	}
	if !strings.Contains(toolErr.Error(), "status 2") || !strings.Contains(toolErr.Error(), "oops") {
		t.Errorf("message = %q, want exit status and stderr", toolErr.Error())
	}
}

func TestExecuteRequiredArgumentMissing(t *testing.T) {
	plugin, err := New(Descriptor{
		Name:         "strict",
		Command:      "echo",
		ArgsTemplate: []string{"${text}"},
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"text": map[string]any{"type": "string"}},
			"required":   []any{"text"},
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = plugin.Execute(context.Background(), map[string]any{})
	var toolErr *tool.Error
	if !errors.As(err, &toolErr) || toolErr.Kind != tool.KindInvalidInput {
		t.Fatalf("error = %v, want KindInvalidInput", err)
	}
}

func TestDescriptorValidate(t *testing.T) {
	tests := []struct {
		name       string
		descriptor Descriptor
		wantErr    bool
	}{
		{"valid", Descriptor{Name: "x", Command: "echo"}, false},
		{"missing name", Descriptor{Command: "echo"}, true},
		{"missing command", Descriptor{Name: "x"}, true},
		{"negative timeout", Descriptor{Name: "x", Command: "echo", TimeoutSecs: -1}, true},
		{"bad input mode", Descriptor{Name: "x", Command: "echo", InputMode: "pipe"}, true},
		{"bad output mode", Descriptor{Name: "x", Command: "echo", OutputMode: "xml"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.descriptor.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
