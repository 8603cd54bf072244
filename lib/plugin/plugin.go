// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package plugin

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aegis-foundation/aegis/lib/protocol"
	"github.com/aegis-foundation/aegis/lib/subprocess"
	"github.com/aegis-foundation/aegis/lib/tool"
)

// envPrefix is the prefix for argument environment variables in env
// input mode: AEGIS_ARG_<KEY> per top-level argument, plus
// AEGIS_ARGS_JSON carrying the full object.
const envPrefix = "AEGIS"

// DefaultTimeoutSecs applies when a descriptor omits timeout_secs.
const DefaultTimeoutSecs = 30

// Input and output modes accepted by descriptors. Empty strings mean
// the defaults (args, text).
const (
	InputModeArgs  = "args"
	InputModeStdin = "stdin"
	InputModeEnv   = "env"

	OutputModeText = "text"
	OutputModeJSON = "json"
)

// Descriptor declares one plugin tool. It is loaded from the plugins
// section of the configuration file.
type Descriptor struct {
	// Name uniquely identifies the tool in the registry. Required.
	Name string `json:"name" yaml:"name"`

	// Description is the human-readable tool description.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Command is the program to execute. Required.
	Command string `json:"command" yaml:"command"`

	// ArgsTemplate is the argument vector template. ${key} sequences
	// are replaced with argument values in args input mode; the other
	// modes use the template verbatim.
	ArgsTemplate []string `json:"args_template,omitempty" yaml:"args_template,omitempty"`

	// WorkingDir is the child's working directory. Empty means the
	// server's.
	WorkingDir string `json:"working_dir,omitempty" yaml:"working_dir,omitempty"`

	// Env holds environment additions for the child. Values are
	// subject to ${key} substitution like the argument template.
	Env map[string]string `json:"env,omitempty" yaml:"env,omitempty"`

	// TimeoutSecs bounds each invocation. Zero means
	// DefaultTimeoutSecs.
	TimeoutSecs int `json:"timeout_secs,omitempty" yaml:"timeout_secs,omitempty"`

	// InputSchema is the JSON Schema for the tool's arguments.
	InputSchema map[string]any `json:"input_schema,omitempty" yaml:"input_schema,omitempty"`

	// InputMode is how arguments reach the child: args (default),
	// stdin, or env.
	InputMode string `json:"input_mode,omitempty" yaml:"input_mode,omitempty"`

	// OutputMode is how stdout becomes tool output: text (default)
	// or json.
	OutputMode string `json:"output_mode,omitempty" yaml:"output_mode,omitempty"`
}

// Validate checks the descriptor's structural invariants.
func (d *Descriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("plugin: name is required")
	}
	if d.Command == "" {
		return fmt.Errorf("plugin %q: command is required", d.Name)
	}
	if d.TimeoutSecs < 0 {
		return fmt.Errorf("plugin %q: timeout_secs must be positive, got %d", d.Name, d.TimeoutSecs)
	}
	switch d.InputMode {
	case "", InputModeArgs, InputModeStdin, InputModeEnv:
	default:
		return fmt.Errorf("plugin %q: unknown input_mode %q", d.Name, d.InputMode)
	}
	switch d.OutputMode {
	case "", OutputModeText, OutputModeJSON:
	default:
		return fmt.Errorf("plugin %q: unknown output_mode %q", d.Name, d.OutputMode)
	}
	return nil
}

func (d *Descriptor) inputMode() string {
	if d.InputMode == "" {
		return InputModeArgs
	}
	return d.InputMode
}

func (d *Descriptor) outputMode() string {
	if d.OutputMode == "" {
		return OutputModeText
	}
	return d.OutputMode
}

func (d *Descriptor) timeout() time.Duration {
	secs := d.TimeoutSecs
	if secs == 0 {
		secs = DefaultTimeoutSecs
	}
	return time.Duration(secs) * time.Second
}

// Tool is the executable form of a descriptor. It satisfies tool.Tool.
type Tool struct {
	descriptor Descriptor
}

// New creates a plugin tool from a validated descriptor.
func New(descriptor Descriptor) (*Tool, error) {
	if err := descriptor.Validate(); err != nil {
		return nil, err
	}
	return &Tool{descriptor: descriptor}, nil
}

// Definition returns the tool description derived from the descriptor.
func (t *Tool) Definition() protocol.ToolDescription {
	schema := any(t.descriptor.InputSchema)
	if t.descriptor.InputSchema == nil {
		schema = map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return protocol.ToolDescription{
		Name:        t.descriptor.Name,
		Description: t.descriptor.Description,
		InputSchema: schema,
	}
}

// Execute validates the arguments, resolves the command per the
// descriptor's input mode, runs it under the supervisor, and converts
// the outcome per the output mode.
func (t *Tool) Execute(ctx context.Context, arguments map[string]any) (*tool.Output, error) {
	if err := tool.ValidateArguments(t.descriptor.InputSchema, arguments); err != nil {
		return nil, err
	}

	spec := subprocess.Spec{
		Program: t.descriptor.Command,
		Dir:     t.descriptor.WorkingDir,
		Timeout: t.descriptor.timeout(),
	}

	// Descriptor env values get the same substitution as the
	// argument template, so static descriptors can inject argument
	// values into the child environment in any input mode.
	if len(t.descriptor.Env) > 0 {
		spec.Env = make(map[string]string, len(t.descriptor.Env))
		for name, value := range t.descriptor.Env {
			spec.Env[name] = Substitute(value, arguments)
		}
	}

	switch t.descriptor.inputMode() {
	case InputModeStdin:
		spec.Args = append([]string(nil), t.descriptor.ArgsTemplate...)
		payload, err := json.Marshal(arguments)
		if err != nil {
			return nil, tool.Internal("encoding stdin payload: %v", err)
		}
		spec.Stdin = payload

	case InputModeEnv:
		spec.Args = append([]string(nil), t.descriptor.ArgsTemplate...)
		if spec.Env == nil {
			spec.Env = make(map[string]string, len(arguments)+1)
		}
		for key, value := range arguments {
			spec.Env[envPrefix+"_ARG_"+strings.ToUpper(key)] = Stringify(value)
		}
		payload, err := json.Marshal(arguments)
		if err != nil {
			return nil, tool.Internal("encoding arguments: %v", err)
		}
		spec.Env[envPrefix+"_ARGS_JSON"] = string(payload)

	default: // args
		spec.Args = make([]string, 0, len(t.descriptor.ArgsTemplate))
		for _, template := range t.descriptor.ArgsTemplate {
			spec.Args = append(spec.Args, Substitute(template, arguments))
		}
	}

	result, err := subprocess.Run(ctx, spec)
	if err != nil {
		return nil, tool.External("%v", err)
	}
	if result.TimedOut {
		return nil, tool.Timeout("timeout after %ds", t.TimeoutSecsOrDefault())
	}
	if result.ExitCode != 0 {
		return nil, tool.External("command exited with status %d: %s",
			result.ExitCode, truncate(string(result.Stderr), 1024))
	}

	stdout := string(result.Stdout)
	if t.descriptor.outputMode() == OutputModeJSON {
		var parsed any
		if err := json.Unmarshal([]byte(stdout), &parsed); err != nil {
			return nil, tool.External("parsing command output as JSON: %v", err)
		}
		if text, ok := parsed.(string); ok {
			return tool.TextOutput(text), nil
		}
		return tool.JSONOutput(parsed), nil
	}
	return tool.TextOutput(strings.TrimRight(stdout, " \t\r\n")), nil
}

// TimeoutSecsOrDefault returns the effective timeout in whole seconds.
func (t *Tool) TimeoutSecsOrDefault() int {
	if t.descriptor.TimeoutSecs == 0 {
		return DefaultTimeoutSecs
	}
	return t.descriptor.TimeoutSecs
}

// Substitute replaces every ${key} in template whose key appears in
// arguments with the stringified value. The scan is a single pass over
// the template: replacement values containing ${...} sequences are
// emitted as-is, never re-substituted. Placeholders for absent keys
// are left intact so static placeholders (for example, references the
// child resolves from its environment) survive.
func Substitute(template string, arguments map[string]any) string {
	var out strings.Builder
	for i := 0; i < len(template); {
		start := strings.Index(template[i:], "${")
		if start < 0 {
			out.WriteString(template[i:])
			break
		}
		start += i
		end := strings.Index(template[start:], "}")
		if end < 0 {
			out.WriteString(template[i:])
			break
		}
		end += start

		key := template[start+2 : end]
		value, present := arguments[key]
		out.WriteString(template[i:start])
		if present {
			out.WriteString(Stringify(value))
		} else {
			out.WriteString(template[start : end+1])
		}
		i = end + 1
	}
	return out.String()
}

// Stringify converts an argument value for interpolation: strings pass
// through, numbers and booleans use their natural text form, and
// composite values are serialized as compact JSON.
func Stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case nil:
		return "null"
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
