// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

// Version is the MCP protocol version implemented by this server. The
// server responds with this version during initialization regardless of
// what version the client requests; the client then decides whether it
// can work with the server's version.
const Version = "2024-11-05"

// InitializeParams is the client's initialize request parameters. All
// fields are optional; the server treats clientInfo as opaque.
type InitializeParams struct {
	ProtocolVersion string     `json:"protocolVersion,omitempty"`
	Capabilities    any        `json:"capabilities,omitempty"`
	ClientInfo      ClientInfo `json:"clientInfo,omitempty"`
}

// ClientInfo identifies the MCP client.
type ClientInfo struct {
	Name    string `json:"name,omitempty"`
	Version string `json:"version,omitempty"`
}

// InitializeResult is the server's initialize response.
type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      ServerInfo         `json:"serverInfo"`
}

// ServerInfo identifies the MCP server.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ServerCapabilities declares the method families the server supports.
// Presence of a key announces the family; the empty objects leave room
// for per-family flags.
type ServerCapabilities struct {
	Tools     *ToolsCapability     `json:"tools,omitempty"`
	Resources *ResourcesCapability `json:"resources,omitempty"`
	Prompts   *PromptsCapability   `json:"prompts,omitempty"`
}

// ToolsCapability indicates the server supports tool operations.
type ToolsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// ResourcesCapability indicates the server supports resource operations.
type ResourcesCapability struct {
	Subscribe   bool `json:"subscribe,omitempty"`
	ListChanged bool `json:"listChanged,omitempty"`
}

// PromptsCapability indicates the server supports prompt operations.
type PromptsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// ToolDescription describes a single tool for the tools/list response.
type ToolDescription struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	InputSchema any    `json:"inputSchema"`
}

// ToolsListResult is the result for tools/list. Ordering is stable
// (registration order) so clients can diff successive calls.
type ToolsListResult struct {
	Tools []ToolDescription `json:"tools"`
}

// ToolsCallParams is the client's tools/call request parameters.
type ToolsCallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// ContentBlock is one element of a tool's structured reply: a text
// part or a structured JSON part.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	JSON any    `json:"json,omitempty"`
}

// TextContent builds a text content block.
func TextContent(text string) ContentBlock {
	return ContentBlock{Type: "text", Text: text}
}

// JSONContent builds a structured JSON content block.
func JSONContent(value any) ContentBlock {
	return ContentBlock{Type: "json", JSON: value}
}

// ToolsCallResult is the server's tools/call response. It only
// carries content: tool failures are reported as protocol error
// objects, never in-band, so a result always means the call
// succeeded.
type ToolsCallResult struct {
	Content []ContentBlock `json:"content"`
}

// Resource describes one readable resource for resources/list.
type Resource struct {
	URI         string `json:"uri"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	MIMEType    string `json:"mimeType,omitempty"`
}

// ResourcesListResult is the result for resources/list.
type ResourcesListResult struct {
	Resources []Resource `json:"resources"`
}

// ResourcesReadParams is the client's resources/read request parameters.
type ResourcesReadParams struct {
	URI string `json:"uri"`
}

// ResourceContent is the content of one resource. Text carries UTF-8
// content; Blob carries base64-encoded binary content.
type ResourceContent struct {
	URI      string `json:"uri"`
	MIMEType string `json:"mimeType,omitempty"`
	Text     string `json:"text,omitempty"`
	Blob     string `json:"blob,omitempty"`
}

// ResourcesReadResult is the result for resources/read.
type ResourcesReadResult struct {
	Contents []ResourceContent `json:"contents"`
}

// PromptsListResult is the result for prompts/list. The prompt surface
// is reserved: the list is always present and currently always empty.
type PromptsListResult struct {
	Prompts []any `json:"prompts"`
}
