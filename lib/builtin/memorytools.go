// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package builtin

import (
	"context"
	"errors"
	"time"

	"github.com/aegis-foundation/aegis/lib/memory"
	"github.com/aegis-foundation/aegis/lib/protocol"
	"github.com/aegis-foundation/aegis/lib/tool"
)

// mapStoreError converts memory store failures to tool errors.
func mapStoreError(err error) *tool.Error {
	var notFound *memory.ErrNotFound
	if errors.As(err, &notFound) {
		return tool.NotFound("%s", notFound.Error())
	}
	return tool.External("%v", err)
}

// MemoryStoreTool persists a value under a key.
type MemoryStoreTool struct {
	Store *memory.Store
}

func (t MemoryStoreTool) Definition() protocol.ToolDescription {
	return protocol.ToolDescription{
		Name:        "memory.store",
		Description: "Stores a value under a key in persistent memory.",
		InputSchema: tool.ObjectSchema(map[string]any{
			"key":   tool.StringProperty("Key to store under."),
			"value": map[string]any{"description": "Value to store (any JSON value)."},
			"ttl_secs": map[string]any{
				"type":        "integer",
				"description": "Seconds until the entry expires. Omit for no expiry.",
			},
		}, "key", "value"),
	}
}

func (t MemoryStoreTool) Execute(ctx context.Context, arguments map[string]any) (*tool.Output, error) {
	if err := tool.ValidateArguments(t.Definition().InputSchema.(map[string]any), arguments); err != nil {
		return nil, err
	}
	key, _ := arguments["key"].(string)

	var ttl time.Duration
	if secs, ok := arguments["ttl_secs"].(float64); ok && secs > 0 {
		ttl = time.Duration(secs) * time.Second
	}

	if err := t.Store.KVSet(ctx, key, arguments["value"], ttl); err != nil {
		return nil, mapStoreError(err)
	}
	return tool.TextOutput("stored " + key), nil
}

// MemoryRecallTool reads a value back.
type MemoryRecallTool struct {
	Store *memory.Store
}

func (t MemoryRecallTool) Definition() protocol.ToolDescription {
	return protocol.ToolDescription{
		Name:        "memory.recall",
		Description: "Recalls the value stored under a key.",
		InputSchema: tool.ObjectSchema(map[string]any{
			"key": tool.StringProperty("Key to recall."),
		}, "key"),
	}
}

func (t MemoryRecallTool) Execute(ctx context.Context, arguments map[string]any) (*tool.Output, error) {
	if err := tool.ValidateArguments(t.Definition().InputSchema.(map[string]any), arguments); err != nil {
		return nil, err
	}
	key, _ := arguments["key"].(string)

	entry, err := t.Store.KVGet(ctx, key)
	if err != nil {
		return nil, mapStoreError(err)
	}
	if text, ok := entry.Value.(string); ok {
		return tool.TextOutput(text), nil
	}
	return tool.JSONOutput(entry.Value), nil
}

// MemoryDeleteTool removes a key.
type MemoryDeleteTool struct {
	Store *memory.Store
}

func (t MemoryDeleteTool) Definition() protocol.ToolDescription {
	return protocol.ToolDescription{
		Name:        "memory.delete",
		Description: "Deletes a key from persistent memory.",
		InputSchema: tool.ObjectSchema(map[string]any{
			"key": tool.StringProperty("Key to delete."),
		}, "key"),
	}
}

func (t MemoryDeleteTool) Execute(ctx context.Context, arguments map[string]any) (*tool.Output, error) {
	if err := tool.ValidateArguments(t.Definition().InputSchema.(map[string]any), arguments); err != nil {
		return nil, err
	}
	key, _ := arguments["key"].(string)

	if err := t.Store.KVDelete(ctx, key); err != nil {
		return nil, mapStoreError(err)
	}
	return tool.TextOutput("deleted " + key), nil
}

// MemoryListTool lists stored keys.
type MemoryListTool struct {
	Store *memory.Store
}

func (t MemoryListTool) Definition() protocol.ToolDescription {
	return protocol.ToolDescription{
		Name:        "memory.list",
		Description: "Lists stored keys, optionally filtered by prefix.",
		InputSchema: tool.ObjectSchema(map[string]any{
			"prefix": tool.StringProperty("Only keys with this prefix."),
		}),
	}
}

func (t MemoryListTool) Execute(ctx context.Context, arguments map[string]any) (*tool.Output, error) {
	prefix, _ := arguments["prefix"].(string)
	keys, err := t.Store.KVList(ctx, prefix)
	if err != nil {
		return nil, mapStoreError(err)
	}
	if keys == nil {
		keys = []string{}
	}
	return tool.JSONOutput(map[string]any{"keys": keys}), nil
}

// ConversationCreateTool starts a conversation.
type ConversationCreateTool struct {
	Store *memory.Store
}

func (t ConversationCreateTool) Definition() protocol.ToolDescription {
	return protocol.ToolDescription{
		Name:        "conversation.create",
		Description: "Creates a conversation and returns its id.",
		InputSchema: tool.ObjectSchema(map[string]any{
			"title": tool.StringProperty("Human-readable title."),
		}),
	}
}

func (t ConversationCreateTool) Execute(ctx context.Context, arguments map[string]any) (*tool.Output, error) {
	title, _ := arguments["title"].(string)
	id, err := t.Store.CreateConversation(ctx, title)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return tool.JSONOutput(map[string]any{"id": id}), nil
}

// ConversationAddMessageTool appends a message.
type ConversationAddMessageTool struct {
	Store *memory.Store
}

func (t ConversationAddMessageTool) Definition() protocol.ToolDescription {
	return protocol.ToolDescription{
		Name:        "conversation.add_message",
		Description: "Appends a message to a conversation.",
		InputSchema: tool.ObjectSchema(map[string]any{
			"conversation_id": tool.StringProperty("Conversation id."),
			"role":            tool.StringProperty("Sender role: user, assistant, system, or tool."),
			"content":         tool.StringProperty("Message content."),
		}, "conversation_id", "role", "content"),
	}
}

func (t ConversationAddMessageTool) Execute(ctx context.Context, arguments map[string]any) (*tool.Output, error) {
	if err := tool.ValidateArguments(t.Definition().InputSchema.(map[string]any), arguments); err != nil {
		return nil, err
	}
	conversationID, _ := arguments["conversation_id"].(string)
	role, _ := arguments["role"].(string)
	content, _ := arguments["content"].(string)

	id, err := t.Store.AddMessage(ctx, conversationID, role, content)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return tool.JSONOutput(map[string]any{"id": id}), nil
}

// ConversationHistoryTool returns a conversation's messages.
type ConversationHistoryTool struct {
	Store *memory.Store
}

func (t ConversationHistoryTool) Definition() protocol.ToolDescription {
	return protocol.ToolDescription{
		Name:        "conversation.history",
		Description: "Returns a conversation's messages in order.",
		InputSchema: tool.ObjectSchema(map[string]any{
			"conversation_id": tool.StringProperty("Conversation id."),
			"limit": map[string]any{
				"type":        "integer",
				"description": "Maximum messages to return.",
			},
		}, "conversation_id"),
	}
}

func (t ConversationHistoryTool) Execute(ctx context.Context, arguments map[string]any) (*tool.Output, error) {
	if err := tool.ValidateArguments(t.Definition().InputSchema.(map[string]any), arguments); err != nil {
		return nil, err
	}
	conversationID, _ := arguments["conversation_id"].(string)

	limit := 0
	if raw, ok := arguments["limit"].(float64); ok {
		limit = int(raw)
	}

	// Surface unknown conversations as not-found rather than an
	// empty history.
	if _, err := t.Store.GetConversation(ctx, conversationID); err != nil {
		return nil, mapStoreError(err)
	}

	messages, err := t.Store.Messages(ctx, conversationID, limit)
	if err != nil {
		return nil, mapStoreError(err)
	}
	if messages == nil {
		messages = []memory.Message{}
	}
	return tool.JSONOutput(map[string]any{"messages": messages}), nil
}
