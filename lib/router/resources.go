// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package router

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/aegis-foundation/aegis/lib/memory"
	"github.com/aegis-foundation/aegis/lib/protocol"
)

// uriScheme prefixes every resource URI this server serves. The
// memory store is projected read-only: aegis://kv lists keys,
// aegis://kv/<key> reads one entry, aegis://conversations lists
// conversations, aegis://conversations/<id> reads one with its
// messages, aegis://messages/recent reads the newest messages across
// conversations.
const uriScheme = "aegis://"

const jsonMIMEType = "application/json"

func (r *Router) handleResourcesList(ctx context.Context) (any, *protocol.ErrorObject) {
	resources := []protocol.Resource{
		{
			URI:         uriScheme + "kv",
			Name:        "Key-Value Store",
			Description: "All keys in the key-value store.",
			MIMEType:    jsonMIMEType,
		},
		{
			URI:         uriScheme + "conversations",
			Name:        "Conversations",
			Description: "All conversations.",
			MIMEType:    jsonMIMEType,
		},
		{
			URI:         uriScheme + "messages/recent",
			Name:        "Recent Messages",
			Description: "Most recent messages across all conversations.",
			MIMEType:    jsonMIMEType,
		},
	}

	conversations, err := r.state.Memory.ListConversations(ctx, 100)
	if err != nil {
		return nil, protocol.NewError(protocol.CodeInternalError, "listing conversations: %v", err)
	}
	for _, conversation := range conversations {
		name := conversation.Title
		if name == "" {
			name = "Conversation " + shortID(conversation.ID)
		}
		resources = append(resources, protocol.Resource{
			URI:      uriScheme + "conversations/" + conversation.ID,
			Name:     name,
			MIMEType: jsonMIMEType,
		})
	}

	keys, err := r.state.Memory.KVList(ctx, "")
	if err != nil {
		return nil, protocol.NewError(protocol.CodeInternalError, "listing keys: %v", err)
	}
	for _, key := range keys {
		resources = append(resources, protocol.Resource{
			URI:      uriScheme + "kv/" + key,
			Name:     key,
			MIMEType: jsonMIMEType,
		})
	}

	return protocol.ResourcesListResult{Resources: resources}, nil
}

func (r *Router) handleResourcesRead(ctx context.Context, request *protocol.Request) (any, *protocol.ErrorObject) {
	if len(request.Params) == 0 {
		return nil, protocol.NewError(protocol.CodeInvalidParams, "params required for resources/read")
	}
	var params protocol.ResourcesReadParams
	if err := json.Unmarshal(request.Params, &params); err != nil {
		return nil, protocol.NewError(protocol.CodeInvalidParams, "invalid resources/read params: %v", err)
	}

	path, ok := strings.CutPrefix(params.URI, uriScheme)
	if !ok {
		return nil, protocol.NewError(protocol.CodeInvalidParams,
			"invalid URI scheme: %s", params.URI)
	}

	var value any
	switch {
	case path == "kv":
		keys, err := r.state.Memory.KVList(ctx, "")
		if err != nil {
			return nil, storeErrorObject(err)
		}
		if keys == nil {
			keys = []string{}
		}
		value = keys

	case strings.HasPrefix(path, "kv/"):
		entry, err := r.state.Memory.KVGet(ctx, strings.TrimPrefix(path, "kv/"))
		if err != nil {
			return nil, storeErrorObject(err)
		}
		value = entry

	case path == "conversations":
		conversations, err := r.state.Memory.ListConversations(ctx, 100)
		if err != nil {
			return nil, storeErrorObject(err)
		}
		if conversations == nil {
			conversations = []memory.Conversation{}
		}
		value = conversations

	case strings.HasPrefix(path, "conversations/"):
		id := strings.TrimPrefix(path, "conversations/")
		conversation, err := r.state.Memory.GetConversation(ctx, id)
		if err != nil {
			return nil, storeErrorObject(err)
		}
		messages, err := r.state.Memory.Messages(ctx, id, 1000)
		if err != nil {
			return nil, storeErrorObject(err)
		}
		if messages == nil {
			messages = []memory.Message{}
		}
		value = map[string]any{"conversation": conversation, "messages": messages}

	case path == "messages/recent":
		messages, err := r.state.Memory.RecentMessages(ctx, 50)
		if err != nil {
			return nil, storeErrorObject(err)
		}
		if messages == nil {
			messages = []memory.Message{}
		}
		value = messages

	default:
		return nil, protocol.NewError(protocol.CodeNotFound,
			"unknown resource: %s", params.URI)
	}

	text, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return nil, protocol.NewError(protocol.CodeInternalError, "encoding resource: %v", err)
	}

	return protocol.ResourcesReadResult{
		Contents: []protocol.ResourceContent{{
			URI:      params.URI,
			MIMEType: jsonMIMEType,
			Text:     string(text),
		}},
	}, nil
}

func storeErrorObject(err error) *protocol.ErrorObject {
	var notFound *memory.ErrNotFound
	if errors.As(err, &notFound) {
		return protocol.NewError(protocol.CodeNotFound, "%s", notFound.Error())
	}
	return protocol.NewError(protocol.CodeInternalError, "%v", err)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
