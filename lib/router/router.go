// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package router dispatches protocol methods to their handlers. The
// router is transport-blind: both the stdio loop and the HTTP handler
// feed decoded requests in and write the returned responses out.
//
// Tool execution failures become protocol errors using the tool error
// taxonomy; the session always survives a failed call. A panic in any
// handler is caught, logged, and converted to an internal error
// without unwinding the transport loop.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"

	"github.com/aegis-foundation/aegis/lib/protocol"
	"github.com/aegis-foundation/aegis/lib/runtime"
	"github.com/aegis-foundation/aegis/lib/tool"
)

// Router routes decoded requests to method handlers.
type Router struct {
	state  *runtime.State
	logger *slog.Logger

	// RecordToolCall, when set, is invoked with the tool name on
	// every tools/call dispatch. The HTTP transport wires this to
	// its metrics counters.
	RecordToolCall func(name string)
}

// New creates a router over the shared runtime state.
func New(state *runtime.State, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Router{state: state, logger: logger}
}

// Handle processes one request and returns the response, or nil for
// notifications (which get no response).
func (r *Router) Handle(ctx context.Context, request *protocol.Request) (response *protocol.Response) {
	if request.IsNotification() {
		r.handleNotification(request)
		return nil
	}

	// A handler panic must not take down the transport loop: convert
	// it to an internal error on this request only.
	defer func() {
		if recovered := recover(); recovered != nil {
			r.logger.Error("handler panic",
				"method", request.Method, "panic", recovered)
			response = protocol.ErrorResponse(request.ID,
				protocol.NewError(protocol.CodeInternalError, "internal error"))
		}
	}()

	result, errObject := r.dispatch(ctx, request)
	if errObject != nil {
		return protocol.ErrorResponse(request.ID, errObject)
	}
	return protocol.SuccessResponse(request.ID, result)
}

func (r *Router) handleNotification(request *protocol.Request) {
	switch request.Method {
	case "notifications/initialized", "initialized":
		// Handshake acknowledgment; nothing to do.
	default:
		r.logger.Debug("ignoring notification", "method", request.Method)
	}
}

func (r *Router) dispatch(ctx context.Context, request *protocol.Request) (any, *protocol.ErrorObject) {
	switch request.Method {
	case "initialize":
		return r.handleInitialize(request)
	case "ping":
		return map[string]any{}, nil
	case "tools/list":
		return protocol.ToolsListResult{Tools: r.state.Registry.List()}, nil
	case "tools/call":
		return r.handleToolsCall(ctx, request)
	case "resources/list":
		return r.handleResourcesList(ctx)
	case "resources/read":
		return r.handleResourcesRead(ctx, request)
	case "prompts/list":
		return protocol.PromptsListResult{Prompts: []any{}}, nil
	default:
		return nil, protocol.NewError(protocol.CodeMethodNotFound,
			"unknown method: %s", request.Method)
	}
}

// handleInitialize is idempotent: it creates no session state and
// repeated calls return identical results.
func (r *Router) handleInitialize(request *protocol.Request) (any, *protocol.ErrorObject) {
	if len(request.Params) > 0 {
		var params protocol.InitializeParams
		if err := json.Unmarshal(request.Params, &params); err != nil {
			return nil, protocol.NewError(protocol.CodeInvalidParams,
				"invalid initialize params: %v", err)
		}
	}
	r.state.SetInitialized()
	return protocol.InitializeResult{
		ProtocolVersion: protocol.Version,
		Capabilities:    r.state.Capabilities,
		ServerInfo:      r.state.ServerInfo,
	}, nil
}

func (r *Router) handleToolsCall(ctx context.Context, request *protocol.Request) (any, *protocol.ErrorObject) {
	if len(request.Params) == 0 {
		return nil, protocol.NewError(protocol.CodeInvalidParams, "params required for tools/call")
	}
	var params protocol.ToolsCallParams
	if err := json.Unmarshal(request.Params, &params); err != nil {
		return nil, protocol.NewError(protocol.CodeInvalidParams,
			"invalid tools/call params: %v", err)
	}
	if params.Name == "" {
		return nil, protocol.NewError(protocol.CodeInvalidParams, "tool name is required")
	}
	if params.Arguments == nil {
		params.Arguments = map[string]any{}
	}

	if r.RecordToolCall != nil {
		r.RecordToolCall(params.Name)
	}

	executable, lookupErr := r.state.Registry.Get(params.Name)
	if lookupErr != nil {
		return nil, protocol.NewError(protocol.CodeMethodNotFound,
			"tool not found: %s", params.Name)
	}

	output, err := executable.Execute(ctx, params.Arguments)
	if err != nil {
		return nil, toolErrorObject(err)
	}
	if output == nil || len(output.Content) == 0 {
		r.logger.Error("tool returned empty output", "tool", params.Name)
		return nil, protocol.NewError(protocol.CodeInternalError,
			"tool %s returned no content", params.Name)
	}

	return protocol.ToolsCallResult{Content: output.Content}, nil
}

// toolErrorObject maps a tool failure onto the protocol error
// taxonomy. Unclassified errors are internal.
func toolErrorObject(err error) *protocol.ErrorObject {
	var toolErr *tool.Error
	if errors.As(err, &toolErr) {
		return protocol.NewError(toolErr.Code(), "%s", toolErr.Error())
	}
	return protocol.NewError(protocol.CodeInternalError, "%s", err.Error())
}
