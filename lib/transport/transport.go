// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"

	"github.com/aegis-foundation/aegis/lib/protocol"
	"github.com/aegis-foundation/aegis/lib/router"
)

// Transport is the uniform frame contract the serve loop runs
// against. ReadRequest returns (nil, nil, nil) on clean close; a
// non-nil decode error describes a frame that was received but
// rejected (the loop answers it with a protocol error and keeps
// reading).
type Transport interface {
	ReadRequest() (request *protocol.Request, decodeErr *protocol.ErrorObject, err error)
	WriteResponse(response *protocol.Response) error
	Close() error
}

// Serve runs the read-dispatch-write loop over a transport until the
// transport closes, the context is cancelled, or reading fails.
// Notifications produce no response. The session survives every
// per-request failure; only transport-level errors end the loop.
func Serve(ctx context.Context, t Transport, r *router.Router) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		request, decodeErr, err := t.ReadRequest()
		if err != nil {
			return err
		}
		if decodeErr != nil {
			if writeErr := t.WriteResponse(protocol.ErrorResponse(protocol.NullID(), decodeErr)); writeErr != nil {
				return writeErr
			}
			continue
		}
		if request == nil {
			return nil
		}

		response := r.Handle(ctx, request)
		if response == nil {
			continue
		}
		if err := t.WriteResponse(response); err != nil {
			return err
		}
	}
}
