// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/aegis-foundation/aegis/lib/protocol"
)

// Stdio is the newline-delimited transport: one JSON-RPC document per
// line on the input stream, one response per line on the output
// stream. The output stream is reserved for protocol frames; all
// diagnostics go through the logger, which the caller points at
// stderr.
type Stdio struct {
	scanner *bufio.Scanner
	logger  *slog.Logger

	// writeMu serializes response writes so concurrent callers never
	// interleave frames on the output stream.
	writeMu sync.Mutex
	writer  io.Writer
}

// NewStdio creates a stdio transport over the given streams.
func NewStdio(input io.Reader, output io.Writer, logger *slog.Logger) *Stdio {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	scanner := bufio.NewScanner(input)
	// Frames can be large (tool results with verbose output).
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	return &Stdio{scanner: scanner, writer: output, logger: logger}
}

// ReadRequest reads the next frame. Empty lines are skipped. EOF
// returns (nil, nil, nil); rejected frames return a decode error for
// the loop to answer.
func (s *Stdio) ReadRequest() (*protocol.Request, *protocol.ErrorObject, error) {
	for s.scanner.Scan() {
		line := s.scanner.Bytes()
		if isBlank(line) {
			continue
		}

		request, decodeErr := protocol.DecodeRequest(line)
		if decodeErr != nil {
			s.logger.Debug("rejected frame", "error", decodeErr.Message)
			return nil, decodeErr, nil
		}
		return request, nil, nil
	}

	if err := s.scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("reading stdin: %w", err)
	}
	s.logger.Debug("stdin closed")
	return nil, nil, nil
}

// WriteResponse writes one response frame followed by a newline.
func (s *Stdio) WriteResponse(response *protocol.Response) error {
	data, err := protocol.EncodeResponse(response)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.writer.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing response: %w", err)
	}
	return nil
}

// Close is a no-op: the process owns stdin/stdout and the OS closes
// them at exit.
func (s *Stdio) Close() error { return nil }

func isBlank(line []byte) bool {
	for _, b := range line {
		if b != ' ' && b != '\t' && b != '\r' {
			return false
		}
	}
	return true
}
