// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package runtime assembles and owns the server's shared state: the
// immutable configuration, the tool registry, and the collaborator
// handles (memory store, secrets store). One State is constructed
// before any transport starts and shared by reference among all
// concurrent handlers; after construction the registry is never
// mutated, so reads need no synchronization.
package runtime

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/aegis-foundation/aegis/lib/builtin"
	"github.com/aegis-foundation/aegis/lib/clock"
	"github.com/aegis-foundation/aegis/lib/config"
	"github.com/aegis-foundation/aegis/lib/memory"
	"github.com/aegis-foundation/aegis/lib/plugin"
	"github.com/aegis-foundation/aegis/lib/protocol"
	"github.com/aegis-foundation/aegis/lib/secrets"
	"github.com/aegis-foundation/aegis/lib/tool"
	"github.com/aegis-foundation/aegis/lib/version"
)

// State is the process-wide runtime state.
type State struct {
	Config   *config.Config
	Registry *tool.Registry
	Memory   *memory.Store
	Secrets  *secrets.Store
	Clock    clock.Clock
	Logger   *slog.Logger

	ServerInfo   protocol.ServerInfo
	Capabilities protocol.ServerCapabilities

	initialized atomic.Bool
}

// New builds the runtime state: opens the stores, registers the core
// tools, the extras (when enabled), and the configured plugins.
func New(cfg *config.Config, clk clock.Clock, logger *slog.Logger) (*State, error) {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	databasePath := cfg.DatabasePath
	if databasePath == "" {
		databasePath = "aegis.db"
	}
	store, err := memory.Open(memory.Config{
		Path:   databasePath,
		Clock:  clk,
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}

	secretsStore, err := secrets.Open(cfg.EffectiveSecretsPath())
	if err != nil {
		store.Close()
		return nil, err
	}

	registry := tool.NewRegistry()
	if err := builtin.RegisterCore(registry, cfg, store, clk); err != nil {
		store.Close()
		return nil, err
	}
	if cfg.ExtrasEnabled {
		if err := builtin.RegisterExtras(registry, store); err != nil {
			store.Close()
			return nil, err
		}
	}
	for _, descriptor := range cfg.Plugins {
		pluginTool, err := plugin.New(descriptor)
		if err != nil {
			store.Close()
			return nil, err
		}
		if err := registry.Register(pluginTool); err != nil {
			store.Close()
			return nil, err
		}
	}
	logger.Info("tool registry ready", "tools", registry.Len())

	serverVersion := cfg.ServerVersion
	if serverVersion == "" {
		serverVersion = version.Short()
	}

	return &State{
		Config:   cfg,
		Registry: registry,
		Memory:   store,
		Secrets:  secretsStore,
		Clock:    clk,
		Logger:   logger,
		ServerInfo: protocol.ServerInfo{
			Name:    cfg.ServerName,
			Version: serverVersion,
		},
		Capabilities: protocol.ServerCapabilities{
			Tools:     &protocol.ToolsCapability{},
			Resources: &protocol.ResourcesCapability{},
			Prompts:   &protocol.PromptsCapability{},
		},
	}, nil
}

// Close releases the collaborator stores.
func (s *State) Close() error {
	return s.Memory.Close()
}

// Initialized reports whether an initialize handshake has happened.
// Advisory only: no method requires it.
func (s *State) Initialized() bool { return s.initialized.Load() }

// SetInitialized marks the handshake as done.
func (s *State) SetInitialized() { s.initialized.Store(true) }

// ExecuteTool looks up a tool and runs it. Used by the scheduler and
// the one-shot CLI, which bypass the protocol layer.
func (s *State) ExecuteTool(ctx context.Context, name string, arguments map[string]any) (*tool.Output, error) {
	t, lookupErr := s.Registry.Get(name)
	if lookupErr != nil {
		return nil, lookupErr
	}
	if arguments == nil {
		arguments = map[string]any{}
	}
	output, err := t.Execute(ctx, arguments)
	if err != nil {
		return nil, err
	}
	if output == nil || len(output.Content) == 0 {
		return nil, fmt.Errorf("tool %s returned no content", name)
	}
	return output, nil
}
