// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package builtin

import (
	"time"

	"github.com/aegis-foundation/aegis/lib/clock"
	"github.com/aegis-foundation/aegis/lib/config"
	"github.com/aegis-foundation/aegis/lib/memory"
	"github.com/aegis-foundation/aegis/lib/tool"
)

// RegisterCore adds the always-loaded tool set to the registry.
func RegisterCore(registry *tool.Registry, cfg *config.Config, store *memory.Store, clk clock.Clock) error {
	security := cfg.Security
	tools := []tool.Tool{
		EchoTool{},
		TimeTool{Clock: clk},
		UUIDTool{},
		EnvGetTool{Redacted: security.RedactedEnv},
		EnvListTool{Redacted: security.RedactedEnv},
		FsReadTool{AllowedPaths: security.AllowedReadPaths},
		FsWriteTool{AllowedPaths: security.AllowedWritePaths},
		CmdExecTool{
			AllowedCommands: security.AllowedCommands,
			RedactedEnv:     security.RedactedEnv,
			DefaultTimeout:  time.Duration(security.ToolTimeoutSecs) * time.Second,
		},
		MemoryStoreTool{Store: store},
		MemoryRecallTool{Store: store},
		MemoryDeleteTool{Store: store},
		MemoryListTool{Store: store},
	}
	for _, t := range tools {
		if err := registry.Register(t); err != nil {
			return err
		}
	}
	return nil
}

// RegisterExtras adds the optional tool set (enabled by
// extras_enabled in the configuration).
func RegisterExtras(registry *tool.Registry, store *memory.Store) error {
	tools := []tool.Tool{
		ConversationCreateTool{Store: store},
		ConversationAddMessageTool{Store: store},
		ConversationHistoryTool{Store: store},
	}
	for _, t := range tools {
		if err := registry.Register(t); err != nil {
			return err
		}
	}
	return nil
}
