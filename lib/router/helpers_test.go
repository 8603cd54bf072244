// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package router

import "github.com/aegis-foundation/aegis/lib/plugin"

func pluginDescriptor(name, command string, args ...string) plugin.Descriptor {
	return plugin.Descriptor{
		Name:         name,
		Command:      command,
		ArgsTemplate: args,
	}
}
