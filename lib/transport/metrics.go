// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"sync"
	"sync/atomic"
)

// Metrics holds the HTTP transport's observability counters. All
// updates are atomic; Snapshot assembles a consistent-enough view for
// the /metrics endpoint without stopping writers.
type Metrics struct {
	totalRequests atomic.Int64

	// routes and tools map name → *atomic.Int64.
	routes sync.Map
	tools  sync.Map
}

// NewMetrics creates an empty counter set.
func NewMetrics() *Metrics { return &Metrics{} }

// RecordRequest counts one request against its route.
func (m *Metrics) RecordRequest(route string) {
	m.totalRequests.Add(1)
	counter(&m.routes, route).Add(1)
}

// RecordToolCall counts one tools/call dispatch against the tool name.
func (m *Metrics) RecordToolCall(name string) {
	counter(&m.tools, name).Add(1)
}

// Snapshot returns the counters as a JSON-serializable document.
func (m *Metrics) Snapshot() map[string]any {
	return map[string]any{
		"total_requests": m.totalRequests.Load(),
		"requests":       collect(&m.routes),
		"tool_calls":     collect(&m.tools),
	}
}

func counter(counters *sync.Map, key string) *atomic.Int64 {
	if existing, ok := counters.Load(key); ok {
		return existing.(*atomic.Int64)
	}
	created, _ := counters.LoadOrStore(key, &atomic.Int64{})
	return created.(*atomic.Int64)
}

func collect(counters *sync.Map) map[string]int64 {
	snapshot := make(map[string]int64)
	counters.Range(func(key, value any) bool {
		snapshot[key.(string)] = value.(*atomic.Int64).Load()
		return true
	})
	return snapshot
}
