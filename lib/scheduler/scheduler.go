// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package scheduler runs registered tools on cron schedules.
//
// Jobs are declared in a YAML file: each names a tool, a 5-field cron
// expression, and an arguments object. The scheduler owns one
// goroutine per job, all rooted in the context passed to Run, so
// cancelling the server's root context stops every job. Tool failures
// are logged and the job keeps its schedule; the scheduler never
// retries a missed or failed firing.
package scheduler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/aegis-foundation/aegis/lib/clock"
)

// Job is one scheduled tool invocation.
type Job struct {
	// Name identifies the job in logs. Required.
	Name string `yaml:"name"`

	// Cron is the 5-field schedule expression. Required.
	Cron string `yaml:"cron"`

	// Tool is the registered tool name to invoke. Required.
	Tool string `yaml:"tool"`

	// Arguments is the tool's argument object.
	Arguments map[string]any `yaml:"arguments"`

	schedule Schedule
}

// LoadJobs reads and validates a YAML job file. A missing path (empty
// string) yields no jobs.
func LoadJobs(path string) ([]Job, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scheduler: reading jobs file %s: %w", path, err)
	}

	var file struct {
		Jobs []Job `yaml:"jobs"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("scheduler: parsing jobs file %s: %w", path, err)
	}

	for i := range file.Jobs {
		job := &file.Jobs[i]
		if job.Name == "" {
			return nil, fmt.Errorf("scheduler: job %d: name is required", i)
		}
		if job.Tool == "" {
			return nil, fmt.Errorf("scheduler: job %q: tool is required", job.Name)
		}
		schedule, err := ParseCron(job.Cron)
		if err != nil {
			return nil, fmt.Errorf("scheduler: job %q: %w", job.Name, err)
		}
		job.schedule = schedule
	}
	return file.Jobs, nil
}

// InvokeFunc executes a registered tool by name. cmd/aegis wires this
// to the runtime's ExecuteTool; the indirection keeps the scheduler
// free of a registry dependency.
type InvokeFunc func(ctx context.Context, toolName string, arguments map[string]any) error

// Scheduler drives a set of jobs against a clock.
type Scheduler struct {
	clock  clock.Clock
	logger *slog.Logger
	invoke InvokeFunc
	jobs   []Job
}

// New creates a scheduler. invoke is required; a nil logger discards.
func New(jobs []Job, invoke InvokeFunc, clk clock.Clock, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &Scheduler{clock: clk, logger: logger, invoke: invoke, jobs: jobs}
}

// Run blocks until ctx is cancelled, firing each job on its schedule.
// Returns immediately when there are no jobs.
func (s *Scheduler) Run(ctx context.Context) {
	if len(s.jobs) == 0 {
		return
	}

	var wg sync.WaitGroup
	for i := range s.jobs {
		job := s.jobs[i]
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.runJob(ctx, job)
		}()
	}
	wg.Wait()
}

func (s *Scheduler) runJob(ctx context.Context, job Job) {
	for {
		now := s.clock.Now()
		next, err := job.schedule.Next(now)
		if err != nil {
			s.logger.Error("job has no future fire time, stopping it",
				"job", job.Name, "error", err)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-s.clock.After(next.Sub(now)):
		}

		s.logger.Info("running scheduled job", "job", job.Name, "tool", job.Tool)
		if err := s.invoke(ctx, job.Tool, job.Arguments); err != nil {
			s.logger.Error("scheduled job failed",
				"job", job.Name, "tool", job.Tool, "error", err)
		}
	}
}
