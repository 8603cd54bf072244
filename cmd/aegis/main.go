// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Command aegis is the MCP tool server: JSON-RPC 2.0 over stdio or
// HTTP, a registry of built-in and plugin tools, and a supervised
// execution envelope for everything that touches the host.
//
// Usage:
//
//	aegis --stdio                      serve on stdin/stdout
//	aegis serve [--host H] [--port P]  serve HTTP
//	aegis run <tool> --args '{...}'    invoke one tool and exit
//	aegis tools                        list registered tool names
//	aegis info                         show server configuration
//
// Exit codes: 0 success, 1 tool or protocol error, 2 configuration
// error.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/aegis-foundation/aegis/lib/clock"
	"github.com/aegis-foundation/aegis/lib/config"
	"github.com/aegis-foundation/aegis/lib/router"
	"github.com/aegis-foundation/aegis/lib/runtime"
	"github.com/aegis-foundation/aegis/lib/scheduler"
	"github.com/aegis-foundation/aegis/lib/transport"
	"github.com/aegis-foundation/aegis/lib/version"
)

const (
	exitToolError   = 1
	exitConfigError = 2
)

func main() {
	flags := pflag.NewFlagSet("aegis", pflag.ExitOnError)
	configPath := flags.StringP("config", "c", "aegis.json", "path to configuration file")
	logLevel := flags.StringP("log-level", "l", "", "log level: debug, info, warn, error")
	stdio := flags.Bool("stdio", false, "serve JSON-RPC on stdin/stdout")
	coreOnly := flags.Bool("core-only", false, "load only the core tools")
	showVersion := flags.Bool("version", false, "print version and exit")
	// Stop at the first subcommand so its flags reach the
	// subcommand's own flag set.
	flags.SetInterspersed(false)
	flags.Parse(os.Args[1:])

	if *showVersion {
		version.Print("aegis")
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(exitConfigError)
	}
	if *coreOnly {
		cfg.ExtrasEnabled = false
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	logger := newLogger(cfg.LogLevel)

	args := flags.Args()
	switch {
	case *stdio:
		err = runStdio(cfg, logger)
	case len(args) == 0:
		fmt.Fprintln(os.Stderr, "usage: aegis [--stdio] | serve | run <tool> | tools | info")
		flags.PrintDefaults()
		return
	default:
		switch args[0] {
		case "serve":
			err = runServe(cfg, logger, args[1:])
		case "run":
			err = runOneshot(cfg, logger, args[1:])
		case "tools":
			err = listTools(cfg, logger)
		case "info":
			showInfo(cfg)
		default:
			fmt.Fprintf(os.Stderr, "error: unknown command %q\n", args[0])
			os.Exit(exitConfigError)
		}
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(exitToolError)
	}
}

// newLogger builds the process logger. Logs always go to stderr: in
// stdio mode stdout belongs to the protocol.
func newLogger(level string) *slog.Logger {
	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slogLevel}))
}

func newState(cfg *config.Config, logger *slog.Logger) (*runtime.State, error) {
	return runtime.New(cfg, clock.Real(), logger)
}

// startScheduler loads the job file (if configured) and runs the
// scheduler rooted in ctx. Returns a wait function.
func startScheduler(ctx context.Context, state *runtime.State, logger *slog.Logger) (func(), error) {
	jobs, err := scheduler.LoadJobs(state.Config.JobsPath)
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return func() {}, nil
	}

	invoke := func(ctx context.Context, toolName string, arguments map[string]any) error {
		_, err := state.ExecuteTool(ctx, toolName, arguments)
		return err
	}
	s := scheduler.New(jobs, invoke, state.Clock, logger)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.Run(ctx)
	}()
	logger.Info("scheduler running", "jobs", len(jobs))
	return wg.Wait, nil
}

func runStdio(cfg *config.Config, logger *slog.Logger) error {
	state, err := newState(cfg, logger)
	if err != nil {
		return err
	}
	defer state.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	waitForJobs, err := startScheduler(ctx, state, logger)
	if err != nil {
		return err
	}
	defer waitForJobs()

	r := router.New(state, logger)
	stdioTransport := transport.NewStdio(os.Stdin, os.Stdout, logger)

	logger.Info("serving on stdio")
	if err := transport.Serve(ctx, stdioTransport, r); err != nil && ctx.Err() == nil {
		return err
	}
	logger.Info("stdio session closed")
	return nil
}

func runServe(cfg *config.Config, logger *slog.Logger, args []string) error {
	flags := pflag.NewFlagSet("aegis serve", pflag.ExitOnError)
	host := flags.StringP("host", "H", cfg.Host, "bind host")
	port := flags.IntP("port", "p", cfg.Port, "bind port")
	flags.Parse(args)

	state, err := newState(cfg, logger)
	if err != nil {
		return err
	}
	defer state.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	waitForJobs, err := startScheduler(ctx, state, logger)
	if err != nil {
		return err
	}
	defer waitForJobs()

	metrics := transport.NewMetrics()
	r := router.New(state, logger)
	r.RecordToolCall = metrics.RecordToolCall

	server := transport.NewServer(transport.ServerConfig{
		Address:        fmt.Sprintf("%s:%d", *host, *port),
		Router:         r,
		Logger:         logger,
		Metrics:        metrics,
		ServiceName:    state.ServerInfo.Name,
		ServiceVersion: state.ServerInfo.Version,
		Auth:           cfg.Auth,
		RateLimit:      cfg.RateLimit,
	})
	return server.Serve(ctx)
}

func runOneshot(cfg *config.Config, logger *slog.Logger, args []string) error {
	flags := pflag.NewFlagSet("aegis run", pflag.ExitOnError)
	argsJSON := flags.StringP("args", "a", "{}", "JSON arguments for the tool")
	format := flags.StringP("format", "f", "text", "output format: text or json")
	flags.Parse(args)

	if flags.NArg() != 1 {
		return fmt.Errorf("usage: aegis run <tool> --args '{...}'")
	}
	toolName := flags.Arg(0)

	var arguments map[string]any
	if err := json.Unmarshal([]byte(*argsJSON), &arguments); err != nil {
		return fmt.Errorf("invalid JSON arguments: %w", err)
	}

	state, err := newState(cfg, logger)
	if err != nil {
		return err
	}
	defer state.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	output, err := state.ExecuteTool(ctx, toolName, arguments)
	if err != nil {
		return err
	}

	if *format == "json" {
		data, err := json.MarshalIndent(output.Content, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding output: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}
	for _, block := range output.Content {
		if block.Type == "text" {
			fmt.Println(block.Text)
			continue
		}
		data, err := json.Marshal(block.JSON)
		if err != nil {
			return fmt.Errorf("encoding output: %w", err)
		}
		fmt.Println(string(data))
	}
	return nil
}

func listTools(cfg *config.Config, logger *slog.Logger) error {
	state, err := newState(cfg, logger)
	if err != nil {
		return err
	}
	defer state.Close()

	for _, definition := range state.Registry.List() {
		if definition.Description != "" {
			fmt.Printf("%-28s %s\n", definition.Name, definition.Description)
		} else {
			fmt.Println(definition.Name)
		}
	}
	return nil
}

func showInfo(cfg *config.Config) {
	fmt.Printf("aegis %s\n", version.Short())
	fmt.Printf("  server:    %s\n", cfg.ServerName)
	fmt.Printf("  bind:      %s:%d\n", cfg.Host, cfg.Port)
	fmt.Printf("  database:  %s\n", cfg.DatabasePath)
	fmt.Printf("  plugins:   %d\n", len(cfg.Plugins))
	fmt.Printf("  extras:    %v\n", cfg.ExtrasEnabled)
}
