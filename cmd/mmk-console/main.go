package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/target/mmk-console/config"
	"github.com/target/mmk-console/internal/bootstrap"
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// exitCoder lets a command choose its exit status without logging an error.
type exitCoder interface {
	ExitCode() int
}

func main() {
	if len(os.Args) < 2 {
		if err := printUsage(os.Stderr); err != nil {
			slog.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when no command is provided
	}

	cmdName := os.Args[1]
	cmd, ok := commands()[cmdName]
	if !ok {
		if err := writef(os.Stderr, "unknown command %q\n\n", cmdName); err != nil {
			slog.Error("print unknown command message failed", "error", err)
		}
		if err := printUsage(os.Stderr); err != nil {
			slog.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when command is unknown
	}

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("load config", "error", err)
		os.Exit(1) //nolint:forbidigo // CLI must signal configuration load failure to shell scripts
	}
	// Logs go to stderr so command output on stdout stays scriptable.
	logger := bootstrap.InitLogger(os.Stderr, cfg.Observability)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	cmdCtx := &commandContext{
		Ctx:    ctx,
		Logger: logger,
		Config: cfg,
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
	runErr := cmd.run(cmdCtx, os.Args[2:])
	stop()
	os.Exit(exitCode(cmdCtx, cmdName, runErr)) //nolint:forbidigo // CLI must propagate command status to callers
}

func exitCode(cmdCtx *commandContext, cmdName string, err error) int {
	if err == nil || errors.Is(err, flag.ErrHelp) {
		return 0
	}
	var ec exitCoder
	if errors.As(err, &ec) {
		if werr := writeln(cmdCtx.Stderr, err.Error()); werr != nil {
			cmdCtx.Logger.Warn("print command result failed", "error", werr)
		}
		return ec.ExitCode()
	}
	cmdCtx.Logger.ErrorContext(cmdCtx.Ctx, "command failed", "command", cmdName, "error", err)
	return 1
}

func commands() map[string]command {
	return map[string]command{
		"serve": {
			name:        "serve",
			description: "Serve the console dashboard on HTTP_ADDR until interrupted",
			run:         runServe,
		},
		"login": {
			name:        "login",
			description: "Sign in with a username and password and store the session token",
			run:         runLogin,
		},
		"logout": {
			name:        "logout",
			description: "Sign out and remove the stored session token",
			run:         runLogout,
		},
		"whoami": {
			name:        "whoami",
			description: "Print the signed-in user (exit status 1 when signed out)",
			run:         runWhoami,
		},
		"get": {
			name:        "get",
			description: "GET a backend API path with the stored session token and print the JSON",
			run:         runGet,
		},
		"status": {
			name:        "status",
			description: "Print the session state and storage details as JSON",
			run:         runStatus,
		},
	}
}

func printUsage(w io.Writer) error {
	if err := writef(w, "Usage: mmk-console <command> [flags]\n\n"); err != nil {
		return err
	}
	if err := writef(w, "Available commands:\n"); err != nil {
		return err
	}
	cmds := commands()
	names := make([]string, 0, len(cmds))
	for name := range cmds {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := writef(w, "  %-10s %s\n", name, cmds[name].description); err != nil {
			return err
		}
	}
	return nil
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}

func writeln(w io.Writer, args ...any) error {
	_, err := fmt.Fprintln(w, args...)
	return err
}
