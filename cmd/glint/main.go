// Package main is the entry point for the glint editor front-end.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/glintedit/glint/internal/app"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	opts := parseFlags()

	application, err := app.New(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil && err != context.Canceled {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func parseFlags() app.Options {
	var opts app.Options
	var backendArgs string
	var showVersion bool

	flag.StringVar(&opts.BackendCmd, "backend", "xi-core", "Backend executable")
	flag.StringVar(&backendArgs, "backend-args", "", "Extra backend arguments, space-separated")
	flag.StringVar(&opts.ConfigDir, "config-dir", defaultConfigDir(), "Backend configuration directory")
	flag.StringVar(&opts.Theme, "theme", "", "Theme to request at startup")
	flag.StringVar(&opts.PluginFile, "plugin", "", "Lua script to load at startup")
	flag.StringVar(&opts.LogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.StringVar(&opts.LogFile, "log-file", "", "Log file (logging is off without one)")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Glint - terminal front-end for the xi editor backend\n\n")
		fmt.Fprintf(os.Stderr, "Usage: glint [options] [files...]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  glint                        Open with an empty buffer\n")
		fmt.Fprintf(os.Stderr, "  glint file.go                Open a file\n")
		fmt.Fprintf(os.Stderr, "  glint -theme InspiredGitHub  Open with a theme\n")
	}

	flag.Parse()

	if showVersion {
		fmt.Printf("glint %s (%s)\n", version, commit)
		os.Exit(0)
	}

	switch opts.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		fmt.Fprintf(os.Stderr, "Error: invalid log level %q (must be debug, info, warn, or error)\n", opts.LogLevel)
		os.Exit(1)
	}

	if backendArgs != "" {
		opts.BackendArgs = strings.Fields(backendArgs)
	}
	opts.Files = flag.Args()
	return opts
}

// defaultConfigDir follows the XDG convention the backend expects.
func defaultConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return dir + "/glint"
	}
	if home, err := os.UserHomeDir(); err == nil {
		return home + "/.config/glint"
	}
	return ""
}
