package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"ride-logbook-service/internal/app"
	"ride-logbook-service/internal/config"
	"ride-logbook-service/internal/platform/obs"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Version information (set via ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
	stdin  io.Reader = os.Stdin
)

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found (using environment variables)")
	}

	registry := NewCommandRegistry(VersionInfo{Version: version, Commit: commit, Date: date})
	registerCommands(registry)

	if err := registry.Execute(os.Args[1:]); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}

func registerCommands(r *CommandRegistry) {
	r.Register(dbCommand())
	r.Register(cacheCommand())
	r.Register(validateCommand())
	r.Register(rulesCommand())
	r.Register(violationsCommand())

	r.Register(&Command{
		Name:        "version",
		Description: "Show version information",
		Usage:       "ridelog version",
		Run: func(args []string) error {
			fmt.Fprintf(stdout, "ridelog %s (commit %s, built %s)\n", r.version.Version, r.version.Commit, r.version.Date)
			return nil
		},
	})
}

// loadConfig reads configuration from the environment. Configuration
// mistakes are input errors.
func loadConfig() (config.Config, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return cfg, inputError(err)
	}
	obs.SetupLogging(cfg.Log.Level, cfg.Log.JSON)
	return cfg, nil
}

// withApp builds the core from cfg for the duration of fn.
func withApp(cfg config.Config, fn func(ctx context.Context, a *app.App) error) error {
	ctx := obs.WithRequestID(context.Background())

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}

func parseID(name, raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, usagef("%s must be a positive integer, got %q", name, raw)
	}
	return id, nil
}
