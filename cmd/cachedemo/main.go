package main

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/goforj/cachedemo"
)

const (
	defaultConfigPath = "resources/config.properties"
	configPathEnv     = "CACHEDEMO_CONFIG"
)

func main() {
	os.Exit(run(context.Background(), os.Getenv, os.Stdout, os.Stderr))
}

// run executes the demo and returns the process exit code.
func run(ctx context.Context, getenv func(string) string, stdout, stderr io.Writer) int {
	logger := slog.New(slog.NewTextHandler(stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	path := defaultString(getenv(configPathEnv), defaultConfigPath)
	settings, err := cachedemo.LoadSettings(path)
	if err != nil {
		logger.Error("Could not load settings", "path", path, "err", err)
		return 1
	}

	opts := []cachedemo.RunnerOption{cachedemo.WithLogger(logger)}
	if !settings.SuppressClientLogs {
		clientLogger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
		opts = append(opts, cachedemo.WithClientLogger(clientLogger))
	}

	runner, err := cachedemo.New(ctx, settings, opts...)
	if err != nil {
		logger.Error("Could not connect to cache", "endpoint", settings.Endpoint(), "driver", settings.Driver, "err", err)
		return 1
	}
	if err := runner.Run(ctx); err != nil {
		logger.Error("Demo did not run", "err", err)
		return 1
	}
	return 0
}

func defaultString(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
