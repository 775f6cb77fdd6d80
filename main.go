package main

import (
	"errors"
	"log"
	"log/slog"
	"os"
	"strings"

	"dicomboot/cmd"
	"dicomboot/config"
	"dicomboot/internal/bootstrap"
)

func main() {
	cnf, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration " + err.Error())
	}
	setupLogging(cnf)
	if err := cmd.Execute(cnf); err != nil {
		os.Exit(exitCode(err))
	}
}

func setupLogging(cnf *config.Config) {
	var level slog.Level
	switch strings.ToUpper(cnf.LogLevel) {
	case "DEBUG":
		level = slog.LevelDebug
	case "WARNING", "WARN":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.EqualFold(cnf.LogFormat, "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// Each fatal pipeline condition gets its own exit code so callers can
// distinguish a storage service that never came up from an empty collection.
func exitCode(err error) int {
	switch {
	case errors.Is(err, bootstrap.ErrNotReady):
		return 2
	case errors.Is(err, bootstrap.ErrDiscovery):
		return 3
	case errors.Is(err, bootstrap.ErrNoSeries):
		return 4
	case errors.Is(err, bootstrap.ErrNoFiles):
		return 5
	}
	return 1
}
