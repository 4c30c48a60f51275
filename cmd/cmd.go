// Package cmd provides CLI commands for the askaql server.
//
// Commands:
//   - serve: HTTP API server with SSE streaming
//   - migrate: apply database migrations
//
// Signal handling and graceful shutdown are implemented via context
// cancellation.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aqlhr/askaql/internal/log"
)

// Execute is the main entry point for the askaql CLI.
func Execute() error {
	// Initialize logger once at entry point
	logger := log.New(log.Config{
		Level: logLevel(),
		JSON:  os.Getenv("LOG_FORMAT") == "json",
	})
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		runHelp()
		return nil
	}

	switch os.Args[1] {
	case "serve":
		return runServe(logger)
	case "migrate":
		return runMigrate(logger)
	case "version", "--version", "-v":
		runVersion()
		return nil
	case "help", "--help", "-h":
		runHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

func logLevel() slog.Level {
	if os.Getenv("DEBUG") != "" {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println("askaql - document Q&A API for AqlHR")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  askaql serve [addr]  Start HTTP API server (default: 127.0.0.1:8080)")
	fmt.Println("  askaql migrate       Apply database migrations")
	fmt.Println("  askaql --version     Show version information")
	fmt.Println("  askaql --help        Show this help")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  DATABASE_URL              Postgres URL (overrides ASKAQL_POSTGRES_*)")
	fmt.Println("  ASKAQL_AUTH_URL           Auth service base URL")
	fmt.Println("  ASKAQL_AUTH_SERVICE_KEY   Auth service API key")
	fmt.Println("  ASKAQL_PRIMARY_API_KEY    Primary provider API key")
	fmt.Println("  ASKAQL_SECONDARY_API_KEY  Secondary provider API key")
	fmt.Println("  DEBUG                     Enable debug logging")
	fmt.Println("  LOG_FORMAT=json           Emit JSON logs")
	fmt.Println()
	fmt.Println("Configuration file: ~/.askaql/config.yaml")
}
