package main

import (
	"chat-relay/contract"
	"chat-relay/internal"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/transport"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/benbjohnson/clock"
	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/database"
	"github.com/mama165/sdk-go/logs"
	"go.uber.org/multierr"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// The main function acts as a thin wrapper.
	// Its only responsibility is to call run() and handle the OS exit code.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Directory terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the directory lifecycle, and centralizes error reporting.
// Every deferred cleanup runs before main exits.
func run() (int, error) {
	// 1. Configuration & Logger
	config, err := internal.LoadConfig()
	if err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	charReplacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return exitConfig, err
	}

	logger := logs.GetLoggerFromString(config.LogLevel)

	// 2. Context & Signals
	// NotifyContext captures OS signals and cancels the context to trigger a shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Well-known port, a second directory on the same host must fail here
	endpoint, err := transport.Listen(config.Host, config.DirectoryPort)
	if err != nil {
		return exitRuntime, err
	}
	directoryAddr := transport.Reachable(endpoint.LocalAddr())

	var cleanups []func() error
	defer func() {
		var errs error
		for i := len(cleanups) - 1; i >= 0; i-- {
			errs = multierr.Append(errs, cleanups[i]())
		}
		errs = multierr.Append(errs, endpoint.Close())
		if errs != nil {
			logger.Warn("Cleanup failed", "error", errs)
		}
	}()

	// 4. Supervision & relays
	sup := workers.NewSupervisor(logger, config.RestartInterval)
	template := workers.RelayConfig{
		MaxMembers:     config.MaxMembers,
		ReceiveTimeout: config.ReceiveTimeout,
		ShutdownGrace:  config.ShutdownGrace,
		HistoryLimit:   config.HistoryLimit,
	}

	var spawner contract.Spawner
	if config.RelayBinPath != "" {
		logger.Info("Relays run as child processes", "bin", config.RelayBinPath)
		spawner = runtime.NewProcessSpawner(logger, config.RelayBinPath, directoryAddr, config.LogLevel, config.RelayBootWait)
	} else {
		deps := runtime.RelayDeps{Log: logger, Clock: clock.New()}

		if config.WordFilter {
			censor, err := runtime.PrepareCensor(logger, charReplacement)
			if err != nil {
				return exitRuntime, fmt.Errorf("word filter: %w", err)
			}
			deps.Censor = censor
		}

		db, err := repositories.OpenJournalDB(config.JournalDir)
		if err != nil {
			return exitRuntime, fmt.Errorf("journal opening failed: %w", err)
		}
		cleanups = append(cleanups, func() error {
			// The database lock is released and buffers are flushed before run returns.
			logger.Info("Closing journal...")
			return db.Close()
		})
		startInspector(ctx, logger, db, config.DebugPort)

		deps.Journal = repositories.NewJournal(db, logger)
		spawner = runtime.NewGoroutineSpawner(logger, sup, config.Host, directoryAddr, template, deps)
	}

	directory := workers.NewDirectory(logger, endpoint, spawner, workers.DirectoryConfig{
		Host:           config.Host,
		GroupBasePort:  config.GroupBasePort,
		MaxGroups:      config.MaxGroups,
		MaxUsers:       config.MaxUsers,
		ReceiveTimeout: config.ReceiveTimeout,
		FusionGrace:    config.FusionGrace,
		StopTimeout:    config.ShutdownGrace + config.RelayBootWait,
	})
	orchestrator := runtime.NewOrchestrator(logger, sup, directory, config.HeartbeatInterval)

	// 5. Block until a signal stops every worker
	orchestrator.Start(ctx)
	logger.Info("Program stopped cleanly")
	return exitOK, nil
}

// startInspector exposes the journal over HTTP when debug logging is on.
func startInspector(ctx context.Context, logger *slog.Logger, db *badger.DB, port int) {
	if !logger.Enabled(ctx, slog.LevelDebug) || port <= 0 {
		return
	}
	endpoint := "/inspect"
	url := fmt.Sprintf("http://localhost:%d%s", port, endpoint)
	logger.Info("Debug journal inspector available", "url", url)
	database.StartDebugServer(db, port, endpoint, JournalMapper)
}

// JournalMapper renders one journal entry in the inspector.
func JournalMapper(key string, val []byte) database.InspectRow {
	row := database.DefaultMapper(key, val)
	entry, err := repositories.DecodeEntry(val)
	if err != nil {
		row.Detail = "Error: unmarshal failed"
		return row
	}
	row.Type = entry.Group
	row.Detail = fmt.Sprintf("%s: %s", entry.Author, entry.Content)
	if entry.Lang != "" {
		row.Detail += fmt.Sprintf(" (%s)", entry.Lang)
	}
	return row
}
