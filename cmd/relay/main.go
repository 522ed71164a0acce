package main

import (
	"chat-relay/internal"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/transport"
	"context"
	"flag"
	"fmt"
	"net/netip"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/benbjohnson/clock"
	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"go.uber.org/multierr"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Relay terminated with error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	// Parsing flags passed by the directory's ProcessSpawner
	name := flag.String("name", "", "Group name")
	port := flag.Int("port", 0, "UDP port of the group")
	moderator := flag.String("moderator", "", "Name of the group moderator")
	directory := flag.String("directory", "", "Directory address, host:port")
	level := flag.String("level", "INFO", "Log Level")
	flag.Parse()

	if *name == "" || *port <= 0 {
		return exitConfig, fmt.Errorf("-name and -port are required")
	}
	directoryAddr, err := netip.ParseAddrPort(*directory)
	if err != nil {
		return exitConfig, fmt.Errorf("invalid -directory %q: %w", *directory, err)
	}
	directoryAddr = transport.Reachable(directoryAddr)

	// Remaining limits come from the same environment as the directory
	config, err := internal.LoadConfig()
	if err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	charReplacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return exitConfig, err
	}

	logger := logs.GetLoggerFromString(lo.FromPtr(level)).With("group", *name)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// A busy port makes the directory see this process exit during boot
	endpoint, err := transport.Listen(config.Host, *port)
	if err != nil {
		return exitRuntime, err
	}

	deps := runtime.RelayDeps{Log: logger, Clock: clock.New()}
	if config.WordFilter {
		if deps.Censor, err = runtime.PrepareCensor(logger, charReplacement); err != nil {
			_ = endpoint.Close()
			return exitRuntime, err
		}
	}

	journalDir := ""
	if config.JournalDir != "" {
		journalDir = filepath.Join(config.JournalDir, "relay-"+strings.ToLower(*name))
	}
	db, err := repositories.OpenJournalDB(journalDir)
	if err != nil {
		_ = endpoint.Close()
		return exitRuntime, fmt.Errorf("journal opening failed: %w", err)
	}
	deps.Journal = repositories.NewJournal(db, logger)

	relay, index, err := runtime.BuildRelay(deps, endpoint, workers.RelayConfig{
		Name:           *name,
		Moderator:      *moderator,
		Directory:      directoryAddr,
		MaxMembers:     config.MaxMembers,
		ReceiveTimeout: config.ReceiveTimeout,
		ShutdownGrace:  config.ShutdownGrace,
		HistoryLimit:   config.HistoryLimit,
	})
	if err != nil {
		return exitRuntime, multierr.Combine(err, endpoint.Close(), db.Close())
	}
	defer func() {
		if err := multierr.Combine(index.Close(), db.Close(), endpoint.Close()); err != nil {
			logger.Warn("Cleanup failed", "error", err)
		}
	}()

	// The relay returns on QUT or on a signal, both end the process with status 0
	sup := workers.NewSupervisor(logger, config.RestartInterval)
	sup.Add(relay)
	logger.Info("Relay starting", "port", *port, "moderator", *moderator, "directory", directoryAddr)
	sup.Run(ctx)
	return exitOK, nil
}
