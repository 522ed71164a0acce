// Package runtime wires the directory, its relays and their supervision.
// It orchestrates the system without containing business logic or domain rules.
package runtime

import (
	"chat-relay/contract"
	"chat-relay/moderation"
	"chat-relay/runtime/workers"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

type Orchestrator struct {
	log               *slog.Logger
	supervisor        contract.ISupervisor
	directory         *workers.Directory
	heartbeatInterval time.Duration
}

func NewOrchestrator(log *slog.Logger, supervisor contract.ISupervisor, directory *workers.Directory, heartbeatInterval time.Duration) *Orchestrator {
	return &Orchestrator{
		log:               log,
		supervisor:        supervisor,
		directory:         directory,
		heartbeatInterval: heartbeatInterval,
	}
}

// Start registers the directory and the heartbeat then blocks until every
// supervised worker, spawned relays included, has returned.
func (o *Orchestrator) Start(ctx context.Context) {
	o.supervisor.Add(o.directory)
	if o.heartbeatInterval > 0 {
		o.supervisor.Add(workers.NewHeartbeatWorker(o.log, o.heartbeatInterval, o.directory))
	}
	o.log.Info("Starting orchestrator and all supervised workers")
	o.supervisor.Run(ctx)
}

// Stop initiates a graceful shutdown of the orchestrator.
func (o *Orchestrator) Stop() {
	o.log.Info("Requesting orchestrator shutdown")
	o.supervisor.Stop()
}

// PrepareCensor loads the embedded dictionaries and builds the Aho-Corasick automaton.
func PrepareCensor(log *slog.Logger, charReplacement rune) (*moderation.Moderator, error) {
	loader := DefaultCensoredLoader()
	data, err := loader.LoadAll("censored")
	if err != nil {
		return nil, err
	}

	log.Info(fmt.Sprintf("%d censored files loaded [%s]",
		len(data.Languages), strings.Join(data.Languages, ",")))
	log.Info(fmt.Sprintf("%d unique censored words loaded", len(data.Words)))

	return moderation.NewModerator(data.Words, charReplacement)
}
