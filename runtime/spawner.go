package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/runtime/workers"
	"chat-relay/transport"
	"context"
	"log/slog"
	"net/netip"

	"go.uber.org/multierr"
)

// GoroutineSpawner runs each relay as a supervised goroutine of the directory
// process. A panic in one relay restarts that relay only.
type GoroutineSpawner struct {
	log        *slog.Logger
	supervisor contract.ISupervisor
	host       string
	directory  netip.AddrPort
	template   workers.RelayConfig
	deps       RelayDeps
}

// NewGoroutineSpawner takes the per-relay limits from template; name, port,
// moderator and directory are filled in for every spawn.
func NewGoroutineSpawner(log *slog.Logger, supervisor contract.ISupervisor, host string,
	directory netip.AddrPort, template workers.RelayConfig, deps RelayDeps) *GoroutineSpawner {
	return &GoroutineSpawner{
		log:        log,
		supervisor: supervisor,
		host:       host,
		directory:  directory,
		template:   template,
		deps:       deps,
	}
}

// Spawn binds the relay port before starting the worker so a busy port is
// reported to the directory. The returned handle is done once the socket is
// closed, so the port can be bound again.
func (s *GoroutineSpawner) Spawn(ctx context.Context, spec domain.RelaySpec) (domain.RelayHandle, error) {
	endpoint, err := transport.Listen(s.host, spec.Port)
	if err != nil {
		return nil, err
	}

	cfg := s.template
	cfg.Name = spec.Name
	cfg.Moderator = spec.Moderator
	cfg.Directory = s.directory
	relay, index, err := BuildRelay(s.deps, endpoint, cfg)
	if err != nil {
		_ = endpoint.Close()
		return nil, err
	}

	h := &releasedHandle{RelayHandle: s.supervisor.Spawn(ctx, relay), released: make(chan struct{})}
	go func() {
		defer close(h.released)
		<-h.RelayHandle.Done()
		if err := multierr.Combine(endpoint.Close(), index.Close()); err != nil {
			s.log.Warn("Relay cleanup failed", "group", spec.Name, "error", err)
		}
		s.log.Debug("Relay released", "group", spec.Name, "port", spec.Port)
	}()
	return h, nil
}

// releasedHandle reports done after the relay resources are closed.
type releasedHandle struct {
	domain.RelayHandle
	released chan struct{}
}

func (h *releasedHandle) Done() <-chan struct{} {
	return h.released
}
