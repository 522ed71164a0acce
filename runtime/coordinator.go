package runtime

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"context"
	"fmt"
	"log/slog"
	"net/netip"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"
)

// ProcessSpawner starts every relay as a child process running the relay binary.
type ProcessSpawner struct {
	log       *slog.Logger
	binPath   string
	directory netip.AddrPort
	logLevel  string
	bootWait  time.Duration
}

func NewProcessSpawner(log *slog.Logger, binPath string, directory netip.AddrPort, logLevel string, bootWait time.Duration) *ProcessSpawner {
	return &ProcessSpawner{
		log:       log,
		binPath:   binPath,
		directory: directory,
		logLevel:  logLevel,
		bootWait:  bootWait,
	}
}

// Spawn executes the relay binary and watches it during the boot window.
// A child exiting within that window (typically a port already in use) is a spawn failure.
func (p *ProcessSpawner) Spawn(ctx context.Context, spec domain.RelaySpec) (domain.RelayHandle, error) {
	// Fail fast on a missing binary
	if _, err := os.Stat(p.binPath); err != nil {
		return nil, fmt.Errorf("%w: %s", errors.ErrRelayMissing, p.binPath)
	}

	cmd := exec.CommandContext(ctx, p.binPath,
		"-name", spec.Name,
		"-port", strconv.Itoa(spec.Port),
		"-moderator", spec.Moderator,
		"-directory", p.directory.String(),
		"-level", p.logLevel,
	)
	cmd.Stdout = &relayLogWriter{logger: p.log, prefix: spec.Name}
	cmd.Stderr = &relayLogWriter{logger: p.log, prefix: spec.Name, isError: true}
	// On cancellation the relay gets the same signal as on Terminate, so it can send its end-notices
	cmd.Cancel = func() error { return interrupt(cmd.Process) }
	cmd.WaitDelay = 5 * time.Second
	setPlatformSpecificAttrs(cmd)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrSpawnFailed, err)
	}
	h := &processHandle{process: cmd.Process, done: make(chan struct{})}
	go func() {
		h.err = cmd.Wait()
		close(h.done)
	}()

	select {
	case <-h.done:
		return nil, fmt.Errorf("%w: relay %s exited during boot: %v", errors.ErrSpawnFailed, spec.Name, h.err)
	case <-time.After(p.bootWait):
	}
	p.log.Info("Relay process started", "group", spec.Name, "port", spec.Port, "pid", cmd.Process.Pid)
	return h, nil
}

type processHandle struct {
	once    sync.Once
	process *os.Process
	done    chan struct{}
	err     error
}

func (h *processHandle) Terminate() {
	h.once.Do(func() {
		_ = interrupt(h.process)
	})
}

func (h *processHandle) Done() <-chan struct{} {
	return h.done
}

// interrupt asks the process to stop gracefully, killing it where signals are unsupported.
func interrupt(p *os.Process) error {
	if err := p.Signal(os.Interrupt); err != nil {
		return p.Kill()
	}
	return nil
}
