package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

type GroupCounter interface {
	ActiveGroups() int
}

// HeartbeatWorker logs the health of the directory process on a fixed period.
type HeartbeatWorker struct {
	log      *slog.Logger
	interval time.Duration
	groups   GroupCounter
}

func NewHeartbeatWorker(log *slog.Logger, interval time.Duration, groups GroupCounter) *HeartbeatWorker {
	return &HeartbeatWorker{log: log, interval: interval, groups: groups}
}

// Run executes the main loop of the worker, logging RSS, CPU, status and the active group count.
func (w *HeartbeatWorker) Run(ctx context.Context) error {
	w.log.Info("Starting heartbeat worker", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.beat(p)
		}
	}
}

func (w *HeartbeatWorker) beat(p *process.Process) {
	rss, cpu, status, err := getSelfStats(p)
	if err != nil {
		w.log.Error("Failed to collect self stats", "err", err)
		return
	}
	w.log.Info("Heartbeat",
		"pid", p.Pid,
		"status", status,
		"rss_bytes", rss,
		"cpu_percent", cpu,
		"groups", w.groups.ActiveGroups())
}

// getSelfStats retrieves technical metrics (Memory, CPU, and OS Status) for the given process.
func getSelfStats(p *process.Process) (uint64, float64, string, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, "", err
	}

	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, "", err
	}

	status, err := p.Status()
	if err != nil {
		return 0, 0, "", err
	}
	return memInfo.RSS, cpuPercent, status, nil
}
