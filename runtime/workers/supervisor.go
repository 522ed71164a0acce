package workers

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const DefaultRestartInterval = 200 * time.Millisecond

// Supervisor Own a context and a Cancel function
// Run each worker in a goroutine
// Check panics and errors
// Restart workers automatically
// Shutdown properly if parent context is canceled
// Wait for the end of all goroutines via WaitGroup
type Supervisor struct {
	Cancel          context.CancelFunc // To stop the context
	mu              sync.Mutex         // Guards Cancel and stopped, Stop may come from another goroutine
	stopped         bool
	wg              *sync.WaitGroup    // Wait for the end of goroutines
	log             *slog.Logger
	workers         []contract.Worker
	restartInterval time.Duration
}

func NewSupervisor(log *slog.Logger, restartInterval time.Duration) *Supervisor {
	if restartInterval <= 0 {
		restartInterval = DefaultRestartInterval
	}
	return &Supervisor{wg: &sync.WaitGroup{}, log: log, restartInterval: restartInterval}
}

// Run Create a local cancellation trigger tied to the parent ctx
//
//	// If the parent (main) cancels, we Cancel.
//	// If WE call s.Cancel(), only our children Cancel.
func (s *Supervisor) Run(ctx context.Context) {
	supervisedCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.Cancel = cancel
	if s.stopped {
		cancel()
	}
	s.mu.Unlock()
	// Safety: ensure resources are cleaned up when Run exits
	defer cancel()

	for _, worker := range s.workers {
		s.Start(supervisedCtx, worker)
	}
	s.wg.Wait()
}

func (s *Supervisor) Add(worker ...contract.Worker) contract.ISupervisor {
	s.workers = append(s.workers, worker...)
	return s
}

// Start runs a worker under supervision.
// The worker is executed in a dedicated goroutine. If its Run method panics,
// the supervisor recovers, restarts the worker, and keeps the supervision
// loop alive. A failure in one worker must not stop the supervisor itself.
func (s *Supervisor) Start(ctx context.Context, worker contract.Worker) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.supervise(ctx, worker)
	}()
}

// Spawn runs a worker under supervision with its own cancellation.
// Terminate on the handle stops only this worker; Done is closed once it returned.
// Run waits for spawned workers too.
func (s *Supervisor) Spawn(ctx context.Context, worker contract.Worker) domain.RelayHandle {
	workerCtx, cancel := context.WithCancel(ctx)
	h := &handle{cancel: cancel, done: make(chan struct{})}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(h.done)
		defer cancel()
		s.supervise(workerCtx, worker)
	}()
	return h
}

func (s *Supervisor) supervise(ctx context.Context, worker contract.Worker) {
	workerName := contract.GetWorkerName(worker)
	for {
		if ctx.Err() != nil {
			s.log.Info(fmt.Sprintf("Stopping : %s", workerName))
			return
		}

		err := func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("%w: %v", errors.ErrWorkerPanic, r)
				}
			}()
			// Restarted after a crash
			// Not restarting the entire goroutine
			return worker.Run(ctx)
		}()

		if err == nil {
			// Terminated properly, never restart !
			s.log.Info(fmt.Sprintf("Worker finished : %s", workerName))
			return
		}

		if ctx.Err() != nil {
			s.log.Info("Worker stopped (context canceled)", "name", workerName)
			return
		}

		s.log.Warn("Worker crashed, restarting", "name", workerName, "error", err)
		select {
		case <-ctx.Done():
			// Context canceled: priority stop.
			// Exit immediately without waiting for the restart delay.
			return
		case <-time.After(s.restartInterval):
		}
	}
}

// Stop Cancel all goroutines listening channel for Ctx.Done
// Supervisor will wait for all goroutines to finish
// A Stop issued before Run makes Run return right away.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.Cancel != nil {
		s.Cancel()
	}
}

type handle struct {
	once   sync.Once
	cancel context.CancelFunc
	done   chan struct{}
}

func (h *handle) Terminate() {
	h.once.Do(h.cancel)
}

func (h *handle) Done() <-chan struct{} {
	return h.done
}
