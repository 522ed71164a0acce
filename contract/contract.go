//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"context"
	"net/netip"
	"reflect"
	"time"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Spawn(ctx context.Context, worker Worker) domain.RelayHandle
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Sender pushes one datagram, best effort.
type Sender interface {
	Send(to netip.AddrPort, m domain.Message) error
}

// Endpoint is a bound datagram socket.
// Receive returns an error satisfying transport.IsTimeout when nothing arrived in time.
type Endpoint interface {
	Sender
	Receive(timeout time.Duration) ([]byte, netip.AddrPort, error)
	LocalAddr() netip.AddrPort
	Close() error
}

// Spawner starts one group relay bound to the requested port.
type Spawner interface {
	Spawn(ctx context.Context, spec domain.RelaySpec) (domain.RelayHandle, error)
}

type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

type IHistory interface {
	Latest(group string, limit int) ([]domain.JournalEntry, error)
}

type ISearcher interface {
	Search(ctx context.Context, term string, limit int) (int, []domain.JournalEntry, error)
}
