package runtime

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/mocks"
	"chat-relay/protocol"
	"chat-relay/repositories"
	"chat-relay/runtime/workers"
	"chat-relay/transport"
	"context"
	"io"
	"log/slog"
	"net/netip"
	"os"
	"path/filepath"
	goruntime "runtime"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

var relayTemplate = workers.RelayConfig{
	MaxMembers:     10,
	ReceiveTimeout: 20 * time.Millisecond,
	ShutdownGrace:  10 * time.Millisecond,
	HistoryLimit:   5,
}

func freePort(t *testing.T) int {
	t.Helper()
	ep, err := transport.Listen("127.0.0.1", 0)
	require.NoError(t, err)
	port := int(ep.LocalAddr().Port())
	require.NoError(t, ep.Close())
	return port
}

func peer(t *testing.T) *transport.Endpoint {
	t.Helper()
	ep, err := transport.Listen("127.0.0.1", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ep.Close() })
	return ep
}

func TestGoroutineSpawner_Spawn_Then_Terminate(t *testing.T) {
	req := require.New(t)
	sup := workers.NewSupervisor(discard, 0)
	spawner := NewGoroutineSpawner(discard, sup, "127.0.0.1", netip.AddrPort{}, relayTemplate,
		RelayDeps{Log: discard, Clock: clock.New()})
	port := freePort(t)

	// Given a relay spawned on a free port
	h, err := spawner.Spawn(context.Background(), domain.RelaySpec{Name: "study", Port: port, Moderator: "alice"})
	req.NoError(err)

	// When a client registers
	client := peer(t)
	relayAddr := netip.AddrPortFrom(netip.MustParseAddr("127.0.0.1"), uint16(port))
	answer, err := client.Exchange(relayAddr, domain.NewMessage(domain.OrderRegister, "alice", ""), time.Second)
	req.NoError(err)
	req.Equal(domain.OrderAck, answer.Order)

	// Then terminating the relay sends an end-notice and releases the port
	h.Terminate()
	b, _, err := client.Receive(time.Second)
	req.NoError(err)
	end, err := protocol.Decode(b)
	req.NoError(err)
	req.Equal(domain.OrderEnd, end.Order)
	select {
	case <-h.Done():
	case <-time.After(time.Second):
		req.Fail("relay should be done")
	}
	// Done means the port is already released
	ep, err := transport.Listen("127.0.0.1", port)
	req.NoError(err)
	req.NoError(ep.Close())
}

func TestGoroutineSpawner_Busy_Port(t *testing.T) {
	req := require.New(t)
	busy := peer(t)
	spawner := NewGoroutineSpawner(discard, workers.NewSupervisor(discard, 0), "127.0.0.1", netip.AddrPort{},
		relayTemplate, RelayDeps{Log: discard, Clock: clock.New()})

	_, err := spawner.Spawn(context.Background(), domain.RelaySpec{Name: "study", Port: int(busy.LocalAddr().Port())})

	req.ErrorIs(err, errors.ErrBindFailed)
}

func TestBuildRelay_Purges_Previous_Transcript(t *testing.T) {
	req := require.New(t)
	db, err := repositories.OpenJournalDB("")
	req.NoError(err)
	defer func() { _ = db.Close() }()
	journal := repositories.NewJournal(db, discard)

	// Given a transcript left by a deleted group of the same name
	req.NoError(journal.Append(domain.JournalEntry{Group: "study", Author: "bob", Content: "old", At: time.Now()}))

	_, closer, err := BuildRelay(RelayDeps{Log: discard, Clock: clock.New(), Journal: journal}, peer(t),
		workers.RelayConfig{Name: "study", MaxMembers: 1})
	req.NoError(err)
	defer func() { _ = closer.Close() }()

	entries, err := journal.Latest("study", 10)
	req.NoError(err)
	req.Empty(entries)
}

func TestBuildRelay_Purge_Failure(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	journal := mocks.NewMockIJournal(ctrl)
	journal.EXPECT().Purge("study").Return(io.ErrUnexpectedEOF)

	_, _, err := BuildRelay(RelayDeps{Log: discard, Clock: clock.New(), Journal: journal}, peer(t),
		workers.RelayConfig{Name: "study", MaxMembers: 1})

	req.ErrorIs(err, io.ErrUnexpectedEOF)
}

func TestProcessSpawner_Missing_Binary(t *testing.T) {
	spawner := NewProcessSpawner(discard, filepath.Join(t.TempDir(), "relay"), netip.AddrPort{}, "INFO", 50*time.Millisecond)

	_, err := spawner.Spawn(context.Background(), domain.RelaySpec{Name: "study", Port: 8100})

	require.ErrorIs(t, err, errors.ErrRelayMissing)
}

func TestProcessSpawner_Exit_During_Boot(t *testing.T) {
	if goruntime.GOOS == "windows" {
		t.Skip("shell scripts only")
	}
	bin := script(t, "exit 1")
	spawner := NewProcessSpawner(discard, bin, netip.AddrPort{}, "INFO", time.Second)

	_, err := spawner.Spawn(context.Background(), domain.RelaySpec{Name: "study", Port: 8100})

	require.ErrorIs(t, err, errors.ErrSpawnFailed)
}

func TestProcessSpawner_Terminate(t *testing.T) {
	if goruntime.GOOS == "windows" {
		t.Skip("shell scripts only")
	}
	req := require.New(t)
	bin := script(t, "exec sleep 5")
	spawner := NewProcessSpawner(discard, bin, netip.MustParseAddrPort("127.0.0.1:8000"), "INFO", 50*time.Millisecond)

	h, err := spawner.Spawn(context.Background(), domain.RelaySpec{Name: "study", Port: 8100, Moderator: "alice"})
	req.NoError(err)

	h.Terminate()
	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		req.Fail("relay process should stop on interrupt")
	}
}

func script(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "relay.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func TestPrepareCensor(t *testing.T) {
	req := require.New(t)

	censor, err := PrepareCensor(discard, '#')

	req.NoError(err)
	censored, words := censor.Censor("you moron")
	req.Equal("you #####", censored)
	req.Len(words, 1)
}

func TestOrchestrator_Stops_On_Cancel(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	directory := workers.NewDirectory(discard, peer(t), mocks.NewMockSpawner(ctrl), workers.DirectoryConfig{
		Host:           "127.0.0.1",
		GroupBasePort:  8100,
		MaxGroups:      1,
		MaxUsers:       1,
		ReceiveTimeout: 20 * time.Millisecond,
		StopTimeout:    50 * time.Millisecond,
	})
	orchestrator := NewOrchestrator(discard, workers.NewSupervisor(discard, 0), directory, 10*time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		orchestrator.Start(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		req.Fail("orchestrator should stop with its context")
	}
}

// freeRun finds n consecutive bindable ports.
func freeRun(t *testing.T, n int) int {
	t.Helper()
	for attempt := 0; attempt < 20; attempt++ {
		base := freePort(t)
		if base+n > 65535 {
			continue
		}
		var bound []*transport.Endpoint
		for p := base; p < base+n; p++ {
			ep, err := transport.Listen("127.0.0.1", p)
			if err != nil {
				break
			}
			bound = append(bound, ep)
		}
		for _, ep := range bound {
			require.NoError(t, ep.Close())
		}
		if len(bound) == n {
			return base
		}
	}
	require.FailNow(t, "no run of free ports")
	return 0
}

func TestDirectory_Create_After_Delete_With_Goroutine_Relays(t *testing.T) {
	req := require.New(t)
	sup := workers.NewSupervisor(discard, 0)
	endpoint := peer(t)
	spawner := NewGoroutineSpawner(discard, sup, "127.0.0.1", endpoint.LocalAddr(), relayTemplate,
		RelayDeps{Log: discard, Clock: clock.New()})
	base := freeRun(t, 2)
	directory := workers.NewDirectory(discard, endpoint, spawner, workers.DirectoryConfig{
		Host:           "127.0.0.1",
		GroupBasePort:  base,
		MaxGroups:      2,
		MaxUsers:       1,
		ReceiveTimeout: 20 * time.Millisecond,
		StopTimeout:    time.Second,
	})
	defer directory.Shutdown()

	// Given a group whose relay holds the first port
	study, err := directory.Create(context.Background(), "study", "alice")
	req.NoError(err)
	req.Equal(base, study.Port)

	// When it is deleted and another group is created at once
	req.NoError(directory.Delete("study", "alice"))
	games, err := directory.Create(context.Background(), "games", "alice")

	// Then the new relay binds without clashing with the one still draining
	req.NoError(err)
	req.Equal(base+1, games.Port)
	select {
	case <-study.Handle.Done():
	case <-time.After(2 * time.Second):
		req.Fail("deleted relay should stop")
	}

	// And its slot is free again once the relay is gone
	chess, err := directory.Create(context.Background(), "chess", "alice")
	req.NoError(err)
	req.Equal(base, chess.Port)
}

func TestOrchestrator_Stop_Ends_Start(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	directory := workers.NewDirectory(discard, peer(t), mocks.NewMockSpawner(ctrl), workers.DirectoryConfig{
		Host:           "127.0.0.1",
		GroupBasePort:  8100,
		MaxGroups:      1,
		MaxUsers:       1,
		ReceiveTimeout: 20 * time.Millisecond,
		StopTimeout:    50 * time.Millisecond,
	})
	orchestrator := NewOrchestrator(discard, workers.NewSupervisor(discard, 0), directory, 10*time.Millisecond)

	// Given an orchestrator running without deadline
	done := make(chan struct{})
	go func() {
		orchestrator.Start(context.Background())
		close(done)
	}()
	time.Sleep(50 * time.Millisecond)

	// When it is stopped
	orchestrator.Stop()

	// Then Start returns
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		req.Fail("orchestrator should stop on Stop")
	}
}
