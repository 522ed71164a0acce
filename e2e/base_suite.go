package e2e

import (
	"chat-relay/client"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/transport"
	"context"
	"fmt"
	"net/netip"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/suite"
	"go.uber.org/multierr"
)

const (
	maxGroups   = 8
	fusionGrace = 100 * time.Millisecond
)

type BaseSuite struct {
	suite.Suite
	Config    Config
	Directory netip.AddrPort
	stop      func() error
}

// SetupSuite loads the environment configuration and, without DIRECTORY_ADDR,
// starts a directory with in-process relays on loopback.
func (s *BaseSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)

	if s.Config.DirectoryAddr != "" {
		s.Directory, err = netip.ParseAddrPort(s.Config.DirectoryAddr)
		s.Require().NoError(err)
		return
	}
	s.startDirectory()
}

func (s *BaseSuite) TearDownSuite() {
	if s.stop != nil {
		s.Require().NoError(s.stop())
	}
}

func (s *BaseSuite) startDirectory() {
	logger := logs.GetLoggerFromString(s.Config.LogLevel)
	endpoint, err := transport.Listen("127.0.0.1", 0)
	s.Require().NoError(err)
	s.Directory = endpoint.LocalAddr()

	db, err := repositories.OpenJournalDB("")
	s.Require().NoError(err)
	censor, err := runtime.PrepareCensor(logger, '*')
	s.Require().NoError(err)

	s.Require().Truef(s.portsFree(s.Config.BasePort, maxGroups),
		"relay ports %d-%d are busy, set E2E_BASE_PORT", s.Config.BasePort, s.Config.BasePort+maxGroups-1)

	sup := workers.NewSupervisor(logger, 50*time.Millisecond)
	deps := runtime.RelayDeps{Log: logger, Clock: clock.New(), Censor: censor, Journal: repositories.NewJournal(db, logger)}
	template := workers.RelayConfig{
		MaxMembers:     10,
		ReceiveTimeout: 20 * time.Millisecond,
		ShutdownGrace:  20 * time.Millisecond,
		HistoryLimit:   5,
	}
	spawner := runtime.NewGoroutineSpawner(logger, sup, "127.0.0.1", s.Directory, template, deps)
	directory := workers.NewDirectory(logger, endpoint, spawner, workers.DirectoryConfig{
		Host:           "127.0.0.1",
		GroupBasePort:  s.Config.BasePort,
		MaxGroups:      maxGroups,
		MaxUsers:       10,
		ReceiveTimeout: 20 * time.Millisecond,
		FusionGrace:    fusionGrace,
		StopTimeout:    time.Second,
	})
	orchestrator := runtime.NewOrchestrator(logger, sup, directory, 0)

	done := make(chan struct{})
	go func() {
		defer close(done)
		orchestrator.Start(context.Background())
	}()
	s.stop = func() error {
		orchestrator.Stop()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			return fmt.Errorf("directory did not stop")
		}
		return multierr.Combine(endpoint.Close(), db.Close())
	}
}

// portsFree reports whether n consecutive ports from base can be bound.
func (s *BaseSuite) portsFree(base, n int) bool {
	var bound []*transport.Endpoint
	defer func() {
		for _, e := range bound {
			_ = e.Close()
		}
	}()
	for p := base; p < base+n; p++ {
		e, err := transport.Listen("127.0.0.1", p)
		if err != nil {
			return false
		}
		bound = append(bound, e)
	}
	return true
}

// Client opens a user socket and prints a colorized header for the step.
func (s *BaseSuite) Client(name string) *client.Client {
	c, err := client.Dial("127.0.0.1", s.Directory, name, s.Config.Timeout)
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = c.Close() })
	return c
}

func (s *BaseSuite) Step(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

// Silent asserts that nothing reaches the client for a short while.
func (s *BaseSuite) Silent(c *client.Client) {
	m, err := c.Receive(150 * time.Millisecond)
	s.Require().Truef(transport.IsTimeout(err), "unexpected datagram %+v (err %v)", m, err)
}
