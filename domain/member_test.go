package domain

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMember_MeanInterval(t *testing.T) {
	req := require.New(t)
	start := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	m := NewMember(netip.MustParseAddrPort("127.0.0.1:4000"), "alice", start)

	// Given no message, then one message
	req.Zero(m.MeanInterval())
	m.RecordMessage(start.Add(2 * time.Second))
	req.Zero(m.MeanInterval())

	// When two more messages arrive 4s and 8s later
	m.RecordMessage(start.Add(6 * time.Second))
	m.RecordMessage(start.Add(14 * time.Second))

	// Then the mean interval is (4+8)/2
	req.Equal(3, m.MessageCount)
	req.Equal(6*time.Second, m.MeanInterval())
	req.Equal(20*time.Second, m.Uptime(start.Add(20*time.Second)))
}

func TestNewMember_Detects_Display_Registration(t *testing.T) {
	req := require.New(t)
	addr := netip.MustParseAddrPort("127.0.0.1:4001")

	req.True(NewMember(addr, "alice_view", time.Now()).Display)
	req.False(NewMember(addr, "alice", time.Now()).Display)
}

func TestParseCommand(t *testing.T) {
	req := require.New(t)

	req.Equal(Command{Verb: VerbBan, Arg: "Bob"}, ParseCommand("  BAN   Bob "))
	req.Equal(Command{Verb: VerbList}, ParseCommand("list"))
	req.Equal(Command{Verb: VerbHelpShort}, ParseCommand("?"))
	req.Equal(Command{Verb: VerbSearch, Arg: "hello world"}, ParseCommand("Search hello world"))
}
