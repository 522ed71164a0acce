package domain

import (
	"chat-relay/errors"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var (
	addrAlice     = netip.MustParseAddrPort("127.0.0.1:5001")
	addrAliceView = netip.MustParseAddrPort("127.0.0.1:5002")
	addrBob       = netip.MustParseAddrPort("127.0.0.1:5003")
	addrBobNew    = netip.MustParseAddrPort("127.0.0.1:5004")
	addrCarol     = netip.MustParseAddrPort("127.0.0.1:5005")
)

func TestRegistry_Register_Creates_One_Slot_Per_Address(t *testing.T) {
	req := require.New(t)
	registry := NewMemberRegistry(10)
	now := time.Now()

	// When the same address registers twice
	_, err := registry.Register(addrAlice, "alice", now)
	req.NoError(err)
	_, err = registry.Register(addrAlice, "alice", now)
	req.NoError(err)

	// Then only one slot exists
	req.Len(registry.Active(), 1)
}

func TestRegistry_Chat_And_Display_Are_Two_Slots(t *testing.T) {
	req := require.New(t)
	registry := NewMemberRegistry(10)
	now := time.Now()

	_, err := registry.Register(addrAlice, "alice", now)
	req.NoError(err)
	_, err = registry.Register(addrAliceView, "alice_view", now)
	req.NoError(err)

	req.Len(registry.Active(), 2)
	req.Len(registry.Participants(), 1)
	req.Equal("alice", registry.Participants()[0].Name)
}

func TestRegistry_Register_Same_Name_New_Address_Updates_Slot(t *testing.T) {
	req := require.New(t)
	registry := NewMemberRegistry(10)
	now := time.Now()

	// Given bob registered and sent one message
	_, err := registry.Register(addrBob, "bob", now)
	req.NoError(err)
	registry.RecordMessage(addrBob, now)

	// When bob restarts on another port
	m, err := registry.Register(addrBobNew, "Bob", now.Add(time.Second))
	req.NoError(err)

	// Then the slot moved, keeping its counters
	req.Equal(addrBobNew, m.Addr)
	req.Equal(1, m.MessageCount)
	req.Len(registry.Active(), 1)
	_, ok := registry.Lookup(addrBob)
	req.False(ok)
}

func TestRegistry_Ban_Survives_Address_Change(t *testing.T) {
	req := require.New(t)
	registry := NewMemberRegistry(10)
	now := time.Now()
	_, err := registry.Register(addrBob, "bob", now)
	req.NoError(err)
	_, err = registry.Register(addrAliceView, "bob_view", now)
	req.NoError(err)

	// When bob is banned
	kicked := registry.Ban("BOB")

	// Then both of his connections are closed
	req.Len(kicked, 2)
	req.Empty(registry.Active())

	// And no address can register under that canonical name
	_, err = registry.Register(addrCarol, "bob", now)
	req.ErrorIs(err, errors.ErrBanned)
	_, err = registry.Register(addrBob, "Bob_view", now)
	req.ErrorIs(err, errors.ErrBanned)
	req.Empty(registry.Active())

	// And banning again is a no-op
	req.Empty(registry.Ban("bob"))
}

func TestRegistry_Ban_Unknown_Name_Is_Preemptive(t *testing.T) {
	req := require.New(t)
	registry := NewMemberRegistry(10)

	req.Empty(registry.Ban("mallory"))

	_, err := registry.Register(addrCarol, "mallory", time.Now())
	req.ErrorIs(err, errors.ErrBanned)
}

func TestRegistry_Recipients_Excludes_Sender(t *testing.T) {
	req := require.New(t)
	registry := NewMemberRegistry(10)
	now := time.Now()
	for addr, name := range map[netip.AddrPort]string{addrAlice: "alice", addrBob: "bob", addrCarol: "carol"} {
		_, err := registry.Register(addr, name, now)
		req.NoError(err)
	}

	recipients := registry.Recipients(addrAlice)

	req.Len(recipients, 2)
	req.NotContains(recipients, addrAlice)
	req.ElementsMatch([]netip.AddrPort{addrBob, addrCarol}, recipients)
}

func TestRegistry_Capacity_And_Slot_Reuse(t *testing.T) {
	req := require.New(t)
	registry := NewMemberRegistry(2)
	now := time.Now()
	_, err := registry.Register(addrAlice, "alice", now)
	req.NoError(err)
	_, err = registry.Register(addrBob, "bob", now)
	req.NoError(err)

	// Given a full group
	_, err = registry.Register(addrCarol, "carol", now)
	req.ErrorIs(err, errors.ErrGroupFull)

	// When alice quits
	_, ok := registry.Deactivate(addrAlice)
	req.True(ok)

	// Then carol takes the freed slot
	m, err := registry.Register(addrCarol, "carol", now)
	req.NoError(err)
	req.Equal("carol", m.Name)
	req.Len(registry.Active(), 2)
}

func TestRegistry_Deactivate_Twice(t *testing.T) {
	req := require.New(t)
	registry := NewMemberRegistry(2)
	_, err := registry.Register(addrAlice, "alice", time.Now())
	req.NoError(err)

	_, ok := registry.Deactivate(addrAlice)
	req.True(ok)
	_, ok = registry.Deactivate(addrAlice)
	req.False(ok)
	req.False(registry.IsBanned("alice"))
}

func TestRegistry_Reactivated_Slot_Starts_Fresh(t *testing.T) {
	req := require.New(t)
	registry := NewMemberRegistry(2)
	start := time.Now()
	_, err := registry.Register(addrAlice, "alice", start)
	req.NoError(err)
	registry.RecordMessage(addrAlice, start)
	registry.Deactivate(addrAlice)

	m, err := registry.Register(addrAliceView, "alice", start.Add(time.Minute))

	req.NoError(err)
	req.Zero(m.MessageCount)
	req.Equal(start.Add(time.Minute), m.ConnectedAt)
	req.Equal(Canonical("alice"), m.Canonical())
}
