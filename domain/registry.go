package domain

import (
	"chat-relay/errors"
	"net/netip"
	"time"

	"github.com/samber/lo"
)

type Set map[string]struct{}

// MemberRegistry is the membership table of one group relay plus its ban table.
// It is owned by the relay's receive loop and never shared, hence no lock.
// Slots are reused once inactive; ban entries are never removed.
type MemberRegistry struct {
	members  []Member
	banned   Set
	capacity int
}

func NewMemberRegistry(capacity int) *MemberRegistry {
	return &MemberRegistry{banned: make(Set), capacity: capacity}
}

func (r *MemberRegistry) IsBanned(name string) bool {
	_, ok := r.banned[Canonical(name)]
	return ok
}

// Register resolves the slot of a sender, creating it if needed.
// A known address keeps its slot. A known (canonical name, kind) pair moves to
// the new address, which covers a client restarting on another ephemeral port.
func (r *MemberRegistry) Register(addr netip.AddrPort, name string, at time.Time) (Member, error) {
	if r.IsBanned(name) {
		return Member{}, errors.ErrBanned
	}
	if i, ok := r.indexByAddr(addr); ok {
		return r.members[i], nil
	}

	canonical := Canonical(name)
	display := IsDisplayName(name)
	_, i, found := lo.FindIndexOf(r.members, func(m Member) bool {
		return m.Canonical() == canonical && m.Display == display
	})
	if found {
		m := &r.members[i]
		if !m.Active {
			*m = NewMember(addr, name, at)
			return *m, nil
		}
		m.Addr = addr
		m.Name = name
		return *m, nil
	}

	member := NewMember(addr, name, at)
	if _, i, free := lo.FindIndexOf(r.members, func(m Member) bool { return !m.Active }); free {
		r.members[i] = member
		return member, nil
	}
	if len(r.members) >= r.capacity {
		return Member{}, errors.ErrGroupFull
	}
	r.members = append(r.members, member)
	return member, nil
}

// Lookup returns the active member bound to an address.
func (r *MemberRegistry) Lookup(addr netip.AddrPort) (Member, bool) {
	i, ok := r.indexByAddr(addr)
	if !ok {
		return Member{}, false
	}
	return r.members[i], true
}

// RecordMessage updates the activity counters of the sender's slot.
func (r *MemberRegistry) RecordMessage(addr netip.AddrPort, at time.Time) (Member, bool) {
	i, ok := r.indexByAddr(addr)
	if !ok {
		return Member{}, false
	}
	r.members[i].RecordMessage(at)
	return r.members[i], true
}

// Recipients lists every active, non-banned address except the sender's.
func (r *MemberRegistry) Recipients(sender netip.AddrPort) []netip.AddrPort {
	return lo.FilterMap(r.members, func(m Member, _ int) (netip.AddrPort, bool) {
		return m.Addr, m.Active && !m.Banned && m.Addr != sender
	})
}

// Active returns a copy of every active slot, display registrations included.
func (r *MemberRegistry) Active() []Member {
	return lo.Filter(r.members, func(m Member, _ int) bool {
		return m.Active && !m.Banned
	})
}

// Participants returns the active chat members, display registrations excluded.
func (r *MemberRegistry) Participants() []Member {
	return lo.Filter(r.Active(), func(m Member, _ int) bool {
		return !m.Display
	})
}

// Ban records the canonical name in the ban table and deactivates every
// matching slot. It returns the slots it deactivated; banning twice is a no-op.
func (r *MemberRegistry) Ban(name string) []Member {
	canonical := Canonical(name)
	r.banned[canonical] = struct{}{}

	var kicked []Member
	for i := range r.members {
		m := &r.members[i]
		if !m.Active || m.Canonical() != canonical {
			continue
		}
		m.Active = false
		m.Banned = true
		kicked = append(kicked, *m)
	}
	return kicked
}

// Deactivate frees the slot bound to an address. The ban table is untouched.
func (r *MemberRegistry) Deactivate(addr netip.AddrPort) (Member, bool) {
	i, ok := r.indexByAddr(addr)
	if !ok {
		return Member{}, false
	}
	r.members[i].Active = false
	return r.members[i], true
}

func (r *MemberRegistry) indexByAddr(addr netip.AddrPort) (int, bool) {
	_, i, ok := lo.FindIndexOf(r.members, func(m Member) bool {
		return m.Active && m.Addr == addr
	})
	return i, ok
}
