// Package domain contains core concepts of the group chat relay.
// This file defines Member entities and their activity statistics.
package domain

import (
	"net/netip"
	"time"
)

// Member is one physical connection registered on a group relay.
// A chat client and its display renderer are two Members sharing a canonical name.
type Member struct {
	Addr          netip.AddrPort
	Name          string
	Display       bool
	Active        bool
	Banned        bool
	ConnectedAt   time.Time
	LastMessageAt time.Time
	MessageCount  int
	IntervalSum   time.Duration
}

func NewMember(addr netip.AddrPort, name string, at time.Time) Member {
	return Member{
		Addr:        addr,
		Name:        name,
		Display:     IsDisplayName(name),
		Active:      true,
		ConnectedAt: at,
	}
}

func (m Member) Canonical() string {
	return Canonical(m.Name)
}

// RecordMessage updates the counters on a new chat message sent at the given time.
func (m *Member) RecordMessage(at time.Time) {
	if m.MessageCount > 0 {
		m.IntervalSum += at.Sub(m.LastMessageAt)
	}
	m.LastMessageAt = at
	m.MessageCount++
}

// MeanInterval is the average gap between two messages, 0 below two messages.
func (m Member) MeanInterval() time.Duration {
	if m.MessageCount <= 1 {
		return 0
	}
	return m.IntervalSum / time.Duration(m.MessageCount-1)
}

// Uptime is the time elapsed since the member registered.
func (m Member) Uptime(now time.Time) time.Duration {
	return now.Sub(m.ConnectedAt)
}
