// Package protocol encodes and validates the fixed-size datagram shared by the
// directory, the relays and their clients.
package protocol

import (
	"bytes"
	"chat-relay/domain"
	"chat-relay/errors"
	"fmt"
	"unicode/utf8"
)

const (
	OrderSize    = 4
	SenderSize   = 20
	TextSize     = 100
	DatagramSize = OrderSize + SenderSize + TextSize
)

// Role selects the closed set of orders a receiver accepts.
type Role int

const (
	RoleDirectory Role = iota
	RoleRelay
)

func (r Role) String() string {
	switch r {
	case RoleDirectory:
		return "directory"
	case RoleRelay:
		return "relay"
	default:
		return "unknown"
	}
}

var accepted = map[Role]map[domain.Order]struct{}{
	RoleDirectory: {
		domain.OrderConnect:    {},
		domain.OrderDisconnect: {},
		domain.OrderCreate:     {},
		domain.OrderDelete:     {},
		domain.OrderList:       {},
		domain.OrderJoin:       {},
		domain.OrderFuse:       {},
	},
	RoleRelay: {
		domain.OrderRegister: {},
		domain.OrderChat:     {},
		domain.OrderCommand:  {},
		domain.OrderQuit:     {},
		domain.OrderRedirect: {},
	},
}

// Encode writes the message into a zero-padded datagram. Each field is
// truncated so that its last byte is always a terminator.
func Encode(m domain.Message) []byte {
	buf := make([]byte, DatagramSize)
	putField(buf[:OrderSize], string(m.Order))
	putField(buf[OrderSize:OrderSize+SenderSize], m.Sender)
	putField(buf[OrderSize+SenderSize:], m.Text)
	return buf
}

// Decode checks the exact datagram length and terminates every field before
// reading it.
func Decode(b []byte) (domain.Message, error) {
	if len(b) != DatagramSize {
		return domain.Message{}, fmt.Errorf("%w: %d bytes, want %d", errors.ErrMalformed, len(b), DatagramSize)
	}
	return domain.Message{
		Order:  domain.Order(field(b[:OrderSize])),
		Sender: field(b[OrderSize : OrderSize+SenderSize]),
		Text:   field(b[OrderSize+SenderSize:]),
	}, nil
}

// Accept rejects orders outside the closed set of the receiving role.
func Accept(role Role, m domain.Message) error {
	if _, ok := accepted[role][m.Order]; !ok {
		return fmt.Errorf("%w: %q for %s", errors.ErrUnknownOrder, m.Order, role)
	}
	return nil
}

// Parse is Decode followed by Accept.
func Parse(role Role, b []byte) (domain.Message, error) {
	m, err := Decode(b)
	if err != nil {
		return domain.Message{}, err
	}
	if err = Accept(role, m); err != nil {
		return domain.Message{}, err
	}
	return m, nil
}

// IsInternal reports orders that only the directory may send to a relay.
func IsInternal(o domain.Order) bool {
	return o == domain.OrderQuit || o == domain.OrderRedirect
}

// Fit truncates s on a rune boundary so it fits a field of the given size.
func Fit(s string, size int) string {
	limit := size - 1
	if len(s) <= limit {
		return s
	}
	s = s[:limit]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}

func putField(dst []byte, s string) {
	copy(dst, Fit(s, len(dst)))
}

func field(b []byte) string {
	terminated := b[:len(b)-1]
	if i := bytes.IndexByte(terminated, 0); i >= 0 {
		terminated = terminated[:i]
	}
	return string(terminated)
}
