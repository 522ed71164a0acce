// Package transport owns the connectionless datagram sockets. It frames
// datagrams but never interprets the orders they carry.
package transport

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/protocol"
	stderrors "errors"
	"fmt"
	"net"
	"net/netip"
	"os"
	"time"
)

var _ contract.Endpoint = (*Endpoint)(nil)

type Endpoint struct {
	conn *net.UDPConn
}

// Listen binds a UDP socket. Port 0 picks an ephemeral port.
func Listen(host string, port int) (*Endpoint, error) {
	addr, err := ResolveAddrPort(host, port)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrBindFailed, err)
	}
	conn, err := net.ListenUDP("udp4", net.UDPAddrFromAddrPort(addr))
	if err != nil {
		return nil, fmt.Errorf("%w on %s: %v", errors.ErrBindFailed, addr, err)
	}
	return &Endpoint{conn: conn}, nil
}

// ResolveAddrPort accepts a literal IPv4 address or a host name.
func ResolveAddrPort(host string, port int) (netip.AddrPort, error) {
	if host == "" {
		host = "127.0.0.1"
	}
	if ip, err := netip.ParseAddr(host); err == nil {
		return netip.AddrPortFrom(ip.Unmap(), uint16(port)), nil
	}
	udpAddr, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(host, fmt.Sprint(port)))
	if err != nil {
		return netip.AddrPort{}, err
	}
	ap := udpAddr.AddrPort()
	return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port()), nil
}

// Reachable maps a wildcard bind address to loopback, the source address
// peers on the same host actually observe.
func Reachable(addr netip.AddrPort) netip.AddrPort {
	if addr.Addr().IsUnspecified() {
		return netip.AddrPortFrom(netip.AddrFrom4([4]byte{127, 0, 0, 1}), addr.Port())
	}
	return addr
}

func (e *Endpoint) Send(to netip.AddrPort, m domain.Message) error {
	if _, err := e.conn.WriteToUDPAddrPort(protocol.Encode(m), to); err != nil {
		return fmt.Errorf("send %s to %s: %w", m.Order, to, err)
	}
	return nil
}

// Receive blocks at most timeout. The buffer is one byte larger than a
// datagram so that oversized datagrams fail the length check.
func (e *Endpoint) Receive(timeout time.Duration) ([]byte, netip.AddrPort, error) {
	if err := e.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, netip.AddrPort{}, err
	}
	buf := make([]byte, protocol.DatagramSize+1)
	n, from, err := e.conn.ReadFromUDPAddrPort(buf)
	if err != nil {
		return nil, netip.AddrPort{}, err
	}
	return buf[:n], netip.AddrPortFrom(from.Addr().Unmap(), from.Port()), nil
}

// Exchange sends a request and waits for the first well-formed answer.
func (e *Endpoint) Exchange(to netip.AddrPort, m domain.Message, timeout time.Duration) (domain.Message, error) {
	if err := e.Send(to, m); err != nil {
		return domain.Message{}, err
	}
	b, _, err := e.Receive(timeout)
	if err != nil {
		return domain.Message{}, err
	}
	return protocol.Decode(b)
}

func (e *Endpoint) LocalAddr() netip.AddrPort {
	ap := e.conn.LocalAddr().(*net.UDPAddr).AddrPort()
	return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
}

func (e *Endpoint) Close() error {
	return e.conn.Close()
}

// IsTimeout reports the deliberate receive timeout.
func IsTimeout(err error) bool {
	return stderrors.Is(err, os.ErrDeadlineExceeded)
}

// IsClosed reports a receive on a closed socket.
func IsClosed(err error) bool {
	return stderrors.Is(err, net.ErrClosed)
}
