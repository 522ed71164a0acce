// Package client speaks the datagram protocol from the user side: directory
// requests first, then chat and commands sent straight to a group port.
package client

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/protocol"
	"chat-relay/transport"
	"fmt"
	"net/netip"
	"strconv"
	"strings"
	"time"
)

// Group is one line of a directory listing.
type Group struct {
	Name string
	Port int
}

type Client struct {
	endpoint  *transport.Endpoint
	directory netip.AddrPort
	name      string
	timeout   time.Duration
	// datagrams that arrived while waiting for an answer from another peer
	pending []domain.Message
}

// Dial binds an ephemeral socket on host. Every request waits at most timeout for its answer.
func Dial(host string, directory netip.AddrPort, name string, timeout time.Duration) (*Client, error) {
	endpoint, err := transport.Listen(host, 0)
	if err != nil {
		return nil, err
	}
	return &Client{endpoint: endpoint, directory: directory, name: name, timeout: timeout}, nil
}

func (c *Client) Name() string {
	return c.name
}

func (c *Client) LocalAddr() netip.AddrPort {
	return c.endpoint.LocalAddr()
}

// Connect books the client name on the directory and returns the REP answer.
func (c *Client) Connect() (string, error) {
	m, err := c.exchange(c.directory, domain.NewMessage(domain.OrderConnect, c.name, c.name))
	if err != nil {
		return "", err
	}
	if m.Order != domain.OrderReply {
		return "", fmt.Errorf("%w: %s %q", errors.ErrUnexpectedReply, m.Order, m.Text)
	}
	return m.Text, nil
}

func (c *Client) Disconnect() error {
	_, err := c.request(domain.OrderDisconnect, c.name)
	return err
}

// Create returns the port of the new group.
func (c *Client) Create(group string) (int, error) {
	text, err := c.request(domain.OrderCreate, group)
	if err != nil {
		return 0, err
	}
	return parsePort(text)
}

func (c *Client) Join(group string) (int, error) {
	text, err := c.request(domain.OrderJoin, group)
	if err != nil {
		return 0, err
	}
	return parsePort(text)
}

func (c *Client) Delete(group string) error {
	_, err := c.request(domain.OrderDelete, group)
	return err
}

// Fuse moves the members of source into dest.
func (c *Client) Fuse(dest, source string) error {
	_, err := c.request(domain.OrderFuse, dest+" "+source)
	return err
}

func (c *Client) List() ([]Group, error) {
	text, err := c.request(domain.OrderList, "")
	if err != nil {
		return nil, err
	}
	var groups []Group
	for _, line := range strings.Split(text, "\n") {
		name, port, ok := strings.Cut(strings.TrimSpace(line), " ")
		if !ok {
			continue
		}
		p, err := strconv.Atoi(port)
		if err != nil {
			continue
		}
		groups = append(groups, Group{Name: name, Port: p})
	}
	return groups, nil
}

// Register makes the client a display of the group at port.
func (c *Client) Register(port int) (domain.Message, error) {
	to, err := c.relay(port)
	if err != nil {
		return domain.Message{}, err
	}
	return c.exchange(to, domain.NewMessage(domain.OrderRegister, domain.DisplayName(c.name), ""))
}

// Say sends a chat line. The relay never acknowledges chat.
func (c *Client) Say(port int, text string) error {
	to, err := c.relay(port)
	if err != nil {
		return err
	}
	return c.endpoint.Send(to, domain.NewMessage(domain.OrderChat, c.name, protocol.Encipher(text)))
}

// Command sends a command line and collects the answers until the group stays quiet for the timeout.
func (c *Client) Command(port int, line string) ([]domain.Message, error) {
	to, err := c.relay(port)
	if err != nil {
		return nil, err
	}
	if err = c.endpoint.Send(to, domain.NewMessage(domain.OrderCommand, c.name, line)); err != nil {
		return nil, err
	}
	var answers []domain.Message
	for {
		m, err := c.Receive(c.timeout)
		if transport.IsTimeout(err) {
			return answers, nil
		}
		if err != nil {
			return answers, err
		}
		answers = append(answers, m)
	}
}

// Receive waits for the next datagram. Chat text is returned deciphered.
func (c *Client) Receive(timeout time.Duration) (domain.Message, error) {
	if len(c.pending) > 0 {
		m := c.pending[0]
		c.pending = c.pending[1:]
		return m, nil
	}
	m, _, err := c.receive(timeout)
	return m, err
}

func (c *Client) receive(timeout time.Duration) (domain.Message, netip.AddrPort, error) {
	b, from, err := c.endpoint.Receive(timeout)
	if err != nil {
		return domain.Message{}, from, err
	}
	m, err := protocol.Decode(b)
	if err != nil {
		return domain.Message{}, from, err
	}
	if m.Order == domain.OrderChat {
		m.Text = protocol.Decipher(m.Text)
	}
	return m, from, nil
}

// exchange sends a request and waits for the answer of that peer. Anything
// else received meanwhile is kept for Receive.
func (c *Client) exchange(to netip.AddrPort, m domain.Message) (domain.Message, error) {
	if err := c.endpoint.Send(to, m); err != nil {
		return domain.Message{}, err
	}
	deadline := time.Now().Add(c.timeout)
	for {
		answer, from, err := c.receive(time.Until(deadline))
		if err != nil {
			return domain.Message{}, err
		}
		if from == to {
			return answer, nil
		}
		c.pending = append(c.pending, answer)
	}
}

func (c *Client) Close() error {
	return c.endpoint.Close()
}

// request sends a directory order and turns an ERR answer into an error.
func (c *Client) request(order domain.Order, text string) (string, error) {
	m, err := c.exchange(c.directory, domain.NewMessage(order, c.name, text))
	if err != nil {
		return "", err
	}
	switch m.Order {
	case domain.OrderAck:
		return m.Text, nil
	case domain.OrderError:
		return "", fmt.Errorf("%w: %s", errors.ErrRejected, m.Text)
	}
	return "", fmt.Errorf("%w: %s %q", errors.ErrUnexpectedReply, m.Order, m.Text)
}

// relay is a group port on the directory host.
func (c *Client) relay(port int) (netip.AddrPort, error) {
	if port <= 0 || port > 65535 {
		return netip.AddrPort{}, fmt.Errorf("invalid group port %d", port)
	}
	return netip.AddrPortFrom(c.directory.Addr(), uint16(port)), nil
}

// parsePort reads "OK <port>".
func parsePort(text string) (int, error) {
	_, port, ok := strings.Cut(text, " ")
	if !ok {
		return 0, fmt.Errorf("%w: %q", errors.ErrUnexpectedReply, text)
	}
	return strconv.Atoi(strings.TrimSpace(port))
}
