package workers

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/protocol"
	"chat-relay/transport"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/netip"
	"strings"
	"sync/atomic"
	"time"

	"github.com/samber/lo"
)

// Connect answers carried by REP datagrams.
const (
	ConnectOK      = "OK"
	ConnectTaken   = "KO"
	ConnectFull    = "FULL"
	ConnectInvalid = "INVALID"
)

type DirectoryConfig struct {
	Host           string
	GroupBasePort  int
	MaxGroups      int
	MaxUsers       int
	ReceiveTimeout time.Duration
	FusionGrace    time.Duration
	StopTimeout    time.Duration
}

// Directory owns the group table and the lifecycle of every relay.
// Only its receive loop mutates the table.
type Directory struct {
	cfg      DirectoryConfig
	log      *slog.Logger
	endpoint contract.Endpoint
	spawner  contract.Spawner
	groups   []domain.GroupDescriptor
	users    []string
	active   atomic.Int32
}

func NewDirectory(log *slog.Logger, endpoint contract.Endpoint, spawner contract.Spawner, cfg DirectoryConfig) *Directory {
	return &Directory{
		cfg:      cfg,
		log:      log,
		endpoint: endpoint,
		spawner:  spawner,
		groups:   make([]domain.GroupDescriptor, cfg.MaxGroups),
		users:    make([]string, cfg.MaxUsers),
	}
}

// ActiveGroups is safe to read from another goroutine.
func (d *Directory) ActiveGroups() int {
	return int(d.active.Load())
}

func (d *Directory) Run(ctx context.Context) error {
	d.log.Info("Directory listening", "addr", d.endpoint.LocalAddr(), "groups", d.cfg.MaxGroups)
	for {
		if ctx.Err() != nil {
			d.Shutdown()
			return nil
		}

		b, from, err := d.endpoint.Receive(d.cfg.ReceiveTimeout)
		if err != nil {
			if transport.IsTimeout(err) {
				continue
			}
			if transport.IsClosed(err) {
				d.log.Warn("Socket closed, directory stops")
				d.Shutdown()
				return nil
			}
			d.log.Warn("Receive failed", "error", err)
			continue
		}

		m, err := protocol.Parse(protocol.RoleDirectory, b)
		if err != nil {
			d.log.Debug("Datagram dropped", "from", from, "error", err)
			continue
		}
		d.reply(from, d.dispatch(ctx, m))
	}
}

func (d *Directory) dispatch(ctx context.Context, m domain.Message) domain.Message {
	requester := m.Sender
	name := strings.TrimSpace(m.Text)
	switch m.Order {
	case domain.OrderConnect:
		return domain.NewMessage(domain.OrderReply, domain.DirectorySender, d.connectAnswer(d.Connect(name)))
	case domain.OrderDisconnect:
		d.Disconnect(name)
		return ack("OK")
	case domain.OrderCreate:
		g, err := d.Create(ctx, name, requester)
		if err != nil {
			return failure(err)
		}
		return ack(fmt.Sprintf("OK %d", g.Port))
	case domain.OrderList:
		return ack(d.listing())
	case domain.OrderJoin:
		port, err := d.Join(name)
		if err != nil {
			return failure(err)
		}
		return ack(fmt.Sprintf("OK %d", port))
	case domain.OrderDelete:
		if err := d.Delete(name, requester); err != nil {
			return failure(err)
		}
		return ack("OK")
	case domain.OrderFuse:
		dest, source, _ := strings.Cut(name, " ")
		if err := d.Fuse(strings.TrimSpace(dest), strings.TrimSpace(source), requester); err != nil {
			return failure(err)
		}
		return ack("OK")
	}
	return failure(errors.ErrUnknownOrder)
}

func (d *Directory) connectAnswer(err error) string {
	switch {
	case err == nil:
		return ConnectOK
	case stderrors.Is(err, errors.ErrInvalidName):
		return ConnectInvalid
	case stderrors.Is(err, errors.ErrServerFull):
		return ConnectFull
	default:
		return ConnectTaken
	}
}

// Connect books a user slot for the name.
func (d *Directory) Connect(name string) error {
	if err := domain.ValidateName(name); err != nil {
		return err
	}
	if lo.ContainsBy(d.users, func(u string) bool { return u != "" && domain.SameIdentity(u, name) }) {
		return fmt.Errorf("%w: %s", errors.ErrDuplicateName, name)
	}
	_, i, ok := lo.FindIndexOf(d.users, func(u string) bool { return u == "" })
	if !ok {
		return errors.ErrServerFull
	}
	d.users[i] = name
	d.log.Info("User connected", "name", name)
	return nil
}

// Disconnect frees the user slot, if any.
func (d *Directory) Disconnect(name string) {
	for i, u := range d.users {
		if u != "" && domain.SameIdentity(u, name) {
			d.users[i] = ""
			d.log.Info("User disconnected", "name", name)
		}
	}
}

// Create allocates a slot, derives the port from it and spawns the relay.
// The slot stays free when the spawn fails. A slot whose previous relay has
// not exited yet still holds its port and is skipped.
func (d *Directory) Create(ctx context.Context, name, requester string) (domain.GroupDescriptor, error) {
	if err := domain.ValidateName(name); err != nil {
		return domain.GroupDescriptor{}, err
	}
	if err := domain.ValidateName(requester); err != nil {
		return domain.GroupDescriptor{}, err
	}
	if _, ok := d.find(name); ok {
		return domain.GroupDescriptor{}, fmt.Errorf("%w: %s", errors.ErrDuplicateName, name)
	}
	_, slot, ok := lo.FindIndexOf(d.groups, free)
	if !ok {
		return domain.GroupDescriptor{}, errors.ErrNoCapacity
	}

	g := domain.GroupDescriptor{
		Slot:      slot,
		Name:      name,
		Port:      d.cfg.GroupBasePort + slot,
		Moderator: requester,
	}
	h, err := d.spawner.Spawn(ctx, domain.RelaySpec{Name: g.Name, Port: g.Port, Moderator: g.Moderator})
	if err != nil {
		d.log.Error("Relay spawn failed", "group", name, "port", g.Port, "error", err)
		return domain.GroupDescriptor{}, fmt.Errorf("%w: %v", errors.ErrSpawnFailed, err)
	}
	g.Handle = h
	g.Active = true
	d.groups[slot] = g
	d.active.Add(1)
	d.log.Info("Group created", "group", name, "port", g.Port, "moderator", requester)
	return g, nil
}

// List returns the active groups in slot order.
func (d *Directory) List() []domain.GroupDescriptor {
	return lo.Filter(d.groups, func(g domain.GroupDescriptor, _ int) bool { return g.Active })
}

func (d *Directory) listing() string {
	groups := d.List()
	if len(groups) == 0 {
		return "no group"
	}
	var b strings.Builder
	for _, g := range groups {
		line := fmt.Sprintf("%s %d\n", g.Name, g.Port)
		if b.Len()+len(line) > protocol.TextSize-1 {
			break
		}
		b.WriteString(line)
	}
	return b.String()
}

func (d *Directory) Join(name string) (int, error) {
	g, ok := d.find(name)
	if !ok {
		return 0, fmt.Errorf("%w: %s", errors.ErrNotFound, name)
	}
	return g.Port, nil
}

// Delete tells the relay to quit and requests its termination without
// waiting for the relay to be gone. The slot is reused once it is.
func (d *Directory) Delete(name, requester string) error {
	if err := domain.ValidateName(requester); err != nil {
		return err
	}
	g, ok := d.find(name)
	if !ok {
		return fmt.Errorf("%w: %s", errors.ErrNotFound, name)
	}
	if !g.IsModerator(requester) {
		return fmt.Errorf("%w of %s", errors.ErrNotModerator, name)
	}
	d.send(g, domain.NewMessage(domain.OrderQuit, domain.DirectorySender, ""))
	d.release(g)
	d.log.Info("Group deleted", "group", name, "by", requester)
	return nil
}

// Fuse redirects the members of source to dest, then dissolves source.
// The grace period only gives the redirect notice a chance to leave the host.
func (d *Directory) Fuse(dest, source, requester string) error {
	if dest == "" || source == "" || strings.EqualFold(dest, source) {
		return errors.ErrBadFusion
	}
	if err := domain.ValidateName(requester); err != nil {
		return err
	}
	into, ok := d.find(dest)
	if !ok {
		return fmt.Errorf("%w: %s", errors.ErrNotFound, dest)
	}
	from, ok := d.find(source)
	if !ok {
		return fmt.Errorf("%w: %s", errors.ErrNotFound, source)
	}
	if !into.IsModerator(requester) || !from.IsModerator(requester) {
		return fmt.Errorf("%w of both %s and %s", errors.ErrNotModerator, dest, source)
	}

	d.send(from, domain.NewMessage(domain.OrderRedirect, domain.DirectorySender, fmt.Sprintf("%s %d", into.Name, into.Port)))
	time.Sleep(d.cfg.FusionGrace)
	d.release(from)

	notice := fmt.Sprintf("groups %s and %s have been merged", into.Name, from.Name)
	d.send(into, domain.NewMessage(domain.OrderChat, domain.SystemSender, protocol.Encipher(notice)))
	d.log.Info("Groups fused", "into", into.Name, "from", from.Name, "by", requester)
	return nil
}

// Shutdown terminates every relay and waits for them, bounded by StopTimeout.
// Relays of deleted groups that are still draining are waited for as well.
func (d *Directory) Shutdown() {
	for _, g := range d.List() {
		d.release(g)
	}
	stopped := 0
	deadline := time.After(d.cfg.StopTimeout)
	for _, g := range d.groups {
		if g.Handle == nil {
			continue
		}
		select {
		case <-g.Handle.Done():
			stopped++
		case <-deadline:
			d.log.Warn("Relays still running at shutdown", "port", g.Port)
			return
		}
	}
	d.log.Info("Directory stopped", "relays", stopped)
}

// release takes the group out of the table but keeps its handle and port on
// the slot until the relay is done.
func (d *Directory) release(g domain.GroupDescriptor) {
	if g.Handle != nil {
		g.Handle.Terminate()
	}
	d.groups[g.Slot] = domain.GroupDescriptor{Slot: g.Slot, Port: g.Port, Handle: g.Handle}
	d.active.Add(-1)
}

// free reports whether a slot can host a new relay.
func free(g domain.GroupDescriptor) bool {
	if g.Active {
		return false
	}
	if g.Handle == nil {
		return true
	}
	select {
	case <-g.Handle.Done():
		return true
	default:
		return false
	}
}

func (d *Directory) find(name string) (domain.GroupDescriptor, bool) {
	return lo.Find(d.groups, func(g domain.GroupDescriptor) bool {
		return g.Active && strings.EqualFold(g.Name, name)
	})
}

// relayAddr is the address of a relay bound on the directory host.
func (d *Directory) relayAddr(g domain.GroupDescriptor) (netip.AddrPort, error) {
	addr, err := transport.ResolveAddrPort(d.cfg.Host, g.Port)
	if err != nil {
		return netip.AddrPort{}, err
	}
	return transport.Reachable(addr), nil
}

func (d *Directory) send(g domain.GroupDescriptor, m domain.Message) {
	to, err := d.relayAddr(g)
	if err != nil {
		d.log.Warn("Relay address unresolved", "group", g.Name, "error", err)
		return
	}
	if err = d.endpoint.Send(to, m); err != nil {
		d.log.Warn("Send to relay failed", "group", g.Name, "order", m.Order, "error", err)
	}
}

func (d *Directory) reply(to netip.AddrPort, m domain.Message) {
	if err := d.endpoint.Send(to, m); err != nil {
		d.log.Warn("Reply failed", "to", to, "order", m.Order, "error", err)
	}
}

func ack(text string) domain.Message {
	return domain.NewMessage(domain.OrderAck, domain.DirectorySender, text)
}

func failure(err error) domain.Message {
	return domain.NewMessage(domain.OrderError, domain.DirectorySender, err.Error())
}
