package workers

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/moderation"
	"chat-relay/protocol"
	"chat-relay/transport"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/netip"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

const helpText = "commands: list, stats, ban <name>, delete <name>, quit, history, search <term>, help"

type RelayConfig struct {
	Name           string
	Moderator      string
	Directory      netip.AddrPort
	MaxMembers     int
	ReceiveTimeout time.Duration
	ShutdownGrace  time.Duration
	HistoryLimit   int
}

// GroupRelay serves one discussion group on its own datagram port.
// The receive loop is the only writer of the member registry.
type GroupRelay struct {
	cfg      RelayConfig
	log      *slog.Logger
	endpoint contract.Endpoint
	clock    clock.Clock
	registry *domain.MemberRegistry
	censor   *moderation.Moderator
	history  contract.IHistory
	searcher contract.ISearcher
	sinks    []contract.EventSink
}

func NewGroupRelay(log *slog.Logger, endpoint contract.Endpoint, clk clock.Clock, cfg RelayConfig) *GroupRelay {
	return &GroupRelay{
		cfg:      cfg,
		log:      log.With("group", cfg.Name),
		endpoint: endpoint,
		clock:    clk,
		registry: domain.NewMemberRegistry(cfg.MaxMembers),
	}
}

// WithCensor enables the word filter on chat text.
func (r *GroupRelay) WithCensor(censor *moderation.Moderator) *GroupRelay {
	r.censor = censor
	return r
}

func (r *GroupRelay) WithHistory(history contract.IHistory) *GroupRelay {
	r.history = history
	return r
}

func (r *GroupRelay) WithSearch(searcher contract.ISearcher) *GroupRelay {
	r.searcher = searcher
	return r
}

func (r *GroupRelay) Add(sinks ...contract.EventSink) *GroupRelay {
	r.sinks = append(r.sinks, sinks...)
	return r
}

// Run is the receive-dispatch-reply loop. It returns nil once the end-notices
// are sent, either on cancellation or on a quit-notice from the directory.
func (r *GroupRelay) Run(ctx context.Context) error {
	r.log.Info("Group relay listening", "addr", r.endpoint.LocalAddr(), "moderator", r.cfg.Moderator)
	for {
		if ctx.Err() != nil {
			r.shutdown()
			return nil
		}

		b, from, err := r.endpoint.Receive(r.cfg.ReceiveTimeout)
		if err != nil {
			if transport.IsTimeout(err) {
				continue
			}
			if transport.IsClosed(err) {
				r.log.Warn("Socket closed, relay stops")
				return nil
			}
			r.log.Warn("Receive failed", "error", err)
			continue
		}

		m, err := protocol.Parse(protocol.RoleRelay, b)
		if err != nil {
			r.log.Debug("Datagram dropped", "from", from, "error", err)
			continue
		}
		if protocol.IsInternal(m.Order) && from != r.cfg.Directory {
			r.log.Debug("Datagram dropped", "from", from, "error", errors.ErrNotDirectory)
			continue
		}

		if stop := r.dispatch(ctx, from, m); stop {
			r.shutdown()
			return nil
		}
	}
}

// dispatch reports whether the relay must stop.
func (r *GroupRelay) dispatch(ctx context.Context, from netip.AddrPort, m domain.Message) bool {
	switch m.Order {
	case domain.OrderRegister:
		if member, ok := r.register(from, m.Sender); ok {
			r.log.Info("Member registered", "name", member.Name, "from", from)
			r.reply(from, domain.OrderAck, "OK "+r.cfg.Name)
		}
	case domain.OrderChat:
		if from == r.cfg.Directory {
			r.broadcast(from, m)
			return false
		}
		r.relay(ctx, from, m)
	case domain.OrderCommand:
		r.command(ctx, from, m)
	case domain.OrderRedirect:
		r.log.Info("Redirect notice received", "text", m.Text)
		r.broadcast(from, m)
	case domain.OrderQuit:
		r.log.Info("Quit notice received from directory")
		return true
	}
	return false
}

func (r *GroupRelay) register(from netip.AddrPort, name string) (domain.Member, bool) {
	if err := domain.ValidateName(domain.Canonical(name)); err != nil {
		r.reply(from, domain.OrderError, err.Error())
		return domain.Member{}, false
	}
	member, err := r.registry.Register(from, name, r.clock.Now())
	switch {
	case stderrors.Is(err, errors.ErrBanned):
		r.log.Info("Banned name refused", "name", name, "from", from)
		r.reply(from, domain.OrderBan, fmt.Sprintf("you are banned from %s", r.cfg.Name))
		return domain.Member{}, false
	case err != nil:
		r.reply(from, domain.OrderError, err.Error())
		return domain.Member{}, false
	}
	return member, true
}

func (r *GroupRelay) relay(ctx context.Context, from netip.AddrPort, m domain.Message) {
	if _, known := r.registry.Lookup(from); !known {
		if _, ok := r.register(from, m.Sender); !ok {
			return
		}
	}
	now := r.clock.Now()
	member, _ := r.registry.RecordMessage(from, now)

	plaintext := protocol.Decipher(m.Text)
	text := m.Text
	if r.censor != nil {
		censored, words := r.censor.Censor(plaintext)
		if len(words) > 0 {
			r.log.Debug("Words censored", "sender", member.Name, "count", len(words))
			plaintext = censored
			text = protocol.Encipher(censored)
		}
	}

	recipients := r.registry.Recipients(from)
	if len(recipients) == 0 {
		r.log.Info("Nobody to relay to", "sender", member.Name)
	}
	out := domain.NewMessage(domain.OrderChat, member.Name, text)
	for _, to := range recipients {
		if err := r.endpoint.Send(to, out); err != nil {
			r.log.Warn("Relay send failed", "to", to, "error", err)
		}
	}

	r.emit(ctx, event.MessageRelayed{
		ID:         uuid.New(),
		Group:      r.cfg.Name,
		Author:     member.Name,
		Content:    plaintext,
		Recipients: len(recipients),
		At:         now,
	})
}

// broadcast forwards a message unchanged to every active member but the source.
func (r *GroupRelay) broadcast(from netip.AddrPort, m domain.Message) {
	for _, to := range r.registry.Recipients(from) {
		if err := r.endpoint.Send(to, m); err != nil {
			r.log.Warn("Broadcast send failed", "order", m.Order, "to", to, "error", err)
		}
	}
}

func (r *GroupRelay) announce(from netip.AddrPort, text string) {
	r.broadcast(from, domain.NewMessage(domain.OrderChat, domain.SystemSender, protocol.Encipher(text)))
}

func (r *GroupRelay) emit(ctx context.Context, evt event.DomainEvent) {
	for _, sink := range r.sinks {
		if err := sink.Consume(ctx, evt); err != nil {
			r.log.Warn("Sink failed", "sink", fmt.Sprintf("%T", sink), "error", err)
		}
	}
}

func (r *GroupRelay) command(ctx context.Context, from netip.AddrPort, m domain.Message) {
	if r.registry.IsBanned(m.Sender) {
		r.reply(from, domain.OrderBan, fmt.Sprintf("you are banned from %s", r.cfg.Name))
		return
	}
	member, ok := r.registry.Lookup(from)
	if !ok {
		r.reply(from, domain.OrderError, errors.ErrNotMember.Error())
		return
	}

	cmd := domain.ParseCommand(m.Text)
	r.log.Debug("Command received", "sender", member.Name, "verb", cmd.Verb)
	switch cmd.Verb {
	case domain.VerbList:
		r.list(from)
	case domain.VerbStats:
		r.stats(from)
	case domain.VerbBan, domain.VerbDelete:
		r.ban(from, member, cmd.Arg)
	case domain.VerbQuit:
		r.quit(from, member)
	case domain.VerbHistory:
		r.showHistory(from)
	case domain.VerbSearch:
		r.search(ctx, from, cmd.Arg)
	case domain.VerbHelp, domain.VerbHelpShort:
		r.reply(from, domain.OrderResponse, helpText)
	default:
		r.reply(from, domain.OrderResponse, "unknown command, try help")
	}
}

func (r *GroupRelay) list(from netip.AddrPort) {
	names := lo.Map(r.registry.Participants(), func(m domain.Member, _ int) string {
		if domain.SameIdentity(m.Name, r.cfg.Moderator) {
			return m.Name + "*"
		}
		return m.Name
	})
	r.reply(from, domain.OrderResponse, "members: "+strings.Join(names, ", "))
}

// stats answers one line per active member.
func (r *GroupRelay) stats(from netip.AddrPort) {
	now := r.clock.Now()
	for _, m := range r.registry.Participants() {
		r.reply(from, domain.OrderResponse, fmt.Sprintf("%s: %d msg, up %s, every %s",
			m.Name,
			m.MessageCount,
			m.Uptime(now).Truncate(time.Second),
			m.MeanInterval().Truncate(time.Millisecond)))
	}
}

func (r *GroupRelay) ban(from netip.AddrPort, requester domain.Member, target string) {
	if !domain.SameIdentity(requester.Name, r.cfg.Moderator) {
		r.reply(from, domain.OrderError, errors.ErrUnauthorized.Error())
		return
	}
	if target == "" {
		r.reply(from, domain.OrderError, "usage: ban <name>")
		return
	}
	if domain.SameIdentity(target, r.cfg.Moderator) {
		r.reply(from, domain.OrderError, errors.ErrSelfBan.Error())
		return
	}

	kicked := r.registry.Ban(target)
	for _, m := range kicked {
		if err := r.endpoint.Send(m.Addr, domain.NewMessage(domain.OrderBan, domain.GroupSender,
			fmt.Sprintf("you have been banned from %s", r.cfg.Name))); err != nil {
			r.log.Warn("Ban notice failed", "to", m.Addr, "error", err)
		}
	}
	r.log.Info("Member banned", "name", domain.Canonical(target), "connections", len(kicked))
	r.reply(from, domain.OrderResponse, fmt.Sprintf("%s banned", domain.Canonical(target)))
}

func (r *GroupRelay) quit(from netip.AddrPort, member domain.Member) {
	r.registry.Deactivate(from)
	r.log.Info("Member left", "name", member.Name)
	r.reply(from, domain.OrderResponse, "bye")
	r.announce(from, fmt.Sprintf("%s has left the group", member.Name))
}

func (r *GroupRelay) showHistory(from netip.AddrPort) {
	if r.history == nil {
		r.reply(from, domain.OrderResponse, "history is disabled")
		return
	}
	entries, err := r.history.Latest(r.cfg.Name, r.cfg.HistoryLimit)
	if err != nil {
		r.log.Warn("History read failed", "error", err)
		r.reply(from, domain.OrderError, "history unavailable")
		return
	}
	if len(entries) == 0 {
		r.reply(from, domain.OrderResponse, "no history")
		return
	}
	for _, e := range entries {
		r.reply(from, domain.OrderResponse, fmt.Sprintf("[%s] %s: %s", e.At.Format(time.TimeOnly), e.Author, e.Content))
	}
}

func (r *GroupRelay) search(ctx context.Context, from netip.AddrPort, term string) {
	if r.searcher == nil {
		r.reply(from, domain.OrderResponse, "search is disabled")
		return
	}
	if term == "" {
		r.reply(from, domain.OrderError, "usage: search <term>")
		return
	}
	total, hits, err := r.searcher.Search(ctx, term, 1)
	if err != nil {
		r.log.Warn("Search failed", "term", term, "error", err)
		r.reply(from, domain.OrderError, "search unavailable")
		return
	}
	if total == 0 || len(hits) == 0 {
		r.reply(from, domain.OrderResponse, fmt.Sprintf("no match for %s", term))
		return
	}
	r.reply(from, domain.OrderResponse, fmt.Sprintf("%d match(es), latest %s: %s", total, hits[0].Author, hits[0].Content))
}

func (r *GroupRelay) reply(to netip.AddrPort, order domain.Order, text string) {
	if err := r.endpoint.Send(to, domain.NewMessage(order, domain.GroupSender, text)); err != nil {
		r.log.Warn("Reply failed", "order", order, "to", to, "error", err)
	}
}

// shutdown pushes an end-notice to every active member and leaves them
// some time to leave the host before the socket is closed.
func (r *GroupRelay) shutdown() {
	active := r.registry.Active()
	for _, m := range active {
		if err := r.endpoint.Send(m.Addr, domain.NewMessage(domain.OrderEnd, domain.GroupSender,
			fmt.Sprintf("group %s is closed", r.cfg.Name))); err != nil {
			r.log.Warn("End notice failed", "to", m.Addr, "error", err)
		}
	}
	r.log.Info("Group relay stopping", "notified", len(active))
	if len(active) > 0 && r.cfg.ShutdownGrace > 0 {
		time.Sleep(r.cfg.ShutdownGrace)
	}
}
