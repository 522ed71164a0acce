package runtime

import (
	"chat-relay/contract"
	"chat-relay/moderation"
	"chat-relay/repositories"
	"chat-relay/runtime/workers"
	"chat-relay/sink"
	"io"
	"log/slog"

	"github.com/benbjohnson/clock"
)

// RelayDeps are the collaborators shared by every relay of a process.
// Censor and Journal are optional.
type RelayDeps struct {
	Log     *slog.Logger
	Clock   clock.Clock
	Censor  *moderation.Moderator
	Journal repositories.IJournal
}

// BuildRelay wires a relay with its word filter, journal and search index.
// The transcript of a previous group with the same name is dropped first.
// The returned closer releases the search index once the relay has stopped.
func BuildRelay(deps RelayDeps, endpoint contract.Endpoint, cfg workers.RelayConfig) (*workers.GroupRelay, io.Closer, error) {
	log := deps.Log.With("group", cfg.Name)
	relay := workers.NewGroupRelay(deps.Log, endpoint, deps.Clock, cfg)
	if deps.Censor != nil {
		relay.WithCensor(deps.Censor)
	}

	if deps.Journal != nil {
		if err := deps.Journal.Purge(cfg.Name); err != nil {
			return nil, nil, err
		}
		relay.WithHistory(deps.Journal).Add(sink.NewJournalSink(deps.Journal, log))
	}

	index, err := repositories.NewSearchIndex(cfg.Name)
	if err != nil {
		return nil, nil, err
	}
	relay.WithSearch(index).Add(sink.NewSearchSink(index, log))
	return relay, index, nil
}
