package sink

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"context"
	"fmt"
	"log/slog"
)

type Indexer interface {
	Index(entry domain.JournalEntry) error
}

// SearchSink feeds the full text index of a relay.
type SearchSink struct {
	indexer Indexer
	log     *slog.Logger
}

func NewSearchSink(indexer Indexer, log *slog.Logger) SearchSink {
	return SearchSink{indexer: indexer, log: log}
}

func (s SearchSink) Consume(_ context.Context, e event.DomainEvent) error {
	switch evt := e.(type) {
	case event.MessageRelayed:
		return s.indexer.Index(domain.JournalEntry{
			ID:      evt.ID,
			Group:   evt.Group,
			Author:  evt.Author,
			Content: evt.Content,
			At:      evt.At,
		})
	default:
		s.log.Debug(fmt.Sprintf("Not implemented event : %v", evt))
		return nil
	}
}
