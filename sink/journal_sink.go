package sink

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/repositories"
	"context"
	"fmt"
	"log/slog"

	"github.com/abadojack/whatlanggo"
)

// JournalSink appends relayed messages to the group transcript.
type JournalSink struct {
	journal repositories.IJournal
	log     *slog.Logger
}

func NewJournalSink(journal repositories.IJournal, log *slog.Logger) JournalSink {
	return JournalSink{journal: journal, log: log}
}

func (j JournalSink) Consume(_ context.Context, e event.DomainEvent) error {
	switch evt := e.(type) {
	case event.MessageRelayed:
		return j.journal.Append(toJournalEntry(evt))
	default:
		j.log.Debug(fmt.Sprintf("Not implemented event : %v", evt))
		return nil
	}
}

func toJournalEntry(evt event.MessageRelayed) domain.JournalEntry {
	return domain.JournalEntry{
		ID:      evt.ID,
		Group:   evt.Group,
		Author:  evt.Author,
		Content: evt.Content,
		Lang:    detectLang(evt.Content),
		At:      evt.At,
	}
}

// detectLang returns the ISO 639-3 code, empty when the guess is unreliable.
func detectLang(content string) string {
	info := whatlanggo.Detect(content)
	if !info.IsReliable() {
		return ""
	}
	return info.Lang.Iso6393()
}
