package sink_test

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/mocks"
	"chat-relay/sink"
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type groupClosed struct{ group string }

func (g groupClosed) GroupName() string { return g.group }

func relayed(content string) event.MessageRelayed {
	return event.MessageRelayed{
		ID:         uuid.New(),
		Group:      "study",
		Author:     "alice",
		Content:    content,
		Recipients: 2,
		At:         time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC),
	}
}

func TestJournalSink_Appends_Relayed_Message_With_Language(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	journal := mocks.NewMockIJournal(ctrl)
	evt := relayed("The weather is lovely today and we are all going to the beach together this afternoon")

	var got domain.JournalEntry
	journal.EXPECT().Append(gomock.Any()).DoAndReturn(func(entry domain.JournalEntry) error {
		got = entry
		return nil
	})

	// When the relay emits a chat message
	err := sink.NewJournalSink(journal, discard).Consume(context.Background(), evt)

	// Then the transcript receives it, tagged with its language
	req.NoError(err)
	req.Equal(evt.ID, got.ID)
	req.Equal("study", got.Group)
	req.Equal("alice", got.Author)
	req.Equal(evt.At, got.At)
	req.Equal("eng", got.Lang)
}

func TestJournalSink_Short_Text_Has_No_Language(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	journal := mocks.NewMockIJournal(ctrl)
	journal.EXPECT().Append(gomock.Any()).DoAndReturn(func(entry domain.JournalEntry) error {
		req.Empty(entry.Lang)
		return nil
	})

	req.NoError(sink.NewJournalSink(journal, discard).Consume(context.Background(), relayed("ok")))
}

func TestJournalSink_Propagates_Append_Error(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	journal := mocks.NewMockIJournal(ctrl)
	journal.EXPECT().Append(gomock.Any()).Return(fmt.Errorf("disk full"))

	err := sink.NewJournalSink(journal, discard).Consume(context.Background(), relayed("hi"))

	req.ErrorContains(err, "disk full")
}

func TestJournalSink_Ignores_Other_Events(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	journal := mocks.NewMockIJournal(ctrl)

	// No Append expected
	err := sink.NewJournalSink(journal, discard).Consume(context.Background(), groupClosed{group: "study"})

	req.NoError(err)
}
