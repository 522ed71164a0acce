//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_journal.go -package=mocks
package repositories

import (
	"chat-relay/domain"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type IJournal interface {
	Append(entry domain.JournalEntry) error
	Latest(group string, limit int) ([]domain.JournalEntry, error)
	Purge(group string) error
}

// Journal is the transcript of every group, stored in BadgerDB.
type Journal struct {
	db  *badger.DB
	log *slog.Logger
}

func NewJournal(db *badger.DB, log *slog.Logger) *Journal {
	return &Journal{db: db, log: log}
}

// OpenJournalDB opens the badger store backing the journal. An empty
// directory keeps everything in memory.
func OpenJournalDB(dir string) (*badger.DB, error) {
	options := badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR)
	if dir == "" {
		options = options.WithInMemory(true)
	}
	return badger.Open(options)
}

type diskEntry struct {
	ID      string `json:"id"`
	Group   string `json:"group"`
	Author  string `json:"author"`
	Content string `json:"content"`
	Lang    string `json:"lang,omitempty"`
	At      int64  `json:"at"`
}

func prefix(group string) string {
	return fmt.Sprintf("msg:%s:", group)
}

// Append persists an entry.
// The key is formatted as "msg:{group}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding (lexicographical order).
//  2. Prevent data loss by using UUID as a collision disconnector if two messages
//     arrive at the same nanosecond.
func (j *Journal) Append(entry domain.JournalEntry) error {
	key := fmt.Sprintf("%s%019d:%s", prefix(entry.Group), entry.At.UnixNano(), entry.ID)
	bytes, err := json.Marshal(fromEntry(entry))
	if err != nil {
		return err
	}
	return j.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), bytes)
	})
}

// Latest returns at most limit entries of a group, oldest first.
func (j *Journal) Latest(group string, limit int) ([]domain.JournalEntry, error) {
	var entries []domain.JournalEntry
	err := j.db.View(func(txn *badger.Txn) error {
		p := []byte(prefix(group))
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		// Seek past the newest possible key, then walk backwards
		seekKey := append([]byte(prefix(group)), []byte("9999999999999999999")...)
		for it.Seek(seekKey); it.ValidForPrefix(p); it.Next() {
			if len(entries) == limit {
				break
			}
			err := it.Item().Value(func(value []byte) error {
				entry, err := DecodeEntry(value)
				if err != nil {
					return err
				}
				entries = append(entries, entry)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i, k := 0, len(entries)-1; i < k; i, k = i+1, k-1 {
		entries[i], entries[k] = entries[k], entries[i]
	}
	return entries, nil
}

// Purge drops the transcript of a group.
func (j *Journal) Purge(group string) error {
	if err := j.db.DropPrefix([]byte(prefix(group))); err != nil {
		return err
	}
	j.log.Debug("Journal purged", "group", group)
	return nil
}

func fromEntry(e domain.JournalEntry) diskEntry {
	return diskEntry{
		ID:      e.ID.String(),
		Group:   e.Group,
		Author:  e.Author,
		Content: e.Content,
		Lang:    e.Lang,
		At:      e.At.UnixNano(),
	}
}

func toEntry(d diskEntry) (domain.JournalEntry, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return domain.JournalEntry{}, err
	}
	return domain.JournalEntry{
		ID:      id,
		Group:   d.Group,
		Author:  d.Author,
		Content: d.Content,
		Lang:    d.Lang,
		At:      time.Unix(0, d.At).UTC(),
	}, nil
}

// DecodeEntry reads a stored journal value.
func DecodeEntry(val []byte) (domain.JournalEntry, error) {
	var d diskEntry
	if err := json.Unmarshal(val, &d); err != nil {
		return domain.JournalEntry{}, err
	}
	return toEntry(d)
}
