package repositories

import (
	"chat-relay/domain"
	"context"

	"github.com/blugelabs/bluge"
	"github.com/google/uuid"
)

const (
	fieldContent = "content"
	fieldAuthor  = "author"
	fieldAt      = "at"
)

// SearchIndex is a per-relay in-memory full text index of relayed messages.
type SearchIndex struct {
	group  string
	writer *bluge.Writer
}

func NewSearchIndex(group string) (*SearchIndex, error) {
	writer, err := bluge.OpenWriter(bluge.InMemoryOnlyConfig())
	if err != nil {
		return nil, err
	}
	return &SearchIndex{group: group, writer: writer}, nil
}

func (s *SearchIndex) Index(entry domain.JournalEntry) error {
	doc := bluge.NewDocument(entry.ID.String()).
		AddField(bluge.NewTextField(fieldContent, entry.Content).StoreValue()).
		AddField(bluge.NewKeywordField(fieldAuthor, entry.Author).StoreValue()).
		AddField(bluge.NewDateTimeField(fieldAt, entry.At).StoreValue().Sortable())
	return s.writer.Update(doc.ID(), doc)
}

// Search returns the total number of matches and the most recent ones.
func (s *SearchIndex) Search(ctx context.Context, term string, limit int) (int, []domain.JournalEntry, error) {
	reader, err := s.writer.Reader()
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = reader.Close() }()

	query := bluge.NewMatchQuery(term).SetField(fieldContent)
	request := bluge.NewTopNSearch(limit, query).
		SortBy([]string{"-" + fieldAt}).
		WithStandardAggregations()
	dmi, err := reader.Search(ctx, request)
	if err != nil {
		return 0, nil, err
	}

	var entries []domain.JournalEntry
	match, err := dmi.Next()
	for err == nil && match != nil {
		entry := domain.JournalEntry{Group: s.group}
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "_id":
				entry.ID, _ = uuid.ParseBytes(value)
			case fieldContent:
				entry.Content = string(value)
			case fieldAuthor:
				entry.Author = string(value)
			case fieldAt:
				entry.At, _ = bluge.DecodeDateTime(value)
			}
			return true
		})
		if err != nil {
			return 0, nil, err
		}
		entries = append(entries, entry)
		match, err = dmi.Next()
	}
	if err != nil {
		return 0, nil, err
	}
	return int(dmi.Aggregations().Count()), entries, nil
}

func (s *SearchIndex) Close() error {
	return s.writer.Close()
}
