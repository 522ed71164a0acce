package domain

import (
	"time"

	"github.com/google/uuid"
)

// JournalEntry is one line of a group transcript.
type JournalEntry struct {
	ID      uuid.UUID
	Group   string
	Author  string
	Content string
	Lang    string
	At      time.Time
}
