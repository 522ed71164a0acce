package event

import (
	"time"

	"github.com/google/uuid"
)

type DomainEvent interface {
	GroupName() string
}

// MessageRelayed is emitted by a relay once a chat message has been fanned out.
// Content is the deciphered text after the word filter.
type MessageRelayed struct {
	ID         uuid.UUID
	Group      string
	Author     string
	Content    string
	Recipients int
	At         time.Time
}

func (m MessageRelayed) GroupName() string {
	return m.Group
}
