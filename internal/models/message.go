package models

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

// Message is a single chat message record.
type Message struct {
	ID       string    `db:"id" json:"id"`
	Username string    `db:"username" json:"username"`
	Message  string    `db:"message" json:"message"`
	Date     time.Time `db:"date" json:"date"`
}

// MessageUpdate is a partial update of a message. Only the text is mutable.
type MessageUpdate struct {
	Message string `json:"message"`
}

// ChangeType names the kind of change reported by a store subscription.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeModified ChangeType = "modified"
	ChangeRemoved  ChangeType = "removed"
)

// ChangeEvent describes one change to the ordered message view.
// Message is the zero value for removals.
type ChangeEvent struct {
	Type    ChangeType `json:"type"`
	ID      string     `json:"id"`
	Message Message    `json:"message"`
}

// Batch is a group of change events delivered together, in store order.
type Batch []ChangeEvent

// ErrEmptyMessage is returned for text that is blank after trimming.
var ErrEmptyMessage = errors.New("message text is empty")

// Compose builds a new message record from user input. Both fields are
// trimmed and cut to maxLen runes; an empty text is rejected.
func Compose(username, text string, at time.Time, maxLen int) (Message, error) {
	text, err := NormalizeText(text, maxLen)
	if err != nil {
		return Message{}, err
	}
	return Message{
		Username: truncate(strings.TrimSpace(username), maxLen),
		Message:  text,
		Date:     at.UTC().Truncate(time.Millisecond),
	}, nil
}

// NormalizeText trims text and cuts it to maxLen runes.
func NormalizeText(text string, maxLen int) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyMessage
	}
	return truncate(text, maxLen), nil
}

func truncate(s string, maxLen int) string {
	if maxLen <= 0 || utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen])
}
