package pubsub

import (
	"fmt"
	"strings"
)

// Channel naming conventions for record events.
const (
	// Relay -> downstream consumers (audit, indexing, notifications).
	ChannelRecordNotes = "records:record:%s:notes"
)

// Event types published by the relay.
const (
	EventNoteAdded = "note_added"
)

// RecordNotesChannel returns the channel name for note events of a record.
func RecordNotesChannel(recordID string) string {
	return fmt.Sprintf(ChannelRecordNotes, recordID)
}

// channelToTopicAndKey converts a Redis-style channel to a Kafka topic and message key.
//
//	"records:record:R1:notes" → topic: "records-notes", key: "R1"
func channelToTopicAndKey(channel string) (topic, key string, err error) {
	// Expected format: {prefix}:record:{recordID}:{suffix}
	parts := strings.Split(channel, ":")
	if len(parts) != 4 || parts[1] != "record" || parts[2] == "" {
		return "", "", fmt.Errorf("invalid channel format: %s", channel)
	}
	return parts[0] + "-" + strings.ReplaceAll(parts[3], "_", "-"), parts[2], nil
}

// Event payloads.

// NoteAddedPayload is published after a note has been persisted and broadcast.
type NoteAddedPayload struct {
	RecordID  string `json:"record_id"`
	NoteID    string `json:"note_id"`
	AuthorID  string `json:"author_id"`
	Content   string `json:"content"`
	CreatedAt int64  `json:"created_at"`
}
