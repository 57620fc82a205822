// Package domain contains core concepts of the chat synchronization engine.
// This file defines Channels and Message records and their ordering rules.
// Messages are immutable and validated before they reach the domain.
package domain

import (
	"bytes"
	"time"

	"github.com/google/uuid"
)

// Channel identifies one independently ordered message stream.
// Messages never move between channels.
type Channel string

const (
	// ChannelPlain is the regular chat stream.
	ChannelPlain Channel = "messages"
	// ChannelLatency is the stream whose send path goes through the
	// artificial delay of the latency governor.
	ChannelLatency Channel = "messageswithlatency"
)

// Valid reports whether c is one of the known channels.
func (c Channel) Valid() bool {
	return c == ChannelPlain || c == ChannelLatency
}

// Message represents an immutable chat event. ID and CreatedAt are
// server-assigned at commit time; the pair defines the only order
// ever exposed to readers.
type Message struct {
	ID        uuid.UUID // unique identifier
	Sender    string    // free-text label, not an identity
	Content   string
	CreatedAt time.Time
	Channel   Channel
}

// Before reports whether m precedes other in the channel total order,
// ascending (CreatedAt, ID). The ID comparison only breaks ties between
// messages committed at the same instant.
func (m Message) Before(other Message) bool {
	if !m.CreatedAt.Equal(other.CreatedAt) {
		return m.CreatedAt.Before(other.CreatedAt)
	}
	return bytes.Compare(m.ID[:], other.ID[:]) < 0
}
