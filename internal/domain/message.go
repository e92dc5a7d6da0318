package domain

import (
	"time"

	"github.com/google/uuid"
)

type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeImage  MessageType = "image"
	MessageTypeFile   MessageType = "file"
	MessageTypeSystem MessageType = "system"
)

// MessageStatus is the delivery-acknowledgment state of a message.
// It only ever moves forward: sent → delivered → seen.
type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusSeen      MessageStatus = "seen"
)

var statusRank = map[MessageStatus]int{
	StatusSent:      0,
	StatusDelivered: 1,
	StatusSeen:      2,
}

// Valid reports whether s is one of the known statuses.
func (s MessageStatus) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// CanAdvanceTo reports whether moving from s to next is a forward
// transition. Equal or backward moves are rejected.
func (s MessageStatus) CanAdvanceTo(next MessageStatus) bool {
	if !s.Valid() || !next.Valid() {
		return false
	}
	return statusRank[next] > statusRank[s]
}

// DeletedPlaceholder replaces the content of soft-deleted messages.
const DeletedPlaceholder = "This message was deleted"

type Message struct {
	ID                uuid.UUID     `json:"id"`
	ConversationID    uuid.UUID     `json:"conversationId"`
	SenderID          *uuid.UUID    `json:"senderId"` // nil for system messages
	Content           string        `json:"content"`
	Type              MessageType   `json:"messageType"`
	FileURL           *string       `json:"fileUrl,omitempty"`
	Status            MessageStatus `json:"status"`
	DeliveredAt       *time.Time    `json:"deliveredAt,omitempty"`
	SeenAt            *time.Time    `json:"seenAt,omitempty"`
	IsEdited          bool          `json:"isEdited"`
	IsDeleted         bool          `json:"isDeleted"`
	ParentMessageID   *uuid.UUID    `json:"parentMessageId,omitempty"`
	IsForwarded       bool          `json:"isForwarded"`
	OriginalMessageID *uuid.UUID    `json:"originalMessageId,omitempty"`
	CreatedAt         time.Time     `json:"createdAt"`
	UpdatedAt         time.Time     `json:"updatedAt"`
	// Joined fields
	SenderUsername string        `json:"senderUsername,omitempty"`
	SenderAvatar   *string       `json:"senderAvatar,omitempty"`
	Participants   []Participant `json:"participants,omitempty"`
}

// IsSystem reports whether the message was synthesized by the server
// rather than sent by a user.
func (m *Message) IsSystem() bool {
	return m.SenderID == nil
}
