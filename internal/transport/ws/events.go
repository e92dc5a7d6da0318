package ws

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/parley-chat/parley/internal/domain"
)

// Event types - Client → Server
const (
	EventTypeSendMessage      = "send_message"
	EventTypeMarkMessageSeen  = "mark_message_seen"
	EventTypeTyping           = "typing"
	EventTypeStopTyping       = "stop_typing"
	EventTypeEditMessage      = "edit_message"
	EventTypeDeleteMessage    = "delete_message"
	EventTypeJoinGroup        = "join_group"
	EventTypeSendGroupMessage = "send_group_message"
)

// Event types - Server → Client
const (
	EventTypeReceiveMessage       = "receive_message"
	EventTypeMessageSent          = "message_sent"
	EventTypeMessageStatusUpdated = "message_status_updated"
	EventTypeMessageEdited        = "message_edited"
	EventTypeMessageDeleted       = "message_deleted"
	EventTypeReceiveGroupMessage  = "receive_group_message"
	EventTypeUserOnline           = "user_online"
	EventTypeUserOffline          = "user_offline"
	EventTypeGroupCreated         = "group_created"
	EventTypeGroupUpdated         = "group_updated"
	EventTypeGroupMemberRemoved   = "group_member_removed"
	EventTypeError                = "error"
)

// Event is the base envelope for all WebSocket messages.
type Event struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"ts,omitempty"`
}

// --- Client → Server payloads ---

type MarkSeenPayload struct {
	MessageID uuid.UUID `json:"messageId"`
	SenderID  uuid.UUID `json:"senderId"`
}

type TypingInput struct {
	ConversationID uuid.UUID  `json:"conversationId"`
	ReceiverID     *uuid.UUID `json:"receiverId,omitempty"`
	GroupID        *uuid.UUID `json:"groupId,omitempty"`
}

type EditMessagePayload struct {
	MessageID  uuid.UUID  `json:"messageId"`
	NewContent string     `json:"newContent"`
	TargetID   *uuid.UUID `json:"targetId,omitempty"`
	GroupID    *uuid.UUID `json:"groupId,omitempty"`
}

type DeleteMessagePayload struct {
	MessageID uuid.UUID  `json:"messageId"`
	TargetID  *uuid.UUID `json:"targetId,omitempty"`
	GroupID   *uuid.UUID `json:"groupId,omitempty"`
}

type JoinGroupPayload struct {
	GroupID uuid.UUID `json:"groupId"`
}

// --- Server → Client payloads ---

type TypingPayload struct {
	ConversationID uuid.UUID  `json:"conversationId"`
	GroupID        *uuid.UUID `json:"groupId,omitempty"`
	UserID         uuid.UUID  `json:"userId"`
	Username       string     `json:"username"`
}

type StatusUpdatePayload struct {
	MessageID uuid.UUID            `json:"messageId"`
	Status    domain.MessageStatus `json:"status"`
}

type MessageDeletedPayload struct {
	MessageID uuid.UUID `json:"messageId"`
}

type GroupMessagePayload struct {
	GroupID uuid.UUID       `json:"groupId"`
	Message *domain.Message `json:"message"`
}

type PresencePayload struct {
	UserID uuid.UUID `json:"userId"`
}

type MemberRemovedPayload struct {
	GroupID uuid.UUID `json:"groupId"`
	UserID  uuid.UUID `json:"userId"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// NewEvent creates a server→client event with the current timestamp.
func NewEvent(eventType string, payload any) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Event{
		Type:      eventType,
		Payload:   data,
		Timestamp: time.Now().Unix(),
	}, nil
}
