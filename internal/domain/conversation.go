package domain

import (
	"time"

	"github.com/google/uuid"
)

// GroupData is the group metadata snapshot carried on group
// conversations. The Group record stays authoritative.
type GroupData struct {
	Name        string     `json:"name"`
	AdminID     *uuid.UUID `json:"admin,omitempty"`
	Description *string    `json:"description,omitempty"`
	Avatar      *string    `json:"avatar,omitempty"`
}

type Conversation struct {
	ID             uuid.UUID   `json:"id"`
	ParticipantIDs []uuid.UUID `json:"participantIds"`
	LastMessageID  *uuid.UUID  `json:"lastMessageId,omitempty"`
	IsGroup        bool        `json:"isGroup"`
	GroupData      *GroupData  `json:"groupData,omitempty"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
	// Joined fields
	Participants []Participant `json:"participants,omitempty"`
	LastMessage  *Message      `json:"lastMessage,omitempty"`
}
