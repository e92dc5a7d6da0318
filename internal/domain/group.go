package domain

import (
	"time"

	"github.com/google/uuid"
)

type GroupType string

const (
	GroupTypePublic  GroupType = "public"
	GroupTypePrivate GroupType = "private"
)

// GroupSettings holds per-group toggles.
type GroupSettings struct {
	OnlyAdminCanMessage bool `json:"onlyAdminCanMessage"`
}

// Group is a broadcast group. Its member set must mirror the
// participant set of its conversation; the membership mutators in the
// group service keep the two in sync.
type Group struct {
	ID             uuid.UUID     `json:"id"`
	Name           string        `json:"name"`
	Description    *string       `json:"description,omitempty"`
	Avatar         *string       `json:"avatar,omitempty"`
	AdminID        uuid.UUID     `json:"admin"`
	MemberIDs      []uuid.UUID   `json:"memberIds"`
	ConversationID uuid.UUID     `json:"conversationId"`
	Type           GroupType     `json:"groupType"`
	InviteCode     *string       `json:"inviteCode,omitempty"`
	Settings       GroupSettings `json:"settings"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
	// Joined fields
	Members []Participant `json:"members,omitempty"`
}

// HasMember reports whether id is in the group's member set.
func (g *Group) HasMember(id uuid.UUID) bool {
	for _, m := range g.MemberIDs {
		if m == id {
			return true
		}
	}
	return false
}
