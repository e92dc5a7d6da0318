package domain

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID   `json:"id"`
	Email        string      `json:"email"`
	Username     string      `json:"username"`
	PasswordHash string      `json:"-"`
	Avatar       *string     `json:"avatar,omitempty"`
	IsOnline     bool        `json:"isOnline"`
	LastSeen     time.Time   `json:"lastSeen"`
	BlockedUsers []uuid.UUID `json:"blockedUsers,omitempty"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

// HasBlocked reports whether u has id on its block list.
func (u *User) HasBlocked(id uuid.UUID) bool {
	for _, b := range u.BlockedUsers {
		if b == id {
			return true
		}
	}
	return false
}

// Participant is the projection of a user embedded in conversation
// and message payloads.
type Participant struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Avatar   *string   `json:"avatar,omitempty"`
	IsOnline bool      `json:"isOnline"`
	LastSeen time.Time `json:"lastSeen"`
}
