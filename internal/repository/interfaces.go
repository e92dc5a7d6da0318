package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/parley-chat/parley/internal/domain"
)

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.User, error)
	Search(ctx context.Context, query string, exclude uuid.UUID) ([]domain.User, error)
	SetPresence(ctx context.Context, id uuid.UUID, online bool, lastSeen time.Time) error
	Block(ctx context.Context, userID, blockedID uuid.UUID) error
	Unblock(ctx context.Context, userID, blockedID uuid.UUID) error
}

type ConversationRepository interface {
	Create(ctx context.Context, conv *domain.Conversation) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error)
	GetDirect(ctx context.Context, user1ID, user2ID uuid.UUID) (*domain.Conversation, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Conversation, error)
	SetLastMessage(ctx context.Context, id uuid.UUID, messageID *uuid.UUID) error
	AddParticipant(ctx context.Context, id, userID uuid.UUID) error
	RemoveParticipant(ctx context.Context, id, userID uuid.UUID) error
	ListParticipants(ctx context.Context, id uuid.UUID) ([]domain.Participant, error)
	SetGroupName(ctx context.Context, id uuid.UUID, name string) error
}

type MessageRepository interface {
	Create(ctx context.Context, msg *domain.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error)
	ListByConversation(ctx context.Context, conversationID uuid.UUID, page, limit int) ([]domain.Message, int, error)
	// MarkSeen advances the message to seen and returns it, or nil if
	// the message is missing or already seen.
	MarkSeen(ctx context.Context, id uuid.UUID, seenAt time.Time) (*domain.Message, error)
	// UpdateContent edits the message content if senderID owns it and
	// returns the updated row, or nil if no owned row matched.
	UpdateContent(ctx context.Context, id, senderID uuid.UUID, content string) (*domain.Message, error)
	// SoftDelete blanks the message content if senderID owns it and
	// reports whether an owned row matched.
	SoftDelete(ctx context.Context, id, senderID uuid.UUID) (bool, error)
	DeleteByConversation(ctx context.Context, conversationID uuid.UUID) error
}

type GroupRepository interface {
	Create(ctx context.Context, group *domain.Group) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Group, error)
	GetByInviteCode(ctx context.Context, code string) (*domain.Group, error)
	ListByMember(ctx context.Context, userID uuid.UUID) ([]domain.Group, error)
	ListIDsByMember(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	ListPublic(ctx context.Context) ([]domain.Group, error)
	AddMember(ctx context.Context, groupID, userID uuid.UUID) error
	RemoveMember(ctx context.Context, groupID, userID uuid.UUID) error
	Rename(ctx context.Context, groupID uuid.UUID, name string) error
	SetOnlyAdminCanMessage(ctx context.Context, groupID uuid.UUID, enabled bool) error
}

// PresenceStore is the volatile side of presence: the set of online
// users and their last-seen timestamps, kept out of the primary
// database so the online-users endpoint stays cheap.
type PresenceStore interface {
	SetOnline(ctx context.Context, userID uuid.UUID) error
	SetOffline(ctx context.Context, userID uuid.UUID, lastSeen time.Time) error
	OnlineUserIDs(ctx context.Context) ([]uuid.UUID, error)
}
