package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/parley-chat/parley/internal/domain"
	"github.com/parley-chat/parley/internal/repository"
	"github.com/samber/lo"
)

var (
	ErrNotGroupAdmin     = errors.New("only the group admin can do this")
	ErrCannotRemoveAdmin = errors.New("cannot remove the admin")
	ErrInvalidInviteCode = errors.New("invalid or expired invite link")
	ErrGroupNameRequired = errors.New("name is required")
)

// GroupNotifier carries group-administration events through the same
// room/registry primitives the delivery pipeline uses. JoinGroupRoom
// and LeaveGroupRoom push membership changes into the live room tables
// so affected sessions do not need to reconnect.
type GroupNotifier interface {
	NotifyGroupCreated(userID uuid.UUID, group *domain.Group)
	NotifyGroupUpdated(groupID uuid.UUID, group *domain.Group)
	NotifyMemberRemoved(userID, groupID uuid.UUID)
	JoinGroupRoom(userID, groupID uuid.UUID)
	LeaveGroupRoom(userID, groupID uuid.UUID)
}

// GroupService owns group administration: membership, renames,
// settings, invite codes. Every mutation narrates itself with a system
// message through the chat service.
type GroupService struct {
	groupRepo repository.GroupRepository
	convRepo  repository.ConversationRepository
	userRepo  repository.UserRepository
	chat      *ChatService
	notifier  GroupNotifier
	log       *slog.Logger
}

func NewGroupService(
	groupRepo repository.GroupRepository,
	convRepo repository.ConversationRepository,
	userRepo repository.UserRepository,
	chat *ChatService,
	log *slog.Logger,
) *GroupService {
	return &GroupService{
		groupRepo: groupRepo,
		convRepo:  convRepo,
		userRepo:  userRepo,
		chat:      chat,
		log:       log,
	}
}

// SetNotifier sets the real-time notifier (optional dependency).
func (s *GroupService) SetNotifier(n GroupNotifier) {
	s.notifier = n
}

type CreateGroupInput struct {
	Name        string           `json:"name" validate:"required,min=1,max=100"`
	MemberIDs   []uuid.UUID      `json:"members"`
	Description *string          `json:"description,omitempty"`
	Avatar      *string          `json:"avatar,omitempty"`
	Type        domain.GroupType `json:"groupType"`
}

// Create makes a group plus its backing conversation, and pulls every
// member's live sessions into the new group room.
func (s *GroupService) Create(ctx context.Context, adminID uuid.UUID, in CreateGroupInput) (*domain.Group, error) {
	memberIDs := lo.Uniq(append(in.MemberIDs, adminID))

	groupType := in.Type
	if groupType == "" {
		groupType = domain.GroupTypePrivate
	}

	now := time.Now()
	conv := &domain.Conversation{
		ID:             uuid.New(),
		ParticipantIDs: memberIDs,
		IsGroup:        true,
		GroupData: &domain.GroupData{
			Name:        in.Name,
			AdminID:     &adminID,
			Description: in.Description,
			Avatar:      in.Avatar,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.convRepo.Create(ctx, conv); err != nil {
		return nil, fmt.Errorf("creating group conversation: %w", err)
	}

	var inviteCode *string
	if groupType == domain.GroupTypePublic {
		code, err := newInviteCode()
		if err != nil {
			return nil, err
		}
		inviteCode = &code
	}

	group := &domain.Group{
		ID:             uuid.New(),
		Name:           in.Name,
		Description:    in.Description,
		Avatar:         in.Avatar,
		AdminID:        adminID,
		MemberIDs:      memberIDs,
		ConversationID: conv.ID,
		Type:           groupType,
		InviteCode:     inviteCode,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.groupRepo.Create(ctx, group); err != nil {
		return nil, fmt.Errorf("creating group: %w", err)
	}

	full, err := s.groupRepo.GetByID(ctx, group.ID)
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		for _, memberID := range memberIDs {
			s.notifier.NotifyGroupCreated(memberID, full)
			s.notifier.JoinGroupRoom(memberID, group.ID)
		}
	}

	s.narrate(ctx, conv.ID, group.ID, adminID, func(username string) string {
		return fmt.Sprintf("%s created the group %q", username, in.Name)
	})

	return full, nil
}

// AddMember puts a user into the group and its conversation, pushes
// their live sessions into the group room, and narrates the change.
func (s *GroupService) AddMember(ctx context.Context, actorID, groupID, userID uuid.UUID) (*domain.Group, error) {
	group, err := s.groupRepo.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, ErrGroupNotFound
	}
	if group.AdminID != actorID {
		return nil, ErrNotGroupAdmin
	}

	if !group.HasMember(userID) {
		if err := s.groupRepo.AddMember(ctx, groupID, userID); err != nil {
			return nil, fmt.Errorf("adding member: %w", err)
		}
		// Keep the conversation participant set mirroring group
		// membership.
		if err := s.convRepo.AddParticipant(ctx, group.ConversationID, userID); err != nil {
			return nil, fmt.Errorf("adding participant: %w", err)
		}
	}

	full, err := s.groupRepo.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.NotifyGroupUpdated(groupID, full)
		s.notifier.NotifyGroupCreated(userID, full)
		s.notifier.JoinGroupRoom(userID, groupID)
	}

	addedName := s.username(ctx, userID)
	s.narrate(ctx, group.ConversationID, groupID, actorID, func(username string) string {
		return fmt.Sprintf("%s added %s", username, addedName)
	})

	return full, nil
}

// RemoveMember takes a user out of the group, its conversation, and
// the live group room.
func (s *GroupService) RemoveMember(ctx context.Context, actorID, groupID, userID uuid.UUID) (*domain.Group, error) {
	group, err := s.groupRepo.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, ErrGroupNotFound
	}
	if group.AdminID != actorID {
		return nil, ErrNotGroupAdmin
	}
	if userID == group.AdminID {
		return nil, ErrCannotRemoveAdmin
	}

	removedName := s.username(ctx, userID)

	if err := s.groupRepo.RemoveMember(ctx, groupID, userID); err != nil {
		return nil, fmt.Errorf("removing member: %w", err)
	}
	if err := s.convRepo.RemoveParticipant(ctx, group.ConversationID, userID); err != nil {
		return nil, fmt.Errorf("removing participant: %w", err)
	}

	full, err := s.groupRepo.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.NotifyGroupUpdated(groupID, full)
		s.notifier.NotifyMemberRemoved(userID, groupID)
		s.notifier.LeaveGroupRoom(userID, groupID)
	}

	s.narrate(ctx, group.ConversationID, groupID, actorID, func(username string) string {
		return fmt.Sprintf("%s removed %s", username, removedName)
	})

	return full, nil
}

// Rename changes the group name, keeping the conversation's metadata
// snapshot in sync.
func (s *GroupService) Rename(ctx context.Context, actorID, groupID uuid.UUID, name string) (*domain.Group, error) {
	if name == "" {
		return nil, ErrGroupNameRequired
	}

	group, err := s.groupRepo.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, ErrGroupNotFound
	}
	if group.AdminID != actorID {
		return nil, ErrNotGroupAdmin
	}

	oldName := group.Name
	if err := s.groupRepo.Rename(ctx, groupID, name); err != nil {
		return nil, fmt.Errorf("renaming group: %w", err)
	}
	if err := s.convRepo.SetGroupName(ctx, group.ConversationID, name); err != nil {
		return nil, fmt.Errorf("updating conversation name: %w", err)
	}

	full, err := s.groupRepo.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.NotifyGroupUpdated(groupID, full)
	}

	s.narrate(ctx, group.ConversationID, groupID, actorID, func(username string) string {
		return fmt.Sprintf("%s changed the group name from %q to %q", username, oldName, name)
	})

	return full, nil
}

// JoinByCode adds the caller to the group behind an invite code.
// Already being a member is not an error.
func (s *GroupService) JoinByCode(ctx context.Context, userID uuid.UUID, code string) (*domain.Group, error) {
	group, err := s.groupRepo.GetByInviteCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, ErrInvalidInviteCode
	}
	if group.HasMember(userID) {
		return group, nil
	}

	if err := s.groupRepo.AddMember(ctx, group.ID, userID); err != nil {
		return nil, fmt.Errorf("adding member: %w", err)
	}
	if err := s.convRepo.AddParticipant(ctx, group.ConversationID, userID); err != nil {
		return nil, fmt.Errorf("adding participant: %w", err)
	}

	full, err := s.groupRepo.GetByID(ctx, group.ID)
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.NotifyGroupUpdated(group.ID, full)
		s.notifier.NotifyGroupCreated(userID, full)
		s.notifier.JoinGroupRoom(userID, group.ID)
	}

	s.narrate(ctx, group.ConversationID, group.ID, userID, func(username string) string {
		return fmt.Sprintf("%s joined via invite link", username)
	})

	return full, nil
}

// SetAdminOnly toggles the admin-only messaging setting.
func (s *GroupService) SetAdminOnly(ctx context.Context, actorID, groupID uuid.UUID, enabled bool) (*domain.Group, error) {
	group, err := s.groupRepo.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, ErrGroupNotFound
	}
	if group.AdminID != actorID {
		return nil, ErrNotGroupAdmin
	}

	if err := s.groupRepo.SetOnlyAdminCanMessage(ctx, groupID, enabled); err != nil {
		return nil, fmt.Errorf("updating group settings: %w", err)
	}

	full, err := s.groupRepo.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.NotifyGroupUpdated(groupID, full)
	}

	s.narrate(ctx, group.ConversationID, groupID, actorID, func(username string) string {
		if enabled {
			return fmt.Sprintf("%s turned on admin-only messaging", username)
		}
		return fmt.Sprintf("%s turned off admin-only messaging. All members can send messages", username)
	})

	return full, nil
}

// List returns the groups the user belongs to.
func (s *GroupService) List(ctx context.Context, userID uuid.UUID) ([]domain.Group, error) {
	groups, err := s.groupRepo.ListByMember(ctx, userID)
	if err != nil {
		return nil, err
	}
	if groups == nil {
		groups = []domain.Group{}
	}
	return groups, nil
}

// ListPublic returns joinable public groups.
func (s *GroupService) ListPublic(ctx context.Context) ([]domain.Group, error) {
	groups, err := s.groupRepo.ListPublic(ctx)
	if err != nil {
		return nil, err
	}
	if groups == nil {
		groups = []domain.Group{}
	}
	return groups, nil
}

// narrate emits a system message for an administrative event. Failures
// are logged, not surfaced: the administrative change itself already
// succeeded.
func (s *GroupService) narrate(ctx context.Context, conversationID, groupID, actorID uuid.UUID, text func(username string) string) {
	username := s.username(ctx, actorID)
	if _, err := s.chat.EmitSystem(ctx, conversationID, groupID, text(username)); err != nil {
		s.log.Error("emitting system message", "group_id", groupID, "error", err)
	}
}

func (s *GroupService) username(ctx context.Context, userID uuid.UUID) string {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil || user == nil {
		return "A user"
	}
	return user.Username
}

func newInviteCode() (string, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating invite code: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
