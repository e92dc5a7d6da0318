package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/parley-chat/parley/internal/domain"
	"github.com/parley-chat/parley/internal/repository"
)

var (
	ErrReceiverNotFound  = errors.New("receiver not found")
	ErrBlockedByReceiver = errors.New("you are blocked by this user")
	ErrReceiverBlocked   = errors.New("you have blocked this user")
	ErrGroupNotFound     = errors.New("group not found")
	ErrAdminOnly         = errors.New("only admins can send messages in this group")
	ErrMessageNotFound   = errors.New("message not found")
	ErrNotParticipant    = errors.New("you are not a participant in this conversation")
)

// Presence answers whether a user has at least one live session. The
// connection registry implements it.
type Presence interface {
	IsReachable(userID uuid.UUID) bool
}

// BroadcastTarget selects the room a message mutation is broadcast to:
// the group room when GroupID is set, otherwise the receiver's
// personal room.
type BroadcastTarget struct {
	GroupID    *uuid.UUID
	ReceiverID *uuid.UUID
}

// Notifier fans events out to live sessions. The ws hub implements it.
type Notifier interface {
	NotifyDirectMessage(receiverID uuid.UUID, msg *domain.Message)
	NotifyStatusUpdate(userID, messageID uuid.UUID, status domain.MessageStatus)
	NotifyMessageEdited(target BroadcastTarget, msg *domain.Message)
	NotifyMessageDeleted(target BroadcastTarget, messageID uuid.UUID)
	NotifyGroupMessage(groupID uuid.UUID, msg *domain.Message)
}

// ChatService is the message delivery pipeline: it validates sends,
// decides the initial delivery status, persists, and fans out.
type ChatService struct {
	messageRepo repository.MessageRepository
	convRepo    repository.ConversationRepository
	userRepo    repository.UserRepository
	groupRepo   repository.GroupRepository
	presence    Presence
	notifier    Notifier
}

func NewChatService(
	messageRepo repository.MessageRepository,
	convRepo repository.ConversationRepository,
	userRepo repository.UserRepository,
	groupRepo repository.GroupRepository,
	presence Presence,
) *ChatService {
	return &ChatService{
		messageRepo: messageRepo,
		convRepo:    convRepo,
		userRepo:    userRepo,
		groupRepo:   groupRepo,
		presence:    presence,
	}
}

// SetNotifier sets the real-time notifier (optional dependency).
func (s *ChatService) SetNotifier(n Notifier) {
	s.notifier = n
}

type SendMessageInput struct {
	ConversationID    uuid.UUID          `json:"conversationId"`
	ReceiverID        uuid.UUID          `json:"receiverId"`
	Content           string             `json:"content"`
	Type              domain.MessageType `json:"messageType"`
	FileURL           *string            `json:"fileUrl,omitempty"`
	ParentMessageID   *uuid.UUID         `json:"parentMessageId,omitempty"`
	IsForwarded       bool               `json:"isForwarded"`
	OriginalMessageID *uuid.UUID         `json:"originalMessageId,omitempty"`
}

// SendDirect delivers a one-to-one message. The initial status is
// decided once, here: "delivered" if the receiver has a live session,
// "sent" otherwise. A receiver connecting later never upgrades it;
// only an explicit seen acknowledgment advances it further.
func (s *ChatService) SendDirect(ctx context.Context, senderID uuid.UUID, in SendMessageInput) (*domain.Message, error) {
	receiver, err := s.userRepo.GetByID(ctx, in.ReceiverID)
	if err != nil {
		return nil, fmt.Errorf("loading receiver: %w", err)
	}
	if receiver == nil {
		return nil, ErrReceiverNotFound
	}
	if receiver.HasBlocked(senderID) {
		return nil, ErrBlockedByReceiver
	}

	sender, err := s.userRepo.GetByID(ctx, senderID)
	if err != nil {
		return nil, fmt.Errorf("loading sender: %w", err)
	}
	if sender == nil {
		return nil, fmt.Errorf("sender %s not found", senderID)
	}
	if sender.HasBlocked(in.ReceiverID) {
		return nil, ErrReceiverBlocked
	}

	now := time.Now()
	status := domain.StatusSent
	var deliveredAt *time.Time
	if s.presence.IsReachable(in.ReceiverID) {
		status = domain.StatusDelivered
		deliveredAt = &now
	}

	msgType := in.Type
	if msgType == "" {
		msgType = domain.MessageTypeText
	}

	msg := &domain.Message{
		ID:                uuid.New(),
		ConversationID:    in.ConversationID,
		SenderID:          &senderID,
		Content:           in.Content,
		Type:              msgType,
		FileURL:           in.FileURL,
		Status:            status,
		DeliveredAt:       deliveredAt,
		ParentMessageID:   in.ParentMessageID,
		IsForwarded:       in.IsForwarded,
		OriginalMessageID: in.OriginalMessageID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.messageRepo.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("creating message: %w", err)
	}
	if err := s.convRepo.SetLastMessage(ctx, in.ConversationID, &msg.ID); err != nil {
		return nil, fmt.Errorf("updating last message: %w", err)
	}

	full, err := s.populated(ctx, msg.ID)
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.NotifyDirectMessage(in.ReceiverID, full)
	}

	return full, nil
}

type GroupMessageInput struct {
	GroupID         uuid.UUID          `json:"groupId"`
	ConversationID  uuid.UUID          `json:"conversationId"`
	Content         string             `json:"content"`
	Type            domain.MessageType `json:"messageType"`
	FileURL         *string            `json:"fileUrl,omitempty"`
	ParentMessageID *uuid.UUID         `json:"parentMessageId,omitempty"`
}

// SendGroup delivers a message to a group room. Block lists do not
// apply here; the only gate is the admin-only setting.
func (s *ChatService) SendGroup(ctx context.Context, senderID uuid.UUID, in GroupMessageInput) (*domain.Message, error) {
	group, err := s.groupRepo.GetByID(ctx, in.GroupID)
	if err != nil {
		return nil, fmt.Errorf("loading group: %w", err)
	}
	if group == nil {
		return nil, ErrGroupNotFound
	}
	if group.Settings.OnlyAdminCanMessage && senderID != group.AdminID {
		return nil, ErrAdminOnly
	}

	now := time.Now()
	msgType := in.Type
	if msgType == "" {
		msgType = domain.MessageTypeText
	}

	msg := &domain.Message{
		ID:              uuid.New(),
		ConversationID:  in.ConversationID,
		SenderID:        &senderID,
		Content:         in.Content,
		Type:            msgType,
		FileURL:         in.FileURL,
		Status:          domain.StatusSent,
		ParentMessageID: in.ParentMessageID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.messageRepo.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("creating group message: %w", err)
	}
	if err := s.convRepo.SetLastMessage(ctx, in.ConversationID, &msg.ID); err != nil {
		return nil, fmt.Errorf("updating last message: %w", err)
	}

	full, err := s.populated(ctx, msg.ID)
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.NotifyGroupMessage(in.GroupID, full)
	}

	return full, nil
}

// EmitSystem synthesizes a senderless narration message for a group
// administrative event. System messages skip every gate and are
// created directly in "seen".
func (s *ChatService) EmitSystem(ctx context.Context, conversationID, groupID uuid.UUID, text string) (*domain.Message, error) {
	now := time.Now()
	msg := &domain.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		Content:        text,
		Type:           domain.MessageTypeSystem,
		Status:         domain.StatusSeen,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.messageRepo.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("creating system message: %w", err)
	}
	if err := s.convRepo.SetLastMessage(ctx, conversationID, &msg.ID); err != nil {
		return nil, fmt.Errorf("updating last message: %w", err)
	}

	full, err := s.populated(ctx, msg.ID)
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.NotifyGroupMessage(groupID, full)
	}

	return full, nil
}

// MarkSeen advances a message to seen and notifies the original
// sender. Re-acknowledging an already-seen or unknown message is a
// no-op with no broadcast.
func (s *ChatService) MarkSeen(ctx context.Context, messageID, originalSenderID uuid.UUID) error {
	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return fmt.Errorf("loading message: %w", err)
	}
	if msg == nil || !msg.Status.CanAdvanceTo(domain.StatusSeen) {
		return nil
	}

	// The SQL predicate remains the race-safe arbiter; this guard only
	// short-circuits acks that cannot advance the status.
	updated, err := s.messageRepo.MarkSeen(ctx, messageID, time.Now())
	if err != nil {
		return fmt.Errorf("marking message seen: %w", err)
	}
	if updated == nil {
		return nil
	}

	if s.notifier != nil {
		s.notifier.NotifyStatusUpdate(originalSenderID, messageID, domain.StatusSeen)
	}
	return nil
}

// Edit mutates a message's content. Only the original sender may edit;
// anyone else's attempt changes nothing and emits nothing.
func (s *ChatService) Edit(ctx context.Context, userID, messageID uuid.UUID, newContent string, target BroadcastTarget) error {
	updated, err := s.messageRepo.UpdateContent(ctx, messageID, userID, newContent)
	if err != nil {
		return fmt.Errorf("editing message: %w", err)
	}
	if updated == nil {
		return nil
	}

	if s.notifier != nil {
		s.notifier.NotifyMessageEdited(target, updated)
	}
	return nil
}

// Delete soft-deletes a message, replacing its content with a fixed
// placeholder. Sender-only; repeating the delete broadcasts the same
// shape again and changes nothing.
func (s *ChatService) Delete(ctx context.Context, userID, messageID uuid.UUID, target BroadcastTarget) error {
	deleted, err := s.messageRepo.SoftDelete(ctx, messageID, userID)
	if err != nil {
		return fmt.Errorf("deleting message: %w", err)
	}
	if !deleted {
		return nil
	}

	if s.notifier != nil {
		s.notifier.NotifyMessageDeleted(target, messageID)
	}
	return nil
}

type HistoryResponse struct {
	Messages    []domain.Message `json:"messages"`
	TotalPages  int              `json:"totalPages"`
	CurrentPage int              `json:"currentPage"`
}

// History returns a conversation's messages, oldest first within the
// requested page.
func (s *ChatService) History(ctx context.Context, conversationID uuid.UUID, page, limit int) (*HistoryResponse, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	messages, total, err := s.messageRepo.ListByConversation(ctx, conversationID, page, limit)
	if err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []domain.Message{}
	}

	return &HistoryResponse{
		Messages:    messages,
		TotalPages:  (total + limit - 1) / limit,
		CurrentPage: page,
	}, nil
}

// ListConversations returns the user's conversations with lastMessage
// populated.
func (s *ChatService) ListConversations(ctx context.Context, userID uuid.UUID) ([]domain.Conversation, error) {
	convs, err := s.convRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range convs {
		if convs[i].LastMessageID == nil {
			continue
		}
		last, err := s.messageRepo.GetByID(ctx, *convs[i].LastMessageID)
		if err != nil {
			return nil, err
		}
		convs[i].LastMessage = last
	}
	if convs == nil {
		convs = []domain.Conversation{}
	}
	return convs, nil
}

// GetOrCreateDirect finds the 1:1 conversation between two users, or
// creates it.
func (s *ChatService) GetOrCreateDirect(ctx context.Context, userID, receiverID uuid.UUID) (*domain.Conversation, error) {
	conv, err := s.convRepo.GetDirect(ctx, userID, receiverID)
	if err != nil {
		return nil, err
	}
	if conv != nil {
		return conv, nil
	}

	now := time.Now()
	conv = &domain.Conversation{
		ID:             uuid.New(),
		ParticipantIDs: []uuid.UUID{userID, receiverID},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.convRepo.Create(ctx, conv); err != nil {
		return nil, fmt.Errorf("creating conversation: %w", err)
	}
	return conv, nil
}

// ClearConversation bulk-deletes a conversation's messages. This is
// the only path that removes message rows.
func (s *ChatService) ClearConversation(ctx context.Context, userID, conversationID uuid.UUID) error {
	conv, err := s.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if conv == nil {
		return ErrNotParticipant
	}
	participant := false
	for _, id := range conv.ParticipantIDs {
		if id == userID {
			participant = true
			break
		}
	}
	if !participant {
		return ErrNotParticipant
	}

	if err := s.messageRepo.DeleteByConversation(ctx, conversationID); err != nil {
		return fmt.Errorf("clearing conversation: %w", err)
	}
	return s.convRepo.SetLastMessage(ctx, conversationID, nil)
}

// populated reloads a message with sender display fields and the
// conversation participant summaries attached.
func (s *ChatService) populated(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	msg, err := s.messageRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, ErrMessageNotFound
	}
	participants, err := s.convRepo.ListParticipants(ctx, msg.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("loading participants: %w", err)
	}
	msg.Participants = participants
	return msg, nil
}
