package service

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/parley-chat/parley/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// In-memory fakes for the repository interfaces. They implement just
// enough of the contracts for service tests: nil for missing rows,
// ownership checks on message mutations, newest-first pagination.

type fakeUserRepo struct {
	users map[uuid.UUID]*domain.User
}

func newFakeUserRepo(users ...*domain.User) *fakeUserRepo {
	r := &fakeUserRepo{users: make(map[uuid.UUID]*domain.User)}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	return r.users[id], nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	for _, u := range r.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) ListByIDs(_ context.Context, ids []uuid.UUID) ([]domain.User, error) {
	var out []domain.User
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (r *fakeUserRepo) Search(_ context.Context, query string, exclude uuid.UUID) ([]domain.User, error) {
	var out []domain.User
	for _, u := range r.users {
		if u.ID == exclude {
			continue
		}
		if strings.Contains(strings.ToLower(u.Username), strings.ToLower(query)) {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (r *fakeUserRepo) SetPresence(_ context.Context, id uuid.UUID, online bool, lastSeen time.Time) error {
	if u, ok := r.users[id]; ok {
		u.IsOnline = online
		u.LastSeen = lastSeen
	}
	return nil
}

func (r *fakeUserRepo) Block(_ context.Context, userID, blockedID uuid.UUID) error {
	u, ok := r.users[userID]
	if !ok {
		return nil
	}
	if !u.HasBlocked(blockedID) {
		u.BlockedUsers = append(u.BlockedUsers, blockedID)
	}
	return nil
}

func (r *fakeUserRepo) Unblock(_ context.Context, userID, blockedID uuid.UUID) error {
	u, ok := r.users[userID]
	if !ok {
		return nil
	}
	kept := u.BlockedUsers[:0]
	for _, id := range u.BlockedUsers {
		if id != blockedID {
			kept = append(kept, id)
		}
	}
	u.BlockedUsers = kept
	return nil
}

type fakeConvRepo struct {
	convs map[uuid.UUID]*domain.Conversation
}

func newFakeConvRepo(convs ...*domain.Conversation) *fakeConvRepo {
	r := &fakeConvRepo{convs: make(map[uuid.UUID]*domain.Conversation)}
	for _, c := range convs {
		r.convs[c.ID] = c
	}
	return r
}

func (r *fakeConvRepo) Create(_ context.Context, conv *domain.Conversation) error {
	r.convs[conv.ID] = conv
	return nil
}

func (r *fakeConvRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Conversation, error) {
	return r.convs[id], nil
}

func (r *fakeConvRepo) GetDirect(_ context.Context, user1ID, user2ID uuid.UUID) (*domain.Conversation, error) {
	for _, c := range r.convs {
		if c.IsGroup {
			continue
		}
		if hasID(c.ParticipantIDs, user1ID) && hasID(c.ParticipantIDs, user2ID) {
			return c, nil
		}
	}
	return nil, nil
}

func (r *fakeConvRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]domain.Conversation, error) {
	var out []domain.Conversation
	for _, c := range r.convs {
		if hasID(c.ParticipantIDs, userID) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *fakeConvRepo) SetLastMessage(_ context.Context, id uuid.UUID, messageID *uuid.UUID) error {
	if c, ok := r.convs[id]; ok {
		c.LastMessageID = messageID
	}
	return nil
}

func (r *fakeConvRepo) AddParticipant(_ context.Context, id, userID uuid.UUID) error {
	c, ok := r.convs[id]
	if !ok {
		return nil
	}
	if !hasID(c.ParticipantIDs, userID) {
		c.ParticipantIDs = append(c.ParticipantIDs, userID)
	}
	return nil
}

func (r *fakeConvRepo) RemoveParticipant(_ context.Context, id, userID uuid.UUID) error {
	c, ok := r.convs[id]
	if !ok {
		return nil
	}
	kept := c.ParticipantIDs[:0]
	for _, pid := range c.ParticipantIDs {
		if pid != userID {
			kept = append(kept, pid)
		}
	}
	c.ParticipantIDs = kept
	return nil
}

func (r *fakeConvRepo) ListParticipants(_ context.Context, id uuid.UUID) ([]domain.Participant, error) {
	c, ok := r.convs[id]
	if !ok {
		return nil, nil
	}
	out := make([]domain.Participant, 0, len(c.ParticipantIDs))
	for _, pid := range c.ParticipantIDs {
		out = append(out, domain.Participant{ID: pid})
	}
	return out, nil
}

func (r *fakeConvRepo) SetGroupName(_ context.Context, id uuid.UUID, name string) error {
	if c, ok := r.convs[id]; ok && c.GroupData != nil {
		c.GroupData.Name = name
	}
	return nil
}

type fakeMessageRepo struct {
	msgs  map[uuid.UUID]*domain.Message
	order []uuid.UUID

	markSeenCalls int
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{msgs: make(map[uuid.UUID]*domain.Message)}
}

func (r *fakeMessageRepo) Create(_ context.Context, msg *domain.Message) error {
	cp := *msg
	r.msgs[msg.ID] = &cp
	r.order = append(r.order, msg.ID)
	return nil
}

func (r *fakeMessageRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Message, error) {
	msg, ok := r.msgs[id]
	if !ok {
		return nil, nil
	}
	cp := *msg
	return &cp, nil
}

func (r *fakeMessageRepo) ListByConversation(_ context.Context, conversationID uuid.UUID, page, limit int) ([]domain.Message, int, error) {
	var all []domain.Message
	for _, id := range r.order {
		if msg, ok := r.msgs[id]; ok && msg.ConversationID == conversationID {
			all = append(all, *msg)
		}
	}
	total := len(all)

	// Page 1 is the newest slice, returned in chronological order.
	end := total - (page-1)*limit
	start := end - limit
	if end < 0 {
		end = 0
	}
	if start < 0 {
		start = 0
	}
	return all[start:end], total, nil
}

func (r *fakeMessageRepo) MarkSeen(_ context.Context, id uuid.UUID, seenAt time.Time) (*domain.Message, error) {
	r.markSeenCalls++
	msg, ok := r.msgs[id]
	if !ok || msg.Status == domain.StatusSeen {
		return nil, nil
	}
	msg.Status = domain.StatusSeen
	msg.SeenAt = &seenAt
	cp := *msg
	return &cp, nil
}

func (r *fakeMessageRepo) UpdateContent(_ context.Context, id, senderID uuid.UUID, content string) (*domain.Message, error) {
	msg, ok := r.msgs[id]
	if !ok || msg.SenderID == nil || *msg.SenderID != senderID {
		return nil, nil
	}
	msg.Content = content
	msg.IsEdited = true
	cp := *msg
	return &cp, nil
}

func (r *fakeMessageRepo) SoftDelete(_ context.Context, id, senderID uuid.UUID) (bool, error) {
	msg, ok := r.msgs[id]
	if !ok || msg.SenderID == nil || *msg.SenderID != senderID {
		return false, nil
	}
	msg.IsDeleted = true
	msg.Content = domain.DeletedPlaceholder
	return true, nil
}

func (r *fakeMessageRepo) DeleteByConversation(_ context.Context, conversationID uuid.UUID) error {
	kept := r.order[:0]
	for _, id := range r.order {
		if msg, ok := r.msgs[id]; ok && msg.ConversationID == conversationID {
			delete(r.msgs, id)
			continue
		}
		kept = append(kept, id)
	}
	r.order = kept
	return nil
}

type fakeGroupRepo struct {
	groups map[uuid.UUID]*domain.Group
}

func newFakeGroupRepo(groups ...*domain.Group) *fakeGroupRepo {
	r := &fakeGroupRepo{groups: make(map[uuid.UUID]*domain.Group)}
	for _, g := range groups {
		r.groups[g.ID] = g
	}
	return r
}

func (r *fakeGroupRepo) Create(_ context.Context, group *domain.Group) error {
	r.groups[group.ID] = group
	return nil
}

func (r *fakeGroupRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Group, error) {
	g, ok := r.groups[id]
	if !ok {
		return nil, nil
	}
	cp := *g
	return &cp, nil
}

func (r *fakeGroupRepo) GetByInviteCode(_ context.Context, code string) (*domain.Group, error) {
	for _, g := range r.groups {
		if g.InviteCode != nil && *g.InviteCode == code {
			cp := *g
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeGroupRepo) ListByMember(_ context.Context, userID uuid.UUID) ([]domain.Group, error) {
	var out []domain.Group
	for _, g := range r.groups {
		if g.HasMember(userID) {
			out = append(out, *g)
		}
	}
	return out, nil
}

func (r *fakeGroupRepo) ListIDsByMember(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	groups, _ := r.ListByMember(ctx, userID)
	ids := make([]uuid.UUID, 0, len(groups))
	for _, g := range groups {
		ids = append(ids, g.ID)
	}
	return ids, nil
}

func (r *fakeGroupRepo) ListPublic(_ context.Context) ([]domain.Group, error) {
	var out []domain.Group
	for _, g := range r.groups {
		if g.Type == domain.GroupTypePublic {
			out = append(out, *g)
		}
	}
	return out, nil
}

func (r *fakeGroupRepo) AddMember(_ context.Context, groupID, userID uuid.UUID) error {
	g, ok := r.groups[groupID]
	if !ok {
		return nil
	}
	if !g.HasMember(userID) {
		g.MemberIDs = append(g.MemberIDs, userID)
	}
	return nil
}

func (r *fakeGroupRepo) RemoveMember(_ context.Context, groupID, userID uuid.UUID) error {
	g, ok := r.groups[groupID]
	if !ok {
		return nil
	}
	kept := g.MemberIDs[:0]
	for _, id := range g.MemberIDs {
		if id != userID {
			kept = append(kept, id)
		}
	}
	g.MemberIDs = kept
	return nil
}

func (r *fakeGroupRepo) Rename(_ context.Context, groupID uuid.UUID, name string) error {
	if g, ok := r.groups[groupID]; ok {
		g.Name = name
	}
	return nil
}

func (r *fakeGroupRepo) SetOnlyAdminCanMessage(_ context.Context, groupID uuid.UUID, enabled bool) error {
	if g, ok := r.groups[groupID]; ok {
		g.Settings.OnlyAdminCanMessage = enabled
	}
	return nil
}

// fakePresence implements Presence with a fixed reachable set.
type fakePresence struct {
	reachable map[uuid.UUID]bool
}

func (p *fakePresence) IsReachable(userID uuid.UUID) bool {
	return p.reachable[userID]
}

type fakePresenceStore struct {
	online   map[uuid.UUID]bool
	lastSeen map[uuid.UUID]time.Time
}

func newFakePresenceStore() *fakePresenceStore {
	return &fakePresenceStore{
		online:   make(map[uuid.UUID]bool),
		lastSeen: make(map[uuid.UUID]time.Time),
	}
}

func (s *fakePresenceStore) SetOnline(_ context.Context, userID uuid.UUID) error {
	s.online[userID] = true
	return nil
}

func (s *fakePresenceStore) SetOffline(_ context.Context, userID uuid.UUID, lastSeen time.Time) error {
	delete(s.online, userID)
	s.lastSeen[userID] = lastSeen
	return nil
}

func (s *fakePresenceStore) OnlineUserIDs(_ context.Context) ([]uuid.UUID, error) {
	var out []uuid.UUID
	for id := range s.online {
		out = append(out, id)
	}
	return out, nil
}

type directNotification struct {
	receiverID uuid.UUID
	msg        *domain.Message
}

type statusNotification struct {
	userID    uuid.UUID
	messageID uuid.UUID
	status    domain.MessageStatus
}

type roomChange struct {
	userID  uuid.UUID
	groupID uuid.UUID
}

// recordingNotifier captures every fan-out for assertions. Implements
// both Notifier and GroupNotifier.
type recordingNotifier struct {
	directs       []directNotification
	statusUpdates []statusNotification
	edited        []*domain.Message
	deleted       []uuid.UUID
	groupMsgs     map[uuid.UUID][]*domain.Message

	groupCreated  []roomChange
	groupUpdated  []uuid.UUID
	memberRemoved []roomChange
	joinedRooms   []roomChange
	leftRooms     []roomChange
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{groupMsgs: make(map[uuid.UUID][]*domain.Message)}
}

func (n *recordingNotifier) NotifyDirectMessage(receiverID uuid.UUID, msg *domain.Message) {
	n.directs = append(n.directs, directNotification{receiverID, msg})
}

func (n *recordingNotifier) NotifyStatusUpdate(userID, messageID uuid.UUID, status domain.MessageStatus) {
	n.statusUpdates = append(n.statusUpdates, statusNotification{userID, messageID, status})
}

func (n *recordingNotifier) NotifyMessageEdited(_ BroadcastTarget, msg *domain.Message) {
	n.edited = append(n.edited, msg)
}

func (n *recordingNotifier) NotifyMessageDeleted(_ BroadcastTarget, messageID uuid.UUID) {
	n.deleted = append(n.deleted, messageID)
}

func (n *recordingNotifier) NotifyGroupMessage(groupID uuid.UUID, msg *domain.Message) {
	n.groupMsgs[groupID] = append(n.groupMsgs[groupID], msg)
}

func (n *recordingNotifier) NotifyGroupCreated(userID uuid.UUID, group *domain.Group) {
	n.groupCreated = append(n.groupCreated, roomChange{userID, group.ID})
}

func (n *recordingNotifier) NotifyGroupUpdated(groupID uuid.UUID, _ *domain.Group) {
	n.groupUpdated = append(n.groupUpdated, groupID)
}

func (n *recordingNotifier) NotifyMemberRemoved(userID, groupID uuid.UUID) {
	n.memberRemoved = append(n.memberRemoved, roomChange{userID, groupID})
}

func (n *recordingNotifier) JoinGroupRoom(userID, groupID uuid.UUID) {
	n.joinedRooms = append(n.joinedRooms, roomChange{userID, groupID})
}

func (n *recordingNotifier) LeaveGroupRoom(userID, groupID uuid.UUID) {
	n.leftRooms = append(n.leftRooms, roomChange{userID, groupID})
}

func hasID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
