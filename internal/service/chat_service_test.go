package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/parley-chat/parley/internal/domain"
	"github.com/stretchr/testify/require"
)

type chatFixture struct {
	chat     *ChatService
	users    *fakeUserRepo
	convs    *fakeConvRepo
	messages *fakeMessageRepo
	groups   *fakeGroupRepo
	presence *fakePresence
	notifier *recordingNotifier

	sender   *domain.User
	receiver *domain.User
	conv     *domain.Conversation
}

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()

	sender := &domain.User{ID: uuid.New(), Username: "alice", Email: "alice@example.com"}
	receiver := &domain.User{ID: uuid.New(), Username: "bob", Email: "bob@example.com"}
	conv := &domain.Conversation{
		ID:             uuid.New(),
		ParticipantIDs: []uuid.UUID{sender.ID, receiver.ID},
	}

	f := &chatFixture{
		users:    newFakeUserRepo(sender, receiver),
		convs:    newFakeConvRepo(conv),
		messages: newFakeMessageRepo(),
		groups:   newFakeGroupRepo(),
		presence: &fakePresence{reachable: make(map[uuid.UUID]bool)},
		notifier: newRecordingNotifier(),
		sender:   sender,
		receiver: receiver,
		conv:     conv,
	}
	f.chat = NewChatService(f.messages, f.convs, f.users, f.groups, f.presence)
	f.chat.SetNotifier(f.notifier)
	return f
}

func (f *chatFixture) sendInput() SendMessageInput {
	return SendMessageInput{
		ConversationID: f.conv.ID,
		ReceiverID:     f.receiver.ID,
		Content:        "hello",
		Type:           domain.MessageTypeText,
	}
}

func TestSendDirectOfflineReceiver(t *testing.T) {
	f := newChatFixture(t)

	msg, err := f.chat.SendDirect(context.Background(), f.sender.ID, f.sendInput())
	require.NoError(t, err)

	require.Equal(t, domain.StatusSent, msg.Status)
	require.Nil(t, msg.DeliveredAt)
	require.Equal(t, &f.sender.ID, msg.SenderID)

	require.Len(t, f.notifier.directs, 1)
	require.Equal(t, f.receiver.ID, f.notifier.directs[0].receiverID)
	require.Equal(t, f.conv.LastMessageID, &msg.ID)
}

func TestSendDirectOnlineReceiver(t *testing.T) {
	f := newChatFixture(t)
	f.presence.reachable[f.receiver.ID] = true

	msg, err := f.chat.SendDirect(context.Background(), f.sender.ID, f.sendInput())
	require.NoError(t, err)

	require.Equal(t, domain.StatusDelivered, msg.Status)
	require.NotNil(t, msg.DeliveredAt)

	// The receiver's copy already carries the delivered status; it is
	// decided once at send time, not patched afterward.
	require.Len(t, f.notifier.directs, 1)
	require.Equal(t, domain.StatusDelivered, f.notifier.directs[0].msg.Status)
}

func TestSendDirectReceiverConnectingLaterDoesNotUpgrade(t *testing.T) {
	f := newChatFixture(t)

	msg, err := f.chat.SendDirect(context.Background(), f.sender.ID, f.sendInput())
	require.NoError(t, err)
	require.Equal(t, domain.StatusSent, msg.Status)

	// Receiver comes online afterward. The stored status must stay
	// "sent" until an explicit seen acknowledgment.
	f.presence.reachable[f.receiver.ID] = true

	stored, err := f.messages.GetByID(context.Background(), msg.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusSent, stored.Status)

	// The seen ack then jumps straight from sent to seen.
	require.NoError(t, f.chat.MarkSeen(context.Background(), msg.ID, f.sender.ID))
	stored, err = f.messages.GetByID(context.Background(), msg.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusSeen, stored.Status)
}

func TestDeliveryAcrossReceiverConnect(t *testing.T) {
	f := newChatFixture(t)

	// First message while the receiver is offline.
	msg1, err := f.chat.SendDirect(context.Background(), f.sender.ID, f.sendInput())
	require.NoError(t, err)
	require.Equal(t, domain.StatusSent, msg1.Status)

	// Receiver connects; a second message is delivered immediately.
	f.presence.reachable[f.receiver.ID] = true
	msg2, err := f.chat.SendDirect(context.Background(), f.sender.ID, f.sendInput())
	require.NoError(t, err)
	require.Equal(t, domain.StatusDelivered, msg2.Status)

	// The receiver acknowledges the first message. Only that message
	// advances; the second keeps its delivered status.
	require.NoError(t, f.chat.MarkSeen(context.Background(), msg1.ID, f.sender.ID))

	require.Len(t, f.notifier.statusUpdates, 1)
	require.Equal(t, msg1.ID, f.notifier.statusUpdates[0].messageID)
	require.Equal(t, domain.StatusSeen, f.notifier.statusUpdates[0].status)

	stored1, err := f.messages.GetByID(context.Background(), msg1.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusSeen, stored1.Status)

	stored2, err := f.messages.GetByID(context.Background(), msg2.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusDelivered, stored2.Status)
}

func TestSendDirectUnknownReceiver(t *testing.T) {
	f := newChatFixture(t)

	in := f.sendInput()
	in.ReceiverID = uuid.New()

	_, err := f.chat.SendDirect(context.Background(), f.sender.ID, in)
	require.ErrorIs(t, err, ErrReceiverNotFound)
	require.Empty(t, f.messages.msgs)
}

func TestSendDirectBlockedByReceiver(t *testing.T) {
	f := newChatFixture(t)
	f.receiver.BlockedUsers = []uuid.UUID{f.sender.ID}

	_, err := f.chat.SendDirect(context.Background(), f.sender.ID, f.sendInput())
	require.ErrorIs(t, err, ErrBlockedByReceiver)

	// Nothing persisted, nothing fanned out.
	require.Empty(t, f.messages.msgs)
	require.Empty(t, f.notifier.directs)
}

func TestSendDirectSenderBlockedReceiver(t *testing.T) {
	f := newChatFixture(t)
	f.sender.BlockedUsers = []uuid.UUID{f.receiver.ID}

	_, err := f.chat.SendDirect(context.Background(), f.sender.ID, f.sendInput())
	require.ErrorIs(t, err, ErrReceiverBlocked)
	require.Empty(t, f.messages.msgs)
}

func TestSendDirectDefaultsToText(t *testing.T) {
	f := newChatFixture(t)

	in := f.sendInput()
	in.Type = ""

	msg, err := f.chat.SendDirect(context.Background(), f.sender.ID, in)
	require.NoError(t, err)
	require.Equal(t, domain.MessageTypeText, msg.Type)
}

func newGroupMessageFixture(t *testing.T, adminOnly bool) (*chatFixture, *domain.Group) {
	t.Helper()
	f := newChatFixture(t)

	group := &domain.Group{
		ID:             uuid.New(),
		Name:           "room",
		AdminID:        f.sender.ID,
		MemberIDs:      []uuid.UUID{f.sender.ID, f.receiver.ID},
		ConversationID: f.conv.ID,
		Settings:       domain.GroupSettings{OnlyAdminCanMessage: adminOnly},
	}
	f.groups.groups[group.ID] = group
	return f, group
}

func TestSendGroupMessage(t *testing.T) {
	f, group := newGroupMessageFixture(t, false)

	msg, err := f.chat.SendGroup(context.Background(), f.receiver.ID, GroupMessageInput{
		GroupID:        group.ID,
		ConversationID: f.conv.ID,
		Content:        "hi all",
	})
	require.NoError(t, err)

	require.Equal(t, domain.StatusSent, msg.Status)
	require.Len(t, f.notifier.groupMsgs[group.ID], 1)
}

func TestSendGroupUnknownGroup(t *testing.T) {
	f, _ := newGroupMessageFixture(t, false)

	_, err := f.chat.SendGroup(context.Background(), f.sender.ID, GroupMessageInput{
		GroupID:        uuid.New(),
		ConversationID: f.conv.ID,
		Content:        "hi",
	})
	require.ErrorIs(t, err, ErrGroupNotFound)
	require.Empty(t, f.messages.msgs)
}

func TestSendGroupAdminOnlyGate(t *testing.T) {
	f, group := newGroupMessageFixture(t, true)

	_, err := f.chat.SendGroup(context.Background(), f.receiver.ID, GroupMessageInput{
		GroupID:        group.ID,
		ConversationID: f.conv.ID,
		Content:        "hi",
	})
	require.ErrorIs(t, err, ErrAdminOnly)
	require.Empty(t, f.messages.msgs)

	// The admin still gets through.
	_, err = f.chat.SendGroup(context.Background(), f.sender.ID, GroupMessageInput{
		GroupID:        group.ID,
		ConversationID: f.conv.ID,
		Content:        "hi",
	})
	require.NoError(t, err)
}

func TestEmitSystem(t *testing.T) {
	f, group := newGroupMessageFixture(t, false)

	msg, err := f.chat.EmitSystem(context.Background(), f.conv.ID, group.ID, "alice renamed the group")
	require.NoError(t, err)

	require.True(t, msg.IsSystem())
	require.Nil(t, msg.SenderID)
	require.Equal(t, domain.MessageTypeSystem, msg.Type)
	require.Equal(t, domain.StatusSeen, msg.Status)
	require.Len(t, f.notifier.groupMsgs[group.ID], 1)
}

func TestMarkSeenNotifiesOriginalSender(t *testing.T) {
	f := newChatFixture(t)

	msg, err := f.chat.SendDirect(context.Background(), f.sender.ID, f.sendInput())
	require.NoError(t, err)

	require.NoError(t, f.chat.MarkSeen(context.Background(), msg.ID, f.sender.ID))

	require.Len(t, f.notifier.statusUpdates, 1)
	update := f.notifier.statusUpdates[0]
	require.Equal(t, f.sender.ID, update.userID)
	require.Equal(t, msg.ID, update.messageID)
	require.Equal(t, domain.StatusSeen, update.status)
}

func TestMarkSeenIsIdempotent(t *testing.T) {
	f := newChatFixture(t)

	msg, err := f.chat.SendDirect(context.Background(), f.sender.ID, f.sendInput())
	require.NoError(t, err)

	require.NoError(t, f.chat.MarkSeen(context.Background(), msg.ID, f.sender.ID))
	require.NoError(t, f.chat.MarkSeen(context.Background(), msg.ID, f.sender.ID))

	// The duplicate ack produces no second broadcast and never reaches
	// the storage layer: the status machine rejects seen -> seen.
	require.Len(t, f.notifier.statusUpdates, 1)
	require.Equal(t, 1, f.messages.markSeenCalls)
}

func TestMarkSeenUnknownMessage(t *testing.T) {
	f := newChatFixture(t)

	require.NoError(t, f.chat.MarkSeen(context.Background(), uuid.New(), f.sender.ID))
	require.Empty(t, f.notifier.statusUpdates)
}

func TestEditBySender(t *testing.T) {
	f := newChatFixture(t)

	msg, err := f.chat.SendDirect(context.Background(), f.sender.ID, f.sendInput())
	require.NoError(t, err)

	target := BroadcastTarget{ReceiverID: &f.receiver.ID}
	require.NoError(t, f.chat.Edit(context.Background(), f.sender.ID, msg.ID, "edited", target))

	stored, err := f.messages.GetByID(context.Background(), msg.ID)
	require.NoError(t, err)
	require.Equal(t, "edited", stored.Content)
	require.True(t, stored.IsEdited)
	require.Len(t, f.notifier.edited, 1)
}

func TestEditByNonSenderIsNoOp(t *testing.T) {
	f := newChatFixture(t)

	msg, err := f.chat.SendDirect(context.Background(), f.sender.ID, f.sendInput())
	require.NoError(t, err)

	target := BroadcastTarget{ReceiverID: &f.sender.ID}
	require.NoError(t, f.chat.Edit(context.Background(), f.receiver.ID, msg.ID, "hijacked", target))

	stored, err := f.messages.GetByID(context.Background(), msg.ID)
	require.NoError(t, err)
	require.Equal(t, "hello", stored.Content)
	require.False(t, stored.IsEdited)
	require.Empty(t, f.notifier.edited)
}

func TestDeleteBySender(t *testing.T) {
	f := newChatFixture(t)

	msg, err := f.chat.SendDirect(context.Background(), f.sender.ID, f.sendInput())
	require.NoError(t, err)

	target := BroadcastTarget{ReceiverID: &f.receiver.ID}
	require.NoError(t, f.chat.Delete(context.Background(), f.sender.ID, msg.ID, target))

	stored, err := f.messages.GetByID(context.Background(), msg.ID)
	require.NoError(t, err)
	require.True(t, stored.IsDeleted)
	require.Equal(t, domain.DeletedPlaceholder, stored.Content)
	require.Len(t, f.notifier.deleted, 1)
}

func TestRepeatDeleteRebroadcastsSameShape(t *testing.T) {
	f := newChatFixture(t)

	msg, err := f.chat.SendDirect(context.Background(), f.sender.ID, f.sendInput())
	require.NoError(t, err)

	target := BroadcastTarget{ReceiverID: &f.receiver.ID}
	require.NoError(t, f.chat.Delete(context.Background(), f.sender.ID, msg.ID, target))
	require.NoError(t, f.chat.Delete(context.Background(), f.sender.ID, msg.ID, target))

	// State is unchanged on repeat; the broadcast fires again with the
	// identical payload.
	stored, err := f.messages.GetByID(context.Background(), msg.ID)
	require.NoError(t, err)
	require.True(t, stored.IsDeleted)
	require.Equal(t, domain.DeletedPlaceholder, stored.Content)
	require.Len(t, f.notifier.deleted, 2)
	require.Equal(t, f.notifier.deleted[0], f.notifier.deleted[1])
}

func TestDeleteByNonSenderIsNoOp(t *testing.T) {
	f := newChatFixture(t)

	msg, err := f.chat.SendDirect(context.Background(), f.sender.ID, f.sendInput())
	require.NoError(t, err)

	target := BroadcastTarget{ReceiverID: &f.sender.ID}
	require.NoError(t, f.chat.Delete(context.Background(), f.receiver.ID, msg.ID, target))

	stored, err := f.messages.GetByID(context.Background(), msg.ID)
	require.NoError(t, err)
	require.False(t, stored.IsDeleted)
	require.Empty(t, f.notifier.deleted)
}

func TestHistoryPagination(t *testing.T) {
	f := newChatFixture(t)

	for i := 0; i < 25; i++ {
		_, err := f.chat.SendDirect(context.Background(), f.sender.ID, f.sendInput())
		require.NoError(t, err)
	}

	resp, err := f.chat.History(context.Background(), f.conv.ID, 1, 10)
	require.NoError(t, err)
	require.Len(t, resp.Messages, 10)
	require.Equal(t, 3, resp.TotalPages)
	require.Equal(t, 1, resp.CurrentPage)

	resp, err = f.chat.History(context.Background(), f.conv.ID, 3, 10)
	require.NoError(t, err)
	require.Len(t, resp.Messages, 5)
}

func TestHistoryDefaults(t *testing.T) {
	f := newChatFixture(t)

	resp, err := f.chat.History(context.Background(), f.conv.ID, 0, -1)
	require.NoError(t, err)
	require.NotNil(t, resp.Messages)
	require.Empty(t, resp.Messages)
	require.Equal(t, 1, resp.CurrentPage)
}

func TestGetOrCreateDirectReusesExisting(t *testing.T) {
	f := newChatFixture(t)

	conv, err := f.chat.GetOrCreateDirect(context.Background(), f.sender.ID, f.receiver.ID)
	require.NoError(t, err)
	require.Equal(t, f.conv.ID, conv.ID)

	other := uuid.New()
	created, err := f.chat.GetOrCreateDirect(context.Background(), f.sender.ID, other)
	require.NoError(t, err)
	require.NotEqual(t, f.conv.ID, created.ID)
	require.ElementsMatch(t, []uuid.UUID{f.sender.ID, other}, created.ParticipantIDs)
}

func TestClearConversation(t *testing.T) {
	f := newChatFixture(t)

	_, err := f.chat.SendDirect(context.Background(), f.sender.ID, f.sendInput())
	require.NoError(t, err)

	require.NoError(t, f.chat.ClearConversation(context.Background(), f.sender.ID, f.conv.ID))
	require.Empty(t, f.messages.msgs)
	require.Nil(t, f.conv.LastMessageID)
}

func TestClearConversationRequiresParticipant(t *testing.T) {
	f := newChatFixture(t)

	_, err := f.chat.SendDirect(context.Background(), f.sender.ID, f.sendInput())
	require.NoError(t, err)

	err = f.chat.ClearConversation(context.Background(), uuid.New(), f.conv.ID)
	require.ErrorIs(t, err, ErrNotParticipant)
	require.NotEmpty(t, f.messages.msgs)
}
