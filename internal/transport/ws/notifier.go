package ws

import (
	"log/slog"

	"github.com/google/uuid"
	"github.com/parley-chat/parley/internal/domain"
	"github.com/parley-chat/parley/internal/service"
)

// HubNotifier implements the service layer's Notifier and
// GroupNotifier interfaces on top of the Hub.
type HubNotifier struct {
	hub *Hub
	log *slog.Logger
}

func NewHubNotifier(hub *Hub, log *slog.Logger) *HubNotifier {
	return &HubNotifier{hub: hub, log: log}
}

func (n *HubNotifier) NotifyDirectMessage(receiverID uuid.UUID, msg *domain.Message) {
	event, err := NewEvent(EventTypeReceiveMessage, msg)
	if err != nil {
		n.log.Error("marshaling receive_message", "error", err)
		return
	}
	n.hub.BroadcastToUser(receiverID, event)
}

func (n *HubNotifier) NotifyStatusUpdate(userID, messageID uuid.UUID, status domain.MessageStatus) {
	event, err := NewEvent(EventTypeMessageStatusUpdated, StatusUpdatePayload{
		MessageID: messageID,
		Status:    status,
	})
	if err != nil {
		return
	}
	n.hub.BroadcastToUser(userID, event)
}

func (n *HubNotifier) NotifyMessageEdited(target service.BroadcastTarget, msg *domain.Message) {
	event, err := NewEvent(EventTypeMessageEdited, msg)
	if err != nil {
		n.log.Error("marshaling message_edited", "error", err)
		return
	}
	n.broadcastToTarget(target, event)
}

func (n *HubNotifier) NotifyMessageDeleted(target service.BroadcastTarget, messageID uuid.UUID) {
	event, err := NewEvent(EventTypeMessageDeleted, MessageDeletedPayload{MessageID: messageID})
	if err != nil {
		return
	}
	n.broadcastToTarget(target, event)
}

func (n *HubNotifier) NotifyGroupMessage(groupID uuid.UUID, msg *domain.Message) {
	event, err := NewEvent(EventTypeReceiveGroupMessage, GroupMessagePayload{
		GroupID: groupID,
		Message: msg,
	})
	if err != nil {
		n.log.Error("marshaling receive_group_message", "error", err)
		return
	}
	n.hub.BroadcastToGroup(groupID, event)
}

func (n *HubNotifier) NotifyGroupCreated(userID uuid.UUID, group *domain.Group) {
	event, err := NewEvent(EventTypeGroupCreated, group)
	if err != nil {
		return
	}
	n.hub.BroadcastToUser(userID, event)
}

func (n *HubNotifier) NotifyGroupUpdated(groupID uuid.UUID, group *domain.Group) {
	event, err := NewEvent(EventTypeGroupUpdated, group)
	if err != nil {
		return
	}
	n.hub.BroadcastToGroup(groupID, event)
}

func (n *HubNotifier) NotifyMemberRemoved(userID, groupID uuid.UUID) {
	event, err := NewEvent(EventTypeGroupMemberRemoved, MemberRemovedPayload{
		GroupID: groupID,
		UserID:  userID,
	})
	if err != nil {
		return
	}
	n.hub.BroadcastToUser(userID, event)
}

func (n *HubNotifier) broadcastToTarget(target service.BroadcastTarget, event *Event) {
	switch {
	case target.GroupID != nil:
		n.hub.BroadcastToGroup(*target.GroupID, event)
	case target.ReceiverID != nil:
		n.hub.BroadcastToUser(*target.ReceiverID, event)
	}
}

func (n *HubNotifier) JoinGroupRoom(userID, groupID uuid.UUID) {
	n.hub.JoinGroupRoom(userID, groupID)
}

func (n *HubNotifier) LeaveGroupRoom(userID, groupID uuid.UUID) {
	n.hub.LeaveGroupRoom(userID, groupID)
}
