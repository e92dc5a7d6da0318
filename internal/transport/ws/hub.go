package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// PresenceRecorder persists presence transitions. The hub invokes it
// once per 0↔1+ session-count edge, never once per raw connect or
// disconnect.
type PresenceRecorder interface {
	UserOnline(ctx context.Context, userID uuid.UUID)
	UserOffline(ctx context.Context, userID uuid.UUID, lastSeen time.Time)
}

// Hub is the connection registry and room membership table. It maps
// each user to its set of live sessions, groups sessions into personal
// and group rooms, and fans events out to them. All table mutations
// happen under one lock; per-session I/O stays outside it.
type Hub struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]map[*Client]struct{}
	rooms    map[string]map[*Client]struct{}

	presence PresenceRecorder
	log      *slog.Logger
}

func NewHub(presence PresenceRecorder, log *slog.Logger) *Hub {
	return &Hub{
		sessions: make(map[uuid.UUID]map[*Client]struct{}),
		rooms:    make(map[string]map[*Client]struct{}),
		presence: presence,
		log:      log,
	}
}

func personalRoom(userID uuid.UUID) string { return userID.String() }
func groupRoom(groupID uuid.UUID) string   { return "group_" + groupID.String() }

// Register adds a session, joins it to its personal room and to the
// group rooms for groupIDs (the user's memberships read at connect
// time). The first session for a user flips presence to online and
// broadcasts user_online to every other connected session.
func (h *Hub) Register(c *Client, groupIDs []uuid.UUID) {
	h.mu.Lock()
	set := h.sessions[c.userID]
	if set == nil {
		set = make(map[*Client]struct{})
		h.sessions[c.userID] = set
	}
	set[c] = struct{}{}
	first := len(set) == 1

	h.joinLocked(c, personalRoom(c.userID))
	for _, groupID := range groupIDs {
		h.joinLocked(c, groupRoom(groupID))
	}
	total := len(h.sessions)
	h.mu.Unlock()

	h.log.Info("session connected", "user_id", c.userID, "online_users", total)

	// Presence persistence runs outside the lock, so a near-simultaneous
	// last-disconnect for the same user can land its offline write after
	// this online write. In-memory reachability is unaffected, and the
	// stored flag corrects itself on the next presence edge.
	if first {
		h.presence.UserOnline(context.Background(), c.userID)
		h.broadcastPresence(EventTypeUserOnline, c.userID)
	}
}

// Deregister removes a session from the registry and from every room
// it joined. The last session for a user flips presence to offline,
// records lastSeen, and broadcasts user_offline.
func (h *Hub) Deregister(c *Client) {
	h.mu.Lock()
	set, ok := h.sessions[c.userID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, ok := set[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(set, c)
	last := len(set) == 0
	if last {
		delete(h.sessions, c.userID)
	}
	for room := range c.rooms {
		h.leaveLocked(c, room)
	}
	close(c.send)
	close(c.done)
	h.mu.Unlock()

	h.log.Info("session disconnected", "user_id", c.userID)

	if last {
		h.presence.UserOffline(context.Background(), c.userID, time.Now())
		h.broadcastPresence(EventTypeUserOffline, c.userID)
	}
}

// IsReachable reports whether the user has at least one live session.
// The delivery pipeline uses it to pick the initial message status.
func (h *Hub) IsReachable(userID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[userID]) > 0
}

// JoinGroupRoom pushes every live session of a user into a group room.
// Group administration calls this when membership changes so the user
// receives the group's broadcasts without reconnecting.
func (h *Hub) JoinGroupRoom(userID, groupID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.sessions[userID] {
		h.joinLocked(c, groupRoom(groupID))
	}
}

// LeaveGroupRoom removes every live session of a user from a group
// room.
func (h *Hub) LeaveGroupRoom(userID, groupID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.sessions[userID] {
		h.leaveLocked(c, groupRoom(groupID))
	}
}

// JoinGroup joins a single session to a group room (the client-driven
// join_group event).
func (h *Hub) JoinGroup(c *Client, groupID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.joinLocked(c, groupRoom(groupID))
}

// BroadcastToUser sends an event to every session in the user's
// personal room.
func (h *Hub) BroadcastToUser(userID uuid.UUID, event *Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.Error("marshaling event", "type", event.Type, "error", err)
		return
	}
	h.broadcastToRoom(personalRoom(userID), data, nil)
}

// BroadcastToGroup sends an event to every session in the group room.
func (h *Hub) BroadcastToGroup(groupID uuid.UUID, event *Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.Error("marshaling event", "type", event.Type, "error", err)
		return
	}
	h.broadcastToRoom(groupRoom(groupID), data, nil)
}

// RelayTyping forwards a typing or stop_typing signal. Group signals
// go to the group room excluding the sender's session; direct signals
// go to the receiver's personal room. Best-effort, nothing persisted.
func (h *Hub) RelayTyping(sender *Client, eventType string, in TypingInput) {
	event, err := NewEvent(eventType, TypingPayload{
		ConversationID: in.ConversationID,
		GroupID:        in.GroupID,
		UserID:         sender.userID,
		Username:       sender.username,
	})
	if err != nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	if in.GroupID != nil {
		h.broadcastToRoom(groupRoom(*in.GroupID), data, sender)
		return
	}
	if in.ReceiverID != nil {
		h.broadcastToRoom(personalRoom(*in.ReceiverID), data, sender)
	}
}

// broadcastPresence sends an online/offline transition to every
// session except the affected user's own.
func (h *Hub) broadcastPresence(eventType string, userID uuid.UUID) {
	event, err := NewEvent(eventType, PresencePayload{UserID: userID})
	if err != nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for uid, set := range h.sessions {
		if uid == userID {
			continue
		}
		for c := range set {
			c.enqueue(data)
		}
	}
}

func (h *Hub) broadcastToRoom(room string, data []byte, exclude *Client) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[room] {
		if c == exclude {
			continue
		}
		c.enqueue(data)
	}
}

func (h *Hub) joinLocked(c *Client, room string) {
	set := h.rooms[room]
	if set == nil {
		set = make(map[*Client]struct{})
		h.rooms[room] = set
	}
	set[c] = struct{}{}
	c.rooms[room] = struct{}{}
}

func (h *Hub) leaveLocked(c *Client, room string) {
	if set, ok := h.rooms[room]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(c.rooms, room)
}
