package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/parley-chat/parley/internal/domain"
	"github.com/parley-chat/parley/internal/service"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	writeWait    = 10 * time.Second
	pingInterval = 30 * time.Second
	sendBufSize  = 256
)

// Client represents a single authenticated WebSocket session.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	userID   uuid.UUID
	username string

	chat *service.ChatService
	log  *slog.Logger

	send chan []byte
	done chan struct{}

	// rooms this session joined; guarded by hub.mu.
	rooms map[string]struct{}
}

func NewClient(hub *Hub, conn *websocket.Conn, userID uuid.UUID, username string, chat *service.ChatService, log *slog.Logger) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		userID:   userID,
		username: username,
		chat:     chat,
		log:      log,
		send:     make(chan []byte, sendBufSize),
		done:     make(chan struct{}),
		rooms:    make(map[string]struct{}),
	}
}

// ReadPump reads events from the WebSocket and dispatches them. Each
// event is handled in its own fault scope: a failing handler reports
// to this session and the loop keeps going.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Deregister(c)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		var event Event
		err := wsjson.Read(context.Background(), c.conn, &event)
		if err != nil {
			if websocket.CloseStatus(err) == -1 {
				c.log.Debug("read error", "user_id", c.userID, "error", err)
			}
			return
		}

		c.handleEvent(&event)
	}
}

// WritePump writes queued events to the WebSocket and keeps the
// connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := c.conn.Write(ctx, websocket.MessageText, message)
			cancel()
			if err != nil {
				c.log.Debug("write error", "user_id", c.userID, "error", err)
				return
			}

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := c.conn.Ping(ctx)
			cancel()
			if err != nil {
				return
			}

		case <-c.done:
			return
		}
	}
}

// handleEvent routes an incoming client event.
func (c *Client) handleEvent(event *Event) {
	ctx := context.Background()

	switch event.Type {
	case EventTypeSendMessage:
		var in service.SendMessageInput
		if err := json.Unmarshal(event.Payload, &in); err != nil {
			c.sendError("Invalid send_message payload")
			return
		}
		c.handleSendMessage(ctx, in)

	case EventTypeMarkMessageSeen:
		var p MarkSeenPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			return
		}
		if err := c.chat.MarkSeen(ctx, p.MessageID, p.SenderID); err != nil {
			c.log.Error("marking message seen", "message_id", p.MessageID, "error", err)
		}

	case EventTypeTyping, EventTypeStopTyping:
		var in TypingInput
		if err := json.Unmarshal(event.Payload, &in); err != nil {
			return
		}
		c.hub.RelayTyping(c, event.Type, in)

	case EventTypeEditMessage:
		var p EditMessagePayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			return
		}
		target := service.BroadcastTarget{GroupID: p.GroupID, ReceiverID: p.TargetID}
		if err := c.chat.Edit(ctx, c.userID, p.MessageID, p.NewContent, target); err != nil {
			c.log.Error("editing message", "message_id", p.MessageID, "error", err)
		}

	case EventTypeDeleteMessage:
		var p DeleteMessagePayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			return
		}
		target := service.BroadcastTarget{GroupID: p.GroupID, ReceiverID: p.TargetID}
		if err := c.chat.Delete(ctx, c.userID, p.MessageID, target); err != nil {
			c.log.Error("deleting message", "message_id", p.MessageID, "error", err)
		}

	case EventTypeJoinGroup:
		var p JoinGroupPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			return
		}
		c.hub.JoinGroup(c, p.GroupID)

	case EventTypeSendGroupMessage:
		var in service.GroupMessageInput
		if err := json.Unmarshal(event.Payload, &in); err != nil {
			c.sendError("Invalid send_group_message payload")
			return
		}
		c.handleSendGroupMessage(ctx, in)

	default:
		c.log.Debug("unknown event type", "type", event.Type)
	}
}

func (c *Client) handleSendMessage(ctx context.Context, in service.SendMessageInput) {
	msg, err := c.chat.SendDirect(ctx, c.userID, in)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrReceiverNotFound),
			errors.Is(err, service.ErrBlockedByReceiver),
			errors.Is(err, service.ErrReceiverBlocked):
			c.sendError(err.Error())
		default:
			c.log.Error("sending message", "user_id", c.userID, "error", err)
			c.sendError("Failed to send message")
		}
		return
	}

	c.sendEvent(EventTypeMessageSent, msg)

	// When the receiver was reachable the sender learns the delivered
	// status in the same logical operation, without waiting for a
	// seen event.
	if msg.Status == domain.StatusDelivered {
		c.sendEvent(EventTypeMessageStatusUpdated, StatusUpdatePayload{
			MessageID: msg.ID,
			Status:    domain.StatusDelivered,
		})
	}
}

func (c *Client) handleSendGroupMessage(ctx context.Context, in service.GroupMessageInput) {
	_, err := c.chat.SendGroup(ctx, c.userID, in)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrGroupNotFound):
			// Deliberate no-error policy: a send to an unknown group
			// is dropped without telling the sender.
			c.log.Debug("group message to unknown group", "group_id", in.GroupID)
		case errors.Is(err, service.ErrAdminOnly):
			c.sendError(err.Error())
		default:
			c.log.Error("sending group message", "group_id", in.GroupID, "error", err)
			c.sendError("Failed to send group message")
		}
	}
	// The sender receives the message through its own group room
	// membership; no separate echo.
}

// enqueue queues data for delivery, dropping it if the session's
// buffer is full. Callers hold the hub lock or run on this session's
// own goroutine, so the queue cannot be closed mid-send.
func (c *Client) enqueue(data []byte) {
	select {
	case c.send <- data:
	default:
		c.log.Warn("dropping event for slow session", "user_id", c.userID)
	}
}

func (c *Client) sendEvent(eventType string, payload any) {
	event, err := NewEvent(eventType, payload)
	if err != nil {
		c.log.Error("marshaling event", "type", eventType, "error", err)
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	c.enqueue(data)
}

func (c *Client) sendError(message string) {
	c.sendEvent(EventTypeError, ErrorPayload{Message: message})
}
