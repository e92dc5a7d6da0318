package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/parley-chat/parley/internal/service"
	"github.com/parley-chat/parley/internal/transport/http/middleware"
)

type ChatHandler struct {
	chatService *service.ChatService
	log         *slog.Logger
}

func NewChatHandler(chatService *service.ChatService, log *slog.Logger) *ChatHandler {
	return &ChatHandler{chatService: chatService, log: log}
}

// ListConversations returns the caller's conversations, most recent
// activity first, each with its last message attached.
func (h *ChatHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	convs, err := h.chatService.ListConversations(r.Context(), userID)
	if err != nil {
		h.log.Error("list conversations", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"conversations": convs})
}

// CreateConversation finds or creates the direct conversation between
// the caller and the given receiver.
func (h *ChatHandler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var input struct {
		ReceiverID uuid.UUID `json:"receiverId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil || input.ReceiverID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	conv, err := h.chatService.GetOrCreateDirect(r.Context(), userID, input.ReceiverID)
	if err != nil {
		if errors.Is(err, service.ErrReceiverNotFound) {
			writeError(w, http.StatusNotFound, "USER_NOT_FOUND", "User not found")
		} else {
			h.log.Error("create conversation", "error", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	writeJSON(w, http.StatusOK, conv)
}

// Messages returns a page of a conversation's history, oldest first
// within the page.
func (h *ChatHandler) Messages(w http.ResponseWriter, r *http.Request) {
	conversationID, err := uuid.Parse(chi.URLParam(r, "conversationID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid conversation ID")
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	resp, err := h.chatService.History(r.Context(), conversationID, page, limit)
	if err != nil {
		h.log.Error("list messages", "conversation_id", conversationID, "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// ClearConversation deletes every message in a conversation the caller
// participates in.
func (h *ChatHandler) ClearConversation(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	conversationID, err := uuid.Parse(chi.URLParam(r, "conversationID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid conversation ID")
		return
	}

	if err := h.chatService.ClearConversation(r.Context(), userID, conversationID); err != nil {
		if errors.Is(err, service.ErrNotParticipant) {
			writeError(w, http.StatusForbidden, "FORBIDDEN", "You are not part of this conversation")
		} else {
			h.log.Error("clear conversation", "conversation_id", conversationID, "error", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Chat cleared"})
}
