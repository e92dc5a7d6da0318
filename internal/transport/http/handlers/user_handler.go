package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/parley-chat/parley/internal/service"
	"github.com/parley-chat/parley/internal/transport/http/middleware"
)

type UserHandler struct {
	userService *service.UserService
	log         *slog.Logger
}

func NewUserHandler(userService *service.UserService, log *slog.Logger) *UserHandler {
	return &UserHandler{userService: userService, log: log}
}

func (h *UserHandler) Online(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.OnlineUsers(r.Context())
	if err != nil {
		h.log.Error("list online users", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (h *UserHandler) Search(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	query := r.URL.Query().Get("q")
	if query == "" {
		writeJSON(w, http.StatusOK, map[string]any{"users": []any{}})
		return
	}

	users, err := h.userService.Search(r.Context(), userID, query)
	if err != nil {
		h.log.Error("search users", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (h *UserHandler) Block(w http.ResponseWriter, r *http.Request) {
	h.setBlocked(w, r, true)
}

func (h *UserHandler) Unblock(w http.ResponseWriter, r *http.Request) {
	h.setBlocked(w, r, false)
}

func (h *UserHandler) setBlocked(w http.ResponseWriter, r *http.Request, blocked bool) {
	userID := middleware.GetUserID(r.Context())

	targetID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid user ID")
		return
	}

	if blocked {
		err = h.userService.Block(r.Context(), userID, targetID)
	} else {
		err = h.userService.Unblock(r.Context(), userID, targetID)
	}
	if err != nil {
		if errors.Is(err, service.ErrCannotBlockSelf) {
			writeError(w, http.StatusBadRequest, "INVALID_TARGET", err.Error())
		} else {
			h.log.Error("update block list", "target_id", targetID, "error", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"blocked": blocked})
}
