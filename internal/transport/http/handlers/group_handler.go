package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/parley-chat/parley/internal/service"
	"github.com/parley-chat/parley/internal/transport/http/middleware"
	"github.com/parley-chat/parley/pkg/validator"
)

type GroupHandler struct {
	groupService *service.GroupService
	log          *slog.Logger
}

func NewGroupHandler(groupService *service.GroupService, log *slog.Logger) *GroupHandler {
	return &GroupHandler{groupService: groupService, log: log}
}

func (h *GroupHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	groups, err := h.groupService.List(r.Context(), userID)
	if err != nil {
		h.log.Error("list groups", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"groups": groups})
}

func (h *GroupHandler) ListPublic(w http.ResponseWriter, r *http.Request) {
	groups, err := h.groupService.ListPublic(r.Context())
	if err != nil {
		h.log.Error("list public groups", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"groups": groups})
}

func (h *GroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var input service.CreateGroupInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if errs := validator.Validate(input); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	group, err := h.groupService.Create(r.Context(), userID, input)
	if err != nil {
		h.log.Error("create group", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}

	writeJSON(w, http.StatusCreated, group)
}

func (h *GroupHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	actorID := middleware.GetUserID(r.Context())

	groupID, targetID, ok := h.memberParams(w, r)
	if !ok {
		return
	}

	group, err := h.groupService.AddMember(r.Context(), actorID, groupID, targetID)
	if err != nil {
		h.writeGroupError(w, "add member", err)
		return
	}

	writeJSON(w, http.StatusOK, group)
}

func (h *GroupHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	actorID := middleware.GetUserID(r.Context())

	groupID, targetID, ok := h.memberParams(w, r)
	if !ok {
		return
	}

	group, err := h.groupService.RemoveMember(r.Context(), actorID, groupID, targetID)
	if err != nil {
		h.writeGroupError(w, "remove member", err)
		return
	}

	writeJSON(w, http.StatusOK, group)
}

func (h *GroupHandler) Rename(w http.ResponseWriter, r *http.Request) {
	actorID := middleware.GetUserID(r.Context())

	groupID, err := uuid.Parse(chi.URLParam(r, "groupID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid group ID")
		return
	}

	var input struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	group, err := h.groupService.Rename(r.Context(), actorID, groupID, input.Name)
	if err != nil {
		h.writeGroupError(w, "rename group", err)
		return
	}

	writeJSON(w, http.StatusOK, group)
}

func (h *GroupHandler) Join(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	code := chi.URLParam(r, "inviteCode")

	group, err := h.groupService.JoinByCode(r.Context(), userID, code)
	if err != nil {
		if errors.Is(err, service.ErrInvalidInviteCode) {
			writeError(w, http.StatusNotFound, "INVALID_INVITE", "Invalid or expired invite link")
		} else {
			h.log.Error("join group", "error", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	writeJSON(w, http.StatusOK, group)
}

func (h *GroupHandler) SetAdminOnly(w http.ResponseWriter, r *http.Request) {
	actorID := middleware.GetUserID(r.Context())

	groupID, err := uuid.Parse(chi.URLParam(r, "groupID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid group ID")
		return
	}

	var input struct {
		OnlyAdminCanMessage bool `json:"onlyAdminCanMessage"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	group, err := h.groupService.SetAdminOnly(r.Context(), actorID, groupID, input.OnlyAdminCanMessage)
	if err != nil {
		h.writeGroupError(w, "update group settings", err)
		return
	}

	writeJSON(w, http.StatusOK, group)
}

func (h *GroupHandler) memberParams(w http.ResponseWriter, r *http.Request) (groupID, targetID uuid.UUID, ok bool) {
	groupID, err := uuid.Parse(chi.URLParam(r, "groupID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid group ID")
		return uuid.Nil, uuid.Nil, false
	}

	targetID, err = uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid user ID")
		return uuid.Nil, uuid.Nil, false
	}

	return groupID, targetID, true
}

func (h *GroupHandler) writeGroupError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrGroupNotFound):
		writeError(w, http.StatusNotFound, "GROUP_NOT_FOUND", "Group not found")
	case errors.Is(err, service.ErrNotGroupAdmin):
		writeError(w, http.StatusForbidden, "NOT_ADMIN", "Only the group admin can do this")
	case errors.Is(err, service.ErrCannotRemoveAdmin):
		writeError(w, http.StatusBadRequest, "CANNOT_REMOVE_ADMIN", "The admin cannot be removed")
	case errors.Is(err, service.ErrGroupNameRequired):
		writeError(w, http.StatusBadRequest, "NAME_REQUIRED", "Name is required")
	default:
		h.log.Error(op, "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
	}
}
