package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/parley-chat/parley/internal/repository"
)

// PresenceTracker persists presence edges: the durable copy on the
// user row and the volatile copy in the presence store. The connection
// registry calls it exactly once per 0↔1+ session-count transition.
// Persistence failures are logged and do not block the transition.
type PresenceTracker struct {
	userRepo repository.UserRepository
	store    repository.PresenceStore
	log      *slog.Logger
}

func NewPresenceTracker(userRepo repository.UserRepository, store repository.PresenceStore, log *slog.Logger) *PresenceTracker {
	return &PresenceTracker{
		userRepo: userRepo,
		store:    store,
		log:      log,
	}
}

func (t *PresenceTracker) UserOnline(ctx context.Context, userID uuid.UUID) {
	if err := t.userRepo.SetPresence(ctx, userID, true, time.Now()); err != nil {
		t.log.Error("persisting online presence", "user_id", userID, "error", err)
	}
	if err := t.store.SetOnline(ctx, userID); err != nil {
		t.log.Error("updating online set", "user_id", userID, "error", err)
	}
}

func (t *PresenceTracker) UserOffline(ctx context.Context, userID uuid.UUID, lastSeen time.Time) {
	if err := t.userRepo.SetPresence(ctx, userID, false, lastSeen); err != nil {
		t.log.Error("persisting offline presence", "user_id", userID, "error", err)
	}
	if err := t.store.SetOffline(ctx, userID, lastSeen); err != nil {
		t.log.Error("updating online set", "user_id", userID, "error", err)
	}
}
