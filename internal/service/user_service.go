package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/parley-chat/parley/internal/domain"
	"github.com/parley-chat/parley/internal/repository"
)

var ErrCannotBlockSelf = errors.New("you cannot block yourself")

type UserService struct {
	userRepo repository.UserRepository
	presence repository.PresenceStore
}

func NewUserService(userRepo repository.UserRepository, presence repository.PresenceStore) *UserService {
	return &UserService{
		userRepo: userRepo,
		presence: presence,
	}
}

// OnlineUsers reads the online set from the presence store and
// resolves it against the user table.
func (s *UserService) OnlineUsers(ctx context.Context) ([]domain.User, error) {
	ids, err := s.presence.OnlineUserIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading online set: %w", err)
	}
	users, err := s.userRepo.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []domain.User{}
	}
	return users, nil
}

// Search finds users by username substring, excluding the caller.
func (s *UserService) Search(ctx context.Context, userID uuid.UUID, query string) ([]domain.User, error) {
	users, err := s.userRepo.Search(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []domain.User{}
	}
	return users, nil
}

// Block adds a user to the caller's block list. Blocking is
// unilateral; either direction blocks direct messages both ways.
func (s *UserService) Block(ctx context.Context, userID, targetID uuid.UUID) error {
	if userID == targetID {
		return ErrCannotBlockSelf
	}
	return s.userRepo.Block(ctx, userID, targetID)
}

// Unblock removes a user from the caller's block list.
func (s *UserService) Unblock(ctx context.Context, userID, targetID uuid.UUID) error {
	return s.userRepo.Unblock(ctx, userID, targetID)
}
