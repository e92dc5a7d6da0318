// Package redispresence keeps the hot side of user presence in Redis:
// a set of online user IDs plus a last-seen hash. The primary database
// keeps the durable copy; this store exists so presence lookups never
// touch Postgres.
package redispresence

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	onlineSetKey = "presence:online"
	lastSeenKey  = "presence:last_seen"
)

type Store struct {
	rdb *redis.Client
}

func NewStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

func (s *Store) SetOnline(ctx context.Context, userID uuid.UUID) error {
	return s.rdb.SAdd(ctx, onlineSetKey, userID.String()).Err()
}

func (s *Store) SetOffline(ctx context.Context, userID uuid.UUID, lastSeen time.Time) error {
	pipe := s.rdb.TxPipeline()
	pipe.SRem(ctx, onlineSetKey, userID.String())
	pipe.HSet(ctx, lastSeenKey, userID.String(), strconv.FormatInt(lastSeen.UnixMilli(), 10))
	_, err := pipe.Exec(ctx)
	return err
}

func (s *Store) OnlineUserIDs(ctx context.Context) ([]uuid.UUID, error) {
	members, err := s.rdb.SMembers(ctx, onlineSetKey).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		id, err := uuid.Parse(m)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}
