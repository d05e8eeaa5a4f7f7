package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const (
	sessionPrefix = "session:"
	lockPrefix    = "lock:"
)

// Sessions tracks which staff tokens are still valid. A token whose
// session key is gone is rejected even before it expires.
type Sessions struct {
	rdb *goredis.Client
}

func NewSessions(rdb *goredis.Client) *Sessions {
	return &Sessions{rdb: rdb}
}

// Create stores a session for userID and returns its id.
func (s *Sessions) Create(ctx context.Context, userID int64, ttl time.Duration) (string, error) {
	sid := uuid.NewString()
	if err := s.rdb.Set(ctx, sessionPrefix+sid, strconv.FormatInt(userID, 10), ttl).Err(); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return sid, nil
}

// Valid reports whether sid exists and belongs to userID.
func (s *Sessions) Valid(ctx context.Context, sid string, userID int64) (bool, error) {
	v, err := s.rdb.Get(ctx, sessionPrefix+sid).Result()
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read session: %w", err)
	}
	return v == strconv.FormatInt(userID, 10), nil
}

func (s *Sessions) Revoke(ctx context.Context, sid string) error {
	return s.rdb.Del(ctx, sessionPrefix+sid).Err()
}

// TryLock takes name for ttl if nobody holds it. The returned func releases
// it early.
func TryLock(ctx context.Context, rdb *goredis.Client, name string, ttl time.Duration) (release func(), ok bool, err error) {
	key := lockPrefix + name
	token := uuid.NewString()
	ok, err = rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil || !ok {
		return func() {}, false, err
	}
	return func() {
		// Only delete the lock if it is still ours.
		if v, err := rdb.Get(context.WithoutCancel(ctx), key).Result(); err == nil && v == token {
			rdb.Del(context.WithoutCancel(ctx), key)
		}
	}, true, nil
}
