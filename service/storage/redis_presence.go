package storage

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// presence key: im:presence:<user>
// Value: gateway_id, TTL controls the online validity period.
func presenceKey(user string) string { return "im:presence:" + user }

// PresenceMirror shadows the in-process presence tracker into redis so
// sibling services (and future gateway nodes) can answer "is X online"
// without asking this process. Best-effort; callers log and move on.
type PresenceMirror struct {
	rdb       *redis.Client
	gatewayID string
	ttl       time.Duration
}

func NewPresenceMirror(rdb *redis.Client, gatewayID string, ttl time.Duration) *PresenceMirror {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &PresenceMirror{rdb: rdb, gatewayID: gatewayID, ttl: ttl}
}

// SetOnline marks the user online and renews the TTL.
func (m *PresenceMirror) SetOnline(ctx context.Context, user string) error {
	if m.rdb == nil {
		return errors.New("redis not initialized")
	}
	return m.rdb.Set(ctx, presenceKey(user), m.gatewayID, m.ttl).Err()
}

// SetOffline actively clears the user's presence key.
func (m *PresenceMirror) SetOffline(ctx context.Context, user string) error {
	if m.rdb == nil {
		return errors.New("redis not initialized")
	}
	return m.rdb.Del(ctx, presenceKey(user)).Err()
}

// Lookup reports which gateway (if any) currently holds the user.
func (m *PresenceMirror) Lookup(ctx context.Context, user string) (gatewayID string, online bool, err error) {
	if m.rdb == nil {
		return "", false, errors.New("redis not initialized")
	}
	val, err := m.rdb.Get(ctx, presenceKey(user)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// Refresh renews the entry for the periodic keepalive. A full SET rather
// than EXPIRE, so a key that already lapsed comes back.
func (m *PresenceMirror) Refresh(ctx context.Context, user string) error {
	return m.SetOnline(ctx, user)
}
