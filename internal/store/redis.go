package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/DoyleJ11/cardtable-backend/internal/room"
)

// Redis is the remote backend, for scale-out across processes and restart
// survival. Sliding expiration rides on GETEX so a read and its TTL re-arm
// are one round trip.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// DialRedis connects and pings once. Callers fall back to the in-process
// backend when this fails; per-request errors after a successful dial are
// surfaced, not masked.
func DialRedis(ctx context.Context, addr string, ttl time.Duration) (*Redis, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return &Redis{client: client, ttl: ttl}, nil
}

func (r *Redis) get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := r.client.GetEx(ctx, key, r.ttl).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, true, nil
}

func (r *Redis) set(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *Redis) delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

func (r *Redis) GetRoomByCode(ctx context.Context, code string) (*room.Room, bool, error) {
	data, ok, err := r.get(ctx, roomPrefix+code)
	if err != nil || !ok {
		return nil, false, err
	}
	var rm room.Room
	if err := json.Unmarshal(data, &rm); err != nil {
		return nil, false, err
	}
	return &rm, true, nil
}

func (r *Redis) SaveRoom(ctx context.Context, rm *room.Room) error {
	return r.set(ctx, roomPrefix+rm.Code, rm)
}

func (r *Redis) DeleteRoom(ctx context.Context, code string) error {
	return r.delete(ctx, roomPrefix+code)
}

func (r *Redis) GetSession(ctx context.Context, token string) (*room.Session, bool, error) {
	data, ok, err := r.get(ctx, sessionPrefix+token)
	if err != nil || !ok {
		return nil, false, err
	}
	var s room.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, false, err
	}
	return &s, true, nil
}

func (r *Redis) SaveSession(ctx context.Context, s *room.Session) error {
	return r.set(ctx, sessionPrefix+s.Token, s)
}

func (r *Redis) DeleteSession(ctx context.Context, token string) error {
	return r.delete(ctx, sessionPrefix+token)
}
