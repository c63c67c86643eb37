// Package blacklist mirrors guild-level player blocks into Redis so other
// bridge instances and dashboards can see them. Records are simple
// key-value pairs with TTL-based expiry:
//
//	Key:   block:<guildID>:<username>
//	Value: <reason>
//	TTL:   block duration (0 = permanent)
package blacklist

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// BlockPrefix is the Redis key prefix for block records.
const BlockPrefix = "block:"

// Store manages block records in Redis.
type Store struct {
	client *redis.Client
}

// NewStore creates a block store using the provided Redis client.
func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

func key(guildID, username string) string {
	return BlockPrefix + guildID + ":" + strings.ToLower(username)
}

// Block records a player block for a guild. A zero duration means the block
// never expires.
func (s *Store) Block(ctx context.Context, guildID, username, reason string, duration time.Duration) error {
	return s.client.Set(ctx, key(guildID, username), reason, duration).Err()
}

// Unblock removes a block immediately.
func (s *Store) Unblock(ctx context.Context, guildID, username string) error {
	return s.client.Del(ctx, key(guildID, username)).Err()
}

// IsBlocked checks whether a player is currently blocked for a guild.
// Returns (blocked, remaining, reason, error). Redis errors are returned so
// callers can decide the policy; the bridge fails open.
func (s *Store) IsBlocked(ctx context.Context, guildID, username string) (bool, time.Duration, string, error) {
	k := key(guildID, username)

	reason, err := s.client.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		return false, 0, "", nil
	}
	if err != nil {
		return false, 0, "", err
	}

	ttl, err := s.client.TTL(ctx, k).Result()
	if err != nil || ttl < 0 {
		// Block exists but the TTL is unreadable or the key is permanent.
		return true, 0, reason, nil
	}
	return true, ttl, reason, nil
}

// List returns the usernames currently blocked for a guild.
func (s *Store) List(ctx context.Context, guildID string) ([]string, error) {
	prefix := BlockPrefix + guildID + ":"
	var (
		out    []string
		cursor uint64
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, prefix+"*", 100).Result()
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			out = append(out, strings.TrimPrefix(k, prefix))
		}
		if next == 0 {
			return out, nil
		}
		cursor = next
	}
}
