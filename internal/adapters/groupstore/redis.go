package groupstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/edgeauth/ldapauthd/internal/ports"
)

const defaultRedisPrefix = "groups:"

// Redis is a GroupStore backed by Redis, for multi-replica deployments
// that want to share membership snapshots. Redis expiry is a backstop
// only; the caller still applies its own TTL against FetchedAt, so the
// observable refresh behavior matches the in-memory store.
type Redis struct {
	client   redis.UniversalClient
	prefix   string
	backstop time.Duration
}

// NewRedis creates a Redis-backed store. backstop is the Redis key
// expiry, normally several multiples of the cache TTL.
func NewRedis(client redis.UniversalClient, backstop time.Duration) *Redis {
	return &Redis{
		client:   client,
		prefix:   defaultRedisPrefix,
		backstop: backstop,
	}
}

func (r *Redis) Get(ctx context.Context, username string) (ports.GroupEntry, bool, error) {
	data, err := r.client.Get(ctx, r.prefix+username).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ports.GroupEntry{}, false, nil
		}
		return ports.GroupEntry{}, false, fmt.Errorf("redis get: %w", err)
	}

	var entry ports.GroupEntry
	if unmarshalErr := json.Unmarshal([]byte(data), &entry); unmarshalErr != nil {
		return ports.GroupEntry{}, false, fmt.Errorf("unmarshal group entry: %w", unmarshalErr)
	}
	return entry, true, nil
}

func (r *Redis) Put(ctx context.Context, entry ports.GroupEntry) error {
	if entry.Username == "" {
		return errors.New("group entry username cannot be empty")
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal group entry: %w", err)
	}

	return r.client.Set(ctx, r.prefix+entry.Username, data, r.backstop).Err()
}
