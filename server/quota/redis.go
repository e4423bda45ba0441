// Package quota keeps per-session prompt budgets in Redis so they survive
// restarts and are shared across replicas.
package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"graphicarena/server/arena"
)

// DefaultTTL bounds how long an idle session's prompt set is kept.
const DefaultTTL = 30 * 24 * time.Hour

// admitScript adds ARGV[1] to the session set unless the set is full.
// Returns {allowed, size}.
var admitScript = redis.NewScript(`
	local key = KEYS[1]
	local member = ARGV[1]
	local limit = tonumber(ARGV[2])
	local ttl = tonumber(ARGV[3])

	if redis.call('SISMEMBER', key, member) == 1 then
		redis.call('EXPIRE', key, ttl)
		return {1, redis.call('SCARD', key)}
	end
	local size = redis.call('SCARD', key)
	if size >= limit then
		return {0, size}
	end
	redis.call('SADD', key, member)
	redis.call('EXPIRE', key, ttl)
	return {1, size + 1}
`)

// Redis implements arena.QuotaBackend on a Redis set per session.
type Redis struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedis creates a backend. A non-positive ttl uses DefaultTTL.
func NewRedis(client redis.UniversalClient, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: client, prefix: "arena:quota:", ttl: ttl}
}

// Connect parses url, pings the server and returns a backend.
func Connect(ctx context.Context, url string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedis(client, 0), nil
}

func (r *Redis) Admit(ctx context.Context, sessionID, key string, limit int) (bool, int, error) {
	res, err := admitScript.Run(ctx, r.client,
		[]string{r.prefix + sessionID},
		key, limit, int64(r.ttl/time.Second),
	).Int64Slice()
	if err != nil {
		return false, 0, fmt.Errorf("quota admit: %w", err)
	}
	if len(res) != 2 {
		return false, 0, fmt.Errorf("quota admit: unexpected reply %v", res)
	}
	return res[0] == 1, int(res[1]), nil
}

func (r *Redis) Close() error { return r.client.Close() }

var _ arena.QuotaBackend = (*Redis)(nil)
