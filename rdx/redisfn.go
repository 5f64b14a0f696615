// Package rdx wraps the Redis client: connection, short-lived per-key locks
// and processed-event marks.
package rdx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Connect dials Redis and pings it.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	conn := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     20,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.Ping(pingCtx).Err(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return conn, nil
}

// ErrLocked is returned when another holder owns the lock.
var ErrLocked = errors.New("rdx: lock held")

// unlockScript deletes the key only if it still carries our token, so an
// expired lock taken over by another caller is never released by us.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Locker hands out SetNX locks with a TTL.
type Locker struct {
	conn   *redis.Client
	prefix string
	ttl    time.Duration
}

func NewLocker(conn *redis.Client, prefix string, ttl time.Duration) *Locker {
	return &Locker{conn: conn, prefix: prefix, ttl: ttl}
}

// Acquire takes the lock for key and returns its release func.
func (l *Locker) Acquire(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	full := l.prefix + key
	ok, err := l.conn.SetNX(ctx, full, token, l.ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLocked
	}
	return func() {
		// released on a fresh context: the request may already be cancelled
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = unlockScript.Run(ctx, l.conn, []string{full}, token).Err()
	}, nil
}

// Marks remembers processed identifiers (webhook event IDs) for a while.
type Marks struct {
	conn   *redis.Client
	prefix string
	ttl    time.Duration
}

func NewMarks(conn *redis.Client, prefix string, ttl time.Duration) *Marks {
	return &Marks{conn: conn, prefix: prefix, ttl: ttl}
}

func (m *Marks) Seen(ctx context.Context, id string) (bool, error) {
	n, err := m.conn.Exists(ctx, m.prefix+id).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (m *Marks) Mark(ctx context.Context, id string) error {
	return m.conn.Set(ctx, m.prefix+id, time.Now().UTC().Format(time.RFC3339), m.ttl).Err()
}
