package registry

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix prefixes directory keys: huddle:registry:<type>.
const DefaultRedisPrefix = "huddle:registry:"

// redisClient is the subset of *redis.Client the directory uses.
type redisClient interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisDirectory is a Directory shared by every process pointed at the same
// Redis. Entries expire unless their registry keeps refreshing them, so a
// crashed endpoint drops out after one TTL.
type RedisDirectory struct {
	rdb    redisClient
	prefix string
}

// RedisOption configures a RedisDirectory.
type RedisOption func(*RedisDirectory)

// WithRedisPrefix sets the key prefix. Default: "huddle:registry:".
func WithRedisPrefix(prefix string) RedisOption {
	return func(d *RedisDirectory) {
		d.prefix = prefix
	}
}

// NewRedisDirectory returns a Directory backed by rdb.
func NewRedisDirectory(rdb *redis.Client, opts ...RedisOption) *RedisDirectory {
	return newRedisDirectory(rdb, opts...)
}

func newRedisDirectory(rdb redisClient, opts ...RedisOption) *RedisDirectory {
	d := &RedisDirectory{rdb: rdb, prefix: DefaultRedisPrefix}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *RedisDirectory) key(typ string) string {
	return d.prefix + typ
}

// Register implements Directory.
func (d *RedisDirectory) Register(ctx context.Context, typ, addr string, ttl time.Duration) error {
	return d.rdb.Set(ctx, d.key(typ), addr, ttl).Err()
}

// Lookup implements Directory.
func (d *RedisDirectory) Lookup(ctx context.Context, typ string) (string, error) {
	addr, err := d.rdb.Get(ctx, d.key(typ)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotRegistered
	}
	if err != nil {
		return "", err
	}
	return addr, nil
}

// Unregister implements Directory. An entry another process has since
// taken over is left alone.
func (d *RedisDirectory) Unregister(ctx context.Context, typ, addr string) error {
	current, err := d.Lookup(ctx, typ)
	if errors.Is(err, ErrNotRegistered) {
		return nil
	}
	if err != nil {
		return err
	}
	if current != addr {
		return nil
	}
	return d.rdb.Del(ctx, d.key(typ)).Err()
}

// RedisConfig configures DialRedis.
type RedisConfig struct {
	URL          string // redis://[user:pass@]host:port/db
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PingTimeout  time.Duration
}

// DialRedis connects to Redis and verifies the connection with a PING.
func DialRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}
	pingTimeout := cfg.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = 5 * time.Second
	}

	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}
