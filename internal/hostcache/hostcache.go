// Package hostcache shares host metadata between processes through Redis.
//
// Type metadata does not change while a host session is alive, so entries
// are never invalidated. They expire after a TTL and live under a session
// namespace, which keeps answers from different host sessions apart.
package hostcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/Kirdow/Coral/pkg/coral"
)

// Config holds cache configuration
type Config struct {
	// Addr is the Redis server address (host:port)
	Addr string
	// Password is the Redis password (optional)
	Password string
	// DB is the Redis database number
	DB int
	// Prefix is prepended to every key
	Prefix string
	// Session namespaces the entries of one host session. Empty means a
	// fresh random session.
	Session string
	// TTL is how long an entry is kept
	TTL time.Duration
	// FetchTimeout bounds a fetch shared by concurrent callers. It runs
	// detached from any one caller's context.
	FetchTimeout time.Duration
}

// DefaultConfig returns a default cache configuration
func DefaultConfig() Config {
	return Config{
		Addr:   "localhost:6379",
		Prefix:       "coral:",
		TTL:          10 * time.Minute,
		FetchTimeout: 30 * time.Second,
	}
}

// Backend is a coral.Backend that answers from Redis before asking the next
// backend. Unresolved answers and failures are never stored.
type Backend struct {
	next   coral.Backend
	client *redis.Client
	owned  bool
	config Config
	logger *zap.Logger
	group  singleflight.Group
	closed atomic.Bool
}

var (
	_ coral.Backend         = (*Backend)(nil)
	_ coral.ExceptionSource = (*Backend)(nil)
)

// New connects to Redis and wraps next
func New(next coral.Backend, config Config, logger *zap.Logger) (*Backend, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", config.Addr, err)
	}

	b := NewWithClient(next, client, config, logger)
	b.owned = true
	return b, nil
}

// NewWithClient wraps next using an existing Redis client. The client is not
// closed by Close.
func NewWithClient(next coral.Backend, client *redis.Client, config Config, logger *zap.Logger) *Backend {
	defaults := DefaultConfig()
	if config.Prefix == "" {
		config.Prefix = defaults.Prefix
	}
	if config.TTL <= 0 {
		config.TTL = defaults.TTL
	}
	if config.FetchTimeout <= 0 {
		config.FetchTimeout = defaults.FetchTimeout
	}
	if config.Session == "" {
		config.Session = uuid.NewString()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Backend{
		next:   next,
		client: client,
		config: config,
		logger: logger,
	}
}

// Session returns the namespace entries are stored under
func (b *Backend) Session() string {
	return b.config.Session
}

func (b *Backend) key(kind, name string) string {
	return b.config.Prefix + b.config.Session + ":" + kind + ":" + name
}

// cached answers from Redis or runs fetch once for all concurrent callers
// asking for the same key. The shared fetch does not inherit the caller's
// cancellation, so a caller giving up never fails the others waiting on it.
func cached[T any](ctx context.Context, b *Backend, key string, fetch func(context.Context) (T, error)) (T, error) {
	var zero T
	if b.closed.Load() {
		return zero, fmt.Errorf("%w: cache closed", coral.ErrHostUnavailable)
	}

	data, err := b.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var v T
		if err := json.Unmarshal(data, &v); err == nil {
			return v, nil
		}
		b.logger.Warn("discarding corrupt cache entry", zap.String("key", key))
	case !errors.Is(err, redis.Nil):
		b.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
	}

	ch := b.group.DoChan(key, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.config.FetchTimeout)
		defer cancel()

		v, err := fetch(fetchCtx)
		if err != nil {
			return v, err
		}
		data, err := json.Marshal(v)
		if err != nil {
			b.logger.Warn("cache encode failed", zap.String("key", key), zap.Error(err))
			return v, nil
		}
		if err := b.client.Set(fetchCtx, key, data, b.config.TTL).Err(); err != nil {
			b.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
		}
		return v, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			if errors.Is(res.Err, context.DeadlineExceeded) {
				return zero, fmt.Errorf("%w: %s: fetch timed out after %s", coral.ErrHostUnavailable, key, b.config.FetchTimeout)
			}
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

// ResolveType implements coral.Backend
func (b *Backend) ResolveType(ctx context.Context, name string) (*coral.TypeRecord, error) {
	return cached(ctx, b, b.key("type", name), func(ctx context.Context) (*coral.TypeRecord, error) {
		rec, err := b.next.ResolveType(ctx, name)
		if err == nil && rec == nil {
			err = fmt.Errorf("%w: %s", coral.ErrUnresolvedType, name)
		}
		return rec, err
	})
}

// ResolveObjectType implements coral.Backend. Object handles may be reused
// for other objects, so their types are not cached.
func (b *Backend) ResolveObjectType(ctx context.Context, handle coral.ObjectHandle) (*coral.TypeRecord, error) {
	if b.closed.Load() {
		return nil, fmt.Errorf("%w: cache closed", coral.ErrHostUnavailable)
	}
	return b.next.ResolveObjectType(ctx, handle)
}

// ResolveBaseType implements coral.Backend. A type without a base is
// cached as null.
func (b *Backend) ResolveBaseType(ctx context.Context, id coral.TypeID) (*coral.TypeRecord, error) {
	return cached(ctx, b, b.key("base", string(id)), func(ctx context.Context) (*coral.TypeRecord, error) {
		return b.next.ResolveBaseType(ctx, id)
	})
}

// EnumerateFields implements coral.Backend
func (b *Backend) EnumerateFields(ctx context.Context, id coral.TypeID) ([]coral.FieldRecord, error) {
	return cached(ctx, b, b.key("fields", string(id)), func(ctx context.Context) ([]coral.FieldRecord, error) {
		fields, err := b.next.EnumerateFields(ctx, id)
		if err == nil && fields == nil {
			fields = []coral.FieldRecord{}
		}
		return fields, err
	})
}

// EnumerateMethods implements coral.Backend
func (b *Backend) EnumerateMethods(ctx context.Context, id coral.TypeID) ([]coral.MethodRecord, error) {
	return cached(ctx, b, b.key("methods", string(id)), func(ctx context.Context) ([]coral.MethodRecord, error) {
		methods, err := b.next.EnumerateMethods(ctx, id)
		if err == nil && methods == nil {
			methods = []coral.MethodRecord{}
		}
		return methods, err
	})
}

// IsAssignable implements coral.Backend
func (b *Backend) IsAssignable(ctx context.Context, source, target coral.TypeID) (bool, error) {
	pair := strconv.Quote(string(source)) + "->" + strconv.Quote(string(target))
	return cached(ctx, b, b.key("assign", pair), func(ctx context.Context) (bool, error) {
		return b.next.IsAssignable(ctx, source, target)
	})
}

// SetExceptionHandler implements coral.ExceptionSource by forwarding to the
// wrapped backend when it reports exceptions
func (b *Backend) SetExceptionHandler(handler func(coral.HostException)) {
	if src, ok := b.next.(coral.ExceptionSource); ok {
		src.SetExceptionHandler(handler)
	}
}

// Flush removes every entry of this session
func (b *Backend) Flush(ctx context.Context) error {
	// Use SCAN to find all keys of the session
	iter := b.client.Scan(ctx, 0, b.config.Prefix+b.config.Session+":*", 0).Iterator()
	for iter.Next(ctx) {
		if err := b.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// Close closes the wrapped backend and, if New created it, the Redis client
func (b *Backend) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := b.next.Close()
	if b.owned {
		if cerr := b.client.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
