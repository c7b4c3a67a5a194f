// Package session turns configuration into a connected HostInstance
package session

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Kirdow/Coral/internal/cli/config"
	"github.com/Kirdow/Coral/internal/hostcache"
	"github.com/Kirdow/Coral/internal/hostrpc"
	"github.com/Kirdow/Coral/pkg/coral"
)

// Session is an open connection to a host
type Session struct {
	Host *coral.HostInstance

	cache  *hostcache.Backend
	logger *zap.Logger
}

// Option configures Open
type Option func(*options)

type options struct {
	logger      *zap.Logger
	onException func(coral.HostException)
}

// WithLogger sets the session logger
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithExceptionHandler replaces the default handler, which logs host
// exceptions as warnings
func WithExceptionHandler(handler func(coral.HostException)) Option {
	return func(o *options) {
		o.onException = handler
	}
}

// Open connects to the host described by cfg. With the stdio transport the
// host command is started as a child process.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (*Session, error) {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.onException == nil {
		logger := o.logger
		o.onException = func(e coral.HostException) {
			logger.Warn("host exception", zap.String("message", e.Message))
		}
	}

	clientOpts := hostrpc.ClientOptions{
		CallTimeout: cfg.Host.CallTimeout,
		Encoding:    cfg.Host.Encoding(),
		Logger:      o.logger,
	}

	var (
		client *hostrpc.Client
		err    error
	)
	switch cfg.Host.Transport {
	case config.TransportTCP:
		client, err = hostrpc.Dial(ctx, "tcp", cfg.Host.Address, clientOpts)
	case config.TransportStdio:
		client, err = hostrpc.Spawn(context.WithoutCancel(ctx), cfg.Host.Command, clientOpts)
	default:
		err = fmt.Errorf("unknown host transport %q", cfg.Host.Transport)
	}
	if err != nil {
		return nil, err
	}

	s := &Session{logger: o.logger}
	var backend coral.Backend = client
	if cfg.Cache.Enabled {
		s.cache, err = hostcache.New(client, hostcache.Config{
			Addr:         cfg.Cache.Redis.Addr,
			Password:     cfg.Cache.Redis.Password,
			DB:           cfg.Cache.Redis.DB,
			Prefix:       cfg.Cache.Prefix,
			Session:      cfg.Cache.Session,
			TTL:          cfg.Cache.TTL,
			FetchTimeout: cfg.Host.CallTimeout,
		}, o.logger)
		if err != nil {
			client.Close()
			return nil, err
		}
		backend = s.cache
		o.logger.Debug("metadata cache enabled", zap.String("session", s.cache.Session()))
	}

	s.Host, err = coral.Open(backend,
		coral.WithLogger(o.logger),
		coral.WithMaxTextLength(cfg.Interop.MaxTextLength),
		coral.WithExceptionHandler(o.onException),
	)
	if err != nil {
		backend.Close()
		return nil, err
	}
	return s, nil
}

// CacheSession returns the metadata cache namespace, or "" without a cache
func (s *Session) CacheSession() string {
	if s.cache == nil {
		return ""
	}
	return s.cache.Session()
}

// Close tears the host connection down. Descriptors are invalidated before
// the transport goes away.
func (s *Session) Close() error {
	return s.Host.Close()
}
