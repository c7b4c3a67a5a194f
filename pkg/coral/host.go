package coral

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/Kirdow/Coral/pkg/interop"
)

// HostInstance is the connection to a hosted managed runtime and the only
// factory of ReflectionType descriptors. Descriptors hold a non-owning
// reference back to the instance and become unusable once it is closed.
type HostInstance struct {
	backend Backend
	logger  *zap.Logger
	maxText int

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error

	mu     sync.Mutex
	types  map[TypeID]*ReflectionType
	byName map[string]*ReflectionType

	onException func(HostException)
}

// Option configures a HostInstance
type Option func(*HostInstance)

// WithLogger sets the logger used for round trip tracing
func WithLogger(logger *zap.Logger) Option {
	return func(h *HostInstance) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithMaxTextLength bounds every piece of host text copied into a descriptor
func WithMaxTextLength(n int) Option {
	return func(h *HostInstance) {
		h.maxText = n
	}
}

// WithExceptionHandler registers a callback for exceptions the host reports
// out of band. It only has an effect for backends implementing ExceptionSource.
// Backends must not call the handler from a goroutine that the host's replies
// depend on, so the handler is free to use the HostInstance.
func WithExceptionHandler(handler func(HostException)) Option {
	return func(h *HostInstance) {
		h.onException = handler
	}
}

// Open wraps backend in a HostInstance. The instance owns the backend and
// closes it on Close.
func Open(backend Backend, opts ...Option) (*HostInstance, error) {
	if backend == nil {
		return nil, errors.New("coral: nil backend")
	}

	h := &HostInstance{
		backend: backend,
		logger:  zap.NewNop(),
		maxText: interop.DefaultMaxLength,
		types:   make(map[TypeID]*ReflectionType),
		byName:  make(map[string]*ReflectionType),
	}
	for _, opt := range opts {
		opt(h)
	}

	if src, ok := backend.(ExceptionSource); ok && h.onException != nil {
		src.SetExceptionHandler(h.onException)
	}

	return h, nil
}

// GetType resolves a type by full name or assembly-qualified name.
// Successful lookups are remembered, so repeated names cost no round trip.
func (h *HostInstance) GetType(ctx context.Context, name string) (*ReflectionType, error) {
	if err := h.alive("get type", name); err != nil {
		return nil, err
	}

	h.mu.Lock()
	if rt, ok := h.byName[name]; ok {
		h.mu.Unlock()
		return rt, nil
	}
	if rt, ok := h.types[TypeID(name)]; ok {
		h.mu.Unlock()
		return rt, nil
	}
	h.mu.Unlock()

	h.trace("resolve type", name)
	rec, err := h.backend.ResolveType(ctx, name)
	if err != nil {
		return nil, classify("get type", name, err)
	}
	if rec == nil {
		return nil, classify("get type", name, ErrUnresolvedType)
	}

	rt, err := h.materialize(rec)
	if err != nil {
		return nil, classify("get type", name, err)
	}

	h.mu.Lock()
	h.byName[name] = rt
	h.mu.Unlock()
	return rt, nil
}

// TypeOf resolves the type identity carried by a member descriptor
func (h *HostInstance) TypeOf(ctx context.Context, id TypeID) (*ReflectionType, error) {
	return h.GetType(ctx, string(id))
}

// GetTypeFromObject resolves the runtime type of a managed object
func (h *HostInstance) GetTypeFromObject(ctx context.Context, handle ObjectHandle) (*ReflectionType, error) {
	label := "object#" + strconv.FormatUint(uint64(handle), 10)
	if err := h.alive("get object type", label); err != nil {
		return nil, err
	}

	h.trace("resolve object type", label)
	rec, err := h.backend.ResolveObjectType(ctx, handle)
	if err != nil {
		return nil, classify("get object type", label, err)
	}
	if rec == nil {
		return nil, classify("get object type", label, ErrUnresolvedType)
	}

	rt, err := h.materialize(rec)
	if err != nil {
		return nil, classify("get object type", label, err)
	}
	return rt, nil
}

// Close tears the connection down. Every descriptor obtained from this
// instance fails with ErrHostUnavailable afterwards. Close is idempotent.
func (h *HostInstance) Close() error {
	h.closeOnce.Do(func() {
		h.closed.Store(true)

		h.mu.Lock()
		count := len(h.types)
		h.types = make(map[TypeID]*ReflectionType)
		h.byName = make(map[string]*ReflectionType)
		h.mu.Unlock()

		h.logger.Debug("closing host connection", zap.Int("descriptors", count))
		h.closeErr = h.backend.Close()
	})
	return h.closeErr
}

// Closed reports whether Close has been called
func (h *HostInstance) Closed() bool {
	return h.closed.Load()
}

func (h *HostInstance) alive(op, typeName string) error {
	if h.closed.Load() {
		return &TypeError{Op: op, Type: typeName, Err: fmt.Errorf("%w: connection closed", ErrHostUnavailable)}
	}
	return nil
}

func (h *HostInstance) trace(op, typeName string) {
	h.logger.Debug("host round trip", zap.String("op", op), zap.String("type", typeName))
}

// materialize returns the interned descriptor for rec's identity, creating
// it from a boundary copy of the record's text if this is the first sighting.
func (h *HostInstance) materialize(rec *TypeRecord) (*ReflectionType, error) {
	id := rec.ID()
	if id == "" {
		return nil, fmt.Errorf("%w: host returned a type without identity", ErrUnresolvedType)
	}

	h.mu.Lock()
	if rt, ok := h.types[id]; ok {
		h.mu.Unlock()
		return rt, nil
	}
	h.mu.Unlock()

	rt, err := newReflectionType(h, rec)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if existing, ok := h.types[rt.id]; ok {
		return existing, nil
	}
	if !h.closed.Load() {
		h.types[rt.id] = rt
	}
	return rt, nil
}

// copyText copies host text into an owned string. Malformed text means the
// host's answer for this identity is unusable.
func (h *HostInstance) copyText(s string) (string, error) {
	out, err := interop.Clone(s, h.maxText)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnresolvedType, err)
	}
	return out, nil
}
