package hostrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"go.lsp.dev/jsonrpc2"
	"go.uber.org/zap"

	"github.com/Kirdow/Coral/pkg/coral"
	"github.com/Kirdow/Coral/pkg/interop"
)

// DefaultCallTimeout bounds a single host round trip
const DefaultCallTimeout = 10 * time.Second

// exceptionBacklog is how many exception notifications may wait for the
// handler before new ones are dropped
const exceptionBacklog = 64

// ClientOptions configures a Client
type ClientOptions struct {
	// CallTimeout bounds each call. Zero means DefaultCallTimeout, a negative
	// value disables the timeout.
	CallTimeout time.Duration

	// Encoding is used for text the client sends
	Encoding interop.Encoding

	Logger *zap.Logger
}

// Client is a coral.Backend talking to a host over a JSON-RPC stream
type Client struct {
	conn    jsonrpc2.Conn
	codec   codec
	timeout time.Duration
	logger  *zap.Logger

	// ctx is cancelled once the connection is gone so pending calls return
	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.RWMutex
	onException func(coral.HostException)
	exceptions  chan coral.HostException
}

var (
	_ coral.Backend         = (*Client)(nil)
	_ coral.ExceptionSource = (*Client)(nil)
)

// NewClient starts a client on rwc. The client owns rwc and closes it on
// Close.
func NewClient(rwc io.ReadWriteCloser, opts ClientOptions) *Client {
	if opts.CallTimeout == 0 {
		opts.CallTimeout = DefaultCallTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		conn:    jsonrpc2.NewConn(jsonrpc2.NewStream(rwc)),
		codec:   codec{enc: opts.Encoding},
		timeout: opts.CallTimeout,
		logger:  opts.Logger,
		ctx:     ctx,
		cancel:  cancel,

		exceptions: make(chan coral.HostException, exceptionBacklog),
	}

	go c.dispatchExceptions()
	c.conn.Go(ctx, c.handler())
	go func() {
		<-c.conn.Done()
		if err := c.conn.Err(); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
			c.logger.Debug("host connection ended", zap.Error(err))
		}
		cancel()
	}()

	return c
}

// Dial connects to a host listening on network and addr
func Dial(ctx context.Context, network, addr string, opts ClientOptions) (*Client, error) {
	var d net.Dialer
	nc, err := d.DialContext(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s %s: %w", coral.ErrHostUnavailable, network, addr, err)
	}
	return NewClient(nc, opts), nil
}

// SetExceptionHandler implements coral.ExceptionSource. The handler runs on
// a goroutine of its own, one exception at a time in arrival order, so it
// may call back into the host.
func (c *Client) SetExceptionHandler(handler func(coral.HostException)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onException = handler
}

func (c *Client) handler() jsonrpc2.Handler {
	return func(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
		switch req.Method() {
		case MethodException:
			var params exceptionParams
			if err := json.Unmarshal(req.Params(), &params); err != nil {
				c.logger.Warn("malformed exception notification", zap.Error(err))
				return reply(ctx, nil, nil)
			}
			select {
			case c.exceptions <- coral.HostException{Message: params.Message.String()}:
			default:
				c.logger.Warn("dropping host exception, handler is behind", zap.String("message", params.Message.String()))
			}
			return reply(ctx, nil, nil)
		default:
			return reply(ctx, nil, jsonrpc2.NewError(jsonrpc2.MethodNotFound, "method not found: "+req.Method()))
		}
	}
}

// dispatchExceptions hands exception notifications to the handler away from
// the connection's read loop until the connection is gone
func (c *Client) dispatchExceptions() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case e := <-c.exceptions:
			c.mu.RLock()
			handle := c.onException
			c.mu.RUnlock()
			if handle != nil {
				handle(e)
			}
		}
	}
}

// call performs one round trip and returns the raw result. Decoding is left
// to the caller so malformed host text is told apart from transport failure.
func (c *Client) call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	select {
	case <-c.ctx.Done():
		return nil, fmt.Errorf("%w: connection closed", coral.ErrHostUnavailable)
	default:
	}

	var (
		callCtx context.Context
		cancel  context.CancelFunc
	)
	if c.timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
	} else {
		callCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()
	stop := context.AfterFunc(c.ctx, cancel)
	defer stop()

	var raw json.RawMessage
	_, err := c.conn.Call(callCtx, method, params, &raw)
	if err == nil {
		return raw, nil
	}

	var wireErr *jsonrpc2.Error
	switch {
	case errors.As(err, &wireErr) && wireErr.Code == CodeUnresolvedType:
		return nil, fmt.Errorf("%w: %s", coral.ErrUnresolvedType, wireErr.Message)
	case errors.As(err, &wireErr):
		return nil, fmt.Errorf("%w: %s: host error %d: %s", coral.ErrHostUnavailable, method, wireErr.Code, wireErr.Message)
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case c.ctx.Err() != nil:
		return nil, fmt.Errorf("%w: connection closed", coral.ErrHostUnavailable)
	case errors.Is(err, context.DeadlineExceeded):
		return nil, fmt.Errorf("%w: %s timed out after %s", coral.ErrHostUnavailable, method, c.timeout)
	default:
		return nil, fmt.Errorf("%w: %s: %w", coral.ErrHostUnavailable, method, err)
	}
}

func decode[T any](raw json.RawMessage) (T, error) {
	var v T
	if len(raw) == 0 {
		raw = json.RawMessage("null")
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("%w: malformed host answer: %w", coral.ErrUnresolvedType, err)
	}
	return v, nil
}

// ResolveType implements coral.Backend
func (c *Client) ResolveType(ctx context.Context, name string) (*coral.TypeRecord, error) {
	raw, err := c.call(ctx, MethodResolveType, resolveTypeParams{Name: c.codec.text(name)})
	if err != nil {
		return nil, err
	}
	rec, err := decode[*typeRecord](raw)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: %s", coral.ErrUnresolvedType, name)
	}
	return rec.record(), nil
}

// ResolveObjectType implements coral.Backend
func (c *Client) ResolveObjectType(ctx context.Context, handle coral.ObjectHandle) (*coral.TypeRecord, error) {
	raw, err := c.call(ctx, MethodResolveObjectType, resolveObjectTypeParams{Handle: handle})
	if err != nil {
		return nil, err
	}
	rec, err := decode[*typeRecord](raw)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: no object %d", coral.ErrUnresolvedType, handle)
	}
	return rec.record(), nil
}

// ResolveBaseType implements coral.Backend
func (c *Client) ResolveBaseType(ctx context.Context, id coral.TypeID) (*coral.TypeRecord, error) {
	raw, err := c.call(ctx, MethodResolveBaseType, typeParams{Type: c.codec.id(id)})
	if err != nil {
		return nil, err
	}
	rec, err := decode[*typeRecord](raw)
	if err != nil {
		return nil, err
	}
	return rec.record(), nil
}

// EnumerateFields implements coral.Backend
func (c *Client) EnumerateFields(ctx context.Context, id coral.TypeID) ([]coral.FieldRecord, error) {
	raw, err := c.call(ctx, MethodEnumerateFields, typeParams{Type: c.codec.id(id)})
	if err != nil {
		return nil, err
	}
	wire, err := decode[[]fieldRecord](raw)
	if err != nil {
		return nil, err
	}
	out := make([]coral.FieldRecord, 0, len(wire))
	for _, f := range wire {
		rec, err := f.record()
		if err != nil {
			return nil, fmt.Errorf("%w: field %s: %w", coral.ErrUnresolvedType, f.Name, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// EnumerateMethods implements coral.Backend
func (c *Client) EnumerateMethods(ctx context.Context, id coral.TypeID) ([]coral.MethodRecord, error) {
	raw, err := c.call(ctx, MethodEnumerateMethods, typeParams{Type: c.codec.id(id)})
	if err != nil {
		return nil, err
	}
	wire, err := decode[[]methodRecord](raw)
	if err != nil {
		return nil, err
	}
	out := make([]coral.MethodRecord, 0, len(wire))
	for _, m := range wire {
		rec, err := m.record()
		if err != nil {
			return nil, fmt.Errorf("%w: method %s: %w", coral.ErrUnresolvedType, m.Name, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// IsAssignable implements coral.Backend
func (c *Client) IsAssignable(ctx context.Context, source, target coral.TypeID) (bool, error) {
	raw, err := c.call(ctx, MethodIsAssignable, isAssignableParams{
		Source: c.codec.id(source),
		Target: c.codec.id(target),
	})
	if err != nil {
		return false, err
	}
	return decode[bool](raw)
}

// Close closes the connection and waits for its reader to stop
func (c *Client) Close() error {
	err := c.conn.Close()
	<-c.conn.Done()
	c.cancel()
	if err != nil && !errors.Is(err, net.ErrClosed) && !errors.Is(err, io.ErrClosedPipe) {
		return err
	}
	return nil
}
