package hostrpc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"os"

	"go.lsp.dev/jsonrpc2"
	"go.uber.org/zap"

	"github.com/Kirdow/Coral/pkg/coral"
	"github.com/Kirdow/Coral/pkg/interop"
)

// ServerOptions configures a Server
type ServerOptions struct {
	// Encoding is used for text the server sends
	Encoding interop.Encoding

	Logger *zap.Logger
}

// Server exposes a coral.Backend to clients
type Server struct {
	backend coral.Backend
	codec   codec
	logger  *zap.Logger
}

var _ jsonrpc2.StreamServer = (*Server)(nil)

// NewServer creates a server answering from backend. The server does not
// own backend.
func NewServer(backend coral.Backend, opts ServerOptions) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Server{
		backend: backend,
		codec:   codec{enc: opts.Encoding},
		logger:  opts.Logger,
	}
}

// ServeStream implements jsonrpc2.StreamServer. It returns when the peer
// disconnects or ctx is cancelled.
func (s *Server) ServeStream(ctx context.Context, conn jsonrpc2.Conn) error {
	conn.Go(ctx, s.handler(conn))

	select {
	case <-conn.Done():
	case <-ctx.Done():
		conn.Close()
		<-conn.Done()
	}

	if err := conn.Err(); err != nil && !isDisconnect(err) && ctx.Err() == nil {
		return err
	}
	return nil
}

// ServeConn serves a single client on rwc
func (s *Server) ServeConn(ctx context.Context, rwc io.ReadWriteCloser) error {
	s.logger.Info("serving host connection")
	return s.ServeStream(ctx, jsonrpc2.NewConn(jsonrpc2.NewStream(rwc)))
}

// Serve accepts clients on ln until ctx is cancelled. ln is closed on return.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	s.logger.Info("listening for host connections", zap.String("addr", ln.Addr().String()))
	err := jsonrpc2.Serve(ctx, ln, s, 0)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func isDisconnect(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, net.ErrClosed) || errors.Is(err, os.ErrClosed)
}

// handler returns the JSON-RPC handler function
func (s *Server) handler(conn jsonrpc2.Conn) jsonrpc2.Handler {
	return func(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
		s.logger.Debug("received", zap.String("method", req.Method()))

		switch req.Method() {
		case MethodResolveType:
			return s.handleResolveType(ctx, conn, reply, req)
		case MethodResolveObjectType:
			return s.handleResolveObjectType(ctx, conn, reply, req)
		case MethodResolveBaseType:
			return s.handleResolveBaseType(ctx, conn, reply, req)
		case MethodEnumerateFields:
			return s.handleEnumerateFields(ctx, conn, reply, req)
		case MethodEnumerateMethods:
			return s.handleEnumerateMethods(ctx, conn, reply, req)
		case MethodIsAssignable:
			return s.handleIsAssignable(ctx, conn, reply, req)
		default:
			return reply(ctx, nil, jsonrpc2.NewError(jsonrpc2.MethodNotFound, "method not found: "+req.Method()))
		}
	}
}

func (s *Server) handleResolveType(ctx context.Context, conn jsonrpc2.Conn, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params resolveTypeParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return s.replyWithError(ctx, reply, jsonrpc2.InvalidParams, "failed to parse resolveType params")
	}
	rec, err := s.backend.ResolveType(ctx, params.Name.String())
	if err != nil {
		return s.replyBackendError(ctx, conn, reply, err)
	}
	return reply(ctx, s.codec.typeRecord(rec), nil)
}

func (s *Server) handleResolveObjectType(ctx context.Context, conn jsonrpc2.Conn, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params resolveObjectTypeParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return s.replyWithError(ctx, reply, jsonrpc2.InvalidParams, "failed to parse resolveObjectType params")
	}
	rec, err := s.backend.ResolveObjectType(ctx, params.Handle)
	if err != nil {
		return s.replyBackendError(ctx, conn, reply, err)
	}
	return reply(ctx, s.codec.typeRecord(rec), nil)
}

func (s *Server) handleResolveBaseType(ctx context.Context, conn jsonrpc2.Conn, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params typeParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return s.replyWithError(ctx, reply, jsonrpc2.InvalidParams, "failed to parse resolveBaseType params")
	}
	rec, err := s.backend.ResolveBaseType(ctx, coral.TypeID(params.Type.String()))
	if err != nil {
		return s.replyBackendError(ctx, conn, reply, err)
	}
	if rec == nil {
		return reply(ctx, nil, nil)
	}
	return reply(ctx, s.codec.typeRecord(rec), nil)
}

func (s *Server) handleEnumerateFields(ctx context.Context, conn jsonrpc2.Conn, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params typeParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return s.replyWithError(ctx, reply, jsonrpc2.InvalidParams, "failed to parse enumerateFields params")
	}
	fields, err := s.backend.EnumerateFields(ctx, coral.TypeID(params.Type.String()))
	if err != nil {
		return s.replyBackendError(ctx, conn, reply, err)
	}
	return reply(ctx, s.codec.fields(fields), nil)
}

func (s *Server) handleEnumerateMethods(ctx context.Context, conn jsonrpc2.Conn, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params typeParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return s.replyWithError(ctx, reply, jsonrpc2.InvalidParams, "failed to parse enumerateMethods params")
	}
	methods, err := s.backend.EnumerateMethods(ctx, coral.TypeID(params.Type.String()))
	if err != nil {
		return s.replyBackendError(ctx, conn, reply, err)
	}
	return reply(ctx, s.codec.methods(methods), nil)
}

func (s *Server) handleIsAssignable(ctx context.Context, conn jsonrpc2.Conn, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params isAssignableParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return s.replyWithError(ctx, reply, jsonrpc2.InvalidParams, "failed to parse isAssignable params")
	}
	ok, err := s.backend.IsAssignable(ctx,
		coral.TypeID(params.Source.String()),
		coral.TypeID(params.Target.String()))
	if err != nil {
		return s.replyBackendError(ctx, conn, reply, err)
	}
	return reply(ctx, ok, nil)
}

// replyBackendError answers with the unresolved code for missing metadata.
// Any other failure is also sent as an exception notification.
func (s *Server) replyBackendError(ctx context.Context, conn jsonrpc2.Conn, reply jsonrpc2.Replier, err error) error {
	if coral.IsUnresolvedType(err) {
		return reply(ctx, nil, jsonrpc2.NewError(CodeUnresolvedType, err.Error()))
	}

	s.logger.Warn("backend failure", zap.Error(err))
	if nerr := conn.Notify(ctx, MethodException, exceptionParams{Message: s.codec.text(err.Error())}); nerr != nil {
		s.logger.Debug("failed to send exception", zap.Error(nerr))
	}
	return s.replyWithError(ctx, reply, jsonrpc2.InternalError, err.Error())
}

// replyWithError sends an error response
func (s *Server) replyWithError(ctx context.Context, reply jsonrpc2.Replier, code jsonrpc2.Code, message string) error {
	return reply(ctx, nil, jsonrpc2.NewError(code, message))
}

// Stdio returns the process's standard input and output as one stream
func Stdio() io.ReadWriteCloser {
	return stdrwc{}
}

// stdrwc implements io.ReadWriteCloser for stdin/stdout
type stdrwc struct{}

func (stdrwc) Read(p []byte) (int, error) {
	return os.Stdin.Read(p)
}

func (stdrwc) Write(p []byte) (int, error) {
	return os.Stdout.Write(p)
}

func (stdrwc) Close() error {
	if err := os.Stdin.Close(); err != nil {
		return err
	}
	return os.Stdout.Close()
}
