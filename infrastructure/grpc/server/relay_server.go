package server

import (
	"chat-relay/contract"
	"chat-relay/infrastructure/grpc/chatstream"
	"chat-relay/runtime"
	"chat-relay/wire"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/peer"
)

var _ contract.Worker = (*RelayServer)(nil)

type chatHandler interface {
	chat(stream grpc.ServerStream) error
}

// RelayServer exposes the relay as the chatrelay.Relay/Chat bidirectional stream.
type RelayServer struct {
	log          *slog.Logger
	addr         string
	relay        *runtime.Relay
	maxFrameSize int

	mu        sync.Mutex
	bound     net.Addr
	listening chan struct{}
	once      sync.Once
}

func NewRelayServer(log *slog.Logger, addr string, relay *runtime.Relay, maxFrameSize int) *RelayServer {
	return &RelayServer{
		log:          log,
		addr:         addr,
		relay:        relay,
		maxFrameSize: maxFrameSize,
		listening:    make(chan struct{}),
	}
}

// ServerOptions are required by any grpc.Server the relay is registered on.
func (s *RelayServer) ServerOptions() []grpc.ServerOption {
	return []grpc.ServerOption{
		grpc.ForceServerCodec(chatstream.Codec{}),
		grpc.MaxRecvMsgSize(s.maxFrameSize),
		grpc.MaxSendMsgSize(s.maxFrameSize),
	}
}

func (s *RelayServer) Register(registrar grpc.ServiceRegistrar) {
	registrar.RegisterService(&grpc.ServiceDesc{
		ServiceName: chatstream.ServiceName,
		HandlerType: (*chatHandler)(nil),
		Streams: []grpc.StreamDesc{{
			StreamName: chatstream.ChatMethod,
			Handler: func(srv any, stream grpc.ServerStream) error {
				return srv.(chatHandler).chat(stream)
			},
			ServerStreams: true,
			ClientStreams: true,
		}},
		Metadata: "chatrelay",
	}, s)
}

// Listening is closed once the first listener is bound.
func (s *RelayServer) Listening() <-chan struct{} {
	return s.listening
}

func (s *RelayServer) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bound
}

func (s *RelayServer) Run(ctx context.Context) error {
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.mu.Lock()
	s.bound = listener.Addr()
	s.mu.Unlock()
	s.once.Do(func() { close(s.listening) })
	return s.Serve(ctx, listener)
}

// Serve runs a gRPC server on listener until ctx is cancelled.
// Stopping the server cancels every stream, which ends their sessions.
func (s *RelayServer) Serve(ctx context.Context, listener net.Listener) error {
	grpcServer := grpc.NewServer(s.ServerOptions()...)
	s.Register(grpcServer)
	stop := context.AfterFunc(ctx, grpcServer.Stop)
	defer stop()

	s.log.Info("Accepting gRPC streams", "address", listener.Addr().String(), "method", chatstream.ChatFullMethod)
	if err := grpcServer.Serve(listener); err != nil && !stderrors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("gRPC server error: %w", err)
	}
	return nil
}

func (s *RelayServer) chat(stream grpc.ServerStream) error {
	remote := "unknown"
	if p, ok := peer.FromContext(stream.Context()); ok && p.Addr != nil {
		remote = p.Addr.String()
	}
	conn := wire.NewServerConn(chatstream.NewServerConn(stream))
	// Session failures are logged by the relay; the call itself ends normally.
	_ = s.relay.Serve(stream.Context(), conn, remote)
	return nil
}
