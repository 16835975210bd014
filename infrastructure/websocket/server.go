package websocket

import (
	"chat-relay/contract"
	"chat-relay/runtime"
	"chat-relay/wire"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const Path = "/chat"

var _ contract.Worker = (*Server)(nil)

// Server upgrades requests on Path and hands each websocket to the relay.
type Server struct {
	log          *slog.Logger
	addr         string
	relay        *runtime.Relay
	maxFrameSize int
	upgrader     websocket.Upgrader

	mu        sync.Mutex
	bound     net.Addr
	listening chan struct{}
	once      sync.Once
}

func NewServer(log *slog.Logger, addr string, relay *runtime.Relay, maxFrameSize int) *Server {
	return &Server{
		log:          log,
		addr:         addr,
		relay:        relay,
		maxFrameSize: maxFrameSize,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		listening: make(chan struct{}),
	}
}

// Listening is closed once the first listener is bound.
func (s *Server) Listening() <-chan struct{} {
	return s.listening
}

func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bound
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(Path, s.handleChat)
	return mux
}

// Run serves HTTP until ctx is cancelled. Upgraded connections inherit ctx,
// so they are closed on shutdown too.
func (s *Server) Run(ctx context.Context) error {
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	stop := context.AfterFunc(ctx, func() { _ = httpServer.Close() })
	defer stop()

	s.mu.Lock()
	s.bound = listener.Addr()
	s.mu.Unlock()
	s.once.Do(func() { close(s.listening) })
	s.log.Info("Accepting WebSocket connections", "address", listener.Addr().String(), "path", Path)

	if err := httpServer.Serve(listener); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("websocket server error: %w", err)
	}
	return nil
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("WebSocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	_ = s.relay.Serve(r.Context(), wire.NewServerConn(NewConn(ws, s.maxFrameSize)), r.RemoteAddr)
}
