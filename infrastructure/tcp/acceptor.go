// Package tcp serves the relay over plain TCP, one length-prefixed frame per message.
package tcp

import (
	"chat-relay/contract"
	"chat-relay/runtime"
	"chat-relay/wire"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"
)

const acceptBackoff = 50 * time.Millisecond

var _ contract.Worker = (*Acceptor)(nil)

// Acceptor listens on addr and hands every connection to the relay in its own
// goroutine. It runs until ctx is cancelled; cancelling ctx also closes every
// connection it accepted.
type Acceptor struct {
	log          *slog.Logger
	addr         string
	relay        *runtime.Relay
	maxFrameSize int

	mu        sync.Mutex
	bound     net.Addr
	listening chan struct{}
	once      sync.Once
}

func NewAcceptor(log *slog.Logger, addr string, relay *runtime.Relay, maxFrameSize int) *Acceptor {
	return &Acceptor{
		log:          log,
		addr:         addr,
		relay:        relay,
		maxFrameSize: maxFrameSize,
		listening:    make(chan struct{}),
	}
}

// Listening is closed once the first listener is bound.
func (a *Acceptor) Listening() <-chan struct{} {
	return a.listening
}

func (a *Acceptor) Addr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.bound
}

func (a *Acceptor) Run(ctx context.Context) error {
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", a.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.addr, err)
	}
	stop := context.AfterFunc(ctx, func() { _ = listener.Close() })
	defer stop()
	defer func() { _ = listener.Close() }()

	a.mu.Lock()
	a.bound = listener.Addr()
	a.mu.Unlock()
	a.once.Do(func() { close(a.listening) })
	a.log.Info("Accepting TCP connections", "address", listener.Addr().String())

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if stderrors.Is(err, net.ErrClosed) {
				return fmt.Errorf("listener on %s closed: %w", a.addr, err)
			}
			a.log.Warn("Accept failed", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(acceptBackoff):
			}
			continue
		}
		go a.serve(ctx, conn)
	}
}

func (a *Acceptor) serve(ctx context.Context, conn net.Conn) {
	remote := conn.RemoteAddr().String()
	a.log.Debug("Connection accepted", "remote", remote)
	frames := wire.NewFramed(conn, a.maxFrameSize)
	_ = a.relay.Serve(ctx, wire.NewServerConn(frames), remote)
}
