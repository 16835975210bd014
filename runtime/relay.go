// Package runtime holds the shared chat state and drives client sessions.
// It owns the username registry and the broadcast hub; transports only hand
// it connections.
package runtime

import (
	"chat-relay/contract"
	"chat-relay/errors"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

type RelayStats struct {
	Sessions   int64
	Registered int
	Hub        HubStats
}

// Relay is shared by every transport of the process.
type Relay struct {
	log      *slog.Logger
	registry *Registry
	hub      *Hub
	sessions atomic.Int64

	mu      sync.Mutex
	closing bool
	wg      sync.WaitGroup
}

func NewRelay(log *slog.Logger, registry *Registry, hub *Hub) *Relay {
	return &Relay{log: log, registry: registry, hub: hub}
}

// Serve runs one session over conn and closes conn when it is over.
// Cancelling ctx closes conn, which unwinds the session through its normal
// termination: Left is still published and the username released.
// Once Wait has been called, new connections are closed and refused.
func (r *Relay) Serve(ctx context.Context, conn contract.Conn, remote string) error {
	if !r.admit() {
		_ = conn.Close()
		r.log.Debug(fmt.Sprintf("Client %s refused", remote), "error", errors.ErrRelayClosed)
		return errors.ErrRelayClosed
	}
	defer r.wg.Done()
	r.sessions.Add(1)
	defer r.sessions.Add(-1)

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	defer func() { _ = conn.Close() }()

	session := NewSession(r.log.With("remote", remote), conn, r.registry, r.hub)
	err := session.Run()
	if err != nil && ctx.Err() != nil {
		r.log.Info(fmt.Sprintf("Client %s disconnected on shutdown", remote), "session_id", session.ID.String())
		return nil
	}
	if err != nil {
		r.log.Warn(fmt.Sprintf("Client %s failed", remote), "session_id", session.ID.String(), "error", err)
		return err
	}
	r.log.Info(fmt.Sprintf("Client %s terminated successfully", remote), "session_id", session.ID.String())
	return nil
}

// admit counts a new session unless the relay is shutting down.
func (r *Relay) admit() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closing {
		return false
	}
	r.wg.Add(1)
	return true
}

// Wait stops admitting sessions and blocks until every admitted one has
// terminated or ctx is done.
func (r *Relay) Wait(ctx context.Context) error {
	r.mu.Lock()
	r.closing = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the hub. Sessions still running keep serving intents but no
// longer receive broadcasts.
func (r *Relay) Close() {
	r.hub.Close()
}

func (r *Relay) Stats() RelayStats {
	return RelayStats{
		Sessions:   r.sessions.Load(),
		Registered: r.registry.Len(),
		Hub:        r.hub.Stats(),
	}
}
