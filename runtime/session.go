package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/wire"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"
)

// Session coordinates one client connection.
//
// It first waits for a successful Join, then relays hub events to the client
// and client intents to the hub until the client leaves, the stream ends or a
// write fails. Leaving the active state always publishes Left and releases the
// username, exactly once.
//
// Run must be called once. The caller owns conn and closes it after Run returns.
type Session struct {
	ID       uuid.UUID
	log      *slog.Logger
	conn     contract.Conn
	registry contract.IRegistry
	hub      *Hub
	state    atomic.Int32
}

type received struct {
	intent domain.Intent
	err    error
}

func NewSession(log *slog.Logger, conn contract.Conn, registry contract.IRegistry, hub *Hub) *Session {
	id := uuid.New()
	s := &Session{
		ID:       id,
		log:      log.With("session_id", id.String()),
		conn:     conn,
		registry: registry,
		hub:      hub,
	}
	s.state.Store(int32(domain.AwaitingName))
	return s
}

func (s *Session) State() domain.SessionState {
	return domain.SessionState(s.state.Load())
}

func (s *Session) setState(state domain.SessionState) {
	s.state.Store(int32(state))
}

// Run drives the session to completion. A nil error means the client left or
// closed its stream; any other error is a transport failure.
func (s *Session) Run() error {
	username, joined, err := s.awaitName()
	if err != nil || !joined {
		s.setState(domain.Terminated)
		return err
	}
	return s.relay(username)
}

// awaitName reads intents until a Join succeeds.
// joined is false when the client went away before joining. Any name the
// registry accepts is valid, the empty one included.
func (s *Session) awaitName() (username domain.Username, joined bool, err error) {
	for {
		intent, err := s.conn.Recv()
		switch {
		case err == nil:
		case stderrors.Is(err, io.EOF):
			s.log.Debug("Stream closed before join")
			return "", false, nil
		case isDecodeError(err):
			s.log.Debug("Malformed intent", "error", err)
			if err := s.send(event.Failure{Kind: event.Internal}); err != nil {
				return "", false, err
			}
			continue
		default:
			return "", false, fmt.Errorf("read intent: %w", err)
		}

		switch i := intent.(type) {
		case domain.Join:
			username, err := s.registry.TryRegister(i.Name)
			if err == nil {
				return username, true, nil
			}
			s.log.Debug("Username rejected", "username", i.Name, "error", err)
			if err := s.send(event.Failure{Kind: event.UsernameTaken}); err != nil {
				return "", false, err
			}
		case domain.Say:
			s.log.Debug("Intent ignored", "error", errors.ErrNotJoined)
			if err := s.send(event.Failure{Kind: event.Internal}); err != nil {
				return "", false, err
			}
		case domain.Leave:
			return "", false, nil
		}
	}
}

// relay is the active state. Its deferred block is the terminated transition.
func (s *Session) relay(username domain.Username) error {
	s.setState(domain.Active)
	log := s.log.With("username", string(username))
	sub := s.hub.Subscribe()
	defer func() {
		s.hub.Publish(event.Left{Name: username})
		s.registry.Unregister(username)
		sub.Close()
		s.setState(domain.Terminated)
		log.Info("Participant left")
	}()

	s.hub.Publish(event.Joined{Name: username})
	log.Info("Participant joined")

	intents := make(chan received)
	done := make(chan struct{})
	defer close(done)
	go s.readIntents(intents, done)

	hubOpen := true
	for {
		var hubReady <-chan struct{}
		if hubOpen {
			hubReady = sub.Ready()
		}

		select {
		case <-hubReady:
			evt, err := sub.TryRecv()
			var lagged *LaggedError
			switch {
			case err == nil:
				if err := s.send(evt); err != nil {
					return err
				}
			case stderrors.As(err, &lagged):
				log.Warn("Subscriber lagging, events dropped", "dropped", lagged.Count)
				if err := s.send(event.Failure{Kind: event.Lost(lagged.Count)}); err != nil {
					return err
				}
			case stderrors.Is(err, errors.ErrHubEmpty):
			default:
				// Only reachable during process shutdown.
				log.Debug("Hub no longer available", "error", err)
				hubOpen = false
			}

		case in := <-intents:
			switch {
			case in.err == nil:
			case stderrors.Is(in.err, io.EOF):
				return nil
			case isDecodeError(in.err):
				log.Debug("Malformed intent", "error", in.err)
				if err := s.send(event.Failure{Kind: event.Internal}); err != nil {
					return err
				}
				continue
			default:
				return fmt.Errorf("read intent: %w", in.err)
			}

			switch i := in.intent.(type) {
			case domain.Say:
				s.hub.Publish(event.Said{Name: username, Text: i.Text})
			case domain.Leave:
				return nil
			case domain.Join:
				log.Debug("Intent ignored", "error", errors.ErrUnexpectedJoin)
				if err := s.send(event.Failure{Kind: event.Internal}); err != nil {
					return err
				}
			}
		}
	}
}

// readIntents pumps conn into out until the stream ends or fails.
// It stops as soon as done is closed; a pending Recv is released when the
// owner closes the connection.
func (s *Session) readIntents(out chan<- received, done <-chan struct{}) {
	for {
		intent, err := s.conn.Recv()
		select {
		case out <- received{intent: intent, err: err}:
		case <-done:
			return
		}
		if err != nil && !isDecodeError(err) {
			return
		}
	}
}

func (s *Session) send(evt event.Event) error {
	if err := s.conn.Send(evt); err != nil {
		return fmt.Errorf("send %T: %w", evt, err)
	}
	return nil
}

func isDecodeError(err error) bool {
	var decodeErr *wire.DecodeError
	return stderrors.As(err, &decodeErr)
}
