package tcp_test

import (
	"chat-relay/client"
	"chat-relay/domain/event"
	"chat-relay/infrastructure/tcp"
	"chat-relay/runtime"
	"chat-relay/wire"
	"context"
	"encoding/binary"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

type server struct {
	relay    *runtime.Relay
	acceptor *tcp.Acceptor
	cancel   context.CancelFunc
	done     chan error
}

func startServer(t *testing.T, capacity int) *server {
	t.Helper()
	relay := runtime.NewRelay(logs.GetLoggerFromLevel(slog.LevelDebug), runtime.NewRegistry(), runtime.NewHub(capacity))
	acceptor := tcp.NewAcceptor(logs.GetLoggerFromLevel(slog.LevelDebug), "127.0.0.1:0", relay, wire.DefaultMaxFrameSize)
	ctx, cancel := context.WithCancel(context.Background())
	s := &server{relay: relay, acceptor: acceptor, cancel: cancel, done: make(chan error, 1)}
	go func() { s.done <- acceptor.Run(ctx) }()

	select {
	case <-acceptor.Listening():
	case err := <-s.done:
		require.FailNow(t, "acceptor did not start", "%v", err)
	}
	t.Cleanup(func() {
		cancel()
		<-s.done
	})
	return s
}

func (s *server) connect(t *testing.T) *client.Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	c, err := client.Dial(ctx, s.acceptor.Addr().String(), wire.DefaultMaxFrameSize)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func next(t *testing.T, c *client.Client) event.Event {
	t.Helper()
	evt, err := c.Recv()
	require.NoError(t, err)
	return evt
}

func TestAcceptor_Alice_Bob_And_A_Latecomer(t *testing.T) {
	req := require.New(t)
	s := startServer(t, runtime.DefaultHubCapacity)

	// Given alice joined
	alice := s.connect(t)
	req.NoError(alice.Join("alice"))
	req.Equal(event.Joined{Name: "alice"}, next(t, alice))

	// When bob first asks for alice's name then his own
	bob := s.connect(t)
	req.NoError(bob.Join("alice"))
	req.Equal(event.Failure{Kind: event.UsernameTaken}, next(t, bob))
	req.NoError(bob.Join("bob"))

	// Then both see bob arrive
	req.Equal(event.Joined{Name: "bob"}, next(t, bob))
	req.Equal(event.Joined{Name: "bob"}, next(t, alice))

	// When alice greets and bob leaves
	req.NoError(alice.Say("hi"))
	req.Equal(event.Said{Name: "alice", Text: "hi"}, next(t, alice))
	req.Equal(event.Said{Name: "alice", Text: "hi"}, next(t, bob))
	req.NoError(bob.Leave())
	req.Equal(event.Left{Name: "bob"}, next(t, alice))

	// Then the server closes bob's connection
	_, err := bob.Recv()
	req.ErrorIs(err, io.EOF)

	// And a third client may now use bob's name, without any history
	third := s.connect(t)
	req.NoError(third.Join("bob"))
	req.Equal(event.Joined{Name: "bob"}, next(t, third))
	req.Equal(event.Joined{Name: "bob"}, next(t, alice))
}

func TestAcceptor_Garbage_Frame_Is_Answered_With_Internal(t *testing.T) {
	req := require.New(t)
	s := startServer(t, runtime.DefaultHubCapacity)

	conn, err := net.Dial("tcp", s.acceptor.Addr().String())
	req.NoError(err)
	defer conn.Close()

	// Given a well framed payload that is not an intent
	payload := []byte{0xff, 0xff}
	header := make([]byte, 4)
	binary.BigEndian.PutUint32(header, uint32(len(payload)))
	_, err = conn.Write(append(header, payload...))
	req.NoError(err)

	// Then the server answers Internal and keeps the connection open
	c := client.New(wire.NewFramed(conn, wire.DefaultMaxFrameSize))
	req.Equal(event.Failure{Kind: event.Internal}, next(t, c))
	req.NoError(c.Join("erin"))
	req.Equal(event.Joined{Name: "erin"}, next(t, c))
}

func TestAcceptor_Dropped_Connection_Releases_Name(t *testing.T) {
	req := require.New(t)
	s := startServer(t, runtime.DefaultHubCapacity)

	alice := s.connect(t)
	req.NoError(alice.Join("alice"))
	req.Equal(event.Joined{Name: "alice"}, next(t, alice))

	frank := s.connect(t)
	req.NoError(frank.Join("frank"))
	req.Equal(event.Joined{Name: "frank"}, next(t, frank))
	req.Equal(event.Joined{Name: "frank"}, next(t, alice))

	// When frank's connection drops without a Leave
	req.NoError(frank.Close())

	// Then everybody is told and the name is free
	req.Equal(event.Left{Name: "frank"}, next(t, alice))
	req.Eventually(func() bool { return s.relay.Stats().Registered == 1 }, time.Second, 10*time.Millisecond)
}

func TestAcceptor_Shutdown_Closes_Live_Connections(t *testing.T) {
	req := require.New(t)
	s := startServer(t, runtime.DefaultHubCapacity)

	gina := s.connect(t)
	req.NoError(gina.Join("gina"))
	req.Equal(event.Joined{Name: "gina"}, next(t, gina))

	s.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	req.NoError(s.relay.Wait(ctx))
	req.Zero(s.relay.Stats().Registered)
	_, err := gina.Recv()
	req.Error(err)
}
