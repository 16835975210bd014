package main

import (
	"bytes"
	"chat-relay/client"
	"chat-relay/domain/event"
	"chat-relay/infrastructure/tcp"
	"chat-relay/runtime"
	"chat-relay/wire"
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type outcome struct {
	code int
	err  error
}

func startRelay(t *testing.T) string {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	relay := runtime.NewRelay(log, runtime.NewRegistry(), runtime.NewHub(runtime.DefaultHubCapacity))
	acceptor := tcp.NewAcceptor(log, "127.0.0.1:0", relay, wire.DefaultMaxFrameSize)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- acceptor.Run(ctx) }()
	<-acceptor.Listening()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return acceptor.Addr().String()
}

func startClient(t *testing.T, args []string) (*io.PipeWriter, *syncBuffer, chan outcome) {
	t.Helper()
	t.Setenv("CHAT_COLOURS", "false")
	in, stdin := io.Pipe()
	out := &syncBuffer{}
	done := make(chan outcome, 1)
	go func() {
		code, err := run(args, in, out)
		done <- outcome{code: code, err: err}
	}()
	t.Cleanup(func() { _ = stdin.Close() })
	return stdin, out, done
}

func waitOutput(t *testing.T, out *syncBuffer, want string) {
	t.Helper()
	require.Eventually(t, func() bool { return strings.Contains(out.String(), want) }, time.Second, 10*time.Millisecond,
		"expected %q in %q", want, out.String())
}

func TestRender_Events(t *testing.T) {
	req := require.New(t)
	color.Enable = false
	defer func() { color.Enable = true }()

	req.Equal("* alice joined", render(event.Joined{Name: "alice"}))
	req.Equal("* alice left", render(event.Left{Name: "alice"}))
	req.Equal("alice: hi there", render(event.Said{Name: "alice", Text: "hi there"}))
	req.Equal("! 36 message(s) lost", render(event.Failure{Kind: event.Lost(36)}))
	req.Equal("! username already taken", render(event.Failure{Kind: event.UsernameTaken}))
}

func TestRun_Join_Say_And_Quit(t *testing.T) {
	req := require.New(t)
	addr := startRelay(t)
	stdin, out, done := startClient(t, []string{addr, "alice"})

	// Given alice joined
	waitOutput(t, out, "* alice joined")

	// When she types a line
	_, err := io.WriteString(stdin, "hello\n")
	req.NoError(err)

	// Then it comes back as her own message
	waitOutput(t, out, "alice: hello")

	// When she quits
	_, err = io.WriteString(stdin, "/quit\n")
	req.NoError(err)

	select {
	case o := <-done:
		req.NoError(o.err)
		req.Equal(exitOK, o.code)
	case <-time.After(time.Second):
		req.Fail("client did not quit")
	}
}

func TestRun_Taken_Name_Asks_For_Another(t *testing.T) {
	req := require.New(t)
	addr := startRelay(t)

	// Given somebody already holds "alice"
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	holder, err := client.Dial(ctx, addr, wire.DefaultMaxFrameSize)
	req.NoError(err)
	defer holder.Close()
	req.NoError(holder.Join("alice"))
	evt, err := holder.Recv()
	req.NoError(err)
	req.Equal(event.Joined{Name: "alice"}, evt)

	// When a second client asks for it
	stdin, out, _ := startClient(t, []string{addr, "alice"})

	// Then it is told and asked again
	waitOutput(t, out, "! username already taken")
	waitOutput(t, out, "Username: ")
	_, err = io.WriteString(stdin, "alicia\n")
	req.NoError(err)
	waitOutput(t, out, "* alicia joined")

	// And the holder sees the newcomer
	evt, err = holder.Recv()
	req.NoError(err)
	req.Equal(event.Joined{Name: "alicia"}, evt)
}

func TestRun_Empty_Name_Is_Asked_Again(t *testing.T) {
	req := require.New(t)
	addr := startRelay(t)
	t.Setenv("CHAT_USERNAME", "")

	// Given a client started without a name
	stdin, out, _ := startClient(t, []string{addr})
	waitOutput(t, out, "Username: ")

	// When only Enter is pressed
	_, err := io.WriteString(stdin, "\n")
	req.NoError(err)

	// Then the name is asked again
	require.Eventually(t, func() bool { return strings.Count(out.String(), "Username: ") == 2 }, time.Second, 10*time.Millisecond)

	// And a real name joins
	_, err = io.WriteString(stdin, "bob\n")
	req.NoError(err)
	waitOutput(t, out, "* bob joined")
}

func TestRun_Empty_Line_After_Refusal_Is_Not_A_Join(t *testing.T) {
	req := require.New(t)
	addr := startRelay(t)

	// Given somebody already holds "alice"
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	holder, err := client.Dial(ctx, addr, wire.DefaultMaxFrameSize)
	req.NoError(err)
	defer holder.Close()
	req.NoError(holder.Join("alice"))
	evt, err := holder.Recv()
	req.NoError(err)
	req.Equal(event.Joined{Name: "alice"}, evt)

	stdin, out, _ := startClient(t, []string{addr, "alice"})
	waitOutput(t, out, "! username already taken")

	// When Enter is pressed at the prompt, then a real name is typed
	_, err = io.WriteString(stdin, "\nalicia\n")
	req.NoError(err)
	waitOutput(t, out, "* alicia joined")

	// Then the holder never saw an empty name join
	evt, err = holder.Recv()
	req.NoError(err)
	req.Equal(event.Joined{Name: "alicia"}, evt)
}
