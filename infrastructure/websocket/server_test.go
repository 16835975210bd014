package websocket

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/runtime"
	"chat-relay/wire"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*runtime.Relay, string) {
	t.Helper()
	relay := runtime.NewRelay(logs.GetLoggerFromLevel(slog.LevelDebug), runtime.NewRegistry(), runtime.NewHub(runtime.DefaultHubCapacity))
	srv := NewServer(logs.GetLoggerFromLevel(slog.LevelDebug), "127.0.0.1:0", relay, wire.DefaultMaxFrameSize)
	httpServer := httptest.NewServer(srv.Handler())
	t.Cleanup(httpServer.Close)
	return relay, "ws" + strings.TrimPrefix(httpServer.URL, "http") + Path
}

func dial(t *testing.T, url string) *wire.ClientConn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	conn, err := Dial(ctx, url, wire.DefaultMaxFrameSize)
	require.NoError(t, err)
	client := wire.NewClientConn(conn)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestWebSocket_Clients_Chat_Over_Binary_Messages(t *testing.T) {
	req := require.New(t)
	relay, url := newTestServer(t)

	// Given alice and bob connected over websocket
	alice := dial(t, url)
	req.NoError(alice.Send(domain.Join{Name: "alice"}))
	evt, err := alice.Recv()
	req.NoError(err)
	req.Equal(event.Joined{Name: "alice"}, evt)

	bob := dial(t, url)
	req.NoError(bob.Send(domain.Join{Name: "bob"}))
	evt, err = bob.Recv()
	req.NoError(err)
	req.Equal(event.Joined{Name: "bob"}, evt)
	evt, err = alice.Recv()
	req.NoError(err)
	req.Equal(event.Joined{Name: "bob"}, evt)

	// When bob speaks
	req.NoError(bob.Send(domain.Say{Text: "hello"}))

	// Then both receive it
	evt, err = alice.Recv()
	req.NoError(err)
	req.Equal(event.Said{Name: "bob", Text: "hello"}, evt)
	evt, err = bob.Recv()
	req.NoError(err)
	req.Equal(event.Said{Name: "bob", Text: "hello"}, evt)

	// When bob closes the websocket
	req.NoError(bob.Close())

	// Then alice sees him leave and the name is released
	evt, err = alice.Recv()
	req.NoError(err)
	req.Equal(event.Left{Name: "bob"}, evt)
	req.Eventually(func() bool { return relay.Stats().Registered == 1 }, time.Second, 10*time.Millisecond)
}

func TestWebSocket_Text_Message_Is_A_Decode_Failure(t *testing.T) {
	req := require.New(t)
	_, url := newTestServer(t)

	ws, resp, err := websocket.DefaultDialer.Dial(url, http.Header{})
	req.NoError(err)
	_ = resp.Body.Close()
	defer ws.Close()

	req.NoError(ws.WriteMessage(websocket.TextMessage, []byte(`{"join":"alice"}`)))

	messageType, data, err := ws.ReadMessage()
	req.NoError(err)
	req.Equal(websocket.BinaryMessage, messageType)
	evt, err := wire.UnmarshalEvent(data)
	req.NoError(err)
	req.Equal(event.Failure{Kind: event.Internal}, evt)
}

func TestWebSocket_Rejects_Plain_Posts(t *testing.T) {
	req := require.New(t)
	_, url := newTestServer(t)

	resp, err := http.Post("http"+strings.TrimPrefix(url, "ws"), "application/octet-stream", nil)
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestWebSocket_Server_Stops_With_Context(t *testing.T) {
	req := require.New(t)
	relay := runtime.NewRelay(logs.GetLoggerFromLevel(slog.LevelDebug), runtime.NewRegistry(), runtime.NewHub(runtime.DefaultHubCapacity))
	srv := NewServer(logs.GetLoggerFromLevel(slog.LevelDebug), "127.0.0.1:0", relay, wire.DefaultMaxFrameSize)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()
	<-srv.Listening()

	// Given a joined client
	client := dial(t, "ws://"+srv.Addr().String()+Path)
	req.NoError(client.Send(domain.Join{Name: "carol"}))
	_, err := client.Recv()
	req.NoError(err)

	// When the server is stopped
	cancel()

	// Then Run returns and the session is unwound
	select {
	case err := <-done:
		req.NoError(err)
	case <-time.After(time.Second):
		req.Fail("server did not stop")
	}
	waitCtx, waitCancel := context.WithTimeout(context.Background(), time.Second)
	defer waitCancel()
	req.NoError(relay.Wait(waitCtx))
	req.Zero(relay.Stats().Registered)
}
